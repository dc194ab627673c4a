package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokendrop/internal/adapter/vault"
	"tokendrop/internal/core/domain"
)

// WalletStore implements vault.Store on Postgres. Key material is stored
// only in encrypted form.
type WalletStore struct {
	pool *pgxpool.Pool
}

func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

func (s *WalletStore) Put(ctx context.Context, rec vault.Record) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO campaign_wallets
    (campaign_id, chain_family, address, salt, nonce, ciphertext, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.CampaignID, string(rec.Family), rec.Address,
		rec.Salt, rec.Nonce, rec.Ciphertext, rec.CreatedAt)
	return err
}

func (s *WalletStore) Get(ctx context.Context, campaignID string) (vault.Record, error) {
	var (
		rec    vault.Record
		family string
	)
	err := s.pool.QueryRow(ctx, `SELECT campaign_id, chain_family, address,
    salt, nonce, ciphertext, created_at
FROM campaign_wallets WHERE campaign_id = $1`, campaignID).Scan(
		&rec.CampaignID, &family, &rec.Address,
		&rec.Salt, &rec.Nonce, &rec.Ciphertext, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.Record{}, domain.ErrWalletNotFound
	}
	if err != nil {
		return vault.Record{}, err
	}
	rec.Family = domain.ChainFamily(family)
	return rec, nil
}
