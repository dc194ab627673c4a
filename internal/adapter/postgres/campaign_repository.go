package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokendrop/internal/core/domain"
)

// CampaignRepository implements port.CampaignStore using pgxpool.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `
    id, name, chain_family, chain_id, token_address, token_symbol,
    token_decimals, total_recipients, completed, failed, pending, status,
    wallet_address, batch_contract, created_at, updated_at`

func (r *CampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO campaigns
    (id, name, chain_family, chain_id, token_address, token_symbol,
     token_decimals, total_recipients, completed, failed, pending, status,
     wallet_address, batch_contract, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		c.ID, c.Name, string(c.Chain.Family), c.Chain.ChainID,
		c.Token.Address, c.Token.Symbol, c.Token.Decimals,
		c.TotalRecipients, c.Completed, c.Failed, c.Pending, string(c.Status),
		c.WalletAddress, c.BatchContract, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectOneRow(rows, scanCampaign)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) List(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+campaignColumns+` FROM campaigns ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCampaign)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepository) UpdateCounters(ctx context.Context, id string, agg domain.Aggregate) error {
	tag, err := r.pool.Exec(ctx, `UPDATE campaigns
SET completed = $2, failed = $3, pending = $4, updated_at = now()
WHERE id = $1`,
		id, agg.Success, agg.Failed, agg.Pending+agg.Sending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepository) SetWalletAddress(ctx context.Context, id string, address string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET wallet_address = $2, updated_at = now() WHERE id = $1`,
		id, address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepository) SetBatchContract(ctx context.Context, id string, contract string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET batch_contract = $2, updated_at = now() WHERE id = $1`,
		id, contract)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func scanCampaign(row pgx.CollectableRow) (domain.Campaign, error) {
	var (
		c      domain.Campaign
		family string
		status string
	)
	err := row.Scan(
		&c.ID, &c.Name, &family, &c.Chain.ChainID,
		&c.Token.Address, &c.Token.Symbol, &c.Token.Decimals,
		&c.TotalRecipients, &c.Completed, &c.Failed, &c.Pending, &status,
		&c.WalletAddress, &c.BatchContract, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Chain.Family = domain.ChainFamily(family)
	c.Status = domain.CampaignStatus(status)
	return c, err
}
