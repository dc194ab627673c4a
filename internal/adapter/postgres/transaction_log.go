package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// TransactionLog implements port.TransactionLog on Postgres.
type TransactionLog struct {
	pool *pgxpool.Pool
}

func NewTransactionLog(pool *pgxpool.Pool) *TransactionLog {
	return &TransactionLog{pool: pool}
}

func (l *TransactionLog) Append(ctx context.Context, rec domain.TransactionRecord) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO transactions
    (id, campaign_id, tx_ref, status, fee, recipient_count, error_text,
     submitted_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, rec.CampaignID, rec.TxRef, string(rec.Status),
		rec.Fee.String(), rec.RecipientCount, rec.ErrorText,
		rec.SubmittedAt, rec.UpdatedAt)
	return err
}

func (l *TransactionLog) UpdateStatus(ctx context.Context, id string, status domain.TxStatus, fee decimal.Decimal, errText string) error {
	tag, err := l.pool.Exec(ctx, `UPDATE transactions
SET status = $2, fee = $3, error_text = $4, updated_at = now()
WHERE id = $1`,
		id, string(status), fee.String(), errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTxRecordNotFound
	}
	return nil
}

func (l *TransactionLog) List(ctx context.Context, campaignID string, filter port.TxFilter) ([]domain.TransactionRecord, error) {
	query := `SELECT id, campaign_id, tx_ref, status, fee, recipient_count,
    error_text, submitted_at, updated_at
FROM transactions WHERE campaign_id = $1`
	args := []any{campaignID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $2`
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		if len(args) == 3 {
			query += ` AND submitted_at >= $3`
		} else {
			query += ` AND submitted_at >= $2`
		}
	}
	query += ` ORDER BY submitted_at`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTransaction)
}

func scanTransaction(row pgx.CollectableRow) (domain.TransactionRecord, error) {
	var (
		rec    domain.TransactionRecord
		status string
		fee    string
	)
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.TxRef, &status, &fee,
		&rec.RecipientCount, &rec.ErrorText, &rec.SubmittedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.Status = domain.TxStatus(status)
	rec.Fee, err = decimal.NewFromString(fee)
	return rec, err
}
