package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
)

// RecipientLedger implements port.RecipientLedger on Postgres. Claiming
// uses FOR UPDATE SKIP LOCKED so concurrent claims never return
// overlapping rows. Amounts are stored as text to round-trip decimals
// exactly.
type RecipientLedger struct {
	pool *pgxpool.Pool
}

func NewRecipientLedger(pool *pgxpool.Pool) *RecipientLedger {
	return &RecipientLedger{pool: pool}
}

const recipientColumns = `
    id, campaign_id, address, amount, status, tx_ref, fee_share,
    error_code, error_text, retryable, created_at, updated_at`

func (l *RecipientLedger) CreateRecipients(ctx context.Context, recipients []domain.Recipient) error {
	batch := &pgx.Batch{}
	for _, r := range recipients {
		batch.Queue(`INSERT INTO recipients
    (id, campaign_id, address, amount, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.ID, r.CampaignID, r.Address, r.Amount.String(),
			string(r.Status), r.CreatedAt, r.UpdatedAt)
	}
	return l.pool.SendBatch(ctx, batch).Close()
}

func (l *RecipientLedger) NextPendingBatch(ctx context.Context, campaignID string, maxSize int) ([]domain.Recipient, error) {
	rows, err := l.pool.Query(ctx, `UPDATE recipients SET status = 'sending', updated_at = now()
WHERE id IN (
    SELECT id FROM recipients
    WHERE campaign_id = $1 AND status = 'pending'
    ORDER BY created_at, id
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING`+recipientColumns,
		campaignID, maxSize)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRecipient)
}

func (l *RecipientLedger) MarkOutcome(ctx context.Context, recipientIDs []string, outcome domain.Outcome) error {
	_, err := l.pool.Exec(ctx, `UPDATE recipients
SET status = $2, tx_ref = $3, fee_share = $4, error_code = $5,
    error_text = $6, retryable = $7, updated_at = now()
WHERE id = ANY($1) AND status = 'sending'`,
		recipientIDs, string(outcome.Status), outcome.TxRef,
		outcome.FeeShare.String(), outcome.ErrorCode, outcome.ErrorText,
		outcome.Retryable)
	return err
}

func (l *RecipientLedger) Revert(ctx context.Context, recipientIDs []string) error {
	_, err := l.pool.Exec(ctx, `UPDATE recipients
SET status = 'pending', updated_at = now()
WHERE id = ANY($1) AND status = 'sending'`, recipientIDs)
	return err
}

func (l *RecipientLedger) RevertSending(ctx context.Context, campaignID string) (int, error) {
	tag, err := l.pool.Exec(ctx, `UPDATE recipients
SET status = 'pending', updated_at = now()
WHERE campaign_id = $1 AND status = 'sending'`, campaignID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (l *RecipientLedger) ResetRetryable(ctx context.Context, campaignID string) (int, error) {
	tag, err := l.pool.Exec(ctx, `UPDATE recipients
SET status = 'pending', error_code = '', error_text = '', updated_at = now()
WHERE campaign_id = $1 AND status = 'failed' AND retryable`, campaignID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (l *RecipientLedger) Aggregate(ctx context.Context, campaignID string) (domain.Aggregate, error) {
	rows, err := l.pool.Query(ctx, `SELECT status, count(*) FROM recipients
WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return domain.Aggregate{}, err
	}
	defer rows.Close()

	var agg domain.Aggregate
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.Aggregate{}, err
		}
		switch domain.RecipientStatus(status) {
		case domain.RecipientPending:
			agg.Pending = n
		case domain.RecipientSending:
			agg.Sending = n
		case domain.RecipientSuccess:
			agg.Success = n
		case domain.RecipientFailed:
			agg.Failed = n
		}
	}
	return agg, rows.Err()
}

func (l *RecipientLedger) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	rows, err := l.pool.Query(ctx, `SELECT`+recipientColumns+` FROM recipients
WHERE campaign_id = $1 ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRecipient)
}

func scanRecipient(row pgx.CollectableRow) (domain.Recipient, error) {
	var (
		r        domain.Recipient
		amount   string
		feeShare string
		status   string
	)
	err := row.Scan(
		&r.ID, &r.CampaignID, &r.Address, &amount, &status, &r.TxRef, &feeShare,
		&r.ErrorCode, &r.ErrorText, &r.Retryable, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Status = domain.RecipientStatus(status)
	if r.FeeShare, err = decimal.NewFromString(feeShare); err != nil {
		return r, err
	}
	r.Amount, err = decimal.NewFromString(amount)
	return r, err
}
