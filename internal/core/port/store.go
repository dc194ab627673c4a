package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
)

// CampaignStore persists campaign rows including the cached aggregate
// counters. Counters stored here are derived from the recipient ledger
// and may be overwritten by the reconciliation auditor at any time.
type CampaignStore interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context) ([]domain.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error
	UpdateCounters(ctx context.Context, id string, agg domain.Aggregate) error
	// SetWalletAddress records the campaign wallet once the vault has
	// generated it. The campaign row must already exist: durable stores
	// key wallet material to it.
	SetWalletAddress(ctx context.Context, id string, address string) error
	SetBatchContract(ctx context.Context, id string, contract string) error
}

// TxFilter narrows transaction queries. Zero values match everything.
type TxFilter struct {
	Status domain.TxStatus
	Since  time.Time
}

// TransactionLog records one row per on-chain submission attempt.
type TransactionLog interface {
	Append(ctx context.Context, rec domain.TransactionRecord) error
	UpdateStatus(ctx context.Context, id string, status domain.TxStatus, fee decimal.Decimal, errText string) error
	List(ctx context.Context, campaignID string, filter TxFilter) ([]domain.TransactionRecord, error)
}
