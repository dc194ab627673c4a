package port

import (
	"context"

	"tokendrop/internal/core/domain"
)

// RecipientLedger is the durable record of every recipient's target
// amount and delivery status. It is the only resource mutated by more
// than one actor (scheduler loop and operator retry commands), so
// NextPendingBatch and MarkOutcome together form the sole
// synchronization boundary for recipient status: no other code path may
// write it. Implementations must be concurrency-safe.
type RecipientLedger interface {
	// CreateRecipients appends recipients at campaign creation. Rows are
	// never deleted or re-parented afterwards.
	CreateRecipients(ctx context.Context, recipients []domain.Recipient) error

	// NextPendingBatch atomically claims up to maxSize pending
	// recipients, marking them sending. Concurrent calls never return
	// overlapping sets.
	NextPendingBatch(ctx context.Context, campaignID string, maxSize int) ([]domain.Recipient, error)

	// MarkOutcome transitions the given sending recipients to success or
	// failed, recording the transaction reference, fee share and error.
	MarkOutcome(ctx context.Context, recipientIDs []string, outcome domain.Outcome) error

	// Revert returns claimed recipients to pending without recording a
	// failure. Used when a batch aborts before any outcome is known.
	Revert(ctx context.Context, recipientIDs []string) error

	// RevertSending returns every recipient of the campaign stuck in
	// sending to pending. Used on recovery after a process restart.
	RevertSending(ctx context.Context, campaignID string) (int, error)

	// ResetRetryable moves retryable failed recipients back to pending,
	// leaving permanently failed ones untouched. Returns the number
	// moved.
	ResetRetryable(ctx context.Context, campaignID string) (int, error)

	// Aggregate returns live counts by status, computed from current
	// rows, never cached.
	Aggregate(ctx context.Context, campaignID string) (domain.Aggregate, error)

	// ListByCampaign returns all recipients of a campaign in creation
	// order.
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.Recipient, error)
}
