package memory

import (
	"context"
	"sync"
	"time"

	"tokendrop/internal/core/domain"
)

// RecipientLedger is an in-memory port.RecipientLedger. A single mutex
// guards claim and outcome writes, which keeps NextPendingBatch atomic
// with respect to concurrent callers.
type RecipientLedger struct {
	mu         sync.Mutex
	recipients map[string]*domain.Recipient
	byCampaign map[string][]string // creation order
}

func NewRecipientLedger() *RecipientLedger {
	return &RecipientLedger{
		recipients: make(map[string]*domain.Recipient),
		byCampaign: make(map[string][]string),
	}
}

func (l *RecipientLedger) CreateRecipients(_ context.Context, recipients []domain.Recipient) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range recipients {
		r := recipients[i]
		l.recipients[r.ID] = &r
		l.byCampaign[r.CampaignID] = append(l.byCampaign[r.CampaignID], r.ID)
	}
	return nil
}

func (l *RecipientLedger) NextPendingBatch(_ context.Context, campaignID string, maxSize int) ([]domain.Recipient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Recipient
	now := time.Now().UTC()
	for _, id := range l.byCampaign[campaignID] {
		if len(out) >= maxSize {
			break
		}
		r := l.recipients[id]
		if r.Status != domain.RecipientPending {
			continue
		}
		r.Status = domain.RecipientSending
		r.UpdatedAt = now
		out = append(out, *r)
	}
	return out, nil
}

func (l *RecipientLedger) MarkOutcome(_ context.Context, recipientIDs []string, outcome domain.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range recipientIDs {
		r, ok := l.recipients[id]
		if !ok {
			return domain.ErrRecipientNotFound
		}
		if r.Status != domain.RecipientSending {
			continue
		}
		r.Status = outcome.Status
		r.TxRef = outcome.TxRef
		r.FeeShare = outcome.FeeShare
		r.ErrorCode = outcome.ErrorCode
		r.ErrorText = outcome.ErrorText
		r.Retryable = outcome.Retryable
		r.UpdatedAt = now
	}
	return nil
}

func (l *RecipientLedger) Revert(_ context.Context, recipientIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range recipientIDs {
		r, ok := l.recipients[id]
		if !ok {
			return domain.ErrRecipientNotFound
		}
		if r.Status == domain.RecipientSending {
			r.Status = domain.RecipientPending
			r.UpdatedAt = now
		}
	}
	return nil
}

func (l *RecipientLedger) RevertSending(_ context.Context, campaignID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, id := range l.byCampaign[campaignID] {
		r := l.recipients[id]
		if r.Status == domain.RecipientSending {
			r.Status = domain.RecipientPending
			r.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (l *RecipientLedger) ResetRetryable(_ context.Context, campaignID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, id := range l.byCampaign[campaignID] {
		r := l.recipients[id]
		if r.Status == domain.RecipientFailed && r.Retryable {
			r.Status = domain.RecipientPending
			r.ErrorCode = ""
			r.ErrorText = ""
			r.Retryable = false
			r.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (l *RecipientLedger) Aggregate(_ context.Context, campaignID string) (domain.Aggregate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var agg domain.Aggregate
	for _, id := range l.byCampaign[campaignID] {
		switch l.recipients[id].Status {
		case domain.RecipientPending:
			agg.Pending++
		case domain.RecipientSending:
			agg.Sending++
		case domain.RecipientSuccess:
			agg.Success++
		case domain.RecipientFailed:
			agg.Failed++
		}
	}
	return agg, nil
}

func (l *RecipientLedger) ListByCampaign(_ context.Context, campaignID string) ([]domain.Recipient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.byCampaign[campaignID]
	out := make([]domain.Recipient, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.recipients[id])
	}
	return out, nil
}
