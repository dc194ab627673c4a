package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokendrop/internal/core/domain"
)

func seedRecipients(t *testing.T, l *RecipientLedger, campaignID string, n int) []domain.Recipient {
	t.Helper()
	recipients := make([]domain.Recipient, n)
	for i := range recipients {
		recipients[i] = domain.Recipient{
			ID:         fmt.Sprintf("r-%03d", i),
			CampaignID: campaignID,
			Address:    fmt.Sprintf("addr-%d", i),
			Amount:     decimal.NewFromInt(1),
			Status:     domain.RecipientPending,
		}
	}
	require.NoError(t, l.CreateRecipients(context.Background(), recipients))
	return recipients
}

// TestConcurrentClaimsNeverOverlap hammers NextPendingBatch from many
// goroutines and checks every recipient is claimed exactly once.
func TestConcurrentClaimsNeverOverlap(t *testing.T) {
	l := NewRecipientLedger()
	seedRecipients(t, l, "c1", 200)

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := l.NextPendingBatch(context.Background(), "c1", 7)
				if !assert.NoError(t, err) {
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, r := range batch {
					claimed[r.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, 200)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "recipient %s claimed %d times", id, n)
	}
	agg, err := l.Aggregate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 200, agg.Sending)
}

func TestMarkOutcomeOnlyTouchesSending(t *testing.T) {
	l := NewRecipientLedger()
	recipients := seedRecipients(t, l, "c1", 3)
	ctx := context.Background()

	batch, err := l.NextPendingBatch(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	share := decimal.RequireFromString("0.0005")
	ids := []string{recipients[0].ID, recipients[1].ID, recipients[2].ID}
	require.NoError(t, l.MarkOutcome(ctx, ids, domain.Outcome{
		Status:   domain.RecipientSuccess,
		TxRef:    "0xabc",
		FeeShare: share,
	}))

	agg, err := l.Aggregate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Success)
	assert.Equal(t, 1, agg.Pending, "unclaimed recipient stays pending")

	rows, err := l.ListByCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, share.Equal(rows[0].FeeShare), "outcome fee share persisted")
	assert.True(t, rows[2].FeeShare.IsZero(), "unclaimed recipient carries no fee")
}

func TestRevertSending(t *testing.T) {
	l := NewRecipientLedger()
	seedRecipients(t, l, "c1", 5)
	ctx := context.Background()

	batch, err := l.NextPendingBatch(ctx, "c1", 3)
	require.NoError(t, err)
	require.NoError(t, l.MarkOutcome(ctx, []string{batch[0].ID}, domain.Outcome{Status: domain.RecipientSuccess}))

	n, err := l.RevertSending(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	agg, err := l.Aggregate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.Aggregate{Pending: 4, Success: 1}, agg)
}

func TestResetRetryableLeavesPermanentFailures(t *testing.T) {
	l := NewRecipientLedger()
	recipients := seedRecipients(t, l, "c1", 4)
	ctx := context.Background()

	_, err := l.NextPendingBatch(ctx, "c1", 4)
	require.NoError(t, err)
	require.NoError(t, l.MarkOutcome(ctx, []string{recipients[0].ID, recipients[1].ID}, domain.Outcome{
		Status:    domain.RecipientFailed,
		ErrorCode: domain.CodeRPCUnavailable,
		Retryable: true,
	}))
	require.NoError(t, l.MarkOutcome(ctx, []string{recipients[2].ID}, domain.Outcome{
		Status:    domain.RecipientFailed,
		ErrorCode: domain.CodeMalformedAddress,
	}))
	require.NoError(t, l.MarkOutcome(ctx, []string{recipients[3].ID}, domain.Outcome{
		Status: domain.RecipientSuccess,
	}))

	n, err := l.ResetRetryable(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	agg, err := l.Aggregate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.Aggregate{Pending: 2, Success: 1, Failed: 1}, agg)

	rows, err := l.ListByCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecipientFailed, rows[2].Status, "permanent failure untouched")
	assert.Empty(t, rows[0].ErrorCode, "reset clears the stale error")
}
