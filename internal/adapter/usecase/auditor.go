package usecase

import (
	"context"
	"log/slog"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// Auditor recomputes aggregate counters from the recipient ledger and
// compares them to the campaign's cached fields. The ledger is
// authoritative: drift is logged as a data-consistency warning and the
// cache is rewritten from the ledger; ledger rows are never touched.
type Auditor struct {
	campaigns port.CampaignStore
	ledger    port.RecipientLedger
	logger    *slog.Logger
}

func NewAuditor(campaigns port.CampaignStore, ledger port.RecipientLedger, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{campaigns: campaigns, ledger: ledger, logger: logger}
}

// Reconcile returns the campaign with counters rewritten from the ledger
// and the total drift detected (zero when the cache was accurate).
func (a *Auditor) Reconcile(ctx context.Context, campaignID string) (*domain.Campaign, int, error) {
	c, err := a.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, 0, err
	}
	agg, err := a.ledger.Aggregate(ctx, campaignID)
	if err != nil {
		return nil, 0, err
	}

	drift := abs(c.Completed-agg.Success) +
		abs(c.Failed-agg.Failed) +
		abs(c.Pending-(agg.Pending+agg.Sending))
	if drift != 0 {
		a.logger.Warn("campaign counters drifted from ledger",
			slog.String("campaign_id", campaignID),
			slog.Int("drift", drift),
			slog.Int("cached_completed", c.Completed),
			slog.Int("cached_failed", c.Failed),
			slog.Int("cached_pending", c.Pending),
			slog.Int("ledger_success", agg.Success),
			slog.Int("ledger_failed", agg.Failed),
			slog.Int("ledger_pending", agg.Pending+agg.Sending))
	}

	c.ApplyAggregate(agg)
	if err := a.campaigns.UpdateCounters(ctx, campaignID, agg); err != nil {
		return nil, drift, err
	}
	return c, drift, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
