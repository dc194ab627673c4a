package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// run is one live scheduler loop. Pause is cooperative: the flag is
// observed between batches, never preemptively.
type run struct {
	campaignID string
	cancel     context.CancelFunc
	done       chan struct{}
	paused     atomic.Bool
}

func (r *run) requestPause() { r.paused.Store(true) }

// batchResult tells the loop what to do after one batch.
type batchResult int

const (
	batchContinue batchResult = iota
	batchPauseCampaign
	batchFailCampaign
)

func (e *Engine) startRun(c *domain.Campaign) {
	e.mu.Lock()
	if _, live := e.runs[c.ID]; live {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{campaignID: c.ID, cancel: cancel, done: make(chan struct{})}
	e.runs[c.ID] = r
	e.mu.Unlock()

	go e.runLoop(ctx, r, *c)
}

func (e *Engine) removeRun(campaignID string) {
	e.mu.Lock()
	delete(e.runs, campaignID)
	e.mu.Unlock()
}

// runLoop drains the pending set batch by batch. Batches within one
// campaign are strictly sequential: nonce ordering and blockhash validity
// both require single-writer submission per wallet. A slow chain blocks
// only this campaign's loop.
func (e *Engine) runLoop(ctx context.Context, r *run, c domain.Campaign) {
	defer close(r.done)
	defer e.removeRun(c.ID)

	logger := e.logger.With(slog.String("campaign_id", c.ID))
	adapter, err := e.adapter(c.Chain.Family)
	if err != nil {
		logger.Error("no adapter for chain family", slog.String("family", string(c.Chain.Family)))
		e.setStatus(c.ID, domain.CampaignFailed)
		return
	}

	batchSize := e.cfg.BatchSize
	if max := adapter.MaxBatchSize(); max > 0 && batchSize > max {
		batchSize = max
	}
	if batchSize < 1 {
		batchSize = 1
	}

	lastAudit := e.clock.Now()
	for {
		if ctx.Err() != nil {
			return
		}
		if r.paused.Load() {
			e.setStatus(c.ID, domain.CampaignPaused)
			logger.Info("campaign paused")
			return
		}

		batch, err := e.ledger.NextPendingBatch(ctx, c.ID, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim batch failed", slog.Any("error", err))
			if !e.sleep(ctx, e.cfg.InterBatchDelay) {
				return
			}
			continue
		}
		if len(batch) == 0 {
			e.finish(ctx, c.ID, logger)
			return
		}

		result, txRef := e.processBatch(ctx, &c, adapter, batch, logger)
		e.publishProgress(ctx, c.ID, txRef)

		switch result {
		case batchPauseCampaign:
			e.setStatus(c.ID, domain.CampaignPaused)
			logger.Warn("campaign paused after batch-fatal error")
			return
		case batchFailCampaign:
			e.setStatus(c.ID, domain.CampaignFailed)
			logger.Error("campaign failed")
			return
		}

		if e.cfg.AuditInterval > 0 && e.clock.Now().Sub(lastAudit) >= e.cfg.AuditInterval {
			if _, _, err := e.auditor.Reconcile(ctx, c.ID); err != nil {
				logger.Error("reconciliation failed", slog.Any("error", err))
			}
			lastAudit = e.clock.Now()
		}

		if !e.sleep(ctx, e.cfg.InterBatchDelay) {
			return
		}
	}
}

// processBatch drives one claimed batch through submission and
// confirmation. It returns what the loop should do next and the
// transaction reference, if any.
func (e *Engine) processBatch(
	ctx context.Context,
	c *domain.Campaign,
	adapter port.ChainAdapter,
	batch []domain.Recipient,
	logger *slog.Logger,
) (batchResult, string) {
	items := make([]port.BatchItem, len(batch))
	for i, r := range batch {
		items[i] = port.BatchItem{RecipientID: r.ID, Address: r.Address, Amount: r.Amount}
	}

	est, err := adapter.EstimateFee(ctx, len(items))
	if err != nil {
		return e.handleSubmitError(ctx, idsOf(batch), err, logger), ""
	}

	res, err := adapter.SubmitBatch(ctx, port.BatchRequest{
		Wallet:   port.WalletRef{CampaignID: c.ID, Address: c.WalletAddress},
		Token:    c.Token,
		Contract: c.BatchContract,
		Items:    items,
	})

	// Pre-flight exclusions are attributed individually before anything
	// is submitted; one bad recipient never voids the batch.
	excluded := make(map[string]bool, len(res.Excluded))
	for _, ex := range res.Excluded {
		excluded[ex.RecipientID] = true
		if merr := e.ledger.MarkOutcome(ctx, []string{ex.RecipientID}, domain.Outcome{
			Status:    domain.RecipientFailed,
			ErrorCode: ex.Code,
			ErrorText: ex.Reason,
			Retryable: ex.Retryable,
		}); merr != nil {
			logger.Error("mark excluded recipient failed", slog.Any("error", merr))
		}
	}
	submitted := make([]string, 0, len(batch))
	for _, r := range batch {
		if !excluded[r.ID] {
			submitted = append(submitted, r.ID)
		}
	}

	if err != nil {
		return e.handleSubmitError(ctx, submitted, err, logger), ""
	}
	if res.TxRef == "" {
		// Everything was excluded pre-flight.
		return batchContinue, ""
	}

	rec := domain.TransactionRecord{
		ID:             uuid.NewString(),
		CampaignID:     c.ID,
		TxRef:          res.TxRef,
		Status:         domain.TxPending,
		Fee:            est.Total,
		RecipientCount: len(submitted),
		SubmittedAt:    e.clock.Now(),
		UpdatedAt:      e.clock.Now(),
	}
	if err := e.txlog.Append(ctx, rec); err != nil {
		logger.Error("append transaction record failed", slog.Any("error", err))
	}

	conf := e.awaitConfirmation(ctx, adapter, res.TxRef, logger)
	// The receipt's consumed fee supersedes the estimate when the chain
	// reports one.
	fee := est.Total
	if conf.Fee.IsPositive() {
		fee = conf.Fee
	}
	switch conf.State {
	case port.ConfirmConfirmed:
		e.markBatch(ctx, submitted, domain.Outcome{
			Status:   domain.RecipientSuccess,
			TxRef:    res.TxRef,
			FeeShare: fee.Div(decimal.NewFromInt(int64(len(submitted)))),
		}, logger)
		e.updateTxRecord(ctx, rec.ID, domain.TxConfirmed, fee, "", logger)
		logger.Info("batch confirmed",
			slog.String("tx_ref", res.TxRef),
			slog.Int("recipients", len(submitted)))
	case port.ConfirmFailed:
		e.markBatch(ctx, submitted, domain.Outcome{
			Status:    domain.RecipientFailed,
			TxRef:     res.TxRef,
			ErrorCode: domain.CodeReverted,
			ErrorText: "transaction reverted on chain",
			Retryable: true,
		}, logger)
		e.updateTxRecord(ctx, rec.ID, domain.TxFailed, fee, "transaction reverted on chain", logger)
		logger.Warn("batch reverted", slog.String("tx_ref", res.TxRef))
	default:
		// Confirmation never arrived inside the timeout. The transfer
		// may still land; recipients go to retryable failed so the
		// operator decides, never silently dropped.
		e.markBatch(ctx, submitted, domain.Outcome{
			Status:    domain.RecipientFailed,
			TxRef:     res.TxRef,
			ErrorCode: domain.CodeConfirmTimeout,
			ErrorText: "confirmation timed out",
			Retryable: true,
		}, logger)
		e.updateTxRecord(ctx, rec.ID, domain.TxFailed, est.Total, "confirmation timed out", logger)
		logger.Warn("confirmation timed out", slog.String("tx_ref", res.TxRef))
	}
	return batchContinue, res.TxRef
}

// handleSubmitError translates a classified chain error into ledger
// mutations and a loop decision. Raw adapter errors never reach the state
// machine.
func (e *Engine) handleSubmitError(ctx context.Context, recipientIDs []string, err error, logger *slog.Logger) batchResult {
	class := domain.ClassOf(err)
	code := domain.CodeOf(err)
	switch class {
	case domain.ClassRetryable, domain.ClassPermanent:
		e.markBatch(ctx, recipientIDs, domain.Outcome{
			Status:    domain.RecipientFailed,
			ErrorCode: code,
			ErrorText: err.Error(),
			Retryable: class == domain.ClassRetryable,
		}, logger)
		logger.Warn("batch submission failed",
			slog.String("code", code),
			slog.String("class", string(class)),
			slog.Any("error", err))
		return batchContinue
	case domain.ClassCampaignFatal:
		if rerr := e.ledger.Revert(ctx, recipientIDs); rerr != nil {
			logger.Error("revert batch failed", slog.Any("error", rerr))
		}
		logger.Error("campaign-fatal chain error", slog.Any("error", err))
		return batchFailCampaign
	default:
		// Batch-fatal: abort without failing recipients so no work is
		// lost.
		if rerr := e.ledger.Revert(ctx, recipientIDs); rerr != nil {
			logger.Error("revert batch failed", slog.Any("error", rerr))
		}
		logger.Warn("batch-fatal chain error", slog.Any("error", err))
		return batchPauseCampaign
	}
}

// awaitConfirmation polls the chain until the transaction settles or the
// bounded timeout elapses. It blocks only this campaign's loop.
func (e *Engine) awaitConfirmation(ctx context.Context, adapter port.ChainAdapter, txRef string, logger *slog.Logger) port.Confirmation {
	deadline := e.clock.Now().Add(e.cfg.ConfirmTimeout)
	for {
		conf, err := adapter.ConfirmationStatus(ctx, txRef)
		if err != nil {
			logger.Warn("confirmation poll failed",
				slog.String("tx_ref", txRef),
				slog.Any("error", err))
		} else if conf.State != port.ConfirmPending {
			return conf
		}
		if e.clock.Now().After(deadline) {
			return port.Confirmation{State: port.ConfirmPending}
		}
		if !e.sleep(ctx, e.cfg.ConfirmPollInterval) {
			return port.Confirmation{State: port.ConfirmPending}
		}
	}
}

// finish decides the terminal state once the pending set is drained.
func (e *Engine) finish(ctx context.Context, campaignID string, logger *slog.Logger) {
	agg, err := e.ledger.Aggregate(ctx, campaignID)
	if err != nil {
		logger.Error("aggregate failed", slog.Any("error", err))
		return
	}
	if err := e.campaigns.UpdateCounters(ctx, campaignID, agg); err != nil {
		logger.Error("update counters failed", slog.Any("error", err))
	}
	status := domain.CampaignCompleted
	if agg.Failed > 0 && !e.cfg.CompleteWithFailures {
		status = domain.CampaignPaused
	}
	e.setStatus(campaignID, status)
	e.publishProgress(ctx, campaignID, "")
	logger.Info("campaign drained",
		slog.String("status", string(status)),
		slog.Int("success", agg.Success),
		slog.Int("failed", agg.Failed))
}

func (e *Engine) setStatus(campaignID string, status domain.CampaignStatus) {
	if err := e.campaigns.UpdateStatus(context.Background(), campaignID, status); err != nil {
		e.logger.Error("update status failed",
			slog.String("campaign_id", campaignID),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
}

// publishProgress refreshes cached counters and emits one progress event.
// Cadence is per batch, never per recipient.
func (e *Engine) publishProgress(ctx context.Context, campaignID string, txRef string) {
	agg, err := e.ledger.Aggregate(ctx, campaignID)
	if err != nil {
		e.logger.Error("aggregate failed", slog.String("campaign_id", campaignID), slog.Any("error", err))
		return
	}
	if err := e.campaigns.UpdateCounters(ctx, campaignID, agg); err != nil {
		e.logger.Error("update counters failed", slog.String("campaign_id", campaignID), slog.Any("error", err))
	}
	if e.notifier == nil {
		return
	}
	total := agg.Total()
	percent := 0
	if total > 0 {
		percent = int(float64(agg.Success)/float64(total)*100 + 0.5)
	}
	e.notifier.Notify(ctx, port.Progress{
		CampaignID: campaignID,
		Completed:  agg.Success,
		Failed:     agg.Failed,
		Pending:    agg.Pending + agg.Sending,
		Total:      total,
		Percent:    percent,
		TxRef:      txRef,
		At:         e.clock.Now(),
	})
}

func (e *Engine) markBatch(ctx context.Context, ids []string, outcome domain.Outcome, logger *slog.Logger) {
	if len(ids) == 0 {
		return
	}
	if err := e.ledger.MarkOutcome(ctx, ids, outcome); err != nil {
		logger.Error("mark outcome failed", slog.Any("error", err))
	}
}

func (e *Engine) updateTxRecord(ctx context.Context, id string, status domain.TxStatus, fee decimal.Decimal, errText string, logger *slog.Logger) {
	if err := e.txlog.UpdateStatus(ctx, id, status, fee, errText); err != nil {
		logger.Error("update transaction record failed", slog.Any("error", err))
	}
}

// sleep waits for d or until the loop is cancelled. Returns false on
// cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func idsOf(batch []domain.Recipient) []string {
	ids := make([]string, len(batch))
	for i, r := range batch {
		ids[i] = r.ID
	}
	return ids
}
