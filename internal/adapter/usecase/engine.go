package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// Config tunes the batch scheduler and completion policy.
type Config struct {
	// BatchSize is the number of recipients claimed per batch, clamped
	// to the chain adapter's MaxBatchSize.
	BatchSize int
	// InterBatchDelay is the back-pressure sleep between batches,
	// protecting against fee-market spikes and RPC throttling. Pause is
	// honored only at this boundary.
	InterBatchDelay time.Duration
	// ConfirmTimeout bounds confirmation polling per transaction.
	ConfirmTimeout time.Duration
	// ConfirmPollInterval is the delay between confirmation polls.
	ConfirmPollInterval time.Duration
	// AuditInterval is how often the reconciliation auditor runs during
	// sending.
	AuditInterval time.Duration
	// CompleteWithFailures lets a campaign with failed recipients reach
	// completed once nothing is pending. When false it pauses instead so
	// the operator can intervene.
	CompleteWithFailures bool
}

// Engine owns campaign lifecycle state and is the only component that
// moves campaigns between states. It runs one batch scheduler loop per
// active campaign; loops for distinct campaigns are independent.
type Engine struct {
	cfg       Config
	campaigns port.CampaignStore
	ledger    port.RecipientLedger
	txlog     port.TransactionLog
	vault     port.WalletVault
	adapters  map[domain.ChainFamily]port.ChainAdapter
	notifier  port.ProgressNotifier
	auditor   *Auditor
	clock     port.Clock
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewEngine wires the engine. notifier and clock may be nil.
func NewEngine(
	cfg Config,
	campaigns port.CampaignStore,
	ledger port.RecipientLedger,
	txlog port.TransactionLog,
	vault port.WalletVault,
	adapters []port.ChainAdapter,
	notifier port.ProgressNotifier,
	clock port.Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	byFamily := make(map[domain.ChainFamily]port.ChainAdapter, len(adapters))
	for _, a := range adapters {
		byFamily[a.Family()] = a
	}
	return &Engine{
		cfg:       cfg,
		campaigns: campaigns,
		ledger:    ledger,
		txlog:     txlog,
		vault:     vault,
		adapters:  byFamily,
		notifier:  notifier,
		auditor:   NewAuditor(campaigns, ledger, logger),
		clock:     clock,
		logger:    logger,
		runs:      make(map[string]*run),
	}
}

// RecipientInput is one (address, amount) pair at campaign creation.
// Amount is a decimal string, never a float.
type RecipientInput struct {
	Address string
	Amount  string
}

// CreateCampaignInput carries everything needed to create a campaign.
type CreateCampaignInput struct {
	Name       string
	Chain      domain.ChainRef
	Token      domain.TokenRef
	Recipients []RecipientInput
}

// CreateCampaign validates the recipient list, creates an isolated wallet
// for the campaign and persists campaign plus recipients. The campaign
// starts in created.
func (e *Engine) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*domain.Campaign, error) {
	adapter, err := e.adapter(in.Chain.Family)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", domain.ErrValidation)
	}

	now := e.clock.Now()
	campaignID := uuid.NewString()
	recipients := make([]domain.Recipient, 0, len(in.Recipients))
	for i, r := range in.Recipients {
		if err := adapter.ValidateAddress(r.Address); err != nil {
			return nil, fmt.Errorf("%w: recipient %d: %s", domain.ErrValidation, i, err)
		}
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: recipient %d: invalid amount %q", domain.ErrValidation, i, r.Amount)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: recipient %d: amount must be positive", domain.ErrValidation, i)
		}
		recipients = append(recipients, domain.Recipient{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			Address:    r.Address,
			Amount:     amount,
			Status:     domain.RecipientPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	// The campaign row goes in first: wallet and recipient rows are
	// keyed to it, so durable stores reject them for an unknown
	// campaign.
	c := &domain.Campaign{
		ID:              campaignID,
		Name:            in.Name,
		Chain:           in.Chain,
		Token:           in.Token,
		TotalRecipients: len(recipients),
		Pending:         len(recipients),
		Status:          domain.CampaignCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	walletAddr, err := e.vault.CreateWallet(ctx, campaignID, in.Chain.Family)
	if err != nil {
		return nil, fmt.Errorf("create campaign wallet: %w", err)
	}
	if err := e.campaigns.SetWalletAddress(ctx, campaignID, walletAddr); err != nil {
		return nil, err
	}
	c.WalletAddress = walletAddr
	if err := e.ledger.CreateRecipients(ctx, recipients); err != nil {
		return nil, err
	}
	e.logger.Info("campaign created",
		slog.String("campaign_id", c.ID),
		slog.String("chain_family", string(c.Chain.Family)),
		slog.Int("recipients", c.TotalRecipients),
		slog.String("wallet", walletAddr))
	return c, nil
}

// MarkFunded detects sufficient wallet balance and moves created →
// funded. It fails with domain.ErrNotFunded when the balance does not
// cover the remaining amounts.
func (e *Engine) MarkFunded(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := c.Transition(domain.CampaignFunded); err != nil {
		return err
	}
	adapter, err := e.adapter(c.Chain.Family)
	if err != nil {
		return err
	}
	required, err := e.requiredTotal(ctx, campaignID)
	if err != nil {
		return err
	}
	balance, err := adapter.Balance(ctx, c.WalletAddress, c.Token)
	if err != nil {
		return fmt.Errorf("query wallet balance: %w", err)
	}
	if balance.LessThan(required) {
		return fmt.Errorf("%w: have %s, need %s", domain.ErrNotFunded, balance, required)
	}
	return e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignFunded)
}

// DeployContract deploys the EVM batch-transfer helper for the campaign
// wallet. Idempotent: an already-deployed contract is returned as is.
func (e *Engine) DeployContract(ctx context.Context, campaignID string) (string, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if c.Chain.Family != domain.ChainFamilyEVM {
		return "", domain.ErrUnsupportedChain
	}
	if c.BatchContract != "" {
		return c.BatchContract, nil
	}
	adapter, err := e.adapter(c.Chain.Family)
	if err != nil {
		return "", err
	}
	contract, err := adapter.DeployBatchContract(ctx, port.WalletRef{CampaignID: c.ID, Address: c.WalletAddress})
	if err != nil {
		return "", err
	}
	if err := e.campaigns.SetBatchContract(ctx, campaignID, contract); err != nil {
		return "", err
	}
	e.logger.Info("batch contract deployed",
		slog.String("campaign_id", campaignID),
		slog.String("contract", contract))
	return contract, nil
}

// MarkReady runs pre-flight checks and moves funded → ready. For EVM the
// batch contract must be deployed; ERC-20 campaigns additionally approve
// the contract's allowance once here, not per batch. Solana needs no
// contract.
func (e *Engine) MarkReady(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := c.Transition(domain.CampaignReady); err != nil {
		return err
	}
	if c.Chain.Family == domain.ChainFamilyEVM {
		if c.BatchContract == "" {
			return domain.ErrContractMissing
		}
		if !c.Token.Native() {
			adapter, err := e.adapter(c.Chain.Family)
			if err != nil {
				return err
			}
			required, err := e.requiredTotal(ctx, campaignID)
			if err != nil {
				return err
			}
			w := port.WalletRef{CampaignID: c.ID, Address: c.WalletAddress}
			if _, err := adapter.ApproveAllowance(ctx, w, c.Token, c.BatchContract, required); err != nil {
				return fmt.Errorf("approve allowance: %w", err)
			}
		}
	}
	return e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignReady)
}

// Start spawns the batch scheduler for the campaign. Legal only from
// ready. A campaign without recipients completes immediately.
func (e *Engine) Start(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.TotalRecipients == 0 {
		if err := c.Transition(domain.CampaignCompleted); err != nil {
			return err
		}
		return e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignCompleted)
	}
	if err := c.Transition(domain.CampaignSending); err != nil {
		return err
	}
	if err := e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignSending); err != nil {
		return err
	}
	e.startRun(c)
	return nil
}

// Pause signals the scheduler to stop after the in-flight batch, never
// mid-batch. The campaign transitions to paused only once that batch's
// outcome is recorded.
func (e *Engine) Pause(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if !c.CanTransition(domain.CampaignPaused) {
		return &domain.InvalidTransitionError{From: c.Status, To: domain.CampaignPaused}
	}
	e.mu.Lock()
	r, live := e.runs[campaignID]
	e.mu.Unlock()
	if live {
		r.requestPause()
		e.logger.Info("pause requested", slog.String("campaign_id", campaignID))
		return nil
	}
	// No live loop (e.g. after a restart): transition directly.
	return e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignPaused)
}

// Resume re-enters sending from paused and restarts the scheduler over
// the current pending set. Recipients already delivered are never
// re-sent. Calling Resume while already sending with a live scheduler is
// a no-op.
func (e *Engine) Resume(ctx context.Context, campaignID string) error {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignSending {
		e.mu.Lock()
		_, live := e.runs[campaignID]
		e.mu.Unlock()
		if live {
			return nil
		}
	}
	if err := c.Transition(domain.CampaignSending); err != nil {
		return err
	}
	if err := e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignSending); err != nil {
		return err
	}
	e.startRun(c)
	return nil
}

// RetryFailedTransactions resets retryable failed recipients back to
// pending, leaving permanently failed ones untouched. Legal from paused
// or sending. Returns the number of recipients reset.
func (e *Engine) RetryFailedTransactions(ctx context.Context, campaignID string) (int, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != domain.CampaignPaused && c.Status != domain.CampaignSending {
		return 0, &domain.InvalidTransitionError{From: c.Status, To: domain.CampaignSending}
	}
	n, err := e.ledger.ResetRetryable(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	agg, err := e.ledger.Aggregate(ctx, campaignID)
	if err != nil {
		return n, err
	}
	if err := e.campaigns.UpdateCounters(ctx, campaignID, agg); err != nil {
		return n, err
	}
	e.logger.Info("retryable failures reset",
		slog.String("campaign_id", campaignID),
		slog.Int("reset", n))
	return n, nil
}

// WithdrawTokens sends the wallet's whole token balance to the given
// address.
func (e *Engine) WithdrawTokens(ctx context.Context, campaignID, to string) (string, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if c.Token.Native() {
		return "", fmt.Errorf("campaign distributes the native asset; use the native withdrawal")
	}
	return e.withdraw(ctx, c, c.Token, to)
}

// WithdrawNative sends the wallet's remaining native balance, minus a fee
// reserve, to the given address.
func (e *Engine) WithdrawNative(ctx context.Context, campaignID, to string) (string, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	return e.withdraw(ctx, c, domain.TokenRef{}, to)
}

func (e *Engine) withdraw(ctx context.Context, c *domain.Campaign, token domain.TokenRef, to string) (string, error) {
	adapter, err := e.adapter(c.Chain.Family)
	if err != nil {
		return "", err
	}
	if err := adapter.ValidateAddress(to); err != nil {
		return "", err
	}
	balance, err := adapter.Balance(ctx, c.WalletAddress, token)
	if err != nil {
		return "", err
	}
	if token.Native() {
		// Leave room for the withdrawal fee itself.
		est, err := adapter.EstimateFee(ctx, 1)
		if err != nil {
			return "", err
		}
		balance = balance.Sub(est.Total)
	}
	if !balance.IsPositive() {
		return "", fmt.Errorf("nothing to withdraw")
	}
	w := port.WalletRef{CampaignID: c.ID, Address: c.WalletAddress}
	txRef, err := adapter.Transfer(ctx, w, token, to, balance)
	if err != nil {
		return "", err
	}
	e.logger.Info("funds withdrawn",
		slog.String("campaign_id", c.ID),
		slog.String("to", to),
		slog.String("amount", balance.String()),
		slog.String("tx_ref", txRef))
	return txRef, nil
}

// ExportPrivateKey returns the campaign wallet's private key in the chain
// family's conventional encoding. There is no export-all operation.
func (e *Engine) ExportPrivateKey(ctx context.Context, campaignID string) (string, error) {
	if _, err := e.campaigns.Get(ctx, campaignID); err != nil {
		return "", err
	}
	return e.vault.ExportPrivateKey(ctx, campaignID)
}

// GetDetails returns the campaign with counters reconciled against the
// ledger. Reconciliation runs on every load; drift is logged, never
// silently absorbed.
func (e *Engine) GetDetails(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	c, _, err := e.auditor.Reconcile(ctx, campaignID)
	return c, err
}

// GetRecipients lists the campaign's recipients in creation order.
func (e *Engine) GetRecipients(ctx context.Context, campaignID string) ([]domain.Recipient, error) {
	if _, err := e.campaigns.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.ledger.ListByCampaign(ctx, campaignID)
}

// GetTransactions lists submission attempts matching the filter.
func (e *Engine) GetTransactions(ctx context.Context, campaignID string, filter port.TxFilter) ([]domain.TransactionRecord, error) {
	if _, err := e.campaigns.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return e.txlog.List(ctx, campaignID, filter)
}

// Balances is the wallet's native and token balance.
type Balances struct {
	Native decimal.Decimal
	Token  decimal.Decimal
}

// GetBalance queries the campaign wallet's balances.
func (e *Engine) GetBalance(ctx context.Context, campaignID string) (Balances, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return Balances{}, err
	}
	adapter, err := e.adapter(c.Chain.Family)
	if err != nil {
		return Balances{}, err
	}
	native, err := adapter.Balance(ctx, c.WalletAddress, domain.TokenRef{})
	if err != nil {
		return Balances{}, err
	}
	out := Balances{Native: native}
	if !c.Token.Native() {
		tok, err := adapter.Balance(ctx, c.WalletAddress, c.Token)
		if err != nil {
			return Balances{}, err
		}
		out.Token = tok
	}
	return out, nil
}

// ListCampaigns returns all campaigns.
func (e *Engine) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return e.campaigns.List(ctx)
}

// Recover restarts scheduler loops for campaigns that were sending when
// the process stopped. Recipients stuck in sending revert to pending
// first so no delivery intent is lost.
func (e *Engine) Recover(ctx context.Context) error {
	campaigns, err := e.campaigns.List(ctx)
	if err != nil {
		return err
	}
	for i := range campaigns {
		c := campaigns[i]
		if c.Status != domain.CampaignSending {
			continue
		}
		n, err := e.ledger.RevertSending(ctx, c.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			e.logger.Warn("reverted in-flight recipients after restart",
				slog.String("campaign_id", c.ID),
				slog.Int("reverted", n))
		}
		e.startRun(&c)
	}
	return nil
}

// StopAll cancels every scheduler loop and waits for them to exit. Used
// on shutdown.
func (e *Engine) StopAll() {
	e.mu.Lock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.Unlock()
	for _, r := range runs {
		r.cancel()
	}
	for _, r := range runs {
		<-r.done
	}
}

func (e *Engine) adapter(family domain.ChainFamily) (port.ChainAdapter, error) {
	a, ok := e.adapters[family]
	if !ok {
		return nil, domain.ErrUnsupportedChain
	}
	return a, nil
}

// requiredTotal sums amounts still owed to undelivered recipients.
func (e *Engine) requiredTotal(ctx context.Context, campaignID string) (decimal.Decimal, error) {
	recipients, err := e.ledger.ListByCampaign(ctx, campaignID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range recipients {
		if r.Status != domain.RecipientSuccess {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}
