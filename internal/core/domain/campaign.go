package domain

import (
	"math"
	"time"
)

// ChainFamily selects the transaction model a campaign runs on. It is
// chosen once at campaign creation; business logic dispatches through a
// single chain adapter selected by family, never by string comparison
// scattered through call sites.
type ChainFamily string

const (
	ChainFamilyEVM    ChainFamily = "evm"
	ChainFamilySolana ChainFamily = "solana"
)

// ChainRef identifies the concrete chain a campaign targets. ChainID is
// the chain-native identifier (numeric chain id for EVM, cluster name for
// Solana).
type ChainRef struct {
	Family  ChainFamily
	ChainID string
}

// TokenRef identifies the distributed asset. An empty Address marks the
// chain's native asset. Decimals is the token's display exponent and is
// used to scale decimal amounts into base units.
type TokenRef struct {
	Address  string
	Symbol   string
	Decimals int32
}

// Native reports whether the token is the chain's native asset.
func (t TokenRef) Native() bool { return t.Address == "" }

// CampaignStatus is the lifecycle state of a campaign. Transitions are
// validated by Campaign.Transition; no other code moves a campaign
// between states.
type CampaignStatus string

const (
	CampaignCreated   CampaignStatus = "created"
	CampaignFunded    CampaignStatus = "funded"
	CampaignReady     CampaignStatus = "ready"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// Active reports whether the campaign is in a non-terminal state.
func (s CampaignStatus) Active() bool {
	return s != CampaignCompleted && s != CampaignFailed
}

// Aggregate holds live recipient counts by status, always recomputed from
// ledger rows. Total is the sum of all four buckets.
type Aggregate struct {
	Pending int
	Sending int
	Success int
	Failed  int
}

// Total returns the number of recipients covered by the aggregate.
func (a Aggregate) Total() int { return a.Pending + a.Sending + a.Success + a.Failed }

// Campaign is one token-distribution operation to a fixed recipient list
// on one chain. The counter fields are a cache derived from the recipient
// ledger; the reconciliation auditor recomputes and overwrites them from
// ledger rows whenever they drift.
type Campaign struct {
	ID              string
	Name            string
	Chain           ChainRef
	Token           TokenRef
	TotalRecipients int
	Completed       int
	Failed          int
	Pending         int
	Status          CampaignStatus
	WalletAddress   string
	BatchContract   string // EVM only, empty until deployed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// transitions enumerates the legal lifecycle moves. CampaignFailed is
// reachable from every active state and handled separately.
var transitions = map[CampaignStatus][]CampaignStatus{
	CampaignCreated: {CampaignFunded},
	CampaignFunded:  {CampaignReady},
	CampaignReady:   {CampaignSending, CampaignCompleted},
	CampaignSending: {CampaignPaused, CampaignCompleted},
	CampaignPaused:  {CampaignSending, CampaignCompleted},
}

// CanTransition reports whether moving from the campaign's current status
// to the given status is legal.
func (c *Campaign) CanTransition(to CampaignStatus) bool {
	if to == CampaignFailed {
		return c.Status.Active()
	}
	for _, s := range transitions[c.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the campaign to the given status or returns
// ErrInvalidTransition without mutating it.
func (c *Campaign) Transition(to CampaignStatus) error {
	if !c.CanTransition(to) {
		return &InvalidTransitionError{From: c.Status, To: to}
	}
	c.Status = to
	return nil
}

// ApplyAggregate overwrites the cached counters from a ledger aggregate.
// Recipients still marked sending count as pending work.
func (c *Campaign) ApplyAggregate(agg Aggregate) {
	c.Completed = agg.Success
	c.Failed = agg.Failed
	c.Pending = agg.Pending + agg.Sending
}

// Progress returns the completion percentage, rounded. A campaign with no
// recipients reports 0, never NaN.
func (c *Campaign) Progress() int {
	if c.TotalRecipients == 0 {
		return 0
	}
	return int(math.Round(float64(c.Completed) / float64(c.TotalRecipients) * 100))
}
