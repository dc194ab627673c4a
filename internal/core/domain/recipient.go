package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipientStatus is the delivery state of a single recipient. Recipients
// are created once at campaign creation; only status and transaction
// fields mutate afterwards.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSending RecipientStatus = "sending"
	RecipientSuccess RecipientStatus = "success"
	RecipientFailed  RecipientStatus = "failed"
)

// Recipient is one (address, amount) target within a campaign. Amount is
// an arbitrary-precision decimal, never a float.
type Recipient struct {
	ID         string
	CampaignID string
	Address    string
	Amount     decimal.Decimal
	Status     RecipientStatus
	TxRef      string
	FeeShare   decimal.Decimal
	ErrorCode  string
	ErrorText  string
	Retryable  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Outcome records the result of one submission attempt for a set of
// recipients claimed in the same batch. Status must be RecipientSuccess
// or RecipientFailed; FeeShare is the per-recipient slice of the batch
// fee.
type Outcome struct {
	Status    RecipientStatus
	TxRef     string
	FeeShare  decimal.Decimal
	ErrorCode string
	ErrorText string
	Retryable bool
}
