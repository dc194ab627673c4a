package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the submission state of one on-chain attempt.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TransactionRecord is one on-chain submission attempt. A batch-contract
// send covers many recipients in one record; simple transfers cover one.
// A failed record never finalizes its covered recipients by itself.
type TransactionRecord struct {
	ID             string
	CampaignID     string
	TxRef          string
	Status         TxStatus
	Fee            decimal.Decimal
	RecipientCount int
	ErrorText      string
	SubmittedAt    time.Time
	UpdatedAt      time.Time
}
