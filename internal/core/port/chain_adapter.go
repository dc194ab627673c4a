package port

import (
	"context"

	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
)

// WalletRef names a campaign wallet without carrying key material. The
// adapter asks the vault to sign with the campaign's key.
type WalletRef struct {
	CampaignID string
	Address    string
}

// BatchItem is one transfer inside a batch transaction.
type BatchItem struct {
	RecipientID string
	Address     string
	Amount      decimal.Decimal
}

// BatchRequest describes one chain-native transaction covering a batch.
// Contract is the deployed batch-transfer contract (EVM only; ignored by
// the Solana adapter).
type BatchRequest struct {
	Wallet   WalletRef
	Token    domain.TokenRef
	Contract string
	Items    []BatchItem
}

// ExcludedItem is a recipient dropped from a batch by pre-flight checks
// (e.g. a missing associated token account on Solana). Excluded
// recipients are reported individually so one bad recipient never voids a
// whole batch.
type ExcludedItem struct {
	RecipientID string
	Code        string
	Reason      string
	Retryable   bool
}

// SubmitResult is the outcome of one batch submission. TxRef is empty
// when every item was excluded before submission.
type SubmitResult struct {
	TxRef    string
	Excluded []ExcludedItem
}

// FeeEstimate is the predicted cost of submitting a batch, in the chain's
// native asset.
type FeeEstimate struct {
	Total        decimal.Decimal
	PerRecipient decimal.Decimal
	Asset        string
}

// ConfirmState is the chain-reported fate of a submitted transaction.
type ConfirmState string

const (
	ConfirmPending   ConfirmState = "pending"
	ConfirmConfirmed ConfirmState = "confirmed"
	ConfirmFailed    ConfirmState = "failed"
)

// Confirmation is the settled result of a confirmation poll. Fee is the
// fee actually consumed, in the native asset, when the chain reports
// one; zero means the chain gave no figure and the pre-submission
// estimate stands.
type Confirmation struct {
	State ConfirmState
	Fee   decimal.Decimal
}

// ChainAdapter is the uniform interface over one chain family. Two
// implementations (EVM, Solana) share this contract; the family is
// selected once at campaign creation. All returned errors are classified
// domain.ChainError values.
type ChainAdapter interface {
	// Family identifies which chain family the adapter serves.
	Family() domain.ChainFamily

	// MaxBatchSize is the largest recipient count one transaction can
	// carry on this chain. The scheduler clamps its configured batch
	// size to this. Zero means no chain-imposed limit.
	MaxBatchSize() int

	// ValidateAddress rejects malformed destination addresses.
	ValidateAddress(address string) error

	// EstimateFee predicts the cost of a batch covering recipientCount
	// transfers.
	EstimateFee(ctx context.Context, recipientCount int) (FeeEstimate, error)

	// SubmitBatch signs and submits one transaction covering the batch
	// and returns the chain-native transaction reference plus any items
	// excluded by pre-flight checks.
	SubmitBatch(ctx context.Context, req BatchRequest) (SubmitResult, error)

	// ConfirmationStatus reports the fate of a submitted transaction,
	// including the consumed fee once a receipt is available.
	ConfirmationStatus(ctx context.Context, txRef string) (Confirmation, error)

	// Balance returns the wallet's balance of the given token, in token
	// units.
	Balance(ctx context.Context, address string, token domain.TokenRef) (decimal.Decimal, error)

	// Transfer moves a single amount out of the campaign wallet. Used
	// for withdrawals, not for batch delivery.
	Transfer(ctx context.Context, w WalletRef, token domain.TokenRef, to string, amount decimal.Decimal) (string, error)

	// DeployBatchContract deploys the on-chain batch-transfer helper and
	// returns its address. EVM only; the Solana adapter rejects it.
	DeployBatchContract(ctx context.Context, w WalletRef) (string, error)

	// ApproveAllowance grants the batch contract spending rights over an
	// ERC-20 style token. A one-time precondition of entering ready, not
	// of each batch. EVM only.
	ApproveAllowance(ctx context.Context, w WalletRef, token domain.TokenRef, contract string, amount decimal.Decimal) (string, error)
}
