package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrTxRecordNotFound  = errors.New("transaction record not found")
	ErrWalletNotFound    = errors.New("campaign wallet not found")
	ErrUnsupportedChain  = errors.New("unsupported chain family")
	ErrNoRecipients      = errors.New("campaign has no recipients")
	ErrContractMissing   = errors.New("batch contract not deployed")
	ErrNotFunded         = errors.New("campaign wallet balance below required total")

	// ErrValidation marks rejected operator input (bad address, malformed
	// amount, missing fields). Wrap it with context.
	ErrValidation = errors.New("validation failed")
)

// InvalidTransitionError reports an illegal campaign lifecycle move.
type InvalidTransitionError struct {
	From CampaignStatus
	To   CampaignStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid campaign transition %s -> %s", e.From, e.To)
}

// ErrorClass drives how the scheduler reacts to a chain error.
type ErrorClass string

const (
	// ClassRetryable marks recipient failures eligible for automatic
	// retry (temporary RPC failure, underpriced tx, missing token
	// account, expired blockhash).
	ClassRetryable ErrorClass = "retryable"
	// ClassPermanent marks recipient failures requiring operator
	// intervention (malformed address, destination gone after retries).
	ClassPermanent ErrorClass = "permanent"
	// ClassBatchFatal aborts the current batch without failing its
	// recipients: they revert to pending and the campaign pauses.
	ClassBatchFatal ErrorClass = "batch_fatal"
	// ClassCampaignFatal moves the campaign to failed with no further
	// automatic action.
	ClassCampaignFatal ErrorClass = "campaign_fatal"
)

// Chain error codes shared by both adapters. Distinct codes let the
// operator tell a one-time setup problem from transient flakiness.
const (
	CodeRPCUnavailable      = "rpc_unavailable"
	CodeUnderpriced         = "underpriced"
	CodeMissingTokenAccount = "missing_token_account"
	CodeExpiredBlockhash    = "expired_blockhash"
	CodeMalformedAddress    = "malformed_address"
	CodeInsufficientBalance = "insufficient_balance"
	CodeSigningFailure      = "signing_failure"
	CodeWalletUnusable      = "wallet_unusable"
	CodeConfirmTimeout      = "confirmation_timeout"
	CodeReverted            = "reverted"
)

// ChainError is a classified chain adapter error. Adapters classify every
// error before it reaches the scheduler; raw transport errors never cross
// that boundary.
type ChainError struct {
	Code  string
	Class ErrorClass
	Err   error
}

func (e *ChainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// NewChainError wraps err with a code and class.
func NewChainError(code string, class ErrorClass, err error) *ChainError {
	return &ChainError{Code: code, Class: class, Err: err}
}

// ClassOf extracts the class from a classified error. Unclassified errors
// default to batch-fatal so claimed recipients revert to pending and no
// work is lost.
func ClassOf(err error) ErrorClass {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassBatchFatal
}

// CodeOf extracts the error code, empty for unclassified errors.
func CodeOf(err error) string {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
