package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

const (
	lamportsPerSig  = 5_000
	nativeDecimals  = 9
	// Transaction size caps the instruction count well below EVM batch
	// sizes; 12 transfer instructions fits the 1232-byte packet limit
	// with margin.
	maxInstructions = 12
)

// Client is the narrow RPC surface the adapter needs. *rpc.Client from
// gagliardetto/solana-go satisfies it; tests substitute a fake.
type Client interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Adapter implements port.ChainAdapter for Solana. Batches are one
// multi-instruction transaction; native instruction composition needs no
// on-chain helper contract. Recipients whose associated token account
// does not exist yet are excluded before submission and reported as
// retryable failures with a distinct code, so the operator knows a
// one-time setup is needed.
type Adapter struct {
	client     Client
	vault      port.WalletVault
	commitment rpc.CommitmentType
}

func New(client Client, vault port.WalletVault, commitment rpc.CommitmentType) *Adapter {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Adapter{client: client, vault: vault, commitment: commitment}
}

func (a *Adapter) Family() domain.ChainFamily { return domain.ChainFamilySolana }

func (a *Adapter) MaxBatchSize() int { return maxInstructions }

func (a *Adapter) ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return domain.NewChainError(domain.CodeMalformedAddress, domain.ClassPermanent,
			fmt.Errorf("not a base58 pubkey: %q", address))
	}
	return nil
}

// EstimateFee charges per signature; a batch carries exactly one.
func (a *Adapter) EstimateFee(_ context.Context, recipientCount int) (port.FeeEstimate, error) {
	total := decimal.New(lamportsPerSig, -nativeDecimals)
	est := port.FeeEstimate{Total: total, Asset: "SOL"}
	if recipientCount > 0 {
		est.PerRecipient = total.Div(decimal.NewFromInt(int64(recipientCount)))
	}
	return est, nil
}

func (a *Adapter) SubmitBatch(ctx context.Context, req port.BatchRequest) (port.SubmitResult, error) {
	payer, err := solana.PublicKeyFromBase58(req.Wallet.Address)
	if err != nil {
		return port.SubmitResult{}, domain.NewChainError(domain.CodeWalletUnusable, domain.ClassCampaignFatal, err)
	}

	var result port.SubmitResult
	var instructions []solana.Instruction

	if req.Token.Native() {
		for _, item := range req.Items {
			dest, err := solana.PublicKeyFromBase58(item.Address)
			if err != nil {
				result.Excluded = append(result.Excluded, port.ExcludedItem{
					RecipientID: item.RecipientID,
					Code:        domain.CodeMalformedAddress,
					Reason:      err.Error(),
				})
				continue
			}
			lamports := item.Amount.Shift(nativeDecimals).BigInt().Uint64()
			instructions = append(instructions, system.NewTransferInstruction(lamports, payer, dest).Build())
		}
	} else {
		mint, err := solana.PublicKeyFromBase58(req.Token.Address)
		if err != nil {
			return port.SubmitResult{}, domain.NewChainError(domain.CodeMalformedAddress, domain.ClassCampaignFatal, err)
		}
		source, _, err := solana.FindAssociatedTokenAddress(payer, mint)
		if err != nil {
			return port.SubmitResult{}, domain.NewChainError(domain.CodeWalletUnusable, domain.ClassCampaignFatal, err)
		}
		for _, item := range req.Items {
			dest, excluded := a.tokenDestination(ctx, item, mint)
			if excluded != nil {
				result.Excluded = append(result.Excluded, *excluded)
				continue
			}
			amount := item.Amount.Shift(req.Token.Decimals).BigInt().Uint64()
			instructions = append(instructions,
				token.NewTransferInstruction(amount, source, dest, payer, nil).Build())
		}
	}

	if len(instructions) == 0 {
		return result, nil
	}

	blockhash, err := a.client.GetLatestBlockhash(ctx, a.commitment)
	if err != nil {
		return result, a.classify(err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return result, domain.NewChainError(domain.CodeRPCUnavailable, domain.ClassBatchFatal, err)
	}
	if err := a.sign(ctx, req.Wallet.CampaignID, tx); err != nil {
		return result, err
	}
	sig, err := a.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: a.commitment,
	})
	if err != nil {
		return result, a.classify(err)
	}
	result.TxRef = sig.String()
	return result, nil
}

// tokenDestination resolves the recipient's associated token account and
// verifies it exists on chain.
func (a *Adapter) tokenDestination(ctx context.Context, item port.BatchItem, mint solana.PublicKey) (solana.PublicKey, *port.ExcludedItem) {
	owner, err := solana.PublicKeyFromBase58(item.Address)
	if err != nil {
		return solana.PublicKey{}, &port.ExcludedItem{
			RecipientID: item.RecipientID,
			Code:        domain.CodeMalformedAddress,
			Reason:      err.Error(),
		}
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, &port.ExcludedItem{
			RecipientID: item.RecipientID,
			Code:        domain.CodeMalformedAddress,
			Reason:      err.Error(),
		}
	}
	info, err := a.client.GetAccountInfo(ctx, ata)
	if err != nil || info == nil || info.Value == nil {
		reason := "associated token account does not exist"
		if err != nil && !errors.Is(err, rpc.ErrNotFound) {
			reason = err.Error()
		}
		return solana.PublicKey{}, &port.ExcludedItem{
			RecipientID: item.RecipientID,
			Code:        domain.CodeMissingTokenAccount,
			Reason:      reason,
			Retryable:   true,
		}
	}
	return ata, nil
}

// ConfirmationStatus reports none of the consumed fee: signature
// statuses carry no fee figure, and the per-signature estimate is exact
// anyway.
func (a *Adapter) ConfirmationStatus(ctx context.Context, txRef string) (port.Confirmation, error) {
	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return port.Confirmation{State: port.ConfirmFailed},
			domain.NewChainError(domain.CodeMalformedAddress, domain.ClassPermanent, err)
	}
	out, err := a.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return port.Confirmation{State: port.ConfirmPending}, a.classify(err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return port.Confirmation{State: port.ConfirmPending}, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return port.Confirmation{State: port.ConfirmFailed}, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return port.Confirmation{State: port.ConfirmConfirmed}, nil
	default:
		return port.Confirmation{State: port.ConfirmPending}, nil
	}
}

func (a *Adapter) Balance(ctx context.Context, address string, tok domain.TokenRef) (decimal.Decimal, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, domain.NewChainError(domain.CodeMalformedAddress, domain.ClassPermanent, err)
	}
	if tok.Native() {
		out, err := a.client.GetBalance(ctx, owner, a.commitment)
		if err != nil {
			return decimal.Zero, a.classify(err)
		}
		return decimal.New(int64(out.Value), -nativeDecimals), nil
	}
	mint, err := solana.PublicKeyFromBase58(tok.Address)
	if err != nil {
		return decimal.Zero, domain.NewChainError(domain.CodeMalformedAddress, domain.ClassPermanent, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := a.client.GetTokenAccountBalance(ctx, ata, a.commitment)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, a.classify(err)
	}
	raw, err := decimal.NewFromString(out.Value.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-int32(out.Value.Decimals)), nil
}

func (a *Adapter) Transfer(ctx context.Context, w port.WalletRef, tok domain.TokenRef, to string, amount decimal.Decimal) (string, error) {
	items := []port.BatchItem{{Address: to, Amount: amount}}
	res, err := a.SubmitBatch(ctx, port.BatchRequest{Wallet: w, Token: tok, Items: items})
	if err != nil {
		return "", err
	}
	if res.TxRef == "" {
		if len(res.Excluded) > 0 {
			return "", domain.NewChainError(res.Excluded[0].Code, domain.ClassRetryable,
				errors.New(res.Excluded[0].Reason))
		}
		return "", errors.New("transfer produced no transaction")
	}
	return res.TxRef, nil
}

// DeployBatchContract is an EVM-only concern: Solana composes transfer
// instructions natively.
func (a *Adapter) DeployBatchContract(context.Context, port.WalletRef) (string, error) {
	return "", domain.ErrUnsupportedChain
}

// ApproveAllowance is an EVM-only concern.
func (a *Adapter) ApproveAllowance(context.Context, port.WalletRef, domain.TokenRef, string, decimal.Decimal) (string, error) {
	return "", domain.ErrUnsupportedChain
}

func (a *Adapter) sign(ctx context.Context, campaignID string, tx *solana.Transaction) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return domain.NewChainError(domain.CodeSigningFailure, domain.ClassBatchFatal, err)
	}
	sig, err := a.vault.Sign(ctx, campaignID, msg)
	if err != nil {
		return domain.NewChainError(domain.CodeSigningFailure, domain.ClassBatchFatal, err)
	}
	if len(sig) != 64 {
		return domain.NewChainError(domain.CodeSigningFailure, domain.ClassBatchFatal,
			fmt.Errorf("unexpected signature length %d", len(sig)))
	}
	tx.Signatures = []solana.Signature{solana.SignatureFromBytes(sig)}
	return nil
}

// classify maps raw RPC errors onto the engine's error taxonomy.
func (a *Adapter) classify(err error) error {
	var ce *domain.ChainError
	if errors.As(err, &ce) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blockhash not found") || strings.Contains(msg, "blockhash expired"):
		return domain.NewChainError(domain.CodeExpiredBlockhash, domain.ClassRetryable, err)
	case strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient lamports"):
		return domain.NewChainError(domain.CodeInsufficientBalance, domain.ClassBatchFatal, err)
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return domain.NewChainError(domain.CodeRPCUnavailable, domain.ClassRetryable, err)
	default:
		return domain.NewChainError(domain.CodeRPCUnavailable, domain.ClassBatchFatal, err)
	}
}
