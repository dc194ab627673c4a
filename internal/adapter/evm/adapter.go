package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// Gas accounting for the batch-transfer contract. The per-recipient cost
// covers one storage-touching transfer inside the loop.
const (
	gasBase         = 60_000
	gasPerRecipient = 35_000
	gasTransfer     = 21_000
	gasTokenCall    = 80_000
	gasDeploy       = 900_000

	nativeDecimals = 18
)

// Client is the narrow RPC surface the adapter needs. *ethclient.Client
// satisfies it; tests substitute a fake. The RPC library itself is an
// opaque transaction-submission and balance-query service.
type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Adapter implements port.ChainAdapter for EVM-compatible chains. Batches
// go through a single call into the deployed batch-transfer contract;
// ERC-20 campaigns additionally require a one-time allowance approval
// before the first batch.
type Adapter struct {
	client        Client
	vault         port.WalletVault
	chainID       *big.Int
	gasMultiplier float64

	batchABI abi.ABI
	erc20ABI abi.ABI
}

func New(client Client, vault port.WalletVault, chainID int64, gasMultiplier float64) (*Adapter, error) {
	batch, err := abi.JSON(strings.NewReader(batchTransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse batch transfer abi: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if gasMultiplier <= 0 {
		gasMultiplier = 1.0
	}
	return &Adapter{
		client:        client,
		vault:         vault,
		chainID:       big.NewInt(chainID),
		gasMultiplier: gasMultiplier,
		batchABI:      batch,
		erc20ABI:      erc20,
	}, nil
}

func (a *Adapter) Family() domain.ChainFamily { return domain.ChainFamilyEVM }

// MaxBatchSize is bounded by block gas limits rather than transaction
// encoding; 200 transfers stays well under typical 30M-gas blocks.
func (a *Adapter) MaxBatchSize() int { return 200 }

func (a *Adapter) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return domain.NewChainError(domain.CodeMalformedAddress, domain.ClassPermanent,
			fmt.Errorf("not a hex address: %q", address))
	}
	return nil
}

func (a *Adapter) EstimateFee(ctx context.Context, recipientCount int) (port.FeeEstimate, error) {
	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return port.FeeEstimate{}, a.classify(err)
	}
	gas := uint64(gasBase + gasPerRecipient*recipientCount)
	wei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	total := decimal.NewFromBigInt(wei, -nativeDecimals)
	est := port.FeeEstimate{Total: total, Asset: "native"}
	if recipientCount > 0 {
		est.PerRecipient = total.Div(decimal.NewFromInt(int64(recipientCount)))
	}
	return est, nil
}

// SubmitBatch packs one call into the batch-transfer contract. EVM
// batches have no per-recipient pre-flight, so nothing is ever excluded.
func (a *Adapter) SubmitBatch(ctx context.Context, req port.BatchRequest) (port.SubmitResult, error) {
	if req.Contract == "" {
		return port.SubmitResult{}, domain.NewChainError(domain.CodeWalletUnusable, domain.ClassCampaignFatal, domain.ErrContractMissing)
	}
	addrs := make([]common.Address, len(req.Items))
	amounts := make([]*big.Int, len(req.Items))
	total := new(big.Int)
	for i, item := range req.Items {
		addrs[i] = common.HexToAddress(item.Address)
		amounts[i] = baseUnits(item.Amount, req.Token.Decimals)
		total.Add(total, amounts[i])
	}

	var (
		data  []byte
		value *big.Int
		err   error
	)
	if req.Token.Native() {
		data, err = a.batchABI.Pack("batchTransferNative", addrs, amounts)
		value = total
	} else {
		data, err = a.batchABI.Pack("batchTransferToken", common.HexToAddress(req.Token.Address), addrs, amounts)
		value = new(big.Int)
	}
	if err != nil {
		return port.SubmitResult{}, domain.NewChainError(domain.CodeReverted, domain.ClassBatchFatal, fmt.Errorf("abi pack: %w", err))
	}

	contract := common.HexToAddress(req.Contract)
	gas := uint64(gasBase + gasPerRecipient*len(req.Items))
	tx, err := a.buildAndSign(ctx, req.Wallet, &contract, value, gas, data)
	if err != nil {
		return port.SubmitResult{}, err
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return port.SubmitResult{}, a.classify(err)
	}
	return port.SubmitResult{TxRef: tx.Hash().Hex()}, nil
}

func (a *Adapter) ConfirmationStatus(ctx context.Context, txRef string) (port.Confirmation, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return port.Confirmation{State: port.ConfirmPending}, nil
		}
		return port.Confirmation{State: port.ConfirmPending}, a.classify(err)
	}
	conf := port.Confirmation{State: port.ConfirmFailed}
	if receipt.Status == types.ReceiptStatusSuccessful {
		conf.State = port.ConfirmConfirmed
	}
	// Gas is consumed whether the call succeeded or reverted.
	if receipt.EffectiveGasPrice != nil {
		wei := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
		conf.Fee = decimal.NewFromBigInt(wei, -nativeDecimals)
	}
	return conf, nil
}

func (a *Adapter) Balance(ctx context.Context, address string, token domain.TokenRef) (decimal.Decimal, error) {
	owner := common.HexToAddress(address)
	if token.Native() {
		wei, err := a.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return decimal.Zero, a.classify(err)
		}
		return decimal.NewFromBigInt(wei, -nativeDecimals), nil
	}
	data, err := a.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return decimal.Zero, err
	}
	tokenAddr := common.HexToAddress(token.Address)
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return decimal.Zero, a.classify(err)
	}
	raw := new(big.Int).SetBytes(out)
	return decimal.NewFromBigInt(raw, -token.Decimals), nil
}

func (a *Adapter) Transfer(ctx context.Context, w port.WalletRef, token domain.TokenRef, to string, amount decimal.Decimal) (string, error) {
	dest := common.HexToAddress(to)
	var (
		tx  *types.Transaction
		err error
	)
	if token.Native() {
		tx, err = a.buildAndSign(ctx, w, &dest, baseUnits(amount, nativeDecimals), gasTransfer, nil)
	} else {
		var data []byte
		data, err = a.erc20ABI.Pack("transfer", dest, baseUnits(amount, token.Decimals))
		if err != nil {
			return "", err
		}
		tokenAddr := common.HexToAddress(token.Address)
		tx, err = a.buildAndSign(ctx, w, &tokenAddr, new(big.Int), gasTokenCall, data)
	}
	if err != nil {
		return "", err
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return "", a.classify(err)
	}
	return tx.Hash().Hex(), nil
}

func (a *Adapter) DeployBatchContract(ctx context.Context, w port.WalletRef) (string, error) {
	sender := common.HexToAddress(w.Address)
	nonce, err := a.client.PendingNonceAt(ctx, sender)
	if err != nil {
		return "", a.classify(err)
	}
	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return "", a.classify(err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasDeploy,
		Data:     common.FromHex(batchTransferBin),
	})
	tx, err = a.sign(ctx, w.CampaignID, tx)
	if err != nil {
		return "", err
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return "", a.classify(err)
	}
	return crypto.CreateAddress(sender, nonce).Hex(), nil
}

func (a *Adapter) ApproveAllowance(ctx context.Context, w port.WalletRef, token domain.TokenRef, contract string, amount decimal.Decimal) (string, error) {
	data, err := a.erc20ABI.Pack("approve", common.HexToAddress(contract), baseUnits(amount, token.Decimals))
	if err != nil {
		return "", err
	}
	tokenAddr := common.HexToAddress(token.Address)
	tx, err := a.buildAndSign(ctx, w, &tokenAddr, new(big.Int), gasTokenCall, data)
	if err != nil {
		return "", err
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return "", a.classify(err)
	}
	return tx.Hash().Hex(), nil
}

func (a *Adapter) buildAndSign(ctx context.Context, w port.WalletRef, to *common.Address, value *big.Int, gas uint64, data []byte) (*types.Transaction, error) {
	nonce, err := a.client.PendingNonceAt(ctx, common.HexToAddress(w.Address))
	if err != nil {
		return nil, a.classify(err)
	}
	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return nil, a.classify(err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	return a.sign(ctx, w.CampaignID, tx)
}

func (a *Adapter) sign(ctx context.Context, campaignID string, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(a.chainID)
	sig, err := a.vault.Sign(ctx, campaignID, signer.Hash(tx).Bytes())
	if err != nil {
		return nil, domain.NewChainError(domain.CodeSigningFailure, domain.ClassBatchFatal, err)
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, domain.NewChainError(domain.CodeSigningFailure, domain.ClassBatchFatal, err)
	}
	return signed, nil
}

func (a *Adapter) gasPrice(ctx context.Context) (*big.Int, error) {
	price, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if a.gasMultiplier != 1.0 {
		scaled, _ := new(big.Float).Mul(big.NewFloat(a.gasMultiplier), new(big.Float).SetInt(price)).Int(nil)
		price = scaled
	}
	return price, nil
}

// classify maps raw RPC errors onto the engine's error taxonomy. Anything
// unrecognized stays batch-fatal so claimed recipients revert to pending.
func (a *Adapter) classify(err error) error {
	var ce *domain.ChainError
	if errors.As(err, &ce) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "underpriced") || strings.Contains(msg, "nonce too low"):
		return domain.NewChainError(domain.CodeUnderpriced, domain.ClassRetryable, err)
	case strings.Contains(msg, "insufficient funds"):
		return domain.NewChainError(domain.CodeInsufficientBalance, domain.ClassBatchFatal, err)
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "eof"):
		return domain.NewChainError(domain.CodeRPCUnavailable, domain.ClassRetryable, err)
	default:
		return domain.NewChainError(domain.CodeRPCUnavailable, domain.ClassBatchFatal, err)
	}
}

// baseUnits scales a decimal token amount into chain base units,
// truncating any dust below one base unit.
func baseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}
