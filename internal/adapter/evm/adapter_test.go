package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokendrop/internal/adapter/vault"
	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// fakeClient is a scripted RPC client. Sent transactions are captured for
// inspection.
type fakeClient struct {
	mu       sync.Mutex
	nonce    uint64
	gasPrice *big.Int
	balance  *big.Int
	receipt  *types.Receipt
	sendErr  error
	sent     []*types.Transaction
	callOut  []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		gasPrice: big.NewInt(1_000_000_000), // 1 gwei
		balance:  big.NewInt(0),
	}
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return c.nonce, nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, tx)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if c.receipt == nil {
		return nil, ethereum.NotFound
	}
	return c.receipt, nil
}

func (c *fakeClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return c.callOut, nil
}

func (c *fakeClient) lastSent(t *testing.T) *types.Transaction {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent, "no transaction submitted")
	return c.sent[len(c.sent)-1]
}

func newTestAdapter(t *testing.T, client Client) (*Adapter, string) {
	t.Helper()
	v := vault.New(vault.NewMemoryStore(), "test-pass")
	addr, err := v.CreateWallet(context.Background(), "c1", domain.ChainFamilyEVM)
	require.NoError(t, err)
	a, err := New(client, v, 1337, 1.0)
	require.NoError(t, err)
	return a, addr
}

func TestValidateAddress(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())
	require.NoError(t, a.ValidateAddress("0x9965507D1a55bcC2695C58ba16FB37d819B0A4dc"))

	err := a.ValidateAddress("not-an-address")
	require.Error(t, err)
	assert.Equal(t, domain.CodeMalformedAddress, domain.CodeOf(err))
	assert.Equal(t, domain.ClassPermanent, domain.ClassOf(err))
}

func TestEstimateFeeScalesWithBatch(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())

	est, err := a.EstimateFee(context.Background(), 10)
	require.NoError(t, err)
	// (60k base + 10*35k) gas at 1 gwei = 410_000 gwei.
	assert.True(t, est.Total.Equal(decimal.NewFromFloat(0.00041)), "got %s", est.Total)
	assert.True(t, est.PerRecipient.Equal(est.Total.Div(decimal.NewFromInt(10))))
}

func TestSubmitBatchNative(t *testing.T) {
	client := newFakeClient()
	a, addr := newTestAdapter(t, client)

	res, err := a.SubmitBatch(context.Background(), port.BatchRequest{
		Wallet:   port.WalletRef{CampaignID: "c1", Address: addr},
		Token:    domain.TokenRef{}, // native
		Contract: "0x00000000000000000000000000000000000000aa",
		Items: []port.BatchItem{
			{RecipientID: "r1", Address: "0x0000000000000000000000000000000000000001", Amount: decimal.NewFromFloat(1.5)},
			{RecipientID: "r2", Address: "0x0000000000000000000000000000000000000002", Amount: decimal.NewFromFloat(0.5)},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Excluded, "evm batches have no pre-flight exclusion")
	require.NotEmpty(t, res.TxRef)

	tx := client.lastSent(t)
	assert.Equal(t, res.TxRef, tx.Hash().Hex())
	// Native batch carries the summed value: 2 ether in wei.
	want, _ := new(big.Int).SetString("2000000000000000000", 10)
	assert.Zero(t, tx.Value().Cmp(want))

	// The signature must recover to the campaign wallet.
	signer := types.LatestSignerForChainID(big.NewInt(1337))
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, addr, from.Hex())
}

func TestSubmitBatchRequiresContract(t *testing.T) {
	a, addr := newTestAdapter(t, newFakeClient())

	_, err := a.SubmitBatch(context.Background(), port.BatchRequest{
		Wallet: port.WalletRef{CampaignID: "c1", Address: addr},
		Items:  []port.BatchItem{{Address: "0x0000000000000000000000000000000000000001", Amount: decimal.New(1, 0)}},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ClassCampaignFatal, domain.ClassOf(err))
}

func TestClassify(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())

	cases := []struct {
		raw   string
		code  string
		class domain.ErrorClass
	}{
		{"transaction underpriced", domain.CodeUnderpriced, domain.ClassRetryable},
		{"nonce too low", domain.CodeUnderpriced, domain.ClassRetryable},
		{"insufficient funds for gas * price + value", domain.CodeInsufficientBalance, domain.ClassBatchFatal},
		{"dial tcp: connection refused", domain.CodeRPCUnavailable, domain.ClassRetryable},
		{"something novel", domain.CodeRPCUnavailable, domain.ClassBatchFatal},
	}
	for _, tc := range cases {
		err := a.classify(errors.New(tc.raw))
		assert.Equal(t, tc.code, domain.CodeOf(err), tc.raw)
		assert.Equal(t, tc.class, domain.ClassOf(err), tc.raw)
	}
}

func TestConfirmationStatus(t *testing.T) {
	client := newFakeClient()
	a, _ := newTestAdapter(t, client)
	ctx := context.Background()

	conf, err := a.ConfirmationStatus(ctx, "0xdead")
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmPending, conf.State, "missing receipt is pending, not an error")

	// 95k gas at 2 gwei consumed 0.00019 ether.
	client.receipt = &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           95_000,
		EffectiveGasPrice: big.NewInt(2_000_000_000),
	}
	conf, err = a.ConfirmationStatus(ctx, "0xdead")
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmConfirmed, conf.State)
	assert.Equal(t, "0.00019", conf.Fee.String())

	client.receipt = &types.Receipt{Status: types.ReceiptStatusFailed}
	conf, err = a.ConfirmationStatus(ctx, "0xdead")
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmFailed, conf.State)
	assert.True(t, conf.Fee.IsZero(), "no effective gas price reported")
}

func TestBalanceScaling(t *testing.T) {
	client := newFakeClient()
	client.balance, _ = new(big.Int).SetString("1500000000000000000", 10) // 1.5 ether
	a, _ := newTestAdapter(t, client)

	native, err := a.Balance(context.Background(), "0x0000000000000000000000000000000000000001", domain.TokenRef{})
	require.NoError(t, err)
	assert.True(t, native.Equal(decimal.NewFromFloat(1.5)), "got %s", native)

	// ERC-20 balanceOf returns a 6-decimals token amount.
	client.callOut = common.LeftPadBytes(big.NewInt(2_500_000).Bytes(), 32)
	tok, err := a.Balance(context.Background(), "0x0000000000000000000000000000000000000001",
		domain.TokenRef{Address: "0x00000000000000000000000000000000000000bb", Decimals: 6})
	require.NoError(t, err)
	assert.True(t, tok.Equal(decimal.NewFromFloat(2.5)), "got %s", tok)
}

func TestDeployBatchContract(t *testing.T) {
	client := newFakeClient()
	client.nonce = 7
	a, addr := newTestAdapter(t, client)

	contract, err := a.DeployBatchContract(context.Background(), port.WalletRef{CampaignID: "c1", Address: addr})
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(contract))

	tx := client.lastSent(t)
	assert.Nil(t, tx.To(), "deployment has no destination")
	assert.NotEmpty(t, tx.Data())
}

func TestBaseUnitsTruncatesDust(t *testing.T) {
	v := baseUnits(decimal.RequireFromString("1.0000000000000000019"), 18)
	want, _ := new(big.Int).SetString("1000000000000000001", 10)
	assert.Zero(t, v.Cmp(want), "sub-base-unit dust truncated, got %s", v)
}
