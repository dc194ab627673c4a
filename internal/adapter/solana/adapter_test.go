package solana

import (
	"context"
	"errors"
	"sync"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokendrop/internal/adapter/vault"
	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// fakeClient is a scripted RPC client. Submitted transactions are
// captured for inspection; missingAccounts simulates token accounts that
// do not exist on chain.
type fakeClient struct {
	mu              sync.Mutex
	sent            []*solana.Transaction
	sendErr         error
	missingAccounts map[solana.PublicKey]bool
	sigStatus       *rpc.SignatureStatusesResult
	balance         uint64
}

func newFakeClient() *fakeClient {
	return &fakeClient{missingAccounts: map[solana.PublicKey]bool{}}
}

func (c *fakeClient) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1, 2, 3}},
	}, nil
}

func (c *fakeClient) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if c.sendErr != nil {
		return solana.Signature{}, c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, tx)
	c.mu.Unlock()
	return tx.Signatures[0], nil
}

func (c *fakeClient) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{c.sigStatus},
	}, nil
}

func (c *fakeClient) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: c.balance}, nil
}

func (c *fakeClient) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if c.missingAccounts[account] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil
}

func (c *fakeClient) GetTokenAccountBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: "2500000", Decimals: 6},
	}, nil
}

func (c *fakeClient) lastSent(t *testing.T) *solana.Transaction {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent, "no transaction submitted")
	return c.sent[len(c.sent)-1]
}

func newTestAdapter(t *testing.T, client Client) (*Adapter, string) {
	t.Helper()
	v := vault.New(vault.NewMemoryStore(), "test-pass")
	addr, err := v.CreateWallet(context.Background(), "c1", domain.ChainFamilySolana)
	require.NoError(t, err)
	return New(client, v, ""), addr
}

func TestValidateAddress(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())
	require.NoError(t, a.ValidateAddress(solana.NewWallet().PublicKey().String()))

	err := a.ValidateAddress("0xnot-base58")
	require.Error(t, err)
	assert.Equal(t, domain.CodeMalformedAddress, domain.CodeOf(err))
}

func TestSubmitBatchNative(t *testing.T) {
	client := newFakeClient()
	a, addr := newTestAdapter(t, client)

	items := []port.BatchItem{
		{RecipientID: "r1", Address: solana.NewWallet().PublicKey().String(), Amount: decimal.NewFromFloat(0.5)},
		{RecipientID: "r2", Address: solana.NewWallet().PublicKey().String(), Amount: decimal.NewFromFloat(1.25)},
	}
	res, err := a.SubmitBatch(context.Background(), port.BatchRequest{
		Wallet: port.WalletRef{CampaignID: "c1", Address: addr},
		Items:  items,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Excluded)
	require.NotEmpty(t, res.TxRef)

	tx := client.lastSent(t)
	assert.Len(t, tx.Message.Instructions, 2, "one transfer instruction per recipient")
	require.NoError(t, tx.VerifySignatures(), "signed by the campaign wallet")
}

// Recipients whose associated token account does not exist are excluded
// before submission; the rest of the batch still rides one transaction.
func TestSubmitBatchExcludesMissingTokenAccounts(t *testing.T) {
	client := newFakeClient()
	a, addr := newTestAdapter(t, client)

	mint := solana.NewWallet().PublicKey()
	good := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()

	missingATA, _, err := solana.FindAssociatedTokenAddress(missing, mint)
	require.NoError(t, err)
	client.missingAccounts[missingATA] = true

	res, err := a.SubmitBatch(context.Background(), port.BatchRequest{
		Wallet: port.WalletRef{CampaignID: "c1", Address: addr},
		Token:  domain.TokenRef{Address: mint.String(), Symbol: "TKN", Decimals: 6},
		Items: []port.BatchItem{
			{RecipientID: "r1", Address: good.String(), Amount: decimal.NewFromInt(10)},
			{RecipientID: "r2", Address: missing.String(), Amount: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.TxRef, "remaining recipient still submitted")
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "r2", res.Excluded[0].RecipientID)
	assert.Equal(t, domain.CodeMissingTokenAccount, res.Excluded[0].Code)
	assert.True(t, res.Excluded[0].Retryable)

	tx := client.lastSent(t)
	assert.Len(t, tx.Message.Instructions, 1)
}

func TestSubmitBatchAllExcludedSkipsSubmission(t *testing.T) {
	client := newFakeClient()
	a, addr := newTestAdapter(t, client)

	mint := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(dest, mint)
	require.NoError(t, err)
	client.missingAccounts[ata] = true

	res, err := a.SubmitBatch(context.Background(), port.BatchRequest{
		Wallet: port.WalletRef{CampaignID: "c1", Address: addr},
		Token:  domain.TokenRef{Address: mint.String(), Decimals: 6},
		Items:  []port.BatchItem{{RecipientID: "r1", Address: dest.String(), Amount: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.TxRef)
	assert.Len(t, res.Excluded, 1)
	assert.Empty(t, client.sent, "nothing submitted when every item was excluded")
}

func TestClassify(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())

	err := a.classify(errors.New("Blockhash not found"))
	assert.Equal(t, domain.CodeExpiredBlockhash, domain.CodeOf(err))
	assert.Equal(t, domain.ClassRetryable, domain.ClassOf(err))

	err = a.classify(errors.New("insufficient lamports for rent"))
	assert.Equal(t, domain.CodeInsufficientBalance, domain.CodeOf(err))
	assert.Equal(t, domain.ClassBatchFatal, domain.ClassOf(err))

	err = a.classify(errors.New("429 too many requests"))
	assert.Equal(t, domain.CodeRPCUnavailable, domain.CodeOf(err))
	assert.Equal(t, domain.ClassRetryable, domain.ClassOf(err))
}

func TestConfirmationStatus(t *testing.T) {
	client := newFakeClient()
	a, _ := newTestAdapter(t, client)
	ctx := context.Background()
	sig := solana.Signature{9}.String()

	conf, err := a.ConfirmationStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmPending, conf.State, "unknown signature is pending")

	client.sigStatus = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
	conf, err = a.ConfirmationStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmConfirmed, conf.State)
	assert.True(t, conf.Fee.IsZero(), "signature statuses carry no fee")

	client.sigStatus = &rpc.SignatureStatusesResult{Err: map[string]any{"InstructionError": nil}}
	conf, err = a.ConfirmationStatus(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, port.ConfirmFailed, conf.State)
}

func TestBalance(t *testing.T) {
	client := newFakeClient()
	client.balance = 2_500_000_000 // 2.5 SOL
	a, _ := newTestAdapter(t, client)
	owner := solana.NewWallet().PublicKey().String()

	native, err := a.Balance(context.Background(), owner, domain.TokenRef{})
	require.NoError(t, err)
	assert.True(t, native.Equal(decimal.NewFromFloat(2.5)), "got %s", native)

	tok, err := a.Balance(context.Background(), owner,
		domain.TokenRef{Address: solana.NewWallet().PublicKey().String(), Decimals: 6})
	require.NoError(t, err)
	assert.True(t, tok.Equal(decimal.NewFromFloat(2.5)), "got %s", tok)
}

func TestDeployAndApproveRejected(t *testing.T) {
	a, _ := newTestAdapter(t, newFakeClient())
	_, err := a.DeployBatchContract(context.Background(), port.WalletRef{})
	require.ErrorIs(t, err, domain.ErrUnsupportedChain)
	_, err = a.ApproveAllowance(context.Background(), port.WalletRef{}, domain.TokenRef{}, "", decimal.Zero)
	require.ErrorIs(t, err, domain.ErrUnsupportedChain)
}
