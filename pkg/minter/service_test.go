package minter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-minter/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-minter/pkg/journal"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
	"github.com/speedrun-hq/speedrun-minter/pkg/nonce"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testSigner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testOwner    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// fakeSubmitter replays scripted errors, then succeeds with a hash derived from the nonce
type fakeSubmitter struct {
	mu       sync.Mutex
	errs     []error
	block    bool
	gate     chan struct{}
	attempts []txretry.Attempt
	receipt  *txretry.Receipt
	rcptErr  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, _ txretry.Intent, attempt txretry.Attempt) (common.Hash, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, attempt)
	block, gate := f.block, f.gate
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return common.Hash{}, ctx.Err()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}
	if err != nil {
		return common.Hash{}, err
	}

	n, _ := attempt.Nonce()
	return common.BigToHash(new(big.Int).SetUint64(n + 1000)), nil
}

func (f *fakeSubmitter) WaitReceipt(_ context.Context, hash common.Hash) (*txretry.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rcptErr != nil {
		return nil, f.rcptErr
	}
	if f.receipt == nil {
		return successReceipt(hash), nil
	}
	receipt := *f.receipt
	receipt.TransactionHash = hash
	return &receipt, nil
}

func (f *fakeSubmitter) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func successReceipt(hash common.Hash) *txretry.Receipt {
	status := types.ReceiptStatusSuccessful
	gasUsed := uint64(90000)
	return &txretry.Receipt{
		TransactionHash: hash,
		BlockNumber:     big.NewInt(100),
		Status:          &status,
		GasUsed:         &gasUsed,
	}
}

type fixedFees struct{}

func (fixedFees) InitialFee(_ context.Context) (*big.Int, error) { return big.NewInt(1000), nil }
func (fixedFees) Escalate(fee *big.Int) *big.Int                 { return txretry.Escalate(fee) }

type fakeNonceSource struct {
	mu    sync.Mutex
	nonce uint64
}

func (f *fakeNonceSource) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeNonceSource) set(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = n
}

type fakeOwners struct {
	owner common.Address
	err   error
}

func (f fakeOwners) OwnerOf(_ context.Context, _ *big.Int) (common.Address, error) {
	return f.owner, f.err
}

type testEnv struct {
	service   *Service
	submitter *fakeSubmitter
	source    *fakeNonceSource
	nonces    *nonce.Manager
	journal   *journal.MemoryJournal
}

func newTestEnv(t *testing.T, submitter *fakeSubmitter, configure func(*Options)) *testEnv {
	t.Helper()

	source := &fakeNonceSource{nonce: 7}
	nonces := nonce.NewManager(source, nil)
	store := journal.NewMemoryJournal(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	orchestrator := txretry.NewOrchestrator(submitter, fixedFees{}, txretry.WithSubmitTimeout(50*time.Millisecond))

	opts := Options{
		ChainID:  1337,
		Contract: testContract,
		Method:   "mint",
		From:     testSigner,
		Sender:   orchestrator,
		Nonces:   nonces,
		Journal:  store,
		Workers:  2,
	}
	if configure != nil {
		configure(&opts)
	}

	svc, err := NewService(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testEnv{service: svc, submitter: submitter, source: source, nonces: nonces, journal: store}
}

func newRequest(id string, tokenID uint64) models.MintRequest {
	return models.MintRequest{
		ID:           id,
		OwnerAddress: testOwner,
		TokenID:      tokenID,
		Metadata: models.Metadata{
			Name:  fmt.Sprintf("Token #%d", tokenID),
			Image: "ipfs://image",
			Attributes: []models.MetadataAttribute{
				{TraitType: "level", Value: 3},
			},
		},
	}
}

func noWait(req models.MintRequest) models.MintRequest {
	wait := false
	req.WaitConfirmation = &wait
	return req
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)

	_, err = NewService(Options{Sender: txretry.NewOrchestrator(&fakeSubmitter{}, fixedFees{})})
	assert.ErrorContains(t, err, "nonce manager")
}

func TestMint_Confirmed(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)

	assert.Equal(t, "req-1", result.ID)
	assert.Equal(t, models.StatusConfirmed, result.Status)
	assert.Equal(t, uint64(1), result.NFTDetails.TokenID)
	assert.Equal(t, testOwner, result.NFTDetails.Owner)
	require.NotNil(t, result.TxResult)
	require.NotNil(t, result.TxResult.Nonce)
	assert.Equal(t, uint64(7), *result.TxResult.Nonce)
	assert.Equal(t, "1000", result.TxResult.GasPrice)
	assert.Equal(t, 1, result.TxResult.Attempts)
	assert.True(t, result.TxResult.Receipt.Succeeded())

	// confirmed transactions are no longer tracked
	assert.Zero(t, env.nonces.PendingCount(testSigner))

	stored, err := env.journal.Get(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, result.TxResult.Hash, stored.TxResult.Hash)
}

func TestMint_GeneratesID(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	result, err := env.service.Mint(context.Background(), newRequest("", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
}

func TestMint_WithoutWaitingIsTracked(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	result, err := env.service.Mint(context.Background(), noWait(newRequest("req-1", 1)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, result.Status)
	assert.Nil(t, result.TxResult.Receipt)

	pending := env.nonces.Pending(testSigner)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(7), pending[0].Nonce)
	assert.Equal(t, result.TxResult.Hash, pending[0].Hash.Hex())
}

func TestMint_SequentialNonces(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	for i, want := range []uint64{7, 8, 9} {
		result, err := env.service.Mint(context.Background(), noWait(newRequest(fmt.Sprintf("req-%d", i), uint64(i))))
		require.NoError(t, err)
		assert.Equal(t, want, *result.TxResult.Nonce)
	}
}

func TestMint_NonceConflictIsRetried(t *testing.T) {
	submitter := &fakeSubmitter{errs: []error{errors.New("nonce too low: next nonce 12, tx nonce 7")}}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), noWait(newRequest("req-1", 1)))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), *result.TxResult.Nonce)
	assert.Equal(t, 2, result.TxResult.Attempts)

	// the next reservation continues after the nonce the node reported
	result, err = env.service.Mint(context.Background(), noWait(newRequest("req-2", 2)))
	require.NoError(t, err)
	assert.Equal(t, uint64(13), *result.TxResult.Nonce)
}

func TestMint_UnderpricedIsRetriedWithHigherFee(t *testing.T) {
	submitter := &fakeSubmitter{errs: []error{errors.New("replacement transaction underpriced")}}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)
	assert.Equal(t, "1100", result.TxResult.GasPrice)
	assert.Equal(t, uint64(7), *result.TxResult.Nonce)
}

func TestMint_FatalErrorReleasesNonce(t *testing.T) {
	submitter := &fakeSubmitter{errs: []error{errors.New("insufficient funds for gas * price + value")}}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.Error(t, err)
	assert.True(t, txretry.IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "fatal", result.ErrorType)
	assert.Contains(t, result.Error, "insufficient funds")

	// nothing was sent, so the request may be tried again
	_, err = env.journal.Get(context.Background(), "req-1")
	assert.ErrorIs(t, err, journal.ErrNotFound)

	result, err = env.service.Mint(context.Background(), noWait(newRequest("req-1", 1)))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *result.TxResult.Nonce)
	assert.Equal(t, 2, submitter.submitCount())
}

func TestMint_RetryBudgetExhausted(t *testing.T) {
	errs := make([]error, txretry.MaxRetries)
	for i := range errs {
		errs[i] = errors.New("replacement transaction underpriced")
	}
	env := newTestEnv(t, &fakeSubmitter{errs: errs}, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, txretry.ErrRetryBudgetExhausted)
	require.NotNil(t, result)
	assert.Equal(t, "retry_budget_exhausted", result.ErrorType)
	assert.Equal(t, txretry.MaxRetries, env.submitter.submitCount())
}

func TestMint_AmbiguousOutcomeIsNotResubmitted(t *testing.T) {
	submitter := &fakeSubmitter{block: true}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, txretry.ErrAmbiguousOutcome)
	require.NotNil(t, result)
	assert.Equal(t, "ambiguous_outcome", result.ErrorType)
	assert.Equal(t, 1, submitter.submitCount())

	// the same request is answered from the journal
	again, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, txretry.ErrAmbiguousOutcome)
	require.NotNil(t, again)
	assert.Equal(t, models.StatusFailed, again.Status)
	assert.Equal(t, 1, submitter.submitCount())
}

func TestMint_AmbiguousNonceIsReusedWhenUnseen(t *testing.T) {
	submitter := &fakeSubmitter{block: true}
	env := newTestEnv(t, submitter, nil)

	_, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.ErrorIs(t, err, txretry.ErrAmbiguousOutcome)

	submitter.mu.Lock()
	submitter.block = false
	submitter.mu.Unlock()

	// the node still reports 7, so the timed out send never reached it
	result, err := env.service.Mint(context.Background(), newRequest("req-2", 2))
	require.NoError(t, err)
	require.NotNil(t, result.TxResult)
	require.NotNil(t, result.TxResult.Nonce)
	assert.Equal(t, uint64(7), *result.TxResult.Nonce)
}

func TestMint_AmbiguousNonceSeenByNodeIsSkipped(t *testing.T) {
	submitter := &fakeSubmitter{block: true}
	env := newTestEnv(t, submitter, nil)

	_, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.ErrorIs(t, err, txretry.ErrAmbiguousOutcome)

	submitter.mu.Lock()
	submitter.block = false
	submitter.mu.Unlock()
	env.source.set(8)

	result, err := env.service.Mint(context.Background(), newRequest("req-2", 2))
	require.NoError(t, err)
	require.NotNil(t, result.TxResult)
	require.NotNil(t, result.TxResult.Nonce)
	assert.Equal(t, uint64(8), *result.TxResult.Nonce)
}

func TestMint_RepeatedRequestIsReplayed(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	first, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)

	second, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)
	assert.Equal(t, first.TxResult.Hash, second.TxResult.Hash)
	assert.Equal(t, 1, env.submitter.submitCount())
}

func TestMint_Reverted(t *testing.T) {
	status := types.ReceiptStatusFailed
	submitter := &fakeSubmitter{receipt: &txretry.Receipt{Status: &status}}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.Error(t, err)
	assert.Equal(t, models.StatusReverted, result.Status)
	assert.Zero(t, env.nonces.PendingCount(testSigner))
}

func TestMint_ReceiptUnavailable(t *testing.T) {
	submitter := &fakeSubmitter{rcptErr: errors.New("connection reset")}
	env := newTestEnv(t, submitter, nil)

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, result.Status)
	assert.Equal(t, "receipt_unavailable", result.ErrorType)
	assert.NotEmpty(t, result.TxResult.Hash)
	assert.Equal(t, 1, env.nonces.PendingCount(testSigner))
}

func TestMint_InvalidRequest(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	req := newRequest("req-1", 1)
	req.OwnerAddress = "not-an-address"

	_, err := env.service.Mint(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, env.submitter.submitCount())
}

func TestMint_CircuitOpen(t *testing.T) {
	breaker := circuitbreaker.NewCircuitBreaker(true, 1, time.Minute, time.Hour, nil)
	breaker.RecordFailure()

	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) { opts.Breaker = breaker })

	_, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, env.submitter.submitCount())

	breaker.Reset()
	_, err = env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.NoError(t, err)
}

func TestMint_FailuresTripCircuitBreaker(t *testing.T) {
	breaker := circuitbreaker.NewCircuitBreaker(true, 2, time.Minute, time.Hour, nil)
	submitter := &fakeSubmitter{errs: []error{
		errors.New("execution reverted"),
		errors.New("execution reverted"),
	}}
	env := newTestEnv(t, submitter, func(opts *Options) { opts.Breaker = breaker })

	for i := 0; i < 2; i++ {
		_, err := env.service.Mint(context.Background(), newRequest(fmt.Sprintf("req-%d", i), uint64(i)))
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	_, err := env.service.Mint(context.Background(), newRequest("req-3", 3))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestMint_TokenAlreadyMinted(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) {
		opts.Owners = fakeOwners{owner: common.HexToAddress(testOwner)}
	})

	_, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, ErrTokenExists)
	assert.Zero(t, env.submitter.submitCount())
}

func TestMint_OwnerLookupErrorIsIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) {
		opts.Owners = fakeOwners{err: errors.New("execution reverted: ERC721: invalid token ID")}
	})

	result, err := env.service.Mint(context.Background(), newRequest("req-1", 1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, result.Status)
}

func TestMint_ConcurrentRequestsGetUniqueNonces(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) { opts.Workers = 4 })

	const requests = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		nonces = make(map[uint64]string)
		errs   []error
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.service.Mint(context.Background(), noWait(newRequest(fmt.Sprintf("req-%d", i), uint64(i))))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			nonces[*result.TxResult.Nonce] = result.ID
		}(i)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, nonces, requests)
	for n := range nonces {
		assert.GreaterOrEqual(t, n, uint64(7))
		assert.Less(t, n, uint64(7+requests))
	}
}

func TestMint_ConcurrentSameIDSubmitsOnce(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	var wg sync.WaitGroup
	hashes := make([]string, 5)
	for i := range hashes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.service.Mint(context.Background(), newRequest("same", 1))
			if assert.NoError(t, err) {
				hashes[i] = result.TxResult.Hash
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, env.submitter.submitCount())
	for _, hash := range hashes {
		assert.Equal(t, hashes[0], hash)
	}
}

func (s *Service) waiterCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.waiting[id]; ok {
		return w.count
	}
	return 0
}

func TestMint_SameIDSurvivesFirstCallerCancelling(t *testing.T) {
	submitter := &fakeSubmitter{gate: make(chan struct{})}
	env := newTestEnv(t, submitter, func(opts *Options) {
		opts.Sender = txretry.NewOrchestrator(submitter, fixedFees{}, txretry.WithSubmitTimeout(5*time.Second))
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := env.service.Mint(firstCtx, newRequest("same", 1))
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return submitter.submitCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	type outcome struct {
		result *models.MintResult
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := env.service.Mint(context.Background(), newRequest("same", 1))
		second <- outcome{result, err}
	}()
	require.Eventually(t, func() bool { return env.service.waiterCount("same") == 2 }, 2*time.Second, 5*time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(submitter.gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, models.StatusConfirmed, got.result.Status)
	assert.Equal(t, 1, submitter.submitCount())
	assert.Zero(t, env.service.waiterCount("same"))
}

func TestMint_CancelledBeforeProcessing(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.service.Mint(ctx, newRequest("req-1", 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.submitter.submitCount())
}

func TestMint_AfterStop(t *testing.T) {
	store := journal.NewMemoryJournal(time.Hour)
	defer store.Close()

	submitter := &fakeSubmitter{}
	svc, err := NewService(Options{
		Sender:  txretry.NewOrchestrator(submitter, fixedFees{}),
		Nonces:  nonce.NewManager(&fakeNonceSource{}, nil),
		Journal: store,
		Workers: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))

	_, err = svc.Mint(context.Background(), newRequest("req-1", 1))
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, svc.Ready(context.Background()), ErrStopped)
	assert.Zero(t, submitter.submitCount())
}

type fakeReceipts struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	err      error
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func TestRecoverTransactions(t *testing.T) {
	source := &fakeNonceSource{nonce: 10}
	nonces := nonce.NewManager(source, nil)
	nonces.SetTransactionTimeout(time.Nanosecond)

	mined := common.HexToHash("0x0a")
	reverted := common.HexToHash("0x0b")
	dropped := common.HexToHash("0x0c")

	receipts := &fakeReceipts{receipts: map[common.Hash]*types.Receipt{
		mined:    {Status: types.ReceiptStatusSuccessful},
		reverted: {Status: types.ReceiptStatusFailed},
	}}

	store := journal.NewMemoryJournal(time.Hour)
	defer store.Close()

	svc, err := NewService(Options{
		From:     testSigner,
		Sender:   txretry.NewOrchestrator(&fakeSubmitter{}, fixedFees{}),
		Nonces:   nonces,
		Journal:  store,
		Receipts: receipts,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i, hash := range []common.Hash{mined, reverted, dropped} {
		n, err := nonces.Next(ctx, testSigner)
		require.NoError(t, err)
		require.Equal(t, uint64(10+i), n)
		nonces.Track(testSigner, n, hash)
	}
	// the node has seen nonces 10 and 11 but not 12
	source.set(12)
	time.Sleep(time.Millisecond)

	svc.recoverTransactions(ctx)

	assert.Zero(t, nonces.PendingCount(testSigner))

	n, err := nonces.Next(ctx, testSigner)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), n, "the dropped nonce is handed out again")
}

func TestRecoverTransactions_LookupErrorKeepsTracking(t *testing.T) {
	source := &fakeNonceSource{nonce: 3}
	nonces := nonce.NewManager(source, nil)
	nonces.SetTransactionTimeout(time.Nanosecond)

	store := journal.NewMemoryJournal(time.Hour)
	defer store.Close()

	svc, err := NewService(Options{
		From:     testSigner,
		Sender:   txretry.NewOrchestrator(&fakeSubmitter{}, fixedFees{}),
		Nonces:   nonces,
		Journal:  store,
		Receipts: &fakeReceipts{err: errors.New("connection refused")},
	})
	require.NoError(t, err)

	nonces.Track(testSigner, 3, common.HexToHash("0x03"))
	time.Sleep(time.Millisecond)

	svc.recoverTransactions(context.Background())
	assert.Equal(t, 1, nonces.PendingCount(testSigner))
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) {
		opts.ChainName = "Local"
		opts.GasPrice = func() *big.Int { return big.NewInt(42) }
	})

	_, err := env.service.Mint(context.Background(), noWait(newRequest("req-1", 1)))
	require.NoError(t, err)

	status := env.service.Status(context.Background())
	assert.Equal(t, 1337, status.ChainID)
	assert.Equal(t, "Local", status.ChainName)
	assert.Equal(t, testContract.Hex(), status.NFTAddress)
	assert.Equal(t, testSigner.Hex(), status.Signer)
	assert.Equal(t, "42", status.GasPrice)
	assert.Equal(t, 2, status.Workers)
	require.Len(t, status.PendingTransactions, 1)
	assert.Equal(t, uint64(7), status.PendingTransactions[0].Nonce)
	assert.Equal(t, "pending", status.PendingTransactions[0].Status)
}

type fakeBlocks struct{ err error }

func (f fakeBlocks) GetLatestBlockNumber(_ context.Context) (uint64, error) { return 100, f.err }

func TestReady(t *testing.T) {
	env := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) { opts.Blocks = fakeBlocks{} })
	assert.NoError(t, env.service.Ready(context.Background()))

	down := newTestEnv(t, &fakeSubmitter{}, func(opts *Options) {
		opts.Blocks = fakeBlocks{err: errors.New("dial tcp: connection refused")}
	})
	assert.ErrorContains(t, down.service.Ready(context.Background()), "unreachable")
}
