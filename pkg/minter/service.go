package minter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/speedrun-hq/speedrun-minter/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-minter/pkg/journal"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
	"github.com/speedrun-hq/speedrun-minter/pkg/nonce"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultWorkerCount is used when Options.Workers is not set
	DefaultWorkerCount = 4

	// DefaultQueueSize is used when Options.QueueSize is not set
	DefaultQueueSize = 100

	// DefaultRecoveryInterval is used when Options.RecoveryInterval is not set
	DefaultRecoveryInterval = time.Minute
)

var (
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid mint request")

	// ErrCircuitOpen is returned while the circuit breaker rejects new submissions
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrTokenExists is returned when the token already has an owner on chain
	ErrTokenExists = errors.New("token already minted")

	// ErrStopped is returned once the service has shut down
	ErrStopped = errors.New("minter stopped")
)

// Sender submits an intent with retries. *txretry.Orchestrator satisfies it.
type Sender interface {
	Send(ctx context.Context, intent txretry.Intent, opts txretry.SendOptions) (*txretry.Outcome, error)
}

// OwnerLookup reads the current owner of a token
type OwnerLookup interface {
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
}

// ReceiptLookup reads a receipt without waiting for it
type ReceiptLookup interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// BlockReader reports the chain head, used for readiness and status
type BlockReader interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
}

// BalanceReader reports the native balance of the signing account
type BalanceReader interface {
	SignerBalance(ctx context.Context) (*big.Int, error)
}

// Options wires a Service. Sender, Nonces and Journal are required.
type Options struct {
	ChainID   int
	ChainName string
	Contract  common.Address
	Method    string
	From      common.Address

	Sender  Sender
	Nonces  *nonce.Manager
	Journal journal.Journal
	Breaker *circuitbreaker.CircuitBreaker
	Limiter *rate.Limiter

	// Owners enables the already-minted check
	Owners OwnerLookup
	// Receipts enables the recovery of timed out transactions
	Receipts ReceiptLookup
	Blocks   BlockReader
	Balances BalanceReader
	GasPrice func() *big.Int

	Workers          int
	QueueSize        int
	RecoveryInterval time.Duration
	Logger           logger.Logger
}

type job struct {
	ctx  context.Context
	req  models.MintRequest
	done chan jobResult
}

type jobResult struct {
	result *models.MintResult
	err    error
}

// waiters counts the callers sharing one request ID. Their shared context is cancelled
// when the last of them leaves.
type waiters struct {
	count  int
	ctx    context.Context
	cancel context.CancelFunc
}

// Service queues mint requests and submits them from a pool of workers
type Service struct {
	opts    Options
	jobs    chan job
	flights singleflight.Group
	mu      sync.Mutex
	waiting map[string]*waiters
	wg      sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
	logger  logger.Logger
}

// NewService creates a mint service. Workers start with Run.
func NewService(opts Options) (*Service, error) {
	if opts.Sender == nil {
		return nil, errors.New("sender is required")
	}
	if opts.Nonces == nil {
		return nil, errors.New("nonce manager is required")
	}
	if opts.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if opts.Method == "" {
		opts.Method = "mint"
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkerCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = DefaultRecoveryInterval
	}
	if opts.Logger == nil {
		opts.Logger = &logger.EmptyLogger{}
	}

	return &Service{
		opts:    opts,
		jobs:    make(chan job, opts.QueueSize),
		waiting: make(map[string]*waiters),
		quit:    make(chan struct{}),
		logger:  opts.Logger,
	}, nil
}

// Run starts the worker pool and the recovery loop, and blocks until ctx is done.
// In-flight submissions are cancelled with ctx.
func (s *Service) Run(ctx context.Context) error {
	s.logger.NoticeWithChain(s.opts.ChainID, "Starting worker pool with %d workers", s.opts.Workers)
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	if s.opts.Receipts != nil {
		s.wg.Add(1)
		go s.transactionRecovery(ctx)
	}

	<-ctx.Done()
	s.logger.Notice("Context cancelled, shutting down minter")
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
	return nil
}

// Mint validates req, answers repeated request IDs from the journal and otherwise
// queues the request and waits for a worker to submit it.
//
// For a failed submission both the result and the error are returned.
func (s *Service) Mint(ctx context.Context, req models.MintRequest) (*models.MintResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared, leave := s.join(ctx, req.ID)
	defer leave()

	ch := s.flights.DoChan(req.ID, func() (interface{}, error) {
		result, err := s.mint(shared, req)
		return flight{result: result, err: err}, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			metrics.DuplicateRequests.WithLabelValues(s.chainLabel()).Inc()
		}
		f := r.Val.(flight)
		return f.result, f.err
	case <-ctx.Done():
		// the worker still finishes and journals the result
		return nil, ctx.Err()
	case <-s.quit:
		return nil, ErrStopped
	}
}

// join registers a caller for id and returns the context the shared work runs with.
// It outlives any single caller and is cancelled once every caller has left.
func (s *Service) join(ctx context.Context, id string) (context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.waiting[id]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		w = &waiters{ctx: shared, cancel: cancel}
		s.waiting[id] = w
	}
	w.count++

	return w.ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		w.count--
		if w.count > 0 {
			return
		}
		w.cancel()
		if s.waiting[id] == w {
			delete(s.waiting, id)
		}
	}
}

// flight carries a result together with its error through singleflight, which drops the value on error
type flight struct {
	result *models.MintResult
	err    error
}

func (s *Service) mint(ctx context.Context, req models.MintRequest) (*models.MintResult, error) {
	stored, err := s.opts.Journal.Get(ctx, req.ID)
	switch {
	case err == nil && stored.Final():
		s.logger.InfoWithChain(s.opts.ChainID, "Request %s already processed with status %s", req.ID, stored.Status)
		metrics.DuplicateRequests.WithLabelValues(s.chainLabel()).Inc()
		return stored, replayError(stored)
	case err != nil && !errors.Is(err, journal.ErrNotFound):
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	done := make(chan jobResult, 1)
	select {
	case s.jobs <- job{ctx: ctx, req: req, done: done}:
		metrics.QueuedMints.Inc()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.quit:
		return nil, ErrStopped
	}

	select {
	case r := <-done:
		return r.result, r.err
	case <-s.quit:
		return nil, ErrStopped
	}
}

// Result returns the journaled result of a request
func (s *Service) Result(ctx context.Context, id string) (*models.MintResult, error) {
	return s.opts.Journal.Get(ctx, id)
}

// Ready reports whether the chain can be reached
func (s *Service) Ready(ctx context.Context) error {
	select {
	case <-s.quit:
		return ErrStopped
	default:
	}
	if s.opts.Blocks == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.opts.Blocks.GetLatestBlockNumber(ctx); err != nil {
		return fmt.Errorf("chain %d unreachable: %w", s.opts.ChainID, err)
	}
	return nil
}

// Status reports the current state of the service
func (s *Service) Status(ctx context.Context) models.ServiceStatus {
	status := models.ServiceStatus{
		ChainID:     s.opts.ChainID,
		ChainName:   s.opts.ChainName,
		NFTAddress:  s.opts.Contract.Hex(),
		MintMethod:  s.opts.Method,
		Signer:      s.opts.From.Hex(),
		Workers:     s.opts.Workers,
		QueueLength: len(s.jobs),
		CircuitOpen: s.opts.Breaker != nil && s.opts.Breaker.IsOpen(),
	}

	if s.opts.Blocks != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if block, err := s.opts.Blocks.GetLatestBlockNumber(ctx); err != nil {
			status.BlockError = err.Error()
		} else {
			status.LatestBlock = block
		}
	}
	if s.opts.Balances != nil {
		if balance, err := s.opts.Balances.SignerBalance(ctx); err != nil {
			s.logger.DebugWithChain(s.opts.ChainID, "Failed to read signer balance: %v", err)
		} else {
			status.SignerBalance = balance.String()
		}
	}
	if s.opts.GasPrice != nil {
		if price := s.opts.GasPrice(); price != nil {
			status.GasPrice = price.String()
		}
	}

	records := s.opts.Nonces.Pending(s.opts.From)
	status.PendingTransactions = make([]models.PendingTransaction, 0, len(records))
	for _, record := range records {
		status.PendingTransactions = append(status.PendingTransactions, models.PendingTransaction{
			Nonce:     record.Nonce,
			Hash:      record.Hash.Hex(),
			Status:    record.Status.String(),
			CreatedAt: record.CreatedAt,
		})
	}
	return status
}

// replayError rebuilds the error of a journaled failure
func replayError(result *models.MintResult) error {
	if result.Status != models.StatusFailed {
		return nil
	}
	if result.ErrorType == "ambiguous_outcome" {
		return fmt.Errorf("%w: %s", txretry.ErrAmbiguousOutcome, result.Error)
	}
	return errors.New(result.Error)
}
