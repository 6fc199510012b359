package txretry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
)

// MaxRetries is the number of submissions made for one intent before giving up.
const MaxRetries = 5

// SendOptions are the caller supplied parameters of the first attempt.
type SendOptions struct {
	// Nonce is used as is when set. When nil the signer picks the pending nonce.
	Nonce *uint64
	// Fee is used as is when set. When nil the fee estimator is asked.
	Fee *big.Int
	// WaitReceipt blocks until the transaction is mined.
	WaitReceipt bool
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Hash     common.Hash
	Receipt  *Receipt
	Attempts []Attempt
}

// Final returns the attempt that produced the transaction.
func (o *Outcome) Final() Attempt {
	return o.Attempts[len(o.Attempts)-1]
}

// Orchestrator sends an intent and retries nonce conflicts and underpriced rejections.
type Orchestrator struct {
	submitter      Submitter
	fees           FeeEstimator
	classifier     Classifier
	logger         logger.Logger
	chainID        int
	feeCap         *big.Int
	submitTimeout  time.Duration
	receiptTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClassifier(c Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithChainID labels logs and metrics.
func WithChainID(chainID int) Option {
	return func(o *Orchestrator) { o.chainID = chainID }
}

// WithFeeCap rejects any bid above limit. A nil or zero limit disables the check.
func WithFeeCap(limit *big.Int) Option {
	return func(o *Orchestrator) {
		if limit != nil && limit.Sign() > 0 {
			o.feeCap = new(big.Int).Set(limit)
		}
	}
}

// WithSubmitTimeout bounds each submission. An attempt that hits it has an unknown outcome.
func WithSubmitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.submitTimeout = d }
}

// WithReceiptTimeout bounds the wait for a receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.receiptTimeout = d }
}

// NewOrchestrator creates an orchestrator over the given submitter and fee source.
func NewOrchestrator(submitter Submitter, fees FeeEstimator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		submitter: submitter,
		fees:      fees,
		logger:    &logger.EmptyLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.classifier == nil {
		o.classifier = NewMessageClassifierFor(fees)
	}
	return o
}

// Send submits intent, retrying at most MaxRetries times in total.
//
// A directive replaces only the parameter it names: a nonce retry keeps the fee and a fee
// retry keeps the nonce. When WaitReceipt is set and the receipt cannot be fetched, Send
// returns the outcome with its hash together with an error wrapping ErrReceiptUnavailable.
func (o *Orchestrator) Send(ctx context.Context, intent Intent, opts SendOptions) (*Outcome, error) {
	chainLabel := strconv.Itoa(o.chainID)

	nonce := copyNonce(opts.Nonce)
	fee := copyFee(opts.Fee)
	if fee == nil {
		initial, err := o.fees.InitialFee(ctx)
		if err != nil {
			metrics.FatalErrors.WithLabelValues(chainLabel, "fee_estimation").Inc()
			return nil, &FatalError{Attempt: 0, Reason: err.Error(), Err: err}
		}
		fee = initial
	}

	attempts := make([]Attempt, 0, MaxRetries)
	var lastErr error

	for index := 0; index < MaxRetries; index++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("submission cancelled before attempt %d: %w", index, err)
		}
		if err := o.checkFeeCap(index, fee); err != nil {
			metrics.FatalErrors.WithLabelValues(chainLabel, ErrorType(err)).Inc()
			return nil, err
		}

		attempt := NewAttempt(index, nonce, fee)
		o.logger.DebugWithChain(o.chainID, "Submitting %s for %s on %s", attempt, intent.Method(), intent.Contract().Hex())

		hash, err := o.submit(ctx, intent, attempt)
		if err == nil {
			attempts = append(attempts, attempt.withOutcome(hash, nil, Proceed(hash)))
			metrics.SubmitAttempts.WithLabelValues(chainLabel, "success").Inc()
			o.logger.InfoWithChain(o.chainID, "Transaction %s sent on %s", hash.Hex(), attempt)
			return o.finish(ctx, &Outcome{Hash: hash, Attempts: attempts}, opts.WaitReceipt)
		}

		if ambiguous(ctx, err) {
			attempts = append(attempts, attempt.withOutcome(common.Hash{}, err, Fatal(err.Error())))
			metrics.SubmitAttempts.WithLabelValues(chainLabel, "ambiguous").Inc()
			metrics.FatalErrors.WithLabelValues(chainLabel, "ambiguous_outcome").Inc()
			o.logger.ErrorWithChain(o.chainID, "%s timed out, outcome unknown: %v", attempt, err)
			return nil, &FatalError{
				Attempt: index,
				Reason:  err.Error(),
				Err:     fmt.Errorf("%w: %w", ErrAmbiguousOutcome, err),
			}
		}

		directive := o.classifier.Classify(err.Error(), fee)
		attempts = append(attempts, attempt.withOutcome(common.Hash{}, err, directive))
		lastErr = err

		switch directive.Action {
		case ActionRetryWithNonce:
			metrics.SubmitAttempts.WithLabelValues(chainLabel, "nonce_conflict").Inc()
			metrics.NonceRetries.WithLabelValues(chainLabel).Inc()
			o.logger.NoticeWithChain(o.chainID, "%s rejected, node reports next nonce %d", attempt, directive.Nonce)
			next := directive.Nonce
			nonce = &next
			lastErr = fmt.Errorf("%w: %w", ErrNonceConflict, err)
		case ActionRetryWithFee:
			metrics.SubmitAttempts.WithLabelValues(chainLabel, "underpriced").Inc()
			metrics.FeeEscalations.WithLabelValues(chainLabel).Inc()
			o.logger.NoticeWithChain(o.chainID, "%s underpriced, raising fee to %s", attempt, directive.Fee.String())
			fee = copyFee(directive.Fee)
			lastErr = fmt.Errorf("%w: %w", ErrUnderpriced, err)
		default:
			metrics.SubmitAttempts.WithLabelValues(chainLabel, "fatal").Inc()
			metrics.FatalErrors.WithLabelValues(chainLabel, "provider_error").Inc()
			o.logger.ErrorWithChain(o.chainID, "%s failed: %v", attempt, err)
			return nil, &FatalError{Attempt: index, Reason: directive.Reason, Err: err}
		}
	}

	metrics.RetryBudgetExhausted.WithLabelValues(chainLabel).Inc()
	o.logger.ErrorWithChain(o.chainID, "Giving up on %s after %d attempts: %v", intent.Method(), MaxRetries, lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, MaxRetries, lastErr)
}

// WaitReceipt waits for hash to be mined, bounded by the receipt timeout.
func (o *Orchestrator) WaitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	if o.receiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.receiptTimeout)
		defer cancel()
	}

	receipt, err := o.submitter.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrReceiptUnavailable, hash.Hex(), err)
	}
	return receipt, nil
}

func (o *Orchestrator) submit(ctx context.Context, intent Intent, attempt Attempt) (common.Hash, error) {
	if o.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.submitTimeout)
		defer cancel()
	}

	start := time.Now()
	hash, err := o.submitter.Submit(ctx, intent, attempt)
	metrics.SubmitLatency.WithLabelValues(strconv.Itoa(o.chainID)).Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return hash, err
}

func (o *Orchestrator) finish(ctx context.Context, outcome *Outcome, wait bool) (*Outcome, error) {
	if !wait {
		return outcome, nil
	}

	receipt, err := o.WaitReceipt(ctx, outcome.Hash)
	if err != nil {
		o.logger.ErrorWithChain(o.chainID, "Failed to get receipt for %s: %v", outcome.Hash.Hex(), err)
		return outcome, err
	}
	outcome.Receipt = receipt
	return outcome, nil
}

func (o *Orchestrator) checkFeeCap(index int, fee *big.Int) error {
	if o.feeCap == nil || fee.Cmp(o.feeCap) <= 0 {
		return nil
	}
	reason := fmt.Sprintf("fee %s above cap %s", fee.String(), o.feeCap.String())
	return &FatalError{Attempt: index, Reason: reason, Err: ErrFeeCapExceeded}
}

// ambiguous reports whether err came from a deadline or cancellation while the call was in flight.
func ambiguous(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}
