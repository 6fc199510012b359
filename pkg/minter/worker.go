package minter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
)

// worker processes mint requests from the job queue
func (s *Service) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	s.logger.Debug("Starting worker %d", id)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker %d shutting down", id)
			return
		case j := <-s.jobs:
			metrics.QueuedMints.Dec()

			// the caller gave up before anything was sent
			if err := j.ctx.Err(); err != nil {
				s.logger.Info("Worker %d skipping request %s: %v", id, j.req.ID, err)
				j.done <- jobResult{err: err}
				continue
			}

			s.logger.InfoWithChain(s.opts.ChainID, "Worker %d processing request %s (token %d, owner %s)",
				id, j.req.ID, j.req.TokenID, j.req.OwnerAddress)

			start := time.Now()
			result, err := s.process(ctx, j.req)
			metrics.MintProcessingTime.WithLabelValues(s.chainLabel()).Observe(time.Since(start).Seconds())

			if err != nil {
				s.logger.ErrorWithChain(s.opts.ChainID, "Worker %d failed request %s: %v", id, j.req.ID, err)
			}
			j.done <- jobResult{result: result, err: err}
		}
	}
}

// process submits one mint and records its result. Requests rejected before anything
// is sent return a nil result.
func (s *Service) process(ctx context.Context, req models.MintRequest) (*models.MintResult, error) {
	if s.opts.Breaker != nil && s.opts.Breaker.IsOpen() {
		metrics.MintsProcessed.WithLabelValues(s.chainLabel(), "rejected").Inc()
		return nil, ErrCircuitOpen
	}

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	tokenID := new(big.Int).SetUint64(req.TokenID)
	if err := s.checkNotMinted(ctx, tokenID); err != nil {
		metrics.MintsProcessed.WithLabelValues(s.chainLabel(), "rejected").Inc()
		return nil, err
	}

	payload, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode metadata: %w", ErrInvalidRequest, err)
	}

	intent, err := txretry.NewIntent(s.opts.Contract, s.opts.Method, common.HexToAddress(req.OwnerAddress), tokenID, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	result := &models.MintResult{
		ID: req.ID,
		NFTDetails: models.NFTDetails{
			TokenID:  req.TokenID,
			Owner:    req.OwnerAddress,
			Metadata: req.Metadata,
		},
		CreatedAt: time.Now().UTC(),
	}

	reserved, err := s.opts.Nonces.Next(ctx, s.opts.From)
	if err != nil {
		return s.fail(ctx, result, fmt.Errorf("failed to reserve nonce: %w", err))
	}

	outcome, err := s.opts.Sender.Send(ctx, intent, txretry.SendOptions{
		Nonce:       &reserved,
		WaitReceipt: req.ShouldWait(),
	})
	s.settleNonce(reserved, outcome, err)

	if outcome == nil {
		return s.fail(ctx, result, err)
	}

	final := outcome.Final()
	used, _ := final.Nonce()
	result.TxResult = &models.TxResult{
		Hash:     outcome.Hash.Hex(),
		Nonce:    &used,
		GasPrice: final.Fee().String(),
		Attempts: len(outcome.Attempts),
		Receipt:  outcome.Receipt,
	}

	switch {
	case outcome.Receipt == nil:
		result.Status = models.StatusSubmitted
		if err != nil {
			result.Error = err.Error()
			result.ErrorType = txretry.ErrorType(err)
		}
	case outcome.Receipt.Succeeded():
		result.Status = models.StatusConfirmed
	default:
		result.Status = models.StatusReverted
		result.Error = fmt.Sprintf("transaction %s reverted", outcome.Hash.Hex())
		result.ErrorType = "reverted"
	}

	if receipt := outcome.Receipt; receipt != nil && receipt.GasUsed != nil {
		metrics.GasUsed.WithLabelValues(s.chainLabel()).Observe(float64(*receipt.GasUsed))
	}
	metrics.MintsProcessed.WithLabelValues(s.chainLabel(), result.Status).Inc()

	if s.opts.Breaker != nil {
		s.opts.Breaker.RecordSuccess()
	}

	s.logger.InfoWithChain(s.opts.ChainID, "Request %s %s in transaction %s after %d attempt(s)",
		req.ID, result.Status, outcome.Hash.Hex(), len(outcome.Attempts))

	s.record(ctx, result)
	if result.Status == models.StatusReverted {
		return result, errors.New(result.Error)
	}
	// a missing receipt does not fail the request, the transaction was sent
	return result, nil
}

// fail marks result as failed with err and counts it against the circuit breaker
func (s *Service) fail(ctx context.Context, result *models.MintResult, err error) (*models.MintResult, error) {
	result.Status = models.StatusFailed
	result.Error = err.Error()
	result.ErrorType = txretry.ErrorType(err)

	metrics.MintsProcessed.WithLabelValues(s.chainLabel(), models.StatusFailed).Inc()

	if s.opts.Breaker != nil {
		if tripped := s.opts.Breaker.RecordFailure(); tripped {
			s.logger.ErrorWithChain(s.opts.ChainID, "Circuit breaker tripped after request %s", result.ID)
		}
	}

	s.record(ctx, result)
	return result, err
}

// record journals final results so repeated requests are answered without a new submission
func (s *Service) record(ctx context.Context, result *models.MintResult) {
	if !result.Final() {
		return
	}

	// the journal is written even when the submission was cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.opts.Journal.Put(ctx, result); err != nil {
		s.logger.ErrorWithChain(s.opts.ChainID, "Failed to journal result of request %s: %v", result.ID, err)
	}
}

// settleNonce updates the nonce manager with what the submission did with the reserved nonce
func (s *Service) settleNonce(reserved uint64, outcome *txretry.Outcome, err error) {
	from := s.opts.From

	switch {
	case outcome != nil:
		used, ok := outcome.Final().Nonce()
		if !ok {
			used = reserved
		}
		s.opts.Nonces.Observe(from, used)
		if used < reserved {
			// the node pointed back to a gap, the reservation was never sent
			s.opts.Nonces.Release(from, reserved)
		}
		s.opts.Nonces.Track(from, used, outcome.Hash)

		if outcome.Receipt != nil {
			if outcome.Receipt.Succeeded() {
				s.opts.Nonces.MarkConfirmed(from, used)
			} else {
				s.opts.Nonces.MarkFailed(from, used)
			}
		}
	case errors.Is(err, txretry.ErrAmbiguousOutcome):
		// the nonce may be in use, only the node can tell
		s.opts.Nonces.MarkAmbiguous(from, reserved)
	default:
		s.opts.Nonces.Release(from, reserved)
		s.opts.Nonces.Invalidate(from)
	}

	metrics.PendingNonces.WithLabelValues(s.chainLabel()).Set(float64(s.opts.Nonces.PendingCount(from)))
}

// checkNotMinted rejects a token that already has an owner. Lookup errors are not fatal:
// most contracts revert ownerOf for tokens that do not exist.
func (s *Service) checkNotMinted(ctx context.Context, tokenID *big.Int) error {
	if s.opts.Owners == nil {
		return nil
	}

	owner, err := s.opts.Owners.OwnerOf(ctx, tokenID)
	if err != nil {
		s.logger.DebugWithChain(s.opts.ChainID, "ownerOf(%s) failed, assuming token is not minted: %v", tokenID.String(), err)
		return nil
	}
	if owner != (common.Address{}) {
		return fmt.Errorf("%w: token %s is owned by %s", ErrTokenExists, tokenID.String(), owner.Hex())
	}
	return nil
}

func (s *Service) chainLabel() string {
	return strconv.Itoa(s.opts.ChainID)
}
