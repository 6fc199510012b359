package minter

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
	"github.com/speedrun-hq/speedrun-minter/pkg/nonce"
)

// transactionRecovery periodically resolves transactions that stayed without a receipt
func (s *Service) transactionRecovery(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("Transaction recovery job started, interval %v", s.opts.RecoveryInterval)

	ticker := time.NewTicker(s.opts.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Transaction recovery job shutting down")
			return
		case <-ticker.C:
			s.recoverTransactions(ctx)
		}
	}
}

// recoverTransactions looks up the receipt of every timed out transaction. Mined ones are
// settled, the nonces of dropped ones are handed out again.
func (s *Service) recoverTransactions(ctx context.Context) {
	from := s.opts.From

	if err := s.opts.Nonces.Sync(ctx, from); err != nil {
		s.logger.ErrorWithChain(s.opts.ChainID, "Failed to sync nonce state during recovery: %v", err)
		return
	}

	timedOut := s.opts.Nonces.FindTimedOut(from)
	if len(timedOut) == 0 {
		s.logger.DebugWithChain(s.opts.ChainID, "No timed out transactions found")
		return
	}
	s.logger.NoticeWithChain(s.opts.ChainID, "Found %d timed out transactions", len(timedOut))

	records := make(map[uint64]nonce.TransactionRecord, len(timedOut))
	for _, record := range s.opts.Nonces.Pending(from) {
		records[record.Nonce] = record
	}

	for _, n := range timedOut {
		record, ok := records[n]
		if !ok {
			continue
		}
		hash := record.Hash.Hex()

		receipt, err := s.opts.Receipts.TransactionReceipt(ctx, record.Hash)
		switch {
		case err == nil && receipt.Status == types.ReceiptStatusSuccessful:
			s.opts.Nonces.MarkConfirmed(from, n)
			s.recovered("confirmed")
			s.logger.InfoWithChain(s.opts.ChainID, "Timed out transaction %s with nonce %d was mined", hash, n)
		case err == nil:
			s.opts.Nonces.MarkFailed(from, n)
			s.recovered("reverted")
			s.logger.NoticeWithChain(s.opts.ChainID, "Timed out transaction %s with nonce %d reverted", hash, n)
		case errors.Is(err, ethereum.NotFound):
			s.opts.Nonces.Reclaim(from, n)
			s.recovered("reclaimed")
			s.logger.NoticeWithChain(s.opts.ChainID, "Transaction %s with nonce %d not found, reclaiming nonce", hash, n)
		default:
			// checked again on the next run
			s.logger.ErrorWithChain(s.opts.ChainID, "Failed to get receipt of %s: %v", hash, err)
		}
	}

	metrics.PendingNonces.WithLabelValues(s.chainLabel()).Set(float64(s.opts.Nonces.PendingCount(from)))
}

func (s *Service) recovered(resolution string) {
	metrics.RecoveredTransactions.WithLabelValues(s.chainLabel(), resolution).Inc()
}
