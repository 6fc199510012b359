package chainclient

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
)

// GasPriceRoutine periodically refreshes the gas price and publishes it as a gauge
type GasPriceRoutine struct {
	ctx      context.Context
	source   txretry.GasPriceSuggester
	chainID  int
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	running  bool
	last     *big.Int
	logger   logger.Logger
}

// NewGasPriceRoutine creates a new gas price routine
func NewGasPriceRoutine(ctx context.Context, source txretry.GasPriceSuggester, chainID int, interval time.Duration, log logger.Logger) *GasPriceRoutine {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &GasPriceRoutine{
		ctx:      ctx,
		source:   source,
		chainID:  chainID,
		interval: interval,
		logger:   log,
	}
}

// Start begins the periodic updates
func (r *GasPriceRoutine) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return // Already running
	}

	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true

	go r.run(r.stopChan, r.done)
}

// Stop halts the periodic updates and waits for the running update to finish
func (r *GasPriceRoutine) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}

	close(r.stopChan)
	done := r.done
	r.stopChan = nil
	r.running = false
	r.mu.Unlock()

	<-done
}

// IsRunning returns whether the routine is currently running
func (r *GasPriceRoutine) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// LastGasPrice returns the most recent gas price, nil before the first successful update
func (r *GasPriceRoutine) LastGasPrice() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	return new(big.Int).Set(r.last)
}

// run is the main goroutine that performs periodic updates
func (r *GasPriceRoutine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Perform initial update
	r.update()

	for {
		select {
		case <-ticker.C:
			r.update()
		case <-stop:
			return
		case <-r.ctx.Done():
			return
		}
	}
}

// update performs a single gas price refresh
func (r *GasPriceRoutine) update() {
	gasPrice, err := r.source.SuggestGasPrice(r.ctx)
	if err != nil {
		r.logger.ErrorWithChain(r.chainID, "Failed to update gas price: %v", err)
		return
	}

	r.mu.Lock()
	r.last = new(big.Int).Set(gasPrice)
	r.mu.Unlock()

	metrics.GasPrice.WithLabelValues(strconv.Itoa(r.chainID)).Set(weiToGwei(gasPrice))
	r.logger.DebugWithChain(r.chainID, "Gas price updated: %.2f gwei", weiToGwei(gasPrice))
}

// weiToGwei converts a wei amount to gwei
func weiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return gwei
}
