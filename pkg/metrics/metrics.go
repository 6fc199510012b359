package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	MintsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_mints_processed_total",
		Help: "The total number of processed mint requests",
	}, []string{"chain_id", "status"})

	MintProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minter_mint_processing_seconds",
		Help:    "Time taken to process mint requests",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // Start at 250ms with 10 buckets doubling in size
	}, []string{"chain_id"})

	SubmitAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_submit_attempts_total",
		Help: "The total number of transaction submission attempts by outcome",
	}, []string{"chain_id", "outcome"})

	SubmitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minter_submit_latency_seconds",
		Help:    "Latency of a single transaction submission",
		Buckets: prometheus.DefBuckets,
	}, []string{"chain_id"})

	NonceRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_nonce_retries_total",
		Help: "Number of retries caused by a nonce conflict",
	}, []string{"chain_id"})

	FeeEscalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_fee_escalations_total",
		Help: "Number of retries caused by an underpriced replacement",
	}, []string{"chain_id"})

	RetryBudgetExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_retry_budget_exhausted_total",
		Help: "Number of submissions that ran out of attempts",
	}, []string{"chain_id"})

	FatalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_fatal_errors_total",
		Help: "Total number of errors that ended a submission, by type",
	}, []string{"chain_id", "error_type"})

	GasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minter_gas_used",
		Help:    "Gas used by confirmed mint transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // Start at 21000 with 10 buckets doubling in size
	}, []string{"chain_id"})

	GasPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minter_gas_price_gwei",
		Help: "Current gas price in gwei",
	}, []string{"chain_id"})

	QueuedMints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minter_queued_mints",
		Help: "The number of mint requests waiting for a worker",
	})

	PendingNonces = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minter_pending_nonces",
		Help: "Number of broadcast transactions awaiting confirmation",
	}, []string{"chain_id"})

	DuplicateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_duplicate_requests_total",
		Help: "Mint requests answered from the journal instead of being submitted again",
	}, []string{"chain_id"})

	CircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minter_circuit_breaker_trips_total",
		Help: "Number of times the circuit breaker opened",
	})

	RecoveredTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_recovered_transactions_total",
		Help: "Timed out transactions found by the recovery loop, by resolution",
	}, []string{"chain_id", "resolution"})

	SignerBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minter_signer_balance_ether",
		Help: "Native balance of the signing account",
	}, []string{"chain_id"})
)
