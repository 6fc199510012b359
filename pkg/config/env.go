package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
)

const (
	// DefaultChainID is the chain the NFT contract is deployed on
	DefaultChainID = SepoliaChainID

	// DefaultMintMethod is the contract method called for a mint
	DefaultMintMethod = "mint"

	// DefaultWorkerCount defines the default number of workers submitting mints
	DefaultWorkerCount = 4

	// DefaultQueueSize defines how many mint requests can wait for a worker
	DefaultQueueSize = 100

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 30

	// DefaultMaxGasPrice defines the maximum gas price for transactions, 0 disables the cap
	DefaultMaxGasPrice = "200000000000" // 200 Gwei

	// DefaultSubmitTimeout bounds a single submission
	DefaultSubmitTimeout = 30 * time.Second

	// DefaultReceiptTimeout bounds the wait for a receipt
	DefaultReceiptTimeout = 3 * time.Minute

	// DefaultNonceSyncInterval defines how long a local nonce is trusted before it is compared with the node
	DefaultNonceSyncInterval = 5 * time.Minute

	// DefaultTxTimeout defines when a broadcast transaction without a receipt is considered stuck
	DefaultTxTimeout = 10 * time.Minute

	// DefaultRecoveryInterval defines how often timed out transactions are looked up
	DefaultRecoveryInterval = time.Minute

	// DefaultGasPriceUpdateInterval defines how often the gas price gauge is refreshed
	DefaultGasPriceUpdateInterval = 30 * time.Second

	// DefaultSubmitRateLimit defines the number of new submissions allowed per second
	DefaultSubmitRateLimit = 5.0

	// DefaultSubmitRateBurst defines the burst of the submission rate limiter
	DefaultSubmitRateBurst = 5

	// DefaultJournalTTL defines how long a mint result is remembered for idempotency
	DefaultJournalTTL = 24 * time.Hour

	// DefaultLogLevel defines the default log level
	DefaultLogLevel = "info"
)

// GetEnvChainID returns the chain ID from environment variables
func GetEnvChainID() (int, error) {
	chainID := os.Getenv("CHAIN_ID")
	if chainID == "" {
		return DefaultChainID, nil
	}

	id, err := strconv.Atoi(chainID)
	if err != nil {
		return 0, fmt.Errorf("invalid CHAIN_ID value: %s, must be an integer", chainID)
	}
	if id <= 0 {
		return 0, fmt.Errorf("CHAIN_ID must be greater than 0")
	}
	return id, nil
}

// GetEnvRPCURL returns the RPC URL from environment variables, falling back to the chain's public endpoint
func GetEnvRPCURL(chainID int) (string, error) {
	rpcURL := os.Getenv("CHAIN_RPC_URL")
	if rpcURL == "" {
		return GetDefaultRPCURL(chainID), nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid CHAIN_RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvNFTAddress returns the NFT contract address from environment variables
func GetEnvNFTAddress() (string, error) {
	return os.Getenv("NFT_ADDRESS"), nil
}

// GetEnvMintMethod returns the contract method used for minting
func GetEnvMintMethod() (string, error) {
	method := os.Getenv("MINT_METHOD")
	if method == "" {
		return DefaultMintMethod, nil
	}

	if method != "mint" && method != "mintUniqueToken" {
		return "", fmt.Errorf("invalid MINT_METHOD value: %s, must be 'mint' or 'mintUniqueToken'", method)
	}
	return method, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	return getEnvPositiveInt("WORKER_COUNT", DefaultWorkerCount)
}

// GetEnvQueueSize returns the size of the mint queue from environment variables
func GetEnvQueueSize() (int, error) {
	return getEnvPositiveInt("QUEUE_SIZE", DefaultQueueSize)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	return getEnvBool("CIRCUIT_BREAKER_ENABLED", DefaultCircuitBreakerEnabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	return getEnvPositiveInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold)
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow*time.Second)
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset*time.Second)
}

// GetEnvMaxGasPrice returns the maximum gas price from environment variables
func GetEnvMaxGasPrice() (*big.Int, error) {
	maxGasPrice := os.Getenv("MAX_GAS_PRICE")
	if maxGasPrice == "" {
		maxGasPrice = DefaultMaxGasPrice
	}

	maxGasPriceBig := new(big.Int)
	if _, ok := maxGasPriceBig.SetString(maxGasPrice, 10); !ok {
		return nil, fmt.Errorf("invalid MAX_GAS_PRICE value: %s, must be a valid integer string", maxGasPrice)
	}

	if maxGasPriceBig.Cmp(big.NewInt(0)) < 0 {
		return nil, fmt.Errorf("MAX_GAS_PRICE must be greater than or equal to 0")
	}
	return maxGasPriceBig, nil
}

// GetEnvRateLimit returns the submission rate limit from environment variables
func GetEnvRateLimit() (RateLimitConfig, error) {
	cfg := RateLimitConfig{PerSecond: DefaultSubmitRateLimit, Burst: DefaultSubmitRateBurst}

	if limit := os.Getenv("SUBMIT_RATE_LIMIT"); limit != "" {
		parsed, err := strconv.ParseFloat(limit, 64)
		if err != nil {
			return RateLimitConfig{}, fmt.Errorf("invalid SUBMIT_RATE_LIMIT value: %s, must be a number", limit)
		}
		if parsed < 0 {
			return RateLimitConfig{}, fmt.Errorf("SUBMIT_RATE_LIMIT must be greater than or equal to 0")
		}
		cfg.PerSecond = parsed
	}

	burst, err := getEnvPositiveInt("SUBMIT_RATE_BURST", DefaultSubmitRateBurst)
	if err != nil {
		return RateLimitConfig{}, err
	}
	cfg.Burst = burst

	return cfg, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = DefaultLogLevel
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", true)
}

func getEnvPositiveInt(key string, def int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return parsed, nil
}
