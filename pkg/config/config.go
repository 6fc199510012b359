package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
)

// Config holds the configuration for the minter service
type Config struct {
	PrivateKey             string
	Chain                  ChainConfig
	WorkerCount            int
	QueueSize              int
	MetricsPort            string
	MetricsAPIKey          string
	CircuitBreaker         CircuitBreakerConfig
	MaxGasPrice            *big.Int
	SubmitTimeout          time.Duration
	ReceiptTimeout         time.Duration
	NonceSyncInterval      time.Duration
	TxTimeout              time.Duration
	RecoveryInterval       time.Duration
	GasPriceUpdateInterval time.Duration
	RateLimit              RateLimitConfig
	Journal                JournalConfig
	LoggerConfig           LoggerConfig
}

// ChainConfig holds the configuration of the chain the NFT contract lives on
type ChainConfig struct {
	ChainID    int
	RPCURL     string
	NFTAddress string
	MintMethod string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// RateLimitConfig bounds how fast new transactions are submitted
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// JournalConfig holds the configuration of the submission journal
type JournalConfig struct {
	RedisURL string
	TTL      time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
	File     string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	return FromEnv()
}

// FromEnv builds the configuration from the current environment
func FromEnv() (*Config, error) {
	chainID, err := GetEnvChainID()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL(chainID)
	if err != nil {
		return nil, err
	}

	nftAddress, err := GetEnvNFTAddress()
	if err != nil {
		return nil, err
	}

	mintMethod, err := GetEnvMintMethod()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	queueSize, err := GetEnvQueueSize()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	maxGasPrice, err := GetEnvMaxGasPrice()
	if err != nil {
		return nil, err
	}

	submitTimeout, err := getEnvDuration("SUBMIT_TIMEOUT", DefaultSubmitTimeout)
	if err != nil {
		return nil, err
	}

	receiptTimeout, err := getEnvDuration("RECEIPT_TIMEOUT", DefaultReceiptTimeout)
	if err != nil {
		return nil, err
	}

	nonceSyncInterval, err := getEnvDuration("NONCE_SYNC_INTERVAL", DefaultNonceSyncInterval)
	if err != nil {
		return nil, err
	}

	txTimeout, err := getEnvDuration("TX_TIMEOUT", DefaultTxTimeout)
	if err != nil {
		return nil, err
	}

	recoveryInterval, err := getEnvDuration("RECOVERY_INTERVAL", DefaultRecoveryInterval)
	if err != nil {
		return nil, err
	}

	gasPriceInterval, err := getEnvDuration("GAS_PRICE_UPDATE_INTERVAL", DefaultGasPriceUpdateInterval)
	if err != nil {
		return nil, err
	}

	rateLimit, err := GetEnvRateLimit()
	if err != nil {
		return nil, err
	}

	journalTTL, err := getEnvDuration("JOURNAL_TTL", DefaultJournalTTL)
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PrivateKey: os.Getenv("PRIVATE_KEY"),
		Chain: ChainConfig{
			ChainID:    chainID,
			RPCURL:     rpcURL,
			NFTAddress: nftAddress,
			MintMethod: mintMethod,
		},
		WorkerCount:   workerCount,
		QueueSize:     queueSize,
		MetricsPort:   metricsPort,
		MetricsAPIKey: os.Getenv("METRICS_API_KEY"),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		MaxGasPrice:            maxGasPrice,
		SubmitTimeout:          submitTimeout,
		ReceiptTimeout:         receiptTimeout,
		NonceSyncInterval:      nonceSyncInterval,
		TxTimeout:              txTimeout,
		RecoveryInterval:       recoveryInterval,
		GasPriceUpdateInterval: gasPriceInterval,
		RateLimit:              rateLimit,
		Journal: JournalConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      journalTTL,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
			File:     os.Getenv("LOG_FILE"),
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if cfg.Chain.NFTAddress == "" {
		return fmt.Errorf("NFT_ADDRESS environment variable is required")
	}
	if !common.IsHexAddress(cfg.Chain.NFTAddress) {
		return fmt.Errorf("invalid NFT_ADDRESS value: %s, must be a valid Ethereum address", cfg.Chain.NFTAddress)
	}
	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required for chain %d", cfg.Chain.ChainID)
	}
	if cfg.ReceiptTimeout <= 0 {
		return fmt.Errorf("RECEIPT_TIMEOUT must be greater than 0")
	}
	return nil
}
