package minter

import (
	"context"
	"errors"
	"fmt"

	"github.com/speedrun-hq/speedrun-minter/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-minter/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-minter/pkg/config"
	"github.com/speedrun-hq/speedrun-minter/pkg/health"
	"github.com/speedrun-hq/speedrun-minter/pkg/journal"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/nonce"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// App is the minter process: the mint service, the gas price routine and the health server
type App struct {
	config   *config.Config
	client   *chainclient.Client
	service  *Service
	gasPrice *chainclient.GasPriceRoutine
	health   *health.Server
	journal  journal.Journal
	logger   *logger.StdLogger
}

// NewApp connects to the chain and wires every component from cfg
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	stdLogger := logger.NewStdLoggerWithFile(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level, logger.FileOptions{
		Path:       cfg.LoggerConfig.File,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Compress:   true,
	})

	client, err := chainclient.New(ctx, cfg.Chain, cfg.PrivateKey, stdLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain client for chain %d: %w", cfg.Chain.ChainID, err)
	}

	submitter, err := chainclient.NewSubmitter(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create submitter: %w", err)
	}

	orchestrator := txretry.NewOrchestrator(
		submitter,
		txretry.NewNetworkFeeEstimator(client),
		txretry.WithChainID(cfg.Chain.ChainID),
		txretry.WithFeeCap(cfg.MaxGasPrice),
		txretry.WithSubmitTimeout(cfg.SubmitTimeout),
		txretry.WithReceiptTimeout(cfg.ReceiptTimeout),
		txretry.WithLogger(stdLogger),
	)

	nonces := nonce.NewManager(client, stdLogger)
	nonces.SetSyncInterval(cfg.NonceSyncInterval)
	nonces.SetTransactionTimeout(cfg.TxTimeout)

	store, err := newJournal(ctx, cfg.Journal, stdLogger)
	if err != nil {
		client.Close()
		return nil, err
	}

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		stdLogger,
	)

	gasPrice := chainclient.NewGasPriceRoutine(ctx, client, cfg.Chain.ChainID, cfg.GasPriceUpdateInterval, stdLogger)

	service, err := NewService(Options{
		ChainID:          cfg.Chain.ChainID,
		ChainName:        config.GetChainName(cfg.Chain.ChainID),
		Contract:         client.NFTAddress,
		Method:           cfg.Chain.MintMethod,
		From:             client.From(),
		Sender:           orchestrator,
		Nonces:           nonces,
		Journal:          store,
		Breaker:          breaker,
		Limiter:          newLimiter(cfg.RateLimit),
		Owners:           client,
		Receipts:         client,
		Blocks:           client,
		Balances:         client,
		GasPrice:         gasPrice.LastGasPrice,
		Workers:          cfg.WorkerCount,
		QueueSize:        cfg.QueueSize,
		RecoveryInterval: cfg.RecoveryInterval,
		Logger:           stdLogger,
	})
	if err != nil {
		client.Close()
		_ = store.Close()
		return nil, err
	}

	healthServer := health.NewServer(health.Options{
		Port:          cfg.MetricsPort,
		MetricsAPIKey: cfg.MetricsAPIKey,
		ChainID:       cfg.Chain.ChainID,
		Reporter:      service,
		Breaker:       breaker,
		API:           NewHandler(service, stdLogger),
		Logger:        stdLogger,
	})

	return &App{
		config:   cfg,
		client:   client,
		service:  service,
		gasPrice: gasPrice,
		health:   healthServer,
		journal:  store,
		logger:   stdLogger,
	}, nil
}

// Start runs every component until ctx is done or one of them fails
func (a *App) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	a.logger.NoticeWithChain(a.config.Chain.ChainID, "Minting on %s (%s) from %s",
		a.client.NFTAddress.Hex(), a.config.Chain.MintMethod, a.client.From().Hex())

	group.Go(func() error {
		return a.service.Run(ctx)
	})

	group.Go(func() error {
		a.gasPrice.Start()
		<-ctx.Done()
		a.gasPrice.Stop()
		return nil
	})

	group.Go(func() error {
		return a.health.Start(ctx)
	})

	return group.Wait()
}

// Close releases the connections held by the app
func (a *App) Close() error {
	a.client.Close()
	err := a.journal.Close()
	if closeErr := a.logger.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func newJournal(ctx context.Context, cfg config.JournalConfig, log logger.Logger) (journal.Journal, error) {
	if cfg.RedisURL == "" {
		log.Info("Using in-memory journal, results are kept for %v", cfg.TTL)
		return journal.NewMemoryJournal(cfg.TTL), nil
	}

	store, err := journal.NewRedisJournal(ctx, cfg.RedisURL, cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open redis journal: %w", err)
	}
	log.Info("Using redis journal, results are kept for %v", cfg.TTL)
	return store, nil
}

// newLimiter returns a limiter for the submission rate, unlimited when the rate is not positive
func newLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.PerSecond), burst)
}
