package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/speedrun-hq/speedrun-minter/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
)

// Reporter exposes the state of the minter
type Reporter interface {
	Ready(ctx context.Context) error
	Status(ctx context.Context) models.ServiceStatus
}

// Options configures the server
type Options struct {
	Port          string
	MetricsAPIKey string
	ChainID       int
	Reporter      Reporter
	Breaker       *circuitbreaker.CircuitBreaker
	// API is mounted under /api/
	API    http.Handler
	Logger logger.Logger
}

// Server represents a health check HTTP server
type Server struct {
	opts   Options
	logger logger.Logger
}

type statusResponse struct {
	models.ServiceStatus
	Circuit *circuitbreaker.State `json:"circuit,omitempty"`
}

// NewServer creates a new health check server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = &logger.EmptyLogger{}
	}
	return &Server{opts: opts, logger: opts.Logger}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.opts.MetricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.opts.MetricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Reporter == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Minter not started"))
			return
		}
		if err := s.opts.Reporter.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		var status statusResponse
		if s.opts.Reporter != nil {
			status.ServiceStatus = s.opts.Reporter.Status(r.Context())
		}
		if s.opts.Breaker != nil {
			state := s.opts.Breaker.State()
			status.Circuit = &state
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.Error("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// the chain parameter is optional since one chain is served
		if chainIDStr := r.URL.Query().Get("chain"); chainIDStr != "" {
			chainID, err := strconv.Atoi(chainIDStr)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("Invalid chain ID"))
				return
			}
			if chainID != s.opts.ChainID {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker for chain %d", chainID)))
				return
			}
		}

		if s.opts.Breaker == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Circuit breaker not configured"))
			return
		}

		s.opts.Breaker.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for chain %d reset", s.opts.ChainID)))
	})

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	if s.opts.API != nil {
		mux.Handle("/api/", s.opts.API)
	}

	return mux
}

// Start serves until ctx is done, then shuts the server down
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting health and metrics server on port %s", s.opts.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down health server: %w", err)
	}
	s.logger.Info("Health server stopped")
	return nil
}
