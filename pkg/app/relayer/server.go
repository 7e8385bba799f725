// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apphttp "github.com/octobounty/escrow-middleware/pkg/app/http"
	"github.com/octobounty/escrow-middleware/pkg/bounty/service"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	"github.com/octobounty/escrow-middleware/pkg/config"
	"github.com/octobounty/escrow-middleware/pkg/escrow"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
	"github.com/octobounty/escrow-middleware/pkg/pgutil"
	sweep "github.com/octobounty/escrow-middleware/pkg/relayer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.RelayerConfig
}

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.RelayerConfig) *Server {
	return &Server{cfg: cfg}
}

// Run starts the settlement sweeper and the operational HTTP server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bounty settlement relayer")

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect relayer db: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Database connection established")

	ledger, err := escrow.NewClient(&cfg.Escrow, logger)
	if err != nil {
		return fmt.Errorf("initialize escrow client: %w", err)
	}
	defer ledger.Close()

	logger.Info("Relayer signer loaded", zap.String("address", ledger.RelayerAddress().Hex()))

	verifier, err := ghverify.NewVerifier(&cfg.GitHub, logger)
	if err != nil {
		return fmt.Errorf("initialize github verifier: %w", err)
	}

	store := bountystore.NewStore(db)

	// The relayer only settles claims; it never provisions custodial keys,
	// so no cipher is wired.
	coordinator := service.NewService(store, ledger, verifier, nil, cfg.Sweep.MaxVerifyAttempts, logger)

	sweeper := sweep.NewSweeper(coordinator, store, cfg.Sweep, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := s.newRouter(db, store, logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) newRouter(db *bun.DB, store sweep.ClaimedLister, logger *zap.Logger) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Std()))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pending", handleGetPending(store, s.cfg.Sweep.BatchLimit, logger))
		r.Get("/status", handleGetStatus(logger))
	})

	return r
}

func handleGetPending(store sweep.ClaimedLister, limit int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claimed, err := store.ListClaimedBounties(req.Context(), limit)
		if err != nil {
			logger.Error("Failed to list claimed bounties", zap.Error(err))
			http.Error(w, "failed to list claimed bounties", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"pending": claimed}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetStatus(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"status": "running"}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}
