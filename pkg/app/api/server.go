// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apphttp "github.com/octobounty/escrow-middleware/pkg/app/http"
	"github.com/octobounty/escrow-middleware/pkg/auth"
	"github.com/octobounty/escrow-middleware/pkg/bounty/service"
	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	"github.com/octobounty/escrow-middleware/pkg/config"
	"github.com/octobounty/escrow-middleware/pkg/escrow"
	"github.com/octobounty/escrow-middleware/pkg/ghverify"
	"github.com/octobounty/escrow-middleware/pkg/keys"
	"github.com/octobounty/escrow-middleware/pkg/pgutil"
	"github.com/octobounty/escrow-middleware/pkg/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// The API server never settles bounties itself; the relayer owns the sweep
// loop and its retry budget. This cap only bounds direct Complete calls.
const defaultMaxVerifyAttempts = 5

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.APIServerConfig
}

// NewServer initializes new api server.
func NewServer(cfg *config.APIServerConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = db.Close() }()

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	cipher, err := s.openCipher()
	if err != nil {
		return err
	}

	ledger, err := escrow.NewClient(&cfg.Escrow, logger)
	if err != nil {
		return fmt.Errorf("create escrow client: %w", err)
	}
	defer ledger.Close()

	logger.Info("Connected to escrow contract",
		zap.String("rpc_url", cfg.Escrow.RPCURL),
		zap.String("contract", cfg.Escrow.Contract),
	)

	verifier, err := ghverify.NewVerifier(&cfg.GitHub, logger)
	if err != nil {
		return fmt.Errorf("create github verifier: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Std())
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	store := bountystore.NewStore(db)
	svc := service.NewLog(
		service.NewService(store, ledger, verifier, cipher, defaultMaxVerifyAttempts, logger),
		logger,
	)

	router := s.setupRouter(svc, store, issuer, logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) openCipher() (*keys.Cipher, error) {
	masterKeyStr := os.Getenv(s.cfg.KeyManagement.MasterKeyEnv)
	if masterKeyStr == "" {
		return nil, fmt.Errorf(
			"escrow master key not set: env=%s (hint: openssl rand -base64 32)",
			s.cfg.KeyManagement.MasterKeyEnv,
		)
	}

	masterKey, err := keys.MasterKeyFromBase64(masterKeyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow master key: %w", err)
	}
	return keys.NewCipher(masterKey)
}

func (s *Server) setupRouter(
	svc service.Service,
	store webhook.DeliveryStore,
	issuer *auth.Issuer,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout.Std()))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Bounty REST endpoints
	service.RegisterRoutes(r, svc, issuer, logger)

	// GitHub webhook receiver (if configured)
	if s.cfg.GitHub.WebhookSecret != "" {
		wh := webhook.NewHandler(svc, store, s.cfg.GitHub.WebhookSecret, logger)
		wh.RegisterRoutes(r)
	} else {
		logger.Warn("GitHub webhook secret not set, webhook receiver disabled")
	}

	return r
}
