package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finvista/finvista-gateway-go/internal/config"
	"github.com/finvista/finvista-gateway-go/internal/domain"
	"github.com/finvista/finvista-gateway-go/internal/handler"
	"github.com/finvista/finvista-gateway-go/internal/infra/cache"
	"github.com/finvista/finvista-gateway-go/internal/infra/memstore"
	"github.com/finvista/finvista-gateway-go/internal/infra/observability"
	"github.com/finvista/finvista-gateway-go/internal/infra/resilience"
	"github.com/finvista/finvista-gateway-go/internal/infra/supabase"
	"github.com/finvista/finvista-gateway-go/internal/port"
	"github.com/finvista/finvista-gateway-go/internal/recon"
	"github.com/finvista/finvista-gateway-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Float64("recon_min_confidence", cfg.ReconMinConfidence),
		zap.Int("recon_date_window_days", cfg.ReconDateWindowDays),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finvista-gateway")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	batchCache := cache.New[domain.TransactionBatch](cfg.CacheTTL)
	defer batchCache.Stop()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Stores ---
	var txnStore port.TransactionStore
	var decisionStore port.DecisionStore
	var clientStore port.ClientStore

	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		supabaseClient := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		txnStore = supabaseClient
		decisionStore = supabaseClient
		clientStore = supabaseClient
	} else {
		logger.Warn("Supabase not configured, using in-memory stores")
		store := memstore.New()
		txnStore = store
		decisionStore = store
		clientStore = store
	}

	// --- Services ---
	scorerCfg := recon.DefaultScorerConfig()
	scorerCfg.AmountTolerance = decimal.NewFromFloat(cfg.ReconAmountTolerance)
	scorerCfg.DateWindowDays = cfg.ReconDateWindowDays
	scorerCfg.AmountWeight = cfg.ReconAmountWeight
	scorerCfg.DateWeight = cfg.ReconDateWeight
	scorerCfg.DescriptionWeight = cfg.ReconDescWeight

	reconSvc := service.NewRecon(txnStore, decisionStore, batchCache, metrics, logger, service.ReconConfig{
		MinConfidence: cfg.ReconMinConfidence,
		Scorer:        scorerCfg,
		AllowReopen:   cfg.ReconAllowReopen,
	})
	clientsSvc := service.NewClients(clientStore, logger)
	reportsSvc := service.NewReports(reconSvc)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Recon:          reconSvc,
		Clients:        clientsSvc,
		Reports:        reportsSvc,
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: strings.Split(cfg.AllowedOrigins, ","),
		JWTSecret:      cfg.SupabaseJWTSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
