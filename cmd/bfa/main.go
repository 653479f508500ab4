package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/authz"
	"github.com/boddenberg/hr-admin-bfa-go/internal/config"
	"github.com/boddenberg/hr-admin-bfa-go/internal/handler"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/tokenstore"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// sessionStorage is a token store that must be closed on shutdown.
type sessionStorage interface {
	port.SessionStorage
	Close() error
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("supabase_url", cfg.Supabase.URL),
		zap.Bool("jwt_verification", cfg.Supabase.JWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTP.Timeout),
		zap.Int("max_retries", cfg.Resilience.MaxRetries),
		zap.Int("bootstrap_max_attempts", cfg.Auth.BootstrapMaxAttempts),
		zap.Duration("bootstrap_retry_delay", cfg.Auth.BootstrapRetryDelay),
		zap.Duration("settle_timeout", cfg.Auth.SettleTimeout),
		zap.Duration("session_idle_ttl", cfg.Session.IdleTTL),
		zap.Bool("persistent_sessions", cfg.Session.StorePath != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTel.Endpoint, "hr-admin-bfa", cfg.OTel.Insecure)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.Resilience.MaxRetries,
		InitialBackoff: cfg.Resilience.InitialBackoff,
		MaxConcurrency: cfg.Resilience.MaxConcurrency,
	}

	// --- Supabase ---
	httpClient := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	supabaseClient := supabase.NewClient(httpClient, cfg.Supabase.URL, cfg.Supabase.AnonKey, resilienceCfg, logger)

	// --- Session token storage ---
	gcCtx, stopGC := context.WithCancel(context.Background())
	defer stopGC()

	var storage sessionStorage
	if cfg.Session.StorePath != "" {
		store, err := tokenstore.OpenBadger(cfg.Session.StorePath, cfg.Session.EncryptionSecret, cfg.Session.IdleTTL, logger)
		if err != nil {
			logger.Fatal("failed to open session store", zap.Error(err))
		}
		go store.RunGC(gcCtx, 10*time.Minute)
		storage = store
		logger.Info("session tokens persisted", zap.String("path", cfg.Session.StorePath))
	} else {
		storage = tokenstore.NewMemory(cfg.Session.IdleTTL)
		logger.Warn("session tokens kept in memory, sessions end on restart")
	}

	sessionOpts := supabase.SessionOptions{
		JWTSecret:           cfg.Supabase.JWTSecret,
		RefreshMargin:       cfg.Auth.RefreshMargin,
		AutoRefreshInterval: cfg.Auth.AutoRefreshInterval,
	}

	// --- Services ---
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		logger.Fatal("failed to load authorization policy", zap.Error(err))
	}

	registry := service.NewProviderRegistry(
		cfg.Session.IdleTTL,
		func(sid string) service.SessionBackend {
			return supabase.NewSessionClient(supabaseClient, storage, sid, sessionOpts, logger)
		},
		service.ProviderConfig{
			Bootstrap: service.BootstrapConfig{
				MaxAttempts: cfg.Auth.BootstrapMaxAttempts,
				RetryDelay:  cfg.Auth.BootstrapRetryDelay,
			},
			UserDataRate:  cfg.Auth.UserDataRate,
			UserDataBurst: cfg.Auth.UserDataBurst,
		},
		metrics,
		logger,
	)

	recordsSvc := service.NewRecordsService(enforcer, logger)
	dashboardSvc := service.NewDashboardService(enforcer, logger)

	// --- Router ---
	router := handler.NewRouter(
		registry,
		recordsSvc,
		dashboardSvc,
		supabaseClient,
		handler.Config{
			Cookie: handler.CookieConfig{
				Name:   cfg.Session.CookieName,
				Secure: cfg.Session.CookieSecure,
			},
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			LoginPerMinute:   cfg.RateLimit.LoginPerMinute,
			SlowLoadingAfter: cfg.Auth.SlowLoadingAfter,
			SettleTimeout:    cfg.Auth.SettleTimeout,
		},
		metrics,
		logger,
	)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
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
		logger.Error("server forced shutdown", zap.Error(err))
	}

	registry.Close()
	stopGC()
	if err := storage.Close(); err != nil {
		logger.Error("session store close failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
