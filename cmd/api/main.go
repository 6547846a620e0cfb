package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/clearhealth/clearhealth-ai/internal/api/router"
	appconfig "github.com/clearhealth/clearhealth-ai/internal/config"
	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/internal/http/handlers"
	"github.com/clearhealth/clearhealth-ai/internal/observability/metrics"
	"github.com/clearhealth/clearhealth-ai/internal/session"
	"github.com/clearhealth/clearhealth-ai/internal/webchat"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

func main() {
	// Load .env in local development; ignored when absent.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clearhealth-ai API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; every analysis call will fail with a credential error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote analysis gateway
	gw, err := gateway.New(ctx, gateway.Config{
		APIKey:        cfg.GeminiAPIKey,
		BaseURL:       cfg.GeminiBaseURL,
		AnalysisModel: cfg.AnalysisModel,
		ChatModel:     cfg.ChatModel,
		SpeechModel:   cfg.SpeechModel,
		SpeechVoice:   cfg.SpeechVoice,
		Logger:        logger,
		Tracer:        otel.Tracer("clearhealth-ai/gateway"),
	})
	if err != nil {
		logger.Error("failed to initialize gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	// Metrics and session pool
	analysisMetrics := metrics.NewAnalysisMetrics(nil)
	manager := session.NewManager(session.ManagerConfig{
		MaxSessions: cfg.MaxSessions,
		MaxIdle:     cfg.SessionMaxIdle,
		Settle:      cfg.UploadSettleDelay,
		Timeout:     cfg.GatewayTimeout,
	}, gw, logger, analysisMetrics)
	go manager.Run(ctx, time.Minute)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Sessions:           handlers.NewSessionHandler(manager, logger, analysisMetrics),
		Stats:              handlers.NewStatsHandler(manager, nil, logger),
		WebChat:            webchat.NewHandler(manager, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSec:    cfg.RateLimitPerSec,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
