package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dmarchetti/vera/internal/chat"
	"github.com/dmarchetti/vera/internal/config"
	"github.com/dmarchetti/vera/internal/httpapi"
	"github.com/dmarchetti/vera/internal/observability"
	"github.com/dmarchetti/vera/internal/profile"
	"github.com/dmarchetti/vera/internal/prompt"
	"github.com/dmarchetti/vera/internal/transcript"
	"github.com/dmarchetti/vera/internal/upstream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("transcript store init failed", "error", err)
	}
	defer transcripts.Close()

	profiles, err := profile.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("profile store init failed", "error", err)
	}
	defer profiles.Close()

	var gen upstream.Generator
	switch cfg.UpstreamProvider {
	case "mock":
		gen = upstream.NewMockGenerator()
		logger.Infow("upstream provider: mock")
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warnw("GEMINI_API_KEY is not set; chat exchanges will fail until it is configured")
		} else {
			gen = upstream.NewGeminiClient(upstream.GeminiConfig{
				APIKey:  cfg.GeminiAPIKey,
				BaseURL: cfg.GeminiBaseURL,
				Model:   cfg.GeminiModel,
				Timeout: cfg.UpstreamTimeout,
			})
			logger.Infow("upstream provider: gemini", "model", cfg.GeminiModel)
		}
	}

	var invoker *upstream.Invoker
	if gen != nil {
		invoker = upstream.NewInvoker(gen, cfg.UpstreamMaxRetries, cfg.RetryInitialDelay, cfg.RetryBackoffCap)
		invoker.SetRetryHook(func(attempt int, delay time.Duration) {
			metrics.UpstreamRetries.Inc()
			logger.Infow("upstream rate limited, backing off", "attempt", attempt, "delay", delay)
		})
	}

	instructions := prompt.DefaultInstructions
	if cfg.InstructionsFile != "" {
		raw, err := os.ReadFile(cfg.InstructionsFile)
		if err != nil {
			logger.Fatalw("instructions file unreadable", "path", cfg.InstructionsFile, "error", err)
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			instructions = text
		}
	}

	orchestrator := chat.New(transcripts, profiles, invoker, instructions, logger, metrics)
	api := httpapi.New(cfg, orchestrator, profiles, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Infow("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Infow("shutdown complete")
}
