package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/app"
	"github.com/kailas-cloud/recipematch/internal/config"
	logpkg "github.com/kailas-cloud/recipematch/internal/logger"
	chiTransport "github.com/kailas-cloud/recipematch/internal/transport/chi"
	"github.com/kailas-cloud/recipematch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recipematch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("reasoning_adapter", cfg.Reasoning.Adapter),
	)

	a, err := app.New(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}
	defer a.Close()

	if ready, err := a.Recipes.IndexReady(context.Background()); err != nil || !ready {
		logger.Warn("Recipe index is not ready; run recipectl ingest", zap.Error(err))
	}

	server := chiTransport.NewServer(a.Match, a.Lexical, a.Health, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterOptions{
		Tokens: cfg.TokenUsers(),
		Logger: logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.Int("auth_tokens", len(cfg.Auth.Tokens)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
