// Command trinacria-dev runs the user API example in development mode:
// debug logging, the devtools inspection endpoints, and Prometheus
// metrics, without requiring a config file.
//
// Usage:
//
//	go run cmd/trinacria-dev/main.go
//
// Endpoints:
//
//	http://localhost:8080/healthz            - health
//	http://localhost:8080/metrics            - Prometheus metrics
//	http://localhost:8080/_trinacria/graph   - module graph
//	http://localhost:8080/_trinacria/events  - lifecycle event feed (WebSocket)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tascaenzo/trinacria/examples/userapi"
	"github.com/tascaenzo/trinacria/internal/config"
	"github.com/tascaenzo/trinacria/plugins/devtools"
	"github.com/tascaenzo/trinacria/plugins/metrics"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Debug:           true,
		},
		Security: config.SecurityConfig{
			RateLimit:      1000,
			AllowedOrigins: []string{"*"},
			JWTSecret:      "trinacria-dev-secret",
			JWTExpiration:  24 * time.Hour,
		},
	}
	if addr := os.Getenv("TRI_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	a, err := userapi.New(cfg, logger, metrics.New(), devtools.New())
	if err != nil {
		logger.Fatal("Failed to assemble application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		logger.Fatal("Failed to start application", zap.Error(err))
	}
	logger.Info("Development environment ready", zap.String("addr", "http://127.0.0.1:8080"))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
