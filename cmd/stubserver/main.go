package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tribune/internal/config"
	"tribune/internal/logger"
	"tribune/internal/metrics"
	"tribune/internal/stub"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	gin.SetMode(gin.ReleaseMode)

	server := stub.NewServer(stub.Options{})

	port := os.Getenv("STUB_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.Router(),
	}

	go func() {
		log.Info("Starting stub backend", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start stub backend", "error", err)
		}
	}()

	if cfg.MetricsEnabled {
		go func() {
			log.Info("Starting metrics endpoint", "port", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, metrics.Handler()); err != nil {
				log.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down stub backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Stub backend forced to shutdown", "error", err)
	}

	log.Info("Stub backend stopped")
}
