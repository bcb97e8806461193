package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/api-gateway/proxy"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.FromConfig("api-gateway", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := proxy.NewRouter(log, proxy.Targets{
		Rounds: cfg.RoundServiceURL,
		Wallet: cfg.WalletServiceURL,
		Feed:   cfg.FeedServiceURL,
	})
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("api-gateway listening", zap.String("addr", srv.Addr),
		zap.String("rounds", cfg.RoundServiceURL),
		zap.String("wallet", cfg.WalletServiceURL),
		zap.String("feed", cfg.FeedServiceURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
