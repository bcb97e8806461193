package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/cache"
	httpapi "github.com/radieske/fair-round-engine/internal/round-feed/http"
	"github.com/radieske/fair-round-engine/internal/round-feed/repo"
	"github.com/radieske/fair-round-engine/internal/round-feed/ws"
	sharedcache "github.com/radieske/fair-round-engine/internal/shared/cache"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/db"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// inicia logger
	log, err := logger.FromConfig(cfg.ServiceName, cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres só é lido quando o cache está vazio
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	api := &httpapi.API{
		Log:      log,
		Cache:    cache.NewRedisCache(redisClient, 10*time.Minute, 100),
		ReadRepo: &repo.ReadRepo{DB: pg},
	}
	api.Hub = ws.NewHub(log, allowOrigins(splitOrigins(cfg.WSAllowedOrigins)), api.Snapshot)
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, api.Hub, log)

	// healthz: valida dependências críticas
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("round-feed listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("round-feed server failed", zap.Error(err))
	}
}

// splitOrigins aceita "*" ou lista separada por vírgula
func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
