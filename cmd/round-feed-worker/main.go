package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/cache"
	"github.com/radieske/fair-round-engine/internal/round-feed/consumer"
	"github.com/radieske/fair-round-engine/internal/round-feed/pubsub"
	sharedcache "github.com/radieske/fair-round-engine/internal/shared/cache"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/kafka"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.FromConfig(cfg.ServiceName, cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Último estado por jogo expira se o round-service parar de publicar
	rcache := cache.NewRedisCache(redisClient, 10*time.Minute, 100)

	// Consumer group próprio: cada worker do feed recebe uma partição
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundEvents, "round-feed")
	defer reader.Close()

	var dlq consumer.DeadLetter
	if cfg.TopicRoundEventsDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEventsDLQ)
		defer w.Close()
		dlq = w
	}

	proc := &consumer.Processor{
		Log:       log,
		Reader:    reader,
		Cache:     rcache,
		Broadcast: pubsub.NewRedisBroadcaster(redisClient),
		Channel:   cfg.RedisPubSubChannel,
		DLQ:       dlq,
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	defer metricsSrv.Close()

	log.Info("round-feed-worker started", zap.String("topic", cfg.TopicRoundEvents), zap.String("channel", cfg.RedisPubSubChannel))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("round-feed-worker stopped")
}
