package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/fairness-auditor/audit"
	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
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

	// Geradores dos mesmos jogos que o round-service usa
	gameCfgs, err := config.LoadGames(cfg.GamesFile)
	if err != nil {
		log.Fatal("load games", zap.Error(err))
	}
	generators := make(map[string]outcome.Generator, len(gameCfgs))
	for _, g := range gameCfgs {
		gen, err := outcome.New(g)
		if err != nil {
			log.Fatal("build generator", zap.String("game_type", g.Type), zap.Error(err))
		}
		generators[g.Type] = gen
	}

	// Kafka consumer: round.settled com seed revelada
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundEvents, "fairness-auditor")
	defer reader.Close()

	// Kafka producer: violações vão para a DLQ de fairness
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFairnessDLQ)
	defer dlq.Close()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	defer metricsSrv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("fairness-auditor started",
		zap.String("consume", cfg.TopicRoundEvents),
		zap.String("violations", cfg.TopicFairnessDLQ),
		zap.Int("games", len(generators)),
	)
	a := audit.New(log, generators, audit.KafkaSink{W: dlq})
	if err := a.Run(ctx, reader); err != nil && ctx.Err() == nil {
		log.Fatal("auditor stopped with error", zap.Error(err))
	}
	log.Info("fairness-auditor stopped")
}
