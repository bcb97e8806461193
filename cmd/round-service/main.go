package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/fair-round-engine/internal/round-service/cache"
	"github.com/radieske/fair-round-engine/internal/round-service/driver"
	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	rhttp "github.com/radieske/fair-round-engine/internal/round-service/http"
	"github.com/radieske/fair-round-engine/internal/round-service/outbox"
	"github.com/radieske/fair-round-engine/internal/round-service/repo"
	sharedcache "github.com/radieske/fair-round-engine/internal/shared/cache"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/db"
	"github.com/radieske/fair-round-engine/internal/shared/kafka"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/internal/shared/natsbus"
	"github.com/radieske/fair-round-engine/pkg/contracts/topics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.FromConfig(cfg.ServiceName, cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Jogos configurados (tabelas de pagamento, pesos, janelas)
	gameCfgs, err := config.LoadGames(cfg.GamesFile)
	if err != nil {
		log.Fatal("load games", zap.String("file", cfg.GamesFile), zap.Error(err))
	}
	games, err := engine.NewGames(gameCfgs)
	if err != nil {
		log.Fatal("build games", zap.Error(err))
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	store := repo.NewPostgres(pg)
	eng := engine.New(store, games, log)

	// Redis é opcional: sem ele o driver roda sem gate e a API sem lock de requisição em voo
	var (
		lock    rhttp.Locker
		drvOpts []driver.Option
	)
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, running without in-flight locks", zap.Error(err))
	} else {
		defer rdb.Close()
		l := cache.NewLocker(rdb, "round-service:")
		lock = l
		drvOpts = append(drvOpts, driver.WithGate(l))
	}

	// Publishers do outbox: Kafka sempre, NATS quando configurado
	roundsW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEvents)
	defer roundsW.Close()
	var betsW *kafkago.Writer
	if cfg.TopicBetResolved != "" {
		betsW = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
		defer betsW.Close()
	}
	publishers := []outbox.Publisher{outbox.NewKafkaPublisher(roundsW, betsW)}

	if cfg.NATSURL != "" {
		nc, js, err := natsbus.Connect(cfg.NATSURL, log)
		if err != nil {
			log.Fatal("nats connect", zap.Error(err))
		}
		defer nc.Drain()
		if err := natsbus.EnsureStream(ctx, js, topics.StreamRoundEvents, topics.SubjectRoundEvents); err != nil {
			log.Fatal("nats stream", zap.Error(err))
		}
		publishers = append(publishers, outbox.NewNATSPublisher(js, topics.SubjectRoundEvents))
	}

	relay := outbox.NewRelay(store, log, publishers...)
	relay.Interval = cfg.RelayInterval
	relay.BatchSize = cfg.RelayBatchSize
	relay.MaxAttempts = cfg.RelayMaxTries

	drv := driver.New(eng, log, cfg.TickInterval, drvOpts...)
	api := rhttp.NewServer(log, eng, drv, lock)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, store.Ping)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return drv.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("round-service stopped with error", zap.Error(err))
	}
	log.Info("round-service stopped")
}
