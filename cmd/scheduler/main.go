package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "pagewatch/internal/config/scheduler"
	"pagewatch/internal/obs"
	"pagewatch/internal/obs/retry"
	kafkaRepo "pagewatch/internal/repository/kafka"
	pg "pagewatch/internal/repository/postgres"
	"pagewatch/internal/services/scheduler"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	cfgPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting scheduler",
		zap.Any("kafka", cfg.Kafka),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if cfg.Kafka.EnsureTopics {
		for _, topic := range []string{cfg.Kafka.CheckTopic, cfg.Kafka.DigestTopic} {
			if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{Name: topic}, l); err != nil {
				l.Warn("ensure topic", zap.String("topic", topic), zap.Error(err))
			}
		}
	}

	checkProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CheckTopic).WithLogger(l)
	defer func() { _ = checkProd.Close() }()
	digestProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DigestTopic).WithLogger(l)
	defer func() { _ = digestProd.Close() }()

	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	uc := &scheduler.Usecase{
		Log:      l,
		Monitors: pg.NewMonitorRepo(db),
		Digests:  pg.NewDigestRepo(db),
		Jobs:     kafkaRepo.NewJobsKafka(checkProd, digestProd),
		Clock:    systemClock{},
		Policy:   retry.DefaultKafkaPolicy(l),
	}
	runner := &scheduler.Runner{Log: l, UC: uc, Cfg: scheduler.Config{
		Tick:       cfg.Sched.Tick,
		BatchLimit: cfg.Sched.BatchLimit,
	}}

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("scheduler started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
