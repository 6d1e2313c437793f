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

	config "pagewatch/internal/config/digest-worker"
	digestproc "pagewatch/internal/digest"
	"pagewatch/internal/dispatch"
	"pagewatch/internal/notify"
	"pagewatch/internal/obs"
	kafkaRepo "pagewatch/internal/repository/kafka"
	pg "pagewatch/internal/repository/postgres"
	digestworker "pagewatch/internal/services/digest-worker"
	"pagewatch/internal/worker"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wire(cfg *config.Config, db *pg.DB, cons *kafkaRepo.Consumer, l *zap.Logger) *digestworker.Controller {
	events := pg.NewEventRepo(db)

	registry := notify.NewRegistry(
		&notify.TelegramPlugin{},
		notify.NewDiscordPlugin(nil),
	)

	proc := digestproc.NewProcessor(
		l,
		pg.NewTransactor(db, l),
		pg.NewMonitorRepo(db),
		pg.NewChangeRepo(db),
		pg.NewChannelRepo(db),
		pg.NewDigestRepo(db),
		registry,
		dispatch.New(l, registry, events),
		systemClock{},
	)

	runner := worker.NewRunner(l, pg.NewJobLockRepo(db, cfg.Lock.TTL), events)

	return &digestworker.Controller{Log: l, Sub: cons, Jobs: runner, Proc: proc}
}

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

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	cons := kafkaRepo.BootstrapConsumer(ctx, cfg.In.AsConsumerConfig(), l).WithLogger(l)
	defer func() { _ = cons.Close() }()

	ctrl := wire(cfg, db, cons, l)

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(ctx) }()

	l.Info("digest worker started", zap.String("topic", cfg.In.Topic))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
