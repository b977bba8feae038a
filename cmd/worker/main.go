// Command worker runs the tracking worker: a leader-elected background
// process that drives the check sweep, notification delivery, tracking
// gauge, and retention loops, and exposes an HTTP control surface.
//
// Usage:
//
//	worker -config worker.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/lattani/trackwright/dbopen"
	"github.com/lattani/trackwright/internal/config"
	"github.com/lattani/trackwright/internal/fetch"
	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/notify/amqp"
	"github.com/lattani/trackwright/internal/notify/smtp"
	"github.com/lattani/trackwright/internal/scheduler"
	"github.com/lattani/trackwright/internal/store"
	"github.com/lattani/trackwright/internal/worker"
	"github.com/lattani/trackwright/observability"
)

func main() {
	configPath := flag.String("config", "", "path to worker.yaml config file")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("worker: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	s, err := store.Open(cfg.DatabaseURL, dbopen.WithSchema(observability.Schema))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	sink, err := buildSink(cfg.Notify)
	if err != nil {
		return fmt.Errorf("build notification sink: %w", err)
	}
	if closer, ok := sink.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	fetcher := fetch.New(fetch.Config{
		DisableRender: cfg.Scheduler.DisableRenderedFetch,
	})

	metrics := observability.NewMetricsManager(s.Pool(), 50, cfg.Scheduler.TrackingInterval())
	defer metrics.Close()

	sch := scheduler.New(s, s.Pool(), fetcher, sink, metrics, cfg.Scheduler, logger)

	w := worker.New(s.Pool(), sch, worker.Config{Port: cfg.WorkerPort}, logger)

	return w.Run(ctx)
}

func buildSink(cfg config.NotifyConfig) (notify.Sink, error) {
	switch cfg.Sink {
	case config.NotifySinkAMQP:
		return amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRouting)
	case config.NotifySinkSMTP, "":
		return smtp.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom), nil
	default:
		return nil, fmt.Errorf("unknown notify sink %q", cfg.Sink)
	}
}
