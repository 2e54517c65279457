// Command sendmail drains a Maildir-convention spool, delivering each
// queued message over SMTP. Invoked without --daemon it makes a single
// pass over the spool and exits, the traditional cron-driven queue-runner
// invocation; with --daemon it runs continuously until signalled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/infodancer/sendmail/internal/config"
	"github.com/infodancer/sendmail/internal/logging"
	"github.com/infodancer/sendmail/internal/metrics"
	"github.com/infodancer/sendmail/internal/queueprocessor"
	"github.com/infodancer/sendmail/internal/smtptransport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sendmail:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	collector, metricsServer := metrics.New(metrics.Config{
		Enabled: cfg.MetricsAddr != "",
		Address: cfg.MetricsAddr,
		Path:    "/metrics",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	qcfg := queueprocessor.Config{
		SpoolPath:             cfg.SpoolPath,
		Interval:              cfg.Interval,
		RetryInterval:         cfg.Interval,
		CleanLockLinksOnStart: true,
		NewMailer:             newMailerFactory(cfg, logger),
		Logger:                logger,
		Metrics:               metricsAdapter{collector},
	}

	if cfg.Daemon {
		logger.Info("starting sendmail", "spool", cfg.SpoolPath, "hostname", cfg.Hostname, "workers", cfg.Workers)
		if err := queueprocessor.RunWorkers(ctx, qcfg, cfg.Workers); err != nil && err != context.Canceled {
			return fmt.Errorf("running queue processor: %w", err)
		}
		return nil
	}

	p, err := queueprocessor.New(qcfg)
	if err != nil {
		return fmt.Errorf("opening spool: %w", err)
	}
	return p.RunOnce(ctx)
}

// newMailerFactory returns the NewMailer hook queueprocessor.Config needs:
// a fresh *smtptransport.Mailer per delivery attempt, never shared across
// concurrent sends.
func newMailerFactory(cfg config.Config, logger *slog.Logger) func() queueprocessor.Transport {
	return func() queueprocessor.Transport {
		return smtptransport.New(smtptransport.Config{
			Hostname: cfg.Hostname,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			TLS:      cfg.TLS,
			Logger:   logger,
		})
	}
}

// metricsAdapter narrows a metrics.Collector down to the single method
// queueprocessor.Metrics needs, so that package never has to import
// the metrics package's full Collector interface.
type metricsAdapter struct {
	collector metrics.Collector
}

func (m metricsAdapter) DeliveryAttempt(result string) {
	m.collector.DeliveryAttempt(result)
}
