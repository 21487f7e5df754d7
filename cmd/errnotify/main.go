// errnotify reports errors to an Airbrake-compatible error tracker. It can
// send a single notice from the command line or run as a sidecar that
// serves health/metrics endpoints and sends scheduled canary notices.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/config"
	"github.com/powa-team/errnotify/internal/logging"
	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notice"
	"github.com/powa-team/errnotify/internal/notifier"
	"github.com/powa-team/errnotify/internal/scheduler"
	"github.com/powa-team/errnotify/internal/server"
	"github.com/powa-team/errnotify/internal/transport"
)

var (
	// Version information (set at build time via -ldflags)
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (environment only when empty)")
	message := flag.String("message", "", "Send a single notice with this error message and exit")
	severity := flag.String("severity", string(notice.SeverityError), "Severity of the notice sent with -message")
	serve := flag.Bool("serve", false, "Run the health server and canary scheduler")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("errnotify %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("errnotify starting",
		zap.String("version", version),
		zap.String("endpoint", transport.RedactURL(transport.NoticesURL(cfg.Notifier.Host, cfg.Notifier.ProjectID, cfg.Notifier.ProjectKey))),
		zap.String("environment", cfg.Notifier.Environment),
	)

	n, err := notifier.New(cfg.Notifier, notifier.WithZapLogger(logger))
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	if *message != "" {
		code := sendOnce(n, cfg, logger, *message, *severity)
		closeNotifier(n, logger)
		os.Exit(code)
	}

	if !*serve {
		flag.Usage()
		os.Exit(2)
	}

	runSidecar(n, cfg, logger)
	closeNotifier(n, logger)
}

func closeNotifier(n *notifier.Notifier, logger *zap.Logger) {
	if err := n.Close(); err != nil {
		logger.Warn("Error closing notice log", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

// sendOnce delivers a single notice and returns the process exit code.
func sendOnce(n *notifier.Notifier, cfg *config.Config, logger *zap.Logger, message, severity string) int {
	sev, err := notice.ParseSeverity(severity)
	if err != nil {
		logger.Error("Invalid severity", zap.Error(err))
		return 2
	}

	timeout, err := cfg.Notifier.TimeoutParsed()
	if err != nil {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := n.NotifySync(ctx, errors.New(message), notifier.WithSeverity(sev))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Error("Notice timed out", zap.Duration("timeout", timeout))
		} else {
			logger.Error("Notice failed", zap.Error(err))
		}
		return 1
	}

	switch resp.Status {
	case model.StatusSuccess:
		fmt.Printf("notice %s delivered: %s\n", resp.ID, resp.URL)
		return 0
	case model.StatusIgnored:
		fmt.Printf("notice ignored in environment %q\n", cfg.Notifier.Environment)
		return 0
	default:
		fmt.Printf("notice rejected (HTTP %d): %s\n", resp.StatusCode, resp.Message)
		return 1
	}
}

func runSidecar(n *notifier.Notifier, cfg *config.Config, logger *zap.Logger) {
	var sched *scheduler.Scheduler
	var canary server.CanaryStatus
	if cfg.Canary.Cron != "" {
		sched = scheduler.New(n, logger, cfg.Canary.Location)
		if err := sched.Schedule(cfg.Canary.Cron); err != nil {
			logger.Fatal("Failed to schedule canary", zap.Error(err))
		}
		sched.Start()
		canary = sched.LastResponse
		logger.Info("Canary scheduled",
			zap.String("cron", cfg.Canary.Cron),
			zap.String("timezone", cfg.Canary.Timezone),
		)
	}

	healthServer := server.New(&cfg.Server, &cfg.Notifier, n, canary, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("Failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.Stringer("signal", sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if sched != nil {
		schedCtx := sched.Stop()
		select {
		case <-schedCtx.Done():
		case <-shutdownCtx.Done():
		}
	}

	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Warn("Error stopping health server", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
