package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers such as the session cleanup scheduler and the audit event listener.`,
}

var sessionWorkerCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Start the session cleanup scheduler",
	Long:  `Periodically delete session records whose last activity is older than the inactivity timeout`,
	Run: func(cmd *cobra.Command, args []string) {
		startSessionWorker()
	},
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus with the audit log handler attached`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var runOnce bool

func startSessionWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	cfg := deps.Config.Sessions
	scheduler := session.NewScheduler(deps.Session, cfg.CleanupInterval, cfg.InactivityTimeout, deps.Logger)

	if runOnce {
		scheduler.RunOnce(context.Background())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Logger.Info("session cleanup worker is running. Press Ctrl+C to stop.",
		"interval", cfg.CleanupInterval,
		"inactivity_timeout", cfg.InactivityTimeout)
	scheduler.Run(ctx)
	deps.Logger.Info("session cleanup worker stopped")
}

func startEventWorker() {
	_, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)
	eventBus.SubscribeAll(events.AuditLogHandler(logger), events.SecurityEventTypes...)

	logger.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("event bus is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("received signal, shutting down event bus", "signal", sig)
	logger.Info("event bus shutdown complete")
}

func init() {
	sessionWorkerCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cleanup pass and exit")

	workerCmd.AddCommand(sessionWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
