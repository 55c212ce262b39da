package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/app"
	"github.com/Freeeeeet/fieldsched/internal/config"
)

var (
	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fieldsched",
	Short: "Technician scheduling and availability engine",
	Long: `fieldsched computes bookable slots for field technicians, suggests
contiguous windows that honor SLA deadlines, applies booking changes
without overlaps and delivers booking events to notification channels.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the outbox dispatch scheduler",
	RunE:  runServe,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the outbox dispatcher once and exit",
	Long:  "Deliver one batch of pending outbox events. Intended for an external cron.",
	RunE:  runDispatch,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), (*app.Migrator).Run)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), (*app.Migrator).Status)
	},
}

var skipMigrations bool

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply migrations on startup")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, dispatchCmd, migrateCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = app.NewLogger(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger.Info("fieldsched starting",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("timezone", cfg.Timezone),
	)

	c, err := newContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if !skipMigrations {
		if err := c.migrate(ctx); err != nil {
			return err
		}
	}

	scheduler := app.NewScheduler(c.dispatcher, cfg.DispatchInterval, logger)
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.api.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("Shutting down gracefully")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	scheduler.Stop()

	logger.Info("fieldsched stopped")
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := newContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.dispatcher.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "fetched=%d delivered=%d failed=%d dead_lettered=%d skipped=%d purged=%d\n",
		report.Fetched, report.Delivered, report.Failed, report.DeadLettered, report.Skipped, report.Purged)
	return nil
}

func withMigrator(ctx context.Context, fn func(*app.Migrator, context.Context) error) error {
	pool, err := app.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg, ctx)
}
