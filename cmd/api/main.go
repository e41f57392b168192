package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/lendingledger/internal/api"
	"github.com/punchamoorthee/lendingledger/internal/config"
	"github.com/punchamoorthee/lendingledger/internal/service"
	"github.com/punchamoorthee/lendingledger/internal/store"
	"github.com/punchamoorthee/lendingledger/internal/workers"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var logLevel string

	root := &cobra.Command{
		Use:          "libraryd",
		Short:        "Library lending ledger service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			return cfg.Validate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DBSource, "db-source", cfg.DBSource, "database connection string (DB_SOURCE)")
	flags.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "pgx | postgres | mysql | sqlite3 (DB_DRIVER)")
	flags.IntVar(&cfg.DBMaxConns, "db-max-conns", cfg.DBMaxConns, "connection pool size (DB_MAX_CONNS)")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel.String(), "debug | info | warn | error (LOG_LEVEL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the schema and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port (SERVER_PORT)")
	serveCmd.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "overdue sweep period, 0 disables (OVERDUE_SWEEP_INTERVAL)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cfg)
			db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			db.Close()
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	return root
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("env", cfg.Env)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.DB, error) {
	db, err := store.Open(ctx, store.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBSource,
		MaxConns: cfg.DBMaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize Layers
	ledger := service.NewLendingService(db, service.WithLogger(logger))
	reports := service.NewReportService(db)
	handler := api.NewHandler(db, ledger, reports, logger)

	if cfg.SweepInterval > 0 {
		go workers.NewOverdueSweeper(ledger, reports, cfg.SweepInterval, logger).Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
