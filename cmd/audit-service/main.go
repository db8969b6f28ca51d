package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/auditstore/oteladapters"
	"github.com/rlegorreta/audit-service/auditstore/postgresengine"
	"github.com/rlegorreta/audit-service/internal/config"
	"github.com/rlegorreta/audit-service/internal/ingest"
	"github.com/rlegorreta/audit-service/internal/logging"
	"github.com/rlegorreta/audit-service/internal/metrics"
	"github.com/rlegorreta/audit-service/internal/migrate"
	"github.com/rlegorreta/audit-service/internal/notify"
	"github.com/rlegorreta/audit-service/internal/query"
	transport "github.com/rlegorreta/audit-service/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("audit service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	metrics.Init()

	store, cleanup, storeErr := buildStore(ctx, cfg, logger)
	if storeErr != nil {
		return storeErr
	}
	defer cleanup()

	queries := query.NewService(store, logger)

	broadcaster := notify.NewBroadcaster(store, logger, notify.WithBuffer(cfg.SubscriberBuffer))
	defer broadcaster.Close()

	if cfg.NATSURL != "" {
		conn, connErr := nats.Connect(cfg.NATSURL, nats.Name("audit-service"))
		if connErr != nil {
			return fmt.Errorf("connecting to nats at %s: %w", cfg.NATSURL, connErr)
		}
		defer conn.Close()

		consumer := ingest.NewConsumer(conn, store, broadcaster, logger,
			ingest.WithSubjects(cfg.AuditSubject, cfg.NotifySubject),
			ingest.WithFilePath(cfg.AuditFilePath),
		)
		if err := consumer.Start(); err != nil {
			return err
		}
		defer consumer.Stop()
	} else {
		logger.Info("NATS_URL not set, bus ingestion disabled")
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: transport.NewRouter(transport.Deps{
			Queries:       queries,
			Notifications: broadcaster,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return err

	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	}
}

// buildStore selects the database adapter by configuration. All three
// adapters speak to the same Postgres schema; pgx is the default.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (auditstore.Store, func(), error) {
	options := []postgresengine.Option{
		postgresengine.WithLogger(logger),
		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("audit-service")),
		postgresengine.WithMetrics(metrics.StoreCollector{}),
	}

	switch cfg.DBDriver {
	case "pgx", "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("creating pgx pool: %w", err)
		}

		if cfg.AutoMigrate {
			if err := migrate.EnsureSchema(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}

		store, storeErr := postgresengine.NewEventStoreFromPGXPool(pool, options...)
		if storeErr != nil {
			pool.Close()
			return nil, nil, storeErr
		}

		return store, pool.Close, nil

	case "sql":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}

		store, storeErr := postgresengine.NewEventStoreFromSQLDB(db, options...)
		if storeErr != nil {
			_ = db.Close()
			return nil, nil, storeErr
		}

		return store, func() { _ = db.Close() }, nil

	case "sqlx":
		db, err := sqlx.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}

		store, storeErr := postgresengine.NewEventStoreFromSQLX(db, options...)
		if storeErr != nil {
			_ = db.Close()
			return nil, nil, storeErr
		}

		return store, func() { _ = db.Close() }, nil

	default:
		return nil, nil, errors.New("unsupported DB_DRIVER: " + cfg.DBDriver + " (expected pgx, sql or sqlx)")
	}
}
