package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rlegorreta/audit-service/migrations"
)

// schemaLockID serializes concurrent service instances applying the schema.
const schemaLockID int64 = 0x4155444954455653 // "AUDITEVS"

// EnsureSchema applies the embedded schema files under a session advisory
// lock, so that multiple instances starting at once do not race each other.
// The statements are idempotent; re-applying them is a no-op.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return errors.New("nil database pool")
	}
	if logger == nil {
		logger = slog.Default()
	}

	files, filesErr := migrations.Ordered()
	if filesErr != nil {
		return fmt.Errorf("reading embedded schema files: %w", filesErr)
	}

	conn, acquireErr := pool.Acquire(ctx)
	if acquireErr != nil {
		return fmt.Errorf("acquiring connection for schema setup: %w", acquireErr)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquiring schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", schemaLockID)
	}()

	for _, file := range files {
		if _, err := conn.Exec(ctx, file.SQL); err != nil {
			return fmt.Errorf("applying %s: %w", file.Name, err)
		}

		logger.Debug("schema file applied", "file", file.Name)
	}

	logger.Info("database schema ready", "files", len(files))

	return nil
}
