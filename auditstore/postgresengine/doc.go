// Package postgresengine provides the PostgreSQL implementation of the
// auditstore.Store boundary.
//
// Events live in a single table with the semi-structured body stored as JSONB,
// so the fixed-shape detail queries can reach into nested body keys with
// jsonb path extraction. The opaque auditstore.Filter is translated into SQL
// with goqu; the core never sees the query language.
//
// Multiple database adapters are supported (pgx pool, database/sql, sqlx)
// behind a common internal adapter interface.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		pool,
//		postgresengine.WithTableName("audit_events"),
//		postgresengine.WithLogger(logger),
//	)
//
//	events, hasMore, err := store.FindPage(ctx, filter, 0, 50)
package postgresengine
