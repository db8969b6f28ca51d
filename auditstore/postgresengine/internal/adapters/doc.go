// Package adapters provides database adapter implementations for the
// PostgreSQL audit-event store.
//
// The adapter pattern lets the store work with multiple PostgreSQL client
// libraries: pgxpool.Pool, database/sql and sqlx.DB. All adapters present the
// same DBAdapter interface for query execution and result handling.
package adapters
