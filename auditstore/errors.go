package auditstore

import (
	"errors"
)

// ErrInvalidQuery marks malformed search criteria (inverted date range,
// unsupported operator). It is a caller error and must never be retried.
var ErrInvalidQuery = errors.New("invalid query criteria")

// ErrStoreUnavailable marks I/O, connectivity or timeout failures of the
// underlying store. It is surfaced to the caller as a retryable failure;
// the core itself performs no retries.
var ErrStoreUnavailable = errors.New("audit event store unavailable")

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyTableNameSupplied = errors.New("empty eventTableName supplied")
var ErrBuildingQueryFailed = errors.New("failed to build query")
var ErrScanningDBRowFailed = errors.New("failed to scan database row")
var ErrDecodingEventBodyFailed = errors.New("failed to decode event body from database row")
var ErrEncodingEventBodyFailed = errors.New("failed to encode event body")
