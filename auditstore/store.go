package auditstore

import (
	"context"
)

// Store is the document-collection boundary the core depends on. A store
// engine translates the opaque Filter into its native query form; the core
// never assumes a specific query language.
//
// All methods propagate context cancellation down to the underlying store
// operation. I/O failures are reported wrapped in ErrStoreUnavailable.
type Store interface {
	// Save persists a new event. Events are write-once; there is no update path.
	Save(ctx context.Context, event Event) error

	// FindPage returns the zero-based page of matching events in event-date
	// order, and whether more matches exist beyond it.
	FindPage(ctx context.Context, filter Filter, page int, size int) ([]Event, bool, error)

	// FindAll returns all matching events in event-date order.
	FindAll(ctx context.Context, filter Filter) ([]Event, error)

	// Count returns the total number of matching events, not just a page.
	Count(ctx context.Context, filter Filter) (int64, error)

	// FindByBodyPath returns events whose body contains every given exact
	// structural match. Missing keys simply do not match; they are no error.
	FindByBodyPath(ctx context.Context, matches ...BodyMatch) ([]Event, error)
}
