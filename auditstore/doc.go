// Package auditstore provides the core types for the append-only audit-event
// store: the Event document, its semi-structured Body, the search-criteria to
// filter translation, and the Notification projection used for live delivery.
//
// The package is storage-agnostic. A Filter built here is an opaque, AND-composed
// expression that only a store engine (e.g. postgresengine) knows how to turn
// into its native query language.
//
// Common usage pattern:
//
//	filter, err := auditstore.NewCriteria().
//		With("eventName", ":", "%test%").
//		With("username", ":", "alice").
//		Build()
//	if err != nil {
//		// handle auditstore.ErrInvalidQuery
//	}
//
//	events, hasMore, err := store.FindPage(ctx, filter, 0, 50)
package auditstore
