package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rlegorreta/audit-service/auditstore"
)

// Body keys used by the fixed-shape detail query, matching what the user
// management service nests under the "datos" sub-object of its audit events.
const (
	bodyDataKey   = "datos"
	bodyUserIDKey = "idUsuario"
	bodyPhoneKey  = "telefono"
)

// Page is one zero-based page of events plus whether more matches exist
// beyond it.
type Page struct {
	Items   []auditstore.Event `json:"items"`
	HasMore bool               `json:"hasMore"`
}

// Service orchestrates the predicate builder and the store to serve paginated
// listing, counting and body drill-down queries.
//
// Store errors propagate wrapped in auditstore.ErrStoreUnavailable, malformed
// criteria in auditstore.ErrInvalidQuery. The service never retries: retry
// policy belongs to the store or its caller.
type Service struct {
	store  auditstore.Store
	logger *slog.Logger
}

// NewService creates a query service on top of the given store.
func NewService(store auditstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, logger: logger}
}

// ListPage returns the zero-based page of events matching the criteria.
// Empty criteria mean an unfiltered read of the same page. A page size of
// zero returns an empty page whose HasMore reports whether anything matches
// at all; negative page index or size fail with ErrInvalidQuery.
func (s *Service) ListPage(ctx context.Context, criteria auditstore.Criteria, page int, size int) (Page, error) {
	if page < 0 || size < 0 {
		return Page{}, fmt.Errorf("%w: negative page index or page size", auditstore.ErrInvalidQuery)
	}

	filter, buildErr := criteria.Build()
	if buildErr != nil {
		return Page{}, buildErr
	}

	items, hasMore, findErr := s.store.FindPage(ctx, filter, page, size)
	if findErr != nil {
		s.logger.Error("event page query failed", "page", page, "size", size, "error", findErr)
		return Page{}, findErr
	}

	s.logger.Debug("event page query completed",
		"page", page,
		"size", size,
		"items", len(items),
		"has_more", hasMore,
		"unfiltered", filter.IsEmpty(),
	)

	return Page{Items: items, HasMore: hasMore}, nil
}

// Count returns the total number of events matching the criteria, not just
// the current page. Empty criteria mean an unfiltered count.
func (s *Service) Count(ctx context.Context, criteria auditstore.Criteria) (int64, error) {
	filter, buildErr := criteria.Build()
	if buildErr != nil {
		return 0, buildErr
	}

	count, countErr := s.store.Count(ctx, filter)
	if countErr != nil {
		s.logger.Error("event count query failed", "error", countErr)
		return 0, countErr
	}

	return count, nil
}

// Detail drills into nested keys of the event body and returns exact
// structural matches combined with AND. It exists because the body is
// unstructured and the generic predicate builder only reaches top-level
// event fields.
func (s *Service) Detail(ctx context.Context, matches ...auditstore.BodyMatch) ([]auditstore.Event, error) {
	events, err := s.store.FindByBodyPath(ctx, matches...)
	if err != nil {
		s.logger.Error("event detail query failed", "error", err)
		return nil, err
	}

	return events, nil
}

// EventsDetail is the fixed detail query over the user management payload:
// events whose body carries the given user id and phone number under the
// "datos" sub-object. An empty phone drops that match.
func (s *Service) EventsDetail(ctx context.Context, userID int, phone string) ([]auditstore.Event, error) {
	matches := []auditstore.BodyMatch{
		auditstore.MatchBody(strconv.Itoa(userID), bodyDataKey, bodyUserIDKey),
	}

	if phone != "" {
		matches = append(matches, auditstore.MatchBody(phone, bodyDataKey, bodyPhoneKey))
	}

	return s.Detail(ctx, matches...)
}
