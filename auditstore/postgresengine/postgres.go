package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/auditstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName = "audit_events"

	logMsgBuildQueryFailed  = "failed to build query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgDBExecFailed      = "database execution failed during event save"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgDecodeBodyFailed  = "failed to decode event body from database row"
	logMsgQueryCompleted    = "query completed"
	logMsgEventSaved        = "event saved"
	logMsgSQLExecuted       = "executed sql for: "
	logMsgOperation         = "auditstore operation: "
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrEventID          = "event_id"
	logAttrEventCount       = "event_count"
	logAttrDurationMS       = "duration_ms"
	logActionFindPage       = "find_page"
	logActionFindAll        = "find_all"
	logActionCount          = "count"
	logActionFindByBodyPath = "find_by_body_path"
	logActionSave           = "save"

	colID              = "id"
	colToken           = "token"
	colCorrelationID   = "correlation_id"
	colEventType       = "event_type"
	colUsername        = "username"
	colEventName       = "event_name"
	colEventDate       = "event_date"
	colApplicationName = "application_name"
	colEventBody       = "event_body"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
)

type sqlQueryString = string

// EventStore is the PostgreSQL implementation of the auditstore.Store
// boundary. It leverages a database adapter and supports customizable
// logging, metrics and event table configuration.
type EventStore struct {
	db               adapters.DBAdapter
	eventTableName   string
	logger           auditstore.Logger
	contextualLogger auditstore.ContextualLogger
	metricsCollector auditstore.MetricsCollector
}

var _ auditstore.Store = (*EventStore)(nil)

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, auditstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, auditstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, auditstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:             db,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// Save persists a new event. Events are write-once: there is no update path,
// and the engine never issues anything but INSERTs for them.
func (es *EventStore) Save(ctx context.Context, event auditstore.Event) error {
	sqlQuery, buildErr := es.buildInsertQuery(event)
	if buildErr != nil {
		es.logError(logMsgBuildQueryFailed, buildErr, logAttrEventID, event.ID.String())
		return buildErr
	}

	start := time.Now()
	result, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, logActionSave, duration)

	if execErr != nil {
		es.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		es.recordErrorMetrics(logActionSave)

		return errors.Join(auditstore.ErrStoreUnavailable, execErr)
	}

	if _, rowsErr := result.RowsAffected(); rowsErr != nil {
		return errors.Join(auditstore.ErrStoreUnavailable, rowsErr)
	}

	es.recordDurationMetrics(ctx, logActionSave, duration)
	es.logOperation(ctx, logMsgEventSaved, logAttrEventID, event.ID.String(), logAttrDurationMS, toMilliseconds(duration))

	return nil
}

// FindPage retrieves the zero-based page of events matching the filter,
// ordered by event date, and reports whether more matches exist beyond it.
//
// The engine fetches one row beyond the page to answer hasMore without a
// second query. A page size of zero therefore yields an empty page whose
// hasMore reports whether anything matches at all.
func (es *EventStore) FindPage(
	ctx context.Context,
	filter auditstore.Filter,
	page int,
	size int,
) ([]auditstore.Event, bool, error) {

	if page < 0 || size < 0 {
		return nil, false, fmt.Errorf("%w: negative page index or page size", auditstore.ErrInvalidQuery)
	}

	selectStmt, whereErr := es.addWhereClause(filter, es.baseSelect())
	if whereErr != nil {
		return nil, false, whereErr
	}

	selectStmt = selectStmt.
		Order(goqu.I(colEventDate).Asc()).
		Limit(uint(size) + 1).
		Offset(uint(page * size))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildQueryFailed, toSQLErr)
		return nil, false, errors.Join(auditstore.ErrBuildingQueryFailed, toSQLErr)
	}

	events, queryErr := es.queryEvents(ctx, sqlQuery, logActionFindPage)
	if queryErr != nil {
		return nil, false, queryErr
	}

	hasMore := len(events) > size
	if hasMore {
		events = events[:size]
	}

	return events, hasMore, nil
}

// FindAll retrieves all events matching the filter, ordered by event date.
func (es *EventStore) FindAll(ctx context.Context, filter auditstore.Filter) ([]auditstore.Event, error) {
	selectStmt, whereErr := es.addWhereClause(filter, es.baseSelect())
	if whereErr != nil {
		return nil, whereErr
	}

	selectStmt = selectStmt.Order(goqu.I(colEventDate).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(auditstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return es.queryEvents(ctx, sqlQuery, logActionFindAll)
}

// Count returns the total number of events matching the filter.
func (es *EventStore) Count(ctx context.Context, filter auditstore.Filter) (int64, error) {
	countStmt, whereErr := es.addWhereClause(filter, goqu.Dialect(dialectPostgres).From(es.eventTableName).Select(goqu.COUNT(goqu.Star())))
	if whereErr != nil {
		return 0, whereErr
	}

	sqlQuery, _, toSQLErr := countStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildQueryFailed, toSQLErr)
		return 0, errors.Join(auditstore.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	var count int64
	scanErr := es.db.QueryRow(ctx, sqlQuery).Scan(&count)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, logActionCount, duration)

	if scanErr != nil {
		es.logError(logMsgDBQueryFailed, scanErr, logAttrQuery, sqlQuery)
		es.recordErrorMetrics(logActionCount)

		return 0, errors.Join(auditstore.ErrStoreUnavailable, scanErr)
	}

	es.recordDurationMetrics(ctx, logActionCount, duration)

	return count, nil
}

// FindByBodyPath retrieves events whose body contains every given exact
// structural match, combined with AND. A missing key yields no match, never
// an error.
func (es *EventStore) FindByBodyPath(ctx context.Context, matches ...auditstore.BodyMatch) ([]auditstore.Event, error) {
	selectStmt := es.baseSelect()

	for _, match := range matches {
		if len(match.Path) == 0 {
			return nil, fmt.Errorf("%w: empty body path", auditstore.ErrInvalidQuery)
		}

		selectStmt = selectStmt.Where(bodyPathExpression(match))
	}

	selectStmt = selectStmt.Order(goqu.I(colEventDate).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logError(logMsgBuildQueryFailed, toSQLErr)
		return nil, errors.Join(auditstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return es.queryEvents(ctx, sqlQuery, logActionFindByBodyPath)
}

// bodyPathExpression builds `jsonb_extract_path_text(event_body, 'k1', 'k2') = 'value'`.
// jsonb_extract_path_text returns NULL for missing keys, which never equals
// the value, giving the "not found, no match" behavior.
func bodyPathExpression(match auditstore.BodyMatch) goqu.Expression {
	placeholders := make([]string, 0, len(match.Path))
	args := make([]any, 0, len(match.Path))

	for _, key := range match.Path {
		placeholders = append(placeholders, "?")
		args = append(args, key)
	}

	pathCall := fmt.Sprintf("jsonb_extract_path_text(%s, %s)", colEventBody, strings.Join(placeholders, ", "))

	return goqu.L(pathCall, args...).Eq(match.Value)
}

func (es *EventStore) baseSelect() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colID, colToken, colCorrelationID, colEventType, colUsername, colEventName, colEventDate, colApplicationName, colEventBody)
}

// addWhereClause translates the opaque filter into goqu expressions.
// An empty filter adds no WHERE clause: it matches everything.
func (es *EventStore) addWhereClause(filter auditstore.Filter, selectStmt *goqu.SelectDataset) (*goqu.SelectDataset, error) {
	for _, predicate := range filter.Predicates() {
		expression, err := predicateExpression(predicate)
		if err != nil {
			es.logError(logMsgBuildQueryFailed, err)
			return nil, err
		}

		selectStmt = selectStmt.Where(expression)
	}

	return selectStmt, nil
}

func predicateExpression(predicate auditstore.Predicate) (goqu.Expression, error) {
	column, columnErr := columnForField(predicate.Field())
	if columnErr != nil {
		return nil, columnErr
	}

	switch predicate.Kind() {
	case auditstore.MatchTextEquals:
		return goqu.C(column).Eq(predicate.Text()), nil

	case auditstore.MatchTextContainsFold:
		return goqu.C(column).ILike("%" + escapeLikePattern(predicate.Text()) + "%"), nil

	case auditstore.MatchTextIn:
		values := make([]any, 0, len(predicate.Texts()))
		for _, text := range predicate.Texts() {
			values = append(values, text)
		}

		return goqu.C(column).In(values...), nil

	case auditstore.MatchDay:
		return goqu.And(
			goqu.C(column).Gte(predicate.From()),
			goqu.C(column).Lt(predicate.Until()),
		), nil

	case auditstore.MatchDateRange:
		return goqu.And(
			goqu.C(column).Gte(predicate.From()),
			goqu.C(column).Lte(predicate.Until()),
		), nil

	default:
		return nil, errors.Join(
			auditstore.ErrBuildingQueryFailed,
			fmt.Errorf("unsupported match kind %d", predicate.Kind()),
		)
	}
}

func columnForField(field auditstore.Field) (string, error) {
	switch field {
	case auditstore.FieldEventName:
		return colEventName, nil
	case auditstore.FieldUsername:
		return colUsername, nil
	case auditstore.FieldApplicationName:
		return colApplicationName, nil
	case auditstore.FieldCorrelationID:
		return colCorrelationID, nil
	case auditstore.FieldEventDate:
		return colEventDate, nil
	default:
		return "", errors.Join(
			auditstore.ErrBuildingQueryFailed,
			fmt.Errorf("no column for field %s", field),
		)
	}
}

// escapeLikePattern escapes the LIKE metacharacters in a substring value so
// that user input matches literally.
func escapeLikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func (es *EventStore) buildInsertQuery(event auditstore.Event) (sqlQueryString, error) {
	bodyJSON, encodeErr := event.Body.EncodeJSON()
	if encodeErr != nil {
		return "", errors.Join(auditstore.ErrEncodingEventBodyFailed, encodeErr)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.eventTableName).
		Rows(goqu.Record{
			colID:              event.ID.String(),
			colToken:           event.Token,
			colCorrelationID:   event.CorrelationID,
			colEventType:       event.EventType.String(),
			colUsername:        event.Username,
			colEventName:       event.EventName,
			colEventDate:       event.EventDate,
			colApplicationName: event.ApplicationName,
			colEventBody:       goqu.L(castJsonb, string(bodyJSON)),
		})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(auditstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) queryEvents(ctx context.Context, sqlQuery string, action string) ([]auditstore.Event, error) {
	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		es.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		es.recordErrorMetrics(action)

		return nil, errors.Join(auditstore.ErrStoreUnavailable, queryErr)
	}
	defer es.closeRows(rows)

	events, scanErr := es.scanEvents(rows)
	if scanErr != nil {
		return nil, scanErr
	}

	es.recordDurationMetrics(ctx, action, duration)
	es.logOperation(ctx, logMsgQueryCompleted, logAttrEventCount, len(events), logAttrDurationMS, toMilliseconds(duration))

	return events, nil
}

func (es *EventStore) scanEvents(rows adapters.DBRows) ([]auditstore.Event, error) {
	events := make([]auditstore.Event, 0)

	for rows.Next() {
		var (
			rawID        string
			rawEventType string
			rawBody      []byte
			event        auditstore.Event
		)

		scanErr := rows.Scan(
			&rawID,
			&event.Token,
			&event.CorrelationID,
			&rawEventType,
			&event.Username,
			&event.EventName,
			&event.EventDate,
			&event.ApplicationName,
			&rawBody,
		)
		if scanErr != nil {
			es.logError(logMsgScanRowFailed, scanErr)
			return nil, errors.Join(auditstore.ErrScanningDBRowFailed, scanErr)
		}

		id, idErr := uuid.Parse(rawID)
		if idErr != nil {
			es.logError(logMsgScanRowFailed, idErr)
			return nil, errors.Join(auditstore.ErrScanningDBRowFailed, idErr)
		}
		event.ID = id

		eventType, typeErr := auditstore.ParseEventType(rawEventType)
		if typeErr != nil {
			es.logError(logMsgScanRowFailed, typeErr)
			return nil, errors.Join(auditstore.ErrScanningDBRowFailed, typeErr)
		}
		event.EventType = eventType

		body, bodyErr := auditstore.DecodeBody(rawBody)
		if bodyErr != nil {
			es.logError(logMsgDecodeBodyFailed, bodyErr)
			return nil, errors.Join(auditstore.ErrDecodingEventBodyFailed, bodyErr)
		}
		event.Body = body

		events = append(events, event)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(auditstore.ErrStoreUnavailable, rowsErr)
	}

	return events, nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}
