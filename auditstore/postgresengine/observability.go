package postgresengine

import (
	"context"
	"math"
	"time"
)

const (
	metricQueryDuration  = "auditstore_query_duration_seconds"
	metricDatabaseErrors = "auditstore_database_errors_total"

	labelOperation = "operation"
	labelStatus    = "status"
	statusError    = "error"
	statusSuccess  = "success"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (es *EventStore) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level, preferring the
// contextual logger when one is configured.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (es *EventStore) logError(message string, err error, args ...any) {
	if es.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		es.logger.Error(message, allArgs...)
	}
}

// recordDurationMetrics records a successful operation duration if a metrics collector is configured.
func (es *EventStore) recordDurationMetrics(_ context.Context, operation string, duration time.Duration) {
	if es.metricsCollector != nil {
		es.metricsCollector.RecordDuration(metricQueryDuration, duration, map[string]string{
			labelOperation: operation,
			labelStatus:    statusSuccess,
		})
	}
}

// recordErrorMetrics counts a database error if a metrics collector is configured.
func (es *EventStore) recordErrorMetrics(operation string) {
	if es.metricsCollector != nil {
		es.metricsCollector.IncrementCounter(metricDatabaseErrors, map[string]string{
			labelOperation: operation,
			labelStatus:    statusError,
		})
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
