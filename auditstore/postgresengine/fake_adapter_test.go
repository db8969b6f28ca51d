package postgresengine

import (
	"context"
	"fmt"
	"time"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/auditstore/postgresengine/internal/adapters"
)

// fakeAdapter is an in-memory DBAdapter returning canned rows, used to test
// scanning and pagination logic without a database.
type fakeAdapter struct {
	rows      *fakeRows
	execErr   error
	lastQuery string
}

func (f *fakeAdapter) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.lastQuery = query
	if f.rows == nil {
		return &fakeRows{}, nil
	}
	return f.rows, nil
}

func (f *fakeAdapter) QueryRow(_ context.Context, query string) adapters.DBRow {
	f.lastQuery = query
	return &fakeRow{}
}

func (f *fakeAdapter) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.lastQuery = query
	if f.execErr != nil {
		return nil, f.execErr
	}
	return fakeResult{}, nil
}

type fakeRows struct {
	values [][]any
	index  int
}

// eventRows lays events out in the column order of the select statements.
func eventRows(events ...auditstore.Event) *fakeRows {
	rows := &fakeRows{}

	for _, event := range events {
		body, err := event.Body.EncodeJSON()
		if err != nil {
			panic(err)
		}

		rows.values = append(rows.values, []any{
			event.ID.String(),
			event.Token,
			event.CorrelationID,
			event.EventType.String(),
			event.Username,
			event.EventName,
			event.EventDate,
			event.ApplicationName,
			body,
		})
	}

	return rows
}

func (r *fakeRows) Next() bool {
	if r.index >= len(r.values) {
		return false
	}
	r.index++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.values[r.index-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan expects %d destinations, got %d", len(row), len(dest))
	}

	for i, value := range row {
		switch target := dest[i].(type) {
		case *string:
			*target = value.(string)
		case *int:
			*target = value.(int)
		case *time.Time:
			*target = value.(time.Time)
		case *[]byte:
			*target = value.([]byte)
		default:
			return fmt.Errorf("unsupported scan destination %T", dest[i])
		}
	}

	return nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() error { return nil }

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if target, ok := dest[0].(*int64); ok {
			*target = 0
			return nil
		}
	}
	return fmt.Errorf("unsupported scan destinations")
}

type fakeResult struct{}

func (fakeResult) RowsAffected() (int64, error) { return 1, nil }
