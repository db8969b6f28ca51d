package auditstore

import (
	"fmt"
	"strings"
	"time"
)

// MatchOperation is the only supported criterion operation: "field matches
// value". It exists so that the criterion triple shape stays open for less
// permissive operations later without changing the builder contract.
const MatchOperation = ":"

// SearchCriterion is one (field, operation, value) input to the predicate
// builder. It is a transient value object, created and discarded within a
// single query construction; it is never persisted.
//
// Value is a string for text fields; for the date field it is a time.Time
// (single date) or a []time.Time with one or two elements (single date or
// inclusive range).
type SearchCriterion struct {
	Key       string
	Operation string
	Value     any
}

// Criteria collects SearchCriterion triples in order and builds the composed
// Filter from them. The zero value is ready to use; With returns a new value,
// so a Criteria can be shared without copying concerns.
type Criteria struct {
	params []SearchCriterion
}

// NewCriteria creates an empty Criteria.
func NewCriteria() Criteria {
	return Criteria{}
}

// With appends one criterion. Criteria with an empty or absent value are
// silently dropped, meaning "no filter on this field".
func (c Criteria) With(key string, operation string, value any) Criteria {
	if value == nil {
		return c
	}

	if str, isString := value.(string); isString && str == "" {
		return c
	}

	c.params = append(c.params, SearchCriterion{Key: key, Operation: operation, Value: value})

	return c
}

// WithDate appends a criterion on the event date matching the calendar day
// of the given timestamp.
func (c Criteria) WithDate(date time.Time) Criteria {
	return c.With(FieldEventDate.String(), MatchOperation, date)
}

// WithDateRange appends a criterion on the event date matching the inclusive
// range [from, until].
func (c Criteria) WithDateRange(from time.Time, until time.Time) Criteria {
	return c.With(FieldEventDate.String(), MatchOperation, []time.Time{from, until})
}

// Build translates the collected criteria field-by-field and combines all
// surviving predicates with logical AND:
//
//   - text fields: a value wrapped in percent signs ("%foo%") matches as a
//     case-insensitive substring, a bare value matches as exact equality
//   - event date: a single timestamp matches its calendar day, two
//     timestamps match the inclusive range between them
//   - unknown field names contribute nothing
//
// If zero criteria survive, Build returns the empty Filter (match everything).
// Malformed criteria (inverted date range, unsupported operation) fail with
// ErrInvalidQuery.
func (c Criteria) Build() (Filter, error) {
	var filter Filter

	for _, param := range c.params {
		predicate, err := buildPredicate(param)
		if err != nil {
			return Filter{}, err
		}

		if predicate == nil {
			continue
		}

		filter.predicates = append(filter.predicates, *predicate)
	}

	return filter, nil
}

func buildPredicate(param SearchCriterion) (*Predicate, error) {
	if param.Operation != MatchOperation && param.Operation != "" {
		return nil, fmt.Errorf("%w: unsupported operation %q", ErrInvalidQuery, param.Operation)
	}

	field := ParseField(param.Key)

	switch field {
	case FieldEventName, FieldUsername, FieldApplicationName, FieldCorrelationID:
		return buildTextPredicate(field, param.Value)

	case FieldEventDate:
		return buildDatePredicate(param.Value)

	default:
		return nil, nil // unknown fields are ignored, not errored
	}
}

func buildTextPredicate(field Field, value any) (*Predicate, error) {
	text, isString := value.(string)
	if !isString {
		return nil, fmt.Errorf("%w: field %s expects a string value, got %T", ErrInvalidQuery, field, value)
	}

	if text == "" {
		return nil, nil
	}

	if inner, wrapped := substringValue(text); wrapped {
		if inner == "" {
			return nil, nil // "%%" filters nothing
		}

		return &Predicate{field: field, kind: MatchTextContainsFold, text: inner}, nil
	}

	return &Predicate{field: field, kind: MatchTextEquals, text: text}, nil
}

// substringValue unwraps the percent-sign convention: "%foo%" signals
// substring match on "foo", anything else signals equality.
func substringValue(text string) (string, bool) {
	if len(text) >= 2 && strings.HasPrefix(text, "%") && strings.HasSuffix(text, "%") {
		return text[1 : len(text)-1], true
	}

	return "", false
}

func buildDatePredicate(value any) (*Predicate, error) {
	switch dates := value.(type) {
	case time.Time:
		return dayPredicate(dates), nil

	case []time.Time:
		switch len(dates) {
		case 0:
			return nil, nil
		case 1:
			return dayPredicate(dates[0]), nil
		case 2:
			if dates[0].After(dates[1]) {
				return nil, fmt.Errorf("%w: date range start %s is after end %s",
					ErrInvalidQuery, dates[0].Format(time.RFC3339), dates[1].Format(time.RFC3339))
			}

			return &Predicate{field: FieldEventDate, kind: MatchDateRange, from: dates[0], until: dates[1]}, nil
		default:
			return nil, fmt.Errorf("%w: a date criterion takes one or two timestamps, got %d", ErrInvalidQuery, len(dates))
		}

	default:
		return nil, fmt.Errorf("%w: field eventDate expects time values, got %T", ErrInvalidQuery, value)
	}
}

func dayPredicate(date time.Time) *Predicate {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	return &Predicate{
		field: FieldEventDate,
		kind:  MatchDay,
		from:  dayStart,
		until: dayStart.AddDate(0, 0, 1),
	}
}
