package auditstore

import (
	"time"
)

/***** Field *****/

// Field is the closed enumeration of Event fields the predicate builder
// understands. Criteria naming any other field contribute no predicate;
// they are ignored, not errored, to keep the query surface forward-compatible.
type Field int

const (
	FieldUnknown Field = iota
	FieldEventName
	FieldUsername
	FieldApplicationName
	FieldCorrelationID
	FieldEventDate
)

// ParseField maps a criterion key to its Field. Unknown keys map to
// FieldUnknown.
func ParseField(key string) Field {
	switch key {
	case "eventName":
		return FieldEventName
	case "username":
		return FieldUsername
	case "applicationName":
		return FieldApplicationName
	case "correlationId":
		return FieldCorrelationID
	case "eventDate":
		return FieldEventDate
	default:
		return FieldUnknown
	}
}

// String returns the criterion key for the Field.
func (f Field) String() string {
	switch f {
	case FieldEventName:
		return "eventName"
	case FieldUsername:
		return "username"
	case FieldApplicationName:
		return "applicationName"
	case FieldCorrelationID:
		return "correlationId"
	case FieldEventDate:
		return "eventDate"
	default:
		return "unknown"
	}
}

/***** MatchKind *****/

// MatchKind is the typed comparison strategy carried by a Predicate.
type MatchKind int

const (
	// MatchTextEquals is case-sensitive equality on a text field.
	MatchTextEquals MatchKind = iota

	// MatchTextContainsFold is case-insensitive substring match on a text field.
	MatchTextContainsFold

	// MatchTextIn matches a text field against any of a set of values.
	MatchTextIn

	// MatchDay matches the calendar day [From, Until) of a single date value.
	MatchDay

	// MatchDateRange matches the inclusive range [From, Until].
	MatchDateRange
)

/***** Predicate *****/

// Predicate is one typed comparison over a single Event field. Predicates are
// only ever combined with logical AND; composition is associative and the
// order of predicates carries no meaning.
type Predicate struct {
	field Field
	kind  MatchKind
	text  string
	texts []string
	from  time.Time
	until time.Time
}

func (p Predicate) Field() Field {
	return p.field
}

func (p Predicate) Kind() MatchKind {
	return p.kind
}

// Text is the comparison value for MatchTextEquals and MatchTextContainsFold.
func (p Predicate) Text() string {
	return p.text
}

// Texts is the value set for MatchTextIn.
func (p Predicate) Texts() []string {
	return p.texts
}

// From is the lower bound for MatchDay and MatchDateRange.
func (p Predicate) From() time.Time {
	return p.from
}

// Until is the upper bound: exclusive for MatchDay, inclusive for MatchDateRange.
func (p Predicate) Until() time.Time {
	return p.until
}

/***** Filter *****/

// Filter is an opaque, AND-composed filter expression over Event fields,
// consumed only by a store engine which translates it into its native query
// language.
//
// The zero value is the empty filter: it matches everything. This is distinct
// from "match nothing", which no Filter can express.
type Filter struct {
	predicates []Predicate
}

// Predicates returns the AND-composed predicates of the filter.
func (f Filter) Predicates() []Predicate {
	return f.predicates
}

// IsEmpty reports whether the filter matches everything, i.e. an unfiltered
// read should be performed.
func (f Filter) IsEmpty() bool {
	return len(f.predicates) == 0
}

// NotificationsFilter builds the fixed catch-up filter for pull-based
// notification queries: events named NotificationEventName, within the
// inclusive [from, until] window, addressed to the given user or to the
// wildcard recipient.
func NotificationsFilter(username string, from time.Time, until time.Time) Filter {
	return Filter{
		predicates: []Predicate{
			{field: FieldEventName, kind: MatchTextEquals, text: NotificationEventName},
			{field: FieldUsername, kind: MatchTextIn, texts: []string{username, WildcardUsername}},
			{field: FieldEventDate, kind: MatchDateRange, from: from, until: until},
		},
	}
}
