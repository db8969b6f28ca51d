package auditstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WildcardUsername is the sentinel recipient meaning "applies to all users".
const WildcardUsername = "*"

// NotificationEventName marks events that must also be pushed to live
// subscribers, in addition to being persisted like any other audit event.
const NotificationEventName = "NOTIFICATION"

var ErrUnknownEventType = errors.New("unknown event type")

// EventType is the storage disposition requested by the producing service.
type EventType int

const (
	FullStore EventType = iota // persist to the database and append to the audit file
	DBStore                    // persist to the database only
	FileStore                  // append to the audit file only
	ErrorEvent                 // persist to the database and report at error level
)

const (
	eventTypeFullStore  = "FULL_STORE"
	eventTypeDBStore    = "DB_STORE"
	eventTypeFileStore  = "FILE_STORE"
	eventTypeErrorEvent = "ERROR_EVENT"
)

// ParseEventType converts the wire representation of an event type into its
// enumerated value.
func ParseEventType(value string) (EventType, error) {
	switch value {
	case eventTypeFullStore:
		return FullStore, nil
	case eventTypeDBStore:
		return DBStore, nil
	case eventTypeFileStore:
		return FileStore, nil
	case eventTypeErrorEvent:
		return ErrorEvent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventType, value)
	}
}

// String returns the wire representation of the EventType.
func (t EventType) String() string {
	switch t {
	case FullStore:
		return eventTypeFullStore
	case DBStore:
		return eventTypeDBStore
	case FileStore:
		return eventTypeFileStore
	case ErrorEvent:
		return eventTypeErrorEvent
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the EventType as its wire representation.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the EventType from its wire representation.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseEventType(raw)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// Event is an immutable audit record, persisted once and never updated.
//
// ID is assigned at creation and is the identity of the record. Token is a
// sequence/version marker reserved for future ordering use; it stays 0.
// While the fields are exported for serialization, an Event should only be
// constructed with NewEvent.
type Event struct {
	ID              uuid.UUID `json:"id"`
	Token           int       `json:"token"`
	CorrelationID   string    `json:"correlationId"`
	EventType       EventType `json:"eventType"`
	Username        string    `json:"username"`
	EventName       string    `json:"eventName"`
	EventDate       time.Time `json:"eventDate"`
	ApplicationName string    `json:"applicationName"`
	Body            Body      `json:"eventBody"`
}

// NewEvent is the factory method for Event.
//
// It assigns a fresh ID, a zero Token and the given creation timestamp, which
// should come from the store clock at ingestion time.
func NewEvent(
	correlationID string,
	eventType EventType,
	username string,
	eventName string,
	applicationName string,
	body Body,
	eventDate time.Time,
) Event {

	return Event{
		ID:              uuid.New(),
		Token:           0,
		CorrelationID:   correlationID,
		EventType:       eventType,
		Username:        username,
		EventName:       eventName,
		EventDate:       eventDate,
		ApplicationName: applicationName,
		Body:            body,
	}
}

// IsNotification reports whether this event must also be pushed to live
// subscribers.
func (e Event) IsNotification() bool {
	return e.EventName == NotificationEventName
}

// Equal compares two events by identity.
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID
}

// ToJSON returns the event in JSON format, e.g. for the audit file sink.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
