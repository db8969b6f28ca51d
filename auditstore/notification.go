package auditstore

import (
	"time"
)

// Body keys the notification projection reads. These are fixed by the
// producers that emit notification events; a body without them still projects,
// with empty subject/detail.
const (
	bodySubjectKey = "notificaFacultad"
	bodyDetailKey  = "datos"
)

// NotificationCorrelationID is the correlation marker stamped on events that
// arrive through the notification ingestion path.
const NotificationCorrelationID = "Notificación"

// Notification is a derived, non-persisted projection of an Event shaped for
// push delivery. It is created and discarded within a single push or catch-up
// cycle.
type Notification struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationFromEvent projects an Event into its push-delivery shape.
// The recipient is the event's username (possibly the wildcard sentinel),
// subject and detail come from the well-known body keys, and the timestamp
// is the event's creation instant.
func NotificationFromEvent(event Event) Notification {
	return Notification{
		Recipient: event.Username,
		Subject:   event.Body.StringAt(bodySubjectKey),
		Detail:    event.Body.StringAt(bodyDetailKey),
		Timestamp: event.EventDate,
	}
}
