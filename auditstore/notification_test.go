package auditstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rlegorreta/audit-service/auditstore"
)

func Test_NotificationFromEvent_ProjectsTheWellKnownBodyKeys(t *testing.T) {
	eventDate := time.Date(2025, 8, 20, 16, 45, 0, 0, time.UTC)

	event := auditstore.NewEvent(
		auditstore.NotificationCorrelationID,
		auditstore.DBStore,
		"alice",
		auditstore.NotificationEventName,
		"banking",
		auditstore.Body{
			"notificaFacultad": "Treasury",
			"datos":            map[string]any{"mensaje": "saldo actualizado"},
		},
		eventDate,
	)

	notification := auditstore.NotificationFromEvent(event)

	assert.Equal(t, "alice", notification.Recipient)
	assert.Equal(t, "Treasury", notification.Subject)
	assert.JSONEq(t, `{"mensaje":"saldo actualizado"}`, notification.Detail)
	assert.Equal(t, eventDate, notification.Timestamp)
}

func Test_NotificationFromEvent_ToleratesMissingBodyKeys(t *testing.T) {
	event := auditstore.NewEvent(
		"corr-9",
		auditstore.DBStore,
		auditstore.WildcardUsername,
		auditstore.NotificationEventName,
		"banking",
		nil,
		time.Now(),
	)

	notification := auditstore.NotificationFromEvent(event)

	assert.Equal(t, auditstore.WildcardUsername, notification.Recipient)
	assert.Empty(t, notification.Subject)
	assert.Empty(t, notification.Detail)
}
