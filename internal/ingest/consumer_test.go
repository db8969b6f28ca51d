package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/internal/ingest"
)

type stubSaver struct {
	saved []auditstore.Event
	err   error
}

func (s *stubSaver) Save(_ context.Context, event auditstore.Event) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, event)
	return nil
}

type stubPublisher struct {
	published []auditstore.Event
}

func (p *stubPublisher) Publish(event auditstore.Event) {
	p.published = append(p.published, event)
}

func fixedClock() time.Time {
	return time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)
}

func newTestConsumer(t *testing.T, saver *stubSaver, publisher *stubPublisher, options ...ingest.Option) *ingest.Consumer {
	t.Helper()

	options = append(options, ingest.WithClock(fixedClock))

	return ingest.NewConsumer(nil, saver, publisher, nil, options...)
}

func Test_ProcessEvent_DBStorePersistsOnly(t *testing.T) {
	saver := &stubSaver{}
	consumer := newTestConsumer(t, saver, &stubPublisher{}, ingest.WithFilePath(t.TempDir()))

	payload := []byte(`{
		"correlationId": "corr-1",
		"eventType": "DB_STORE",
		"username": "alice",
		"eventName": "LOGIN",
		"applicationName": "banking",
		"eventBody": {"ip": "10.0.0.1"}
	}`)

	require.NoError(t, consumer.ProcessEvent(context.Background(), payload))

	require.Len(t, saver.saved, 1)
	event := saver.saved[0]
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, auditstore.DBStore, event.EventType)
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, fixedClock(), event.EventDate)
	assert.Equal(t, "10.0.0.1", event.Body.StringAt("ip"))
}

func Test_ProcessEvent_FullStoreAlsoAppendsToTheAuditFile(t *testing.T) {
	dir := t.TempDir()
	saver := &stubSaver{}
	consumer := newTestConsumer(t, saver, &stubPublisher{}, ingest.WithFilePath(dir))

	payload := []byte(`{
		"correlationId": "corr-2",
		"eventType": "FULL_STORE",
		"username": "bob",
		"eventName": "TRANSFER",
		"applicationName": "banking",
		"eventBody": {"amount": 100}
	}`)

	require.NoError(t, consumer.ProcessEvent(context.Background(), payload))
	require.Len(t, saver.saved, 1)

	content, readErr := os.ReadFile(filepath.Join(dir, "banking.txt"))
	require.NoError(t, readErr)
	assert.Contains(t, string(content), `"eventName":"TRANSFER"`)
	assert.Contains(t, string(content), saver.saved[0].ID.String())
}

func Test_ProcessEvent_FileStoreSkipsTheDatabase(t *testing.T) {
	dir := t.TempDir()
	saver := &stubSaver{}
	consumer := newTestConsumer(t, saver, &stubPublisher{}, ingest.WithFilePath(dir))

	payload := []byte(`{
		"correlationId": "corr-3",
		"eventType": "FILE_STORE",
		"username": "bob",
		"eventName": "PING",
		"applicationName": "monitor",
		"eventBody": null
	}`)

	require.NoError(t, consumer.ProcessEvent(context.Background(), payload))

	assert.Empty(t, saver.saved)
	_, statErr := os.Stat(filepath.Join(dir, "monitor.txt"))
	assert.NoError(t, statErr)
}

func Test_ProcessEvent_ErrorEventStillPersists(t *testing.T) {
	saver := &stubSaver{}
	consumer := newTestConsumer(t, saver, &stubPublisher{})

	payload := []byte(`{
		"correlationId": "corr-4",
		"eventType": "ERROR_EVENT",
		"username": "system",
		"eventName": "CRASH",
		"applicationName": "banking",
		"eventBody": {"stack": "..."}
	}`)

	require.NoError(t, consumer.ProcessEvent(context.Background(), payload))
	require.Len(t, saver.saved, 1)
	assert.Equal(t, auditstore.ErrorEvent, saver.saved[0].EventType)
}

func Test_ProcessEvent_RejectsMalformedInput(t *testing.T) {
	consumer := newTestConsumer(t, &stubSaver{}, &stubPublisher{})

	assert.Error(t, consumer.ProcessEvent(context.Background(), []byte(`{broken`)))

	unknownType := []byte(`{"eventType": "MEMORY_STORE", "eventName": "X", "applicationName": "y"}`)
	err := consumer.ProcessEvent(context.Background(), unknownType)
	assert.ErrorIs(t, err, auditstore.ErrUnknownEventType)
}

func Test_ProcessEvent_PropagatesSaveErrors(t *testing.T) {
	saver := &stubSaver{err: auditstore.ErrStoreUnavailable}
	consumer := newTestConsumer(t, saver, &stubPublisher{})

	payload := []byte(`{
		"correlationId": "corr-5",
		"eventType": "DB_STORE",
		"username": "alice",
		"eventName": "LOGIN",
		"applicationName": "banking"
	}`)

	err := consumer.ProcessEvent(context.Background(), payload)
	assert.ErrorIs(t, err, auditstore.ErrStoreUnavailable)
}

func Test_ProcessNotification_PersistsThenPublishes(t *testing.T) {
	saver := &stubSaver{}
	publisher := &stubPublisher{}
	consumer := newTestConsumer(t, saver, publisher)

	payload := []byte(`{
		"correlationId": "ignored-by-the-notify-path",
		"eventType": "DB_STORE",
		"username": "carol",
		"eventName": "NOTIFICATION",
		"applicationName": "banking",
		"eventBody": {"notificaFacultad": "Treasury", "datos": {"mensaje": "hola"}}
	}`)

	require.NoError(t, consumer.ProcessNotification(context.Background(), payload))

	require.Len(t, saver.saved, 1)
	require.Len(t, publisher.published, 1)

	stored := saver.saved[0]
	assert.Equal(t, auditstore.NotificationCorrelationID, stored.CorrelationID)
	assert.True(t, stored.IsNotification())
	assert.True(t, publisher.published[0].Equal(stored))
}

func Test_ProcessNotification_DoesNotPublishWhenSaveFails(t *testing.T) {
	saver := &stubSaver{err: errors.New("insert failed")}
	publisher := &stubPublisher{}
	consumer := newTestConsumer(t, saver, publisher)

	payload := []byte(`{
		"eventType": "DB_STORE",
		"username": "carol",
		"eventName": "NOTIFICATION",
		"applicationName": "banking"
	}`)

	assert.Error(t, consumer.ProcessNotification(context.Background(), payload))
	assert.Empty(t, publisher.published)
}
