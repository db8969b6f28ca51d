package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/internal/metrics"
)

// Bus subjects the consumer listens on. Producers publish plain audit events
// on the audit subject and notification events on the notify subject.
const (
	DefaultAuditSubject  = "audit"
	DefaultNotifySubject = "notify"
)

const defaultProcessTimeout = 10 * time.Second

// EventDTO is the wire shape producers publish on the bus. The event id and
// creation timestamp are assigned here, at ingestion time, not by producers.
type EventDTO struct {
	CorrelationID   string          `json:"correlationId"`
	EventType       string          `json:"eventType"`
	Username        string          `json:"username"`
	EventName       string          `json:"eventName"`
	ApplicationName string          `json:"applicationName"`
	EventBody       auditstore.Body `json:"eventBody"`
}

// Saver is the slice of the store boundary the consumer needs.
type Saver interface {
	Save(ctx context.Context, event auditstore.Event) error
}

// Publisher receives persisted notification events for live fan-out.
type Publisher interface {
	Publish(event auditstore.Event)
}

// Consumer subscribes to the bus subjects and turns incoming EventDTOs into
// persisted events. Notification events are additionally handed to the
// Publisher — always after persistence, so a client reacting to the push can
// immediately read the event back through a query.
type Consumer struct {
	conn          *nats.Conn
	store         Saver
	publisher     Publisher
	logger        *slog.Logger
	filePath      string
	auditSubject  string
	notifySubject string
	timeout       time.Duration
	now           func() time.Time

	subscriptions []*nats.Subscription
}

// Option defines a functional option for configuring the Consumer.
type Option func(*Consumer)

// WithSubjects overrides the bus subjects.
func WithSubjects(audit string, notify string) Option {
	return func(c *Consumer) {
		if audit != "" {
			c.auditSubject = audit
		}
		if notify != "" {
			c.notifySubject = notify
		}
	}
}

// WithFilePath sets the directory for the audit file sink. Empty disables
// file storage; events requesting it fall back to database-only with a
// warning.
func WithFilePath(path string) Option {
	return func(c *Consumer) {
		c.filePath = path
	}
}

// WithProcessTimeout bounds the persistence of a single incoming event.
func WithProcessTimeout(timeout time.Duration) Option {
	return func(c *Consumer) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithClock overrides the ingestion clock, which stamps event dates.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) {
		c.now = now
	}
}

// NewConsumer creates a consumer over an established bus connection.
func NewConsumer(conn *nats.Conn, store Saver, publisher Publisher, logger *slog.Logger, options ...Option) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Consumer{
		conn:          conn,
		store:         store,
		publisher:     publisher,
		logger:        logger,
		auditSubject:  DefaultAuditSubject,
		notifySubject: DefaultNotifySubject,
		timeout:       defaultProcessTimeout,
		now:           time.Now,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Start subscribes to both subjects. Flush ensures the subscriptions are
// registered on the server before returning, so messages published on other
// connections are routed.
func (c *Consumer) Start() error {
	auditSub, auditErr := c.conn.Subscribe(c.auditSubject, func(msg *nats.Msg) {
		c.handle(msg.Data, c.ProcessEvent)
	})
	if auditErr != nil {
		return fmt.Errorf("subscribing to %s: %w", c.auditSubject, auditErr)
	}
	c.subscriptions = append(c.subscriptions, auditSub)

	notifySub, notifyErr := c.conn.Subscribe(c.notifySubject, func(msg *nats.Msg) {
		c.handle(msg.Data, c.ProcessNotification)
	})
	if notifyErr != nil {
		c.Stop()
		return fmt.Errorf("subscribing to %s: %w", c.notifySubject, notifyErr)
	}
	c.subscriptions = append(c.subscriptions, notifySub)

	if flushErr := c.conn.Flush(); flushErr != nil {
		c.Stop()
		return fmt.Errorf("flushing subscriptions: %w", flushErr)
	}

	c.logger.Info("ingestion started", "audit_subject", c.auditSubject, "notify_subject", c.notifySubject)

	return nil
}

// Stop unsubscribes from the bus. In-flight handlers run to completion.
func (c *Consumer) Stop() {
	for _, sub := range c.subscriptions {
		_ = sub.Unsubscribe()
	}

	c.subscriptions = nil
}

func (c *Consumer) handle(data []byte, process func(ctx context.Context, data []byte) error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := process(ctx, data); err != nil {
		c.logger.Error("event processing failed", "error", err)
	}
}

// ProcessEvent stores one incoming audit event according to its storage
// disposition: DBStore persists, FileStore appends to the per-application
// audit file, FullStore does both, ErrorEvent persists and reports at error
// level.
func (c *Consumer) ProcessEvent(ctx context.Context, data []byte) error {
	event, decodeErr := c.decodeEvent(data)
	if decodeErr != nil {
		return decodeErr
	}

	switch event.EventType {
	case auditstore.FullStore:
		if err := c.store.Save(ctx, event); err != nil {
			return err
		}
		c.writeToFile(event)

	case auditstore.DBStore:
		if err := c.store.Save(ctx, event); err != nil {
			return err
		}

	case auditstore.FileStore:
		c.writeToFile(event)

	case auditstore.ErrorEvent:
		if err := c.store.Save(ctx, event); err != nil {
			return err
		}
		c.logger.Error("error event received",
			"event_name", event.EventName,
			"application", event.ApplicationName,
			"correlation_id", event.CorrelationID,
		)
	}

	metrics.IncEventIngested(event.EventType.String())
	c.logger.Debug("event ingested", "event_id", event.ID.String(), "event_name", event.EventName)

	return nil
}

// ProcessNotification persists one incoming notification event and then
// publishes it to live subscribers. Persistence happens-before broadcast;
// if the save fails nothing is pushed.
func (c *Consumer) ProcessNotification(ctx context.Context, data []byte) error {
	event, decodeErr := c.decodeEvent(data)
	if decodeErr != nil {
		return decodeErr
	}

	event.CorrelationID = auditstore.NotificationCorrelationID

	if err := c.store.Save(ctx, event); err != nil {
		return err
	}

	c.publisher.Publish(event)
	metrics.IncEventIngested(event.EventType.String())

	return nil
}

func (c *Consumer) decodeEvent(data []byte) (auditstore.Event, error) {
	var dto EventDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return auditstore.Event{}, fmt.Errorf("decoding event dto: %w", err)
	}

	eventType, typeErr := auditstore.ParseEventType(dto.EventType)
	if typeErr != nil {
		return auditstore.Event{}, typeErr
	}

	event := auditstore.NewEvent(
		dto.CorrelationID,
		eventType,
		dto.Username,
		dto.EventName,
		dto.ApplicationName,
		dto.EventBody,
		c.now().UTC(),
	)

	return event, nil
}

// writeToFile appends the event as one JSON line to
// <filePath>/<ApplicationName>.txt. File sink failures are logged and
// swallowed; the database copy, when requested, has already been written.
func (c *Consumer) writeToFile(event auditstore.Event) {
	if c.filePath == "" {
		c.logger.Warn("file storage requested but no file path configured", "application", event.ApplicationName)
		return
	}

	line, encodeErr := event.ToJSON()
	if encodeErr != nil {
		c.logger.Error("encoding event for audit file failed", "error", encodeErr)
		return
	}

	name := filepath.Join(c.filePath, event.ApplicationName+".txt")

	file, openErr := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		c.logger.Error("opening audit file failed", "file", name, "error", openErr)
		return
	}

	_, writeErr := file.Write(append(line, '\n'))
	closeErr := file.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		c.logger.Error("writing audit file failed", "file", name, "error", err)
	}
}
