package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/internal/metrics"
)

// DefaultSubscriberBuffer is the per-subscriber delivery queue size.
const DefaultSubscriberBuffer = 32

// recentWindow is how far back the pull-based catch-up query reaches.
// The lower bound (now − 7 days) is inclusive.
const recentWindow = 7 * 24 * time.Hour

// RecentFinder is the slice of the store boundary the broadcaster needs for
// catch-up queries.
type RecentFinder interface {
	FindAll(ctx context.Context, filter auditstore.Filter) ([]auditstore.Event, error)
}

// Broadcaster fans newly stored notification events out to live subscribers
// and serves the pull-based catch-up query for recently missed ones.
//
// Delivery is best-effort: each subscriber has a bounded queue, and when it is
// full the oldest undelivered notification for that subscriber is dropped so
// that one slow consumer never stalls the publisher or its peers. Drops are
// counted as a metric, not surfaced as errors.
//
// The broadcaster owns its subscriber registry: it is created at service
// start and torn down with Close at shutdown.
type Broadcaster struct {
	store  RecentFinder
	logger *slog.Logger
	buffer int
	now    func() time.Time

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan auditstore.Notification
	closed bool
}

// Option defines a functional option for configuring the Broadcaster.
type Option func(*Broadcaster)

// WithBuffer sets the per-subscriber delivery queue size.
func WithBuffer(size int) Option {
	return func(b *Broadcaster) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// WithClock overrides the clock used for the catch-up window. Tests use this
// to pin "now".
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.now = now
	}
}

// NewBroadcaster creates a broadcaster with an empty subscriber registry.
func NewBroadcaster(store RecentFinder, logger *slog.Logger, options ...Option) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broadcaster{
		store:  store,
		logger: logger,
		buffer: DefaultSubscriberBuffer,
		now:    time.Now,
		subs:   make(map[*subscriber]struct{}),
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// Publish pushes the event to every active subscriber if it qualifies as a
// notification; other events are ignored. Publish never blocks on a slow
// subscriber: a full queue drops its oldest entry and the event still counts
// as published.
//
// The caller must have persisted the event before publishing, so that a
// client reacting to the push can immediately read it back.
func (b *Broadcaster) Publish(event auditstore.Event) {
	if !event.IsNotification() {
		return
	}

	notification := auditstore.NotificationFromEvent(event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	delivered := 0
	for sub := range b.subs {
		if dropped := sub.deliver(notification); dropped {
			metrics.IncNotificationDropped()
			b.logger.Debug("notification dropped for slow subscriber", "recipient", notification.Recipient)
		}
		delivered++
	}

	metrics.IncNotificationPublished()
	b.logger.Debug("notification published", "recipient", notification.Recipient, "subscribers", delivered)
}

// deliver enqueues the notification, evicting the oldest queued entry when
// the queue is full. Returns whether anything was dropped.
func (s *subscriber) deliver(notification auditstore.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	dropped := false

	for {
		select {
		case s.ch <- notification:
			return dropped
		default:
		}

		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its live notification
// stream plus a cancel function. The stream never completes on its own; it
// only ends when the subscriber cancels, and a cancelled subscriber must
// re-subscribe (missing anything published in between — that gap is covered
// by RecentForUser). Cancel is idempotent.
func (b *Broadcaster) Subscribe() (<-chan auditstore.Notification, func()) {
	sub := &subscriber{ch: make(chan auditstore.Notification, b.buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	subscribers := len(b.subs)
	b.mu.Unlock()

	metrics.SetActiveSubscribers(subscribers)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(sub)
			sub.close()
		})
	}

	return sub.ch, cancel
}

func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	subscribers := len(b.subs)
	b.mu.Unlock()

	metrics.SetActiveSubscribers(subscribers)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}

// SubscriberCount reports the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Close cancels all subscribers and rejects further deliveries.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*subscriber]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	metrics.SetActiveSubscribers(0)
}

// RecentForUser returns notifications from the last seven days addressed to
// the given user or to the wildcard recipient, in the store's natural order.
func (b *Broadcaster) RecentForUser(ctx context.Context, username string) ([]auditstore.Notification, error) {
	now := b.now()
	filter := auditstore.NotificationsFilter(username, now.Add(-recentWindow), now)

	events, err := b.store.FindAll(ctx, filter)
	if err != nil {
		b.logger.Error("recent notifications query failed", "username", username, "error", err)
		return nil, err
	}

	notifications := make([]auditstore.Notification, 0, len(events))
	for _, event := range events {
		notifications = append(notifications, auditstore.NotificationFromEvent(event))
	}

	return notifications, nil
}
