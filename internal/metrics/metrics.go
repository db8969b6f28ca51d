package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rlegorreta/audit-service/auditstore"
)

var (
	initOnce sync.Once

	eventsIngestedCounter         *prometheus.CounterVec
	notificationsPublishedCounter prometheus.Counter
	notificationsDroppedCounter   prometheus.Counter
	activeSubscribersGauge        prometheus.Gauge
	storeQueryDurationHistogram   *prometheus.HistogramVec
	storeDatabaseErrorsCounter    *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		eventsIngestedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_ingested_total",
				Help: "Total number of audit events ingested by storage disposition.",
			},
			[]string{"disposition"},
		)

		notificationsPublishedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_notifications_published_total",
				Help: "Total number of notifications fanned out to subscribers.",
			},
		)

		notificationsDroppedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_notifications_dropped_total",
				Help: "Total number of notifications dropped for slow subscribers.",
			},
		)

		activeSubscribersGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_notification_subscribers",
				Help: "Number of active live-notification subscribers.",
			},
		)

		storeQueryDurationHistogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditstore_query_duration_seconds",
				Help:    "Duration of audit store operations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		)

		storeDatabaseErrorsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditstore_database_errors_total",
				Help: "Total number of audit store database errors.",
			},
			[]string{"operation", "status"},
		)

		prometheus.MustRegister(
			eventsIngestedCounter,
			notificationsPublishedCounter,
			notificationsDroppedCounter,
			activeSubscribersGauge,
			storeQueryDurationHistogram,
			storeDatabaseErrorsCounter,
		)
	})
}

func IncEventIngested(disposition string) {
	Init()
	eventsIngestedCounter.WithLabelValues(disposition).Inc()
}

func IncNotificationPublished() {
	Init()
	notificationsPublishedCounter.Inc()
}

func IncNotificationDropped() {
	Init()
	notificationsDroppedCounter.Inc()
}

func SetActiveSubscribers(count int) {
	Init()
	activeSubscribersGauge.Set(float64(count))
}

// StoreCollector implements auditstore.MetricsCollector on top of the
// Prometheus registry, so the store engine's dependency-free metrics land on
// /metrics alongside the service metrics.
type StoreCollector struct{}

var _ auditstore.MetricsCollector = StoreCollector{}

func (StoreCollector) RecordDuration(_ string, duration time.Duration, labels map[string]string) {
	Init()
	storeQueryDurationHistogram.
		WithLabelValues(labels["operation"], labels["status"]).
		Observe(duration.Seconds())
}

func (StoreCollector) IncrementCounter(_ string, labels map[string]string) {
	Init()
	storeDatabaseErrorsCounter.
		WithLabelValues(labels["operation"], labels["status"]).
		Inc()
}

// RecordValue is part of the collector interface; the store engine currently
// records no gauge-style values.
func (StoreCollector) RecordValue(string, float64, map[string]string) {}
