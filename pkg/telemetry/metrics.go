package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamfeed_messages_appended_total",
		Help: "Messages appended to a conversation scope.",
	}, []string{"entity_type"})

	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_messages_deleted_total",
		Help: "Messages hard-deleted from a conversation scope.",
	})

	PinOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamfeed_pin_ops_total",
		Help: "Pin and unpin operations by outcome.",
	}, []string{"op", "outcome"})

	MarkReadOps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_mark_read_total",
		Help: "mark-read operations applied.",
	})

	NotificationsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_notifications_dispatched_total",
		Help: "Notifications handed to the delivery sink.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_notifications_failed_total",
		Help: "Notification deliveries that returned an error (swallowed).",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full.",
	})

	PinInvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamfeed_pin_invariant_violations_total",
		Help: "Scopes observed by the sweeper with more than one pinned message.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamfeed_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler { return promhttp.Handler() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request durations on the default registry.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
