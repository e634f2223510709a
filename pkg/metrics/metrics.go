package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event metrics
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_events_received_total",
			Help: "Total number of events read off a stream by host and event type",
		},
		[]string{"host", "type"},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_events_processed_total",
			Help: "Total number of events run through the processing loop by source",
		},
		[]string{"gerrit"},
	)

	EventsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_events_failed_total",
			Help: "Total number of events buffered because their target was inactive",
		},
		[]string{"host"},
	)

	EventsRequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_events_requeued_total",
			Help: "Total number of failed events moved back onto the main queue",
		},
		[]string{"host"},
	)

	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_parse_errors_total",
			Help: "Total number of stream lines that failed to parse",
		},
		[]string{"host"},
	)

	// Action metrics
	ActionsRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_actions_run_total",
			Help: "Total number of action invocations by action name",
		},
		[]string{"action"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoidberg_action_duration_seconds",
			Help:    "Action run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	StartupTasksPendingTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoidberg_startup_tasks_pending",
			Help: "Number of startup tasks waiting for their target to come up",
		},
	)

	// Connection metrics
	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_connections_total",
			Help: "Total number of successful SSH activations by host",
		},
		[]string{"host"},
	)

	StreamDisconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_stream_disconnects_total",
			Help: "Total number of event stream error stops by host",
		},
		[]string{"host"},
	)

	// Config metrics
	ConfigReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoidberg_config_reloads_total",
			Help: "Total number of config reload attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(EventsFailedTotal)
	prometheus.MustRegister(EventsRequeuedTotal)
	prometheus.MustRegister(ParseErrorsTotal)
	prometheus.MustRegister(ActionsRunTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(StartupTasksPendingTotal)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(StreamDisconnectsTotal)
	prometheus.MustRegister(ConfigReloadsTotal)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the elapsed time in a labeled histogram
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
