package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricSet holds every domain collector. Runtime collectors are registered separately.
type metricSet struct {
	apiLatency              *prometheus.HistogramVec
	realtimeConnections     prometheus.Gauge
	realtimeBroadcasts      *prometheus.CounterVec
	realtimeFailures        *prometheus.CounterVec
	messagesSent            *prometheus.CounterVec
	notificationsDispatched *prometheus.CounterVec
	unreadMessages          prometheus.Gauge
	unreadNotifications     prometheus.Gauge
	maintenanceRuns         *prometheus.CounterVec
	maintenanceDuration     *prometheus.HistogramVec
	maintenanceLastRun      *prometheus.GaugeVec
}

func newMetricSet(ns string) *metricSet {
	return &metricSet{
		apiLatency:              histogramVec(ns, "api_latency_seconds", "API endpoint latency", "method", "path", "status"),
		realtimeConnections:     gauge(ns, "realtime_connections", "Active realtime websocket connections"),
		realtimeBroadcasts:      counterVec(ns, "realtime_broadcasts_total", "Realtime events emitted, by event and delivery path", "event", "delivery"),
		realtimeFailures:        counterVec(ns, "realtime_failures_total", "Realtime delivery or protocol failures", "event", "type"),
		messagesSent:            counterVec(ns, "messages_sent_total", "sendMessage commands by outcome", "result"),
		notificationsDispatched: counterVec(ns, "notifications_dispatched_total", "Persisted notifications by realtime delivery outcome", "delivery"),
		unreadMessages:          gauge(ns, "unread_messages", "Messages not yet read by their receiver"),
		unreadNotifications:     gauge(ns, "unread_notifications", "Notifications not yet read by their owner"),
		maintenanceRuns:         counterVec(ns, "maintenance_runs_total", "Maintenance job executions", "job", "result"),
		maintenanceDuration:     histogramVec(ns, "maintenance_duration_seconds", "Maintenance job duration", "job"),
		maintenanceLastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "maintenance_last_success_timestamp",
			Help:      "Unix timestamp of the last successful maintenance run",
		}, []string{"job"}),
	}
}

func (m *metricSet) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.apiLatency,
		m.realtimeConnections,
		m.realtimeBroadcasts,
		m.realtimeFailures,
		m.messagesSent,
		m.notificationsDispatched,
		m.unreadMessages,
		m.unreadNotifications,
		m.maintenanceRuns,
		m.maintenanceDuration,
		m.maintenanceLastRun,
	}
}

func counterVec(ns, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, labels)
}

func histogramVec(ns, name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: prometheus.DefBuckets}, labels)
}

func gauge(ns, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help})
}

func observeDuration(observer prometheus.Observer, duration time.Duration) {
	if observer == nil {
		return
	}
	observer.Observe(max(duration, 0).Seconds())
}
