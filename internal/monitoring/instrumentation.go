package monitoring

import (
	"strings"
	"time"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordRealtimeConnection adjusts the websocket connection gauge.
func RecordRealtimeConnection(delta int64) {
	module := ensureModule()
	if module == nil {
		return
	}
	if delta == 0 {
		return
	}
	module.metrics.realtimeConnections.Add(float64(delta))
	module.stats.recordRealtimeConnection(delta)
	if module.stats.realtimeConnections.Load() < 0 {
		module.stats.realtimeConnections.Store(0)
		module.metrics.realtimeConnections.Set(0)
	}
}

// RecordRealtimeBroadcast counts an emitted event. delivery is "local", "relayed" or "dropped".
func RecordRealtimeBroadcast(event, delivery string) {
	module := ensureModule()
	if module == nil {
		return
	}
	event = normalizeEvent(event)
	delivery = normalizeLabel(delivery)
	module.metrics.realtimeBroadcasts.WithLabelValues(event, delivery).Inc()
	module.stats.recordRealtimeBroadcast(delivery)
}

// RecordRealtimeFailure snapshots a realtime failure occurrence.
func RecordRealtimeFailure(event, failureType, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	event = normalizeEvent(event)
	failureType = normalizeLabel(failureType)
	module.metrics.realtimeFailures.WithLabelValues(event, failureType).Inc()
	module.stats.recordRealtimeFailure(FailureRecord{
		Event:    event,
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordMessageSent counts sendMessage outcomes: "success", "rejected" or "error".
func RecordMessageSent(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.messagesSent.WithLabelValues(label).Inc()
	module.stats.recordMessage(label)
}

// RecordNotificationDispatch counts persisted notifications by how the push went.
func RecordNotificationDispatch(delivery string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(delivery)
	module.metrics.notificationsDispatched.WithLabelValues(label).Inc()
	module.stats.recordNotification(label)
}

// SetUnreadBacklog publishes the unread message and notification totals.
func SetUnreadBacklog(messages, notifications int64) {
	module := ensureModule()
	if module == nil {
		return
	}
	if messages < 0 {
		messages = 0
	}
	if notifications < 0 {
		notifications = 0
	}
	module.metrics.unreadMessages.Set(float64(messages))
	module.metrics.unreadNotifications.Set(float64(notifications))
	module.stats.unreadMessages.Store(messages)
	module.stats.unreadNotifications.Store(notifications)
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	stats := module.stats.maintenanceEntry(jobID)
	stats.record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

// event names are camelCase on the wire, so they are not lowercased
func normalizeEvent(event string) string {
	event = strings.TrimSpace(event)
	if event == "" {
		return "unknown"
	}
	return event
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	return normalizePath(path)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
