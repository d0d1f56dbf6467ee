package monitoring

import "time"

// Summary surfaces aggregated monitoring data for the admin metrics endpoint.
type Summary struct {
	GeneratedAt   time.Time           `json:"generated_at"`
	Realtime      RealtimeSummary     `json:"realtime"`
	Messages      MessageSummary      `json:"messages"`
	Notifications NotificationSummary `json:"notifications"`
	Backlog       BacklogSummary      `json:"backlog"`
	Maintenance   MaintenanceSummary  `json:"maintenance"`
}

type FailureRecord struct {
	Event    string    `json:"event"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type RealtimeSummary struct {
	ActiveConnections int64          `json:"active_connections"`
	Delivered         uint64         `json:"delivered"`
	Relayed           uint64         `json:"relayed"`
	Dropped           uint64         `json:"dropped"`
	Failures          uint64         `json:"failures"`
	LastFailure       *FailureRecord `json:"last_failure,omitempty"`
}

type MessageSummary struct {
	Sent     uint64 `json:"sent"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

type NotificationSummary struct {
	Pushed  uint64 `json:"pushed"`
	Offline uint64 `json:"offline"`
	Failed  uint64 `json:"failed"`
}

type BacklogSummary struct {
	UnreadMessages      int64 `json:"unread_messages"`
	UnreadNotifications int64 `json:"unread_notifications"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
