package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	realtimeConnections atomic.Int64
	realtimeLocal       atomic.Uint64
	realtimeRelayed     atomic.Uint64
	realtimeDropped     atomic.Uint64
	realtimeFailures    atomic.Uint64
	realtimeLastFailure atomic.Value // *FailureRecord

	messagesSent     atomic.Uint64
	messagesRejected atomic.Uint64
	messagesFailed   atomic.Uint64

	notificationsPushed  atomic.Uint64
	notificationsOffline atomic.Uint64
	notificationsFailed  atomic.Uint64

	unreadMessages      atomic.Int64
	unreadNotifications atomic.Int64

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	store := &statStore{}
	store.realtimeLastFailure.Store((*FailureRecord)(nil))
	return store
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		job := key.(string)
		stats := value.(*maintenanceStats)
		summaries = append(summaries, stats.snapshot(job))
		return true
	})
	return summaries
}

func (s *statStore) summary() Summary {
	lastFailure, _ := s.realtimeLastFailure.Load().(*FailureRecord)

	return Summary{
		GeneratedAt: time.Now(),
		Realtime: RealtimeSummary{
			ActiveConnections: s.realtimeConnections.Load(),
			Delivered:         s.realtimeLocal.Load(),
			Relayed:           s.realtimeRelayed.Load(),
			Dropped:           s.realtimeDropped.Load(),
			Failures:          s.realtimeFailures.Load(),
			LastFailure:       lastFailure,
		},
		Messages: MessageSummary{
			Sent:     s.messagesSent.Load(),
			Rejected: s.messagesRejected.Load(),
			Failed:   s.messagesFailed.Load(),
		},
		Notifications: NotificationSummary{
			Pushed:  s.notificationsPushed.Load(),
			Offline: s.notificationsOffline.Load(),
			Failed:  s.notificationsFailed.Load(),
		},
		Backlog: BacklogSummary{
			UnreadMessages:      s.unreadMessages.Load(),
			UnreadNotifications: s.unreadNotifications.Load(),
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) recordRealtimeConnection(delta int64) {
	newValue := s.realtimeConnections.Add(delta)
	if newValue < 0 {
		s.realtimeConnections.Store(0)
	}
}

func (s *statStore) recordRealtimeBroadcast(delivery string) {
	switch delivery {
	case "local":
		s.realtimeLocal.Add(1)
	case "relayed":
		s.realtimeRelayed.Add(1)
	default:
		s.realtimeDropped.Add(1)
	}
}

func (s *statStore) recordRealtimeFailure(record FailureRecord) {
	s.realtimeFailures.Add(1)
	cloned := record
	s.realtimeLastFailure.Store(&cloned)
}

func (s *statStore) recordMessage(result string) {
	switch result {
	case "success":
		s.messagesSent.Add(1)
	case "rejected":
		s.messagesRejected.Add(1)
	default:
		s.messagesFailed.Add(1)
	}
}

func (s *statStore) recordNotification(delivery string) {
	switch delivery {
	case "local", "relayed":
		s.notificationsPushed.Add(1)
	case "dropped", "offline":
		s.notificationsOffline.Add(1)
	default:
		s.notificationsFailed.Add(1)
	}
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	stats := &maintenanceStats{}
	actual, _ := s.maintenance.LoadOrStore(job, stats)
	return actual.(*maintenanceStats)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "success":
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
	default:
		m.consecutiveFailures.Add(1)
		m.consecutiveSuccesses.Store(0)
	}
}
