package monitoring_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordRealtimeConnection(1)
	monitoring.RecordRealtimeConnection(1)
	monitoring.RecordRealtimeConnection(-1)
	monitoring.RecordRealtimeBroadcast("newMessage", "local")
	monitoring.RecordRealtimeBroadcast("notification", "relayed")
	monitoring.RecordRealtimeBroadcast("newMessage", "dropped")
	monitoring.RecordRealtimeFailure("newMessage", "backpressure", "send buffer full")
	monitoring.RecordMessageSent("success")
	monitoring.RecordMessageSent("rejected")
	monitoring.RecordNotificationDispatch("local")
	monitoring.RecordNotificationDispatch("dropped")
	monitoring.RecordNotificationDispatch("error")
	monitoring.SetUnreadBacklog(4, 2)
	monitoring.RecordMaintenanceRun("unread_backlog", "success", "", time.Second)

	summary := monitoring.Snapshot()
	require.Equal(t, int64(1), summary.Realtime.ActiveConnections)
	require.Equal(t, uint64(1), summary.Realtime.Delivered)
	require.Equal(t, uint64(1), summary.Realtime.Relayed)
	require.Equal(t, uint64(1), summary.Realtime.Dropped)
	require.Equal(t, uint64(1), summary.Realtime.Failures)
	require.NotNil(t, summary.Realtime.LastFailure)
	require.Equal(t, "newMessage", summary.Realtime.LastFailure.Event)
	require.Equal(t, uint64(1), summary.Messages.Sent)
	require.Equal(t, uint64(1), summary.Messages.Rejected)
	require.Equal(t, monitoring.NotificationSummary{Pushed: 1, Offline: 1, Failed: 1}, summary.Notifications)
	require.Equal(t, monitoring.BacklogSummary{UnreadMessages: 4, UnreadNotifications: 2}, summary.Backlog)
	require.Len(t, summary.Maintenance.Jobs, 1)
}

func TestRealtimeConnectionGaugeNeverNegative(t *testing.T) {
	setupModule(t)

	monitoring.RecordRealtimeConnection(-3)
	require.Equal(t, int64(0), monitoring.Snapshot().Realtime.ActiveConnections)
}

func TestHandlerExposesNamespacedMetrics(t *testing.T) {
	mod := setupModule(t)
	monitoring.RecordMessageSent("success")

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `mentorlink_messages_sent_total{result="success"} 1`))
}

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "redis", report.Checks[1].Component)
}

func TestHealthManagerOptionalChecksOnlyDegrade(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "job failing"}
	}).AsOptional())

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.True(t, report.Checks[1].Optional)
}

func TestHealthManagerRecoversPanicsAndTimesOut(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.SetCheckTimeout(20 * time.Millisecond)
	manager.RegisterLiveness(monitoring.NewCheck("panics", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))
	manager.RegisterLiveness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Contains(t, report.Checks[0].Details, "boom")
	require.Equal(t, monitoring.StatusDegraded, report.Checks[1].Status)
	require.Equal(t, monitoring.StatusDown, report.Status)
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	check := checks.Maintenance(0, "unread_backlog", "idle_sweep")
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "unread_backlog: pending first run")

	monitoring.RecordMaintenanceRun("unread_backlog", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("idle_sweep", "error", "timeout", time.Second)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "idle_sweep: last run failed")

	monitoring.RecordMaintenanceRun("idle_sweep", "error", "timeout", time.Second)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "2 consecutive failures")

	monitoring.RecordMaintenanceRun("idle_sweep", "success", "", time.Second)
	require.Equal(t, monitoring.StatusUp, checks.Maintenance(0).Run(context.Background()).Status)
}

func TestDatabaseCheck(t *testing.T) {
	require.Equal(t, monitoring.StatusDown, checks.Database(nil, 0).Run(context.Background()).Status)

	bare := testutil.MustOpenTestDB(t)
	result := checks.Database(bare, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "schema not migrated")

	migrated := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	result = checks.Database(migrated, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "open")
}

type connCounter int

func (c connCounter) ConnectionCount() int { return int(c) }

func TestRealtimeCheckDegradesOnRecentFailure(t *testing.T) {
	setupModule(t)

	result := checks.Realtime(connCounter(3)).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "3 connections")

	monitoring.RecordRealtimeFailure("notification", "backpressure", "slow consumer")
	result = checks.Realtime(connCounter(3)).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)

	result = checks.Realtime(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestRedisCheck(t *testing.T) {
	t.Parallel()

	require.Equal(t, monitoring.StatusUp, checks.Redis(nil, false, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusUp, checks.Redis(pinger{}, true, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, checks.Redis(pinger{err: errors.New("refused")}, true, 0).Run(context.Background()).Status)
	require.Nil(t, checks.RedisClient(nil))
}

func TestModuleLabelsDomainMetricsWithInstance(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{Instance: "replica-a", DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	require.Equal(t, "replica-a", mod.Instance())

	monitoring.RecordMessageSent("success")

	families, err := mod.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, family := range families {
		if family.GetName() != "mentorlink_messages_sent_total" {
			continue
		}
		found = true
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			require.Equal(t, "replica-a", labels["instance_id"])
		}
	}
	require.True(t, found)
}
