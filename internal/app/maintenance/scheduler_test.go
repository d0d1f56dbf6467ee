package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/services"
)

type counterFunc func(ctx context.Context) (int64, error)

func (f counterFunc) CountUnread(ctx context.Context) (int64, error) { return f(ctx) }

type fakeSweeper struct {
	calls   atomic.Int32
	maxIdle time.Duration
	closed  int
}

func (f *fakeSweeper) SweepIdle(maxIdle time.Duration) int {
	f.calls.Add(1)
	f.maxIdle = maxIdle
	return f.closed
}

func useFreshModule(t *testing.T) {
	t.Helper()
	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	previous := monitoring.CurrentModule()
	monitoring.SetModule(mod)
	t.Cleanup(func() { monitoring.SetModule(previous) })
}

func jobSummary(t *testing.T, job string) monitoring.MaintenanceJobSummary {
	t.Helper()
	for _, entry := range monitoring.Snapshot().Maintenance.Jobs {
		if entry.Job == job {
			return entry
		}
	}
	t.Fatalf("job %s not recorded", job)
	return monitoring.MaintenanceJobSummary{}
}

func TestRefreshBacklogPublishesUnreadCounts(t *testing.T) {
	useFreshModule(t)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mentor := testutil.MustCreateUser(t, db, "Bea Mentor", models.RoleMentor)
	mentee := testutil.MustCreateUser(t, db, "Ada Mentee", models.RoleMentee)
	req := testutil.MustCreateRequest(t, db, mentor.ID, mentee.ID, models.RequestAccepted)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	testutil.MustCreateMessage(t, db, req, mentee.ID, "Hello", base)
	testutil.MustCreateMessage(t, db, req, mentee.ID, "Are you there?", base.Add(time.Minute))
	testutil.MustCreateMessage(t, db, req, mentor.ID, "Yes", base.Add(2*time.Minute))

	messages, err := services.NewMessageService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)
	_, err = notifications.Create(context.Background(), services.CreateNotificationInput{
		UserID:  mentor.ID,
		Kind:    "MENTORSHIP_REQUEST",
		Message: "You have a new mentorship request",
	})
	require.NoError(t, err)

	_, err = messages.MarkMessagesAsRead(context.Background(), req.ID, mentor.ID)
	require.NoError(t, err)

	scheduler := NewScheduler(messages, notifications, nil)
	require.NoError(t, scheduler.RefreshBacklog(context.Background()))

	backlog := monitoring.Snapshot().Backlog
	require.Equal(t, int64(1), backlog.UnreadMessages)
	require.Equal(t, int64(1), backlog.UnreadNotifications)
	require.Equal(t, "success", jobSummary(t, JobUnreadBacklog).LastStatus)
}

func TestRefreshBacklogAggregatesErrors(t *testing.T) {
	useFreshModule(t)
	monitoring.SetUnreadBacklog(4, 2)

	failing := counterFunc(func(context.Context) (int64, error) { return 0, errors.New("db down") })
	scheduler := NewScheduler(failing, failing, nil)

	err := scheduler.RefreshBacklog(context.Background())
	require.ErrorContains(t, err, "count unread messages: db down")
	require.ErrorContains(t, err, "count unread notifications: db down")

	summary := jobSummary(t, JobUnreadBacklog)
	require.Equal(t, "error", summary.LastStatus)
	require.Equal(t, uint64(1), summary.ConsecutiveFailures)

	backlog := monitoring.Snapshot().Backlog
	require.Equal(t, int64(4), backlog.UnreadMessages, "gauges keep the last good value")
	require.Equal(t, int64(2), backlog.UnreadNotifications)
}

func TestSweepIdleUsesConfiguredTimeout(t *testing.T) {
	useFreshModule(t)

	sweeper := &fakeSweeper{closed: 2}
	scheduler := NewScheduler(nil, nil, sweeper, WithIdleTimeout(3*time.Minute))

	require.Equal(t, 2, scheduler.SweepIdle())
	require.Equal(t, 3*time.Minute, sweeper.maxIdle)
	require.Equal(t, "success", jobSummary(t, JobIdleSweep).LastStatus)
}

func TestRunOnceRunsEnabledJobs(t *testing.T) {
	useFreshModule(t)

	var counted atomic.Int32
	counter := counterFunc(func(context.Context) (int64, error) {
		counted.Add(1)
		return 3, nil
	})
	sweeper := &fakeSweeper{}

	scheduler := NewScheduler(counter, nil, sweeper)
	require.NoError(t, scheduler.RunOnce(context.Background()))
	require.Equal(t, int32(1), counted.Load())
	require.Equal(t, int32(1), sweeper.calls.Load())
	require.Equal(t, defaultIdleTimeout, sweeper.maxIdle)
	require.Equal(t, int64(3), monitoring.Snapshot().Backlog.UnreadMessages)
}

func TestStartRegistersJobs(t *testing.T) {
	useFreshModule(t)

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	scheduler := NewScheduler(
		counterFunc(func(context.Context) (int64, error) { return 0, nil }),
		nil,
		&fakeSweeper{},
		WithCron(c),
		WithBacklogSchedule("@every 1h"),
		WithSweepSchedule("@every 2h"),
	)
	require.NoError(t, scheduler.Start())
	require.Len(t, c.Entries(), 2)

	ctx := scheduler.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	scheduler := NewScheduler(nil, nil, &fakeSweeper{}, WithSweepSchedule("not a schedule"))
	require.ErrorContains(t, scheduler.Start(), JobIdleSweep)
}

func TestStartWithoutJobsIsNoop(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	scheduler := NewScheduler(nil, nil, nil, WithCron(c))
	require.NoError(t, scheduler.Start())
	require.Empty(t, c.Entries())
	scheduler.Stop()
}
