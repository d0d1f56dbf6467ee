package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/pkg/logger"
)

const (
	JobUnreadBacklog = "unread_backlog"
	JobIdleSweep     = "idle_sweep"

	defaultBacklogSpec = "@every 1m"
	defaultSweepSpec   = "@every 5m"
	defaultIdleTimeout = 10 * time.Minute
)

// UnreadCounter reports the number of unread rows across all users.
type UnreadCounter interface {
	CountUnread(ctx context.Context) (int64, error)
}

// IdleSweeper closes realtime connections that have been silent for longer than maxIdle.
type IdleSweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// Scheduler coordinates background maintenance: publishing the unread backlog gauges and
// closing idle websocket connections.
type Scheduler struct {
	messages      UnreadCounter
	notifications UnreadCounter
	sweeper       IdleSweeper
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	idleTimeout     time.Duration
	backlogSchedule string
	sweepSchedule   string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used to time job runs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBacklogSchedule overrides the cron expression for the unread backlog job.
func WithBacklogSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.backlogSchedule = spec
		}
	}
}

// WithSweepSchedule overrides the cron expression for the idle connection sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.sweepSchedule = spec
		}
	}
}

// WithIdleTimeout sets how long a connection may stay silent before the sweep closes it.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.idleTimeout = timeout
		}
	}
}

// NewScheduler constructs a Scheduler. A nil dependency disables the job that needs it.
func NewScheduler(messages, notifications UnreadCounter, sweeper IdleSweeper, opts ...Option) *Scheduler {
	s := &Scheduler{
		messages:        messages,
		notifications:   notifications,
		sweeper:         sweeper,
		now:             time.Now,
		idleTimeout:     defaultIdleTimeout,
		backlogSchedule: defaultBacklogSpec,
		sweepSchedule:   defaultSweepSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

func (s *Scheduler) backlogEnabled() bool {
	return s.messages != nil || s.notifications != nil
}

// Start registers the jobs with the cron scheduler and launches it if any job is enabled.
func (s *Scheduler) Start() error {
	enabled := false

	if s.backlogEnabled() {
		if _, err := s.cron.AddFunc(s.backlogSchedule, func() {
			if err := s.RefreshBacklog(context.Background()); err != nil {
				s.log.Warn("unread backlog refresh failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobUnreadBacklog, err)
		}
		enabled = true
	}

	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.sweepSchedule, func() {
			s.SweepIdle()
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobIdleSweep, err)
		}
		enabled = true
	}

	if enabled {
		s.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every enabled job sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.backlogEnabled() {
		errs = multierr.Append(errs, s.RefreshBacklog(ctx))
	}
	if s.sweeper != nil {
		s.SweepIdle()
	}
	return errs
}

// RefreshBacklog counts unread messages and notifications and publishes them as gauges.
func (s *Scheduler) RefreshBacklog(ctx context.Context) error {
	started := s.now()

	var (
		errs                  error
		messages, notifyCount int64
	)
	if s.messages != nil {
		count, err := s.messages.CountUnread(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("count unread messages: %w", err))
		}
		messages = count
	}
	if s.notifications != nil {
		count, err := s.notifications.CountUnread(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("count unread notifications: %w", err))
		}
		notifyCount = count
	}

	duration := s.now().Sub(started)
	if errs != nil {
		monitoring.RecordMaintenanceRun(JobUnreadBacklog, "error", errs.Error(), duration)
		return errs
	}

	monitoring.SetUnreadBacklog(messages, notifyCount)
	monitoring.RecordMaintenanceRun(JobUnreadBacklog, "success", "", duration)
	return nil
}

// SweepIdle closes connections silent for longer than the configured idle timeout.
func (s *Scheduler) SweepIdle() int {
	if s.sweeper == nil {
		return 0
	}
	started := s.now()
	closed := s.sweeper.SweepIdle(s.idleTimeout)
	message := ""
	if closed > 0 {
		message = fmt.Sprintf("closed %d idle connections", closed)
		s.log.Info("idle connections closed", zap.Int("count", closed))
	}
	monitoring.RecordMaintenanceRun(JobIdleSweep, "success", message, s.now().Sub(started))
	return closed
}
