package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/api"
	"github.com/charlesng35/mentorlink/internal/app"
	"github.com/charlesng35/mentorlink/internal/app/maintenance"
	iauth "github.com/charlesng35/mentorlink/internal/auth"
	"github.com/charlesng35/mentorlink/internal/cache"
	"github.com/charlesng35/mentorlink/internal/database"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/monitoring/checks"
	"github.com/charlesng35/mentorlink/internal/realtime"
	"github.com/charlesng35/mentorlink/internal/security"
	"github.com/charlesng35/mentorlink/pkg/logger"
	"github.com/charlesng35/mentorlink/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Monitoring *monitoring.Module
	Services   *api.Stack
	Scheduler  *maintenance.Scheduler
	RateStore  middleware.RateStore
	Router     *gin.Engine

	log         *zap.Logger
	stopRelay   context.CancelFunc
	cronStarted bool
}

// bootstrapRuntime initialises the database, Redis, the realtime gateway, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{log: log}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background())
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Monitoring.Prometheus.Enabled || cfg.Monitoring.Health.Enabled {
		stack.Monitoring, err = monitoring.NewModule(monitoring.Options{Instance: cfg.Monitoring.Prometheus.Instance})
		if err != nil {
			return nil, fmt.Errorf("initialise monitoring: %w", err)
		}
		monitoring.SetModule(stack.Monitoring)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to in-process rate limiting and delivery", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected")
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.New(cfg.Email.MailSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	opts := api.StackOptions{Mailer: mailer}
	if cfg.Realtime.Relay.Enabled {
		if stack.Redis != nil {
			opts.Relay = realtime.NewRedisRelay(realtime.NewRedisPubSub(stack.Redis), cfg.Realtime.Relay.Channel)
		} else {
			log.Warn("realtime relay requires redis; events stay on this instance")
		}
	}

	stack.Services, err = api.NewStack(stack.DB, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	stack.stopRelay = cancel
	stack.Services.Gateway.StartRelay(relayCtx)

	stack.registerHealthChecks(cfg)

	stack.Scheduler = maintenance.NewScheduler(
		stack.Services.Messages,
		stack.Services.Notifications,
		stack.Services.Gateway,
		maintenance.WithBacklogSchedule(cfg.Maintenance.BacklogSchedule),
		maintenance.WithSweepSchedule(cfg.Maintenance.SweepSchedule),
		maintenance.WithIdleTimeout(cfg.Maintenance.IdleTimeout),
	)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}
	stack.cronStarted = true

	if stack.Redis != nil {
		stack.RateStore = middleware.NewRedisRateStore(cache.NewRedisStore(stack.Redis))
	} else {
		stack.RateStore = middleware.NewMemoryRateStore()
	}

	audit := security.NewAuditService(stack.DB, jwtSvc, cfg)
	logAuditFindings(ctx, audit, log)

	stack.Router, err = api.NewRouter(api.RouterDeps{
		Config:     cfg,
		JWT:        jwtSvc,
		Stack:      stack.Services,
		Monitoring: stack.Monitoring,
		Audit:      audit,
		RateStore:  stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// logAuditFindings reports failing and warning checks once at startup.
func logAuditFindings(ctx context.Context, audit *security.AuditService, log *zap.Logger) {
	for _, check := range audit.Run(ctx).Checks {
		switch check.Status {
		case security.StatusFail:
			log.Error("security audit failed", zap.String("check", check.ID), zap.String("message", check.Message))
		case security.StatusWarn:
			log.Warn("security audit warning", zap.String("check", check.ID), zap.String("message", check.Message))
		}
	}
}

func (s *runtimeStack) registerHealthChecks(cfg *app.Config) {
	if s.Monitoring == nil || !cfg.Monitoring.Health.Enabled {
		return
	}
	health := s.Monitoring.Health()

	var pinger checks.RedisPinger
	if s.Redis != nil {
		pinger = checks.RedisClient(s.Redis)
	}

	health.RegisterLiveness(checks.Realtime(s.Services.Gateway).AsOptional())
	health.RegisterReadiness(checks.Database(s.DB, 0))
	health.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled, 0))
	health.RegisterReadiness(checks.Maintenance(0, maintenance.JobUnreadBacklog, maintenance.JobIdleSweep).AsOptional())
}

// Gateway returns the realtime gateway, or nil before services are wired.
func (s *runtimeStack) Gateway() *realtime.Gateway {
	if s == nil || s.Services == nil {
		return nil
	}
	return s.Services.Gateway
}

// Shutdown stops background jobs, closes realtime connections and releases external resources.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.Scheduler != nil && s.cronStarted {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("maintenance stop: %w", ctx.Err()))
		}
		s.cronStarted = false
	}

	if s.stopRelay != nil {
		s.stopRelay()
		s.stopRelay = nil
	}
	if gateway := s.Gateway(); gateway != nil {
		gateway.Shutdown()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := closeDatabase(s.DB); err != nil {
			errs = multierr.Append(errs, err)
		}
		s.DB = nil
	}

	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.PingAndMigrate(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
