package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/models"
	"github.com/charlesng35/mentorlink/internal/monitoring"
)

// Database is a readiness probe: the pool must answer a ping and the messaging tables must exist.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}
		return timedProbe(ctx, "database", timeout, func(ctx context.Context) (string, error) {
			sqlDB, err := db.DB()
			if err != nil {
				return "", err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return "", err
			}

			migrator := db.WithContext(ctx).Migrator()
			for _, table := range []any{&models.Message{}, &models.Notification{}, &models.MentorshipRequest{}} {
				if !migrator.HasTable(table) {
					return "", errors.New("schema not migrated")
				}
			}

			stats := sqlDB.Stats()
			return fmt.Sprintf("%d open, %d in use", stats.OpenConnections, stats.InUse), nil
		})
	})
}
