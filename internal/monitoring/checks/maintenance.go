package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/mentorlink/internal/monitoring"
)

const defaultMaintenanceMaxAge = 30 * time.Minute

// Maintenance grades the named scheduler jobs, or every recorded job when none are named. One
// failed run degrades, two in a row is down, and a job silent for longer than maxAge degrades.
func Maintenance(maxAge time.Duration, jobs ...string) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		recorded := make(map[string]monitoring.MaintenanceJobSummary)
		for _, job := range monitoring.Snapshot().Maintenance.Jobs {
			recorded[job.Job] = job
		}
		names := jobs
		if len(names) == 0 {
			for name := range recorded {
				names = append(names, name)
			}
		}

		status := monitoring.StatusUp
		var notes []string
		for _, name := range names {
			job, ok := recorded[name]
			if !ok || job.TotalRuns == 0 {
				notes = append(notes, name+": pending first run")
				continue
			}
			switch {
			case job.ConsecutiveFailures >= 2:
				status = worse(status, monitoring.StatusDown)
				notes = append(notes, fmt.Sprintf("%s: %d consecutive failures", name, job.ConsecutiveFailures))
			case job.ConsecutiveFailures == 1:
				status = worse(status, monitoring.StatusDegraded)
				notes = append(notes, name+": last run failed")
			}
			if !job.LastRunAt.IsZero() && start.Sub(job.LastRunAt) > maxAge {
				status = worse(status, monitoring.StatusDegraded)
				notes = append(notes, name+": last ran "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(notes, "; "),
			Duration: time.Since(start),
		}
	})
}

var statusRank = map[monitoring.ProbeStatus]int{
	monitoring.StatusUp:       0,
	monitoring.StatusDegraded: 1,
	monitoring.StatusDown:     2,
}

func worse(a, b monitoring.ProbeStatus) monitoring.ProbeStatus {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
