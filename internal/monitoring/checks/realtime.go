package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/mentorlink/internal/monitoring"
)

const realtimeFailureWindow = time.Minute

// ConnectionCounter is implemented by the realtime gateway.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Realtime is Degraded when the gateway is missing or a delivery failed within the last minute.
func Realtime(gateway ConnectionCounter) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if gateway == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime gateway unavailable"}
		}

		result := monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d connections", gateway.ConnectionCount()),
		}
		last := monitoring.Snapshot().Realtime.LastFailure
		if last != nil && time.Since(last.Occurred) < realtimeFailureWindow {
			result.Status = monitoring.StatusDegraded
			result.Details += fmt.Sprintf("; %s failure on %s %s ago", last.Type, last.Event, time.Since(last.Occurred).Round(time.Second))
		}
		return result
	})
}
