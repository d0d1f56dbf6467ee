package checks

import (
	"context"
	"time"

	"github.com/charlesng35/mentorlink/internal/monitoring"
)

// timedProbe runs fn under its own deadline and converts the outcome into a ProbeResult.
func timedProbe(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (string, error)) monitoring.ProbeResult {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	details, err := fn(probeCtx)
	elapsed := time.Since(start)
	if err != nil {
		return monitoring.ResultFromError(name, err, elapsed)
	}
	return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: details, Duration: elapsed}
}
