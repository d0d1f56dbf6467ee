package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/charlesng35/mentorlink/internal/monitoring"
)

// RedisPinger is the part of a Redis client the probe needs.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

type redisClientPinger struct {
	client redis.UniversalClient
}

func (p redisClientPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// RedisClient adapts a go-redis client. A nil client yields nil.
func RedisClient(client redis.UniversalClient) RedisPinger {
	if client == nil {
		return nil
	}
	return redisClientPinger{client: client}
}

// Redis probes the relay and rate-limit backend. Disabled Redis is healthy; enabled but
// unreachable at boot is degraded since the server falls back to in-process state.
func Redis(client RedisPinger, enabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		switch {
		case !enabled:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		case client == nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable, using in-process fallbacks"}
		}
		return timedProbe(ctx, "redis", timeout, func(ctx context.Context) (string, error) {
			return "", client.Ping(ctx)
		})
	})
}
