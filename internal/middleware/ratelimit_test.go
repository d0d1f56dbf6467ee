package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(nil, 2, 100*time.Millisecond))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	time.Sleep(120 * time.Millisecond)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

type stubCache struct {
	counts map[string]int64
	err    error
}

func (s *stubCache) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[key]++
	return s.counts[key], window, nil
}

func TestRateLimitUsesSharedStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	shared := &stubCache{counts: map[string]int64{}}
	r := gin.New()
	r.Use(RateLimit(NewRedisRateStore(shared), 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Len(t, shared.counts, 1)

	// a failing store must not take the API down
	shared.err = errors.New("redis down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMemoryRateStoreWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := newMemoryRateStore(func() time.Time { return now })

	count, ttl, err := store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	now = now.Add(30 * time.Second)
	count, ttl, _ = store.Increment(context.Background(), "k", time.Minute)
	require.Equal(t, 2, count)
	require.Equal(t, 30*time.Second, ttl)

	now = now.Add(31 * time.Second)
	count, _, _ = store.Increment(context.Background(), "k", time.Minute)
	require.Equal(t, 1, count)

	_, _, _ = store.Increment(context.Background(), "other", time.Second)
	now = now.Add(2 * time.Minute)
	_, _, _ = store.Increment(context.Background(), "k", time.Minute)
	require.NotContains(t, store.windows, "other", "expired windows are swept")

	require.Nil(t, NewRedisRateStore(nil))
}
