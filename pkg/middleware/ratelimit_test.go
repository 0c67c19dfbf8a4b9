package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/contextkeys"
)

func newTestLimiter(t *testing.T, perWindow int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client, perWindow, time.Minute), mr
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "account:1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := rl.Allow(ctx, "account:1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Independent keys do not share a window.
	allowed, err = rl.Allow(ctx, "account:2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	allowed, err := rl.Allow(ctx, "account:1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = rl.Allow(ctx, "account:1")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = rl.Allow(ctx, "account:1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterRemaining(t *testing.T) {
	rl, _ := newTestLimiter(t, 5)
	ctx := context.Background()

	remaining, err := rl.Remaining(ctx, "account:1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = rl.Allow(ctx, "account:1")
	require.NoError(t, err)

	remaining, err = rl.Remaining(ctx, "account:1")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestRateLimiterHandler(t *testing.T) {
	rl, _ := newTestLimiter(t, 2)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	withCaller := func() *http.Request {
		r := httptest.NewRequest("GET", "/", nil)
		ctx := contextkeys.WithCaller(r.Context(), &Caller{ID: 9})
		return r.WithContext(ctx)
	}

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withCaller())
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withCaller())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, 1, time.Minute)
	mr.Close()

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Redis is down, requests still go through.
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
