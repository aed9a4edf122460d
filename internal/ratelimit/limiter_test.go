package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/pkg/requestcontext"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		result := l.Allow("client-a")
		assert.True(t, result.Allowed, "request %d", i)
	}
	result := l.Allow("client-a")
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
}

func TestLimiterWindowSlides(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(2, time.Minute, WithClock(func() time.Time { return now }))

	require.True(t, l.Allow("a").Allowed)
	now = now.Add(30 * time.Second)
	require.True(t, l.Allow("a").Allowed)
	require.False(t, l.Allow("a").Allowed)

	// First timestamp ages out; one slot opens, the newer one still counts.
	now = now.Add(31 * time.Second)
	result := l.Allow("a")
	assert.True(t, result.Allowed)
	assert.False(t, l.Allow("a").Allowed)
}

func TestLimiterDeniedAttemptsNotRecorded(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(1, time.Minute, WithClock(func() time.Time { return now }))

	require.True(t, l.Allow("a").Allowed)
	for i := 0; i < 10; i++ {
		require.False(t, l.Allow("a").Allowed)
	}
	// Exactly one window after the single admitted request, a slot opens:
	// hammering while limited did not extend the lockout.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Allow("a").Allowed)
}

func TestLimiterSweepDropsIdleKeys(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(1, time.Minute, WithClock(func() time.Time { return now }))

	l.Allow("a")
	l.Allow("b")
	now = now.Add(2 * time.Minute)
	l.sweepOnce()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.buckets)
}

func TestMiddlewareDeniesWithHeaders(t *testing.T) {
	l := New(1, time.Minute)
	logger := slog.New(slog.DiscardHandler)
	handler := Middleware(l, logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req = req.WithContext(requestcontext.WithClientKey(context.Background(), "1.2.3.4|browser"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("X-RateLimit-Reset"))
}

func TestMiddlewarePassesWithoutClientKey(t *testing.T) {
	l := New(0, time.Minute) // limit zero would deny everything keyed
	logger := slog.New(slog.DiscardHandler)
	handler := Middleware(l, logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
