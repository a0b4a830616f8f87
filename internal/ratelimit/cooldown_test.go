package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newstack/internal/infrastructure/cooldownstore"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)
	var zero time.Time

	cases := []struct {
		name        string
		lastSuccess time.Time
		lastFailure time.Time
		want        Decision
	}{
		{name: "no history", want: Decision{}},
		{
			name:        "recent success",
			lastSuccess: now.Add(-10 * time.Minute),
			want:        Decision{Blocked: true, Remaining: 5 * time.Minute, Window: WindowSuccess},
		},
		{
			name:        "success window elapsed",
			lastSuccess: now.Add(-15 * time.Minute),
			want:        Decision{},
		},
		{
			name:        "recent failure",
			lastFailure: now.Add(-1 * time.Minute),
			want:        Decision{Blocked: true, Remaining: 4 * time.Minute, Window: WindowFailure},
		},
		{
			name:        "failure window elapsed",
			lastFailure: now.Add(-5 * time.Minute),
			want:        Decision{},
		},
		{
			name:        "both active success wins",
			lastSuccess: now.Add(-14 * time.Minute),
			lastFailure: now.Add(-1 * time.Minute),
			want:        Decision{Blocked: true, Remaining: time.Minute, Window: WindowSuccess},
		},
		{
			name:        "old success recent failure",
			lastSuccess: now.Add(-time.Hour),
			lastFailure: now.Add(-2 * time.Minute),
			want:        Decision{Blocked: true, Remaining: 3 * time.Minute, Window: WindowFailure},
		},
		{name: "explicit zero", lastSuccess: zero, lastFailure: zero, want: Decision{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(now, tc.lastSuccess, tc.lastFailure, DefaultSuccessCooldown, DefaultFailureCooldown)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecisionMessage(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Decision{}.Message())

	d := Decision{Blocked: true, Remaining: 4*time.Minute + time.Second, Window: WindowFailure}
	assert.Equal(t, 5, d.RemainingMinutes())
	assert.Equal(t, "The last run failed. Please wait 5 minutes before running again.", d.Message())

	d = Decision{Blocked: true, Remaining: 30 * time.Second, Window: WindowSuccess}
	assert.Equal(t, 1, d.RemainingMinutes())
	assert.Equal(t, "News was refreshed recently. Please wait 1 minute before running again.", d.Message())
}

type brokenStore struct {
	*cooldownstore.MemoryStore
}

func (brokenStore) LastFailure(context.Context) (time.Time, error) {
	return time.Time{}, errors.New("disk gone")
}

func TestLimiterCheckAndRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := NewLimiter(cooldownstore.NewMemoryStore(), Config{Now: clock})
	ctx := context.Background()

	decision, err := limiter.Check(ctx)
	require.NoError(t, err)
	assert.False(t, decision.Blocked)

	require.NoError(t, limiter.RecordFailure(ctx))
	decision, err = limiter.Check(ctx)
	require.NoError(t, err)
	assert.True(t, decision.Blocked)
	assert.Equal(t, WindowFailure, decision.Window)
	assert.Equal(t, 5*time.Minute, decision.Remaining)

	now = now.Add(5 * time.Minute)
	decision, err = limiter.Check(ctx)
	require.NoError(t, err)
	assert.False(t, decision.Blocked)

	require.NoError(t, limiter.RecordSuccess(ctx))
	now = now.Add(14*time.Minute + 59*time.Second)
	decision, err = limiter.Check(ctx)
	require.NoError(t, err)
	assert.True(t, decision.Blocked)
	assert.Equal(t, WindowSuccess, decision.Window)
	assert.Equal(t, time.Second, decision.Remaining)
}

func TestLimiterDefaults(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(cooldownstore.NewMemoryStore(), Config{})
	assert.Equal(t, DefaultSuccessCooldown, limiter.SuccessCooldown())
	assert.Equal(t, DefaultFailureCooldown, limiter.failureCooldown)
}

func TestLimiterCheckPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(brokenStore{cooldownstore.NewMemoryStore()}, Config{})
	_, err := limiter.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
