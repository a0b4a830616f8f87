package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newstack/internal/domain"
)

func TestDelayPacerWaits(t *testing.T) {
	t.Parallel()

	p := DelayPacer{Delays: map[domain.StepID]time.Duration{domain.StepFetch: 20 * time.Millisecond}}

	start := time.Now()
	assert.NoError(t, p.Pace(context.Background(), domain.StepFetch))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, p.Pace(context.Background(), domain.StepScore), "steps without a delay return immediately")
}

func TestDelayPacerHonoursCancellation(t *testing.T) {
	t.Parallel()

	p := DelayPacer{Delays: map[domain.StepID]time.Duration{domain.StepFetch: time.Hour}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, p.Pace(ctx, domain.StepFetch), context.DeadlineExceeded)
}

func TestDefaultStepDelaysCoverDisplaySteps(t *testing.T) {
	t.Parallel()

	for _, id := range append(append([]domain.StepID{}, domain.LeadingSteps...), domain.TrailingSteps...) {
		assert.Positive(t, DefaultStepDelays[id], id)
	}
	_, paced := DefaultStepDelays[domain.StepClassify]
	assert.False(t, paced, "classify tracks the remote call")
}

func TestNoPacer(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NoPacer{}.Pace(context.Background(), domain.StepFetch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NoPacer{}.Pace(ctx, domain.StepFetch), context.Canceled)
}

func TestDelayPacerBudget(t *testing.T) {
	t.Parallel()

	p := DelayPacer{Delays: map[domain.StepID]time.Duration{
		domain.StepFetch:   250 * time.Millisecond,
		domain.StepCluster: 750 * time.Millisecond,
		domain.StepScore:   -time.Second,
	}}
	assert.Equal(t, time.Second, p.Budget())
	assert.Equal(t, 3300*time.Millisecond, NewDelayPacer().Budget())
}
