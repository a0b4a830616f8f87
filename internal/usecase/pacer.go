package usecase

import (
	"context"
	"time"

	"newstack/internal/domain"
)

// Pacer controls how long a display-only step lingers in the running state.
type Pacer interface {
	Pace(ctx context.Context, step domain.StepID) error
}

// DefaultStepDelays keep the step list readable while it animates.
var DefaultStepDelays = map[domain.StepID]time.Duration{
	domain.StepFetch:    500 * time.Millisecond,
	domain.StepExtract:  400 * time.Millisecond,
	domain.StepStrip:    300 * time.Millisecond,
	domain.StepDecode:   300 * time.Millisecond,
	domain.StepValidate: 400 * time.Millisecond,
	domain.StepDedupe:   300 * time.Millisecond,
	domain.StepCluster:  400 * time.Millisecond,
	domain.StepScore:    300 * time.Millisecond,
	domain.StepPersist:  300 * time.Millisecond,
	domain.StepComplete: 100 * time.Millisecond,
}

// DelayPacer sleeps a fixed delay per step and honours cancellation.
type DelayPacer struct {
	Delays map[domain.StepID]time.Duration
}

// NewDelayPacer uses DefaultStepDelays.
func NewDelayPacer() DelayPacer {
	return DelayPacer{Delays: DefaultStepDelays}
}

// Pace waits the step delay or until ctx is done.
func (p DelayPacer) Pace(ctx context.Context, step domain.StepID) error {
	delay := p.Delays[step]
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Budget is the total time a full run spends pacing.
func (p DelayPacer) Budget() time.Duration {
	var total time.Duration
	for _, d := range p.Delays {
		if d > 0 {
			total += d
		}
	}
	return total
}

// NoPacer completes steps immediately.
type NoPacer struct{}

// Pace returns at once unless ctx is already done.
func (NoPacer) Pace(ctx context.Context, _ domain.StepID) error {
	return ctx.Err()
}
