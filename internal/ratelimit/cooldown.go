package ratelimit

import (
	"context"
	"fmt"
	"time"

	"newstack/internal/ports"
)

const (
	DefaultSuccessCooldown = 15 * time.Minute
	DefaultFailureCooldown = 5 * time.Minute
)

// Window identifies which cooldown blocked a run.
type Window string

const (
	WindowNone    Window = ""
	WindowSuccess Window = "success"
	WindowFailure Window = "failure"
)

// Decision is the outcome of a cooldown check.
type Decision struct {
	Blocked   bool          `json:"blocked"`
	Remaining time.Duration `json:"-"`
	Window    Window        `json:"window,omitempty"`
}

// RemainingMinutes rounds the remaining wait up to whole minutes.
func (d Decision) RemainingMinutes() int {
	if !d.Blocked || d.Remaining <= 0 {
		return 0
	}
	minutes := int(d.Remaining / time.Minute)
	if d.Remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// Message is the user-facing explanation for a blocked run.
func (d Decision) Message() string {
	if !d.Blocked {
		return ""
	}
	minutes := d.RemainingMinutes()
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	if d.Window == WindowSuccess {
		return fmt.Sprintf("News was refreshed recently. Please wait %d %s before running again.", minutes, unit)
	}
	return fmt.Sprintf("The last run failed. Please wait %d %s before running again.", minutes, unit)
}

// Evaluate applies both cooldown windows; the success window is checked first.
func Evaluate(now, lastSuccess, lastFailure time.Time, successWindow, failureWindow time.Duration) Decision {
	if !lastSuccess.IsZero() {
		if elapsed := now.Sub(lastSuccess); elapsed < successWindow {
			return Decision{Blocked: true, Remaining: successWindow - elapsed, Window: WindowSuccess}
		}
	}
	if !lastFailure.IsZero() {
		if elapsed := now.Sub(lastFailure); elapsed < failureWindow {
			return Decision{Blocked: true, Remaining: failureWindow - elapsed, Window: WindowFailure}
		}
	}
	return Decision{}
}

// Config tunes the cooldown windows.
type Config struct {
	SuccessCooldown time.Duration
	FailureCooldown time.Duration
	Now             func() time.Time
}

// Limiter gates runs on the persisted cooldown timestamps.
type Limiter struct {
	store           ports.CooldownStore
	successCooldown time.Duration
	failureCooldown time.Duration
	now             func() time.Time
}

// NewLimiter wraps a cooldown store; zero durations fall back to defaults.
func NewLimiter(store ports.CooldownStore, cfg Config) *Limiter {
	l := &Limiter{
		store:           store,
		successCooldown: cfg.SuccessCooldown,
		failureCooldown: cfg.FailureCooldown,
		now:             cfg.Now,
	}
	if l.successCooldown <= 0 {
		l.successCooldown = DefaultSuccessCooldown
	}
	if l.failureCooldown <= 0 {
		l.failureCooldown = DefaultFailureCooldown
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// SuccessCooldown returns the configured success window.
func (l *Limiter) SuccessCooldown() time.Duration {
	return l.successCooldown
}

// Check reads both timestamps and evaluates the windows at the current time.
func (l *Limiter) Check(ctx context.Context) (Decision, error) {
	lastSuccess, err := l.store.LastSuccess(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read last success: %w", err)
	}
	lastFailure, err := l.store.LastFailure(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read last failure: %w", err)
	}
	return Evaluate(l.now(), lastSuccess, lastFailure, l.successCooldown, l.failureCooldown), nil
}

// RecordSuccess arms the success cooldown.
func (l *Limiter) RecordSuccess(ctx context.Context) error {
	if err := l.store.RecordSuccess(ctx, l.now()); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure arms the failure cooldown.
func (l *Limiter) RecordFailure(ctx context.Context) error {
	if err := l.store.RecordFailure(ctx, l.now()); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Store exposes the underlying store so callers can probe optional capabilities.
func (l *Limiter) Store() ports.CooldownStore {
	return l.store
}
