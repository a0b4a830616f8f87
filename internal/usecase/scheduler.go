package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newstack/internal/domain"
	"newstack/internal/ports"
)

// AutoRefresh wires the countdown driver with the run controller.
type AutoRefresh struct {
	driver     ports.Scheduler
	controller *Controller
	logger     *slog.Logger
}

// NewAutoRefresh returns a helper to start/stop timer-driven runs.
func NewAutoRefresh(driver ports.Scheduler, controller *Controller, logger *slog.Logger) *AutoRefresh {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AutoRefresh{driver: driver, controller: controller, logger: logger}
}

// Start registers the auto-triggered run with the provided scheduler.
func (a *AutoRefresh) Start(ctx context.Context) error {
	if a.driver == nil || a.controller == nil {
		return nil
	}

	job := func(fired time.Time) {
		a.Fire(ctx, fired)
	}

	return a.driver.Start(ctx, job)
}

// Fire runs one auto-triggered ingestion unless a run is in flight or a
// cooldown is active. It reports whether a run was started.
func (a *AutoRefresh) Fire(ctx context.Context, fired time.Time) bool {
	if a.controller.IsRunning() {
		a.logger.Debug("auto refresh skipped, run in progress", "fired_at", fired)
		return false
	}

	decision, err := a.controller.Cooldown(ctx)
	if err != nil {
		a.logger.Warn("auto refresh cooldown check failed", "error", err)
		return false
	}
	if decision.Blocked {
		a.logger.Debug("auto refresh skipped, cooldown active",
			"window", decision.Window,
			"remaining", decision.Remaining.Round(time.Second))
		return false
	}

	report, err := a.controller.Run(ctx, domain.TriggerAuto)
	if err != nil {
		var cooldown *CooldownError
		if errors.Is(err, ErrAlreadyRunning) || errors.As(err, &cooldown) {
			return false
		}
		a.logger.Warn("auto refresh run refused", "error", err)
		return false
	}

	a.logger.Debug("auto refresh settled", "outcome", report.Outcome)
	return true
}

// Stop gracefully tears down the underlying scheduler.
func (a *AutoRefresh) Stop(ctx context.Context) error {
	if a.driver == nil {
		return nil
	}

	return a.driver.Stop(ctx)
}
