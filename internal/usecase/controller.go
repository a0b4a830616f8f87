package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"newstack/internal/domain"
	"newstack/internal/metrics"
	"newstack/internal/ports"
	"newstack/internal/ratelimit"
)

const (
	NoteUpToDate        = "News is up to date"
	NoteNoNewsAvailable = "No news available right now"
	NoteNoNewNews       = "No new news right now"

	previewLimit   = 10
	defaultLockTTL = 5 * time.Minute
)

// ErrAlreadyRunning is returned when a run is already in flight, here or in
// another process sharing the cooldown store.
var ErrAlreadyRunning = errors.New("ingestion run already in progress")

// CooldownError refuses a run while a cooldown window is active.
type CooldownError struct {
	Decision ratelimit.Decision
}

// Error returns the user-facing cooldown message.
func (e *CooldownError) Error() string {
	return e.Decision.Message()
}

// ControllerDeps wires all driven adapters into the run controller.
type ControllerDeps struct {
	Preflight           *Preflight
	Invoker             ports.IngestionInvoker
	Stories             ports.StoryReader
	Limiter             *ratelimit.Limiter
	Pacer               Pacer
	Notifier            ports.Notifier
	OnComplete          func(domain.RunReport)
	AutoRefreshInterval time.Duration
	LockTTL             time.Duration
	Logger              *slog.Logger
	Now                 func() time.Time
}

// Controller drives one ingestion run at a time through the step sequence.
type Controller struct {
	preflight   *Preflight
	invoker     ports.IngestionInvoker
	stories     ports.StoryReader
	limiter     *ratelimit.Limiter
	pacer       Pacer
	notifier    ports.Notifier
	onComplete  func(domain.RunReport)
	autoRefresh time.Duration
	lockTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	running atomic.Bool

	mu           sync.RWMutex
	state        domain.Snapshot
	stepStarted  map[domain.StepID]time.Time
	stepPosition map[domain.StepID]int
}

// NewController constructs the run controller. Invoker and Limiter are required.
func NewController(deps ControllerDeps) *Controller {
	c := &Controller{
		preflight:   deps.Preflight,
		invoker:     deps.Invoker,
		stories:     deps.Stories,
		limiter:     deps.Limiter,
		pacer:       deps.Pacer,
		notifier:    deps.Notifier,
		onComplete:  deps.OnComplete,
		autoRefresh: deps.AutoRefreshInterval,
		lockTTL:     deps.LockTTL,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.pacer == nil {
		c.pacer = NoPacer{}
	}
	if c.lockTTL <= 0 {
		c.lockTTL = defaultLockTTL
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	steps := domain.NewSteps()
	c.stepPosition = make(map[domain.StepID]int, len(steps))
	for i, step := range steps {
		c.stepPosition[step.ID] = i
	}
	c.state = domain.Snapshot{Phase: domain.PhaseIdle, Steps: steps}
	return c
}

// IsRunning reports whether a run is in flight in this process.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// Cooldown reports the current cooldown decision without starting a run.
func (c *Controller) Cooldown(ctx context.Context) (ratelimit.Decision, error) {
	return c.limiter.Check(ctx)
}

// Snapshot returns a copy of the current display state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.state
	snap.Running = c.running.Load()
	snap.Steps = domain.CloneSteps(c.state.Steps)
	snap.Stories = append([]domain.StoryPreview(nil), c.state.Stories...)
	snap.Progress = domain.Progress(snap.Steps)
	return snap
}

// Run executes one ingestion cycle. Refusals (already running, cooldown)
// return an error and leave state untouched; remote and preflight failures
// settle the run and are reported in the returned RunReport.
func (c *Controller) Run(ctx context.Context, trigger domain.Trigger) (domain.RunReport, error) {
	if !trigger.Valid() {
		return domain.RunReport{}, fmt.Errorf("unknown trigger %q", trigger)
	}

	if !c.running.CompareAndSwap(false, true) {
		metrics.RecordRefused("running")
		return domain.RunReport{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	if locker, ok := c.limiter.Store().(ports.RunLocker); ok {
		release, acquired, err := locker.TryLock(ctx, c.lockTTL)
		if err != nil {
			return domain.RunReport{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			metrics.RecordRefused("locked")
			return domain.RunReport{}, ErrAlreadyRunning
		}
		defer release()
	}

	decision, err := c.limiter.Check(ctx)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("check cooldown: %w", err)
	}
	if decision.Blocked {
		metrics.RecordRefused("cooldown_" + string(decision.Window))
		c.logger.Info("run refused by cooldown",
			"trigger", trigger,
			"window", decision.Window,
			"remaining", decision.Remaining.Round(time.Second))
		return domain.RunReport{}, &CooldownError{Decision: decision}
	}

	return c.execute(ctx, trigger), nil
}

func (c *Controller) execute(ctx context.Context, trigger domain.Trigger) domain.RunReport {
	report := domain.RunReport{
		AttemptID: uuid.NewString(),
		Trigger:   trigger,
		StartedAt: c.now(),
	}
	logger := c.logger.With("attempt_id", report.AttemptID, "trigger", trigger)
	logger.Debug("run started")

	c.begin(trigger, report.StartedAt)

	pf, err := c.preflight.Check(ctx)
	if err != nil {
		return c.fail(ctx, logger, report, fmt.Errorf("preflight: %w", err))
	}
	logger.Debug("preflight done", "sources", pf.Total, "eligible", pf.Eligible, "skipped", pf.Skipped)
	if pf.UpToDate() {
		return c.settleUpToDate(ctx, logger, report, pf)
	}

	c.setPhase(domain.PhaseSimulating)
	for _, id := range domain.LeadingSteps {
		if err := c.animate(ctx, id, nil); err != nil {
			return c.fail(ctx, logger, report, err)
		}
	}

	c.setPhase(domain.PhaseAwaitingRemote)
	c.startStep(domain.StepClassify)
	result, err := c.invoker.Invoke(ctx, trigger)
	if err != nil {
		return c.fail(ctx, logger, report, fmt.Errorf("invoke ingestion: %w", err))
	}
	feeds := result.FeedsProcessed
	c.completeStep(domain.StepClassify, &feeds, func(s *domain.RunResult) {
		s.RunID = result.RunID
		s.FeedsProcessed = result.FeedsProcessed
	})
	logger.Debug("remote ingestion returned", "run_id", result.RunID, "feeds", result.FeedsProcessed)

	c.setPhase(domain.PhaseSimulating)
	for _, id := range domain.TrailingSteps {
		if err := c.animate(ctx, id, &result); err != nil {
			return c.fail(ctx, logger, report, err)
		}
	}

	report.Result = result
	report.Stories = c.enrich(ctx, logger, report.StartedAt)
	return c.settleSuccess(ctx, logger, report)
}

// animate walks one display step through running to completed. When result
// is set, the step's counter and the aggregate stats are filled from it.
func (c *Controller) animate(ctx context.Context, id domain.StepID, result *domain.RunResult) error {
	c.startStep(id)
	if err := c.pacer.Pace(ctx, id); err != nil {
		return fmt.Errorf("step %s: %w", id, err)
	}

	if result == nil {
		c.completeStep(id, nil, nil)
		return nil
	}

	var (
		count  *int
		update func(*domain.RunResult)
	)
	switch id {
	case domain.StepDedupe:
		n := result.StoriesMerged
		count = &n
		update = func(s *domain.RunResult) { s.StoriesMerged = n }
	case domain.StepCluster:
		n := result.StoriesCreated
		count = &n
		update = func(s *domain.RunResult) { s.StoriesCreated = n }
	case domain.StepPersist:
		n := result.StoriesCreated + result.StoriesMerged
		count = &n
	}
	c.completeStep(id, count, update)
	return nil
}

func (c *Controller) enrich(ctx context.Context, logger *slog.Logger, since time.Time) []domain.StoryPreview {
	if c.stories == nil {
		return nil
	}

	stories, err := c.stories.StoriesCreatedSince(ctx, since, previewLimit)
	if err != nil {
		logger.Warn("load new stories failed", "error", err)
		return nil
	}
	return stories
}

func (c *Controller) settleUpToDate(ctx context.Context, logger *slog.Logger, report domain.RunReport, pf PreflightResult) domain.RunReport {
	report.Outcome = domain.OutcomeUpToDate
	if pf.RecentStories > 0 {
		report.Note = NoteUpToDate
		report.Description = "All sources were refreshed recently; showing the latest stories."
	} else {
		report.Note = NoteNoNewsAvailable
		report.Description = "All sources were refreshed recently; check back later."
	}

	if err := c.limiter.RecordSuccess(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("persist success cooldown failed", "error", err)
	}

	report = c.settle(report, domain.PhaseSettledSuccess)
	logger.Info("run skipped, sources up to date",
		"sources", pf.Total,
		"recent_stories", pf.RecentStories)

	c.complete(ctx, logger, report)
	return report
}

func (c *Controller) settleSuccess(ctx context.Context, logger *slog.Logger, report domain.RunReport) domain.RunReport {
	report.Outcome = domain.OutcomeSuccess
	report.NoNewNews = report.Result.NoNetChange()
	if report.NoNewNews {
		report.Note = NoteNoNewNews
		report.Description = fmt.Sprintf("Sources were checked; will auto-check again in ~%d minutes.", c.recheckMinutes())
	} else {
		report.Description = fmt.Sprintf("Processed %d feeds: %d new stories, %d merged.",
			report.Result.FeedsProcessed, report.Result.StoriesCreated, report.Result.StoriesMerged)
	}

	if err := c.limiter.RecordSuccess(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("persist success cooldown failed", "error", err)
	}

	report = c.settle(report, domain.PhaseSettledSuccess)
	metrics.RecordStories(report.Result.StoriesCreated, report.Result.StoriesMerged)
	logger.Info("run completed",
		"run_id", report.Result.RunID,
		"feeds", report.Result.FeedsProcessed,
		"created", report.Result.StoriesCreated,
		"merged", report.Result.StoriesMerged,
		"duration_ms", report.Result.TotalDurationMs)

	c.complete(ctx, logger, report)
	return report
}

func (c *Controller) fail(ctx context.Context, logger *slog.Logger, report domain.RunReport, cause error) domain.RunReport {
	report.Outcome = domain.OutcomeFailed
	report.Err = cause
	report.ErrorKind, report.ErrorMessage = DescribeFailure(cause)

	if err := c.limiter.RecordFailure(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("persist failure cooldown failed", "error", err)
	}

	report = c.settle(report, domain.PhaseSettledError)
	logger.Warn("run failed", "kind", report.ErrorKind, "error", cause)

	c.publish(ctx, logger, report)
	return report
}

// settle freezes the snapshot; any step still running becomes an error.
func (c *Controller) settle(report domain.RunReport, phase domain.RunPhase) domain.RunReport {
	report.FinishedAt = c.now()
	report.Result.TotalDurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	c.mu.Lock()
	for i := range c.state.Steps {
		if c.state.Steps[i].Status == domain.StepRunning {
			c.state.Steps[i].Status = domain.StepError
			c.state.Steps[i].DurationMs = c.elapsedLocked(c.state.Steps[i].ID)
		}
	}
	c.state.Phase = phase
	c.state.SettledAt = report.FinishedAt
	c.state.Note = report.Note
	c.state.Description = report.Description
	c.state.ErrorMessage = report.ErrorMessage
	c.state.NoNewNews = report.NoNewNews
	c.state.Stories = append([]domain.StoryPreview(nil), report.Stories...)
	if phase == domain.PhaseSettledSuccess {
		c.state.Stats.TotalDurationMs = report.Result.TotalDurationMs
	}
	report.Steps = domain.CloneSteps(c.state.Steps)
	c.mu.Unlock()

	metrics.RecordRun(string(report.Trigger), string(report.Outcome), report.FinishedAt.Sub(report.StartedAt).Seconds())
	return report
}

func (c *Controller) complete(ctx context.Context, logger *slog.Logger, report domain.RunReport) {
	if c.onComplete != nil {
		c.onComplete(report)
	}
	if report.Outcome == domain.OutcomeSuccess && !report.NoNewNews {
		c.publish(ctx, logger, report)
	}
}

func (c *Controller) publish(ctx context.Context, logger *slog.Logger, report domain.RunReport) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.PublishRunSummary(context.WithoutCancel(ctx), buildRunSummary(report)); err != nil {
		logger.Warn("publish run summary failed", "error", err)
	}
}

func (c *Controller) recheckMinutes() int {
	interval := c.autoRefresh
	if interval <= 0 {
		interval = c.limiter.SuccessCooldown()
	}
	return int(interval.Round(time.Minute) / time.Minute)
}

func (c *Controller) begin(trigger domain.Trigger, startedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = domain.Snapshot{
		Phase:     domain.PhasePreflight,
		Trigger:   trigger,
		Steps:     domain.NewSteps(),
		StartedAt: startedAt,
	}
	c.stepStarted = make(map[domain.StepID]time.Time, domain.StepCount())
}

func (c *Controller) setPhase(phase domain.RunPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = phase
}

func (c *Controller) startStep(id domain.StepID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Steps[c.stepPosition[id]].Status = domain.StepRunning
	c.stepStarted[id] = c.now()
}

func (c *Controller) completeStep(id domain.StepID, count *int, update func(*domain.RunResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := &c.state.Steps[c.stepPosition[id]]
	step.Status = domain.StepCompleted
	step.DurationMs = c.elapsedLocked(id)
	step.Count = count
	if update != nil {
		update(&c.state.Stats)
	}
}

func (c *Controller) elapsedLocked(id domain.StepID) int64 {
	started, ok := c.stepStarted[id]
	if !ok {
		return 0
	}
	return c.now().Sub(started).Milliseconds()
}

func buildRunSummary(report domain.RunReport) string {
	var b strings.Builder

	if report.Outcome == domain.OutcomeFailed {
		fmt.Fprintf(&b, "Ingestion run failed (%s trigger)\n%s\n", report.Trigger, report.ErrorMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "Ingestion run finished (%s trigger)\n%s\n", report.Trigger, report.Description)
	for _, story := range report.Stories {
		fmt.Fprintf(&b, "- %s\n", story.Headline)
	}
	return b.String()
}
