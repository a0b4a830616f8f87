package usecase

import (
	"context"
	"sync"
	"time"

	"newstack/internal/domain"
	"newstack/internal/infrastructure/cooldownstore"
	"newstack/internal/ports"
	"newstack/internal/ratelimit"
)

var testBase = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testBase}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCatalog struct {
	sources  []domain.FeedSource
	recent   int
	err      error
	countErr error

	mu         sync.Mutex
	countCalls int
}

func (f *fakeCatalog) ListActiveSources(context.Context) ([]domain.FeedSource, error) {
	return f.sources, f.err
}

func (f *fakeCatalog) CountStoriesPublishedSince(context.Context, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.recent, f.countErr
}

type fakeInvoker struct {
	result domain.RunResult
	err    error

	// onInvoke runs inside Invoke before it returns.
	onInvoke func()
	// release, when set, blocks Invoke until it is closed.
	release chan struct{}
	started chan struct{}

	mu       sync.Mutex
	calls    int
	triggers []domain.Trigger
}

func (f *fakeInvoker) Invoke(ctx context.Context, trigger domain.Trigger) (domain.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.onInvoke != nil {
		f.onInvoke()
	}
	return f.result, f.err
}

func (f *fakeInvoker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStories struct {
	stories []domain.StoryPreview
	err     error

	mu        sync.Mutex
	lastSince time.Time
	lastLimit int
}

func (f *fakeStories) StoriesCreatedSince(_ context.Context, since time.Time, limit int) ([]domain.StoryPreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSince = since
	f.lastLimit = limit
	return f.stories, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) PublishRunSummary(_ context.Context, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, summary)
	return nil
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type recordingPacer struct {
	mu     sync.Mutex
	paced  []domain.StepID
	failOn domain.StepID
	err    error
}

func (p *recordingPacer) Pace(_ context.Context, step domain.StepID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paced = append(p.paced, step)
	if step == p.failOn {
		return p.err
	}
	return nil
}

func (p *recordingPacer) Paced() []domain.StepID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StepID(nil), p.paced...)
}

type lockingStore struct {
	*cooldownstore.MemoryStore
	available bool
	released  int
}

func (l *lockingStore) TryLock(context.Context, time.Duration) (func(), bool, error) {
	if !l.available {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type harness struct {
	clock    *testClock
	store    *cooldownstore.MemoryStore
	catalog  *fakeCatalog
	invoker  *fakeInvoker
	stories  *fakeStories
	pacer    *recordingPacer
	notifier *fakeNotifier
	reports  []domain.RunReport
	ctrl     *Controller
}

func eligibleSources(n int) []domain.FeedSource {
	sources := make([]domain.FeedSource, n)
	for i := range sources {
		sources[i] = domain.FeedSource{ID: string(rune('a' + i))}
	}
	return sources
}

func freshSources(n int, at time.Time) []domain.FeedSource {
	sources := make([]domain.FeedSource, n)
	for i := range sources {
		fetched := at.Add(-time.Minute)
		sources[i] = domain.FeedSource{ID: string(rune('a' + i)), LastFetchedAt: &fetched, FetchIntervalMinutes: 15}
	}
	return sources
}

func newHarness() *harness {
	h := &harness{
		clock:    newTestClock(),
		store:    cooldownstore.NewMemoryStore(),
		catalog:  &fakeCatalog{sources: eligibleSources(3)},
		invoker:  &fakeInvoker{result: domain.RunResult{RunID: "run-1", FeedsProcessed: 3, StoriesCreated: 5, StoriesMerged: 1}},
		stories:  &fakeStories{},
		pacer:    &recordingPacer{},
		notifier: &fakeNotifier{},
	}
	h.ctrl = h.build(h.store)
	return h
}

func (h *harness) build(store ports.CooldownStore) *Controller {
	return NewController(ControllerDeps{
		Preflight:           NewPreflight(h.catalog, 0, 0, h.clock.Now),
		Invoker:             h.invoker,
		Stories:             h.stories,
		Limiter:             ratelimit.NewLimiter(store, ratelimit.Config{Now: h.clock.Now}),
		Pacer:               h.pacer,
		Notifier:            h.notifier,
		OnComplete:          func(r domain.RunReport) { h.reports = append(h.reports, r) },
		AutoRefreshInterval: 15 * time.Minute,
		Now:                 h.clock.Now,
	})
}
