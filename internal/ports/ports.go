package ports

import (
	"context"
	"time"

	"newstack/internal/domain"
)

// SourceCatalog answers the preflight questions about data sources.
type SourceCatalog interface {
	ListActiveSources(ctx context.Context) ([]domain.FeedSource, error)
	CountStoriesPublishedSince(ctx context.Context, since time.Time) (int, error)
}

// StoryReader loads freshly created stories for display.
type StoryReader interface {
	StoriesCreatedSince(ctx context.Context, since time.Time, limit int) ([]domain.StoryPreview, error)
}

// IngestionInvoker calls the remote ingestion function.
type IngestionInvoker interface {
	Invoke(ctx context.Context, trigger domain.Trigger) (domain.RunResult, error)
}

// CooldownStore persists the last success/failure timestamps.
// A zero time means the event never happened.
type CooldownStore interface {
	LastSuccess(ctx context.Context) (time.Time, error)
	LastFailure(ctx context.Context) (time.Time, error)
	RecordSuccess(ctx context.Context, at time.Time) error
	RecordFailure(ctx context.Context, at time.Time) error
}

// RunLocker is implemented by stores shared between processes.
type RunLocker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishRunSummary(ctx context.Context, summary string) error
}

// Scheduler controls when auto-refresh runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
