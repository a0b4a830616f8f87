package usecase

import (
	"context"
	"fmt"
	"time"

	"newstack/internal/domain"
	"newstack/internal/ports"
)

// DefaultRecentWindow bounds what counts as "recent" news in preflight.
const DefaultRecentWindow = 72 * time.Hour

// PreflightResult summarises source eligibility before the remote call.
type PreflightResult struct {
	Total         int
	Eligible      int
	RecentStories int
	Skipped       bool
}

// UpToDate is true when sources exist but none is due for refresh.
func (r PreflightResult) UpToDate() bool {
	return !r.Skipped && r.Total > 0 && r.Eligible == 0
}

// Preflight avoids invoking the remote function when nothing is due.
type Preflight struct {
	catalog         ports.SourceCatalog
	defaultInterval time.Duration
	recentWindow    time.Duration
	now             func() time.Time
}

// NewPreflight builds the check; a nil catalog turns it into a pass-through.
func NewPreflight(catalog ports.SourceCatalog, defaultInterval, recentWindow time.Duration, now func() time.Time) *Preflight {
	if defaultInterval <= 0 {
		defaultInterval = domain.DefaultFetchInterval
	}
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Preflight{catalog: catalog, defaultInterval: defaultInterval, recentWindow: recentWindow, now: now}
}

// Check counts total and eligible sources and, when nothing is due, how many
// stories were published inside the recent window.
func (p *Preflight) Check(ctx context.Context) (PreflightResult, error) {
	if p == nil || p.catalog == nil {
		return PreflightResult{Skipped: true}, nil
	}

	sources, err := p.catalog.ListActiveSources(ctx)
	if err != nil {
		return PreflightResult{}, fmt.Errorf("list sources: %w", err)
	}

	now := p.now()
	result := PreflightResult{Total: len(sources)}
	for _, source := range sources {
		if source.Due(now, p.defaultInterval) {
			result.Eligible++
		}
	}

	if !result.UpToDate() {
		return result, nil
	}

	recent, err := p.catalog.CountStoriesPublishedSince(ctx, now.Add(-p.recentWindow))
	if err != nil {
		return PreflightResult{}, fmt.Errorf("count recent stories: %w", err)
	}
	result.RecentStories = recent
	return result, nil
}
