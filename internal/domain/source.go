package domain

import "time"

// DefaultFetchInterval applies to sources without a configured interval.
const DefaultFetchInterval = 15 * time.Minute

// FeedSource is the preflight projection of an active data source.
type FeedSource struct {
	ID                   string
	LastFetchedAt        *time.Time
	FetchIntervalMinutes int
}

// Interval returns the source refresh interval, falling back to fallback.
func (s FeedSource) Interval(fallback time.Duration) time.Duration {
	if s.FetchIntervalMinutes > 0 {
		return time.Duration(s.FetchIntervalMinutes) * time.Minute
	}
	if fallback <= 0 {
		return DefaultFetchInterval
	}
	return fallback
}

// Due reports whether the source should be refreshed at now.
func (s FeedSource) Due(now time.Time, fallback time.Duration) bool {
	if s.LastFetchedAt == nil || s.LastFetchedAt.IsZero() {
		return true
	}
	return now.Sub(*s.LastFetchedAt) >= s.Interval(fallback)
}

// StoryPreview is a read-only projection of a freshly created story.
type StoryPreview struct {
	ID               string    `json:"id"`
	Headline         string    `json:"headline"`
	FirstPublishedAt time.Time `json:"firstPublishedAt"`
	CreatedAt        time.Time `json:"createdAt"`
}
