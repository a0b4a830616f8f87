package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"newstack/internal/domain"
	"newstack/internal/infrastructure/parser"
	"newstack/internal/ports"
)

// Querier is the subset of pgxpool.Pool used here; pgxmock satisfies it too.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresCatalog reads sources and stories from the hosted Postgres database.
type PostgresCatalog struct {
	db Querier
}

var (
	_ ports.SourceCatalog = (*PostgresCatalog)(nil)
	_ ports.StoryReader   = (*PostgresCatalog)(nil)
)

// NewPostgresCatalog wires a pgx pool (or any Querier).
func NewPostgresCatalog(db Querier) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// ListActiveSources returns the refresh bookkeeping of every active source.
func (c *PostgresCatalog) ListActiveSources(ctx context.Context) ([]domain.FeedSource, error) {
	if c.db == nil {
		return nil, errors.New("database connection is nil")
	}

	query, args, err := psql.
		Select("id", "last_fetched_at", "fetch_interval_minutes").
		From("sources").
		Where(sq.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.FeedSource
	for rows.Next() {
		var (
			id          string
			lastFetched *time.Time
			interval    *int32
		)
		if err := rows.Scan(&id, &lastFetched, &interval); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}

		source := domain.FeedSource{ID: id, LastFetchedAt: lastFetched}
		if interval != nil {
			source.FetchIntervalMinutes = int(*interval)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return sources, nil
}

// CountStoriesPublishedSince counts stories first published at or after since.
func (c *PostgresCatalog) CountStoriesPublishedSince(ctx context.Context, since time.Time) (int, error) {
	if c.db == nil {
		return 0, errors.New("database connection is nil")
	}

	query, args, err := psql.
		Select("COUNT(*)").
		From("stories").
		Where(sq.GtOrEq{"first_published_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int64
	if err := c.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent stories: %w", err)
	}
	return int(count), nil
}

// StoriesCreatedSince lists stories created at or after since, newest first.
func (c *PostgresCatalog) StoriesCreatedSince(ctx context.Context, since time.Time, limit int) ([]domain.StoryPreview, error) {
	if c.db == nil {
		return nil, errors.New("database connection is nil")
	}
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := psql.
		Select("id", "headline", "first_published_at", "created_at").
		From("stories").
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stories query: %w", err)
	}

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	stories := make([]domain.StoryPreview, 0, limit)
	for rows.Next() {
		var story domain.StoryPreview
		if err := rows.Scan(&story.ID, &story.Headline, &story.FirstPublishedAt, &story.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		story.Headline = parser.CleanHeadline(story.Headline)
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return stories, nil
}
