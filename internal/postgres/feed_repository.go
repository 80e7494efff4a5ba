package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/signcast/internal/domain"
)

const feedColumns = `id, url, last_fetched_at, last_error, created_at, updated_at`

// FeedRepo implements domain.FeedRepository backed by PostgreSQL.
type FeedRepo struct {
	pool *pgxpool.Pool
}

func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

func scanFeed(row pgx.Row) (*domain.ExternalFeed, error) {
	var f domain.ExternalFeed
	err := row.Scan(&f.ID, &f.URL, &f.LastFetchedAt, &f.LastError, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetOrCreateByURL returns the single feed row for the URL, inserting it on
// first use. The no-op DO UPDATE makes RETURNING yield the existing row on
// conflict.
func (r *FeedRepo) GetOrCreateByURL(ctx context.Context, url string) (*domain.ExternalFeed, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO external_feeds (url)
		 VALUES ($1)
		 ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		 RETURNING `+feedColumns, url)

	feed, err := scanFeed(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create feed: %w", err)
	}
	return feed, nil
}

func (r *FeedRepo) List(ctx context.Context) ([]domain.ExternalFeed, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+feedColumns+` FROM external_feeds ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.ExternalFeed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

func (r *FeedRepo) MarkFetched(ctx context.Context, feedID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE external_feeds
		 SET last_fetched_at = $2, last_error = NULL, updated_at = now()
		 WHERE id = $1`, feedID, at)
	if err != nil {
		return fmt.Errorf("failed to mark feed fetched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFeedNotFound
	}
	return nil
}

func (r *FeedRepo) MarkError(ctx context.Context, feedID int64, message string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE external_feeds SET last_error = $2, updated_at = now() WHERE id = $1`,
		feedID, message)
	if err != nil {
		return fmt.Errorf("failed to mark feed error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFeedNotFound
	}
	return nil
}

// ReplaceEvents reconciles the stored events with a freshly fetched set.
// Each event upserts by (feed_id, uid) so stable UIDs keep their row IDs;
// rows whose UID is absent from the new set are removed. Runs in a single
// transaction so readers never observe a half-replaced feed.
func (r *FeedRepo) ReplaceEvents(ctx context.Context, feedID int64, events []domain.FeedEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	uids := make([]string, 0, len(events))
	for _, evt := range events {
		uids = append(uids, evt.UID)

		_, err := tx.Exec(ctx,
			`INSERT INTO external_feed_events (feed_id, uid, summary, starts_at, ends_at, resource_tags)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (feed_id, uid) DO UPDATE
			 SET summary = EXCLUDED.summary,
			     starts_at = EXCLUDED.starts_at,
			     ends_at = EXCLUDED.ends_at,
			     resource_tags = EXCLUDED.resource_tags`,
			feedID, evt.UID, evt.Summary, evt.StartsAt, evt.EndsAt, evt.ResourceTags)
		if err != nil {
			return fmt.Errorf("failed to upsert feed event: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM external_feed_events WHERE feed_id = $1 AND uid != ALL($2)`,
		feedID, uids)
	if err != nil {
		return fmt.Errorf("failed to prune stale feed events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *FeedRepo) EventsBetween(ctx context.Context, feedID int64, from, to time.Time) ([]domain.FeedEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, feed_id, uid, summary, starts_at, ends_at, resource_tags
		 FROM external_feed_events
		 WHERE feed_id = $1 AND starts_at < $3 AND ends_at > $2
		 ORDER BY starts_at, uid`, feedID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed events: %w", err)
	}
	defer rows.Close()

	var events []domain.FeedEvent
	for rows.Next() {
		var e domain.FeedEvent
		if err := rows.Scan(&e.ID, &e.FeedID, &e.UID, &e.Summary, &e.StartsAt, &e.EndsAt, &e.ResourceTags); err != nil {
			return nil, fmt.Errorf("failed to scan feed event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
