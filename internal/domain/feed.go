package domain

import (
	"context"
	"time"
)

// ExternalFeed is a remote calendar resource shared by every slide that
// references the same URL. At most one row exists per distinct URL.
type ExternalFeed struct {
	ID            int64
	URL           string
	LastFetchedAt *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeedEvent is a normalized calendar entry. UID is the remote resource's
// own identifier; (FeedID, UID) is unique so refreshes upsert instead of
// duplicating.
type FeedEvent struct {
	ID           int64
	FeedID       int64
	UID          string
	Summary      string
	StartsAt     time.Time
	EndsAt       time.Time
	ResourceTags []string
}

type FeedRepository interface {
	GetOrCreateByURL(ctx context.Context, url string) (*ExternalFeed, error)
	List(ctx context.Context) ([]ExternalFeed, error)
	MarkFetched(ctx context.Context, feedID int64, at time.Time) error
	MarkError(ctx context.Context, feedID int64, message string) error
	// ReplaceEvents upserts each event by (feed_id, uid) and removes rows
	// whose UID is absent from the given set.
	ReplaceEvents(ctx context.Context, feedID int64, events []FeedEvent) error
	EventsBetween(ctx context.Context, feedID int64, from, to time.Time) ([]FeedEvent, error)
}
