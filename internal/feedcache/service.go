// Package feedcache keeps externally-sourced calendar content fresh
// without blocking rendering.
//
// Two entry points share one cache, keyed by feed URL: Events is the lazy,
// staleness-gated path consulted at render time, and RefreshAll lets an
// external scheduler pre-warm every known feed. A remote failure never
// blanks a display; whatever is already cached keeps being served.
package feedcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/metrics"
)

// Window bounds an event lookup, e.g. "today".
type Window struct {
	From time.Time
	To   time.Time
}

// FeedError records one feed's failure during a batch refresh.
type FeedError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Summary reports the outcome of a RefreshAll run.
type Summary struct {
	Refreshed int         `json:"refreshed"`
	Errors    []FeedError `json:"errors"`
}

type Service struct {
	feeds   domain.FeedRepository
	fetcher Fetcher
	clock   clockwork.Clock
}

func NewService(feeds domain.FeedRepository, fetcher Fetcher, clock clockwork.Clock) *Service {
	return &Service{
		feeds:   feeds,
		fetcher: fetcher,
		clock:   clock,
	}
}

// Events returns the cached events for feedURL intersecting window,
// refreshing first when the cache is older than staleness. Two slides
// sharing a URL share one feed row, so refresh cost does not scale with
// the number of slides. A failed refresh serves cached data instead of
// failing the render.
func (s *Service) Events(ctx context.Context, feedURL string, staleness time.Duration, window Window) ([]domain.FeedEvent, error) {
	feed, err := s.feeds.GetOrCreateByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feed: %w", err)
	}

	if s.isStale(feed, staleness) {
		if err := s.refresh(ctx, feed); err != nil {
			// Fall through to cached rows: a transient outage must never
			// blank a display.
			slog.Warn("Feed refresh failed, serving cached events",
				"feed_url", feedURL,
				"error", err,
			)
		}
	} else {
		metrics.FeedRefreshTotal.WithLabelValues("skipped").Inc()
	}

	events, err := s.feeds.EventsBetween(ctx, feed.ID, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached events: %w", err)
	}
	return events, nil
}

// RefreshAll refreshes every known feed regardless of staleness. One
// feed's failure never aborts the batch; each is reported in the summary.
func (s *Service) RefreshAll(ctx context.Context) Summary {
	var summary Summary

	feeds, err := s.feeds.List(ctx)
	if err != nil {
		slog.Error("Failed to list feeds for batch refresh", "error", err)
		summary.Errors = append(summary.Errors, FeedError{Error: err.Error()})
		return summary
	}

	for i := range feeds {
		feed := feeds[i]
		if err := s.refresh(ctx, &feed); err != nil {
			summary.Errors = append(summary.Errors, FeedError{URL: feed.URL, Error: err.Error()})
			continue
		}
		summary.Refreshed++
	}

	slog.Info("Feed batch refresh complete",
		"refreshed", summary.Refreshed,
		"errors", len(summary.Errors),
	)
	return summary
}

func (s *Service) isStale(feed *domain.ExternalFeed, staleness time.Duration) bool {
	if feed.LastFetchedAt == nil {
		return true
	}
	return s.clock.Now().Sub(*feed.LastFetchedAt) > staleness
}

// refresh fetches the remote resource and replaces the feed's event set.
// Concurrent refreshes of the same URL are tolerated: the upsert is
// idempotent, so the last writer simply wins.
func (s *Service) refresh(ctx context.Context, feed *domain.ExternalFeed) error {
	now := s.clock.Now()

	events, err := s.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		metrics.FeedRefreshTotal.WithLabelValues("error").Inc()
		if markErr := s.feeds.MarkError(ctx, feed.ID, err.Error()); markErr != nil {
			slog.Error("Failed to record feed error", "feed_url", feed.URL, "error", markErr)
		}
		return err
	}

	if err := s.feeds.ReplaceEvents(ctx, feed.ID, events); err != nil {
		metrics.FeedRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to store fetched events: %w", err)
	}

	if err := s.feeds.MarkFetched(ctx, feed.ID, now); err != nil {
		return fmt.Errorf("failed to record fetch time: %w", err)
	}

	metrics.FeedRefreshTotal.WithLabelValues("ok").Inc()
	return nil
}

// GroupByResource buckets events by resource tag for rendering. Untagged
// events land under the empty key.
func GroupByResource(events []domain.FeedEvent) map[string][]domain.FeedEvent {
	grouped := make(map[string][]domain.FeedEvent)
	for _, evt := range events {
		if len(evt.ResourceTags) == 0 {
			grouped[""] = append(grouped[""], evt)
			continue
		}
		for _, tag := range evt.ResourceTags {
			grouped[tag] = append(grouped[tag], evt)
		}
	}
	return grouped
}
