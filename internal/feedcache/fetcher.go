package feedcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/metrics"
)

const (
	circuitFailureThreshold = 5
	circuitOpenDuration     = 30 * time.Second
)

// Fetcher retrieves and normalizes a remote calendar resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]domain.FeedEvent, error)
}

// HTTPFetcher fetches ICS calendars over HTTP. The client timeout must
// stay below the page request timeout so a hung remote cannot wedge the
// slide renderer; a circuit breaker keeps a flapping remote from eating
// the whole timeout on every render.
type HTTPFetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	settings := gobreaker.Settings{
		Name: "feed-fetch",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= circuitFailureThreshold
		},
		Timeout: circuitOpenDuration,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Feed fetch circuit state changed", "from", from.String(), "to", to.String())
			metrics.FeedCircuitState.Set(float64(to))
		},
	}

	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]domain.FeedEvent, error) {
	start := time.Now()
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx, url)
	})
	metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return result.([]domain.FeedEvent), nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) ([]domain.FeedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
	}

	events, err := parseCalendar(resp)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func parseCalendar(resp *http.Response) ([]domain.FeedEvent, error) {
	cal, err := ics.ParseCalendar(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var events []domain.FeedEvent
	for _, vevent := range cal.Events() {
		uidProp := vevent.GetProperty(ics.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			// An entry without a UID cannot be upserted; skip it rather
			// than fail the whole refresh.
			slog.Warn("Skipping calendar entry without UID")
			continue
		}

		start, err := vevent.GetStartAt()
		if err != nil {
			slog.Warn("Skipping calendar entry without valid start", "uid", uidProp.Value, "error", err)
			continue
		}
		end, err := vevent.GetEndAt()
		if err != nil {
			end = start
		}

		summary := ""
		if p := vevent.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = p.Value
		}

		var tags []string
		if p := vevent.GetProperty(ics.ComponentPropertyCategories); p != nil && p.Value != "" {
			for _, tag := range strings.Split(p.Value, ",") {
				if trimmed := strings.TrimSpace(tag); trimmed != "" {
					tags = append(tags, trimmed)
				}
			}
		}

		events = append(events, domain.FeedEvent{
			UID:          uidProp.Value,
			Summary:      summary,
			StartsAt:     start.UTC(),
			EndsAt:       end.UTC(),
			ResourceTags: tags,
		})
	}

	return events, nil
}
