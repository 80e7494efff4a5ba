// Package domaintest provides in-memory repository implementations for
// tests. They honor the same contracts as the postgres repositories,
// including forward-only last_seen_at and upsert-by-uid feed refreshes.
package domaintest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pscheid92/signcast/internal/domain"
)

// MemoryDisplayRepo is a mutex-guarded in-memory domain.DisplayRepository.
type MemoryDisplayRepo struct {
	mu       sync.Mutex
	nextID   int64
	displays map[string]*domain.Display
}

func NewMemoryDisplayRepo() *MemoryDisplayRepo {
	return &MemoryDisplayRepo{displays: make(map[string]*domain.Display)}
}

func (r *MemoryDisplayRepo) GetByName(_ context.Context, name string) (*domain.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.displays[name]
	if !ok {
		return nil, domain.ErrDisplayNotFound
	}
	copy := *d
	return &copy, nil
}

func (r *MemoryDisplayRepo) List(_ context.Context) ([]domain.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Display, 0, len(r.displays))
	for _, d := range r.displays {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryDisplayRepo) Create(_ context.Context, name string, heartbeatPeriod time.Duration) (*domain.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d := &domain.Display{
		ID:              r.nextID,
		Name:            name,
		HeartbeatPeriod: heartbeatPeriod,
	}
	r.displays[name] = d
	copy := *d
	return &copy, nil
}

func (r *MemoryDisplayRepo) UpdateSettings(_ context.Context, name string, settings domain.DisplaySettings) (*domain.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.displays[name]
	if !ok {
		return nil, domain.ErrDisplayNotFound
	}
	d.ShowOverlay = settings.ShowOverlay
	d.Rotation = settings.Rotation
	if settings.HeartbeatPeriod > 0 {
		d.HeartbeatPeriod = settings.HeartbeatPeriod
	}
	copy := *d
	return &copy, nil
}

func (r *MemoryDisplayRepo) AssignSlideshow(_ context.Context, name string, slideshowID *int64) (*domain.Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.displays[name]
	if !ok {
		return nil, domain.ErrDisplayNotFound
	}
	d.SlideshowID = slideshowID
	copy := *d
	return &copy, nil
}

func (r *MemoryDisplayRepo) Touch(_ context.Context, name string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.displays[name]
	if !ok {
		return domain.ErrDisplayNotFound
	}
	// last_seen_at only ever moves forward.
	if d.LastSeenAt == nil || seenAt.After(*d.LastSeenAt) {
		ts := seenAt
		d.LastSeenAt = &ts
	}
	return nil
}

func (r *MemoryDisplayRepo) NamesForSlideshow(_ context.Context, slideshowID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, d := range r.displays {
		if d.SlideshowID != nil && *d.SlideshowID == slideshowID {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// MemorySlideshowRepo is an in-memory domain.SlideshowRepository.
type MemorySlideshowRepo struct {
	mu         sync.Mutex
	nextID     int64
	slideshows map[int64]*domain.Slideshow
}

func NewMemorySlideshowRepo() *MemorySlideshowRepo {
	return &MemorySlideshowRepo{slideshows: make(map[int64]*domain.Slideshow)}
}

// Add seeds a slideshow and returns its id.
func (r *MemorySlideshowRepo) Add(name string, defaultDuration int, items ...domain.SlideshowItem) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.slideshows[r.nextID] = &domain.Slideshow{
		ID:              r.nextID,
		Name:            name,
		DefaultDuration: defaultDuration,
		Items:           items,
	}
	return r.nextID
}

func (r *MemorySlideshowRepo) GetByID(_ context.Context, id int64) (*domain.Slideshow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slideshows[id]
	if !ok {
		return nil, domain.ErrSlideshowNotFound
	}
	copy := *s
	return &copy, nil
}

func (r *MemorySlideshowRepo) List(_ context.Context) ([]domain.Slideshow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Slideshow, 0, len(r.slideshows))
	for _, s := range r.slideshows {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemorySlideshowRepo) Update(_ context.Context, id int64, name string, defaultDuration int) (*domain.Slideshow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slideshows[id]
	if !ok {
		return nil, domain.ErrSlideshowNotFound
	}
	s.Name = name
	s.DefaultDuration = defaultDuration
	copy := *s
	return &copy, nil
}

func (r *MemorySlideshowRepo) Delete(_ context.Context, id int64) (*domain.Slideshow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slideshows[id]
	if !ok {
		return nil, domain.ErrSlideshowNotFound
	}
	delete(r.slideshows, id)
	return s, nil
}

// MemoryFeedRepo is an in-memory domain.FeedRepository.
type MemoryFeedRepo struct {
	mu     sync.Mutex
	nextID int64
	feeds  map[string]*domain.ExternalFeed
	events map[int64]map[string]domain.FeedEvent // feedID -> uid -> event
}

func NewMemoryFeedRepo() *MemoryFeedRepo {
	return &MemoryFeedRepo{
		feeds:  make(map[string]*domain.ExternalFeed),
		events: make(map[int64]map[string]domain.FeedEvent),
	}
}

func (r *MemoryFeedRepo) GetOrCreateByURL(_ context.Context, url string) (*domain.ExternalFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[url]; ok {
		copy := *f
		return &copy, nil
	}
	r.nextID++
	f := &domain.ExternalFeed{ID: r.nextID, URL: url}
	r.feeds[url] = f
	r.events[f.ID] = make(map[string]domain.FeedEvent)
	copy := *f
	return &copy, nil
}

func (r *MemoryFeedRepo) List(_ context.Context) ([]domain.ExternalFeed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ExternalFeed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryFeedRepo) MarkFetched(_ context.Context, feedID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.feeds {
		if f.ID == feedID {
			ts := at
			f.LastFetchedAt = &ts
			f.LastError = nil
			return nil
		}
	}
	return domain.ErrFeedNotFound
}

func (r *MemoryFeedRepo) MarkError(_ context.Context, feedID int64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.feeds {
		if f.ID == feedID {
			msg := message
			f.LastError = &msg
			return nil
		}
	}
	return domain.ErrFeedNotFound
}

func (r *MemoryFeedRepo) ReplaceEvents(_ context.Context, feedID int64, events []domain.FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.events[feedID]
	if !ok {
		return domain.ErrFeedNotFound
	}

	present := make(map[string]struct{}, len(events))
	for _, evt := range events {
		present[evt.UID] = struct{}{}
		stored, known := existing[evt.UID]
		if known {
			// Upsert: keep the row's id stable.
			evt.ID = stored.ID
		} else {
			r.nextID++
			evt.ID = r.nextID
		}
		evt.FeedID = feedID
		existing[evt.UID] = evt
	}

	for uid := range existing {
		if _, keep := present[uid]; !keep {
			delete(existing, uid)
		}
	}
	return nil
}

func (r *MemoryFeedRepo) EventsBetween(_ context.Context, feedID int64, from, to time.Time) ([]domain.FeedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.events[feedID]
	if !ok {
		return nil, domain.ErrFeedNotFound
	}

	var out []domain.FeedEvent
	for _, evt := range existing {
		if evt.StartsAt.Before(to) && evt.EndsAt.After(from) {
			out = append(out, evt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}
