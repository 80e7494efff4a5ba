package domain

import (
	"context"
	"time"
)

// Slideshow is the ordered set of items a display renders in a loop.
type Slideshow struct {
	ID              int64
	Name            string
	DefaultDuration int // seconds
	Items           []SlideshowItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SlideshowItem is a single slide. Duration is an optional per-item
// override in seconds; nil or zero means "use the slideshow default".
type SlideshowItem struct {
	ID          int64
	SlideshowID int64
	Position    int
	ContentRef  string
	Duration    *int
}

// EffectiveDuration resolves the item's display time in seconds. An unset
// or zero override falls back to the slideshow default; an item must never
// resolve to zero seconds.
func (it SlideshowItem) EffectiveDuration(defaultDuration int) int {
	if it.Duration != nil && *it.Duration > 0 {
		return *it.Duration
	}
	return defaultDuration
}

type SlideshowRepository interface {
	GetByID(ctx context.Context, id int64) (*Slideshow, error)
	List(ctx context.Context) ([]Slideshow, error)
	Update(ctx context.Context, id int64, name string, defaultDuration int) (*Slideshow, error)
	Delete(ctx context.Context, id int64) (*Slideshow, error)
}
