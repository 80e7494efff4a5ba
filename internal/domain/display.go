package domain

import (
	"context"
	"time"
)

// LivenessState classifies a display's health derived from its heartbeat history.
type LivenessState string

const (
	LivenessUnknown  LivenessState = "unknown"
	LivenessOnline   LivenessState = "online"
	LivenessDegraded LivenessState = "degraded"
	LivenessOffline  LivenessState = "offline"
)

// DegradedMissedThreshold is the number of consecutive missed heartbeats a
// display may accumulate before it is considered offline. Missing one to
// this many beats classifies as degraded.
const DegradedMissedThreshold = 2

// Display represents a physical display client.
type Display struct {
	ID              int64
	Name            string
	SlideshowID     *int64
	HeartbeatPeriod time.Duration
	LastSeenAt      *time.Time
	ShowOverlay     bool
	Rotation        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplaySettings carries operator-editable display options.
type DisplaySettings struct {
	ShowOverlay     bool
	Rotation        int
	HeartbeatPeriod time.Duration
}

// Liveness classifies this display's state as of now.
func (d *Display) Liveness(now time.Time) LivenessState {
	return ClassifyLiveness(now, d.LastSeenAt, d.HeartbeatPeriod)
}

// ClassifyLiveness is a pure function of (now, lastSeen, period). A display
// that has never pinged is unknown. Otherwise the number of whole heartbeat
// periods elapsed since the last ping determines the state: zero missed
// beats is online, up to DegradedMissedThreshold missed is degraded,
// anything beyond is offline.
func ClassifyLiveness(now time.Time, lastSeen *time.Time, period time.Duration) LivenessState {
	if lastSeen == nil {
		return LivenessUnknown
	}
	if period <= 0 {
		return LivenessUnknown
	}

	elapsed := now.Sub(*lastSeen)
	if elapsed < 0 {
		elapsed = 0
	}

	missed := int(elapsed / period)
	switch {
	case missed == 0:
		return LivenessOnline
	case missed <= DegradedMissedThreshold:
		return LivenessDegraded
	default:
		return LivenessOffline
	}
}

type DisplayRepository interface {
	GetByName(ctx context.Context, name string) (*Display, error)
	List(ctx context.Context) ([]Display, error)
	Create(ctx context.Context, name string, heartbeatPeriod time.Duration) (*Display, error)
	UpdateSettings(ctx context.Context, name string, settings DisplaySettings) (*Display, error)
	AssignSlideshow(ctx context.Context, name string, slideshowID *int64) (*Display, error)
	// Touch records a liveness ping. Implementations must never move
	// last_seen_at backwards, even under concurrent pings.
	Touch(ctx context.Context, name string, seenAt time.Time) error
	NamesForSlideshow(ctx context.Context, slideshowID int64) ([]string, error)
}
