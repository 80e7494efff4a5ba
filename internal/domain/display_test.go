package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLiveness(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	period := 60 * time.Second

	seenAgo := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		lastSeen *time.Time
		period   time.Duration
		want     LivenessState
	}{
		{"never seen", nil, period, LivenessUnknown},
		{"zero period", seenAgo(10 * time.Second), 0, LivenessUnknown},
		{"just pinged", seenAgo(0), period, LivenessOnline},
		{"within first period", seenAgo(45 * time.Second), period, LivenessOnline},
		{"one missed beat", seenAgo(61 * time.Second), period, LivenessDegraded},
		{"two missed beats", seenAgo(125 * time.Second), period, LivenessDegraded},
		{"at threshold boundary", seenAgo(179 * time.Second), period, LivenessDegraded},
		{"past threshold", seenAgo(180 * time.Second), period, LivenessOffline},
		{"long gone", seenAgo(400 * time.Second), period, LivenessOffline},
		{"clock skew, seen in future", seenAgo(-30 * time.Second), period, LivenessOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLiveness(now, tt.lastSeen, tt.period))
		})
	}
}

func TestClassifyLivenessDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-95 * time.Second)

	first := ClassifyLiveness(now, &lastSeen, 60*time.Second)
	second := ClassifyLiveness(now, &lastSeen, 60*time.Second)
	assert.Equal(t, first, second, "identical inputs must never disagree")
}

func TestDisplayLiveness(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-30 * time.Second)

	d := Display{
		Name:            "lobby",
		HeartbeatPeriod: 60 * time.Second,
		LastSeenAt:      &lastSeen,
	}
	assert.Equal(t, LivenessOnline, d.Liveness(now))

	d.LastSeenAt = nil
	assert.Equal(t, LivenessUnknown, d.Liveness(now))
}
