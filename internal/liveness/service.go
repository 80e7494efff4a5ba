// Package liveness ingests display heartbeats and derives health state.
//
// State is never stored: it is recomputed on read from the display's
// last_seen_at and heartbeat period via domain.ClassifyLiveness, which
// needs no lock or background timer.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/logging"
	"github.com/pscheid92/signcast/internal/metrics"
)

// ErrRateLimited is returned when a display pings faster than its own
// heartbeat period plausibly allows.
var ErrRateLimited = errors.New("heartbeat rate limited")

// limiterBurst allows a reconnecting display to catch up with a couple of
// queued pings without tripping the limiter.
const limiterBurst = 3

// Service handles liveness pings. Unknown display identities are
// auto-registered on first contact.
type Service struct {
	displays      domain.DisplayRepository
	clock         clockwork.Clock
	defaultPeriod time.Duration

	mu       sync.Mutex
	limiters map[string]*displayLimiter
}

// displayLimiter remembers the period its limiter was derived from so a
// settings change takes effect on the next ping.
type displayLimiter struct {
	limiter *rate.Limiter
	period  time.Duration
}

func NewService(displays domain.DisplayRepository, clock clockwork.Clock, defaultPeriod time.Duration) *Service {
	return &Service{
		displays:      displays,
		clock:         clock,
		defaultPeriod: defaultPeriod,
		limiters:      make(map[string]*displayLimiter),
	}
}

// Heartbeat records a liveness ping for the named display, creating it on
// first contact. The repository guarantees last_seen_at only moves forward.
func (s *Service) Heartbeat(ctx context.Context, name string) (*domain.Display, error) {
	display, err := s.displays.GetByName(ctx, name)
	if errors.Is(err, domain.ErrDisplayNotFound) {
		display, err = s.displays.Create(ctx, name, s.defaultPeriod)
		if err != nil {
			metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to auto-register display: %w", err)
		}
		logging.WithDisplay(name).Info("Display auto-registered on first contact")
		metrics.HeartbeatsTotal.WithLabelValues("registered").Inc()
	} else if err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load display: %w", err)
	}

	if !s.allow(name, display.HeartbeatPeriod) {
		metrics.HeartbeatsTotal.WithLabelValues("limited").Inc()
		return nil, ErrRateLimited
	}

	now := s.clock.Now()
	if err := s.displays.Touch(ctx, name, now); err != nil {
		metrics.HeartbeatsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	display.LastSeenAt = &now
	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	return display, nil
}

// Status classifies the display as of the service clock's now.
func (s *Service) Status(d *domain.Display) domain.LivenessState {
	return d.Liveness(s.clock.Now())
}

// allow enforces a per-display ping budget of roughly twice the configured
// heartbeat rate, so a misbehaving client cannot hammer the write path.
func (s *Service) allow(name string, period time.Duration) bool {
	if period <= 0 {
		period = s.defaultPeriod
	}

	s.mu.Lock()
	entry, ok := s.limiters[name]
	if !ok {
		entry = &displayLimiter{
			limiter: rate.NewLimiter(rate.Every(period/2), limiterBurst),
			period:  period,
		}
		s.limiters[name] = entry
	} else if entry.period != period {
		entry.limiter.SetLimit(rate.Every(period / 2))
		entry.period = period
	}
	s.mu.Unlock()

	return entry.limiter.Allow()
}
