package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pscheid92/signcast/internal/domain"
	"github.com/pscheid92/signcast/internal/domain/domaintest"
)

func TestHeartbeatAutoRegistersUnknownDisplay(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(repo, clock, 60*time.Second)

	display, err := svc.Heartbeat(context.Background(), "lobby")
	require.NoError(t, err)

	assert.Equal(t, "lobby", display.Name)
	assert.Equal(t, 60*time.Second, display.HeartbeatPeriod)
	require.NotNil(t, display.LastSeenAt)
	assert.Equal(t, clock.Now(), *display.LastSeenAt)

	stored, err := repo.GetByName(context.Background(), "lobby")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeenAt)
}

func TestHeartbeatMovesLastSeenForwardOnly(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()

	_, err := repo.Create(context.Background(), "lobby", 60*time.Second)
	require.NoError(t, err)

	later := clock.Now().Add(10 * time.Minute)
	require.NoError(t, repo.Touch(context.Background(), "lobby", later))

	// A stale ping arriving out of order must not move last_seen_at back.
	require.NoError(t, repo.Touch(context.Background(), "lobby", clock.Now()))

	stored, err := repo.GetByName(context.Background(), "lobby")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSeenAt)
	assert.Equal(t, later, *stored.LastSeenAt)
}

func TestHeartbeatRateLimited(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(repo, clock, time.Hour)

	ctx := context.Background()

	// The burst absorbs the first few pings; past it, pings are rejected.
	for i := 0; i < limiterBurst; i++ {
		_, err := svc.Heartbeat(ctx, "lobby")
		require.NoError(t, err)
	}

	_, err := svc.Heartbeat(ctx, "lobby")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHeartbeatLimiterFollowsPeriodChange(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(repo, clock, 60*time.Second)
	ctx := context.Background()

	_, err := svc.Heartbeat(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, rate.Every(30*time.Second), svc.limiters["lobby"].limiter.Limit())

	// The next ping after a settings change runs at the new budget.
	_, err = repo.UpdateSettings(ctx, "lobby", domain.DisplaySettings{HeartbeatPeriod: 10 * time.Second})
	require.NoError(t, err)

	_, err = svc.Heartbeat(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, rate.Every(5*time.Second), svc.limiters["lobby"].limiter.Limit())
}

func TestStatusFollowsClock(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(repo, clock, 60*time.Second)

	display, err := svc.Heartbeat(context.Background(), "lobby")
	require.NoError(t, err)
	assert.Equal(t, domain.LivenessOnline, svc.Status(display))

	clock.Advance(90 * time.Second)
	assert.Equal(t, domain.LivenessDegraded, svc.Status(display))

	clock.Advance(5 * time.Minute)
	assert.Equal(t, domain.LivenessOffline, svc.Status(display))
}

func TestStatusUnknownUntilFirstPing(t *testing.T) {
	repo := domaintest.NewMemoryDisplayRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(repo, clock, 60*time.Second)

	created, err := repo.Create(context.Background(), "warehouse", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.LivenessUnknown, svc.Status(created))

	pinged, err := svc.Heartbeat(context.Background(), "warehouse")
	require.NoError(t, err)
	assert.Equal(t, domain.LivenessOnline, svc.Status(pinged))
}
