package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/signcast_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.DefaultHeartbeatPeriod)
	assert.Equal(t, 10*time.Second, cfg.FeedFetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DefaultFeedStaleness)
	assert.Equal(t, 16, cfg.PushSendBuffer)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-positive heartbeat", "DEFAULT_HEARTBEAT_PERIOD", "0s"},
		{"non-positive fetch timeout", "FEED_FETCH_TIMEOUT", "-1s"},
		{"zero send buffer", "PUSH_SEND_BUFFER", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/signcast_test")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
