package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ONEBOT_WS_URL", "ws://127.0.0.1:3001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws", cfg.OneBotMode)
	assert.Equal(t, "file", cfg.StoreDriver)
	assert.Equal(t, "data/group_monitor.json", cfg.StateFile)
	assert.Equal(t, 24*time.Hour, cfg.RequestMaxAge)
	assert.Equal(t, "@every 1h", cfg.SweepSchedule)
	assert.Equal(t, "@every 5m", cfg.FlushSchedule)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.Superusers)
	assert.False(t, cfg.AuditEnabled())
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ONEBOT_MODE", "HTTP")
	t.Setenv("ONEBOT_HTTP_URL", "http://127.0.0.1:5700")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("SUPERUSERS", "111,222")
	t.Setenv("REQUEST_MAX_AGE", "30m")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DISCORD_AUDIT_CHANNEL_ID", "123")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.OneBotMode)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, []int64{111, 222}, cfg.Superusers)
	assert.Equal(t, 30*time.Minute, cfg.RequestMaxAge)
	assert.True(t, cfg.AuditEnabled())
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"ws sin url":          {"ONEBOT_MODE": "ws"},
		"modo desconocido":    {"ONEBOT_MODE": "grpc", "ONEBOT_WS_URL": "ws://x"},
		"postgres sin dsn":    {"ONEBOT_WS_URL": "ws://x", "STORE_DRIVER": "postgres"},
		"discord a medias":    {"ONEBOT_WS_URL": "ws://x", "DISCORD_BOT_TOKEN": "tok"},
		"superusers no num":   {"ONEBOT_WS_URL": "ws://x", "SUPERUSERS": "abc"},
		"max age no positivo": {"ONEBOT_WS_URL": "ws://x", "REQUEST_MAX_AGE": "0s"},
		"inbox sin dsn":       {"ONEBOT_MODE": "inbox", "ONEBOT_HTTP_URL": "http://x"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
