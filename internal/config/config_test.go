package config

import (
	"testing"
	"time"

	"github.com/mattermost/gulag-bot/internal/punish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MM_SERVER", "MM_TOKEN", "MM_TEAM", "MM_USERNAME",
		"GULAG_VOTES", "GULAG_PUNISHMENT", "GULAG_MUTE_MINUTES", "GULAG_LOCALE",
		"GULAG_TRIGGER", "GULAG_LISTEN", "GULAG_ACTION_URL", "GULAG_ACTION_TIMEOUT",
		"GULAG_ACTION_SECRET",
		"DATABASE_URL", "DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.VotesRequired)
	assert.Equal(t, punish.Ban, cfg.Punishment)
	assert.Equal(t, 60, cfg.MuteMinutes)
	assert.Equal(t, time.Hour, cfg.MuteDuration())
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "!gulag", cfg.Trigger)
	assert.Equal(t, ":8081", cfg.Listen)
	assert.Equal(t, DefaultActionURL, cfg.ActionURL)
	assert.Equal(t, 10*time.Second, cfg.ActionTimeout)
	assert.NotEmpty(t, cfg.ActionSecret, "a secret is generated when none is set")
	assert.False(t, cfg.Debug)

	again, err := Load()
	require.NoError(t, err)
	assert.NotEqual(t, cfg.ActionSecret, again.ActionSecret)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MM_SERVER", "https://chat.example.com")
	t.Setenv("MM_TOKEN", "secret")
	t.Setenv("GULAG_VOTES", "2")
	t.Setenv("GULAG_PUNISHMENT", "mute")
	t.Setenv("GULAG_MUTE_MINUTES", "15")
	t.Setenv("GULAG_LOCALE", "ru")
	t.Setenv("GULAG_ACTION_TIMEOUT", "3s")
	t.Setenv("GULAG_ACTION_SECRET", "s3cr3t")
	t.Setenv("DEBUG", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chat.example.com", cfg.MattermostServer.Host)
	assert.Equal(t, 2, cfg.VotesRequired)
	assert.Equal(t, punish.Mute, cfg.Punishment)
	assert.Equal(t, 15*time.Minute, cfg.MuteDuration())
	assert.Equal(t, "ru", cfg.Locale)
	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.Equal(t, "s3cr3t", cfg.ActionSecret)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value, contains string
	}{
		{"GULAG_VOTES", "0", "GULAG_VOTES"},
		{"GULAG_VOTES", "many", "GULAG_VOTES"},
		{"GULAG_MUTE_MINUTES", "-5", "GULAG_MUTE_MINUTES"},
		{"GULAG_PUNISHMENT", "exile", "GULAG_PUNISHMENT"},
		{"GULAG_ACTION_TIMEOUT", "soon", "GULAG_ACTION_TIMEOUT"},
		{"GULAG_ACTION_TIMEOUT", "-1s", "GULAG_ACTION_TIMEOUT"},
		{"GULAG_ACTION_URL", "not a url", "GULAG_ACTION_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestStringMasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("MM_TOKEN", "supersecret")
	t.Setenv("DATABASE_URL", "postgres://bot:hunter2@db:5432/gulag")
	t.Setenv("GULAG_ACTION_SECRET", "buttonsecret")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "supersecret")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "buttonsecret")
	assert.Contains(t, s, "postgres://bot@db:5432/gulag")
}
