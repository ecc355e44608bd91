package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "gamehost.db", cfg.DBPath)
	assert.Equal(t, time.Minute, cfg.PokeAfter)
	assert.Equal(t, 5*time.Minute, cfg.ForfeitAfter)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("FORFEIT_AFTER", "90s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 90*time.Second, cfg.ForfeitAfter)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("POKE_AFTER", "soon")
	_, err := Load()
	assert.Error(t, err)
}
