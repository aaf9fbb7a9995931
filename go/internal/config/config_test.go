package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusguard/focusguard/go/internal/models"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Reward.XPPerMinute)
	assert.Equal(t, 250, cfg.Reward.XPPerLevel)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 4*time.Hour, cfg.Session.MaxPlannedDuration)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9090"
reward:
  xp_per_minute: 12
  timezone: Europe/Berlin
  tiers:
    - rarity: legendary
      probability: 0.1
  default_rarity: none
sweep:
  interval: 30s
  workers: 2
session:
  max_planned_duration: 2h
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 12, cfg.Reward.XPPerMinute)
	assert.Equal(t, 250, cfg.Reward.XPPerLevel)
	assert.Equal(t, "Europe/Berlin", cfg.Reward.Timezone)
	require.Len(t, cfg.Reward.Tiers, 1)
	assert.Equal(t, models.RarityLegendary, cfg.Reward.Tiers[0].Rarity)
	assert.Equal(t, models.RarityNone, cfg.Reward.DefaultRarity)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, 2, cfg.Sweep.Workers)
	assert.Equal(t, 6*time.Hour, cfg.Sweep.Ceiling)
	assert.Equal(t, 2*time.Hour, cfg.Session.MaxPlannedDuration)
}

func TestLoad_RejectsInvalidPolicy(t *testing.T) {
	_, err := Load(writeFile(t, "reward:\n  xp_per_level: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "reward:\n  timezone: Mars/Olympus\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "sweep:\n  workers: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [\n"))
	assert.Error(t, err)
}
