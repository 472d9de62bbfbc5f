package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 365, cfg.Streak.LookbackDays)
	assert.Equal(t, 7, cfg.Rewards.WeeklyStreakThreshold)
	assert.Empty(t, cfg.RedisAddr)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ROUTINE_PORT":       " 9090 ",
		"ROUTINE_DB":         ":memory:",
		"ROUTINE_REDIS_ADDR": "localhost:6379",
		"ROUTINE_TIMEZONE":   "UTC",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Defaults()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "dev", cfg.LogMode)

	env["ROUTINE_PORT"] = "eighty"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
port: 9000
db: /tmp/routines.db
timezone: UTC
lock:
  ttl: 2s
  wait: 500ms
rewards:
  weekly_bonus_points: 250
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/routines.db", cfg.DBPath)
	assert.Equal(t, 2*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 500*time.Millisecond, cfg.LockOptions().Wait)
	assert.Equal(t, 250, cfg.Programs().WeeklyBonusPoints)
	// Unset keys keep their defaults.
	assert.Equal(t, 100, cfg.Programs().GroupCompletionPoints)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"db", func(c *Config) { c.DBPath = "" }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"ttl", func(c *Config) { c.Lock.TTL = 0 }},
		{"wait", func(c *Config) { c.Lock.Wait = -time.Second }},
		{"lookback", func(c *Config) { c.Streak.LookbackDays = 0 }},
		{"threshold", func(c *Config) { c.Rewards.WeeklyStreakThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
