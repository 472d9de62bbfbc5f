/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults()
  2. YAML file (optional)
  3. Environment: ROUTINE_PORT, ROUTINE_DB, ROUTINE_REDIS_ADDR,
     ROUTINE_TIMEZONE, ROUTINE_LOG_MODE
  4. CLI flags, applied by cmd/server

EXAMPLE (routine.yaml):
  port: 8080
  db: ./data/routines.db
  timezone: Asia/Seoul
  redis_addr: localhost:6379
  lock:
    ttl: 5s
    wait: 3s
  streak:
    lookback_days: 365
  rewards:
    weekly_bonus_points: 100
    weekly_streak_threshold: 7
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
)

type Config struct {
	Port      int    `yaml:"port"`
	DBPath    string `yaml:"db"`
	RedisAddr string `yaml:"redis_addr"` // empty: in-process locks
	Timezone  string `yaml:"timezone"`
	LogMode   string `yaml:"log_mode"` // dev | prod

	Lock    LockConfig    `yaml:"lock"`
	Streak  StreakConfig  `yaml:"streak"`
	Rewards RewardsConfig `yaml:"rewards"`
}

type LockConfig struct {
	TTL  time.Duration `yaml:"ttl"`
	Wait time.Duration `yaml:"wait"`
}

type StreakConfig struct {
	LookbackDays int `yaml:"lookback_days"`
}

type RewardsConfig struct {
	WeeklyBonusPoints        int `yaml:"weekly_bonus_points"`
	WeeklyStreakThreshold    int `yaml:"weekly_streak_threshold"`
	PersonalCompletionPoints int `yaml:"personal_completion_points"`
	GroupCompletionPoints    int `yaml:"group_completion_points"`
}

func Defaults() Config {
	programs := rewards.DefaultProgramConfig()
	return Config{
		Port:     8080,
		DBPath:   "routines.db",
		Timezone: "Asia/Seoul",
		LogMode:  "dev",
		Lock: LockConfig{
			TTL:  generic.DefaultLockTTL,
			Wait: generic.DefaultLockWait,
		},
		Streak: StreakConfig{LookbackDays: routine.DefaultLookback},
		Rewards: RewardsConfig{
			WeeklyBonusPoints:        programs.WeeklyBonusPoints,
			WeeklyStreakThreshold:    programs.WeeklyStreakThreshold,
			PersonalCompletionPoints: programs.PersonalCompletionPoints,
			GroupCompletionPoints:    programs.GroupCompletionPoints,
		},
	}
}

// Load reads defaults, then path (if non-empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ROUTINE_PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ROUTINE_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("ROUTINE_DB"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("ROUTINE_REDIS_ADDR"); ok {
		c.RedisAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup("ROUTINE_TIMEZONE"); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := lookup("ROUTINE_LOG_MODE"); ok && v != "" {
		c.LogMode = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock ttl must be positive")
	}
	if c.Lock.Wait < 0 {
		return fmt.Errorf("lock wait must not be negative")
	}
	if c.Streak.LookbackDays <= 0 {
		return fmt.Errorf("streak lookback must be positive")
	}
	return c.Programs().Validate()
}

// Location resolves Timezone. Empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) LockOptions() generic.LockOptions {
	opts := generic.DefaultLockOptions()
	opts.TTL = c.Lock.TTL
	opts.Wait = c.Lock.Wait
	return opts
}

func (c Config) Programs() rewards.ProgramConfig {
	return rewards.ProgramConfig{
		WeeklyBonusPoints:        c.Rewards.WeeklyBonusPoints,
		WeeklyStreakThreshold:    c.Rewards.WeeklyStreakThreshold,
		PersonalCompletionPoints: c.Rewards.PersonalCompletionPoints,
		GroupCompletionPoints:    c.Rewards.GroupCompletionPoints,
	}
}
