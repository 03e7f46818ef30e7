package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Game struct {
		BettingWindowMS int     `yaml:"betting_window_ms"`
		TickIntervalMS  int     `yaml:"tick_interval_ms"`
		CoolDownMS      int     `yaml:"cool_down_ms"`
		GrowthRate      float64 `yaml:"growth_rate"`
		MinBet          int64   `yaml:"min_bet"`
		MaxBet          int64   `yaml:"max_bet"`
		StartingBalance int64   `yaml:"starting_balance"`
	} `yaml:"game"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Reconcile struct {
		Cron string `yaml:"cron"`
	} `yaml:"reconcile"`
	Webhook struct {
		URL string `yaml:"url"`
	} `yaml:"webhook"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("RECONCILE_CRON"); v != "" {
		cfg.Reconcile.Cron = v
	}
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Game.StartingBalance = n
		}
	}
	if v := os.Getenv("GROWTH_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Game.GrowthRate = f
		}
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Game.BettingWindowMS == 0 {
		cfg.Game.BettingWindowMS = 5000
	}
	if cfg.Game.TickIntervalMS == 0 {
		cfg.Game.TickIntervalMS = 100
	}
	if cfg.Game.CoolDownMS == 0 {
		cfg.Game.CoolDownMS = 3000
	}
	if cfg.Game.GrowthRate == 0 {
		cfg.Game.GrowthRate = 0.15
	}
	if cfg.Game.MinBet == 0 {
		cfg.Game.MinBet = 100
	}
	if cfg.Game.StartingBalance == 0 {
		cfg.Game.StartingBalance = 100000
	}
	if cfg.Reconcile.Cron == "" {
		cfg.Reconcile.Cron = "@every 10m"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/skycrash.db"
	}

	return cfg, nil
}

// Validate checks that all fields are coherent.
func (c *Config) Validate() error {
	if c.Game.BettingWindowMS <= 0 {
		return fmt.Errorf("game.betting_window_ms must be positive")
	}
	if c.Game.TickIntervalMS <= 0 {
		return fmt.Errorf("game.tick_interval_ms must be positive")
	}
	if c.Game.GrowthRate <= 0 {
		return fmt.Errorf("game.growth_rate must be positive")
	}
	if c.Game.MinBet < 0 || c.Game.MaxBet < 0 {
		return fmt.Errorf("game.min_bet and game.max_bet must not be negative")
	}
	if c.Game.MaxBet > 0 && c.Game.MaxBet < c.Game.MinBet {
		return fmt.Errorf("game.max_bet must not be below game.min_bet")
	}
	if c.Game.StartingBalance < 0 {
		return fmt.Errorf("game.starting_balance must not be negative")
	}
	return nil
}

// BettingWindow returns the betting window as a duration.
func (c *Config) BettingWindow() time.Duration {
	return time.Duration(c.Game.BettingWindowMS) * time.Millisecond
}

// TickInterval returns the tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Game.TickIntervalMS) * time.Millisecond
}

// CoolDown returns the inter-round cool-down as a duration.
func (c *Config) CoolDown() time.Duration {
	return time.Duration(c.Game.CoolDownMS) * time.Millisecond
}
