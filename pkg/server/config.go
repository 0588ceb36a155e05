package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the tunables of the game server. Zero values are replaced
// by defaults in Normalize.
type Config struct {
	// Reward deltas applied at game end.
	EloRewardWin   int `yaml:"elo_reward_win"`
	MoneyRewardWin int `yaml:"money_reward_win"`
	EloPenaltyLoss int `yaml:"elo_penalty_loss"`

	// DisconnectTimeoutSec is how long an empty seat may stay empty before
	// the opponent is awarded the game.
	DisconnectTimeoutSec int `yaml:"disconnect_timeout_sec"`

	// GnubgBinary is the external engine executable.
	GnubgBinary string `yaml:"gnubg_binary"`

	// JWTSecret signs session tokens; JWTTTLHours bounds their lifetime.
	JWTSecret   string `yaml:"jwt_secret"`
	JWTTTLHours int    `yaml:"jwt_ttl_hours"`

	// File paths. DBFile and the log files live under the data dir when
	// relative.
	DBFile        string `yaml:"db_file"`
	StatsLogFile  string `yaml:"stats_log_file"`
	EventsLogFile string `yaml:"events_log_file"`
	AvatarDir     string `yaml:"avatar_dir"`
}

// LoadConfig reads a YAML config file. A missing path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %v", path, err)
		}
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.EloRewardWin == 0 {
		c.EloRewardWin = 1
	}
	if c.MoneyRewardWin == 0 {
		c.MoneyRewardWin = 10
	}
	if c.EloPenaltyLoss == 0 {
		c.EloPenaltyLoss = -1
	}
	if c.DisconnectTimeoutSec == 0 {
		c.DisconnectTimeoutSec = 60
	}
	if c.GnubgBinary == "" {
		c.GnubgBinary = "gnubg"
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 24
	}
	if c.DBFile == "" {
		c.DBFile = "backgammon.sqlite"
	}
	if c.StatsLogFile == "" {
		c.StatsLogFile = "stats.log"
	}
	if c.EventsLogFile == "" {
		c.EventsLogFile = "events.log"
	}
}

// DisconnectTimeout returns the seat-vacancy forfeit duration.
func (c *Config) DisconnectTimeout() time.Duration {
	return time.Duration(c.DisconnectTimeoutSec) * time.Second
}
