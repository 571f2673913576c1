package config

import (
	"time"

	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
	"github.com/coup-league/coupd/pkg/scheduler"
)

// Config is the fully-resolved, validated configuration for cmd/coupserver:
// a typed struct with one component sub-config per concern.
type Config struct {
	Server    ServerConfig
	Database  database.Config
	Scheduler scheduler.Config
	Chat      ChatConfig
	Session   SessionDefaults
}

// ServerConfig holds the REST listener settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ChatConfig holds Chat Fan-out tuning.
type ChatConfig struct {
	// BroadcastTickInterval is loaded from the chat section and defaults
	// to 5 minutes. Nothing reads it: coupserver runs no scheduled
	// broadcast sweep, and a session's chat queue is pushed only when the
	// orchestrator leaves that session's broadcast phase.
	BroadcastTickInterval time.Duration `yaml:"broadcast_tick_interval"`
	// ReasoningURL is the base URL of the LLM reasoning server that
	// receives the best-effort chat event push. Empty
	// disables the push.
	ReasoningURL string `yaml:"reasoning_url"`
}

// SessionDefaults holds the built-in per-session defaults applied when a
// create request omits them. Phase durations default to 50/10/20/10/1/5
// minutes (P1_action/lockout1/P2_reaction/lockout2/broadcast/ending) and
// are stored per-session, not globally, so a running session is unaffected
// by a later config change.
type SessionDefaults struct {
	MaxPlayers      int             `yaml:"max_players"`
	TurnLimit       int             `yaml:"turn_limit"`
	UpgradesEnabled bool            `yaml:"upgrades_enabled"`
	Durations       models.Durations `yaml:"durations"`
}

// DefaultConfig returns the built-in configuration, used as the base that
// a YAML file's values are merged on top of (see Load in loader.go).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Database: database.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Chat: ChatConfig{
			BroadcastTickInterval: 5 * time.Minute,
		},
		Session: SessionDefaults{
			MaxPlayers:      6,
			TurnLimit:       0,
			UpgradesEnabled: false,
			Durations:       models.DefaultDurations(),
		},
	}
}
