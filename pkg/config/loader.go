package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/scheduler"
)

// yamlConfig mirrors Config's shape for unmarshalling a partial
// config/coup.yaml — every field is a pointer or zero-valuable so an
// absent section leaves DefaultConfig's value untouched after the merge.
type yamlConfig struct {
	Server    *ServerConfig    `yaml:"server"`
	Database  *partialDatabase `yaml:"database"`
	Scheduler *partialScheduler `yaml:"scheduler"`
	Chat      *ChatConfig      `yaml:"chat"`
	Session   *SessionDefaults `yaml:"session"`
}

// partialDatabase/partialScheduler are not merged with mergo: they are
// copied field by field onto database.Config/scheduler.Config by
// applyPartialDatabase/applyPartialScheduler, and only non-zero fields
// are copied, so an absent (or zero) field keeps the built-in default.
// The scheduler section is given in whole seconds.
type partialDatabase struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
}

type partialScheduler struct {
	PollIntervalSeconds       int `yaml:"poll_interval_seconds"`
	PollIntervalJitterSeconds int `yaml:"poll_interval_jitter_seconds"`
}

// Load reads config/coup.yaml (if present), expands environment variables,
// and merges it on top of DefaultConfig.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("no config file found, using built-in defaults", "path", configPath)
			return cfg, nil
		}
		return nil, NewLoadError(configPath, err)
	}

	data = ExpandEnv(data)

	var parsed yamlConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if parsed.Server != nil {
		if err := mergo.Merge(&cfg.Server, parsed.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge server config: %w", err)
		}
	}
	if parsed.Database != nil {
		applyPartialDatabase(&cfg.Database, parsed.Database)
	}
	if parsed.Scheduler != nil {
		applyPartialScheduler(&cfg.Scheduler, parsed.Scheduler)
	}
	if parsed.Chat != nil {
		if err := mergo.Merge(&cfg.Chat, parsed.Chat, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge chat config: %w", err)
		}
	}
	if parsed.Session != nil {
		if err := mergo.Merge(&cfg.Session, parsed.Session, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge session defaults: %w", err)
		}
	}

	return cfg, nil
}

func applyPartialDatabase(dst *database.Config, p *partialDatabase) {
	if p.Host != "" {
		dst.Host = p.Host
	}
	if p.Port != 0 {
		dst.Port = p.Port
	}
	if p.User != "" {
		dst.User = p.User
	}
	if p.Password != "" {
		dst.Password = p.Password
	}
	if p.Database != "" {
		dst.Database = p.Database
	}
	if p.SSLMode != "" {
		dst.SSLMode = p.SSLMode
	}
	if p.MaxOpenConns != 0 {
		dst.MaxOpenConns = p.MaxOpenConns
	}
	if p.MaxIdleConns != 0 {
		dst.MaxIdleConns = p.MaxIdleConns
	}
}

func applyPartialScheduler(dst *scheduler.Config, p *partialScheduler) {
	if p.PollIntervalSeconds != 0 {
		dst.PollInterval = time.Duration(p.PollIntervalSeconds) * time.Second
	}
	if p.PollIntervalJitterSeconds != 0 {
		dst.PollIntervalJitter = time.Duration(p.PollIntervalJitterSeconds) * time.Second
	}
}
