// Package app wires the warnings core to Telegram: configuration, storage
// selection, seeding, the outbound API adapter and the command handlers.
package app

import (
	"errors"
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/warnbot/core/config"
	coredatabase "github.com/m3rciful/warnbot/core/database"
	"github.com/m3rciful/warnbot/warnings"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Session drivers.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// StorageConfig selects where warning types and infraction records live.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// MongoConfig extends the connection settings with store options.
type MongoConfig struct {
	coredatabase.MongoConfig `yaml:",inline"`
	// Transactions wraps archiving in a transaction; needs a replica set.
	Transactions bool `yaml:"transactions" envconfig:"MONGO_TRANSACTIONS"`
}

// SessionConfig selects where setup conversations are kept.
type SessionConfig struct {
	Driver     string `yaml:"driver" envconfig:"SESSION_DRIVER"`
	TTLSeconds int    `yaml:"ttl_seconds" envconfig:"SESSION_TTL_SECONDS"`
	Prefix     string `yaml:"prefix" envconfig:"SESSION_PREFIX"`
}

// SeedWarningType is a warning type seeded at startup. Group names one of the
// seeded groups; the stored type keeps a copy of it.
type SeedWarningType struct {
	Trigger string                `yaml:"trigger"`
	Points  uint64                `yaml:"points"`
	Group   string                `yaml:"group"`
	OnWarn  warnings.OnWarnAction `yaml:"on_warn"`
}

// SeedConfig lists reference data upserted on startup.
type SeedConfig struct {
	Groups       []warnings.WarningGroup `yaml:"groups"`
	WarningTypes []SeedWarningType       `yaml:"warning_types"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage  StorageConfig            `yaml:"storage"`
	Database coredatabase.Config      `yaml:"database"`
	Mongo    MongoConfig              `yaml:"mongo"`
	Session  SessionConfig            `yaml:"session"`
	Redis    coredatabase.RedisConfig `yaml:"redis"`
	Seed     SeedConfig               `yaml:"seed"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the bot specific sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	return c.normalizeBot()
}

func (c *Config) normalizeBot() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverPostgres
		fallthrough
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("config: database.host and database.name are required for the postgres driver")
		}
	case DriverMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return errors.New("config: mongo.uri is required for the mongo driver")
		}
		if c.Mongo.Database == "" {
			c.Mongo.Database = "warnbot"
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: invalid storage.driver %q; allowed: postgres, mongo, memory", c.Storage.Driver)
	}

	c.Session.Driver = strings.ToLower(strings.TrimSpace(c.Session.Driver))
	switch c.Session.Driver {
	case "":
		c.Session.Driver = SessionMemory
	case SessionMemory, SessionRedis:
	default:
		return fmt.Errorf("config: invalid session.driver %q; allowed: memory, redis", c.Session.Driver)
	}
	if c.Session.TTLSeconds < 0 {
		return errors.New("config: session.ttl_seconds must be >= 0")
	}
	if c.Session.Prefix == "" {
		c.Session.Prefix = "warnbot:setup"
	}

	groups := make(map[string]struct{}, len(c.Seed.Groups))
	for _, g := range c.Seed.Groups {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("config: seed: %w", err)
		}
		groups[g.Name] = struct{}{}
	}
	for _, wt := range c.Seed.WarningTypes {
		if strings.TrimSpace(wt.Trigger) == "" {
			return errors.New("config: seed: warning type trigger is required")
		}
		if _, ok := groups[wt.Group]; !ok {
			return fmt.Errorf("config: seed: warning type %q references unknown group %q", wt.Trigger, wt.Group)
		}
		switch wt.OnWarn {
		case warnings.OnWarnDeleteMessage, warnings.OnWarnNothing:
		default:
			return fmt.Errorf("config: seed: warning type %q: unknown on_warn %q", wt.Trigger, wt.OnWarn)
		}
	}
	return nil
}
