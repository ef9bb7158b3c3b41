package config

import (
	"errors"
	"fmt"

	"reshard/internal/shard"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateShard(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateShard() error {
	switch c.Shard.Prune {
	case PruneNested, PruneAny, PruneOff:
	default:
		return fmt.Errorf("shard.prune: unsupported value %q (expected nested, any or off)", c.Shard.Prune)
	}
	if c.Shard.DefaultMode != "" {
		if _, err := shard.ParseMode(c.Shard.DefaultMode); err != nil {
			return fmt.Errorf("shard.default_mode: %w", err)
		}
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path must be set when the journal is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
