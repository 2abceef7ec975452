package config

import (
	"fmt"
	"slices"
)

var logLevels = []string{"debug", "info", "warn", "error"}

type LogConfig struct {
	Level string `koanf:"level"`
}

func (c *LogConfig) String() string {
	return fmt.Sprintf("\n--- Log ---\n  log.level: %s\n", c.Level)
}

func (c *LogConfig) Validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("unsupported log level %q", c.Level)
	}
	return nil
}
