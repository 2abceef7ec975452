package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// DatabaseConfig selects the sweet store backend.
// With driver "memory" the URL is ignored and data lives for the lifetime of the process.
type DatabaseConfig struct {
	Driver        string        `koanf:"driver"`
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	MigrationsDir string        `koanf:"migrations"`
}

func (c *DatabaseConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Database ---\n")
	b.WriteString(fmt.Sprintf("  database.driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  database.url: %s\n", MaskURL(c.URL)))
	b.WriteString(fmt.Sprintf("  database.timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  database.migrations: %s\n", c.MigrationsDir))
	return b.String()
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case StoreDriverMemory:
		return nil
	case StoreDriverPostgres, "":
		c.Driver = StoreDriverPostgres
	default:
		return fmt.Errorf("unknown database driver %q, expected %q or %q", c.Driver, StoreDriverPostgres, StoreDriverMemory)
	}
	if c.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}
	if !isValidPostgresURL(c.URL) {
		return fmt.Errorf("database URL must start with 'postgres://': %s", MaskURL(c.URL))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("database connect timeout is not configured")
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// MaskURL hides the credentials part of a connection URL.
func MaskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}
