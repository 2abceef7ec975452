package config

import (
	"fmt"
	"strings"
)

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

func (c *CORSConfig) String() string {
	return fmt.Sprintf("\n--- CORS ---\n  cors.allowedorigins: %s\n", strings.Join(c.AllowedOrigins, ","))
}

func (c *CORSConfig) Validate() error {
	for _, origin := range c.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin %q", origin)
		}
	}
	return nil
}
