// Package config holds the composite configuration of the sweet shop service.
package config

import (
	"strings"

	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GrpcServer config.GrpcServerConfig `koanf:"grpc"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Auth       config.AuthConfig       `koanf:"auth"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Inventory  config.InventoryConfig  `koanf:"inventory"`
	CORS       config.CORSConfig       `koanf:"cors"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GrpcServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.Auth.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Inventory.String())
	b.WriteString(c.CORS.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks every section in turn and fills in defaults where a section has one.
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.GrpcServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
		&c.Auth,
		&c.Nats,
		&c.Telemetry,
		&c.Inventory,
		&c.CORS,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
