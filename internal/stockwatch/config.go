package stockwatch

import (
	"fmt"
	"strings"

	"github.com/abgdnv/sweetshop/pkg/config"
	"github.com/abgdnv/sweetshop/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

// Config is the configuration of the stockwatch command.
type Config struct {
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Subscriber config.SubscriberConfig `koanf:"subscriber"`
	Alert      AlertConfig             `koanf:"alert"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
}

// AlertConfig sets the stock level at or below which a sweet is reported as running low.
type AlertConfig struct {
	LowStock int32 `koanf:"lowstock"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.Nats.String())
	b.WriteString(c.Subscriber.String())
	b.WriteString(fmt.Sprintf("\n--- Alert ---\n  alert.lowstock: %d\n", c.Alert.LowStock))
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

func (c *Config) Validate() error {
	if !c.Nats.Enabled {
		return fmt.Errorf("stockwatch needs nats.enabled=true")
	}
	validators := []configloader.Validator{&c.Log, &c.PProf, &c.Nats, &c.Subscriber, &c.Shutdown}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.Alert.LowStock < 0 {
		return fmt.Errorf("alert.lowstock cannot be negative: %d", c.Alert.LowStock)
	}
	return nil
}
