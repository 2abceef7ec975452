package config

import (
	"fmt"
	"strings"
	"time"
)

// InventoryConfig tunes the stock mutation retry loop and the store circuit breaker.
type InventoryConfig struct {
	Retry          RetryConfig          `koanf:"retry"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type RetryConfig struct {
	MaxAttempts    uint          `koanf:"maxattempts"`
	InitialBackoff time.Duration `koanf:"initialbackoff"`
}

type CircuitBreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

func (c *InventoryConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Inventory Retry ---\n")
	b.WriteString(fmt.Sprintf("  inventory.retry.maxattempts: %d\n", c.Retry.MaxAttempts))
	b.WriteString(fmt.Sprintf("  inventory.retry.initialbackoff: %v\n", c.Retry.InitialBackoff))
	b.WriteString("\n--- Store Circuit Breaker ---\n")
	b.WriteString(fmt.Sprintf("  inventory.circuitbreaker.enabled: %t\n", c.CircuitBreaker.Enabled))
	b.WriteString(fmt.Sprintf("  inventory.circuitbreaker.consecutivefailures: %d\n", c.CircuitBreaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  inventory.circuitbreaker.errorratepercent: %d\n", c.CircuitBreaker.ErrorRatePercent))
	b.WriteString(fmt.Sprintf("  inventory.circuitbreaker.opentimeout: %v\n", c.CircuitBreaker.OpenTimeout))
	return b.String()
}

func (c *InventoryConfig) Validate() error {
	if c.Retry.MaxAttempts == 0 {
		return fmt.Errorf("inventory.retry.maxattempts must be greater than 0")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("inventory.retry.initialbackoff must be greater than 0")
	}
	if !c.CircuitBreaker.Enabled {
		return nil
	}
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("inventory.circuitbreaker.consecutivefailures must be greater than 0")
	}
	if c.CircuitBreaker.ErrorRatePercent < 0 || c.CircuitBreaker.ErrorRatePercent > 100 {
		return fmt.Errorf("inventory.circuitbreaker.errorratepercent must be between 0 and 100")
	}
	if c.CircuitBreaker.OpenTimeout <= 0 {
		return fmt.Errorf("inventory.circuitbreaker.opentimeout must be greater than 0")
	}
	return nil
}
