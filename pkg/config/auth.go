package config

import (
	"fmt"
	"strings"
	"time"
)

const defaultAdminRole = "ADMIN"

// AuthConfig configures bearer token verification.
// Either a JWKS endpoint of an identity provider or a shared HMAC secret must be set.
type AuthConfig struct {
	JwksURL     string        `koanf:"jwksurl"`
	Issuer      string        `koanf:"issuer"`
	ClientID    string        `koanf:"clientid"`
	MinInterval time.Duration `koanf:"mininterval"`
	HMACSecret  string        `koanf:"hmacsecret"`
	AdminRole   string        `koanf:"adminrole"`
}

func (c *AuthConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Auth ---\n")
	b.WriteString(fmt.Sprintf("  auth.jwksurl: %s\n", c.JwksURL))
	b.WriteString(fmt.Sprintf("  auth.issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  auth.clientid: %s\n", c.ClientID))
	b.WriteString(fmt.Sprintf("  auth.mininterval: %s\n", c.MinInterval))
	if c.HMACSecret != "" {
		b.WriteString("  auth.hmacsecret: ****\n")
	}
	b.WriteString(fmt.Sprintf("  auth.adminrole: %s\n", c.AdminRole))
	return b.String()
}

func (c *AuthConfig) Validate() error {
	if c.AdminRole == "" {
		c.AdminRole = defaultAdminRole
	}
	if c.JwksURL == "" && c.HMACSecret == "" {
		return fmt.Errorf("either auth JWKS URL or HMAC secret must be configured")
	}
	if c.JwksURL != "" {
		if c.Issuer == "" {
			return fmt.Errorf("IdP issuer cannot be empty")
		}
		if c.MinInterval <= 0 {
			return fmt.Errorf("IdP minimum interval must be greater than zero")
		}
	}
	if c.JwksURL == "" && len(c.HMACSecret) < 32 {
		return fmt.Errorf("HMAC secret must be at least 32 bytes long")
	}
	return nil
}
