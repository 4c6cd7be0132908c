package token

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Development fallbacks. Reuse of a known default secret is a full auth bypass, so
// these are only ever applied outside production deployments.
const (
	devAccessSecret  = "trackd-dev-access-secret"
	devRefreshSecret = "trackd-dev-refresh-secret"
)

// Config defines all runtime configuration for the token subsystem.
//
// Access and refresh secrets MUST differ: compromise of one signing key must not
// compromise the other token class.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token classes.
	Issuer string

	// AccessSecret signs access tokens (HMAC-SHA256).
	AccessSecret []byte

	// RefreshSecret signs refresh tokens. Distinct from AccessSecret.
	RefreshSecret []byte

	// AccessTTL is the access token lifetime.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	RefreshTTL time.Duration
}

// DefaultConfig returns a configuration suitable for development.
//
// Production deployments must override both secrets via environment variables;
// LoadConfigFromEnv enforces this.
func DefaultConfig() Config {
	return Config{
		Issuer:        "trackd",
		AccessSecret:  []byte(devAccessSecret),
		RefreshSecret: []byte(devRefreshSecret),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required in production (environment == "production"):
//   - TRACKD_ACCESS_TOKEN_SECRET
//   - TRACKD_REFRESH_TOKEN_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - TRACKD_AUTH_ISSUER
//   - TRACKD_AUTH_ACCESS_TTL
//   - TRACKD_AUTH_REFRESH_TTL
//
// Returns ErrConfig if configuration is invalid, including any production deployment
// that would run on a development default secret.
func LoadConfigFromEnv(environment string) (Config, error) {
	cfg := DefaultConfig()
	production := strings.EqualFold(strings.TrimSpace(environment), "production")

	if v := os.Getenv("TRACKD_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("TRACKD_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("TRACKD_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("TRACKD_ACCESS_TOKEN_SECRET")); v != "" {
		cfg.AccessSecret = []byte(v)
	} else if production {
		return Config{}, fmt.Errorf("%w: TRACKD_ACCESS_TOKEN_SECRET is required in production", ErrConfig)
	}

	if v := strings.TrimSpace(os.Getenv("TRACKD_REFRESH_TOKEN_SECRET")); v != "" {
		cfg.RefreshSecret = []byte(v)
	} else if production {
		return Config{}, fmt.Errorf("%w: TRACKD_REFRESH_TOKEN_SECRET is required in production", ErrConfig)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants every Config must satisfy.
func (c Config) Validate() error {
	if len(c.AccessSecret) == 0 || len(c.RefreshSecret) == 0 {
		return fmt.Errorf("%w: empty signing secret", ErrConfig)
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrConfig)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: non-positive token TTL", ErrConfig)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	}
	return nil
}

// UsesDevSecrets reports whether either signing key is a development default.
// Callers should log a prominent warning when this is true.
func (c Config) UsesDevSecrets() bool {
	return string(c.AccessSecret) == devAccessSecret || string(c.RefreshSecret) == devRefreshSecret
}
