// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything cmd/api needs to start.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// GRPCAddr is optional; an empty value disables the gRPC listener.
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	DatabaseURL   string `env:"DATABASE_URL" envDefault:"chat.db"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"chat_db"`

	JWTSecret    string            `env:"JWT_SECRET"`
	JWTKeys      map[string]string `env:"JWT_KEYS" envSeparator:"," envKeyValSeparator:":"`
	JWTActiveKid string            `env:"JWT_ACTIVE_KID"`
	SessionTTL   time.Duration     `env:"SESSION_TTL" envDefault:"24h"`

	RateLimitRPM int `env:"RATE_LIMIT_RPM" envDefault:"10"`

	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot produce a working server.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR must be set")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.JWTSecret == "" && len(c.JWTKeys) == 0 {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(c.JWTKeys) > 0 {
		for kid, secret := range c.JWTKeys {
			if kid == "" || secret == "" {
				return fmt.Errorf("invalid JWT_KEYS entry %q", kid)
			}
		}
		if c.JWTActiveKid == "" {
			return errors.New("JWT_ACTIVE_KID must be set when JWT_KEYS is used")
		}
		if _, ok := c.JWTKeys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.RequireTLS && c.TLSCert == "" {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	return nil
}

// UseMongo reports whether DatabaseURL points at MongoDB instead of a SQLite
// file.
func (c Config) UseMongo() bool {
	u := strings.ToLower(strings.TrimSpace(c.DatabaseURL))
	return strings.HasPrefix(u, "mongodb://") || strings.HasPrefix(u, "mongodb+srv://")
}

// TLSEnabled reports whether a certificate pair is configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
