// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the nsauth runtime configuration from the
// environment. All keys carry the OAUTH_ prefix, e.g. OAUTH_DATABASE_URL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinSessionSecretLength is the minimum accepted length for the HS256
// session signing secret.
const MinSessionSecretLength = 64

// Config holds the full runtime configuration for the server.
type Config struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `mapstructure:"listen_address"`

	// DatabaseURL is the DSN for the relational store. Postgres URLs
	// (postgres://...) use the postgres driver; anything else is treated
	// as a SQLite path, which is intended for development and tests.
	DatabaseURL string `mapstructure:"database_url"`

	// CORSOrigins are the origins allowed to call the API with credentials.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Issuer is the external base URL of this server, used as the JWT
	// "iss" claim and in discovery metadata.
	Issuer string `mapstructure:"issuer"`

	// TokenExpirySeconds is the lifetime of issued access tokens.
	TokenExpirySeconds int `mapstructure:"token_expiry_seconds"`

	// KeysDir is where the RSA signing keypair is stored when not
	// provided via RSAPrivateKey/RSAPublicKey.
	KeysDir string `mapstructure:"keys_dir"`

	// UploadsDir is where app icon uploads are written.
	UploadsDir string `mapstructure:"uploads_dir"`

	// RSAPrivateKey and RSAPublicKey optionally carry the signing keypair
	// as base64-encoded PEM, for deployments without a persistent disk.
	RSAPrivateKey string `mapstructure:"rsa_private_key"`
	RSAPublicKey  string `mapstructure:"rsa_public_key"`

	// SessionSecret signs HS256 session cookies. Must be at least
	// MinSessionSecretLength characters.
	SessionSecret string `mapstructure:"session_secret"`

	// SessionExpirySeconds is the session cookie lifetime.
	SessionExpirySeconds int `mapstructure:"session_expiry_seconds"`

	// AuthorizationCodeExpirySeconds is the authorization code lifetime.
	AuthorizationCodeExpirySeconds int `mapstructure:"authorization_code_expiry_seconds"`

	// FrontendURL is the base URL of the login/consent frontend.
	FrontendURL string `mapstructure:"frontend_url"`

	// SecureCookies marks session cookies as Secure. Disabled for local
	// development over plain HTTP.
	SecureCookies bool `mapstructure:"secure_cookies"`

	// BrokerAppID and BrokerAppSecret authenticate this server to the
	// external identity broker.
	BrokerAppID     string `mapstructure:"broker_app_id"`
	BrokerAppSecret string `mapstructure:"broker_app_secret"`

	// DevLoginEnabled enables the /auth/dev/login-as endpoint. Never
	// enable this in production.
	DevLoginEnabled bool `mapstructure:"dev_login_enabled"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// TokenExpiry returns the access token lifetime as a duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpirySeconds) * time.Second
}

// SessionExpiry returns the session lifetime as a duration.
func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpirySeconds) * time.Second
}

// AuthorizationCodeExpiry returns the authorization code lifetime as a duration.
func (c *Config) AuthorizationCodeExpiry() time.Duration {
	return time.Duration(c.AuthorizationCodeExpirySeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", ":8000")
	v.SetDefault("database_url", "postgres://localhost:5432/oauth_provider")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("issuer", "http://localhost:8000")
	v.SetDefault("token_expiry_seconds", 3600)
	v.SetDefault("keys_dir", "keys")
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("session_expiry_seconds", 86400)
	v.SetDefault("authorization_code_expiry_seconds", 600)
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("dev_login_enabled", false)
	v.SetDefault("debug", false)
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OAUTH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind each default key explicitly.
	for _, key := range []string{
		"listen_address", "database_url", "cors_origins", "issuer",
		"token_expiry_seconds", "keys_dir", "uploads_dir",
		"rsa_private_key", "rsa_public_key",
		"session_secret", "session_expiry_seconds",
		"authorization_code_expiry_seconds", "frontend_url",
		"secure_cookies", "broker_app_id", "broker_app_secret",
		"dev_login_enabled", "debug",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime
// security problems.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer must be set")
	}
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("session_secret must be at least %d characters", MinSessionSecretLength)
	}
	if c.TokenExpirySeconds <= 0 {
		return fmt.Errorf("token_expiry_seconds must be positive")
	}
	if c.AuthorizationCodeExpirySeconds <= 0 {
		return fmt.Errorf("authorization_code_expiry_seconds must be positive")
	}
	return nil
}
