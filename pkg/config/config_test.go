// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSecret() string {
	return strings.Repeat("s", MinSessionSecretLength)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OAUTH_SESSION_SECRET", validSecret())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddress)
	assert.Equal(t, "http://localhost:8000", cfg.Issuer)
	assert.Equal(t, 3600, cfg.TokenExpirySeconds)
	assert.Equal(t, time.Hour, cfg.TokenExpiry())
	assert.Equal(t, 24*time.Hour, cfg.SessionExpiry())
	assert.Equal(t, 10*time.Minute, cfg.AuthorizationCodeExpiry())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.DevLoginEnabled)
	assert.False(t, cfg.SecureCookies)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("OAUTH_SESSION_SECRET", validSecret())
	t.Setenv("OAUTH_LISTEN_ADDRESS", ":9000")
	t.Setenv("OAUTH_ISSUER", "https://auth.example.com")
	t.Setenv("OAUTH_DATABASE_URL", "postgres://db.example.com/oauth")
	t.Setenv("OAUTH_TOKEN_EXPIRY_SECONDS", "600")
	t.Setenv("OAUTH_DEV_LOGIN_ENABLED", "true")
	t.Setenv("OAUTH_BROKER_APP_ID", "app-id")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, "https://auth.example.com", cfg.Issuer)
	assert.Equal(t, "postgres://db.example.com/oauth", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Minute, cfg.TokenExpiry())
	assert.True(t, cfg.DevLoginEnabled)
	assert.Equal(t, "app-id", cfg.BrokerAppID)
}

func TestLoad_RejectsShortSessionSecret(t *testing.T) {
	t.Setenv("OAUTH_SESSION_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_secret")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Issuer:                         "https://auth.example.com",
			SessionSecret:                  validSecret(),
			TokenExpirySeconds:             3600,
			AuthorizationCodeExpirySeconds: 600,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Issuer = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.TokenExpirySeconds = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.AuthorizationCodeExpirySeconds = -1
	assert.Error(t, cfg.Validate())
}
