// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/networkschool/nsauth/pkg/apps"
	"github.com/networkschool/nsauth/pkg/authz"
	"github.com/networkschool/nsauth/pkg/broker"
	"github.com/networkschool/nsauth/pkg/config"
	"github.com/networkschool/nsauth/pkg/keys"
	"github.com/networkschool/nsauth/pkg/logger"
	"github.com/networkschool/nsauth/pkg/server"
	"github.com/networkschool/nsauth/pkg/session"
	"github.com/networkschool/nsauth/pkg/store"
	"github.com/networkschool/nsauth/pkg/tokens"
	"github.com/networkschool/nsauth/pkg/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity provider",
	Long: `Start the OAuth/OIDC HTTP server.

Configuration is read from OAUTH_-prefixed environment variables; see the
config package for the full list. The server runs database migrations on
startup and generates an RSA signing keypair if none is configured.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second // must exceed the request timeout middleware
	serverIdleTimeout      = 60 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	km, err := keys.New(keys.Config{
		PrivateKeyB64: cfg.RSAPrivateKey,
		PublicKeyB64:  cfg.RSAPublicKey,
		Dir:           cfg.KeysDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()

	brokerVerifier, err := broker.New(ctx, broker.Config{
		AppID:     cfg.BrokerAppID,
		AppSecret: cfg.BrokerAppSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize broker verifier: %w", err)
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionExpiry(), cfg.SecureCookies)

	srv := server.New(
		cfg,
		km,
		sessions,
		brokerVerifier,
		apps.New(st),
		users.New(st),
		authz.New(st, cfg.AuthorizationCodeExpiry()),
		tokens.New(st, km, cfg.Issuer, cfg.TokenExpiry()),
	)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv.Handler(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.DevLoginEnabled {
		logger.Warn("Dev login endpoint is ENABLED; do not run this in production")
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
