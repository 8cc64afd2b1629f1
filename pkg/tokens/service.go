// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokens mints RS256 access and ID tokens, and answers
// introspection and revocation by token fingerprint.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/crypto"
	"github.com/networkschool/nsauth/pkg/keys"
	"github.com/networkschool/nsauth/pkg/scopes"
	"github.com/networkschool/nsauth/pkg/store"
)

// ErrInvalidClient is returned when client authentication fails. Unknown
// client and wrong secret are deliberately indistinguishable.
var ErrInvalidClient = errors.New("invalid client credentials")

// dummySecretHash is a valid bcrypt hash compared against when the client
// is unknown, so that authentication cost does not reveal client existence.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" //nolint:gosec // not a credential

// Service issues, introspects and revokes access tokens.
type Service struct {
	store    *store.Store
	keys     *keys.Manager
	issuer   string
	lifetime time.Duration
}

// New creates the token service.
func New(st *store.Store, km *keys.Manager, issuer string, lifetime time.Duration) *Service {
	return &Service{store: st, keys: km, issuer: issuer, lifetime: lifetime}
}

// Lifetime returns the configured access token lifetime.
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// AuthenticateClient returns the app iff the client_id exists and the
// secret verifies against its bcrypt hash.
func (s *Service) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*store.OAuthApp, error) {
	app, err := s.store.GetAppByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a bcrypt comparison anyway to keep timing flat.
			crypto.VerifyClientSecret(clientSecret, dummySecretHash)
			return nil, ErrInvalidClient
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	if !crypto.VerifyClientSecret(clientSecret, app.ClientSecretHash) {
		return nil, ErrInvalidClient
	}
	return app, nil
}

// GrantScopes computes the scopes granted to a request: the intersection of
// requested and registered scopes when a request is made, or everything the
// app registered when the request is empty.
func GrantScopes(app *store.OAuthApp, requested []string) []string {
	if len(requested) == 0 {
		return app.Scopes
	}
	var granted []string
	for _, sc := range requested {
		if scopes.Contains(app.Scopes, sc) {
			granted = append(granted, sc)
		}
	}
	return granted
}

// IssueClientCredentials mints a machine-to-machine access token carrying
// no user context and persists its revocation record.
func (s *Service) IssueClientCredentials(
	ctx context.Context,
	app *store.OAuthApp,
	requested []string,
) (string, []string, error) {
	granted := GrantScopes(app, requested)
	now := time.Now()
	jti := uuid.NewString()

	claims := jwt.MapClaims{
		"iss":       s.issuer,
		"sub":       app.ClientID,
		"aud":       app.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(s.lifetime).Unix(),
		"jti":       jti,
		"scope":     scopes.Join(granted),
		"client_id": app.ClientID,
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", nil, err
	}

	if err := s.persist(ctx, token, jti, app.ClientID, nil, granted, now); err != nil {
		return "", nil, err
	}
	return token, granted, nil
}

// IssueUserToken mints an access token bound to a user, as produced by the
// authorization code grant.
func (s *Service) IssueUserToken(
	ctx context.Context,
	app *store.OAuthApp,
	userID uuid.UUID,
	granted []string,
) (string, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := jwt.MapClaims{
		"iss":       s.issuer,
		"sub":       userID.String(),
		"aud":       app.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(s.lifetime).Unix(),
		"jti":       jti,
		"scope":     scopes.Join(granted),
		"client_id": app.ClientID,
		"user_id":   userID.String(),
	}

	token, err := s.sign(claims)
	if err != nil {
		return "", err
	}

	if err := s.persist(ctx, token, jti, app.ClientID, &userID, granted, now); err != nil {
		return "", err
	}
	return token, nil
}

// IssueIDToken mints the OIDC ID token with scope-gated identity claims.
// ID tokens are assertions for the client only; they are never persisted
// and cannot be introspected or revoked.
func (s *Service) IssueIDToken(app *store.OAuthApp, user *store.User, granted []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": user.ID.String(),
		"aud": app.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(s.lifetime).Unix(),
	}

	if scopes.Contains(granted, "email") {
		claims["email"] = user.Email
		claims["email_verified"] = true
	}
	if scopes.Contains(granted, "profile") {
		claims["name"] = user.DisplayName
		claims["picture"] = user.AvatarURL
	}
	if scopes.Contains(granted, "cohort") {
		claims["cohort"] = user.Cohort
	}
	if scopes.Contains(granted, "wallet") {
		claims["wallet_address"] = user.WalletAddress
	}

	return s.sign(claims)
}

// Introspection is the RFC 7662-style introspection result.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	JTI       string `json:"jti,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

// Introspect reports whether a presented token is active, by fingerprint
// lookup against the store. Absent, revoked and expired records are all
// just inactive.
func (s *Service) Introspect(ctx context.Context, token string) (*Introspection, error) {
	record, err := s.store.GetAccessTokenByHash(ctx, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Introspection{Active: false}, nil
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if record.Revoked || !time.Now().Before(record.ExpiresAt) {
		return &Introspection{Active: false}, nil
	}

	result := &Introspection{
		Active:    true,
		Scope:     scopes.Join(record.Scopes),
		ClientID:  record.ClientID,
		TokenType: "Bearer",
		Exp:       record.ExpiresAt.Unix(),
		Iat:       record.CreatedAt.Unix(),
		JTI:       record.JTI,
		Issuer:    s.issuer,
	}
	if record.UserID != nil {
		result.UserID = record.UserID.String()
	}
	return result, nil
}

// Revoke marks the presented token revoked. Unknown tokens are accepted
// silently so revocation discloses nothing.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.store.RevokeAccessTokenByHash(ctx, crypto.HashToken(token))
}

// sign serializes and signs claims as RS256 with the manager's kid header.
// The returned string is hashed for the revocation record, so it must be
// byte-identical to what the client receives.
func (s *Service) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keys.KeyID()
	signed, err := token.SignedString(s.keys.SigningKey())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) persist(
	ctx context.Context,
	token, jti, clientID string,
	userID *uuid.UUID,
	granted []string,
	issuedAt time.Time,
) error {
	record := &store.AccessToken{
		ID:        uuid.New(),
		TokenHash: crypto.HashToken(token),
		JTI:       jti,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    granted,
		ExpiresAt: issuedAt.Add(s.lifetime),
		CreatedAt: issuedAt,
	}
	if err := s.store.CreateAccessToken(ctx, record); err != nil {
		return fmt.Errorf("failed to persist token record: %w", err)
	}
	return nil
}
