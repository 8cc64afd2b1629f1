// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authz implements the authorization code service: issuing codes at
// consent time and atomically consuming them at token exchange.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/crypto"
	"github.com/networkschool/nsauth/pkg/store"
)

// ErrInvalidGrant is returned for every exchange failure: unknown code,
// replayed code, client or redirect mismatch, expiry and PKCE failure all
// collapse into it so the token endpoint cannot be used as an oracle.
var ErrInvalidGrant = errors.New("invalid or expired authorization code")

// Service issues and redeems authorization codes.
type Service struct {
	store    *store.Store
	lifetime time.Duration
}

// New creates the authorization code service. lifetime is the validity
// window of issued codes.
func New(st *store.Store, lifetime time.Duration) *Service {
	return &Service{store: st, lifetime: lifetime}
}

// CreateParams captures the consent-time snapshot bound to a code. The
// caller is responsible for having validated the client and redirect URI.
type CreateParams struct {
	ClientID            string
	UserID              uuid.UUID
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Create generates a fresh single-use code and persists its record.
func (s *Service) Create(ctx context.Context, p CreateParams) (string, error) {
	now := time.Now()
	record := &store.AuthorizationCode{
		ID:                  uuid.New(),
		Code:                crypto.GenerateAuthorizationCode(),
		ClientID:            p.ClientID,
		UserID:              p.UserID,
		RedirectURI:         p.RedirectURI,
		Scope:               p.Scope,
		State:               p.State,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		ExpiresAt:           now.Add(s.lifetime),
		CreatedAt:           now,
	}
	if err := s.store.CreateAuthorizationCode(ctx, record); err != nil {
		return "", fmt.Errorf("failed to persist authorization code: %w", err)
	}
	return record.Code, nil
}

// Exchange validates and consumes an authorization code. Checks run in
// order: existence, single use, client binding, byte-exact redirect URI,
// expiry, PKCE. Every failure returns ErrInvalidGrant.
//
// The used flag is flipped only after all checks pass, so a failed PKCE
// attempt does not burn the code; a subsequent correct attempt can still
// succeed. The flip itself is a conditional UPDATE, so concurrent
// redemptions of the same code produce exactly one winner.
func (s *Service) Exchange(
	ctx context.Context,
	code, clientID, redirectURI, codeVerifier string,
) (*store.AuthorizationCode, error) {
	record, err := s.store.GetAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("failed to load authorization code: %w", err)
	}

	if record.Used {
		return nil, ErrInvalidGrant
	}
	if record.ClientID != clientID {
		return nil, ErrInvalidGrant
	}
	if record.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}
	if !time.Now().Before(record.ExpiresAt) {
		return nil, ErrInvalidGrant
	}
	if record.CodeChallenge != "" {
		if !crypto.VerifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
			return nil, ErrInvalidGrant
		}
	}

	won, err := s.store.ConsumeAuthorizationCode(ctx, record.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	if !won {
		// Lost the race against a concurrent exchange.
		return nil, ErrInvalidGrant
	}

	record.Used = true
	return record, nil
}
