// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package apps manages registered OAuth client applications.
package apps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/crypto"
	"github.com/networkschool/nsauth/pkg/scopes"
	"github.com/networkschool/nsauth/pkg/store"
)

// InvalidScopesError reports scope names outside the catalog.
type InvalidScopesError struct {
	Names []string
}

// Error implements error.
func (e *InvalidScopesError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return fmt.Sprintf("invalid scopes: %s", strings.Join(names, ", "))
}

// Service manages app registrations.
type Service struct {
	store *store.Store
}

// New creates the app service.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

func validateScopes(names []string) error {
	if invalid := scopes.Invalid(names); len(invalid) > 0 {
		return &InvalidScopesError{Names: invalid}
	}
	return nil
}

// CreateParams are the fields of a new app registration.
type CreateParams struct {
	Name             string
	Description      string
	Scopes           []string
	RedirectURIs     []string
	IconURL          string
	PrivacyPolicyURL string
}

// Create registers a new application and returns it together with the
// client secret cleartext. The cleartext exists only in this return value;
// the store keeps a bcrypt hash.
func (s *Service) Create(ctx context.Context, p CreateParams) (*store.OAuthApp, string, error) {
	if err := validateScopes(p.Scopes); err != nil {
		return nil, "", err
	}

	secret := crypto.GenerateClientSecret()
	secretHash, err := crypto.HashClientSecret(secret)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	app := &store.OAuthApp{
		ID:               uuid.New(),
		Name:             p.Name,
		Description:      p.Description,
		ClientID:         crypto.GenerateClientID(),
		ClientSecretHash: secretHash,
		Scopes:           p.Scopes,
		RedirectURIs:     p.RedirectURIs,
		IconURL:          p.IconURL,
		PrivacyPolicyURL: p.PrivacyPolicyURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateApp(ctx, app); err != nil {
		return nil, "", fmt.Errorf("failed to create app: %w", err)
	}
	return app, secret, nil
}

// List returns all registered apps, newest first.
func (s *Service) List(ctx context.Context) ([]store.OAuthApp, error) {
	return s.store.ListApps(ctx)
}

// Get returns an app by internal UUID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.OAuthApp, error) {
	return s.store.GetApp(ctx, id)
}

// GetByClientID returns an app by its public client identifier.
func (s *Service) GetByClientID(ctx context.Context, clientID string) (*store.OAuthApp, error) {
	return s.store.GetAppByClientID(ctx, clientID)
}

// UpdateParams are the optional fields of a partial update; nil fields are
// left unchanged.
type UpdateParams struct {
	Name             *string
	Description      *string
	Scopes           []string
	RedirectURIs     []string
	IconURL          *string
	PrivacyPolicyURL *string
}

// Update applies a partial update to an app.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*store.OAuthApp, error) {
	app, err := s.store.GetApp(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Scopes != nil {
		if err := validateScopes(p.Scopes); err != nil {
			return nil, err
		}
		app.Scopes = p.Scopes
	}
	if p.Name != nil {
		app.Name = *p.Name
	}
	if p.Description != nil {
		app.Description = *p.Description
	}
	if p.RedirectURIs != nil {
		app.RedirectURIs = p.RedirectURIs
	}
	if p.IconURL != nil {
		app.IconURL = *p.IconURL
	}
	if p.PrivacyPolicyURL != nil {
		app.PrivacyPolicyURL = *p.PrivacyPolicyURL
	}
	app.UpdatedAt = time.Now()

	if err := s.store.SaveApp(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update app: %w", err)
	}
	return app, nil
}

// SetIconURL updates just the icon URL, used by the upload endpoints.
func (s *Service) SetIconURL(ctx context.Context, id uuid.UUID, iconURL string) (*store.OAuthApp, error) {
	app, err := s.store.GetApp(ctx, id)
	if err != nil {
		return nil, err
	}
	app.IconURL = iconURL
	app.UpdatedAt = time.Now()
	if err := s.store.SaveApp(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to update app icon: %w", err)
	}
	return app, nil
}

// Delete removes an app registration and, via cascade, its codes and
// token records.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteApp(ctx, id)
}

// AllowsRedirectURI reports whether uri is registered for the app. The
// match is byte-exact: trailing slashes, case and query strings all matter.
func AllowsRedirectURI(app *store.OAuthApp, uri string) bool {
	for _, registered := range app.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
