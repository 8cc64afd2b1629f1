// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package users resolves end-user identities, provisioning them
// just-in-time on first broker authentication.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/logger"
	"github.com/networkschool/nsauth/pkg/store"
)

// Service looks up and provisions users.
type Service struct {
	store *store.Store
}

// New creates the user service.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Get returns a user by internal UUID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByEmail returns a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// GetOrCreateFromBroker returns the user owning the broker DID, creating
// one on first login. Email and display name are refreshed when the broker
// reports new values.
func (s *Service) GetOrCreateFromBroker(
	ctx context.Context,
	brokerDID, email, displayName string,
) (*store.User, error) {
	user, err := s.store.GetUserByBrokerDID(ctx, brokerDID)
	switch {
	case err == nil:
		changed := false
		if email != "" && (user.Email == nil || *user.Email != email) {
			user.Email = &email
			changed = true
		}
		if displayName != "" && user.DisplayName != displayName {
			user.DisplayName = displayName
			changed = true
		}
		if changed {
			user.UpdatedAt = time.Now()
			if err := s.store.SaveUser(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to update user: %w", err)
			}
		}
		return user, nil

	case errors.Is(err, store.ErrNotFound):
		now := time.Now()
		user := &store.User{
			ID:        uuid.New(),
			BrokerDID: &brokerDID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if email != "" {
			user.Email = &email
		}
		if displayName != "" {
			user.DisplayName = displayName
		} else if email != "" {
			user.DisplayName = email
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to provision user: %w", err)
		}
		logger.Infow("provisioned new user from broker login", "user_id", user.ID)
		return user, nil

	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
}
