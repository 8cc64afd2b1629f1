// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/google/uuid"
)

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return wrapErr(s.db.WithContext(ctx).Create(user).Error)
}

// GetUser looks up a user by internal UUID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

// GetUserByBrokerDID looks up a user by the broker's subject identifier.
func (s *Store) GetUserByBrokerDID(ctx context.Context, did string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "broker_did = ?", did).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

// GetUserByEmail looks up a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &user, nil
}

// SaveUser persists changes to an existing user.
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	return wrapErr(s.db.WithContext(ctx).Save(user).Error)
}
