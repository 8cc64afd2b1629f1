// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/google/uuid"
)

// CreateApp inserts a new registered application.
func (s *Store) CreateApp(ctx context.Context, app *OAuthApp) error {
	return wrapErr(s.db.WithContext(ctx).Create(app).Error)
}

// GetApp looks up an application by its internal UUID.
func (s *Store) GetApp(ctx context.Context, id uuid.UUID) (*OAuthApp, error) {
	var app OAuthApp
	if err := s.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &app, nil
}

// GetAppByClientID looks up an application by its public client identifier.
func (s *Store) GetAppByClientID(ctx context.Context, clientID string) (*OAuthApp, error) {
	var app OAuthApp
	if err := s.db.WithContext(ctx).First(&app, "client_id = ?", clientID).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &app, nil
}

// ListApps returns all registered applications, newest first.
func (s *Store) ListApps(ctx context.Context) ([]OAuthApp, error) {
	var apps []OAuthApp
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, wrapErr(err)
	}
	return apps, nil
}

// SaveApp persists changes to an existing application.
func (s *Store) SaveApp(ctx context.Context, app *OAuthApp) error {
	return wrapErr(s.db.WithContext(ctx).Save(app).Error)
}

// DeleteApp removes an application. Codes and tokens issued to it are
// removed by the ON DELETE CASCADE foreign keys.
func (s *Store) DeleteApp(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&OAuthApp{}, "id = ?", id)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
