// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
)

// CreateAccessToken inserts an access token record.
func (s *Store) CreateAccessToken(ctx context.Context, token *AccessToken) error {
	return wrapErr(s.db.WithContext(ctx).Create(token).Error)
}

// GetAccessTokenByHash looks up a token record by its SHA-256 fingerprint.
func (s *Store) GetAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	var record AccessToken
	if err := s.db.WithContext(ctx).First(&record, "token_hash = ?", tokenHash).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &record, nil
}

// RevokeAccessTokenByHash marks a token record revoked. Unknown
// fingerprints are accepted silently; revocation is idempotent and must not
// disclose whether a token exists.
func (s *Store) RevokeAccessTokenByHash(ctx context.Context, tokenHash string) error {
	res := s.db.WithContext(ctx).
		Model(&AccessToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true)
	return wrapErr(res.Error)
}
