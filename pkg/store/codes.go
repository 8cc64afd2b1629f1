// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
)

// CreateAuthorizationCode inserts a new authorization code record.
func (s *Store) CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	return wrapErr(s.db.WithContext(ctx).Create(code).Error)
}

// GetAuthorizationCode looks up a code record by its code string.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var record AuthorizationCode
	if err := s.db.WithContext(ctx).First(&record, "code = ?", code).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &record, nil
}

// ConsumeAuthorizationCode flips a code to used, but only if it is still
// unused. The conditional UPDATE is the single-use guarantee: under
// concurrent exchanges of the same code the database serializes the writes
// and exactly one caller observes an affected row.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&AuthorizationCode{}).
		Where("code = ? AND used = ?", code, false).
		Update("used", true)
	if res.Error != nil {
		return false, wrapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}
