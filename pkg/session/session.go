// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session issues and verifies the HS256 session cookie that ties a
// browser to an authenticated user. Sessions are stateless: the cookie is a
// signed JWT and no database row exists for it.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie set on the provider's own origin.
const CookieName = "ns_session"

// tokenType is the required "type" claim; it prevents other HS256 tokens
// signed with an overlapping secret from being accepted as sessions.
const tokenType = "session"

// Manager mints and verifies session tokens and manages the cookie.
type Manager struct {
	secret []byte
	expiry time.Duration
	secure bool
}

// NewManager creates a session manager. The secret must already be
// validated (>= 64 bytes); secure controls the cookie Secure attribute.
func NewManager(secret string, expiry time.Duration, secure bool) *Manager {
	return &Manager{secret: []byte(secret), expiry: expiry, secure: secure}
}

// Issue mints a session token for the given user.
func (m *Manager) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"iat":  now.Unix(),
		"exp":  now.Add(m.expiry).Unix(),
		"type": tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks a session token and returns the user ID it carries.
// Any failure (bad signature, expiry, wrong type, malformed sub) yields
// ok=false; callers treat that as "no session".
func (m *Manager) Verify(tokenString string) (uuid.UUID, bool) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false
	}
	if typ, _ := claims["type"].(string); typ != tokenType {
		return uuid.Nil, false
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// SetCookie attaches the session cookie to a response.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.expiry.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie deletes the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID extracts and verifies the session from a request's cookie.
func (m *Manager) UserID(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, false
	}
	return m.Verify(cookie.Value)
}
