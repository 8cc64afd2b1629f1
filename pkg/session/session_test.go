// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, expiry time.Duration) *Manager {
	t.Helper()
	return NewManager(testSecret, expiry, false)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Hour)
	userID := uuid.New()

	token, err := m.Issue(userID)
	require.NoError(t, err)

	got, ok := m.Verify(token)
	require.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := newTestManager(t, time.Hour).Issue(uuid.New())
	require.NoError(t, err)

	other := NewManager(strings.Repeat("x", 64), time.Hour, false)
	_, ok := other.Verify(token)
	assert.False(t, ok)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, -time.Minute)
	token, err := m.Issue(uuid.New())
	require.NoError(t, err)

	_, ok := m.Verify(token)
	assert.False(t, ok)
}

func TestVerify_WrongType(t *testing.T) {
	t.Parallel()

	// An HS256 token signed with the right secret but without the session
	// type claim must be rejected.
	claims := jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, ok := newTestManager(t, time.Hour).Verify(token)
	assert.False(t, ok)
}

func TestVerify_AlgNone(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"exp":  time.Now().Add(time.Hour).Unix(),
		"type": "session",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, ok := newTestManager(t, time.Hour).Verify(token)
	assert.False(t, ok)
}

func TestVerify_MalformedSubject(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub":  "not-a-uuid",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"type": "session",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, ok := newTestManager(t, time.Hour).Verify(token)
	assert.False(t, ok)
}

func TestCookieRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, time.Hour)
	userID := uuid.New()

	token, err := m.Issue(userID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.SetCookie(rec, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	got, ok := m.UserID(req)
	require.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestClearCookie(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestManager(t, time.Hour).ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestUserID_NoCookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := newTestManager(t, time.Hour).UserID(req)
	assert.False(t, ok)
}
