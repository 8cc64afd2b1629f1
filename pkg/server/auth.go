// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/networkschool/nsauth/pkg/logger"
	"github.com/networkschool/nsauth/pkg/store"
)

// userResponse is the user shape returned by the session endpoints.
type userResponse struct {
	ID            string            `json:"id"`
	Email         *string           `json:"email"`
	DisplayName   string            `json:"display_name"`
	AvatarURL     string            `json:"avatar_url"`
	Cohort        string            `json:"cohort"`
	Bio           string            `json:"bio"`
	Socials       map[string]string `json:"socials"`
	WalletAddress string            `json:"wallet_address"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toUserResponse(u *store.User) userResponse {
	socials := u.Socials
	if socials == nil {
		socials = map[string]string{}
	}
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		Cohort:        u.Cohort,
		Bio:           u.Bio,
		Socials:       socials,
		WalletAddress: u.WalletAddress,
		CreatedAt:     u.CreatedAt,
	}
}

// handleBrokerLogin exchanges a broker-issued user token for a first-party
// session cookie, provisioning the user on first login. The broker token is
// never stored; only its verified subject (the DID) is used.
func (s *Server) handleBrokerLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "token is required")
		return
	}

	claims, ok := s.broker.VerifyToken(r.Context(), body.Token)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "Invalid broker token")
		return
	}

	did, _ := claims["sub"].(string)
	if did == "" {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "Invalid broker token")
		return
	}

	// The broker JWT carries only the DID; email and name come from the
	// broker's server API. A profile fetch failure is not fatal: the user
	// is still provisioned, just without an email.
	var email, displayName string
	if profile, ok := s.broker.FetchUser(r.Context(), did); ok {
		email = profile.LinkedEmail()
		displayName = profile.DisplayName()
	} else {
		logger.Warnw("broker profile unavailable during login", "did", did)
	}

	user, err := s.users.GetOrCreateFromBroker(r.Context(), did, email, displayName)
	if err != nil {
		writeServerError(w, err)
		return
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	s.sessions.SetCookie(w, token)

	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// handleMe returns the user bound to the current session cookie.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.sessions.UserID(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, errNotAuthenticated, "No active session")
		return
	}

	user, err := s.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The session outlived the user; treat it as logged out.
			s.sessions.ClearCookie(w)
			writeOAuthError(w, http.StatusUnauthorized, errNotAuthenticated, "No active session")
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleLogout clears the session cookie. Always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleDevLogin creates a session for an existing user by email, without
// broker authentication. Only routed when dev login is enabled in config;
// never enable it in production.
func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "email is required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusNotFound, errUserNotFound, "No user with that email")
			return
		}
		writeServerError(w, err)
		return
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	s.sessions.SetCookie(w, token)

	logger.Warnw("dev login used", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}
