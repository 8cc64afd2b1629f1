// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/apps"
	"github.com/networkschool/nsauth/pkg/authz"
	"github.com/networkschool/nsauth/pkg/scopes"
	"github.com/networkschool/nsauth/pkg/store"
	"github.com/networkschool/nsauth/pkg/tokens"
)

// defaultScope is assumed when an authorize request omits scope.
const defaultScope = "openid"

// handleAuthorize starts the authorization code flow. It validates the
// client and redirect URI, then hands the user to the frontend: the login
// page when no session exists, the consent page otherwise. All authorize
// parameters are forwarded so the frontend can post them back.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("response_type") != "code" {
		writeOAuthError(w, http.StatusBadRequest, errUnsupportedResponseType, "Only 'code' is supported")
		return
	}

	clientID := q.Get("client_id")
	app, err := s.apps.GetByClientID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusBadRequest, errInvalidClient, "Unknown client_id")
			return
		}
		writeServerError(w, err)
		return
	}

	redirectURI := q.Get("redirect_uri")
	if !apps.AllowsRedirectURI(app, redirectURI) {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "redirect_uri not registered")
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = defaultScope
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"scope":                 {scope},
		"state":                 {q.Get("state")},
		"code_challenge":        {q.Get("code_challenge")},
		"code_challenge_method": {q.Get("code_challenge_method")},
	}

	page := "/login"
	if _, ok := s.sessions.UserID(r); ok {
		page = "/consent"
	}
	http.Redirect(w, r, s.cfg.FrontendURL+page+"?"+params.Encode(), http.StatusFound)
}

// authorizeInfoResponse is what the consent page renders.
type authorizeInfoResponse struct {
	AppName          string         `json:"app_name"`
	AppIconURL       string         `json:"app_icon_url"`
	AppDescription   string         `json:"app_description"`
	PrivacyPolicyURL string         `json:"privacy_policy_url"`
	Scopes           []scopes.Scope `json:"scopes"`
}

// handleAuthorizeInfo returns app metadata plus the definitions of the
// requested scopes, for the consent screen.
func (s *Server) handleAuthorizeInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	app, err := s.apps.GetByClientID(r.Context(), q.Get("client_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusBadRequest, errInvalidClient, "Unknown client_id")
			return
		}
		writeServerError(w, err)
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = defaultScope
	}

	writeJSON(w, http.StatusOK, authorizeInfoResponse{
		AppName:          app.Name,
		AppIconURL:       app.IconURL,
		AppDescription:   app.Description,
		PrivacyPolicyURL: app.PrivacyPolicyURL,
		Scopes:           scopes.Filter(scopes.Split(scope)),
	})
}

// redirectResponse carries the target the frontend should navigate to.
// The consent endpoint answers JSON rather than a 302 because the consent
// page calls it with a cross-origin fetch, and a redirect's Location
// header is unreadable there.
type redirectResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// handleConsent records the user's consent decision and returns the
// client redirect carrying either an authorization code or access_denied.
func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	userID, ok := s.sessions.UserID(r)
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, errAccessDenied, "User not authenticated")
		return
	}

	redirectURI := r.PostFormValue("redirect_uri")
	state := r.PostFormValue("state")

	approved, err := strconv.ParseBool(r.PostFormValue("approved"))
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "approved must be true or false")
		return
	}

	if !approved {
		params := url.Values{"error": {errAccessDenied}, "state": {state}}
		writeJSON(w, http.StatusOK, redirectResponse{RedirectTo: redirectURI + "?" + params.Encode()})
		return
	}

	clientID := r.PostFormValue("client_id")
	app, err := s.apps.GetByClientID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusBadRequest, errInvalidClient, "Unknown client_id")
			return
		}
		writeServerError(w, err)
		return
	}

	// The authorize endpoint already validated the redirect URI, but the
	// consent POST arrives from the browser and is re-validated.
	if !apps.AllowsRedirectURI(app, redirectURI) {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "redirect_uri not registered")
		return
	}

	scope := r.PostFormValue("scope")
	if scope == "" {
		scope = defaultScope
	}

	code, err := s.authz.Create(r.Context(), authz.CreateParams{
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		State:               state,
		CodeChallenge:       r.PostFormValue("code_challenge"),
		CodeChallengeMethod: r.PostFormValue("code_challenge_method"),
	})
	if err != nil {
		writeServerError(w, err)
		return
	}

	params := url.Values{"code": {code}}
	if state != "" {
		params.Set("state", state)
	}
	writeJSON(w, http.StatusOK, redirectResponse{RedirectTo: redirectURI + "?" + params.Encode()})
}

// tokenResponse is the token endpoint success body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	IDToken     string `json:"id_token,omitempty"`
}

// handleToken dispatches on grant_type.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	switch r.PostFormValue("grant_type") {
	case "client_credentials":
		s.handleClientCredentialsGrant(w, r)
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, errUnsupportedGrantType,
			"Supported: client_credentials, authorization_code")
	}
}

func (s *Server) handleClientCredentialsGrant(w http.ResponseWriter, r *http.Request) {
	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")
	if clientID == "" || clientSecret == "" {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "client_id and client_secret are required")
		return
	}

	app, err := s.tokens.AuthenticateClient(r.Context(), clientID, clientSecret)
	if err != nil {
		if errors.Is(err, tokens.ErrInvalidClient) {
			writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "Invalid client credentials")
			return
		}
		writeServerError(w, err)
		return
	}

	requested := scopes.Split(r.PostFormValue("scope"))
	accessToken, granted, err := s.tokens.IssueClientCredentials(r.Context(), app, requested)
	if err != nil {
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.Lifetime().Seconds()),
		Scope:       scopes.Join(granted),
	})
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")
	clientID := r.PostFormValue("client_id")
	redirectURI := r.PostFormValue("redirect_uri")
	if code == "" || clientID == "" || redirectURI == "" {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "code, client_id, and redirect_uri are required")
		return
	}

	// Confidential clients authenticate with their secret; public clients
	// rely on PKCE and are only resolved.
	var app *store.OAuthApp
	var err error
	if clientSecret := r.PostFormValue("client_secret"); clientSecret != "" {
		app, err = s.tokens.AuthenticateClient(r.Context(), clientID, clientSecret)
		if err != nil {
			if errors.Is(err, tokens.ErrInvalidClient) {
				writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "Invalid client credentials")
				return
			}
			writeServerError(w, err)
			return
		}
	} else {
		app, err = s.apps.GetByClientID(r.Context(), clientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeOAuthError(w, http.StatusUnauthorized, errInvalidClient, "Unknown client_id")
				return
			}
			writeServerError(w, err)
			return
		}
	}

	record, err := s.authz.Exchange(r.Context(), code, clientID, redirectURI, r.PostFormValue("code_verifier"))
	if err != nil {
		if errors.Is(err, authz.ErrInvalidGrant) {
			writeOAuthError(w, http.StatusBadRequest, errInvalidGrant, "Invalid or expired authorization code")
			return
		}
		writeServerError(w, err)
		return
	}

	granted := scopes.Split(record.Scope)
	accessToken, err := s.tokens.IssueUserToken(r.Context(), app, record.UserID, granted)
	if err != nil {
		writeServerError(w, err)
		return
	}

	resp := tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.Lifetime().Seconds()),
		Scope:       record.Scope,
	}

	if scopes.Contains(granted, "openid") {
		user, err := s.users.Get(r.Context(), record.UserID)
		if err == nil {
			idToken, err := s.tokens.IssueIDToken(app, user, granted)
			if err != nil {
				writeServerError(w, err)
				return
			}
			resp.IDToken = idToken
		} else if !errors.Is(err, store.ErrNotFound) {
			writeServerError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleUserinfo returns scope-gated claims for the user bound to the
// presented Bearer token. Tokens from the client_credentials grant carry
// no user and are rejected.
func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidRequest, "Bearer token required")
		return
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	introspection, err := s.tokens.Introspect(r.Context(), tokenString)
	if err != nil {
		writeServerError(w, err)
		return
	}
	if !introspection.Active {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "Token is invalid or expired")
		return
	}
	if introspection.UserID == "" {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "Token has no user context")
		return
	}

	userID, err := uuid.Parse(introspection.UserID)
	if err != nil {
		writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "Token has no user context")
		return
	}
	user, err := s.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusUnauthorized, errInvalidToken, "User not found")
			return
		}
		writeServerError(w, err)
		return
	}

	granted := scopes.Split(introspection.Scope)
	claims := map[string]any{"sub": user.ID.String()}

	if scopes.Contains(granted, "email") {
		claims["email"] = user.Email
		claims["email_verified"] = true
	}
	if scopes.Contains(granted, "profile") {
		claims["name"] = user.DisplayName
		claims["picture"] = user.AvatarURL
		claims["bio"] = user.Bio
	}
	if scopes.Contains(granted, "cohort") {
		claims["cohort"] = user.Cohort
	}
	if scopes.Contains(granted, "socials") {
		socials := user.Socials
		if socials == nil {
			socials = map[string]string{}
		}
		claims["socials"] = socials
	}
	if scopes.Contains(granted, "wallet") {
		claims["wallet_address"] = user.WalletAddress
	}
	if scopes.Contains(granted, "activity") {
		// Activity tracking has no backing source yet; these are the
		// documented placeholder values.
		claims["posts_count"] = 42
		claims["streak_days"] = 7
		claims["last_active"] = user.UpdatedAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, claims)
}

// handleIntrospect reports whether a token is active. Always 200.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	result, err := s.tokens.Introspect(r.Context(), r.PostFormValue("token"))
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRevoke revokes a token. Always 200 with an empty object,
// regardless of whether the token existed.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed form body")
		return
	}

	if err := s.tokens.Revoke(r.Context(), r.PostFormValue("token")); err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
