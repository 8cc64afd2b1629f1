// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/networkschool/nsauth/pkg/apps"
	"github.com/networkschool/nsauth/pkg/scopes"
	"github.com/networkschool/nsauth/pkg/store"
)

// appResponse is the app shape returned by the management API. The secret
// hash never leaves the server; the cleartext appears only in the creation
// response.
type appResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ClientID         string    `json:"client_id"`
	Scopes           []string  `json:"scopes"`
	RedirectURIs     []string  `json:"redirect_uris"`
	IconURL          string    `json:"icon_url"`
	PrivacyPolicyURL string    `json:"privacy_policy_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppResponse(a *store.OAuthApp) appResponse {
	scopeNames := a.Scopes
	if scopeNames == nil {
		scopeNames = []string{}
	}
	redirectURIs := a.RedirectURIs
	if redirectURIs == nil {
		redirectURIs = []string{}
	}
	return appResponse{
		ID:               a.ID.String(),
		Name:             a.Name,
		Description:      a.Description,
		ClientID:         a.ClientID,
		Scopes:           scopeNames,
		RedirectURIs:     redirectURIs,
		IconURL:          a.IconURL,
		PrivacyPolicyURL: a.PrivacyPolicyURL,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// appIDFromRequest parses the appID route parameter. A malformed ID behaves
// like an unknown one.
func appIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "appID"))
	return id, err == nil
}

// handleListScopes returns the scope catalog.
func (*Server) handleListScopes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scopes": scopes.Catalog})
}

// createAppRequest is the registration payload.
type createAppRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Scopes           []string `json:"scopes"`
	RedirectURIs     []string `json:"redirect_uris"`
	IconURL          string   `json:"icon_url"`
	PrivacyPolicyURL string   `json:"privacy_policy_url"`
}

// createAppResponse extends the app shape with the one-time secret.
type createAppResponse struct {
	appResponse
	ClientSecret string `json:"client_secret"`
}

// handleCreateApp registers a new OAuth application.
func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var body createAppRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed JSON body")
		return
	}
	if body.Name == "" {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "name is required")
		return
	}

	app, secret, err := s.apps.Create(r.Context(), apps.CreateParams{
		Name:             body.Name,
		Description:      body.Description,
		Scopes:           body.Scopes,
		RedirectURIs:     body.RedirectURIs,
		IconURL:          body.IconURL,
		PrivacyPolicyURL: body.PrivacyPolicyURL,
	})
	if err != nil {
		var scopeErr *apps.InvalidScopesError
		if errors.As(err, &scopeErr) {
			writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, scopeErr.Error())
			return
		}
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAppResponse{
		appResponse:  toAppResponse(app),
		ClientSecret: secret,
	})
}

// handleListApps returns all registered apps, newest first.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	list, err := s.apps.List(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}

	out := make([]appResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": out})
}

// handleGetApp returns a single app by ID.
func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appIDFromRequest(r)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		return
	}

	app, err := s.apps.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
			return
		}
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// updateAppRequest is the partial-update payload; absent fields are left
// unchanged.
type updateAppRequest struct {
	Name             *string  `json:"name"`
	Description      *string  `json:"description"`
	Scopes           []string `json:"scopes"`
	RedirectURIs     []string `json:"redirect_uris"`
	IconURL          *string  `json:"icon_url"`
	PrivacyPolicyURL *string  `json:"privacy_policy_url"`
}

// handleUpdateApp applies a partial update to an app.
func (s *Server) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appIDFromRequest(r)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		return
	}

	var body updateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, "malformed JSON body")
		return
	}

	app, err := s.apps.Update(r.Context(), id, apps.UpdateParams{
		Name:             body.Name,
		Description:      body.Description,
		Scopes:           body.Scopes,
		RedirectURIs:     body.RedirectURIs,
		IconURL:          body.IconURL,
		PrivacyPolicyURL: body.PrivacyPolicyURL,
	})
	if err != nil {
		var scopeErr *apps.InvalidScopesError
		switch {
		case errors.As(err, &scopeErr):
			writeOAuthError(w, http.StatusBadRequest, errInvalidRequest, scopeErr.Error())
		case errors.Is(err, store.ErrNotFound):
			writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		default:
			writeServerError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// handleDeleteApp removes an app; its codes and token records cascade.
func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appIDFromRequest(r)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
		return
	}

	if err := s.apps.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeOAuthError(w, http.StatusNotFound, errInvalidRequest, "App not found")
			return
		}
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
