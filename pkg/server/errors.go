// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/networkschool/nsauth/pkg/logger"
)

// OAuth error codes used across the protocol surface.
const (
	errInvalidRequest          = "invalid_request"
	errInvalidClient           = "invalid_client"
	errInvalidGrant            = "invalid_grant"
	errInvalidToken            = "invalid_token"
	errUnsupportedGrantType    = "unsupported_grant_type"
	errUnsupportedResponseType = "unsupported_response_type"
	errAccessDenied            = "access_denied"
	errNotAuthenticated        = "not_authenticated"
	errUserNotFound            = "user_not_found"
	errServerError             = "server_error"
)

// oauthError is the standard OAuth 2.0 error envelope. Protocol failures
// are always returned as this JSON body, never as bare status text.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, oauthError{Error: code, ErrorDescription: description})
}

// writeServerError hides infrastructure failures behind a generic 500
// envelope; details stay in the logs.
func writeServerError(w http.ResponseWriter, err error) {
	logger.Errorw("internal error", "error", err)
	writeOAuthError(w, http.StatusInternalServerError, errServerError, "internal server error")
}
