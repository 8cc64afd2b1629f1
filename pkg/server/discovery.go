// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"

	"github.com/networkschool/nsauth/pkg/scopes"
)

// discoveryCacheControl lets clients cache discovery documents and the key
// set. Key rotation must tolerate this window.
const discoveryCacheControl = "public, max-age=3600"

// handleJWKS publishes the RSA public key set used to verify tokens.
func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", discoveryCacheControl)
	writeJSON(w, http.StatusOK, s.keys.JWKS())
}

// oauthMetadata is the RFC 8414 authorization server metadata document.
type oauthMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

func (s *Server) buildOAuthMetadata() oauthMetadata {
	issuer := s.cfg.Issuer
	return oauthMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/oauth/authorize",
		TokenEndpoint:                     issuer + "/oauth/token",
		IntrospectionEndpoint:             issuer + "/oauth/token/introspect",
		RevocationEndpoint:                issuer + "/oauth/token/revoke",
		JWKSURI:                           issuer + "/.well-known/jwks.json",
		ScopesSupported:                   scopes.Names(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "client_credentials"},
		// "none" covers public clients exchanging PKCE codes without a
		// client_secret.
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
	}
}

// handleOAuthMetadata serves RFC 8414 authorization server metadata.
func (s *Server) handleOAuthMetadata(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", discoveryCacheControl)
	writeJSON(w, http.StatusOK, s.buildOAuthMetadata())
}

// oidcConfiguration extends the OAuth metadata with the OIDC-specific
// fields.
type oidcConfiguration struct {
	oauthMetadata
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}

// handleOIDCConfiguration serves the OpenID Connect discovery document.
func (s *Server) handleOIDCConfiguration(w http.ResponseWriter, _ *http.Request) {
	claimsSupported := []string{"sub", "iss", "aud", "iat", "exp"}
	for _, sc := range scopes.Catalog {
		switch sc.Name {
		case "openid", "offline_access":
			continue
		}
		claimsSupported = append(claimsSupported, sc.Claims...)
	}

	w.Header().Set("Cache-Control", discoveryCacheControl)
	writeJSON(w, http.StatusOK, oidcConfiguration{
		oauthMetadata:                    s.buildOAuthMetadata(),
		UserinfoEndpoint:                 s.cfg.Issuer + "/oauth/userinfo",
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ClaimsSupported:                  claimsSupported,
	})
}
