// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server wires the OAuth/OIDC protocol engine to its HTTP surface:
// the authorize/consent/token state machine, userinfo, introspection,
// revocation, discovery, broker login and app management.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/networkschool/nsauth/pkg/apps"
	"github.com/networkschool/nsauth/pkg/authz"
	"github.com/networkschool/nsauth/pkg/broker"
	"github.com/networkschool/nsauth/pkg/config"
	"github.com/networkschool/nsauth/pkg/keys"
	"github.com/networkschool/nsauth/pkg/session"
	"github.com/networkschool/nsauth/pkg/tokens"
	"github.com/networkschool/nsauth/pkg/users"
)

// serverRequestTimeout bounds request handling; bcrypt and broker calls
// keep it generous.
const serverRequestTimeout = 30 * time.Second

// BrokerVerifier is the subset of the broker client the handlers use.
// Narrowed to an interface so tests can stub the external IdP.
type BrokerVerifier interface {
	VerifyToken(ctx context.Context, token string) (jwt.MapClaims, bool)
	FetchUser(ctx context.Context, did string) (broker.Profile, bool)
}

// Server holds the handler dependencies.
type Server struct {
	cfg      *config.Config
	keys     *keys.Manager
	sessions *session.Manager
	broker   BrokerVerifier
	apps     *apps.Service
	users    *users.Service
	authz    *authz.Service
	tokens   *tokens.Service
}

// New assembles the server from its services.
func New(
	cfg *config.Config,
	km *keys.Manager,
	sessions *session.Manager,
	brokerVerifier BrokerVerifier,
	appSvc *apps.Service,
	userSvc *users.Service,
	authzSvc *authz.Service,
	tokenSvc *tokens.Service,
) *Server {
	return &Server{
		cfg:      cfg,
		keys:     km,
		sessions: sessions,
		broker:   brokerVerifier,
		apps:     appSvc,
		users:    userSvc,
		authz:    authzSvc,
		tokens:   tokenSvc,
	}
}

// Handler returns the fully routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(serverRequestTimeout))
	r.Use(requestLogger)
	r.Use(corsHandler(s.cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", s.handleAuthorize)
		r.Get("/authorize/info", s.handleAuthorizeInfo)
		r.Post("/authorize/consent", s.handleConsent)
		r.Post("/token", s.handleToken)
		r.Get("/userinfo", s.handleUserinfo)
		r.Post("/token/introspect", s.handleIntrospect)
		r.Post("/token/revoke", s.handleRevoke)
	})

	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Get("/.well-known/oauth-authorization-server", s.handleOAuthMetadata)
	r.Get("/.well-known/openid-configuration", s.handleOIDCConfiguration)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login/broker", s.handleBrokerLogin)
		r.Get("/me", s.handleMe)
		r.Post("/logout", s.handleLogout)
		if s.cfg.DevLoginEnabled {
			r.Post("/dev/login-as", s.handleDevLogin)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/scopes", s.handleListScopes)
		r.Route("/apps", func(r chi.Router) {
			r.Post("/", s.handleCreateApp)
			r.Get("/", s.handleListApps)
			r.Get("/{appID}", s.handleGetApp)
			r.Patch("/{appID}", s.handleUpdateApp)
			r.Delete("/{appID}", s.handleDeleteApp)
			r.Post("/{appID}/icon", s.handleUploadIcon)
			r.Delete("/{appID}/icon", s.handleDeleteIcon)
		})
	})

	// Uploaded app icons are served as static files.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.cfg.UploadsDir))))

	return r
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
