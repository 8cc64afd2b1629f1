// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkschool/nsauth/pkg/apps"
	"github.com/networkschool/nsauth/pkg/authz"
	"github.com/networkschool/nsauth/pkg/broker"
	"github.com/networkschool/nsauth/pkg/config"
	"github.com/networkschool/nsauth/pkg/keys"
	"github.com/networkschool/nsauth/pkg/session"
	"github.com/networkschool/nsauth/pkg/store"
	"github.com/networkschool/nsauth/pkg/tokens"
	"github.com/networkschool/nsauth/pkg/users"
)

const (
	testIssuer      = "https://auth.example.com"
	testFrontend    = "https://id.example.com"
	testRedirectURI = "https://client.example.com/callback"
	testVerifier    = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge   = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

// stubBroker satisfies BrokerVerifier without network access.
type stubBroker struct {
	claims    jwt.MapClaims
	claimsOK  bool
	profile   broker.Profile
	profileOK bool
}

func (s *stubBroker) VerifyToken(context.Context, string) (jwt.MapClaims, bool) {
	return s.claims, s.claimsOK
}

func (s *stubBroker) FetchUser(context.Context, string) (broker.Profile, bool) {
	return s.profile, s.profileOK
}

type testServer struct {
	handler  http.Handler
	store    *store.Store
	sessions *session.Manager
	apps     *apps.Service
	users    *users.Service
	broker   *stubBroker
	cfg      *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	km, err := keys.New(keys.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	cfg := &config.Config{
		ListenAddress:                  ":0",
		CORSOrigins:                    []string{testFrontend},
		Issuer:                         testIssuer,
		TokenExpirySeconds:             3600,
		UploadsDir:                     t.TempDir(),
		SessionSecret:                  strings.Repeat("s", config.MinSessionSecretLength),
		SessionExpirySeconds:           86400,
		AuthorizationCodeExpirySeconds: 600,
		FrontendURL:                    testFrontend,
		DevLoginEnabled:                true,
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionExpiry(), false)
	stub := &stubBroker{}

	appSvc := apps.New(st)
	userSvc := users.New(st)
	srv := New(
		cfg,
		km,
		sessions,
		stub,
		appSvc,
		userSvc,
		authz.New(st, cfg.AuthorizationCodeExpiry()),
		tokens.New(st, km, cfg.Issuer, cfg.TokenExpiry()),
	)

	return &testServer{
		handler:  srv.Handler(),
		store:    st,
		sessions: sessions,
		apps:     appSvc,
		users:    userSvc,
		broker:   stub,
		cfg:      cfg,
	}
}

func (ts *testServer) createApp(t *testing.T, scopes []string) (*store.OAuthApp, string) {
	t.Helper()

	app, secret, err := ts.apps.Create(context.Background(), apps.CreateParams{
		Name:         "Test Client",
		Scopes:       scopes,
		RedirectURIs: []string{testRedirectURI},
	})
	require.NoError(t, err)
	return app, secret
}

func (ts *testServer) createUser(t *testing.T) *store.User {
	t.Helper()

	user, err := ts.users.GetOrCreateFromBroker(
		context.Background(), "did:privy:"+uuid.NewString(), "user@example.com", "Test User")
	require.NoError(t, err)
	return user
}

func (ts *testServer) sessionCookie(t *testing.T, userID uuid.UUID) *http.Cookie {
	t.Helper()

	token, err := ts.sessions.Issue(userID)
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: token}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req)
}

func decodeJSON(t *testing.T, body io.Reader, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(out))
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientCredentialsFlow(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, secret := ts.createApp(t, []string{"openid", "email"})

	rec := ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {app.ClientID},
		"client_secret": {secret},
		"scope":         {"email"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		Scope       string `json:"scope"`
		IDToken     string `json:"id_token"`
	}
	decodeJSON(t, rec.Body, &tok)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3600, tok.ExpiresIn)
	assert.Equal(t, "email", tok.Scope)
	assert.Empty(t, tok.IDToken)

	// Introspection sees the token as active with no user.
	rec = ts.postForm("/oauth/token/introspect", url.Values{"token": {tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	var intro map[string]any
	decodeJSON(t, rec.Body, &intro)
	assert.Equal(t, true, intro["active"])
	assert.Equal(t, "email", intro["scope"])
	assert.Equal(t, app.ClientID, intro["client_id"])
	assert.NotContains(t, intro, "user_id")

	// Userinfo rejects machine tokens.
	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Revocation flips it inactive.
	rec = ts.postForm("/oauth/token/revoke", url.Values{"token": {tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.postForm("/oauth/token/introspect", url.Values{"token": {tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	intro = nil
	decodeJSON(t, rec.Body, &intro)
	assert.Equal(t, false, intro["active"])
}

func TestClientCredentials_WrongSecret(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"email"})

	rec := ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {app.ClientID},
		"client_secret": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	decodeJSON(t, rec.Body, &body)
	assert.Equal(t, "invalid_client", body["error"])
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.postForm("/oauth/token", url.Values{"grant_type": {"password"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeJSON(t, rec.Body, &body)
	assert.Equal(t, "unsupported_grant_type", body["error"])
}

func TestAuthorize_Redirects(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid", "email"})
	user := ts.createUser(t)

	authorizeURL := "/oauth/authorize?" + url.Values{
		"response_type": {"code"},
		"client_id":     {app.ClientID},
		"redirect_uri":  {testRedirectURI},
		"scope":         {"openid email"},
		"state":         {"xyz"},
	}.Encode()

	// Without a session the user lands on the login page.
	rec := ts.do(httptest.NewRequest(http.MethodGet, authorizeURL, nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, testFrontend+"/login", loc.Scheme+"://"+loc.Host+loc.Path)
	assert.Equal(t, app.ClientID, loc.Query().Get("client_id"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))

	// With a session the user lands on consent.
	req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
	req.AddCookie(ts.sessionCookie(t, user.ID))
	rec = ts.do(req)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err = url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(loc.Path, "/consent"))
	assert.Equal(t, "openid email", loc.Query().Get("scope"))
}

func TestAuthorize_Validation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid"})

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=token&client_id="+app.ClientID, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=code&client_id=unknown&redirect_uri="+url.QueryEscape(testRedirectURI), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=code&client_id="+app.ClientID+
			"&redirect_uri="+url.QueryEscape("https://evil.example.com/cb"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeInfo(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid", "email"})

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/oauth/authorize/info?client_id="+app.ClientID+"&scope=openid+email", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info struct {
		AppName string `json:"app_name"`
		Scopes  []struct {
			Name string `json:"name"`
		} `json:"scopes"`
	}
	decodeJSON(t, rec.Body, &info)
	assert.Equal(t, "Test Client", info.AppName)
	require.Len(t, info.Scopes, 2)
	assert.Equal(t, "openid", info.Scopes[0].Name)
}

// consentApprove walks the consent POST and returns the issued code.
func (ts *testServer) consentApprove(t *testing.T, userID uuid.UUID, form url.Values) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize/consent",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(ts.sessionCookie(t, userID))
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RedirectTo string `json:"redirect_to"`
	}
	decodeJSON(t, rec.Body, &resp)
	redirect, err := url.Parse(resp.RedirectTo)
	require.NoError(t, err)
	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationCodeFlow_PKCE(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid", "profile", "email"})
	user := ts.createUser(t)

	code := ts.consentApprove(t, user.ID, url.Values{
		"approved":              {"true"},
		"client_id":             {app.ClientID},
		"redirect_uri":          {testRedirectURI},
		"scope":                 {"openid email"},
		"state":                 {"st8"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
	})

	// Public client exchange with PKCE, no client secret.
	rec := ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {app.ClientID},
		"redirect_uri":  {testRedirectURI},
		"code_verifier": {testVerifier},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tok struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
		IDToken     string `json:"id_token"`
	}
	decodeJSON(t, rec.Body, &tok)
	require.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "openid email", tok.Scope)
	assert.NotEmpty(t, tok.IDToken, "openid grant must include an id_token")

	// Userinfo honors the granted scopes.
	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var claims map[string]any
	decodeJSON(t, rec.Body, &claims)
	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, "user@example.com", claims["email"])
	assert.Equal(t, true, claims["email_verified"])
	assert.NotContains(t, claims, "name") // profile not granted
	assert.NotContains(t, claims, "wallet_address")

	// Replaying the code fails.
	rec = ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {app.ClientID},
		"redirect_uri":  {testRedirectURI},
		"code_verifier": {testVerifier},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeJSON(t, rec.Body, &body)
	assert.Equal(t, "invalid_grant", body["error"])
}

func TestAuthorizationCodeFlow_PKCEMismatchDoesNotBurnCode(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid"})
	user := ts.createUser(t)

	code := ts.consentApprove(t, user.ID, url.Values{
		"approved":              {"true"},
		"client_id":             {app.ClientID},
		"redirect_uri":          {testRedirectURI},
		"scope":                 {"openid"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
	})

	exchange := func(verifier string) *httptest.ResponseRecorder {
		return ts.postForm("/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"client_id":     {app.ClientID},
			"redirect_uri":  {testRedirectURI},
			"code_verifier": {verifier},
		})
	}

	rec := exchange("wrong-verifier")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The failed attempt did not consume the code.
	rec = exchange(testVerifier)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConsent_Denied(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid"})
	user := ts.createUser(t)

	form := url.Values{
		"approved":     {"false"},
		"client_id":    {app.ClientID},
		"redirect_uri": {testRedirectURI},
		"scope":        {"openid"},
		"state":        {"xyz"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize/consent",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(ts.sessionCookie(t, user.ID))
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RedirectTo string `json:"redirect_to"`
	}
	decodeJSON(t, rec.Body, &resp)
	redirect, err := url.Parse(resp.RedirectTo)
	require.NoError(t, err)
	assert.Equal(t, "access_denied", redirect.Query().Get("error"))
	assert.Equal(t, "xyz", redirect.Query().Get("state"))
	assert.Empty(t, redirect.Query().Get("code"))
}

func TestConsent_RequiresSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid"})

	rec := ts.postForm("/oauth/authorize/consent", url.Values{
		"approved":     {"true"},
		"client_id":    {app.ClientID},
		"redirect_uri": {testRedirectURI},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfidentialClientExchange(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, secret := ts.createApp(t, []string{"openid"})
	user := ts.createUser(t)

	code := ts.consentApprove(t, user.ID, url.Values{
		"approved":     {"true"},
		"client_id":    {app.ClientID},
		"redirect_uri": {testRedirectURI},
		"scope":        {"openid"},
	})

	// A confidential client authenticating with a bad secret is rejected
	// before the code is even inspected.
	rec := ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {app.ClientID},
		"client_secret": {"wrong"},
		"redirect_uri":  {testRedirectURI},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {app.ClientID},
		"client_secret": {secret},
		"redirect_uri":  {testRedirectURI},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUserinfo_RevokedToken(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	app, _ := ts.createApp(t, []string{"openid"})
	user := ts.createUser(t)

	code := ts.consentApprove(t, user.ID, url.Values{
		"approved":     {"true"},
		"client_id":    {app.ClientID},
		"redirect_uri": {testRedirectURI},
		"scope":        {"openid"},
	})

	rec := ts.postForm("/oauth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {app.ClientID},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, rec.Body, &tok)

	rec = ts.postForm("/oauth/token/revoke", url.Values{"token": {tok.AccessToken}})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDiscoveryDocuments(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	decodeJSON(t, rec.Body, &jwks)
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, keys.KeyID, jwks.Keys[0]["kid"])
	assert.Equal(t, "RS256", jwks.Keys[0]["alg"])

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var meta map[string]any
	decodeJSON(t, rec.Body, &meta)
	assert.Equal(t, testIssuer, meta["issuer"])
	assert.Equal(t, testIssuer+"/oauth/authorize", meta["authorization_endpoint"])
	assert.Equal(t, testIssuer+"/oauth/token", meta["token_endpoint"])
	assert.Equal(t, testIssuer+"/.well-known/jwks.json", meta["jwks_uri"])
	// Public clients authenticate with PKCE alone, so "none" must be
	// advertised alongside client_secret_post.
	assert.Equal(t, []any{"client_secret_post", "none"}, meta["token_endpoint_auth_methods_supported"])
	assert.NotContains(t, meta, "userinfo_endpoint")

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var oidc map[string]any
	decodeJSON(t, rec.Body, &oidc)
	assert.Equal(t, testIssuer+"/oauth/userinfo", oidc["userinfo_endpoint"])
	assert.Equal(t, []any{"public"}, oidc["subject_types_supported"])
	assert.Equal(t, []any{"RS256"}, oidc["id_token_signing_alg_values_supported"])
}

func TestBrokerLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.broker.claims = jwt.MapClaims{"sub": "did:privy:newuser"}
	ts.broker.claimsOK = true
	ts.broker.profile = broker.Profile{
		"linked_accounts": []any{
			map[string]any{"type": "email", "address": "new@example.com", "name": "New User"},
		},
	}
	ts.broker.profileOK = true

	req := httptest.NewRequest(http.MethodPost, "/auth/login/broker",
		strings.NewReader(`{"token":"some-broker-token"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)

	var resp struct {
		User struct {
			Email       *string `json:"email"`
			DisplayName string  `json:"display_name"`
		} `json:"user"`
	}
	decodeJSON(t, rec.Body, &resp)
	require.NotNil(t, resp.User.Email)
	assert.Equal(t, "new@example.com", *resp.User.Email)
	assert.Equal(t, "New User", resp.User.DisplayName)

	// The cookie authenticates /auth/me.
	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(cookies[0])
	rec = ts.do(meReq)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBrokerLogin_InvalidToken(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.broker.claimsOK = false

	req := httptest.NewRequest(http.MethodPost, "/auth/login/broker",
		strings.NewReader(`{"token":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestBrokerLogin_ProfileUnavailable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	// The user is still provisioned when the profile fetch fails.
	ts.broker.claims = jwt.MapClaims{"sub": "did:privy:noprofile"}
	ts.broker.claimsOK = true
	ts.broker.profileOK = false

	req := httptest.NewRequest(http.MethodPost, "/auth/login/broker",
		strings.NewReader(`{"token":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User struct {
			Email *string `json:"email"`
		} `json:"user"`
	}
	decodeJSON(t, rec.Body, &resp)
	assert.Nil(t, resp.User.Email)
}

func TestMeAndLogout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	user := ts.createUser(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(ts.sessionCookie(t, user.ID))
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var me userResponse
	decodeJSON(t, rec.Body, &me)
	assert.Equal(t, user.ID.String(), me.ID)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestDevLogin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.createUser(t) // user@example.com

	req := httptest.NewRequest(http.MethodPost, "/auth/dev/login-as",
		strings.NewReader(`{"email":"user@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodPost, "/auth/dev/login-as",
		strings.NewReader(`{"email":"nobody@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = ts.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScopesEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/scopes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scopes []struct {
			Name   string   `json:"name"`
			Claims []string `json:"claims"`
		} `json:"scopes"`
	}
	decodeJSON(t, rec.Body, &resp)
	require.NotEmpty(t, resp.Scopes)
	assert.Equal(t, "openid", resp.Scopes[0].Name)
}

func TestAppManagementCRUD(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	// Create.
	req := httptest.NewRequest(http.MethodPost, "/api/apps/",
		strings.NewReader(`{"name":"Managed App","scopes":["openid","email"],"redirect_uris":["https://m.example.com/cb"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID           string `json:"id"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	decodeJSON(t, rec.Body, &created)
	assert.NotEmpty(t, created.ClientID)
	assert.NotEmpty(t, created.ClientSecret)

	// Get does not leak the secret.
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/apps/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.ClientSecret)
	assert.NotContains(t, rec.Body.String(), "client_secret_hash")

	// List.
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/apps/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Apps []appResponse `json:"apps"`
	}
	decodeJSON(t, rec.Body, &list)
	assert.Len(t, list.Apps, 1)

	// Patch.
	req = httptest.NewRequest(http.MethodPatch, "/api/apps/"+created.ID,
		strings.NewReader(`{"name":"Renamed App"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched appResponse
	decodeJSON(t, rec.Body, &patched)
	assert.Equal(t, "Renamed App", patched.Name)
	assert.Equal(t, []string{"openid", "email"}, patched.Scopes)

	// Invalid scopes rejected.
	req = httptest.NewRequest(http.MethodPatch, "/api/apps/"+created.ID,
		strings.NewReader(`{"scopes":["superuser"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Delete.
	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/apps/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/apps/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppManagement_NotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/apps/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/apps/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/apps/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/oauth/token", nil)
	req.Header.Set("Origin", testFrontend)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := ts.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testFrontend, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = ts.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
