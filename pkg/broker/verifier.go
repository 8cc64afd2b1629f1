// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package broker verifies user tokens minted by the external identity
// broker (Privy) and fetches user profiles from its server API. The broker
// performs primary authentication; this server trusts its ES256 JWTs.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/networkschool/nsauth/pkg/logger"
)

// DefaultBaseURL is the broker API origin.
const DefaultBaseURL = "https://auth.privy.io"

// defaultIssuer is the "iss" claim the broker places in user tokens.
const defaultIssuer = "privy.io"

// httpTimeout bounds outbound calls to the broker.
const httpTimeout = 30 * time.Second

// clockSkew is the leeway applied to exp/nbf/iat validation.
const clockSkew = 30 * time.Second

// jwksRefreshInterval is how often the cached broker JWKS is refetched.
const jwksRefreshInterval = time.Hour

// Config configures the broker verifier.
type Config struct {
	// AppID is the broker application ID; it is the expected audience of
	// user tokens and the basic-auth username for the server API.
	AppID string

	// AppSecret is the basic-auth password for the server API.
	AppSecret string

	// BaseURL overrides the broker origin, e.g. for tests.
	// Defaults to DefaultBaseURL.
	BaseURL string

	// Issuer overrides the expected "iss" claim. Defaults to privy.io.
	Issuer string
}

// Verifier verifies broker user tokens against the broker's JWKS, which is
// cached process-wide and refreshed in the background.
type Verifier struct {
	appID     string
	appSecret string
	baseURL   string
	issuer    string
	jwksURL   string

	client    *http.Client
	jwksCache *jwk.Cache

	// JWKS registration happens lazily on first verification so that
	// construction never blocks on the network.
	registerOnce sync.Mutex
	registered   bool
	registerErr  error
}

// New creates a broker verifier. The JWKS cache is created immediately but
// the JWKS URL is fetched lazily on first use.
func New(ctx context.Context, cfg Config) (*Verifier, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}

	client := &http.Client{Timeout: httpTimeout}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(client)))
	if err != nil {
		return nil, fmt.Errorf("failed to create broker JWKS cache: %w", err)
	}

	return &Verifier{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		baseURL:   baseURL,
		issuer:    issuer,
		jwksURL:   fmt.Sprintf("%s/api/v1/apps/%s/jwks.json", baseURL, cfg.AppID),
		client:    client,
		jwksCache: cache,
	}, nil
}

func (v *Verifier) ensureRegistered(ctx context.Context) error {
	v.registerOnce.Lock()
	defer v.registerOnce.Unlock()

	if v.registered {
		return v.registerErr
	}

	registerCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := v.jwksCache.Register(registerCtx, v.jwksURL,
		jwk.WithConstantInterval(jwksRefreshInterval)); err != nil {
		v.registerErr = fmt.Errorf("failed to register broker JWKS URL: %w", err)
	} else {
		v.registerErr = nil
	}
	v.registered = true
	return v.registerErr
}

// keyFor resolves the verification key for a token from the cached JWKS.
func (v *Verifier) keyFor(ctx context.Context, token *jwt.Token) (any, error) {
	if err := v.ensureRegistered(ctx); err != nil {
		return nil, err
	}

	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("token header missing kid")
	}

	keySet, err := v.jwksCache.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up broker JWKS: %w", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("key %s not found in broker JWKS", kid)
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("failed to export broker key: %w", err)
	}
	return rawKey, nil
}

// VerifyToken verifies a broker user token and returns its claims.
// Any failure (network, parse, signature, issuer, audience, expiry)
// yields (nil, false). The caller never learns which check failed; this
// endpoint must not act as a verification oracle.
func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (jwt.MapClaims, bool) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return v.keyFor(ctx, t) },
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithAudience(v.appID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil || !token.Valid {
		logger.Debugw("broker token verification failed", "error", err)
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return claims, true
}

// Profile is the broker's user record, kept as loose JSON since only a few
// fields are consumed.
type Profile map[string]any

// LinkedEmail returns the address of the first linked email account, if any.
// Broker JWTs only carry sub/aud/iss, so the email comes from the profile.
func (p Profile) LinkedEmail() string {
	accounts, _ := p["linked_accounts"].([]any)
	for _, a := range accounts {
		acct, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := acct["type"].(string); t == "email" {
			addr, _ := acct["address"].(string)
			return addr
		}
	}
	return ""
}

// DisplayName returns the best available human name: a name on any linked
// account, falling back to empty.
func (p Profile) DisplayName() string {
	accounts, _ := p["linked_accounts"].([]any)
	for _, a := range accounts {
		acct, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := acct["name"].(string); name != "" {
			return name
		}
	}
	return ""
}

// FetchUser fetches the broker's user record for a DID over the server API
// using HTTP basic auth. Only a 200 response yields a profile; anything
// else, including transport errors, returns ok=false.
func (v *Verifier) FetchUser(ctx context.Context, did string) (Profile, bool) {
	url := fmt.Sprintf("%s/api/v1/users/%s", v.baseURL, did)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	req.SetBasicAuth(v.appID, v.appSecret)
	req.Header.Set("privy-app-id", v.appID)

	resp, err := v.client.Do(req)
	if err != nil {
		logger.Debugw("broker profile fetch failed", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debugw("broker profile fetch rejected", "status", resp.StatusCode)
		return nil, false
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, false
	}
	return profile, true
}
