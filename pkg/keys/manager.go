// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keys owns the RSA signing keypair used for RS256 access and ID
// tokens, and exposes its public half as a JWKS.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/networkschool/nsauth/pkg/logger"
)

// KeyID identifies the signing key in JWT headers and the JWKS. The server
// does not rotate keys; the kid only ever appears in token headers, never in
// persisted rows, so rotation remains possible without a data migration.
const KeyID = "oauth-provider-key-1"

const (
	rsaKeyBits     = 2048
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
)

// Config controls where the keypair comes from.
type Config struct {
	// PrivateKeyB64 and PublicKeyB64 optionally carry the keypair as
	// base64-encoded PEM. When both are set, no disk access happens.
	PrivateKeyB64 string
	PublicKeyB64  string

	// Dir is the directory holding private.pem/public.pem. When the files
	// are missing a fresh keypair is generated and persisted there.
	Dir string
}

// Manager holds the loaded keypair. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	jwks    jwk.Set
}

// New loads or generates the signing keypair. Source order: configured
// base64 PEMs, then PEM files in the key directory, then a freshly
// generated pair persisted to the directory.
func New(cfg Config) (*Manager, error) {
	var privPEM, pubPEM []byte
	var err error

	switch {
	case cfg.PrivateKeyB64 != "" && cfg.PublicKeyB64 != "":
		privPEM, err = base64.StdEncoding.DecodeString(cfg.PrivateKeyB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode configured private key: %w", err)
		}
		pubPEM, err = base64.StdEncoding.DecodeString(cfg.PublicKeyB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode configured public key: %w", err)
		}
	default:
		privPEM, pubPEM, err = loadOrGenerate(cfg.Dir)
		if err != nil {
			return nil, err
		}
	}

	private, err := parsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}
	public, err := parsePublicKey(pubPEM)
	if err != nil {
		return nil, err
	}

	set, err := buildJWKS(public)
	if err != nil {
		return nil, err
	}

	return &Manager{private: private, public: public, jwks: set}, nil
}

// SigningKey returns the RSA private key for RS256 signing.
func (m *Manager) SigningKey() *rsa.PrivateKey {
	return m.private
}

// PublicKey returns the RSA public key.
func (m *Manager) PublicKey() *rsa.PublicKey {
	return m.public
}

// KeyID returns the kid to place in JWT headers.
func (*Manager) KeyID() string {
	return KeyID
}

// JWKS returns the published key set: a single RSA/sig/RS256 entry whose
// n and e are the unpadded base64url big-endian encodings of the modulus
// and exponent.
func (m *Manager) JWKS() jwk.Set {
	return m.jwks
}

func buildJWKS(pub *rsa.PublicKey) (jwk.Set, error) {
	key, err := jwk.Import(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to import public key as JWK: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, KeyID); err != nil {
		return nil, fmt.Errorf("failed to set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("failed to set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("failed to set use: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to build JWKS: %w", err)
	}
	return set, nil
}

func loadOrGenerate(dir string) (privPEM, pubPEM []byte, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)

	privPEM, privErr := os.ReadFile(privPath) // #nosec G304 - path is derived from configuration
	pubPEM, pubErr := os.ReadFile(pubPath)    // #nosec G304 - path is derived from configuration
	switch {
	case privErr == nil && pubErr == nil:
		return privPEM, pubPEM, nil
	case privErr == nil:
		// The public half is derivable from the private key. Rebuild it
		// rather than generating a fresh pair, which would invalidate
		// every outstanding token.
		pubPEM, err = rebuildPublicKey(privPEM, pubPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Warnw("rebuilt missing public key from private key", "dir", dir)
		return privPEM, pubPEM, nil
	case pubErr == nil:
		// A public key without its private half is unrecoverable; never
		// overwrite it silently.
		return nil, nil, fmt.Errorf("found %s without %s in %s; remove it to generate a new keypair", publicKeyFile, privateKeyFile, dir)
	}

	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, nil, fmt.Errorf("failed to persist private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { //nolint:gosec // public key is public
		return nil, nil, fmt.Errorf("failed to persist public key: %w", err)
	}

	logger.Infow("generated new RSA signing keypair", "dir", dir, "kid", KeyID)
	return privPEM, pubPEM, nil
}

// rebuildPublicKey derives the public PEM from an existing private key and
// persists it at pubPath.
func rebuildPublicKey(privPEM []byte, pubPath string) ([]byte, error) {
	private, err := parsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { //nolint:gosec // public key is public
		return nil, fmt.Errorf("failed to persist public key: %w", err)
	}
	return pubPEM, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("private key is not valid PEM")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return rsaKey, nil
	}

	// Older keys may be PKCS1.
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return rsaKey, nil
}

func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("public key is not valid PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaKey, nil
}
