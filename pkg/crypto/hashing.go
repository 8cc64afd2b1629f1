// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package crypto provides client credential generation, secret hashing and
// token fingerprinting for the OAuth provider.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	clientIDBytes     = 16
	clientSecretBytes = 48
	authzCodeBytes    = 64
)

// GenerateClientID returns a new public client identifier: 16 random bytes
// hex encoded (32 characters).
func GenerateClientID() string {
	return hex.EncodeToString(randomBytes(clientIDBytes))
}

// GenerateClientSecret returns a new client secret: 48 random bytes,
// URL-safe base64 without padding. The cleartext is shown to the developer
// exactly once; only its bcrypt hash is persisted.
func GenerateClientSecret() string {
	return base64.RawURLEncoding.EncodeToString(randomBytes(clientSecretBytes))
}

// GenerateAuthorizationCode returns a fresh single-use authorization code:
// 64 random bytes, URL-safe base64 without padding.
func GenerateAuthorizationCode() string {
	return base64.RawURLEncoding.EncodeToString(randomBytes(authzCodeBytes))
}

// HashClientSecret hashes a client secret with bcrypt and a fresh salt.
func HashClientSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return string(hashed), nil
}

// VerifyClientSecret reports whether secret matches the stored bcrypt hash.
func VerifyClientSecret(secret, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}

// HashToken returns the lowercase SHA-256 hex fingerprint of a serialized
// JWT. The fingerprint is the primary key for introspection and revocation;
// raw tokens are never stored, so the hashed string must be byte-identical
// to the token handed to the client.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the platform RNG is broken; there is
		// no meaningful recovery.
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return b
}
