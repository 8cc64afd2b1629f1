// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// PKCE challenge methods supported by the authorization endpoint (RFC 7636).
const (
	// PKCEMethodS256 hashes the verifier with SHA-256.
	PKCEMethodS256 = "S256"

	// PKCEMethodPlain compares the verifier to the challenge directly.
	// Kept for legacy clients; S256 is strongly preferred.
	PKCEMethodPlain = "plain"
)

// GeneratePKCEVerifier generates a cryptographically random code_verifier
// per RFC 7636 Section 4.1. It delegates to oauth2.GenerateVerifier().
func GeneratePKCEVerifier() string {
	return oauth2.GenerateVerifier()
}

// ComputePKCEChallenge computes the S256 code_challenge for a verifier:
// BASE64URL(SHA256(code_verifier)), no padding.
func ComputePKCEChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyPKCE reports whether verifier satisfies the stored challenge under
// the given method. An empty verifier or an unknown method always fails.
func VerifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case PKCEMethodS256:
		expected := ComputePKCEChallenge(verifier)
		return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
