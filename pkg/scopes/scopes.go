// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scopes defines the static OAuth scope catalog. Changing the
// catalog is a code-level change; scopes granted to apps are validated
// against it.
package scopes

import "strings"

// Scope describes a grantable permission and the claims it unlocks.
type Scope struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Claims      []string `json:"claims"`
}

// Catalog is the full set of scopes this server supports, in the order
// they are presented on the consent screen.
var Catalog = []Scope{
	{
		Name:        "openid",
		Description: "OpenID Connect identity",
		Claims:      []string{"sub", "iss", "aud", "iat", "exp"},
	},
	{
		Name:        "profile",
		Description: "User profile information",
		Claims:      []string{"display_name", "username", "avatar_url", "bio"},
	},
	{
		Name:        "email",
		Description: "Email address",
		Claims:      []string{"email", "email_verified"},
	},
	{
		Name:        "cohort",
		Description: "NS cohort information",
		Claims:      []string{"cohort_id", "cohort_name", "enrollment_date"},
	},
	{
		Name:        "activity",
		Description: "User activity and stats",
		Claims:      []string{"posts_count", "streak_days", "last_active"},
	},
	{
		Name:        "socials",
		Description: "Social media links",
		Claims:      []string{"twitter", "github", "linkedin", "website"},
	},
	{
		Name:        "wallet",
		Description: "Blockchain wallet address",
		Claims:      []string{"wallet_address", "chain"},
	},
	{
		Name:        "offline_access",
		Description: "Long-lived refresh tokens",
		Claims:      []string{"refresh_token"},
	},
}

// Names returns the scope names in catalog order.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for _, s := range Catalog {
		names = append(names, s.Name)
	}
	return names
}

// Valid reports whether name is a scope in the catalog.
func Valid(name string) bool {
	for _, s := range Catalog {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Invalid returns the subset of names that are not in the catalog.
func Invalid(names []string) []string {
	var out []string
	for _, n := range names {
		if !Valid(n) {
			out = append(out, n)
		}
	}
	return out
}

// Filter returns the catalog entries whose names appear in requested.
func Filter(requested []string) []Scope {
	set := make(map[string]bool, len(requested))
	for _, n := range requested {
		set[n] = true
	}
	var out []Scope
	for _, s := range Catalog {
		if set[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// Split parses a space-separated scope string into its parts. Empty input
// yields a nil slice.
func Split(scope string) []string {
	return strings.Fields(scope)
}

// Join renders a scope list as the space-separated wire format.
func Join(names []string) string {
	return strings.Join(names, " ")
}

// Contains reports whether names includes name.
func Contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
