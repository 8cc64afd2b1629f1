// SPDX-FileCopyrightText: Copyright 2025 Network School, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"time"

	"github.com/google/uuid"
)

// OAuthApp is a registered client application. The client secret is stored
// only as a bcrypt hash; the cleartext leaves the server exactly once, in
// the creation response.
type OAuthApp struct {
	ID               uuid.UUID `gorm:"column:id;primaryKey"`
	Name             string    `gorm:"column:name"`
	Description      string    `gorm:"column:description"`
	ClientID         string    `gorm:"column:client_id"`
	ClientSecretHash string    `gorm:"column:client_secret_hash"`
	Scopes           []string  `gorm:"column:scopes;serializer:json"`
	RedirectURIs     []string  `gorm:"column:redirect_uris;serializer:json"`
	IconURL          string    `gorm:"column:icon_url"`
	PrivacyPolicyURL string    `gorm:"column:privacy_policy_url"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

// TableName implements gorm's table naming.
func (OAuthApp) TableName() string { return "oauth_apps" }

// User is an end-user identity, provisioned just-in-time on first broker
// login. BrokerDID and Email are pointers so absent values stay NULL and do
// not collide on their unique indexes.
type User struct {
	ID            uuid.UUID         `gorm:"column:id;primaryKey"`
	BrokerDID     *string           `gorm:"column:broker_did"`
	Email         *string           `gorm:"column:email"`
	DisplayName   string            `gorm:"column:display_name"`
	AvatarURL     string            `gorm:"column:avatar_url"`
	Cohort        string            `gorm:"column:cohort"`
	Bio           string            `gorm:"column:bio"`
	Socials       map[string]string `gorm:"column:socials;serializer:json"`
	WalletAddress string            `gorm:"column:wallet_address"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at"`
}

// TableName implements gorm's table naming.
func (User) TableName() string { return "users" }

// AuthorizationCode is a single-use ticket binding a user's consent to a
// future token exchange. The redirect URI and PKCE challenge are snapshots
// of the authorize request and must match byte-exactly on exchange.
type AuthorizationCode struct {
	ID                  uuid.UUID `gorm:"column:id;primaryKey"`
	Code                string    `gorm:"column:code"`
	ClientID            string    `gorm:"column:client_id"`
	UserID              uuid.UUID `gorm:"column:user_id"`
	RedirectURI         string    `gorm:"column:redirect_uri"`
	Scope               string    `gorm:"column:scope"`
	State               string    `gorm:"column:state"`
	CodeChallenge       string    `gorm:"column:code_challenge"`
	CodeChallengeMethod string    `gorm:"column:code_challenge_method"`
	Used                bool      `gorm:"column:used"`
	ExpiresAt           time.Time `gorm:"column:expires_at"`
	CreatedAt           time.Time `gorm:"column:created_at"`
}

// TableName implements gorm's table naming.
func (AuthorizationCode) TableName() string { return "authorization_codes" }

// AccessToken is the audit and revocation record for an emitted JWT. The
// JWT itself is self-describing; this row exists so introspection and
// revocation can be answered by fingerprint lookup.
type AccessToken struct {
	ID        uuid.UUID  `gorm:"column:id;primaryKey"`
	TokenHash string     `gorm:"column:token_hash"`
	JTI       string     `gorm:"column:jti"`
	ClientID  string     `gorm:"column:client_id"`
	UserID    *uuid.UUID `gorm:"column:user_id"`
	Scopes    []string   `gorm:"column:scopes;serializer:json"`
	ExpiresAt time.Time  `gorm:"column:expires_at"`
	Revoked   bool       `gorm:"column:revoked"`
	CreatedAt time.Time  `gorm:"column:created_at"`
}

// TableName implements gorm's table naming.
func (AccessToken) TableName() string { return "access_tokens" }
