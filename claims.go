package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the claim set carried by every token this service
// issues: a stable user identifier, the display name, and the registered
// expiration. Scoped broadcast tokens omit the username.
type IdentityClaims struct {
	jwt.RegisteredClaims
	UUID     string `json:"uuid,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

var _ jwt.Claims = (*IdentityClaims)(nil)

// UserID returns the stable user identifier.
func (c *IdentityClaims) UserID() string {
	if c.UUID != "" {
		return c.UUID
	}
	return c.RegisteredClaims.Subject
}

// DisplayName returns the username claim.
func (c *IdentityClaims) DisplayName() string {
	return c.Username
}

// Expires returns the expiration time
func (c *IdentityClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *IdentityClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// hasIdentity reports whether the required identity claims are present.
// Scoped tokens intentionally fail this check, they are not a full identity.
func (c *IdentityClaims) hasIdentity() bool {
	return c.UserID() != "" && c.Username != ""
}
