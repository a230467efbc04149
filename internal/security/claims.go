// Package security implements the signed claims codec and token identity helpers.
package security

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens (authenticate requests) from refresh
// tokens (obtain new pairs). A refresh token must never authenticate a request.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the signed payload of an issued token. Immutable once issued.
type Claims struct {
	jwt.RegisteredClaims
	Roles             []string  `json:"roles"`
	Permissions       []string  `json:"permissions"`
	SubscriptionTier  string    `json:"subscription_tier"`
	TokenKind         TokenKind `json:"token_type"`
	SessionID         string    `json:"session_id"`
	ClientIP          string    `json:"client_ip,omitempty"`
	UserAgentHash     string    `json:"user_agent_hash,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
}

// JTI returns the unique token id.
func (c *Claims) JTI() string { return c.ID }

// PrincipalID returns the subject (owning principal id).
func (c *Claims) PrincipalID() string { return c.Subject }

// NewTokenID generates a globally unique token id (jti).
func NewTokenID() string {
	return uuid.NewString()
}

// NewSessionID generates a session id in the platform's sess_<uuid> format.
func NewSessionID() string {
	return "sess_" + uuid.NewString()
}

// HashUserAgent returns the SHA-256 hex digest of a raw user-agent string.
// Claims carry the hash so device tracking does not store the raw value.
func HashUserAgent(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}
