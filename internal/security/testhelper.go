package security

import "time"

// testSecret is a 40-byte HMAC secret for unit tests only. Do not use in production.
const testSecret = "test-signing-secret-0123456789abcdefghij"

// NewTestCodec returns a Codec using the embedded test secret and zero leeway.
// For unit tests only. Callers must not use in production.
func NewTestCodec() (*Codec, error) {
	return NewCodec(testSecret, "HS256", "test-issuer", "test-audience", 0)
}

// NewTestClaims returns well-formed access claims for the given principal and
// session, valid for one hour. For unit tests only.
func NewTestClaims(principalID, sessionID string, kind TokenKind) *Claims {
	now := time.Now().UTC()
	c := &Claims{
		Roles:            []string{"user"},
		Permissions:      []string{"workflows:read", "content:read"},
		SubscriptionTier: "pro",
		TokenKind:        kind,
		SessionID:        sessionID,
	}
	c.ID = NewTokenID()
	c.Subject = principalID
	c.Issuer = "test-issuer"
	c.Audience = []string{"test-audience"}
	c.IssuedAt = numericDate(now)
	c.NotBefore = numericDate(now)
	c.ExpiresAt = numericDate(now.Add(time.Hour))
	return c
}
