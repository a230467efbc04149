package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for claims verification; the token service surfaces them to
// callers as authentication failures without further detail.
var (
	// ErrInvalidToken is returned when a token is malformed, has a bad
	// signature, or fails issuer/audience checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when exp is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is returned when nbf is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// Codec encodes and verifies signed claims using an HMAC secret. The secret
// must be at least MinSecretLen bytes; shorter secrets are a fatal
// configuration error. Decode verifies signature, issuer, audience, and the
// exp/nbf window with the configured leeway (zero by default). No side effects.
type Codec struct {
	secret   []byte
	method   *jwt.SigningMethodHMAC
	issuer   string
	audience string
	leeway   time.Duration
}

// MinSecretLen is the minimum HMAC secret length in bytes.
const MinSecretLen = 32

// NewCodec returns a Codec for the given HMAC algorithm (HS256, HS384, or
// HS512). Returns an error for unknown algorithms or a secret shorter than
// MinSecretLen.
func NewCodec(secret, algorithm, issuer, audience string, leeway time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLen)
	}
	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if leeway < 0 {
		leeway = 0
	}
	return &Codec{
		secret:   []byte(secret),
		method:   method,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
	}, nil
}

// Issuer returns the configured issuer set on encoded claims.
func (c *Codec) Issuer() string { return c.issuer }

// Audience returns the configured audience set on encoded claims.
func (c *Codec) Audience() string { return c.audience }

// Encode signs the claims and returns the compact wire string. Fails only on
// a signing error, which is not retried.
func (c *Codec) Encode(claims *Claims) (string, error) {
	t := jwt.NewWithClaims(c.method, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}
	return signed, nil
}

// DecodeAndVerify parses the wire string, verifies the signature against the
// codec's secret, and validates issuer, audience, and the time-validity
// window. An exp claim is mandatory; tokens without one are rejected rather
// than treated as non-expiring. Returns ErrTokenExpired or ErrTokenNotYetValid
// for window violations and ErrInvalidToken for everything else.
func (c *Codec) DecodeAndVerify(wire string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(wire, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}
	if claims.ID == "" || claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return c.secret, nil
}

// NewClaims returns a claim set stamped with the codec's issuer and audience,
// a fresh jti, iat=nbf=now, and exp=now+ttl. Optional context fields
// (ClientIP, UserAgentHash, DeviceFingerprint) are left empty for the caller.
func (c *Codec) NewClaims(principalID string, roles, permissions []string, tier string, kind TokenKind, sessionID string, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	cl := &Claims{
		Roles:            roles,
		Permissions:      permissions,
		SubscriptionTier: tier,
		TokenKind:        kind,
		SessionID:        sessionID,
	}
	cl.ID = NewTokenID()
	cl.Subject = principalID
	cl.Issuer = c.issuer
	cl.Audience = jwt.ClaimStrings{c.audience}
	cl.IssuedAt = numericDate(now)
	cl.NotBefore = numericDate(now)
	cl.ExpiresAt = numericDate(now.Add(ttl))
	return cl
}

func numericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}
