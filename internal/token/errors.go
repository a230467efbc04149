package token

import "errors"

var (
	// ErrTokenBlacklisted is returned when a presented token's jti has been
	// revoked. Surfaced outward as a generic authentication failure.
	ErrTokenBlacklisted = errors.New("token blacklisted")
	// ErrTokenNotFound is returned by targeted revocation when the jti is not
	// held by any active session.
	ErrTokenNotFound = errors.New("token not found in any active session")
	// ErrPrincipalNotFound is returned at issuance when the directory has no
	// record for the requested principal.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalDisabled is returned at issuance when the principal exists
	// but is not active.
	ErrPrincipalDisabled = errors.New("principal disabled")
)
