// Package blacklist tracks revoked token ids in a dual-tier store: a fast
// local in-memory tier checked first on every validation, and an
// authoritative shared tier (Redis) that propagates revocations across
// instances. Writes go through to both tiers; shared-tier failures degrade a
// revocation to local-only effectiveness and are reported to the caller for
// logging, never swallowed silently.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-core-platform/security/internal/platform/shardmap"
)

// Revocation reasons recorded on blacklist entries.
const (
	ReasonSessionLimitExceeded = "session_limit_exceeded"
	ReasonSessionRevoked       = "session_revoked"
	ReasonTokenRefreshed       = "token_refreshed"
)

// FallbackTTL is the entry lifetime used when the revoked token's original
// expiry is unknown at revocation time.
const FallbackTTL = 24 * time.Hour

// Sentinel errors for shared-tier failures. Both are recoverable: reads fall
// back to the configured fail policy, writes degrade to local-only.
var (
	// ErrCacheConnection indicates the shared tier could not be reached.
	ErrCacheConnection = errors.New("shared blacklist tier unreachable")
	// ErrCacheOperation indicates a shared-tier command failed.
	ErrCacheOperation = errors.New("shared blacklist operation failed")
	// ErrSerialization indicates a stored entry could not be encoded or decoded.
	ErrSerialization = errors.New("blacklist entry serialization failed")
)

// Entry is a revoked token record. An entry is only meaningful until
// ExpiresAt; past that the token is rejected as expired anyway, so expired
// entries may be swept without weakening revocation.
type Entry struct {
	TokenID       string    `json:"token_id"`
	PrincipalID   string    `json:"principal_id"`
	Reason        string    `json:"reason"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SharedTier is the authoritative cross-instance store. Get returns
// (nil, nil) when the jti is not present. Set stores the entry with the given
// TTL so it self-expires without a sweep.
type SharedTier interface {
	Get(ctx context.Context, jti string) (*Entry, error)
	Set(ctx context.Context, e *Entry, ttl time.Duration) error
}

// FailPolicy decides what a lookup reports when the shared tier errors or
// times out: fail closed treats the token as blacklisted, fail open accepts
// it. The choice is an explicit operator decision surfaced in config.
type FailPolicy int

const (
	FailClosed FailPolicy = iota
	FailOpen
)

// Options configures a Store.
type Options struct {
	// Enabled toggles the whole store; when false Add is a no-op and
	// IsBlacklisted always reports false.
	Enabled bool
	// Policy applies when a shared-tier read fails (see FailPolicy).
	Policy FailPolicy
	// SharedTimeout bounds each shared-tier call; zero means 2s.
	SharedTimeout time.Duration
}

// Store is the dual-tier revocation store.
type Store struct {
	enabled bool
	policy  FailPolicy
	timeout time.Duration
	shared  SharedTier // nil for local-only deployments
	local   *shardmap.Map[*Entry]
}

// New returns a Store backed by the given shared tier; shared may be nil for
// a single-instance, local-only deployment.
func New(shared SharedTier, opts Options) *Store {
	timeout := opts.SharedTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Store{
		enabled: opts.Enabled,
		policy:  opts.Policy,
		timeout: timeout,
		shared:  shared,
		local:   shardmap.New[*Entry](),
	}
}

// IsBlacklisted reports whether jti has been revoked. The local tier is
// checked first; on a miss the shared tier is consulted and, when it holds
// the entry, the local tier is populated before returning true. A shared-tier
// failure returns the policy's verdict together with the error so the caller
// can log the degradation.
func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	if e, ok := s.local.Load(jti); ok && time.Now().Before(e.ExpiresAt) {
		return true, nil
	}
	if s.shared == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	e, err := s.shared.Get(ctx, jti)
	if err != nil {
		return s.policy == FailClosed, err
	}
	if e == nil {
		return false, nil
	}
	s.local.Store(jti, e)
	return true, nil
}

// Add revokes a token in both tiers. The local tier is written first so the
// revocation is effective on this instance even when the shared write fails;
// in that case Add returns the shared-tier error for the caller to log
// (cross-instance revocation may be delayed), but the revocation itself has
// succeeded locally and must not be aborted.
func (s *Store) Add(ctx context.Context, jti, principalID, reason string, expiresAt time.Time) error {
	if !s.enabled {
		return nil
	}
	e := &Entry{
		TokenID:       jti,
		PrincipalID:   principalID,
		Reason:        reason,
		BlacklistedAt: time.Now().UTC(),
		ExpiresAt:     expiresAt,
	}
	s.local.Store(jti, e)
	if s.shared == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already past its natural expiry; nothing to propagate.
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.shared.Set(ctx, e, ttl); err != nil {
		return fmt.Errorf("shared tier write for jti %s: %w", jti, err)
	}
	return nil
}

// CleanupExpired sweeps the local tier, removing entries past their
// expires_at, and returns the number removed. The shared tier self-expires
// via per-entry TTLs and needs no sweep.
func (s *Store) CleanupExpired() int {
	now := time.Now()
	return s.local.DeleteIf(func(_ string, e *Entry) bool {
		return !now.Before(e.ExpiresAt)
	})
}

// LocalLen returns the number of entries currently held in the local tier.
func (s *Store) LocalLen() int {
	return s.local.Len()
}
