// Package token orchestrates issuance, validation, rotation, and revocation
// of bearer tokens, tying together the claims codec, the dual-tier blacklist,
// the session registry, the validation cache, and the principal directory.
package token

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"ai-core-platform/security/internal/audit"
	"ai-core-platform/security/internal/blacklist"
	"ai-core-platform/security/internal/directory"
	"ai-core-platform/security/internal/security"
	"ai-core-platform/security/internal/session"
)

// ValidationResult is the outcome of a successful access-token validation.
// Derived entirely from the immutable claims, so it is safe to cache and to
// hand to concurrent readers.
type ValidationResult struct {
	Claims      *security.Claims
	PrincipalID string
	SessionID   string
	Roles       []string
	Permissions []string
	Tier        Tier
}

// IssuedToken is one signed token of a pair.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenPair is the result of issuance or refresh.
type TokenPair struct {
	SessionID string
	TokenType string // always "Bearer"
	Scope     string // always "api"
	Access    IssuedToken
	Refresh   IssuedToken
}

// IssueRequest carries the client context captured at login. Roles,
// Permissions, and SubscriptionTier are used as-is when no directory is
// wired; with a directory they are ignored and the principal record wins.
type IssueRequest struct {
	PrincipalID       string
	Roles             []string
	Permissions       []string
	SubscriptionTier  string
	ClientIP          string
	UserAgent         string
	DeviceFingerprint string
}

// Options configures a Service.
type Options struct {
	AccessTTL  time.Duration // zero means 1h
	RefreshTTL time.Duration // zero means 720h
	// RefetchPrincipalOnRefresh re-reads the directory record during Refresh
	// so the new pair carries current roles/permissions/tier instead of the
	// stale claims of the presented refresh token. Requires a directory.
	RefetchPrincipalOnRefresh bool
}

// Service is the token orchestration root. All methods are safe for
// concurrent use.
type Service struct {
	codec     *security.Codec
	store     *blacklist.Store
	sessions  *session.Registry
	cache     *ValidationCache
	directory directory.Repository // nil when issuance supplies claims directly
	emitter   audit.EventEmitter   // nil disables audit emission

	accessTTL  time.Duration
	refreshTTL time.Duration
	refetch    bool

	issuedCounter    metric.Int64Counter
	validatedCounter metric.Int64Counter
	cacheHitCounter  metric.Int64Counter
	blacklistCounter metric.Int64Counter
}

// NewService wires the token service. store, sessions, and cache are
// required; directory and emitter may be nil.
func NewService(
	codec *security.Codec,
	store *blacklist.Store,
	sessions *session.Registry,
	cache *ValidationCache,
	dir directory.Repository,
	emitter audit.EventEmitter,
	opts Options,
) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 720 * time.Hour
	}
	meter := otel.Meter("aicore.security.token")
	issued, _ := meter.Int64Counter("tokens.issued", metric.WithDescription("Token pairs issued"))
	validated, _ := meter.Int64Counter("tokens.validated", metric.WithDescription("Access-token validations, success or failure"))
	cacheHits, _ := meter.Int64Counter("tokens.validation_cache_hits", metric.WithDescription("Validations served from the cache"))
	blHits, _ := meter.Int64Counter("tokens.blacklist_hits", metric.WithDescription("Validations rejected by the blacklist"))
	return &Service{
		codec:            codec,
		store:            store,
		sessions:         sessions,
		cache:            cache,
		directory:        dir,
		emitter:          emitter,
		accessTTL:        opts.AccessTTL,
		refreshTTL:       opts.RefreshTTL,
		refetch:          opts.RefetchPrincipalOnRefresh,
		issuedCounter:    issued,
		validatedCounter: validated,
		cacheHitCounter:  cacheHits,
		blacklistCounter: blHits,
	}
}

// Issue creates a new session for the principal and returns a signed
// access/refresh pair bound to it. With a directory wired, the principal must
// exist and be active; its current roles, permissions, and tier go into the
// claims. Adding the session may evict the principal's oldest one (FIFO).
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*TokenPair, error) {
	roles, perms := req.Roles, req.Permissions
	tier := ParseTier(req.SubscriptionTier)
	if s.directory != nil {
		p, err := s.directory.GetByID(ctx, req.PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("principal lookup: %w", err)
		}
		if p == nil {
			return nil, ErrPrincipalNotFound
		}
		if !p.Active() {
			return nil, ErrPrincipalDisabled
		}
		roles, perms = p.Roles, p.Permissions
		tier = ParseTier(p.SubscriptionTier)
	}

	client := clientContext{
		ip:          req.ClientIP,
		fingerprint: req.DeviceFingerprint,
		deviceInfo:  req.UserAgent,
	}
	if req.UserAgent != "" {
		client.uaHash = security.HashUserAgent(req.UserAgent)
	}
	return s.issuePair(ctx, req.PrincipalID, roles, perms, tier, client)
}

type clientContext struct {
	ip          string
	uaHash      string
	fingerprint string
	deviceInfo  string
}

func (s *Service) issuePair(ctx context.Context, principalID string, roles, perms []string, tier Tier, client clientContext) (*TokenPair, error) {
	sessionID := security.NewSessionID()

	accessClaims := s.codec.NewClaims(principalID, roles, perms, string(tier), security.TokenKindAccess, sessionID, s.accessTTL)
	refreshClaims := s.codec.NewClaims(principalID, roles, perms, string(tier), security.TokenKindRefresh, sessionID, s.refreshTTL)
	for _, c := range []*security.Claims{accessClaims, refreshClaims} {
		c.ClientIP = client.ip
		c.UserAgentHash = client.uaHash
		c.DeviceFingerprint = client.fingerprint
	}

	accessToken, err := s.codec.Encode(accessClaims)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.Encode(refreshClaims)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:           sessionID,
		PrincipalID:  principalID,
		TokenIDs:     []string{accessClaims.ID, refreshClaims.ID},
		CreatedAt:    now,
		LastActivity: now,
		DeviceInfo:   client.deviceInfo,
		IPAddress:    client.ip,
	}
	evicted, err := s.sessions.Add(ctx, sess)
	if err != nil {
		// Local eviction succeeded; only the shared-tier propagation lagged.
		log.Printf("session eviction blacklist degraded for principal %s: %v", principalID, err)
		s.emitDegraded(ctx, principalID, err)
	}
	if evicted != nil {
		ev := audit.NewEvent(audit.EventSessionEvicted)
		ev.PrincipalID = evicted.PrincipalID
		ev.SessionID = evicted.ID
		ev.Reason = blacklist.ReasonSessionLimitExceeded
		audit.EmitAsync(s.emitter, ctx, ev)
	}

	ev := audit.NewEvent(audit.EventTokenIssued)
	ev.PrincipalID = principalID
	ev.SessionID = sessionID
	ev.TokenID = accessClaims.ID
	ev.ClientIP = client.ip
	audit.EmitAsync(s.emitter, ctx, ev)
	s.issuedCounter.Add(ctx, 1)

	return &TokenPair{
		SessionID: sessionID,
		TokenType: "Bearer",
		Scope:     "api",
		Access: IssuedToken{
			Token:     accessToken,
			TokenID:   accessClaims.ID,
			ExpiresAt: accessClaims.ExpiresAt.Time,
		},
		Refresh: IssuedToken{
			Token:     refreshToken,
			TokenID:   refreshClaims.ID,
			ExpiresAt: refreshClaims.ExpiresAt.Time,
		},
	}, nil
}

// Validate authenticates a raw access token. A fresh cache hit is returned
// as-is; otherwise the token is decoded and verified, rejected unless it is
// an access token, checked against the blacklist, and the result is cached.
// This is the hot path: it takes no lock beyond the sharded map reads, and
// the only possible I/O is a bounded shared-blacklist lookup on a local miss.
func (s *Service) Validate(ctx context.Context, rawToken string) (*ValidationResult, error) {
	s.validatedCounter.Add(ctx, 1)
	if res, ok := s.cache.Get(rawToken); ok {
		s.cacheHitCounter.Add(ctx, 1)
		return res, nil
	}

	claims, err := s.codec.DecodeAndVerify(rawToken)
	if err != nil {
		s.emitValidationFailed(ctx, nil, err)
		return nil, err
	}
	if claims.TokenKind != security.TokenKindAccess {
		s.emitValidationFailed(ctx, claims, security.ErrInvalidToken)
		return nil, security.ErrInvalidToken
	}

	blacklisted, blErr := s.store.IsBlacklisted(ctx, claims.ID)
	if blErr != nil {
		log.Printf("blacklist lookup degraded for jti %s: %v", claims.ID, blErr)
		s.emitDegraded(ctx, claims.PrincipalID(), blErr)
	}
	if blacklisted {
		s.blacklistCounter.Add(ctx, 1)
		s.emitValidationFailed(ctx, claims, ErrTokenBlacklisted)
		return nil, ErrTokenBlacklisted
	}

	res := &ValidationResult{
		Claims:      claims,
		PrincipalID: claims.PrincipalID(),
		SessionID:   claims.SessionID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		Tier:        ParseTier(claims.SubscriptionTier),
	}
	s.cache.Put(rawToken, res)
	return res, nil
}

// Refresh rotates a refresh token: the presented token must verify, be of
// refresh kind, and not be blacklisted; its jti is then blacklisted with
// reason token_refreshed (a refresh token is single-use) before a brand-new
// pair and session are issued. Claims are carried forward from the presented
// token unless principal re-fetch is enabled, in which case a missing or
// disabled principal fails the refresh. The user agent is not recoverable
// from its hash and is dropped on refresh.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := s.codec.DecodeAndVerify(rawToken)
	if err != nil {
		s.emitValidationFailed(ctx, nil, err)
		return nil, err
	}
	if claims.TokenKind != security.TokenKindRefresh {
		s.emitValidationFailed(ctx, claims, security.ErrInvalidToken)
		return nil, security.ErrInvalidToken
	}

	blacklisted, blErr := s.store.IsBlacklisted(ctx, claims.ID)
	if blErr != nil {
		log.Printf("blacklist lookup degraded for jti %s: %v", claims.ID, blErr)
		s.emitDegraded(ctx, claims.PrincipalID(), blErr)
	}
	if blacklisted {
		s.blacklistCounter.Add(ctx, 1)
		s.emitValidationFailed(ctx, claims, ErrTokenBlacklisted)
		return nil, ErrTokenBlacklisted
	}

	roles, perms := claims.Roles, claims.Permissions
	tier := ParseTier(claims.SubscriptionTier)
	if s.refetch && s.directory != nil {
		p, perr := s.directory.GetByID(ctx, claims.PrincipalID())
		if perr != nil {
			return nil, fmt.Errorf("principal lookup: %w", perr)
		}
		if p == nil || !p.Active() {
			return nil, security.ErrInvalidToken
		}
		roles, perms = p.Roles, p.Permissions
		tier = ParseTier(p.SubscriptionTier)
	}

	// Rotation point: once the old jti is blacklisted locally, a second
	// Refresh with the same token fails even if the shared write lagged.
	expiresAt := time.Now().Add(blacklist.FallbackTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.store.Add(ctx, claims.ID, claims.PrincipalID(), blacklist.ReasonTokenRefreshed, expiresAt); err != nil {
		log.Printf("refresh rotation blacklist degraded for jti %s: %v", claims.ID, err)
		s.emitDegraded(ctx, claims.PrincipalID(), err)
	}

	pair, err := s.issuePair(ctx, claims.PrincipalID(), roles, perms, tier, clientContext{
		ip:          claims.ClientIP,
		fingerprint: claims.DeviceFingerprint,
	})
	if err != nil {
		return nil, err
	}

	ev := audit.NewEvent(audit.EventTokenRefreshed)
	ev.PrincipalID = claims.PrincipalID()
	ev.SessionID = pair.SessionID
	ev.TokenID = claims.ID
	ev.Reason = blacklist.ReasonTokenRefreshed
	audit.EmitAsync(s.emitter, ctx, ev)
	return pair, nil
}

// Revoke blacklists a single token by jti. The owning session is located by
// scanning active sessions; a jti not held by any session fails with
// ErrTokenNotFound. The entry gets the one-day fallback expiry since the
// original exp is not known from the jti alone. The session itself stays
// registered; its other token remains valid.
func (s *Service) Revoke(ctx context.Context, jti, reason string) error {
	principalID, owner, ok := s.sessions.FindTokenOwner(jti)
	if !ok {
		return ErrTokenNotFound
	}
	if err := s.store.Add(ctx, jti, principalID, reason, time.Now().Add(blacklist.FallbackTTL)); err != nil {
		log.Printf("revoke blacklist degraded for jti %s: %v", jti, err)
		s.emitDegraded(ctx, principalID, err)
	}

	ev := audit.NewEvent(audit.EventTokenRevoked)
	ev.PrincipalID = principalID
	ev.SessionID = owner.ID
	ev.TokenID = jti
	ev.Reason = reason
	audit.EmitAsync(s.emitter, ctx, ev)
	return nil
}

// RevokeAllForPrincipal blacklists every token across every session the
// principal owns and clears its session list.
func (s *Service) RevokeAllForPrincipal(ctx context.Context, principalID, reason string) error {
	cleared, err := s.sessions.RevokeAll(ctx, principalID, reason)
	if err != nil {
		log.Printf("revoke-all blacklist degraded for principal %s: %v", principalID, err)
		s.emitDegraded(ctx, principalID, err)
	}
	for _, sess := range cleared {
		ev := audit.NewEvent(audit.EventSessionRevoked)
		ev.PrincipalID = principalID
		ev.SessionID = sess.ID
		ev.Reason = reason
		audit.EmitAsync(s.emitter, ctx, ev)
	}
	return nil
}

// RevokeSession blacklists every token of one session and removes it from
// its principal's list. An unknown session id is a no-op: the session may
// have just been evicted or revoked by a racing caller.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	removed, err := s.sessions.Revoke(ctx, sessionID, blacklist.ReasonSessionRevoked)
	if err != nil {
		log.Printf("session revoke blacklist degraded for session %s: %v", sessionID, err)
		s.emitDegraded(ctx, "", err)
	}
	if removed != nil {
		ev := audit.NewEvent(audit.EventSessionRevoked)
		ev.PrincipalID = removed.PrincipalID
		ev.SessionID = removed.ID
		ev.Reason = blacklist.ReasonSessionRevoked
		audit.EmitAsync(s.emitter, ctx, ev)
	}
	return nil
}

// ListSessions returns the principal's active sessions in creation order.
func (s *Service) ListSessions(principalID string) []*session.Session {
	return s.sessions.List(principalID)
}

// Cleanup sweeps expired local blacklist entries and stale validation-cache
// entries, returning the counts removed. The shared blacklist tier
// self-expires and needs no sweep.
func (s *Service) Cleanup() (blacklistRemoved, cacheRemoved int) {
	return s.store.CleanupExpired(), s.cache.CleanupExpired()
}

func (s *Service) emitValidationFailed(ctx context.Context, claims *security.Claims, cause error) {
	ev := audit.NewEvent(audit.EventTokenValidationFailed)
	if claims != nil {
		ev.PrincipalID = claims.PrincipalID()
		ev.SessionID = claims.SessionID
		ev.TokenID = claims.ID
		ev.ClientIP = claims.ClientIP
	}
	ev.Reason = cause.Error()
	audit.EmitAsync(s.emitter, ctx, ev)
}

func (s *Service) emitDegraded(ctx context.Context, principalID string, cause error) {
	ev := audit.NewEvent(audit.EventBlacklistDegraded)
	ev.PrincipalID = principalID
	ev.Reason = cause.Error()
	audit.EmitAsync(s.emitter, ctx, ev)
}
