package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-core-platform/security/internal/blacklist"
)

// TokenRevoker blacklists a token id. Implemented by the blacklist store;
// narrowed here so the registry stays testable without Redis.
type TokenRevoker interface {
	Add(ctx context.Context, jti, principalID, reason string, expiresAt time.Time) error
}

// Registry holds per-principal session lists. Each principal's list is
// guarded by its own mutex so unrelated principals never contend; the outer
// maps are sync.Map because the key sets grow and shrink concurrently.
type Registry struct {
	max     int
	revoker TokenRevoker

	principals sync.Map // principal id -> *principalSessions
	owners     sync.Map // session id -> principal id
}

type principalSessions struct {
	mu   sync.Mutex
	list []*Session // creation order, oldest first
}

// NewRegistry returns a Registry enforcing maxPerPrincipal concurrent
// sessions (values below 1 fall back to 10). Evicted and revoked sessions
// have their tokens blacklisted through revoker.
func NewRegistry(maxPerPrincipal int, revoker TokenRevoker) *Registry {
	if maxPerPrincipal < 1 {
		maxPerPrincipal = 10
	}
	return &Registry{max: maxPerPrincipal, revoker: revoker}
}

// Add registers s under its principal. When the principal is at the cap, the
// oldest session (by creation order, FIFO) is evicted first: its tokens are
// blacklisted with reason session_limit_exceeded, then it is removed, then s
// is appended. Returns the evicted session (nil if none) and any blacklist
// write degradation for the caller to log; eviction and registration always
// complete regardless.
func (r *Registry) Add(ctx context.Context, s *Session) (*Session, error) {
	v, _ := r.principals.LoadOrStore(s.PrincipalID, &principalSessions{})
	ps := v.(*principalSessions)

	var evicted *Session
	var errs []error

	ps.mu.Lock()
	if len(ps.list) >= r.max {
		evicted = ps.list[0]
		for _, jti := range evicted.TokenIDs {
			if err := r.revoker.Add(ctx, jti, evicted.PrincipalID, blacklist.ReasonSessionLimitExceeded, time.Now().Add(blacklist.FallbackTTL)); err != nil {
				errs = append(errs, err)
			}
		}
		ps.list = ps.list[1:]
		r.owners.Delete(evicted.ID)
	}
	ps.list = append(ps.list, s.clone())
	ps.mu.Unlock()

	r.owners.Store(s.ID, s.PrincipalID)
	return evicted, errors.Join(errs...)
}

// List returns copies of the principal's active sessions in creation order.
func (r *Registry) List(principalID string) []*Session {
	v, ok := r.principals.Load(principalID)
	if !ok {
		return nil
	}
	ps := v.(*principalSessions)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]*Session, len(ps.list))
	for i, s := range ps.list {
		out[i] = s.clone()
	}
	return out
}

// Revoke blacklists every token of the session with the given reason and
// removes it from its principal's list. Returns the removed session, or nil
// when the session is not (or no longer) registered; racing with an eviction
// is therefore a no-op for the loser, and re-blacklisting a jti is idempotent.
func (r *Registry) Revoke(ctx context.Context, sessionID, reason string) (*Session, error) {
	ov, ok := r.owners.Load(sessionID)
	if !ok {
		return nil, nil
	}
	principalID := ov.(string)
	v, ok := r.principals.Load(principalID)
	if !ok {
		return nil, nil
	}
	ps := v.(*principalSessions)

	var removed *Session
	var errs []error

	ps.mu.Lock()
	for i, s := range ps.list {
		if s.ID != sessionID {
			continue
		}
		for _, jti := range s.TokenIDs {
			if err := r.revoker.Add(ctx, jti, s.PrincipalID, reason, time.Now().Add(blacklist.FallbackTTL)); err != nil {
				errs = append(errs, err)
			}
		}
		removed = s
		ps.list = append(ps.list[:i], ps.list[i+1:]...)
		break
	}
	ps.mu.Unlock()

	if removed != nil {
		r.owners.Delete(sessionID)
	}
	return removed, errors.Join(errs...)
}

// RevokeAll blacklists every token across every session owned by the
// principal with the given reason, then clears the principal's list entirely.
// Returns the sessions that were cleared. The principal's map entry is kept:
// Add captures the entry pointer before taking its lock, so deleting the
// entry here would strand a racing registration in a struct nothing reads.
func (r *Registry) RevokeAll(ctx context.Context, principalID, reason string) ([]*Session, error) {
	v, ok := r.principals.Load(principalID)
	if !ok {
		return nil, nil
	}
	ps := v.(*principalSessions)

	var cleared []*Session
	var errs []error

	ps.mu.Lock()
	for _, s := range ps.list {
		for _, jti := range s.TokenIDs {
			if err := r.revoker.Add(ctx, jti, s.PrincipalID, reason, time.Now().Add(blacklist.FallbackTTL)); err != nil {
				errs = append(errs, err)
			}
		}
		cleared = append(cleared, s)
	}
	ps.list = nil
	ps.mu.Unlock()

	for _, s := range cleared {
		r.owners.Delete(s.ID)
	}
	return cleared, errors.Join(errs...)
}

// FindTokenOwner scans active sessions for the one holding jti and returns
// the owning principal and session. Used by targeted revocation.
func (r *Registry) FindTokenOwner(jti string) (principalID string, owner *Session, found bool) {
	r.principals.Range(func(key, value any) bool {
		ps := value.(*principalSessions)
		ps.mu.Lock()
		for _, s := range ps.list {
			for _, id := range s.TokenIDs {
				if id == jti {
					principalID = key.(string)
					owner = s.clone()
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		ps.mu.Unlock()
		return !found
	})
	return principalID, owner, found
}
