package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-core-platform/security/internal/blacklist"
)

// recordingRevoker records blacklist calls and optionally fails them.
type recordingRevoker struct {
	mu      sync.Mutex
	reasons map[string]string // jti -> reason
	err     error
}

func newRecordingRevoker() *recordingRevoker {
	return &recordingRevoker{reasons: make(map[string]string)}
}

func (r *recordingRevoker) Add(_ context.Context, jti, _ string, reason string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons[jti] = reason
	return r.err
}

func (r *recordingRevoker) reason(jti string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reasons[jti]
}

func newSession(id, principal string, jtis ...string) *Session {
	return &Session{
		ID:           id,
		PrincipalID:  principal,
		TokenIDs:     jtis,
		CreatedAt:    time.Now().UTC(),
		LastActivity: time.Now().UTC(),
	}
}

func TestRegistry_AddAndList(t *testing.T) {
	r := NewRegistry(10, newRecordingRevoker())
	ctx := context.Background()

	if evicted, err := r.Add(ctx, newSession("s1", "p1", "a1", "r1")); evicted != nil || err != nil {
		t.Fatalf("Add: evicted=%v err=%v", evicted, err)
	}
	if _, err := r.Add(ctx, newSession("s2", "p1", "a2", "r2")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Add(ctx, newSession("s3", "p2", "a3", "r3")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := r.List("p1")
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		t.Errorf("List(p1) = %v", ids(got))
	}
	if got := r.List("p2"); len(got) != 1 {
		t.Errorf("List(p2) = %v", ids(got))
	}
	if got := r.List("unknown"); got != nil {
		t.Errorf("List(unknown) = %v, want nil", ids(got))
	}
}

func TestRegistry_FIFOEviction(t *testing.T) {
	rev := newRecordingRevoker()
	r := NewRegistry(2, rev)
	ctx := context.Background()

	r.Add(ctx, newSession("s1", "p1", "a1", "r1"))
	r.Add(ctx, newSession("s2", "p1", "a2", "r2"))
	evicted, err := r.Add(ctx, newSession("s3", "p1", "a3", "r3"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if evicted == nil || evicted.ID != "s1" {
		t.Fatalf("evicted = %v, want s1 (oldest by creation order)", evicted)
	}
	got := r.List("p1")
	if len(got) != 2 || got[0].ID != "s2" || got[1].ID != "s3" {
		t.Errorf("after eviction: %v", ids(got))
	}
	for _, jti := range []string{"a1", "r1"} {
		if rev.reason(jti) != blacklist.ReasonSessionLimitExceeded {
			t.Errorf("jti %s reason = %q, want session_limit_exceeded", jti, rev.reason(jti))
		}
	}
	if rev.reason("a2") != "" {
		t.Error("surviving session tokens must not be blacklisted")
	}
}

func TestRegistry_CapHoldsUnderRepeatedIssuance(t *testing.T) {
	r := NewRegistry(3, newRecordingRevoker())
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		r.Add(ctx, newSession(fmt.Sprintf("s%d", i), "p1", fmt.Sprintf("a%d", i)))
	}
	got := r.List("p1")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "s7" || got[2].ID != "s9" {
		t.Errorf("surviving sessions = %v, want three newest", ids(got))
	}
}

func TestRegistry_Revoke(t *testing.T) {
	rev := newRecordingRevoker()
	r := NewRegistry(10, rev)
	ctx := context.Background()

	r.Add(ctx, newSession("s1", "p1", "a1", "r1"))
	r.Add(ctx, newSession("s2", "p1", "a2", "r2"))

	removed, err := r.Revoke(ctx, "s1", blacklist.ReasonSessionRevoked)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if removed == nil || removed.ID != "s1" {
		t.Fatalf("removed = %v, want s1", removed)
	}
	if rev.reason("a1") != blacklist.ReasonSessionRevoked || rev.reason("r1") != blacklist.ReasonSessionRevoked {
		t.Error("revoked session tokens must be blacklisted with session_revoked")
	}
	if got := r.List("p1"); len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("List = %v", ids(got))
	}

	// Revoking an absent session is a no-op, not an error.
	removed, err = r.Revoke(ctx, "s1", blacklist.ReasonSessionRevoked)
	if removed != nil || err != nil {
		t.Errorf("second Revoke: removed=%v err=%v", removed, err)
	}
}

func TestRegistry_RevokeAll(t *testing.T) {
	rev := newRecordingRevoker()
	r := NewRegistry(10, rev)
	ctx := context.Background()

	r.Add(ctx, newSession("s1", "p1", "a1", "r1"))
	r.Add(ctx, newSession("s2", "p1", "a2", "r2"))
	r.Add(ctx, newSession("s3", "p2", "a3"))

	cleared, err := r.RevokeAll(ctx, "p1", "account_compromised")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if len(cleared) != 2 {
		t.Fatalf("cleared = %v, want 2 sessions", ids(cleared))
	}
	for _, jti := range []string{"a1", "r1", "a2", "r2"} {
		if rev.reason(jti) != "account_compromised" {
			t.Errorf("jti %s reason = %q", jti, rev.reason(jti))
		}
	}
	if got := r.List("p1"); len(got) != 0 {
		t.Errorf("p1 sessions after RevokeAll = %v, want none", ids(got))
	}
	if got := r.List("p2"); len(got) != 1 {
		t.Errorf("p2 must be untouched, got %v", ids(got))
	}
	// Cleared sessions are no longer findable by token.
	if _, _, found := r.FindTokenOwner("a1"); found {
		t.Error("a1 should not be owned by any active session")
	}
}

// gatedRevoker blocks its first Add call until released, so tests can hold a
// registry operation mid-blacklist while another goroutine races it.
type gatedRevoker struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRevoker() *gatedRevoker {
	return &gatedRevoker{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRevoker) Add(_ context.Context, _, _, _ string, _ time.Time) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return nil
}

func TestRegistry_AddRacingRevokeAllStaysVisible(t *testing.T) {
	rev := newGatedRevoker()
	r := NewRegistry(10, rev)
	ctx := context.Background()

	r.Add(ctx, newSession("s1", "p1", "a1", "r1"))

	revokeDone := make(chan struct{})
	go func() {
		defer close(revokeDone)
		r.RevokeAll(ctx, "p1", "account_compromised")
	}()
	<-rev.entered // RevokeAll now holds p1's lock inside the blacklist write

	addDone := make(chan error, 1)
	go func() {
		_, err := r.Add(ctx, newSession("s2", "p1", "a2", "r2"))
		addDone <- err
	}()
	// Give the racing Add time to capture the principal entry and park on
	// the lock before RevokeAll finishes.
	time.Sleep(20 * time.Millisecond)
	close(rev.release)
	<-revokeDone
	if err := <-addDone; err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := r.List("p1")
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("List(p1) = %v, want the session registered during RevokeAll", ids(got))
	}
	principal, owner, found := r.FindTokenOwner("r2")
	if !found || principal != "p1" || owner.ID != "s2" {
		t.Errorf("FindTokenOwner(r2) = %q, %v, %v; new session must stay revocable", principal, owner, found)
	}
}

func TestRegistry_FindTokenOwner(t *testing.T) {
	r := NewRegistry(10, newRecordingRevoker())
	ctx := context.Background()
	r.Add(ctx, newSession("s1", "p1", "a1", "r1"))
	r.Add(ctx, newSession("s2", "p2", "a2", "r2"))

	principal, owner, found := r.FindTokenOwner("r2")
	if !found || principal != "p2" || owner.ID != "s2" {
		t.Errorf("FindTokenOwner(r2) = %q, %v, %v", principal, owner, found)
	}
	if _, _, found := r.FindTokenOwner("nope"); found {
		t.Error("unknown jti must not be found")
	}
}

func TestRegistry_BlacklistDegradationDoesNotBlockEviction(t *testing.T) {
	rev := newRecordingRevoker()
	rev.err = errors.New("shared tier down")
	r := NewRegistry(1, rev)
	ctx := context.Background()

	r.Add(ctx, newSession("s1", "p1", "a1"))
	evicted, err := r.Add(ctx, newSession("s2", "p1", "a2"))
	if evicted == nil || evicted.ID != "s1" {
		t.Fatalf("evicted = %v, want s1", evicted)
	}
	if err == nil {
		t.Error("degraded blacklist write should be reported")
	}
	if got := r.List("p1"); len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("eviction must complete despite degradation, got %v", ids(got))
	}
}

func TestRegistry_ConcurrentPrincipals(t *testing.T) {
	r := NewRegistry(5, newRecordingRevoker())
	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			principal := fmt.Sprintf("p%d", p)
			for i := 0; i < 50; i++ {
				r.Add(ctx, newSession(fmt.Sprintf("%s-s%d", principal, i), principal, fmt.Sprintf("%s-a%d", principal, i)))
			}
		}(p)
	}
	wg.Wait()
	for p := 0; p < 8; p++ {
		if got := r.List(fmt.Sprintf("p%d", p)); len(got) != 5 {
			t.Errorf("p%d sessions = %d, want 5", p, len(got))
		}
	}
}

func ids(sessions []*Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
