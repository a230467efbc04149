package interceptors

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"

	"ai-core-platform/security/internal/audit"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (c *captureEmitter) Emit(_ context.Context, e *audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureEmitter) snapshot() []*audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*audit.Event(nil), c.events...)
}

func callAudit(t *testing.T, ic grpc.UnaryServerInterceptor, ctx context.Context, method string) {
	t.Helper()
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) { return "ok", nil }
	if _, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestAuditUnary_EmitsForAuthenticatedRPC(t *testing.T) {
	emitter := &captureEmitter{}
	ic := AuditUnary(emitter, nil)

	ctx := WithIdentity(context.Background(), Identity{PrincipalID: "user-1", SessionID: "sess_1"})
	callAudit(t, ic, ctx, "/aicore.TokenService/ListSessions")

	deadline := time.Now().Add(2 * time.Second)
	for len(emitter.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	events := emitter.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Type != EventRPCRequest {
		t.Errorf("Type = %q, want %q", e.Type, EventRPCRequest)
	}
	if e.PrincipalID != "user-1" || e.SessionID != "sess_1" {
		t.Errorf("event identity = %+v", e)
	}
	if !strings.Contains(e.Reason, "/aicore.TokenService/ListSessions") || !strings.Contains(e.Reason, "OK") {
		t.Errorf("Reason = %q, want method and status code", e.Reason)
	}
}

func TestAuditUnary_SkipsUnauthenticatedAndSkipped(t *testing.T) {
	emitter := &captureEmitter{}
	ic := AuditUnary(emitter, map[string]bool{"/grpc.health.v1.Health/Check": true})

	// Anonymous call: no identity, nothing to attribute.
	callAudit(t, ic, context.Background(), "/aicore.TokenService/ListSessions")

	// Skipped method, even when authenticated.
	ctx := WithIdentity(context.Background(), Identity{PrincipalID: "user-1"})
	callAudit(t, ic, ctx, "/grpc.health.v1.Health/Check")

	time.Sleep(50 * time.Millisecond)
	if got := emitter.snapshot(); len(got) != 0 {
		t.Errorf("events = %d, want 0", len(got))
	}
}

func TestAuditUnary_NilEmitter(t *testing.T) {
	ic := AuditUnary(nil, nil)
	ctx := WithIdentity(context.Background(), Identity{PrincipalID: "user-1"})
	callAudit(t, ic, ctx, "/aicore.TokenService/ListSessions")
}
