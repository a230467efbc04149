package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"ai-core-platform/security/internal/audit"
)

// EventRPCRequest is the audit event type recorded for each authenticated RPC.
const EventRPCRequest = "rpc.request"

// AuditUnary returns a unary interceptor that emits an audit event after
// each authenticated RPC. Emission is asynchronous and best-effort; it never
// fails or delays the RPC. skipMethods lists full method names not audited
// (health checks and similar noise).
func AuditUnary(emitter audit.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		id, ok := FromContext(ctx)
		if !ok {
			return resp, err
		}
		ev := audit.NewEvent(EventRPCRequest)
		ev.PrincipalID = id.PrincipalID
		ev.SessionID = id.SessionID
		ev.Reason = info.FullMethod + " " + status.Code(err).String()
		ev.ClientIP = ClientIP(ctx)
		audit.EmitAsync(emitter, ctx, ev)
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for,
// x-real-ip) or the peer address, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
