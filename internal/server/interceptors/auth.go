// Package interceptors provides the gRPC unary interceptors that
// authenticate requests and record security audit events.
package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"ai-core-platform/security/internal/token"
)

const bearerPrefix = "bearer "

// unauthenticatedMsg is the single outward-facing authentication failure.
// Expired, revoked, and malformed tokens all map to it so callers cannot
// probe which one applied.
const unauthenticatedMsg = "invalid or expired credentials"

// TokenValidator authenticates a raw access token. Implemented by the token
// service.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*token.ValidationResult, error)
}

// AuthUnary returns a unary interceptor that validates the Bearer access
// token from gRPC metadata and places the caller identity in context.
// publicMethods lists full method names served without a token (health
// checks, login-style RPCs).
func AuthUnary(validator TokenValidator, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		raw := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if raw == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, unauthenticatedMsg)
		}

		res, err := validator.Validate(ctx, raw)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, unauthenticatedMsg)
		}

		ctx = WithIdentity(ctx, Identity{
			PrincipalID: res.PrincipalID,
			SessionID:   res.SessionID,
			Roles:       res.Roles,
			Tier:        string(res.Tier),
		})
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" when
// missing or malformed. The prefix match is case-insensitive.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
