// Package rbac provides role checks over the authenticated caller identity.
// Roles are opaque strings carried in token claims; this package only gates,
// it never resolves or evaluates policy.
package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-core-platform/security/internal/server/interceptors"
)

// AdminRole is the conventional role gating administrative RPCs
// (revoke-all, targeted revocation of other principals' tokens).
const AdminRole = "admin"

// RequireRole ensures the caller is authenticated and holds the given role.
// Returns the caller identity on success; a gRPC Unauthenticated or
// PermissionDenied error otherwise.
func RequireRole(ctx context.Context, role string) (interceptors.Identity, error) {
	id, ok := interceptors.FromContext(ctx)
	if !ok || id.PrincipalID == "" {
		return interceptors.Identity{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	for _, r := range id.Roles {
		if r == role {
			return id, nil
		}
	}
	return interceptors.Identity{}, status.Error(codes.PermissionDenied, "insufficient role")
}

// RequireSelfOrRole authorizes an operation on principalID: the caller may
// act on itself, or hold the given role to act on others.
func RequireSelfOrRole(ctx context.Context, principalID, role string) (interceptors.Identity, error) {
	id, ok := interceptors.FromContext(ctx)
	if !ok || id.PrincipalID == "" {
		return interceptors.Identity{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	if id.PrincipalID == principalID {
		return id, nil
	}
	for _, r := range id.Roles {
		if r == role {
			return id, nil
		}
	}
	return interceptors.Identity{}, status.Error(codes.PermissionDenied, "insufficient role")
}
