package rbac

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-core-platform/security/internal/server/interceptors"
)

func authedCtx(principalID string, roles ...string) context.Context {
	return interceptors.WithIdentity(context.Background(), interceptors.Identity{
		PrincipalID: principalID,
		Roles:       roles,
	})
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("err = %v, want a status error", err)
	}
	if st.Code() != code {
		t.Errorf("code = %v, want %v", st.Code(), code)
	}
}

func TestRequireRole(t *testing.T) {
	id, err := RequireRole(authedCtx("user-1", "user", AdminRole), AdminRole)
	if err != nil {
		t.Fatalf("admin caller: %v", err)
	}
	if id.PrincipalID != "user-1" {
		t.Errorf("PrincipalID = %q", id.PrincipalID)
	}

	_, err = RequireRole(authedCtx("user-1", "user"), AdminRole)
	wantCode(t, err, codes.PermissionDenied)

	_, err = RequireRole(context.Background(), AdminRole)
	wantCode(t, err, codes.Unauthenticated)
}

func TestRequireSelfOrRole(t *testing.T) {
	if _, err := RequireSelfOrRole(authedCtx("user-1", "user"), "user-1", AdminRole); err != nil {
		t.Errorf("self access: %v", err)
	}
	if _, err := RequireSelfOrRole(authedCtx("admin-1", AdminRole), "user-1", AdminRole); err != nil {
		t.Errorf("admin acting on another principal: %v", err)
	}

	_, err := RequireSelfOrRole(authedCtx("user-2", "user"), "user-1", AdminRole)
	wantCode(t, err, codes.PermissionDenied)

	_, err = RequireSelfOrRole(context.Background(), "user-1", AdminRole)
	wantCode(t, err, codes.Unauthenticated)
}
