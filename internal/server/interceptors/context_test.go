package interceptors

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	id := Identity{
		PrincipalID: "user-1",
		SessionID:   "sess_1",
		Roles:       []string{"admin", "user"},
		Tier:        "enterprise",
	}
	ctx := WithIdentity(context.Background(), id)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext should find the identity")
	}
	if got.PrincipalID != id.PrincipalID || got.SessionID != id.SessionID || got.Tier != id.Tier {
		t.Errorf("got %+v, want %+v", got, id)
	}
	if len(got.Roles) != 2 {
		t.Errorf("Roles = %v", got.Roles)
	}
}

func TestFromContext_Empty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should carry no identity")
	}
}
