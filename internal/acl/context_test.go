package acl_test

import (
	"context"
	"testing"

	"github.com/serroba/docstore/internal/acl"
)

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	if got := acl.UserFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user, got %q", got)
	}

	ctx := acl.WithUser(context.Background(), "user1")
	if got := acl.UserFromContext(ctx); got != "user1" {
		t.Errorf("expected user1, got %q", got)
	}
}
