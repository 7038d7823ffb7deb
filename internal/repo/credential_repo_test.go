package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

func TestCredentials(t *testing.T) {
	db := newRepoDB(t, &domain.Credential{})
	ctx := context.Background()

	c, err := CreateCredential(ctx, db, "  Ada@Example.com ", "hash")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if c.Email != "ada@example.com" || c.ID == "" {
		t.Fatalf("unexpected credential: %+v", c)
	}

	if _, err := CreateCredential(ctx, db, "ADA@example.com", "hash2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetCredentialByEmail(ctx, db, "ada@EXAMPLE.com")
	if err != nil || got.ID != c.ID {
		t.Fatalf("lookup by email: %+v err=%v", got, err)
	}
	if _, err := GetCredentialByEmail(ctx, db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
