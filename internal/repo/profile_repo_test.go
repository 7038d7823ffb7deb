package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

func TestProfile_EnsureUpsertAndImage(t *testing.T) {
	db := newRepoDB(t, &domain.Profile{})
	ctx := context.Background()

	if _, err := GetProfile(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := UpdateProfileImage(ctx, db, "u1", "https://img"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("image update without profile should be ErrNotFound, got %v", err)
	}

	if err := EnsureProfile(ctx, db, &domain.Profile{ID: "u1", Email: "a@b.c", FullName: "ada"}); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	// A second Ensure must not clobber the row.
	if err := EnsureProfile(ctx, db, &domain.Profile{ID: "u1", Email: "other@b.c", FullName: "other"}); err != nil {
		t.Fatalf("EnsureProfile again: %v", err)
	}
	p, err := GetProfile(ctx, db, "u1")
	if err != nil || p.FullName != "ada" {
		t.Fatalf("Ensure overwrote row: %+v err=%v", p, err)
	}

	p, err = UpsertProfile(ctx, db, &domain.Profile{ID: "u1", Role: "student", FullName: "ignored"}, "role")
	if err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if p.Role != "student" || p.FullName != "ada" {
		t.Fatalf("only listed columns should change: %+v", p)
	}

	p, err = UpdateProfileImage(ctx, db, "u1", "https://img/1.png")
	if err != nil {
		t.Fatalf("UpdateProfileImage: %v", err)
	}
	if p.ProfileImageURL != "https://img/1.png" || p.Role != "student" {
		t.Fatalf("unexpected profile after image update: %+v", p)
	}

	fresh, err := UpsertProfile(ctx, db, &domain.Profile{ID: "u2", Email: "z@z.z", FullName: "zed"}, "full_name")
	if err != nil || fresh.FullName != "zed" || fresh.Email != "z@z.z" {
		t.Fatalf("upsert insert path: %+v err=%v", fresh, err)
	}
}
