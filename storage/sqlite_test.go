package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	account := Account{UID: "u1", Email: "a@b.c", PasswordHash: []byte("hash"), CreatedAt: created}
	if err := s.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	byEmail, err := s.AccountByEmail(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("AccountByEmail failed: %v", err)
	}
	if byEmail.UID != "u1" || !bytes.Equal(byEmail.PasswordHash, []byte("hash")) || !byEmail.CreatedAt.Equal(created) {
		t.Errorf("Unexpected account %+v", byEmail)
	}

	byUID, err := s.AccountByUID(ctx, "u1")
	if err != nil || byUID.Email != "a@b.c" {
		t.Errorf("AccountByUID = %+v, %v", byUID, err)
	}

	duplicate := Account{UID: "u2", Email: "a@b.c", PasswordHash: []byte("x"), CreatedAt: created}
	if err := s.CreateAccount(ctx, duplicate); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Expected ErrDuplicateEmail, got %v", err)
	}

	if _, err := s.AccountByEmail(ctx, "missing@b.c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected no session, got %v", err)
	}

	if err := s.SaveSession(ctx, "u1"); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := s.SaveSession(ctx, "u2"); err != nil {
		t.Fatalf("SaveSession overwrite failed: %v", err)
	}

	uid, err := s.LoadSession(ctx)
	if err != nil || uid != "u2" {
		t.Errorf("LoadSession = %q, %v; want u2", uid, err)
	}

	if err := s.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if _, err := s.LoadSession(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected session cleared, got %v", err)
	}
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dark, err := s.GetBool(ctx, ThemeKey)
	if err != nil || dark {
		t.Errorf("Unset theme should be false, got %v, %v", dark, err)
	}

	for _, want := range []bool{true, false, true} {
		if err := s.SetBool(ctx, ThemeKey, want); err != nil {
			t.Fatalf("SetBool failed: %v", err)
		}
		got, err := s.GetBool(ctx, ThemeKey)
		if err != nil || got != want {
			t.Errorf("GetBool = %v, %v; want %v", got, err, want)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "medisearch.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetBool(ctx, ThemeKey, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(ctx, "u9"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if dark, _ := reopened.GetBool(ctx, ThemeKey); !dark {
		t.Error("Theme should survive a restart")
	}
	if uid, _ := reopened.LoadSession(ctx); uid != "u9" {
		t.Errorf("Session should survive a restart, got %q", uid)
	}
	if err := reopened.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
