package tokenstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

func testSession() *domain.Session {
	return &domain.Session{
		User:         domain.User{ID: "u1", Email: "u1@example.com"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Unix(1_900_000_000, 0).UTC(),
	}
}

func exerciseStore(t *testing.T, store port.SessionStorage) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}

	if err := store.Save(ctx, "sid-1", testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = store.Load(ctx, "sid-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.User.ID != "u1" || got.RefreshToken != "refresh" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.ExpiresAt.Equal(testSession().ExpiresAt) {
		t.Errorf("expiry not preserved: %v", got.ExpiresAt)
	}

	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}

	got, _ = store.Load(ctx, "sid-1")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestMemory(t *testing.T) {
	store := NewMemory(time.Minute)
	defer store.Close()
	exerciseStore(t, store)
}

func TestBadger(t *testing.T) {
	store, err := OpenBadger(t.TempDir(), "test-secret", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestBadger_ReopenKeepsSessions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadger(dir, "test-secret", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Save(ctx, "sid-2", testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = OpenBadger(dir, "test-secret", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, err := store.Load(ctx, "sid-2")
	if err != nil || got == nil {
		t.Fatalf("expected persisted session, got %+v (err=%v)", got, err)
	}
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("one")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := DeriveKey("one")
	c, _ := DeriveKey("two")

	if len(a) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(a))
	}
	if !bytes.Equal(a, b) {
		t.Error("same secret must derive the same key")
	}
	if bytes.Equal(a, c) {
		t.Error("different secrets must derive different keys")
	}
}
