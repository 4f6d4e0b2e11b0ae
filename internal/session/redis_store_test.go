package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore(context.Background(), "redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookup(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "test-token-hash"
	userID := "user-123"
	expiresAt := time.Now().Add(24 * time.Hour)

	// Save session
	err := store.Save(ctx, tokenHash, Data{UserID: userID, DisplayName: "Avery"}, expiresAt)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Lookup session
	user, err := store.Lookup(ctx, tokenHash)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if user.UserID != userID {
		t.Errorf("expected user ID %s, got %s", userID, user.UserID)
	}
	if user.DisplayName != "Avery" || user.CreatedAt.IsZero() {
		t.Errorf("unexpected session data: %+v", user)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "expired-token"
	userID := "user-456"

	// Save with very short TTL
	expiresAt := time.Now().Add(time.Second)
	err := store.Save(ctx, tokenHash, Data{UserID: userID}, expiresAt)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	// Lookup should fail (token expired)
	_, err = store.Lookup(ctx, tokenHash)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	// Lookup non-existent token
	_, err := store.Lookup(ctx, "non-existent-token")
	if err == nil {
		t.Error("expected error for non-existent token, got nil")
	}
}

func TestRevoke(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "token-to-revoke"
	userID := "user-789"
	expiresAt := time.Now().Add(24 * time.Hour)

	// Save session
	err := store.Save(ctx, tokenHash, Data{UserID: userID}, expiresAt)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify it exists
	_, err = store.Lookup(ctx, tokenHash)
	if err != nil {
		t.Fatalf("Lookup before revoke failed: %v", err)
	}

	// Revoke session
	err = store.Revoke(ctx, tokenHash)
	if err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	// Lookup should fail (token revoked)
	_, err = store.Lookup(ctx, tokenHash)
	if err == nil {
		t.Error("expected error for revoked token, got nil")
	}
}

func TestRevokeNonExistentSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	// Revoking non-existent token should not error
	err := store.Revoke(ctx, "non-existent-token")
	if err != nil {
		t.Errorf("Revoke for non-existent token failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	// Save two different sessions
	err := store.Save(ctx, "token-1", Data{UserID: "user-1"}, expiresAt)
	if err != nil {
		t.Fatalf("Save 1 failed: %v", err)
	}

	err = store.Save(ctx, "token-2", Data{UserID: "user-2"}, expiresAt)
	if err != nil {
		t.Fatalf("Save 2 failed: %v", err)
	}

	// Lookup each session
	user1, err := store.Lookup(ctx, "token-1")
	if err != nil {
		t.Fatalf("Lookup token-1 failed: %v", err)
	}
	if user1.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", user1.UserID)
	}

	user2, err := store.Lookup(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 failed: %v", err)
	}
	if user2.UserID != "user-2" {
		t.Errorf("expected user-2, got %s", user2.UserID)
	}

	// Revoke one session
	err = store.Revoke(ctx, "token-1")
	if err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}

	// token-1 should be gone
	_, err = store.Lookup(ctx, "token-1")
	if err == nil {
		t.Error("expected error for revoked token-1, got nil")
	}

	// token-2 should still exist
	user2, err = store.Lookup(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 after revoke failed: %v", err)
	}
	if user2.UserID != "user-2" {
		t.Errorf("expected user-2 after revoke, got %s", user2.UserID)
	}
}
