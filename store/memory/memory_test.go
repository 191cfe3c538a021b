package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newSession(userID string, n int) *store.Session {
	created := base.Add(time.Duration(n) * time.Second)
	return &store.Session{
		UserID:    userID,
		TokenHash: store.HashToken(fmt.Sprintf("%s-token-%d", userID, n)),
		CreatedAt: created,
		UpdatedAt: created,
		ExpiresAt: created.Add(time.Hour),
		Valid:     true,
	}
}

func TestCreateEvictsOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	first, second, third := newSession("u1", 1), newSession("u1", 2), newSession("u1", 3)
	for _, sess := range []*store.Session{first, second} {
		if _, err := s.Create(ctx, sess, 2); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	evicted, err := s.Create(ctx, third, 2)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	if _, err := s.GetByTokenHash(ctx, first.TokenHash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected oldest session to be evicted, got %v", err)
	}

	live, err := s.ListForUser(ctx, "u1", base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("ListForUser error: %v", err)
	}
	if len(live) != 2 || live[0].ID != third.ID || live[1].ID != second.ID {
		t.Fatalf("unexpected live set: %+v", live)
	}
}

func TestCreateConcurrentSingleSession(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.Create(ctx, newSession("u1", n), 1); err != nil {
				t.Errorf("Create error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	live, _ := s.ListForUser(ctx, "u1", base.Add(time.Minute))
	if len(live) != 1 {
		t.Fatalf("expected exactly one live session, got %d", len(live))
	}
}

func TestInvalidatedSessionIsHidden(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	sess := newSession("u1", 1)
	if _, err := s.Create(ctx, sess, 0); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.Invalidate(ctx, sess.ID); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if _, err := s.GetByTokenHash(ctx, sess.TokenHash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected invalidated row to be hidden, got %v", err)
	}

	n, err := s.PurgeExpired(ctx, base)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpired = %d, %v", n, err)
	}
}

func TestDeleteByIDChecksOwner(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	sess := newSession("u1", 1)
	_, _ = s.Create(ctx, sess, 0)

	if ok, _ := s.DeleteByID(ctx, "u2", sess.ID); ok {
		t.Fatal("expected foreign delete to be refused")
	}
	if ok, _ := s.DeleteByID(ctx, "u1", sess.ID); !ok {
		t.Fatal("expected owner delete to succeed")
	}
	if ok, _ := s.DeleteByTokenHash(ctx, sess.TokenHash); ok {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestDeleteAllForUserKeepsException(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	keep := newSession("u1", 1)
	_, _ = s.Create(ctx, keep, 0)
	_, _ = s.Create(ctx, newSession("u1", 2), 0)
	_, _ = s.Create(ctx, newSession("u2", 3), 0)

	n, err := s.DeleteAllForUser(ctx, "u1", keep.ID)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAllForUser = %d, %v", n, err)
	}
	if _, err := s.GetByTokenHash(ctx, keep.TokenHash); err != nil {
		t.Fatalf("expected kept session to survive: %v", err)
	}
}

func TestUserStoreIndexes(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	u := &store.User{Email: "alice@example.com", PasswordHash: "h", Active: true}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if err := s.Create(ctx, &store.User{Email: "ALICE@example.com"}); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	u.OIDCSubject = "sub-1"
	if err := s.Update(ctx, u); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, err := s.GetByOIDCSubject(ctx, "sub-1")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetByOIDCSubject = %+v, %v", got, err)
	}
	if _, err := s.GetByEmail(ctx, "Alice@Example.com"); err != nil {
		t.Fatalf("GetByEmail should be case-insensitive: %v", err)
	}
}
