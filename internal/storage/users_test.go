package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *Repository, username string) core.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), username, "not-a-real-hash")
	if err != nil {
		t.Fatalf("create test user %q: %v", username, err)
	}
	return user
}

func TestCreateUserSeedsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice")

	tests := []struct {
		table RefTable
		want  int
	}{
		{RefCategories, 8},
		{RefGroups, 2},
		{RefPaymentMethods, 4},
		{RefIncomeSources, 0},
		{RefLendingSources, 0},
	}
	for _, tt := range tests {
		entities, err := repo.ListRef(ctx, tt.table, user.ID, nil)
		if err != nil {
			t.Fatalf("list %s: %v", tt.table, err)
		}
		if len(entities) != tt.want {
			t.Errorf("%s: got %d rows, want %d", tt.table, len(entities), tt.want)
		}
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	createTestUser(t, repo, "alice")

	// Uniqueness is case-insensitive.
	_, err := repo.CreateUser(context.Background(), "ALICE", "hash")
	if !errors.Is(err, core.ErrUsernameTaken) {
		t.Fatalf("got error %v, want ErrUsernameTaken", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice")

	sessionID, err := repo.CreateSession(ctx, user.ID, time.Now().Add(time.Hour), "test-agent", "10.0.0.x")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := repo.GetSessionUser(ctx, sessionID)
	if err != nil {
		t.Fatalf("get session user: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got user %s, want %s", got.ID, user.ID)
	}

	if err := repo.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.GetSessionUser(ctx, sessionID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got error %v after logout, want ErrNotFound", err)
	}
}

func TestExpiredSessionRejectedAndSwept(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice")

	expired, err := repo.CreateSession(ctx, user.ID, time.Now().Add(-time.Minute), "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	live, err := repo.CreateSession(ctx, user.ID, time.Now().Add(time.Hour), "", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := repo.GetSessionUser(ctx, expired); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired session resolved, want ErrNotFound, got %v", err)
	}

	n, err := repo.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("delete expired sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}
	if _, err := repo.GetSessionUser(ctx, live); err != nil {
		t.Errorf("live session rejected after sweep: %v", err)
	}
}

func TestAuthAttemptWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	windowStart := time.Now().Add(-10 * time.Minute)

	attempt, err := repo.GetAuthAttempt(ctx, "alice", windowStart)
	if err != nil {
		t.Fatalf("get auth attempt: %v", err)
	}
	if attempt != nil {
		t.Fatalf("got attempt %+v before any failure, want nil", attempt)
	}

	for i := 0; i < 3; i++ {
		if err := repo.RecordFailedLogin(ctx, "alice", attempt); err != nil {
			t.Fatalf("record failed login: %v", err)
		}
		attempt, err = repo.GetAuthAttempt(ctx, "alice", windowStart)
		if err != nil {
			t.Fatalf("get auth attempt: %v", err)
		}
	}
	if attempt == nil || attempt.FailCount != 3 {
		t.Fatalf("got attempt %+v, want fail count 3", attempt)
	}

	if err := repo.ClearFailedLogins(ctx, "alice"); err != nil {
		t.Fatalf("clear failed logins: %v", err)
	}
	attempt, err = repo.GetAuthAttempt(ctx, "alice", windowStart)
	if err != nil {
		t.Fatalf("get auth attempt: %v", err)
	}
	if attempt != nil {
		t.Errorf("got attempt %+v after clear, want nil", attempt)
	}
}
