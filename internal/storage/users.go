package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// Default reference data seeded for every new user.
var (
	defaultCategories = []string{"Food & Drinks", "Transport", "Shopping", "Bills", "Entertainment", "Health", "Salary", "Other"}
	defaultGroups     = []string{"Personal", "Family"}

	defaultPaymentMethods = []struct {
		Name string
		Type string
	}{
		{"Cash", "cash"},
		{"Debit Card", "debit"},
		{"Credit Card", "credit_card"},
		{"E-Wallet", "ewallet"},
	}
)

// CreateUser inserts a new user together with its default categories,
// groups and payment methods in one transaction. Returns
// core.ErrUsernameTaken when the normalized username already exists.
func (r *Repository) CreateUser(ctx context.Context, username, pinHash string) (core.User, error) {
	norm := core.NormalizeUsername(username)

	var user core.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username_norm = ?`, norm).Scan(&existing)
		if err == nil {
			return core.ErrUsernameTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check username: %w", err)
		}

		userID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, username_norm, pin_hash)
			VALUES (?, ?, ?, ?)`,
			userID, username, norm, pinHash); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		for _, name := range defaultCategories {
			if _, err := tx.ExecContext(ctx, `INSERT INTO categories (id, user_id, name) VALUES (?, ?, ?)`,
				uuid.NewString(), userID, name); err != nil {
				return fmt.Errorf("seed category: %w", err)
			}
		}
		for _, name := range defaultGroups {
			if _, err := tx.ExecContext(ctx, `INSERT INTO groups (id, user_id, name) VALUES (?, ?, ?)`,
				uuid.NewString(), userID, name); err != nil {
				return fmt.Errorf("seed group: %w", err)
			}
		}
		for _, pm := range defaultPaymentMethods {
			if _, err := tx.ExecContext(ctx, `INSERT INTO payment_methods (id, user_id, name, type) VALUES (?, ?, ?, ?)`,
				uuid.NewString(), userID, pm.Name, pm.Type); err != nil {
				return fmt.Errorf("seed payment method: %w", err)
			}
		}

		user = core.User{ID: userID, Username: username, UsernameNorm: norm, PINHash: pinHash, IsActive: true}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// GetUserByUsername looks up an active user by normalized username.
func (r *Repository) GetUserByUsername(ctx context.Context, usernameNorm string) (core.User, error) {
	var u core.User
	var active int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, username_norm, pin_hash, is_active, created_at, updated_at
		FROM users
		WHERE username_norm = ? AND is_active = 1`,
		usernameNorm).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.PINHash, &active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	u.IsActive = active == 1
	return u, nil
}

// GetUserByID fetches a user by id regardless of active flag.
func (r *Repository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	var u core.User
	var active int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, username_norm, pin_hash, is_active, created_at, updated_at
		FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.PINHash, &active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	u.IsActive = active == 1
	return u, nil
}

// UpdateUserPIN replaces the stored PIN hash.
func (r *Repository) UpdateUserPIN(ctx context.Context, userID, pinHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET pin_hash = ?, updated_at = datetime('now') WHERE id = ?`,
		pinHash, userID)
	if err != nil {
		return fmt.Errorf("update user pin: %w", err)
	}
	return nil
}

// CreateSession inserts a session for the user and returns its opaque id.
func (r *Repository) CreateSession(ctx context.Context, userID string, expiresAt time.Time, userAgent, ipPrefix string) (string, error) {
	sessionID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, user_agent, ip_prefix)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`,
		sessionID, userID, expiresAt.UTC().Format(time.RFC3339), userAgent, ipPrefix)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

// GetSessionUser resolves a session id to its active user, rejecting
// expired sessions, and rolls the session's last_seen_at forward.
// Returns core.ErrNotFound for missing, expired or deactivated sessions.
func (r *Repository) GetSessionUser(ctx context.Context, sessionID string) (core.User, error) {
	var u core.User
	var active int64
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.username_norm, u.pin_hash, u.is_active, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.id = ? AND s.expires_at > ?`,
		sessionID, now()).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.PINHash, &active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session user: %w", err)
	}
	if active != 1 {
		return core.User{}, core.ErrNotFound
	}
	u.IsActive = true

	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at = ? WHERE id = ?`, now(), sessionID); err != nil {
		return core.User{}, fmt.Errorf("touch session: %w", err)
	}
	return u, nil
}

// DeleteSession removes a session (logout). Deleting an unknown id is
// not an error.
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their expiry. Returns the
// number of rows removed.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AuthAttempt tracks login failures for one normalized username inside
// the sliding rate-limit window.
type AuthAttempt struct {
	ID          int64
	FailCount   int64
	FirstFailAt time.Time
}

// GetAuthAttempt returns the failure record whose window started after
// windowStart, or nil when there is none.
func (r *Repository) GetAuthAttempt(ctx context.Context, usernameNorm string, windowStart time.Time) (*AuthAttempt, error) {
	var a AuthAttempt
	var firstFailAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, fail_count, first_fail_at
		FROM auth_attempts
		WHERE username_norm = ? AND first_fail_at > ?`,
		usernameNorm, windowStart.UTC().Format(time.RFC3339)).Scan(&a.ID, &a.FailCount, &firstFailAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth attempt: %w", err)
	}
	t, err := time.Parse(time.RFC3339, firstFailAt)
	if err != nil {
		return nil, fmt.Errorf("parse first_fail_at: %w", err)
	}
	a.FirstFailAt = t
	return &a, nil
}

// RecordFailedLogin increments the failure counter for the current
// window, starting a new record when existing is nil.
func (r *Repository) RecordFailedLogin(ctx context.Context, usernameNorm string, existing *AuthAttempt) error {
	ts := now()
	var err error
	if existing != nil {
		_, err = r.db.ExecContext(ctx, `
			UPDATE auth_attempts SET fail_count = fail_count + 1, last_fail_at = ? WHERE id = ?`,
			ts, existing.ID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO auth_attempts (username_norm, first_fail_at, last_fail_at, fail_count)
			VALUES (?, ?, ?, 1)`,
			usernameNorm, ts, ts)
	}
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// ClearFailedLogins wipes the failure history after a successful login.
func (r *Repository) ClearFailedLogins(ctx context.Context, usernameNorm string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_attempts WHERE username_norm = ?`, usernameNorm); err != nil {
		return fmt.Errorf("clear failed logins: %w", err)
	}
	return nil
}
