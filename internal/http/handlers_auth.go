package http

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

type changePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if err := core.ValidateUsername(req.Username); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := core.ValidatePIN(req.PIN); err != nil {
		writeDomainError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), s.cfg.BcryptCost)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	user, err := s.repo.CreateUser(r.Context(), req.Username, string(hash))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	sessionID, err := s.createSession(r, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.setSessionCookie(w, sessionID)

	s.logger.WithComponent(applog.ComponentAuth).Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": userResponse{ID: user.ID, Username: user.Username},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.PIN == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "")
		return
	}

	norm := core.NormalizeUsername(req.Username)
	logger := s.logger.WithComponent(applog.ComponentAuth)

	windowStart := time.Now().Add(-s.cfg.LoginWindow)
	attempt, err := s.repo.GetAuthAttempt(r.Context(), norm, windowStart)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if attempt != nil && attempt.FailCount >= int64(s.cfg.LoginMaxAttempts) {
		retryAfter := retryAfterSeconds(attempt.FirstFailAt, s.cfg.LoginWindow)
		logger.Warn("login rate limited", "username_norm", norm, "retry_after_seconds", retryAfter)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               "too_many_attempts",
			"retry_after_seconds": retryAfter,
		})
		return
	}

	user, err := s.repo.GetUserByUsername(r.Context(), norm)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.recordFailure(w, r, norm, attempt)
			return
		}
		writeDomainError(w, r, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(req.PIN)) != nil {
		s.recordFailure(w, r, norm, attempt)
		return
	}

	if err := s.repo.ClearFailedLogins(r.Context(), norm); err != nil {
		writeDomainError(w, r, err)
		return
	}

	sessionID, err := s.createSession(r, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.setSessionCookie(w, sessionID)

	logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: user.ID, Username: user.Username},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.repo.DeleteSession(r.Context(), cookie.Value); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged_out"})
}

func (s *Server) handleChangePIN(w http.ResponseWriter, r *http.Request) {
	var req changePINRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if err := core.ValidatePIN(req.NewPIN); err != nil {
		writeDomainError(w, r, err)
		return
	}

	user := userFrom(r)
	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(req.CurrentPIN)) != nil {
		writeDomainError(w, r, core.ErrWrongPIN)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPIN), s.cfg.BcryptCost)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.repo.UpdateUserPIN(r.Context(), user.ID, string(hash)); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.logger.WithComponent(applog.ComponentAuth).Info("pin changed", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "pin_changed"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: user.ID, Username: user.Username},
	})
}

// recordFailure logs a failed attempt and answers with the uniform
// invalid_credentials error so unknown usernames and wrong PINs are
// indistinguishable.
func (s *Server) recordFailure(w http.ResponseWriter, r *http.Request, norm string, attempt *storage.AuthAttempt) {
	if err := s.repo.RecordFailedLogin(r.Context(), norm, attempt); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.logger.WithComponent(applog.ComponentAuth).Warn("login failed", "username_norm", norm)
	writeDomainError(w, r, core.ErrBadCredentials)
}

func (s *Server) createSession(r *http.Request, userID string) (string, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.SessionDays) * 24 * time.Hour)
	return s.repo.CreateSession(r.Context(), userID, expiresAt, r.UserAgent(), ipPrefix(applog.ClientIP(r)))
}

// ipPrefix keeps only a coarse prefix of the client IP for session
// metadata, enough for "was this me" displays without storing the
// full address.
func ipPrefix(ip string) string {
	if ip == "" {
		return ""
	}
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		return strings.Join(parts[:3], ".") + ".x"
	}
	// IPv6: keep the first two groups.
	groups := strings.Split(ip, ":")
	if len(groups) > 2 {
		return strings.Join(groups[:2], ":") + "::"
	}
	return ip
}

func retryAfterSeconds(firstFailAt time.Time, window time.Duration) int {
	remaining := time.Until(firstFailAt.Add(window))
	if remaining < 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
