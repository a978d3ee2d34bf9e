package http

import (
	"net/http"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	ts, client := newTestServer(t)

	tests := []struct {
		name     string
		username string
		pin      string
		wantCode string
	}{
		{"short username", "ab", "123456", "invalid_username"},
		{"bad characters", "al ice", "123456", "invalid_username"},
		{"short pin", "alice", "123", "invalid_pin"},
		{"non-numeric pin", "alice", "12345a", "invalid_pin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doRequest(t, client, http.MethodPost, ts.URL+"/auth/register", map[string]string{
				"username": tt.username,
				"pin":      tt.pin,
			})
			body := decodeBody(t, res)
			if res.StatusCode != http.StatusBadRequest || body["error"] != tt.wantCode {
				t.Errorf("got status %d body %v, want 400 %s", res.StatusCode, body, tt.wantCode)
			}
		})
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	ts, client := newTestServer(t)

	register(t, client, ts.URL, "alice", "123456")

	// Registration opens a session.
	res := doRequest(t, client, http.MethodGet, ts.URL+"/me", nil)
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me after register: got status %d", res.StatusCode)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Errorf("got user %v, want alice", body)
	}

	res = doRequest(t, client, http.MethodPost, ts.URL+"/auth/logout", nil)
	res.Body.Close()
	res = doRequest(t, client, http.MethodGet, ts.URL+"/me", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: got status %d, want 401", res.StatusCode)
	}

	res = doRequest(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]string{
		"username": "alice",
		"pin":      "123456",
	})
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: got status %d", res.StatusCode)
	}
	res = doRequest(t, client, http.MethodGet, ts.URL+"/me", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me after login: got status %d", res.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	// Uniqueness ignores case.
	res := doRequest(t, client, http.MethodPost, ts.URL+"/auth/register", map[string]string{
		"username": "ALICE",
		"pin":      "654321",
	})
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusConflict || body["error"] != "username_taken" {
		t.Errorf("got status %d body %v, want 409 username_taken", res.StatusCode, body)
	}
}

func TestLoginRateLimit(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	badLogin := map[string]string{"username": "alice", "pin": "000000"}
	for i := 0; i < 3; i++ {
		res := doRequest(t, client, http.MethodPost, ts.URL+"/auth/login", badLogin)
		body := decodeBody(t, res)
		if res.StatusCode != http.StatusUnauthorized || body["error"] != "invalid_credentials" {
			t.Fatalf("attempt %d: got status %d body %v, want 401 invalid_credentials", i+1, res.StatusCode, body)
		}
	}

	// The fourth attempt is blocked even with the right PIN.
	res := doRequest(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]string{
		"username": "alice",
		"pin":      "123456",
	})
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusTooManyRequests || body["error"] != "too_many_attempts" {
		t.Fatalf("got status %d body %v, want 429 too_many_attempts", res.StatusCode, body)
	}
	retryAfter, ok := body["retry_after_seconds"].(float64)
	if !ok || retryAfter <= 0 {
		t.Errorf("got retry_after_seconds %v, want positive number", body["retry_after_seconds"])
	}
}

func TestChangePIN(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	res := doRequest(t, client, http.MethodPost, ts.URL+"/auth/change-pin", map[string]string{
		"current_pin": "999999",
		"new_pin":     "654321",
	})
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusUnauthorized || body["error"] != "wrong_pin" {
		t.Fatalf("got status %d body %v, want 401 wrong_pin", res.StatusCode, body)
	}

	res = doRequest(t, client, http.MethodPost, ts.URL+"/auth/change-pin", map[string]string{
		"current_pin": "123456",
		"new_pin":     "654321",
	})
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("change pin: got status %d", res.StatusCode)
	}

	res = doRequest(t, client, http.MethodPost, ts.URL+"/auth/logout", nil)
	res.Body.Close()
	res = doRequest(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]string{
		"username": "alice",
		"pin":      "654321",
	})
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login with new pin: got status %d", res.StatusCode)
	}
}
