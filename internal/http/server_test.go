package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// newTestServer wires a full router against a real temp-dir SQLite
// database and returns a client with a cookie jar, so tests exercise
// the same auth flow a browser would.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}

	cfg := &config.Config{
		Port:                 "0",
		SQLiteDBPath:         dbPath,
		CORSOrigin:           "http://localhost:5173",
		SessionDays:          30,
		BcryptCost:           bcrypt.MinCost,
		LoginMaxAttempts:     3,
		LoginWindow:          10 * time.Minute,
		SessionSweepInterval: time.Hour,
		LogLevel:             "error",
	}

	srv := NewServer(cfg, repo, applog.New(applog.ParseLevel(cfg.LogLevel)))
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		ts.Close()
		srv.limiter.stop()
		repo.Close()
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return ts, &http.Client{Jar: jar}
}

func doRequest(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func register(t *testing.T, client *http.Client, baseURL, username, pin string) {
	t.Helper()
	res := doRequest(t, client, http.MethodPost, baseURL+"/auth/register", map[string]string{
		"username": username,
		"pin":      pin,
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %q: got status %d", username, res.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, client := newTestServer(t)

	res := doRequest(t, client, http.MethodGet, ts.URL+"/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["status"] != "ok" {
		t.Errorf("got body %v, want status ok", body)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts, client := newTestServer(t)

	paths := []string{"/me", "/transactions", "/categories", "/savings", "/data/export"}
	for _, path := range paths {
		res := doRequest(t, client, http.MethodGet, ts.URL+path, nil)
		body := decodeBody(t, res)
		if res.StatusCode != http.StatusUnauthorized || body["error"] != "unauthorized" {
			t.Errorf("%s: got status %d body %v, want 401 unauthorized", path, res.StatusCode, body)
		}
	}
}
