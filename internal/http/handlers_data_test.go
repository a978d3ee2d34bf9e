package http

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	createTransaction(t, client, ts.URL, map[string]any{"amount": 100000, "date": "2026-08-01"})
	createTransaction(t, client, ts.URL, map[string]any{"type": "income", "amount": 50000, "date": "2026-08-02"})

	res := doRequest(t, client, http.MethodGet, ts.URL+"/data/export", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: got status %d", res.StatusCode)
	}
	var snapshot map[string]any
	if err := json.NewDecoder(res.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	res.Body.Close()

	exported, _ := snapshot["transactions"].([]any)
	if len(exported) != 2 {
		t.Fatalf("exported %d transactions, want 2", len(exported))
	}

	// Diverge, then restore the snapshot.
	createTransaction(t, client, ts.URL, map[string]any{"amount": 777, "date": "2026-08-20"})

	res = doRequest(t, client, http.MethodPost, ts.URL+"/data/import", snapshot)
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK || body["message"] != "imported" {
		t.Fatalf("import: got status %d body %v", res.StatusCode, body)
	}

	res = doRequest(t, client, http.MethodGet, ts.URL+"/transactions", nil)
	body = decodeBody(t, res)
	transactions, _ := body["transactions"].([]any)
	if len(transactions) != 2 {
		t.Errorf("got %d transactions after import, want 2", len(transactions))
	}
}

func TestImportRejectsMalformedBody(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	createTransaction(t, client, ts.URL, map[string]any{"amount": 1000, "date": "2026-08-01"})

	res := doRequest(t, client, http.MethodPost, ts.URL+"/data/import", "not an export")
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusBadRequest || body["error"] != "invalid_body" {
		t.Fatalf("got status %d body %v, want 400 invalid_body", res.StatusCode, body)
	}

	// The failed import must not have touched existing data.
	res = doRequest(t, client, http.MethodGet, ts.URL+"/transactions", nil)
	body = decodeBody(t, res)
	transactions, _ := body["transactions"].([]any)
	if len(transactions) != 1 {
		t.Errorf("got %d transactions after failed import, want 1", len(transactions))
	}
}
