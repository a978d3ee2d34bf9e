package http

import (
	"net/http"
	"testing"
)

func listItems(t *testing.T, client *http.Client, url string) []any {
	t.Helper()
	res := doRequest(t, client, http.MethodGet, url, nil)
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: got status %d body %v", url, res.StatusCode, body)
	}
	items, _ := body["items"].([]any)
	return items
}

func TestCategoriesCRUD(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	seeded := listItems(t, client, ts.URL+"/categories")
	if len(seeded) != 8 {
		t.Fatalf("got %d seeded categories, want 8", len(seeded))
	}

	res := doRequest(t, client, http.MethodPost, ts.URL+"/categories", map[string]any{"name": "  Travel  "})
	created := decodeBody(t, res)
	if res.StatusCode != http.StatusCreated || created["name"] != "Travel" {
		t.Fatalf("create: got status %d body %v, want trimmed name Travel", res.StatusCode, created)
	}
	id := created["id"].(string)

	res = doRequest(t, client, http.MethodPost, ts.URL+"/categories", map[string]any{"name": "   "})
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusBadRequest || body["error"] != "name_required" {
		t.Errorf("blank name: got status %d body %v, want 400 name_required", res.StatusCode, body)
	}

	res = doRequest(t, client, http.MethodPatch, ts.URL+"/categories/"+id, map[string]any{"name": "Trips"})
	body = decodeBody(t, res)
	if res.StatusCode != http.StatusOK || body["name"] != "Trips" {
		t.Errorf("rename: got status %d body %v", res.StatusCode, body)
	}

	res = doRequest(t, client, http.MethodDelete, ts.URL+"/categories/"+id, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("archive: got status %d", res.StatusCode)
	}

	// Archived rows fall out of the default listing but remain reachable.
	if got := len(listItems(t, client, ts.URL+"/categories")); got != 8 {
		t.Errorf("got %d active categories after archive, want 8", got)
	}
	if got := len(listItems(t, client, ts.URL+"/categories?active=all")); got != 9 {
		t.Errorf("got %d categories with active=all, want 9", got)
	}
}

func TestPaymentMethodType(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	res := doRequest(t, client, http.MethodPost, ts.URL+"/payment-methods", map[string]any{
		"name": "Revolut", "type": "ewallet",
	})
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusCreated || body["type"] != "ewallet" {
		t.Errorf("got status %d body %v, want type ewallet", res.StatusCode, body)
	}
}

func TestLendingRepaymentsListing(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice", "123456")

	res := doRequest(t, client, http.MethodPost, ts.URL+"/lending", map[string]any{
		"name": "Mario", "color": "#ff0000",
	})
	source := decodeBody(t, res)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create lending source: got status %d body %v", res.StatusCode, source)
	}
	sourceID := source["id"].(string)

	expense := createTransaction(t, client, ts.URL, map[string]any{
		"amount": 80000, "date": "2026-08-01", "merchant": "Hardware store",
	})
	createTransaction(t, client, ts.URL, map[string]any{
		"type": "repayment", "amount": 30000, "date": "2026-08-15",
		"related_transaction_id": expense["id"],
		"lending_source_id":      sourceID,
	})

	res = doRequest(t, client, http.MethodGet, ts.URL+"/lending/"+sourceID+"/repayments", nil)
	body := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list repayments: got status %d", res.StatusCode)
	}
	repayments, _ := body["repayments"].([]any)
	if len(repayments) != 1 {
		t.Fatalf("got %d repayments, want 1", len(repayments))
	}
	repayment, _ := repayments[0].(map[string]any)
	if repayment["expense_merchant"] != "Hardware store" {
		t.Errorf("got expense_merchant %v, want Hardware store", repayment["expense_merchant"])
	}

	res = doRequest(t, client, http.MethodGet, ts.URL+"/lending/missing/repayments", nil)
	errBody := decodeBody(t, res)
	if res.StatusCode != http.StatusNotFound || errBody["error"] != "not_found" {
		t.Errorf("unknown source: got status %d body %v, want 404 not_found", res.StatusCode, errBody)
	}
}
