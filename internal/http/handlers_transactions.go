package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tally/internal/core"
	"tally/internal/storage"
)

type transactionRequest struct {
	Type                 *string `json:"type"`
	Amount               *int64  `json:"amount"`
	Date                 *string `json:"date"`
	CategoryID           *string `json:"category_id"`
	GroupID              *string `json:"group_id"`
	PaymentMethodID      *string `json:"payment_method_id"`
	IncomeSourceID       *string `json:"income_source_id"`
	LendingSourceID      *string `json:"lending_source_id"`
	SavingsAccountID     *string `json:"savings_account_id"`
	RelatedTransactionID *string `json:"related_transaction_id"`
	Note                 *string `json:"note"`
	Merchant             *string `json:"merchant"`
	SortOrder            *int64  `json:"sort_order"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.TransactionFilter{
		From:            q.Get("from"),
		To:              q.Get("to"),
		Type:            q.Get("type"),
		CategoryID:      q.Get("category_id"),
		GroupID:         q.Get("group_id"),
		PaymentMethodID: q.Get("payment_method_id"),
		NeedsReview:     q.Get("needs_review") == "true",
		Query:           q.Get("q"),
		Cursor:          q.Get("cursor"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "")
			return
		}
		filter.Limit = limit
	}

	page, err := s.repo.ListTransactions(r.Context(), userFrom(r).ID, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.Amount == nil {
		writeDomainError(w, r, core.ErrInvalidAmount)
		return
	}

	in := storage.NewTransaction{
		Amount:               *req.Amount,
		CategoryID:           req.CategoryID,
		GroupID:              req.GroupID,
		PaymentMethodID:      req.PaymentMethodID,
		IncomeSourceID:       req.IncomeSourceID,
		LendingSourceID:      req.LendingSourceID,
		SavingsAccountID:     req.SavingsAccountID,
		RelatedTransactionID: req.RelatedTransactionID,
		Note:                 req.Note,
		Merchant:             req.Merchant,
	}
	if req.Type != nil {
		in.Type = core.TransactionType(*req.Type)
	}
	if req.Date != nil {
		in.Date = *req.Date
	}

	view, err := s.repo.CreateTransaction(r.Context(), userFrom(r).ID, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	upd := storage.TransactionUpdate{
		Amount:               req.Amount,
		Date:                 req.Date,
		CategoryID:           req.CategoryID,
		GroupID:              req.GroupID,
		PaymentMethodID:      req.PaymentMethodID,
		IncomeSourceID:       req.IncomeSourceID,
		LendingSourceID:      req.LendingSourceID,
		RelatedTransactionID: req.RelatedTransactionID,
		Note:                 req.Note,
		Merchant:             req.Merchant,
		SortOrder:            req.SortOrder,
	}
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		upd.Type = &t
	}

	view, err := s.repo.UpdateTransaction(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"), upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.SoftDeleteTransaction(r.Context(), userFrom(r).ID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleTransactionDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.repo.GetTransactionDetails(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := s.repo.DaySummaries(r.Context(), userFrom(r).ID, q.Get("from"), q.Get("to"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	insights, err := s.repo.Insights(r.Context(), userFrom(r).ID, q.Get("from"), q.Get("to"),
		core.TransactionType(q.Get("type")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

type reorderRequest struct {
	Updates []storage.ReorderUpdate `json:"updates"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if len(req.Updates) == 0 {
		writeDomainError(w, r, core.ErrNoUpdates)
		return
	}

	if err := s.repo.ReorderTransactions(r.Context(), userFrom(r).ID, req.Updates); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reordered"})
}
