package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tally/internal/core"
	"tally/internal/storage"
)

type savingsAccountRequest struct {
	Name         *string `json:"name"`
	TargetAmount *int64  `json:"target_amount"`
	Color        *string `json:"color"`
	IsActive     *bool   `json:"is_active"`
}

type savingsMovementRequest struct {
	Amount          *int64  `json:"amount"`
	Date            *string `json:"date"`
	PaymentMethodID *string `json:"payment_method_id"`
	Note            *string `json:"note"`
}

func (s *Server) handleListSavingsAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, totalBalance, err := s.repo.ListSavingsAccounts(r.Context(), userFrom(r).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":     accounts,
		"totalBalance": totalBalance,
	})
}

func (s *Server) handleCreateSavingsAccount(w http.ResponseWriter, r *http.Request) {
	var req savingsAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	account, err := s.repo.CreateSavingsAccount(r.Context(), userFrom(r).ID, name, req.TargetAmount, req.Color)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUpdateSavingsAccount(w http.ResponseWriter, r *http.Request) {
	var req savingsAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	account, err := s.repo.UpdateSavingsAccount(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"), storage.SavingsAccountUpdate{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		Color:        req.Color,
		IsActive:     req.IsActive,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleArchiveSavingsAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.ArchiveSavingsAccount(r.Context(), userFrom(r).ID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "archived"})
}

func (s *Server) handleSavingsDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleSavingsMovement(w, r, core.TypeSavingsDeposit)
}

func (s *Server) handleSavingsWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleSavingsMovement(w, r, core.TypeSavingsWithdrawal)
}

func (s *Server) handleSavingsMovement(w http.ResponseWriter, r *http.Request, txType core.TransactionType) {
	var req savingsMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.Amount == nil {
		writeDomainError(w, r, core.ErrInvalidAmount)
		return
	}
	date := ""
	if req.Date != nil {
		date = *req.Date
	}

	view, err := s.repo.CreateSavingsTransaction(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"),
		txType, *req.Amount, date, req.PaymentMethodID, req.Note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleSavingsTransactions(w http.ResponseWriter, r *http.Request) {
	account, transactions, err := s.repo.ListSavingsTransactions(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":      account,
		"transactions": transactions,
	})
}

func (s *Server) handleUpdateSavingsTransaction(w http.ResponseWriter, r *http.Request) {
	var req savingsMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}

	view, err := s.repo.UpdateSavingsTransaction(r.Context(), userFrom(r).ID, chi.URLParam(r, "txID"), storage.SavingsTransactionUpdate{
		Amount:          req.Amount,
		Date:            req.Date,
		PaymentMethodID: req.PaymentMethodID,
		Note:            req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteSavingsTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.SoftDeleteSavingsTransaction(r.Context(), userFrom(r).ID, chi.URLParam(r, "txID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
