package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tally/internal/core"
	"tally/internal/storage"
)

func (s *Server) handleListLendingSources(w http.ResponseWriter, r *http.Request) {
	active := true
	sources, err := s.repo.ListRef(r.Context(), storage.RefLendingSources, userFrom(r).ID, &active)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sources})
}

func (s *Server) handleCreateLendingSource(w http.ResponseWriter, r *http.Request) {
	var req refRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	source, err := s.repo.CreateRef(r.Context(), storage.RefLendingSources, userFrom(r).ID, name, nil, req.Color)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

// handleUpdateLendingSource replaces name and color in one shot. The
// name is mandatory in a PUT.
func (s *Server) handleUpdateLendingSource(w http.ResponseWriter, r *http.Request) {
	var req refRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w)
		return
	}
	if req.Name == nil {
		writeDomainError(w, r, core.ErrNameRequired)
		return
	}

	source, err := s.repo.UpdateRef(r.Context(), storage.RefLendingSources, userFrom(r).ID, chi.URLParam(r, "id"), storage.RefUpdate{
		Name:     req.Name,
		IsActive: req.IsActive,
		Color:    req.Color,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (s *Server) handleArchiveLendingSource(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.ArchiveRef(r.Context(), storage.RefLendingSources, userFrom(r).ID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "archived"})
}

func (s *Server) handleLendingRepayments(w http.ResponseWriter, r *http.Request) {
	repayments, err := s.repo.ListLendingRepayments(r.Context(), userFrom(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repayments": repayments})
}
