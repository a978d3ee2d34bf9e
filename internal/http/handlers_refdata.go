package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tally/internal/storage"
)

type refRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
	Type     *string `json:"type"`
	Color    *string `json:"color"`
}

// refRoutes builds the CRUD routes shared by categories, groups,
// payment methods and income sources. Delete archives, it never
// removes rows that transactions may point at.
func (s *Server) refRoutes(table storage.RefTable) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", s.handleListRef(table))
		r.Post("/", s.handleCreateRef(table))
		r.Patch("/{id}", s.handleUpdateRef(table))
		r.Delete("/{id}", s.handleArchiveRef(table))
	}
}

func (s *Server) handleListRef(table storage.RefTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Listings default to active rows; ?active=all includes archived.
		var active *bool
		switch r.URL.Query().Get("active") {
		case "", "true":
			t := true
			active = &t
		case "false":
			f := false
			active = &f
		case "all":
		default:
			writeError(w, http.StatusBadRequest, "invalid_filter", "")
			return
		}

		entities, err := s.repo.ListRef(r.Context(), table, userFrom(r).ID, active)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": entities})
	}
}

func (s *Server) handleCreateRef(table storage.RefTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w)
			return
		}
		name := ""
		if req.Name != nil {
			name = *req.Name
		}

		entity, err := s.repo.CreateRef(r.Context(), table, userFrom(r).ID, name, req.Type, req.Color)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entity)
	}
}

func (s *Server) handleUpdateRef(table storage.RefTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w)
			return
		}

		entity, err := s.repo.UpdateRef(r.Context(), table, userFrom(r).ID, chi.URLParam(r, "id"), storage.RefUpdate{
			Name:     req.Name,
			IsActive: req.IsActive,
			Type:     req.Type,
			Color:    req.Color,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entity)
	}
}

func (s *Server) handleArchiveRef(table storage.RefTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repo.ArchiveRef(r.Context(), table, userFrom(r).ID, chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "archived"})
	}
}
