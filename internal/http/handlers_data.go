package http

import (
	"net/http"

	"tally/internal/storage"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.repo.Export(r.Context(), userFrom(r).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="tally-export.json"`)
	writeJSON(w, http.StatusOK, data)
}

// handleImport replaces the caller's entire dataset with the uploaded
// export. The swap happens in one transaction, so a malformed payload
// leaves existing data untouched.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var data storage.ExportData
	if err := decodeJSON(r, &data); err != nil {
		badRequest(w)
		return
	}

	if err := s.repo.Import(r.Context(), userFrom(r).ID, data); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "imported"})
}
