package http

import (
	"net/http"

	"aurimea/internal/core"
)

// handleExport dumps the persisted state. The response is a valid import
// body, so export-then-import reproduces the ledger exactly.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="aurimea-export.json"`)
	writeJSON(w, http.StatusOK, s.ledger.Export(r.Context()))
}

// handleImport replaces the entire persisted state with the posted snapshot.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var snap core.Snapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	if err := s.ledger.Import(r.Context(), snap); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
