package http

import (
	"net/http"
	"strings"

	"aurimea/internal/core"
)

// accountRequest is the create/update body. IncludeInTotals is a pointer so
// an absent field defaults to true instead of false.
type accountRequest struct {
	Title           string `json:"title"`
	IncludeInTotals *bool  `json:"includeInTotals"`
}

func (req accountRequest) includeInTotals() bool {
	if req.IncludeInTotals == nil {
		return true
	}
	return *req.IncludeInTotals
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.ledger.Accounts(r.Context()))

	case http.MethodPost:
		var req accountRequest
		if !decodeBody(w, r, &req) {
			return
		}
		account, err := s.ledger.CreateAccount(r.Context(), sanitizeInput(req.Title), req.includeInTotals())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, account)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req accountRequest
		if !decodeBody(w, r, &req) {
			return
		}
		account := core.Account{
			ID:              id,
			Title:           sanitizeInput(req.Title),
			IncludeInTotals: req.includeInTotals(),
		}
		if err := s.ledger.UpdateAccount(r.Context(), account); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, account)

	case http.MethodDelete:
		if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}
