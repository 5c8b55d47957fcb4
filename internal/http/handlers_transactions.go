package http

import (
	"net/http"
	"strings"

	"aurimea/internal/services"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Raw persisted rows, templates included. The materialized view
		// lives under /api/ledger.
		writeJSON(w, http.StatusOK, s.ledger.Transactions(r.Context()))

	case http.MethodPost:
		var payload services.TransactionPayload
		if !decodeBody(w, r, &payload) {
			return
		}
		payload.Name = sanitizeInput(payload.Name)
		payload.Category = sanitizeInput(payload.Category)

		rows, err := s.ledger.CreateTransaction(r.Context(), payload)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rows)

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var payload services.TransactionPayload
		if !decodeBody(w, r, &payload) {
			return
		}
		payload.Name = sanitizeInput(payload.Name)
		payload.Category = sanitizeInput(payload.Category)

		rows, err := s.ledger.UpdateTransaction(r.Context(), id, payload)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)

	case http.MethodDelete:
		if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}
