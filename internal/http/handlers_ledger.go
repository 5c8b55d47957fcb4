package http

import (
	"fmt"
	"net/http"
	"strconv"

	"aurimea/internal/core"
)

// handleLedger returns the materialized ledger view. An optional ?date=
// parameter moves the reference day, which the UI uses for time travel.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	referenceDate := core.DateOf(timeNow())
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+v)
			return
		}
		referenceDate = d
	}

	key := ledgerCacheKey(s.ledger.Version(), referenceDate)
	view, ok := s.ledgerCache.Get(key)
	if !ok {
		view = s.ledger.LedgerAt(r.Context(), referenceDate)
		s.ledgerCache.Set(key, view)
	}
	view = filterLedger(view, r)

	writeJSON(w, http.StatusOK, struct {
		ReferenceDate core.Date          `json:"referenceDate"`
		Transactions  []core.Transaction `json:"transactions"`
	}{
		ReferenceDate: referenceDate,
		Transactions:  view,
	})
}

// filterLedger applies the optional ?account=, ?year= and ?month= narrowing.
// Filtering happens after the cache, so every filter shares one cached view.
func filterLedger(view []core.Transaction, r *http.Request) []core.Transaction {
	accountID := r.URL.Query().Get("account")
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	if accountID == "" && year == 0 && month == 0 {
		return view
	}

	out := make([]core.Transaction, 0, len(view))
	for _, t := range view {
		if accountID != "" && t.AccountID != accountID {
			continue
		}
		if year != 0 && t.Date.Year() != year {
			continue
		}
		if month != 0 && t.Date.Month() != month {
			continue
		}
		out = append(out, t)
	}
	return out
}

// handleOverview aggregates one month of the ledger view.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid month: %d", month))
		return
	}

	key := fmt.Sprintf("%d:%d-%d", s.ledger.Version(), year, month)
	overview, ok := s.overviewCache.Get(key)
	if !ok {
		overview = s.ledger.Overview(r.Context(), year, month)
		s.overviewCache.Set(key, overview)
	}

	writeJSON(w, http.StatusOK, overview)
}
