// Package services provides the ledger engine: materialization of recurring
// templates into concrete occurrences and the mutation operations that keep
// the persisted row set consistent while doing so.
package services

import (
	"sort"

	"aurimea/internal/core"
)

// The materialization window, in months relative to the reference month. A
// year back and two forward bounds the expansion to a small constant and
// covers what a household ledger needs to browse.
const (
	windowPastMonths   = 12
	windowFutureMonths = 24
)

// Materialize expands recurring templates into dated occurrences and merges
// them with the plain rows into the ledger view. It is a pure function over
// its inputs: same rows and reference day, same output. Occurrences carry a
// deterministic id and their template's id; nothing here is ever persisted.
func Materialize(transactions []core.Transaction, referenceDate core.Date) []core.Transaction {
	var templates []core.Transaction
	merged := make([]core.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if t.IsTemplate() {
			templates = append(templates, t)
			continue
		}
		merged = append(merged, t)
	}

	for i := -windowPastMonths; i <= windowFutureMonths; i++ {
		targetMonth := monthAt(referenceDate, i)
		for _, tpl := range templates {
			if occ, ok := occurrenceAt(tpl, targetMonth); ok {
				occ.IsFuture = occ.Date.After(referenceDate)
				merged = append(merged, occ)
			}
		}
	}

	// De-duplicate by id, last write wins. Should not trigger in normal
	// operation; it protects against imported rows colliding with generated
	// ids.
	seen := make(map[string]int, len(merged))
	deduped := merged[:0]
	for _, t := range merged {
		if i, ok := seen[t.ID]; ok {
			deduped[i] = t
			continue
		}
		seen[t.ID] = len(deduped)
		deduped = append(deduped, t)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Date.After(deduped[j].Date)
	})
	return deduped
}

// monthAt returns the first day of the month offset months away from d's
// month. Offsets are applied via NewDate's normalization, so crossing year
// boundaries needs no special casing.
func monthAt(d core.Date, offset int) core.Date {
	return core.NewDate(d.Year(), d.Month()+offset, 1)
}

// occurrenceAt produces the occurrence a template emits in the given month,
// if any. The billing day clamps to shorter months; dates on or after
// ValidUntil are suppressed.
func occurrenceAt(tpl core.Transaction, month core.Date) (core.Transaction, bool) {
	if tpl.BillingDay < 1 {
		return core.Transaction{}, false
	}
	diff := core.MonthsBetween(tpl.Date, month)
	if !core.MatchesCadence(tpl.Frequency, diff) {
		return core.Transaction{}, false
	}
	day := core.ClampDay(month.Year(), month.Month(), tpl.BillingDay)
	date := core.NewDate(month.Year(), month.Month(), day)
	if !tpl.ValidUntil.IsEmpty() && !date.Before(tpl.ValidUntil) {
		return core.Transaction{}, false
	}

	occ := tpl
	occ.ID = core.OccurrenceID(tpl.ID, month.Year(), month.Month())
	occ.TemplateID = tpl.ID
	occ.Date = date
	occ.Category = core.CategoryRecurring
	return occ, true
}

// nextOccurrenceAfter scans forward from the template's start month for the
// first billing date strictly after referenceDate, bounded to horizonMonths.
// Returns core.ErrNoFutureOccurrence when the scan exhausts the horizon,
// which a caller must surface rather than guess around.
func nextOccurrenceAfter(tpl core.Transaction, referenceDate core.Date, horizonMonths int) (core.Date, error) {
	// The horizon counts from the reference month, not the template start,
	// so long-running templates stay editable.
	limit := horizonMonths
	if behind := core.MonthsBetween(tpl.Date, referenceDate); behind > 0 {
		limit += behind
	}
	for i := 0; i <= limit; i++ {
		month := monthAt(tpl.Date, i)
		occ, ok := occurrenceAt(tpl, month)
		if !ok {
			continue
		}
		if occ.Date.After(referenceDate) {
			return occ.Date, nil
		}
	}
	return core.Date{}, core.ErrNoFutureOccurrence
}

// occurrencesThrough lists the occurrences a template has produced from its
// start month through the reference month inclusive. Delete-and-historize
// freezes exactly these into standalone rows.
func occurrencesThrough(tpl core.Transaction, referenceDate core.Date) []core.Transaction {
	span := core.MonthsBetween(tpl.Date, referenceDate)
	var out []core.Transaction
	for i := 0; i <= span; i++ {
		if occ, ok := occurrenceAt(tpl, monthAt(tpl.Date, i)); ok {
			out = append(out, occ)
		}
	}
	return out
}
