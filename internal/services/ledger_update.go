package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aurimea/internal/core"
	"aurimea/internal/store"
)

// How far past the reference month an amount-change scans for the next
// billing date before giving up.
const splitScanHorizonMonths = 60

// updateKind tags what an edit means for the persisted rows. The three cases
// write very different changesets, so classification happens once, up front.
type updateKind int

const (
	// updateAmountChange edits a template's amount without rewriting history:
	// the old template retires at the next future billing date and a new one
	// takes over from there.
	updateAmountChange updateKind = iota
	// updatePromote turns a plain row into a template, absorbing the past
	// rows it evidently stands for.
	updatePromote
	// updateReplace rewrites a row in place, ids preserved.
	updateReplace
)

// UpdateTransaction applies an edit to the row behind id. Occurrence ids
// resolve to their template; an unknown id is an error, unlike delete, because
// an edit that silently lands nowhere would look like success to the caller.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, p TransactionPayload) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if templateID, ok := core.ParseOccurrenceID(id); ok {
		id = templateID
	}
	row := s.transactionByID(id)
	if row == nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, core.ErrNotFound)
	}
	if p.Amount.Cents <= 0 {
		return nil, core.ErrInvalidAmount
	}

	var (
		cs   store.Changeset
		rows []core.Transaction
		err  error
	)
	switch classifyUpdate(*row, p) {
	case updateAmountChange:
		cs, rows, err = s.splitTemplate(*row, p)
	case updatePromote:
		cs, rows, err = s.promoteToRecurring(*row, p)
	default:
		cs, rows, err = s.replaceRow(*row, p)
	}
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}
	s.publish(ctx, "transaction", "updated", id)
	return rows, nil
}

// classifyUpdate decides which changeset an edit needs. A template that stays
// recurring is an amount change only when the amount actually changes;
// re-saving a template with the same magnitude is a plain rewrite, or every
// save would retire the template and grow the chain. A plain row turning
// recurring is a promotion; everything else is a rewrite.
func classifyUpdate(original core.Transaction, p TransactionPayload) updateKind {
	switch {
	case original.IsTemplate() && p.IsRecurring:
		if original.Amount.Abs() != p.Amount.Abs() {
			return updateAmountChange
		}
		return updateReplace
	case !original.IsTemplate() && p.IsRecurring:
		return updatePromote
	default:
		return updateReplace
	}
}

// splitTemplate retires a template at the first billing date strictly after
// today and starts a successor there with the new amount. Past occurrences
// keep materializing from the retired template, so history never changes.
// A template with no future billing date inside the scan horizon cannot be
// split and the edit fails.
func (s *LedgerService) splitTemplate(original core.Transaction, p TransactionPayload) (store.Changeset, []core.Transaction, error) {
	referenceDate := core.DateOf(s.now())

	// No materialized history yet, nothing to preserve: edit in place.
	if len(occurrencesThrough(original, referenceDate)) == 0 {
		return s.rewriteTemplate(original, p)
	}

	splitDate, err := nextOccurrenceAfter(original, referenceDate, splitScanHorizonMonths)
	if err != nil {
		return store.Changeset{}, nil, fmt.Errorf("split template %s: %w", original.ID, err)
	}

	retired := original
	retired.ValidUntil = splitDate

	successor := original
	successor.ID = uuid.NewString()
	successor.Date = splitDate
	successor.ValidUntil = core.Date{}
	successor.Amount = sameSign(original.Amount, p.Amount)
	if p.Name != "" {
		successor.Name = p.Name
	}
	if p.BillingDay != 0 {
		successor.BillingDay = p.BillingDay
	}
	if p.Frequency != "" {
		successor.Frequency = p.Frequency
	}

	cs := store.Changeset{PutTransactions: []core.Transaction{retired, successor}}

	// A recurring transfer splits both legs on the same date so each future
	// month still materializes a full pair.
	if original.TransferID != "" {
		var partner *core.Transaction
		for i := range s.transactions {
			t := &s.transactions[i]
			if t.TransferID == original.TransferID && t.ID != original.ID {
				partner = t
				break
			}
		}
		if partner != nil {
			transferID := uuid.NewString()
			retiredPartner := *partner
			retiredPartner.ValidUntil = splitDate

			partnerSuccessor := *partner
			partnerSuccessor.ID = uuid.NewString()
			partnerSuccessor.Date = splitDate
			partnerSuccessor.ValidUntil = core.Date{}
			partnerSuccessor.Amount = successor.Amount.Neg()
			partnerSuccessor.TransferID = transferID
			if p.BillingDay != 0 {
				partnerSuccessor.BillingDay = p.BillingDay
			}
			if p.Frequency != "" {
				partnerSuccessor.Frequency = p.Frequency
			}
			successor.TransferID = transferID
			cs.PutTransactions = []core.Transaction{retired, successor, retiredPartner, partnerSuccessor}
		}
	}

	for _, t := range cs.PutTransactions {
		if err := t.Validate(); err != nil {
			return store.Changeset{}, nil, err
		}
	}
	return cs, []core.Transaction{successor}, nil
}

// rewriteTemplate edits a template that has not produced anything yet. The
// partner leg of a recurring transfer tracks the amount change.
func (s *LedgerService) rewriteTemplate(original core.Transaction, p TransactionPayload) (store.Changeset, []core.Transaction, error) {
	updated := original
	updated.Amount = sameSign(original.Amount, p.Amount)
	if p.Name != "" {
		updated.Name = p.Name
	}
	if p.BillingDay != 0 {
		updated.BillingDay = p.BillingDay
	}
	if p.Frequency != "" {
		updated.Frequency = p.Frequency
	}
	if err := updated.Validate(); err != nil {
		return store.Changeset{}, nil, err
	}

	cs := store.Changeset{PutTransactions: []core.Transaction{updated}}
	if original.TransferID != "" {
		for _, t := range s.transactions {
			if t.TransferID == original.TransferID && t.ID != original.ID {
				partner := t
				partner.Amount = updated.Amount.Neg()
				if p.BillingDay != 0 {
					partner.BillingDay = p.BillingDay
				}
				if p.Frequency != "" {
					partner.Frequency = p.Frequency
				}
				cs.PutTransactions = append(cs.PutTransactions, partner)
				break
			}
		}
	}
	return cs, []core.Transaction{updated}, nil
}

// promoteToRecurring turns a plain row into a template. Rows in the same
// account with the same name and magnitude are taken as the series' past
// occurrences: the earliest of them becomes the template's start date and all
// of them, the edited row included, are absorbed into the template so they do
// not double against the occurrences it will now materialize. Transfer legs
// never match; absorbing one would strand its partner.
func (s *LedgerService) promoteToRecurring(original core.Transaction, p TransactionPayload) (store.Changeset, []core.Transaction, error) {
	matched := []core.Transaction{original}
	for _, t := range s.transactions {
		if t.ID == original.ID || t.AccountID != original.AccountID {
			continue
		}
		if t.IsTemplate() || t.Kind == core.Transfer {
			continue
		}
		if t.Name == original.Name && t.Amount.Abs() == original.Amount.Abs() {
			matched = append(matched, t)
		}
	}

	start := matched[0].Date
	for _, t := range matched[1:] {
		if t.Date.Before(start) {
			start = t.Date
		}
	}

	tpl := core.Transaction{
		ID:          original.ID,
		AccountID:   original.AccountID,
		Name:        original.Name,
		Category:    core.CategoryRecurring,
		Date:        start,
		Amount:      signedAmount(original.Kind, p.Amount),
		Kind:        original.Kind,
		IsRecurring: true,
		BillingDay:  p.BillingDay,
		Frequency:   p.Frequency,
	}
	if p.Name != "" {
		tpl.Name = p.Name
	}
	if tpl.BillingDay == 0 {
		tpl.BillingDay = start.Day()
	}
	if err := tpl.Validate(); err != nil {
		return store.Changeset{}, nil, err
	}

	cs := store.Changeset{PutTransactions: []core.Transaction{tpl}}
	for _, t := range matched {
		cs.DeleteTransactions = append(cs.DeleteTransactions, t.ID)
	}
	return cs, []core.Transaction{tpl}, nil
}

// replaceRow rewrites a row from the payload. The original's id survives on
// the primary row and, when a transfer stays a transfer, so does its transfer
// id; only a newly created destination leg gets a fresh id. Old legs that the
// new shape no longer needs are deleted in the same changeset.
func (s *LedgerService) replaceRow(original core.Transaction, p TransactionPayload) (store.Changeset, []core.Transaction, error) {
	rows, err := s.expandPayload(p)
	if err != nil {
		return store.Changeset{}, nil, err
	}

	var cs store.Changeset
	if original.TransferID != "" {
		cs.DeleteTransactions = s.transferLegIDs(original.TransferID)
	} else {
		cs.DeleteTransactions = []string{original.ID}
	}

	rows[0].ID = original.ID
	if len(rows) == 2 && original.TransferID != "" {
		rows[0].TransferID = original.TransferID
		rows[1].TransferID = original.TransferID
	}
	cs.PutTransactions = rows
	return cs, rows, nil
}
