package core

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	Income   Kind = "income"
	Expense  Kind = "expense"
	Transfer Kind = "transfer"
)

// Category assigned to every materialized occurrence and recurring transfer leg.
const CategoryRecurring = "Fixkosten"

// Category assigned to transfer legs without an explicit one.
const CategoryTransfer = "Übertrag"

type (
	// Kind classifies a transaction as inflow, outflow or an account-to-account
	// transfer.
	Kind string

	Money struct {
		Cents int64 `json:"cents"`
	}

	// Account is a named balance bucket ("card") transactions are posted
	// against. IncludeInTotals=false keeps the account out of aggregate
	// balances without deleting it.
	Account struct {
		ID              string `json:"id"`
		Title           string `json:"title"`
		IncludeInTotals bool   `json:"includeInTotals"`
	}

	// Transaction is the single persisted entity for plain ledger rows,
	// transfer legs and recurring templates (IsRecurring=true). TemplateID and
	// IsFuture are derived fields carried only by materialized occurrences,
	// which are never persisted.
	Transaction struct {
		ID        string `json:"id"`
		AccountID string `json:"accountId"`
		Name      string `json:"name"`
		Category  string `json:"category"`
		Date      Date   `json:"date"`
		// Signed minor units: negative = outflow, positive = inflow.
		Amount     Money  `json:"amount"`
		Kind       Kind   `json:"kind"`
		TransferID string `json:"transferId,omitempty"`

		IsRecurring bool      `json:"isRecurring,omitempty"`
		BillingDay  int       `json:"billingDay,omitempty"`
		Frequency   Frequency `json:"frequency,omitempty"`
		// Exclusive upper bound; occurrences on or after this day are never
		// produced. Set when a template is retired by an amount change.
		ValidUntil Date `json:"validUntil,omitzero"`

		TemplateID string `json:"templateId,omitempty"`
		IsFuture   bool   `json:"isFuture,omitempty"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyTitle         = errors.New("empty title")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidBillingDay  = errors.New("billing day must be between 1 and 31")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrMissingDestination = errors.New("transfer requires a destination account")
	ErrSameAccount        = errors.New("transfer source and destination must differ")
	ErrNotFound           = errors.New("not found")
	// Returned when an amount change cannot find a future billing date within
	// the scan horizon; the edit must be rejected, never silently dropped.
	ErrNoFutureOccurrence = errors.New("no future occurrence within scan horizon")
)

// IsTemplate reports whether the row is a recurring-cost template rather than
// a ledger line. Generated occurrences inherit IsRecurring from their
// template, so the flag alone is not enough.
func (t Transaction) IsTemplate() bool {
	return t.IsRecurring && t.TemplateID == ""
}

// IsOccurrence reports whether the row was generated from a template.
func (t Transaction) IsOccurrence() bool {
	return t.TemplateID != ""
}

func (k Kind) IsValid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	default:
		return false
	}
}

// UnmarshalJSON defaults IncludeInTotals to true when the field is absent,
// so older exports keep every account in the totals.
func (a *Account) UnmarshalJSON(data []byte) error {
	type alias Account
	aux := struct {
		IncludeInTotals *bool `json:"includeInTotals"`
		*alias
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.IncludeInTotals = aux.IncludeInTotals == nil || *aux.IncludeInTotals
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("empty account id")
	}
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Validate checks the row-local invariants. Referential integrity against the
// account set is checked by the mutation engine, which owns that set.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("empty transaction id")
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrUnknownAccount
	}
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.Kind == Transfer && t.TransferID == "" {
		return errors.New("transfer leg without transfer id")
	}
	if t.IsRecurring {
		if t.BillingDay < 1 || t.BillingDay > 31 {
			return ErrInvalidBillingDay
		}
		if !t.Frequency.IsValid() {
			return ErrInvalidFrequency
		}
		if !t.ValidUntil.IsEmpty() && !t.ValidUntil.After(t.Date) {
			return errors.New("validUntil must be after the start date")
		}
	}
	return nil
}
