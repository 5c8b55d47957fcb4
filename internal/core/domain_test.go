package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func validRow() Transaction {
	return Transaction{
		ID:        "1",
		AccountID: "acc-1",
		Name:      "Miete",
		Category:  "Wohnen",
		Date:      NewDate(2025, 1, 15),
		Amount:    Money{Cents: -80000},
		Kind:      Expense,
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid plain row", func(tx *Transaction) {}, nil},
		{"empty name", func(tx *Transaction) { tx.Name = "  " }, ErrEmptyName},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"bad kind", func(tx *Transaction) { tx.Kind = "loan" }, ErrInvalidKind},
		{"missing account", func(tx *Transaction) { tx.AccountID = "" }, ErrUnknownAccount},
		{"template without billing day", func(tx *Transaction) {
			tx.IsRecurring = true
			tx.Frequency = Monthly
		}, ErrInvalidBillingDay},
		{"template billing day out of range", func(tx *Transaction) {
			tx.IsRecurring = true
			tx.BillingDay = 32
			tx.Frequency = Monthly
		}, ErrInvalidBillingDay},
		{"template bad frequency", func(tx *Transaction) {
			tx.IsRecurring = true
			tx.BillingDay = 15
			tx.Frequency = "weekly"
		}, ErrInvalidFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validRow()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionValidateRecurringValidUntil(t *testing.T) {
	tx := validRow()
	tx.IsRecurring = true
	tx.BillingDay = 15
	tx.Frequency = Monthly
	tx.ValidUntil = NewDate(2025, 1, 1) // before start
	if err := tx.Validate(); err == nil {
		t.Error("expected error for validUntil before start date")
	}
	tx.ValidUntil = NewDate(2025, 6, 15)
	if err := tx.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestTransferLegRequiresTransferID(t *testing.T) {
	tx := validRow()
	tx.Kind = Transfer
	if err := tx.Validate(); err == nil {
		t.Error("expected error for transfer leg without transfer id")
	}
	tx.TransferID = "tr-1"
	if err := tx.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestAccountValidate(t *testing.T) {
	a := Account{ID: "1", Title: "Erste Bank", IncludeInTotals: true}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	a.Title = ""
	if !errors.Is(a.Validate(), ErrEmptyTitle) {
		t.Error("expected ErrEmptyTitle")
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := Snapshot{
		Accounts:     []Account{{ID: "a1", Title: "Giro", IncludeInTotals: true}},
		Transactions: []Transaction{validRowFor("a1")},
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	snap.Transactions = append(snap.Transactions, validRowFor("ghost"))
	if !errors.Is(snap.Validate(), ErrUnknownAccount) {
		t.Error("expected ErrUnknownAccount for dangling account reference")
	}
}

func TestAccountUnmarshalDefaultsIncludeInTotals(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"absent field defaults to true", `{"id":"a1","title":"Giro"}`, true},
		{"explicit false survives", `{"id":"a1","title":"Giro","includeInTotals":false}`, false},
		{"explicit true", `{"id":"a1","title":"Giro","includeInTotals":true}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var acc Account
			if err := json.Unmarshal([]byte(tc.body), &acc); err != nil {
				t.Fatalf("Unmarshal() = %v, want nil", err)
			}
			if acc.IncludeInTotals != tc.want {
				t.Errorf("IncludeInTotals = %v, want %v", acc.IncludeInTotals, tc.want)
			}
		})
	}
}

func validRowFor(accountID string) Transaction {
	tx := validRow()
	tx.AccountID = accountID
	return tx
}
