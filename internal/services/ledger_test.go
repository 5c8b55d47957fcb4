package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"aurimea/internal/core"
	"aurimea/internal/store"
	"aurimea/internal/store/memory"
)

// failingStore wraps the in-memory store and rejects every Apply, which is
// how the rollback guarantee is exercised.
type failingStore struct {
	*memory.Store
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Apply(context.Context, store.Changeset) error {
	return errStoreDown
}

func newTestService(t *testing.T, st store.Store) *LedgerService {
	t.Helper()
	ctx := context.Background()
	if err := st.BulkAdd(ctx,
		[]core.Account{
			{ID: "acc-giro", Title: "Girokonto", IncludeInTotals: true},
			{ID: "acc-spar", Title: "Sparkonto", IncludeInTotals: true},
		}, nil); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
	s, err := NewLedgerService(ctx, st, nil)
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	s.now = func() time.Time {
		return time.Date(2025, time.June, 20, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func expensePayload(name string, cents int64, date string) TransactionPayload {
	d, _ := core.ParseDate(date)
	return TransactionPayload{
		AccountID: "acc-giro",
		Name:      name,
		Category:  "Lebensmittel",
		Date:      d,
		Amount:    core.Money{Cents: cents},
		Kind:      core.Expense,
	}
}

func TestCreateTransactionSignsAmounts(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	tests := []struct {
		name string
		kind core.Kind
		want int64
	}{
		{"expense stored negative", core.Expense, -2350},
		{"income stored positive", core.Income, 2350},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := expensePayload("Einkauf", 2350, "2025-06-01")
			p.Kind = tt.kind
			rows, err := s.CreateTransaction(ctx, p)
			if err != nil {
				t.Fatalf("CreateTransaction: %v", err)
			}
			if len(rows) != 1 {
				t.Fatalf("got %d rows, want 1", len(rows))
			}
			if rows[0].Amount.Cents != tt.want {
				t.Errorf("amount = %d, want %d", rows[0].Amount.Cents, tt.want)
			}
		})
	}
}

func TestCreateTransactionRejectsBadPayloads(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*TransactionPayload)
		wantErr error
	}{
		{"unknown account", func(p *TransactionPayload) { p.AccountID = "nope" }, core.ErrUnknownAccount},
		{"zero amount", func(p *TransactionPayload) { p.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"empty name", func(p *TransactionPayload) { p.Name = "" }, core.ErrEmptyName},
		{"transfer without destination", func(p *TransactionPayload) { p.Kind = core.Transfer }, core.ErrMissingDestination},
		{"transfer to itself", func(p *TransactionPayload) {
			p.Kind = core.Transfer
			p.DestinationAccountID = p.AccountID
		}, core.ErrSameAccount},
		{"transfer to unknown account", func(p *TransactionPayload) {
			p.Kind = core.Transfer
			p.DestinationAccountID = "nope"
		}, core.ErrUnknownAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := expensePayload("Einkauf", 2350, "2025-06-01")
			tt.mutate(&p)
			if _, err := s.CreateTransaction(ctx, p); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateTransferIsSymmetric(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	rows, err := s.CreateTransaction(ctx, TransactionPayload{
		AccountID:            "acc-giro",
		DestinationAccountID: "acc-spar",
		Date:                 mustDate(t, "2025-06-01"),
		Amount:               core.Money{Cents: 10000},
		Kind:                 core.Transfer,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 legs", len(rows))
	}
	out, in := rows[0], rows[1]
	if out.Amount.Cents != -10000 || in.Amount.Cents != 10000 {
		t.Errorf("amounts = %d/%d, want -10000/10000", out.Amount.Cents, in.Amount.Cents)
	}
	if out.TransferID == "" || out.TransferID != in.TransferID {
		t.Errorf("legs must share a transfer id, got %q and %q", out.TransferID, in.TransferID)
	}
	if out.Category != core.CategoryTransfer || in.Category != core.CategoryTransfer {
		t.Errorf("categories = %q/%q, want %q", out.Category, in.Category, core.CategoryTransfer)
	}
	if out.Name != "Übertrag an Sparkonto" || in.Name != "Übertrag von Girokonto" {
		t.Errorf("default names = %q/%q", out.Name, in.Name)
	}
}

func TestDeleteTransferRemovesBothLegs(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	rows, err := s.CreateTransaction(ctx, TransactionPayload{
		AccountID:            "acc-giro",
		DestinationAccountID: "acc-spar",
		Date:                 mustDate(t, "2025-06-01"),
		Amount:               core.Money{Cents: 10000},
		Kind:                 core.Transfer,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	// Deleting either leg removes the pair.
	if err := s.DeleteTransaction(ctx, rows[1].ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if got := len(s.Transactions(ctx)); got != 0 {
		t.Errorf("%d rows left, want 0", got)
	}
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()
	before := s.Version()
	if err := s.DeleteTransaction(ctx, "no-such-row"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if s.Version() != before {
		t.Error("no-op delete must not bump the version")
	}
}

func TestDeleteTemplateHistorizesPastOccurrences(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	p := expensePayload("Miete", 5000, "2025-01-15")
	p.IsRecurring = true
	p.BillingDay = 15
	p.Frequency = core.Monthly
	created, err := s.CreateTransaction(ctx, p)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	tplID := created[0].ID

	// Delete through a materialized occurrence id, the way a UI would.
	if err := s.DeleteTransaction(ctx, core.OccurrenceID(tplID, 2025, 4)); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	rows := s.Transactions(ctx)
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6 historized months Jan..Jun", len(rows))
	}
	for _, r := range rows {
		if r.IsRecurring || r.TemplateID != "" {
			t.Errorf("row %s still looks recurring", r.ID)
		}
		if strings.HasPrefix(r.ID, "fc-") {
			t.Errorf("historized row kept occurrence id %q", r.ID)
		}
		if r.Category != core.CategoryRecurring {
			t.Errorf("row %s category = %q, want frozen %q", r.ID, r.Category, core.CategoryRecurring)
		}
		if r.Amount.Cents != -5000 {
			t.Errorf("row %s amount = %d, want -5000", r.ID, r.Amount.Cents)
		}
	}

	// Nothing materializes anymore; the ledger is exactly the frozen rows.
	if got := len(s.Ledger(ctx)); got != 6 {
		t.Errorf("ledger has %d rows, want 6", got)
	}
}

func TestDeleteRecurringTransferKeepsPairsPaired(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	created, err := s.CreateTransaction(ctx, TransactionPayload{
		AccountID:            "acc-giro",
		DestinationAccountID: "acc-spar",
		Name:                 "Sparrate",
		Date:                 mustDate(t, "2025-03-01"),
		Amount:               core.Money{Cents: 20000},
		Kind:                 core.Transfer,
		IsRecurring:          true,
		BillingDay:           1,
		Frequency:            core.Monthly,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := s.DeleteTransaction(ctx, created[0].ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	rows := s.Transactions(ctx)
	// Mar, Apr, May, Jun for each leg.
	if len(rows) != 8 {
		t.Fatalf("got %d rows, want 8", len(rows))
	}
	legs := make(map[string][]core.Transaction)
	for _, r := range rows {
		if r.IsRecurring {
			t.Errorf("row %s still recurring after template delete", r.ID)
		}
		if r.TransferID == "" {
			t.Fatalf("historized leg %s lost its transfer id", r.ID)
		}
		legs[r.TransferID] = append(legs[r.TransferID], r)
	}
	if len(legs) != 4 {
		t.Fatalf("got %d transfer pairs, want 4", len(legs))
	}
	for tid, pair := range legs {
		if len(pair) != 2 {
			t.Fatalf("transfer %s has %d legs, want 2", tid, len(pair))
		}
		if pair[0].Amount.Cents+pair[1].Amount.Cents != 0 {
			t.Errorf("transfer %s legs do not cancel: %d and %d", tid, pair[0].Amount.Cents, pair[1].Amount.Cents)
		}
	}
}

func TestMutationsRollBackWhenStoreFails(t *testing.T) {
	st := &failingStore{Store: memory.New()}
	s := newTestService(t, st)
	ctx := context.Background()

	if _, err := s.CreateTransaction(ctx, expensePayload("Einkauf", 2350, "2025-06-01")); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want %v", err, errStoreDown)
	}
	if got := len(s.Transactions(ctx)); got != 0 {
		t.Errorf("%d rows in memory after failed commit, want 0", got)
	}
	if s.Version() != 0 {
		t.Errorf("version = %d after failed commit, want 0", s.Version())
	}
}

func TestUpdateUnknownIDFails(t *testing.T) {
	s := newTestService(t, memory.New())
	_, err := s.UpdateTransaction(context.Background(), "no-such-row", expensePayload("X", 1, "2025-06-01"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want %v", err, core.ErrNotFound)
	}
}

func TestUpdateAmountChangeSplitsTemplate(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	p := expensePayload("Miete", 5000, "2025-01-15")
	p.IsRecurring = true
	p.BillingDay = 15
	p.Frequency = core.Monthly
	created, err := s.CreateTransaction(ctx, p)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	tplID := created[0].ID

	p.Amount = core.Money{Cents: 6500}
	rows, err := s.UpdateTransaction(ctx, core.OccurrenceID(tplID, 2025, 6), p)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	successor := rows[0]
	if successor.Date.String() != "2025-07-15" {
		t.Errorf("successor starts %s, want 2025-07-15", successor.Date)
	}
	if successor.Amount.Cents != -6500 {
		t.Errorf("successor amount = %d, want -6500", successor.Amount.Cents)
	}

	var retired core.Transaction
	for _, r := range s.Transactions(ctx) {
		if r.ID == tplID {
			retired = r
		}
	}
	if retired.ValidUntil.String() != "2025-07-15" {
		t.Errorf("retired template validUntil = %s, want 2025-07-15", retired.ValidUntil)
	}

	// History keeps the old amount, the future carries the new one.
	for _, r := range s.Ledger(ctx) {
		if r.TemplateID == "" {
			continue
		}
		want := int64(-5000)
		if r.Date.After(mustDate(t, "2025-06-30")) {
			want = -6500
		}
		if r.Amount.Cents != want {
			t.Errorf("occurrence %s amount = %d, want %d", r.Date, r.Amount.Cents, want)
		}
	}
}

func TestUpdateTemplateSameAmountDoesNotSplit(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	p := expensePayload("Miete", 5000, "2025-01-15")
	p.IsRecurring = true
	p.BillingDay = 15
	p.Frequency = core.Monthly
	created, err := s.CreateTransaction(ctx, p)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	tplID := created[0].ID

	// Re-saving the identical payload must not retire the template and mint
	// a successor; the template chain would grow on every save.
	rows, err := s.UpdateTransaction(ctx, tplID, p)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != tplID {
		t.Fatalf("rows = %+v, want the original template id %s", rows, tplID)
	}

	persisted := s.Transactions(ctx)
	if len(persisted) != 1 {
		t.Fatalf("got %d persisted rows after no-op save, want 1", len(persisted))
	}
	if !persisted[0].ValidUntil.IsEmpty() {
		t.Errorf("template retired by a no-op save, validUntil = %s", persisted[0].ValidUntil)
	}

	// A name edit with the same amount rewrites too, still without a split.
	p.Name = "Kaltmiete"
	if _, err := s.UpdateTransaction(ctx, tplID, p); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	persisted = s.Transactions(ctx)
	if len(persisted) != 1 || persisted[0].Name != "Kaltmiete" {
		t.Errorf("persisted = %+v, want one renamed template", persisted)
	}
}

func TestUpdateAmountChangeFailsWithoutFutureOccurrence(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	d := mustDate(t, "2025-01-15")
	tpl := core.Transaction{
		ID: "tpl-1", AccountID: "acc-giro", Name: "Miete", Category: core.CategoryRecurring,
		Date: d, Amount: core.Money{Cents: -5000}, Kind: core.Expense,
		IsRecurring: true, BillingDay: 15, Frequency: core.Monthly,
		ValidUntil: mustDate(t, "2025-04-15"),
	}
	if err := s.store.AddTransaction(ctx, tpl); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.transactions = append(s.transactions, tpl)

	p := expensePayload("Miete", 6500, "2025-01-15")
	p.IsRecurring = true
	p.BillingDay = 15
	p.Frequency = core.Monthly
	if _, err := s.UpdateTransaction(ctx, "tpl-1", p); !errors.Is(err, core.ErrNoFutureOccurrence) {
		t.Errorf("err = %v, want %v", err, core.ErrNoFutureOccurrence)
	}
}

func TestUpdatePromotesToRecurring(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	var last core.Transaction
	for _, date := range []string{"2025-01-13", "2025-02-15", "2025-03-14"} {
		rows, err := s.CreateTransaction(ctx, expensePayload("Netflix", 1299, date))
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		last = rows[0]
	}
	// A same-name row on another account must not be absorbed.
	other := expensePayload("Netflix", 1299, "2025-02-01")
	other.AccountID = "acc-spar"
	if _, err := s.CreateTransaction(ctx, other); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	p := expensePayload("Netflix", 1299, "2025-03-14")
	p.IsRecurring = true
	p.BillingDay = 15
	p.Frequency = core.Monthly
	rows, err := s.UpdateTransaction(ctx, last.ID, p)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	tpl := rows[0]
	if !tpl.IsRecurring {
		t.Fatal("promoted row is not a template")
	}
	if tpl.Date.String() != "2025-01-13" {
		t.Errorf("template starts %s, want earliest matched date 2025-01-13", tpl.Date)
	}

	persisted := s.Transactions(ctx)
	if len(persisted) != 2 {
		t.Fatalf("got %d persisted rows, want template plus the foreign-account row", len(persisted))
	}
	// Materialization now owns the history: exactly one row per month.
	perMonth := make(map[int]int)
	for _, r := range s.Ledger(ctx) {
		if r.AccountID == "acc-giro" && r.Name == "Netflix" && !r.IsFuture {
			perMonth[r.Date.Month()]++
		}
	}
	for m := 1; m <= 6; m++ {
		if perMonth[m] != 1 {
			t.Errorf("month %d has %d Netflix rows, want 1", m, perMonth[m])
		}
	}
}

func TestUpdateReplaceKeepsIDs(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	created, err := s.CreateTransaction(ctx, expensePayload("Einkauf", 2350, "2025-06-01"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	p := expensePayload("Wochenmarkt", 1800, "2025-06-02")
	rows, err := s.UpdateTransaction(ctx, created[0].ID, p)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if rows[0].ID != created[0].ID {
		t.Errorf("id changed from %q to %q on replace", created[0].ID, rows[0].ID)
	}
	if rows[0].Name != "Wochenmarkt" || rows[0].Amount.Cents != -1800 {
		t.Errorf("replaced row = %q/%d", rows[0].Name, rows[0].Amount.Cents)
	}
	if got := len(s.Transactions(ctx)); got != 1 {
		t.Errorf("%d rows, want 1", got)
	}
}

func TestUpdateReplaceTransferKeepsTransferID(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	p := TransactionPayload{
		AccountID:            "acc-giro",
		DestinationAccountID: "acc-spar",
		Date:                 mustDate(t, "2025-06-01"),
		Amount:               core.Money{Cents: 10000},
		Kind:                 core.Transfer,
	}
	created, err := s.CreateTransaction(ctx, p)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	p.Amount = core.Money{Cents: 12500}
	rows, err := s.UpdateTransaction(ctx, created[0].ID, p)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 legs", len(rows))
	}
	if rows[0].ID != created[0].ID {
		t.Errorf("primary leg id changed from %q to %q", created[0].ID, rows[0].ID)
	}
	if rows[0].TransferID != created[0].TransferID {
		t.Errorf("transfer id changed from %q to %q", created[0].TransferID, rows[0].TransferID)
	}
	if rows[0].Amount.Cents != -12500 || rows[1].Amount.Cents != 12500 {
		t.Errorf("amounts = %d/%d, want -12500/12500", rows[0].Amount.Cents, rows[1].Amount.Cents)
	}
	if got := len(s.Transactions(ctx)); got != 2 {
		t.Errorf("%d rows, want 2", got)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	if _, err := s.CreateTransaction(ctx, expensePayload("Einkauf", 2350, "2025-06-01")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, TransactionPayload{
		AccountID:            "acc-giro",
		DestinationAccountID: "acc-spar",
		Date:                 mustDate(t, "2025-06-01"),
		Amount:               core.Money{Cents: 10000},
		Kind:                 core.Transfer,
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := s.DeleteAccount(ctx, "acc-giro"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if got := len(s.Accounts(ctx)); got != 1 {
		t.Errorf("%d accounts, want 1", got)
	}
	// The incoming leg on the surviving account must not be orphaned.
	if got := len(s.Transactions(ctx)); got != 0 {
		t.Errorf("%d rows, want 0", got)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	s := newTestService(t, memory.New())
	ctx := context.Background()

	snap := core.Snapshot{
		Accounts: []core.Account{{ID: "acc-neu", Title: "Neu", IncludeInTotals: true}},
		Transactions: []core.Transaction{{
			ID: "row-1", AccountID: "acc-neu", Name: "Einkauf", Category: "Lebensmittel",
			Date: mustDate(t, "2025-06-01"), Amount: core.Money{Cents: -2350}, Kind: core.Expense,
		}},
	}
	if err := s.Import(ctx, snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	got := s.Export(ctx)
	if len(got.Accounts) != 1 || got.Accounts[0].ID != "acc-neu" {
		t.Errorf("exported accounts = %+v", got.Accounts)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "row-1" {
		t.Errorf("exported transactions = %+v", got.Transactions)
	}
}

func TestImportRejectsDanglingAccountReference(t *testing.T) {
	s := newTestService(t, memory.New())
	snap := core.Snapshot{
		Transactions: []core.Transaction{{
			ID: "row-1", AccountID: "ghost", Name: "Einkauf", Category: "Lebensmittel",
			Date: mustDate(t, "2025-06-01"), Amount: core.Money{Cents: -2350}, Kind: core.Expense,
		}},
	}
	if err := s.Import(context.Background(), snap); err == nil {
		t.Fatal("import of a snapshot with a dangling account reference must fail")
	}
	// Prior state survives a rejected import.
	if got := len(s.Accounts(context.Background())); got != 2 {
		t.Errorf("%d accounts after rejected import, want 2", got)
	}
}
