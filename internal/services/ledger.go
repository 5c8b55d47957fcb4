package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aurimea/internal/core"
	"aurimea/internal/store"
)

// Publisher emits change notifications after a mutation has been committed.
// Publishing is best effort; a failed publish never rolls a commit back.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, entity, action, id string) error
}

// LedgerService is the single writer over the persisted row set. It keeps an
// in-memory copy of both collections, funnels every multi-row edit through one
// store.Changeset and only mutates the copy after the store has committed, so
// a failed Apply leaves the service exactly where it was.
type LedgerService struct {
	store  store.Store
	events Publisher

	mu           sync.Mutex
	accounts     []core.Account
	transactions []core.Transaction
	version      uint64

	now func() time.Time
}

// TransactionPayload is the user-facing shape of a create or update. Amount is
// the positive magnitude; the engine derives the sign from Kind.
type TransactionPayload struct {
	AccountID            string         `json:"accountId"`
	DestinationAccountID string         `json:"destinationAccountId,omitempty"`
	Name                 string         `json:"name"`
	Category             string         `json:"category"`
	Date                 core.Date      `json:"date"`
	Amount               core.Money     `json:"amount"`
	Kind                 core.Kind      `json:"kind"`
	IsRecurring          bool           `json:"isRecurring,omitempty"`
	BillingDay           int            `json:"billingDay,omitempty"`
	Frequency            core.Frequency `json:"frequency,omitempty"`
}

func NewLedgerService(ctx context.Context, st store.Store, events Publisher) (*LedgerService, error) {
	accounts, err := st.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	transactions, err := st.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return &LedgerService{
		store:        st,
		events:       events,
		accounts:     accounts,
		transactions: transactions,
		now:          time.Now,
	}, nil
}

// Version increments on every committed mutation. The HTTP layer keys its
// ledger cache on it.
func (s *LedgerService) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Ledger returns the materialized view for today.
func (s *LedgerService) Ledger(ctx context.Context) []core.Transaction {
	return s.LedgerAt(ctx, core.DateOf(s.now()))
}

// LedgerAt returns the materialized view for an arbitrary reference day.
func (s *LedgerService) LedgerAt(_ context.Context, referenceDate core.Date) []core.Transaction {
	s.mu.Lock()
	rows := make([]core.Transaction, len(s.transactions))
	copy(rows, s.transactions)
	s.mu.Unlock()
	return Materialize(rows, referenceDate)
}

// Overview aggregates one month of the materialized view. Rows in accounts
// flagged out of the totals do not count.
func (s *LedgerService) Overview(ctx context.Context, year, month int) core.MonthOverview {
	s.mu.Lock()
	included := make(map[string]bool, len(s.accounts))
	for _, a := range s.accounts {
		included[a.ID] = a.IncludeInTotals
	}
	s.mu.Unlock()

	var counted []core.Transaction
	for _, t := range s.Ledger(ctx) {
		if included[t.AccountID] {
			counted = append(counted, t)
		}
	}
	return core.Overview(counted, year, month)
}

func (s *LedgerService) Accounts(context.Context) []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *LedgerService) Transactions(context.Context) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

func (s *LedgerService) CreateAccount(ctx context.Context, title string, includeInTotals bool) (core.Account, error) {
	a := core.Account{ID: uuid.NewString(), Title: title, IncludeInTotals: includeInTotals}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, store.Changeset{PutAccounts: []core.Account{a}}); err != nil {
		return core.Account{}, err
	}
	s.publish(ctx, "account", "created", a.ID)
	return a, nil
}

func (s *LedgerService) UpdateAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByID(a.ID) == nil {
		return core.ErrUnknownAccount
	}
	if err := s.commit(ctx, store.Changeset{PutAccounts: []core.Account{a}}); err != nil {
		return err
	}
	s.publish(ctx, "account", "updated", a.ID)
	return nil
}

// DeleteAccount removes an account and every row it owns. Transfer legs in
// other accounts that point at a deleted row go with it, so no orphaned leg
// survives. Deleting an unknown id is a no-op.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByID(id) == nil {
		return nil
	}

	doomed := make(map[string]bool)
	transferIDs := make(map[string]bool)
	for _, t := range s.transactions {
		if t.AccountID == id {
			doomed[t.ID] = true
			if t.TransferID != "" {
				transferIDs[t.TransferID] = true
			}
		}
	}
	for _, t := range s.transactions {
		if t.TransferID != "" && transferIDs[t.TransferID] {
			doomed[t.ID] = true
		}
	}

	cs := store.Changeset{DeleteAccounts: []string{id}}
	for rowID := range doomed {
		cs.DeleteTransactions = append(cs.DeleteTransactions, rowID)
	}
	if err := s.commit(ctx, cs); err != nil {
		return err
	}
	s.publish(ctx, "account", "deleted", id)
	return nil
}

// CreateTransaction persists the rows a payload expands to and returns them.
// A transfer expands to two legs sharing a transfer id, written in the same
// changeset. All other kinds produce a single signed row.
func (s *LedgerService) CreateTransaction(ctx context.Context, p TransactionPayload) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.expandPayload(p)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, store.Changeset{PutTransactions: rows}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		slog.DebugContext(ctx, "Transaction persisted",
			"transaction_id", r.ID,
			"account_id", r.AccountID,
			"amount_eur", r.Amount.Euros())
		s.publish(ctx, "transaction", "created", r.ID)
	}
	return rows, nil
}

// expandPayload turns a payload into the persisted rows it stands for. Callers
// hold the lock; account references are checked against the in-memory set.
func (s *LedgerService) expandPayload(p TransactionPayload) ([]core.Transaction, error) {
	if p.Amount.Cents <= 0 {
		return nil, core.ErrInvalidAmount
	}
	source := s.accountByID(p.AccountID)
	if source == nil {
		return nil, core.ErrUnknownAccount
	}

	if p.Kind == core.Transfer {
		if p.DestinationAccountID == "" {
			return nil, core.ErrMissingDestination
		}
		if p.DestinationAccountID == p.AccountID {
			return nil, core.ErrSameAccount
		}
		dest := s.accountByID(p.DestinationAccountID)
		if dest == nil {
			return nil, core.ErrUnknownAccount
		}
		return buildTransferLegs(p, *source, *dest)
	}

	t := core.Transaction{
		ID:        uuid.NewString(),
		AccountID: p.AccountID,
		Name:      p.Name,
		Category:  p.Category,
		Date:      p.Date,
		Amount:    signedAmount(p.Kind, p.Amount),
		Kind:      p.Kind,
	}
	if p.IsRecurring {
		t.IsRecurring = true
		t.BillingDay = p.BillingDay
		t.Frequency = p.Frequency
		t.Category = core.CategoryRecurring
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []core.Transaction{t}, nil
}

// buildTransferLegs produces the paired rows for a transfer payload. The
// outgoing leg carries the negative amount, the incoming leg the positive one;
// both share a fresh transfer id.
func buildTransferLegs(p TransactionPayload, source, dest core.Account) ([]core.Transaction, error) {
	transferID := uuid.NewString()

	out := core.Transaction{
		ID:         uuid.NewString(),
		AccountID:  source.ID,
		Name:       p.Name,
		Category:   core.CategoryTransfer,
		Date:       p.Date,
		Amount:     p.Amount.Neg(),
		Kind:       core.Transfer,
		TransferID: transferID,
	}
	in := core.Transaction{
		ID:         uuid.NewString(),
		AccountID:  dest.ID,
		Name:       p.Name,
		Category:   core.CategoryTransfer,
		Date:       p.Date,
		Amount:     p.Amount,
		Kind:       core.Transfer,
		TransferID: transferID,
	}
	if p.Name == "" {
		out.Name = "Übertrag an " + dest.Title
		in.Name = "Übertrag von " + source.Title
	}
	if p.IsRecurring {
		for _, leg := range []*core.Transaction{&out, &in} {
			leg.IsRecurring = true
			leg.BillingDay = p.BillingDay
			leg.Frequency = p.Frequency
			leg.Category = core.CategoryRecurring
		}
	}
	for _, leg := range []core.Transaction{out, in} {
		if err := leg.Validate(); err != nil {
			return nil, err
		}
	}
	return []core.Transaction{out, in}, nil
}

// DeleteTransaction removes a row and whatever hangs off it. Occurrence ids
// resolve to their template; deleting a template historizes the occurrences it
// has already produced into standalone rows before the template goes. Transfer
// legs always leave in pairs. Unknown ids are a no-op.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if templateID, ok := core.ParseOccurrenceID(id); ok {
		id = templateID
	}
	row := s.transactionByID(id)
	if row == nil {
		return nil
	}

	var cs store.Changeset
	switch {
	case row.IsTemplate():
		cs = s.retireTemplate(*row)
	case row.TransferID != "":
		cs.DeleteTransactions = s.transferLegIDs(row.TransferID)
	default:
		cs.DeleteTransactions = []string{row.ID}
	}

	if err := s.commit(ctx, cs); err != nil {
		return err
	}
	s.publish(ctx, "transaction", "deleted", id)
	return nil
}

// retireTemplate builds the changeset that deletes a template after freezing
// its past occurrences, reference month included, into plain rows. Historized
// rows get fresh ids so they behave like any hand-entered row afterwards. For
// a recurring transfer both leg templates retire together and each historized
// month keeps its legs paired under a fresh transfer id.
func (s *LedgerService) retireTemplate(tpl core.Transaction) store.Changeset {
	referenceDate := core.DateOf(s.now())
	cs := store.Changeset{DeleteTransactions: []string{tpl.ID}}

	var partner *core.Transaction
	if tpl.TransferID != "" {
		for i := range s.transactions {
			t := &s.transactions[i]
			if t.TransferID == tpl.TransferID && t.ID != tpl.ID {
				partner = t
				break
			}
		}
	}

	past := occurrencesThrough(tpl, referenceDate)
	if partner == nil {
		for _, occ := range past {
			cs.PutTransactions = append(cs.PutTransactions, historize(occ, ""))
		}
		return cs
	}

	cs.DeleteTransactions = append(cs.DeleteTransactions, partner.ID)
	partnerPast := occurrencesThrough(*partner, referenceDate)
	for i, occ := range past {
		transferID := uuid.NewString()
		cs.PutTransactions = append(cs.PutTransactions, historize(occ, transferID))
		if i < len(partnerPast) {
			cs.PutTransactions = append(cs.PutTransactions, historize(partnerPast[i], transferID))
		}
	}
	return cs
}

// historize freezes a materialized occurrence into a standalone persisted row.
// The id must be fresh: keeping the occurrence id would route a later delete
// back to a template that no longer exists.
func historize(occ core.Transaction, transferID string) core.Transaction {
	occ.ID = uuid.NewString()
	occ.TemplateID = ""
	occ.IsFuture = false
	occ.IsRecurring = false
	occ.BillingDay = 0
	occ.Frequency = ""
	occ.ValidUntil = core.Date{}
	if occ.Kind == core.Transfer {
		occ.TransferID = transferID
	}
	return occ
}

// Import replaces both collections with the snapshot in one atomic step.
func (s *LedgerService) Import(ctx context.Context, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cs := store.Changeset{
		ReplaceAll:      true,
		PutAccounts:     snap.Accounts,
		PutTransactions: snap.Transactions,
	}
	if err := s.store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("apply changeset: %w", err)
	}
	s.accounts = make([]core.Account, len(snap.Accounts))
	copy(s.accounts, snap.Accounts)
	s.transactions = make([]core.Transaction, len(snap.Transactions))
	copy(s.transactions, snap.Transactions)
	s.version++
	s.publish(ctx, "snapshot", "imported", "")
	return nil
}

// Export returns a copy of the persisted state. Materialized occurrences are
// never part of it; a re-import followed by materialization reproduces the
// same ledger view.
func (s *LedgerService) Export(context.Context) core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := core.Snapshot{
		Accounts:     make([]core.Account, len(s.accounts)),
		Transactions: make([]core.Transaction, len(s.transactions)),
	}
	copy(snap.Accounts, s.accounts)
	copy(snap.Transactions, s.transactions)
	return snap
}

// commit applies a changeset and, only on success, folds it into the
// in-memory state. Callers hold the lock.
func (s *LedgerService) commit(ctx context.Context, cs store.Changeset) error {
	if cs.Empty() {
		return nil
	}
	if err := s.store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("apply changeset: %w", err)
	}

	for _, id := range cs.DeleteTransactions {
		s.transactions = removeByID(s.transactions, id, func(t core.Transaction) string { return t.ID })
	}
	for _, id := range cs.DeleteAccounts {
		s.accounts = removeByID(s.accounts, id, func(a core.Account) string { return a.ID })
	}
	for _, t := range cs.PutTransactions {
		s.transactions = upsertByID(s.transactions, t, func(t core.Transaction) string { return t.ID })
	}
	for _, a := range cs.PutAccounts {
		s.accounts = upsertByID(s.accounts, a, func(a core.Account) string { return a.ID })
	}
	s.version++
	return nil
}

func (s *LedgerService) publish(ctx context.Context, entity, action, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerChanged(ctx, entity, action, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"entity", entity, "action", action, "id", id, "error", err)
	}
}

func (s *LedgerService) accountByID(id string) *core.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}
	return nil
}

func (s *LedgerService) transactionByID(id string) *core.Transaction {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			return &s.transactions[i]
		}
	}
	return nil
}

// transferLegIDs lists every row sharing a transfer id. Normally two legs;
// whatever is actually present is deleted, which also heals a half pair.
func (s *LedgerService) transferLegIDs(transferID string) []string {
	var ids []string
	for _, t := range s.transactions {
		if t.TransferID == transferID {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func signedAmount(kind core.Kind, m core.Money) core.Money {
	if kind == core.Expense {
		return core.Money{Cents: -m.Abs()}
	}
	return core.Money{Cents: m.Abs()}
}

// sameSign carries an existing row's direction over to a new magnitude, which
// is how amount edits keep outflows outflows. Covers transfer legs, where
// Kind alone does not determine the sign.
func sameSign(existing, magnitude core.Money) core.Money {
	if existing.Cents < 0 {
		return core.Money{Cents: -magnitude.Abs()}
	}
	return core.Money{Cents: magnitude.Abs()}
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	for i := range items {
		if key(items[i]) == id {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func upsertByID[T any](items []T, item T, key func(T) string) []T {
	for i := range items {
		if key(items[i]) == key(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}
