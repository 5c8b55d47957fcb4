// Package memory provides an in-memory Store used as the default backend and
// by tests. Snapshots on disk can seed it so a dev setup survives restarts.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"aurimea/internal/core"
	"aurimea/internal/store"
)

type Store struct {
	mu           sync.Mutex
	accounts     []core.Account
	transactions []core.Transaction
}

func New() *Store {
	return &Store{}
}

// NewFromFile seeds the store from a snapshot JSON document if one exists at
// path; a missing or unreadable file yields an empty store.
func NewFromFile(path string) *Store {
	s := New()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return s
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return s
	}
	s.accounts = snap.Accounts
	s.transactions = snap.Transactions
	return s
}

func (s *Store) Accounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) Transactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...), nil
}

func (s *Store) AddAccount(ctx context.Context, a core.Account) error {
	return s.Apply(ctx, store.Changeset{PutAccounts: []core.Account{a}})
}

func (s *Store) PutAccount(ctx context.Context, a core.Account) error {
	return s.Apply(ctx, store.Changeset{PutAccounts: []core.Account{a}})
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.Apply(ctx, store.Changeset{DeleteAccounts: []string{id}})
}

func (s *Store) AddTransaction(ctx context.Context, t core.Transaction) error {
	return s.Apply(ctx, store.Changeset{PutTransactions: []core.Transaction{t}})
}

func (s *Store) PutTransaction(ctx context.Context, t core.Transaction) error {
	return s.Apply(ctx, store.Changeset{PutTransactions: []core.Transaction{t}})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.Apply(ctx, store.Changeset{DeleteTransactions: []string{id}})
}

// Apply commits the whole changeset under one lock acquisition; nothing below
// can fail halfway, so the all-or-nothing contract holds trivially.
func (s *Store) Apply(_ context.Context, cs store.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs.ReplaceAll {
		s.accounts = nil
		s.transactions = nil
	}
	for _, id := range cs.DeleteAccounts {
		s.accounts = deleteByID(s.accounts, func(a core.Account) string { return a.ID }, id)
	}
	for _, id := range cs.DeleteTransactions {
		s.transactions = deleteByID(s.transactions, func(t core.Transaction) string { return t.ID }, id)
	}
	for _, a := range cs.PutAccounts {
		s.accounts = upsert(s.accounts, func(x core.Account) string { return x.ID }, a)
	}
	for _, t := range cs.PutTransactions {
		s.transactions = upsert(s.transactions, func(x core.Transaction) string { return x.ID }, t)
	}
	return nil
}

func (s *Store) BulkAdd(_ context.Context, accounts []core.Account, transactions []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, accounts...)
	s.transactions = append(s.transactions, transactions...)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = nil
	s.transactions = nil
	return nil
}

func (s *Store) Close() error { return nil }

func upsert[T any](items []T, id func(T) string, item T) []T {
	key := id(item)
	for i := range items {
		if id(items[i]) == key {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func deleteByID[T any](items []T, id func(T) string, key string) []T {
	for i := range items {
		if id(items[i]) == key {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}
