// Package store defines the persistence ports the ledger engine writes
// through. Two collections exist, accounts and transactions; materialized
// occurrences are never stored.
package store

import (
	"context"

	"aurimea/internal/core"
)

type (
	// Store is durable key-value persistence keyed by id. Apply is the only
	// entry point the mutation engine uses for multi-row edits: a changeset
	// commits completely or not at all, which is what keeps transfer pairs,
	// splits and delete-and-historize free of partial states.
	Store interface {
		Accounts(ctx context.Context) ([]core.Account, error)
		Transactions(ctx context.Context) ([]core.Transaction, error)

		AddAccount(ctx context.Context, a core.Account) error
		PutAccount(ctx context.Context, a core.Account) error
		DeleteAccount(ctx context.Context, id string) error

		AddTransaction(ctx context.Context, t core.Transaction) error
		PutTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error

		Apply(ctx context.Context, cs Changeset) error

		// BulkAdd seeds both collections; Clear empties them. Import is
		// Clear+BulkAdd inside one Apply-equivalent boundary.
		BulkAdd(ctx context.Context, accounts []core.Account, transactions []core.Transaction) error
		Clear(ctx context.Context) error

		Close() error
	}

	// Changeset is an atomic batch of mutations. Puts are upserts; deletes of
	// absent ids are no-ops, matching the engine's idempotent delete.
	Changeset struct {
		PutAccounts        []core.Account
		DeleteAccounts     []string
		PutTransactions    []core.Transaction
		DeleteTransactions []string
		// ReplaceAll clears both collections before the puts run (import).
		ReplaceAll bool
	}
)

// Empty reports whether applying the changeset would do nothing.
func (cs Changeset) Empty() bool {
	return !cs.ReplaceAll &&
		len(cs.PutAccounts) == 0 && len(cs.DeleteAccounts) == 0 &&
		len(cs.PutTransactions) == 0 && len(cs.DeleteTransactions) == 0
}
