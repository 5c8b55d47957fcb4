// Package storage is the SQLite-backed implementation of the store ports.
// Rows map one to one onto the persisted transaction model; materialized
// occurrences never reach this layer.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aurimea/internal/core"
	"aurimea/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Accounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, include_in_totals FROM accounts ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Title, &a.IncludeInTotals); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) Transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, name, category, date, amount_cents, kind,
		        transfer_id, is_recurring, billing_day, frequency, valid_until
		 FROM transactions ORDER BY date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *SQLiteRepository) AddAccount(ctx context.Context, a core.Account) error {
	return r.Apply(ctx, store.Changeset{PutAccounts: []core.Account{a}})
}

func (r *SQLiteRepository) PutAccount(ctx context.Context, a core.Account) error {
	return r.Apply(ctx, store.Changeset{PutAccounts: []core.Account{a}})
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.Apply(ctx, store.Changeset{DeleteAccounts: []string{id}})
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) error {
	return r.Apply(ctx, store.Changeset{PutTransactions: []core.Transaction{t}})
}

func (r *SQLiteRepository) PutTransaction(ctx context.Context, t core.Transaction) error {
	return r.Apply(ctx, store.Changeset{PutTransactions: []core.Transaction{t}})
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.Apply(ctx, store.Changeset{DeleteTransactions: []string{id}})
}

// Apply runs the whole changeset inside one SQL transaction. Deletes run
// before puts so a changeset may delete an id and re-insert it.
func (r *SQLiteRepository) Apply(ctx context.Context, cs store.Changeset) error {
	if cs.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if cs.ReplaceAll {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
	}

	for _, id := range cs.DeleteTransactions {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
	}
	for _, id := range cs.DeleteAccounts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account %s: %w", id, err)
		}
	}
	for _, a := range cs.PutAccounts {
		if err := upsertAccount(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, t := range cs.PutTransactions {
		if err := upsertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}

	slog.DebugContext(ctx, "Changeset applied",
		"put_accounts", len(cs.PutAccounts),
		"deleted_accounts", len(cs.DeleteAccounts),
		"put_transactions", len(cs.PutTransactions),
		"deleted_transactions", len(cs.DeleteTransactions),
		"replace_all", cs.ReplaceAll)
	return nil
}

func (r *SQLiteRepository) BulkAdd(ctx context.Context, accounts []core.Account, transactions []core.Transaction) error {
	return r.Apply(ctx, store.Changeset{
		PutAccounts:     accounts,
		PutTransactions: transactions,
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return r.Apply(ctx, store.Changeset{ReplaceAll: true})
}

func upsertAccount(ctx context.Context, tx *sql.Tx, a core.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, title, include_in_totals) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title,
		                               include_in_totals = excluded.include_in_totals`,
		a.ID, a.Title, a.IncludeInTotals)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

func upsertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	validUntil := ""
	if !t.ValidUntil.IsEmpty() {
		validUntil = t.ValidUntil.String()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, name, category, date, amount_cents,
		                           kind, transfer_id, is_recurring, billing_day, frequency, valid_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     account_id = excluded.account_id,
		     name = excluded.name,
		     category = excluded.category,
		     date = excluded.date,
		     amount_cents = excluded.amount_cents,
		     kind = excluded.kind,
		     transfer_id = excluded.transfer_id,
		     is_recurring = excluded.is_recurring,
		     billing_day = excluded.billing_day,
		     frequency = excluded.frequency,
		     valid_until = excluded.valid_until`,
		t.ID, t.AccountID, t.Name, t.Category, t.Date.String(), t.Amount.Cents,
		string(t.Kind), t.TransferID, t.IsRecurring, t.BillingDay, string(t.Frequency), validUntil)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		t           core.Transaction
		date        string
		amountCents int64
		kind        string
		frequency   string
		validUntil  string
	)
	if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.Category, &date, &amountCents,
		&kind, &t.TransferID, &t.IsRecurring, &t.BillingDay, &frequency, &validUntil); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of transaction %s: %w", t.ID, err)
	}
	t.Date = d
	t.Amount = core.Money{Cents: amountCents}
	t.Kind = core.Kind(kind)
	t.Frequency = core.Frequency(frequency)
	if validUntil != "" {
		vu, err := core.ParseDate(validUntil)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse validUntil of transaction %s: %w", t.ID, err)
		}
		t.ValidUntil = vu
	}
	return t, nil
}
