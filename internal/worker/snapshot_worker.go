// Package worker contains the snapshot worker, a small consumer that turns
// ledger change notifications into JSON backups of the persisted state.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"aurimea/internal/amqp"
	"aurimea/internal/core"
	"aurimea/internal/store"
)

// How many snapshot files to keep before the oldest are pruned.
const defaultKeepSnapshots = 20

// SnapshotWorker writes point-in-time backups of the persisted ledger. It
// reads the store directly, so a backup reflects what is actually on disk,
// not what some process believes is on disk.
type SnapshotWorker struct {
	store store.Store
	dir   string
	keep  int

	now func() time.Time
}

func NewSnapshotWorker(st store.Store, dir string) *SnapshotWorker {
	return &SnapshotWorker{
		store: st,
		dir:   dir,
		keep:  defaultKeepSnapshots,
		now:   time.Now,
	}
}

// HandleLedgerChanged processes a single change notification by writing a
// fresh snapshot. The message content only matters for logging; the snapshot
// is always the full state.
func (w *SnapshotWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"entity", msg.Entity,
		"action", msg.Action,
		"id", msg.ID)

	if _, err := w.WriteSnapshot(ctx); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// WriteSnapshot dumps both collections to a timestamped JSON file and returns
// its path. The file is written to a temp name first and renamed, so a
// half-written backup never carries the snapshot name.
func (w *SnapshotWorker) WriteSnapshot(ctx context.Context) (string, error) {
	accounts, err := w.store.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("read accounts: %w", err)
	}
	transactions, err := w.store.Transactions(ctx)
	if err != nil {
		return "", fmt.Errorf("read transactions: %w", err)
	}

	snap := core.Snapshot{Accounts: accounts, Transactions: transactions}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("ledger-%s.json", w.now().UTC().Format("20060102-150405"))
	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename snapshot file: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot written",
		"path", path,
		"accounts", len(accounts),
		"transactions", len(transactions))

	if err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Failed to prune old snapshots", "error", err)
	}
	return path, nil
}

// prune deletes the oldest snapshots beyond the retention count. Names embed
// a sortable timestamp, so lexical order is chronological order.
func (w *SnapshotWorker) prune() error {
	matches, err := filepath.Glob(filepath.Join(w.dir, "ledger-*.json"))
	if err != nil {
		return err
	}
	if len(matches) <= w.keep {
		return nil
	}
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-w.keep] {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// Run writes snapshots on an interval until the context ends, as a fallback
// for missed change messages. An initial snapshot is written at startup to
// recover from worker downtime. Message-driven snapshots are wired separately
// via HandleLedgerChanged.
func (w *SnapshotWorker) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.WriteSnapshot(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup snapshot failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.WriteSnapshot(ctx); err != nil {
				slog.ErrorContext(ctx, "Interval snapshot failed", "error", err)
			}
		}
	}
}
