package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aurimea/internal/amqp"
	"aurimea/internal/core"
	"aurimea/internal/store/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	err := st.BulkAdd(context.Background(),
		[]core.Account{{ID: "acc-1", Title: "Girokonto", IncludeInTotals: true}},
		[]core.Transaction{{
			ID: "row-1", AccountID: "acc-1", Name: "Einkauf", Category: "Lebensmittel",
			Date: core.NewDate(2025, 6, 1), Amount: core.Money{Cents: -2350}, Kind: core.Expense,
		}})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return st
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWorker(seedStore(t), dir)

	path, err := w.WriteSnapshot(context.Background())
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(snap.Accounts) != 1 || len(snap.Transactions) != 1 {
		t.Errorf("snapshot = %d accounts, %d transactions; want 1 and 1",
			len(snap.Accounts), len(snap.Transactions))
	}
	if snap.Transactions[0].Amount.Cents != -2350 {
		t.Errorf("amount = %d, want -2350", snap.Transactions[0].Amount.Cents)
	}
}

func TestWriteSnapshotLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWorker(seedStore(t), dir)

	if _, err := w.WriteSnapshot(context.Background()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestPruneKeepsNewestSnapshots(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWorker(seedStore(t), dir)
	w.keep = 3

	// Distinct timestamps so every write lands in its own file.
	base := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		w.now = func() time.Time { return tick }
		if _, err := w.WriteSnapshot(context.Background()); err != nil {
			t.Fatalf("WriteSnapshot %d: %v", i, err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "ledger-*.json"))
	if len(matches) != 3 {
		t.Fatalf("%d snapshots kept, want 3", len(matches))
	}
	// The newest must be among the survivors.
	newest := filepath.Join(dir, "ledger-20250620-120004.json")
	if _, err := os.Stat(newest); err != nil {
		t.Errorf("newest snapshot missing: %v", err)
	}
}

func TestHandleLedgerChangedWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWorker(seedStore(t), dir)

	msg := amqp.NewLedgerChangedMessage("transaction", "created", "row-1")
	if err := w.HandleLedgerChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerChanged: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "ledger-*.json"))
	if len(matches) != 1 {
		t.Errorf("%d snapshots written, want 1", len(matches))
	}
}
