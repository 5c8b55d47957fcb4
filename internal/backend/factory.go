package backend

import (
	"context"
	"fmt"
	"log/slog"

	"aurimea/internal/storage"
	"aurimea/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new store factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(_ context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteStore(config)
	case MemoryBackend:
		return f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("SQLite store created", "db_path", config.SQLiteDBPath)
	return &Result{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*Result, error) {
	var st *memory.Store
	if config.SnapshotFile != "" {
		st = memory.NewFromFile(config.SnapshotFile)
		f.logger.Info("Memory store seeded from snapshot", "snapshot_file", config.SnapshotFile)
	} else {
		st = memory.New()
		f.logger.Info("Memory store created empty")
	}

	return &Result{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}
