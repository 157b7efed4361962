package backend

import (
	"context"
	"fmt"

	applog "casa/internal/log"
	"casa/internal/storage"
	"casa/internal/store"
	"casa/internal/store/memory"
)

// Factory builds backends from configuration.
type Factory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// Create opens the backend named by cfg.Type.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, cfg)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *Factory) createSQLiteBackend(ctx context.Context, cfg Config) (*Result, error) {
	var opts []storage.Option
	if cfg.Now != nil {
		opts = append(opts, storage.WithClock(cfg.Now))
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)

	return &Result{
		Backend: repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *Factory) createMemoryBackend(ctx context.Context, cfg Config) (*Result, error) {
	dataDir := cfg.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	var opts []memory.Option
	if cfg.Now != nil {
		opts = append(opts, memory.WithClock(cfg.Now))
	}
	st := memory.NewFromFiles(dataDir, opts...)

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)

	return &Result{
		Backend: st,
		Ready:   func(context.Context) error { return nil },
		Cleanup: func() error { return nil },
	}, nil
}

var (
	_ store.Backend = (*storage.SQLiteRepository)(nil)
	_ store.Backend = (*memory.Store)(nil)
)
