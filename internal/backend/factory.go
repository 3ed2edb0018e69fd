package backend

import (
	"context"
	"errors"
	"fmt"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/sheets"
	gsheet "expenseflow/internal/sheets/google"
	"expenseflow/internal/sheets/memory"
	"expenseflow/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// idSource is what both repositories offer: rows plus the id column.
type idSource interface {
	sheets.RowStore
	sheets.IDColumnReader
	sheets.IDAllocator
}

// CreateBackend implements Factory.CreateBackend. An unconfigured sheets
// backend is not an error: the result is returned with a nil Store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		src      idSource
		sequence string
		err      error
	)
	switch config.Type {
	case SheetsBackend:
		var cli *gsheet.Client
		cli, err = f.createSheetsClient(ctx, config)
		if errors.Is(err, core.ErrNotConfigured) {
			f.logger.ErrorContext(ctx, "Google Sheets env vars are not set or sheet ID is empty; requests will fail until configured")
			return &BackendResult{Describe: "sheets (not configured)"}, nil
		}
		if err != nil {
			return nil, err
		}
		src = cli
		sequence = gsheet.ResolveSpreadsheetID(config.SpreadsheetID) + "/" + cli.SheetName()
	case MemoryBackend:
		src, err = f.createMemoryStore(config)
		if err != nil {
			return nil, err
		}
		sequence = "memory"
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result := &BackendResult{Store: src, IDs: src, Describe: config.Type.String()}
	if config.Allocator == SQLiteAllocator {
		seq, err := storage.OpenSequence(ctx, config.SQLiteDBPath, sequence, src, config.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize id sequence: %w", err)
		}
		result.IDs = seq
		result.Cleanup = seq.Close
		result.Describe += "+sqlite"
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"backend", config.Type.String(),
		"id_allocator", string(config.Allocator))
	return result, nil
}

func (f *DefaultFactory) createSheetsClient(ctx context.Context, config Config) (*gsheet.Client, error) {
	cli, err := gsheet.NewClient(ctx, gsheet.Config{
		APIKey:        config.APIKey,
		SpreadsheetID: config.SpreadsheetID,
		SheetName:     config.SheetName,
		Timeout:       config.UpstreamTimeout,
		Logger:        config.Logger,
	})
	if err != nil {
		if errors.Is(err, core.ErrNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*memory.Store, error) {
	if config.MemorySeedFile == "" {
		f.logger.Info("Initialized empty memory backend")
		return memory.New(), nil
	}
	store, err := memory.NewFromCSV(config.MemorySeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.MemorySeedFile, log.FieldRows, store.Len())
	return store, nil
}
