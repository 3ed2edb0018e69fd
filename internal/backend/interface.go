package backend

import (
	"context"
	"time"

	"expenseflow/internal/log"
	"expenseflow/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the repository the proxy talks to. Store and IDs are
// nil when the spreadsheet is not configured; the service then rejects
// every request with a configuration error.
type BackendResult struct {
	Store sheets.RowStore
	IDs   sheets.IDAllocator
	// Describe names the concrete backend, for logs.
	Describe string
	Cleanup  CleanupFunc
}

// Configured reports whether the result can serve requests.
func (r *BackendResult) Configured() bool {
	return r != nil && r.Store != nil && r.IDs != nil
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type      BackendType
	Allocator AllocatorType

	// Google Sheets specific
	APIKey          string
	SpreadsheetID   string
	SheetName       string
	UpstreamTimeout time.Duration

	// Memory backend specific
	MemorySeedFile string

	// SQLite allocator specific
	SQLiteDBPath string

	Logger *log.Logger
}

// BackendType represents the type of backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// AllocatorType selects how the next transaction id is computed.
type AllocatorType string

const (
	// SheetAllocator reads the id column before each append.
	SheetAllocator AllocatorType = "sheet"
	// SQLiteAllocator keeps a local counter floored by the id column.
	SQLiteAllocator AllocatorType = "sqlite"
)

func (at AllocatorType) IsValid() bool {
	return at == SheetAllocator || at == SQLiteAllocator
}
