package sheets

import (
	"context"
	"errors"
	"fmt"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
)

// Ports for outbound adapters.
type (
	// RowStore reads and appends positional transaction rows. Row 1 is the
	// header and is never returned nor written.
	RowStore interface {
		ListRows(ctx context.Context) ([][]string, error)
		AppendRow(ctx context.Context, row core.Row) error
	}

	// IDAllocator hands out the id for the next appended row.
	IDAllocator interface {
		NextID(ctx context.Context) (int64, error)
	}

	// IDColumnReader returns the raw id column (column A, below the header).
	IDColumnReader interface {
		IDColumn(ctx context.Context) ([]string, error)
	}
)

// Op names the upstream operation that failed.
type Op string

const (
	OpRead    Op = "read"
	OpReadIDs Op = "read_ids"
	OpAppend  Op = "append"
)

// MaxDetailsLen bounds the upstream body echoed back to callers.
const MaxDetailsLen = 300

// UpstreamError reports a failed call to the spreadsheet backend.
type UpstreamError struct {
	Op      Op
	Status  int
	Details string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		if e.Details == "" {
			return fmt.Sprintf("sheets %s failed (status %d)", e.Op, e.Status)
		}
		return fmt.Sprintf("sheets %s failed (status %d): %s", e.Op, e.Status, e.Details)
	}
	return fmt.Sprintf("sheets %s failed (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AsUpstream extracts an *UpstreamError from err.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Truncate cuts s to at most MaxDetailsLen bytes without splitting a rune.
func Truncate(s string) string {
	if len(s) <= MaxDetailsLen {
		return s
	}
	cut := MaxDetailsLen
	for cut > 0 && !runeStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func runeStart(b byte) bool { return b&0xC0 != 0x80 }

// ColumnAllocator derives ids from the id column: last value plus one.
// Two concurrent callers can read the same column and get the same id.
// A failed upstream read is logged and yields 1 so the append still runs;
// other errors, such as a cancelled context, are returned.
type ColumnAllocator struct {
	Reader IDColumnReader
	Logger *log.Logger
}

func (a ColumnAllocator) NextID(ctx context.Context) (int64, error) {
	col, err := a.Reader.IDColumn(ctx)
	if err != nil {
		ue, ok := AsUpstream(err)
		if !ok {
			return 0, err
		}
		logger := a.Logger
		if logger == nil {
			logger = log.Discard()
		}
		logger.WarnContext(ctx, "ID column unreadable, assigning id 1",
			log.FieldOperation, log.OpNextID,
			log.FieldUpstreamStatus, ue.Status,
			log.FieldError, ue.Error())
		return 1, nil
	}
	return core.NextID(col), nil
}
