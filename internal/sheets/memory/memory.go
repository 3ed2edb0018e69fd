package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"expenseflow/internal/core"
	ports "expenseflow/internal/sheets"
)

// Store is an in-process stand-in for the spreadsheet tab. It keeps rows
// as positional cells exactly like the values API returns them.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var (
	_ ports.RowStore       = (*Store)(nil)
	_ ports.IDColumnReader = (*Store)(nil)
	_ ports.IDAllocator    = (*Store)(nil)
)

// New returns a store holding copies of the given rows.
func New(rows ...[]string) *Store {
	s := &Store{}
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	return s
}

// NewFromCSV seeds a store from a CSV file. A first line matching the
// sheet header is skipped, blank lines and lines starting with '#' too.
// A missing file yields an empty store.
func NewFromCSV(path string) (*Store, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	s := New()
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), core.Columns[0]) {
				continue
			}
		}
		s.rows = append(s.rows, rec)
	}
	return s, nil
}

// ListRows returns a copy of every stored row.
func (s *Store) ListRows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, append([]string(nil), r...))
	}
	return out, nil
}

// AppendRow stores the row after the last one.
func (s *Store) AppendRow(_ context.Context, row core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row[:])
	return nil
}

// IDColumn returns the first cell of every row.
func (s *Store) IDColumn(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for _, r := range s.rows {
		if len(r) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, r[0])
	}
	return out, nil
}

// NextID behaves like the spreadsheet allocator: last id plus one, read
// separately from the append.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	return ports.ColumnAllocator{Reader: s}.NextID(ctx)
}

// Len reports the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
