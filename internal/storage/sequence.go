// Package storage keeps the optional local id sequence used to hand out
// transaction ids without the read-then-append race of the sheet column.
//
// Only the counter lives here. Transactions are never stored locally.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	ports "expenseflow/internal/sheets"

	_ "modernc.org/sqlite"
)

// allocateSQL bumps the counter to max(stored+1, floor) in one statement.
const allocateSQL = `
INSERT INTO id_sequence (name, last_id) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET
    last_id = MAX(id_sequence.last_id + 1, excluded.last_id),
    updated_at = CURRENT_TIMESTAMP
RETURNING last_id`

const recordSQL = `INSERT INTO id_allocations (sequence, id, sheet_floor) VALUES (?, ?, ?)`

// Sequence allocates ids from a SQLite counter that never goes below the
// sheet's own last id plus one.
type Sequence struct {
	db     *sql.DB
	name   string
	column ports.IDColumnReader
	logger *log.Logger
}

var _ ports.IDAllocator = (*Sequence)(nil)

// OpenSequence opens (creating if needed) the database at dbPath, migrates
// it and returns the sequence called name. column supplies the sheet ids
// used as the lower bound.
func OpenSequence(ctx context.Context, dbPath, name string, column ports.IDColumnReader, logger *log.Logger) (*Sequence, error) {
	if column == nil {
		return nil, errors.New("sequence needs an id column reader")
	}
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.InfoContext(ctx, "ID sequence ready", "path", dbPath, "sequence", name)

	return &Sequence{db: db, name: name, column: column, logger: logger}, nil
}

// NextID reads the sheet id column, then atomically advances the counter.
// Concurrent callers sharing this database never receive the same id. An
// unreadable id column is returned as an error: without the sheet floor
// the counter could hand out an id already in the sheet.
func (s *Sequence) NextID(ctx context.Context) (int64, error) {
	col, err := s.column.IDColumn(ctx)
	if err != nil {
		return 0, err
	}
	floor := core.NextID(col)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, allocateSQL, s.name, floor).Scan(&id); err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, recordSQL, s.name, id, floor); err != nil {
		return 0, fmt.Errorf("record allocation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit allocation: %w", err)
	}

	s.logger.DebugContext(ctx, "ID allocated",
		log.FieldTransactionID, id, "sheet_floor", floor, log.FieldOperation, log.OpNextID)
	return id, nil
}

// Current returns the last allocated id, or 0 when none was handed out.
func (s *Sequence) Current(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT last_id FROM id_sequence WHERE name = ?`, s.name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return id, nil
}

// Allocations returns how many ids were handed out by this sequence.
func (s *Sequence) Allocations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM id_allocations WHERE sequence = ?`, s.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count allocations: %w", err)
	}
	return n, nil
}

func (s *Sequence) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
