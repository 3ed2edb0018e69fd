package services

import (
	"context"
	"fmt"
	"time"

	"expenseflow/internal/amqp"
	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/sheets"
)

// Publisher announces appended transactions. Implemented by *amqp.Client.
type Publisher interface {
	PublishTransactionAppended(ctx context.Context, msg *amqp.TransactionAppendedMessage) error
}

// TransactionService reads and appends transactions through a RowStore.
// It is stateless per call; concurrent Creates are not serialised unless
// the IDAllocator does it.
type TransactionService struct {
	store     sheets.RowStore
	ids       sheets.IDAllocator
	publisher Publisher
	timeout   time.Duration
	logger    *log.Logger
	events    *log.StructuredLogger
}

// Option configures a TransactionService.
type Option func(*TransactionService)

// WithPublisher enables TransactionAppended events.
func WithPublisher(p Publisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

// WithTimeout bounds every upstream call on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *TransactionService) { s.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(s *TransactionService) { s.logger = l }
}

// NewTransactionService builds the service. A nil store means the backend
// is not configured: every call then fails with core.ErrNotConfigured.
func NewTransactionService(store sheets.RowStore, ids sheets.IDAllocator, opts ...Option) *TransactionService {
	s := &TransactionService{store: store, ids: ids}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentTransactions)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Configured reports whether a backend is wired.
func (s *TransactionService) Configured() bool {
	return s != nil && s.store != nil && s.ids != nil
}

func (s *TransactionService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// List returns every usable row as a Transaction, in sheet order. The
// result is never nil.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	if !s.Configured() {
		return nil, core.ErrNotConfigured
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.store.ListRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return core.TransactionsFromRows(rows), nil
}

// Create validates in, assigns the next id and appends the row. Validation
// happens before any upstream call; a *core.ValidationError lists every
// problem found.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) (int64, error) {
	if !s.Configured() {
		return 0, core.ErrNotConfigured
	}
	if err := in.Check(); err != nil {
		return 0, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	id, err := s.ids.NextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}

	row := core.RowFromInput(id, in)
	if err := s.store.AppendRow(ctx, row); err != nil {
		return 0, fmt.Errorf("append row: %w", err)
	}

	s.events.LogTransactionAppended(ctx, id, row[2], row[3], row[4])
	s.publish(ctx, id, row)
	return id, nil
}

// publish is best effort: the row is already in the sheet.
func (s *TransactionService) publish(ctx context.Context, id int64, row core.Row) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewTransactionAppendedMessage(id, row[2], row[3], row[4], row[1])
	if err := s.publisher.PublishTransactionAppended(ctx, msg); err != nil {
		s.events.LogError(ctx, "Failed to publish transaction appended message", err,
			log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithTransaction(id, row[2], row[3], row[4]))
	}
}
