package worker

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"expenseflow/internal/amqp"
	"expenseflow/internal/cache"
	"expenseflow/internal/log"
)

// seenWindow bounds how long an announced id is remembered.
const seenWindow = 24 * time.Hour

// AuditWorker watches TransactionAppended events and flags ids announced
// more than once.
type AuditWorker struct {
	seen       *cache.LRUCache[*amqp.TransactionAppendedMessage]
	logger     *log.Logger
	processed  int64
	duplicates int64
}

// NewAuditWorker remembers up to capacity ids.
func NewAuditWorker(capacity int, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditWorker{
		seen:   cache.NewLRUCache[*amqp.TransactionAppendedMessage](capacity, seenWindow),
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the id window so it can be registered with a cache.Manager.
func (w *AuditWorker) Seen() cache.Cleaner { return w.seen }

// HandleAppendedMessage records msg. A duplicate is logged, never an error:
// the row is already in the sheet and requeueing would not help.
func (w *AuditWorker) HandleAppendedMessage(ctx context.Context, msg *amqp.TransactionAppendedMessage) error {
	atomic.AddInt64(&w.processed, 1)
	key := strconv.FormatInt(msg.ID, 10)

	if prev, ok := w.seen.Get(key); ok {
		atomic.AddInt64(&w.duplicates, 1)
		w.logger.WarnContext(ctx, "Transaction id assigned twice",
			log.FieldTransactionID, msg.ID,
			"first_category", prev.Category,
			"first_amount", prev.Amount,
			"first_at", prev.Timestamp,
			log.FieldCategory, msg.Category,
			log.FieldAmount, msg.Amount,
			log.FieldOperation, log.OpAudit)
		return nil
	}
	w.seen.Set(key, msg)
	w.logger.DebugContext(ctx, "Transaction announced",
		log.FieldTransactionID, msg.ID,
		log.FieldTransactionType, msg.TransactionType)
	return nil
}

// Stats returns how many messages were processed and how many repeated an id.
func (w *AuditWorker) Stats() (processed, duplicates int64) {
	return atomic.LoadInt64(&w.processed), atomic.LoadInt64(&w.duplicates)
}
