package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/sheets"
)

// AuditProcessorConfig holds configuration for the audit processor.
type AuditProcessorConfig struct {
	// PollInterval is how often the sheet is scanned (default: 5m)
	PollInterval time.Duration
}

func DefaultAuditProcessorConfig() AuditProcessorConfig {
	return AuditProcessorConfig{PollInterval: 5 * time.Minute}
}

// AuditReport is the outcome of one sheet scan.
type AuditReport struct {
	Rows       int
	Duplicates []core.IDCount
	ScannedAt  time.Time
}

// AuditProcessor periodically scans the sheet for rows sharing an id, the
// visible effect of concurrent appends racing on the id column.
type AuditProcessor struct {
	store  sheets.RowStore
	config AuditProcessorConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	last    AuditReport
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAuditProcessor(store sheets.RowStore, config AuditProcessorConfig, logger *log.Logger) *AuditProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultAuditProcessorConfig().PollInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditProcessor{
		store:  store,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Scan reads the sheet once and reports duplicate ids.
func (p *AuditProcessor) Scan(ctx context.Context) (AuditReport, error) {
	rows, err := p.store.ListRows(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("scan sheet: %w", err)
	}
	txs := core.TransactionsFromRows(rows)
	report := AuditReport{
		Rows:       len(txs),
		Duplicates: core.DuplicateIDs(txs),
		ScannedAt:  time.Now().UTC(),
	}
	p.mu.Lock()
	p.last = report
	p.mu.Unlock()

	for _, d := range report.Duplicates {
		p.logger.WarnContext(ctx, "Duplicate transaction id in sheet",
			log.FieldTransactionID, d.ID, "count", d.Count, log.FieldOperation, log.OpAudit)
	}
	p.logger.DebugContext(ctx, "Sheet audited", log.FieldRows, report.Rows, "duplicates", len(report.Duplicates))
	return report, nil
}

// LastReport returns the result of the most recent successful scan.
func (p *AuditProcessor) LastReport() AuditReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Start begins the scan loop. Returns an error if already running.
func (p *AuditProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("audit processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Audit processor started", "poll_interval", p.config.PollInterval.String())
	return nil
}

// Stop stops the loop and waits for it, or for ctx.
func (p *AuditProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Audit processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *AuditProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AuditProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.scanAndLog(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scanAndLog(ctx)
		}
	}
}

func (p *AuditProcessor) scanAndLog(ctx context.Context) {
	if _, err := p.Scan(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Sheet audit failed", log.FieldError, err.Error())
	}
}
