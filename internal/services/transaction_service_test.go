package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expenseflow/internal/amqp"
	"expenseflow/internal/core"
	"expenseflow/internal/sheets"
	"expenseflow/internal/sheets/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.TransactionAppendedMessage
	err  error
}

func (p *recordingPublisher) PublishTransactionAppended(_ context.Context, msg *amqp.TransactionAppendedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

// countingStore wraps a memory store and counts upstream calls.
type countingStore struct {
	*memory.Store
	lists, appends int
	listErr        error
	appendErr      error
}

func (c *countingStore) ListRows(ctx context.Context) ([][]string, error) {
	c.lists++
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Store.ListRows(ctx)
}

func (c *countingStore) AppendRow(ctx context.Context, row core.Row) error {
	c.appends++
	if c.appendErr != nil {
		return c.appendErr
	}
	return c.Store.AppendRow(ctx, row)
}

type failingAllocator struct{ err error }

func (f failingAllocator) NextID(context.Context) (int64, error) { return 0, f.err }

func validInput() core.TransactionInput {
	return core.TransactionInput{
		Date:            "01/01/2024",
		TransactionType: "Expense",
		Amount:          "50",
		Category:        "Food",
		IsRecurring:     "false",
	}
}

func TestCreateThenListOnEmptySheet(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, store, WithPublisher(pub), WithTimeout(time.Second))
	ctx := context.Background()

	id, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	txs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := core.Transaction{
		ID: "1", Date: "01/01/2024", TransactionType: core.Expense, Amount: 50, Category: "Food",
	}
	if len(txs) != 1 || txs[0] != want {
		t.Fatalf("List = %+v, want [%+v]", txs, want)
	}

	if len(pub.msgs) != 1 || pub.msgs[0].ID != 1 || pub.msgs[0].Category != "Food" {
		t.Fatalf("unexpected published messages: %+v", pub.msgs)
	}
}

func TestSequentialCreatesGetConsecutiveIDs(t *testing.T) {
	store := memory.New()
	svc := NewTransactionService(store, store)
	ctx := context.Background()

	for want := int64(1); want <= 2; want++ {
		id, err := svc.Create(ctx, validInput())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}
}

func TestCreateValidatesBeforeUpstream(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	svc := NewTransactionService(store, store)

	in := validInput()
	in.Amount = "-1"
	in.Category = ""
	_, err := svc.Create(context.Background(), in)

	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("problems = %v", verr.Problems)
	}
	if store.appends != 0 || store.Len() != 0 {
		t.Fatal("invalid input must not reach the store")
	}
}

func TestNotConfigured(t *testing.T) {
	svc := NewTransactionService(nil, nil)
	if svc.Configured() {
		t.Fatal("service without store should not be configured")
	}
	if _, err := svc.List(context.Background()); !errors.Is(err, core.ErrNotConfigured) {
		t.Fatalf("List err = %v", err)
	}
	if _, err := svc.Create(context.Background(), validInput()); !errors.Is(err, core.ErrNotConfigured) {
		t.Fatalf("Create err = %v", err)
	}
}

func TestUpstreamErrorsPropagate(t *testing.T) {
	upstream := &sheets.UpstreamError{Op: sheets.OpRead, Status: 403, Details: "denied"}

	store := &countingStore{Store: memory.New(), listErr: upstream}
	svc := NewTransactionService(store, store)
	_, err := svc.List(context.Background())
	if ue, ok := sheets.AsUpstream(err); !ok || ue.Status != 403 {
		t.Fatalf("List err = %v", err)
	}

	idErr := &sheets.UpstreamError{Op: sheets.OpReadIDs, Status: 500}
	svc = NewTransactionService(store, failingAllocator{err: idErr})
	_, err = svc.Create(context.Background(), validInput())
	if ue, ok := sheets.AsUpstream(err); !ok || ue.Op != sheets.OpReadIDs {
		t.Fatalf("Create err = %v", err)
	}
	if store.appends != 0 {
		t.Fatal("append must not run when the id lookup fails")
	}

	store = &countingStore{Store: memory.New(), appendErr: &sheets.UpstreamError{Op: sheets.OpAppend, Status: 400}}
	svc = NewTransactionService(store, store)
	_, err = svc.Create(context.Background(), validInput())
	if ue, ok := sheets.AsUpstream(err); !ok || ue.Op != sheets.OpAppend {
		t.Fatalf("Create err = %v", err)
	}
}

// unreadableIDs serves rows from a memory store but fails every id column
// read.
type unreadableIDs struct {
	*memory.Store
}

func (unreadableIDs) IDColumn(context.Context) ([]string, error) {
	return nil, &sheets.UpstreamError{Op: sheets.OpReadIDs, Status: 503, Details: "backend error"}
}

func TestUnreadableIDColumnAppendsWithIDOne(t *testing.T) {
	store := unreadableIDs{Store: memory.New([]string{"41", "01/01/2024", "Expense", "5", "Food"})}
	svc := NewTransactionService(store, sheets.ColumnAllocator{Reader: store})

	id, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}
	rows, _ := store.ListRows(context.Background())
	if len(rows) != 2 || rows[1][0] != "1" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, store, WithPublisher(pub))

	if _, err := svc.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if store.Len() != 1 {
		t.Fatal("row should be appended even when publishing fails")
	}
}

func TestListDropsShortRows(t *testing.T) {
	store := memory.New(
		[]string{"1", "01/01/2024", "Income", "100"},
		[]string{"2", "bad"},
		[]string{"3", "03/01/2024", "Expense", "abc", "Food"},
	)
	svc := NewTransactionService(store, store)
	txs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txs) != 2 || txs[1].Amount != 0 {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}
