package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expenseflow/internal/core"
)

type fakeProxy struct {
	gets, posts atomic.Int64
	mu          sync.Mutex
	txs         []core.Transaction
	release     chan struct{}
	postStatus  int
	postBody    string
}

func (p *fakeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		p.gets.Add(1)
		if p.release != nil {
			<-p.release
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"transactions": p.txs})
	case http.MethodPost:
		p.posts.Add(1)
		if p.postStatus != 0 {
			w.WriteHeader(p.postStatus)
			_, _ = w.Write([]byte(p.postBody))
			return
		}
		var in core.TransactionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.txs = append(p.txs, core.Transaction{ID: "x", Category: in.Category})
		p.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

func validInput() core.TransactionInput {
	return core.TransactionInput{
		Date: "01/01/2024", TransactionType: "Expense", Amount: "12", Category: "Food", IsRecurring: "false",
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8081", "ftp://host/"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestListSharesConcurrentReads(t *testing.T) {
	proxy := &fakeProxy{release: make(chan struct{}), txs: []core.Transaction{{ID: "1"}}}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txs, err := c.List(context.Background())
			if err == nil && len(txs) != 1 {
				err = errors.New("unexpected length")
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(proxy.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if got := proxy.gets.Load(); got != 1 {
		t.Fatalf("upstream GETs = %d, want 1", got)
	}
}

func TestListMemoExpires(t *testing.T) {
	proxy := &fakeProxy{}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	c, _ := New(srv.URL, WithCacheTTL(15*time.Second), WithClock(clock))

	ctx := context.Background()
	txs, err := c.List(ctx)
	if err != nil || txs == nil {
		t.Fatalf("List = %v, %v", txs, err)
	}
	_, _ = c.List(ctx)
	if proxy.gets.Load() != 1 {
		t.Fatalf("memo not used, gets = %d", proxy.gets.Load())
	}

	mu.Lock()
	now = now.Add(15 * time.Second)
	mu.Unlock()
	_, _ = c.List(ctx)
	if proxy.gets.Load() != 2 {
		t.Fatalf("memo should expire, gets = %d", proxy.gets.Load())
	}
}

func TestListReturnsCopies(t *testing.T) {
	proxy := &fakeProxy{txs: []core.Transaction{{ID: "1", Category: "Food"}}}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	c, _ := New(srv.URL)
	first, _ := c.List(context.Background())
	first[0].Category = "mutated"
	second, _ := c.List(context.Background())
	if second[0].Category != "Food" {
		t.Fatal("memoised list was mutated through a returned slice")
	}
}

func TestAddInvalidatesMemo(t *testing.T) {
	proxy := &fakeProxy{}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	c, _ := New(srv.URL)
	ctx := context.Background()
	if txs, _ := c.List(ctx); len(txs) != 0 {
		t.Fatalf("expected empty list, got %v", txs)
	}
	if err := c.Add(ctx, validInput()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	txs, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || proxy.gets.Load() != 2 {
		t.Fatalf("txs=%v gets=%d", txs, proxy.gets.Load())
	}
}

func TestAddValidatesLocally(t *testing.T) {
	proxy := &fakeProxy{}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	c, _ := New(srv.URL)
	in := validInput()
	in.Amount = "0"
	err := c.Add(context.Background(), in)

	var verr *core.ValidationError
	if !errors.As(err, &verr) || !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if proxy.posts.Load() != 0 {
		t.Fatal("invalid input reached the network")
	}
}

func TestAddBoundsOptionalFields(t *testing.T) {
	proxy := &fakeProxy{}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	c, _ := New(srv.URL)
	in := validInput()
	in.Description = strings.Repeat("x", 201)
	err := c.Add(context.Background(), in)

	var verr *core.ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 1 || verr.Problems[0] != "description must be <= 200 characters" {
		t.Fatalf("expected description bound, got %v", err)
	}
	if proxy.posts.Load() != 0 {
		t.Fatal("invalid input reached the network")
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		message  string
		upstream int
		details  []string
	}{
		{"validation", 400, `{"error":"Invalid payload","details":["date is required"]}`, "Invalid payload", 0, []string{"date is required"}},
		{"upstream", 500, `{"error":"Failed to append to sheet","status":403,"details":"denied"}`, "Failed to append to sheet", 403, []string{"denied"}},
		{"plain text", 502, `bad gateway`, "bad gateway", 0, nil},
		{"empty", 503, ``, "Service Unavailable", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := &fakeProxy{postStatus: tt.status, postBody: tt.body}
			srv := httptest.NewServer(proxy)
			defer srv.Close()

			c, _ := New(srv.URL)
			err := c.Add(context.Background(), validInput())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message || apiErr.UpstreamStatus != tt.upstream {
				t.Fatalf("apiErr = %+v", apiErr)
			}
			if len(apiErr.Details) != len(tt.details) {
				t.Fatalf("details = %v, want %v", apiErr.Details, tt.details)
			}
		})
	}
}

func TestListErrorKeepsNothingCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to read from sheet","status":500,"details":""}`))
			return
		}
		_, _ = w.Write([]byte(`{"transactions":[]}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fail.Store(false)
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List after recovery: %v", err)
	}
}
