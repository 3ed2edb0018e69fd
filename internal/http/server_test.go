package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expenseflow/internal/core"
	"expenseflow/internal/services"
	"expenseflow/internal/sheets"
	"expenseflow/internal/sheets/memory"
)

type failingStore struct {
	listErr, appendErr error
	appends            int
}

func (f *failingStore) ListRows(context.Context) ([][]string, error) { return nil, f.listErr }
func (f *failingStore) AppendRow(context.Context, core.Row) error {
	f.appends++
	return f.appendErr
}

type fixedIDs struct {
	id  int64
	err error
}

func (f fixedIDs) NextID(context.Context) (int64, error) { return f.id, f.err }

type panickingStore struct{}

func (panickingStore) ListRows(context.Context) ([][]string, error) { panic("boom") }
func (panickingStore) AppendRow(context.Context, core.Row) error   { return nil }

func newTestServer(t *testing.T, svc *services.TransactionService, cfg Config) http.Handler {
	t.Helper()
	srv := NewServer(":0", svc, cfg)
	t.Cleanup(func() { _ = srv.Close() })
	return srv.HTTPHandler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func assertCORS(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q (status %d)", got, rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
		t.Fatalf("Allow-Headers = %q", got)
	}
}

const validBody = `{"date":"01/01/2024","transactionType":"Expense","amount":"50","category":"Food","isRecurring":false}`

func TestPostThenGetOnEmptySheet(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})

	rr := do(h, http.MethodPost, "/", validBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST status = %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != `{"success":true}` {
		t.Fatalf("POST body = %s", rr.Body.String())
	}
	assertCORS(t, rr)

	rr = do(h, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rr.Code)
	}
	var out listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Transactions) != 1 {
		t.Fatalf("transactions = %+v", out.Transactions)
	}
	got := out.Transactions[0]
	if got.ID != "1" || got.Amount != 50 || got.IsRecurring || got.TransactionType != core.Expense {
		t.Fatalf("unexpected transaction %+v", got)
	}
}

func TestTwoPostsGetConsecutiveIDs(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})

	for i := 0; i < 2; i++ {
		if rr := do(h, http.MethodPost, "/", validBody); rr.Code != http.StatusCreated {
			t.Fatalf("POST %d status = %d", i, rr.Code)
		}
	}
	rows, _ := store.ListRows(context.Background())
	if len(rows) != 2 || rows[0][0] != "1" || rows[1][0] != "2" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestLongOptionalFieldsAreAccepted(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})

	body := `{"date":"01/01/2024","transactionType":"Expense","amount":"50","category":"Food",` +
		`"subCategory":"` + strings.Repeat("y", 81) + `","description":"` + strings.Repeat("x", 300) + `"}`
	rr := do(h, http.MethodPost, "/", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	rows, _ := store.ListRows(context.Background())
	if len(rows) != 1 || len(rows[0][11]) != 300 {
		t.Fatalf("description not stored in full: %v", rows)
	}
}

func TestListEmptySheetReturnsEmptyArray(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})
	rr := do(h, http.MethodGet, "/", "")
	if rr.Body.String() != `{"transactions":[]}` {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestOptionsPreflight(t *testing.T) {
	h := newTestServer(t, services.NewTransactionService(nil, nil), Config{})
	rr := do(h, http.MethodOptions, "/", "")
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("OPTIONS status=%d body=%q", rr.Code, rr.Body.String())
	}
	assertCORS(t, rr)
	if rr.Header().Get("Access-Control-Allow-Methods") != corsAllowMethods {
		t.Fatal("Allow-Methods missing")
	}
}

func TestInvalidPayloads(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		details []string
	}{
		{"empty body", "", []string{"Request body is required"}},
		{"null body", "null", []string{"Request body is required"}},
		{"array body", "[]", []string{"Request body must be a JSON object"}},
		{
			name: "missing fields",
			body: `{"amount":"-3","transactionType":"Transfer"}`,
			details: []string{
				"date is required",
				"category is required",
				"amount must be a positive number",
				"transactionType must be 'Income' or 'Expense'",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &failingStore{}
			h := newTestServer(t, services.NewTransactionService(store, fixedIDs{id: 1}), Config{})
			rr := do(h, http.MethodPost, "/", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			assertCORS(t, rr)
			out := decode(t, rr)
			if out["error"] != MsgInvalidPayload {
				t.Fatalf("error = %v", out["error"])
			}
			details, _ := out["details"].([]any)
			if len(details) != len(tc.details) {
				t.Fatalf("details = %v, want %v", details, tc.details)
			}
			for i, d := range tc.details {
				if details[i] != d {
					t.Fatalf("details[%d] = %v, want %q", i, details[i], d)
				}
			}
			if store.appends != 0 {
				t.Fatal("invalid payload reached the store")
			}
		})
	}
}

func TestMalformedJSONReportsDecoderMessage(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})
	rr := do(h, http.MethodPost, "/", `{"date":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	details, _ := decode(t, rr)["details"].([]any)
	if len(details) != 1 || !strings.Contains(details[0].(string), "unexpected end of JSON input") {
		t.Fatalf("details = %v", details)
	}
}

func TestNotConfigured(t *testing.T) {
	h := newTestServer(t, services.NewTransactionService(nil, nil), Config{})
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		rr := do(h, method, "/", validBody)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s status = %d", method, rr.Code)
		}
		if rr.Body.String() != `{"error":"Google Sheets is not configured"}` {
			t.Fatalf("%s body = %s", method, rr.Body.String())
		}
		assertCORS(t, rr)
	}

	if rr := do(h, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})
	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		rr := do(h, method, "/", "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s status = %d", method, rr.Code)
		}
		if rr.Body.String() != `{"error":"Method not allowed"}` {
			t.Fatalf("body = %s", rr.Body.String())
		}
		if rr.Header().Get("Allow") != allowedMethods {
			t.Fatalf("Allow = %q", rr.Header().Get("Allow"))
		}
		assertCORS(t, rr)
	}
}

func TestUpstreamFailures(t *testing.T) {
	cases := []struct {
		name   string
		store  *failingStore
		ids    fixedIDs
		method string
		body   string
		msg    string
		status float64
	}{
		{
			name:   "read",
			store:  &failingStore{listErr: &sheets.UpstreamError{Op: sheets.OpRead, Status: 403, Details: "PERMISSION_DENIED"}},
			method: http.MethodGet,
			msg:    MsgReadFailed,
			status: 403,
		},
		{
			name:   "id lookup",
			store:  &failingStore{},
			ids:    fixedIDs{err: &sheets.UpstreamError{Op: sheets.OpReadIDs, Status: 404, Details: "not found"}},
			method: http.MethodPost,
			body:   validBody,
			msg:    MsgReadIDsFailed,
			status: 404,
		},
		{
			name:   "append",
			store:  &failingStore{appendErr: &sheets.UpstreamError{Op: sheets.OpAppend, Status: 400, Details: strings.Repeat("x", 500)}},
			ids:    fixedIDs{id: 9},
			method: http.MethodPost,
			body:   validBody,
			msg:    MsgAppendFailed,
			status: 400,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, services.NewTransactionService(tc.store, tc.ids), Config{})
			rr := do(h, tc.method, "/", tc.body)
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rr.Code)
			}
			assertCORS(t, rr)
			out := decode(t, rr)
			if out["error"] != tc.msg || out["status"] != tc.status {
				t.Fatalf("body = %v", out)
			}
			if d, _ := out["details"].(string); len(d) > sheets.MaxDetailsLen {
				t.Fatalf("details not truncated: %d", len(d))
			}
		})
	}
}

func TestUnexpectedErrorsAreNotLeaked(t *testing.T) {
	h := newTestServer(t, services.NewTransactionService(&failingStore{listErr: errors.New("secret internals")}, fixedIDs{id: 1}), Config{})
	rr := do(h, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != `{"error":"Unexpected error"}` {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	h = newTestServer(t, services.NewTransactionService(panickingStore{}, fixedIDs{id: 1}), Config{})
	rr = do(h, http.MethodGet, "/", "")
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != `{"error":"Unexpected error"}` {
		t.Fatalf("panic: status=%d body=%s", rr.Code, rr.Body.String())
	}
	assertCORS(t, rr)
}

func TestRateLimitAppliesToPostOnly(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{RateLimitPerMinute: 1})

	if rr := do(h, http.MethodPost, "/", validBody); rr.Code != http.StatusCreated {
		t.Fatalf("first POST = %d", rr.Code)
	}
	rr := do(h, http.MethodPost, "/", validBody)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d", rr.Code)
	}
	if rr.Body.String() != `{"error":"Rate limit exceeded"}` || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("429 body=%s headers=%v", rr.Body.String(), rr.Header())
	}
	assertCORS(t, rr)

	for i := 0; i < 3; i++ {
		if rr := do(h, http.MethodGet, "/", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET %d = %d", i, rr.Code)
		}
	}
}

func TestHealthAndNotFound(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := do(h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK || rr.Body.String() != want {
			t.Fatalf("%s = %d %q", path, rr.Code, rr.Body.String())
		}
	}

	rr := do(h, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	assertCORS(t, rr)
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	store := memory.New()
	h := newTestServer(t, services.NewTransactionService(store, store), Config{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "trace-me")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Header().Get("X-Request-ID") != "trace-me" {
		t.Fatalf("request id = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}
