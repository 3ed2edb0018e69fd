package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	ports "expenseflow/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetName = "Table1"

	rowsColumns = "A2:L"
	idsColumns  = "A2:A"

	valueInputOption = "USER_ENTERED"
)

// Config configures a Client.
type Config struct {
	APIKey string
	// SpreadsheetID accepts a bare id or a full spreadsheet URL.
	SpreadsheetID string
	SheetName     string
	// HTTPClient overrides the pooled default. The API key is always added
	// on top of its transport.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
}

// Client reads and appends rows of one sheet tab through the values API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var (
	_ ports.RowStore       = (*Client)(nil)
	_ ports.IDColumnReader = (*Client)(nil)
	_ ports.IDAllocator    = (*Client)(nil)
)

// NewClient builds a Client. It returns core.ErrNotConfigured when the API
// key or the resolved spreadsheet id is empty.
func NewClient(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	id := ResolveSpreadsheetID(cfg.SpreadsheetID)
	if key == "" || id == "" {
		return nil, core.ErrNotConfigured
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	base := cfg.HTTPClient
	if base == nil {
		base = newHTTPClientWithPooling(cfg.Timeout)
	}
	hc := &http.Client{
		Transport: &apiKeyTransport{key: key, base: base.Transport},
		Timeout:   base.Timeout,
	}

	all := append([]goption.ClientOption{goption.WithHTTPClient(hc)}, opts...)
	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.WithComponent(log.ComponentSheets).InfoContext(ctx, "Google Sheets client ready",
		log.FieldSheet, sheet)

	return &Client{
		svc:           svc,
		spreadsheetID: id,
		sheetName:     sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

// ResolveSpreadsheetID accepts either a bare id or a spreadsheet URL. For
// URLs the segment after "/d/" is used; otherwise anything from the first
// '?' or '#' is stripped. An empty result falls back to the trimmed input.
func ResolveSpreadsheetID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	var id string
	if i := strings.Index(s, "/d/"); i >= 0 {
		rest := s[i+len("/d/"):]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		id = rest
	} else {
		id = s
		if j := strings.IndexAny(id, "?#"); j >= 0 {
			id = id[:j]
		}
	}
	if id == "" {
		return s
	}
	return id
}

// SheetName returns the tab this client reads and writes.
func (c *Client) SheetName() string { return c.sheetName }

// ListRows reads every row below the header, columns A..L.
func (c *Client) ListRows(ctx context.Context) ([][]string, error) {
	rng := c.rangeOf(rowsColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, c.upstream(ctx, ports.OpRead, rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	c.logger.DebugContext(ctx, "Rows read", log.FieldSheet, c.sheetName, log.FieldRows, len(out))
	return out, nil
}

// IDColumn reads column A below the header.
func (c *Client) IDColumn(ctx context.Context) ([]string, error) {
	rng := c.rangeOf(idsColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, c.upstream(ctx, ports.OpReadIDs, rng, err)
	}
	out := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, cellString(row[0]))
	}
	return out, nil
}

// NextID returns the last id in column A plus one, or 1 when column A
// cannot be read. The read is not tied to the following append.
func (c *Client) NextID(ctx context.Context) (int64, error) {
	return ports.ColumnAllocator{Reader: c, Logger: c.logger}.NextID(ctx)
}

// AppendRow appends one row after the last non-empty row of the table.
func (c *Client) AppendRow(ctx context.Context, row core.Row) error {
	rng := c.rangeOf(rowsColumns)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return c.upstream(ctx, ports.OpAppend, rng, err)
	}
	return nil
}

func (c *Client) rangeOf(cols string) string {
	return quoteSheetName(c.sheetName) + "!" + cols
}

// upstream converts an API failure into a *ports.UpstreamError. Transport
// failures carry status 502.
func (c *Client) upstream(ctx context.Context, op ports.Op, rng string, err error) error {
	ue := &ports.UpstreamError{Op: op, Status: http.StatusBadGateway, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		ue.Status = gerr.Code
		details := gerr.Body
		if strings.TrimSpace(details) == "" {
			details = gerr.Message
		}
		ue.Details = ports.Truncate(details)
	} else {
		ue.Details = ports.Truncate(err.Error())
	}
	fields := log.NewFields().
		WithOperation(string(op)).
		WithUpstream(ue.Status).
		WithError(err)
	fields[log.FieldSheet] = rng
	c.logger.ErrorContext(ctx, "Sheets call failed", fields.ToSlice()...)
	return ue
}

// quoteSheetName wraps tab names that are not plain identifiers in single
// quotes, doubling embedded quotes, as A1 notation requires.
func quoteSheetName(name string) string {
	plain := true
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// apiKeyTransport adds the "key" query parameter to every call.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return base.RoundTrip(r)
}

// newHTTPClientWithPooling returns an HTTP client tuned for the Sheets API
// with connection pooling and keep-alive.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
