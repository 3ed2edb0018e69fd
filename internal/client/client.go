// Package client talks to the transaction proxy over HTTP. Reads are
// deduplicated and memoised for a short window; a successful Add drops the
// memoised list so the next List refetches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"expenseflow/internal/cache"
	"expenseflow/internal/core"
	"expenseflow/internal/log"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = 15 * time.Second
	defaultTimeout  = 30 * time.Second
	listKey         = "transactions"
	maxErrorBody    = 64 << 10
)

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	StatusCode int
	Message    string
	// UpstreamStatus is set when the proxy reports a spreadsheet failure.
	UpstreamStatus int
	Details        []string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "proxy returned %d", e.StatusCode)
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.UpstreamStatus != 0 {
		fmt.Fprintf(&b, " (upstream %d)", e.UpstreamStatus)
	}
	if len(e.Details) > 0 {
		b.WriteString(": " + strings.Join(e.Details, "; "))
	}
	return b.String()
}

type Client struct {
	endpoint string
	hc       *http.Client
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Logger

	group singleflight.Group
	memo  *cache.LRUCache[[]core.Transaction]
	// generation bumps on every Invalidate so a fetch that started before
	// it does not repopulate the memo.
	generation atomic.Int64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithCacheTTL sets how long a fetched list is reused. Zero disables
// memoisation; concurrent reads are still shared.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces time.Now for the memo.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the proxy at endpoint, an absolute http(s) URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q must be an absolute http(s) URL", endpoint)
	}

	c := &Client{
		endpoint: u.String(),
		hc:       &http.Client{Timeout: defaultTimeout},
		ttl:      DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentClient)
	if c.ttl > 0 {
		c.memo = cache.NewLRUCache[[]core.Transaction](1, c.ttl).WithClock(c.now)
	}
	return c, nil
}

// List returns every transaction known to the proxy. Callers receive their
// own copy of the slice.
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	if txs, ok := c.cached(); ok {
		return txs, nil
	}

	v, err, shared := c.group.Do(listKey, func() (any, error) {
		if txs, ok := c.cached(); ok {
			return txs, nil
		}
		gen := c.generation.Load()
		txs, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.memo != nil && c.generation.Load() == gen {
			c.memo.Set(listKey, txs)
		}
		return txs, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Transactions loaded", "shared", shared)
	return clone(v.([]core.Transaction)), nil
}

func (c *Client) cached() ([]core.Transaction, bool) {
	if c.memo == nil {
		return nil, false
	}
	txs, ok := c.memo.Get(listKey)
	if !ok {
		return nil, false
	}
	return clone(txs), true
}

// Invalidate drops the memoised list.
func (c *Client) Invalidate() {
	c.generation.Add(1)
	if c.memo != nil {
		c.memo.Delete(listKey)
	}
	c.group.Forget(listKey)
}

func (c *Client) fetch(ctx context.Context) ([]core.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if body.Transactions == nil {
		body.Transactions = []core.Transaction{}
	}
	c.logger.DebugContext(ctx, "Fetched transactions", log.FieldRows, len(body.Transactions))
	return body.Transactions, nil
}

// Add validates in locally, optional field bounds included, then submits
// it. Invalid input returns a *core.ValidationError without any request
// being made.
func (c *Client) Add(ctx context.Context, in core.TransactionInput) error {
	if err := in.CheckClient(); err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("add transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.Invalidate()
	c.logger.InfoContext(ctx, "Transaction submitted",
		log.FieldTransactionType, in.TransactionType,
		log.FieldAmount, in.Amount,
		log.FieldCategory, in.Category)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var body struct {
		Error   string          `json:"error"`
		Status  int             `json:"status"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	apiErr.Message = body.Error
	apiErr.UpstreamStatus = body.Status
	apiErr.Details = decodeDetails(body.Details)
	return apiErr
}

// decodeDetails accepts a list of strings or a single string.
func decodeDetails(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

// IsValidation reports whether err came from local or remote validation.
func IsValidation(err error) bool {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

func clone(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return out
}
