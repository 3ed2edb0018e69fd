// Package http provides HTTP server and handler implementations.
//
// This file decodes and sanitizes the append payload.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"expenseflow/internal/core"
)

// MaxBodyBytes bounds the append payload.
const MaxBodyBytes = 64 << 10

// bodyRequiredDetail is reported for an absent or null body.
const bodyRequiredDetail = "Request body is required"

// PayloadError reports a body that could not be decoded.
type PayloadError struct {
	Detail string
	Err    error
}

func (e *PayloadError) Error() string { return "decode payload: " + e.Detail }

func (e *PayloadError) Unwrap() error { return e.Err }

// ParseTransactionInput reads a JSON object from r's body. Text fields are
// trimmed and stripped of control characters. Validation is left to the
// caller.
func ParseTransactionInput(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput
	if r.Body == nil {
		return in, &PayloadError{Detail: bodyRequiredDetail, Err: core.ErrEmptyBody}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, &PayloadError{Detail: fmt.Sprintf("Request body must be <= %d bytes", MaxBodyBytes), Err: err}
		}
		return in, &PayloadError{Detail: err.Error(), Err: err}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return in, &PayloadError{Detail: bodyRequiredDetail, Err: core.ErrEmptyBody}
	}
	if body[0] != '{' {
		return in, &PayloadError{Detail: "Request body must be a JSON object"}
	}

	if err := json.Unmarshal(body, &in); err != nil {
		if errors.Is(err, core.ErrEmptyBody) {
			return in, &PayloadError{Detail: bodyRequiredDetail, Err: err}
		}
		return in, &PayloadError{Detail: err.Error(), Err: err}
	}

	sanitize(&in)
	return in, nil
}

func sanitize(in *core.TransactionInput) {
	for _, f := range []*string{
		&in.Date, &in.TransactionType, &in.Amount, &in.Category,
		&in.SubCategory, &in.SourceFrom, &in.SpentOnTo, &in.PaymentMode,
		&in.AccountName, &in.IsRecurring, &in.Description,
	} {
		*f = sanitizeInput(*f)
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
