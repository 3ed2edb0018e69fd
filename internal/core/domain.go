package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	Income  TransactionType = "Income"
	Expense TransactionType = "Expense"
)

type (
	TransactionType string

	// Transaction is the canonical shape exchanged between the proxy and its clients.
	Transaction struct {
		ID              string          `json:"id"`
		Date            string          `json:"date"` // DD/MM/YYYY
		TransactionType TransactionType `json:"transactionType"`
		Amount          float64         `json:"amount"`
		Category        string          `json:"category"`
		SubCategory     string          `json:"subCategory"`
		SourceFrom      string          `json:"sourceFrom"`
		SpentOnTo       string          `json:"spentOnTo"`
		PaymentMode     string          `json:"paymentMode"`
		AccountName     string          `json:"accountName"`
		IsRecurring     bool            `json:"isRecurring"`
		Description     string          `json:"description"`
	}

	// TransactionInput is the append payload before row serialization.
	// Every field is kept as trimmed text; IsRecurring holds "true"/"false"
	// or whatever loose spelling the caller sent.
	TransactionInput struct {
		Date            string
		TransactionType string
		Amount          string
		Category        string
		SubCategory     string
		SourceFrom      string
		SpentOnTo       string
		PaymentMode     string
		AccountName     string
		IsRecurring     string
		Description     string
	}
)

var (
	ErrNotConfigured = errors.New("google sheets is not configured")
	ErrEmptyBody     = errors.New("request body is required")
)

// ValidationError carries every problem found in a TransactionInput.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid transaction: " + strings.Join(e.Problems, "; ")
}

// Is reports whether t names the same type as other, ignoring case and
// surrounding spaces. Sheet rows keep whatever spelling was appended.
func (t TransactionType) Is(other TransactionType) bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(other))
}

// Field length bounds, in characters. The optional field bounds apply to
// client side validation only.
const (
	maxDateLen        = 20
	maxTypeLen        = 16
	maxAmountLen      = 32
	maxCategoryLen    = 120
	maxOptionalLen    = 80
	maxPaymentModeLen = 40
	maxDescriptionLen = 200
)

// Validate returns every violation found, in a stable order. An empty
// result means the proxy can append the input. Optional fields are not
// bounded here; see ValidateClient.
func (in TransactionInput) Validate() []string {
	problems := make([]string, 0)

	bounded(&problems, "date", in.Date, maxDateLen, true)
	bounded(&problems, "transactionType", in.TransactionType, maxTypeLen, true)
	bounded(&problems, "amount", in.Amount, maxAmountLen, true)
	bounded(&problems, "category", in.Category, maxCategoryLen, true)

	if v, err := ParseAmount(in.Amount); err != nil || v <= 0 {
		problems = append(problems, "amount must be a positive number")
	}

	switch strings.ToLower(strings.TrimSpace(in.TransactionType)) {
	case "income", "expense":
	default:
		problems = append(problems, "transactionType must be 'Income' or 'Expense'")
	}

	return problems
}

// ValidateClient applies Validate plus the form bounds on the optional
// fields. Used before submitting to the proxy.
func (in TransactionInput) ValidateClient() []string {
	problems := in.Validate()

	bounded(&problems, "subCategory", in.SubCategory, maxOptionalLen, false)
	bounded(&problems, "sourceFrom", in.SourceFrom, maxOptionalLen, false)
	bounded(&problems, "spentOnTo", in.SpentOnTo, maxOptionalLen, false)
	bounded(&problems, "paymentMode", in.PaymentMode, maxPaymentModeLen, false)
	bounded(&problems, "accountName", in.AccountName, maxOptionalLen, false)
	bounded(&problems, "description", in.Description, maxDescriptionLen, false)

	return problems
}

func bounded(problems *[]string, field, value string, max int, required bool) {
	value = strings.TrimSpace(value)
	if required && value == "" {
		*problems = append(*problems, field+" is required")
	}
	if utf8.RuneCountInString(value) > max {
		*problems = append(*problems, fmt.Sprintf("%s must be <= %d characters", field, max))
	}
}

// Check wraps Validate into an error.
func (in TransactionInput) Check() error {
	if problems := in.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// CheckClient wraps ValidateClient into an error.
func (in TransactionInput) CheckClient() error {
	if problems := in.ValidateClient(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// UnmarshalJSON accepts strings, numbers and booleans for every field.
// Unknown keys (including any client supplied "id") are ignored.
func (in *TransactionInput) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return ErrEmptyBody
	}
	get := func(key string) string {
		return strings.TrimSpace(stringValue(raw[key]))
	}
	*in = TransactionInput{
		Date:            get("date"),
		TransactionType: get("transactionType"),
		Amount:          get("amount"),
		Category:        get("category"),
		SubCategory:     get("subCategory"),
		SourceFrom:      get("sourceFrom"),
		SpentOnTo:       get("spentOnTo"),
		PaymentMode:     get("paymentMode"),
		AccountName:     get("accountName"),
		IsRecurring:     get("isRecurring"),
		Description:     get("description"),
	}
	if in.IsRecurring == "" {
		in.IsRecurring = "false"
	}
	return nil
}

// MarshalJSON emits the payload the proxy expects, with isRecurring as a bool.
func (in TransactionInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date            string `json:"date"`
		TransactionType string `json:"transactionType"`
		Amount          string `json:"amount"`
		Category        string `json:"category"`
		SubCategory     string `json:"subCategory,omitempty"`
		SourceFrom      string `json:"sourceFrom,omitempty"`
		SpentOnTo       string `json:"spentOnTo,omitempty"`
		PaymentMode     string `json:"paymentMode,omitempty"`
		AccountName     string `json:"accountName,omitempty"`
		IsRecurring     bool   `json:"isRecurring"`
		Description     string `json:"description,omitempty"`
	}{
		Date:            in.Date,
		TransactionType: in.TransactionType,
		Amount:          in.Amount,
		Category:        in.Category,
		SubCategory:     in.SubCategory,
		SourceFrom:      in.SourceFrom,
		SpentOnTo:       in.SpentOnTo,
		PaymentMode:     in.PaymentMode,
		AccountName:     in.AccountName,
		IsRecurring:     ParseRecurring(in.IsRecurring),
		Description:     in.Description,
	})
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
