package core

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Stats summarises a set of transactions.
type Stats struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Count        int
}

// Filters narrows a transaction list. Zero values mean "no constraint";
// Type and Category also accept "All".
type Filters struct {
	From     time.Time
	To       time.Time
	Type     TransactionType
	Category string
}

const dateLayout = "DD/MM/YYYY"

// ParseDate parses a DD/MM/YYYY date. Out of range parts roll over the
// same way time.Date normalizes them.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, &time.ParseError{Layout: dateLayout, Value: s, Message: ": expected " + dateLayout}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, &time.ParseError{Layout: dateLayout, Value: s, Message: ": non-numeric date part"}
		}
		nums[i] = n
	}
	return time.Date(nums[2], time.Month(nums[1]), nums[0], 0, 0, 0, 0, time.UTC), nil
}

func (f Filters) matches(t Transaction) bool {
	if f.Type != "" && f.Type != "All" && !t.TransactionType.Is(f.Type) {
		return false
	}
	if f.Category != "" && f.Category != "All" && t.Category != f.Category {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	d, err := ParseDate(t.Date)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && d.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To) {
		return false
	}
	return true
}

// ApplyFilters returns the matching transactions in their original order.
func ApplyFilters(txs []Transaction, f Filters) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// ComputeStats sums income and expense; Balance is income minus expense.
// Rows of any other type are counted but not summed.
func ComputeStats(txs []Transaction) Stats {
	s := Stats{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, t := range txs {
		switch {
		case t.TransactionType.Is(Income):
			s.TotalIncome = s.TotalIncome.Add(AmountDecimal(t.Amount))
		case t.TransactionType.Is(Expense):
			s.TotalExpense = s.TotalExpense.Add(AmountDecimal(t.Amount))
		}
		s.Count++
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// Categories returns the sorted distinct non-empty categories.
func Categories(txs []Transaction) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range txs {
		if t.Category == "" {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// CategoryTotals aggregates amounts of the given type by category, largest
// first. An empty typ aggregates every transaction.
func CategoryTotals(txs []Transaction, typ TransactionType) []CategoryAmount {
	byCat := map[string]decimal.Decimal{}
	for _, t := range txs {
		if typ != "" && !t.TransactionType.Is(typ) {
			continue
		}
		name := t.Category
		if name == "" {
			name = "(uncategorized)"
		}
		byCat[name] = byCat[name].Add(AmountDecimal(t.Amount))
	}
	out := make([]CategoryAmount, 0, len(byCat))
	for name, amt := range byCat {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
