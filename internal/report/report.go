// Package report renders transaction lists and summaries for terminals and
// as PNG charts.
package report

import (
	"fmt"
	"io"
	"strconv"

	"expenseflow/internal/core"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer writes tables to an io.Writer. Amounts are formatted for the
// configured language.
type Renderer struct {
	out      io.Writer
	printer  *message.Printer
	currency string
}

type Option func(*Renderer)

// WithLanguage sets the locale used for digit grouping. Default is English.
func WithLanguage(tag language.Tag) Option {
	return func(r *Renderer) { r.printer = message.NewPrinter(tag) }
}

// WithCurrency prefixes every amount with symbol.
func WithCurrency(symbol string) Option {
	return func(r *Renderer) { r.currency = symbol }
}

func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{out: w, printer: message.NewPrinter(language.English)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FormatAmount renders d with two decimals and locale grouping.
func (r *Renderer) FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return r.currency + r.printer.Sprintf("%.2f", f)
}

func (r *Renderer) newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

// Transactions writes one row per transaction, in the given order.
func (r *Renderer) Transactions(txs []core.Transaction) {
	table := r.newTable("ID", "Date", "Type", "Amount", "Category", "Sub Category", "Account", "Recurring", "Description")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})
	for _, t := range txs {
		table.Append([]string{
			t.ID,
			t.Date,
			string(t.TransactionType),
			r.FormatAmount(core.AmountDecimal(t.Amount)),
			t.Category,
			t.SubCategory,
			t.AccountName,
			strconv.FormatBool(t.IsRecurring),
			t.Description,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "", "Count", strconv.Itoa(len(txs))})
	table.Render()
}

// Summary writes income, expense and balance followed by the per-category
// totals.
func (r *Renderer) Summary(stats core.Stats, totals []core.CategoryAmount) {
	table := r.newTable("Metric", "Value")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Append([]string{"Transactions", strconv.Itoa(stats.Count)})
	table.Append([]string{"Income", r.FormatAmount(stats.TotalIncome)})
	table.Append([]string{"Expense", r.FormatAmount(stats.TotalExpense)})
	table.Append([]string{"Balance", r.FormatAmount(stats.Balance)})
	table.Render()

	if len(totals) == 0 {
		return
	}
	fmt.Fprintln(r.out)

	sum := decimal.Zero
	cats := r.newTable("Category", "Amount", "Share")
	cats.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	for _, c := range totals {
		sum = sum.Add(c.Amount)
	}
	for _, c := range totals {
		cats.Append([]string{c.Name, r.FormatAmount(c.Amount), share(c.Amount, sum)})
	}
	cats.SetFooter([]string{"Total", r.FormatAmount(sum), ""})
	cats.Render()
}

// Duplicates lists ids carried by more than one row.
func (r *Renderer) Duplicates(dups []core.IDCount) {
	if len(dups) == 0 {
		fmt.Fprintln(r.out, "No duplicate ids.")
		return
	}
	table := r.newTable("ID", "Rows")
	for _, d := range dups {
		table.Append([]string{d.ID, strconv.Itoa(d.Count)})
	}
	table.Render()
}

func share(part, total decimal.Decimal) string {
	if total.IsZero() {
		return "-"
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
