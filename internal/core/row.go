package core

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// RowWidth is the number of columns (A..L) of a transaction row.
const RowWidth = 12

// MinRowCells is the shortest row still mapped to a Transaction.
const MinRowCells = 4

// Columns lists the sheet header in column order. The order is the wire
// contract with the spreadsheet.
var Columns = [RowWidth]string{
	"Transaction_ID",
	"Date",
	"Transaction_Type",
	"Amount",
	"Category",
	"Sub_Category",
	"Source_From",
	"Spent_On_To",
	"Payment_Mode",
	"Account_Name",
	"Is_Recurring",
	"Description",
}

// Row is one positional sheet row.
type Row [RowWidth]string

// Values converts the row to the cell slice expected by the Sheets API.
func (r Row) Values() []any {
	out := make([]any, RowWidth)
	for i, v := range r {
		out[i] = v
	}
	return out
}

// RowFromInput serializes an input positionally under the given id.
func RowFromInput(id int64, in TransactionInput) Row {
	recurring := strings.TrimSpace(in.IsRecurring)
	if recurring == "" {
		recurring = "false"
	}
	return Row{
		strconv.FormatInt(id, 10),
		strings.TrimSpace(in.Date),
		strings.TrimSpace(in.TransactionType),
		strings.TrimSpace(in.Amount),
		strings.TrimSpace(in.Category),
		strings.TrimSpace(in.SubCategory),
		strings.TrimSpace(in.SourceFrom),
		strings.TrimSpace(in.SpentOnTo),
		strings.TrimSpace(in.PaymentMode),
		strings.TrimSpace(in.AccountName),
		recurring,
		strings.TrimSpace(in.Description),
	}
}

// PadRow fills missing trailing cells with their defaults: "0" for the
// amount, "false" for the recurring flag and "" elsewhere. Extra cells
// beyond column L are dropped.
func PadRow(cells []string) Row {
	var r Row
	for i := range r {
		if i < len(cells) {
			r[i] = cells[i]
			continue
		}
		switch i {
		case 3:
			r[i] = "0"
		case 10:
			r[i] = "false"
		}
	}
	return r
}

// TransactionFromRow maps sheet cells to a Transaction. Rows shorter than
// MinRowCells are rejected.
func TransactionFromRow(cells []string) (Transaction, bool) {
	if len(cells) < MinRowCells {
		return Transaction{}, false
	}
	r := PadRow(cells)
	return Transaction{
		ID:              r[0],
		Date:            r[1],
		TransactionType: TransactionType(r[2]),
		Amount:          amountOrZero(r[3]),
		Category:        r[4],
		SubCategory:     r[5],
		SourceFrom:      r[6],
		SpentOnTo:       r[7],
		PaymentMode:     r[8],
		AccountName:     r[9],
		IsRecurring:     ParseRecurring(r[10]),
		Description:     r[11],
	}, true
}

// TransactionsFromRows maps every usable row, preserving sheet order.
func TransactionsFromRows(rows [][]string) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		if t, ok := TransactionFromRow(row); ok {
			out = append(out, t)
		}
	}
	return out
}

// NextID derives the id for the next appended row from the id column: the
// last non-empty value plus one, or 1 when there is no usable value. Ids
// are positive integers: a fractional last value is truncated before the
// increment ("7.5" gives 8) and a negative one counts as unusable ("-5"
// gives 1).
func NextID(column []string) int64 {
	for i := len(column) - 1; i >= 0; i-- {
		v := strings.TrimSpace(column[i])
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
			return 1
		}
		return int64(f) + 1
	}
	return 1
}

// DuplicateIDs returns every id that appears on more than one transaction,
// with its count, sorted by id text. Empty ids are ignored.
func DuplicateIDs(txs []Transaction) []IDCount {
	counts := map[string]int{}
	for _, t := range txs {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		counts[id]++
	}
	out := make([]IDCount, 0)
	for id, n := range counts {
		if n > 1 {
			out = append(out, IDCount{ID: id, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDCount pairs an id with the number of rows carrying it.
type IDCount struct {
	ID    string
	Count int
}
