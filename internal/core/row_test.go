package core

import "testing"

func TestTransactionFromRowDropsShortRows(t *testing.T) {
	for _, row := range [][]string{nil, {"1"}, {"1", "01/01/2024", "Expense"}} {
		if _, ok := TransactionFromRow(row); ok {
			t.Fatalf("row %v should be dropped", row)
		}
	}
}

func TestTransactionFromRowPadsMissingCells(t *testing.T) {
	tx, ok := TransactionFromRow([]string{"3", "02/03/2024", "Income", "1200.50"})
	if !ok {
		t.Fatal("4-cell row should be kept")
	}
	want := Transaction{ID: "3", Date: "02/03/2024", TransactionType: Income, Amount: 1200.5}
	if tx != want {
		t.Fatalf("got %+v, want %+v", tx, want)
	}
}

func TestTransactionFromRowFullRow(t *testing.T) {
	row := []string{"7", "05/05/2024", "Expense", "12,5", "Food", "Lunch", "", "Cafe", "Card", "Main", "yes", "team lunch"}
	tx, ok := TransactionFromRow(row)
	if !ok {
		t.Fatal("full row should be kept")
	}
	if tx.Amount != 0 {
		t.Fatalf("malformed amount should read as 0, got %v", tx.Amount)
	}
	if !tx.IsRecurring || tx.SpentOnTo != "Cafe" || tx.Description != "team lunch" || tx.PaymentMode != "Card" {
		t.Fatalf("unexpected mapping: %+v", tx)
	}
}

func TestTransactionsFromRowsPreservesOrder(t *testing.T) {
	rows := [][]string{
		{"1", "01/01/2024", "Expense", "10"},
		{"x"},
		{"2", "02/01/2024", "Income", "20"},
		{"3", "03/01/2024", "Expense", "30", "Rent"},
	}
	txs := TransactionsFromRows(rows)
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i, id := range []string{"1", "2", "3"} {
		if txs[i].ID != id {
			t.Fatalf("index %d: id %q, want %q", i, txs[i].ID, id)
		}
	}
}

func TestRowFromInput(t *testing.T) {
	in := TransactionInput{
		Date:            " 01/01/2024",
		TransactionType: "Expense",
		Amount:          "50 ",
		Category:        "Food",
		Description:     "groceries",
	}
	row := RowFromInput(8, in)
	want := Row{"8", "01/01/2024", "Expense", "50", "Food", "", "", "", "", "", "false", "groceries"}
	if row != want {
		t.Fatalf("got %v, want %v", row, want)
	}
	if len(row.Values()) != RowWidth {
		t.Fatalf("Values() length = %d", len(row.Values()))
	}
}

func TestNextID(t *testing.T) {
	cases := []struct {
		name   string
		column []string
		want   int64
	}{
		{"empty column", nil, 1},
		{"last value seven", []string{"1", "2", "7"}, 8},
		{"non numeric last", []string{"1", "abc"}, 1},
		{"trailing blanks skipped", []string{"4", "5", "", " "}, 6},
		{"fractional value", []string{"2.5"}, 3},
		{"negative value", []string{"-4"}, 1},
		{"fractional after integers", []string{"6", "7.5"}, 8},
		{"negative after integers", []string{"6", "-5"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextID(tc.column); got != tc.want {
				t.Fatalf("NextID(%v) = %d, want %d", tc.column, got, tc.want)
			}
		})
	}
}

func TestDuplicateIDs(t *testing.T) {
	txs := []Transaction{{ID: "2"}, {ID: "1"}, {ID: "2"}, {ID: ""}, {ID: ""}, {ID: "3"}, {ID: " 1"}}
	got := DuplicateIDs(txs)
	if len(got) != 2 {
		t.Fatalf("DuplicateIDs = %v", got)
	}
	if got[0] != (IDCount{ID: "1", Count: 2}) || got[1] != (IDCount{ID: "2", Count: 2}) {
		t.Fatalf("DuplicateIDs = %v", got)
	}
	if len(DuplicateIDs(nil)) != 0 {
		t.Fatal("no duplicates expected")
	}
}
