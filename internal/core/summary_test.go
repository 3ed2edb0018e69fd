package core

import (
	"testing"
	"time"
)

func sampleTransactions() []Transaction {
	return []Transaction{
		{ID: "1", Date: "01/01/2024", TransactionType: Income, Amount: 1000, Category: "Salary"},
		{ID: "2", Date: "05/01/2024", TransactionType: Expense, Amount: 0.1, Category: "Food"},
		{ID: "3", Date: "10/02/2024", TransactionType: Expense, Amount: 0.2, Category: "Food"},
		{ID: "4", Date: "15/02/2024", TransactionType: "expense", Amount: 300, Category: "Rent"},
		{ID: "5", Date: "not a date", TransactionType: Expense, Amount: 5, Category: ""},
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("05/01/2024")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d != time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"", "2024-01-05", "aa/01/2024"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sampleTransactions())
	if s.Count != 5 {
		t.Fatalf("Count = %d", s.Count)
	}
	if s.TotalIncome.String() != "1000" {
		t.Fatalf("TotalIncome = %s", s.TotalIncome)
	}
	if s.TotalExpense.String() != "305.3" {
		t.Fatalf("TotalExpense = %s", s.TotalExpense)
	}
	if s.Balance.String() != "694.7" {
		t.Fatalf("Balance = %s", s.Balance)
	}
}

func TestApplyFilters(t *testing.T) {
	txs := sampleTransactions()
	cases := []struct {
		name string
		f    Filters
		ids  []string
	}{
		{"no filters", Filters{}, []string{"1", "2", "3", "4", "5"}},
		{"all type", Filters{Type: "All", Category: "All"}, []string{"1", "2", "3", "4", "5"}},
		{"expense only", Filters{Type: Expense}, []string{"2", "3", "4", "5"}},
		{"category", Filters{Category: "Food"}, []string{"2", "3"}},
		{
			"february",
			Filters{
				From: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			},
			[]string{"3", "4"},
		},
		{
			"from only excludes unparsable dates",
			Filters{From: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)},
			[]string{"2", "3", "4"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyFilters(txs, tc.f)
			if len(got) != len(tc.ids) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tc.ids))
			}
			for i, id := range tc.ids {
				if got[i].ID != id {
					t.Fatalf("index %d: id %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCategoriesAndTotals(t *testing.T) {
	txs := sampleTransactions()
	cats := Categories(txs)
	want := []string{"Food", "Rent", "Salary"}
	if len(cats) != len(want) {
		t.Fatalf("Categories = %v", cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Fatalf("Categories = %v, want %v", cats, want)
		}
	}

	totals := CategoryTotals(txs, Expense)
	if len(totals) != 3 {
		t.Fatalf("CategoryTotals = %v", totals)
	}
	if totals[0].Name != "Rent" || totals[0].Amount.String() != "300" {
		t.Fatalf("first total = %+v", totals[0])
	}
	if totals[1].Name != "(uncategorized)" || totals[2].Name != "Food" {
		t.Fatalf("unexpected order: %+v", totals)
	}
	if totals[2].Amount.String() != "0.3" {
		t.Fatalf("Food total = %s", totals[2].Amount)
	}
}
