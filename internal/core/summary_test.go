package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tx(kind Kind, amount string, on Date, category string) Transaction {
	m, err := ParseAmount(amount)
	if err != nil {
		panic(err)
	}
	return Transaction{Kind: kind, Amount: m, OccurredOn: on, Title: "t", Category: CategoryRef{Name: category}}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateTotals(t *testing.T) {
	on := NewDate(2025, 1, 10)
	txs := []Transaction{
		tx(Credit, "500", on, "Salary"),
		tx(Debit, "150", on, "Food"),
		tx(Debit, "100", on, "Food"),
	}
	r := Aggregate(txs, MonthWindow(2025, time.January))
	if !r.TotalCredit.Equal(dec("500")) || !r.TotalDebit.Equal(dec("250")) || !r.NetBalance.Equal(dec("250")) {
		t.Fatalf("unexpected totals: %s", r)
	}
	if len(r.ByCategory) != 2 {
		t.Fatalf("expected 2 categories, got %+v", r.ByCategory)
	}
	if r.ByCategory[0].Name != "Food" || !r.ByCategory[0].Amount.Equal(dec("-250")) {
		t.Fatalf("unexpected Food bucket: %+v", r.ByCategory[0])
	}
	if r.ByCategory[1].Name != "Salary" || !r.ByCategory[1].Amount.Equal(dec("500")) {
		t.Fatalf("unexpected Salary bucket: %+v", r.ByCategory[1])
	}
}

func TestAggregateInvariants(t *testing.T) {
	sets := [][]Transaction{
		nil,
		{tx(Debit, "0.10", NewDate(2024, 12, 31), "")},
		{
			tx(Credit, "1200.55", NewDate(2024, 11, 1), "Salary"),
			tx(Debit, "0.1", NewDate(2024, 11, 2), "Food"),
			tx(Debit, "0.2", NewDate(2024, 12, 2), "Food"),
			tx(Credit, "3.3", NewDate(2025, 1, 5), ""),
			tx(Debit, "99.99", NewDate(2025, 1, 6), "Rent"),
			tx(Credit, "0", NewDate(2025, 2, 1), "Gift"),
		},
	}
	for i, txs := range sets {
		r := Aggregate(txs, TrailingMonths(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), 6))

		if !r.NetBalance.Equal(r.TotalCredit.Sub(r.TotalDebit)) {
			t.Fatalf("set %d: net %s != credit %s - debit %s", i, r.NetBalance, r.TotalCredit, r.TotalDebit)
		}

		catSum := decimal.Zero
		for _, c := range r.ByCategory {
			catSum = catSum.Add(c.Amount)
		}
		if !catSum.Equal(r.NetBalance) {
			t.Fatalf("set %d: category sum %s != net %s", i, catSum, r.NetBalance)
		}

		credit, debit := decimal.Zero, decimal.Zero
		for _, m := range r.ByMonth {
			credit = credit.Add(m.Credit)
			debit = debit.Add(m.Debit)
		}
		if !credit.Equal(r.TotalCredit) || !debit.Equal(r.TotalDebit) {
			t.Fatalf("set %d: month sums %s/%s != totals %s/%s", i, credit, debit, r.TotalCredit, r.TotalDebit)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil, Window{})
	if !r.TotalCredit.IsZero() || !r.TotalDebit.IsZero() || !r.NetBalance.IsZero() {
		t.Fatalf("expected zero totals: %s", r)
	}
	if r.ByCategory == nil || r.ByMonth == nil {
		t.Fatalf("expected empty non-nil slices")
	}
}

func TestAggregateMonthsInCalendarOrder(t *testing.T) {
	txs := []Transaction{
		tx(Debit, "1", NewDate(2025, 1, 3), "A"),
		tx(Debit, "1", NewDate(2024, 12, 3), "A"),
		tx(Credit, "1", NewDate(2024, 4, 3), "A"),
		tx(Credit, "1", NewDate(2025, 1, 20), "A"),
	}
	r := Aggregate(txs, Window{})
	want := []string{"Apr 2024", "Dec 2024", "Jan 2025"}
	if len(r.ByMonth) != len(want) {
		t.Fatalf("expected %d months, got %+v", len(want), r.ByMonth)
	}
	for i, label := range want {
		if r.ByMonth[i].Label != label {
			t.Fatalf("position %d: expected %s, got %s", i, label, r.ByMonth[i].Label)
		}
	}
	jan := r.ByMonth[2]
	if !jan.Credit.Equal(dec("1")) || !jan.Debit.Equal(dec("1")) {
		t.Fatalf("unexpected Jan bucket: %+v", jan)
	}
}

func TestAggregateDoesNotFilterByWindow(t *testing.T) {
	txs := []Transaction{
		tx(Credit, "10", NewDate(2020, 1, 1), "Old"),
		tx(Credit, "5", NewDate(2025, 1, 1), "New"),
	}
	r := Aggregate(txs, MonthWindow(2025, time.January))
	if !r.TotalCredit.Equal(dec("15")) {
		t.Fatalf("expected out-of-window rows to be included, got %s", r.TotalCredit)
	}
}

func TestAggregateUncategorizedBucket(t *testing.T) {
	r := Aggregate([]Transaction{
		tx(Debit, "4", NewDate(2025, 1, 1), ""),
		tx(Credit, "1", NewDate(2025, 1, 1), "  "),
	}, Window{})
	if len(r.ByCategory) != 1 || r.ByCategory[0].Name != Uncategorized || !r.ByCategory[0].Amount.Equal(dec("-3")) {
		t.Fatalf("unexpected categories: %+v", r.ByCategory)
	}
}
