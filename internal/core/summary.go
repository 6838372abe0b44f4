package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const monthLabelLayout = "Jan 2006"

type (
	// CategoryAmount is the signed sum of all transactions in one category.
	CategoryAmount struct {
		Name   string          `json:"name"`
		Amount decimal.Decimal `json:"amount"`
	}

	MonthBucket struct {
		Year   int             `json:"year"`
		Month  time.Month      `json:"month"`
		Label  string          `json:"label"`
		Credit decimal.Decimal `json:"credit"`
		Debit  decimal.Decimal `json:"debit"`
	}

	// Report is the aggregate view over a set of transactions.
	Report struct {
		Window      Window           `json:"window"`
		TotalCredit decimal.Decimal  `json:"totalCredit"`
		TotalDebit  decimal.Decimal  `json:"totalDebit"`
		NetBalance  decimal.Decimal  `json:"netBalance"`
		ByCategory  []CategoryAmount `json:"byCategory"`
		ByMonth     []MonthBucket    `json:"byMonth"`
	}
)

type monthKey struct {
	year  int
	month time.Month
}

// MonthLabel renders a month as "Jan 2006". Labels are for display only and
// never used for ordering.
func MonthLabel(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format(monthLabelLayout)
}

// Aggregate summarizes txs. The window is recorded on the report but is not
// used to filter: callers pass transactions already selected for it.
func Aggregate(txs []Transaction, w Window) Report {
	r := Report{
		Window:      w,
		TotalCredit: decimal.Zero,
		TotalDebit:  decimal.Zero,
		ByCategory:  []CategoryAmount{},
		ByMonth:     []MonthBucket{},
	}

	categories := make(map[string]decimal.Decimal)
	months := make(map[monthKey]*MonthBucket)

	for _, tx := range txs {
		amount := tx.Amount.Decimal
		credit := tx.Kind == Credit

		if credit {
			r.TotalCredit = r.TotalCredit.Add(amount)
		} else {
			r.TotalDebit = r.TotalDebit.Add(amount)
		}

		name := tx.Category.DisplayName()
		categories[name] = categories[name].Add(tx.Signed().Decimal)

		key := monthKey{year: tx.OccurredOn.Year(), month: tx.OccurredOn.Month()}
		bucket, ok := months[key]
		if !ok {
			bucket = &MonthBucket{
				Year:   key.year,
				Month:  key.month,
				Label:  MonthLabel(key.year, key.month),
				Credit: decimal.Zero,
				Debit:  decimal.Zero,
			}
			months[key] = bucket
		}
		if credit {
			bucket.Credit = bucket.Credit.Add(amount)
		} else {
			bucket.Debit = bucket.Debit.Add(amount)
		}
	}

	r.NetBalance = r.TotalCredit.Sub(r.TotalDebit)

	for name, amount := range categories {
		r.ByCategory = append(r.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(r.ByCategory, func(i, j int) bool {
		return r.ByCategory[i].Name < r.ByCategory[j].Name
	})

	for _, bucket := range months {
		r.ByMonth = append(r.ByMonth, *bucket)
	}
	sort.Slice(r.ByMonth, func(i, j int) bool {
		a, b := r.ByMonth[i], r.ByMonth[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	return r
}

// String is used in log lines.
func (r Report) String() string {
	return fmt.Sprintf("credit=%s debit=%s net=%s categories=%d months=%d",
		r.TotalCredit.StringFixed(2), r.TotalDebit.StringFixed(2), r.NetBalance.StringFixed(2),
		len(r.ByCategory), len(r.ByMonth))
}
