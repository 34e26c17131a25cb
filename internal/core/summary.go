package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Uncategorized is the bucket for transactions whose category cannot be resolved.
const Uncategorized = "未分類"

// PeriodTotals holds the headline figures for a set of transactions.
type PeriodTotals struct {
	Income  Money
	Expense Money
	// Balance is Income - Expense and may be negative.
	Balance Money
}

// MonthSummary is one point of a monthly series.
type MonthSummary struct {
	Month   YearMonth
	Income  Money
	Expense Money
	Balance Money
}

// CategoryShare is an amount aggregated by category name within one type.
type CategoryShare struct {
	Name       string
	Type       TransactionType
	Amount     Money
	Count      int
	Percentage float64 // of the type total, 0 when the total is 0
	// Transactions are the group's members, newest first.
	Transactions []Transaction
}

// Delta compares one metric across two periods.
type Delta struct {
	Change        Money
	ChangePercent int64 // rounded to the nearest whole point, 0 when previous is 0
}

// Comparison is the year-over-year view of a period.
type Comparison struct {
	Current  PeriodTotals
	Previous PeriodTotals
	Income   Delta
	Expense  Delta
	Balance  Delta
}

// SumByType adds up the amounts of transactions of type t.
func SumByType(txs []Transaction, t TransactionType) Money {
	var sum Money
	for _, tx := range txs {
		if tx.Type == t {
			sum += tx.Amount
		}
	}
	return sum
}

// Totals computes income, expense and balance.
func Totals(txs []Transaction) PeriodTotals {
	income := SumByType(txs, Income)
	expense := SumByType(txs, Expense)
	return PeriodTotals{Income: income, Expense: expense, Balance: income - expense}
}

// MonthlySeries returns one entry per calendar month of r, zero-filled.
// Transactions dated outside r are ignored.
func MonthlySeries(txs []Transaction, r DateRange) []MonthSummary {
	months := r.Months()
	series := make([]MonthSummary, len(months))
	index := make(map[YearMonth]int, len(months))
	for i, ym := range months {
		series[i].Month = ym
		index[ym] = i
	}

	for _, tx := range txs {
		if !r.Contains(tx.Date) {
			continue
		}
		i, ok := index[tx.Date.YearMonth()]
		if !ok {
			continue
		}
		switch tx.Type {
		case Income:
			series[i].Income += tx.Amount
		case Expense:
			series[i].Expense += tx.Amount
		}
	}

	for i := range series {
		series[i].Balance = series[i].Income - series[i].Expense
	}
	return series
}

// CategoryBreakdown groups transactions of type t by category name, sorted by
// amount descending. Equal amounts are ordered by name.
func CategoryBreakdown(txs []Transaction, t TransactionType) []CategoryShare {
	groups := make(map[string]*CategoryShare)
	var total Money
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		name := tx.CategoryName
		if name == "" {
			name = Uncategorized
		}
		g, ok := groups[name]
		if !ok {
			g = &CategoryShare{Name: name, Type: t}
			groups[name] = g
		}
		g.Amount += tx.Amount
		g.Count++
		g.Transactions = append(g.Transactions, tx)
		total += tx.Amount
	}

	out := make([]CategoryShare, 0, len(groups))
	for _, g := range groups {
		if total > 0 {
			g.Percentage = float64(g.Amount) / float64(total) * 100
		}
		sortNewestFirst(g.Transactions)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// sortNewestFirst orders by date descending, then by creation time
// descending, then by id.
func sortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// BreakdownByType returns the category breakdown for both types.
func BreakdownByType(txs []Transaction) map[TransactionType][]CategoryShare {
	return map[TransactionType][]CategoryShare{
		Income:  CategoryBreakdown(txs, Income),
		Expense: CategoryBreakdown(txs, Expense),
	}
}

// ComparisonWindow is the same calendar window one year earlier.
func ComparisonWindow(r DateRange) DateRange {
	return r.ShiftYears(-1)
}

// Compare computes period-over-period deltas for income, expense and balance.
func Compare(current, previous []Transaction) Comparison {
	cur, prev := Totals(current), Totals(previous)
	return Comparison{
		Current:  cur,
		Previous: prev,
		Income:   NewDelta(cur.Income, prev.Income),
		Expense:  NewDelta(cur.Expense, prev.Expense),
		Balance:  NewDelta(cur.Balance, prev.Balance),
	}
}

// NewDelta returns current-previous and the change as a whole percentage of
// previous. Halves round up toward positive infinity, so -12.5 becomes -12.
func NewDelta(current, previous Money) Delta {
	change := current - previous
	d := Delta{Change: change}
	if previous == 0 {
		return d
	}
	pct := decimal.NewFromInt(int64(change)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(previous))).
		Add(decimal.New(5, -1)).
		Floor()
	d.ChangePercent = pct.IntPart()
	return d
}

// Report bundles the aggregates exported for one range.
type Report struct {
	Range   DateRange
	Totals  PeriodTotals
	Monthly []MonthSummary
	Expense []CategoryShare
	Income  []CategoryShare
}

// BuildReport runs every aggregation over txs for r.
func BuildReport(txs []Transaction, r DateRange) Report {
	return Report{
		Range:   r,
		Totals:  Totals(txs),
		Monthly: MonthlySeries(txs, r),
		Expense: CategoryBreakdown(txs, Expense),
		Income:  CategoryBreakdown(txs, Income),
	}
}
