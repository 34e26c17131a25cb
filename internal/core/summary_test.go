package core

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"
)

func tx(typ TransactionType, amount Money, date, category string) Transaction {
	d, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return Transaction{Type: typ, Amount: amount, Date: d, CategoryName: category}
}

func sampleTransactions() []Transaction {
	return []Transaction{
		tx(Expense, 1000, "2024-01-15", "食費"),
		tx(Expense, 500, "2024-01-20", "食費"),
		tx(Income, 3000, "2024-01-01", "給与"),
	}
}

func TestMonthlySeriesExample(t *testing.T) {
	r := mustRange(t, "2024-01-01", "2024-01-31")
	series := MonthlySeries(sampleTransactions(), r)
	if len(series) != 1 {
		t.Fatalf("expected 1 month, got %d", len(series))
	}
	got := series[0]
	if got.Month.String() != "2024-01" || got.Income != 3000 || got.Expense != 1500 || got.Balance != 1500 {
		t.Fatalf("unexpected month summary: %+v", got)
	}
}

func TestCategoryBreakdownExample(t *testing.T) {
	shares := CategoryBreakdown(sampleTransactions(), Expense)
	if len(shares) != 1 {
		t.Fatalf("expected 1 group, got %d", len(shares))
	}
	if shares[0].Name != "食費" || shares[0].Amount != 1500 || shares[0].Percentage != 100 || shares[0].Count != 2 {
		t.Fatalf("unexpected share: %+v", shares[0])
	}
}

func TestMonthlySeriesZeroFillsAndIgnoresOutOfRange(t *testing.T) {
	txs := []Transaction{
		tx(Expense, 100, "2023-12-31", "食費"), // before range
		tx(Expense, 200, "2024-01-10", "食費"),
		tx(Income, 900, "2024-03-05", "給与"),
		tx(Income, 50, "2024-04-01", "給与"), // after range
	}
	r := mustRange(t, "2024-01-01", "2024-03-31")
	series := MonthlySeries(txs, r)
	if len(series) != len(r.Months()) {
		t.Fatalf("series length %d != months %d", len(series), len(r.Months()))
	}
	want := []MonthSummary{
		{Month: YearMonth{2024, time.January}, Expense: 200, Balance: -200},
		{Month: YearMonth{2024, time.February}},
		{Month: YearMonth{2024, time.March}, Income: 900, Balance: 900},
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("month %d: got %+v, want %+v", i, series[i], want[i])
		}
	}
}

func TestMonthlySeriesRangeMidMonth(t *testing.T) {
	txs := []Transaction{
		tx(Expense, 100, "2024-01-05", "食費"), // same month, before start
		tx(Expense, 300, "2024-01-20", "食費"),
	}
	series := MonthlySeries(txs, mustRange(t, "2024-01-15", "2024-02-10"))
	if len(series) != 2 || series[0].Expense != 300 || series[1].Expense != 0 {
		t.Fatalf("unexpected series %+v", series)
	}
}

func TestCategoryBreakdownUncategorizedAndOrdering(t *testing.T) {
	txs := []Transaction{
		tx(Expense, 300, "2024-01-01", "交通費"),
		tx(Expense, 700, "2024-01-02", ""),
		tx(Expense, 300, "2024-01-03", "日用品"),
		tx(Expense, 200, "2024-01-04", "交通費"),
		tx(Income, 5000, "2024-01-25", "給与"),
	}
	shares := CategoryBreakdown(txs, Expense)
	if len(shares) != 3 {
		t.Fatalf("expected 3 groups, got %+v", shares)
	}
	if shares[0].Name != Uncategorized || shares[0].Amount != 700 {
		t.Fatalf("expected uncategorized first, got %+v", shares[0])
	}
	if shares[1].Name != "交通費" || shares[1].Amount != 500 || shares[1].Count != 2 {
		t.Fatalf("unexpected second group %+v", shares[1])
	}

	var sum Money
	var pct float64
	for _, s := range shares {
		sum += s.Amount
		pct += s.Percentage
		if s.Type != Expense {
			t.Fatalf("unexpected type in expense breakdown: %+v", s)
		}
	}
	if sum != SumByType(txs, Expense) {
		t.Fatalf("breakdown sum %d != total %d", sum, SumByType(txs, Expense))
	}
	if math.Abs(pct-100) > 1e-9 {
		t.Fatalf("percentages sum to %f", pct)
	}
}

func TestCategoryBreakdownEmpty(t *testing.T) {
	if shares := CategoryBreakdown(nil, Expense); len(shares) != 0 {
		t.Fatalf("expected empty breakdown, got %+v", shares)
	}
	both := BreakdownByType(sampleTransactions())
	if len(both[Income]) != 1 || len(both[Expense]) != 1 {
		t.Fatalf("unexpected breakdown by type: %+v", both)
	}
}

func TestTotals(t *testing.T) {
	totals := Totals(sampleTransactions())
	if totals.Income != 3000 || totals.Expense != 1500 || totals.Balance != 1500 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	neg := Totals([]Transaction{tx(Expense, 800, "2024-01-01", "")})
	if neg.Balance != -800 {
		t.Fatalf("expected negative balance, got %d", neg.Balance)
	}
}

func TestNewDelta(t *testing.T) {
	cases := []struct {
		current, previous Money
		change            Money
		pct               int64
	}{
		{1500, 1000, 500, 50},
		{500, 1000, -500, -50},
		{1000, 0, 1000, 0},
		{0, 0, 0, 0},
		{1000, 3000, -2000, -67},
		{2000, 3000, -1000, -33},
		{1005, 1000, 5, 1}, // 0.5 rounds up
		{995, 1000, -5, 0}, // -0.5 rounds up too
		{175, 200, -25, -12},
		{225, 200, 25, 13},
		{50, -100, 150, -150},
	}
	for _, tc := range cases {
		d := NewDelta(tc.current, tc.previous)
		if d.Change != tc.change || d.ChangePercent != tc.pct {
			t.Errorf("NewDelta(%d, %d) = %+v, want change=%d pct=%d", tc.current, tc.previous, d, tc.change, tc.pct)
		}
	}
}

func TestCompare(t *testing.T) {
	current := []Transaction{
		tx(Income, 3000, "2024-01-01", "給与"),
		tx(Expense, 1500, "2024-01-10", "食費"),
	}
	previous := []Transaction{
		tx(Income, 2000, "2023-01-01", "給与"),
	}
	c := Compare(current, previous)
	if c.Income.Change != 1000 || c.Income.ChangePercent != 50 {
		t.Fatalf("unexpected income delta %+v", c.Income)
	}
	if c.Expense.Change != 1500 || c.Expense.ChangePercent != 0 {
		t.Fatalf("expense delta must be 0%% when previous is 0: %+v", c.Expense)
	}
	if c.Balance.Change != -500 || c.Balance.ChangePercent != -25 {
		t.Fatalf("unexpected balance delta %+v", c.Balance)
	}

	window := ComparisonWindow(mustRange(t, "2024-01-01", "2024-01-31"))
	if window.String() != "2023-01-01..2023-01-31" {
		t.Fatalf("unexpected comparison window %s", window)
	}
}

func TestBuildReport(t *testing.T) {
	r := mustRange(t, "2024-01-01", "2024-02-29")
	rep := BuildReport(sampleTransactions(), r)
	if rep.Totals.Balance != 1500 || len(rep.Monthly) != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Expense) != 1 || len(rep.Income) != 1 || rep.Income[0].Name != "給与" {
		t.Fatalf("unexpected breakdowns %+v / %+v", rep.Expense, rep.Income)
	}
}

func TestCategoryBreakdownTransactionsNewestFirst(t *testing.T) {
	early := tx(Expense, 300, "2024-01-03", "食費")
	early.ID = "a"
	late := tx(Expense, 200, "2024-01-20", "食費")
	late.ID = "b"
	sameDayOld := tx(Expense, 100, "2024-01-10", "食費")
	sameDayOld.ID, sameDayOld.CreatedAt = "c", time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	sameDayNew := tx(Expense, 100, "2024-01-10", "食費")
	sameDayNew.ID, sameDayNew.CreatedAt = "d", time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	other := tx(Expense, 50, "2024-01-31", "交通費")

	shares := CategoryBreakdown([]Transaction{early, sameDayOld, other, late, sameDayNew}, Expense)
	if len(shares) != 2 || shares[0].Name != "食費" {
		t.Fatalf("unexpected shares %+v", shares)
	}
	var ids []string
	for _, m := range shares[0].Transactions {
		ids = append(ids, m.ID)
	}
	if got := fmt.Sprint(ids); got != "[b d c a]" {
		t.Fatalf("members should be newest first, got %s", got)
	}
	if len(shares[0].Transactions) != shares[0].Count || len(shares[1].Transactions) != 1 {
		t.Fatalf("every member belongs to exactly one group: %+v", shares)
	}
}

func TestCategoryBreakdownSumsToTotal(t *testing.T) {
	names := []string{"食費", "住居費", "交通費", "", "娯楽費"}
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var txs []Transaction
		for i := rng.Intn(40); i > 0; i-- {
			typ := Expense
			if rng.Intn(3) == 0 {
				typ = Income
			}
			day := fmt.Sprintf("2024-%02d-%02d", 1+rng.Intn(12), 1+rng.Intn(28))
			txs = append(txs, tx(typ, Money(1+rng.Intn(100000)), day, names[rng.Intn(len(names))]))
		}
		for _, typ := range []TransactionType{Expense, Income} {
			shares := CategoryBreakdown(txs, typ)
			var sum Money
			var pct float64
			members := 0
			for i, s := range shares {
				sum += s.Amount
				pct += s.Percentage
				members += len(s.Transactions)
				if i > 0 && shares[i-1].Amount < s.Amount {
					t.Fatalf("round %d: shares not sorted by amount: %+v", round, shares)
				}
			}
			total := SumByType(txs, typ)
			if sum != total {
				t.Fatalf("round %d %s: breakdown sum %d != total %d", round, typ, sum, total)
			}
			if total > 0 && math.Abs(pct-100) > 1e-6 {
				t.Fatalf("round %d %s: percentages sum to %f", round, typ, pct)
			}
			if total == 0 && len(shares) != 0 {
				t.Fatalf("round %d %s: empty type should have no shares", round, typ)
			}
			count := 0
			for _, x := range txs {
				if x.Type == typ {
					count++
				}
			}
			if members != count {
				t.Fatalf("round %d %s: %d members, want %d", round, typ, members, count)
			}
		}
	}
}
