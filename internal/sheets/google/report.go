package google

import (
	"math"

	"kakeibo/internal/core"
)

// ReportRows lays rep out as a values matrix: headline totals, then the
// monthly series, then the category breakdown of both types.
func ReportRows(rep core.Report) [][]any {
	rows := [][]any{
		{"期間", rep.Range.Start.String(), rep.Range.End.String()},
		{"収入", rep.Totals.Income.Int64()},
		{"支出", rep.Totals.Expense.Int64()},
		{"収支", rep.Totals.Balance.Int64()},
		{},
		{"月", "収入", "支出", "収支"},
	}
	for _, m := range rep.Monthly {
		rows = append(rows, []any{m.Month.String(), m.Income.Int64(), m.Expense.Int64(), m.Balance.Int64()})
	}

	rows = append(rows, []any{}, []any{"区分", "カテゴリ", "金額", "件数", "割合(%)"})
	for _, group := range [][]core.CategoryShare{rep.Expense, rep.Income} {
		for _, s := range group {
			rows = append(rows, []any{typeLabel(s.Type), s.Name, s.Amount.Int64(), s.Count, roundTenth(s.Percentage)})
		}
	}
	return rows
}

func typeLabel(t core.TransactionType) string {
	if t == core.Income {
		return "収入"
	}
	return "支出"
}

func roundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

func maxWidth(rows [][]any) int {
	w := 1
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// columnName converts a 1-based column index to A1 letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
