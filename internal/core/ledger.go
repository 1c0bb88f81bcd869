package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// FilterAll disables a type or category filter.
const FilterAll = "all"

// Totals aggregates non-deleted transactions by type.
type Totals struct {
	Income  Money
	Expense Money
	Count   int
}

// Balance is income minus expense.
func (t Totals) Balance() Money {
	return t.Income.Sub(t.Expense)
}

// PeriodFilter selects ledger entries. Nil bounds are open; empty or "all"
// Type and Category match everything.
type PeriodFilter struct {
	Start    *Date
	End      *Date
	Type     string
	Category string
}

// CalculateBalance folds the ledger: income adds, expense subtracts, soft
// deleted entries are ignored. An empty ledger has a zero balance.
func CalculateBalance(txs []Transaction) Money {
	return SumTotals(txs).Balance()
}

// SumTotals sums non-deleted transactions by type.
func SumTotals(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.IsDeleted() {
			continue
		}
		t.Count++
		switch tx.Type {
		case Income:
			t.Income = t.Income.Add(tx.Value)
		case Expense:
			t.Expense = t.Expense.Add(tx.Value)
		}
	}
	return t
}

// Active drops soft deleted entries.
func Active(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsDeleted() {
			out = append(out, tx)
		}
	}
	return out
}

func (f PeriodFilter) Validate() error {
	switch f.Type {
	case "", FilterAll, string(Income), string(Expense):
	default:
		return ErrInvalidType
	}
	if f.Start != nil && f.End != nil && f.End.Before(f.Start.Time) {
		return Validation("end", "end date before start date")
	}
	return nil
}

// Match reports whether tx passes the filter. Date bounds are inclusive and
// compare calendar days only.
func (f PeriodFilter) Match(tx Transaction) bool {
	if tx.IsDeleted() {
		return false
	}
	day := DateOf(tx.Date.Time)
	if f.Start != nil && day.Before(DateOf(f.Start.Time).Time) {
		return false
	}
	if f.End != nil && day.After(DateOf(f.End.Time).Time) {
		return false
	}
	if f.Type != "" && f.Type != FilterAll && string(tx.Type) != f.Type {
		return false
	}
	if f.Category != "" && f.Category != FilterAll && tx.Category != f.Category {
		return false
	}
	return true
}

// FilterByPeriod returns the matching entries ordered by date descending,
// most recently created first within a day.
func FilterByPeriod(txs []Transaction, f PeriodFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	SortByDateDesc(out)
	return out
}

func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}

// Categories returns the sorted unique categories used by non-deleted entries.
func Categories(txs []Transaction) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tx := range txs {
		if tx.IsDeleted() {
			continue
		}
		c := strings.TrimSpace(tx.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// OverallGoalProgress is the rounded mean of the per-goal funded percentage
// over non-deleted goals; zero when there are none.
func OverallGoalProgress(goals []Goal) int {
	total := decimal.Zero
	n := 0
	for _, g := range goals {
		if g.IsDeleted() {
			continue
		}
		total = total.Add(g.Percent())
		n++
	}
	if n == 0 {
		return 0
	}
	return int(total.Div(decimal.NewFromInt(int64(n))).Round(0).IntPart())
}

// CompletedGoals counts non-deleted goals that reached their target.
func CompletedGoals(goals []Goal) int {
	n := 0
	for _, g := range goals {
		if !g.IsDeleted() && g.IsComplete() {
			n++
		}
	}
	return n
}
