// Package challenges holds the challenge catalog and the pure evaluation stage
// of the ledger cascade.
//
// Each catalog entry names a metric kind. Metrics are strategies looked up in a
// registry, so a new kind of challenge only needs a new Metric implementation
// and a catalog line.
package challenges

import (
	"fmt"
	"time"

	"simplemoney/internal/core"

	"github.com/shopspring/decimal"
)

type MetricKind string

const (
	MetricWeeklySavings    MetricKind = "weekly_savings"
	MetricMonthlySavings   MetricKind = "monthly_savings"
	MetricLifetimeSavings  MetricKind = "lifetime_savings"
	MetricTransactionCount MetricKind = "transaction_count"
	MetricCompletedGoals   MetricKind = "completed_goals"
)

// Snapshot is the user state a metric is measured against.
type Snapshot struct {
	Transactions []core.Transaction
	Goals        []core.Goal
	Now          time.Time
}

// Metric is the strategy interface for measuring challenge progress.
type Metric interface {
	// Measure returns the current, uncapped value of the metric.
	Measure(s Snapshot) decimal.Decimal
	// IsCurrency reports whether the value is an amount of money.
	IsCurrency() bool
}

// SavingsWindow measures max(0, income - expense) over entries dated within
// the last Days calendar days, today included. Zero Days means no window.
type SavingsWindow struct {
	Days int
}

func (w SavingsWindow) Measure(s Snapshot) decimal.Decimal {
	var from core.Date
	if w.Days > 0 {
		from = core.DateOf(s.Now).AddDays(-(w.Days - 1))
	}
	var income, expense core.Money
	for _, tx := range s.Transactions {
		if tx.IsDeleted() {
			continue
		}
		if w.Days > 0 && tx.Date.Before(from.Time) {
			continue
		}
		switch tx.Type {
		case core.Income:
			income = income.Add(tx.Value)
		case core.Expense:
			expense = expense.Add(tx.Value)
		}
	}
	savings := income.Sub(expense)
	if savings.IsNegative() {
		return decimal.Zero
	}
	return savings.Decimal()
}

func (SavingsWindow) IsCurrency() bool { return true }

// TransactionCounter counts non-deleted transactions.
type TransactionCounter struct{}

func (TransactionCounter) Measure(s Snapshot) decimal.Decimal {
	return decimal.NewFromInt(int64(len(core.Active(s.Transactions))))
}

func (TransactionCounter) IsCurrency() bool { return false }

// CompletedGoalCounter counts non-deleted goals that reached their target.
type CompletedGoalCounter struct{}

func (CompletedGoalCounter) Measure(s Snapshot) decimal.Decimal {
	return decimal.NewFromInt(int64(core.CompletedGoals(s.Goals)))
}

func (CompletedGoalCounter) IsCurrency() bool { return false }

var metrics = map[MetricKind]Metric{
	MetricWeeklySavings:    SavingsWindow{Days: 7},
	MetricMonthlySavings:   SavingsWindow{Days: 30},
	MetricLifetimeSavings:  SavingsWindow{},
	MetricTransactionCount: TransactionCounter{},
	MetricCompletedGoals:   CompletedGoalCounter{},
}

// GetMetric returns the strategy registered for kind.
func GetMetric(kind MetricKind) (Metric, error) {
	m, ok := metrics[kind]
	if !ok {
		return nil, fmt.Errorf("unknown metric kind: %s", kind)
	}
	return m, nil
}

// RegisterMetric adds or replaces the strategy for kind. It is not safe to
// call concurrently with evaluation; register at init time.
func RegisterMetric(kind MetricKind, m Metric) {
	metrics[kind] = m
}
