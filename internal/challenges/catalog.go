package challenges

import (
	"fmt"
	"sort"
	"strconv"

	"simplemoney/internal/core"

	"github.com/shopspring/decimal"
)

// Definition is a catalog entry. Target is in the unit of the metric.
type Definition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Target      decimal.Decimal `json:"target"`
	Reward      int64           `json:"reward"`
	Metric      MetricKind      `json:"metric"`
}

var catalog = []Definition{
	{ID: "1", Title: "Economista Semanal", Description: "Economize R$ 50 esta semana", Icon: "Wallet", Target: decimal.NewFromInt(50), Reward: 100, Metric: MetricWeeklySavings},
	{ID: "2", Title: "Poupador Mensal", Description: "Economize R$ 200 este mês", Icon: "Target", Target: decimal.NewFromInt(200), Reward: 500, Metric: MetricMonthlySavings},
	{ID: "3", Title: "Meta Master", Description: "Complete 3 metas", Icon: "Trophy", Target: decimal.NewFromInt(3), Reward: 300, Metric: MetricCompletedGoals},
	{ID: "4", Title: "Transações Pro", Description: "Registre 10 transações", Icon: "TrendingUp", Target: decimal.NewFromInt(10), Reward: 150, Metric: MetricTransactionCount},
	{ID: "5", Title: "Primeiro Passo", Description: "Registre sua primeira transação", Icon: "Zap", Target: decimal.NewFromInt(1), Reward: 50, Metric: MetricTransactionCount},
	{ID: "6", Title: "Economia Bronze", Description: "Economize R$ 100 no total", Icon: "Award", Target: decimal.NewFromInt(100), Reward: 200, Metric: MetricLifetimeSavings},
	{ID: "7", Title: "Economia Prata", Description: "Economize R$ 500 no total", Icon: "Star", Target: decimal.NewFromInt(500), Reward: 1000, Metric: MetricLifetimeSavings},
	{ID: "8", Title: "Economia Ouro", Description: "Economize R$ 1000 no total", Icon: "Trophy", Target: decimal.NewFromInt(1000), Reward: 2500, Metric: MetricLifetimeSavings},
}

// Catalog returns a copy of the challenge catalog ordered by id.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a < b
	})
	return out
}

// Lookup finds a catalog entry by id.
func Lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Badge builds the achievement granted when the challenge completes. value is
// the metric value at completion; it is never reported below the target.
func (d Definition) Badge(value decimal.Decimal) core.Achievement {
	if value.LessThan(d.Target) {
		value = d.Target
	}
	a := core.Achievement{ChallengeID: d.ID, Title: d.Title}
	if m, err := GetMetric(d.Metric); err == nil && m.IsCurrency() {
		a.Description = "Economizou " + core.NewMoney(value).Labeled(core.DefaultCurrency)
		a.Icon = "trophy"
		return a
	}
	switch d.Metric {
	case MetricTransactionCount:
		if d.Target.Equal(decimal.NewFromInt(1)) {
			a.Description = "Registrou sua primeira transação!"
			a.Icon = "zap"
		} else {
			a.Description = fmt.Sprintf("Registrou %s transações!", value.Floor().String())
			a.Icon = "trending-up"
		}
	case MetricCompletedGoals:
		a.Description = fmt.Sprintf("Completou %s metas!", value.Floor().String())
		a.Icon = "target"
	default:
		a.Description = fmt.Sprintf("Atingiu %s!", value.Floor().String())
		a.Icon = "award"
	}
	return a
}
