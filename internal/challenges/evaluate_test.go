package challenges

import (
	"testing"
	"time"

	"simplemoney/internal/core"

	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func instance(t *testing.T, id string, current int64) core.Challenge {
	t.Helper()
	def, ok := Lookup(id)
	if !ok {
		t.Fatalf("unknown catalog id %s", id)
	}
	return NewInstance(def, "u1", decimal.NewFromInt(current), now.Add(-time.Hour))
}

func TestEvaluate_FirstTransactionCompletes(t *testing.T) {
	c := instance(t, "5", 0)
	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 100, core.DateOf(now))}}

	adv := Evaluate([]core.Challenge{c}, s)
	if len(adv) != 1 {
		t.Fatalf("expected one advance, got %d", len(adv))
	}
	got := adv[0]
	if !got.Completed || got.Challenge.Status != core.ChallengeCompleted || got.Challenge.CompletedAt == nil {
		t.Fatalf("expected completion, got %+v", got)
	}
	if !got.Challenge.Current.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected current 1, got %s", got.Challenge.Current)
	}
}

func TestEvaluate_Monotone(t *testing.T) {
	c := instance(t, "6", 80)
	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 5000, core.DateOf(now))}}

	if adv := Evaluate([]core.Challenge{c}, s); len(adv) != 0 {
		t.Fatalf("metric below current must not regress progress, got %+v", adv)
	}
}

func TestEvaluate_CapsAtTarget(t *testing.T) {
	c := instance(t, "1", 10)
	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 100000, core.DateOf(now))}}

	adv := Evaluate([]core.Challenge{c}, s)
	if len(adv) != 1 {
		t.Fatalf("expected one advance, got %d", len(adv))
	}
	if !adv[0].Challenge.Current.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected current capped at 50, got %s", adv[0].Challenge.Current)
	}
	if !adv[0].Previous.Equal(decimal.NewFromInt(10)) || !adv[0].Metric.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected previous/metric %+v", adv[0])
	}
}

func TestEvaluate_PartialProgressStaysActive(t *testing.T) {
	c := instance(t, "4", 0)
	s := Snapshot{Now: now, Transactions: []core.Transaction{
		entry(core.Income, 100, core.DateOf(now)),
		entry(core.Expense, 50, core.DateOf(now)),
	}}

	adv := Evaluate([]core.Challenge{c}, s)
	if len(adv) != 1 || adv[0].Completed || adv[0].Challenge.Status != core.ChallengeActive {
		t.Fatalf("expected active advance, got %+v", adv)
	}
	if !adv[0].Challenge.Current.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected current 2, got %s", adv[0].Challenge.Current)
	}
}

func TestEvaluate_SkipsClosedAndUnknown(t *testing.T) {
	completed := instance(t, "5", 1)
	completed.Status = core.ChallengeCompleted
	abandoned := instance(t, "5", 0)
	abandoned.Status = core.ChallengeAbandoned
	unknown := instance(t, "5", 0)
	unknown.ChallengeID = "99"

	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 100, core.DateOf(now))}}
	if adv := Evaluate([]core.Challenge{completed, abandoned, unknown}, s); len(adv) != 0 {
		t.Fatalf("expected no advances, got %+v", adv)
	}
}

func TestEvaluate_SeededAtTargetCompletes(t *testing.T) {
	c := instance(t, "3", 3)
	adv := Evaluate([]core.Challenge{c}, Snapshot{Now: now})
	if len(adv) != 1 || !adv[0].Completed {
		t.Fatalf("expected completion of seeded challenge, got %+v", adv)
	}
}

func TestPendingPayouts(t *testing.T) {
	rewarded := now
	paid := instance(t, "5", 1)
	paid.Status = core.ChallengeCompleted
	paid.RewardedAt = &rewarded

	owed := instance(t, "7", 500)
	owed.Status = core.ChallengeCompleted

	active := instance(t, "8", 10)

	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 60000, core.DateOf(now))}}
	payouts := PendingPayouts([]core.Challenge{paid, owed, active}, s)
	if len(payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(payouts))
	}
	p := payouts[0]
	if p.Challenge.ID != owed.ID || p.Points != 1000 {
		t.Fatalf("unexpected payout %+v", p)
	}
	if p.Achievement.Description != "Economizou R$ 600,00" || p.Achievement.Icon != "trophy" {
		t.Fatalf("unexpected achievement %+v", p.Achievement)
	}
	if p.Achievement.ID == "" || p.Achievement.UserID != "u1" {
		t.Fatalf("achievement must carry id and user, got %+v", p.Achievement)
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		id    string
		value int64
		desc  string
		icon  string
	}{
		{"5", 1, "Registrou sua primeira transação!", "zap"},
		{"4", 12, "Registrou 12 transações!", "trending-up"},
		{"3", 3, "Completou 3 metas!", "target"},
		{"1", 20, "Economizou R$ 50,00", "trophy"},
		{"7", 640, "Economizou R$ 640,00", "trophy"},
	}
	for _, tt := range tests {
		def, _ := Lookup(tt.id)
		got := def.Badge(decimal.NewFromInt(tt.value))
		if got.Description != tt.desc || got.Icon != tt.icon {
			t.Errorf("Badge(%s) = %q/%q, want %q/%q", tt.id, got.Description, got.Icon, tt.desc, tt.icon)
		}
	}
}

type unitMetric struct{ currency bool }

func (unitMetric) Measure(Snapshot) decimal.Decimal { return decimal.Zero }
func (u unitMetric) IsCurrency() bool               { return u.currency }

func TestBadge_FollowsMetricUnit(t *testing.T) {
	const (
		money MetricKind = "test_money"
		count MetricKind = "test_count"
	)
	RegisterMetric(money, unitMetric{currency: true})
	RegisterMetric(count, unitMetric{currency: false})
	defer delete(metrics, money)
	defer delete(metrics, count)

	tests := []struct {
		kind MetricKind
		desc string
		icon string
	}{
		{money, "Economizou R$ 75,00", "trophy"},
		{count, "Atingiu 75!", "award"},
		{"unregistered", "Atingiu 75!", "award"},
	}
	for _, tt := range tests {
		def := Definition{ID: "x", Title: "Teste", Target: decimal.NewFromInt(75), Metric: tt.kind}
		got := def.Badge(decimal.NewFromInt(10))
		if got.Description != tt.desc || got.Icon != tt.icon {
			t.Errorf("Badge(%s) = %q/%q, want %q/%q", tt.kind, got.Description, got.Icon, tt.desc, tt.icon)
		}
	}
}

func TestSeed(t *testing.T) {
	def, _ := Lookup("6")
	s := Snapshot{Now: now, Transactions: []core.Transaction{entry(core.Income, 25000, core.DateOf(now))}}

	if got := Seed(def, s, nil); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Seed from metric = %s, want capped 100", got)
	}
	override := decimal.NewFromInt(40)
	if got := Seed(def, s, &override); !got.Equal(override) {
		t.Errorf("Seed with override = %s, want 40", got)
	}
	negative := decimal.NewFromInt(-5)
	if got := Seed(def, s, &negative); !got.IsZero() {
		t.Errorf("Seed with negative override = %s, want 0", got)
	}
}

func TestCatalogOrder(t *testing.T) {
	cat := Catalog()
	if len(cat) != 8 {
		t.Fatalf("expected 8 catalog entries, got %d", len(cat))
	}
	for i, d := range cat {
		if want := string(rune('1' + i)); d.ID != want {
			t.Errorf("entry %d id = %s, want %s", i, d.ID, want)
		}
	}
}
