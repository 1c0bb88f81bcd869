// Package storagetest provides a conformance suite shared by every
// storage.Repository implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"simplemoney/internal/core"
	"simplemoney/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Factory returns an empty repository. It is called once per subtest.
type Factory func(t *testing.T) storage.Repository

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// NewTransaction builds a valid transaction for userID.
func NewTransaction(userID string, typ core.TransactionType, cents int64, date core.Date) core.Transaction {
	return core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "entry",
		Value:     core.MoneyFromCents(cents),
		Type:      typ,
		Category:  "Geral",
		Date:      date,
		CreatedAt: base,
	}
}

// NewGoal builds a goal with the given target and current values in cents.
func NewGoal(userID string, target, current int64) core.Goal {
	return core.Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        "Viagem",
		TargetValue:  core.MoneyFromCents(target),
		CurrentValue: core.MoneyFromCents(current),
		Category:     "Lazer",
		TargetDate:   core.NewDate(2026, 1, 1),
		CreatedAt:    base,
	}
}

// NewChallenge builds an active challenge instance.
func NewChallenge(userID, challengeID string, target int64) core.Challenge {
	return core.Challenge{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: challengeID,
		Title:       "Primeiro Passo",
		Target:      decimal.NewFromInt(target),
		Current:     decimal.Zero,
		Reward:      50,
		Status:      core.ChallengeActive,
		AcceptedAt:  base,
	}
}

// Run exercises the full repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newRepo(t)) })
	t.Run("transaction not found", func(t *testing.T) { testTransactionNotFound(t, newRepo(t)) })
	t.Run("goals", func(t *testing.T) { testGoals(t, newRepo(t)) })
	t.Run("fund goal", func(t *testing.T) { testFundGoal(t, newRepo(t)) })
	t.Run("challenges", func(t *testing.T) { testChallenges(t, newRepo(t)) })
	t.Run("reward exactly once", func(t *testing.T) { testRewardOnce(t, newRepo(t)) })
	t.Run("profile", func(t *testing.T) { testProfile(t, newRepo(t)) })
	t.Run("user ids", func(t *testing.T) { testUserIDs(t, newRepo(t)) })
	t.Run("amount bounds", func(t *testing.T) { testAmountBounds(t, newRepo(t)) })
}

func testTransactions(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	older := NewTransaction("u1", core.Income, 10000, core.NewDate(2025, 3, 1))
	newer := NewTransaction("u1", core.Expense, 3000, core.NewDate(2025, 3, 5))
	other := NewTransaction("u2", core.Income, 500, core.NewDate(2025, 3, 5))
	for _, tx := range []core.Transaction{older, newer, other} {
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction: %v", err)
		}
	}

	got, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("expected [newer older], got %+v", got)
	}
	if !got[1].Value.Equal(older.Value) || !got[1].Date.Equal(older.Date.Time) || got[1].Type != core.Income {
		t.Fatalf("round trip mismatch: %+v", got[1])
	}

	newer.Name = "Mercado"
	newer.Value = core.MoneyFromCents(4550)
	if err := repo.UpdateTransaction(ctx, newer); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	fetched, err := repo.GetTransaction(ctx, "u1", newer.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if fetched.Name != "Mercado" || fetched.Value.Cents() != 4550 {
		t.Fatalf("update not persisted: %+v", fetched)
	}

	if err := repo.SoftDeleteTransaction(ctx, "u1", newer.ID, base); err != nil {
		t.Fatalf("SoftDeleteTransaction: %v", err)
	}
	got, err = repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 1 || got[0].ID != older.ID {
		t.Fatalf("deleted entry still listed: %+v", got)
	}
	if err := repo.SoftDeleteTransaction(ctx, "u1", newer.ID, base); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	if err := repo.UpdateTransaction(ctx, newer); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update of deleted entry: expected not found, got %v", err)
	}
}

func testTransactionNotFound(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	tx := NewTransaction("u1", core.Income, 100, core.NewDate(2025, 1, 1))
	if err := repo.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "u2", tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("other user's entry must not be visible, got %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testGoals(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	g := NewGoal("u1", 5000, 1000)
	if err := repo.InsertGoal(ctx, g); err != nil {
		t.Fatalf("InsertGoal: %v", err)
	}

	g.Title = "Fone"
	g.TargetValue = core.MoneyFromCents(8000)
	if err := repo.UpdateGoal(ctx, g); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	got, err := repo.GetGoal(ctx, "u1", g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.Title != "Fone" || got.TargetValue.Cents() != 8000 || got.CurrentValue.Cents() != 1000 {
		t.Fatalf("unexpected goal %+v", got)
	}
	if !got.TargetDate.Equal(g.TargetDate.Time) {
		t.Fatalf("target date mismatch: %s", got.TargetDate)
	}

	if err := repo.SoftDeleteGoal(ctx, "u1", g.ID, base); err != nil {
		t.Fatalf("SoftDeleteGoal: %v", err)
	}
	goals, err := repo.ListGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(goals) != 0 {
		t.Fatalf("deleted goal still listed: %+v", goals)
	}
	if _, err := repo.GetGoal(ctx, "u1", g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testFundGoal(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	g := NewGoal("u1", 5000, 4000)
	if err := repo.InsertGoal(ctx, g); err != nil {
		t.Fatalf("InsertGoal: %v", err)
	}

	entry := NewTransaction("u1", core.Expense, 1, core.NewDate(2025, 3, 10))
	entry.Category = core.GoalFundingCategory
	funded, err := repo.FundGoal(ctx, "u1", g.ID, core.MoneyFromCents(2000), entry)
	if err != nil {
		t.Fatalf("FundGoal: %v", err)
	}
	if funded.CurrentValue.Cents() != 5000 {
		t.Fatalf("expected goal capped at target, got %s", funded.CurrentValue)
	}

	txs, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Value.Cents() != 1000 || txs[0].Category != core.GoalFundingCategory {
		t.Fatalf("expected a 10.00 funding expense, got %+v", txs)
	}

	entry.ID = uuid.NewString()
	if _, err := repo.FundGoal(ctx, "u1", g.ID, core.MoneyFromCents(100), entry); !errors.Is(err, core.ErrGoalFundingConflict) {
		t.Fatalf("funding a complete goal: expected conflict, got %v", err)
	}
	if _, err := repo.FundGoal(ctx, "u1", "missing", core.MoneyFromCents(100), entry); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if txs, _ := repo.ListTransactions(ctx, "u1"); len(txs) != 1 {
		t.Fatalf("failed funding must not record an expense, got %d entries", len(txs))
	}
}

func testChallenges(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	c := NewChallenge("u1", "4", 10)
	if err := repo.InsertChallenge(ctx, c); err != nil {
		t.Fatalf("InsertChallenge: %v", err)
	}
	dup := NewChallenge("u1", "4", 10)
	if err := repo.InsertChallenge(ctx, dup); !errors.Is(err, core.ErrChallengeAccepted) {
		t.Fatalf("duplicate accept: expected ErrChallengeAccepted, got %v", err)
	}

	ok, err := repo.AdvanceChallenge(ctx, "u1", c.ID, decimal.RequireFromString("2.5"), nil)
	if err != nil || !ok {
		t.Fatalf("AdvanceChallenge: ok=%v err=%v", ok, err)
	}
	ok, err = repo.AdvanceChallenge(ctx, "u1", c.ID, decimal.NewFromInt(1), nil)
	if err != nil || ok {
		t.Fatalf("regressing advance must be refused: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetChallenge(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("GetChallenge: %v", err)
	}
	if !got.Current.Equal(decimal.RequireFromString("2.5")) || got.Status != core.ChallengeActive {
		t.Fatalf("unexpected challenge %+v", got)
	}

	ok, err = repo.AbandonChallenge(ctx, "u1", c.ID, base)
	if err != nil || !ok {
		t.Fatalf("AbandonChallenge: ok=%v err=%v", ok, err)
	}
	ok, err = repo.AbandonChallenge(ctx, "u1", c.ID, base)
	if err != nil || ok {
		t.Fatalf("second abandon must report false: ok=%v err=%v", ok, err)
	}
	ok, err = repo.AdvanceChallenge(ctx, "u1", c.ID, decimal.NewFromInt(5), nil)
	if err != nil || ok {
		t.Fatalf("abandoned challenge must not advance: ok=%v err=%v", ok, err)
	}

	// Abandoning frees the slot for a new instance.
	if err := repo.InsertChallenge(ctx, dup); err != nil {
		t.Fatalf("re-accept after abandon: %v", err)
	}
	list, err := repo.ListChallenges(ctx, "u1")
	if err != nil {
		t.Fatalf("ListChallenges: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(list))
	}
	if _, err := repo.GetChallenge(ctx, "u2", c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testRewardOnce(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	c := NewChallenge("u1", "5", 1)
	if err := repo.InsertChallenge(ctx, c); err != nil {
		t.Fatalf("InsertChallenge: %v", err)
	}

	a := core.Achievement{ID: uuid.NewString(), UserID: "u1", ChallengeID: "5", Title: "Primeiro Passo", Icon: "zap", Date: base}
	if ok, err := repo.GrantChallengeReward(ctx, "u1", c.ID, 50, a, base); err != nil || ok {
		t.Fatalf("active challenge must not be rewarded: ok=%v err=%v", ok, err)
	}

	done := base.Add(time.Minute)
	if ok, err := repo.AdvanceChallenge(ctx, "u1", c.ID, decimal.NewFromInt(1), &done); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.GrantChallengeReward(ctx, "u1", c.ID, 50, a, base); err != nil || !ok {
		t.Fatalf("first grant: ok=%v err=%v", ok, err)
	}
	a.ID = uuid.NewString()
	if ok, err := repo.GrantChallengeReward(ctx, "u1", c.ID, 50, a, base); err != nil || ok {
		t.Fatalf("second grant must be refused: ok=%v err=%v", ok, err)
	}

	p, err := repo.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Points != 50 {
		t.Fatalf("expected 50 points, got %d", p.Points)
	}
	achievements, err := repo.ListAchievements(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	if len(achievements) != 1 {
		t.Fatalf("expected one achievement, got %d", len(achievements))
	}
	got, err := repo.GetChallenge(ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("GetChallenge: %v", err)
	}
	if got.Status != core.ChallengeCompleted || got.CompletedAt == nil || got.RewardedAt == nil {
		t.Fatalf("unexpected challenge state %+v", got)
	}
	if err := repo.InsertChallenge(ctx, NewChallenge("u1", "5", 1)); !errors.Is(err, core.ErrChallengeAccepted) {
		t.Fatalf("completed challenge must block re-accept, got %v", err)
	}
}

func testProfile(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	p, err := repo.GetProfile(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Points != 0 || !p.Balance.IsZero() || p.UserID != "nobody" {
		t.Fatalf("expected zero profile, got %+v", p)
	}

	if err := repo.SaveBalance(ctx, "u1", core.MoneyFromCents(-1234), base); err != nil {
		t.Fatalf("SaveBalance: %v", err)
	}
	if err := repo.AddPoints(ctx, "u1", 10, base); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := repo.AddPoints(ctx, "u1", 5, base); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := repo.SaveBalance(ctx, "u1", core.MoneyFromCents(7000), base); err != nil {
		t.Fatalf("SaveBalance: %v", err)
	}
	p, err = repo.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Points != 15 || p.Balance.Cents() != 7000 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if err := repo.AddPoints(ctx, "u1", -1, base); err == nil {
		t.Fatal("negative points must be rejected")
	}
}

func testUserIDs(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	if err := repo.InsertTransaction(ctx, NewTransaction("b", core.Income, 100, core.NewDate(2025, 1, 1))); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	if err := repo.SaveBalance(ctx, "a", core.MoneyFromCents(0), base); err != nil {
		t.Fatalf("SaveBalance: %v", err)
	}
	if err := repo.InsertGoal(ctx, NewGoal("c", 100, 0)); err != nil {
		t.Fatalf("InsertGoal: %v", err)
	}
	ids, err := repo.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected [a b c], got %v", ids)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testAmountBounds(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	huge := core.NewMoney(decimal.RequireFromString("184467440737095517.16"))

	tx := NewTransaction("u1", core.Income, 100, core.NewDate(2025, 3, 1))
	tx.Value = huge
	if err := repo.InsertTransaction(ctx, tx); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("InsertTransaction: expected ErrInvalidAmount, got %v", err)
	}

	ok := NewTransaction("u1", core.Income, 100, core.NewDate(2025, 3, 1))
	if err := repo.InsertTransaction(ctx, ok); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	ok.Value = huge
	if err := repo.UpdateTransaction(ctx, ok); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("UpdateTransaction: expected ErrInvalidAmount, got %v", err)
	}
	got, err := repo.GetTransaction(ctx, "u1", ok.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Value.Cents() != 100 {
		t.Fatalf("rejected update changed the stored value to %s", got.Value)
	}

	g := NewGoal("u1", 1000, 0)
	g.TargetValue = huge
	if err := repo.InsertGoal(ctx, g); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("InsertGoal: expected ErrInvalidAmount, got %v", err)
	}

	largest := NewTransaction("u1", core.Income, 0, core.NewDate(2025, 3, 2))
	largest.Value = core.MaxAmount
	if err := repo.InsertTransaction(ctx, largest); err != nil {
		t.Fatalf("InsertTransaction(MaxAmount): %v", err)
	}
	fetched, err := repo.GetTransaction(ctx, "u1", largest.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !fetched.Value.Equal(core.MaxAmount) {
		t.Fatalf("MaxAmount round trip: got %s", fetched.Value)
	}
}
