package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/storage"
	"simplemoney/internal/storage/memory"

	"github.com/shopspring/decimal"
)

const user = "user-1"

var fixedNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

// flakyStore fails SaveBalance while failBalance is set.
type flakyStore struct {
	*memory.Store
	mu          sync.Mutex
	failBalance bool
}

func (f *flakyStore) SaveBalance(ctx context.Context, userID string, balance core.Money, at time.Time) error {
	f.mu.Lock()
	fail := f.failBalance
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Store.SaveBalance(ctx, userID, balance, at)
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.failBalance = v
	f.mu.Unlock()
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.EventType
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e.Type)
	return p.err
}

func newTestService(t *testing.T) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewLedgerService(store, nil, LedgerConfig{Now: func() time.Time { return fixedNow }}), store
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return m
}

func addTx(t *testing.T, svc *LedgerService, typ core.TransactionType, value string) core.Transaction {
	t.Helper()
	res, err := svc.AddTransaction(context.Background(), user, TransactionInput{
		Name:     "entry",
		Value:    money(t, value),
		Type:     typ,
		Category: "Geral",
		Date:     core.DateOf(fixedNow),
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	return res.Transaction
}

func balanceOf(t *testing.T, svc *LedgerService) string {
	t.Helper()
	b, err := svc.Balance(context.Background(), user)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b.String()
}

func TestNewLedgerService_Defaults(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, LedgerConfig{})
	if svc.config.BackendTimeout != 5*time.Second {
		t.Errorf("expected BackendTimeout 5s, got %v", svc.config.BackendTimeout)
	}
	if svc.config.Currency != core.DefaultCurrency {
		t.Errorf("expected currency %s, got %s", core.DefaultCurrency, svc.config.Currency)
	}
	if svc.config.Now == nil {
		t.Error("expected a default clock")
	}
}

func TestBalance_EmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)
	if got := balanceOf(t, svc); got != "0.00" {
		t.Errorf("expected 0.00, got %s", got)
	}
}

func TestBalance_IncomeMinusExpense(t *testing.T) {
	svc, store := newTestService(t)
	addTx(t, svc, core.Income, "100")
	addTx(t, svc, core.Expense, "30")

	if got := balanceOf(t, svc); got != "70.00" {
		t.Errorf("expected 70.00, got %s", got)
	}
	p, _ := store.GetProfile(context.Background(), user)
	if p.Balance.String() != "70.00" {
		t.Errorf("expected cached balance 70.00, got %s", p.Balance)
	}
}

func TestAddTransaction_Validation(t *testing.T) {
	svc, store := newTestService(t)
	tests := []struct {
		name string
		in   TransactionInput
	}{
		{"zero value", TransactionInput{Name: "a", Value: core.Money{}, Type: core.Income, Category: "c", Date: core.DateOf(fixedNow)}},
		{"bad type", TransactionInput{Name: "a", Value: money(t, "1"), Type: "transfer", Category: "c", Date: core.DateOf(fixedNow)}},
		{"empty name", TransactionInput{Name: "  ", Value: money(t, "1"), Type: core.Income, Category: "c", Date: core.DateOf(fixedNow)}},
		{"empty category", TransactionInput{Name: "a", Value: money(t, "1"), Type: core.Income, Date: core.DateOf(fixedNow)}},
		{"no date", TransactionInput{Name: "a", Value: money(t, "1"), Type: core.Income, Category: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddTransaction(context.Background(), user, tt.in)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	txs, _ := store.ListTransactions(context.Background(), user)
	if len(txs) != 0 {
		t.Errorf("expected no stored transactions, got %d", len(txs))
	}
}

func TestAmountsAboveMaxAreRejected(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	svc := NewLedgerService(repo, nil, LedgerConfig{Now: func() time.Time { return fixedNow }})
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	huge := core.NewMoney(decimal.RequireFromString("184467440737095517.16"))
	_, err = svc.AddTransaction(ctx, user, TransactionInput{Name: "a", Value: huge, Type: core.Income, Category: "c", Date: core.DateOf(fixedNow)})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	_, err = svc.CreateGoal(ctx, user, GoalInput{Title: "Ilha", TargetValue: core.MaxAmount.Add(core.MoneyFromCents(1)), Category: "Lazer"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for goal target, got %v", err)
	}

	if _, err := svc.AddTransaction(ctx, user, TransactionInput{Name: "a", Value: core.MaxAmount, Type: core.Income, Category: "c", Date: core.DateOf(fixedNow)}); err != nil {
		t.Fatalf("MaxAmount should be accepted: %v", err)
	}
	bal, err := svc.Balance(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Equal(core.MaxAmount) {
		t.Errorf("expected balance %s, got %s", core.MaxAmount, bal)
	}
}

func TestAddTransaction_RequiresUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddTransaction(context.Background(), "", TransactionInput{})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	tx := addTx(t, svc, core.Income, "100")

	value := money(t, "40")
	res, err := svc.UpdateTransaction(context.Background(), user, tx.ID, core.TransactionPatch{Value: &value})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if res.Transaction.Value.String() != "40.00" {
		t.Errorf("expected value 40.00, got %s", res.Transaction.Value)
	}
	if res.Cascade.Balance.String() != "40.00" {
		t.Errorf("expected balance 40.00, got %s", res.Cascade.Balance)
	}

	if _, err := svc.UpdateTransaction(context.Background(), user, tx.ID, core.TransactionPatch{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for empty patch, got %v", err)
	}
	if _, err := svc.UpdateTransaction(context.Background(), user, "missing", core.TransactionPatch{Value: &value}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRemoveTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	tx := addTx(t, svc, core.Income, "100")

	if _, err := svc.RemoveTransaction(context.Background(), user, tx.ID); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}
	if got := balanceOf(t, svc); got != "0.00" {
		t.Errorf("expected 0.00 after delete, got %s", got)
	}
	if _, err := svc.RemoveTransaction(context.Background(), user, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestGetByPeriodAndCategories(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []TransactionInput{
		{Name: "salario", Value: money(t, "1000"), Type: core.Income, Category: "Trabalho", Date: core.NewDate(2025, 3, 1)},
		{Name: "mercado", Value: money(t, "200"), Type: core.Expense, Category: "Alimentação", Date: core.NewDate(2025, 3, 10)},
		{Name: "cinema", Value: money(t, "50"), Type: core.Expense, Category: "Lazer", Date: core.NewDate(2025, 2, 20)},
	} {
		if _, err := svc.AddTransaction(ctx, user, in); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	start := core.NewDate(2025, 3, 1)
	got, err := svc.GetByPeriod(ctx, user, core.PeriodFilter{Start: &start, Type: "expense"})
	if err != nil {
		t.Fatalf("GetByPeriod: %v", err)
	}
	if len(got) != 1 || got[0].Name != "mercado" {
		t.Errorf("expected only mercado, got %+v", got)
	}

	if _, err := svc.GetByPeriod(ctx, user, core.PeriodFilter{Type: "transfer"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	cats, err := svc.Categories(ctx, user)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	want := []string{"Alimentação", "Lazer", "Trabalho"}
	if len(cats) != len(want) {
		t.Fatalf("expected %v, got %v", want, cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("category %d: expected %s, got %s", i, want[i], cats[i])
		}
	}
}

func createGoal(t *testing.T, svc *LedgerService, target string) core.Goal {
	t.Helper()
	g, err := svc.CreateGoal(context.Background(), user, GoalInput{Title: "Viagem", TargetValue: money(t, target), Category: "Lazer"})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	return g
}

func TestFundGoal_CapsAtRemaining(t *testing.T) {
	svc, store := newTestService(t)
	addTx(t, svc, core.Income, "100")
	g := createGoal(t, svc, "10")

	res, err := svc.FundGoal(context.Background(), user, g.ID, money(t, "50"))
	if err != nil {
		t.Fatalf("FundGoal: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Message)
	}
	if res.AmountAdded.String() != "10.00" {
		t.Errorf("expected 10.00 added, got %s", res.AmountAdded)
	}
	if res.Message != "R$ 10,00 adicionado à meta com sucesso!" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if res.Goal.CurrentValue.String() != "10.00" {
		t.Errorf("expected goal at 10.00, got %s", res.Goal.CurrentValue)
	}
	if got := balanceOf(t, svc); got != "90.00" {
		t.Errorf("expected balance 90.00, got %s", got)
	}
	if res.Balance.String() != "90.00" {
		t.Errorf("expected result balance 90.00, got %s", res.Balance)
	}

	txs, _ := store.ListTransactions(context.Background(), user)
	var found bool
	for _, tx := range txs {
		if tx.Category == core.GoalFundingCategory {
			found = true
			if tx.Name != "Adicionado à meta: Viagem" || tx.Type != core.Expense || tx.Value.String() != "10.00" {
				t.Errorf("unexpected funding entry %+v", tx)
			}
		}
	}
	if !found {
		t.Error("expected a funding expense in the ledger")
	}
}

func TestFundGoal_InsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	addTx(t, svc, core.Income, "5")
	g := createGoal(t, svc, "100")

	res, err := svc.FundGoal(context.Background(), user, g.ID, money(t, "20"))
	if err != nil {
		t.Fatalf("FundGoal: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Saldo insuficiente! Você tem 5,00 mas precisa de 20,00" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if got := balanceOf(t, svc); got != "5.00" {
		t.Errorf("balance changed: %s", got)
	}
}

func TestFundGoal_Preconditions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addTx(t, svc, core.Income, "100")
	g := createGoal(t, svc, "10")

	res, err := svc.FundGoal(ctx, user, "missing", money(t, "1"))
	if err != nil || res.Success || res.Message != "Meta não encontrada" {
		t.Errorf("expected goal not found result, got %+v, %v", res, err)
	}

	if _, err := svc.FundGoal(ctx, user, g.ID, money(t, "10")); err != nil {
		t.Fatalf("FundGoal: %v", err)
	}
	res, err = svc.FundGoal(ctx, user, g.ID, money(t, "1"))
	if err != nil || res.Success || res.Message != "Esta meta já foi completada!" {
		t.Errorf("expected completed result, got %+v, %v", res, err)
	}

	if _, err := svc.FundGoal(ctx, user, g.ID, core.Money{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
}

func TestGoals_UpdateListRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addTx(t, svc, core.Income, "100")
	a := createGoal(t, svc, "100")
	createGoal(t, svc, "50")

	if _, err := svc.FundGoal(ctx, user, a.ID, money(t, "50")); err != nil {
		t.Fatalf("FundGoal: %v", err)
	}

	low := money(t, "20")
	if _, err := svc.UpdateGoal(ctx, user, a.ID, core.GoalPatch{TargetValue: &low}); !errors.Is(err, core.ErrTargetBelowCurrent) {
		t.Errorf("expected target below current, got %v", err)
	}

	title := "Carro"
	updated, err := svc.UpdateGoal(ctx, user, a.ID, core.GoalPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	if updated.Title != "Carro" || updated.CurrentValue.String() != "50.00" {
		t.Errorf("unexpected goal %+v", updated)
	}

	list, err := svc.ListGoals(ctx, user)
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(list.Goals) != 2 || list.OverallProgress != 25 {
		t.Errorf("expected 2 goals at 25%%, got %d at %d%%", len(list.Goals), list.OverallProgress)
	}

	if err := svc.RemoveGoal(ctx, user, a.ID); err != nil {
		t.Fatalf("RemoveGoal: %v", err)
	}
	list, _ = svc.ListGoals(ctx, user)
	if len(list.Goals) != 1 || list.OverallProgress != 0 {
		t.Errorf("expected 1 goal at 0%%, got %d at %d%%", len(list.Goals), list.OverallProgress)
	}
	if got := balanceOf(t, svc); got != "50.00" {
		t.Errorf("funding entries must stay in the ledger, balance %s", got)
	}
}

func TestFirstStepPaysOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.AcceptChallenge(ctx, user, "5", AcceptOptions{})
	if err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}
	if !acc.Created || acc.Challenge.Status != core.ChallengeActive {
		t.Fatalf("expected a new active instance, got %+v", acc)
	}

	res, err := svc.AddTransaction(ctx, user, TransactionInput{Name: "cafe", Value: money(t, "5"), Type: core.Expense, Category: "Alimentação", Date: core.DateOf(fixedNow)})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if len(res.Cascade.Completed) != 1 || len(res.Cascade.Rewarded) != 1 {
		t.Fatalf("expected one completion and one reward, got %+v", res.Cascade)
	}

	addTx(t, svc, core.Income, "10")
	if _, err := svc.Reconcile(ctx, user); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	p, err := svc.Profile(ctx, user)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Points != 50 {
		t.Errorf("expected 50 points, got %d", p.Points)
	}
	if len(p.Achievements) != 1 {
		t.Fatalf("expected 1 achievement, got %d", len(p.Achievements))
	}
	if a := p.Achievements[0]; a.Description != "Registrou sua primeira transação!" || a.Icon != "zap" {
		t.Errorf("unexpected achievement %+v", a)
	}

	again, err := svc.AcceptChallenge(ctx, user, "5", AcceptOptions{})
	if err != nil {
		t.Fatalf("re-accept: %v", err)
	}
	if again.Created || again.Challenge.ID != acc.Challenge.ID || again.Challenge.Status != core.ChallengeCompleted {
		t.Errorf("expected re-accept to return the completed instance, got %+v", again)
	}
}

func TestSoftDeleteKeepsChallengeCompleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.AcceptChallenge(ctx, user, "5", AcceptOptions{}); err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}
	tx := addTx(t, svc, core.Income, "20")

	if _, err := svc.RemoveTransaction(ctx, user, tx.ID); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}
	list, err := svc.ListChallenges(ctx, user)
	if err != nil {
		t.Fatalf("ListChallenges: %v", err)
	}
	if len(list) != 1 || list[0].Status != core.ChallengeCompleted {
		t.Fatalf("expected completed challenge, got %+v", list)
	}
	if got := balanceOf(t, svc); got != "0.00" {
		t.Errorf("expected 0.00, got %s", got)
	}
	p, _ := svc.Profile(ctx, user)
	if p.Points != 50 {
		t.Errorf("expected 50 points to stay, got %d", p.Points)
	}
}

func TestAcceptChallenge_SeedAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addTx(t, svc, core.Income, "80")

	acc, err := svc.AcceptChallenge(ctx, user, "6", AcceptOptions{})
	if err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}
	if !acc.Challenge.Current.Equal(decimal.NewFromInt(80)) {
		t.Errorf("expected seed 80, got %s", acc.Challenge.Current)
	}

	seed := decimal.NewFromInt(500)
	acc, err = svc.AcceptChallenge(ctx, user, "7", AcceptOptions{Current: &seed})
	if err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}
	if acc.Challenge.Status != core.ChallengeCompleted || acc.Challenge.RewardedAt == nil {
		t.Errorf("expected seeded-at-target challenge to complete and pay, got %+v", acc.Challenge)
	}

	if _, err := svc.AcceptChallenge(ctx, user, "99", AcceptOptions{}); !errors.Is(err, core.ErrUnknownChallenge) {
		t.Errorf("expected unknown challenge, got %v", err)
	}
	neg := decimal.NewFromInt(-1)
	if _, err := svc.AcceptChallenge(ctx, user, "1", AcceptOptions{Current: &neg}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAbandonChallenge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.AcceptChallenge(ctx, user, "4", AcceptOptions{})
	if err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}
	c, err := svc.AbandonChallenge(ctx, user, acc.Challenge.ID)
	if err != nil {
		t.Fatalf("AbandonChallenge: %v", err)
	}
	if c.Status != core.ChallengeAbandoned || c.AbandonedAt == nil {
		t.Errorf("unexpected instance %+v", c)
	}
	if _, err := svc.AbandonChallenge(ctx, user, acc.Challenge.ID); !errors.Is(err, core.ErrChallengeNotActive) {
		t.Errorf("expected not active, got %v", err)
	}
	if _, err := svc.AbandonChallenge(ctx, user, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	for range 10 {
		addTx(t, svc, core.Income, "1")
	}
	p, _ := svc.Profile(ctx, user)
	if p.Points != 0 {
		t.Errorf("abandoned challenge must not pay, got %d points", p.Points)
	}

	again, err := svc.AcceptChallenge(ctx, user, "4", AcceptOptions{})
	if err != nil {
		t.Fatalf("re-accept after abandon: %v", err)
	}
	if !again.Created || again.Challenge.Status != core.ChallengeCompleted {
		t.Errorf("expected a new instance completed by the cascade, got %+v", again)
	}
}

func TestTopUpBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.TopUpBalance(ctx, user, money(t, "25.75"))
	if err != nil {
		t.Fatalf("TopUpBalance: %v", err)
	}
	if res.Points != 25 {
		t.Errorf("expected 25 points, got %d", res.Points)
	}
	if res.Transaction.Name != core.TopUpName || res.Transaction.Category != core.TopUpCategory || res.Transaction.Type != core.Income {
		t.Errorf("unexpected entry %+v", res.Transaction)
	}
	if res.Message != "Saldo de R$ 25,75 adicionado com sucesso! +25 pontos!" {
		t.Errorf("unexpected message %q", res.Message)
	}
	p, _ := svc.Profile(ctx, user)
	if p.Points != 25 || p.Balance.String() != "25.75" {
		t.Errorf("unexpected profile %+v", p)
	}

	if _, err := svc.TopUpBalance(ctx, user, core.MoneyFromCents(-100)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPartialFailureIsRepairedByReconcile(t *testing.T) {
	store := &flakyStore{Store: memory.New()}
	svc := NewLedgerService(store, nil, LedgerConfig{Now: func() time.Time { return fixedNow }})
	ctx := context.Background()

	store.setFail(true)
	_, err := svc.AddTransaction(ctx, user, TransactionInput{Name: "a", Value: money(t, "10"), Type: core.Income, Category: "c", Date: core.DateOf(fixedNow)})
	if core.CodeOf(err) != core.CodePartial {
		t.Fatalf("expected partial error, got %v", err)
	}
	txs, _ := store.ListTransactions(ctx, user)
	if len(txs) != 1 {
		t.Fatalf("expected the entry to be committed, got %d", len(txs))
	}

	store.setFail(false)
	if _, err := svc.Reconcile(ctx, user); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	p, _ := store.GetProfile(ctx, user)
	if p.Balance.String() != "10.00" {
		t.Errorf("expected repaired balance 10.00, got %s", p.Balance)
	}
}

func TestPublishesEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New(), pub, LedgerConfig{Now: func() time.Time { return fixedNow }})

	tx := addTx(t, svc, core.Income, "10")
	if _, err := svc.RemoveTransaction(context.Background(), user, tx.ID); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	want := []amqp.EventType{amqp.EventTransactionCreated, amqp.EventTransactionDeleted}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %v, got %v", want, pub.events)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], pub.events[i])
		}
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addTx(t, svc, core.Income, "100")
	addTx(t, svc, core.Expense, "40")
	g := createGoal(t, svc, "10")
	if _, err := svc.FundGoal(ctx, user, g.ID, money(t, "10")); err != nil {
		t.Fatalf("FundGoal: %v", err)
	}
	if _, err := svc.AcceptChallenge(ctx, user, "8", AcceptOptions{}); err != nil {
		t.Fatalf("AcceptChallenge: %v", err)
	}

	d, err := svc.Dashboard(ctx, user)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Balance.String() != "50.00" || d.Income.String() != "100.00" || d.Expense.String() != "50.00" {
		t.Errorf("unexpected totals %+v", d)
	}
	if d.TransactionCount != 3 || d.GoalCount != 1 || d.CompletedGoals != 1 || d.OverallGoalProgress != 100 {
		t.Errorf("unexpected counts %+v", d)
	}
	if d.ActiveChallenges != 1 {
		t.Errorf("expected 1 active challenge, got %d", d.ActiveChallenges)
	}
}

func TestClose_AggregatesErrors(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, LedgerConfig{})
	if err := svc.Close(); err != nil {
		t.Fatalf("Close should not fail with a memory store and no publisher: %v", err)
	}
}
