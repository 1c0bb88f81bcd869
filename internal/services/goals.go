package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/log"

	"github.com/google/uuid"
)

// Goal funding messages shown to the user.
const (
	msgGoalNotFound      = "Meta não encontrada"
	msgGoalCompleted     = "Esta meta já foi completada!"
	msgInsufficientFunds = "Saldo insuficiente! Você tem %s mas precisa de %s"
	msgGoalFunded        = "%s adicionado à meta com sucesso!"
	goalFundingPrefix    = "Adicionado à meta: "
)

// GoalInput is the user-supplied part of a new goal.
type GoalInput struct {
	Title       string     `json:"title"`
	TargetValue core.Money `json:"targetValue"`
	Category    string     `json:"category"`
	TargetDate  core.Date  `json:"targetDate"`
}

// GoalList is the user's goals with the mean funded percentage.
type GoalList struct {
	Goals           []core.Goal
	OverallProgress int
}

// FundingResult reports a goal funding attempt. Unmet preconditions are
// reported with Success false and a message, not as errors.
type FundingResult struct {
	Success     bool
	AmountAdded core.Money
	Message     string
	Goal        *core.Goal
	Balance     core.Money
}

// CreateGoal adds a goal with nothing funded yet.
func (s *LedgerService) CreateGoal(ctx context.Context, userID string, in GoalInput) (core.Goal, error) {
	if err := requireUser(userID); err != nil {
		return core.Goal{}, err
	}
	g := core.Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		TargetValue: in.TargetValue,
		Category:    strings.TrimSpace(in.Category),
		TargetDate:  in.TargetDate,
		CreatedAt:   s.now(),
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	_, err := s.mutate(ctx, userID, "create goal", func(ctx context.Context) error {
		return s.repo.InsertGoal(ctx, g)
	})
	if !committed(err) {
		return core.Goal{}, err
	}
	s.logger.InfoContext(ctx, "Goal created", log.NewFields().WithUser(userID).WithGoal(g.ID).ToSlice()...)
	s.publish(ctx, amqp.EventGoalCreated, userID, g.ID)
	return g, err
}

// UpdateGoal edits title, target, category or deadline. The target may not
// drop below the funded value.
func (s *LedgerService) UpdateGoal(ctx context.Context, userID, id string, patch core.GoalPatch) (core.Goal, error) {
	if err := requireUser(userID); err != nil {
		return core.Goal{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	current, err := s.getGoal(ctx, userID, id)
	if err != nil {
		return core.Goal{}, err
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Goal{}, err
	}

	_, err = s.applyLedgerMutation(ctx, userID, "update goal", func(ctx context.Context) error {
		return s.repo.UpdateGoal(ctx, updated)
	})
	if !committed(err) {
		return core.Goal{}, err
	}
	s.logger.InfoContext(ctx, "Goal updated", log.NewFields().WithUser(userID).WithGoal(id).ToSlice()...)
	s.publish(ctx, amqp.EventGoalUpdated, userID, id)
	return updated, err
}

// RemoveGoal soft deletes a goal. Funding entries stay in the ledger.
func (s *LedgerService) RemoveGoal(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	_, err := s.mutate(ctx, userID, "remove goal", func(ctx context.Context) error {
		return s.repo.SoftDeleteGoal(ctx, userID, id, s.now())
	})
	if !committed(err) {
		return err
	}
	s.logger.InfoContext(ctx, "Goal removed", log.NewFields().WithUser(userID).WithGoal(id).ToSlice()...)
	s.publish(ctx, amqp.EventGoalDeleted, userID, id)
	return err
}

// ListGoals returns the user's non-deleted goals.
func (s *LedgerService) ListGoals(ctx context.Context, userID string) (GoalList, error) {
	if err := requireUser(userID); err != nil {
		return GoalList{}, err
	}
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	goals, err := s.repo.ListGoals(ctx, userID)
	if err != nil {
		return GoalList{}, core.Backend("list goals", err)
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	return GoalList{Goals: goals, OverallProgress: core.OverallGoalProgress(goals)}, nil
}

func (s *LedgerService) getGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	g, err := s.repo.GetGoal(ctx, userID, id)
	if err != nil {
		return core.Goal{}, core.Backend("get goal", err)
	}
	return g, nil
}

// FundGoal moves amount from the balance into a goal, capped at what the goal
// still needs, and records the transfer as an expense in the "Metas"
// category.
func (s *LedgerService) FundGoal(ctx context.Context, userID, goalID string, amount core.Money) (FundingResult, error) {
	if err := requireUser(userID); err != nil {
		return FundingResult{}, err
	}
	if err := amount.Validate(); err != nil {
		return FundingResult{}, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	goal, err := s.getGoal(ctx, userID, goalID)
	if errors.Is(err, core.ErrNotFound) {
		return FundingResult{Message: msgGoalNotFound}, nil
	}
	if err != nil {
		return FundingResult{}, err
	}

	txs, err := s.listTransactions(ctx, userID)
	if err != nil {
		return FundingResult{}, err
	}
	balance := core.CalculateBalance(txs)
	if balance.LessThan(amount) {
		return FundingResult{
			Message: fmt.Sprintf(msgInsufficientFunds, balance.Plain(s.config.Currency), amount.Plain(s.config.Currency)),
			Goal:    &goal,
			Balance: balance,
		}, nil
	}
	if !goal.Remaining().IsPositive() {
		return FundingResult{Message: msgGoalCompleted, Goal: &goal, Balance: balance}, nil
	}

	entry := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      goalFundingPrefix + goal.Title,
		Value:     core.MinMoney(amount, goal.Remaining()),
		Type:      core.Expense,
		Category:  core.GoalFundingCategory,
		Date:      s.today(),
		CreatedAt: s.now(),
	}

	var funded core.Goal
	res, err := s.applyLedgerMutation(ctx, userID, "fund goal", func(ctx context.Context) error {
		g, err := s.repo.FundGoal(ctx, userID, goalID, amount, entry)
		funded = g
		return err
	})
	if errors.Is(err, core.ErrGoalFundingConflict) {
		return FundingResult{Message: msgGoalCompleted, Goal: &goal, Balance: balance}, nil
	}
	if errors.Is(err, core.ErrNotFound) {
		return FundingResult{Message: msgGoalNotFound}, nil
	}
	if !committed(err) {
		return FundingResult{}, err
	}

	added := funded.CurrentValue.Sub(goal.CurrentValue)
	newBalance := res.Balance
	if err != nil {
		newBalance = balance.Sub(added)
	}
	s.logger.InfoContext(ctx, "Goal funded",
		log.NewFields().WithUser(userID).WithGoal(goalID).WithTransaction(entry.ID, string(core.Expense), added.String()).ToSlice()...)
	s.publish(ctx, amqp.EventGoalFunded, userID, goalID)
	s.publish(ctx, amqp.EventTransactionCreated, userID, entry.ID)

	return FundingResult{
		Success:     true,
		AmountAdded: added,
		Message:     fmt.Sprintf(msgGoalFunded, added.Labeled(s.config.Currency)),
		Goal:        &funded,
		Balance:     newBalance,
	}, err
}
