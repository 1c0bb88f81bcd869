package services

import (
	"context"

	"simplemoney/internal/core"
)

// Dashboard summarizes a user's ledger, goals and rewards.
type Dashboard struct {
	Balance             core.Money `json:"balance"`
	Income              core.Money `json:"income"`
	Expense             core.Money `json:"expense"`
	TransactionCount    int        `json:"transactionCount"`
	Categories          []string   `json:"categories"`
	GoalCount           int        `json:"goalCount"`
	CompletedGoals      int        `json:"completedGoals"`
	OverallGoalProgress int        `json:"overallGoalProgress"`
	ActiveChallenges    int        `json:"activeChallenges"`
	CompletedChallenges int        `json:"completedChallenges"`
	Points              int64      `json:"points"`
}

// Dashboard computes the summary from the ledger. It is read-only.
func (s *LedgerService) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	if err := requireUser(userID); err != nil {
		return Dashboard{}, err
	}
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return Dashboard{}, core.Backend("dashboard", err)
	}

	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	all, err := s.repo.ListChallenges(ctx, userID)
	if err != nil {
		return Dashboard{}, core.Backend("dashboard", err)
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Dashboard{}, core.Backend("dashboard", err)
	}

	totals := core.SumTotals(snap.Transactions)
	d := Dashboard{
		Balance:             totals.Balance(),
		Income:              totals.Income,
		Expense:             totals.Expense,
		TransactionCount:    totals.Count,
		Categories:          core.Categories(snap.Transactions),
		GoalCount:           len(snap.Goals),
		CompletedGoals:      core.CompletedGoals(snap.Goals),
		OverallGoalProgress: core.OverallGoalProgress(snap.Goals),
		Points:              profile.Points,
	}
	for _, c := range all {
		switch c.Status {
		case core.ChallengeActive:
			d.ActiveChallenges++
		case core.ChallengeCompleted:
			d.CompletedChallenges++
		}
	}
	return d, nil
}

// Reconcile re-derives the user's balance, challenge progress and pending
// rewards from the ledger. It is idempotent.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (CascadeResult, error) {
	if err := requireUser(userID); err != nil {
		return CascadeResult{}, err
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	res, err := s.cascade(ctx, userID)
	if err != nil {
		return res, core.Backend("reconcile", err)
	}
	return res, nil
}

// UserIDs lists every user with stored state.
func (s *LedgerService) UserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return nil, core.Backend("list users", err)
	}
	return ids, nil
}
