package services

import (
	"context"
	"errors"

	"simplemoney/internal/challenges"
	"simplemoney/internal/core"
	"simplemoney/internal/log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CascadeResult reports what the derived-state stages changed.
type CascadeResult struct {
	Balance   core.Money
	Advanced  []core.Challenge
	Completed []core.Challenge
	Rewarded  []challenges.Payout
}

// mutate runs apply under the user's lock and then the cascade.
func (s *LedgerService) mutate(ctx context.Context, userID, op string, apply func(context.Context) error) (CascadeResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.applyLedgerMutation(ctx, userID, op, apply)
}

// applyLedgerMutation commits apply and then re-derives balance, challenge
// progress and rewards. The caller holds the user's lock. A failure after the
// commit is reported as core.ErrPartial; the reconciler repairs it.
func (s *LedgerService) applyLedgerMutation(ctx context.Context, userID, op string, apply func(context.Context) error) (CascadeResult, error) {
	err := s.stage(ctx, "ledger.applyMutation", userID, func(ctx context.Context) error {
		return apply(ctx)
	})
	if err != nil {
		return CascadeResult{}, core.Backend(op, err)
	}

	res, err := s.cascade(ctx, userID)
	if err != nil {
		s.logger.Fail(ctx, "Derived state not updated after mutation", op, err, log.NewFields().WithUser(userID))
		return res, core.Partial(op, err)
	}
	return res, nil
}

// cascade runs recomputeBalance, reevaluateChallenges and grantRewards in
// order against a fresh snapshot of the user's ledger.
func (s *LedgerService) cascade(ctx context.Context, userID string) (CascadeResult, error) {
	var res CascadeResult

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return res, err
	}

	if err := s.stage(ctx, "ledger.recomputeBalance", userID, func(ctx context.Context) error {
		res.Balance, err = s.recomputeBalance(ctx, userID, snap)
		return err
	}); err != nil {
		return res, err
	}

	var all []core.Challenge
	if err := s.stage(ctx, "ledger.reevaluateChallenges", userID, func(ctx context.Context) error {
		all, res.Advanced, err = s.reevaluateChallenges(ctx, userID, snap)
		return err
	}); err != nil {
		return res, err
	}
	for _, c := range res.Advanced {
		if c.Status == core.ChallengeCompleted {
			res.Completed = append(res.Completed, c)
		}
	}

	if err := s.stage(ctx, "ledger.grantRewards", userID, func(ctx context.Context) error {
		res.Rewarded, err = s.grantRewards(ctx, userID, all, snap)
		return err
	}); err != nil {
		return res, err
	}
	return res, nil
}

// stage runs fn in a span with the configured backend timeout.
func (s *LedgerService) stage(ctx context.Context, name, userID string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	ctx, cancel := s.stageContext(ctx)
	defer cancel()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *LedgerService) snapshot(ctx context.Context, userID string) (challenges.Snapshot, error) {
	ctx, cancel := s.stageContext(ctx)
	defer cancel()

	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return challenges.Snapshot{}, err
	}
	goals, err := s.repo.ListGoals(ctx, userID)
	if err != nil {
		return challenges.Snapshot{}, err
	}
	return challenges.Snapshot{Transactions: txs, Goals: goals, Now: s.now()}, nil
}

func (s *LedgerService) recomputeBalance(ctx context.Context, userID string, snap challenges.Snapshot) (core.Money, error) {
	balance := core.CalculateBalance(snap.Transactions)
	if err := s.repo.SaveBalance(ctx, userID, balance, snap.Now); err != nil {
		return balance, err
	}
	return balance, nil
}

// reevaluateChallenges persists the advances computed by challenges.Evaluate
// and returns every instance of the user with those advances applied.
func (s *LedgerService) reevaluateChallenges(ctx context.Context, userID string, snap challenges.Snapshot) ([]core.Challenge, []core.Challenge, error) {
	all, err := s.repo.ListChallenges(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var advanced []core.Challenge
	for _, adv := range challenges.Evaluate(all, snap) {
		c := adv.Challenge
		ok, err := s.repo.AdvanceChallenge(ctx, userID, c.ID, c.Current, c.CompletedAt)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		advanced = append(advanced, c)
		for i := range all {
			if all[i].ID == c.ID {
				all[i] = c
			}
		}
		s.logger.InfoContext(ctx, "Challenge advanced",
			log.NewFields().WithUser(userID).WithChallenge(c.ID, c.ChallengeID).ToSlice()...)
	}
	return all, advanced, nil
}

// grantRewards pays every completed, unrewarded challenge once.
func (s *LedgerService) grantRewards(ctx context.Context, userID string, all []core.Challenge, snap challenges.Snapshot) ([]challenges.Payout, error) {
	var granted []challenges.Payout
	var errs []error
	for _, p := range challenges.PendingPayouts(all, snap) {
		ok, err := s.repo.GrantChallengeReward(ctx, userID, p.Challenge.ID, p.Points, p.Achievement, snap.Now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		granted = append(granted, p)
		s.logger.InfoContext(ctx, "Challenge reward granted",
			log.NewFields().WithUser(userID).WithChallenge(p.Challenge.ID, p.Challenge.ChallengeID).WithPoints(p.Points).ToSlice()...)
	}
	return granted, errors.Join(errs...)
}
