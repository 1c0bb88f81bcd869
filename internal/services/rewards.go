package services

import (
	"context"
	"fmt"

	"simplemoney/internal/amqp"
	"simplemoney/internal/core"
	"simplemoney/internal/log"

	"github.com/google/uuid"
)

const msgToppedUp = "Saldo de %s adicionado com sucesso! +%d pontos!"

// TopUpResult reports a manual balance top-up.
type TopUpResult struct {
	Transaction core.Transaction
	Points      int64
	Balance     core.Money
	Message     string
}

// ProfileView is the rewards state of a user.
type ProfileView struct {
	UserID       string
	Points       int64
	Balance      core.Money
	Achievements []core.Achievement
}

// Balance folds the user's ledger.
func (s *LedgerService) Balance(ctx context.Context, userID string) (core.Money, error) {
	if err := requireUser(userID); err != nil {
		return core.Money{}, err
	}
	txs, err := s.listTransactions(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return core.CalculateBalance(txs), nil
}

// TopUpBalance records an income entry for amount and grants one point per
// whole currency unit.
func (s *LedgerService) TopUpBalance(ctx context.Context, userID string, amount core.Money) (TopUpResult, error) {
	if err := requireUser(userID); err != nil {
		return TopUpResult{}, err
	}
	if err := amount.Validate(); err != nil {
		return TopUpResult{}, err
	}

	tx := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      core.TopUpName,
		Value:     amount,
		Type:      core.Income,
		Category:  core.TopUpCategory,
		Date:      s.today(),
		CreatedAt: s.now(),
	}
	points := amount.Floor()

	unlock := s.locks.lock(userID)
	defer unlock()

	res, err := s.applyLedgerMutation(ctx, userID, "top up balance", func(ctx context.Context) error {
		return s.repo.InsertTransaction(ctx, tx)
	})
	if !committed(err) {
		return TopUpResult{}, err
	}

	if points > 0 {
		pctx, cancel := s.stageContext(ctx)
		perr := s.repo.AddPoints(pctx, userID, points, s.now())
		cancel()
		if perr != nil {
			s.logger.Fail(ctx, "Top-up points not granted", log.OpTopUp, perr,
				log.NewFields().WithUser(userID).WithPoints(points))
			return TopUpResult{Transaction: tx, Balance: res.Balance}, core.Partial("top up points", perr)
		}
	}

	s.logger.InfoContext(ctx, "Balance topped up",
		log.NewFields().WithUser(userID).WithTransaction(tx.ID, string(tx.Type), amount.String()).WithPoints(points).ToSlice()...)
	s.publish(ctx, amqp.EventBalanceToppedUp, userID, tx.ID)
	s.publish(ctx, amqp.EventTransactionCreated, userID, tx.ID)

	return TopUpResult{
		Transaction: tx,
		Points:      points,
		Balance:     res.Balance,
		Message:     fmt.Sprintf(msgToppedUp, amount.Labeled(s.config.Currency), points),
	}, err
}

// Profile returns points, the ledger balance and achievements.
func (s *LedgerService) Profile(ctx context.Context, userID string) (ProfileView, error) {
	if err := requireUser(userID); err != nil {
		return ProfileView{}, err
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}

	ctx, cancel := s.stageContext(ctx)
	defer cancel()
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return ProfileView{}, core.Backend("get profile", err)
	}
	achievements, err := s.repo.ListAchievements(ctx, userID)
	if err != nil {
		return ProfileView{}, core.Backend("list achievements", err)
	}
	if achievements == nil {
		achievements = []core.Achievement{}
	}
	return ProfileView{UserID: userID, Points: p.Points, Balance: balance, Achievements: achievements}, nil
}
