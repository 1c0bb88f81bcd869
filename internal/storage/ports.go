// Package storage defines the repository ports of the ledger engine and the
// SQLite implementation. Other backends live in sub-packages.
package storage

import (
	"context"
	"time"

	"simplemoney/internal/core"

	"github.com/shopspring/decimal"
)

// TransactionRepository persists ledger entries. Reads never return soft
// deleted entries.
type TransactionRepository interface {
	InsertTransaction(ctx context.Context, tx core.Transaction) error
	// UpdateTransaction overwrites a non-deleted entry; core.ErrNotFound otherwise.
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	SoftDeleteTransaction(ctx context.Context, userID, id string, at time.Time) error
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	// ListTransactions returns the user's entries by date descending.
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
}

type GoalRepository interface {
	InsertGoal(ctx context.Context, g core.Goal) error
	UpdateGoal(ctx context.Context, g core.Goal) error
	SoftDeleteGoal(ctx context.Context, userID, id string, at time.Time) error
	GetGoal(ctx context.Context, userID, id string) (core.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	// FundGoal atomically records entry as the funding expense and raises the
	// goal's current value. The amount is capped at the remaining value and
	// entry.Value is overwritten with the amount actually added. It returns
	// core.ErrGoalFundingConflict when the goal is already complete.
	FundGoal(ctx context.Context, userID, goalID string, amount core.Money, entry core.Transaction) (core.Goal, error)
}

type ChallengeRepository interface {
	// InsertChallenge returns core.ErrChallengeAccepted when an active or
	// completed instance of the same catalog challenge exists.
	InsertChallenge(ctx context.Context, c core.Challenge) error
	GetChallenge(ctx context.Context, userID, id string) (core.Challenge, error)
	// ListChallenges returns every instance of the user, newest first.
	ListChallenges(ctx context.Context, userID string) ([]core.Challenge, error)
	// AdvanceChallenge raises the progress of an active instance. A non-nil
	// completedAt also moves it to completed. It reports false when the
	// instance is no longer active or current would decrease.
	AdvanceChallenge(ctx context.Context, userID, id string, current decimal.Decimal, completedAt *time.Time) (bool, error)
	// AbandonChallenge moves an active instance to abandoned.
	AbandonChallenge(ctx context.Context, userID, id string, at time.Time) (bool, error)
}

type RewardRepository interface {
	// GetProfile returns a zero profile for users without one.
	GetProfile(ctx context.Context, userID string) (core.Profile, error)
	SaveBalance(ctx context.Context, userID string, balance core.Money, at time.Time) error
	AddPoints(ctx context.Context, userID string, points int64, at time.Time) error
	// GrantChallengeReward marks the completed instance as rewarded, adds the
	// points and appends the achievement in one transaction. It reports false
	// when the reward was already granted.
	GrantChallengeReward(ctx context.Context, userID, challengeID string, points int64, a core.Achievement, at time.Time) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]core.Achievement, error)
}

// Repository aggregates the ports used by the ledger service.
type Repository interface {
	TransactionRepository
	GoalRepository
	ChallengeRepository
	RewardRepository

	// ListUserIDs returns every user with ledger or rewards state.
	ListUserIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
