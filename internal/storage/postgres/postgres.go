// Package postgres implements storage.Repository on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simplemoney/internal/core"
	"simplemoney/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// New connects to databaseURL, applies migrations and returns the repository.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func dateArg(d core.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

const transactionColumns = `id, user_id, name, value_cents, type, category, date, created_at, deleted_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t     core.Transaction
		cents int64
		typ   string
		date  time.Time
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &cents, &typ, &t.Category, &date, &t.CreatedAt, &t.DeletedAt); err != nil {
		return t, err
	}
	t.Value = core.MoneyFromCents(cents)
	t.Type = core.TransactionType(typ)
	t.Date = core.DateOf(date)
	t.CreatedAt = t.CreatedAt.UTC()
	t.DeletedAt = utc(t.DeletedAt)
	return t, nil
}

const insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func transactionArgs(t core.Transaction) []any {
	return []any{t.ID, t.UserID, t.Name, t.Value.Cents(), string(t.Type), t.Category, t.Date.Time, t.CreatedAt, t.DeletedAt}
}

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Value.Validate(); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if _, err := r.pool.Exec(ctx, insertTransactionSQL, transactionArgs(t)...); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Value.Validate(); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE transactions
		SET name = $1, value_cents = $2, type = $3, category = $4, date = $5
		WHERE id = $6 AND user_id = $7 AND deleted_at IS NULL`,
		t.Name, t.Value.Cents(), string(t.Type), t.Category, t.Date.Time, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("transaction", t.ID)
	}
	return nil
}

func (r *Repository) SoftDeleteTransaction(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET deleted_at = $1
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`, at, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("transaction", id)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const goalColumns = `id, user_id, title, target_cents, current_cents, category, target_date, created_at, deleted_at`

func scanGoal(row pgx.Row) (core.Goal, error) {
	var (
		g               core.Goal
		target, current int64
		targetDate      *time.Time
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &target, &current, &g.Category, &targetDate, &g.CreatedAt, &g.DeletedAt); err != nil {
		return g, err
	}
	g.TargetValue = core.MoneyFromCents(target)
	g.CurrentValue = core.MoneyFromCents(current)
	if targetDate != nil {
		g.TargetDate = core.DateOf(*targetDate)
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.DeletedAt = utc(g.DeletedAt)
	return g, nil
}

func (r *Repository) InsertGoal(ctx context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.UserID, g.Title, g.TargetValue.Cents(), g.CurrentValue.Cents(), g.Category,
		dateArg(g.TargetDate), g.CreatedAt, g.DeletedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *Repository) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE goals
		SET title = $1, target_cents = $2, category = $3, target_date = $4
		WHERE id = $5 AND user_id = $6 AND deleted_at IS NULL AND current_cents <= $2`,
		g.Title, g.TargetValue.Cents(), g.Category, dateArg(g.TargetDate), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("goal", g.ID)
	}
	return nil
}

func (r *Repository) SoftDeleteGoal(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goals SET deleted_at = $1
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`, at, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFound("goal", id)
	}
	return nil
}

func (r *Repository) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	g, err := scanGoal(r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *Repository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) FundGoal(ctx context.Context, userID, goalID string, amount core.Money, entry core.Transaction) (core.Goal, error) {
	var funded core.Goal
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		g, err := scanGoal(tx.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals
			WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
			FOR UPDATE`, goalID, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return core.NotFound("goal", goalID)
		}
		if err != nil {
			return fmt.Errorf("get goal: %w", err)
		}

		add := core.MinMoney(amount, g.Remaining())
		if !add.IsPositive() {
			return core.ErrGoalFundingConflict
		}
		entry.Value = add
		if _, err := tx.Exec(ctx, insertTransactionSQL, transactionArgs(entry)...); err != nil {
			return fmt.Errorf("insert funding transaction: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE goals SET current_cents = current_cents + $1
			WHERE id = $2 AND user_id = $3`, add.Cents(), goalID, userID); err != nil {
			return fmt.Errorf("update goal current value: %w", err)
		}
		g.CurrentValue = g.CurrentValue.Add(add)
		funded = g
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}
	return funded, nil
}

const challengeColumns = `id, user_id, challenge_id, title, description, icon, target_scaled, current_scaled,
	reward, status, accepted_at, completed_at, abandoned_at, rewarded_at`

func scanChallenge(row pgx.Row) (core.Challenge, error) {
	var (
		c               core.Challenge
		target, current int64
		status          string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.ChallengeID, &c.Title, &c.Description, &c.Icon,
		&target, &current, &c.Reward, &status, &c.AcceptedAt, &c.CompletedAt, &c.AbandonedAt, &c.RewardedAt); err != nil {
		return c, err
	}
	c.Target = storage.UnscaleProgress(target)
	c.Current = storage.UnscaleProgress(current)
	c.Status = core.ChallengeStatus(status)
	c.AcceptedAt = c.AcceptedAt.UTC()
	c.CompletedAt = utc(c.CompletedAt)
	c.AbandonedAt = utc(c.AbandonedAt)
	c.RewardedAt = utc(c.RewardedAt)
	return c, nil
}

func (r *Repository) InsertChallenge(ctx context.Context, c core.Challenge) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.UserID, c.ChallengeID, c.Title, c.Description, c.Icon,
		storage.ScaleProgress(c.Target), storage.ScaleProgress(c.Current), c.Reward, string(c.Status),
		c.AcceptedAt, c.CompletedAt, c.AbandonedAt, c.RewardedAt)
	if isUniqueViolation(err) {
		return core.ErrChallengeAccepted
	}
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (r *Repository) GetChallenge(ctx context.Context, userID, id string) (core.Challenge, error) {
	c, err := scanChallenge(r.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Challenge{}, core.NotFound("challenge", id)
	}
	if err != nil {
		return core.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (r *Repository) ListChallenges(ctx context.Context, userID string) ([]core.Challenge, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE user_id = $1 ORDER BY accepted_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []core.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) AdvanceChallenge(ctx context.Context, userID, id string, current decimal.Decimal, completedAt *time.Time) (bool, error) {
	status := string(core.ChallengeActive)
	if completedAt != nil {
		status = string(core.ChallengeCompleted)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE challenges
		SET current_scaled = $1, status = $2, completed_at = $3
		WHERE id = $4 AND user_id = $5 AND status = 'active' AND current_scaled <= $1`,
		storage.ScaleProgress(current), status, completedAt, id, userID)
	if err != nil {
		return false, fmt.Errorf("advance challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) AbandonChallenge(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE challenges SET status = 'abandoned', abandoned_at = $1
		WHERE id = $2 AND user_id = $3 AND status = 'active'`, at, id, userID)
	if err != nil {
		return false, fmt.Errorf("abandon challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	p := core.Profile{UserID: userID}
	var cents int64
	err := r.pool.QueryRow(ctx, `SELECT points, balance_cents, updated_at FROM user_profiles
		WHERE user_id = $1`, userID).Scan(&p.Points, &cents, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}
	p.Balance = core.MoneyFromCents(cents)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (r *Repository) SaveBalance(ctx context.Context, userID string, balance core.Money, at time.Time) error {
	cents, err := balance.StorableCents()
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO user_profiles (user_id, points, balance_cents, updated_at)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET balance_cents = EXCLUDED.balance_cents, updated_at = EXCLUDED.updated_at`,
		userID, cents, at)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

const addPointsSQL = `INSERT INTO user_profiles (user_id, points, balance_cents, updated_at)
	VALUES ($1, $2, 0, $3)
	ON CONFLICT (user_id) DO UPDATE SET points = user_profiles.points + EXCLUDED.points, updated_at = EXCLUDED.updated_at`

func (r *Repository) AddPoints(ctx context.Context, userID string, points int64, at time.Time) error {
	if points < 0 {
		return core.Validation("points", "points cannot be negative")
	}
	if _, err := r.pool.Exec(ctx, addPointsSQL, userID, points, at); err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func (r *Repository) GrantChallengeReward(ctx context.Context, userID, challengeID string, points int64, a core.Achievement, at time.Time) (bool, error) {
	granted := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE challenges SET rewarded_at = $1
			WHERE id = $2 AND user_id = $3 AND status = 'completed' AND rewarded_at IS NULL`,
			at, challengeID, userID)
		if err != nil {
			return fmt.Errorf("mark challenge rewarded: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, addPointsSQL, userID, points, at); err != nil {
			return fmt.Errorf("add points: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO achievements (id, user_id, challenge_id, title, description, icon, date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, userID, a.ChallengeID, a.Title, a.Description, a.Icon, a.Date); err != nil {
			return fmt.Errorf("insert achievement: %w", err)
		}
		granted = true
		return nil
	})
	return granted, err
}

func (r *Repository) ListAchievements(ctx context.Context, userID string) ([]core.Achievement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, challenge_id, title, description, icon, date
		FROM achievements WHERE user_id = $1 ORDER BY date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []core.Achievement
	for rows.Next() {
		var a core.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.Title, &a.Description, &a.Icon, &a.Date); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.Date = a.Date.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_profiles
		UNION SELECT user_id FROM transactions
		UNION SELECT user_id FROM goals
		UNION SELECT user_id FROM challenges
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
