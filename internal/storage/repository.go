package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"simplemoney/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ChallengeScale is the number of fractional digits kept for challenge
// progress in integer columns.
const ChallengeScale = 2

// ScaleProgress converts challenge progress to its integer column value.
func ScaleProgress(d decimal.Decimal) int64 {
	return d.Shift(ChallengeScale).Round(0).IntPart()
}

// UnscaleProgress is the inverse of ScaleProgress.
func UnscaleProgress(v int64) decimal.Decimal {
	return decimal.New(v, -ChallengeScale)
}

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Transactions

const transactionColumns = `id, user_id, name, value_cents, type, category, date, created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                  core.Transaction
		cents              int64
		typ, date, created string
		deleted            sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &cents, &typ, &t.Category, &date, &created, &deleted); err != nil {
		return t, err
	}
	t.Value = core.MoneyFromCents(cents)
	t.Type = core.TransactionType(typ)

	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return t, fmt.Errorf("parse date %q: %w", date, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, fmt.Errorf("parse created_at: %w", err)
	}
	if t.DeletedAt, err = parseNullTime(deleted); err != nil {
		return t, fmt.Errorf("parse deleted_at: %w", err)
	}
	return t, nil
}

func insertTransaction(ctx context.Context, q interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, t core.Transaction) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Value.Cents(), string(t.Type), t.Category, t.Date.String(),
		formatTime(t.CreatedAt), nullTime(t.DeletedAt))
	return err
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Value.Validate(); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := insertTransaction(ctx, r.db, t); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"value_cents", t.Value.Cents())
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Value.Validate(); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET name = ?, value_cents = ?, type = ?, category = ?, date = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		t.Name, t.Value.Cents(), string(t.Type), t.Category, t.Date.String(), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, "transaction", t.ID)
}

func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		formatTime(at), id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "transaction", id)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL
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

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

// Goals

const goalColumns = `id, user_id, title, target_cents, current_cents, category, target_date, created_at, deleted_at`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g               core.Goal
		target, current int64
		targetDate      sql.NullString
		created         string
		deleted         sql.NullString
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &target, &current, &g.Category, &targetDate, &created, &deleted); err != nil {
		return g, err
	}
	g.TargetValue = core.MoneyFromCents(target)
	g.CurrentValue = core.MoneyFromCents(current)

	var err error
	if targetDate.Valid {
		if g.TargetDate, err = core.ParseDate(targetDate.String); err != nil {
			return g, fmt.Errorf("parse target_date: %w", err)
		}
	}
	if g.CreatedAt, err = parseTime(created); err != nil {
		return g, fmt.Errorf("parse created_at: %w", err)
	}
	if g.DeletedAt, err = parseNullTime(deleted); err != nil {
		return g, fmt.Errorf("parse deleted_at: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.TargetValue.Cents(), g.CurrentValue.Cents(), g.Category,
		nullDate(g.TargetDate), formatTime(g.CreatedAt), nullTime(g.DeletedAt))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// UpdateGoal rewrites the editable fields; current_cents only changes through FundGoal.
func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE goals
		SET title = ?, target_cents = ?, category = ?, target_date = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL AND current_cents <= ?`,
		g.Title, g.TargetValue.Cents(), g.Category, nullDate(g.TargetDate), g.ID, g.UserID, g.TargetValue.Cents())
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return requireRow(res, "goal", g.ID)
}

func (r *SQLiteRepository) SoftDeleteGoal(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		formatTime(at), id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireRow(res, "goal", id)
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND deleted_at IS NULL
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

func (r *SQLiteRepository) FundGoal(ctx context.Context, userID, goalID string, amount core.Money, entry core.Transaction) (core.Goal, error) {
	var funded core.Goal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals
			WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, goalID, userID)
		g, err := scanGoal(row)
		if errors.Is(err, sql.ErrNoRows) {
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
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return fmt.Errorf("insert funding transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE goals SET current_cents = current_cents + ?
			WHERE id = ? AND user_id = ?`, add.Cents(), goalID, userID); err != nil {
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

// Challenges

const challengeColumns = `id, user_id, challenge_id, title, description, icon, target_scaled, current_scaled,
	reward, status, accepted_at, completed_at, abandoned_at, rewarded_at`

func scanChallenge(row rowScanner) (core.Challenge, error) {
	var (
		c                              core.Challenge
		target, current                int64
		status, accepted               string
		completed, abandoned, rewarded sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.ChallengeID, &c.Title, &c.Description, &c.Icon,
		&target, &current, &c.Reward, &status, &accepted, &completed, &abandoned, &rewarded); err != nil {
		return c, err
	}
	c.Target = UnscaleProgress(target)
	c.Current = UnscaleProgress(current)
	c.Status = core.ChallengeStatus(status)

	var err error
	if c.AcceptedAt, err = parseTime(accepted); err != nil {
		return c, fmt.Errorf("parse accepted_at: %w", err)
	}
	if c.CompletedAt, err = parseNullTime(completed); err != nil {
		return c, fmt.Errorf("parse completed_at: %w", err)
	}
	if c.AbandonedAt, err = parseNullTime(abandoned); err != nil {
		return c, fmt.Errorf("parse abandoned_at: %w", err)
	}
	if c.RewardedAt, err = parseNullTime(rewarded); err != nil {
		return c, fmt.Errorf("parse rewarded_at: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) InsertChallenge(ctx context.Context, c core.Challenge) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ChallengeID, c.Title, c.Description, c.Icon,
		ScaleProgress(c.Target), ScaleProgress(c.Current), c.Reward, string(c.Status),
		formatTime(c.AcceptedAt), nullTime(c.CompletedAt), nullTime(c.AbandonedAt), nullTime(c.RewardedAt))
	if isUniqueViolation(err) {
		return core.ErrChallengeAccepted
	}
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetChallenge(ctx context.Context, userID, id string) (core.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Challenge{}, core.NotFound("challenge", id)
	}
	if err != nil {
		return core.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListChallenges(ctx context.Context, userID string) ([]core.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE user_id = ? ORDER BY accepted_at DESC`, userID)
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

func (r *SQLiteRepository) AdvanceChallenge(ctx context.Context, userID, id string, current decimal.Decimal, completedAt *time.Time) (bool, error) {
	status := string(core.ChallengeActive)
	if completedAt != nil {
		status = string(core.ChallengeCompleted)
	}
	scaled := ScaleProgress(current)
	res, err := r.db.ExecContext(ctx, `UPDATE challenges
		SET current_scaled = ?, status = ?, completed_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active' AND current_scaled <= ?`,
		scaled, status, nullTime(completedAt), id, userID, scaled)
	if err != nil {
		return false, fmt.Errorf("advance challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) AbandonChallenge(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE challenges SET status = 'abandoned', abandoned_at = ?
		WHERE id = ? AND user_id = ? AND status = 'active'`, formatTime(at), id, userID)
	if err != nil {
		return false, fmt.Errorf("abandon challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Rewards

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	p := core.Profile{UserID: userID}
	var (
		cents   int64
		updated string
	)
	err := r.db.QueryRowContext(ctx, `SELECT points, balance_cents, updated_at FROM user_profiles
		WHERE user_id = ?`, userID).Scan(&p.Points, &cents, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}
	p.Balance = core.MoneyFromCents(cents)
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, fmt.Errorf("parse updated_at: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveBalance(ctx context.Context, userID string, balance core.Money, at time.Time) error {
	cents, err := balance.StorableCents()
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO user_profiles (user_id, points, balance_cents, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET balance_cents = excluded.balance_cents, updated_at = excluded.updated_at`,
		userID, cents, formatTime(at))
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

const addPointsSQL = `INSERT INTO user_profiles (user_id, points, balance_cents, updated_at)
	VALUES (?, ?, 0, ?)
	ON CONFLICT (user_id) DO UPDATE SET points = points + excluded.points, updated_at = excluded.updated_at`

func (r *SQLiteRepository) AddPoints(ctx context.Context, userID string, points int64, at time.Time) error {
	if points < 0 {
		return core.Validation("points", "points cannot be negative")
	}
	if _, err := r.db.ExecContext(ctx, addPointsSQL, userID, points, formatTime(at)); err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GrantChallengeReward(ctx context.Context, userID, challengeID string, points int64, a core.Achievement, at time.Time) (bool, error) {
	granted := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE challenges SET rewarded_at = ?
			WHERE id = ? AND user_id = ? AND status = 'completed' AND rewarded_at IS NULL`,
			formatTime(at), challengeID, userID)
		if err != nil {
			return fmt.Errorf("mark challenge rewarded: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, addPointsSQL, userID, points, formatTime(at)); err != nil {
			return fmt.Errorf("add points: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO achievements (id, user_id, challenge_id, title, description, icon, date)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, userID, a.ChallengeID, a.Title, a.Description, a.Icon, formatTime(a.Date)); err != nil {
			return fmt.Errorf("insert achievement: %w", err)
		}
		granted = true
		return nil
	})
	return granted, err
}

func (r *SQLiteRepository) ListAchievements(ctx context.Context, userID string) ([]core.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, challenge_id, title, description, icon, date
		FROM achievements WHERE user_id = ? ORDER BY date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []core.Achievement
	for rows.Next() {
		var (
			a    core.Achievement
			date string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.Title, &a.Description, &a.Icon, &date); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		if a.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("parse achievement date: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM user_profiles
		UNION SELECT user_id FROM transactions
		UNION SELECT user_id FROM goals
		UNION SELECT user_id FROM challenges
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
