// Package memory is an in-process storage.Repository used by the memory
// backend and by service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"simplemoney/internal/core"
	"simplemoney/internal/storage"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu           sync.RWMutex
	transactions map[string]core.Transaction
	goals        map[string]core.Goal
	challenges   map[string]core.Challenge
	achievements []core.Achievement
	profiles     map[string]core.Profile
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		goals:        make(map[string]core.Goal),
		challenges:   make(map[string]core.Challenge),
		profiles:     make(map[string]core.Profile),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Value.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Value.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[tx.ID]
	if !ok || cur.UserID != tx.UserID || cur.IsDeleted() {
		return core.NotFound("transaction", tx.ID)
	}
	cur.Name, cur.Value, cur.Type, cur.Category, cur.Date = tx.Name, tx.Value, tx.Type, tx.Category, tx.Date
	s.transactions[tx.ID] = cur
	return nil
}

func (s *Store) SoftDeleteTransaction(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[id]
	if !ok || cur.UserID != userID || cur.IsDeleted() {
		return core.NotFound("transaction", id)
	}
	cur.DeletedAt = &at
	s.transactions[id] = cur
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID || tx.IsDeleted() {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && !tx.IsDeleted() {
			out = append(out, tx)
		}
	}
	core.SortByDateDesc(out)
	return out, nil
}

func (s *Store) InsertGoal(_ context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	if err := g.TargetValue.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[g.ID]
	if !ok || cur.UserID != g.UserID || cur.IsDeleted() || cur.CurrentValue.GreaterThan(g.TargetValue) {
		return core.NotFound("goal", g.ID)
	}
	cur.Title, cur.TargetValue, cur.Category, cur.TargetDate = g.Title, g.TargetValue, g.Category, g.TargetDate
	s.goals[g.ID] = cur
	return nil
}

func (s *Store) SoftDeleteGoal(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[id]
	if !ok || cur.UserID != userID || cur.IsDeleted() {
		return core.NotFound("goal", id)
	}
	cur.DeletedAt = &at
	s.goals[id] = cur
	return nil
}

func (s *Store) GetGoal(_ context.Context, userID, id string) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID || g.IsDeleted() {
		return core.Goal{}, core.NotFound("goal", id)
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID && !g.IsDeleted() {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FundGoal(_ context.Context, userID, goalID string, amount core.Money, entry core.Transaction) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID || g.IsDeleted() {
		return core.Goal{}, core.NotFound("goal", goalID)
	}
	add := core.MinMoney(amount, g.Remaining())
	if !add.IsPositive() {
		return core.Goal{}, core.ErrGoalFundingConflict
	}
	entry.Value = add
	s.transactions[entry.ID] = entry
	g.CurrentValue = g.CurrentValue.Add(add)
	s.goals[goalID] = g
	return g, nil
}

func (s *Store) InsertChallenge(_ context.Context, c core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.challenges {
		if existing.UserID == c.UserID && existing.ChallengeID == c.ChallengeID && existing.IsOpen() {
			return core.ErrChallengeAccepted
		}
	}
	s.challenges[c.ID] = c
	return nil
}

func (s *Store) GetChallenge(_ context.Context, userID, id string) (core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok || c.UserID != userID {
		return core.Challenge{}, core.NotFound("challenge", id)
	}
	return c, nil
}

func (s *Store) ListChallenges(_ context.Context, userID string) ([]core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Challenge
	for _, c := range s.challenges {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AcceptedAt.After(out[j].AcceptedAt) })
	return out, nil
}

func (s *Store) AdvanceChallenge(_ context.Context, userID, id string, current decimal.Decimal, completedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.UserID != userID || c.Status != core.ChallengeActive || current.LessThan(c.Current) {
		return false, nil
	}
	c.Current = current
	if completedAt != nil {
		at := *completedAt
		c.Status = core.ChallengeCompleted
		c.CompletedAt = &at
	}
	s.challenges[id] = c
	return true, nil
}

func (s *Store) AbandonChallenge(_ context.Context, userID, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.UserID != userID || c.Status != core.ChallengeActive {
		return false, nil
	}
	c.Status = core.ChallengeAbandoned
	c.AbandonedAt = &at
	s.challenges[id] = c
	return true, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.Profile{UserID: userID}, nil
	}
	return p, nil
}

func (s *Store) SaveBalance(_ context.Context, userID string, balance core.Money, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[userID]
	p.UserID = userID
	p.Balance = balance
	p.UpdatedAt = at
	s.profiles[userID] = p
	return nil
}

func (s *Store) AddPoints(_ context.Context, userID string, points int64, at time.Time) error {
	if points < 0 {
		return core.Validation("points", "points cannot be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addPointsLocked(userID, points, at)
	return nil
}

func (s *Store) addPointsLocked(userID string, points int64, at time.Time) {
	p := s.profiles[userID]
	p.UserID = userID
	p.Points += points
	p.UpdatedAt = at
	s.profiles[userID] = p
}

func (s *Store) GrantChallengeReward(_ context.Context, userID, challengeID string, points int64, a core.Achievement, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[challengeID]
	if !ok || c.UserID != userID || c.Status != core.ChallengeCompleted || c.RewardedAt != nil {
		return false, nil
	}
	c.RewardedAt = &at
	s.challenges[challengeID] = c
	s.addPointsLocked(userID, points, at)
	a.UserID = userID
	s.achievements = append(s.achievements, a)
	return true, nil
}

func (s *Store) ListAchievements(_ context.Context, userID string) ([]core.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Achievement
	for _, a := range s.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for id := range s.profiles {
		seen[id] = struct{}{}
	}
	for _, tx := range s.transactions {
		seen[tx.UserID] = struct{}{}
	}
	for _, g := range s.goals {
		seen[g.UserID] = struct{}{}
	}
	for _, c := range s.challenges {
		seen[c.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
