package challenges

import (
	"time"

	"simplemoney/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Advance is a progress change computed for one active challenge.
type Advance struct {
	Challenge core.Challenge // instance with Current, Status and CompletedAt updated
	Previous  decimal.Decimal
	Metric    decimal.Decimal
	Completed bool
}

// Payout is a reward owed for a completed challenge.
type Payout struct {
	Challenge   core.Challenge
	Points      int64
	Achievement core.Achievement
}

// Measure evaluates the metric of a catalog entry.
func Measure(def Definition, s Snapshot) (decimal.Decimal, error) {
	m, err := GetMetric(def.Metric)
	if err != nil {
		return decimal.Zero, err
	}
	return m.Measure(s), nil
}

// Evaluate computes the advances for the active challenges in active.
//
// Progress is monotone: the new value is min(metric, target) and only an
// increase is reported. A challenge whose current value already reached its
// target is reported as completed even without an increase. Instances that
// are not active, or whose catalog entry is unknown, are skipped.
func Evaluate(active []core.Challenge, s Snapshot) []Advance {
	var out []Advance
	for _, c := range active {
		if c.Status != core.ChallengeActive {
			continue
		}
		def, ok := Lookup(c.ChallengeID)
		if !ok {
			continue
		}
		metric, err := Measure(def, s)
		if err != nil {
			continue
		}
		next := decimal.Min(metric, c.Target)
		if next.LessThan(c.Current) {
			next = c.Current
		}
		completed := next.GreaterThanOrEqual(c.Target)
		if !next.GreaterThan(c.Current) && !completed {
			continue
		}

		updated := c
		updated.Current = next
		if completed {
			at := s.Now
			updated.Status = core.ChallengeCompleted
			updated.CompletedAt = &at
		}
		out = append(out, Advance{Challenge: updated, Previous: c.Current, Metric: metric, Completed: completed})
	}
	return out
}

// PendingPayouts lists completed challenges whose reward has not been granted.
func PendingPayouts(all []core.Challenge, s Snapshot) []Payout {
	var out []Payout
	for _, c := range all {
		if c.Status != core.ChallengeCompleted || c.RewardedAt != nil {
			continue
		}
		def, ok := Lookup(c.ChallengeID)
		if !ok {
			continue
		}
		metric, err := Measure(def, s)
		if err != nil {
			metric = c.Target
		}
		a := def.Badge(metric)
		a.ID = uuid.NewString()
		a.UserID = c.UserID
		a.Title = c.Title
		a.Date = s.Now
		out = append(out, Payout{Challenge: c, Points: c.Reward, Achievement: a})
	}
	return out
}

// Seed returns the initial progress of a new instance: override when given,
// the current metric otherwise, clamped to [0, target].
func Seed(def Definition, s Snapshot, override *decimal.Decimal) decimal.Decimal {
	var v decimal.Decimal
	if override != nil {
		v = *override
	} else if m, err := Measure(def, s); err == nil {
		v = m
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(v, def.Target)
}

// NewInstance creates an active instance of def for userID.
func NewInstance(def Definition, userID string, seed decimal.Decimal, now time.Time) core.Challenge {
	return core.Challenge{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: def.ID,
		Title:       def.Title,
		Description: def.Description,
		Icon:        def.Icon,
		Target:      def.Target,
		Current:     seed,
		Reward:      def.Reward,
		Status:      core.ChallengeActive,
		AcceptedAt:  now,
	}
}
