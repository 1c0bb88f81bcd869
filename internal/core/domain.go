package core

import (
	"bytes"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeAbandoned ChallengeStatus = "abandoned"
)

const (
	// GoalFundingCategory is the category of the synthetic expense recorded
	// when a goal is funded from the balance.
	GoalFundingCategory = "Metas"
	// TopUpCategory and TopUpName describe the income recorded by a manual
	// balance top-up.
	TopUpCategory = "Outros"
	TopUpName     = "Saldo Adicionado"

	maxTextLength = 200
)

type (
	TransactionType string
	ChallengeStatus string

	// Date is a calendar day in UTC. Time-of-day is always midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID        string
		UserID    string
		Name      string
		Value     Money
		Type      TransactionType
		Category  string
		Date      Date
		CreatedAt time.Time
		DeletedAt *time.Time
	}

	// TransactionPatch carries the fields of an edit; nil fields are kept.
	TransactionPatch struct {
		Name     *string
		Value    *Money
		Type     *TransactionType
		Category *string
		Date     *Date
	}

	Goal struct {
		ID           string
		UserID       string
		Title        string
		TargetValue  Money
		CurrentValue Money
		Category     string
		TargetDate   Date // zero when the goal has no deadline
		CreatedAt    time.Time
		DeletedAt    *time.Time
	}

	GoalPatch struct {
		Title       *string
		TargetValue *Money
		Category    *string
		TargetDate  *Date
	}

	// Challenge is a user's accepted instance of a catalog challenge.
	// Target and Current are in the unit of the challenge metric
	// (currency for savings, a count otherwise).
	Challenge struct {
		ID          string
		UserID      string
		ChallengeID string
		Title       string
		Description string
		Icon        string
		Target      decimal.Decimal
		Current     decimal.Decimal
		Reward      int64
		Status      ChallengeStatus
		AcceptedAt  time.Time
		CompletedAt *time.Time
		AbandonedAt *time.Time
		RewardedAt  *time.Time
	}

	Achievement struct {
		ID          string
		UserID      string
		ChallengeID string // empty for achievements not tied to a challenge
		Title       string
		Description string
		Icon        string
		Date        time.Time
	}

	// Profile is the per-user rewards state. Balance is a cache of the ledger
	// fold and is rewritten after every mutation.
	Profile struct {
		UserID    string
		Points    int64
		Balance   Money
		UpdatedAt time.Time
	}
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp; the time of day is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsDeleted reports whether the transaction was soft deleted.
func (t Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if len(t.Name) > maxTextLength {
		return Validation("name", "name too long (max 200 characters)")
	}
	if err := t.Value.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > maxTextLength {
		return Validation("category", "category too long (max 200 characters)")
	}
	return t.Date.Validate()
}

// Apply returns a copy of t with the patch fields overwritten.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Value != nil {
		t.Value = *p.Value
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Name == nil && p.Value == nil && p.Type == nil && p.Category == nil && p.Date == nil
}

func (g Goal) IsDeleted() bool {
	return g.DeletedAt != nil
}

// Remaining is the amount still needed to reach the target.
func (g Goal) Remaining() Money {
	r := g.TargetValue.Sub(g.CurrentValue)
	if r.IsNegative() {
		return Money{}
	}
	return r
}

func (g Goal) IsComplete() bool {
	return g.CurrentValue.GreaterThanOrEqual(g.TargetValue)
}

// Percent is the funded share of the target in [0, 100].
func (g Goal) Percent() decimal.Decimal {
	if !g.TargetValue.IsPositive() {
		return decimal.Zero
	}
	p := g.CurrentValue.Decimal().Div(g.TargetValue.Decimal()).Mul(decimal.NewFromInt(100))
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > maxTextLength {
		return Validation("title", "title too long (max 200 characters)")
	}
	if err := g.TargetValue.Validate(); err != nil {
		return Validation("targetValue", "target must be greater than zero and at most "+MaxAmount.String())
	}
	if g.CurrentValue.IsNegative() {
		return Validation("currentValue", "current value cannot be negative")
	}
	if g.CurrentValue.GreaterThan(g.TargetValue) {
		return ErrTargetBelowCurrent
	}
	return nil
}

// Apply returns a copy of g with the patch fields overwritten.
func (p GoalPatch) Apply(g Goal) Goal {
	if p.Title != nil {
		g.Title = strings.TrimSpace(*p.Title)
	}
	if p.TargetValue != nil {
		g.TargetValue = *p.TargetValue
	}
	if p.Category != nil {
		g.Category = strings.TrimSpace(*p.Category)
	}
	if p.TargetDate != nil {
		g.TargetDate = *p.TargetDate
	}
	return g
}

// IsOpen reports whether the instance blocks a new acceptance of the same
// catalog challenge.
func (c Challenge) IsOpen() bool {
	return c.Status == ChallengeActive || c.Status == ChallengeCompleted
}

func (c Challenge) Validate() error {
	if strings.TrimSpace(c.ChallengeID) == "" {
		return ErrUnknownChallenge
	}
	if !c.Target.IsPositive() {
		return Validation("target", "target must be greater than zero")
	}
	if c.Current.IsNegative() || c.Current.GreaterThan(c.Target) {
		return Validation("current", "current must be between zero and target")
	}
	switch c.Status {
	case ChallengeActive, ChallengeCompleted, ChallengeAbandoned:
	default:
		return Validation("status", "invalid status")
	}
	return nil
}
