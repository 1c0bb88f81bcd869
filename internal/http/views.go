package http

import (
	"time"

	"simplemoney/internal/challenges"
	"simplemoney/internal/core"
	"simplemoney/internal/services"
)

type transactionView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Value     core.Money `json:"value"`
	Type      string     `json:"type"`
	Category  string     `json:"category"`
	Date      core.Date  `json:"date"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:        t.ID,
		Name:      t.Name,
		Value:     t.Value,
		Type:      string(t.Type),
		Category:  t.Category,
		Date:      t.Date,
		CreatedAt: t.CreatedAt,
	}
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

type goalView struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	TargetValue  core.Money `json:"targetValue"`
	CurrentValue core.Money `json:"currentValue"`
	Category     string     `json:"category"`
	TargetDate   core.Date  `json:"targetDate"`
	Progress     int        `json:"progress"`
	Completed    bool       `json:"completed"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newGoalView(g core.Goal) goalView {
	return goalView{
		ID:           g.ID,
		Title:        g.Title,
		TargetValue:  g.TargetValue,
		CurrentValue: g.CurrentValue,
		Category:     g.Category,
		TargetDate:   g.TargetDate,
		Progress:     int(g.Percent().Round(0).IntPart()),
		Completed:    g.IsComplete(),
		CreatedAt:    g.CreatedAt,
	}
}

type challengeView struct {
	ID          string     `json:"id"`
	ChallengeID string     `json:"challengeId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Target      float64    `json:"target"`
	Current     float64    `json:"current"`
	Reward      int64      `json:"reward"`
	Status      string     `json:"status"`
	AcceptedAt  time.Time  `json:"acceptedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	AbandonedAt *time.Time `json:"abandonedAt,omitempty"`
	Rewarded    bool       `json:"rewarded"`
}

func newChallengeView(c core.Challenge) challengeView {
	return challengeView{
		ID:          c.ID,
		ChallengeID: c.ChallengeID,
		Title:       c.Title,
		Description: c.Description,
		Icon:        c.Icon,
		Target:      c.Target.InexactFloat64(),
		Current:     c.Current.InexactFloat64(),
		Reward:      c.Reward,
		Status:      string(c.Status),
		AcceptedAt:  c.AcceptedAt,
		CompletedAt: c.CompletedAt,
		AbandonedAt: c.AbandonedAt,
		Rewarded:    c.RewardedAt != nil,
	}
}

func newChallengeViews(cs []core.Challenge) []challengeView {
	out := make([]challengeView, 0, len(cs))
	for _, c := range cs {
		out = append(out, newChallengeView(c))
	}
	return out
}

type catalogView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Target      float64 `json:"target"`
	Reward      int64   `json:"reward"`
	Metric      string  `json:"metric"`
}

func newCatalogViews(defs []challenges.Definition) []catalogView {
	out := make([]catalogView, 0, len(defs))
	for _, d := range defs {
		out = append(out, catalogView{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Target:      d.Target.InexactFloat64(),
			Reward:      d.Reward,
			Metric:      string(d.Metric),
		})
	}
	return out
}

type achievementView struct {
	ID          string    `json:"id"`
	ChallengeID string    `json:"challengeId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Date        time.Time `json:"date"`
}

func newAchievementView(a core.Achievement) achievementView {
	return achievementView{
		ID:          a.ID,
		ChallengeID: a.ChallengeID,
		Title:       a.Title,
		Description: a.Description,
		Icon:        a.Icon,
		Date:        a.Date,
	}
}

type rewardView struct {
	ChallengeID string          `json:"challengeId"`
	Points      int64           `json:"points"`
	Achievement achievementView `json:"achievement"`
}

// cascadeView summarizes what a mutation changed downstream.
type cascadeView struct {
	Balance   core.Money      `json:"balance"`
	Advanced  []challengeView `json:"advanced"`
	Completed []challengeView `json:"completed"`
	Rewarded  []rewardView    `json:"rewarded"`
}

func newCascadeView(r services.CascadeResult) cascadeView {
	v := cascadeView{
		Balance:   r.Balance,
		Advanced:  newChallengeViews(r.Advanced),
		Completed: newChallengeViews(r.Completed),
		Rewarded:  make([]rewardView, 0, len(r.Rewarded)),
	}
	for _, p := range r.Rewarded {
		v.Rewarded = append(v.Rewarded, rewardView{
			ChallengeID: p.Challenge.ChallengeID,
			Points:      p.Points,
			Achievement: newAchievementView(p.Achievement),
		})
	}
	return v
}

type transactionResultView struct {
	Transaction transactionView `json:"transaction"`
	Cascade     cascadeView     `json:"cascade"`
}

type fundingView struct {
	Success     bool       `json:"success"`
	AmountAdded core.Money `json:"amountAdded"`
	Message     string     `json:"message"`
	Goal        *goalView  `json:"goal,omitempty"`
	Balance     core.Money `json:"balance"`
}

func newFundingView(r services.FundingResult) fundingView {
	v := fundingView{
		Success:     r.Success,
		AmountAdded: r.AmountAdded,
		Message:     r.Message,
		Balance:     r.Balance,
	}
	if r.Goal != nil {
		g := newGoalView(*r.Goal)
		v.Goal = &g
	}
	return v
}

type topUpView struct {
	Transaction transactionView `json:"transaction"`
	Points      int64           `json:"points"`
	Balance     core.Money      `json:"balance"`
	Message     string          `json:"message"`
}

type profileView struct {
	UserID       string            `json:"userId"`
	Points       int64             `json:"points"`
	Balance      core.Money        `json:"balance"`
	Achievements []achievementView `json:"achievements"`
}

func newProfileView(p services.ProfileView) profileView {
	v := profileView{
		UserID:       p.UserID,
		Points:       p.Points,
		Balance:      p.Balance,
		Achievements: make([]achievementView, 0, len(p.Achievements)),
	}
	for _, a := range p.Achievements {
		v.Achievements = append(v.Achievements, newAchievementView(a))
	}
	return v
}
