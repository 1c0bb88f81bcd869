package http

import (
	"net/http"

	"simplemoney/internal/core"
	"simplemoney/internal/services"
)

type goalPatchRequest struct {
	Title       *string     `json:"title"`
	TargetValue *core.Money `json:"targetValue"`
	Category    *string     `json:"category"`
	TargetDate  *core.Date  `json:"targetDate"`
}

func (p goalPatchRequest) patch() core.GoalPatch {
	out := core.GoalPatch{TargetValue: p.TargetValue, TargetDate: p.TargetDate}
	if p.Title != nil {
		title := sanitizeInput(*p.Title)
		out.Title = &title
	}
	if p.Category != nil {
		category := sanitizeInput(*p.Category)
		out.Category = &category
	}
	return out
}

type fundRequest struct {
	Amount core.Money `json:"amount"`
}

type goalListView struct {
	Goals           []goalView `json:"goals"`
	OverallProgress int        `json:"overallProgress"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in services.GoalInput
	if err := DecodeJSON(w, r, &in); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	in.Title = sanitizeInput(in.Title)
	in.Category = sanitizeInput(in.Category)

	uid := userID(r)
	g, err := s.ledger.CreateGoal(r.Context(), uid, in)
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusCreated, newGoalView(g), err).Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListGoals(r.Context(), userID(r))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	v := goalListView{Goals: make([]goalView, 0, len(list.Goals)), OverallProgress: list.OverallProgress}
	for _, g := range list.Goals {
		v.Goals = append(v.Goals, newGoalView(g))
	}
	NewJSONResponse().Body(v).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	var req goalPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	g, err := s.ledger.UpdateGoal(r.Context(), uid, id, req.patch())
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusOK, newGoalView(g), err).Write(w)
}

func (s *Server) handleRemoveGoal(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	err = s.ledger.RemoveGoal(r.Context(), uid, id)
	if committedErr(err) {
		s.invalidate(uid)
	}
	if err == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	Result(http.StatusNoContent, map[string]string{"id": id}, err).Write(w)
}

// handleFundGoal answers 200 for unmet preconditions too; the body carries
// success false and the user-facing message.
func (s *Server) handleFundGoal(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	var req fundRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	res, err := s.ledger.FundGoal(r.Context(), uid, id, req.Amount)
	if res.Success && committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusOK, newFundingView(res), err).Write(w)
}
