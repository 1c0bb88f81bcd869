package http

import (
	"context"
	"net/http"

	"simplemoney/internal/core"
	"simplemoney/internal/services"
)

type topUpRequest struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	res, err := s.ledger.TopUpBalance(r.Context(), uid, req.Amount)
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusOK, topUpView{
		Transaction: newTransactionView(res.Transaction),
		Points:      res.Points,
		Balance:     res.Balance,
		Message:     res.Message,
	}, err).Write(w)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.Profile(r.Context(), userID(r))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(newProfileView(p)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.getDashboard(r, userID(r))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

// getDashboard serves from the per-user cache when enabled; concurrent
// misses share one load.
func (s *Server) getDashboard(r *http.Request, uid string) (services.Dashboard, error) {
	if s.dashboard == nil {
		return s.ledger.Dashboard(r.Context(), uid)
	}
	// Detached from the request so a cancelled caller does not fail the
	// load shared with other waiters.
	ctx := context.WithoutCancel(r.Context())
	return s.dashboard.Get(uid, func() (services.Dashboard, error) {
		return s.ledger.Dashboard(ctx, uid)
	})
}
