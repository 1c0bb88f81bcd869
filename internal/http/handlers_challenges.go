package http

import (
	"net/http"
	"strings"

	"simplemoney/internal/services"

	"github.com/shopspring/decimal"
)

type acceptRequest struct {
	ChallengeID string           `json:"challengeId"`
	Current     *decimal.Decimal `json:"current"`
}

type acceptView struct {
	Challenge challengeView `json:"challenge"`
	Created   bool          `json:"created"`
	Cascade   cascadeView   `json:"cascade"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newCatalogViews(s.ledger.Catalog())).Write(w)
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	cs, err := s.ledger.ListChallenges(r.Context(), userID(r))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(newChallengeViews(cs)).Write(w)
}

// handleAcceptChallenge answers 201 for a new instance and 200 when the
// challenge was already open.
func (s *Server) handleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	res, err := s.ledger.AcceptChallenge(r.Context(), uid, strings.TrimSpace(req.ChallengeID), services.AcceptOptions{Current: req.Current})
	if res.Created && committedErr(err) {
		s.invalidate(uid)
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	Result(status, acceptView{
		Challenge: newChallengeView(res.Challenge),
		Created:   res.Created,
		Cascade:   newCascadeView(res.Cascade),
	}, err).Write(w)
}

func (s *Server) handleAbandonChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	c, err := s.ledger.AbandonChallenge(r.Context(), uid, id)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	s.invalidate(uid)
	NewJSONResponse().Body(newChallengeView(c)).Write(w)
}
