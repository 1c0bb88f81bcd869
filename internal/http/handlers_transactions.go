package http

import (
	"net/http"

	"simplemoney/internal/core"
	"simplemoney/internal/services"
)

type transactionPatchRequest struct {
	Name     *string               `json:"name"`
	Value    *core.Money           `json:"value"`
	Type     *core.TransactionType `json:"type"`
	Category *string               `json:"category"`
	Date     *core.Date            `json:"date"`
}

func (p transactionPatchRequest) patch() core.TransactionPatch {
	out := core.TransactionPatch{Value: p.Value, Type: p.Type, Date: p.Date}
	if p.Name != nil {
		name := sanitizeInput(*p.Name)
		out.Name = &name
	}
	if p.Category != nil {
		category := sanitizeInput(*p.Category)
		out.Category = &category
	}
	return out
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		ParseFailure(err).Write(w)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Category = sanitizeInput(in.Category)

	uid := userID(r)
	res, err := s.ledger.AddTransaction(r.Context(), uid, in)
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusCreated, transactionResultView{
		Transaction: newTransactionView(res.Transaction),
		Cascade:     newCascadeView(res.Cascade),
	}, err).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParsePeriodFilter(r.URL.Query())
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	txs, err := s.ledger.GetByPeriod(r.Context(), userID(r), f)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	var req transactionPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ParseFailure(err).Write(w)
		return
	}

	uid := userID(r)
	res, err := s.ledger.UpdateTransaction(r.Context(), uid, id, req.patch())
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusOK, transactionResultView{
		Transaction: newTransactionView(res.Transaction),
		Cascade:     newCascadeView(res.Cascade),
	}, err).Write(w)
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		ParseFailure(err).Write(w)
		return
	}
	uid := userID(r)
	res, err := s.ledger.RemoveTransaction(r.Context(), uid, id)
	if committedErr(err) {
		s.invalidate(uid)
	}
	Result(http.StatusOK, newCascadeView(res), err).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.Context(), userID(r))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

// committedErr reports whether a mutation's write happened.
func committedErr(err error) bool {
	return err == nil || core.CodeOf(err) == core.CodePartial
}
