package http

import (
	"net/http"

	"vault/internal/core"
	"vault/internal/ledger"
)

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var in core.Income
	if !decodeOrFail(w, r, &in, false) {
		return
	}
	in.Note = sanitizeInput(in.Note)
	if in.Date.IsZero() {
		in.Date = s.today()
	}
	s.execute(w, r, ledger.AddIncome{Income: in}, http.StatusCreated)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var patch ledger.IncomePatch
	if !decodeOrFail(w, r, &patch, false) {
		return
	}
	sanitizePtr(patch.Note)
	s.execute(w, r, ledger.UpdateIncome{ID: id, Patch: patch}, http.StatusOK)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteIncome{ID: id}, http.StatusOK)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var acc core.Account
	if !decodeOrFail(w, r, &acc, false) {
		return
	}
	acc.Name = sanitizeInput(acc.Name)
	acc.Alias = sanitizeInput(acc.Alias)
	acc.Group = sanitizeInput(acc.Group)
	s.execute(w, r, ledger.AddAccount{Account: acc}, http.StatusCreated)
}

// handleUpdateAccount edits account metadata. The balance is left alone;
// use the adjust endpoint to reconcile it.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var acc core.Account
	if !decodeOrFail(w, r, &acc, false) {
		return
	}
	acc.ID = id
	acc.Name = sanitizeInput(acc.Name)
	acc.Alias = sanitizeInput(acc.Alias)
	acc.Group = sanitizeInput(acc.Group)
	s.execute(w, r, ledger.UpdateAccount{Account: acc}, http.StatusOK)
}

type adjustRequest struct {
	Value *int64 `json:"value"`
}

func (s *Server) handleAdjustAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req adjustRequest
	if !decodeOrFail(w, r, &req, false) {
		return
	}
	if req.Value == nil {
		writeError(w, r, "AdjustAccountBalance", core.Invalid("value", core.ErrMissingField))
		return
	}
	s.execute(w, r, ledger.AdjustAccountBalance{ID: id, Value: *req.Value}, http.StatusOK)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteAccount{ID: id}, http.StatusOK)
}
