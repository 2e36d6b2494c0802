package http

import (
	"net/http"

	"vault/internal/core"
	"vault/internal/ledger"
)

// createExpenseRequest is an expense plus an optional recurrence. A
// recurring frequency also schedules the next occurrence.
type createExpenseRequest struct {
	core.Expense
	Frequency core.Frequency `json:"frequency,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeOrFail(w, r, &req, false) {
		return
	}
	sanitizeExpense(&req.Expense)
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	s.execute(w, r, ledger.AddExpense{Expense: req.Expense, Frequency: req.Frequency}, http.StatusCreated)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var patch ledger.ExpensePatch
	if !decodeOrFail(w, r, &patch, false) {
		return
	}
	sanitizePtr(patch.Merchant)
	sanitizePtr(patch.Note)
	sanitizePtr(patch.SubCategory)
	s.execute(w, r, ledger.UpdateExpense{ID: id, Patch: patch}, http.StatusOK)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteExpense{ID: id}, http.StatusOK)
}

type transferRequest struct {
	FromID string    `json:"fromId"`
	ToID   string    `json:"toId"`
	Amount int64     `json:"amount"`
	Date   core.Date `json:"date,omitzero"`
	Note   string    `json:"note,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeOrFail(w, r, &req, false) {
		return
	}
	s.execute(w, r, ledger.Transfer{
		FromID: req.FromID,
		ToID:   req.ToID,
		Amount: req.Amount,
		Date:   req.Date,
		Note:   sanitizeInput(req.Note),
	}, http.StatusCreated)
}
