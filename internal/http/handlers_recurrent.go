package http

import (
	"net/http"

	"vault/internal/core"
	"vault/internal/ledger"
)

func (s *Server) handleCreateBudgetItem(w http.ResponseWriter, r *http.Request) {
	var item core.BudgetItem
	if !decodeOrFail(w, r, &item, false) {
		return
	}
	item.Name = sanitizeInput(item.Name)
	item.SubCategory = sanitizeInput(item.SubCategory)
	s.execute(w, r, ledger.AddBudgetItem{Item: item}, http.StatusCreated)
}

func (s *Server) handleUpdateBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var item core.BudgetItem
	if !decodeOrFail(w, r, &item, false) {
		return
	}
	item.ID = id
	item.Name = sanitizeInput(item.Name)
	item.SubCategory = sanitizeInput(item.SubCategory)
	s.execute(w, r, ledger.UpdateBudgetItem{Item: item}, http.StatusOK)
}

func (s *Server) handleDeleteBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteBudgetItem{ID: id}, http.StatusOK)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var bill core.Bill
	if !decodeOrFail(w, r, &bill, false) {
		return
	}
	bill.Merchant = sanitizeInput(bill.Merchant)
	bill.Note = sanitizeInput(bill.Note)
	s.execute(w, r, ledger.AddBill{Bill: bill}, http.StatusCreated)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var bill core.Bill
	if !decodeOrFail(w, r, &bill, false) {
		return
	}
	bill.ID = id
	bill.Merchant = sanitizeInput(bill.Merchant)
	bill.Note = sanitizeInput(bill.Note)
	s.execute(w, r, ledger.UpdateBill{Bill: bill}, http.StatusOK)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteBill{ID: id}, http.StatusOK)
}

type payBillRequest struct {
	AccountID string    `json:"accountId"`
	Date      core.Date `json:"date,omitzero"`
}

// handlePayBill settles a bill. The paying account is optional; without it
// the payment expense is recorded unbound.
func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req payBillRequest
	if !decodeOrFail(w, r, &req, true) {
		return
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	s.execute(w, r, ledger.PayBill{BillID: id, AccountID: req.AccountID, Date: req.Date}, http.StatusOK)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var item core.RecurringItem
	if !decodeOrFail(w, r, &item, false) {
		return
	}
	item.Merchant = sanitizeInput(item.Merchant)
	item.Note = sanitizeInput(item.Note)
	item.SubCategory = sanitizeInput(item.SubCategory)
	s.execute(w, r, ledger.AddRecurring{Item: item}, http.StatusCreated)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteRecurring{ID: id}, http.StatusOK)
}

// handleRollForward advances recurring items and bills that are due, the
// same pass the background processor runs.
func (s *Server) handleRollForward(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, ledger.RollForward{Today: s.today(), MaxCatchUp: s.maxCatchUp}, http.StatusOK)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule core.Rule
	if !decodeOrFail(w, r, &rule, false) {
		return
	}
	rule.Keyword = sanitizeInput(rule.Keyword)
	rule.SubCategory = sanitizeInput(rule.SubCategory)
	s.execute(w, r, ledger.AddRule{Rule: rule}, http.StatusCreated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.execute(w, r, ledger.DeleteRule{ID: id}, http.StatusOK)
}

func (s *Server) handleRefineRules(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, ledger.RefineWithRules{}, http.StatusOK)
}
