package http

import (
	"errors"
	"net/http"
	"strings"

	"vault/internal/core"
	"vault/internal/ledger"
)

// errFeatureDisabled is returned by endpoints whose backing service is not
// configured.
var errFeatureDisabled = errors.New("feature not configured")

// sanitizeInput removes control characters and trims whitespace from
// free-text fields before they reach the ledger.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func sanitizeExpense(e *core.Expense) {
	e.Merchant = sanitizeInput(e.Merchant)
	e.Note = sanitizeInput(e.Note)
	e.SubCategory = sanitizeInput(e.SubCategory)
}

func sanitizePtr(p *string) {
	if p != nil {
		*p = sanitizeInput(*p)
	}
}

// execute runs a command and writes its result. status is used when the
// command committed, 200 otherwise.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd ledger.Command, status int) {
	res, err := s.vault.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, r, cmd.Name(), err)
		return
	}
	s.logger.LogCommand(r.Context(), res.Command, res.Revision, res.Committed, res.Affected)
	if !res.Committed {
		status = http.StatusOK
	}
	NewJSONResponse().Status(status).Body(commandResponse(res)).Write(w)
}

// today is the current calendar day in the server clock.
func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}
