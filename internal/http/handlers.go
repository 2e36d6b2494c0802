package http

import (
	"context"
	"net/http"
	"time"

	"vault/internal/budget"
	"vault/internal/core"
	"vault/internal/ledger"
	vlog "vault/internal/log"
	"vault/internal/schedule"
)

// listResponse wraps a collection with the revision it was read at.
type listResponse struct {
	Kind     ledger.Kind   `json:"kind"`
	Revision int64         `json:"revision"`
	Items    []core.Entity `json:"items"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := ledger.ParseKind(r.PathValue("kind"))
	if !ok {
		NotFoundError("unknown collection " + r.PathValue("kind")).Write(w)
		return
	}
	store := s.vault.Store()
	items := store.List(kind)
	if items == nil {
		items = []core.Entity{}
	}
	NewJSONResponse().Body(listResponse{Kind: kind, Revision: store.Revision(), Items: items}).Write(w)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := ledger.ParseKind(r.PathValue("kind"))
	if !ok {
		NotFoundError("unknown collection " + r.PathValue("kind")).Write(w)
		return
	}
	id := r.PathValue("id")
	for _, item := range s.vault.Store().List(kind) {
		if item.EntityID() == id {
			NewJSONResponse().Body(item).Write(w)
			return
		}
	}
	writeError(w, r, "get", core.NotFound(string(kind), id))
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Revision int64  `json:"revision"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(healthResponse{
		Status:   "ok",
		Uptime:   s.now().Sub(s.started).Round(time.Second).String(),
		Revision: s.vault.Store().Revision(),
	}).Write(w)
}

type readyResponse struct {
	Status     string     `json:"status"`
	Store      string     `json:"store"`
	Sync       bool       `json:"sync"`
	QueuedSync bool       `json:"queuedSync"`
	Suggest    bool       `json:"suggestions"`
	LastUpload *time.Time `json:"lastUpload,omitempty"`
}

// handleReady checks that the local store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := readyResponse{
		Status:     "ready",
		Store:      "ok",
		Sync:       s.sync.Enabled(),
		QueuedSync: s.vault.Queued(),
		Suggest:    s.suggestions.Enabled(),
	}
	last, found, err := s.vault.Repository().LastUpload(ctx)
	if err != nil {
		vlog.FromContext(ctx).Warn("Readiness check failed", vlog.FieldError, err)
		resp.Status = "unavailable"
		resp.Store = err.Error()
		NewJSONResponse().Status(http.StatusServiceUnavailable).Body(resp).Write(w)
		return
	}
	if found {
		resp.LastUpload = &last.SyncedAt
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.vault.Store().Settings()).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch ledger.SettingsPatch
	if !decodeOrFail(w, r, &patch, false) {
		return
	}
	sanitizePtr(patch.Currency)
	s.execute(w, r, ledger.UpdateSettings{Patch: patch}, http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	params, err := ParseMonthParams(r.URL.Query(), today)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(budget.Compute(s.vault.Snapshot(), params.Period, today)).Write(w)
}

type obligationsResponse struct {
	Today       core.Date             `json:"today"`
	Obligations []schedule.Obligation `json:"obligations"`
}

func (s *Server) handleObligations(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	snap := s.vault.Snapshot()
	obs := schedule.Obligations(snap.Bills, snap.RecurringItems, today)
	if obs == nil {
		obs = []schedule.Obligation{}
	}
	NewJSONResponse().Body(obligationsResponse{Today: today, Obligations: obs}).Write(w)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// handleMarkNotificationsRead marks the listed notifications read; an
// empty body marks all of them.
func (s *Server) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !decodeOrFail(w, r, &req, true) {
		return
	}
	s.execute(w, r, ledger.MarkNotificationsRead{IDs: req.IDs}, http.StatusOK)
}

func (s *Server) handlePurgeMock(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, ledger.PurgeMockData{}, http.StatusOK)
}

type purgeAllRequest struct {
	Confirm bool `json:"confirm"`
}

// handlePurgeAll wipes every collection. The body must carry
// {"confirm": true}.
func (s *Server) handlePurgeAll(w http.ResponseWriter, r *http.Request) {
	var req purgeAllRequest
	if !decodeOrFail(w, r, &req, false) {
		return
	}
	if !req.Confirm {
		writeError(w, r, "PurgeAll", core.Invalid("confirm", core.ErrMissingField))
		return
	}
	s.execute(w, r, ledger.PurgeAll{}, http.StatusOK)
}
