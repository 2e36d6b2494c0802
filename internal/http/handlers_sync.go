package http

import (
	"net/http"

	"vault/internal/core"
	"vault/internal/reconcile"
	"vault/internal/snapshot"
	"vault/internal/storage"
)

// handleExportSnapshot downloads the whole vault as a date-stamped JSON
// document.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Encode(s.vault.Snapshot())
	if err != nil {
		writeError(w, r, "export", err)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", `attachment; filename="`+snapshot.ExportFileName(s.now())+`"`).
		Raw(data).
		Write(w)
}

type restoreResponse struct {
	Revision int64 `json:"revision"`
}

// handleImportSnapshot replaces the vault with an uploaded document. A
// document that does not parse leaves the vault untouched.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, MaxSnapshotBytes)
	if err != nil {
		failBadRequest(w, err)
		return
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		writeError(w, r, "restore", err)
		return
	}
	rev, err := s.vault.Restore(r.Context(), snap, "import")
	if err != nil {
		writeError(w, r, "restore", err)
		return
	}
	NewJSONResponse().Body(restoreResponse{Revision: rev}).Write(w)
}

func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	res, err := s.sync.Push(r.Context())
	if err != nil {
		writeError(w, r, "push", err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r.URL.Query(), "force")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	res, err := s.sync.Pull(r.Context(), force)
	if err != nil {
		writeError(w, r, "pull", err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

type historyResponse struct {
	Uploads []storage.Upload `json:"uploads"`
}

func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), 20, 200)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	uploads, err := s.vault.Repository().History(r.Context(), limit)
	if err != nil {
		writeError(w, r, "history", err)
		return
	}
	if uploads == nil {
		uploads = []storage.Upload{}
	}
	NewJSONResponse().Body(historyResponse{Uploads: uploads}).Write(w)
}

type stageRequest struct {
	Candidates []reconcile.Candidate `json:"candidates"`
}

// stagedEntry adds the review verdict the staged entry keeps unexported.
type stagedEntry struct {
	reconcile.Entry
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type stageResponse struct {
	Token      string        `json:"token"`
	Entries    []stagedEntry `json:"entries"`
	Rejected   int           `json:"rejected"`
	Duplicates int           `json:"duplicates"`
}

func (s *Server) handleStageImport(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if !decodeOrFail(w, r, &req, false) {
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, r, "import", core.Invalid("candidates", core.ErrMissingField))
		return
	}
	staged := s.imports.Stage(r.Context(), req.Candidates)

	resp := stageResponse{
		Token:      staged.Token,
		Entries:    make([]stagedEntry, 0, len(staged.Entries)),
		Rejected:   staged.Rejected,
		Duplicates: staged.Duplicates,
	}
	for _, e := range staged.Entries {
		resp.Entries = append(resp.Entries, stagedEntry{Entry: e, Valid: e.Valid(), Reason: e.Reason()})
	}
	NewJSONResponse().Status(http.StatusCreated).Body(resp).Write(w)
}

type commitRequest struct {
	IncludeDuplicates bool  `json:"includeDuplicates"`
	Exclude           []int `json:"exclude"`
}

type commitResponse struct {
	CommandResponse
	Left int `json:"left"`
}

func (s *Server) handleCommitImport(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	var req commitRequest
	if !decodeOrFail(w, r, &req, true) {
		return
	}
	res, err := s.imports.Commit(r.Context(), token, reconcile.CommitOptions{
		IncludeDuplicates: req.IncludeDuplicates,
		Exclude:           req.Exclude,
	})
	if err != nil {
		writeError(w, r, "import", err)
		return
	}
	s.logger.LogCommand(r.Context(), res.Result.Command, res.Result.Revision, res.Result.Committed, res.Result.Affected)
	NewJSONResponse().Body(commitResponse{CommandResponse: commandResponse(res.Result), Left: res.Left}).Write(w)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if !s.suggestions.Enabled() {
		writeError(w, r, "suggest", errFeatureDisabled)
		return
	}
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sg, err := s.suggestions.Suggest(r.Context(), id)
	if err != nil {
		writeError(w, r, "suggest", err)
		return
	}
	NewJSONResponse().Body(sg).Write(w)
}

func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	if !s.suggestions.Enabled() {
		writeError(w, r, "suggest", errFeatureDisabled)
		return
	}
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	res, err := s.suggestions.Apply(r.Context(), id)
	if err != nil {
		writeError(w, r, "suggest", err)
		return
	}
	s.logger.LogCommand(r.Context(), res.Command, res.Revision, res.Committed, res.Affected)
	NewJSONResponse().Body(commandResponse(res)).Write(w)
}

// handleRefineSuggestions asks the provider about every unconfirmed
// expense. Provider failures on single expenses are counted, not returned.
func (s *Server) handleRefineSuggestions(w http.ResponseWriter, r *http.Request) {
	if !s.suggestions.Enabled() {
		writeError(w, r, "refine", errFeatureDisabled)
		return
	}
	res, err := s.suggestions.Refine(r.Context())
	if err != nil {
		writeError(w, r, "refine", err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}
