// Package http serves the vault's JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	vlog "vault/internal/log"
	"vault/internal/middleware/ratelimit"
	"vault/internal/middleware/security"
	"vault/internal/middleware/trace"
	"vault/internal/schedule"
	"vault/internal/services"
)

// Deps are the services behind the API. Sync and Suggestions may be
// disabled but must not be nil.
type Deps struct {
	Vault       *services.VaultService
	Sync        *services.SyncService
	Suggestions *services.SuggestionService
	Imports     *services.ImportService

	RateLimitPerMinute int
	MaxCatchUp         int
	Logger             *vlog.Logger

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

type Server struct {
	http.Server

	vault       *services.VaultService
	sync        *services.SyncService
	suggestions *services.SuggestionService
	imports     *services.ImportService

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	logger      *vlog.StructuredLogger

	maxCatchUp int
	started    time.Time
	now        func() time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to stop it and its background goroutines.
func NewServer(addr string, deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = vlog.New(vlog.DefaultConfig()).WithComponent(vlog.ComponentHTTP)
	}
	maxCatchUp := deps.MaxCatchUp
	if maxCatchUp <= 0 {
		maxCatchUp = schedule.DefaultMaxCatchUp
	}

	s := &Server{
		vault:       deps.Vault,
		sync:        deps.Sync,
		suggestions: deps.Suggestions,
		imports:     deps.Imports,
		detector:    security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		logger:      vlog.NewStructuredLogger(logger),
		maxCatchUp:  maxCatchUp,
		started:     now(),
		now:         now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	// Health checks bypass rate limiting.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", s.rateLimiter.Middleware(s.detector.ExtractClientIP, handleRateLimited)(mux))

	var h http.Handler = root
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = vlog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// Generic reads over every collection.
	mux.HandleFunc("GET /api/v1/{kind}", s.handleList)
	mux.HandleFunc("GET /api/v1/{kind}/{id}", s.handleGet)

	mux.HandleFunc("POST /api/v1/expenses", s.handleCreateExpense)
	mux.HandleFunc("PATCH /api/v1/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/v1/transfers", s.handleTransfer)

	mux.HandleFunc("POST /api/v1/incomes", s.handleCreateIncome)
	mux.HandleFunc("PATCH /api/v1/incomes/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/v1/incomes/{id}", s.handleDeleteIncome)

	mux.HandleFunc("POST /api/v1/wealthItems", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/v1/wealthItems/{id}", s.handleUpdateAccount)
	mux.HandleFunc("POST /api/v1/wealthItems/{id}/adjust", s.handleAdjustAccount)
	mux.HandleFunc("DELETE /api/v1/wealthItems/{id}", s.handleDeleteAccount)

	mux.HandleFunc("POST /api/v1/budgetItems", s.handleCreateBudgetItem)
	mux.HandleFunc("PUT /api/v1/budgetItems/{id}", s.handleUpdateBudgetItem)
	mux.HandleFunc("DELETE /api/v1/budgetItems/{id}", s.handleDeleteBudgetItem)

	mux.HandleFunc("POST /api/v1/bills", s.handleCreateBill)
	mux.HandleFunc("PUT /api/v1/bills/{id}", s.handleUpdateBill)
	mux.HandleFunc("DELETE /api/v1/bills/{id}", s.handleDeleteBill)
	mux.HandleFunc("POST /api/v1/bills/{id}/pay", s.handlePayBill)

	mux.HandleFunc("POST /api/v1/recurringItems", s.handleCreateRecurring)
	mux.HandleFunc("DELETE /api/v1/recurringItems/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/v1/recurringItems/roll-forward", s.handleRollForward)
	mux.HandleFunc("GET /api/v1/obligations", s.handleObligations)

	mux.HandleFunc("POST /api/v1/rules", s.handleCreateRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/v1/rules/refine", s.handleRefineRules)

	mux.HandleFunc("POST /api/v1/notifications/read", s.handleMarkNotificationsRead)

	mux.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/v1/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/v1/metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/v1/imports", s.handleStageImport)
	mux.HandleFunc("POST /api/v1/imports/{token}/commit", s.handleCommitImport)

	mux.HandleFunc("GET /api/v1/snapshot", s.handleExportSnapshot)
	mux.HandleFunc("PUT /api/v1/snapshot", s.handleImportSnapshot)

	mux.HandleFunc("POST /api/v1/sync/push", s.handleSyncPush)
	mux.HandleFunc("POST /api/v1/sync/pull", s.handleSyncPull)
	mux.HandleFunc("GET /api/v1/sync/history", s.handleSyncHistory)

	mux.HandleFunc("GET /api/v1/suggestions/{id}", s.handleSuggest)
	mux.HandleFunc("POST /api/v1/suggestions/{id}/apply", s.handleApplySuggestion)
	mux.HandleFunc("POST /api/v1/suggestions/refine", s.handleRefineSuggestions)

	mux.HandleFunc("POST /api/v1/admin/purge-mock", s.handlePurgeMock)
	mux.HandleFunc("POST /api/v1/admin/purge-all", s.handlePurgeAll)
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
