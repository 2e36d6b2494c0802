package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/suggest"
)

// RefineResult summarises one batch suggestion run.
type RefineResult struct {
	Candidates int      `json:"candidates"`
	Applied    int      `json:"applied"`
	Failed     int      `json:"failed"`
	NoMatch    int      `json:"noMatch"`
	IDs        []string `json:"ids,omitempty"`
}

// SuggestionService asks a provider for categories and applies the answers
// as ordinary ledger commands.
type SuggestionService struct {
	vault       *VaultService
	provider    suggest.Provider
	timeout     time.Duration
	concurrency int
}

func NewSuggestionService(vault *VaultService, provider suggest.Provider, timeout time.Duration, concurrency int) *SuggestionService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SuggestionService{
		vault:       vault,
		provider:    provider,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Enabled reports whether a provider is configured.
func (s *SuggestionService) Enabled() bool {
	return s.provider != nil
}

// Suggest returns a suggestion for one expense without applying it.
func (s *SuggestionService) Suggest(ctx context.Context, expenseID string) (suggest.Suggestion, error) {
	if s.provider == nil {
		return suggest.Suggestion{}, suggest.ErrNoSuggestion
	}
	e, ok := s.vault.Store().Expense(expenseID)
	if !ok {
		return suggest.Suggestion{}, core.NotFound("expense", expenseID)
	}
	return s.ask(ctx, suggest.RequestFor(e))
}

// Apply fetches a suggestion for one expense and applies it. A provider
// failure becomes a notification and leaves the expense unchanged.
func (s *SuggestionService) Apply(ctx context.Context, expenseID string) (ledger.Result, error) {
	sg, err := s.Suggest(ctx, expenseID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, suggest.ErrNoSuggestion) {
			s.vault.Notify(ctx, "AI", "Suggestion Failed", err.Error(), core.SeverityWarning)
		}
		return ledger.Result{}, err
	}
	return s.vault.Execute(ctx, applyCommand(sg))
}

// Refine asks for suggestions for every uncategorized or unconfirmed expense,
// at most concurrency requests at a time, then applies the answers one by
// one. Expenses deleted in the meantime are skipped by ApplySuggestion.
func (s *SuggestionService) Refine(ctx context.Context) (RefineResult, error) {
	if s.provider == nil {
		return RefineResult{}, suggest.ErrNoSuggestion
	}

	var reqs []suggest.Request
	for _, e := range s.vault.Snapshot().Expenses {
		if e.Category == core.Uncategorized || !e.IsConfirmed {
			reqs = append(reqs, suggest.RequestFor(e))
		}
	}
	res := RefineResult{Candidates: len(reqs)}
	if len(reqs) == 0 {
		return res, nil
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	found := make([]*suggest.Suggestion, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			sg, err := s.ask(gctx, req)
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, suggest.ErrNoSuggestion) {
					res.NoMatch++
				} else {
					failures = append(failures, err)
				}
				return nil
			}
			found[i] = &sg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, sg := range found {
		if sg == nil {
			continue
		}
		out, err := s.vault.Execute(ctx, applyCommand(*sg))
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if out.Committed {
			res.Applied++
			res.IDs = append(res.IDs, sg.ExpenseID)
		}
	}

	res.Failed = len(failures)
	if res.Failed > 0 {
		s.vault.Notify(ctx, "AI", "Suggestions Incomplete",
			fmt.Sprintf("%d of %d suggestions failed: %v", res.Failed, res.Candidates, failures[0]),
			core.SeverityWarning)
	}
	slog.InfoContext(ctx, "Suggestion refine complete",
		"provider", s.provider.Name(),
		"candidates", res.Candidates,
		"applied", res.Applied,
		"no_match", res.NoMatch,
		"failed", res.Failed)
	return res, nil
}

func (s *SuggestionService) ask(ctx context.Context, req suggest.Request) (suggest.Suggestion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	sg, err := s.provider.Suggest(ctx, req)
	if err != nil {
		var perr *core.SuggestionProviderError
		if errors.As(err, &perr) || errors.Is(err, suggest.ErrNoSuggestion) {
			return suggest.Suggestion{}, err
		}
		return suggest.Suggestion{}, &core.SuggestionProviderError{Provider: s.provider.Name(), Err: err}
	}
	sg.ExpenseID = req.ExpenseID
	return sg, nil
}

func applyCommand(sg suggest.Suggestion) ledger.ApplySuggestion {
	return ledger.ApplySuggestion{
		ExpenseID:   sg.ExpenseID,
		Category:    sg.Category,
		SubCategory: sg.SubCategory,
		Merchant:    sg.Merchant,
	}
}
