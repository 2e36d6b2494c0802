// Package suggest proposes a category for an expense. Providers range from
// a Gemini model to a local keyword table; Fallback and Cached compose them.
package suggest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vault/internal/cache"
	"vault/internal/core"
)

// ErrNoSuggestion means the provider had nothing confident to offer.
var ErrNoSuggestion = errors.New("no suggestion")

// Request describes the expense to categorize.
type Request struct {
	ExpenseID string `json:"id"`
	Amount    int64  `json:"amount"`
	Merchant  string `json:"merchant"`
	Note      string `json:"note"`
}

// Suggestion is a proposed categorization for one expense.
type Suggestion struct {
	ExpenseID   string        `json:"id"`
	Category    core.Category `json:"category"`
	SubCategory string        `json:"subCategory"`
	Merchant    string        `json:"merchant"`
	Provider    string        `json:"provider"`
}

type Provider interface {
	Name() string
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// RequestFor builds a request from a stored expense. A missing merchant is
// sent as "General".
func RequestFor(e core.Expense) Request {
	merchant := e.Merchant
	if strings.TrimSpace(merchant) == "" {
		merchant = "General"
	}
	return Request{ExpenseID: e.ID, Amount: e.Amount, Merchant: merchant, Note: e.Note}
}

// cacheKey is the normalised merchant, empty when the merchant is a
// placeholder and must not be cached.
func cacheKey(merchant string) string {
	m := strings.TrimSpace(merchant)
	if m == "" || core.IsSentinelMerchant(m) {
		return ""
	}
	return strings.ToLower(m)
}

// Cached remembers suggestions per merchant.
type Cached struct {
	next  Provider
	store cache.Cache[Suggestion]
}

func NewCached(next Provider, store cache.Cache[Suggestion]) *Cached {
	return &Cached{next: next, store: store}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	key := cacheKey(req.Merchant)
	if key != "" {
		if s, ok := c.store.Get(key); ok {
			s.ExpenseID = req.ExpenseID
			return s, nil
		}
	}
	s, err := c.next.Suggest(ctx, req)
	if err != nil {
		return Suggestion{}, err
	}
	if key != "" {
		c.store.Set(key, s)
	}
	return s, nil
}

// Fallback asks each provider in turn and returns the first suggestion.
// When all fail the error is a *core.SuggestionProviderError naming the
// first provider.
type Fallback []Provider

func (f Fallback) Name() string {
	if len(f) == 0 {
		return "none"
	}
	return f[0].Name()
}

func (f Fallback) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	var errs []error
	for _, p := range f {
		s, err := p.Suggest(ctx, req)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			errs = append(errs, err)
			break
		}
		if !errors.Is(err, ErrNoSuggestion) {
			slog.WarnContext(ctx, "Suggestion provider failed, trying next",
				"provider", p.Name(), "expense_id", req.ExpenseID, "error", err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, ErrNoSuggestion)
	}
	return Suggestion{}, &core.SuggestionProviderError{Provider: f.Name(), Err: errors.Join(errs...)}
}
