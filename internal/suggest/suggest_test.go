package suggest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"vault/internal/cache"
	"vault/internal/core"
)

type fakeModels struct {
	text  string
	err   error
	calls int
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

type countingProvider struct {
	calls int
	s     Suggestion
	err   error
}

func (c *countingProvider) Name() string { return "counting" }
func (c *countingProvider) Suggest(_ context.Context, req Request) (Suggestion, error) {
	c.calls++
	s := c.s
	s.ExpenseID = req.ExpenseID
	return s, c.err
}

func TestGeminiParsesFencedJSON(t *testing.T) {
	models := &fakeModels{text: "```json\n{\"category\":\"wants\",\"subCategory\":\"Dining\",\"merchant\":\"Swiggy\"}\n```"}
	g := newGemini(models, "")

	s, err := g.Suggest(context.Background(), Request{ExpenseID: "e1", Merchant: "SWIGGY*ORDER", Amount: 320})

	require.NoError(t, err)
	assert.Equal(t, Suggestion{ExpenseID: "e1", Category: core.Wants, SubCategory: "Dining", Merchant: "Swiggy", Provider: "gemini"}, s)
	assert.Equal(t, DefaultModel, g.model)
}

func TestGeminiRejectsUnknownCategory(t *testing.T) {
	g := newGemini(&fakeModels{text: `{"category":"Luxury"}`}, "m")

	_, err := g.Suggest(context.Background(), Request{Merchant: "Yacht"})

	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestHeuristic(t *testing.T) {
	h := Heuristic{Rules: func() []core.Rule {
		return []core.Rule{{ID: "r1", Keyword: "acme", Category: core.Savings, SubCategory: "Payroll SIP"}}
	}}

	tests := []struct {
		name     string
		req      Request
		category core.Category
		sub      string
		err      error
	}{
		{"rule first", Request{Merchant: "ACME Corp", Note: "swiggy"}, core.Savings, "Payroll SIP", nil},
		{"keyword in merchant", Request{Merchant: "Zomato Ltd"}, core.Wants, "Dining", nil},
		{"keyword in note", Request{Merchant: "General", Note: "monthly rent"}, core.Needs, "Rent", nil},
		{"word boundary", Request{Merchant: "Olam Traders"}, "", "", ErrNoSuggestion},
		{"nothing", Request{Merchant: "Mystery"}, "", "", ErrNoSuggestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := h.Suggest(context.Background(), tt.req)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.category, s.Category)
			assert.Equal(t, tt.sub, s.SubCategory)
		})
	}
}

func TestCachedByMerchant(t *testing.T) {
	inner := &countingProvider{s: Suggestion{Category: core.Wants, SubCategory: "Dining", Provider: "counting"}}
	c := NewCached(inner, cache.NewLRUCache[Suggestion](10, time.Hour))
	ctx := context.Background()

	first, err := c.Suggest(ctx, Request{ExpenseID: "e1", Merchant: "Swiggy"})
	require.NoError(t, err)
	second, err := c.Suggest(ctx, Request{ExpenseID: "e2", Merchant: " swiggy "})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "e1", first.ExpenseID)
	assert.Equal(t, "e2", second.ExpenseID)

	_, _ = c.Suggest(ctx, Request{ExpenseID: "e3", Merchant: "General"})
	_, _ = c.Suggest(ctx, Request{ExpenseID: "e4", Merchant: "General"})
	assert.Equal(t, 3, inner.calls, "placeholder merchants are never cached")
}

func TestFallback(t *testing.T) {
	broken := &countingProvider{err: errors.New("quota exceeded")}
	h := Heuristic{}
	ctx := context.Background()

	s, err := Fallback{broken, h}.Suggest(ctx, Request{Merchant: "Netflix"})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", s.Provider)

	_, err = Fallback{broken, h}.Suggest(ctx, Request{Merchant: "Mystery"})
	var perr *core.SuggestionProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "counting", perr.Provider)
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestRequestFor(t *testing.T) {
	r := RequestFor(core.Expense{ID: "x", Amount: 10, Note: "n"})
	assert.Equal(t, "General", r.Merchant)
}
