package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vault/internal/core"
)

func TestMatch(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "r1", Keyword: "swiggy", Category: core.Wants, SubCategory: "Dining"},
		{ID: "r2", Keyword: "  ", Category: core.Needs},
		{ID: "r3", Keyword: "SWIG", Category: core.Needs, SubCategory: "Groceries"},
		{ID: "r4", Keyword: "uber", Category: core.Needs, SubCategory: "Transport"},
	}

	tests := []struct {
		name   string
		text   string
		wantID string
		found  bool
	}{
		{name: "case insensitive substring", text: "Paid SWIGGY order 123", wantID: "r1", found: true},
		{name: "first rule wins", text: "swig", wantID: "r3", found: true},
		{name: "later rule", text: "Uber trip", wantID: "r4", found: true},
		{name: "no match", text: "Reliance Fresh", found: false},
		{name: "empty text", text: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.text, ruleset)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMatchOrderIsStable(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "a", Keyword: "amazon", Category: core.Wants},
		{ID: "b", Keyword: "amazon prime", Category: core.Needs},
	}
	for range 5 {
		got, ok := Match("Amazon Prime renewal", ruleset)
		assert.True(t, ok)
		assert.Equal(t, "a", got.ID)
	}
}

func TestApply(t *testing.T) {
	e := core.Expense{Merchant: "Swiggy", Category: core.Uncategorized}
	Apply(&e, core.Rule{ID: "r1", Category: core.Wants, SubCategory: "Dining"})

	assert.Equal(t, core.Wants, e.Category)
	assert.Equal(t, "Dining", e.SubCategory)
	assert.Equal(t, "r1", e.RuleID)
}

func TestMatchExpenseUsesNote(t *testing.T) {
	ruleset := []core.Rule{{ID: "rent", Keyword: "rent", Category: core.Needs, SubCategory: "Housing"}}

	got, ok := MatchExpense(core.Expense{Note: "October rent"}, ruleset)
	assert.True(t, ok)
	assert.Equal(t, "rent", got.ID)
}
