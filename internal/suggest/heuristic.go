package suggest

import (
	"context"
	"strings"

	"vault/internal/core"
	"vault/internal/rules"
)

type keyword struct {
	words       []string
	category    core.Category
	subCategory string
}

// table is checked in order; the first keyword found in the merchant or
// note wins.
var table = []keyword{
	{[]string{"rent", "landlord", "maintenance"}, core.Needs, "Rent"},
	{[]string{"electricity", "power", "water bill", "gas bill", "broadband", "internet"}, core.Needs, "Utilities"},
	{[]string{"grocer", "supermarket", "bigbasket", "blinkit", "dmart", "fresh"}, core.Needs, "Groceries"},
	{[]string{"pharmacy", "hospital", "clinic", "medical", "apollo"}, core.Needs, "Health"},
	{[]string{"fuel", "petrol", "uber", "ola", "metro", "rapido"}, core.Needs, "Transport"},
	{[]string{"insurance", "premium"}, core.Needs, "Insurance"},
	{[]string{"swiggy", "zomato", "restaurant", "cafe", "starbucks", "pizza"}, core.Wants, "Dining"},
	{[]string{"netflix", "spotify", "prime", "hotstar", "cinema", "pvr"}, core.Wants, "Entertainment"},
	{[]string{"amazon", "flipkart", "myntra", "shopping"}, core.Wants, "Shopping"},
	{[]string{"flight", "hotel", "airbnb", "travel"}, core.Wants, "Travel"},
	{[]string{"sip", "mutual fund", "zerodha", "groww", "deposit", "ppf"}, core.Savings, "Investments"},
}

// Heuristic matches the user's rules first, then a built-in keyword table.
// It never calls out of process.
type Heuristic struct {
	Rules func() []core.Rule
}

func (h Heuristic) Name() string { return "heuristic" }

func (h Heuristic) Suggest(_ context.Context, req Request) (Suggestion, error) {
	text := req.Merchant + " " + req.Note
	if h.Rules != nil {
		if r, ok := rules.Match(text, h.Rules()); ok {
			return Suggestion{
				ExpenseID:   req.ExpenseID,
				Category:    r.Category,
				SubCategory: r.SubCategory,
				Merchant:    req.Merchant,
				Provider:    h.Name(),
			}, nil
		}
	}

	lower := strings.ToLower(text)
	for _, k := range table {
		for _, w := range k.words {
			if containsWord(lower, w) {
				return Suggestion{
					ExpenseID:   req.ExpenseID,
					Category:    k.category,
					SubCategory: k.subCategory,
					Merchant:    req.Merchant,
					Provider:    h.Name(),
				}, nil
			}
		}
	}
	return Suggestion{}, ErrNoSuggestion
}

// containsWord reports whether w occurs in s on word boundaries.
func containsWord(s, w string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], w)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(w)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
