// Package rules matches expense text against keyword rules. Matching is only
// run by explicit flows (bulk staging, refine), never on every entry.
package rules

import (
	"strings"

	"vault/internal/core"
)

// Match returns the first rule, in the order given, whose keyword occurs in
// text ignoring case. Blank keywords never match.
func Match(text string, rules []core.Rule) (core.Rule, bool) {
	haystack := strings.ToLower(text)
	for _, r := range rules {
		keyword := strings.ToLower(strings.TrimSpace(r.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			return r, true
		}
	}
	return core.Rule{}, false
}

// Apply stamps the rule's category on the expense and records the rule id.
func Apply(e *core.Expense, r core.Rule) {
	e.Category = r.Category
	e.SubCategory = r.SubCategory
	e.RuleID = r.ID
}

// MatchExpense matches against the merchant and the note together.
func MatchExpense(e core.Expense, rules []core.Rule) (core.Rule, bool) {
	return Match(e.Merchant+" "+e.Note, rules)
}
