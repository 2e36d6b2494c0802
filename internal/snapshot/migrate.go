package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vault/internal/core"
)

// migration upgrades a document from the version at its index to the next.
type migration func(*Document) error

var migrations = []migration{
	migrateV0,
}

// Migrate brings doc to the current schema version. Documents from a newer
// build are refused. Every version gets missing record ids and expense
// isConfirmed flags backfilled, and account categories normalised.
func Migrate(doc *Document) error {
	if doc.SchemaVersion > core.SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (this build reads up to %d)", doc.SchemaVersion, core.SchemaVersion)
	}
	if doc.SchemaVersion < 0 {
		return fmt.Errorf("invalid schema version %d", doc.SchemaVersion)
	}
	for doc.SchemaVersion < core.SchemaVersion {
		if err := migrations[doc.SchemaVersion](doc); err != nil {
			return fmt.Errorf("migrate from version %d: %w", doc.SchemaVersion, err)
		}
		doc.SchemaVersion++
	}
	for _, key := range collections {
		for _, rec := range doc.Collections[key] {
			if s, _ := rec["id"].(string); strings.TrimSpace(s) == "" {
				rec["id"] = uuid.NewString()
			}
		}
	}
	for _, rec := range doc.Collections["expenses"] {
		if _, ok := rec["isConfirmed"].(bool); !ok {
			rec["isConfirmed"] = true
		}
	}
	for _, rec := range doc.Collections["wealthItems"] {
		c, _ := rec["category"].(string)
		rec["category"] = string(core.ParseAccountCategory(c))
	}
	return nil
}

var amountFields = map[string][]string{
	"expenses":       {"amount"},
	"incomes":        {"amount"},
	"wealthItems":    {"value", "creditLimit"},
	"bills":          {"amount"},
	"budgetItems":    {"amount"},
	"recurringItems": {"amount"},
}

// migrateV0 handles documents written before versioning: fractional or
// textual amounts and free-form enum values.
func migrateV0(doc *Document) error {
	for key, fields := range amountFields {
		for i, rec := range doc.Collections[key] {
			for _, f := range fields {
				v, ok := rec[f]
				if !ok {
					continue
				}
				n, err := wholeAmount(v)
				if err != nil {
					return fmt.Errorf("%s[%d].%s: %w", key, i, f, err)
				}
				rec[f] = n
			}
		}
	}

	for _, rec := range doc.Collections["expenses"] {
		rec["category"] = category(rec["category"], core.Uncategorized)
	}
	for _, rec := range doc.Collections["incomes"] {
		s, _ := rec["type"].(string)
		rec["type"] = string(core.ParseIncomeType(s))
	}
	for _, rec := range doc.Collections["wealthItems"] {
		s, _ := rec["type"].(string)
		if strings.EqualFold(strings.TrimSpace(s), string(core.Liability)) {
			rec["type"] = string(core.Liability)
		} else {
			rec["type"] = string(core.Asset)
		}
	}
	for _, rec := range doc.Collections["bills"] {
		rec["category"] = category(rec["category"], core.Needs)
		rec["frequency"] = frequency(rec["frequency"])
	}
	for _, rec := range doc.Collections["recurringItems"] {
		rec["category"] = category(rec["category"], core.Uncategorized)
		rec["frequency"] = frequency(rec["frequency"])
	}
	for _, key := range []string{"budgetItems", "rules"} {
		for _, rec := range doc.Collections[key] {
			rec["category"] = category(rec["category"], core.Uncategorized)
		}
	}
	for _, rec := range doc.Collections["notifications"] {
		if s, _ := rec["severity"].(string); s == "" {
			rec["severity"] = string(core.SeverityInfo)
		}
	}

	if doc.Settings != nil {
		if v, ok := doc.Settings["monthlyIncome"]; ok {
			n, err := wholeAmount(v)
			if err != nil {
				return fmt.Errorf("settings.monthlyIncome: %w", err)
			}
			doc.Settings["monthlyIncome"] = n
		}
		if split, ok := doc.Settings["split"].(map[string]any); ok {
			for k, v := range split {
				n, err := wholeAmount(v)
				if err != nil {
					return fmt.Errorf("settings.split.%s: %w", k, err)
				}
				split[k] = n
			}
		}
	}
	return nil
}

// wholeAmount rounds a number or numeric string to an integer. Values that
// cannot be read become zero and fail validation later; readable values
// beyond core.MaxAmount are an error.
func wholeAmount(v any) (int64, error) {
	var d decimal.Decimal
	switch n := v.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return 0, nil
		}
		d = parsed
	case float64:
		return core.RoundAmount(n)
	case string:
		if a, err := core.ParseAmount(n); err == nil {
			return a, nil
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0, nil
		}
		d = parsed
	default:
		return 0, nil
	}
	return core.RoundDecimal(d)
}

func category(v any, fallback core.Category) string {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return string(fallback)
	}
	c, _ := core.ParseCategory(s)
	return string(c)
}

func frequency(v any) string {
	s, _ := v.(string)
	f, _ := core.ParseFrequency(s)
	return string(f)
}
