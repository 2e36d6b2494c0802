// Package reconcile types loosely structured import candidates, flags
// duplicates against the batch and the ledger, and annotates rule matches.
// It never drops an entry: callers decide what to commit.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vault/internal/core"
)

// EntryType says which entity a candidate becomes.
type EntryType string

const (
	EntryExpense EntryType = "Expense"
	EntryIncome  EntryType = "Income"
	EntryAccount EntryType = "Account"
)

// Candidate is one record as produced by a text or statement parser.
// Expected keys: entryType, amount, date, merchant, note, rawContent,
// category, subCategory, sourceAccountId, targetAccountId, incomeType,
// wealthType, wealthCategory, name, value.
type Candidate map[string]any

func (c Candidate) str(keys ...string) string {
	for _, k := range keys {
		switch v := c[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case fmt.Stringer:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// amount reads a currency value that may arrive as a number or as text.
// ok is false when the key is absent.
func (c Candidate) amount(key string) (int64, bool, error) {
	raw, present := c[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		n, err := core.RoundAmount(v)
		return n, true, err
	case float32:
		n, err := core.RoundAmount(float64(v))
		return n, true, err
	case int:
		return int64(v), true, core.ValidateBalance(int64(v))
	case int64:
		return v, true, core.ValidateBalance(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return 0, true, core.ErrInvalidAmount
		}
		n, err := core.RoundDecimal(d)
		return n, true, err
	case string:
		n, err := core.ParseAmount(v)
		return n, true, err
	}
	return 0, true, core.ErrInvalidAmount
}

func (c Candidate) entryType() EntryType {
	switch strings.ToLower(c.str("entryType")) {
	case "income":
		return EntryIncome
	case "account":
		return EntryAccount
	}
	return EntryExpense
}

func (c Candidate) date(required bool) (core.Date, error) {
	s := c.str("date")
	if s == "" {
		if required {
			return core.Date{}, core.Invalid("date", core.ErrMissingDate)
		}
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.Invalid("date", err)
	}
	return d, nil
}

func (c Candidate) positiveAmount() (int64, error) {
	n, ok, err := c.amount("amount")
	if !ok {
		return 0, core.Invalid("amount", core.ErrMissingField)
	}
	if err != nil {
		return 0, core.Invalid("amount", err)
	}
	if err := core.ValidateAmount(n); err != nil {
		return 0, core.Invalid("amount", err)
	}
	return n, nil
}

func (c Candidate) toExpense() (core.Expense, error) {
	amount, err := c.positiveAmount()
	if err != nil {
		return core.Expense{}, err
	}
	date, err := c.date(true)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Amount:          amount,
		Date:            date,
		Category:        core.Uncategorized,
		SubCategory:     c.str("subCategory"),
		Merchant:        c.str("merchant"),
		Note:            c.str("rawContent", "note"),
		SourceAccountID: c.str("sourceAccountId", "targetAccountId"),
		IsConfirmed:     true,
	}
	return e, e.Validate()
}

func (c Candidate) toIncome() (core.Income, error) {
	amount, err := c.positiveAmount()
	if err != nil {
		return core.Income{}, err
	}
	date, err := c.date(true)
	if err != nil {
		return core.Income{}, err
	}
	i := core.Income{
		Amount:          amount,
		Date:            date,
		Type:            core.ParseIncomeType(c.str("incomeType", "type")),
		Note:            c.str("merchant", "note", "rawContent"),
		TargetAccountID: c.str("targetAccountId"),
	}
	return i, i.Validate()
}

func (c Candidate) toAccount() (core.Account, error) {
	value, _, err := c.amount("value")
	if err != nil {
		return core.Account{}, core.Invalid("value", err)
	}
	if value == 0 {
		if v, ok, err := c.amount("amount"); ok && err == nil {
			value = v
		}
	}
	date, err := c.date(false)
	if err != nil {
		return core.Account{}, err
	}
	polarity := core.Polarity(c.str("wealthType"))
	if strings.EqualFold(string(polarity), string(core.Liability)) {
		polarity = core.Liability
	} else if strings.EqualFold(string(polarity), string(core.Asset)) || polarity == "" {
		polarity = core.Asset
	}
	category := core.ParseAccountCategory(c.str("wealthCategory"))
	name := c.str("name", "merchant")
	a := core.Account{
		Polarity: polarity,
		Category: category,
		Name:     name,
		Alias:    name,
		Value:    value,
		Date:     date,
	}
	return a, a.Validate()
}
