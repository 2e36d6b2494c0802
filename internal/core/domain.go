package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	Needs         Category = "Needs"
	Wants         Category = "Wants"
	Savings       Category = "Savings"
	Uncategorized Category = "Uncategorized"
)

const (
	FrequencyNone Frequency = "None"
	Weekly        Frequency = "Weekly"
	Monthly       Frequency = "Monthly"
	Yearly        Frequency = "Yearly"
)

const (
	Asset     Polarity = "Asset"
	Liability Polarity = "Liability"
)

const (
	Salary      IncomeType = "Salary"
	Freelance   IncomeType = "Freelance"
	Investment  IncomeType = "Investment"
	Gift        IncomeType = "Gift"
	OtherIncome IncomeType = "Other"
)

const (
	AccountSavings      AccountCategory = "Savings"
	AccountPension      AccountCategory = "Pension"
	AccountGold         AccountCategory = "Gold"
	AccountInvestment   AccountCategory = "Investment"
	AccountCash         AccountCategory = "Cash"
	AccountCreditCard   AccountCategory = "CreditCard"
	AccountPersonalLoan AccountCategory = "PersonalLoan"
	AccountHomeLoan     AccountCategory = "HomeLoan"
	AccountOverdraft    AccountCategory = "Overdraft"
	AccountGoldLoan     AccountCategory = "GoldLoan"
	AccountOther        AccountCategory = "Other"
)

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Entity is anything the ledger stores by id.
type Entity interface {
	EntityID() string
}

// Reserved sub-categories.
const (
	SubCategoryTransfer    = "Transfer"
	SubCategoryBillPayment = "Bill Payment"
)

const maxTextLength = 200

type (
	Category        string
	Frequency       string
	Polarity        string
	IncomeType      string
	AccountCategory string
	Severity        string

	Expense struct {
		ID                  string   `json:"id"`
		Amount              int64    `json:"amount"`
		Date                Date     `json:"date"`
		Category            Category `json:"category"`
		SubCategory         string   `json:"subCategory"`
		Merchant            string   `json:"merchant"`
		Note                string   `json:"note"`
		SourceAccountID     string   `json:"sourceAccountId,omitempty"`
		TransferToAccountID string   `json:"transferToAccountId,omitempty"`
		IsConfirmed         bool     `json:"isConfirmed"`
		IsAIUpgraded        bool     `json:"isAIUpgraded"`
		RuleID              string   `json:"ruleId,omitempty"`
		BillID              string   `json:"billId,omitempty"`
		IsMock              bool     `json:"isMock,omitempty"`
	}

	Income struct {
		ID              string     `json:"id"`
		Amount          int64      `json:"amount"`
		Date            Date       `json:"date"`
		Type            IncomeType `json:"type"`
		Note            string     `json:"note"`
		TargetAccountID string     `json:"targetAccountId,omitempty"`
		IsMock          bool       `json:"isMock,omitempty"`
	}

	// Account is a balance-bearing instrument. Value is the signed running
	// balance and only changes through balance events.
	Account struct {
		ID          string          `json:"id"`
		Polarity    Polarity        `json:"type"`
		Category    AccountCategory `json:"category"`
		Group       string          `json:"group"`
		Name        string          `json:"name"`
		Alias       string          `json:"alias"`
		Value       int64           `json:"value"`
		CreditLimit int64           `json:"creditLimit,omitempty"`
		Date        Date            `json:"date,omitzero"`
		IsMock      bool            `json:"isMock,omitempty"`
	}

	BudgetItem struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Amount      int64    `json:"amount"`
		Category    Category `json:"category"`
		SubCategory string   `json:"subCategory"`
		IsMock      bool     `json:"isMock,omitempty"`
	}

	Bill struct {
		ID          string    `json:"id"`
		Merchant    string    `json:"merchant"`
		Amount      int64     `json:"amount"`
		DueDate     Date      `json:"dueDate"`
		Category    Category  `json:"category"`
		Frequency   Frequency `json:"frequency"`
		IsPaid      bool      `json:"isPaid"`
		Note        string    `json:"note,omitempty"`
		RecurringID string    `json:"recurringId,omitempty"`
		IsMock      bool      `json:"isMock,omitempty"`
	}

	RecurringItem struct {
		ID          string    `json:"id"`
		Amount      int64     `json:"amount"`
		Category    Category  `json:"category"`
		SubCategory string    `json:"subCategory"`
		Merchant    string    `json:"merchant"`
		Note        string    `json:"note"`
		Frequency   Frequency `json:"frequency"`
		NextDueDate Date      `json:"nextDueDate"`
		IsMock      bool      `json:"isMock,omitempty"`
	}

	// Rule maps a keyword to a category. Rules are evaluated in creation order.
	Rule struct {
		ID          string   `json:"id"`
		Keyword     string   `json:"keyword"`
		Category    Category `json:"category"`
		SubCategory string   `json:"subCategory"`
	}

	Notification struct {
		ID        string    `json:"id"`
		Kind      string    `json:"type"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Severity  Severity  `json:"severity"`
		Timestamp time.Time `json:"timestamp"`
		Read      bool      `json:"read"`
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be a positive whole number")
	ErrMissingDate      = errors.New("date is required")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidPolarity  = errors.New("invalid account polarity")
	ErrInvalidSplit     = errors.New("split must be three percentages summing to 100")
	ErrMissingField     = errors.New("required field missing")
	ErrTextTooLong      = errors.New("text too long (max 200 characters)")
	ErrSameAccount      = errors.New("transfer source and destination must differ")
	ErrAlreadyPaid      = errors.New("bill already settled")
	ErrNotFound         = errors.New("entity not found")
	ErrSyncConflict     = errors.New("remote snapshot conflicts with unsynced local edits")
)

var sentinelMerchants = map[string]struct{}{
	"General":  {},
	"Transfer": {},
	"Unknown":  {},
}

// BudgetCategories are the categories that receive a share of the split.
var BudgetCategories = []Category{Needs, Wants, Savings}

// IsSentinelMerchant reports whether a merchant label is a placeholder that
// must never drive propagation.
func IsSentinelMerchant(merchant string) bool {
	_, ok := sentinelMerchants[merchant]
	return ok
}

func (c Category) IsValid() bool {
	switch c {
	case Needs, Wants, Savings, Uncategorized:
		return true
	}
	return false
}

// ParseCategory matches case-insensitively; unknown input maps to Uncategorized.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range []Category{Needs, Wants, Savings, Uncategorized} {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return Uncategorized, false
}

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyNone, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// IsRecurring is false for the empty and None frequencies.
func (f Frequency) IsRecurring() bool {
	return f != "" && f != FrequencyNone
}

func ParseFrequency(s string) (Frequency, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FrequencyNone, true
	}
	for _, f := range []Frequency{FrequencyNone, Weekly, Monthly, Yearly} {
		if strings.EqualFold(s, string(f)) {
			return f, true
		}
	}
	return FrequencyNone, false
}

func (p Polarity) IsValid() bool {
	return p == Asset || p == Liability
}

var accountCategories = []AccountCategory{
	AccountSavings, AccountPension, AccountGold, AccountInvestment, AccountCash,
	AccountCreditCard, AccountPersonalLoan, AccountHomeLoan, AccountOverdraft,
	AccountGoldLoan, AccountOther,
}

func (c AccountCategory) IsValid() bool {
	return slices.Contains(accountCategories, c)
}

// ParseAccountCategory matches case-insensitively; unknown input maps to
// AccountOther.
func ParseAccountCategory(s string) AccountCategory {
	for _, c := range accountCategories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c
		}
	}
	return AccountOther
}

func ParseIncomeType(s string) IncomeType {
	for _, t := range []IncomeType{Salary, Freelance, Investment, Gift, OtherIncome} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t
		}
	}
	return OtherIncome
}

// IsLiquid reports whether an account counts toward runway.
func (a Account) IsLiquid() bool {
	return a.Polarity == Asset && (a.Category == AccountSavings || a.Category == AccountCash)
}

func (e Expense) EntityID() string       { return e.ID }
func (i Income) EntityID() string        { return i.ID }
func (a Account) EntityID() string       { return a.ID }
func (b BudgetItem) EntityID() string    { return b.ID }
func (b Bill) EntityID() string          { return b.ID }
func (r RecurringItem) EntityID() string { return r.ID }
func (r Rule) EntityID() string          { return r.ID }
func (n Notification) EntityID() string  { return n.ID }

// IsTransfer reports whether the expense is the source leg of a transfer.
func (e Expense) IsTransfer() bool {
	return e.TransferToAccountID != "" || e.SubCategory == SubCategoryTransfer
}

// Label is the text used for matching: the merchant, or the note when the
// merchant is blank.
func (e Expense) Label() string {
	if strings.TrimSpace(e.Merchant) != "" {
		return e.Merchant
	}
	return e.Note
}

func (e Expense) Validate() error {
	if err := ValidateAmount(e.Amount); err != nil {
		return Invalid("amount", err)
	}
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if !e.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	if len(e.Merchant) > maxTextLength {
		return Invalid("merchant", ErrTextTooLong)
	}
	if len(e.Note) > maxTextLength {
		return Invalid("note", ErrTextTooLong)
	}
	return nil
}

func (i Income) Validate() error {
	if err := ValidateAmount(i.Amount); err != nil {
		return Invalid("amount", err)
	}
	if err := i.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(i.Note) > maxTextLength {
		return Invalid("note", ErrTextTooLong)
	}
	return nil
}

func (a Account) Validate() error {
	if !a.Polarity.IsValid() {
		return Invalid("type", ErrInvalidPolarity)
	}
	if strings.TrimSpace(a.Name) == "" {
		return Invalid("name", ErrMissingField)
	}
	if !a.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	if err := ValidateBalance(a.Value); err != nil {
		return Invalid("value", err)
	}
	if a.CreditLimit < 0 || a.CreditLimit > MaxAmount {
		return Invalid("creditLimit", ErrInvalidAmount)
	}
	return nil
}

func (b BudgetItem) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return Invalid("name", ErrMissingField)
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return Invalid("amount", err)
	}
	if !b.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Merchant) == "" {
		return Invalid("merchant", ErrMissingField)
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return Invalid("amount", err)
	}
	if err := b.DueDate.Validate(); err != nil {
		return Invalid("dueDate", err)
	}
	if !b.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	if !b.Frequency.IsValid() {
		return Invalid("frequency", ErrInvalidFrequency)
	}
	return nil
}

func (r RecurringItem) Validate() error {
	if err := ValidateAmount(r.Amount); err != nil {
		return Invalid("amount", err)
	}
	if !r.Frequency.IsRecurring() || !r.Frequency.IsValid() {
		return Invalid("frequency", ErrInvalidFrequency)
	}
	if err := r.NextDueDate.Validate(); err != nil {
		return Invalid("nextDueDate", err)
	}
	if !r.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	return nil
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return Invalid("keyword", ErrMissingField)
	}
	if !r.Category.IsValid() {
		return Invalid("category", ErrInvalidCategory)
	}
	return nil
}
