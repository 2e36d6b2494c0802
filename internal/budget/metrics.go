// Package budget derives the read-only financial metrics of a month from a
// ledger snapshot. Nothing here mutates its input.
//
// Ratios are computed with decimal arithmetic from unrounded inputs. Currency
// figures are rounded to whole units only when they leave Compute, and
// percentages are rounded to two places.
package budget

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"vault/internal/core"
	"vault/internal/schedule"
)

var hundred = decimal.NewFromInt(100)

// Period is a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the month containing d.
func PeriodOf(d core.Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Add shifts the period by n months.
func (p Period) Add(n int) Period {
	t := time.Date(p.Year, time.Month(p.Month)+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Days is the length of the month.
func (p Period) Days() int {
	return core.DaysInMonth(p.Year, p.Month)
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d core.Date) bool {
	return d.InMonth(p.Year, p.Month)
}

// Runway is how many days liquid assets last at the current daily average.
// Infinite is set when nothing is being spent.
type Runway struct {
	Days     int64 `json:"days"`
	Infinite bool  `json:"infinite"`
}

type CreditLine struct {
	AccountID      string  `json:"accountId"`
	Name           string  `json:"name"`
	Balance        int64   `json:"balance"`
	Limit          int64   `json:"limit"`
	Utilization    float64 `json:"utilization"`
	UtilizationRaw float64 `json:"utilizationRaw"`
}

type BudgetProgress struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Category       core.Category `json:"category"`
	SubCategory    string        `json:"subCategory"`
	Planned        int64         `json:"planned"`
	Realized       int64         `json:"realized"`
	Utilization    float64       `json:"utilization"`
	UtilizationRaw float64       `json:"utilizationRaw"`
}

type MerchantSpend struct {
	Merchant string `json:"merchant"`
	Amount   int64  `json:"amount"`
	Count    int    `json:"count"`
}

type MonthSpend struct {
	Period Period `json:"period"`
	Needs  int64  `json:"needs"`
	Wants  int64  `json:"wants"`
	Spent  int64  `json:"spent"`
	Income int64  `json:"income"`
}

// Metrics is everything the dashboard shows for one month.
type Metrics struct {
	Period Period `json:"period"`

	CategoryTotals         map[core.Category]int64   `json:"categoryTotals"`
	CategoryCap            map[core.Category]int64   `json:"categoryCap"`
	CategoryUtilization    map[core.Category]float64 `json:"categoryUtilization"`
	CategoryUtilizationRaw map[core.Category]float64 `json:"categoryUtilizationRaw"`

	Spent               int64   `json:"spent"`
	MonthlyIncome       int64   `json:"monthlyIncome"`
	IncomeFromBaseline  bool    `json:"incomeFromBaseline"`
	RemainingPercentage float64 `json:"remainingPercentage"`
	SavingsRate         int64   `json:"savingsRate"`

	ElapsedDays       int    `json:"elapsedDays"`
	DailyAverage      int64  `json:"dailyAverage"`
	ProjectedMonthEnd int64  `json:"projectedMonthEnd"`
	BurnDays          Runway `json:"burnDays"`

	NetWorth         int64 `json:"netWorth"`
	TotalAssets      int64 `json:"totalAssets"`
	TotalLiabilities int64 `json:"totalLiabilities"`
	LiquidAssets     int64 `json:"liquidAssets"`

	CreditUtilization []CreditLine          `json:"creditUtilization"`
	BudgetItems       []BudgetProgress      `json:"budgetItems"`
	TopMerchants      []MerchantSpend       `json:"topMerchants"`
	Trend             []MonthSpend          `json:"trend"`
	PendingCount      int                   `json:"pendingCount"`
	ObligationsDue    []schedule.Obligation `json:"obligationsDue"`
}

// Compute derives the metrics of period as seen on today.
func Compute(s core.Snapshot, period Period, today core.Date) Metrics {
	m := Metrics{
		Period:                 period,
		CategoryTotals:         CategoryTotals(s.Expenses, period),
		CategoryCap:            make(map[core.Category]int64, 3),
		CategoryUtilization:    make(map[core.Category]float64, 3),
		CategoryUtilizationRaw: make(map[core.Category]float64, 3),
	}

	var spent int64
	for _, v := range m.CategoryTotals {
		spent += v
	}
	m.Spent = spent

	income, fromBaseline := MonthlyIncome(s.Incomes, period, s.Settings.MonthlyIncome)
	m.MonthlyIncome = income
	m.IncomeFromBaseline = fromBaseline
	incomeDec := decimal.NewFromInt(income)

	for _, c := range core.BudgetCategories {
		ceiling := CategoryCap(income, s.Settings.Split.Of(c))
		m.CategoryCap[c] = whole(ceiling)
		raw := ratio(decimal.NewFromInt(m.CategoryTotals[c]), ceiling)
		m.CategoryUtilizationRaw[c] = percent(raw)
		m.CategoryUtilization[c] = percent(clamp(raw))
	}

	left := decimal.NewFromInt(income - spent)
	remaining := ratio(left, incomeDec)
	m.RemainingPercentage = percent(clamp(remaining))
	m.SavingsRate = clamp(remaining).Mul(hundred).Round(0).IntPart()

	m.ElapsedDays = ElapsedDays(period, today)
	avg := decimal.NewFromInt(spent).Div(decimal.NewFromInt(int64(m.ElapsedDays)))
	m.DailyAverage = whole(avg)
	m.ProjectedMonthEnd = whole(avg.Mul(decimal.NewFromInt(int64(period.Days()))))

	w := Wealth(s.WealthItems)
	m.NetWorth = w.NetWorth
	m.TotalAssets = w.Assets
	m.TotalLiabilities = w.Liabilities
	m.LiquidAssets = w.Liquid
	m.BurnDays = BurnDays(w.Liquid, avg)

	m.CreditUtilization = CreditUtilization(s.WealthItems)
	m.BudgetItems = BudgetItems(s.BudgetItems, s.Expenses, period)
	m.TopMerchants = TopMerchants(s.Expenses, period, 3)
	m.Trend = Trend(s.Expenses, s.Incomes, period, 6, s.Settings.MonthlyIncome)
	m.PendingCount = PendingCount(s.Expenses)
	m.ObligationsDue = ObligationsDue(s.Bills, s.RecurringItems, period, today)
	return m
}

// whole rounds a derived figure to currency units. Inputs are bounded
// amounts, so the result always fits.
func whole(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// countsAsSpend is true for expenses of the period other than transfers.
func countsAsSpend(e core.Expense, p Period) bool {
	return p.Contains(e.Date) && e.SubCategory != core.SubCategoryTransfer
}

// CategoryTotals sums the spend of each category in the period. Transfers
// are excluded.
func CategoryTotals(expenses []core.Expense, p Period) map[core.Category]int64 {
	totals := map[core.Category]int64{
		core.Needs: 0, core.Wants: 0, core.Savings: 0, core.Uncategorized: 0,
	}
	for _, e := range expenses {
		if !countsAsSpend(e, p) {
			continue
		}
		c := e.Category
		if !c.IsValid() {
			c = core.Uncategorized
		}
		totals[c] += e.Amount
	}
	return totals
}

// MonthlyIncome sums the period's income. When there is none it falls back
// to baseline, and then to 1 so it can always be divided by.
func MonthlyIncome(incomes []core.Income, p Period, baseline int64) (int64, bool) {
	var total int64
	for _, i := range incomes {
		if p.Contains(i.Date) {
			total += i.Amount
		}
	}
	if total > 0 {
		return total, false
	}
	if baseline > 0 {
		return baseline, true
	}
	return 1, true
}

// CategoryCap is income × share / 100, never below 1.
func CategoryCap(income int64, share int) decimal.Decimal {
	ceiling := decimal.NewFromInt(income).Mul(decimal.NewFromInt(int64(share))).Div(hundred)
	return decimal.Max(ceiling, decimal.NewFromInt(1))
}

// ElapsedDays is today's day of month for the current month and the full
// month length otherwise.
func ElapsedDays(p Period, today core.Date) int {
	if p.Contains(today) {
		return today.Day()
	}
	return p.Days()
}

// BurnDays divides liquid assets by the daily average.
func BurnDays(liquid int64, dailyAverage decimal.Decimal) Runway {
	if !dailyAverage.IsPositive() {
		return Runway{Infinite: true}
	}
	return Runway{Days: decimal.NewFromInt(liquid).Div(dailyAverage).Round(0).IntPart()}
}

// ratio returns num/den as a fraction, zero when den is not positive.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den)
}

func clamp(fraction decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(fraction, decimal.Zero), decimal.NewFromInt(1))
}

// percent turns a fraction into a percentage rounded to two places.
func percent(fraction decimal.Decimal) float64 {
	return fraction.Mul(hundred).Round(2).InexactFloat64()
}

func sortedByAmount(items []MerchantSpend) {
	slices.SortStableFunc(items, func(a, b MerchantSpend) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Merchant, b.Merchant)
	})
}
