package budget

import (
	"strings"

	"github.com/shopspring/decimal"

	"vault/internal/core"
	"vault/internal/schedule"
)

// WealthSummary splits account values by polarity.
type WealthSummary struct {
	Assets      int64
	Liabilities int64
	Liquid      int64
	NetWorth    int64
}

// Wealth totals the accounts. Liquid counts Savings and Cash assets only.
func Wealth(accounts []core.Account) WealthSummary {
	var w WealthSummary
	for _, a := range accounts {
		switch a.Polarity {
		case core.Asset:
			w.Assets += a.Value
			if a.IsLiquid() {
				w.Liquid += a.Value
			}
		case core.Liability:
			w.Liabilities += a.Value
		}
	}
	w.NetWorth = core.NetWorth(accounts)
	return w
}

// CreditUtilization reports balance over limit for every liability that has
// a credit limit.
func CreditUtilization(accounts []core.Account) []CreditLine {
	lines := []CreditLine{}
	for _, a := range accounts {
		if a.Polarity != core.Liability || a.CreditLimit <= 0 {
			continue
		}
		raw := ratio(decimal.NewFromInt(a.Value), decimal.NewFromInt(a.CreditLimit))
		lines = append(lines, CreditLine{
			AccountID:      a.ID,
			Name:           a.Name,
			Balance:        a.Value,
			Limit:          a.CreditLimit,
			Utilization:    percent(clamp(raw)),
			UtilizationRaw: percent(raw),
		})
	}
	return lines
}

// BudgetItems compares each planned item with the period's spend in the same
// category and sub-category.
func BudgetItems(items []core.BudgetItem, expenses []core.Expense, p Period) []BudgetProgress {
	out := make([]BudgetProgress, 0, len(items))
	for _, item := range items {
		var realized int64
		for _, e := range expenses {
			if !countsAsSpend(e, p) || e.Category != item.Category {
				continue
			}
			if item.SubCategory != "" && !strings.EqualFold(e.SubCategory, item.SubCategory) {
				continue
			}
			realized += e.Amount
		}
		raw := ratio(decimal.NewFromInt(realized), decimal.NewFromInt(item.Amount))
		out = append(out, BudgetProgress{
			ID:             item.ID,
			Name:           item.Name,
			Category:       item.Category,
			SubCategory:    item.SubCategory,
			Planned:        item.Amount,
			Realized:       realized,
			Utilization:    percent(clamp(raw)),
			UtilizationRaw: percent(raw),
		})
	}
	return out
}

// TopMerchants returns the n merchants with the largest spend in the period.
// Expenses without a merchant are grouped under "General".
func TopMerchants(expenses []core.Expense, p Period, n int) []MerchantSpend {
	byMerchant := map[string]*MerchantSpend{}
	for _, e := range expenses {
		if !countsAsSpend(e, p) {
			continue
		}
		name := strings.TrimSpace(e.Merchant)
		if name == "" {
			name = "General"
		}
		ms, ok := byMerchant[name]
		if !ok {
			ms = &MerchantSpend{Merchant: name}
			byMerchant[name] = ms
		}
		ms.Amount += e.Amount
		ms.Count++
	}
	out := make([]MerchantSpend, 0, len(byMerchant))
	for _, ms := range byMerchant {
		out = append(out, *ms)
	}
	sortedByAmount(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Trend returns the spend and income of the n months ending with p, oldest
// first. Months without income show the baseline.
func Trend(expenses []core.Expense, incomes []core.Income, p Period, n int, baseline int64) []MonthSpend {
	out := make([]MonthSpend, 0, n)
	for i := n - 1; i >= 0; i-- {
		month := p.Add(-i)
		totals := CategoryTotals(expenses, month)
		var spent int64
		for _, v := range totals {
			spent += v
		}
		var income int64
		for _, in := range incomes {
			if month.Contains(in.Date) {
				income += in.Amount
			}
		}
		if income == 0 {
			income = baseline
		}
		out = append(out, MonthSpend{
			Period: month,
			Needs:  totals[core.Needs],
			Wants:  totals[core.Wants],
			Spent:  spent,
			Income: income,
		})
	}
	return out
}

// PendingCount is the number of expenses still awaiting confirmation.
func PendingCount(expenses []core.Expense) int {
	n := 0
	for _, e := range expenses {
		if !e.IsConfirmed {
			n++
		}
	}
	return n
}

// ObligationsDue lists unsettled obligations falling in the period, plus any
// overdue ones from earlier months.
func ObligationsDue(bills []core.Bill, recurring []core.RecurringItem, p Period, today core.Date) []schedule.Obligation {
	out := []schedule.Obligation{}
	for _, o := range schedule.Obligations(bills, recurring, today) {
		if o.State == schedule.Settled {
			continue
		}
		if p.Contains(o.DueDate) || o.Overdue {
			out = append(out, o)
		}
	}
	return out
}
