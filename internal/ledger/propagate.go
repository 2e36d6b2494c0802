package ledger

import "vault/internal/core"

// Propagate copies a category decision made on one expense to every other
// expense with exactly the same merchant. Matched expenses become confirmed
// and upgraded. Placeholder merchants never propagate. It returns the number
// of expenses changed, so repeating a call reports zero.
func Propagate(tx *Tx, editedID string, category core.Category, subCategory, merchant string) int {
	if merchant == "" || core.IsSentinelMerchant(merchant) {
		return 0
	}
	changed := 0
	for i := range tx.state.Expenses {
		e := &tx.state.Expenses[i]
		if e.ID == editedID || e.Merchant != merchant {
			continue
		}
		if e.Category == category && e.SubCategory == subCategory && e.IsConfirmed && e.IsAIUpgraded {
			continue
		}
		e.Category = category
		e.SubCategory = subCategory
		e.IsConfirmed = true
		e.IsAIUpgraded = true
		changed++
	}
	if changed > 0 {
		tx.Touch()
		tx.Affect(changed)
	}
	return changed
}
