package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault/internal/core"
)

const legacy = `{
	"settings": {"monthlyIncome": 85000.6, "split": {"Needs": 60, "Wants": 20, "Savings": 20}, "theme": "dark"},
	"expenses": [
		{"id": "e1", "amount": 499.5, "date": "2024-05-01T10:30:00.000Z", "category": "needs", "merchant": "Grocer"},
		{"amount": "1,200", "date": "2024-05-02", "category": "Fun", "merchant": "Arcade", "isConfirmed": false}
	],
	"wealthItems": [
		{"id": "a1", "type": "liability", "category": "CreditCard", "name": "Card", "value": 1500.2},
		{"id": "a2", "type": "Investment", "name": "Funds", "value": 10}
	],
	"bills": [{"id": "b1", "merchant": "Power", "amount": 900, "dueDate": "2024-05-10", "frequency": "monthly"}],
	"incomes": [{"id": "i1", "amount": 85000, "date": "2024-05-01", "type": "salary"}],
	"timestamp": "2024-05-03T08:00:00Z"
}`

func TestDecodeMigratesLegacyDocument(t *testing.T) {
	s, err := Decode([]byte(legacy))
	require.NoError(t, err)

	assert.Equal(t, core.SchemaVersion, s.SchemaVersion)
	assert.Equal(t, int64(85001), s.Settings.MonthlyIncome)
	assert.Equal(t, core.Split{Needs: 60, Wants: 20, Savings: 20}, s.Settings.Split)
	assert.Equal(t, "INR", s.Settings.Currency)
	assert.Contains(t, s.Settings.Extra, "theme")

	require.Len(t, s.Expenses, 2)
	first := s.Expenses[0]
	assert.Equal(t, int64(500), first.Amount)
	assert.Equal(t, core.Needs, first.Category)
	assert.True(t, first.IsConfirmed)
	assert.Equal(t, core.NewDate(2024, 5, 1), first.Date)

	second := s.Expenses[1]
	assert.NotEmpty(t, second.ID)
	assert.Equal(t, int64(1200), second.Amount)
	assert.Equal(t, core.Uncategorized, second.Category)
	assert.False(t, second.IsConfirmed)

	require.Len(t, s.WealthItems, 2)
	assert.Equal(t, core.Liability, s.WealthItems[0].Polarity)
	assert.Equal(t, int64(1500), s.WealthItems[0].Value)
	assert.Equal(t, core.Asset, s.WealthItems[1].Polarity)
	assert.Equal(t, core.AccountOther, s.WealthItems[1].Category)

	assert.Equal(t, core.Monthly, s.Bills[0].Frequency)
	assert.Equal(t, core.Needs, s.Bills[0].Category)
	assert.Equal(t, core.Salary, s.Incomes[0].Type)

	assert.NotNil(t, s.Rules)
	assert.Empty(t, s.RecurringItems)
	assert.Equal(t, time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC), s.Timestamp)
}

func TestDecodeToleratesMissingKeys(t *testing.T) {
	s, err := Decode([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, core.DefaultSettings().Split, s.Settings.Split)
	assert.NotNil(t, s.Expenses)
	assert.NotNil(t, s.Notifications)

	s, err = Decode([]byte(`{"expenses": null, "rules": [{"keyword": "uber", "category": "wants"}]}`))
	require.NoError(t, err)
	require.Len(t, s.Rules, 1)
	assert.NotEmpty(t, s.Rules[0].ID)
	assert.Equal(t, core.Wants, s.Rules[0].Category)
}

func TestDecodeBackfillsCurrentVersion(t *testing.T) {
	s, err := Decode([]byte(`{
		"schemaVersion": 1,
		"expenses": [
			{"id": "e1", "amount": 10, "date": "2024-05-01", "category": "Needs"},
			{"id": "e2", "amount": 10, "date": "2024-05-01", "category": "Needs", "isConfirmed": false}
		],
		"wealthItems": [{"id": "a1", "type": "Asset", "category": "Crypto Yacht", "name": "Boat", "value": 5}]
	}`))
	require.NoError(t, err)

	require.Len(t, s.Expenses, 2)
	assert.True(t, s.Expenses[0].IsConfirmed)
	assert.False(t, s.Expenses[1].IsConfirmed)
	require.Len(t, s.WealthItems, 1)
	assert.Equal(t, core.AccountOther, s.WealthItems[0].Category)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"syntax", `{"expenses": [`},
		{"array at top", `[]`},
		{"null document", `null`},
		{"collection not an array", `{"expenses": "lots"}`},
		{"record not an object", `{"incomes": [1, 2]}`},
		{"future version", `{"schemaVersion": 99}`},
		{"bad date", `{"schemaVersion": 1, "expenses": [{"id": "x", "amount": 1, "date": "soon"}]}`},
		{"oversized legacy amount", `{"expenses": [{"id": "x", "amount": 1e20, "date": "2024-05-01"}]}`},
		{"oversized legacy text amount", `{"wealthItems": [{"id": "a", "name": "A", "value": "99999999999999999999999"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			var perr *core.RestoreParseError
			assert.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	s := core.EmptySnapshot()
	s.Revision = 7
	s.SnapshotID = "snap-7"
	s.Settings.LastSyncedSnapshotID = "snap-6"
	s.Expenses = []core.Expense{{ID: "e1", Amount: 120, Date: core.NewDate(2024, 5, 1), Category: core.Wants, Merchant: "Cafe"}}
	s.WealthItems = []core.Account{{ID: "a1", Polarity: core.Asset, Category: core.AccountCash, Name: "Wallet", Value: 900}}

	data, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schemaVersion": 1`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), back.Revision)
	assert.Equal(t, "snap-7", back.SnapshotID)
	assert.Equal(t, "snap-6", back.Settings.LastSyncedSnapshotID)
	assert.Equal(t, s.Expenses, back.Expenses)
	assert.Equal(t, s.WealthItems, back.WealthItems)
	assert.False(t, back.Expenses[0].IsConfirmed, "current documents are read as written")
}

func TestFileNames(t *testing.T) {
	at := time.Date(2024, 5, 3, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "vault_snapshot_2024-05-03.json", ExportFileName(at))
	assert.Equal(t, "vault_snapshot.json", CloudFileName)
}
