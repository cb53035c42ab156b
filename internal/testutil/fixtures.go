package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-ledger/internal/models"
)

// Account codes seeded by SeedChart
const (
	Cash        = "CASH"
	Bank        = "BANK"
	Receivable  = "RECEIVABLE"
	Revenue     = "REVENUE"
	TaxPayable  = "TAX_PAYABLE"
	Deposits    = "DEPOSITS"
	Maintenance = "MAINTENANCE"
	Fuel        = "FUEL"
	Closed      = "CLOSED"
	Header      = "HEADER"
)

// SeedChart inserts a small chart of accounts for TenantID and returns the
// accounts keyed by code. CLOSED is inactive and HEADER does not allow posting.
func SeedChart(t testing.TB, db *gorm.DB) map[string]*models.Account {
	t.Helper()

	specs := []struct {
		code, name, typ string
		active, posting bool
	}{
		{Cash, "Cash on hand", models.AccountTypeAsset, true, true},
		{Bank, "Bank", models.AccountTypeAsset, true, true},
		{Receivable, "Accounts receivable", models.AccountTypeAsset, true, true},
		{Revenue, "Rental revenue", models.AccountTypeRevenue, true, true},
		{TaxPayable, "Sales tax payable", models.AccountTypeLiability, true, true},
		{Deposits, "Security deposits held", models.AccountTypeLiability, true, true},
		{Maintenance, "Vehicle maintenance", models.AccountTypeExpense, true, true},
		{Fuel, "Fuel", models.AccountTypeExpense, true, true},
		{Closed, "Closed account", models.AccountTypeAsset, false, true},
		{Header, "Current assets", models.AccountTypeAsset, true, false},
	}

	out := make(map[string]*models.Account, len(specs))
	for _, s := range specs {
		acc := &models.Account{
			TenantID:     TenantID,
			Code:         s.code,
			Name:         s.name,
			Type:         s.typ,
			IsActive:     s.active,
			AllowPosting: s.posting,
		}
		require.NoError(t, db.Create(acc).Error)
		out[s.code] = acc
	}
	return out
}

// CreateRule inserts rule under TenantID
func CreateRule(t testing.TB, db *gorm.DB, rule *models.AutomationRule) *models.AutomationRule {
	t.Helper()
	rule.TenantID = TenantID
	if rule.Name == "" {
		rule.Name = "rule"
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

// Balance reloads an account's running balance
func Balance(t testing.TB, db *gorm.DB, id uint) string {
	t.Helper()
	var acc models.Account
	require.NoError(t, db.First(&acc, id).Error)
	return acc.Balance.StringFixed(2)
}
