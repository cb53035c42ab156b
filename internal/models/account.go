package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a node in a tenant's chart of accounts
type Account struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TenantID     string          `gorm:"size:64;not null;uniqueIndex:idx_accounts_tenant_code" json:"tenant_id"`
	Code         string          `gorm:"size:32;not null;uniqueIndex:idx_accounts_tenant_code" json:"code"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Type         string          `gorm:"size:20;not null;index" json:"type"`
	Category     string          `gorm:"size:100" json:"category"`
	ParentID     *uint           `gorm:"index" json:"parent_id"`
	Balance      decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"balance"`
	IsActive     bool            `gorm:"not null" json:"is_active"`
	AllowPosting bool            `gorm:"not null" json:"allow_posting"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// Account type constants
const (
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
	AccountTypeEquity    = "equity"
	AccountTypeRevenue   = "revenue"
	AccountTypeExpense   = "expense"
)

// AccountTypes lists every valid account type
var AccountTypes = []string{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// IsValidAccountType reports whether t is a known account type
func IsValidAccountType(t string) bool {
	for _, v := range AccountTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsDebitNormal returns true for accounts whose balance grows with debits
func (a *Account) IsDebitNormal() bool {
	return a.Type == AccountTypeAsset || a.Type == AccountTypeExpense
}

// BalanceEffect is the change a line with the given amounts makes to this
// account's running balance.
func (a *Account) BalanceEffect(debit, credit decimal.Decimal) decimal.Decimal {
	if a.IsDebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// CanPost returns true if journal lines may target this account
func (a *Account) CanPost() bool {
	return a.IsActive && a.AllowPosting
}
