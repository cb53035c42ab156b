package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalancedEntry is returned when the debit and credit sides of an
	// entry differ. Such an entry is never persisted.
	ErrUnbalancedEntry = errors.New("journal entry is unbalanced")
	ErrInvalidLine     = errors.New("journal entry line is invalid")
)

// JournalEntry is a dated, balanced double-entry posting
type JournalEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TenantID      string          `gorm:"size:64;not null;uniqueIndex:idx_entries_reference" json:"tenant_id"`
	EntryDate     time.Time       `gorm:"not null;index" json:"entry_date"`
	Description   string          `gorm:"type:text" json:"description"`
	ReferenceType string          `gorm:"size:64;not null;uniqueIndex:idx_entries_reference" json:"reference_type"`
	ReferenceID   string          `gorm:"size:191;not null;uniqueIndex:idx_entries_reference" json:"reference_id"`
	RuleID        *uint           `gorm:"index" json:"rule_id"`
	TotalDebit    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"total_debit"`
	TotalCredit   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"total_credit"`
	Status        string          `gorm:"size:20;not null;index" json:"status"`
	ReviewStatus  string          `gorm:"size:20;not null;index" json:"review_status"`
	CreatedBy     *uint           `json:"created_by"`
	PostedAt      *time.Time      `json:"posted_at"`
	ReversedAt    *time.Time      `json:"reversed_at"`
	RejectedAt    *time.Time      `json:"rejected_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Associations
	Lines []JournalEntryLine `gorm:"foreignKey:EntryID" json:"lines,omitempty"`
}

// TableName specifies the table name for JournalEntry
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// Entry status constants
const (
	EntryStatusDraft    = "draft"
	EntryStatusPosted   = "posted"
	EntryStatusReversed = "reversed"
	EntryStatusRejected = "rejected"
)

// Review status constants, shared by entries and their reviews
const (
	ReviewStatusPending       = "pending"
	ReviewStatusApproved      = "approved"
	ReviewStatusRejected      = "rejected"
	ReviewStatusNeedsRevision = "needs_revision"
)

// Reference types used by entries that do not come from a trigger event
const (
	ReferenceTypeManual    = "manual"
	ReferenceTypeScheduled = "scheduled_rule"
)

// MayPost returns true if the entry can become authoritative
func (e *JournalEntry) MayPost() bool {
	return e.Status == EntryStatusDraft
}

// MayReject returns true if the entry can be rejected
func (e *JournalEntry) MayReject() bool {
	return e.Status == EntryStatusDraft
}

// MayReverse returns true if a posted entry can be reversed
func (e *JournalEntry) MayReverse() bool {
	return e.Status == EntryStatusPosted
}

// AffectsBalances returns true if the entry's lines count toward account balances
func (e *JournalEntry) AffectsBalances() bool {
	return e.Status == EntryStatusPosted
}

// Variance is the absolute difference between the header totals
func (e *JournalEntry) Variance() decimal.Decimal {
	return e.TotalDebit.Sub(e.TotalCredit).Abs()
}

// LineTotals sums the debit and credit sides of the loaded lines
func (e *JournalEntry) LineTotals() (debit, credit decimal.Decimal) {
	for _, l := range e.Lines {
		debit = debit.Add(l.DebitAmount)
		credit = credit.Add(l.CreditAmount)
	}
	return debit, credit
}

// Validate checks every line and that both the lines and the header totals
// balance. It is called before any entry is written.
func (e *JournalEntry) Validate() error {
	if len(e.Lines) < 2 {
		return fmt.Errorf("%w: an entry needs at least two lines", ErrInvalidLine)
	}
	for i := range e.Lines {
		if err := e.Lines[i].Validate(); err != nil {
			return err
		}
	}
	debit, credit := e.LineTotals()
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: lines debit %s credit %s", ErrUnbalancedEntry, debit.String(), credit.String())
	}
	if !e.TotalDebit.Equal(debit) || !e.TotalCredit.Equal(credit) {
		return fmt.Errorf("%w: header totals %s/%s do not match lines %s/%s",
			ErrUnbalancedEntry, e.TotalDebit.String(), e.TotalCredit.String(), debit.String(), credit.String())
	}
	return nil
}

// RecomputeTotals sets the header totals from the loaded lines
func (e *JournalEntry) RecomputeTotals() {
	e.TotalDebit, e.TotalCredit = e.LineTotals()
}

// NormalizeEntryDate truncates t to its UTC calendar day
func NormalizeEntryDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// JournalEntryLine is one debit or credit leg of an entry
type JournalEntryLine struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	EntryID      uint            `gorm:"not null;index" json:"entry_id"`
	AccountID    uint            `gorm:"not null;index" json:"account_id"`
	AccountCode  string          `gorm:"size:32;not null" json:"account_code"`
	LineNumber   int             `gorm:"not null" json:"line_number"`
	Description  string          `gorm:"type:text" json:"description"`
	DebitAmount  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"debit_amount"`
	CreditAmount decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"credit_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName specifies the table name for JournalEntryLine
func (JournalEntryLine) TableName() string {
	return "journal_entry_lines"
}

// Validate enforces that exactly one side of the line carries a positive amount
func (l *JournalEntryLine) Validate() error {
	if l.DebitAmount.IsNegative() || l.CreditAmount.IsNegative() {
		return fmt.Errorf("%w: line %d has a negative amount", ErrInvalidLine, l.LineNumber)
	}
	if l.DebitAmount.IsPositive() == l.CreditAmount.IsPositive() {
		return fmt.Errorf("%w: line %d must carry either a debit or a credit", ErrInvalidLine, l.LineNumber)
	}
	if l.AccountID == 0 {
		return fmt.Errorf("%w: line %d has no account", ErrInvalidLine, l.LineNumber)
	}
	return nil
}

// Amount is the non-zero side of the line
func (l *JournalEntryLine) Amount() decimal.Decimal {
	if l.DebitAmount.IsPositive() {
		return l.DebitAmount
	}
	return l.CreditAmount
}
