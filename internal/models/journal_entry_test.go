package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balancedEntry() *JournalEntry {
	return &JournalEntry{
		TotalDebit:  d("500"),
		TotalCredit: d("500"),
		Lines: []JournalEntryLine{
			{AccountID: 1, LineNumber: 1, DebitAmount: d("500")},
			{AccountID: 2, LineNumber: 2, CreditAmount: d("500")},
		},
	}
}

func TestJournalEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *JournalEntry)
		wantErr error
	}{
		{name: "balanced", mutate: func(e *JournalEntry) {}},
		{
			name:    "lines do not balance",
			mutate:  func(e *JournalEntry) { e.Lines[1].CreditAmount = d("499.99") },
			wantErr: ErrUnbalancedEntry,
		},
		{
			name:    "header disagrees with lines",
			mutate:  func(e *JournalEntry) { e.TotalDebit = d("1000.50") },
			wantErr: ErrUnbalancedEntry,
		},
		{
			name:    "single line",
			mutate:  func(e *JournalEntry) { e.Lines = e.Lines[:1] },
			wantErr: ErrInvalidLine,
		},
		{
			name: "line with both sides",
			mutate: func(e *JournalEntry) {
				e.Lines[0].CreditAmount = d("1")
			},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "negative amount",
			mutate:  func(e *JournalEntry) { e.Lines[0].DebitAmount = d("-500") },
			wantErr: ErrInvalidLine,
		},
		{
			name:    "missing account",
			mutate:  func(e *JournalEntry) { e.Lines[0].AccountID = 0 },
			wantErr: ErrInvalidLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := balancedEntry()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJournalEntryVarianceAndRecompute(t *testing.T) {
	e := balancedEntry()
	e.TotalDebit = d("1000.50")
	e.TotalCredit = d("1000.00")
	assert.True(t, e.Variance().Equal(d("0.50")))

	e.RecomputeTotals()
	assert.True(t, e.TotalDebit.Equal(d("500")))
	assert.True(t, e.Variance().IsZero())
}

func TestEntryTransitions(t *testing.T) {
	e := &JournalEntry{Status: EntryStatusDraft}
	assert.True(t, e.MayPost())
	assert.True(t, e.MayReject())
	assert.False(t, e.MayReverse())
	assert.False(t, e.AffectsBalances())

	e.Status = EntryStatusPosted
	assert.False(t, e.MayPost())
	assert.True(t, e.MayReverse())
	assert.True(t, e.AffectsBalances())
}

func TestNormalizeEntryDate(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	in := time.Date(2026, 3, 14, 21, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), NormalizeEntryDate(in))
}

func TestAccountBalanceEffect(t *testing.T) {
	cash := &Account{Type: AccountTypeAsset}
	revenue := &Account{Type: AccountTypeRevenue}

	assert.True(t, cash.BalanceEffect(d("100"), decimal.Zero).Equal(d("100")))
	assert.True(t, cash.BalanceEffect(decimal.Zero, d("40")).Equal(d("-40")))
	assert.True(t, revenue.BalanceEffect(decimal.Zero, d("100")).Equal(d("100")))
	assert.True(t, revenue.BalanceEffect(d("100"), decimal.Zero).Equal(d("-100")))
}
