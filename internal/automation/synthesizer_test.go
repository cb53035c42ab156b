package automation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
)

// mockAccounts is an in-memory AccountLookup
type mockAccounts map[string]*models.Account

func (m mockAccounts) FindByCode(ctx context.Context, code string) (*models.Account, error) {
	if acc, ok := m[code]; ok {
		return acc, nil
	}
	return nil, repository.ErrNotFound
}

func chart() mockAccounts {
	return mockAccounts{
		"CASH":       {ID: 1, Code: "CASH", Type: models.AccountTypeAsset, IsActive: true, AllowPosting: true},
		"RECEIVABLE": {ID: 2, Code: "RECEIVABLE", Type: models.AccountTypeAsset, IsActive: true, AllowPosting: true},
		"TAX":        {ID: 3, Code: "TAX", Type: models.AccountTypeLiability, IsActive: true, AllowPosting: true},
		"CLOSED":     {ID: 4, Code: "CLOSED", Type: models.AccountTypeAsset, IsActive: false, AllowPosting: true},
		"HEADER":     {ID: 5, Code: "HEADER", Type: models.AccountTypeAsset, IsActive: true, AllowPosting: false},
	}
}

func paymentEvent(payload events.Payload) events.Event {
	return events.New("t1", models.TriggerPaymentReceived, payload, time.Date(2026, 5, 1, 15, 30, 0, 0, time.UTC))
}

func TestSynthesize_SimplePosting(t *testing.T) {
	s := NewSynthesizer(NewAccountResolver(chart()))
	rule := &models.AutomationRule{
		ID:              7,
		Name:            "Cash payments",
		AccountMappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "RECEIVABLE"},
	}

	entry, err := s.Synthesize(context.Background(), rule, paymentEvent(events.Payload{"amount": 500, "reference_id": "pay-1"}))
	require.NoError(t, err)

	require.Len(t, entry.Lines, 2)
	assert.Equal(t, "CASH", entry.Lines[0].AccountCode)
	assert.True(t, entry.Lines[0].DebitAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "RECEIVABLE", entry.Lines[1].AccountCode)
	assert.True(t, entry.Lines[1].CreditAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	assert.Equal(t, models.TriggerPaymentReceived, entry.ReferenceType)
	assert.Equal(t, "pay-1", entry.ReferenceID)
	assert.Equal(t, "Cash payments - pay-1", entry.Description)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), entry.EntryDate)
	require.NotNil(t, entry.RuleID)
	assert.Equal(t, uint(7), *entry.RuleID)
}

func TestSynthesize_CompoundPosting(t *testing.T) {
	s := NewSynthesizer(NewAccountResolver(chart()))
	rule := &models.AutomationRule{
		AccountMappings: models.AccountMappings{
			DebitAccount:  "CASH",
			CreditAccount: "RECEIVABLE",
			AdditionalLines: []models.MappingLine{
				{DebitAccount: "CASH", CreditAccount: "TAX", AmountField: "tax", Description: "Sales tax"},
				{DebitAccount: "CASH", CreditAccount: "TAX", AmountField: "surcharge"},
			},
		},
	}

	entry, err := s.Synthesize(context.Background(), rule, paymentEvent(events.Payload{
		"amount": "1000", "tax": "150.255", "reference_id": "inv-9",
	}))
	require.NoError(t, err)

	// The surcharge pair is skipped because the payload has no such field.
	require.Len(t, entry.Lines, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{entry.Lines[0].LineNumber, entry.Lines[1].LineNumber, entry.Lines[2].LineNumber, entry.Lines[3].LineNumber})
	assert.Equal(t, "Sales tax", entry.Lines[2].Description)
	assert.Equal(t, "1150.255", entry.TotalDebit.String())
	assert.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
}

func TestSynthesize_DescriptionTemplate(t *testing.T) {
	s := NewSynthesizer(NewAccountResolver(chart()))
	rule := &models.AutomationRule{
		AccountMappings: models.AccountMappings{
			DebitAccount:        "CASH",
			CreditAccount:       "RECEIVABLE",
			DescriptionTemplate: "Payment {{reference_id}} of {{amount}} on {{date}}: {{description}} {{customer}}",
		},
	}

	entry, err := s.Synthesize(context.Background(), rule, paymentEvent(events.Payload{
		"amount": 75.5, "reference_id": "pay-3", "description": "Weekly rent", "date": "2026-04-30",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Payment pay-3 of 75.5 on 2026-04-30: Weekly rent {{customer}}", entry.Description)
}

func TestSynthesize_DescriptionAmountIsLiteral(t *testing.T) {
	s := NewSynthesizer(NewAccountResolver(chart()))
	fixed := decimal.RequireFromString("1200")

	tests := []struct {
		name    string
		payload events.Payload
		want    string
	}{
		{"wire number keeps its digits", events.Payload{"amount": json.Number("1250.000"), "reference_id": "a"}, "Rent 1250.000"},
		{"string amount as sent", events.Payload{"amount": "99.9", "reference_id": "b"}, "Rent 99.9"},
		{"fixed amount when payload has none", events.Payload{"reference_id": "c"}, "Rent 1200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &models.AutomationRule{AccountMappings: models.AccountMappings{
				DebitAccount:        "CASH",
				CreditAccount:       "RECEIVABLE",
				FixedAmount:         &fixed,
				DescriptionTemplate: "Rent {{amount}}",
			}}
			entry, err := s.Synthesize(context.Background(), rule, paymentEvent(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, entry.Description)
		})
	}
}

func TestSynthesize_Failures(t *testing.T) {
	fixed := decimal.NewFromInt(90)
	tests := []struct {
		name     string
		mappings models.AccountMappings
		payload  events.Payload
		wantErr  error
		wantCode string
	}{
		{
			name:     "unknown account",
			mappings: models.AccountMappings{DebitAccount: "NOPE", CreditAccount: "RECEIVABLE"},
			payload:  events.Payload{"amount": 1},
			wantErr:  ErrInvalidMapping,
			wantCode: "NOPE",
		},
		{
			name:     "inactive account",
			mappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "CLOSED"},
			payload:  events.Payload{"amount": 1},
			wantErr:  ErrInvalidMapping,
			wantCode: "CLOSED",
		},
		{
			name:     "account closed to posting",
			mappings: models.AccountMappings{DebitAccount: "HEADER", CreditAccount: "CASH"},
			payload:  events.Payload{"amount": 1},
			wantErr:  ErrInvalidMapping,
			wantCode: "HEADER",
		},
		{
			name:     "missing amount",
			mappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "RECEIVABLE"},
			payload:  events.Payload{},
			wantErr:  ErrInvalidPayload,
		},
		{
			name:     "zero amount",
			mappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "RECEIVABLE"},
			payload:  events.Payload{"amount": 0},
			wantErr:  ErrInvalidPayload,
		},
		{
			name:     "amount is text",
			mappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "RECEIVABLE", FixedAmount: &fixed},
			payload:  events.Payload{"amount": "lots"},
			wantErr:  ErrInvalidPayload,
		},
		{
			name: "negative additional amount",
			mappings: models.AccountMappings{
				DebitAccount: "CASH", CreditAccount: "RECEIVABLE",
				AdditionalLines: []models.MappingLine{{DebitAccount: "CASH", CreditAccount: "TAX", AmountField: "tax"}},
			},
			payload: events.Payload{"amount": 10, "tax": -1},
			wantErr: ErrInvalidPayload,
		},
	}

	s := NewSynthesizer(NewAccountResolver(chart()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &models.AutomationRule{AccountMappings: tt.mappings}
			_, err := s.Synthesize(context.Background(), rule, paymentEvent(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsPermanent(err))
			if tt.wantCode != "" {
				var mErr *MappingError
				require.True(t, errors.As(err, &mErr))
				assert.Equal(t, tt.wantCode, mErr.Code)
			}
		})
	}
}

func TestSynthesize_FixedAmountFallback(t *testing.T) {
	fixed := decimal.RequireFromString("1200")
	s := NewSynthesizer(NewAccountResolver(chart()))
	rule := &models.AutomationRule{
		Name:            "Monthly depreciation",
		AccountMappings: models.AccountMappings{DebitAccount: "CASH", CreditAccount: "RECEIVABLE", FixedAmount: &fixed},
	}

	entry, err := s.Synthesize(context.Background(), rule, paymentEvent(events.Payload{"reference_id": "r"}))
	require.NoError(t, err)
	assert.Equal(t, "1200", entry.TotalDebit.String())
}

func TestIsPermanent(t *testing.T) {
	transient := errors.New("connection reset")

	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(transient))
	assert.True(t, IsPermanent(&MappingError{Code: "X", Reason: "gone"}))
	assert.True(t, IsPermanent(errors.Join(ErrInvalidMapping, ErrUnbalancedEntry)))
	assert.False(t, IsPermanent(errors.Join(ErrInvalidMapping, transient)))
	assert.True(t, IsPermanent(events.ErrInvalidEvent))
}
