package services

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/testutil"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) Refresh(context.Context) error {
	c.n.Add(1)
	return nil
}

func cashPaymentRule() RuleInput {
	return RuleInput{
		Name:         "Cash payments",
		TriggerEvent: models.TriggerPaymentReceived,
		Conditions:   models.Conditions{"payment_method": "cash"},
		AccountMappings: models.AccountMappings{
			DebitAccount:  testutil.Cash,
			CreditAccount: testutil.Receivable,
		},
	}
}

func TestRuleService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	amount := testutil.Dec("100")

	tests := []struct {
		name   string
		mutate func(*RuleInput)
		field  string
	}{
		{"unknown trigger", func(in *RuleInput) { in.TriggerEvent = "lunch_ordered" }, "TriggerEvent"},
		{"same account both sides", func(in *RuleInput) { in.AccountMappings.CreditAccount = testutil.Cash }, "AccountMappings.CreditAccount"},
		{"nested condition", func(in *RuleInput) { in.Conditions["customer"] = map[string]any{"tier": "gold"} }, "Conditions.customer"},
		{"inverted range", func(in *RuleInput) {
			in.Conditions[models.ConditionAmountRange] = map[string]any{"min": 500, "max": 10}
		}, "Conditions.amount_range"},
		{"range under amount with unknown bound", func(in *RuleInput) {
			in.Conditions["amount"] = map[string]any{"above": 5}
		}, "Conditions.amount.above"},
		{"scheduled without schedule", func(in *RuleInput) { in.TriggerEvent = models.TriggerScheduled }, "Schedule"},
		{"schedule without amount", func(in *RuleInput) {
			in.TriggerEvent = models.TriggerScheduled
			in.Schedule = models.ScheduleMonthly
		}, "AccountMappings.FixedAmount"},
		{"one time without date", func(in *RuleInput) {
			in.TriggerEvent = models.TriggerScheduled
			in.Schedule = models.ScheduleOneTime
			in.AccountMappings.FixedAmount = &amount
		}, "NextExecutionAt"},
		{"additional line reuses amount", func(in *RuleInput) {
			in.AccountMappings.AdditionalLines = []models.MappingLine{{DebitAccount: testutil.Cash, CreditAccount: testutil.TaxPayable, AmountField: "amount"}}
		}, "AccountMappings.AdditionalLines[0].AmountField"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cashPaymentRule()
			tt.mutate(&in)
			_, err := f.svc.Rule.Create(ctx, 1, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestRuleService_CreateRejectsUnpostableAccounts(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{"NOPE", testutil.Closed, testutil.Header} {
		in := cashPaymentRule()
		in.AccountMappings.DebitAccount = code
		_, err := f.svc.Rule.Create(testutil.Context(), 1, in)
		assert.ErrorIs(t, err, ErrValidation, code)
		assert.ErrorIs(t, err, automation.ErrInvalidMapping, code)
	}
}

func TestRuleService_AmountRangeUnderAmountKey(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	in := cashPaymentRule()
	in.Conditions["amount"] = map[string]any{"min": 10, "max": 100}
	rule, err := f.svc.Rule.Create(ctx, 1, in)
	require.NoError(t, err)

	res, err := f.svc.Rule.ExecuteNow(ctx, 1, rule.ID, events.Payload{
		"payment_method": "cash", "amount": 50, "reference_id": "pay-range",
	})
	require.NoError(t, err)
	assert.Equal(t, automation.StatusPosted, res.Status)
	assert.Equal(t, "50.00", f.balance(t, testutil.Cash))
}

func TestRuleService_ExecuteNowAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	rule, err := f.svc.Rule.Create(ctx, 1, cashPaymentRule())
	require.NoError(t, err)
	assert.True(t, rule.IsActive)

	res, err := f.svc.Rule.ExecuteNow(ctx, 1, rule.ID, events.Payload{
		"payment_method": "cash", "amount": 500, "reference_id": "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, automation.StatusPosted, res.Status)
	assert.Equal(t, "500.00", f.balance(t, testutil.Cash))

	history, err := f.svc.Rule.History(ctx, &rule.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, history[0].Status)

	_, err = f.svc.Rule.ExecuteNow(ctx, 1, 4242, events.Payload{"amount": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuleService_ToggleRefreshesScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	refresher := &countingRefresher{}
	f.svc.Rule.SetScheduler(refresher)

	amount := testutil.Dec("350.00")
	rule, err := f.svc.Rule.Create(ctx, 1, RuleInput{
		Name:         "Monthly insurance",
		TriggerEvent: models.TriggerScheduled,
		Schedule:     models.ScheduleMonthly,
		AccountMappings: models.AccountMappings{
			DebitAccount: testutil.Maintenance, CreditAccount: testutil.Bank, FixedAmount: &amount,
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, refresher.n.Load())

	rule, err = f.svc.Rule.Toggle(ctx, 1, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, rule.IsActive)
	assert.EqualValues(t, 2, refresher.n.Load())

	// no-op toggles do not touch the scheduler
	_, err = f.svc.Rule.Toggle(ctx, 1, rule.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, refresher.n.Load())

	// an event rule never does
	_, err = f.svc.Rule.Create(ctx, 1, cashPaymentRule())
	require.NoError(t, err)
	assert.EqualValues(t, 2, refresher.n.Load())
}

func TestRuleService_ToggleRechecksMappings(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	rule, err := f.svc.Rule.Create(ctx, 1, cashPaymentRule())
	require.NoError(t, err)
	_, err = f.svc.Rule.Toggle(ctx, 1, rule.ID, false)
	require.NoError(t, err)

	off := false
	_, err = f.svc.Account.Update(ctx, 1, f.accounts[testutil.Receivable].ID, AccountInput{
		Name: "Accounts receivable", Type: models.AccountTypeAsset, IsActive: &off,
	})
	require.NoError(t, err)

	_, err = f.svc.Rule.Toggle(ctx, 1, rule.ID, true)
	assert.ErrorIs(t, err, automation.ErrInvalidMapping)
}

const seedFile = `
rules:
  - name: Cash payments
    trigger_event: payment_received
    conditions: {payment_method: cash}
    account_mappings: {debit_account: CASH, credit_account: RECEIVABLE}
  - name: Monthly insurance
    trigger_event: scheduled
    schedule: monthly
    fixed_amount: "350.00"
    account_mappings:
      debit_account: MAINTENANCE
      credit_account: BANK
      description_template: "{{description}} {{date}}"
  - name: Broken
    trigger_event: payment_received
    account_mappings: {debit_account: GHOST, credit_account: CASH}
  - name: Bad amount
    trigger_event: scheduled
    schedule: weekly
    fixed_amount: lots
    account_mappings: {debit_account: FUEL, credit_account: CASH}
`

func TestRuleService_ImportYAML(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	refresher := &countingRefresher{}
	f.svc.Rule.SetScheduler(refresher)

	res, err := f.svc.Rule.ImportYAML(ctx, 1, strings.NewReader(seedFile))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Broken", res.Errors[0].Name)
	assert.Equal(t, 3, res.Errors[1].Index)
	assert.EqualValues(t, 1, refresher.n.Load())

	insurance, err := f.repos.Rule.FindByName(ctx, "Monthly insurance")
	require.NoError(t, err)
	require.NotNil(t, insurance.AccountMappings.FixedAmount)
	assert.Equal(t, "350.00", insurance.AccountMappings.FixedAmount.StringFixed(2))

	res, err = f.svc.Rule.ImportYAML(ctx, 1, strings.NewReader(seedFile))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Updated)
}

func TestRuleService_ImportYAMLRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Rule.ImportYAML(testutil.Context(), 1, strings.NewReader("rules:\n  - name: x\n    trigger: manual_trigger\n"))
	assert.ErrorIs(t, err, ErrValidation)
}
