package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessRateFromCounters(t *testing.T) {
	r := &AutomationRule{}
	assert.Equal(t, 0.0, r.SuccessRate())

	for i := 1; i <= 7; i++ {
		r.ExecutionCount++
		r.SuccessCount++
		assert.Equal(t, 100.0, r.SuccessRate())
	}

	r.ExecutionCount++
	r.FailureCount++
	assert.InDelta(t, 87.5, r.SuccessRate(), 0.0001)
}

func TestTriggerAndScheduleValidation(t *testing.T) {
	assert.True(t, IsValidTrigger(TriggerPaymentReceived))
	assert.False(t, IsValidTrigger("payment_sent"))

	assert.True(t, IsValidSchedule(""))
	assert.True(t, IsValidSchedule(ScheduleQuarterly))
	assert.False(t, IsValidSchedule("hourly"))
}

func TestAccountMappingCodes(t *testing.T) {
	m := AccountMappings{
		DebitAccount:  "1100",
		CreditAccount: "4100",
		AdditionalLines: []MappingLine{
			{DebitAccount: "1100", CreditAccount: "2300", AmountField: "tax"},
		},
	}
	assert.Equal(t, []string{"1100", "4100", "1100", "2300"}, m.AccountCodes())
	assert.Equal(t, "amount", m.PrimaryAmountField())

	m.AmountField = "total"
	assert.Equal(t, "total", m.PrimaryAmountField())
}
