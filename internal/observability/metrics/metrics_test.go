package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersAreSafeBeforeAndAfterInit(t *testing.T) {
	// Nil collectors must not panic.
	ObserveRuleExecution("payment_received", ResultSuccess, time.Millisecond)

	Init()
	Init()

	before := testutil.ToFloat64(ruleExecutions.WithLabelValues("payment_received", ResultFailed))
	ObserveRuleExecution("payment_received", ResultFailed, 10*time.Millisecond)
	after := testutil.ToFloat64(ruleExecutions.WithLabelValues("payment_received", ResultFailed))
	assert.Equal(t, before+1, after)

	SetScheduledRules(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(scheduledRules))
}
