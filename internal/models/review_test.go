package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMissingDocumentsAccumulate(t *testing.T) {
	r := &JournalEntryReview{Status: ReviewStatusPending}
	r.AddMissingDocuments("signed contract")
	r.AddMissingDocuments("receipt", "signed contract", "")

	assert.Equal(t, []string{"signed contract", "receipt"}, r.MissingDocuments)
	assert.False(t, r.MayApprove(), "outstanding documents block approval")

	r.ResolveDocument("signed contract")
	r.ResolveDocument("receipt")
	assert.Empty(t, r.MissingDocuments)
	assert.True(t, r.MayApprove())
}

func TestReviewTransitions(t *testing.T) {
	r := &JournalEntryReview{Status: ReviewStatusNeedsRevision}
	assert.False(t, r.MayApprove())
	assert.False(t, r.MayReject())
	assert.True(t, r.MayResubmit())
}

func TestSeverityForVariance(t *testing.T) {
	tests := []struct {
		variance string
		want     string
	}{
		{"0.50", SeverityLow},
		{"99.99", SeverityLow},
		{"100", SeverityMedium},
		{"-1500", SeverityHigh},
		{"10000", SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.variance, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityForVariance(decimal.RequireFromString(tt.variance)))
		})
	}
}
