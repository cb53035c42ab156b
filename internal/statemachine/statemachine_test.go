package statemachine

import (
	"context"
	"testing"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFSM(t *testing.T) {
	ctx := context.Background()
	entry := &models.JournalEntry{Status: models.EntryStatusDraft}
	efsm := NewEntryFSM(entry)

	assert.Error(t, efsm.Reverse(ctx), "drafts cannot be reversed")
	require.NoError(t, efsm.Post(ctx))
	assert.Equal(t, models.EntryStatusPosted, entry.Status)

	assert.Error(t, efsm.Reject(ctx))
	require.NoError(t, efsm.Reverse(ctx))
	assert.Equal(t, models.EntryStatusReversed, entry.Status)
}

func TestReviewFSM(t *testing.T) {
	ctx := context.Background()

	t.Run("revision cycle", func(t *testing.T) {
		review := &models.JournalEntryReview{Status: models.ReviewStatusPending}
		rfsm := NewReviewFSM(review)

		require.NoError(t, rfsm.RequestRevision(ctx))
		assert.Equal(t, models.ReviewStatusNeedsRevision, review.Status)
		assert.Error(t, rfsm.Approve(ctx))

		require.NoError(t, rfsm.Resubmit(ctx))
		require.NoError(t, rfsm.Approve(ctx))
		assert.Equal(t, models.ReviewStatusApproved, review.Status)
	})

	t.Run("missing documents block approval", func(t *testing.T) {
		review := &models.JournalEntryReview{
			Status:           models.ReviewStatusPending,
			MissingDocuments: []string{"invoice"},
		}
		err := NewReviewFSM(review).Approve(ctx)
		assert.ErrorContains(t, err, "missing documents")
		assert.Equal(t, models.ReviewStatusPending, review.Status)
	})

	t.Run("reject is terminal", func(t *testing.T) {
		review := &models.JournalEntryReview{Status: models.ReviewStatusPending}
		rfsm := NewReviewFSM(review)
		require.NoError(t, rfsm.Reject(ctx))
		assert.Error(t, rfsm.Resubmit(ctx))
	})
}

func TestCorrectionFSM(t *testing.T) {
	ctx := context.Background()
	log := &models.CorrectionLog{Status: models.CorrectionStatusDetected}
	cfsm := NewCorrectionFSM(log)

	require.NoError(t, cfsm.Fire(ctx, EventStartReview))
	assert.Error(t, cfsm.Fire(ctx, EventStartReview))
	require.NoError(t, cfsm.Fire(ctx, EventIgnore))
	assert.Equal(t, models.CorrectionStatusIgnored, log.Status)
	assert.Error(t, cfsm.Fire(ctx, EventFix))
}
