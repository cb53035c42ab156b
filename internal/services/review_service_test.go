package services

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/testutil"
)

func (f *fixture) pendingReview(t *testing.T, amount string) *models.JournalEntryReview {
	t.Helper()
	entry := f.manualEntry(t, testutil.Cash, testutil.Revenue, amount, "Cash rental", true)
	review, err := f.repos.Review.FindByEntryID(testutil.Context(), entry.ID)
	require.NoError(t, err)
	return review
}

func TestReviewService_RejectKeepsBalancesUntouched(t *testing.T) {
	f := newFixture(t)
	review := f.pendingReview(t, "300.00")

	decided, err := f.svc.Review.SubmitReviewDecision(testutil.Context(), 7, review.ID, ReviewDecision{
		Decision: DecisionRejected,
		Comments: "missing signature",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStatusRejected, decided.Status)
	require.NotNil(t, decided.Entry)
	assert.Equal(t, models.EntryStatusRejected, decided.Entry.Status)
	assert.Equal(t, models.ReviewStatusRejected, decided.Entry.ReviewStatus)
	assert.Equal(t, "0.00", f.balance(t, testutil.Cash))
	assert.Equal(t, "0.00", f.balance(t, testutil.Revenue))

	stored, err := f.svc.Ledger.FindByID(testutil.Context(), decided.EntryID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusRejected, stored.Status)
	assert.NotNil(t, stored.RejectedAt)

	history, err := f.svc.Review.History(testutil.Context(), review.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ReviewActionOpened, history[0].Action)
	assert.Equal(t, models.ReviewActionRejected, history[1].Action)
	assert.Equal(t, uint(7), history[1].ReviewerID)
	assert.Equal(t, "missing signature", history[1].Comments)
}

func TestReviewService_RejectRequiresComments(t *testing.T) {
	f := newFixture(t)
	review := f.pendingReview(t, "10")

	_, err := f.svc.Review.SubmitReviewDecision(testutil.Context(), 7, review.ID, ReviewDecision{Decision: DecisionRejected})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewService_ApprovePostsEntry(t *testing.T) {
	f := newFixture(t)
	review := f.pendingReview(t, "250.00")
	require.Equal(t, "0.00", f.balance(t, testutil.Cash))

	decided, err := f.svc.Review.SubmitReviewDecision(testutil.Context(), 7, review.ID, ReviewDecision{
		Decision:  DecisionApproved,
		Checklist: map[string]bool{"amount_verified": true},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStatusApproved, decided.Status)
	assert.Equal(t, models.EntryStatusPosted, decided.Entry.Status)
	assert.NotNil(t, decided.Entry.PostedAt)
	assert.True(t, decided.Checklist["amount_verified"])
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, uint(7), *decided.DecidedBy)
	assert.Equal(t, "250.00", f.balance(t, testutil.Cash))
	assert.Equal(t, "250.00", f.balance(t, testutil.Revenue))

	_, err = f.svc.Review.SubmitReviewDecision(testutil.Context(), 7, review.ID, ReviewDecision{Decision: DecisionApproved})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "250.00", f.balance(t, testutil.Cash))
}

func TestReviewService_RevisionAccumulatesMissingDocuments(t *testing.T) {
	f := newFixture(t)
	review := f.pendingReview(t, "75")
	ctx := testutil.Context()

	r, err := f.svc.Review.SubmitReviewDecision(ctx, 7, review.ID, ReviewDecision{
		Decision:         DecisionNeedsRevision,
		Comments:         "attach the receipt",
		MissingDocuments: []string{"receipt"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusNeedsRevision, r.Status)
	assert.Equal(t, models.EntryStatusDraft, r.Entry.Status)
	assert.Equal(t, models.ReviewStatusNeedsRevision, r.Entry.ReviewStatus)

	r, err = f.svc.Review.Resubmit(ctx, 1, review.ID, "receipt is on the way")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, r.Status)
	assert.Equal(t, 2, r.Revision)

	r, err = f.svc.Review.SubmitReviewDecision(ctx, 7, review.ID, ReviewDecision{
		Decision:         DecisionNeedsRevision,
		Comments:         "also need the contract",
		MissingDocuments: []string{"contract", "receipt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"receipt", "contract"}, r.MissingDocuments)

	_, err = f.svc.Review.Resubmit(ctx, 1, review.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Review.SubmitReviewDecision(ctx, 7, review.ID, ReviewDecision{Decision: DecisionApproved})
	require.ErrorIs(t, err, ErrMissingDocuments)
	assert.Equal(t, "0.00", f.balance(t, testutil.Cash))
}

func TestReviewService_AttachDocumentClearsMissingAndUnblocksApproval(t *testing.T) {
	f := newFixture(t)
	review := f.pendingReview(t, "40")
	ctx := testutil.Context()

	_, err := f.svc.Review.SubmitReviewDecision(ctx, 7, review.ID, ReviewDecision{
		Decision:         DecisionNeedsRevision,
		Comments:         "receipt missing",
		MissingDocuments: []string{"receipt"},
	})
	require.NoError(t, err)

	_, err = f.svc.Review.AttachDocument(ctx, 1, review.ID, DocumentUpload{
		Type: "receipt", Filename: "receipt.exe", ContentType: "application/x-msdownload",
		Body: strings.NewReader("MZ"),
	})
	require.ErrorIs(t, err, ErrValidation)

	r, err := f.svc.Review.AttachDocument(ctx, 1, review.ID, DocumentUpload{
		Type: "receipt", Filename: "Receipt.PDF", ContentType: "application/pdf",
		Body: strings.NewReader("%PDF-1.4 receipt"),
	})
	require.NoError(t, err)
	assert.Empty(t, r.MissingDocuments)
	require.Len(t, r.Documents, 1)
	assert.True(t, strings.HasPrefix(r.Documents[0].StorageKey, testutil.TenantID+"/reviews/2026/03/"))
	assert.True(t, strings.HasSuffix(r.Documents[0].StorageKey, ".pdf"))
	assert.True(t, f.store.Exists(r.Documents[0].StorageKey))

	rc, doc, err := f.svc.Review.OpenDocument(ctx, review.ID, 0)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 receipt", string(body))
	assert.Equal(t, "Receipt.PDF", doc.Filename)

	_, _, err = f.svc.Review.OpenDocument(ctx, review.ID, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Review.Resubmit(ctx, 1, review.ID, "attached")
	require.NoError(t, err)
	r, err = f.svc.Review.SubmitReviewDecision(ctx, 7, review.ID, ReviewDecision{Decision: DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPosted, r.Entry.Status)
	assert.Equal(t, "40.00", f.balance(t, testutil.Cash))
}

func TestReviewService_PendingQueueByReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context()
	first := f.pendingReview(t, "1")
	second := f.pendingReview(t, "2")
	third := f.pendingReview(t, "3")

	_, err := f.svc.Review.Assign(ctx, 1, first.ID, 7)
	require.NoError(t, err)
	_, err = f.svc.Review.Assign(ctx, 1, second.ID, 8)
	require.NoError(t, err)

	all, err := f.svc.Review.GetPendingReviews(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	reviewer := uint(7)
	mine, err := f.svc.Review.GetPendingReviews(ctx, &reviewer)
	require.NoError(t, err)
	ids := make([]uint, 0, len(mine))
	for _, r := range mine {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uint{first.ID, third.ID}, ids)
}
