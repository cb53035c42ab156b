package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/testutil"
)

func TestLedgerService_CreateManualPostsImmediately(t *testing.T) {
	f := newFixture(t)

	entry := f.manualEntry(t, testutil.Cash, testutil.Revenue, "150.00", "Walk-in rental", false)

	assert.Equal(t, models.EntryStatusPosted, entry.Status)
	assert.Equal(t, models.ReviewStatusApproved, entry.ReviewStatus)
	assert.Equal(t, models.ReferenceTypeManual, entry.ReferenceType)
	assert.NotEmpty(t, entry.ReferenceID)
	assert.Equal(t, "150.00", f.balance(t, testutil.Cash))
	assert.Equal(t, "150.00", f.balance(t, testutil.Revenue))
}

func TestLedgerService_CreateManualRejectsUnbalancedLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, ManualEntryInput{
		Date: testEpoch,
		Lines: []ManualLineInput{
			{AccountCode: testutil.Cash, Debit: testutil.Dec("100")},
			{AccountCode: testutil.Revenue, Credit: testutil.Dec("99.99")},
		},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, models.ErrUnbalancedEntry)

	n, err := f.repos.Ledger.CountLines(testutil.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedgerService_CreateManualRejectsNonPostingAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, ManualEntryInput{
		Date: testEpoch,
		Lines: []ManualLineInput{
			{AccountCode: testutil.Header, Debit: testutil.Dec("10")},
			{AccountCode: testutil.Revenue, Credit: testutil.Dec("10")},
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Lines[0].AccountCode")
}

func TestLedgerService_PostBlockedWhileReviewPending(t *testing.T) {
	f := newFixture(t)
	entry := f.manualEntry(t, testutil.Cash, testutil.Revenue, "80", "Needs approval", true)

	_, err := f.svc.Ledger.Post(testutil.Context(), 1, entry.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Ledger.Reject(testutil.Context(), 1, entry.ID, "typo")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "0.00", f.balance(t, testutil.Cash))
}

func draftInput(debit, credit, amount string) ManualEntryInput {
	return ManualEntryInput{
		Date:  testEpoch,
		Draft: true,
		Lines: []ManualLineInput{
			{AccountCode: debit, Debit: testutil.Dec(amount)},
			{AccountCode: credit, Credit: testutil.Dec(amount)},
		},
	}
}

func TestLedgerService_PostPlainDraft(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, draftInput(testutil.Cash, testutil.Revenue, "64.00"))
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusDraft, entry.Status)
	assert.Equal(t, "0.00", f.balance(t, testutil.Cash))

	pending, err := f.svc.Review.GetPendingReviews(testutil.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, pending)

	posted, err := f.svc.Ledger.Post(testutil.Context(), 1, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPosted, posted.Status)
	assert.NotNil(t, posted.PostedAt)
	assert.Equal(t, "64.00", f.balance(t, testutil.Cash))
	assert.Equal(t, "64.00", f.balance(t, testutil.Revenue))

	_, err = f.svc.Ledger.Post(testutil.Context(), 1, entry.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLedgerService_RejectPlainDraft(t *testing.T) {
	f := newFixture(t)
	entry, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, draftInput(testutil.Fuel, testutil.Cash, "30.00"))
	require.NoError(t, err)

	rejected, err := f.svc.Ledger.Reject(testutil.Context(), 1, entry.ID, "duplicate receipt")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusRejected, rejected.Status)
	assert.Equal(t, models.ReviewStatusRejected, rejected.ReviewStatus)
	assert.Equal(t, "0.00", f.balance(t, testutil.Cash))

	_, err = f.svc.Ledger.Post(testutil.Context(), 1, entry.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLedgerService_DraftCannotAlsoRequireReview(t *testing.T) {
	f := newFixture(t)
	in := draftInput(testutil.Cash, testutil.Revenue, "1")
	in.RequiresReview = true

	_, err := f.svc.Ledger.CreateManual(testutil.Context(), 1, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Draft")
}

func TestLedgerService_ReverseRestoresBalances(t *testing.T) {
	f := newFixture(t)
	entry := f.manualEntry(t, testutil.Maintenance, testutil.Bank, "420.00", "Brake pads", false)
	require.Equal(t, "-420.00", f.balance(t, testutil.Bank))

	reversed, err := f.svc.Ledger.Reverse(testutil.Context(), 1, entry.ID, "wrong vehicle")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusReversed, reversed.Status)
	assert.NotNil(t, reversed.ReversedAt)
	assert.Equal(t, "0.00", f.balance(t, testutil.Bank))
	assert.Equal(t, "0.00", f.balance(t, testutil.Maintenance))

	_, err = f.svc.Ledger.Reverse(testutil.Context(), 1, entry.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLedgerService_FindByIDIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	entry := f.manualEntry(t, testutil.Cash, testutil.Revenue, "5", "Coffee", false)

	_, err := f.svc.Ledger.FindByID(withTenant("someone-else"), entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
