package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/internal/testutil"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func newEntry(accounts map[string]*models.Account, ref, amount, status string) *models.JournalEntry {
	a := testutil.Dec(amount)
	review := models.ReviewStatusApproved
	if status == models.EntryStatusDraft {
		review = models.ReviewStatusPending
	}
	return &models.JournalEntry{
		EntryDate:     day,
		Description:   "Payment " + ref,
		ReferenceType: "payment_received",
		ReferenceID:   ref,
		TotalDebit:    a,
		TotalCredit:   a,
		Status:        status,
		ReviewStatus:  review,
		Lines: []models.JournalEntryLine{
			{AccountID: accounts[testutil.Cash].ID, LineNumber: 1, DebitAmount: a},
			{AccountID: accounts[testutil.Receivable].ID, LineNumber: 2, CreditAmount: a},
		},
	}
}

func setup(t *testing.T) (*gorm.DB, *repository.Repositories, map[string]*models.Account) {
	db := testutil.NewDB(t)
	accounts := testutil.SeedChart(t, db)
	return db, repository.NewRepositories(db), accounts
}

func TestCreateWithLines_PostedMovesBalances(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "500", models.EntryStatusPosted)
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, nil))

	assert.NotZero(t, entry.ID)
	assert.Equal(t, testutil.TenantID, entry.TenantID)
	assert.Equal(t, testutil.Cash, entry.Lines[0].AccountCode)
	assert.Equal(t, "500.00", testutil.Balance(t, db, accounts[testutil.Cash].ID))
	// Receivable is an asset: a credit lowers it.
	assert.Equal(t, "-500.00", testutil.Balance(t, db, accounts[testutil.Receivable].ID))

	found, err := repos.Ledger.FindByReference(ctx, "payment_received", "pay-1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)
	require.Len(t, found.Lines, 2)
	assert.Equal(t, 1, found.Lines[0].LineNumber)
}

func TestCreateWithLines_DuplicateReference(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	require.NoError(t, repos.Ledger.CreateWithLines(ctx, newEntry(accounts, "pay-1", "500", models.EntryStatusPosted), nil))

	err := repos.Ledger.CreateWithLines(ctx, newEntry(accounts, "pay-1", "500", models.EntryStatusPosted), nil)
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	lines, err := repos.Ledger.CountLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lines)
	assert.Equal(t, "500.00", testutil.Balance(t, db, accounts[testutil.Cash].ID))
}

func TestCreateWithLines_RefusesUnbalanced(t *testing.T) {
	_, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "500", models.EntryStatusPosted)
	entry.Lines[1].CreditAmount = testutil.Dec("499.99")

	err := repos.Ledger.CreateWithLines(ctx, entry, nil)
	assert.ErrorIs(t, err, models.ErrUnbalancedEntry)

	_, err = repos.Ledger.FindByReference(ctx, "payment_received", "pay-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateWithLines_UnknownAccountRollsBack(t *testing.T) {
	_, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "500", models.EntryStatusPosted)
	entry.Lines[1].AccountID = 9999

	err := repos.Ledger.CreateWithLines(ctx, entry, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	lines, err := repos.Ledger.CountLines(ctx)
	require.NoError(t, err)
	assert.Zero(t, lines)
}

func TestCreateWithLines_RequiresTenant(t *testing.T) {
	_, repos, accounts := setup(t)

	err := repos.Ledger.CreateWithLines(context.Background(), newEntry(accounts, "pay-1", "500", models.EntryStatusPosted), nil)
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

func TestDraftWithReviewLeavesBalances(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "inv-1", "250", models.EntryStatusDraft)
	review := &models.JournalEntryReview{Status: models.ReviewStatusPending}
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, review))

	assert.Equal(t, "0.00", testutil.Balance(t, db, accounts[testutil.Cash].ID))

	stored, err := repos.Review.FindByEntryID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, review.ID, stored.ID)

	history, err := repos.Review.History(ctx, review.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ReviewActionOpened, history[0].Action)
}

func TestUpdateStatus_PostAndReverse(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "120.50", models.EntryStatusDraft)
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, nil))

	posted, err := repos.Ledger.UpdateStatus(ctx, entry.ID, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		e.Status = models.EntryStatusPosted
		return repository.BalanceApply, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPosted, posted.Status)
	assert.Equal(t, "120.50", testutil.Balance(t, db, accounts[testutil.Cash].ID))

	_, err = repos.Ledger.UpdateStatus(ctx, entry.ID, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		e.Status = models.EntryStatusReversed
		return repository.BalanceRevert, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", testutil.Balance(t, db, accounts[testutil.Cash].ID))
	assert.Equal(t, "0.00", testutil.Balance(t, db, accounts[testutil.Receivable].ID))
}

func TestUpdateStatus_CallbackErrorRollsBack(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "10", models.EntryStatusDraft)
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, nil))

	boom := errors.New("boom")
	_, err := repos.Ledger.UpdateStatus(ctx, entry.ID, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		e.Status = models.EntryStatusPosted
		return repository.BalanceApply, boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repos.Ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusDraft, stored.Status)
	assert.Equal(t, "0.00", testutil.Balance(t, db, accounts[testutil.Cash].ID))
}

func TestTenantIsolation(t *testing.T) {
	_, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "500", models.EntryStatusPosted)
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, nil))

	other := tenant.WithTenantID(context.Background(), "someone-else")
	_, err := repos.Ledger.FindByID(other, entry.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Account.FindByCode(other, testutil.Cash)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Lines may not point at another tenant's accounts.
	foreign := newEntry(accounts, "pay-2", "5", models.EntryStatusPosted)
	err = repos.Ledger.CreateWithLines(other, foreign, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFixTotals(t *testing.T) {
	db, repos, accounts := setup(t)
	ctx := testutil.Context()

	entry := newEntry(accounts, "pay-1", "1000", models.EntryStatusPosted)
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, entry, nil))
	require.NoError(t, db.Model(&models.JournalEntry{}).Where("id = ?", entry.ID).
		UpdateColumn("total_debit", testutil.Dec("1000.50")).Error)

	fixed, ok, err := repos.Ledger.FixTotals(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1000.00", fixed.TotalDebit.StringFixed(2))

	// Lines that do not balance cannot be repaired from themselves.
	require.NoError(t, db.Model(&models.JournalEntryLine{}).Where("entry_id = ? AND line_number = 2", entry.ID).
		UpdateColumn("credit_amount", testutil.Dec("999")).Error)
	_, ok, err = repos.Ledger.FixTotals(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanPage(t *testing.T) {
	_, repos, accounts := setup(t)
	ctx := testutil.Context()

	refs := []string{"a", "b", "c", "d", "e"}
	for i, ref := range refs {
		e := newEntry(accounts, ref, "10", models.EntryStatusPosted)
		e.EntryDate = day.AddDate(0, 0, i%2)
		require.NoError(t, repos.Ledger.CreateWithLines(ctx, e, nil))
	}

	var seen []string
	cursor := repository.EntryCursor{}
	for {
		page, err := repos.Ledger.ScanPage(ctx, cursor, 2, nil)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, e := range page {
			seen = append(seen, e.ReferenceID)
		}
		last := page[len(page)-1]
		cursor = repository.EntryCursor{Date: last.EntryDate, ID: last.ID}
	}

	assert.Equal(t, []string{"a", "c", "e", "b", "d"}, seen)
}

func TestPostedActivityIgnoresDrafts(t *testing.T) {
	_, repos, accounts := setup(t)
	ctx := testutil.Context()

	require.NoError(t, repos.Ledger.CreateWithLines(ctx, newEntry(accounts, "p", "70", models.EntryStatusPosted), nil))
	require.NoError(t, repos.Ledger.CreateWithLines(ctx, newEntry(accounts, "d", "30", models.EntryStatusDraft), nil))

	activity, err := repos.Ledger.PostedActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	for _, a := range activity {
		switch a.AccountID {
		case accounts[testutil.Cash].ID:
			assert.Equal(t, "70.00", a.Debit.StringFixed(2))
		case accounts[testutil.Receivable].ID:
			assert.Equal(t, "70.00", a.Credit.StringFixed(2))
		}
	}
}
