package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceChange tells a status mutation what to do with account balances
type BalanceChange int

const (
	BalanceUnchanged BalanceChange = iota
	BalanceApply
	BalanceRevert
)

// EntryCursor is a keyset position in (entry_date, id) order
type EntryCursor struct {
	Date time.Time
	ID   uint
}

// AccountActivity is the posted debit and credit volume on one account
type AccountActivity struct {
	AccountID uint
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// LedgerRepository defines the interface for journal entry data access
type LedgerRepository interface {
	CreateWithLines(ctx context.Context, entry *models.JournalEntry, review *models.JournalEntryReview) error
	FindByID(ctx context.Context, id uint) (*models.JournalEntry, error)
	FindByReference(ctx context.Context, referenceType, referenceID string) (*models.JournalEntry, error)
	List(ctx context.Context, query *ListQuery) ([]models.JournalEntry, int64, error)
	UpdateStatus(ctx context.Context, id uint, fn func(entry *models.JournalEntry) (BalanceChange, error)) (*models.JournalEntry, error)
	ScanPage(ctx context.Context, after EntryCursor, limit int, statuses []string) ([]models.JournalEntry, error)
	FixTotals(ctx context.Context, id uint) (*models.JournalEntry, bool, error)
	PostedActivity(ctx context.Context) ([]AccountActivity, error)
	CountLines(ctx context.Context) (int64, error)
	DistinctTenants(ctx context.Context) ([]string, error)
}

// ledgerRepository handles database operations for journal entries and lines
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC")
}

// CreateWithLines validates and inserts an entry, its lines and optionally
// its review in one transaction. Posted entries move account balances in the
// same transaction. A second entry for the same reference returns
// ErrDuplicateKey and leaves nothing behind.
func (r *ledgerRepository) CreateWithLines(ctx context.Context, entry *models.JournalEntry, review *models.JournalEntryReview) error {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	entry.TenantID = tid

	if err := entry.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := loadLineAccounts(tx, tid, entry.Lines)
		if err != nil {
			return err
		}
		for i := range entry.Lines {
			entry.Lines[i].AccountCode = accounts[entry.Lines[i].AccountID].Code
		}

		if err := tx.Create(entry).Error; err != nil {
			return translate(err)
		}

		if review != nil {
			review.TenantID = tid
			review.EntryID = entry.ID
			if err := tx.Create(review).Error; err != nil {
				return translate(err)
			}
			opened := &models.ReviewEvent{
				TenantID: tid,
				ReviewID: review.ID,
				Action:   models.ReviewActionOpened,
				ToStatus: review.Status,
			}
			if entry.CreatedBy != nil {
				opened.ReviewerID = *entry.CreatedBy
			}
			if err := tx.Create(opened).Error; err != nil {
				return err
			}
		}

		if entry.AffectsBalances() {
			return applyBalances(tx, entry, accounts, BalanceApply)
		}
		return nil
	})
}

// loadLineAccounts fetches every account the lines reference, within the tenant
func loadLineAccounts(tx *gorm.DB, tenantID string, lines []models.JournalEntryLine) (map[uint]models.Account, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}

	var accounts []models.Account
	if err := tx.Scopes(byTenant(tenantID)).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for _, l := range lines {
		if _, ok := byID[l.AccountID]; !ok {
			return nil, fmt.Errorf("line %d account %d: %w", l.LineNumber, l.AccountID, ErrNotFound)
		}
	}
	return byID, nil
}

// applyBalances moves each referenced account by the lines' net effect.
// Accounts are updated in id order so concurrent postings lock in the same order.
func applyBalances(tx *gorm.DB, entry *models.JournalEntry, accounts map[uint]models.Account, change BalanceChange) error {
	if change == BalanceUnchanged {
		return nil
	}

	deltas := make(map[uint]decimal.Decimal)
	for _, l := range entry.Lines {
		acc := accounts[l.AccountID]
		effect := acc.BalanceEffect(l.DebitAmount, l.CreditAmount)
		if change == BalanceRevert {
			effect = effect.Neg()
		}
		deltas[l.AccountID] = deltas[l.AccountID].Add(effect)
	}

	ids := make([]uint, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		err := tx.Model(&models.Account{}).
			Where("id = ?", id).
			UpdateColumn("balance", gorm.Expr("balance + ?", deltas[id])).Error
		if err != nil {
			return fmt.Errorf("failed to update balance of account %d: %w", id, err)
		}
	}
	return nil
}

func (r *ledgerRepository) FindByID(ctx context.Context, id uint) (*models.JournalEntry, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var entry models.JournalEntry
	if err := db.Preload("Lines", orderedLines).First(&entry, id).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *ledgerRepository) FindByReference(ctx context.Context, referenceType, referenceID string) (*models.JournalEntry, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var entry models.JournalEntry
	err = db.Preload("Lines", orderedLines).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

var entrySortable = map[string]bool{"entry_date": true, "total_debit": true, "status": true, "created_at": true}

func (r *ledgerRepository) List(ctx context.Context, query *ListQuery) ([]models.JournalEntry, int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	var entries []models.JournalEntry
	var total int64

	db = db.Model(&models.JournalEntry{})

	if query.Search != "" {
		search := likePattern(query.Search)
		db = db.Where("(LOWER(description) LIKE ? OR LOWER(reference_id) LIKE ?)", search, search)
	}
	if query.Filters["status"] != "" {
		db = db.Where("status = ?", query.Filters["status"])
	}
	if query.Filters["review_status"] != "" {
		db = db.Where("review_status = ?", query.Filters["review_status"])
	}
	if query.Filters["reference_type"] != "" {
		db = db.Where("reference_type = ?", query.Filters["reference_type"])
	}
	if query.Filters["rule_id"] != "" {
		db = db.Where("rule_id = ?", query.Filters["rule_id"])
	}
	if query.Filters["from"] != "" {
		db = db.Where("entry_date >= ?", query.Filters["from"])
	}
	if query.Filters["to"] != "" {
		db = db.Where("entry_date <= ?", query.Filters["to"])
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err = paginate(db, query, entrySortable, "entry_date DESC, id DESC").Find(&entries).Error
	return entries, total, err
}

// UpdateStatus loads the entry with its lines under a row lock, lets fn
// mutate it, then persists the header and the requested balance change
// atomically.
func (r *ledgerRepository) UpdateStatus(ctx context.Context, id uint, fn func(entry *models.JournalEntry) (BalanceChange, error)) (*models.JournalEntry, error) {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var entry models.JournalEntry
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEntry(tx, tid, id, &entry); err != nil {
			return err
		}

		change, err := fn(&entry)
		if err != nil {
			return err
		}
		return saveEntry(tx, tid, &entry, change)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func lockEntry(tx *gorm.DB, tenantID string, id uint, entry *models.JournalEntry) error {
	err := tx.Scopes(byTenant(tenantID)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lines", orderedLines).
		First(entry, id).Error
	return translate(err)
}

// saveEntry writes the mutable header fields and applies change to balances
func saveEntry(tx *gorm.DB, tenantID string, entry *models.JournalEntry, change BalanceChange) error {
	if change == BalanceApply {
		// Posting is where an imbalance would become authoritative.
		if err := entry.Validate(); err != nil {
			return err
		}
	}

	err := tx.Model(entry).
		Select("Status", "ReviewStatus", "Description", "PostedAt", "ReversedAt", "RejectedAt", "UpdatedAt").
		Updates(entry).Error
	if err != nil {
		return err
	}

	if change == BalanceUnchanged {
		return nil
	}
	accounts, err := loadLineAccounts(tx, tenantID, entry.Lines)
	if err != nil {
		return err
	}
	return applyBalances(tx, entry, accounts, change)
}

// ScanPage returns up to limit entries after the cursor in (entry_date, id)
// order. Lines are not loaded.
func (r *ledgerRepository) ScanPage(ctx context.Context, after EntryCursor, limit int, statuses []string) ([]models.JournalEntry, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}

	db = db.Where("(entry_date > ? OR (entry_date = ? AND id > ?))", after.Date, after.Date, after.ID)
	if len(statuses) > 0 {
		db = db.Where("status IN ?", statuses)
	}

	var entries []models.JournalEntry
	err = db.Order("entry_date ASC, id ASC").Limit(limit).Find(&entries).Error
	return entries, err
}

// FixTotals recomputes the header totals from the line sums when the lines
// balance. It reports false and writes nothing when they do not.
func (r *ledgerRepository) FixTotals(ctx context.Context, id uint) (*models.JournalEntry, bool, error) {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return nil, false, err
	}

	var entry models.JournalEntry
	fixed := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEntry(tx, tid, id, &entry); err != nil {
			return err
		}

		debit, credit := entry.LineTotals()
		if len(entry.Lines) < 2 || !debit.Equal(credit) {
			return nil
		}

		entry.TotalDebit, entry.TotalCredit = debit, credit
		fixed = true
		return tx.Model(&entry).
			Select("TotalDebit", "TotalCredit", "UpdatedAt").
			Updates(&entry).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &entry, fixed, nil
}

// PostedActivity sums the lines of posted entries per account
func (r *ledgerRepository) PostedActivity(ctx context.Context) ([]AccountActivity, error) {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rows []AccountActivity
	err = r.db.WithContext(ctx).
		Model(&models.JournalEntryLine{}).
		Select("journal_entry_lines.account_id AS account_id, "+
			"COALESCE(SUM(journal_entry_lines.debit_amount), 0) AS debit, "+
			"COALESCE(SUM(journal_entry_lines.credit_amount), 0) AS credit").
		Joins("JOIN journal_entries ON journal_entries.id = journal_entry_lines.entry_id").
		Where("journal_entries.tenant_id = ? AND journal_entries.status = ?", tid, models.EntryStatusPosted).
		Group("journal_entry_lines.account_id").
		Order("journal_entry_lines.account_id").
		Scan(&rows).Error
	return rows, err
}

// CountLines counts every line the tenant has written
func (r *ledgerRepository) CountLines(ctx context.Context) (int64, error) {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.db.WithContext(ctx).
		Model(&models.JournalEntryLine{}).
		Joins("JOIN journal_entries ON journal_entries.id = journal_entry_lines.entry_id").
		Where("journal_entries.tenant_id = ?", tid).
		Count(&n).Error
	return n, err
}

// DistinctTenants lists every tenant with at least one entry
func (r *ledgerRepository) DistinctTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).
		Model(&models.JournalEntry{}).
		Distinct("tenant_id").
		Order("tenant_id").
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}
