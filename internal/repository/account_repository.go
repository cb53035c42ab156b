package repository

import (
	"context"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for chart-of-accounts data access
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uint) (*models.Account, error)
	FindByCode(ctx context.Context, code string) (*models.Account, error)
	FindAll(ctx context.Context) ([]models.Account, error)
	List(ctx context.Context, query *ListQuery) ([]models.Account, int64, error)
	IsReferenced(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	account.TenantID = tid
	return translate(db.Create(account).Error)
}

// Update writes the descriptive fields only. Balances move exclusively
// through posted entries.
func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Select("Name", "Type", "Category", "ParentID", "IsActive", "AllowPosting").
		Updates(account)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := db.First(&account, id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) FindByCode(ctx context.Context, code string) (*models.Account, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := db.Where("code = ?", code).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) FindAll(ctx context.Context) ([]models.Account, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var accounts []models.Account
	err = db.Order("code ASC").Find(&accounts).Error
	return accounts, err
}

var accountSortable = map[string]bool{"code": true, "name": true, "type": true, "balance": true, "created_at": true}

func (r *accountRepository) List(ctx context.Context, query *ListQuery) ([]models.Account, int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	var accounts []models.Account
	var total int64

	db = db.Model(&models.Account{})

	// Apply search
	if query.Search != "" {
		search := likePattern(query.Search)
		db = db.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", search, search)
	}

	if query.Filters["type"] != "" {
		db = db.Where("type = ?", query.Filters["type"])
	}
	if query.Filters["category"] != "" {
		db = db.Where("category = ?", query.Filters["category"])
	}
	if query.Filters["active"] != "" {
		db = db.Where("is_active = ?", query.Filters["active"] == "true")
	}

	// Count total
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err = paginate(db, query, accountSortable, "code ASC").Find(&accounts).Error
	return accounts, total, err
}

// IsReferenced reports whether any entry line or sub-account points at the account
func (r *accountRepository) IsReferenced(ctx context.Context, id uint) (bool, error) {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return false, err
	}

	var lines int64
	err = r.db.WithContext(ctx).
		Model(&models.JournalEntryLine{}).
		Joins("JOIN journal_entries ON journal_entries.id = journal_entry_lines.entry_id").
		Where("journal_entries.tenant_id = ? AND journal_entry_lines.account_id = ?", tid, id).
		Count(&lines).Error
	if err != nil {
		return false, err
	}
	if lines > 0 {
		return true, nil
	}

	var children int64
	if err := db.Model(&models.Account{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
		return false, err
	}
	return children > 0, nil
}

func (r *accountRepository) Delete(ctx context.Context, id uint) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Delete(&models.Account{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
