package repository

import (
	"context"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
)

// AuditRepository records and lists audit trail rows
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	log.TenantID = tid
	return db.Create(log).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	var logs []models.AuditLog
	var total int64

	db = db.Model(&models.AuditLog{})
	if query.Filters["entity"] != "" {
		db = db.Where("entity = ?", query.Filters["entity"])
	}
	if query.Filters["action"] != "" {
		db = db.Where("action = ?", query.Filters["action"])
	}
	if query.Filters["user_id"] != "" {
		db = db.Where("user_id = ?", query.Filters["user_id"])
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err = paginate(db, query, map[string]bool{"created_at": true}, "created_at DESC").Find(&logs).Error
	return logs, total, err
}
