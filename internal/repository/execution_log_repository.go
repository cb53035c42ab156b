package repository

import (
	"context"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
)

// ExecutionLogRepository appends and reads rule execution logs
type ExecutionLogRepository interface {
	Append(ctx context.Context, log *models.RuleExecutionLog) error
	History(ctx context.Context, ruleID *uint, limit int) ([]models.RuleExecutionLog, error)
	CountByReference(ctx context.Context, ruleID uint, referenceType, referenceID string) (int64, error)
}

type executionLogRepository struct {
	db *gorm.DB
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

func (r *executionLogRepository) Append(ctx context.Context, log *models.RuleExecutionLog) error {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	log.TenantID = tid
	return db.Create(log).Error
}

// History returns the newest logs first, for one rule or for every rule
func (r *executionLogRepository) History(ctx context.Context, ruleID *uint, limit int) ([]models.RuleExecutionLog, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if ruleID != nil {
		db = db.Where("rule_id = ?", *ruleID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	var logs []models.RuleExecutionLog
	err = db.Order("executed_at DESC, id DESC").Find(&logs).Error
	return logs, err
}

func (r *executionLogRepository) CountByReference(ctx context.Context, ruleID uint, referenceType, referenceID string) (int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(&models.RuleExecutionLog{}).
		Where("rule_id = ? AND reference_type = ? AND reference_id = ?", ruleID, referenceType, referenceID).
		Count(&n).Error
	return n, err
}
