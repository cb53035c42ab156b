package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
)

// RuleRepository defines the interface for automation rule data access
type RuleRepository interface {
	Create(ctx context.Context, rule *models.AutomationRule) error
	Update(ctx context.Context, rule *models.AutomationRule) error
	FindByID(ctx context.Context, id uint) (*models.AutomationRule, error)
	FindByName(ctx context.Context, name string) (*models.AutomationRule, error)
	List(ctx context.Context, query *ListQuery) ([]models.AutomationRule, int64, error)
	Delete(ctx context.Context, id uint) error
	FindActiveByTrigger(ctx context.Context, trigger string) ([]models.AutomationRule, error)
	FindAllActiveScheduled(ctx context.Context) ([]models.AutomationRule, error)
	RecordOutcome(ctx context.Context, id uint, success bool, at time.Time) error
	SetNextExecution(ctx context.Context, id uint, next *time.Time) error
}

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	rule.TenantID = tid
	return translate(db.Create(rule).Error)
}

// Update writes the configurable fields. Counters and execution timestamps
// belong to the execution tracker and are never written here.
func (r *ruleRepository) Update(ctx context.Context, rule *models.AutomationRule) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Model(&models.AutomationRule{}).
		Where("id = ?", rule.ID).
		Select("Name", "Description", "TriggerEvent", "Conditions", "AccountMappings",
			"IsActive", "RequiresReview", "Priority", "Schedule").
		Updates(rule)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ruleRepository) FindByID(ctx context.Context, id uint) (*models.AutomationRule, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rule models.AutomationRule
	if err := db.First(&rule, id).Error; err != nil {
		return nil, translate(err)
	}
	return &rule, nil
}

func (r *ruleRepository) FindByName(ctx context.Context, name string) (*models.AutomationRule, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rule models.AutomationRule
	if err := db.Where("name = ?", name).First(&rule).Error; err != nil {
		return nil, translate(err)
	}
	return &rule, nil
}

var ruleSortable = map[string]bool{"name": true, "priority": true, "trigger_event": true, "last_executed_at": true, "created_at": true}

func (r *ruleRepository) List(ctx context.Context, query *ListQuery) ([]models.AutomationRule, int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	var rules []models.AutomationRule
	var total int64

	db = db.Model(&models.AutomationRule{})

	if query.Search != "" {
		db = db.Where("LOWER(name) LIKE ?", likePattern(query.Search))
	}
	if query.Filters["trigger_event"] != "" {
		db = db.Where("trigger_event = ?", query.Filters["trigger_event"])
	}
	if query.Filters["active"] != "" {
		db = db.Where("is_active = ?", query.Filters["active"] == "true")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err = paginate(db, query, ruleSortable, "priority DESC, id ASC").Find(&rules).Error
	return rules, total, err
}

func (r *ruleRepository) Delete(ctx context.Context, id uint) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Delete(&models.AutomationRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindActiveByTrigger returns the tenant's active rules for a trigger,
// highest priority first.
func (r *ruleRepository) FindActiveByTrigger(ctx context.Context, trigger string) ([]models.AutomationRule, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var rules []models.AutomationRule
	err = db.Where("trigger_event = ? AND is_active = ?", trigger, true).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	return rules, err
}

// FindAllActiveScheduled returns active scheduled rules across every tenant.
// Only the scheduler calls this; each rule carries its own tenant.
func (r *ruleRepository) FindAllActiveScheduled(ctx context.Context) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND schedule IS NOT NULL AND schedule <> ''", true).
		Order("tenant_id ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

// RecordOutcome bumps the exact counters in a single statement so
// concurrent executions never lose an increment.
func (r *ruleRepository) RecordOutcome(ctx context.Context, id uint, success bool, at time.Time) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"execution_count":  gorm.Expr("execution_count + 1"),
		"last_executed_at": at.UTC(),
		"updated_at":       at.UTC(),
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}
	return db.Model(&models.AutomationRule{}).Where("id = ?", id).UpdateColumns(updates).Error
}

func (r *ruleRepository) SetNextExecution(ctx context.Context, id uint, next *time.Time) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	return db.Model(&models.AutomationRule{}).Where("id = ?", id).UpdateColumn("next_execution_at", next).Error
}
