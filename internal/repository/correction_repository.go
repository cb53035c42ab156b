package repository

import (
	"context"
	"errors"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
)

// CorrectionRepository defines the interface for reconciliation findings
type CorrectionRepository interface {
	Record(ctx context.Context, finding *models.CorrectionLog) (bool, error)
	FindByID(ctx context.Context, id uint) (*models.CorrectionLog, error)
	List(ctx context.Context, query *ListQuery) ([]models.CorrectionLog, int64, error)
	Update(ctx context.Context, finding *models.CorrectionLog) error
}

type correctionRepository struct {
	db *gorm.DB
}

// NewCorrectionRepository creates a new correction log repository
func NewCorrectionRepository(db *gorm.DB) CorrectionRepository {
	return &correctionRepository{db: db}
}

// Record inserts a finding unless one with the same key already exists for
// the tenant, in which case finding is overwritten with the stored row and
// false is returned.
func (r *correctionRepository) Record(ctx context.Context, finding *models.CorrectionLog) (bool, error) {
	db, tid, err := scoped(ctx, r.db)
	if err != nil {
		return false, err
	}
	finding.TenantID = tid

	err = db.Create(finding).Error
	if err == nil {
		return true, nil
	}
	if err = translate(err); !errors.Is(err, ErrDuplicateKey) {
		return false, err
	}

	existing, _, err := scoped(ctx, r.db)
	if err != nil {
		return false, err
	}
	key := finding.FindingKey
	*finding = models.CorrectionLog{}
	if err := existing.Where("finding_key = ?", key).First(finding).Error; err != nil {
		return false, translate(err)
	}
	return false, nil
}

func (r *correctionRepository) FindByID(ctx context.Context, id uint) (*models.CorrectionLog, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var finding models.CorrectionLog
	if err := db.First(&finding, id).Error; err != nil {
		return nil, translate(err)
	}
	return &finding, nil
}

var correctionSortable = map[string]bool{"detected_at": true, "severity": true, "status": true, "variance": true}

func (r *correctionRepository) List(ctx context.Context, query *ListQuery) ([]models.CorrectionLog, int64, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	var findings []models.CorrectionLog
	var total int64

	db = db.Model(&models.CorrectionLog{})

	if query.Filters["error_type"] != "" {
		db = db.Where("error_type = ?", query.Filters["error_type"])
	}
	if query.Filters["status"] != "" {
		db = db.Where("status = ?", query.Filters["status"])
	}
	if query.Filters["severity"] != "" {
		db = db.Where("severity = ?", query.Filters["severity"])
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err = paginate(db, query, correctionSortable, "detected_at DESC, id DESC").Find(&findings).Error
	return findings, total, err
}

// Update persists operator-facing resolution fields
func (r *correctionRepository) Update(ctx context.Context, finding *models.CorrectionLog) error {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return err
	}
	res := db.Model(&models.CorrectionLog{}).
		Where("id = ?", finding.ID).
		Select("Status", "AutoFixApplied", "ManualFixRequired", "ResolvedBy", "ResolvedAt", "ResolutionNotes", "UpdatedAt").
		Updates(finding)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
