package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrectionLog is a reconciliation finding and its resolution
type CorrectionLog struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TenantID          string          `gorm:"size:64;not null;uniqueIndex:idx_corrections_finding" json:"tenant_id"`
	FindingKey        string          `gorm:"size:191;not null;uniqueIndex:idx_corrections_finding" json:"finding_key"`
	DetectedAt        time.Time       `gorm:"not null;index" json:"detected_at"`
	ErrorType         string          `gorm:"size:40;not null;index" json:"error_type"`
	Severity          string          `gorm:"size:20;not null" json:"severity"`
	Description       string          `gorm:"type:text" json:"description"`
	AffectedEntryIDs  []uint          `gorm:"type:text;serializer:json" json:"affected_entry_ids"`
	Variance          decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"variance"`
	Similarity        float64         `gorm:"not null" json:"similarity"`
	Status            string          `gorm:"size:20;not null;index" json:"status"`
	AutoFixApplied    bool            `gorm:"not null" json:"auto_fix_applied"`
	ManualFixRequired bool            `gorm:"not null" json:"manual_fix_required"`
	ResolvedBy        *uint           `json:"resolved_by"`
	ResolvedAt        *time.Time      `json:"resolved_at"`
	ResolutionNotes   string          `gorm:"type:text" json:"resolution_notes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for CorrectionLog
func (CorrectionLog) TableName() string {
	return "correction_logs"
}

// Correction error types
const (
	CorrectionTypeDuplicateEntry  = "duplicate_entry"
	CorrectionTypeUnbalancedEntry = "unbalanced_entry"
)

// Correction status constants
const (
	CorrectionStatusDetected  = "detected"
	CorrectionStatusReviewing = "reviewing"
	CorrectionStatusFixed     = "fixed"
	CorrectionStatusIgnored   = "ignored"
)

// Severity constants
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var (
	varianceCritical = decimal.NewFromInt(10000)
	varianceHigh     = decimal.NewFromInt(1000)
	varianceMedium   = decimal.NewFromInt(100)
)

// SeverityForVariance grades an imbalance by its absolute size
func SeverityForVariance(v decimal.Decimal) string {
	v = v.Abs()
	switch {
	case v.GreaterThanOrEqual(varianceCritical):
		return SeverityCritical
	case v.GreaterThanOrEqual(varianceHigh):
		return SeverityHigh
	case v.GreaterThanOrEqual(varianceMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MayStartReview returns true if an operator can pick the finding up
func (c *CorrectionLog) MayStartReview() bool {
	return c.Status == CorrectionStatusDetected
}

// MayResolve returns true if the finding can be closed as fixed or ignored
func (c *CorrectionLog) MayResolve() bool {
	return c.Status == CorrectionStatusDetected || c.Status == CorrectionStatusReviewing
}

// IsOpen returns true while the finding still needs attention
func (c *CorrectionLog) IsOpen() bool {
	return c.MayResolve()
}
