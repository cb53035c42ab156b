package models

import (
	"time"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"size:64;not null;index" json:"tenant_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"` // 0 for automated actions
	Action    string    `gorm:"size:50;not null" json:"action"` // CREATE, UPDATE, DELETE, POST, APPROVE
	Entity    string    `gorm:"size:50;not null" json:"entity"` // Account, AutomationRule, JournalEntry, etc.
	EntityID  uint      `json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// All returns every persisted model, in dependency order, for migrations and tests
func All() []any {
	return []any{
		&Account{},
		&AutomationRule{},
		&JournalEntry{},
		&JournalEntryLine{},
		&RuleExecutionLog{},
		&JournalEntryReview{},
		&ReviewEvent{},
		&CorrectionLog{},
		&AuditLog{},
	}
}
