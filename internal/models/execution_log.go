package models

import "time"

// RuleExecutionLog records one attempt of a rule. Rows are append-only.
type RuleExecutionLog struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TenantID       string         `gorm:"size:64;not null;index:idx_execution_logs_tenant_rule" json:"tenant_id"`
	RuleID         uint           `gorm:"not null;index:idx_execution_logs_tenant_rule" json:"rule_id"`
	TriggerEvent   string         `gorm:"size:40;not null" json:"trigger_event"`
	ReferenceType  string         `gorm:"size:64;not null" json:"reference_type"`
	ReferenceID    string         `gorm:"size:191;not null;index" json:"reference_id"`
	Status         string         `gorm:"size:20;not null;index" json:"status"`
	JournalEntryID *uint          `gorm:"index" json:"journal_entry_id"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message"`
	DurationMs     int64          `gorm:"not null" json:"duration_ms"`
	InputData      map[string]any `gorm:"type:text;serializer:json" json:"input_data"`
	OutputData     map[string]any `gorm:"type:text;serializer:json" json:"output_data"`
	ExecutedAt     time.Time      `gorm:"not null;index" json:"executed_at"`
}

// TableName specifies the table name for RuleExecutionLog
func (RuleExecutionLog) TableName() string {
	return "rule_execution_logs"
}

// Execution status constants
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// Duration returns DurationMs as a time.Duration
func (l *RuleExecutionLog) Duration() time.Duration {
	return time.Duration(l.DurationMs) * time.Millisecond
}
