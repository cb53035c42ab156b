package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AutomationRule maps a business trigger onto a balanced journal posting
type AutomationRule struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TenantID        string          `gorm:"size:64;not null;index:idx_rules_tenant_trigger" json:"tenant_id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	TriggerEvent    string          `gorm:"size:40;not null;index:idx_rules_tenant_trigger" json:"trigger_event"`
	Conditions      Conditions      `gorm:"type:text;serializer:json" json:"conditions"`
	AccountMappings AccountMappings `gorm:"type:text;serializer:json" json:"account_mappings"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
	RequiresReview  bool            `gorm:"not null" json:"requires_review"`
	Priority        int             `gorm:"not null" json:"priority"`
	Schedule        string          `gorm:"size:20" json:"schedule,omitempty"`
	ExecutionCount  int64           `gorm:"not null" json:"execution_count"`
	SuccessCount    int64           `gorm:"not null" json:"success_count"`
	FailureCount    int64           `gorm:"not null" json:"failure_count"`
	LastExecutedAt  *time.Time      `json:"last_executed_at"`
	NextExecutionAt *time.Time      `json:"next_execution_at"`
	CreatedBy       *uint           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for AutomationRule
func (AutomationRule) TableName() string {
	return "automation_rules"
}

// Trigger event constants
const (
	TriggerContractCreated    = "contract_created"
	TriggerContractCompleted  = "contract_completed"
	TriggerPaymentReceived    = "payment_received"
	TriggerInvoiceGenerated   = "invoice_generated"
	TriggerVehicleMaintenance = "vehicle_maintenance"
	TriggerFuelPurchase       = "fuel_purchase"
	TriggerScheduled          = "scheduled"
	TriggerManual             = "manual_trigger"
	TriggerPeriodEnd          = "period_end"
)

// Triggers is the closed set of trigger events a rule may listen to
var Triggers = []string{
	TriggerContractCreated,
	TriggerContractCompleted,
	TriggerPaymentReceived,
	TriggerInvoiceGenerated,
	TriggerVehicleMaintenance,
	TriggerFuelPurchase,
	TriggerScheduled,
	TriggerManual,
	TriggerPeriodEnd,
}

// IsValidTrigger reports whether t is one of Triggers
func IsValidTrigger(t string) bool {
	for _, v := range Triggers {
		if v == t {
			return true
		}
	}
	return false
}

// Schedule constants
const (
	ScheduleOneTime   = "one_time"
	ScheduleDaily     = "daily"
	ScheduleWeekly    = "weekly"
	ScheduleMonthly   = "monthly"
	ScheduleQuarterly = "quarterly"
	ScheduleYearly    = "yearly"
)

// ScheduleIntervals maps schedule types onto fixed polling intervals. There
// is no calendar alignment: "monthly" means every 30 days from start-up.
var ScheduleIntervals = map[string]time.Duration{
	ScheduleOneTime:   0,
	ScheduleDaily:     24 * time.Hour,
	ScheduleWeekly:    7 * 24 * time.Hour,
	ScheduleMonthly:   30 * 24 * time.Hour,
	ScheduleQuarterly: 90 * 24 * time.Hour,
	ScheduleYearly:    365 * 24 * time.Hour,
}

// IsValidSchedule reports whether s is empty or a known schedule type
func IsValidSchedule(s string) bool {
	if s == "" {
		return true
	}
	_, ok := ScheduleIntervals[s]
	return ok
}

// IsScheduled returns true if the scheduler owns a timer for this rule
func (r *AutomationRule) IsScheduled() bool {
	return r.Schedule != ""
}

// SuccessRate is derived from the exact counters, as a percentage
func (r *AutomationRule) SuccessRate() float64 {
	if r.ExecutionCount == 0 {
		return 0
	}
	return float64(r.SuccessCount) * 100 / float64(r.ExecutionCount)
}

// Condition keys with range semantics
const (
	ConditionAmountRange = "amount_range"
	ConditionAmount      = "amount"
)

// Conditions is a flat field -> expected value map, ANDed together.
// Bounds on the amount are written {"min": x, "max": y} under amount_range,
// or under amount itself.
type Conditions map[string]any

// IsAmountRange reports whether the condition is a numeric range on the amount
func IsAmountRange(key string, value any) bool {
	if key == ConditionAmountRange {
		return true
	}
	_, bounds := value.(map[string]any)
	return key == ConditionAmount && bounds
}

// AccountMappings tells the synthesizer which accounts a rule posts to
type AccountMappings struct {
	DebitAccount        string           `json:"debit_account" yaml:"debit_account" validate:"required,max=32"`
	CreditAccount       string           `json:"credit_account" yaml:"credit_account" validate:"required,max=32,nefield=DebitAccount"`
	DescriptionTemplate string           `json:"description_template,omitempty" yaml:"description_template"`
	AmountField         string           `json:"amount_field,omitempty" yaml:"amount_field"`
	FixedAmount         *decimal.Decimal `json:"fixed_amount,omitempty" yaml:"-"`
	AdditionalLines     []MappingLine    `json:"additional_lines,omitempty" yaml:"additional_lines" validate:"dive"`
}

// MappingLine is an extra debit/credit pair of a compound posting, funded by
// its own payload amount field (tax, deposit, fees).
type MappingLine struct {
	DebitAccount  string `json:"debit_account" yaml:"debit_account" validate:"required,max=32"`
	CreditAccount string `json:"credit_account" yaml:"credit_account" validate:"required,max=32,nefield=DebitAccount"`
	AmountField   string `json:"amount_field" yaml:"amount_field" validate:"required"`
	Description   string `json:"description,omitempty" yaml:"description"`
}

// PrimaryAmountField is the payload field that funds the main line pair
func (m AccountMappings) PrimaryAmountField() string {
	if m.AmountField == "" {
		return "amount"
	}
	return m.AmountField
}

// AccountCodes lists every account code referenced by the mapping
func (m AccountMappings) AccountCodes() []string {
	codes := []string{m.DebitAccount, m.CreditAccount}
	for _, l := range m.AdditionalLines {
		codes = append(codes, l.DebitAccount, l.CreditAccount)
	}
	return codes
}
