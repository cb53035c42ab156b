package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Account      AccountRepository
	Rule         RuleRepository
	Ledger       LedgerRepository
	Review       ReviewRepository
	ExecutionLog ExecutionLogRepository
	Correction   CorrectionRepository
	Audit        AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:      NewAccountRepository(db),
		Rule:         NewRuleRepository(db),
		Ledger:       NewLedgerRepository(db),
		Review:       NewReviewRepository(db),
		ExecutionLog: NewExecutionLogRepository(db),
		Correction:   NewCorrectionRepository(db),
		Audit:        NewAuditRepository(db),
	}
}
