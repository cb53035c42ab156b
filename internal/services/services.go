package services

import (
	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/config"
	"github.com/sjperalta/fintera-ledger/internal/jobs"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/storage"
)

// Services holds all service instances
type Services struct {
	Account        *AccountService
	Rule           *RuleService
	Ledger         *LedgerService
	Review         *ReviewService
	Reconciliation *ReconciliationService
	Audit          *AuditService
	Export         *ExportService
	Job            *JobService
	Engine         *automation.Engine
}

// NewServices creates all service instances around an already built engine.
// The scheduler is attached later with Rule.SetScheduler.
func NewServices(
	repos *repository.Repositories,
	engine *automation.Engine,
	store storage.Store,
	notifier alerting.Notifier,
	worker *jobs.Worker,
	cfg *config.Config,
	c clock.Clock,
) *Services {
	if c == nil {
		c = clock.System()
	}
	auditSvc := NewAuditService(repos.Audit)
	reconciliationSvc := NewReconciliationService(repos.Ledger, repos.Correction, auditSvc, notifier, c, cfg.Reconciliation)

	return &Services{
		Account:        NewAccountService(repos.Account, repos.Ledger, auditSvc),
		Rule:           NewRuleService(repos.Rule, repos.Account, engine, auditSvc),
		Ledger:         NewLedgerService(repos.Ledger, repos.Account, auditSvc, c),
		Review:         NewReviewService(repos.Review, store, auditSvc, c),
		Reconciliation: reconciliationSvc,
		Audit:          auditSvc,
		Export:         NewExportService(repos.Correction, repos.Ledger, repos.Account, c),
		Job:            NewJobService(worker, reconciliationSvc),
		Engine:         engine,
	}
}
