package services

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-ledger/internal/jobs"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
)

const (
	JobReconcileAll     = "reconcile_all_tenants"
	JobReconcileTenant  = "reconcile_tenant"
	JobRefreshScheduler = "refresh_scheduler"
)

type JobService struct {
	worker         *jobs.Worker
	reconciliation *ReconciliationService
}

func NewJobService(worker *jobs.Worker, reconciliation *ReconciliationService) *JobService {
	return &JobService{
		worker:         worker,
		reconciliation: reconciliation,
	}
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
	}
}

// ScheduleReconciliation runs both scans over every tenant each interval.
// A non-positive interval disables the recurring job.
func (s *JobService) ScheduleReconciliation(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.worker.ScheduleEvery(JobReconcileAll, interval, s.reconciliation.RunAllTenants)
}

// ScheduleSchedulerRefresh re-reads scheduled rules so that rules changed by
// other instances get armed here too.
func (s *JobService) ScheduleSchedulerRefresh(interval time.Duration, refresher ScheduleRefresher) {
	if interval <= 0 || refresher == nil {
		return
	}
	s.worker.ScheduleEvery(JobRefreshScheduler, interval, refresher.Refresh)
}

// ReconcileTenantAsync queues both scans for the context tenant and returns
// immediately.
func (s *JobService) ReconcileTenantAsync(ctx context.Context) error {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	s.worker.EnqueueAsync(JobReconcileTenant, func(jobCtx context.Context) error {
		jobCtx = tenant.WithTenantID(jobCtx, tid)
		if _, err := s.reconciliation.DetectDuplicateEntries(jobCtx); err != nil {
			return err
		}
		_, err := s.reconciliation.DetectUnbalancedEntries(jobCtx)
		return err
	})
	return nil
}
