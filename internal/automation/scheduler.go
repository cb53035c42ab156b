package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/lock"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/observability/metrics"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// ScheduledRuleStore lists the rules the scheduler owns timers for
type ScheduledRuleStore interface {
	FindAllActiveScheduled(ctx context.Context) ([]models.AutomationRule, error)
	SetNextExecution(ctx context.Context, id uint, next *time.Time) error
}

// ScheduledExecutor runs one tick of a scheduled rule
type ScheduledExecutor interface {
	ExecuteScheduled(ctx context.Context, rule models.AutomationRule, at time.Time, reference string) (Result, error)
}

// Scheduler owns one timer per active scheduled rule. Schedules are fixed
// intervals counted from when the timer was armed; "monthly" is every 30
// days, not the first of the month.
type Scheduler struct {
	rules   ScheduledRuleStore
	exec    ScheduledExecutor
	clock   clock.Clock
	locker  lock.Locker
	logger  *slog.Logger
	lockTTL time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[uint]*ruleTimer
	wg      sync.WaitGroup
}

type ruleTimer struct {
	rule   models.AutomationRule
	ticker clock.Ticker
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler. A nil locker means ticks are
// only deduplicated by entry references.
func NewScheduler(rules ScheduledRuleStore, exec ScheduledExecutor, c clock.Clock, locker lock.Locker, log *slog.Logger) *Scheduler {
	if c == nil {
		c = clock.System()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if log == nil {
		log = logger.With("scheduler")
	}
	return &Scheduler{
		rules:   rules,
		exec:    exec,
		clock:   c,
		locker:  locker,
		logger:  log,
		lockTTL: time.Minute,
		timers:  make(map[uint]*ruleTimer),
	}
}

// SetLockTTL sets how long a tick lock is held at most
func (s *Scheduler) SetLockTTL(d time.Duration) {
	if d > 0 {
		s.lockTTL = d
	}
}

// Start arms a timer for every active scheduled rule. Timers exist when
// Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	rules, err := s.rules.FindAllActiveScheduled(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("automation: scheduler already running")
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	for _, rule := range rules {
		s.armLocked(rule)
	}
	metrics.SetScheduledRules(len(s.timers))
	s.logger.Info("Scheduler started", "rules", len(s.timers))
	return nil
}

// Stop cancels every timer and waits for in-flight ticks. No execution
// starts after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for id, t := range s.timers {
		s.disarmLocked(id, t)
	}
	s.mu.Unlock()

	s.wg.Wait()
	metrics.SetScheduledRules(0)
	s.logger.Info("Scheduler stopped")
}

// Refresh reconciles the armed timers with the stored rules: new rules are
// armed, removed or disabled ones disarmed, changed schedules re-armed.
func (s *Scheduler) Refresh(ctx context.Context) error {
	rules, err := s.rules.FindAllActiveScheduled(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerStopped
	}

	wanted := make(map[uint]models.AutomationRule, len(rules))
	for _, rule := range rules {
		wanted[rule.ID] = rule
	}
	for id, t := range s.timers {
		rule, ok := wanted[id]
		if !ok || rule.Schedule != t.rule.Schedule {
			s.disarmLocked(id, t)
			continue
		}
		// Keep the running timer but pick up the latest configuration.
		t.rule = rule
		delete(wanted, id)
	}
	for _, rule := range wanted {
		s.armLocked(rule)
	}
	metrics.SetScheduledRules(len(s.timers))
	return nil
}

// Scheduled lists the ids of rules with an armed timer
func (s *Scheduler) Scheduled() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

// TriggerNow runs an armed rule immediately, outside its cadence
func (s *Scheduler) TriggerNow(ctx context.Context, ruleID uint) (Result, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return Result{}, ErrSchedulerStopped
	}
	t, ok := s.timers[ruleID]
	if !ok {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %d", ErrNotScheduled, ruleID)
	}
	if owner, ok := tenant.FromContext(ctx); ok && owner != t.rule.TenantID {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %d", ErrNotScheduled, ruleID)
	}
	rule := t.rule
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	now := s.clock.Now()
	reference := fmt.Sprintf("rule-%d-manual-%d", rule.ID, now.UnixNano())
	return s.exec.ExecuteScheduled(ctx, rule, now, reference)
}

func (s *Scheduler) armLocked(rule models.AutomationRule) {
	interval, ok := models.ScheduleIntervals[rule.Schedule]
	if !ok {
		s.logger.Warn("Unknown schedule, rule not armed", "rule_id", rule.ID, "schedule", rule.Schedule)
		return
	}

	var ticker clock.Ticker
	if interval == 0 {
		// one_time rules fire once and never again once they have run.
		if rule.ExecutionCount > 0 {
			return
		}
		delay := time.Duration(0)
		if rule.NextExecutionAt != nil {
			delay = rule.NextExecutionAt.Sub(s.clock.Now())
		}
		ticker = s.clock.NewTimer(delay)
	} else {
		ticker = s.clock.NewTicker(interval)
	}

	t := &ruleTimer{rule: rule, ticker: ticker, done: make(chan struct{})}
	s.timers[rule.ID] = t

	s.wg.Add(1)
	go s.loop(s.ctx, t, interval)
}

func (s *Scheduler) disarmLocked(id uint, t *ruleTimer) {
	t.ticker.Stop()
	close(t.done)
	delete(s.timers, id)
}

func (s *Scheduler) loop(ctx context.Context, t *ruleTimer, interval time.Duration) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case tick := <-t.ticker.C():
			s.mu.Lock()
			rule := t.rule
			s.mu.Unlock()

			s.fire(ctx, rule, tick, interval)
			if interval == 0 {
				s.mu.Lock()
				if s.timers[rule.ID] == t {
					delete(s.timers, rule.ID)
					metrics.SetScheduledRules(len(s.timers))
				}
				s.mu.Unlock()
				return
			}
		}
	}
}

// tickReference names the posting of one scheduling slot. Ticks from
// different instances that land in the same slot share the reference.
func tickReference(rule models.AutomationRule, tick time.Time, interval time.Duration) string {
	if interval == 0 {
		return fmt.Sprintf("rule-%d-once", rule.ID)
	}
	return fmt.Sprintf("rule-%d-%d", rule.ID, tick.Truncate(interval).Unix())
}

func (s *Scheduler) fire(ctx context.Context, rule models.AutomationRule, tick time.Time, interval time.Duration) {
	if ctx.Err() != nil {
		return
	}
	ctx = tenant.WithTenantID(ctx, rule.TenantID)
	reference := tickReference(rule, tick, interval)
	log := s.logger.With("tenant_id", rule.TenantID, "rule_id", rule.ID, "reference_id", reference)

	lease, err := s.locker.Obtain(ctx, "fintera:scheduler:"+rule.TenantID+":"+reference, s.lockTTL)
	switch {
	case errors.Is(err, lock.ErrNotObtained):
		metrics.IncSchedulerTick(metrics.ResultSkipped)
		log.Debug("Tick owned by another instance")
		return
	case err != nil:
		// The entry reference still prevents a double posting.
		log.Warn("Tick lock unavailable, executing anyway", "error", err)
	default:
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release tick lock", "error", err)
			}
		}()
	}

	// A started execution runs to completion even if Stop is called.
	res, err := s.exec.ExecuteScheduled(context.WithoutCancel(ctx), rule, tick, reference)
	switch {
	case err == nil && res.Duplicate():
		metrics.IncSchedulerTick(metrics.ResultDuplicate)
	case err == nil:
		metrics.IncSchedulerTick(metrics.ResultSuccess)
	case IsInformational(err):
		metrics.IncSchedulerTick(metrics.ResultSkipped)
		log.Info("Scheduled rule skipped", "reason", err)
	default:
		metrics.IncSchedulerTick(metrics.ResultFailed)
		log.Error("Scheduled rule failed", "error", err)
	}

	var next *time.Time
	if interval > 0 {
		n := tick.Add(interval).UTC()
		next = &n
	}
	if err := s.rules.SetNextExecution(context.WithoutCancel(ctx), rule.ID, next); err != nil {
		log.Warn("Failed to store next execution", "error", err)
	}
}
