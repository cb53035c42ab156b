// Package automation turns business events into balanced journal postings.
//
// The Engine fans an event out to every active rule for its trigger. Each
// rule runs through the Tracker, which matches conditions, enforces one
// entry per (reference_type, reference_id), synthesizes the entry and
// records the outcome. The Scheduler drives time-based rules through the
// same path.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/observability/metrics"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
)

// Outcome is the result of one rule for one event
type Outcome struct {
	Result
	Err error
}

// Report collects every rule outcome for one event
type Report struct {
	EventID  string
	Trigger  string
	Outcomes []Outcome
}

// Failed returns the outcomes that count as failures
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// EntryIDs lists the entries the event produced or replayed
func (r *Report) EntryIDs() []uint {
	var ids []uint
	for _, o := range r.Outcomes {
		if o.EntryID != 0 {
			ids = append(ids, o.EntryID)
		}
	}
	return ids
}

// Err joins the failures, or returns nil when every rule succeeded, was
// replayed or did not apply.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Engine is the in-process entry point of rule automation
type Engine struct {
	rules   RuleStore
	logs    ExecutionLogStore
	tracker *Tracker

	clock       clock.Clock
	logger      *slog.Logger
	maxParallel int

	mu            sync.Mutex
	subscriptions []func()
}

// NewEngine creates an engine over stores
func NewEngine(stores Stores, opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		rules:       stores.Rules,
		logs:        stores.Logs,
		tracker:     newTracker(stores, o),
		clock:       o.clock,
		logger:      o.logger,
		maxParallel: o.maxParallel,
	}
}

// Tracker exposes the engine's execution tracker
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Process builds an event for the context tenant and processes it
func (e *Engine) Process(ctx context.Context, trigger string, payload events.Payload) (*Report, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return e.ProcessEvent(ctx, events.New(tid, trigger, payload, e.clock.Now()))
}

// ProcessEvent runs every active rule for the event's trigger. All rules are
// attempted; a failing rule never stops its siblings. The returned error is
// only set when the event itself could not be processed; per-rule failures
// are in the report.
func (e *Engine) ProcessEvent(ctx context.Context, ev events.Event) (*Report, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	metrics.IncEventProcessed(ev.Trigger)
	ctx = tenant.WithTenantID(ctx, ev.TenantID)

	rules, err := e.rules.FindActiveByTrigger(ctx, ev.Trigger)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", ev.Trigger, err)
	}

	report := &Report{
		EventID:  ev.ID,
		Trigger:  ev.Trigger,
		Outcomes: make([]Outcome, len(rules)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i := range rules {
		i := i
		rule := &rules[i]
		g.Go(func() error {
			report.Outcomes[i] = e.run(gctx, rule, ev)
			return nil
		})
	}
	_ = g.Wait()

	if failed := len(report.Failed()); failed > 0 {
		e.logger.WarnContext(ctx, "Event processed with failures",
			"tenant_id", ev.TenantID, "trigger", ev.Trigger, "event_id", ev.ID,
			"rules", len(rules), "failed", failed)
	}
	return report, nil
}

func (e *Engine) run(ctx context.Context, rule *models.AutomationRule, ev events.Event) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = Outcome{
				Result: Result{RuleID: rule.ID, Status: StatusFailed},
				Err:    fmt.Errorf("rule %d panicked: %v", rule.ID, p),
			}
			e.logger.ErrorContext(ctx, "Rule execution panicked", "rule_id", rule.ID, "panic", p)
		}
	}()

	res, err := e.tracker.Execute(ctx, rule, ev)
	if res.Duplicate() {
		err = ErrDuplicateSuppressed
	}
	return Outcome{Result: res, Err: err}
}

// Handle adapts the engine to events.Handler. Only failures are returned,
// so transports can retry or drop by classifying them with IsPermanent.
func (e *Engine) Handle(ctx context.Context, ev events.Event) error {
	report, err := e.ProcessEvent(ctx, ev)
	if err != nil {
		return err
	}
	return report.Err()
}

// ExecuteRuleNow runs one rule of the context tenant against payload,
// bypassing trigger routing.
func (e *Engine) ExecuteRuleNow(ctx context.Context, ruleID uint, payload events.Payload) (Result, error) {
	tid, err := tenant.Require(ctx)
	if err != nil {
		return Result{}, err
	}
	rule, err := e.rules.FindByID(ctx, ruleID)
	if err != nil {
		return Result{}, fmt.Errorf("load rule %d: %w", ruleID, err)
	}
	ev := events.New(tid, rule.TriggerEvent, payload, e.clock.Now())
	return e.tracker.Execute(ctx, rule, ev)
}

// ExecuteScheduled runs a scheduled rule for one tick. The rule is reloaded
// so a rule disabled since the timer was armed reports ErrRuleInactive.
func (e *Engine) ExecuteScheduled(ctx context.Context, rule models.AutomationRule, at time.Time, reference string) (Result, error) {
	ctx = tenant.WithTenantID(ctx, rule.TenantID)
	current, err := e.rules.FindByID(ctx, rule.ID)
	if err != nil {
		return Result{}, fmt.Errorf("load rule %d: %w", rule.ID, err)
	}
	ev := events.New(current.TenantID, current.TriggerEvent, SyntheticPayload(current, at, reference), at)
	return e.tracker.Execute(ctx, current, ev)
}

// GetExecutionHistory returns the newest execution logs, for one rule when
// ruleID is set.
func (e *Engine) GetExecutionHistory(ctx context.Context, ruleID *uint, limit int) ([]models.RuleExecutionLog, error) {
	return e.logs.History(ctx, ruleID, limit)
}

// Register subscribes the engine to every trigger on bus. Close removes
// the subscriptions.
func (e *Engine) Register(bus events.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, trigger := range models.Triggers {
		e.subscriptions = append(e.subscriptions, bus.Subscribe(trigger, e.Handle))
	}
}

// Close drops all bus subscriptions
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, unsubscribe := range e.subscriptions {
		unsubscribe()
	}
	e.subscriptions = nil
}

// SyntheticPayload is the event payload of a scheduled run. It satisfies
// the rule's own equality conditions and carries the configured fixed amount.
func SyntheticPayload(rule *models.AutomationRule, at time.Time, reference string) events.Payload {
	payload := events.Payload{}
	for key, value := range rule.Conditions {
		if key == models.ConditionAmountRange {
			continue
		}
		payload[key] = value
	}
	if rule.AccountMappings.FixedAmount != nil {
		payload[rule.AccountMappings.PrimaryAmountField()] = *rule.AccountMappings.FixedAmount
	}
	description := rule.Description
	if description == "" {
		description = rule.Name
	}
	payload[events.FieldReferenceID] = reference
	payload[events.FieldReferenceType] = models.ReferenceTypeScheduled
	payload[events.FieldDescription] = description
	payload[events.FieldDate] = at.UTC().Format(time.RFC3339)
	return payload
}
