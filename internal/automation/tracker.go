package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/observability/metrics"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
)

// RuleStore is the rule persistence the engine needs
type RuleStore interface {
	FindByID(ctx context.Context, id uint) (*models.AutomationRule, error)
	FindActiveByTrigger(ctx context.Context, trigger string) ([]models.AutomationRule, error)
	RecordOutcome(ctx context.Context, id uint, success bool, at time.Time) error
}

// EntryStore is the ledger persistence the tracker writes through
type EntryStore interface {
	FindByReference(ctx context.Context, referenceType, referenceID string) (*models.JournalEntry, error)
	CreateWithLines(ctx context.Context, entry *models.JournalEntry, review *models.JournalEntryReview) error
}

// ExecutionLogStore appends and reads execution logs
type ExecutionLogStore interface {
	Append(ctx context.Context, log *models.RuleExecutionLog) error
	History(ctx context.Context, ruleID *uint, limit int) ([]models.RuleExecutionLog, error)
}

// Stores groups the persistence the engine runs against
type Stores struct {
	Rules    RuleStore
	Accounts AccountLookup
	Entries  EntryStore
	Logs     ExecutionLogStore
}

// StoresFrom picks the engine's stores out of the repository set
func StoresFrom(repos *repository.Repositories) Stores {
	return Stores{
		Rules:    repos.Rule,
		Accounts: repos.Account,
		Entries:  repos.Ledger,
		Logs:     repos.ExecutionLog,
	}
}

// Status of one rule execution
const (
	StatusPosted    = "posted"
	StatusInReview  = "in_review"
	StatusDuplicate = "duplicate"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Result describes what one execution did
type Result struct {
	RuleID   uint
	EntryID  uint
	Status   string
	Duration time.Duration
}

// Duplicate reports an idempotent replay
func (r Result) Duplicate() bool {
	return r.Status == StatusDuplicate
}

// Tracker runs one rule against one event: matching, idempotency,
// synthesis, persistence and outcome bookkeeping.
type Tracker struct {
	rules   RuleStore
	entries EntryStore
	logs    ExecutionLogStore
	synth   *Synthesizer

	clock         clock.Clock
	logger        *slog.Logger
	notifier      alerting.Notifier
	slowThreshold time.Duration
	tracer        trace.Tracer
}

// NewTracker creates a tracker over stores
func NewTracker(stores Stores, opts ...Option) *Tracker {
	o := buildOptions(opts)
	return newTracker(stores, o)
}

func newTracker(stores Stores, o options) *Tracker {
	return &Tracker{
		rules:         stores.Rules,
		entries:       stores.Entries,
		logs:          stores.Logs,
		synth:         NewSynthesizer(NewAccountResolver(stores.Accounts)),
		clock:         o.clock,
		logger:        o.logger,
		notifier:      o.notifier,
		slowThreshold: o.slowThreshold,
		tracer:        otel.Tracer("github.com/sjperalta/fintera-ledger/internal/automation"),
	}
}

// Execute runs rule against ev.
//
// An inactive rule returns ErrRuleInactive and a non-matching one
// ErrConditionMismatch; neither is logged or counted. When an entry already
// exists for the event's reference its id is returned with StatusDuplicate
// and nothing is written. Every other attempt appends exactly one execution
// log and bumps the rule's counters.
func (t *Tracker) Execute(ctx context.Context, rule *models.AutomationRule, ev events.Event) (Result, error) {
	refType, refID := ev.Reference()
	ctx, span := t.tracer.Start(ctx, "automation.execute", trace.WithAttributes(
		attribute.Int64("rule.id", int64(rule.ID)),
		attribute.String("tenant.id", rule.TenantID),
		attribute.String("trigger", ev.Trigger),
		attribute.String("reference.type", refType),
		attribute.String("reference.id", refID),
	))
	defer span.End()

	res := Result{RuleID: rule.ID, Status: StatusSkipped}

	if ev.TenantID != rule.TenantID {
		return res, fmt.Errorf("%w: event tenant %q does not own rule %d", ErrInvalidPayload, ev.TenantID, rule.ID)
	}
	ctx = tenant.WithTenantID(ctx, rule.TenantID)

	if !rule.IsActive {
		return res, ErrRuleInactive
	}
	if !Matches(rule.Conditions, ev.Payload) {
		return res, ErrConditionMismatch
	}

	start := t.clock.Now()
	log := t.logger.With(
		slog.String("tenant_id", rule.TenantID),
		slog.Uint64("rule_id", uint64(rule.ID)),
		slog.String("reference_type", refType),
		slog.String("reference_id", refID),
	)

	if existing, err := t.entries.FindByReference(ctx, refType, refID); err == nil {
		return t.duplicate(ctx, log, rule, ev, res, existing.ID, start), nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return t.fail(ctx, log, span, rule, ev, res, start, fmt.Errorf("idempotency check: %w", err))
	}

	entry, err := t.synth.Synthesize(ctx, rule, ev)
	if err != nil {
		return t.fail(ctx, log, span, rule, ev, res, start, err)
	}

	var review *models.JournalEntryReview
	if rule.RequiresReview {
		entry.Status = models.EntryStatusDraft
		entry.ReviewStatus = models.ReviewStatusPending
		review = &models.JournalEntryReview{
			Status:   models.ReviewStatusPending,
			Revision: 1,
		}
		res.Status = StatusInReview
	} else {
		postedAt := start.UTC()
		entry.Status = models.EntryStatusPosted
		entry.ReviewStatus = models.ReviewStatusApproved
		entry.PostedAt = &postedAt
		res.Status = StatusPosted
	}

	if err := t.entries.CreateWithLines(ctx, entry, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost a race with another writer for the same reference.
			if existing, findErr := t.entries.FindByReference(ctx, refType, refID); findErr == nil {
				return t.duplicate(ctx, log, rule, ev, res, existing.ID, start), nil
			}
		}
		return t.fail(ctx, log, span, rule, ev, res, start, err)
	}

	res.EntryID = entry.ID
	res.Duration = t.clock.Now().Sub(start)
	entryID := entry.ID

	t.appendLog(ctx, log, &models.RuleExecutionLog{
		RuleID:         rule.ID,
		TriggerEvent:   ev.Trigger,
		ReferenceType:  refType,
		ReferenceID:    refID,
		Status:         models.ExecutionStatusSuccess,
		JournalEntryID: &entryID,
		DurationMs:     res.Duration.Milliseconds(),
		InputData:      inputSnapshot(ev),
		OutputData: map[string]any{
			"entry_id":      entry.ID,
			"status":        entry.Status,
			"review_status": entry.ReviewStatus,
			"total_debit":   entry.TotalDebit.String(),
			"total_credit":  entry.TotalCredit.String(),
			"lines":         len(entry.Lines),
		},
		ExecutedAt: start.UTC(),
	})
	t.recordOutcome(ctx, log, rule.ID, true, start)

	metrics.ObserveRuleExecution(ev.Trigger, metrics.ResultSuccess, res.Duration)
	t.checkSlow(ctx, rule, ev, res.Duration)
	span.SetAttributes(attribute.Int64("entry.id", int64(entry.ID)), attribute.String("entry.status", entry.Status))

	log.Info("Rule executed", "entry_id", entry.ID, "status", res.Status, "duration", res.Duration)
	return res, nil
}

func (t *Tracker) duplicate(ctx context.Context, log *slog.Logger, rule *models.AutomationRule, ev events.Event, res Result, entryID uint, start time.Time) Result {
	res.EntryID = entryID
	res.Status = StatusDuplicate
	res.Duration = t.clock.Now().Sub(start)
	metrics.ObserveRuleExecution(ev.Trigger, metrics.ResultDuplicate, res.Duration)
	log.InfoContext(ctx, "Duplicate posting suppressed", "entry_id", entryID)
	return res
}

func (t *Tracker) fail(ctx context.Context, log *slog.Logger, span trace.Span, rule *models.AutomationRule, ev events.Event, res Result, start time.Time, cause error) (Result, error) {
	refType, refID := ev.Reference()
	res.Status = StatusFailed
	res.Duration = t.clock.Now().Sub(start)
	msg := cause.Error()

	t.appendLog(ctx, log, &models.RuleExecutionLog{
		RuleID:        rule.ID,
		TriggerEvent:  ev.Trigger,
		ReferenceType: refType,
		ReferenceID:   refID,
		Status:        models.ExecutionStatusFailed,
		ErrorMessage:  &msg,
		DurationMs:    res.Duration.Milliseconds(),
		InputData:     inputSnapshot(ev),
		ExecutedAt:    start.UTC(),
	})
	t.recordOutcome(ctx, log, rule.ID, false, start)

	metrics.ObserveRuleExecution(ev.Trigger, metrics.ResultFailed, res.Duration)
	span.RecordError(cause)
	span.SetStatus(codes.Error, msg)

	if errors.Is(cause, ErrUnbalancedEntry) {
		t.notifier.Notify(ctx, alerting.Alert{
			Title:    "Unbalanced entry refused",
			Level:    alerting.LevelFatal,
			TenantID: rule.TenantID,
			Tags:     map[string]string{"rule_id": strconv.FormatUint(uint64(rule.ID), 10), "trigger": ev.Trigger},
			Extra:    map[string]any{"reference_type": refType, "reference_id": refID, "error": msg},
		})
	}
	t.checkSlow(ctx, rule, ev, res.Duration)

	log.WarnContext(ctx, "Rule execution failed", "error", cause, "duration", res.Duration)
	return res, fmt.Errorf("rule %d: %w", rule.ID, cause)
}

func (t *Tracker) appendLog(ctx context.Context, log *slog.Logger, entry *models.RuleExecutionLog) {
	if err := t.logs.Append(ctx, entry); err != nil {
		log.ErrorContext(ctx, "Failed to append execution log", "error", err)
	}
}

func (t *Tracker) recordOutcome(ctx context.Context, log *slog.Logger, ruleID uint, success bool, at time.Time) {
	if err := t.rules.RecordOutcome(ctx, ruleID, success, at); err != nil {
		log.ErrorContext(ctx, "Failed to update rule statistics", "error", err)
	}
}

func (t *Tracker) checkSlow(ctx context.Context, rule *models.AutomationRule, ev events.Event, d time.Duration) {
	if t.slowThreshold <= 0 || d <= t.slowThreshold {
		return
	}
	t.notifier.Notify(ctx, alerting.Alert{
		Title:    "Slow rule execution",
		Level:    alerting.LevelWarning,
		TenantID: rule.TenantID,
		Tags:     map[string]string{"rule_id": strconv.FormatUint(uint64(rule.ID), 10), "trigger": ev.Trigger},
		Extra:    map[string]any{"duration_ms": d.Milliseconds(), "threshold_ms": t.slowThreshold.Milliseconds()},
	})
}

func inputSnapshot(ev events.Event) map[string]any {
	snap := ev.Payload.Clone()
	snap["event_id"] = ev.ID
	return snap
}
