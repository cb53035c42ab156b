package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// RuleInput is the writable part of an automation rule
type RuleInput struct {
	Name            string                 `json:"name" yaml:"name" validate:"required,max=255"`
	Description     string                 `json:"description" yaml:"description"`
	TriggerEvent    string                 `json:"trigger_event" yaml:"trigger_event" validate:"required,trigger"`
	Conditions      models.Conditions      `json:"conditions" yaml:"conditions"`
	AccountMappings models.AccountMappings `json:"account_mappings" yaml:"account_mappings"`
	IsActive        *bool                  `json:"is_active" yaml:"is_active"`
	RequiresReview  bool                   `json:"requires_review" yaml:"requires_review"`
	Priority        int                    `json:"priority" yaml:"priority" validate:"min=-1000,max=1000"`
	Schedule        string                 `json:"schedule" yaml:"schedule" validate:"omitempty,schedule"`
	NextExecutionAt *time.Time             `json:"next_execution_at" yaml:"next_execution_at"`
}

// ScheduleRefresher re-reads scheduled rules after a change
type ScheduleRefresher interface {
	Refresh(ctx context.Context) error
}

type RuleService struct {
	repo      repository.RuleRepository
	resolver  *automation.AccountResolver
	engine    *automation.Engine
	scheduler ScheduleRefresher
	auditSvc  *AuditService
	logger    *slog.Logger
}

func NewRuleService(repo repository.RuleRepository, accounts repository.AccountRepository, engine *automation.Engine, auditSvc *AuditService) *RuleService {
	return &RuleService{
		repo:     repo,
		resolver: automation.NewAccountResolver(accounts),
		engine:   engine,
		auditSvc: auditSvc,
		logger:   logger.With("rules"),
	}
}

// SetScheduler installs the scheduler that is refreshed when a scheduled
// rule changes. The scheduler is built after the services, hence the setter.
func (s *RuleService) SetScheduler(scheduler ScheduleRefresher) {
	s.scheduler = scheduler
}

func (s *RuleService) FindByID(ctx context.Context, id uint) (*models.AutomationRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	return rule, mapRepoError(err)
}

func (s *RuleService) List(ctx context.Context, query *repository.ListQuery) ([]models.AutomationRule, int64, error) {
	return s.repo.List(ctx, query)
}

// Create validates and stores a rule. Mapped accounts must exist and allow
// posting at the time the rule is saved.
func (s *RuleService) Create(ctx context.Context, userID uint, in RuleInput) (*models.AutomationRule, error) {
	rule, err := s.create(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if rule.IsScheduled() {
		s.refreshScheduler(ctx)
	}
	return rule, nil
}

// Update replaces the configuration of a rule. Execution statistics are kept.
func (s *RuleService) Update(ctx context.Context, userID, id uint, in RuleInput) (*models.AutomationRule, error) {
	rule, scheduleChanged, err := s.update(ctx, userID, id, in)
	if err != nil {
		return nil, err
	}
	if scheduleChanged {
		s.refreshScheduler(ctx)
	}
	return rule, nil
}

func (s *RuleService) create(ctx context.Context, userID uint, in RuleInput) (*models.AutomationRule, error) {
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}
	rule := &models.AutomationRule{}
	in.apply(rule)
	if userID != 0 {
		rule.CreatedBy = &userID
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditCreate, "AutomationRule", rule.ID,
		fmt.Sprintf("Rule %q created for %s", rule.Name, rule.TriggerEvent))
	return rule, nil
}

// update reports whether the scheduler has to re-read its rules
func (s *RuleService) update(ctx context.Context, userID, id uint, in RuleInput) (*models.AutomationRule, bool, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, mapRepoError(err)
	}
	if err := s.check(ctx, in); err != nil {
		return nil, false, err
	}
	wasScheduled := rule.IsScheduled()
	in.apply(rule)
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, false, mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditUpdate, "AutomationRule", rule.ID, fmt.Sprintf("Rule %q updated", rule.Name))
	return rule, wasScheduled || rule.IsScheduled(), nil
}

// Toggle activates or deactivates a rule
func (s *RuleService) Toggle(ctx context.Context, userID, id uint, active bool) (*models.AutomationRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if rule.IsActive == active {
		return rule, nil
	}
	if active {
		// Accounts may have been closed since the rule was saved.
		if _, err := s.resolver.ResolveMappings(ctx, rule.AccountMappings); err != nil {
			return nil, mappingError(err)
		}
	}
	rule.IsActive = active
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, mapRepoError(err)
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	s.auditSvc.Log(ctx, userID, AuditUpdate, "AutomationRule", rule.ID, fmt.Sprintf("Rule %q %s", rule.Name, state))
	if rule.IsScheduled() {
		s.refreshScheduler(ctx)
	}
	return rule, nil
}

func (s *RuleService) Delete(ctx context.Context, userID, id uint) error {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditDelete, "AutomationRule", id, fmt.Sprintf("Rule %q deleted", rule.Name))
	if rule.IsScheduled() {
		s.refreshScheduler(ctx)
	}
	return nil
}

// ExecuteNow runs one rule against payload outside trigger routing
func (s *RuleService) ExecuteNow(ctx context.Context, userID, id uint, payload events.Payload) (automation.Result, error) {
	res, err := s.engine.ExecuteRuleNow(ctx, id, payload)
	if errors.Is(err, repository.ErrNotFound) {
		return res, mapRepoError(err)
	}
	if err == nil || res.Status == automation.StatusFailed {
		s.auditSvc.Log(ctx, userID, AuditExecute, "AutomationRule", id,
			fmt.Sprintf("Manual execution: %s (entry %d)", res.Status, res.EntryID))
	}
	return res, err
}

// History returns the newest execution logs, for one rule when ruleID is set
func (s *RuleService) History(ctx context.Context, ruleID *uint, limit int) ([]models.RuleExecutionLog, error) {
	return s.engine.GetExecutionHistory(ctx, ruleID, limit)
}

func (s *RuleService) refreshScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Refresh(ctx); err != nil && !errors.Is(err, automation.ErrSchedulerStopped) {
		s.logger.WarnContext(ctx, "Scheduler refresh failed", "error", err)
	}
}

// check validates the input shape, the conditions and the mapped accounts
func (s *RuleService) check(ctx context.Context, in RuleInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if err := validateConditions(in.Conditions); err != nil {
		return err
	}

	m := in.AccountMappings
	if m.FixedAmount != nil && !m.FixedAmount.IsPositive() {
		return invalidField("AccountMappings.FixedAmount", "must be positive")
	}
	if in.TriggerEvent == models.TriggerScheduled && in.Schedule == "" {
		return invalidField("Schedule", "required for scheduled rules")
	}
	if in.Schedule != "" && m.FixedAmount == nil {
		// A timer has no payload to take the amount from.
		return invalidField("AccountMappings.FixedAmount", "required for scheduled rules")
	}
	if in.Schedule == models.ScheduleOneTime && in.NextExecutionAt == nil {
		return invalidField("NextExecutionAt", "required for one_time rules")
	}
	for i, line := range m.AdditionalLines {
		if line.AmountField == m.PrimaryAmountField() {
			return invalidField(fmt.Sprintf("AccountMappings.AdditionalLines[%d].AmountField", i), "reuses the primary amount field")
		}
	}

	if _, err := s.resolver.ResolveMappings(ctx, m); err != nil {
		return mappingError(err)
	}
	return nil
}

func mappingError(err error) error {
	var merr *automation.MappingError
	if errors.As(err, &merr) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

// validateConditions accepts flat scalar predicates plus numeric min and/or
// max bounds under amount_range or amount.
func validateConditions(c models.Conditions) error {
	for key, value := range c {
		if strings.TrimSpace(key) == "" {
			return invalidField("Conditions", "empty key")
		}
		if models.IsAmountRange(key, value) {
			if err := validateAmountRange(key, value); err != nil {
				return err
			}
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			return invalidField("Conditions."+key, "must be a scalar value")
		case nil:
			return invalidField("Conditions."+key, "must not be null")
		}
	}
	return nil
}

func validateAmountRange(key string, value any) error {
	field := "Conditions." + key
	bounds, ok := value.(map[string]any)
	if !ok {
		return invalidField(field, "must be an object with min and/or max")
	}
	var lo, hi *decimal.Decimal
	for key, raw := range bounds {
		d, ok := events.AsDecimal(raw)
		if !ok {
			return invalidField(field+"."+key, "must be a number")
		}
		switch key {
		case "min":
			lo = &d
		case "max":
			hi = &d
		default:
			return invalidField(field+"."+key, "unknown bound")
		}
	}
	if lo == nil && hi == nil {
		return invalidField(field, "must set min or max")
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return invalidField(field, "min is greater than max")
	}
	return nil
}

func (in RuleInput) apply(rule *models.AutomationRule) {
	rule.Name = strings.TrimSpace(in.Name)
	rule.Description = in.Description
	rule.TriggerEvent = in.TriggerEvent
	rule.Conditions = in.Conditions
	rule.AccountMappings = in.AccountMappings
	rule.IsActive = boolOr(in.IsActive, true)
	rule.RequiresReview = in.RequiresReview
	rule.Priority = in.Priority
	rule.Schedule = in.Schedule
	rule.NextExecutionAt = in.NextExecutionAt
}

// ruleSeed is one rule of a YAML seed file. Money is written as a string
// so it never passes through a float.
type ruleSeed struct {
	RuleInput   `yaml:",inline"`
	FixedAmount string `yaml:"fixed_amount"`
}

// RuleImportError is one rejected rule of a seed file
type RuleImportError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// RuleImportResult summarizes a seed import
type RuleImportResult struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Errors  []RuleImportError `json:"errors"`
}

// ImportYAML upserts rules from a seed file, matching existing rules by name.
//
//	rules:
//	  - name: Cash payments
//	    trigger_event: payment_received
//	    conditions: {payment_method: cash}
//	    account_mappings: {debit_account: CASH, credit_account: RECEIVABLE}
//	  - name: Monthly insurance
//	    trigger_event: scheduled
//	    schedule: monthly
//	    fixed_amount: "350.00"
//	    account_mappings: {debit_account: INSURANCE, credit_account: BANK}
func (s *RuleService) ImportYAML(ctx context.Context, userID uint, r io.Reader) (*RuleImportResult, error) {
	var file struct {
		Rules []ruleSeed `yaml:"rules"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: invalid rule file: %v", ErrValidation, err)
	}

	result := &RuleImportResult{}
	refresh := false
	for i, seed := range file.Rules {
		in := seed.RuleInput
		if seed.FixedAmount != "" {
			amount, err := decimal.NewFromString(seed.FixedAmount)
			if err != nil {
				result.Errors = append(result.Errors, RuleImportError{Index: i, Name: in.Name, Error: "fixed_amount is not a number"})
				continue
			}
			in.AccountMappings.FixedAmount = &amount
		}

		existing, err := s.repo.FindByName(ctx, strings.TrimSpace(in.Name))
		switch {
		case err == nil:
			var changed bool
			_, changed, err = s.update(ctx, userID, existing.ID, in)
			if err == nil {
				result.Updated++
				refresh = refresh || changed
			}
		case errors.Is(err, repository.ErrNotFound):
			var rule *models.AutomationRule
			rule, err = s.create(ctx, userID, in)
			if err == nil {
				result.Created++
				refresh = refresh || rule.IsScheduled()
			}
		}
		if err != nil {
			if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrDuplicate) {
				return result, fmt.Errorf("import rule %d: %w", i, err)
			}
			result.Errors = append(result.Errors, RuleImportError{Index: i, Name: in.Name, Error: err.Error()})
		}
	}

	if refresh {
		s.refreshScheduler(ctx)
	}
	return result, nil
}
