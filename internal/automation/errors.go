package automation

import (
	"errors"
	"fmt"

	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

var (
	// ErrRuleInactive is returned when a disabled rule is asked to execute
	ErrRuleInactive = errors.New("automation: rule is inactive")
	// ErrConditionMismatch means the rule does not apply to the event. It is
	// not a failure and is never counted against the rule.
	ErrConditionMismatch = errors.New("automation: conditions do not match")
	// ErrInvalidMapping marks a misconfigured rule. See MappingError.
	ErrInvalidMapping = errors.New("automation: invalid account mapping")
	// ErrUnbalancedEntry is fatal: the candidate entry is refused, never written.
	ErrUnbalancedEntry = models.ErrUnbalancedEntry
	// ErrDuplicateSuppressed reports an idempotent replay. Informational only.
	ErrDuplicateSuppressed = errors.New("automation: duplicate posting suppressed")
	// ErrInvalidPayload is returned when the event lacks what the rule needs
	ErrInvalidPayload = errors.New("automation: invalid payload")
	// ErrNotScheduled is returned by TriggerNow for rules without a timer
	ErrNotScheduled = errors.New("automation: rule is not scheduled")
	// ErrSchedulerStopped is returned when the scheduler is not running
	ErrSchedulerStopped = errors.New("automation: scheduler is not running")
)

// MappingError names the account code a rule could not post to
type MappingError struct {
	Code   string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("automation: invalid account mapping %q: %s", e.Code, e.Reason)
}

func (e *MappingError) Unwrap() error {
	return ErrInvalidMapping
}

// IsPermanent reports whether retrying err can never succeed. A joined error
// is permanent only when every part is.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts := joined.Unwrap()
		if len(parts) == 0 {
			return false
		}
		for _, part := range parts {
			if !IsPermanent(part) {
				return false
			}
		}
		return true
	}
	for _, target := range []error{
		ErrInvalidMapping,
		ErrRuleInactive,
		ErrConditionMismatch,
		ErrUnbalancedEntry,
		ErrInvalidPayload,
		models.ErrInvalidLine,
		events.ErrInvalidEvent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInformational reports outcomes that are reported but never counted as failures
func IsInformational(err error) bool {
	return errors.Is(err, ErrConditionMismatch) ||
		errors.Is(err, ErrRuleInactive) ||
		errors.Is(err, ErrDuplicateSuppressed)
}
