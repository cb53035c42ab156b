package automation

import (
	"fmt"

	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

// Matches evaluates a rule's conditions against an event payload. Every
// condition must hold. Values compare numerically when either side is a
// number, otherwise by their string form.
func Matches(conditions models.Conditions, payload events.Payload) bool {
	for key, expected := range conditions {
		if models.IsAmountRange(key, expected) {
			if !inAmountRange(expected, payload) {
				return false
			}
			continue
		}

		actual, ok := payload[key]
		if !ok || actual == nil {
			return false
		}
		if !equalValues(expected, actual) {
			return false
		}
	}
	return true
}

func equalValues(expected, actual any) bool {
	if events.IsNumber(expected) || events.IsNumber(actual) {
		a, okA := events.AsDecimal(expected)
		b, okB := events.AsDecimal(actual)
		return okA && okB && a.Equal(b)
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// inAmountRange checks min <= amount <= max. Either bound may be omitted; a
// malformed range never matches.
func inAmountRange(expected any, payload events.Payload) bool {
	bounds, ok := expected.(map[string]any)
	if !ok {
		return false
	}
	amount, present, err := payload.Decimal(events.FieldAmount)
	if !present || err != nil {
		return false
	}
	if raw, ok := bounds["min"]; ok && raw != nil {
		lo, ok := events.AsDecimal(raw)
		if !ok || amount.LessThan(lo) {
			return false
		}
	}
	if raw, ok := bounds["max"]; ok && raw != nil {
		hi, ok := events.AsDecimal(raw)
		if !ok || amount.GreaterThan(hi) {
			return false
		}
	}
	return true
}
