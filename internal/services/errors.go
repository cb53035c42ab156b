package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sjperalta/fintera-ledger/internal/repository"
)

// Common service errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrDuplicate        = errors.New("duplicate record")
	ErrAccountInUse     = errors.New("account is referenced by entries or sub-accounts")
	ErrMissingDocuments = errors.New("required documents are missing")
	ErrValidation       = errors.New("validation failed")
)

// ValidationError lists the offending fields of an input, field → rule
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, rule string) error {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// mapRepoError translates repository sentinels into service sentinels
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicateKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func invalidState(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidState, err)
}
