package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
)

// AccountLookup finds accounts by code within the context tenant
type AccountLookup interface {
	FindByCode(ctx context.Context, code string) (*models.Account, error)
}

// AccountResolver is the single place account codes become postable accounts
type AccountResolver struct {
	accounts AccountLookup
}

// NewAccountResolver creates a resolver over accounts
func NewAccountResolver(accounts AccountLookup) *AccountResolver {
	return &AccountResolver{accounts: accounts}
}

// Resolve returns the account for code, or a *MappingError when it is
// missing, inactive or closed to posting. Store failures are returned as is.
func (r *AccountResolver) Resolve(ctx context.Context, code string) (*models.Account, error) {
	if code == "" {
		return nil, &MappingError{Code: code, Reason: "no account configured"}
	}
	acc, err := r.accounts.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &MappingError{Code: code, Reason: "account not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %q: %w", code, err)
	}
	if !acc.IsActive {
		return nil, &MappingError{Code: code, Reason: "account is inactive"}
	}
	if !acc.AllowPosting {
		return nil, &MappingError{Code: code, Reason: "account does not allow posting"}
	}
	return acc, nil
}

// ResolveMappings resolves every code a mapping references, once each
func (r *AccountResolver) ResolveMappings(ctx context.Context, m models.AccountMappings) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account)
	for _, code := range m.AccountCodes() {
		if _, done := out[code]; done {
			continue
		}
		acc, err := r.Resolve(ctx, code)
		if err != nil {
			return nil, err
		}
		out[code] = acc
	}
	return out, nil
}
