package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/statemachine"
)

// ManualEntryInput is an entry keyed in by an accountant. Draft saves it
// unposted and outside the review queue.
type ManualEntryInput struct {
	Date           time.Time         `json:"date" validate:"required"`
	Description    string            `json:"description" validate:"max=1000"`
	ReferenceID    string            `json:"reference_id" validate:"max=191"`
	RequiresReview bool              `json:"requires_review"`
	Draft          bool              `json:"draft" validate:"excluded_with=RequiresReview"`
	Lines          []ManualLineInput `json:"lines" validate:"min=2,dive"`
}

// ManualLineInput is one leg of a manual entry; exactly one side is set
type ManualLineInput struct {
	AccountCode string          `json:"account_code" validate:"required,max=32"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type LedgerService struct {
	repo     repository.LedgerRepository
	resolver *automation.AccountResolver
	auditSvc *AuditService
	clock    clock.Clock
}

func NewLedgerService(repo repository.LedgerRepository, accounts repository.AccountRepository, auditSvc *AuditService, c clock.Clock) *LedgerService {
	if c == nil {
		c = clock.System()
	}
	return &LedgerService{
		repo:     repo,
		resolver: automation.NewAccountResolver(accounts),
		auditSvc: auditSvc,
		clock:    c,
	}
}

func (s *LedgerService) FindByID(ctx context.Context, id uint) (*models.JournalEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	return entry, mapRepoError(err)
}

func (s *LedgerService) List(ctx context.Context, query *repository.ListQuery) ([]models.JournalEntry, int64, error) {
	return s.repo.List(ctx, query)
}

// CreateManual records a hand-made entry. Without review it posts at once;
// with review it waits as a draft behind a pending review. A plain draft
// waits for the preparer to Post or Reject it.
func (s *LedgerService) CreateManual(ctx context.Context, userID uint, in ManualEntryInput) (*models.JournalEntry, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	entry := &models.JournalEntry{
		EntryDate:     models.NormalizeEntryDate(in.Date),
		Description:   strings.TrimSpace(in.Description),
		ReferenceType: models.ReferenceTypeManual,
		ReferenceID:   in.ReferenceID,
	}
	if entry.ReferenceID == "" {
		entry.ReferenceID = uuid.NewString()
	}
	if userID != 0 {
		entry.CreatedBy = &userID
	}

	for i, l := range in.Lines {
		acc, err := s.resolver.Resolve(ctx, l.AccountCode)
		if err != nil {
			var merr *automation.MappingError
			if errors.As(err, &merr) {
				return nil, invalidField(fmt.Sprintf("Lines[%d].AccountCode", i), merr.Reason)
			}
			return nil, err
		}
		entry.Lines = append(entry.Lines, models.JournalEntryLine{
			AccountID:    acc.ID,
			AccountCode:  acc.Code,
			LineNumber:   i + 1,
			Description:  l.Description,
			DebitAmount:  l.Debit,
			CreditAmount: l.Credit,
		})
	}
	entry.RecomputeTotals()
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var review *models.JournalEntryReview
	switch {
	case in.RequiresReview:
		entry.Status = models.EntryStatusDraft
		entry.ReviewStatus = models.ReviewStatusPending
		review = &models.JournalEntryReview{Status: models.ReviewStatusPending, Revision: 1}
	case in.Draft:
		// not gated by a review
		entry.Status = models.EntryStatusDraft
		entry.ReviewStatus = models.ReviewStatusApproved
	default:
		now := s.clock.Now().UTC()
		entry.Status = models.EntryStatusPosted
		entry.ReviewStatus = models.ReviewStatusApproved
		entry.PostedAt = &now
	}

	if err := s.repo.CreateWithLines(ctx, entry, review); err != nil {
		return nil, mapRepoError(err)
	}

	s.auditSvc.Log(ctx, userID, AuditCreate, "JournalEntry", entry.ID,
		fmt.Sprintf("Manual entry %s for %s (%s)", entry.ReferenceID, entry.TotalDebit.StringFixed(2), entry.Status))
	return entry, nil
}

// Post posts a plain draft. Drafts behind a review are posted by approving it.
func (s *LedgerService) Post(ctx context.Context, userID, id uint) (*models.JournalEntry, error) {
	entry, err := s.repo.UpdateStatus(ctx, id, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		if awaitingReview(e) {
			return repository.BalanceUnchanged, fmt.Errorf("%w: entry %d is awaiting review", ErrInvalidState, e.ID)
		}
		if err := statemachine.NewEntryFSM(e).Post(ctx); err != nil {
			return repository.BalanceUnchanged, invalidState(err)
		}
		now := s.clock.Now().UTC()
		e.PostedAt = &now
		return repository.BalanceApply, nil
	})
	if err != nil {
		return nil, s.statusError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditPost, "JournalEntry", id, "Entry posted")
	return entry, nil
}

// Reject discards a plain draft. It never touched balances.
func (s *LedgerService) Reject(ctx context.Context, userID, id uint, reason string) (*models.JournalEntry, error) {
	entry, err := s.repo.UpdateStatus(ctx, id, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		if awaitingReview(e) {
			return repository.BalanceUnchanged, fmt.Errorf("%w: entry %d is awaiting review", ErrInvalidState, e.ID)
		}
		if err := statemachine.NewEntryFSM(e).Reject(ctx); err != nil {
			return repository.BalanceUnchanged, invalidState(err)
		}
		now := s.clock.Now().UTC()
		e.RejectedAt = &now
		e.ReviewStatus = models.ReviewStatusRejected
		return repository.BalanceUnchanged, nil
	})
	if err != nil {
		return nil, s.statusError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditReject, "JournalEntry", id, "Entry rejected: "+reason)
	return entry, nil
}

// Reverse undoes the balance effect of a posted entry
func (s *LedgerService) Reverse(ctx context.Context, userID, id uint, reason string) (*models.JournalEntry, error) {
	entry, err := s.repo.UpdateStatus(ctx, id, func(e *models.JournalEntry) (repository.BalanceChange, error) {
		if err := statemachine.NewEntryFSM(e).Reverse(ctx); err != nil {
			return repository.BalanceUnchanged, invalidState(err)
		}
		now := s.clock.Now().UTC()
		e.ReversedAt = &now
		return repository.BalanceRevert, nil
	})
	if err != nil {
		return nil, s.statusError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditReverse, "JournalEntry", id, "Entry reversed: "+reason)
	return entry, nil
}

func (s *LedgerService) statusError(err error) error {
	if errors.Is(err, models.ErrUnbalancedEntry) {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return mapRepoError(err)
}

func awaitingReview(e *models.JournalEntry) bool {
	return e.ReviewStatus == models.ReviewStatusPending || e.ReviewStatus == models.ReviewStatusNeedsRevision
}
