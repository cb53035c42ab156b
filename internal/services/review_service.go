package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/models"
	"github.com/sjperalta/fintera-ledger/internal/observability/metrics"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/statemachine"
	"github.com/sjperalta/fintera-ledger/internal/storage"
	"github.com/sjperalta/fintera-ledger/internal/tenant"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// Review decisions
const (
	DecisionApproved      = models.ReviewStatusApproved
	DecisionRejected      = models.ReviewStatusRejected
	DecisionNeedsRevision = models.ReviewStatusNeedsRevision
)

// ReviewDecision is a reviewer's verdict on a pending review
type ReviewDecision struct {
	Decision         string          `json:"decision" validate:"required,oneof=approved rejected needs_revision"`
	Comments         string          `json:"comments" validate:"max=2000"`
	MissingDocuments []string        `json:"missing_documents" validate:"dive,required,max=100"`
	Checklist        map[string]bool `json:"checklist"`
}

type ReviewService struct {
	repo     repository.ReviewRepository
	store    storage.Store
	auditSvc *AuditService
	clock    clock.Clock
	logger   *slog.Logger
}

func NewReviewService(repo repository.ReviewRepository, store storage.Store, auditSvc *AuditService, c clock.Clock) *ReviewService {
	if c == nil {
		c = clock.System()
	}
	return &ReviewService{
		repo:     repo,
		store:    store,
		auditSvc: auditSvc,
		clock:    c,
		logger:   logger.With("reviews"),
	}
}

// GetPendingReviews lists the review queue, oldest first. With a reviewer,
// only that reviewer's assignments and unassigned reviews are returned.
func (s *ReviewService) GetPendingReviews(ctx context.Context, reviewerID *uint) ([]models.JournalEntryReview, error) {
	return s.repo.FindPending(ctx, reviewerID)
}

func (s *ReviewService) FindByID(ctx context.Context, id uint) (*models.JournalEntryReview, error) {
	review, err := s.repo.FindByID(ctx, id)
	return review, mapRepoError(err)
}

func (s *ReviewService) History(ctx context.Context, id uint) ([]models.ReviewEvent, error) {
	return s.repo.History(ctx, id)
}

// Assign hands an open review to a reviewer
func (s *ReviewService) Assign(ctx context.Context, actorID, reviewID, reviewerID uint) (*models.JournalEntryReview, error) {
	review, err := s.repo.Apply(ctx, reviewID, func(r *models.JournalEntryReview, e *models.JournalEntry) (*models.ReviewEvent, repository.BalanceChange, error) {
		if r.Status != models.ReviewStatusPending && r.Status != models.ReviewStatusNeedsRevision {
			return nil, repository.BalanceUnchanged, fmt.Errorf("%w: review %d is %s", ErrInvalidState, r.ID, r.Status)
		}
		r.ReviewerID = &reviewerID
		return &models.ReviewEvent{
			Action:     models.ReviewActionAssigned,
			FromStatus: r.Status,
			ToStatus:   r.Status,
			ReviewerID: actorID,
			Comments:   fmt.Sprintf("assigned to %d", reviewerID),
		}, repository.BalanceUnchanged, nil
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return review, nil
}

// SubmitReviewDecision applies a reviewer's decision. Approval posts the
// entry and moves balances; rejection rejects the entry; a revision request
// keeps it in draft and adds to the missing documents. Approval is refused
// while documents are missing.
func (s *ReviewService) SubmitReviewDecision(ctx context.Context, reviewerID, reviewID uint, d ReviewDecision) (*models.JournalEntryReview, error) {
	if err := validateStruct(d); err != nil {
		return nil, err
	}
	if d.Decision != DecisionApproved && strings.TrimSpace(d.Comments) == "" {
		return nil, invalidField("Comments", "required when the entry is not approved")
	}

	review, err := s.repo.Apply(ctx, reviewID, func(r *models.JournalEntryReview, e *models.JournalEntry) (*models.ReviewEvent, repository.BalanceChange, error) {
		from := r.Status
		now := s.clock.Now().UTC()
		rfsm := statemachine.NewReviewFSM(r)
		efsm := statemachine.NewEntryFSM(e)
		change := repository.BalanceUnchanged

		mergeChecklist(r, d.Checklist)
		var action string
		switch d.Decision {
		case DecisionApproved:
			if r.Status == models.ReviewStatusPending && len(r.MissingDocuments) > 0 {
				return nil, change, fmt.Errorf("%w: %s", ErrMissingDocuments, strings.Join(r.MissingDocuments, ", "))
			}
			if err := rfsm.Approve(ctx); err != nil {
				return nil, change, invalidState(err)
			}
			if err := efsm.Post(ctx); err != nil {
				return nil, change, invalidState(err)
			}
			e.PostedAt = &now
			change = repository.BalanceApply
			action = models.ReviewActionApproved

		case DecisionRejected:
			if err := rfsm.Reject(ctx); err != nil {
				return nil, change, invalidState(err)
			}
			if err := efsm.Reject(ctx); err != nil {
				return nil, change, invalidState(err)
			}
			e.RejectedAt = &now
			action = models.ReviewActionRejected

		case DecisionNeedsRevision:
			if err := rfsm.RequestRevision(ctx); err != nil {
				return nil, change, invalidState(err)
			}
			r.AddMissingDocuments(d.MissingDocuments...)
			action = models.ReviewActionRevisionRequired
		}

		e.ReviewStatus = r.Status
		r.Comments = d.Comments
		r.DecidedBy = &reviewerID
		r.DecidedAt = &now
		if r.ReviewerID == nil {
			r.ReviewerID = &reviewerID
		}
		return &models.ReviewEvent{
			Action:           action,
			FromStatus:       from,
			ToStatus:         r.Status,
			ReviewerID:       reviewerID,
			Comments:         d.Comments,
			MissingDocuments: append([]string(nil), r.MissingDocuments...),
		}, change, nil
	})
	if err != nil {
		return nil, s.decisionError(err)
	}

	metrics.IncReviewDecision(d.Decision)
	s.auditSvc.Log(ctx, reviewerID, AuditReview, "JournalEntryReview", review.ID,
		fmt.Sprintf("Entry %d %s: %s", review.EntryID, d.Decision, d.Comments))
	s.logger.InfoContext(ctx, "Review decided",
		"review_id", review.ID, "entry_id", review.EntryID, "decision", d.Decision, "reviewer_id", reviewerID)
	return review, nil
}

// Resubmit sends a revised entry back to the review queue
func (s *ReviewService) Resubmit(ctx context.Context, userID, reviewID uint, comments string) (*models.JournalEntryReview, error) {
	review, err := s.repo.Apply(ctx, reviewID, func(r *models.JournalEntryReview, e *models.JournalEntry) (*models.ReviewEvent, repository.BalanceChange, error) {
		from := r.Status
		if err := statemachine.NewReviewFSM(r).Resubmit(ctx); err != nil {
			return nil, repository.BalanceUnchanged, invalidState(err)
		}
		r.Revision++
		r.DecidedBy = nil
		r.DecidedAt = nil
		e.ReviewStatus = r.Status
		return &models.ReviewEvent{
			Action:           models.ReviewActionResubmitted,
			FromStatus:       from,
			ToStatus:         r.Status,
			ReviewerID:       userID,
			Comments:         comments,
			MissingDocuments: append([]string(nil), r.MissingDocuments...),
		}, repository.BalanceUnchanged, nil
	})
	if err != nil {
		return nil, s.decisionError(err)
	}
	s.auditSvc.Log(ctx, userID, AuditReview, "JournalEntryReview", review.ID,
		fmt.Sprintf("Entry %d resubmitted (revision %d)", review.EntryID, review.Revision))
	return review, nil
}

// UpdateChecklist merges checklist items into an open review
func (s *ReviewService) UpdateChecklist(ctx context.Context, reviewID uint, items map[string]bool) (*models.JournalEntryReview, error) {
	review, err := s.repo.Apply(ctx, reviewID, func(r *models.JournalEntryReview, e *models.JournalEntry) (*models.ReviewEvent, repository.BalanceChange, error) {
		if !isOpenReview(r) {
			return nil, repository.BalanceUnchanged, fmt.Errorf("%w: review %d is %s", ErrInvalidState, r.ID, r.Status)
		}
		mergeChecklist(r, items)
		return nil, repository.BalanceUnchanged, nil
	})
	return review, mapRepoError(err)
}

// DocumentUpload is a supporting document sent for a review
type DocumentUpload struct {
	Type        string
	Filename    string
	ContentType string
	Body        io.Reader
}

// AttachDocument stores a supporting document and clears it from the
// review's missing list.
func (s *ReviewService) AttachDocument(ctx context.Context, userID, reviewID uint, doc DocumentUpload) (*models.JournalEntryReview, error) {
	if strings.TrimSpace(doc.Type) == "" {
		return nil, invalidField("Type", "required")
	}
	if !storage.IsValidContentType(doc.ContentType) {
		return nil, invalidField("ContentType", "unsupported "+doc.ContentType)
	}
	tid, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !isOpenReview(current) {
		return nil, fmt.Errorf("%w: review %d is %s", ErrInvalidState, current.ID, current.Status)
	}

	now := s.clock.Now().UTC()
	key := storage.NewKey(tid, "reviews", doc.Filename, now)
	body := io.LimitReader(doc.Body, storage.MaxFileSize()+1)
	counted := &countingReader{r: body}
	if err := s.store.Put(ctx, key, counted, doc.ContentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if counted.n > storage.MaxFileSize() {
		s.discard(ctx, key)
		return nil, invalidField("File", "exceeds the maximum size")
	}

	review, err := s.repo.Apply(ctx, reviewID, func(r *models.JournalEntryReview, e *models.JournalEntry) (*models.ReviewEvent, repository.BalanceChange, error) {
		if !isOpenReview(r) {
			return nil, repository.BalanceUnchanged, fmt.Errorf("%w: review %d is %s", ErrInvalidState, r.ID, r.Status)
		}
		r.Documents = append(r.Documents, models.SupportingDocument{
			Type:        doc.Type,
			Filename:    doc.Filename,
			StorageKey:  key,
			ContentType: doc.ContentType,
			UploadedBy:  userID,
			UploadedAt:  now,
		})
		r.ResolveDocument(doc.Type)
		return &models.ReviewEvent{
			Action:           models.ReviewActionDocumentAttached,
			FromStatus:       r.Status,
			ToStatus:         r.Status,
			ReviewerID:       userID,
			Comments:         doc.Type + ": " + doc.Filename,
			MissingDocuments: append([]string(nil), r.MissingDocuments...),
		}, repository.BalanceUnchanged, nil
	})
	if err != nil {
		s.discard(ctx, key)
		return nil, mapRepoError(err)
	}
	return review, nil
}

// OpenDocument streams a stored supporting document of a review
func (s *ReviewService) OpenDocument(ctx context.Context, reviewID uint, index int) (io.ReadCloser, *models.SupportingDocument, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	if index < 0 || index >= len(review.Documents) {
		return nil, nil, fmt.Errorf("%w: document %d of review %d", ErrNotFound, index, reviewID)
	}
	doc := review.Documents[index]
	rc, err := s.store.Get(ctx, doc.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, &doc, nil
}

func (s *ReviewService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove orphaned document", "key", key, "error", err)
	}
}

func (s *ReviewService) decisionError(err error) error {
	if errors.Is(err, models.ErrUnbalancedEntry) {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return mapRepoError(err)
}

func isOpenReview(r *models.JournalEntryReview) bool {
	return r.Status == models.ReviewStatusPending || r.Status == models.ReviewStatusNeedsRevision
}

func mergeChecklist(r *models.JournalEntryReview, items map[string]bool) {
	if len(items) == 0 {
		return
	}
	if r.Checklist == nil {
		r.Checklist = make(map[string]bool, len(items))
	}
	for k, v := range items {
		r.Checklist[k] = v
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
