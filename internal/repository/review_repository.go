package repository

import (
	"context"

	"github.com/sjperalta/fintera-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewMutation changes a review and, through it, its entry. A non-nil
// event is appended to the review history in the same transaction.
type ReviewMutation func(review *models.JournalEntryReview, entry *models.JournalEntry) (*models.ReviewEvent, BalanceChange, error)

// ReviewRepository defines the interface for review workflow data access
type ReviewRepository interface {
	FindByID(ctx context.Context, id uint) (*models.JournalEntryReview, error)
	FindByEntryID(ctx context.Context, entryID uint) (*models.JournalEntryReview, error)
	FindPending(ctx context.Context, reviewerID *uint) ([]models.JournalEntryReview, error)
	History(ctx context.Context, reviewID uint) ([]models.ReviewEvent, error)
	Apply(ctx context.Context, reviewID uint, fn ReviewMutation) (*models.JournalEntryReview, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) FindByID(ctx context.Context, id uint) (*models.JournalEntryReview, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var review models.JournalEntryReview
	err = db.Preload("Entry.Lines", orderedLines).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&review, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

func (r *reviewRepository) FindByEntryID(ctx context.Context, entryID uint) (*models.JournalEntryReview, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var review models.JournalEntryReview
	if err := db.Where("entry_id = ?", entryID).First(&review).Error; err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

// FindPending returns pending reviews, oldest first. With a reviewer, only
// that reviewer's assignments and the unassigned queue are returned.
func (r *reviewRepository) FindPending(ctx context.Context, reviewerID *uint) ([]models.JournalEntryReview, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	db = db.Preload("Entry.Lines", orderedLines).Where("status = ?", models.ReviewStatusPending)
	if reviewerID != nil {
		db = db.Where("(reviewer_id = ? OR reviewer_id IS NULL)", *reviewerID)
	}

	var reviews []models.JournalEntryReview
	err = db.Order("created_at ASC, id ASC").Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) History(ctx context.Context, reviewID uint) ([]models.ReviewEvent, error) {
	db, _, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}
	var events []models.ReviewEvent
	err = db.Where("review_id = ?", reviewID).Order("id ASC").Find(&events).Error
	return events, err
}

// Apply runs fn against the locked review and entry, then persists both, the
// balance change and the history event atomically.
func (r *reviewRepository) Apply(ctx context.Context, reviewID uint, fn ReviewMutation) (*models.JournalEntryReview, error) {
	_, tid, err := scoped(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var review models.JournalEntryReview
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(byTenant(tid)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&review, reviewID).Error
		if err != nil {
			return translate(err)
		}

		var entry models.JournalEntry
		if err := lockEntry(tx, tid, review.EntryID, &entry); err != nil {
			return err
		}

		event, change, err := fn(&review, &entry)
		if err != nil {
			return err
		}

		err = tx.Model(&review).
			Select("ReviewerID", "Status", "Comments", "RequiredDocuments", "MissingDocuments",
				"Documents", "Checklist", "Revision", "DecidedBy", "DecidedAt", "UpdatedAt").
			Updates(&review).Error
		if err != nil {
			return err
		}

		if err := saveEntry(tx, tid, &entry, change); err != nil {
			return err
		}

		if event != nil {
			event.TenantID = tid
			event.ReviewID = review.ID
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}

		review.Entry = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}
