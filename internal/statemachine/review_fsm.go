package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

// Review events
const (
	EventApprove         = "approve"
	EventDecline         = "decline"
	EventRequestRevision = "request_revision"
	EventResubmit        = "resubmit"
)

// ReviewFSM wraps a review with its state machine
type ReviewFSM struct {
	review *models.JournalEntryReview
	fsm    *fsm.FSM
}

// NewReviewFSM creates a new review state machine
func NewReviewFSM(review *models.JournalEntryReview) *ReviewFSM {
	rfsm := &ReviewFSM{
		review: review,
	}

	rfsm.fsm = fsm.NewFSM(
		review.Status,
		fsm.Events{
			{Name: EventApprove, Src: []string{models.ReviewStatusPending}, Dst: models.ReviewStatusApproved},
			{Name: EventDecline, Src: []string{models.ReviewStatusPending}, Dst: models.ReviewStatusRejected},
			{Name: EventRequestRevision, Src: []string{models.ReviewStatusPending}, Dst: models.ReviewStatusNeedsRevision},
			{Name: EventResubmit, Src: []string{models.ReviewStatusNeedsRevision}, Dst: models.ReviewStatusPending},
		},
		fsm.Callbacks{},
	)

	return rfsm
}

// Approve transitions the review to approved
func (r *ReviewFSM) Approve(ctx context.Context) error {
	if !r.review.MayApprove() {
		if len(r.review.MissingDocuments) > 0 {
			return fmt.Errorf("review cannot be approved with missing documents: %v", r.review.MissingDocuments)
		}
		return fmt.Errorf("review cannot be approved in current state: %s", r.review.Status)
	}
	return r.fire(ctx, EventApprove)
}

// Reject transitions the review to rejected
func (r *ReviewFSM) Reject(ctx context.Context) error {
	if !r.review.MayReject() {
		return fmt.Errorf("review cannot be rejected in current state: %s", r.review.Status)
	}
	return r.fire(ctx, EventDecline)
}

// RequestRevision sends the review back to the preparer
func (r *ReviewFSM) RequestRevision(ctx context.Context) error {
	if !r.review.MayRequestRevision() {
		return fmt.Errorf("revision cannot be requested in current state: %s", r.review.Status)
	}
	return r.fire(ctx, EventRequestRevision)
}

// Resubmit returns a revised review to pending
func (r *ReviewFSM) Resubmit(ctx context.Context) error {
	if !r.review.MayResubmit() {
		return fmt.Errorf("review cannot be resubmitted in current state: %s", r.review.Status)
	}
	return r.fire(ctx, EventResubmit)
}

func (r *ReviewFSM) fire(ctx context.Context, event string) error {
	if err := r.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s review: %w", event, err)
	}
	r.review.Status = r.fsm.Current()
	return nil
}

// Current returns the current state
func (r *ReviewFSM) Current() string {
	return r.fsm.Current()
}
