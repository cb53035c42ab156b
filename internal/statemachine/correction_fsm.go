package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

// Correction events
const (
	EventStartReview = "start_review"
	EventFix         = "fix"
	EventIgnore      = "ignore"
)

// CorrectionFSM wraps a reconciliation finding with its state machine
type CorrectionFSM struct {
	log *models.CorrectionLog
	fsm *fsm.FSM
}

// NewCorrectionFSM creates a new correction log state machine
func NewCorrectionFSM(log *models.CorrectionLog) *CorrectionFSM {
	cfsm := &CorrectionFSM{log: log}

	open := []string{models.CorrectionStatusDetected, models.CorrectionStatusReviewing}
	cfsm.fsm = fsm.NewFSM(
		log.Status,
		fsm.Events{
			{Name: EventStartReview, Src: []string{models.CorrectionStatusDetected}, Dst: models.CorrectionStatusReviewing},
			{Name: EventFix, Src: open, Dst: models.CorrectionStatusFixed},
			{Name: EventIgnore, Src: open, Dst: models.CorrectionStatusIgnored},
		},
		fsm.Callbacks{},
	)

	return cfsm
}

// Fire applies one of the correction events and copies the new state back
func (c *CorrectionFSM) Fire(ctx context.Context, event string) error {
	if !c.fsm.Can(event) {
		return fmt.Errorf("correction cannot %s in current state: %s", event, c.log.Status)
	}
	if err := c.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s correction: %w", event, err)
	}
	c.log.Status = c.fsm.Current()
	return nil
}

// Current returns the current state
func (c *CorrectionFSM) Current() string {
	return c.fsm.Current()
}
