package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

// Entry events
const (
	EventPost    = "post"
	EventReject  = "reject"
	EventReverse = "reverse"
)

// EntryFSM wraps a journal entry with its lifecycle state machine
type EntryFSM struct {
	entry *models.JournalEntry
	fsm   *fsm.FSM
}

// NewEntryFSM creates a new journal entry state machine
func NewEntryFSM(entry *models.JournalEntry) *EntryFSM {
	efsm := &EntryFSM{
		entry: entry,
	}

	efsm.fsm = fsm.NewFSM(
		entry.Status,
		fsm.Events{
			// draft → posted (balances affected)
			{Name: EventPost, Src: []string{models.EntryStatusDraft}, Dst: models.EntryStatusPosted},

			// draft → rejected (never affects balances)
			{Name: EventReject, Src: []string{models.EntryStatusDraft}, Dst: models.EntryStatusRejected},

			// posted → reversed (balance effects undone)
			{Name: EventReverse, Src: []string{models.EntryStatusPosted}, Dst: models.EntryStatusReversed},
		},
		fsm.Callbacks{},
	)

	return efsm
}

// Post transitions the entry to posted
func (e *EntryFSM) Post(ctx context.Context) error {
	if !e.entry.MayPost() {
		return fmt.Errorf("entry cannot be posted in current state: %s", e.entry.Status)
	}

	if err := e.fsm.Event(ctx, EventPost); err != nil {
		return fmt.Errorf("failed to post entry: %w", err)
	}

	e.entry.Status = e.fsm.Current()
	return nil
}

// Reject transitions the entry to rejected
func (e *EntryFSM) Reject(ctx context.Context) error {
	if !e.entry.MayReject() {
		return fmt.Errorf("entry cannot be rejected in current state: %s", e.entry.Status)
	}

	if err := e.fsm.Event(ctx, EventReject); err != nil {
		return fmt.Errorf("failed to reject entry: %w", err)
	}

	e.entry.Status = e.fsm.Current()
	return nil
}

// Reverse transitions a posted entry to reversed
func (e *EntryFSM) Reverse(ctx context.Context) error {
	if !e.entry.MayReverse() {
		return fmt.Errorf("entry cannot be reversed in current state: %s", e.entry.Status)
	}

	if err := e.fsm.Event(ctx, EventReverse); err != nil {
		return fmt.Errorf("failed to reverse entry: %w", err)
	}

	e.entry.Status = e.fsm.Current()
	return nil
}

// Current returns the current state
func (e *EntryFSM) Current() string {
	return e.fsm.Current()
}

// Can checks if a transition is possible
func (e *EntryFSM) Can(event string) bool {
	return e.fsm.Can(event)
}
