// Package events defines the business events that drive rule automation and
// the transports that deliver them to the engine.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sjperalta/fintera-ledger/internal/models"
)

var ErrInvalidEvent = errors.New("events: invalid event")

// Event is one upstream business occurrence
type Event struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Trigger    string    `json:"trigger"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event stamped with a fresh id and the given time.
func New(tenantID, trigger string, payload Payload, at time.Time) Event {
	if payload == nil {
		payload = Payload{}
	}
	return Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Trigger:    trigger,
		Payload:    payload,
		OccurredAt: at,
	}
}

// Validate checks that the event can be routed
func (e Event) Validate() error {
	if e.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidEvent)
	}
	if !models.IsValidTrigger(e.Trigger) {
		return fmt.Errorf("%w: unknown trigger %q", ErrInvalidEvent, e.Trigger)
	}
	return nil
}

// Reference is the idempotency key of the posting this event produces. The
// payload may override the reference type; otherwise it is the trigger name.
// Events without a reference_id fall back to their own id.
func (e Event) Reference() (refType, refID string) {
	refType = e.Trigger
	if v, ok := e.Payload.String(FieldReferenceType); ok && v != "" {
		refType = v
	}
	refID = e.Payload.ReferenceID()
	if refID == "" {
		refID = e.ID
	}
	return refType, refID
}

// Decode parses a wire event. Numbers in the payload are kept as json.Number
// so amounts never pass through float64.
func Decode(data []byte) (Event, error) {
	var ev Event
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.Payload == nil {
		ev.Payload = Payload{}
	}
	return ev, nil
}
