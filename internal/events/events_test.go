package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsExactAmounts(t *testing.T) {
	ev, err := Decode([]byte(`{"tenant_id":"acme","trigger":"payment_received","payload":{"amount":1000.10,"reference_id":1001}}`))
	require.NoError(t, err)

	amount, ok, err := ev.Payload.Decimal(FieldAmount)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("1000.10")))
	assert.Equal(t, "1001", ev.Payload.ReferenceID())
}

func TestEventReference(t *testing.T) {
	ev := New("acme", "payment_received", Payload{"reference_id": "pay-1"}, time.Now())
	refType, refID := ev.Reference()
	assert.Equal(t, "payment_received", refType)
	assert.Equal(t, "pay-1", refID)

	ev.Payload[FieldReferenceType] = "scheduled_rule"
	refType, _ = ev.Reference()
	assert.Equal(t, "scheduled_rule", refType)

	anon := New("acme", "fuel_purchase", nil, time.Now())
	_, refID = anon.Reference()
	assert.Equal(t, anon.ID, refID)
}

func TestPayloadDecimal(t *testing.T) {
	p := Payload{"a": "12.5", "b": 3, "c": "abc"}

	v, ok, err := p.Decimal("a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("12.5")))

	v, _, _ = p.Decimal("b")
	assert.True(t, v.Equal(decimal.NewFromInt(3)))

	_, ok, err = p.Decimal("c")
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, err = p.Decimal("missing")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestPayloadDate(t *testing.T) {
	d, ok := Payload{"date": "2026-02-01"}.Date()
	assert.True(t, ok)
	assert.Equal(t, 2026, d.Year())

	_, ok = Payload{"date": "yesterday"}.Date()
	assert.False(t, ok)
}

func TestInMemoryBusRunsEveryHandler(t *testing.T) {
	bus := NewInMemoryBus()
	var calls atomic.Int32
	boom := errors.New("boom")

	bus.Subscribe("payment_received", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return boom
	})
	unsubscribe := bus.Subscribe("payment_received", func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	})
	bus.Subscribe("invoice_generated", func(ctx context.Context, ev Event) error {
		t.Fatal("handler for another trigger must not run")
		return nil
	})

	err := bus.Publish(context.Background(), New("acme", "payment_received", nil, time.Now()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, bus.Subscribers("payment_received"))
}

func TestPubSubDispatchAckPolicy(t *testing.T) {
	permanent := errors.New("permanent")
	transient := errors.New("transient")

	bus := NewInMemoryBus()
	var next error
	bus.Subscribe("payment_received", func(ctx context.Context, ev Event) error { return next })
	src := newSource(bus, func(err error) bool { return errors.Is(err, permanent) })
	ctx := context.Background()

	msg := []byte(`{"trigger":"payment_received","payload":{"amount":5}}`)
	attrs := map[string]string{"tenant_id": "acme"}

	next = nil
	assert.True(t, src.dispatch(ctx, msg, attrs))

	next = permanent
	assert.True(t, src.dispatch(ctx, msg, attrs), "permanent failures are acked")

	next = transient
	assert.False(t, src.dispatch(ctx, msg, attrs), "transient failures are retried")

	assert.True(t, src.dispatch(ctx, []byte(`not json`), nil), "poison messages are dropped")
	assert.True(t, src.dispatch(ctx, msg, nil), "events without a tenant are dropped")
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Subscribe(trigger string, h Handler) func() {
	m.Called(trigger, h)
	return func() {}
}

func (m *mockBus) Publish(ctx context.Context, ev Event) error {
	return m.Called(ctx, ev).Error(0)
}

func TestPubSubDispatchFillsEnvelopeFromAttributes(t *testing.T) {
	at := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	bus := &mockBus{}
	bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev Event) bool {
		return ev.TenantID == "acme" && ev.Trigger == "invoice_generated" &&
			ev.OccurredAt.Equal(at) && ev.Payload["reference_id"] == "inv-9"
	})).Return(nil).Once()

	src := newSource(bus, nil)
	src.now = func() time.Time { return at }

	msg := []byte(`{"id":"evt-1","payload":{"reference_id":"inv-9","amount":"40.00"}}`)
	ok := src.dispatch(context.Background(), msg, map[string]string{"tenant_id": "acme", "trigger": "invoice_generated"})

	assert.True(t, ok)
	bus.AssertExpectations(t)
}
