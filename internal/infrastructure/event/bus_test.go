package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	eventTypes []string
	err        error
	panics     bool
	mu         sync.Mutex
	handled    []shared.DomainEvent
}

func (h *recordingHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, evt)
	h.mu.Unlock()
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.eventTypes }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func newTestPaymentEvent(t *testing.T) shared.DomainEvent {
	t.Helper()
	p, err := invoicing.NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(10), invoicing.PaymentMethodCash, testTime, "", "")
	require.NoError(t, err)
	return invoicing.NewPaymentRecordedEvent(p)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		payments := &recordingHandler{eventTypes: []string{invoicing.EventTypePaymentRecorded}}
		invoices := &recordingHandler{eventTypes: []string{invoicing.EventTypeInvoiceCancelled}}
		bus.Subscribe(payments)
		bus.Subscribe(invoices)

		require.NoError(t, bus.Publish(context.Background(), newTestPaymentEvent(t), newTestPaymentEvent(t)))

		assert.Equal(t, 2, payments.count())
		assert.Equal(t, 0, invoices.count())
		published, failed := bus.Stats()
		assert.Equal(t, int64(2), published)
		assert.Equal(t, int64(0), failed)
	})

	t.Run("wildcard handler receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		all := &recordingHandler{}
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(context.Background(), newTestPaymentEvent(t), nil))
		assert.Equal(t, 1, all.count())
	})

	t.Run("failing handlers do not stop delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{err: errors.New("handler error")}
		panicking := &recordingHandler{panics: true}
		healthy := &recordingHandler{}
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(context.Background(), newTestPaymentEvent(t)))
		assert.Equal(t, 1, healthy.count())
		_, failed := bus.Stats()
		assert.Equal(t, int64(2), failed)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{eventTypes: []string{invoicing.EventTypePaymentRecorded}}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(context.Background(), newTestPaymentEvent(t)))
		assert.Equal(t, 0, h.count())
		assert.Equal(t, 0, bus.registry.Len())
	})
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.running.Load())
	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.running.Load())
}

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewAuditLogHandler(zap.New(core)))

	evt := newTestPaymentEvent(t)
	require.NoError(t, bus.Publish(context.Background(), evt))

	entries := logs.FilterMessage(invoicing.EventTypePaymentRecorded).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, evt.EventID().String(), fields["event_id"])
	assert.Equal(t, invoicing.AggregateTypePayment, fields["aggregate_type"])
}

var testTime = mustParseTime("2026-04-01T10:00:00Z")

func mustParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
