package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrSplit     = attribute.Key("split")
)

// Outcome values; failures use the lower-cased domain error code.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// SettlementMetrics holds the instruments recorded by the settlement
// workflows. A nil *SettlementMetrics records nothing.
type SettlementMetrics struct {
	operations      metric.Int64Counter
	duration        metric.Float64Histogram
	allocatedAmount metric.Float64Counter
	allocations     metric.Int64Counter
	reconcileRetry  metric.Int64Counter
	lockContention  metric.Int64Counter
}

// NewSettlementMetrics creates the settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	m := &SettlementMetrics{}
	var err error

	if m.operations, err = meter.Int64Counter("settlement.operations",
		metric.WithDescription("Settlement operations by outcome"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("settlement.operations: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("settlement.duration",
		metric.WithDescription("Settlement operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	); err != nil {
		return nil, fmt.Errorf("settlement.duration: %w", err)
	}
	if m.allocatedAmount, err = meter.Float64Counter("settlement.allocated_amount",
		metric.WithDescription("Money moved from client balances onto invoices"),
	); err != nil {
		return nil, fmt.Errorf("settlement.allocated_amount: %w", err)
	}
	if m.allocations, err = meter.Int64Counter("settlement.allocations",
		metric.WithDescription("Committed FIFO allocations, split or whole"),
		metric.WithUnit("{allocation}"),
	); err != nil {
		return nil, fmt.Errorf("settlement.allocations: %w", err)
	}
	if m.reconcileRetry, err = meter.Int64Counter("settlement.reconcile_retries",
		metric.WithDescription("Invoice status reconciles that had to be retried"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, fmt.Errorf("settlement.reconcile_retries: %w", err)
	}
	if m.lockContention, err = meter.Int64Counter("settlement.lock_contention",
		metric.WithDescription("Requests rejected because a lock or in-flight guard was held"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("settlement.lock_contention: %w", err)
	}
	return m, nil
}

// RecordOperation counts one finished operation and its latency.
func (m *SettlementMetrics) RecordOperation(ctx context.Context, operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	op := AttrOperation.String(operation)
	m.operations.Add(ctx, 1, metric.WithAttributes(op, AttrOutcome.String(outcomeOf(err))))
	m.duration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(op))
}

// RecordAllocation counts a committed allocation plan.
func (m *SettlementMetrics) RecordAllocation(ctx context.Context, amount decimal.Decimal, split bool) {
	if m == nil {
		return
	}
	m.allocatedAmount.Add(ctx, amount.InexactFloat64())
	m.allocations.Add(ctx, 1, metric.WithAttributes(AttrSplit.Bool(split)))
}

// RecordReconcileRetry counts one retried reconcile attempt.
func (m *SettlementMetrics) RecordReconcileRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.reconcileRetry.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

// RecordLockContention counts a request turned away by a held lock.
func (m *SettlementMetrics) RecordLockContention(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.lockContention.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if code := shared.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return OutcomeError
}
