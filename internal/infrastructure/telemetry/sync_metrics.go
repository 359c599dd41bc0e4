package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics counts cart and order synchronization activity. A nil
// *SyncMetrics records nothing.
type SyncMetrics struct {
	remoteWrites      *Counter
	remoteWriteTime   *Histogram
	merges            *Counter
	transitions       *Counter
	feedEvents        *Counter
	pollReconciles    *Counter
	paymentReconciles *Counter
}

// NewSyncMetrics registers the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	var (
		m   SyncMetrics
		err error
	)
	if m.remoteWrites, err = NewCounter(meter, "cart_remote_writes",
		"Debounced cart write-backs to the remote store", "{write}"); err != nil {
		return nil, err
	}
	if m.remoteWriteTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "cart_remote_write_duration",
		Description: "Duration of cart write-backs",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.merges, err = NewCounter(meter, "cart_merges",
		"Guest carts merged into an authenticated cart", "{merge}"); err != nil {
		return nil, err
	}
	if m.transitions, err = NewCounter(meter, "order_transitions",
		"Order status transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.feedEvents, err = NewCounter(meter, "feed_events_applied",
		"Change feed events applied to order views", "{event}"); err != nil {
		return nil, err
	}
	if m.pollReconciles, err = NewCounter(meter, "poll_reconciliations",
		"Order views replaced by a newer polled copy", "{reconciliation}"); err != nil {
		return nil, err
	}
	if m.paymentReconciles, err = NewCounter(meter, "payment_reconciliations",
		"Payment results applied by the reconciler", "{reconciliation}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoteWrite records one cart write-back. kind is empty on success.
func (m *SyncMetrics) RemoteWrite(ctx context.Context, d time.Duration, kind string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if kind != "" {
		outcome = "error"
	}
	m.remoteWrites.Inc(ctx, AttrOutcome.String(outcome), AttrErrorKind.String(kind))
	m.remoteWriteTime.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// Merge records a guest to user merge
func (m *SyncMetrics) Merge(ctx context.Context) {
	if m == nil {
		return
	}
	m.merges.Inc(ctx)
}

// Transition records an order status change
func (m *SyncMetrics) Transition(ctx context.Context, from, to, actor string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx, AttrFromState.String(from), AttrToState.String(to), AttrActor.String(actor))
}

// FeedEvent records a change applied by an order view
func (m *SyncMetrics) FeedEvent(ctx context.Context, entity, event string) {
	if m == nil {
		return
	}
	m.feedEvents.Inc(ctx, AttrEntity.String(entity), AttrEvent.String(event))
}

// PollReconciliation records a view replaced by polling
func (m *SyncMetrics) PollReconciliation(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.pollReconciles.Inc(ctx, attrs...)
}

// PaymentReconciliation records a payment result applied by the reconciler
func (m *SyncMetrics) PaymentReconciliation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.paymentReconciles.Inc(ctx, AttrPayment.String(status))
}
