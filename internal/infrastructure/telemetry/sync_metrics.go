package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrPath       = attribute.Key("factory.path")
	AttrOutcome    = attribute.Key("outcome")
	AttrTransition = attribute.Key("transition")
	AttrOperation  = attribute.Key("operation")
)

// SyncMetrics records factory calls, lifecycle transitions and sync outcomes
// on an OTel meter
type SyncMetrics struct {
	factoryCalls    *Counter
	factoryDuration *Histogram
	transitions     *Counter
	syncOutcomes    *Counter
}

// NewSyncMetrics creates the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error
	if m.factoryCalls, err = NewCounter(meter, "bridge_factory_calls_total", "Factory API calls by path and outcome", "{call}"); err != nil {
		return nil, err
	}
	if m.factoryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "bridge_factory_call_duration_seconds",
		Description: "Factory API call latency including throttle wait",
		Unit:        "s",
		Boundaries:  RPCDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.transitions, err = NewCounter(meter, "bridge_lifecycle_transitions_total", "Order lifecycle tag transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.syncOutcomes, err = NewCounter(meter, "bridge_sync_orders_total", "Orders processed by sync operation and outcome", "{order}"); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveFactoryCall records one factory API call
func (m *SyncMetrics) ObserveFactoryCall(path, outcome string, elapsed time.Duration) {
	ctx := context.Background()
	m.factoryCalls.Inc(ctx, AttrPath.String(path), AttrOutcome.String(outcome))
	m.factoryDuration.RecordDuration(ctx, elapsed, AttrPath.String(path))
}

// ObserveTransition records one lifecycle write
func (m *SyncMetrics) ObserveTransition(ctx context.Context, transition string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.transitions.Inc(ctx, AttrTransition.String(transition), AttrOutcome.String(outcome))
}

// ObserveSync records the outcome of one order in a sync operation
func (m *SyncMetrics) ObserveSync(ctx context.Context, operation, outcome string) {
	m.syncOutcomes.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
}
