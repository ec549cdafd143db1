package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// Transition names used in logs and metrics
const (
	TransitionPlaced    = "placed"
	TransitionPushed    = "pushed"
	TransitionFulfilled = "fulfilled"
	TransitionError     = "error"
)

// Metrics receives sync outcomes. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveTransition(ctx context.Context, transition string, ok bool)
	ObserveSync(ctx context.Context, operation, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(context.Context, string, bool) {}
func (nopMetrics) ObserveSync(context.Context, string, string)     {}

// LifecycleTracker writes lifecycle transitions to the upstream order as one
// tag diff each: additions first, then removals.
type LifecycleTracker struct {
	upstream fulfillment.UpstreamPlatform
	logger   *zap.Logger
	metrics  Metrics
}

// NewLifecycleTracker creates a tracker
func NewLifecycleTracker(upstream fulfillment.UpstreamPlatform, logger *zap.Logger, metrics Metrics) *LifecycleTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &LifecycleTracker{upstream: upstream, logger: logger, metrics: metrics}
}

// MarkPlaced records a placement and returns the resulting tags
func (t *LifecycleTracker) MarkPlaced(ctx context.Context, orderID string, tags []string) ([]string, error) {
	return t.apply(ctx, orderID, TransitionPlaced, tags, fulfillment.MarkPlaced(tags))
}

// MarkPushed records a push and returns the resulting tags
func (t *LifecycleTracker) MarkPushed(ctx context.Context, orderID string, tags []string) ([]string, error) {
	return t.apply(ctx, orderID, TransitionPushed, tags, fulfillment.MarkPushed(tags))
}

// MarkFulfilled records a created fulfillment and returns the resulting tags
func (t *LifecycleTracker) MarkFulfilled(ctx context.Context, orderID string, tags []string) ([]string, error) {
	return t.apply(ctx, orderID, TransitionFulfilled, tags, fulfillment.MarkFulfilled(tags))
}

// MarkError adds the error tag and writes the cause to the last-error metafield.
// The metafield is written even when the order already carries the error tag.
func (t *LifecycleTracker) MarkError(ctx context.Context, orderID string, tags []string, cause error) ([]string, error) {
	out, err := t.apply(ctx, orderID, TransitionError, tags, fulfillment.MarkError(tags))
	if err != nil {
		return tags, err
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.upstream.SetLastError(ctx, orderID, fulfillment.TruncateMessage(msg)); err != nil {
		return out, fmt.Errorf("failed to write last error for order %s: %w", orderID, err)
	}
	return out, nil
}

func (t *LifecycleTracker) apply(ctx context.Context, orderID, transition string, tags []string, diff fulfillment.TagDiff) ([]string, error) {
	if diff.IsEmpty() {
		t.metrics.ObserveTransition(ctx, transition, true)
		return tags, nil
	}
	if err := t.upstream.AddTags(ctx, orderID, diff.Add); err != nil {
		t.metrics.ObserveTransition(ctx, transition, false)
		return tags, fmt.Errorf("failed to add tags %v to order %s: %w", diff.Add, orderID, err)
	}
	if err := t.upstream.RemoveTags(ctx, orderID, diff.Remove); err != nil {
		t.metrics.ObserveTransition(ctx, transition, false)
		return fulfillment.TagDiff{Add: diff.Add}.Apply(tags), fmt.Errorf("failed to remove tags %v from order %s: %w", diff.Remove, orderID, err)
	}
	t.metrics.ObserveTransition(ctx, transition, true)
	t.logger.Debug("Lifecycle tags written",
		zap.String("order_id", orderID),
		zap.String("transition", transition),
		zap.Strings("added", diff.Add),
		zap.Strings("removed", diff.Remove))
	return diff.Apply(tags), nil
}
