package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/telemetry"
)

// Upstream order searches used by the sweeps
const (
	PushableOrdersQuery    = "tag:'factory:placed' -tag:'factory:pushed' financial_status:paid"
	FulfillableOrdersQuery = "tag:'factory:pushed' -tag:'factory:fulfilled' financial_status:paid"
)

// Sync operation names used in logs and metrics
const (
	OperationPlace = "place"
	OperationPush  = "push"
	OperationPoll  = "poll"
)

// Per-order outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// DefaultCourierCompany is used when the factory reports no carrier
const DefaultCourierCompany = "Other"

// SyncConfig holds orchestration settings
type SyncConfig struct {
	// AutoPush releases an order to production right after placement
	AutoPush bool
	// SearchLimit is the page size of the upstream order searches
	SearchLimit int
	// DeliveryBatchSize caps the ids sent in one delivery query
	DeliveryBatchSize int
	// PushBatchSize caps the ids sent in one push call
	PushBatchSize int
	// NotifyCustomer is passed to created fulfillments
	NotifyCustomer bool
}

// DefaultSyncConfig returns the standard settings
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AutoPush:          true,
		SearchLimit:       50,
		DeliveryBatchSize: 100,
		PushBatchSize:     100,
		NotifyCustomer:    false,
	}
}

func (c *SyncConfig) applyDefaults() {
	d := DefaultSyncConfig()
	if c.SearchLimit <= 0 {
		c.SearchLimit = d.SearchLimit
	}
	if c.DeliveryBatchSize <= 0 {
		c.DeliveryBatchSize = d.DeliveryBatchSize
	}
	if c.PushBatchSize <= 0 {
		c.PushBatchSize = d.PushBatchSize
	}
}

// PlaceResult is the outcome of one placement run
type PlaceResult struct {
	OrderID string   `json:"order_id"`
	Placed  bool     `json:"placed"`
	Pushed  bool     `json:"pushed"`
	Skipped bool     `json:"skipped"`
	Tags    []string `json:"tags"`
	Error   string   `json:"error,omitempty"`
}

// PushResult is the outcome of a push sweep
type PushResult struct {
	Pushed int      `json:"pushed"`
	IDs    []string `json:"ids"`
	Failed []string `json:"failed,omitempty"`
}

// PollResult is the outcome of a fulfillment poll
type PollResult struct {
	OK      bool     `json:"ok"`
	Checked int      `json:"checked"`
	Created int      `json:"created"`
	Failed  []string `json:"failed,omitempty"`
}

// InspectResult previews the payload of an order without submitting it
type InspectResult struct {
	PlatformOid           string                             `json:"platformOid"`
	GoodsCount            int                                `json:"goodsCount"`
	MissingImageLines     []string                           `json:"missingImageLines"`
	SampleFirstLineImages fulfillment.ImageList              `json:"sampleFirstLineImages"`
	PayloadPreview        *fulfillment.CanonicalOrderPayload `json:"payloadPreview"`
}

// SyncService moves paid upstream orders through the factory lifecycle.
// Orders are processed one at a time; a failing order is tagged and the
// sweep moves on.
type SyncService struct {
	upstream fulfillment.UpstreamPlatform
	factory  fulfillment.Factory
	mapper   *PayloadMapper
	tracker  *LifecycleTracker
	config   SyncConfig
	logger   *zap.Logger
	metrics  Metrics
}

// SyncServiceConfig holds the collaborators of a SyncService
type SyncServiceConfig struct {
	Upstream fulfillment.UpstreamPlatform
	Factory  fulfillment.Factory
	Mapper   *PayloadMapper
	Config   SyncConfig
	Logger   *zap.Logger
	Metrics  Metrics
}

// NewSyncService creates a SyncService
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	config := cfg.Config
	config.applyDefaults()

	return &SyncService{
		upstream: cfg.Upstream,
		factory:  cfg.Factory,
		mapper:   cfg.Mapper,
		tracker:  NewLifecycleTracker(cfg.Upstream, logger, metrics),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Tracker returns the lifecycle tracker
func (s *SyncService) Tracker() *LifecycleTracker {
	return s.tracker
}

// ---------------------------------------------------------------------------
// Placement
// ---------------------------------------------------------------------------

// SyncOrder fetches an order and places it. Errors are returned only when the
// order could not be fetched; placement failures are tagged on the order and
// reported in the result.
func (s *SyncService) SyncOrder(ctx context.Context, rawID string) (*PlaceResult, error) {
	orderID, err := fulfillment.ParseOrderID(rawID)
	if err != nil {
		return nil, err
	}
	order, err := s.upstream.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	result, _ := s.PlaceOrder(ctx, order)
	return result, nil
}

// PlaceOrder maps and submits an order, pushes it when auto push is on, and
// writes the lifecycle tags. A fulfilled order is left alone. The returned
// error is the placement or push failure, already recorded on the order.
func (s *SyncService) PlaceOrder(ctx context.Context, order *fulfillment.Order) (*PlaceResult, error) {
	ctx, span := telemetry.StartOrderSpan(ctx, OperationPlace, order.ID, order.DisplayNo())
	defer span.End()

	tags := order.Tags
	result := &PlaceResult{OrderID: order.ID, Tags: tags}
	logger := s.logger.With(zap.String("order_id", order.ID), zap.String("order_name", order.DisplayNo()))

	if fulfillment.StateFromTags(tags).Stage == fulfillment.StageFulfilled {
		logger.Info("Order already fulfilled, skipping placement")
		result.Skipped = true
		s.metrics.ObserveSync(ctx, OperationPlace, OutcomeSkipped)
		return result, nil
	}

	fail := func(err error) (*PlaceResult, error) {
		telemetry.RecordError(span, err)
		logger.Error("Factory sync failed", zap.Error(err))
		out, tagErr := s.tracker.MarkError(ctx, order.ID, tags, err)
		if tagErr != nil {
			logger.Error("Failed to record error on order", zap.Error(tagErr))
		}
		result.Tags = out
		result.Error = err.Error()
		s.metrics.ObserveSync(ctx, OperationPlace, OutcomeFailed)
		return result, err
	}

	payload, err := s.mapper.MapOrder(ctx, order)
	if err != nil {
		return fail(err)
	}
	if err := s.factory.PlaceOrder(ctx, payload); err != nil {
		return fail(err)
	}
	result.Placed = true
	logger.Info("Factory placement succeeded", zap.Int("lines", len(payload.GoodsList)))

	if tags, err = s.tracker.MarkPlaced(ctx, order.ID, tags); err != nil {
		return fail(err)
	}
	result.Tags = tags

	if s.config.AutoPush {
		if err := s.factory.PushOrder(ctx, []string{order.ID}); err != nil {
			return fail(err)
		}
		result.Pushed = true
		logger.Info("Factory push succeeded")

		if tags, err = s.tracker.MarkPushed(ctx, order.ID, tags); err != nil {
			return fail(err)
		}
		result.Tags = tags
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrStage, fulfillment.StateFromTags(result.Tags).Stage.String())
	telemetry.SetOK(span)
	s.metrics.ObserveSync(ctx, OperationPlace, OutcomeSuccess)
	return result, nil
}

// ---------------------------------------------------------------------------
// Push sweep
// ---------------------------------------------------------------------------

// PushOrders releases orders to production. With no ids it pushes the paid
// orders that are placed but not pushed. A failing batch tags its orders and
// the sweep continues with the next batch.
func (s *SyncService) PushOrders(ctx context.Context, ids []string) (*PushResult, error) {
	runID := uuid.New().String()
	ctx, span := telemetry.StartRunSpan(ctx, OperationPush, runID)
	defer span.End()
	logger := s.logger.With(zap.String("run_id", runID))

	result := &PushResult{IDs: []string{}}
	known := make(map[string][]string)
	if len(ids) > 0 {
		ids, result.Failed = normalizeOrderIDs(ids)
		for _, raw := range result.Failed {
			logger.Warn("Skipping invalid order id", zap.String("order_id", raw))
			s.metrics.ObserveSync(ctx, OperationPush, OutcomeFailed)
		}
	} else {
		orders, err := s.upstream.SearchOrders(ctx, PushableOrdersQuery, s.config.SearchLimit)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to search pushable orders: %w", err)
		}
		for _, o := range orders {
			ids = append(ids, o.ID)
			known[o.ID] = o.Tags
		}
	}

	if len(ids) == 0 {
		return result, nil
	}
	logger.Info("Starting push sweep", zap.Int("orders", len(ids)))

	for start := 0; start < len(ids); start += s.config.PushBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := ids[start:min(start+s.config.PushBatchSize, len(ids))]

		if err := s.factory.PushOrder(ctx, batch); err != nil {
			logger.Error("Factory push failed", zap.Strings("batch", batch), zap.Error(err))
			for _, id := range batch {
				s.recordFailure(ctx, id, known, err)
				result.Failed = append(result.Failed, id)
				s.metrics.ObserveSync(ctx, OperationPush, OutcomeFailed)
			}
			continue
		}

		result.Pushed += len(batch)
		result.IDs = append(result.IDs, batch...)
		for _, id := range batch {
			tags, err := s.currentTags(ctx, id, known)
			if err == nil {
				_, err = s.tracker.MarkPushed(ctx, id, tags)
			}
			if err != nil {
				logger.Error("Failed to tag pushed order", zap.String("order_id", id), zap.Error(err))
			}
			s.metrics.ObserveSync(ctx, OperationPush, OutcomeSuccess)
		}
	}

	logger.Info("Push sweep finished",
		zap.Int("pushed", result.Pushed),
		zap.Int("failed", len(result.Failed)))
	telemetry.SetAttributes(span, telemetry.SpanAttrPushed, result.Pushed, telemetry.SpanAttrFailed, len(result.Failed))
	telemetry.SetOK(span)
	return result, nil
}

// ---------------------------------------------------------------------------
// Fulfillment poll
// ---------------------------------------------------------------------------

// PollFulfillments checks pushed but unfulfilled orders for tracking data,
// creates the upstream fulfillment and marks the order fulfilled. Rows without
// a tracking number or without a fulfillment order are left for the next poll.
func (s *SyncService) PollFulfillments(ctx context.Context) (*PollResult, error) {
	runID := uuid.New().String()
	ctx, span := telemetry.StartRunSpan(ctx, OperationPoll, runID)
	defer span.End()
	logger := s.logger.With(zap.String("run_id", runID))

	orders, err := s.upstream.SearchOrders(ctx, FulfillableOrdersQuery, s.config.SearchLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to search fulfillable orders: %w", err)
	}
	result := &PollResult{OK: true, Checked: len(orders)}
	if len(orders) == 0 {
		return result, nil
	}

	known := make(map[string][]string, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		known[o.ID] = o.Tags
		ids = append(ids, o.ID)
	}
	if len(ids) > s.config.DeliveryBatchSize {
		ids = ids[:s.config.DeliveryBatchSize]
	}

	rows, err := s.factory.QueryOrderDelivery(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query factory delivery: %w", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		orderID, err := fulfillment.ParseOrderID(row.PlatformOid)
		if err != nil {
			logger.Warn("Skipping delivery row without order id", zap.String("platform_oid", row.PlatformOid))
			continue
		}

		created, err := s.fulfillOrder(ctx, orderID, row, known)
		switch {
		case err != nil:
			logger.Error("Failed to fulfill order", zap.String("order_id", orderID), zap.Error(err))
			s.recordFailure(ctx, orderID, known, err)
			result.Failed = append(result.Failed, orderID)
			s.metrics.ObserveSync(ctx, OperationPoll, OutcomeFailed)
		case created:
			result.Created++
			s.metrics.ObserveSync(ctx, OperationPoll, OutcomeSuccess)
		default:
			s.metrics.ObserveSync(ctx, OperationPoll, OutcomeSkipped)
		}
	}

	logger.Info("Fulfillment poll finished",
		zap.Int("checked", result.Checked),
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Failed)))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrChecked, result.Checked,
		telemetry.SpanAttrCreated, result.Created,
		telemetry.SpanAttrFailed, len(result.Failed),
	)
	telemetry.SetOK(span)
	return result, nil
}

func (s *SyncService) fulfillOrder(ctx context.Context, orderID string, row fulfillment.DeliveryRecord, known map[string][]string) (bool, error) {
	if strings.TrimSpace(row.TrackingNumber) == "" {
		s.logger.Debug("No tracking number yet", zap.String("order_id", orderID))
		return false, nil
	}

	foID, err := s.upstream.FulfillmentOrderID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if foID == "" {
		s.logger.Warn("Order has no fulfillment order", zap.String("order_id", orderID))
		return false, nil
	}

	tracking := fulfillment.TrackingInfo{
		Number:  row.TrackingNumber,
		URL:     row.WaybillURL,
		Company: row.CourierCompany,
	}
	if tracking.Company == "" {
		tracking.Company = DefaultCourierCompany
	}
	if err := s.upstream.CreateFulfillment(ctx, foID, tracking, s.config.NotifyCustomer); err != nil {
		return false, err
	}

	tags, err := s.currentTags(ctx, orderID, known)
	if err != nil {
		return true, err
	}
	if _, err := s.tracker.MarkFulfilled(ctx, orderID, tags); err != nil {
		return true, err
	}
	s.logger.Info("Order fulfilled",
		zap.String("order_id", orderID),
		zap.String("tracking_number", tracking.Number),
		zap.String("company", tracking.Company))
	return true, nil
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// Inspect maps an order and reports the lines without images. Nothing is
// submitted and no tags change.
func (s *SyncService) Inspect(ctx context.Context, rawID string) (*InspectResult, error) {
	order, err := s.fetch(ctx, rawID)
	if err != nil {
		return nil, err
	}
	payload, err := s.mapper.Build(ctx, order)
	if err != nil {
		return nil, err
	}
	result := &InspectResult{
		PlatformOid:           order.ID,
		GoodsCount:            len(payload.GoodsList),
		MissingImageLines:     payload.MissingImageLines(),
		SampleFirstLineImages: fulfillment.ImageList{},
		PayloadPreview:        payload,
	}
	if result.MissingImageLines == nil {
		result.MissingImageLines = []string{}
	}
	if len(payload.GoodsList) > 0 {
		result.SampleFirstLineImages = payload.GoodsList[0].ImageList
	}
	return result, nil
}

// PlaceOnly submits an order to the factory without pushing or tagging it
func (s *SyncService) PlaceOnly(ctx context.Context, rawID string) (*fulfillment.CanonicalOrderPayload, error) {
	order, err := s.fetch(ctx, rawID)
	if err != nil {
		return nil, err
	}
	payload, err := s.mapper.MapOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Placing order without lifecycle tags",
		zap.String("order_id", order.ID),
		zap.Any("first_line_images", firstLineImages(payload)))
	if err := s.factory.PlaceOrder(ctx, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// GetOrder fetches the upstream order
func (s *SyncService) GetOrder(ctx context.Context, rawID string) (*fulfillment.Order, error) {
	return s.fetch(ctx, rawID)
}

func (s *SyncService) fetch(ctx context.Context, rawID string) (*fulfillment.Order, error) {
	orderID, err := fulfillment.ParseOrderID(rawID)
	if err != nil {
		return nil, err
	}
	return s.upstream.GetOrder(ctx, orderID)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// normalizeOrderIDs reduces gids and order names to numeric ids, dropping
// duplicates. Ids without digits are returned as invalid.
func normalizeOrderIDs(raw []string) (ids, invalid []string) {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		id, err := fulfillment.ParseOrderID(r)
		if err != nil {
			invalid = append(invalid, r)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, invalid
}

// currentTags returns the tags of an order, from the search result when the
// order came from one, else from the upstream order itself
func (s *SyncService) currentTags(ctx context.Context, orderID string, known map[string][]string) ([]string, error) {
	if tags, ok := known[orderID]; ok {
		return tags, nil
	}
	order, err := s.upstream.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	known[orderID] = order.Tags
	return order.Tags, nil
}

func (s *SyncService) recordFailure(ctx context.Context, orderID string, known map[string][]string, cause error) {
	tags, err := s.currentTags(ctx, orderID, known)
	if err != nil && !errors.Is(err, fulfillment.ErrOrderNotFound) {
		s.logger.Warn("Failed to read order tags", zap.String("order_id", orderID), zap.Error(err))
	}
	out, err := s.tracker.MarkError(ctx, orderID, tags, cause)
	if err != nil {
		s.logger.Error("Failed to record error on order", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	known[orderID] = out
}

func firstLineImages(p *fulfillment.CanonicalOrderPayload) fulfillment.ImageList {
	if len(p.GoodsList) == 0 {
		return nil
	}
	return p.GoodsList[0].ImageList
}
