package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/jsonx"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/shopify"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// Webhook delivery headers
const (
	WebhookIDHeader    = "X-Shopify-Webhook-Id"
	WebhookTopicHeader = "X-Shopify-Topic"
)

// Webhook defaults
const (
	DefaultMaxWebhookPayload = 1 << 20
	DefaultDeliveryTTL       = 48 * time.Hour
)

// OrderPlacer places a paid order with the factory
type OrderPlacer interface {
	SyncOrder(ctx context.Context, rawID string) (*fulfillmentapp.PlaceResult, error)
}

// WebhookConfig configures the webhook endpoint
type WebhookConfig struct {
	// Secret is the app secret the deliveries are signed with
	Secret string
	// Deliveries remembers handled delivery ids; nil disables deduplication
	Deliveries fulfillment.IdempotencyStore
	// DeliveryTTL is how long a handled delivery id is remembered
	DeliveryTTL time.Duration
	// MaxPayload caps the body size
	MaxPayload int64
}

// WebhookHandler receives order events from the shop platform.
// These endpoints are authenticated by the body signature, not a session.
type WebhookHandler struct {
	BaseHandler
	placer OrderPlacer
	config WebhookConfig
	group  singleflight.Group
}

// NewWebhookHandler creates a WebhookHandler
func NewWebhookHandler(placer OrderPlacer, config WebhookConfig) *WebhookHandler {
	if config.DeliveryTTL <= 0 {
		config.DeliveryTTL = DefaultDeliveryTTL
	}
	if config.MaxPayload <= 0 {
		config.MaxPayload = DefaultMaxWebhookPayload
	}
	return &WebhookHandler{placer: placer, config: config}
}

type orderEvent struct {
	ID                jsonx.FlexString `json:"id"`
	AdminGraphQLAPIID string           `json:"admin_graphql_api_id"`
}

func (e orderEvent) orderID() string {
	if e.ID != "" {
		return string(e.ID)
	}
	return e.AdminGraphQLAPIID
}

// OrdersPaid handles the orders/paid topic: place the order, push it when
// auto push is on, and tag it. Placement failures are tagged on the order
// and still answered with ok, so the platform does not redeliver.
func (h *WebhookHandler) OrdersPaid(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L(ctx)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.config.MaxPayload+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(payload)) > h.config.MaxPayload {
		h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	if !shopify.VerifyWebhook(h.config.Secret, payload, c.GetHeader(shopify.HMACHeader)) {
		log.Warn("Webhook signature rejected", zap.String("topic", c.GetHeader(WebhookTopicHeader)))
		h.ErrorWithCode(c, dto.ErrCodeBadSignature, "invalid hmac")
		return
	}

	var event orderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.BadRequest(c, "Invalid order payload")
		return
	}
	orderID, err := fulfillment.ParseOrderID(event.orderID())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	ctx = logger.WithOrderID(ctx, orderID)
	log = logger.L(ctx)

	deliveryID := c.GetHeader(WebhookIDHeader)
	if h.seen(ctx, deliveryID) {
		log.Info("Duplicate webhook delivery ignored", zap.String("webhook_id", deliveryID))
		c.String(http.StatusOK, "ok")
		return
	}

	key := deliveryID
	if key == "" {
		key = "order:" + orderID
	}
	v, err, shared := h.group.Do(key, func() (any, error) {
		return h.placer.SyncOrder(ctx, orderID)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !shared {
		h.remember(ctx, deliveryID)
	}

	if result, ok := v.(*fulfillmentapp.PlaceResult); ok && result != nil {
		log.Info("Order webhook handled",
			zap.Bool("placed", result.Placed),
			zap.Bool("pushed", result.Pushed),
			zap.Bool("skipped", result.Skipped),
			zap.String("error", result.Error),
		)
	}
	c.String(http.StatusOK, "ok")
}

func (h *WebhookHandler) seen(ctx context.Context, deliveryID string) bool {
	if h.config.Deliveries == nil || deliveryID == "" {
		return false
	}
	seen, err := h.config.Deliveries.IsProcessed(ctx, deliveryID)
	if err != nil {
		logger.L(ctx).Warn("Delivery lookup failed", zap.String("webhook_id", deliveryID), zap.Error(err))
		return false
	}
	return seen
}

func (h *WebhookHandler) remember(ctx context.Context, deliveryID string) {
	if h.config.Deliveries == nil || deliveryID == "" {
		return
	}
	if _, err := h.config.Deliveries.MarkProcessed(context.WithoutCancel(ctx), deliveryID, h.config.DeliveryTTL); err != nil {
		logger.L(ctx).Warn("Failed to record webhook delivery", zap.String("webhook_id", deliveryID), zap.Error(err))
	}
}
