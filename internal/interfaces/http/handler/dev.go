package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// OrdersPaidTopic is the webhook topic the bridge listens to
const OrdersPaidTopic = "orders/paid"

// OrdersPaidPath is where orders/paid deliveries are received
const OrdersPaidPath = "/webhooks/orders_paid"

// OrderInspector backs the diagnostic endpoints
type OrderInspector interface {
	GetOrder(ctx context.Context, rawID string) (*fulfillment.Order, error)
	Inspect(ctx context.Context, rawID string) (*fulfillmentapp.InspectResult, error)
	PlaceOnly(ctx context.Context, rawID string) (*fulfillment.CanonicalOrderPayload, error)
}

// WebhookRegistrar subscribes an address to a webhook topic
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, topic, address string) error
}

// DevHandler serves the diagnostic endpoints used while setting up a shop
type DevHandler struct {
	BaseHandler
	orders    OrderInspector
	registrar WebhookRegistrar
}

// NewDevHandler creates a DevHandler
func NewDevHandler(orders OrderInspector, registrar WebhookRegistrar) *DevHandler {
	return &DevHandler{orders: orders, registrar: registrar}
}

func (h *DevHandler) bindOrder(c *gin.Context) (string, bool) {
	var q dto.OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
			_ = c.ShouldBindJSON(&q)
		}
	}
	if strings.TrimSpace(q.ID) == "" {
		h.BadRequest(c, "pass ?id=<order id>")
		return "", false
	}
	return q.ID, true
}

// Order shows the upstream order with the image urls found in its lines
func (h *DevHandler) Order(c *gin.Context) {
	id, ok := h.bindOrder(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderView(order))
}

// Inspect previews the factory payload and the lines missing images
func (h *DevHandler) Inspect(c *gin.Context) {
	id, ok := h.bindOrder(c)
	if !ok {
		return
	}
	result, err := h.orders.Inspect(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Place submits the order to the factory without pushing or tagging it
func (h *DevHandler) Place(c *gin.Context) {
	id, ok := h.bindOrder(c)
	if !ok {
		return
	}
	payload, err := h.orders.PlaceOnly(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PlaceOnlyResponse{
		OK:          true,
		PlatformOid: payload.PlatformOid,
		GoodsCount:  len(payload.GoodsList),
	})
}

// RegisterWebhooks subscribes https://<host>/webhooks/orders_paid to orders/paid
func (h *DevHandler) RegisterWebhooks(c *gin.Context) {
	var q dto.RegisterWebhooksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, "pass ?host=<public host>")
		return
	}
	host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(q.Host), "https://"), "http://"), "/")
	if host == "" || strings.ContainsAny(host, "/?#") {
		h.BadRequest(c, "pass ?host=<public host>")
		return
	}
	address := fmt.Sprintf("https://%s%s", host, OrdersPaidPath)

	if err := h.registrar.RegisterWebhook(c.Request.Context(), OrdersPaidTopic, address); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Webhook registered",
		zap.String("topic", OrdersPaidTopic),
		zap.String("address", address),
	)
	c.JSON(http.StatusOK, dto.RegisterWebhooksResponse{
		OK:      true,
		Address: address,
		Topics:  []string{OrdersPaidTopic},
	})
}
