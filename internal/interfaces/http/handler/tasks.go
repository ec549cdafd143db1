package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// TaskRunner runs the sweeps behind the admin task buttons
type TaskRunner interface {
	PushOrders(ctx context.Context, ids []string) (*fulfillmentapp.PushResult, error)
	PollFulfillments(ctx context.Context) (*fulfillmentapp.PollResult, error)
}

// TaskHandler serves the admin task endpoints
type TaskHandler struct {
	BaseHandler
	runner TaskRunner
}

// NewTaskHandler creates a TaskHandler
func NewTaskHandler(runner TaskRunner) *TaskHandler {
	return &TaskHandler{runner: runner}
}

// Poll looks up tracking for pushed orders and fulfills the shipped ones.
// Answers {ok, checked, created}.
func (h *TaskHandler) Poll(c *gin.Context) {
	result, err := h.runner.PollFulfillments(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Fulfillment poll finished",
		zap.Int("checked", result.Checked),
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Failed)),
	)
	c.JSON(http.StatusOK, result)
}

// Push releases placed orders to production. The orders come from orderId
// or ids in the query or JSON body; without them every placed, unpushed
// paid order is pushed. Answers {pushed, ids}.
func (h *TaskHandler) Push(c *gin.Context) {
	var query, body dto.PushRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if c.Request.ContentLength != 0 {
		// an empty or non-JSON body only means no ids were sent
		_ = c.ShouldBindJSON(&body)
	}
	ids, err := query.Merge(body).OrderIDs()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.runner.PushOrders(c.Request.Context(), ids)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.IDs == nil {
		result.IDs = []string{}
	}
	c.JSON(http.StatusOK, result)
}
