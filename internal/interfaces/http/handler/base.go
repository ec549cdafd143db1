package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/factory"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/shopify"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success envelope
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// HandleError logs err and answers with the code it classifies as
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	code := ErrorCode(err)
	status := dto.GetHTTPStatus(code)
	l := logger.L(c.Request.Context())
	if status >= http.StatusInternalServerError {
		l.Error("Request failed", zap.String("code", code), zap.Error(err))
	} else {
		l.Warn("Request rejected", zap.String("code", code), zap.Error(err))
	}
	_ = c.Error(err)
	h.Error(c, status, code, err.Error())
}

// ErrorCode classifies an error from the sync stack
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, fulfillment.ErrInvalidOrderID):
		return dto.ErrCodeInvalidInput
	case errors.Is(err, fulfillment.ErrOrderNotFound):
		return dto.ErrCodeNotFound
	case errors.Is(err, fulfillment.ErrMissingImages):
		return dto.ErrCodeMissingImages
	case errors.Is(err, factory.ErrTransport), errors.Is(err, factory.ErrBusiness):
		return dto.ErrCodeFactory
	case errors.Is(err, shopify.ErrRequestFailed):
		return dto.ErrCodeUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeUpstream
	}
	return dto.ErrCodeInternal
}
