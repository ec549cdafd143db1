package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/imageproxy"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// ImmutableCacheControl is sent with every proxied image
const ImmutableCacheControl = "public, max-age=31536000, immutable"

// ImageFetcher returns a source image with its print resolution set
type ImageFetcher interface {
	Fetch(ctx context.Context, src string, dpi float64) (*imageproxy.Image, error)
}

// ImageHandler serves print images to the factory. It is public: the
// factory downloads the urls written into the order payload.
type ImageHandler struct {
	BaseHandler
	fetcher ImageFetcher
}

// NewImageHandler creates an ImageHandler
func NewImageHandler(fetcher ImageFetcher) *ImageHandler {
	return &ImageHandler{fetcher: fetcher}
}

// PNGDPI answers GET /img/pngdpi?src=&dpi= with the source image. PNGs get
// their pHYs chunk set to dpi; other formats pass through unchanged.
func (h *ImageHandler) PNGDPI(c *gin.Context) {
	src := c.Query("src")
	dpi, err := imageproxy.ParseDPI(c.Query("dpi"))
	if err != nil {
		h.BadRequest(c, "bad dpi")
		return
	}

	img, err := h.fetcher.Fetch(c.Request.Context(), src, dpi)
	if err != nil {
		h.imageError(c, src, err)
		return
	}

	c.Header("Cache-Control", ImmutableCacheControl)
	c.Header("X-Image-Cache", cacheStatus(img.Cached))
	c.Header("X-Image-Rewritten", strconv.FormatBool(img.Rewritten))
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func (h *ImageHandler) imageError(c *gin.Context, src string, err error) {
	log := logger.L(c.Request.Context()).With(zap.String("src", src), zap.Error(err))
	switch {
	case errors.Is(err, imageproxy.ErrBadSource):
		h.BadRequest(c, "bad src")
	case errors.Is(err, imageproxy.ErrBadDPI):
		h.BadRequest(c, "bad dpi")
	case errors.Is(err, imageproxy.ErrFetchFailed), errors.Is(err, imageproxy.ErrTooLarge):
		log.Warn("Image fetch failed")
		h.ErrorWithCode(c, dto.ErrCodeFetchFailed, "fetch src failed")
	default:
		log.Error("Image rewrite failed")
		h.ErrorWithCode(c, dto.ErrCodeInternal, "image processing failed")
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
