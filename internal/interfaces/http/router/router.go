// Package router assembles the gin engine of the order bridge.
package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/handler"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
)

var errSessionRequired = errors.New("router: session middleware is required")

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds the engine settings
type Config struct {
	ServiceName       string
	Logger            *zap.Logger
	Meter             metric.Meter
	TracingEnabled    bool
	CORSAllowOrigins  []string
	TrustedProxies    []string
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	DevEndpoints      bool
}

// Handlers are the endpoint handlers. A nil Dev disables the diagnostics.
type Handlers struct {
	Webhook *handler.WebhookHandler
	Tasks   *handler.TaskHandler
	Dev     *handler.DevHandler
	Image   *handler.ImageHandler
	System  *handler.SystemHandler
	// Session guards the admin task and diagnostic routes
	Session gin.HandlerFunc
}

// New builds the engine: global middleware first, then the route groups.
// ctx bounds background work such as rate limiter cleanup.
func New(ctx context.Context, cfg Config, h Handlers) (*gin.Engine, error) {
	if h.Session == nil {
		return nil, errSessionRequired
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = append(cors.AllowOrigins, cfg.CORSAllowOrigins...)

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.TracingEnabled,
			Filter:      middleware.DefaultTracingConfig().Filter,
		}),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		httpMetrics,
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	if cfg.RateLimitEnabled && cfg.RateLimitRequests > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRequests, window)
		engine.Use(middleware.RateLimit(limiter))
	}

	groups := []RouteRegistrar{systemRoutes(h), webhookRoutes(h), imageRoutes(h), taskRoutes(h)}
	if cfg.DevEndpoints && h.Dev != nil {
		groups = append(groups, devRoutes(h))
	}
	root := engine.Group("")
	for _, g := range groups {
		g.RegisterRoutes(root)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": "ERR_NOT_FOUND", "message": "route not found"}})
	})
	return engine, nil
}

func systemRoutes(h Handlers) *DomainGroup {
	return NewDomainGroup("system", "").
		GET("/healthz", h.System.Health).
		GET("/metrics", h.System.Metrics)
}

func webhookRoutes(h Handlers) *DomainGroup {
	return NewDomainGroup("webhooks", "/webhooks").
		POST("/orders_paid", h.Webhook.OrdersPaid)
}

func imageRoutes(h Handlers) *DomainGroup {
	return NewDomainGroup("images", "/img").
		GET("/pngdpi", h.Image.PNGDPI)
}

func taskRoutes(h Handlers) *DomainGroup {
	return NewDomainGroup("tasks", "/api/tasks").
		Use(h.Session, middleware.SpanEnricher()).
		POST("/poll", h.Tasks.Poll).
		POST("/push", h.Tasks.Push)
}

func devRoutes(h Handlers) *DomainGroup {
	return NewDomainGroup("dev", "/dev").
		Use(h.Session, middleware.SpanEnricher()).
		POST("/place", h.Dev.Place).
		GET("/order", h.Dev.Order).
		GET("/inspect", h.Dev.Inspect).
		POST("/register-webhooks", h.Dev.RegisterWebhooks)
}

// DomainGroup is a named route group with its own middleware
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	for _, m := range middleware {
		if m != nil {
			dg.middleware = append(dg.middleware, m)
		}
	}
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}
