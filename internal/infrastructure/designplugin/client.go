package designplugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/cache"
)

// maxResponseSize is the maximum allowed response size from Qstomizer (5MB)
const maxResponseSize = 5 * 1024 * 1024

// Client looks up Qstomizer design sessions. Results, including failed and
// empty lookups, are cached per (shop, session) since a session never changes.
type Client struct {
	config     *Config
	httpClient *http.Client
	store      cache.DesignStore
	logger     *zap.Logger
	group      singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for lookups
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Qstomizer client backed by store
func NewClient(config *Config, store cache.DesignStore, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = cache.NewInMemoryDesignCache(0, 0)
	}
	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LookupDesign returns the images of a design session. An empty shop uses the
// configured one. A session without images, or one whose lookup failed, yields
// nil without error; only context cancellation is returned.
func (c *Client) LookupDesign(ctx context.Context, shop, sessionID string) (*fulfillment.DesignSet, error) {
	if shop == "" {
		shop = c.config.Shop
	}
	if sessionID == "" {
		return nil, nil
	}
	key := shop + ":" + sessionID

	if set, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return set, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := c.fetch(ctx, shop, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Qstomizer lookup failed, caching miss",
				zap.String("shop", shop),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		set := PickSides(data)
		if err := c.store.Set(ctx, key, set); err != nil {
			c.logger.Warn("Failed to cache design lookup", zap.String("key", key), zap.Error(err))
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	set, _ := v.(*fulfillment.DesignSet)
	return set, nil
}

// fetch performs the HTTP lookup
func (c *Client) fetch(ctx context.Context, shop, sessionID string) (*OrderData, error) {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("orderId", sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("designplugin: failed to create request: %w", err)
	}
	// sent verbatim; Set would canonicalize it to Api_key
	req.Header["API_KEY"] = []string{c.config.APIKey}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("designplugin: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("designplugin: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("designplugin: qstomizer %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), body)
	}
	if len(body) == 0 {
		return nil, errors.New("designplugin: empty response body")
	}

	data, err := decodeOrderData(body)
	if err != nil {
		return nil, fmt.Errorf("designplugin: failed to parse response: %w", err)
	}
	return data, nil
}

var _ fulfillment.DesignSource = (*Client)(nil)
