package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// maxResponseSize is the maximum allowed response size from the Admin API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Metafield holding the last factory failure on an order
const (
	ErrorMetafieldNamespace = "factory"
	ErrorMetafieldKey       = "last_error"
)

// Client is a thin Admin API client: REST for order reads and webhook
// registration, GraphQL for searches, tags, metafields and fulfillments
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an Admin API client
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Shop returns the configured shop domain
func (c *Client) Shop() string {
	return c.config.Shop
}

// ---------------------------------------------------------------------------
// REST
// ---------------------------------------------------------------------------

// GetOrder fetches an order by numeric id
func (c *Client) GetOrder(ctx context.Context, orderID string) (*fulfillment.Order, error) {
	var out struct {
		Order *RESTOrder `json:"order"`
	}
	if err := c.rest(ctx, http.MethodGet, "orders/"+orderID+".json", nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if out.Order == nil {
		return nil, fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, orderID)
	}
	return out.Order.ToDomain(), nil
}

// RegisterWebhook subscribes address to a webhook topic such as "orders/paid"
func (c *Client) RegisterWebhook(ctx context.Context, topic, address string) error {
	body := map[string]any{
		"webhook": map[string]string{
			"topic":   topic,
			"address": address,
			"format":  "json",
		},
	}
	return c.rest(ctx, http.MethodPost, "webhooks.json", body, nil)
}

func (c *Client) rest(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("shopify: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	status, raw, err := c.do(ctx, method, c.config.adminURL(path), reader)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Status: status, Path: path, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("shopify: failed to parse %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// GraphQL
// ---------------------------------------------------------------------------

// SearchOrders runs an Admin order search such as
// "tag:'factory:pushed' -tag:'factory:fulfilled' financial_status:paid"
func (c *Client) SearchOrders(ctx context.Context, query string, first int) ([]fulfillment.OrderSummary, error) {
	var data searchOrdersData
	if err := c.graphQL(ctx, searchOrdersQuery, map[string]any{"q": query, "first": first}, &data); err != nil {
		return nil, err
	}
	out := make([]fulfillment.OrderSummary, 0, len(data.Orders.Edges))
	for _, e := range data.Orders.Edges {
		id, err := fulfillment.ParseOrderID(e.Node.ID)
		if err != nil {
			c.logger.Warn("Skipping order with unparsable id", zap.String("gid", e.Node.ID))
			continue
		}
		out = append(out, fulfillment.OrderSummary{ID: id, Name: e.Node.Name, Tags: e.Node.Tags})
	}
	return out, nil
}

// AddTags adds tags to an order
func (c *Client) AddTags(ctx context.Context, orderID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	var data struct {
		TagsAdd mutationResult `json:"tagsAdd"`
	}
	vars := map[string]any{"id": fulfillment.OrderGID(orderID), "tags": tags}
	if err := c.graphQL(ctx, tagsAddMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("tagsAdd", data.TagsAdd.UserErrors)
}

// RemoveTags removes tags from an order
func (c *Client) RemoveTags(ctx context.Context, orderID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	var data struct {
		TagsRemove mutationResult `json:"tagsRemove"`
	}
	vars := map[string]any{"id": fulfillment.OrderGID(orderID), "tags": tags}
	if err := c.graphQL(ctx, tagsRemoveMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("tagsRemove", data.TagsRemove.UserErrors)
}

// SetLastError writes message, cut to 250 characters, to factory.last_error
func (c *Client) SetLastError(ctx context.Context, orderID, message string) error {
	var data struct {
		MetafieldsSet mutationResult `json:"metafieldsSet"`
	}
	vars := map[string]any{"m": []map[string]string{{
		"ownerId":   fulfillment.OrderGID(orderID),
		"namespace": ErrorMetafieldNamespace,
		"key":       ErrorMetafieldKey,
		"type":      "single_line_text_field",
		"value":     fulfillment.TruncateMessage(message),
	}}}
	if err := c.graphQL(ctx, metafieldsSetMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("metafieldsSet", data.MetafieldsSet.UserErrors)
}

// FulfillmentOrderID returns the first open fulfillment order of an order,
// the first one of any status if none is open, or "" if it has none
func (c *Client) FulfillmentOrderID(ctx context.Context, orderID string) (string, error) {
	var data fulfillmentOrdersData
	if err := c.graphQL(ctx, fulfillmentOrdersQuery, map[string]any{"id": fulfillment.OrderGID(orderID)}, &data); err != nil {
		return "", err
	}
	if data.Order == nil {
		return "", fmt.Errorf("%w: %s", fulfillment.ErrOrderNotFound, orderID)
	}
	edges := data.Order.FulfillmentOrders.Edges
	for _, e := range edges {
		switch strings.ToUpper(e.Node.Status) {
		case "OPEN", "IN_PROGRESS", "SCHEDULED":
			return e.Node.ID, nil
		}
	}
	if len(edges) > 0 {
		return edges[0].Node.ID, nil
	}
	return "", nil
}

// CreateFulfillment fulfills every remaining line of a fulfillment order with tracking
func (c *Client) CreateFulfillment(ctx context.Context, fulfillmentOrderID string, tracking fulfillment.TrackingInfo, notifyCustomer bool) error {
	var data struct {
		FulfillmentCreateV2 mutationResult `json:"fulfillmentCreateV2"`
	}
	input := map[string]any{
		"lineItemsByFulfillmentOrder": []map[string]any{{"fulfillmentOrderId": fulfillmentOrderID}},
		"trackingInfo": map[string]string{
			"number":  tracking.Number,
			"url":     tracking.URL,
			"company": tracking.Company,
		},
		"notifyCustomer": notifyCustomer,
	}
	if err := c.graphQL(ctx, fulfillmentCreateMutation, map[string]any{"input": input}, &data); err != nil {
		return err
	}
	return userErrors("fulfillmentCreateV2", data.FulfillmentCreateV2.UserErrors)
}

func (c *Client) graphQL(ctx context.Context, query string, vars map[string]any, out any) error {
	b, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("shopify: failed to encode graphql request: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPost, c.config.adminURL("graphql.json"), bytes.NewReader(b))
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{Status: status, Path: "graphql.json", Body: string(raw)}
	}

	var resp struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("shopify: failed to parse graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return &APIError{Status: status, Path: "graphql.json", Messages: msgs, Body: string(raw)}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("shopify: failed to parse graphql data: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("shopify: failed to read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func userErrors(op string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return &APIError{Status: http.StatusOK, Path: op, Messages: msgs}
}

var _ fulfillment.UpstreamPlatform = (*Client)(nil)
