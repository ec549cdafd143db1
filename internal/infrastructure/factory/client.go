package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

const (
	// maxResponseSize is the maximum allowed response size from the factory API (10MB)
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorBody caps the response body kept in error diagnostics
	maxErrorBody = 2048
)

// Call outcomes reported to the Recorder
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeBusinessError  = "business_error"
	OutcomeAlreadyExists  = "already_exists"
	OutcomeCanceled       = "canceled"
)

// Recorder receives one observation per factory call
type Recorder interface {
	ObserveFactoryCall(path, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFactoryCall(string, string, time.Duration) {}

// Client is the signed, throttled RIIN factory API client.
// A process shares one Client so every caller contends for the same slots.
type Client struct {
	config     *Config
	httpClient *http.Client
	throttle   *Throttle
	logger     *zap.Logger
	recorder   Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRecorder sets the call metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithThrottle replaces the admission gate built from the config
func WithThrottle(t *Throttle) Option {
	return func(c *Client) { c.throttle = t }
}

// NewClient creates a factory client. It fails with fulfillment.ErrConfiguration
// when the base URL or secret is missing.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: factory config is nil", fulfillment.ErrConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.throttle == nil {
		c.throttle = NewThrottle(config.MaxInFlight, config.Cooldown)
	}
	return c, nil
}

// Throttle returns the client's admission gate
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// Call signs payload, waits for a throttle slot and posts it to path.
// A nil payload is sent as {}.
func (c *Client) Call(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := encodeBody(payload)
	if err != nil {
		return nil, fmt.Errorf("factory: failed to encode %s request: %w", path, err)
	}
	sign := c.config.Sign(body)

	var resp *Response
	err = c.throttle.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		r, callErr := c.doRequest(ctx, path, body, sign)
		c.recorder.ObserveFactoryCall(path, outcomeOf(callErr), time.Since(start))
		resp = r
		return callErr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.recorder.ObserveFactoryCall(path, OutcomeCanceled, 0)
		}
		return nil, err
	}
	return resp, nil
}

// doRequest performs one signed POST and classifies the response
func (c *Client) doRequest(ctx context.Context, path string, body []byte, sign string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("factory: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("secretKey", c.config.SecretKey)
	req.Header.Set("sign", sign)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Detail: Detail{Path: path}, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Detail: Detail{Status: httpResp.StatusCode, Path: path}, Err: err}
	}

	resp := &Response{}
	parsed := len(raw) > 0 && json.Unmarshal(raw, resp) == nil
	detail := Detail{
		Status:  httpResp.StatusCode,
		Path:    path,
		Message: resp.Text(),
		TraceID: resp.TraceID,
		Body:    clip(raw, maxErrorBody),
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &TransportError{Detail: detail}
	}
	if parsed && resp.Successful != nil && !*resp.Successful {
		detail.Status = http.StatusBadRequest
		return nil, &BusinessError{Detail: detail}
	}
	if !parsed {
		return &Response{}, nil
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// PlaceOrder submits an order for manufacturing. When the factory reports that
// it already has the order, the call counts as a success.
func (c *Client) PlaceOrder(ctx context.Context, payload *fulfillment.CanonicalOrderPayload) error {
	_, err := c.Call(ctx, PathPlaceOrder, payload)
	if err != nil && IsAlreadyExists(err) {
		c.recorder.ObserveFactoryCall(PathPlaceOrder, OutcomeAlreadyExists, 0)
		c.logger.Warn("Factory already has order, continuing",
			zap.String("platform_oid", payload.PlatformOid),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// PushOrder releases placed orders to production
func (c *Client) PushOrder(ctx context.Context, orderIDs []string) error {
	_, err := c.Call(ctx, PathPushOrder, orderIDList{PlatformOidList: orderIDs})
	return err
}

// QueryOrderDelivery returns waybill data for orders the factory has shipped
func (c *Client) QueryOrderDelivery(ctx context.Context, orderIDs []string) ([]fulfillment.DeliveryRecord, error) {
	resp, err := c.Call(ctx, PathQueryOrderDelivery, orderIDList{PlatformOidList: orderIDs})
	if err != nil {
		return nil, err
	}
	var rows []deliveryRow
	if err := resp.DecodeData(&rows); err != nil {
		return nil, fmt.Errorf("factory: failed to parse delivery rows: %w", err)
	}
	records := make([]fulfillment.DeliveryRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records, nil
}

// QueryOrderStatus returns the factory status of each order
func (c *Client) QueryOrderStatus(ctx context.Context, orderIDs []string) ([]OrderStatus, error) {
	resp, err := c.Call(ctx, PathQueryOrderStatus, orderIDList{PlatformOidList: orderIDs})
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := resp.DecodeData(&rows); err != nil {
		return nil, fmt.Errorf("factory: failed to parse status rows: %w", err)
	}
	out := make([]OrderStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, OrderStatus{
			PlatformOid: toString(row["platformOid"]),
			StatusRow:   ParseStatusRow(row),
		})
	}
	return out, nil
}

// QueryOrderInfo returns the factory's full order documents
func (c *Client) QueryOrderInfo(ctx context.Context, orderIDs []string) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryOrderInfo, orderIDList{PlatformOidList: orderIDs})
}

// UpdateOrder changes shipping data, quantities or specs of an order
func (c *Client) UpdateOrder(ctx context.Context, payload *fulfillment.CanonicalOrderPayload) error {
	_, err := c.Call(ctx, PathUpdateOrder, payload)
	return err
}

// UpdatePrintImage replaces line images; the order must still be modifiable
func (c *Client) UpdatePrintImage(ctx context.Context, req *UpdatePrintImageRequest) error {
	_, err := c.Call(ctx, PathUpdatePrintImage, req)
	return err
}

// CloseOrder closes one order, or several in one call
func (c *Client) CloseOrder(ctx context.Context, orderIDs ...string) error {
	var payload any = orderIDList{PlatformOidList: orderIDs}
	if len(orderIDs) == 1 {
		payload = singleOrderID{PlatformOid: orderIDs[0]}
	}
	_, err := c.Call(ctx, PathCloseOrder, payload)
	return err
}

// PreShipped notifies the factory of a pre-shipment
func (c *Client) PreShipped(ctx context.Context, payload any) error {
	_, err := c.Call(ctx, PathPreShipped, payload)
	return err
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// QueryProduct lists factory products; a nil page uses DefaultPage
func (c *Client) QueryProduct(ctx context.Context, page *Page) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryProduct, pageOrDefault(page))
}

// QueryStyle lists factory styles
func (c *Client) QueryStyle(ctx context.Context, page *Page) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryStyle, pageOrDefault(page))
}

// QueryColor lists factory colors
func (c *Client) QueryColor(ctx context.Context, page *Page) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryColor, pageOrDefault(page))
}

// QuerySize lists factory sizes
func (c *Client) QuerySize(ctx context.Context, page *Page) (json.RawMessage, error) {
	return c.callData(ctx, PathQuerySize, pageOrDefault(page))
}

// QueryShipAddress lists the factory's ship-from addresses
func (c *Client) QueryShipAddress(ctx context.Context) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryShipAddress, nil)
}

// QueryProductShipAddress lists ship-from addresses per product code
func (c *Client) QueryProductShipAddress(ctx context.Context, productCodes []string) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryProductShipAddress, struct {
		ProductCodeList []string `json:"productCodeList"`
	}{productCodes})
}

// ---------------------------------------------------------------------------
// Abnormal images and after-sales
// ---------------------------------------------------------------------------

// QueryAbnormalImagePage lists images the factory rejected
func (c *Client) QueryAbnormalImagePage(ctx context.Context, params any) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryAbnormalImagePage, params)
}

// UploadAbnormalImage replaces a rejected image
func (c *Client) UploadAbnormalImage(ctx context.Context, payload any) error {
	_, err := c.Call(ctx, PathUploadAbnormalImage, payload)
	return err
}

// SyncImageToFactory asks the factory to fetch images again
func (c *Client) SyncImageToFactory(ctx context.Context, ids []string) error {
	_, err := c.Call(ctx, PathSyncImageToFactory, struct {
		IDs []string `json:"ids"`
	}{ids})
	return err
}

// QueryAfterSalesInfo returns after-sales records of an order
func (c *Client) QueryAfterSalesInfo(ctx context.Context, platformOid string) (json.RawMessage, error) {
	return c.callData(ctx, PathQueryAfterSalesInfo, singleOrderID{PlatformOid: platformOid})
}

// CreateAfterSales opens an after-sales case
func (c *Client) CreateAfterSales(ctx context.Context, payload any) error {
	_, err := c.Call(ctx, PathCreateAfterSales, payload)
	return err
}

func (c *Client) callData(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	resp, err := c.Call(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// encodeBody serializes payload without HTML escaping or a trailing newline.
// The signature is computed over exactly these bytes.
func encodeBody(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if bytes.Equal(out, []byte("null")) {
		return []byte("{}"), nil
	}
	return out, nil
}

func pageOrDefault(p *Page) Page {
	if p == nil {
		return DefaultPage
	}
	return *p
}

func outcomeOf(err error) string {
	var be *BusinessError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &be):
		return OutcomeBusinessError
	default:
		return OutcomeTransportError
	}
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

// compile-time check
var _ fulfillment.Factory = (*Client)(nil)
