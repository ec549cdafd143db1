package fulfillment

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Upstream platform port
// ---------------------------------------------------------------------------

// OrderSummary is a search hit from the upstream order query API
type OrderSummary struct {
	ID   string
	Name string
	Tags []string
}

// TrackingInfo is the shipment data attached to an upstream fulfillment
type TrackingInfo struct {
	Number  string
	URL     string
	Company string
}

// UpstreamPlatform is the shop platform that owns orders and their tags
type UpstreamPlatform interface {
	// GetOrder fetches the full order document by numeric id
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// SearchOrders runs an order search query and returns at most first hits
	SearchOrders(ctx context.Context, query string, first int) ([]OrderSummary, error)
	// AddTags adds tags to the order. Existing tags are a no-op.
	AddTags(ctx context.Context, orderID string, tags []string) error
	// RemoveTags removes tags from the order. Absent tags are a no-op.
	RemoveTags(ctx context.Context, orderID string, tags []string) error
	// SetLastError writes the failure cause to the order metafield
	SetLastError(ctx context.Context, orderID, message string) error
	// FulfillmentOrderID returns the first open fulfillment order, or "" if none
	FulfillmentOrderID(ctx context.Context, orderID string) (string, error)
	// CreateFulfillment creates a fulfillment with tracking for a fulfillment order
	CreateFulfillment(ctx context.Context, fulfillmentOrderID string, tracking TrackingInfo, notifyCustomer bool) error
}

// ---------------------------------------------------------------------------
// Factory port
// ---------------------------------------------------------------------------

// DeliveryRecord is one row of the factory delivery query
type DeliveryRecord struct {
	PlatformOid    string `json:"platformOid"`
	TrackingNumber string `json:"trackingNumber"`
	WaybillURL     string `json:"waybillDataPath"`
	CourierCompany string `json:"courierCompany"`
}

// Factory is the print-on-demand factory API used by the sync engine
type Factory interface {
	// PlaceOrder submits an order. An order the factory already has is a success.
	PlaceOrder(ctx context.Context, payload *CanonicalOrderPayload) error
	// PushOrder releases placed orders to production
	PushOrder(ctx context.Context, orderIDs []string) error
	// QueryOrderDelivery returns tracking data for shipped orders
	QueryOrderDelivery(ctx context.Context, orderIDs []string) ([]DeliveryRecord, error)
}

// ---------------------------------------------------------------------------
// Design source port
// ---------------------------------------------------------------------------

// DesignSource looks up the images produced by a customer design session
type DesignSource interface {
	// LookupDesign returns nil without error when the session has no design
	LookupDesign(ctx context.Context, shop, sessionID string) (*DesignSet, error)
}

// ---------------------------------------------------------------------------
// Webhook delivery log
// ---------------------------------------------------------------------------

// IdempotencyStore remembers webhook deliveries that were fully handled
type IdempotencyStore interface {
	// MarkProcessed records id for ttl. Returns false if it was already recorded.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether id was recorded and has not expired
	IsProcessed(ctx context.Context, id string) (bool, error)
}
