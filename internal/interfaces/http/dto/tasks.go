package dto

import (
	"fmt"
	"strings"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// PushRequest selects the orders of a push run. An empty request pushes
// every placed order that is not pushed yet.
type PushRequest struct {
	// OrderID is one order, as a number or a gid
	OrderID string `form:"orderId" json:"orderId"`
	// IDs is a comma separated list of orders
	IDs string `form:"ids" json:"ids"`
}

// OrderIDs returns the explicit order ids of the request as numeric ids,
// or nil when none were given. Gids are reduced to their number; an id with
// no digits fails the whole request.
func (r PushRequest) OrderIDs() ([]string, error) {
	raw := []string{r.OrderID}
	if strings.TrimSpace(r.OrderID) == "" {
		raw = strings.Split(r.IDs, ",")
	}
	var out []string
	seen := make(map[string]bool)
	for _, part := range raw {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		id, err := fulfillment.ParseOrderID(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, part)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// Merge fills empty fields from other
func (r PushRequest) Merge(other PushRequest) PushRequest {
	if r.OrderID == "" {
		r.OrderID = other.OrderID
	}
	if r.IDs == "" {
		r.IDs = other.IDs
	}
	return r
}

// OrderQuery names one order on the diagnostic endpoints
type OrderQuery struct {
	ID string `form:"id" json:"id" binding:"required"`
}

// RegisterWebhooksQuery names the public host webhooks are sent to
type RegisterWebhooksQuery struct {
	Host string `form:"host" binding:"required"`
}

// RegisterWebhooksResponse lists the registered topics
type RegisterWebhooksResponse struct {
	OK      bool     `json:"ok"`
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
}

// PlaceOnlyResponse is the answer of a placement without lifecycle tags
type PlaceOnlyResponse struct {
	OK          bool   `json:"ok"`
	PlatformOid string `json:"platformOid"`
	GoodsCount  int    `json:"goodsCount"`
}
