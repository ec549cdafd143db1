package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

const orderJSON = `{"order":{
	"id": 1001,
	"name": "#1001",
	"order_number": 1001,
	"financial_status": "paid",
	"tags": "vip, factory:placed ,",
	"currency": "USD",
	"total_price": "39.90",
	"processed_at": "2024-03-05T10:20:30+08:00",
	"updated_at": null,
	"created_at": "2024-03-05T10:00:00+08:00",
	"shipping_address": {"first_name":"Ada","last_name":"Lovelace","address1":"1 Main St","city":"Shenzhen","country":"China","country_code":"CN","zip":"518000"},
	"line_items": [{
		"id": 55501,
		"product_id": 7001,
		"variant_id": 8001,
		"sku": "TEE-RED-L",
		"title": "Custom Tee",
		"variant_title": "Red / L",
		"quantity": 2,
		"price": "19.95",
		"properties": [{"name":"print_png_url","value":"https://x/a.png"},{"name":"count","value":3},{"name":"","value":"x"}],
		"image": {"src": "https://cdn/tee.jpg"}
	}]
}}`

type graphQLCall struct {
	Query     string
	Variables map[string]any
}

func newAdminServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{Shop: "demo.myshopify.com", AccessToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func decodeGraphQL(t *testing.T, r *http.Request) graphQLCall {
	t.Helper()
	var call graphQLCall
	body, _ := io.ReadAll(r.Body)
	require.NoError(t, json.Unmarshal(body, &call))
	return call
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{AccessToken: "t"}).Validate(), fulfillment.ErrConfiguration)
	assert.ErrorIs(t, (&Config{Shop: "s.myshopify.com"}).Validate(), fulfillment.ErrConfiguration)

	cfg := &Config{Shop: "https://s.myshopify.com/", AccessToken: "t"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "s.myshopify.com", cfg.Shop)
	assert.Equal(t, "https://s.myshopify.com/admin/api/2025-07/orders/1.json", cfg.adminURL("orders/1.json"))
}

func TestClient_GetOrder(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/orders/1001.json", r.URL.Path)
		_, _ = w.Write([]byte(orderJSON))
	})

	order, err := c.GetOrder(context.Background(), "1001")

	require.NoError(t, err)
	assert.Equal(t, "1001", order.ID)
	assert.Equal(t, "#1001", order.Name)
	assert.Equal(t, []string{"vip", "factory:placed"}, order.Tags)
	assert.True(t, decimal.RequireFromString("39.90").Equal(order.TotalPrice))
	require.NotNil(t, order.ProcessedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 2, 20, 30, 0, time.UTC), order.ProcessedAt.UTC())
	assert.Nil(t, order.UpdatedAt)
	assert.Equal(t, "Ada", order.ShippingAddress.FirstName)
	assert.Equal(t, "CN", order.ShippingAddress.CountryCode)

	require.Len(t, order.Lines, 1)
	line := order.Lines[0]
	assert.Equal(t, "55501", line.ID)
	assert.Equal(t, "7001", line.ProductID)
	assert.Equal(t, "8001", line.VariantID)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "https://cdn/tee.jpg", line.ImageURL)
	assert.Equal(t, []fulfillment.Property{
		{Name: "print_png_url", Value: "https://x/a.png"},
		{Name: "count", Value: "3"},
	}, line.Properties)
}

func TestClient_GetOrderNotFound(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":"Not Found"}`))
	})

	_, err := c.GetOrder(context.Background(), "9")
	assert.ErrorIs(t, err, fulfillment.ErrOrderNotFound)
}

func TestClient_GetOrderServerError(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetOrder(context.Background(), "9")
	assert.ErrorIs(t, err, ErrRequestFailed)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestClient_SearchOrders(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-07/graphql.json", r.URL.Path)
		call := decodeGraphQL(t, r)
		assert.Equal(t, "tag:'factory:pushed'", call.Variables["q"])
		assert.Equal(t, float64(50), call.Variables["first"])
		_, _ = w.Write([]byte(`{"data":{"orders":{"edges":[
			{"node":{"id":"gid://shopify/Order/3003","name":"#3003","tags":["factory:placed","factory:pushed"]}},
			{"node":{"id":"gid://shopify/Order/abc","name":"#bad","tags":[]}}
		]}}}`))
	})

	orders, err := c.SearchOrders(context.Background(), "tag:'factory:pushed'", 50)

	require.NoError(t, err)
	assert.Equal(t, []fulfillment.OrderSummary{
		{ID: "3003", Name: "#3003", Tags: []string{"factory:placed", "factory:pushed"}},
	}, orders)
}

func TestClient_Tags(t *testing.T) {
	var calls []graphQLCall
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, decodeGraphQL(t, r))
		_, _ = w.Write([]byte(`{"data":{"tagsAdd":{"userErrors":[]},"tagsRemove":{"userErrors":[]}}}`))
	})
	ctx := context.Background()

	require.NoError(t, c.AddTags(ctx, "1001", []string{fulfillment.TagPlaced}))
	require.NoError(t, c.RemoveTags(ctx, "1001", []string{fulfillment.TagPushed}))
	require.NoError(t, c.AddTags(ctx, "1001", nil))

	require.Len(t, calls, 2, "empty tag lists make no call")
	assert.Contains(t, calls[0].Query, "tagsAdd")
	assert.Equal(t, "gid://shopify/Order/1001", calls[0].Variables["id"])
	assert.Equal(t, []any{fulfillment.TagPlaced}, calls[0].Variables["tags"])
	assert.Contains(t, calls[1].Query, "tagsRemove")
}

func TestClient_UserErrors(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"tagsAdd":{"userErrors":[{"field":["id"],"message":"Order does not exist"}]}}}`))
	})

	err := c.AddTags(context.Background(), "1", []string{"x"})

	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "Order does not exist")
}

func TestClient_GraphQLErrors(t *testing.T) {
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Throttled"}]}`))
	})

	_, err := c.SearchOrders(context.Background(), "x", 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"Throttled"}, apiErr.Messages)
}

func TestClient_SetLastError(t *testing.T) {
	var call graphQLCall
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		call = decodeGraphQL(t, r)
		_, _ = w.Write([]byte(`{"data":{"metafieldsSet":{"userErrors":[]}}}`))
	})

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'e'
	}
	require.NoError(t, c.SetLastError(context.Background(), "1001", string(long)))

	m := call.Variables["m"].([]any)[0].(map[string]any)
	assert.Equal(t, "gid://shopify/Order/1001", m["ownerId"])
	assert.Equal(t, "factory", m["namespace"])
	assert.Equal(t, "last_error", m["key"])
	assert.Len(t, m["value"], fulfillment.MaxErrorMessageLength)
}

func TestClient_FulfillmentOrderID(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"prefers open", `{"data":{"order":{"fulfillmentOrders":{"edges":[{"node":{"id":"gid://FO/1","status":"CLOSED"}},{"node":{"id":"gid://FO/2","status":"OPEN"}}]}}}}`, "gid://FO/2"},
		{"falls back to first", `{"data":{"order":{"fulfillmentOrders":{"edges":[{"node":{"id":"gid://FO/1","status":"CLOSED"}}]}}}}`, "gid://FO/1"},
		{"none", `{"data":{"order":{"fulfillmentOrders":{"edges":[]}}}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			id, err := c.FulfillmentOrderID(context.Background(), "3003")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestClient_CreateFulfillment(t *testing.T) {
	var call graphQLCall
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		call = decodeGraphQL(t, r)
		_, _ = w.Write([]byte(`{"data":{"fulfillmentCreateV2":{"fulfillment":{"id":"gid://F/1"},"userErrors":[]}}}`))
	})

	err := c.CreateFulfillment(context.Background(), "gid://FO/2",
		fulfillment.TrackingInfo{Number: "YT1", URL: "https://t/YT1", Company: "Other"}, false)

	require.NoError(t, err)
	input := call.Variables["input"].(map[string]any)
	assert.Equal(t, false, input["notifyCustomer"])
	assert.Equal(t, map[string]any{"number": "YT1", "url": "https://t/YT1", "company": "Other"}, input["trackingInfo"])
	assert.Equal(t, []any{map[string]any{"fulfillmentOrderId": "gid://FO/2"}}, input["lineItemsByFulfillmentOrder"])
}

func TestClient_RegisterWebhook(t *testing.T) {
	var body map[string]any
	c := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2025-07/webhooks.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"webhook":{"id":1}}`))
	})

	require.NoError(t, c.RegisterWebhook(context.Background(), "orders/paid", "https://h/webhooks/orders_paid"))
	assert.Equal(t, map[string]any{
		"topic":   "orders/paid",
		"address": "https://h/webhooks/orders_paid",
		"format":  "json",
	}, body["webhook"])
}
