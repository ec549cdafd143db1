package shopify

import (
	"fmt"
	"strings"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// DefaultAPIVersion is the Admin API version used when none is configured
const DefaultAPIVersion = "2025-07"

// Config holds Admin API credentials for one shop
type Config struct {
	// Shop is the myshopify domain, e.g. demo.myshopify.com
	Shop string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIVersion is the Admin API version
	APIVersion string
	// BaseURL overrides https://<shop>; used against local fakes
	BaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate checks required settings and fills defaults
func (c *Config) Validate() error {
	c.Shop = strings.TrimSpace(c.Shop)
	c.Shop = strings.TrimPrefix(strings.TrimPrefix(c.Shop, "https://"), "http://")
	c.Shop = strings.TrimRight(c.Shop, "/")
	if c.Shop == "" && c.BaseURL == "" {
		return fmt.Errorf("%w: shopify shop domain is required", fulfillment.ErrConfiguration)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: shopify admin access token is required", fulfillment.ErrConfiguration)
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// adminURL returns the Admin API URL for a path such as "orders/1.json"
func (c *Config) adminURL(path string) string {
	base := c.BaseURL
	if base == "" {
		base = "https://" + c.Shop
	}
	return fmt.Sprintf("%s/admin/api/%s/%s", strings.TrimRight(base, "/"), c.APIVersion, strings.TrimLeft(path, "/"))
}
