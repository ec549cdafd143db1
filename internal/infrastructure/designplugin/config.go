package designplugin

import (
	"errors"
	"strings"
)

// DefaultEndpoint is the Qstomizer v3 order endpoint
const DefaultEndpoint = "https://api.bigvanet.com/v3/order"

// ErrNotConfigured indicates a missing shop or API key
var ErrNotConfigured = errors.New("designplugin: qstomizer shop or api key is not configured")

// Config holds Qstomizer API settings
type Config struct {
	// Shop is the myshopify domain registered with Qstomizer
	Shop string
	// APIKey is sent in the API_KEY header
	APIKey string
	// Endpoint overrides DefaultEndpoint
	Endpoint string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Enabled reports whether lookups can be made
func (c *Config) Enabled() bool {
	return c != nil && strings.TrimSpace(c.Shop) != "" && strings.TrimSpace(c.APIKey) != ""
}

// Validate checks required settings and fills defaults
func (c *Config) Validate() error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	c.Shop = strings.TrimSpace(c.Shop)
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
	return nil
}
