package factory

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// Config holds the connection settings for the RIIN factory API
type Config struct {
	// BaseURL is the API host, e.g. https://tshirt.riin.com
	BaseURL string
	// SecretKey is sent as a header and used to sign every body
	SecretKey string
	// MaxInFlight bounds concurrent calls across the whole process
	MaxInFlight int
	// Cooldown delays handing a finished call's slot to the next waiter
	Cooldown time.Duration
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// DefaultMaxInFlight is the factory's documented concurrency limit
	DefaultMaxInFlight = 10
	// DefaultCooldown is the pause between a call finishing and the next starting
	DefaultCooldown = 120 * time.Millisecond
)

// NewConfig creates a factory configuration with defaults
func NewConfig(baseURL, secretKey string) *Config {
	return &Config{
		BaseURL:        baseURL,
		SecretKey:      secretKey,
		MaxInFlight:    DefaultMaxInFlight,
		Cooldown:       DefaultCooldown,
		TimeoutSeconds: 30,
	}
}

// Validate checks required settings and fills defaults.
// A missing base URL or secret is a configuration error.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	if c.BaseURL == "" {
		return fmt.Errorf("%w: factory base url is required", fulfillment.ErrConfiguration)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("%w: factory secret key is required", fulfillment.ErrConfiguration)
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.Cooldown < 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Sign returns md5hex(body + "::" + secret).
// NOTE: MD5 is what the factory verifies; it is not a security choice.
func (c *Config) Sign(body []byte) string {
	h := md5.New()
	h.Write(body)
	h.Write([]byte("::"))
	h.Write([]byte(c.SecretKey))
	return hex.EncodeToString(h.Sum(nil))
}

// endpoint joins the base URL and an API path
func (c *Config) endpoint(path string) string {
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}
