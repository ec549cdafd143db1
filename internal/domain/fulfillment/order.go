package fulfillment

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// orderGIDPrefix is the GraphQL global id prefix for upstream orders
const orderGIDPrefix = "gid://shopify/Order/"

// Order is the upstream shop order. This system never changes its content,
// only its tag set and the last-error metafield.
type Order struct {
	ID              string
	Name            string
	OrderNumber     string
	FinancialStatus string
	Tags            []string
	Lines           []OrderLine
	ShippingAddress Address
	TotalPrice      decimal.Decimal
	Currency        string
	ProcessedAt     *time.Time
	UpdatedAt       *time.Time
	CreatedAt       *time.Time
}

// DisplayNo returns the human order number, falling back to the id
func (o *Order) DisplayNo() string {
	if o.Name != "" {
		return o.Name
	}
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID
}

// GID returns the GraphQL global id of the order
func (o *Order) GID() string {
	return OrderGID(o.ID)
}

// PayTime returns the best timestamp for when the order was paid:
// processed, then updated, then created.
func (o *Order) PayTime() *time.Time {
	switch {
	case o.ProcessedAt != nil:
		return o.ProcessedAt
	case o.UpdatedAt != nil:
		return o.UpdatedAt
	default:
		return o.CreatedAt
	}
}

// Address is a shipping address
type Address struct {
	FirstName   string
	LastName    string
	Phone       string
	Address1    string
	Address2    string
	City        string
	Province    string
	Country     string
	CountryCode string
	Zip         string
}

// Property is a free-form key/value attached to an order line
type Property struct {
	Name  string
	Value string
}

// OrderLine is a single purchased item
type OrderLine struct {
	ID           string
	ProductID    string
	VariantID    string
	SKU          string
	Title        string
	VariantTitle string
	Quantity     int
	Price        decimal.Decimal
	Properties   []Property
	// ImageURL is the catalog reference image of the purchased variant
	ImageURL string
}

// Key returns the identifier used in image codes for this line
func (l *OrderLine) Key() string {
	for _, k := range []string{l.ID, l.VariantID, l.ProductID} {
		if k != "" {
			return k
		}
	}
	return "1"
}

// Property returns the first non-empty value among the given aliases.
// Keys are compared after NormalizeKey, so "Print PNG URL " matches "printpngurl".
func (l *OrderLine) Property(aliases ...string) string {
	if len(l.Properties) == 0 {
		return ""
	}
	kv := make(map[string]string, len(l.Properties))
	for _, p := range l.Properties {
		if k := NormalizeKey(p.Name); k != "" {
			kv[k] = p.Value
		}
	}
	for _, alias := range aliases {
		if v := kv[NormalizeKey(alias)]; v != "" {
			return v
		}
	}
	return ""
}

// HTTPProperty is Property restricted to http(s) URLs
func (l *OrderLine) HTTPProperty(aliases ...string) string {
	return HTTPURL(l.Property(aliases...))
}

// NormalizeKey lower-cases a property name and drops everything except
// letters, digits and underscores.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HTTPURL returns u when it is an absolute http(s) URL, otherwise ""
func HTTPURL(u string) string {
	u = strings.TrimSpace(u)
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return ""
}

// OrderGID builds the GraphQL global id for a numeric order id
func OrderGID(orderID string) string {
	return orderGIDPrefix + orderID
}

// ParseOrderID extracts the numeric order id from a raw id or a global id
// such as "gid://shopify/Order/1001".
func ParseOrderID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrInvalidOrderID
	}
	return b.String(), nil
}
