package dto

import (
	"time"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// OrderView is the condensed upstream order shown by the diagnostics
type OrderView struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	FinancialStatus string          `json:"financial_status"`
	Tags            []string        `json:"tags"`
	CreatedAt       *time.Time      `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	ShippingAddress *AddressView    `json:"shipping_address"`
	LineItems       []OrderLineView `json:"line_items"`
}

// AddressView is the shipping address of an OrderView
type AddressView struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
}

// OrderLineView is one line of an OrderView with the image urls detected in
// its properties
type OrderLineView struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	SKU              string         `json:"sku"`
	VariantTitle     string         `json:"variant_title"`
	Quantity         int            `json:"quantity"`
	ImageSrc         string         `json:"image_src"`
	Properties       []PropertyView `json:"properties"`
	DetectedPrintURL string         `json:"detected_print_url"`
	DetectedMockURL  string         `json:"detected_mock_url"`
	DetectedSession  string         `json:"detected_session,omitempty"`
}

// PropertyView is a line property
type PropertyView struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewOrderView condenses an upstream order
func NewOrderView(o *fulfillment.Order) OrderView {
	view := OrderView{
		ID:              o.ID,
		Name:            o.Name,
		FinancialStatus: o.FinancialStatus,
		Tags:            o.Tags,
		CreatedAt:       o.CreatedAt,
		ProcessedAt:     o.ProcessedAt,
		LineItems:       make([]OrderLineView, 0, len(o.Lines)),
	}
	if o.ShippingAddress != (fulfillment.Address{}) {
		a := AddressView(o.ShippingAddress)
		view.ShippingAddress = &a
	}
	for i := range o.Lines {
		line := &o.Lines[i]
		props := make([]PropertyView, 0, len(line.Properties))
		for _, p := range line.Properties {
			props = append(props, PropertyView(p))
		}
		view.LineItems = append(view.LineItems, OrderLineView{
			ID:               line.ID,
			Title:            line.Title,
			SKU:              line.SKU,
			VariantTitle:     line.VariantTitle,
			Quantity:         line.Quantity,
			ImageSrc:         line.ImageURL,
			Properties:       props,
			DetectedPrintURL: line.HTTPProperty(fulfillmentapp.FrontPrintAliases...),
			DetectedMockURL:  line.HTTPProperty(fulfillmentapp.FrontMockAliases...),
			DetectedSession:  line.Property(fulfillmentapp.SessionAliases...),
		})
	}
	return view
}
