package shopify

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/jsonx"
)

// RESTOrder is the REST Admin API order resource (fields used here only)
type RESTOrder struct {
	ID              jsonx.FlexString `json:"id"`
	Name            string           `json:"name"`
	OrderNumber     jsonx.FlexString `json:"order_number"`
	FinancialStatus string           `json:"financial_status"`
	Tags            string           `json:"tags"`
	Currency        string           `json:"currency"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	ProcessedAt     string           `json:"processed_at"`
	UpdatedAt       string           `json:"updated_at"`
	CreatedAt       string           `json:"created_at"`
	ShippingAddress *RESTAddress     `json:"shipping_address"`
	LineItems       []RESTLineItem   `json:"line_items"`
}

// RESTAddress is a REST address resource
type RESTAddress struct {
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

// RESTLineItem is a REST order line item
type RESTLineItem struct {
	ID           jsonx.FlexString `json:"id"`
	ProductID    jsonx.FlexString `json:"product_id"`
	VariantID    jsonx.FlexString `json:"variant_id"`
	SKU          string           `json:"sku"`
	Title        string           `json:"title"`
	VariantTitle string           `json:"variant_title"`
	Quantity     int              `json:"quantity"`
	Price        decimal.Decimal  `json:"price"`
	Properties   []RESTProperty   `json:"properties"`
	ImageSrc     string           `json:"image_src"`
	Image        *struct {
		Src string `json:"src"`
	} `json:"image"`
}

// RESTProperty is a line item property
type RESTProperty struct {
	Name  string           `json:"name"`
	Value jsonx.FlexString `json:"value"`
}

// ToDomain converts the REST order to the domain order
func (o *RESTOrder) ToDomain() *fulfillment.Order {
	order := &fulfillment.Order{
		ID:              o.ID.String(),
		Name:            o.Name,
		OrderNumber:     o.OrderNumber.String(),
		FinancialStatus: o.FinancialStatus,
		Tags:            SplitTags(o.Tags),
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		ProcessedAt:     parseTime(o.ProcessedAt),
		UpdatedAt:       parseTime(o.UpdatedAt),
		CreatedAt:       parseTime(o.CreatedAt),
		Lines:           make([]fulfillment.OrderLine, 0, len(o.LineItems)),
	}
	if a := o.ShippingAddress; a != nil {
		order.ShippingAddress = fulfillment.Address{
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Phone:       a.Phone,
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			Province:    a.Province,
			Country:     a.Country,
			CountryCode: a.CountryCode,
			Zip:         a.Zip,
		}
	}
	for _, li := range o.LineItems {
		order.Lines = append(order.Lines, li.toDomain())
	}
	return order
}

func (li *RESTLineItem) toDomain() fulfillment.OrderLine {
	line := fulfillment.OrderLine{
		ID:           li.ID.String(),
		ProductID:    li.ProductID.String(),
		VariantID:    li.VariantID.String(),
		SKU:          li.SKU,
		Title:        li.Title,
		VariantTitle: li.VariantTitle,
		Quantity:     li.Quantity,
		Price:        li.Price,
		ImageURL:     li.ImageSrc,
	}
	if line.ImageURL == "" && li.Image != nil {
		line.ImageURL = li.Image.Src
	}
	for _, p := range li.Properties {
		if p.Name == "" {
			continue
		}
		line.Properties = append(line.Properties, fulfillment.Property{Name: p.Name, Value: p.Value.String()})
	}
	return line
}

// SplitTags splits the REST comma-separated tag string
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// ---------------------------------------------------------------------------
// GraphQL
// ---------------------------------------------------------------------------

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type mutationResult struct {
	UserErrors []userError `json:"userErrors"`
}

const (
	searchOrdersQuery = `query($q:String!, $first:Int!){
  orders(first:$first, query:$q){ edges{ node{ id name tags } } }
}`

	tagsAddMutation = `mutation($id:ID!, $tags:[String!]!){
  tagsAdd(id:$id, tags:$tags){ userErrors{ field message } }
}`

	tagsRemoveMutation = `mutation($id:ID!, $tags:[String!]!){
  tagsRemove(id:$id, tags:$tags){ userErrors{ field message } }
}`

	metafieldsSetMutation = `mutation($m:[MetafieldsSetInput!]!){
  metafieldsSet(metafields:$m){ userErrors{ field message } }
}`

	fulfillmentOrdersQuery = `query($id:ID!){
  order(id:$id){ fulfillmentOrders(first:5){ edges{ node{ id status } } } }
}`

	fulfillmentCreateMutation = `mutation($input:FulfillmentV2Input!){
  fulfillmentCreateV2(fulfillment:$input){ fulfillment{ id } userErrors{ field message } }
}`
)

type searchOrdersData struct {
	Orders struct {
		Edges []struct {
			Node struct {
				ID   string   `json:"id"`
				Name string   `json:"name"`
				Tags []string `json:"tags"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

type fulfillmentOrdersData struct {
	Order *struct {
		FulfillmentOrders struct {
			Edges []struct {
				Node struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"fulfillmentOrders"`
	} `json:"order"`
}
