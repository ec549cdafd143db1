package designplugin

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/jsonx"
)

var (
	frontSidePattern = regexp.MustCompile(`(?i)front|前`)
	backSidePattern  = regexp.MustCompile(`(?i)back|后|背`)
)

// Side is one printable area of a Qstomizer design
type Side struct {
	Name string `json:"side_name"`
	// DesignPNG is the print-quality artwork
	DesignPNG string `json:"design_png"`
	// ImageURL is the rendered preview
	ImageURL string `json:"image_url"`
}

// OrderData is the design session document
type OrderData struct {
	Sides      []Side           `json:"sides"`
	TemplateID jsonx.FlexString `json:"template_id"`
	HexColor   string           `json:"hex_color"`
}

// PickSides maps the first front-like and back-like sides to a DesignSet.
// Returns nil when neither side has an http(s) image.
func PickSides(data *OrderData) *fulfillment.DesignSet {
	if data == nil {
		return nil
	}
	set := &fulfillment.DesignSet{
		Front:      sideDesign(findSide(data.Sides, frontSidePattern)),
		Back:       sideDesign(findSide(data.Sides, backSidePattern)),
		TemplateID: string(data.TemplateID),
		HexColor:   data.HexColor,
	}
	if set.IsEmpty() {
		return nil
	}
	return set
}

func findSide(sides []Side, pattern *regexp.Regexp) *Side {
	for i := range sides {
		if pattern.MatchString(sides[i].Name) {
			return &sides[i]
		}
	}
	return nil
}

func sideDesign(s *Side) *fulfillment.SideDesign {
	if s == nil {
		return nil
	}
	d := &fulfillment.SideDesign{
		Print: fulfillment.HTTPURL(s.DesignPNG),
		Mock:  fulfillment.HTTPURL(s.ImageURL),
	}
	if d.IsEmpty() {
		return nil
	}
	return d
}

// envelope covers the response shapes seen from the API:
// {body:{data:{...}}}, {data:{...}} and the bare document
type envelope struct {
	Body *struct {
		Data json.RawMessage `json:"data"`
	} `json:"body"`
	Data json.RawMessage `json:"data"`
}

// decodeOrderData extracts the design document from a response body
func decodeOrderData(raw []byte) (*OrderData, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	doc := raw
	switch {
	case env.Body != nil && present(env.Body.Data):
		doc = env.Body.Data
	case present(env.Data):
		doc = env.Data
	}

	var data OrderData
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
