package fulfillment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// Line property aliases read by the mapper
var (
	ColorAliases = []string{"print_color", "color", "颜色"}
	SizeAliases  = []string{"print_size", "size", "尺寸"}
	CraftAliases = []string{"craft", "craftType", "工艺"}
)

var directPrintPattern = regexp.MustCompile(`(?i)直喷|dtg`)

// PayloadMapper converts an upstream order into the factory placement payload
type PayloadMapper struct {
	images   *ImagePipeline
	location *time.Location
}

// MapperOption configures a PayloadMapper
type MapperOption func(*PayloadMapper)

// WithLocation sets the zone used for factory timestamps (default time.Local)
func WithLocation(loc *time.Location) MapperOption {
	return func(m *PayloadMapper) {
		if loc != nil {
			m.location = loc
		}
	}
}

// NewPayloadMapper creates a mapper backed by an image pipeline
func NewPayloadMapper(images *ImagePipeline, opts ...MapperOption) *PayloadMapper {
	m := &PayloadMapper{images: images, location: time.Local}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build maps the order without checking image completeness. Goods lines keep
// the order of the upstream lines.
func (m *PayloadMapper) Build(ctx context.Context, order *fulfillment.Order) (*fulfillment.CanonicalOrderPayload, error) {
	ship := order.ShippingAddress
	orderNo := order.DisplayNo()

	payload := &fulfillment.CanonicalOrderPayload{
		PlatformType:         fulfillment.PlatformTypeShopify,
		SourcePlatformOid:    order.ID,
		PlatformOrderStatus:  fulfillment.StatusNotShipped,
		PlatformRefundStatus: fulfillment.RefundStatusNone,
		PlatformOid:          order.ID,
		ConsigneeName:        strings.TrimSpace(ship.FirstName + " " + ship.LastName),
		Phone:                firstNonEmpty(ship.Phone, fulfillment.DefaultPhone),
		Address:              joinNonEmpty(" ", ship.Address1, ship.Address2),
		ReceiverCountry:      firstNonEmpty(ship.Country, ship.CountryCode),
		ReceiverProvince:     ship.Province,
		ReceiverCity:         ship.City,
		ReceiverTown:         ship.City,
		PostCode:             ship.Zip,
		OrderPayTime:         m.formatTime(order.PayTime()),
		OrderTime:            m.formatTime(order.CreatedAt),
		SelfWaybillFlag:      false,
		GoodsList:            make([]fulfillment.CanonicalGoodsLine, 0, len(order.Lines)),
	}

	for i := range order.Lines {
		line := &order.Lines[i]
		images, err := m.images.Resolve(ctx, order, line)
		if err != nil {
			return nil, err
		}
		payload.GoodsList = append(payload.GoodsList, m.goodsLine(order, orderNo, i, line, images))
	}
	return payload, nil
}

// MapOrder builds the payload and fails with a *fulfillment.ValidationError
// naming every line that resolved to no image.
func (m *PayloadMapper) MapOrder(ctx context.Context, order *fulfillment.Order) (*fulfillment.CanonicalOrderPayload, error) {
	payload, err := m.Build(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := payload.ValidateImages(); err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *PayloadMapper) goodsLine(order *fulfillment.Order, orderNo string, idx int, line *fulfillment.OrderLine, images fulfillment.ImageList) fulfillment.CanonicalGoodsLine {
	color, size := ColorSize(line)
	num := line.Quantity
	if num <= 0 {
		num = 1
	}
	return fulfillment.CanonicalGoodsLine{
		PlatformOid:   order.ID,
		PlatformOllID: firstNonEmpty(line.ID, line.VariantID, fmt.Sprintf("%s-%d", order.ID, idx+1)),
		GoodsType:     fulfillment.GoodsTypeCustom,
		Title:         firstNonEmpty(line.Title, orderNo),
		GoodsStatus:   fulfillment.StatusNotShipped,
		RefundStatus:  fulfillment.RefundStatusNone,
		SizeCode:      strings.ToUpper(size),
		SizeName:      size,
		ColorCode:     strings.ToUpper(color),
		ColorName:     color,
		StyleCode:     firstNonEmpty(line.SKU, line.ProductID, fulfillment.DefaultStyleCode),
		StyleName:     firstNonEmpty(line.Title, fulfillment.DefaultStyleName),
		CraftType:     CraftType(line),
		Num:           num,
		PlatformSpuID: line.ProductID,
		PlatformSkuID: line.VariantID,
		Specification: color + "/" + size,
		ImageList:     images,
	}
}

func (m *PayloadMapper) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(m.location).Format(fulfillment.DateTimeLayout)
}

// ColorSize reads color and size from the line properties, then from the
// "Color / Size" variant title, then falls back to NA / ONE
func ColorSize(line *fulfillment.OrderLine) (color, size string) {
	color = line.Property(ColorAliases...)
	size = line.Property(SizeAliases...)
	if (color == "" || size == "") && line.VariantTitle != "" {
		parts := strings.Split(line.VariantTitle, "/")
		if color == "" {
			color = strings.TrimSpace(parts[0])
		}
		if size == "" && len(parts) > 1 {
			size = strings.TrimSpace(parts[1])
		}
	}
	return firstNonEmpty(color, fulfillment.DefaultColor), firstNonEmpty(size, fulfillment.DefaultSize)
}

// CraftType returns direct print for "直喷" or "DTG" craft properties, else the default craft
func CraftType(line *fulfillment.OrderLine) int {
	if directPrintPattern.MatchString(line.Property(CraftAliases...)) {
		return fulfillment.CraftTypeDirectPrint
	}
	return fulfillment.CraftTypeDefault
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
