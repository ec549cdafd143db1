package factory

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/jsonx"
)

// API paths
const (
	PathPlaceOrder              = "/trade/api/interface/placeOrder"
	PathPushOrder               = "/trade/api/interface/pushOrder"
	PathQueryOrderDelivery      = "/trade/api/interface/queryOrderDelivery"
	PathQueryOrderStatus        = "/trade/api/interface/queryOrderStatus"
	PathQueryOrderInfo          = "/trade/api/interface/queryOrderInfo"
	PathUpdateOrder             = "/trade/api/interface/updateOrder"
	PathUpdatePrintImage        = "/trade/api/interface/updatePrintImage"
	PathCloseOrder              = "/trade/api/interface/closeOrder"
	PathPreShipped              = "/trade/api/interface/preShipped"
	PathQueryProduct            = "/trade/api/interface/queryProduct"
	PathQueryStyle              = "/trade/api/interface/queryStyle"
	PathQueryColor              = "/trade/api/interface/queryColor"
	PathQuerySize               = "/trade/api/interface/querySize"
	PathQueryShipAddress        = "/trade/api/interface/queryShipAddress"
	PathQueryProductShipAddress = "/trade/api/interface/queryProductShipAddress"
	PathQueryAbnormalImagePage  = "/trade/api/interface/queryAbnormalImagePage"
	PathUploadAbnormalImage     = "/trade/api/interface/uploadAbnormalImage"
	PathSyncImageToFactory      = "/trade/api/interface/syncImageToFactory"
	PathQueryAfterSalesInfo     = "/trade/api/interface/queryAfterSalesInfo"
	PathCreateAfterSales        = "/trade/api/interface/createAfterSales"
)

// Response is the common factory response envelope
type Response struct {
	// Successful is nil when the response carries no flag
	Successful   *bool           `json:"successful"`
	Message      string          `json:"message"`
	Msg          string          `json:"msg"`
	ErrorMessage string          `json:"error_message"`
	TraceID      string          `json:"traceId"`
	Data         json.RawMessage `json:"data"`
}

// Text returns the first non-empty message field
func (r *Response) Text() string {
	for _, s := range []string{r.Message, r.Msg, r.ErrorMessage} {
		if s != "" {
			return s
		}
	}
	return ""
}

// DecodeData unmarshals the data field into v. Null or missing data leaves v untouched.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Page is the paging request of the catalog lookups
type Page struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// DefaultPage is used when a catalog lookup gets no page
var DefaultPage = Page{PageIndex: 1, PageSize: 1000}

type orderIDList struct {
	PlatformOidList []string `json:"platformOidList"`
}

type singleOrderID struct {
	PlatformOid string `json:"platformOid"`
}

// PrintImageLine replaces the images of one goods line
type PrintImageLine struct {
	PlatformOllID string                `json:"platformOllId"`
	ImageList     fulfillment.ImageList `json:"imageList"`
}

// UpdatePrintImageRequest replaces print images of an order that is still modifiable
type UpdatePrintImageRequest struct {
	PlatformOid string           `json:"platformOid"`
	GoodsList   []PrintImageLine `json:"goodsList"`
}

type deliveryRow struct {
	PlatformOid     jsonx.FlexString `json:"platformOid"`
	TrackingNumber  jsonx.FlexString `json:"trackingNumber"`
	WaybillDataPath string           `json:"waybillDataPath"`
	CourierCompany  string           `json:"courierCompany"`
}

func (r deliveryRow) toDomain() fulfillment.DeliveryRecord {
	return fulfillment.DeliveryRecord{
		PlatformOid:    string(r.PlatformOid),
		TrackingNumber: string(r.TrackingNumber),
		WaybillURL:     r.WaybillDataPath,
		CourierCompany: r.CourierCompany,
	}
}

// ---------------------------------------------------------------------------
// Status helpers
// ---------------------------------------------------------------------------

// StatusRow is the factory order status reduced to a code and a description
type StatusRow struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// OrderStatus is the status of one factory order
type OrderStatus struct {
	PlatformOid string `json:"platformOid"`
	StatusRow
}

var (
	statusCodeKeys = []string{"factoryOrderStatusCode", "factoryOrderStatus", "status", "statusCode"}
	statusTextKeys = []string{"factoryOrderStatusDesc", "statusDesc", "status", "desc"}

	modifiableTextPattern = regexp.MustCompile(`(?i)待推送|反审|回电商`)
)

// ParseStatusRow reads the status code and text from a raw status row.
// The first present key of each alias list wins; a non-numeric code reads as 0.
func ParseStatusRow(row map[string]any) StatusRow {
	var out StatusRow
	if v, ok := firstPresent(row, statusCodeKeys); ok {
		out.Code = toInt(v)
	}
	if v, ok := firstPresent(row, statusTextKeys); ok {
		out.Text = toString(v)
	}
	return out
}

// IsModifiableStatus reports whether the factory still accepts changes to
// an order in this status (not pushed yet, or sent back for review)
func IsModifiableStatus(s StatusRow) bool {
	if modifiableTextPattern.MatchString(s.Text) {
		return true
	}
	return s.Code == 1 || s.Code == 10
}

func firstPresent(row map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case json.Number:
		n, _ := x.Int64()
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
