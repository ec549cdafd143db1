package fulfillment

// Factory enumerations used in the placement payload
const (
	PlatformTypeShopify  = 15
	GoodsTypeCustom      = 1
	StatusNotShipped     = "NOT_SHIPPED"
	RefundStatusNone     = "NO_REFUND"
	DefaultPhone         = "0000000000"
	DefaultColor         = "NA"
	DefaultSize          = "ONE"
	DefaultStyleCode     = "STYLE"
	DefaultStyleName     = "Style"
	CraftTypeDefault     = 1
	CraftTypeDirectPrint = 2
	// DateTimeLayout is the factory timestamp format, local time, second resolution
	DateTimeLayout = "2006-01-02 15:04:05"
)

// CanonicalGoodsLine is one factory goods line, derived from one order line
type CanonicalGoodsLine struct {
	PlatformOid   string    `json:"platformOid"`
	PlatformOllID string    `json:"platformOllId"`
	GoodsType     int       `json:"goodsType"`
	Title         string    `json:"title"`
	GoodsStatus   string    `json:"goodsStatus"`
	RefundStatus  string    `json:"refundStatus"`
	SizeCode      string    `json:"sizeCode"`
	SizeName      string    `json:"sizeName"`
	ColorCode     string    `json:"colorCode"`
	ColorName     string    `json:"colorName"`
	StyleCode     string    `json:"styleCode"`
	StyleName     string    `json:"styleName"`
	CraftType     int       `json:"craftType"`
	Num           int       `json:"num"`
	PlatformSpuID string    `json:"platformSpuId"`
	PlatformSkuID string    `json:"platformSkuId"`
	Specification string    `json:"specification"`
	ImageList     ImageList `json:"imageList"`
}

// CanonicalOrderPayload is the factory placement document.
// It is rebuilt from the current order on every sync attempt.
type CanonicalOrderPayload struct {
	PlatformType         int                  `json:"platformType"`
	SourcePlatformOid    string               `json:"sourcePlatformOid"`
	PlatformOrderStatus  string               `json:"platformOrderStatus"`
	PlatformRefundStatus string               `json:"platformRefundStatus"`
	PlatformOid          string               `json:"platformOid"`
	ConsigneeName        string               `json:"consigneeName"`
	Phone                string               `json:"phone"`
	Address              string               `json:"address"`
	ReceiverCountry      string               `json:"receiverCountry"`
	ReceiverProvince     string               `json:"receiverProvince"`
	ReceiverCity         string               `json:"receiverCity"`
	ReceiverTown         string               `json:"receiverTown"`
	PostCode             string               `json:"postCode"`
	OrderPayTime         string               `json:"orderPayTime"`
	OrderTime            string               `json:"orderTime"`
	SelfWaybillFlag      bool                 `json:"selfWaybillFlag"`
	GoodsList            []CanonicalGoodsLine `json:"goodsList"`
}

// MissingImageLines returns a label for every goods line without images.
// The label is the line title, else its line id.
func (p *CanonicalOrderPayload) MissingImageLines() []string {
	var missing []string
	for _, g := range p.GoodsList {
		if len(g.ImageList) > 0 {
			continue
		}
		label := g.Title
		if label == "" {
			label = g.PlatformOllID
		}
		if label == "" {
			label = "unknown"
		}
		missing = append(missing, label)
	}
	return missing
}

// ValidateImages fails with a *ValidationError when any goods line has no image.
// An order is never submitted with part of its print assets missing.
func (p *CanonicalOrderPayload) ValidateImages() error {
	if missing := p.MissingImageLines(); len(missing) > 0 {
		return &ValidationError{OrderID: p.PlatformOid, MissingLines: missing}
	}
	return nil
}
