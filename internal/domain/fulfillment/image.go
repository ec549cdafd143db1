package fulfillment

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxImageNameLength is the factory limit for image codes and names
const MaxImageNameLength = 60

// ImageType is the factory image classification
type ImageType int

const (
	// ImageTypePrint is high-resolution artwork used for manufacturing
	ImageTypePrint ImageType = 1
	// ImageTypeMock is a preview image shown to the customer
	ImageTypeMock ImageType = 2
)

// String returns the string representation of ImageType
func (t ImageType) String() string {
	switch t {
	case ImageTypePrint:
		return "PRINT"
	case ImageTypeMock:
		return "MOCK"
	default:
		return fmt.Sprintf("ImageType(%d)", int(t))
	}
}

// marker returns the letter used in image codes
func (t ImageType) marker() string {
	if t == ImageTypePrint {
		return "P"
	}
	return "M"
}

// Side is the garment side an image belongs to
type Side int

const (
	SideFront Side = 0
	SideBack  Side = 1
)

// ImageRef is an image attached to a factory goods line
type ImageRef struct {
	Type ImageType `json:"type"`
	URL  string    `json:"imageUrl"`
	Code string    `json:"imageCode"`
	Name string    `json:"imageName"`
}

// NewImageRef builds an image reference with a deterministic, sanitized code.
// The raw code has the form P_<orderId>_<lineKey>_<P|M><side>.
func NewImageRef(t ImageType, url, orderID, lineKey string, side Side) ImageRef {
	name := SanitizeImageName(fmt.Sprintf("P_%s_%s_%s%d", orderID, lineKey, t.marker(), side))
	return ImageRef{
		Type: t,
		URL:  url,
		Code: name,
		Name: name,
	}
}

// ImageList is an ordered image list with (url, type) uniqueness
type ImageList []ImageRef

// Add appends ref unless an image of the same type already has the same URL
// or the same sanitized code. Returns true when ref was appended.
func (l *ImageList) Add(ref ImageRef) bool {
	if ref.URL == "" {
		return false
	}
	for _, x := range *l {
		if x.Type != ref.Type {
			continue
		}
		if x.URL == ref.URL || (ref.Code != "" && x.Code == ref.Code) {
			return false
		}
	}
	*l = append(*l, ref)
	return true
}

// Has reports whether the list holds an image of the given type
func (l ImageList) Has(t ImageType) bool {
	for _, x := range l {
		if x.Type == t {
			return true
		}
	}
	return false
}

// SanitizeImageName NFKC-normalizes s, collapses every run of characters outside
// [0-9A-Za-z_], CJK unified ideographs and square brackets into "_", trims
// underscores at both ends and cuts the result to MaxImageNameLength runes.
// The result is stable: sanitizing it again returns it unchanged.
func SanitizeImageName(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if allowedNameRune(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if r := []rune(out); len(r) > MaxImageNameLength {
		out = strings.TrimRight(string(r[:MaxImageNameLength]), "_")
	}
	return out
}

func allowedNameRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '_' || r == '[' || r == ']':
		return true
	case r >= 0x4e00 && r <= 0x9fa5:
		return true
	}
	return false
}

// SideDesign holds the images a design source produced for one side
type SideDesign struct {
	Print string `json:"print,omitempty"`
	Mock  string `json:"mock,omitempty"`
}

// IsEmpty returns true if the side carries no usable image
func (s *SideDesign) IsEmpty() bool {
	return s == nil || (s.Print == "" && s.Mock == "")
}

// DesignSet is the per-side output of an image source for one order line
type DesignSet struct {
	Front *SideDesign `json:"front,omitempty"`
	Back  *SideDesign `json:"back,omitempty"`
	// TemplateID and HexColor are lookup metadata from the design plugin
	TemplateID string `json:"template_id,omitempty"`
	HexColor   string `json:"hex_color,omitempty"`
}

// IsEmpty returns true if neither side has an image
func (d *DesignSet) IsEmpty() bool {
	return d == nil || (d.Front.IsEmpty() && d.Back.IsEmpty())
}
