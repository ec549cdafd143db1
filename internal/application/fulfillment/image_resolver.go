package fulfillment

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// Line property aliases, in lookup priority order
var (
	SessionAliases    = []string{"_customorderid", "custom_order_id", "order_id", "qstomizer_orderid"}
	FrontPrintAliases = []string{"print_png_url", "design_png", "design_url", "print_url"}
	BackPrintAliases  = []string{"back_print_png_url", "back_design_png", "back_design_url", "back_print_url"}
	FrontMockAliases  = []string{"_customimagefront", "custom image:", "customimage", "artwork_url", "image", "print", "mockup_url", "preview", "mockup"}
	BackMockAliases   = []string{"_customimageback", "back_image", "image_back"}
)

// DefaultPrintDPI is the density stamped on print PNGs by the image proxy
const DefaultPrintDPI = 300

var pngPathPattern = regexp.MustCompile(`(?i)\.png(\?|#|$)`)

// ImageOptions controls the optional parts of image resolution
type ImageOptions struct {
	// AllowPlaceholder uses the line reference image as a mock when nothing else resolved
	AllowPlaceholder bool
	// ForcePNGDPI routes print PNGs through the DPI proxy at ProxyBase
	ForcePNGDPI bool
	// PrintDPI is the density requested from the proxy
	PrintDPI int
	// ProxyBase is the public base URL of this service, e.g. https://bridge.example.com
	ProxyBase string
}

// RewritePrintURL returns the DPI proxy URL for a print PNG, or u unchanged
// when the proxy is disabled, has no base, or u is not a PNG.
func (o ImageOptions) RewritePrintURL(u string) string {
	base := strings.TrimRight(o.ProxyBase, "/")
	if u == "" || !o.ForcePNGDPI || base == "" || !pngPathPattern.MatchString(u) {
		return u
	}
	dpi := o.PrintDPI
	if dpi <= 0 {
		dpi = DefaultPrintDPI
	}
	return base + "/img/pngdpi?src=" + url.QueryEscape(u) + "&dpi=" + strconv.Itoa(dpi)
}

// ImageResolver is one source in the image resolution chain. Resolvers run in
// order and each decides from the images already collected whether it has
// anything left to contribute.
type ImageResolver interface {
	Name() string
	Resolve(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, images *fulfillment.ImageList) error
}

// imageWriter appends side designs to a list using the per-line code scheme
type imageWriter struct {
	orderID string
	lineKey string
	opts    ImageOptions
}

// add appends the prints and mocks of set, skipping duplicates across sides:
// a back print equal to the front print, a front mock equal to the front
// print, and a back mock equal to the back print or the front mock.
func (w imageWriter) add(images *fulfillment.ImageList, set *fulfillment.DesignSet) {
	var front, back fulfillment.SideDesign
	if set.Front != nil {
		front = *set.Front
	}
	if set.Back != nil {
		back = *set.Back
	}

	if front.Print != "" {
		images.Add(w.ref(fulfillment.ImageTypePrint, w.opts.RewritePrintURL(front.Print), fulfillment.SideFront))
	}
	if back.Print != "" && back.Print != front.Print {
		images.Add(w.ref(fulfillment.ImageTypePrint, w.opts.RewritePrintURL(back.Print), fulfillment.SideBack))
	}
	if front.Mock != "" && front.Mock != front.Print {
		images.Add(w.ref(fulfillment.ImageTypeMock, front.Mock, fulfillment.SideFront))
	}
	if back.Mock != "" && back.Mock != back.Print && back.Mock != front.Mock {
		images.Add(w.ref(fulfillment.ImageTypeMock, back.Mock, fulfillment.SideBack))
	}
}

func (w imageWriter) ref(t fulfillment.ImageType, u string, side fulfillment.Side) fulfillment.ImageRef {
	return fulfillment.NewImageRef(t, u, w.orderID, w.lineKey, side)
}

// ---------------------------------------------------------------------------
// Resolvers
// ---------------------------------------------------------------------------

// DesignPluginResolver reads print and mock images from the design session
// referenced by the line properties
type DesignPluginResolver struct {
	source fulfillment.DesignSource
	shop   string
	opts   ImageOptions
	logger *zap.Logger
}

// NewDesignPluginResolver creates the design plugin stage. An empty shop lets
// the source use its own configured shop.
func NewDesignPluginResolver(source fulfillment.DesignSource, shop string, opts ImageOptions, logger *zap.Logger) *DesignPluginResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesignPluginResolver{source: source, shop: shop, opts: opts, logger: logger}
}

// Name returns the stage name
func (r *DesignPluginResolver) Name() string { return "design_plugin" }

// Resolve adds the design session images. Lookup failures other than
// cancellation leave the line to the fallback stages.
func (r *DesignPluginResolver) Resolve(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, images *fulfillment.ImageList) error {
	sessionID := line.Property(SessionAliases...)
	if sessionID == "" || r.source == nil {
		return nil
	}
	set, err := r.source.LookupDesign(ctx, r.shop, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.logger.Warn("Design lookup failed",
			zap.String("order_id", order.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil
	}
	if set.IsEmpty() {
		return nil
	}
	imageWriter{orderID: order.ID, lineKey: line.Key(), opts: r.opts}.add(images, set)
	return nil
}

// PropertyPrintResolver fills print images from line properties when no
// print image was found yet
type PropertyPrintResolver struct {
	opts ImageOptions
}

// Name returns the stage name
func (r *PropertyPrintResolver) Name() string { return "property_print" }

// Resolve adds front and back print URLs from the line properties
func (r *PropertyPrintResolver) Resolve(_ context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, images *fulfillment.ImageList) error {
	if images.Has(fulfillment.ImageTypePrint) {
		return nil
	}
	set := &fulfillment.DesignSet{
		Front: &fulfillment.SideDesign{Print: line.HTTPProperty(FrontPrintAliases...)},
		Back:  &fulfillment.SideDesign{Print: line.HTTPProperty(BackPrintAliases...)},
	}
	imageWriter{orderID: order.ID, lineKey: line.Key(), opts: r.opts}.add(images, set)
	return nil
}

// PropertyMockResolver fills mock images from line properties when no mock
// image was found yet
type PropertyMockResolver struct{}

// Name returns the stage name
func (PropertyMockResolver) Name() string { return "property_mock" }

// Resolve adds front and back mock URLs from the line properties
func (PropertyMockResolver) Resolve(_ context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, images *fulfillment.ImageList) error {
	if images.Has(fulfillment.ImageTypeMock) {
		return nil
	}
	set := &fulfillment.DesignSet{
		Front: &fulfillment.SideDesign{Mock: line.HTTPProperty(FrontMockAliases...)},
		Back:  &fulfillment.SideDesign{Mock: line.HTTPProperty(BackMockAliases...)},
	}
	imageWriter{orderID: order.ID, lineKey: line.Key()}.add(images, set)
	return nil
}

// PlaceholderResolver uses the catalog image of the line as a front mock
// when the list is still empty
type PlaceholderResolver struct{}

// Name returns the stage name
func (PlaceholderResolver) Name() string { return "placeholder" }

// Resolve adds the line reference image
func (PlaceholderResolver) Resolve(_ context.Context, order *fulfillment.Order, line *fulfillment.OrderLine, images *fulfillment.ImageList) error {
	if len(*images) > 0 {
		return nil
	}
	if u := fulfillment.HTTPURL(line.ImageURL); u != "" {
		images.Add(fulfillment.NewImageRef(fulfillment.ImageTypeMock, u, order.ID, line.Key(), fulfillment.SideFront))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// ImagePipeline runs resolvers in order for one order line
type ImagePipeline struct {
	resolvers []ImageResolver
}

// NewImagePipeline builds the standard chain: design plugin (when source is
// set), property prints, property mocks, then the placeholder when allowed.
func NewImagePipeline(source fulfillment.DesignSource, shop string, opts ImageOptions, logger *zap.Logger) *ImagePipeline {
	var resolvers []ImageResolver
	if source != nil {
		resolvers = append(resolvers, NewDesignPluginResolver(source, shop, opts, logger))
	}
	resolvers = append(resolvers, &PropertyPrintResolver{opts: opts}, PropertyMockResolver{})
	if opts.AllowPlaceholder {
		resolvers = append(resolvers, PlaceholderResolver{})
	}
	return &ImagePipeline{resolvers: resolvers}
}

// NewImagePipelineWith builds a pipeline from explicit resolvers
func NewImagePipelineWith(resolvers ...ImageResolver) *ImagePipeline {
	return &ImagePipeline{resolvers: resolvers}
}

// Resolvers returns the stage names in run order
func (p *ImagePipeline) Resolvers() []string {
	names := make([]string, 0, len(p.resolvers))
	for _, r := range p.resolvers {
		names = append(names, r.Name())
	}
	return names
}

// Resolve returns the image list of one line. An empty list is not an error here;
// completeness is checked on the whole payload.
func (p *ImagePipeline) Resolve(ctx context.Context, order *fulfillment.Order, line *fulfillment.OrderLine) (fulfillment.ImageList, error) {
	images := fulfillment.ImageList{}
	for _, r := range p.resolvers {
		if err := r.Resolve(ctx, order, line, &images); err != nil {
			return nil, err
		}
	}
	return images, nil
}
