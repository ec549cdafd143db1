package fulfillment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

func resolveLine(t *testing.T, p *ImagePipeline, line fulfillment.OrderLine) fulfillment.ImageList {
	t.Helper()
	order := &fulfillment.Order{ID: "1001", Lines: []fulfillment.OrderLine{line}}
	images, err := p.Resolve(context.Background(), order, &order.Lines[0])
	require.NoError(t, err)
	return images
}

func props(kv ...string) []fulfillment.Property {
	out := make([]fulfillment.Property, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, fulfillment.Property{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestImageOptions_RewritePrintURL(t *testing.T) {
	on := ImageOptions{ForcePNGDPI: true, PrintDPI: 300, ProxyBase: "https://bridge.test/"}

	tests := []struct {
		name     string
		opts     ImageOptions
		url      string
		expected string
	}{
		{"png rewritten", on, "https://x/a.png", "https://bridge.test/img/pngdpi?src=https%3A%2F%2Fx%2Fa.png&dpi=300"},
		{"png with query", on, "https://x/a.PNG?v=1", "https://bridge.test/img/pngdpi?src=https%3A%2F%2Fx%2Fa.PNG%3Fv%3D1&dpi=300"},
		{"jpg untouched", on, "https://x/a.jpg", "https://x/a.jpg"},
		{"png in path only", on, "https://x/a.png/b.jpg", "https://x/a.png/b.jpg"},
		{"disabled", ImageOptions{ProxyBase: "https://bridge.test"}, "https://x/a.png", "https://x/a.png"},
		{"no base", ImageOptions{ForcePNGDPI: true}, "https://x/a.png", "https://x/a.png"},
		{"default dpi", ImageOptions{ForcePNGDPI: true, ProxyBase: "https://b"}, "https://x/a.png", "https://b/img/pngdpi?src=https%3A%2F%2Fx%2Fa.png&dpi=300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.opts.RewritePrintURL(tt.url))
		})
	}
}

func TestImagePipeline_PropertyFallbacks(t *testing.T) {
	p := NewImagePipeline(nil, "", ImageOptions{}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID: "55",
		Properties: props(
			"Print_PNG_URL ", "https://x/front.png",
			"back_design_url", "https://x/back.png",
			"_customImageFront", "https://x/front.jpg",
			"back_image", "https://x/back.jpg",
			"preview", "not-a-url",
		),
	})

	require.Len(t, images, 4)
	assert.Equal(t, fulfillment.ImageRef{Type: fulfillment.ImageTypePrint, URL: "https://x/front.png", Code: "P_1001_55_P0", Name: "P_1001_55_P0"}, images[0])
	assert.Equal(t, "P_1001_55_P1", images[1].Code)
	assert.Equal(t, fulfillment.ImageTypeMock, images[2].Type)
	assert.Equal(t, "P_1001_55_M0", images[2].Code)
	assert.Equal(t, "P_1001_55_M1", images[3].Code)
}

func TestImagePipeline_SideDedup(t *testing.T) {
	p := NewImagePipeline(nil, "", ImageOptions{}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID: "55",
		Properties: props(
			"print_url", "https://x/same.png",
			"back_print_url", "https://x/same.png",
			"mockup", "https://x/m.jpg",
			"image_back", "https://x/m.jpg",
		),
	})

	require.Len(t, images, 2)
	assert.Equal(t, "https://x/same.png", images[0].URL)
	assert.Equal(t, "https://x/m.jpg", images[1].URL)
}

func TestImagePipeline_SameURLAsPrintAndMock(t *testing.T) {
	p := NewImagePipeline(nil, "", ImageOptions{}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID:         "55",
		Properties: props("design_png", "https://x/a.png", "image", "https://x/a.png"),
	})

	// distinct types, so both are kept
	require.Len(t, images, 2)
	assert.Equal(t, fulfillment.ImageTypePrint, images[0].Type)
	assert.Equal(t, fulfillment.ImageTypeMock, images[1].Type)
}

func TestImagePipeline_DesignPluginFirst(t *testing.T) {
	source := &fakeDesignSource{designs: map[string]*fulfillment.DesignSet{
		"Q-1": {
			Front: &fulfillment.SideDesign{Print: "https://q/front.png", Mock: "https://q/front.jpg"},
			Back:  &fulfillment.SideDesign{Print: "https://q/back.png", Mock: "https://q/front.jpg"},
		},
	}}
	opts := ImageOptions{ForcePNGDPI: true, PrintDPI: 600, ProxyBase: "https://bridge.test"}
	p := NewImagePipeline(source, "demo.myshopify.com", opts, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID: "55",
		Properties: props(
			"_customorderid", "Q-1",
			"print_png_url", "https://x/ignored.png",
		),
	})

	assert.Equal(t, []string{"demo.myshopify.com:Q-1"}, source.calls)
	require.Len(t, images, 3)
	assert.Equal(t, opts.RewritePrintURL("https://q/front.png"), images[0].URL)
	assert.Equal(t, opts.RewritePrintURL("https://q/back.png"), images[1].URL)
	assert.Equal(t, "https://q/front.jpg", images[2].URL)
	assert.Equal(t, "P_1001_55_M0", images[2].Code)
}

func TestImagePipeline_DesignPluginMockOnlyFallsBackForPrint(t *testing.T) {
	source := &fakeDesignSource{designs: map[string]*fulfillment.DesignSet{
		"Q-2": {Front: &fulfillment.SideDesign{Mock: "https://q/front.jpg"}},
	}}
	p := NewImagePipeline(source, "", ImageOptions{}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID:         "55",
		Properties: props("order_id", "Q-2", "design_url", "https://x/p.png", "mockup", "https://x/ignored.jpg"),
	})

	require.Len(t, images, 2)
	assert.Equal(t, "https://q/front.jpg", images[0].URL)
	assert.Equal(t, fulfillment.ImageTypePrint, images[1].Type)
	assert.Equal(t, "https://x/p.png", images[1].URL)
}

func TestImagePipeline_DesignLookupFailureFallsBack(t *testing.T) {
	source := &fakeDesignSource{err: errBoom}
	p := NewImagePipeline(source, "", ImageOptions{}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID:         "55",
		Properties: props("custom_order_id", "Q-3", "print_png_url", "https://x/a.png"),
	})

	require.Len(t, images, 1)
	assert.Equal(t, "https://x/a.png", images[0].URL)
}

func TestImagePipeline_CanceledLookupFails(t *testing.T) {
	source := &fakeDesignSource{err: context.Canceled}
	p := NewImagePipeline(source, "", ImageOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	order := &fulfillment.Order{ID: "1", Lines: []fulfillment.OrderLine{{Properties: props("_customorderid", "Q")}}}

	_, err := p.Resolve(ctx, order, &order.Lines[0])
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImagePipeline_Placeholder(t *testing.T) {
	line := fulfillment.OrderLine{ID: "55", ImageURL: "https://cdn/tee.jpg"}

	assert.Empty(t, resolveLine(t, NewImagePipeline(nil, "", ImageOptions{}, nil), line))

	p := NewImagePipeline(nil, "", ImageOptions{AllowPlaceholder: true}, nil)
	images := resolveLine(t, p, line)
	require.Len(t, images, 1)
	assert.Equal(t, fulfillment.ImageTypeMock, images[0].Type)
	assert.Equal(t, "https://cdn/tee.jpg", images[0].URL)

	line.Properties = props("print_url", "https://x/a.png")
	images = resolveLine(t, p, line)
	require.Len(t, images, 1, "placeholder only fills an empty list")
	assert.Equal(t, fulfillment.ImageTypePrint, images[0].Type)
}

func TestImagePipeline_NonHTTPIgnored(t *testing.T) {
	p := NewImagePipeline(nil, "", ImageOptions{AllowPlaceholder: true}, nil)

	images := resolveLine(t, p, fulfillment.OrderLine{
		ID:         "55",
		ImageURL:   "//cdn/tee.jpg",
		Properties: props("print_url", "ftp://x/a.png", "mockup", "data:image/png;base64,AAA"),
	})
	assert.Empty(t, images)
}

func TestImagePipeline_Resolvers(t *testing.T) {
	p := NewImagePipeline(&fakeDesignSource{}, "", ImageOptions{AllowPlaceholder: true}, nil)
	assert.Equal(t, []string{"design_plugin", "property_print", "property_mock", "placeholder"}, p.Resolvers())

	p = NewImagePipeline(nil, "", ImageOptions{}, nil)
	assert.Equal(t, []string{"property_print", "property_mock"}, p.Resolvers())
}
