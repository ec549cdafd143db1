package fulfillment

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// fakeUpstream keeps orders and their tags in memory and records writes
type fakeUpstream struct {
	mu            sync.Mutex
	orders        map[string]*fulfillment.Order
	lastErrors    map[string]string
	fulfillments  []createdFulfillment
	foIDs         map[string]string
	searches      []string
	searchResults map[string][]string
	addCalls      int
	removeCalls   int

	addErr         error
	fulfillmentErr error
}

type createdFulfillment struct {
	FulfillmentOrderID string
	Tracking           fulfillment.TrackingInfo
	Notify             bool
}

func newFakeUpstream(orders ...*fulfillment.Order) *fakeUpstream {
	f := &fakeUpstream{
		orders:        make(map[string]*fulfillment.Order),
		lastErrors:    make(map[string]string),
		foIDs:         make(map[string]string),
		searchResults: make(map[string][]string),
	}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeUpstream) tags(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		return append([]string(nil), o.Tags...)
	}
	return nil
}

func (f *fakeUpstream) GetOrder(_ context.Context, id string) (*fulfillment.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fulfillment.ErrOrderNotFound
	}
	cp := *o
	cp.Tags = append([]string(nil), o.Tags...)
	return &cp, nil
}

func (f *fakeUpstream) SearchOrders(_ context.Context, query string, first int) ([]fulfillment.OrderSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	var out []fulfillment.OrderSummary
	for _, id := range f.searchResults[query] {
		o := f.orders[id]
		out = append(out, fulfillment.OrderSummary{ID: id, Name: o.Name, Tags: append([]string(nil), o.Tags...)})
		if len(out) == first {
			break
		}
	}
	return out, nil
}

func (f *fakeUpstream) AddTags(_ context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.addCalls++
	o := f.ensure(id)
	o.Tags = fulfillment.TagDiff{Add: tags}.Apply(o.Tags)
	return nil
}

func (f *fakeUpstream) RemoveTags(_ context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	o := f.ensure(id)
	o.Tags = fulfillment.TagDiff{Remove: tags}.Apply(o.Tags)
	return nil
}

func (f *fakeUpstream) SetLastError(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErrors[id] = message
	return nil
}

func (f *fakeUpstream) FulfillmentOrderID(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foIDs[id], nil
}

func (f *fakeUpstream) CreateFulfillment(_ context.Context, foID string, tracking fulfillment.TrackingInfo, notify bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fulfillmentErr != nil {
		return f.fulfillmentErr
	}
	f.fulfillments = append(f.fulfillments, createdFulfillment{FulfillmentOrderID: foID, Tracking: tracking, Notify: notify})
	return nil
}

func (f *fakeUpstream) ensure(id string) *fulfillment.Order {
	o, ok := f.orders[id]
	if !ok {
		o = &fulfillment.Order{ID: id}
		f.orders[id] = o
	}
	return o
}

var _ fulfillment.UpstreamPlatform = (*fakeUpstream)(nil)

// MockFactory is a testify mock of the factory port
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) PlaceOrder(ctx context.Context, payload *fulfillment.CanonicalOrderPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockFactory) PushOrder(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockFactory) QueryOrderDelivery(ctx context.Context, ids []string) ([]fulfillment.DeliveryRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fulfillment.DeliveryRecord), args.Error(1)
}

// fakeDesignSource serves fixed designs per session id
type fakeDesignSource struct {
	designs map[string]*fulfillment.DesignSet
	err     error
	calls   []string
}

func (f *fakeDesignSource) LookupDesign(_ context.Context, shop, sessionID string) (*fulfillment.DesignSet, error) {
	f.calls = append(f.calls, shop+":"+sessionID)
	if f.err != nil {
		return nil, f.err
	}
	return f.designs[sessionID], nil
}

var errBoom = errors.New("boom")

// printOrder builds a paid order whose single line carries a print URL property
func printOrder(id string, tags ...string) *fulfillment.Order {
	return &fulfillment.Order{
		ID:              id,
		Name:            "#" + id,
		FinancialStatus: "paid",
		Tags:            tags,
		Lines: []fulfillment.OrderLine{{
			ID:           "9" + id,
			ProductID:    "7001",
			VariantID:    "8001",
			Title:        "Custom Tee",
			VariantTitle: "Red / L",
			Quantity:     2,
			Properties:   []fulfillment.Property{{Name: "print_png_url", Value: "https://x/a.png"}},
		}},
	}
}
