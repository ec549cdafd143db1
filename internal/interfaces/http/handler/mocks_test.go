package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/domain/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/imageproxy"
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncOrder(ctx context.Context, rawID string) (*fulfillmentapp.PlaceResult, error) {
	args := m.Called(ctx, rawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.PlaceResult), args.Error(1)
}

func (m *MockSyncService) PushOrders(ctx context.Context, ids []string) (*fulfillmentapp.PushResult, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.PushResult), args.Error(1)
}

func (m *MockSyncService) PollFulfillments(ctx context.Context) (*fulfillmentapp.PollResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.PollResult), args.Error(1)
}

func (m *MockSyncService) GetOrder(ctx context.Context, rawID string) (*fulfillment.Order, error) {
	args := m.Called(ctx, rawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.Order), args.Error(1)
}

func (m *MockSyncService) Inspect(ctx context.Context, rawID string) (*fulfillmentapp.InspectResult, error) {
	args := m.Called(ctx, rawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.InspectResult), args.Error(1)
}

func (m *MockSyncService) PlaceOnly(ctx context.Context, rawID string) (*fulfillment.CanonicalOrderPayload, error) {
	args := m.Called(ctx, rawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.CanonicalOrderPayload), args.Error(1)
}

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) RegisterWebhook(ctx context.Context, topic, address string) error {
	return m.Called(ctx, topic, address).Error(0)
}

type MockImageFetcher struct {
	mock.Mock
}

func (m *MockImageFetcher) Fetch(ctx context.Context, src string, dpi float64) (*imageproxy.Image, error) {
	args := m.Called(ctx, src, dpi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*imageproxy.Image), args.Error(1)
}
