package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	fulfillmentapp "github.com/orderbridge/backend/internal/application/fulfillment"
	"github.com/orderbridge/backend/internal/infrastructure/factory"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

func newTaskRouter(svc *MockSyncService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTaskHandler(svc)
	r := gin.New()
	r.POST("/api/tasks/poll", h.Poll)
	r.POST("/api/tasks/push", h.Push)
	return r
}

func TestTaskHandler_Poll(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("PollFulfillments", mock.Anything).
		Return(&fulfillmentapp.PollResult{OK: true, Checked: 3, Created: 2}, nil)

	w := httptest.NewRecorder()
	newTaskRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/poll", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"checked":3,"created":2}`, w.Body.String())
}

func TestTaskHandler_PollFailure(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("PollFulfillments", mock.Anything).
		Return(nil, &factory.TransportError{Detail: factory.Detail{Path: factory.PathQueryOrderDelivery, Status: 502}})

	w := httptest.NewRecorder()
	newTaskRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/poll", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeFactory, resp.Error.Code)
}

func TestTaskHandler_Push(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		expectedIDs []string
	}{
		{"sweep", "/api/tasks/push", "", nil},
		{"order gid in query", "/api/tasks/push?orderId=gid://shopify/Order/7", "", []string{"7"}},
		{"order name in body", "/api/tasks/push", `{"orderId":"#1001"}`, []string{"1001"}},
		{"duplicate ids", "/api/tasks/push?ids=7,gid://shopify/Order/7,8", "", []string{"7", "8"}},
		{"ids in query", "/api/tasks/push?ids=7,8", "", []string{"7", "8"}},
		{"ids in body", "/api/tasks/push", `{"ids":"9, 10"}`, []string{"9", "10"}},
		{"query wins over body", "/api/tasks/push?orderId=1", `{"orderId":"2"}`, []string{"1"}},
		{"non json body is ignored", "/api/tasks/push", `garbage`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSyncService)
			svc.On("PushOrders", mock.Anything, tt.expectedIDs).
				Return(&fulfillmentapp.PushResult{Pushed: len(tt.expectedIDs), IDs: tt.expectedIDs}, nil)

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			newTaskRouter(svc).ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var resp fulfillmentapp.PushResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, len(tt.expectedIDs), resp.Pushed)
			assert.NotNil(t, resp.IDs)
			svc.AssertExpectations(t)
		})
	}
}

func TestTaskHandler_PushRejectsInvalidIDs(t *testing.T) {
	svc := new(MockSyncService)

	w := httptest.NewRecorder()
	newTaskRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/push?ids=7,abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	svc.AssertNotCalled(t, "PushOrders", mock.Anything, mock.Anything)
}

func TestTaskHandler_PushFailure(t *testing.T) {
	svc := new(MockSyncService)
	svc.On("PushOrders", mock.Anything, []string(nil)).Return(nil, errors.New("search failed"))

	w := httptest.NewRecorder()
	newTaskRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/push", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
