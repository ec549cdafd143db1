package factory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

type capturedRequest struct {
	Path        string
	Body        string
	SecretKey   string
	Sign        string
	ContentType string
}

type fakeFactory struct {
	mu       sync.Mutex
	requests []capturedRequest
	handler  func(w http.ResponseWriter, path string, body []byte)
}

func (f *fakeFactory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Path:        r.URL.Path,
		Body:        string(body),
		SecretKey:   r.Header.Get("secretKey"),
		Sign:        r.Header.Get("sign"),
		ContentType: r.Header.Get("Content-Type"),
	})
	f.mu.Unlock()
	if f.handler != nil {
		f.handler(w, r.URL.Path, body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"successful":true,"data":null}`))
}

func (f *fakeFactory) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, fake *fakeFactory, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := NewConfig(srv.URL, "s3cret")
	cfg.Cooldown = 0
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

func respond(status int, body string) func(http.ResponseWriter, string, []byte) {
	return func(w http.ResponseWriter, _ string, _ []byte) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewClient_ConfigurationError(t *testing.T) {
	fake := &fakeFactory{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := NewClient(NewConfig(srv.URL, ""))
	assert.ErrorIs(t, err, fulfillment.ErrConfiguration)

	_, err = NewClient(NewConfig("", "s3cret"))
	assert.ErrorIs(t, err, fulfillment.ErrConfiguration)

	_, err = NewClient(nil)
	assert.ErrorIs(t, err, fulfillment.ErrConfiguration)

	assert.Equal(t, 0, fake.count())
}

// ---------------------------------------------------------------------------
// Signing
// ---------------------------------------------------------------------------

func TestClient_SignsRequests(t *testing.T) {
	fake := &fakeFactory{}
	c := newTestClient(t, fake)

	require.NoError(t, c.PushOrder(context.Background(), []string{"1001"}))

	req := fake.last()
	assert.Equal(t, PathPushOrder, req.Path)
	assert.Equal(t, `{"platformOidList":["1001"]}`, req.Body)
	assert.Equal(t, "s3cret", req.SecretKey)
	assert.Equal(t, "d04aa2f94e004049d1ee580ff5bc4ae7", req.Sign)
	assert.Equal(t, "application/json;charset=utf-8", req.ContentType)
}

func TestClient_NilPayloadSentAsEmptyObject(t *testing.T) {
	fake := &fakeFactory{}
	c := newTestClient(t, fake)

	_, err := c.QueryShipAddress(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "{}", fake.last().Body)
	assert.Equal(t, "35cbdadcd1c021a835070315594979e1", fake.last().Sign)
}

func TestClient_BodyKeepsURLsUnescaped(t *testing.T) {
	fake := &fakeFactory{}
	c := newTestClient(t, fake)

	payload := &fulfillment.CanonicalOrderPayload{
		PlatformOid: "1",
		GoodsList: []fulfillment.CanonicalGoodsLine{{
			ImageList: fulfillment.ImageList{{Type: fulfillment.ImageTypePrint, URL: "https://p/img?src=a&dpi=300"}},
		}},
	}
	require.NoError(t, c.PlaceOrder(context.Background(), payload))

	assert.Contains(t, fake.last().Body, "src=a&dpi=300")
	assert.Equal(t, c.config.Sign([]byte(fake.last().Body)), fake.last().Sign)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestClient_TransportError(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusBadGateway, `{"message":"upstream down","traceId":"t-1"}`)}
	c := newTestClient(t, fake)

	err := c.PushOrder(context.Background(), []string{"1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Equal(t, PathPushOrder, te.Path)
	assert.Equal(t, "upstream down", te.Message)
	assert.Equal(t, "t-1", te.TraceID)
	assert.Contains(t, err.Error(), `RIIN 502 /trade/api/interface/pushOrder: message="upstream down" traceId=t-1 |`)
}

func TestClient_TransportErrorNonJSONBody(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusInternalServerError, "boom")}
	c := newTestClient(t, fake)

	_, err := c.QueryOrderInfo(context.Background(), []string{"1"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "boom", te.Body)
	assert.Equal(t, "RIIN 500 /trade/api/interface/queryOrderInfo: boom", err.Error())
}

func TestClient_BusinessError(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":false,"msg":"style not found"}`)}
	c := newTestClient(t, fake)

	err := c.PushOrder(context.Background(), []string{"1"})

	assert.ErrorIs(t, err, ErrBusiness)
	assert.NotErrorIs(t, err, ErrTransport)
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "style not found", be.Message)
	assert.False(t, be.IsAlreadyExists())
}

func TestClient_MissingSuccessFlagIsSuccess(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusOK, `{"data":[1,2]}`)}
	c := newTestClient(t, fake)

	data, err := c.QueryProduct(context.Background(), nil)

	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(data))
	assert.JSONEq(t, `{"pageIndex":1,"pageSize":1000}`, fake.last().Body)
}

func TestClient_PlaceOrderAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"english", `{"successful":false,"message":"order already exist"}`},
		{"upper case", `{"successful":false,"message":"ORDER EXISTS"}`},
		{"chinese", `{"successful":false,"msg":"订单已存在"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeFactory{handler: respond(http.StatusOK, tt.body)}
			c := newTestClient(t, fake)

			err := c.PlaceOrder(context.Background(), &fulfillment.CanonicalOrderPayload{PlatformOid: "2002"})
			assert.NoError(t, err)
		})
	}
}

func TestClient_AlreadyExistsOnlyTolerated(t *testing.T) {
	t.Run("only on placement", func(t *testing.T) {
		fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":false,"message":"order already exist"}`)}
		c := newTestClient(t, fake)

		err := c.PushOrder(context.Background(), []string{"2002"})
		assert.ErrorIs(t, err, ErrBusiness)
	})

	t.Run("not for missing resources", func(t *testing.T) {
		for _, body := range []string{
			`{"successful":false,"message":"style does not exist"}`,
			`{"successful":false,"message":"SKU NOT EXISTS"}`,
			`{"successful":false,"msg":"款式不存在"}`,
		} {
			fake := &fakeFactory{handler: respond(http.StatusOK, body)}
			c := newTestClient(t, fake)

			err := c.PlaceOrder(context.Background(), &fulfillment.CanonicalOrderPayload{PlatformOid: "2002"})
			assert.ErrorIs(t, err, ErrBusiness, body)
		}
	})

	t.Run("not from the raw body", func(t *testing.T) {
		fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":false,"data":{"note":"exists"}}`)}
		c := newTestClient(t, fake)

		err := c.PlaceOrder(context.Background(), &fulfillment.CanonicalOrderPayload{PlatformOid: "2002"})
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Empty(t, be.Message)
		assert.False(t, be.IsAlreadyExists())
	})

	t.Run("only for business failures", func(t *testing.T) {
		fake := &fakeFactory{handler: respond(http.StatusConflict, `{"message":"order already exist"}`)}
		c := newTestClient(t, fake)

		err := c.PlaceOrder(context.Background(), &fulfillment.CanonicalOrderPayload{PlatformOid: "2002"})
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	cfg := NewConfig(srv.URL, "s3cret")
	c, err := NewClient(cfg)
	require.NoError(t, err)

	err = c.PushOrder(context.Background(), []string{"1"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Status)
	assert.NotNil(t, te.Unwrap())
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func TestClient_QueryOrderDelivery(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":true,"data":[
		{"platformOid":3003,"trackingNumber":"YT123","waybillDataPath":"https://track/YT123","courierCompany":"YTO"},
		{"platformOid":"3004","trackingNumber":""}
	]}`)}
	c := newTestClient(t, fake)

	rows, err := c.QueryOrderDelivery(context.Background(), []string{"3003", "3004"})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fulfillment.DeliveryRecord{
		PlatformOid:    "3003",
		TrackingNumber: "YT123",
		WaybillURL:     "https://track/YT123",
		CourierCompany: "YTO",
	}, rows[0])
	assert.Equal(t, "3004", rows[1].PlatformOid)
}

func TestClient_QueryOrderStatus(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":true,"data":[
		{"platformOid":"1","factoryOrderStatusCode":10,"factoryOrderStatusDesc":"待推送"},
		{"platformOid":"2","status":"生产中"}
	]}`)}
	c := newTestClient(t, fake)

	rows, err := c.QueryOrderStatus(context.Background(), []string{"1", "2"})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, OrderStatus{PlatformOid: "1", StatusRow: StatusRow{Code: 10, Text: "待推送"}}, rows[0])
	assert.Equal(t, OrderStatus{PlatformOid: "2", StatusRow: StatusRow{Code: 0, Text: "生产中"}}, rows[1])
}

func TestClient_CloseOrder(t *testing.T) {
	fake := &fakeFactory{}
	c := newTestClient(t, fake)

	require.NoError(t, c.CloseOrder(context.Background(), "1"))
	assert.JSONEq(t, `{"platformOid":"1"}`, fake.last().Body)

	require.NoError(t, c.CloseOrder(context.Background(), "1", "2"))
	assert.JSONEq(t, `{"platformOidList":["1","2"]}`, fake.last().Body)
}

func TestClient_RequestShapes(t *testing.T) {
	fake := &fakeFactory{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		path string
		body string
	}{
		{"sync images", func() error { return c.SyncImageToFactory(ctx, []string{"a"}) }, PathSyncImageToFactory, `{"ids":["a"]}`},
		{"after sales info", func() error { _, err := c.QueryAfterSalesInfo(ctx, "9"); return err }, PathQueryAfterSalesInfo, `{"platformOid":"9"}`},
		{"product ship address", func() error { _, err := c.QueryProductShipAddress(ctx, []string{"P1"}); return err }, PathQueryProductShipAddress, `{"productCodeList":["P1"]}`},
		{"size page", func() error { _, err := c.QuerySize(ctx, &Page{PageIndex: 2, PageSize: 50}); return err }, PathQuerySize, `{"pageIndex":2,"pageSize":50}`},
		{"update print image", func() error {
			return c.UpdatePrintImage(ctx, &UpdatePrintImageRequest{PlatformOid: "1", GoodsList: []PrintImageLine{{PlatformOllID: "11"}}})
		}, PathUpdatePrintImage, `{"platformOid":"1","goodsList":[{"platformOllId":"11","imageList":null}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())
			assert.Equal(t, tt.path, fake.last().Path)
			assert.JSONEq(t, tt.body, fake.last().Body)
		})
	}
}

type recordedCall struct {
	path    string
	outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveFactoryCall(path, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{path, outcome})
}

func TestClient_RecordsOutcomes(t *testing.T) {
	fake := &fakeFactory{handler: respond(http.StatusOK, `{"successful":false,"message":"already exists"}`)}
	rec := &fakeRecorder{}
	c := newTestClient(t, fake, WithRecorder(rec))

	require.NoError(t, c.PlaceOrder(context.Background(), &fulfillment.CanonicalOrderPayload{PlatformOid: "1"}))

	assert.Equal(t, []recordedCall{
		{PathPlaceOrder, OutcomeBusinessError},
		{PathPlaceOrder, OutcomeAlreadyExists},
	}, rec.calls)
}

func TestClient_SharedThrottleBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	fake := &fakeFactory{handler: func(w http.ResponseWriter, _ string, _ []byte) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(15 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"successful": true})
	}}
	c := newTestClient(t, fake, WithThrottle(NewThrottle(3, time.Millisecond)))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.PushOrder(context.Background(), []string{"1"}))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 3)
	assert.Equal(t, 12, fake.count())
}

func TestParseStatusRow(t *testing.T) {
	tests := []struct {
		name     string
		row      map[string]any
		expected StatusRow
	}{
		{"preferred keys", map[string]any{"factoryOrderStatusCode": float64(1), "factoryOrderStatusDesc": "待推送"}, StatusRow{1, "待推送"}},
		{"numeric string code", map[string]any{"statusCode": "10", "desc": "x"}, StatusRow{10, "x"}},
		{"text status as code", map[string]any{"status": "反审"}, StatusRow{0, "反审"}},
		{"empty", map[string]any{}, StatusRow{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseStatusRow(tt.row))
		})
	}
}

func TestIsModifiableStatus(t *testing.T) {
	assert.True(t, IsModifiableStatus(StatusRow{Text: "待推送"}))
	assert.True(t, IsModifiableStatus(StatusRow{Text: "反审回电商"}))
	assert.True(t, IsModifiableStatus(StatusRow{Code: 1}))
	assert.True(t, IsModifiableStatus(StatusRow{Code: 10}))
	assert.False(t, IsModifiableStatus(StatusRow{Code: 3, Text: "生产中"}))
}
