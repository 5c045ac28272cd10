package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/pkg/domain/service"
	"canteen/pkg/infrastructure/ids"
	"canteen/pkg/infrastructure/repository"
	"canteen/pkg/menu"
	"canteen/pkg/session"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(service.Event) error { return nil }

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC) }

func setupRouter(t *testing.T, opts Options) http.Handler {
	h, _ := setupRouterWithSessions(t, opts)
	return h
}

func setupRouterWithSessions(t *testing.T, opts Options) (http.Handler, *session.Registry) {
	m, err := menu.Default()
	require.NoError(t, err)

	receipts := repository.NewMemoryReceiptRepository()
	sessions := session.NewRegistry(session.Factory{
		Receipts:   receipts,
		IDs:        ids.NewGenerator(123455),
		Clock:      fixedClock{},
		Dispatcher: nopDispatcher{},
		Policy:     service.DefaultWalletPolicy(),
	})
	return Router(m, sessions, receipts, opts), sessions
}

func do(t *testing.T, h http.Handler, method, path, sessionID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestMenuEndpoints(t *testing.T) {
	h := setupRouter(t, Options{})

	rec, _ := do(t, h, http.MethodGet, "/api/v1/menu", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/api/v1/menu/tuesday", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tuesday", body["day"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/menu/sunday", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItem(t *testing.T) {
	h := setupRouter(t, Options{})

	rec, body := do(t, h, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "5.00", body["total"])
	assert.Equal(t, map[string]any{"1": true}, body["addedItems"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"id": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)

	rec, body = do(t, h, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"id": 100, "name": "Donut", "price": "$2.50"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "7.50", body["total"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"id": 101, "name": "Bad", "price": "$x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/cart/items", "s1", map[string]any{"id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/v1/cart", "s2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["items"])
}

func TestQuantityEndpoints(t *testing.T) {
	h := setupRouter(t, Options{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", "q", map[string]any{"id": 1})
	do(t, h, http.MethodPost, "/api/v1/cart/items", "q", map[string]any{"id": 2})

	rec, body := do(t, h, http.MethodPost, "/api/v1/cart/items/1/increment", "q", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["itemCount"])
	assert.Equal(t, "11.50", body["total"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/cart/items/2/decrement", "q", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)
	assert.Equal(t, "10.00", body["total"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/cart/items/2/decrement", "q", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, http.MethodDelete, "/api/v1/cart", "q", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.00", body["total"])
}

func TestCheckoutFlow(t *testing.T) {
	h := setupRouter(t, Options{})
	for _, id := range []int{7, 13, 19, 25} {
		do(t, h, http.MethodPost, "/api/v1/cart/items", "c", map[string]any{"id": id})
	}
	for i := 0; i < 3; i++ {
		do(t, h, http.MethodPost, "/api/v1/cart/items/13/increment", "c", nil)
	}

	rec, body := do(t, h, http.MethodPost, "/api/v1/checkout", "c", map[string]any{"comment": "no onions"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.00", body["total"])
	assert.Equal(t, "50.00", body["walletBalance"])
	assert.Equal(t, "123456", body["orderNumber"])
	assert.Equal(t, "2024-03-04T09:30:00Z", body["orderDate"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/cart/items/13/increment", "c", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, body = do(t, h, http.MethodGet, "/api/v1/checkout/payment", "c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.00", body["total"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/checkout/payment/topup", "c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60.00", body["walletBalance"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/checkout/payment/pay", "c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", body["orderNumber"])
	assert.Equal(t, "no onions", body["comment"])
	assert.NotContains(t, body, "walletBalance")

	rec, body = do(t, h, http.MethodGet, "/api/v1/cart", "c", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["items"])
	assert.Equal(t, "completed", body["stage"])

	rec, _ = do(t, h, http.MethodGet, "/api/v1/checkout/completed", "c", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/api/v1/orders/123456", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.00", body["total"])

	rec, body = do(t, h, http.MethodPost, "/api/v1/checkout/back", "c", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Canteen", body["next"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/checkout/back", "c", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPay_InsufficientBalance(t *testing.T) {
	h := setupRouter(t, Options{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", "p", map[string]any{"id": 13})
	for i := 0; i < 7; i++ {
		do(t, h, http.MethodPost, "/api/v1/cart/items/13/increment", "p", nil)
	}
	_, body := do(t, h, http.MethodPost, "/api/v1/checkout", "p", nil)
	require.Equal(t, "56.00", body["total"])

	rec, body := do(t, h, http.MethodPost, "/api/v1/checkout/payment/pay", "p", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient balance", body["error"])

	rec, body = do(t, h, http.MethodGet, "/api/v1/cart", "p", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "awaiting_payment", body["stage"])
	assert.Len(t, body["items"], 1)
}

func TestCheckoutRequiresReviewStage(t *testing.T) {
	h := setupRouter(t, Options{})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/checkout/payment/pay", "x", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/checkout", "x", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	h := setupRouter(t, Options{Limiter: NewRateLimiter(0.0001, 2)})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/v1/cart", "r", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := do(t, h, http.MethodGet, "/api/v1/cart", "r", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiter_SessionHeaderDoesNotBypassLimit(t *testing.T) {
	limiter := NewRateLimiter(0.0001, 1)
	h, sessions := setupRouterWithSessions(t, Options{Limiter: limiter})

	ok := 0
	for i := 0; i < 50; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/v1/cart", fmt.Sprintf("rotating-%d", i), nil)
		if rec.Code == http.StatusOK {
			ok++
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, sessions.Len())
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimiter_Sweep(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("192.0.2.1"))
	now = now.Add(10 * time.Minute)
	assert.True(t, limiter.allow("192.0.2.2"))

	assert.Equal(t, 1, limiter.Sweep(5*time.Minute))
	assert.Equal(t, 1, limiter.Len())
}

func TestCancelCheckout(t *testing.T) {
	h := setupRouter(t, Options{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", "k", map[string]any{"id": 1})
	rec, _ := do(t, h, http.MethodPost, "/api/v1/checkout", "k", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/api/v1/cart/items", "k", map[string]any{"id": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cart cannot change while payment is pending", body["error"])

	rec, body = do(t, h, http.MethodDelete, "/api/v1/checkout", "k", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reviewing", body["stage"])
	assert.Len(t, body["items"], 1)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/cart/items", "k", map[string]any{"id": 2})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/checkout", "k", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddItem_RejectsNegativePrice(t *testing.T) {
	h := setupRouter(t, Options{})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/cart/items", "n", map[string]any{"id": 500, "name": "Refund", "price": "$-5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	_, body := do(t, h, http.MethodGet, "/api/v1/cart", "n", nil)
	assert.Empty(t, body["items"])
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := setupRouter(t, Options{Metrics: metrics})

	rec, _ := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
