package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/catalog"
	"github.com/fjod/go_cart/cartstore/internal/domain"
	"github.com/fjod/go_cart/cartstore/internal/notify"
	"github.com/fjod/go_cart/cartstore/internal/storage"
	"github.com/fjod/go_cart/cartstore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler  http.Handler
	catalog  *catalog.MemoryCatalog
	registry *store.Registry
	recorder *notify.Recorder
}

// flakyStorage fails the next `failures` reads.
type flakyStorage struct {
	storage.Storage
	failures int32
}

func (f *flakyStorage) Get(ctx context.Context, key string) (string, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return "", errors.New("i/o timeout")
	}
	return f.Storage.Get(ctx, key)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStorage(t, storage.NewMemoryStorage(), 0)
}

func newTestServerWithStorage(t *testing.T, st storage.Storage, maxSessions int) *testServer {
	t.Helper()
	cat := catalog.NewMemoryCatalog()
	cat.SetProduct(domain.Product{ID: 1, Title: "Laptop", Price: 999.99, Image: "laptop.png"}, 3)
	cat.SetProduct(domain.Product{ID: 2, Title: "Mouse", Price: 29.99, Image: "mouse.png"}, 0)

	rec := &notify.Recorder{}
	registry, err := store.NewRegistry(store.Config{
		Catalog:  cat,
		Stock:    cat,
		Storage:  st,
		Notifier: rec,
	}, maxSessions)
	require.NoError(t, err)

	return &testServer{
		handler:  NewRouter(NewCartHandler(registry, 5*time.Second), 5*time.Second),
		catalog:  cat,
		registry: registry,
		recorder: rec,
	}
}

func (s *testServer) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeCart(t *testing.T, recorder *httptest.ResponseRecorder) CartResponseDTO {
	t.Helper()
	var resp CartResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1}).Code)

	recorder := s.do(t, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions)
}

func TestGetCart_Empty(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodGet, "/api/v1/cart", "s1", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "s1", recorder.Header().Get(SessionHeader))
	resp := decodeCart(t, recorder)
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Count)
}

func TestGetCart_IssuesSessionWhenMissing(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, recorder.Header().Get(SessionHeader), 36)
}

func TestGetCart_ReplacesMalformedSession(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodGet, "/api/v1/cart", "bad session!", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEqual(t, "bad session!", recorder.Header().Get(SessionHeader))
}

func TestAddItem_Success(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})

	require.Equal(t, http.StatusCreated, recorder.Code)
	resp := decodeCart(t, recorder)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(1), resp.Items[0].ProductID)
	assert.Equal(t, 1, resp.Items[0].Quantity)
	assert.Equal(t, "Laptop", resp.Items[0].Name)
	assert.InDelta(t, 999.99, resp.Total, 0.0001)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1, resp.Units)
}

func TestAddItem_OutOfStock(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 2})

	require.Equal(t, http.StatusConflict, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "out_of_stock", resp.Code)
	assert.Equal(t, store.MsgOutOfStock, resp.Error)
	assert.Len(t, s.recorder.All(), 1)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 99})

	require.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Equal(t, store.MsgAddFailed, decodeError(t, recorder).Error)
}

func TestAddItem_InvalidRequest(t *testing.T) {
	s := newTestServer(t)

	recorder := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 0})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_product_id", decodeError(t, recorder).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	recorder = httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, s.recorder.All())
}

func TestUpdateQuantity(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1}).Code)

	recorder := s.do(t, http.MethodPut, "/api/v1/cart/items/1", "s1", UpdateQuantityRequestDTO{Quantity: 3})
	require.Equal(t, http.StatusOK, recorder.Code)
	resp := decodeCart(t, recorder)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 3, resp.Units)

	recorder = s.do(t, http.MethodPut, "/api/v1/cart/items/1", "s1", UpdateQuantityRequestDTO{Quantity: 4})
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = s.do(t, http.MethodPut, "/api/v1/cart/items/1", "s1", UpdateQuantityRequestDTO{Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_quantity", decodeError(t, recorder).Code)

	recorder = s.do(t, http.MethodPut, "/api/v1/cart/items/abc", "s1", UpdateQuantityRequestDTO{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRemoveItem(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1}).Code)

	recorder := s.do(t, http.MethodDelete, "/api/v1/cart/items/1", "s1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeCart(t, recorder).Items)

	recorder = s.do(t, http.MethodDelete, "/api/v1/cart/items/1", "s1", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "not_in_cart", resp.Code)
	assert.Equal(t, store.MsgRemoveFailed, resp.Error)
}

func TestClearCart(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1}).Code)

	recorder := s.do(t, http.MethodDelete, "/api/v1/cart", "s1", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeCart(t, recorder).Items)
}

func TestSessionsDoNotShareCarts(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "alice", AddItemRequestDTO{ProductID: 1}).Code)

	recorder := s.do(t, http.MethodGet, "/api/v1/cart", "bob", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodeCart(t, recorder).Items)
}

func TestGetCart_WithoutSessionMiddleware(t *testing.T) {
	registry, err := store.NewRegistry(store.Config{}, 0)
	require.NoError(t, err)
	handler := NewCartHandler(registry, time.Second)

	recorder := httptest.NewRecorder()
	handler.GetCart(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGetCart_RegistryFailure(t *testing.T) {
	registry, err := store.NewRegistry(store.Config{}, 0)
	require.NoError(t, err)
	handler := NewCartHandler(registry, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithSessionID(req.Context(), "s1"))
	recorder := httptest.NewRecorder()
	handler.GetCart(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestGetCart_DoesNotHoldSessions(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 200; i++ {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/cart", "", nil).Code)
	}

	assert.Zero(t, s.registry.Len())
}

func TestAddItem_SessionsAreBounded(t *testing.T) {
	s := newTestServerWithStorage(t, storage.NewMemoryStorage(), 5)
	s.catalog.SetStock(1, 1000)

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/cart/items", "", AddItemRequestDTO{ProductID: 1}).Code)
	}

	assert.LessOrEqual(t, s.registry.Len(), 5)
}

func TestAddItem_StorageReadFailure(t *testing.T) {
	mem := storage.NewMemoryStorage()
	require.NoError(t, mem.Set(context.Background(), "cart:s1:"+storage.CartKey, `[{"id":1,"title":"Laptop","price":999.99,"amount":2}]`))
	s := newTestServerWithStorage(t, &flakyStorage{Storage: mem, failures: 1}, 0)

	recorder := s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "storage_unavailable", decodeError(t, recorder).Code)

	recorder = s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, recorder.Code)
	resp := decodeCart(t, recorder)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)
}
