package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/domain"
	"github.com/fjod/go_cart/cartstore/internal/store"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	registry *store.Registry
	timeout  time.Duration
}

func NewCartHandler(registry *store.Registry, timeout time.Duration) *CartHandler {
	return &CartHandler{
		registry: registry,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items domain.Cart `json:"items"`
	Total float64     `json:"total"`
	Count int         `json:"count"`
	Units int         `json:"units"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromContext(ctx, w)
	if !ok {
		return
	}

	items, err := h.registry.Cart(ctx, sessionID)
	if err != nil {
		handleLoadError(w, sessionID, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(items))
}

// Health reports liveness and how many session carts are held in memory.
func (h *CartHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.registry.Len(),
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart, ok := h.cartStore(ctx, w)
	if !ok {
		return
	}

	if err := cart.AddProduct(ctx, req.ProductID); err != nil {
		handleStoreError(w, err)
		return
	}

	respondCart(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, ok := h.cartStore(ctx, w)
	if !ok {
		return
	}

	if err := cart.SetQuantity(ctx, productID, req.Quantity); err != nil {
		handleStoreError(w, err)
		return
	}

	respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	cart, ok := h.cartStore(ctx, w)
	if !ok {
		return
	}

	if err := cart.RemoveProduct(ctx, productID); err != nil {
		handleStoreError(w, err)
		return
	}

	respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, ok := h.cartStore(ctx, w)
	if !ok {
		return
	}

	if err := cart.Clear(ctx); err != nil {
		handleStoreError(w, err)
		return
	}

	respondCart(w, http.StatusOK, cart)
}

func (h *CartHandler) cartStore(ctx context.Context, w http.ResponseWriter) (*store.CartStore, bool) {
	sessionID, ok := sessionFromContext(ctx, w)
	if !ok {
		return nil, false
	}

	cart, err := h.registry.Get(ctx, sessionID)
	if err != nil {
		handleLoadError(w, sessionID, err)
		return nil, false
	}
	return cart, true
}

func sessionFromContext(ctx context.Context, w http.ResponseWriter) (string, bool) {
	sessionID := getSessionID(ctx)
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "missing_session", "missing shopper session")
		return "", false
	}
	return sessionID, true
}

func handleLoadError(w http.ResponseWriter, sessionID string, err error) {
	log.Printf("failed to load cart for session %s: %v", sessionID, err)
	if errors.Is(err, store.ErrLoad) {
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "cart storage is unavailable, try again")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func respondCart(w http.ResponseWriter, status int, cart *store.CartStore) {
	respondJSON(w, status, cartResponse(cart.Cart()))
}

func cartResponse(items domain.Cart) CartResponseDTO {
	return CartResponseDTO{
		Items: items,
		Total: items.Total(),
		Count: items.Count(),
		Units: items.Units(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleStoreError converts cart failures to HTTP responses. The error text is
// the notification the shopper was given.
func handleStoreError(w http.ResponseWriter, err error) {
	var opErr *store.OpError
	if !errors.As(err, &opErr) {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, store.ErrStockExhausted):
		httpStatus = http.StatusConflict
		code = "out_of_stock"
	case errors.Is(err, store.ErrEntryNotFound):
		httpStatus = http.StatusNotFound
		code = "not_in_cart"
	case errors.Is(err, store.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, store.ErrUpstream):
		httpStatus = http.StatusBadGateway
		code = "upstream_error"
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
	}

	respondJSON(w, httpStatus, ErrorResponse{
		Error:   opErr.Message,
		Code:    code,
		Details: opErr.Op,
	})
}
