package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/core/service"
	"github.com/rl1809/campus-market/pkg/metrics"
)

// HTTPHandler is the JSON surface over the checkout core. Authentication is
// an upstream concern; the gateway-supplied X-User-ID header is trusted as
// the caller's identity.
type HTTPHandler struct {
	listings *service.ListingService
	cart     *service.CartService
	checkout *service.CheckoutService
	status   *service.StatusService
	queries  *service.QueryService
	metrics  *metrics.ServerMetrics
}

func NewHTTPHandler(
	listings *service.ListingService,
	cart *service.CartService,
	checkout *service.CheckoutService,
	status *service.StatusService,
	queries *service.QueryService,
	m *metrics.ServerMetrics,
) *HTTPHandler {
	return &HTTPHandler{
		listings: listings,
		cart:     cart,
		checkout: checkout,
		status:   status,
		queries:  queries,
		metrics:  m,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/items/{itemID}", h.observe("listing_view", h.ViewListing))
	mux.HandleFunc("DELETE /api/items/{itemID}", h.observe("listing_remove", h.RemoveListing))
	mux.HandleFunc("GET /api/cart", h.observe("cart_view", h.ViewCart))
	mux.HandleFunc("POST /api/cart/items", h.observe("cart_add", h.AddToCart))
	mux.HandleFunc("DELETE /api/cart/items/{itemID}", h.observe("cart_remove", h.RemoveFromCart))
	mux.HandleFunc("POST /api/cart/items/{itemID}/adjust", h.observe("cart_adjust", h.AdjustCart))
	mux.HandleFunc("POST /api/checkout", h.observe("checkout", h.Checkout))
	mux.HandleFunc("POST /api/buy-now", h.observe("buy_now", h.BuyNow))
	mux.HandleFunc("POST /api/orders/{orderID}/status", h.observe("order_status", h.UpdateOrderStatus))
	mux.HandleFunc("POST /api/orders/{orderID}/payment", h.observe("order_payment", h.SubmitPayment))
	mux.HandleFunc("GET /api/orders", h.observe("orders", h.ListOrders))
	mux.HandleFunc("GET /api/sales", h.observe("sales", h.ListSales))
}

type cartItemRequest struct {
	ItemID string `json:"item_id"`
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

type checkoutRequest struct {
	RequestID string                 `json:"request_id"`
	Delivery  domain.DeliveryDetails `json:"delivery"`
}

type buyNowRequest struct {
	RequestID string                 `json:"request_id"`
	ItemID    string                 `json:"item_id"`
	Delivery  domain.DeliveryDetails `json:"delivery"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) ViewListing(w http.ResponseWriter, r *http.Request) {
	item, err := h.listings.Get(r.Context(), r.PathValue("itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "listing not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) RemoveListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.listings.Remove(r.Context(), userID, r.PathValue("itemID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "item_id is required"})
		return
	}

	line, err := h.cart.AddItem(r.Context(), userID, req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.cart.RemoveItem(r.Context(), userID, r.PathValue("itemID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *HTTPHandler) AdjustCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Delta != 1 && req.Delta != -1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "delta must be +1 or -1"})
		return
	}

	quantity, err := h.cart.AdjustQuantity(r.Context(), userID, r.PathValue("itemID"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quantity": quantity})
}

func (h *HTTPHandler) ViewCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	lines, err := h.cart.Lines(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"total": domain.CartTotal(lines).StringFixed(2),
	})
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	orderID, err := h.checkout.CheckoutCart(r.Context(), userID, req.RequestID, req.Delivery)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: orderID})
}

func (h *HTTPHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "item_id is required"})
		return
	}

	orderID, err := h.checkout.BuyNow(r.Context(), userID, req.RequestID, req.ItemID, req.Delivery)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: orderID})
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status is required"})
		return
	}

	err := h.status.UpdateStatus(r.Context(), r.PathValue("orderID"), userID, domain.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *HTTPHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var card domain.PaymentCard
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.status.SubmitPayment(r.Context(), r.PathValue("orderID"), userID, card); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusProcessing)})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	orders, err := h.queries.BuyerOrders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	sales, err := h.queries.SellerSales(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identity extracts the gateway-authenticated caller.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing identity"})
		return "", false
	}
	return userID, true
}

// writeError maps the domain taxonomy onto specific messages; only genuinely
// unexpected faults get the generic internal error.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrEmptySelection):
		status, message = http.StatusBadRequest, "your cart is empty"
	case errors.Is(err, domain.ErrItemUnavailable):
		status, message = http.StatusConflict, "that item is no longer available"
	case errors.Is(err, domain.ErrSelfPurchase):
		status, message = http.StatusForbidden, "you cannot buy your own listing"
	case errors.Is(err, domain.ErrItemNotInCart):
		status, message = http.StatusNotFound, "item not in cart"
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusForbidden, "not allowed"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, message = http.StatusConflict, "status change not allowed"
	case errors.Is(err, domain.ErrInvalidCard):
		status, message = http.StatusBadRequest, "card details are invalid"
	case errors.Is(err, domain.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrOrderNotFound):
		status, message = http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrStorageConflict):
		status, message = http.StatusServiceUnavailable, "please retry your checkout"
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// observe wraps a handler with the request counter and latency histogram.
func (h *HTTPHandler) observe(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)

		h.metrics.Requests.WithLabelValues(name, http.StatusText(recorder.status)).Inc()
		h.metrics.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
