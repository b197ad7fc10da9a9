package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/service"
)

// OrderHandler serves the order lifecycle endpoints
type OrderHandler struct {
	orders service.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	BoxID        int64            `json:"boxId"`
	Items        []orderItemInput `json:"items"`
	Method       string           `json:"paymentMethod"`
	CouponCode   string           `json:"couponCode,omitempty"`
	LoyaltyCents int64            `json:"loyaltyCents,omitempty"`
	TipCents     int64            `json:"tipCents,omitempty"`
	PaymentToken string           `json:"paymentToken,omitempty"`
}

type orderItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type listResponse struct {
	Items      any   `json:"items"`
	TotalCount int32 `json:"totalCount"`
	Page       int32 `json:"page"`
	PageSize   int32 `json:"pageSize"`
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
		return
	}

	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.CreateOrder(r.Context(), actorFrom(r.Context()), service.CreateOrderInput{
		BoxID:        req.BoxID,
		Items:        items,
		Method:       domain.PaymentMethod(req.Method),
		CouponCode:   req.CouponCode,
		LoyaltyCents: req.LoyaltyCents,
		TipCents:     req.TipCents,
		PaymentToken: req.PaymentToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	order, err := h.orders.GetOrder(r.Context(), actorFrom(r.Context()), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	orders, total, err := h.orders.ListOrders(r.Context(), actorFrom(r.Context()), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: orders, TotalCount: total, Page: page, PageSize: pageSize})
}

// UpdateStatus handles POST /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
		return
	}

	orderID := mux.Vars(r)["id"]
	if err := h.orders.UpdateOrderStatus(r.Context(), actorFrom(r.Context()), orderID, req.Status, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// Cancel handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
			return
		}
	}

	orderID := mux.Vars(r)["id"]
	if err := h.orders.CancelOrder(r.Context(), actorFrom(r.Context()), orderID, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusCancelled)})
}

func paginationParams(r *http.Request) (page, pageSize int32) {
	page, pageSize = 1, 20
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 32); err == nil && v > 0 {
		page = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 32); err == nil && v > 0 && v <= 100 {
		pageSize = int32(v)
	}
	return page, pageSize
}
