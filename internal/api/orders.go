package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appsuite/internal/apperr"
	"appsuite/internal/auth"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

type orderStore interface {
	List(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, o *models.Order) error
	UpdateStatus(ctx context.Context, id, from, to string) (*models.Order, error)
	Delete(ctx context.Context, id string) error
}

type paymentStore interface {
	Get(ctx context.Context, id string) (*models.PaymentIntent, error)
	CreateIntent(ctx context.Context, in store.NewIntent) (*models.PaymentIntent, bool, error)
	Confirm(ctx context.Context, id, userID string) (*models.PaymentIntent, error)
}

type OrderHandler struct {
	orders   orderStore
	payments paymentStore
}

func NewOrderHandler(orders orderStore, payments paymentStore) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

func (h *OrderHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/orders", h.List)
		r.Post("/api/orders", h.Create)
		r.Get("/api/orders/{id}", h.Get)
		r.Patch("/api/orders/{id}", h.UpdateStatus)
		r.Delete("/api/orders/{id}", h.Delete)

		r.Post("/api/v1/payments/intent", h.CreateIntent)
		r.Get("/api/v1/payments/{id}", h.GetIntent)
		r.Post("/api/v1/payments/{id}/confirm", h.ConfirmIntent)
	})
}

// actor classifies the caller relative to o. Admins win over ownership.
func actor(p auth.Principal, o *models.Order) models.OrderActor {
	switch {
	case p.IsAdmin():
		return models.ActorAdmin
	case p.UserID == o.BuyerID:
		return models.ActorBuyer
	case p.UserID == o.SellerID:
		return models.ActorSeller
	}
	return models.ActorNone
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.OrderFilter{UserID: principal(r).UserID, Page: page}

	switch q.Get("as") {
	case "", "buyer":
	case "seller":
		f.AsSeller = true
	default:
		apperr.Respond(w, r, apperr.BadRequest("as must be buyer or seller"))
		return
	}
	if s := q.Get("status"); s != "" {
		if !models.IsOrderStatus(s) {
			apperr.Respond(w, r, apperr.BadRequest("unknown order status"))
			return
		}
		f.Status = s
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrderHandler) load(r *http.Request) (*models.Order, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "order")
	}
	if actor(principal(r), o) == models.ActorNone {
		return nil, apperr.Forbidden("not allowed to access this order")
	}
	return o, nil
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type createOrderRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=10000"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	o := &models.Order{
		ID:        uuid.NewString(),
		BuyerID:   principal(r).UserID,
		ProductID: strings.ToLower(req.ProductID),
		Quantity:  req.Quantity,
	}
	err := h.orders.Create(r.Context(), o)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		apperr.Respond(w, r, apperr.NotFound("product"))
		return
	case errors.Is(err, store.ErrOwnProduct):
		apperr.Respond(w, r, apperr.BadRequest("cannot order your own product"))
		return
	case errors.Is(err, store.ErrInsufficientStock):
		apperr.Respond(w, r, apperr.Conflict("insufficient stock"))
		return
	case errors.Is(err, store.ErrAmountTooLarge):
		apperr.Respond(w, r, apperr.BadRequest("order amount exceeds the maximum"))
		return
	default:
		apperr.Respond(w, r, storeError(err, "order"))
		return
	}

	slog.Info("Order created", "order_id", o.ID, "user_id", o.BuyerID, "product_id", o.ProductID)
	writeJSON(w, http.StatusCreated, o)
}

type updateOrderRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped delivered cancelled"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	o, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	if !models.ValidOrderTransition(o.Status, req.Status) {
		apperr.Respond(w, r, apperr.Conflict("cannot move order from "+o.Status+" to "+req.Status))
		return
	}
	if !models.CanTransitionOrder(actor(principal(r), o), o.Status, req.Status) {
		apperr.Respond(w, r, apperr.Forbidden("not allowed to move order to "+req.Status))
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), o.ID, o.Status, req.Status)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "order"))
		return
	}
	slog.Info("Order status changed", "order_id", o.ID, "from", o.Status, "to", updated.Status)
	writeJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	o, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if o.BuyerID != principal(r).UserID {
		apperr.Respond(w, r, apperr.Forbidden("only the buyer may delete this order"))
		return
	}
	if o.Status != models.OrderPending {
		apperr.Respond(w, r, apperr.Conflict("only pending orders can be deleted"))
		return
	}
	if err := h.orders.Delete(r.Context(), o.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "order"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createIntentRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (h *OrderHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 255 {
		apperr.Respond(w, r, apperr.BadRequest("Idempotency-Key must be at most 255 characters"))
		return
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	pi, created, err := h.payments.CreateIntent(r.Context(), store.NewIntent{
		OrderID:        strings.ToLower(req.OrderID),
		UserID:         principal(r).UserID,
		Currency:       currency,
		IdempotencyKey: key,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		apperr.Respond(w, r, apperr.NotFound("order"))
		return
	case errors.Is(err, store.ErrNotOwner):
		apperr.Respond(w, r, apperr.Forbidden("only the buyer may pay for this order"))
		return
	case errors.Is(err, store.ErrStateChanged):
		apperr.Respond(w, r, apperr.Conflict("order is not pending"))
		return
	case errors.Is(err, store.ErrIdempotencyReuse):
		apperr.Respond(w, r, apperr.Conflict("Idempotency-Key was already used for a different order"))
		return
	default:
		apperr.Respond(w, r, storeError(err, "payment intent"))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.Info("Payment intent created", "intent_id", pi.ID, "order_id", pi.OrderID)
	}
	writeJSON(w, status, pi)
}

func (h *OrderHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	pi, err := h.payments.Get(r.Context(), id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "payment intent"))
		return
	}
	if !principal(r).Owns(pi.UserID) {
		apperr.Respond(w, r, apperr.Forbidden("not allowed to access this payment intent"))
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

func (h *OrderHandler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	pi, err := h.payments.Confirm(r.Context(), id, principal(r).UserID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotOwner):
		apperr.Respond(w, r, apperr.Forbidden("only the buyer may confirm this payment"))
		return
	case errors.Is(err, store.ErrStateChanged):
		apperr.Respond(w, r, apperr.Conflict("payment intent is not awaiting payment"))
		return
	default:
		apperr.Respond(w, r, storeError(err, "payment intent"))
		return
	}
	slog.Info("Payment confirmed", "intent_id", pi.ID, "order_id", pi.OrderID)
	writeJSON(w, http.StatusOK, pi)
}
