package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"appsuite/internal/apperr"
	"appsuite/internal/invoicepdf"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

type invoiceStore interface {
	List(ctx context.Context, userID, status string, page store.Page) ([]models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Create(ctx context.Context, inv *models.Invoice) error
	Update(ctx context.Context, inv *models.Invoice) error
	UpdateStatus(ctx context.Context, id, from, to string) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
}

type InvoiceHandler struct {
	invoices invoiceStore
}

func NewInvoiceHandler(invoices invoiceStore) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/invoices", h.List)
		r.Post("/api/invoices", h.Create)
		r.Get("/api/invoices/{id}", h.Get)
		r.Put("/api/invoices/{id}", h.Update)
		r.Patch("/api/invoices/{id}/status", h.UpdateStatus)
		r.Delete("/api/invoices/{id}", h.Delete)
		r.Get("/api/invoices/{id}/pdf", h.PDF)
	})
}

type invoiceItemRequest struct {
	Description string          `json:"description" validate:"required,min=1,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	CustomerName  string               `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerEmail string               `json:"customer_email" validate:"omitempty,email,max=254"`
	Currency      string               `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxRate       decimal.Decimal      `json:"tax_rate"`
	IssuedOn      string               `json:"issued_on" validate:"required,datetime=2006-01-02"`
	DueOn         string               `json:"due_on" validate:"required,datetime=2006-01-02"`
	Notes         string               `json:"notes" validate:"max=5000"`
	Items         []invoiceItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

var maxTaxRate = decimal.NewFromInt(100)

func (req invoiceRequest) check() error {
	fe := fieldErrors{}
	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(maxTaxRate) {
		fe.add("tax_rate", "must be between 0 and 100")
	}
	fe.numeric("tax_rate", req.TaxRate, 2, models.MaxMoney)
	if parseDate(req.DueOn).Before(parseDate(req.IssuedOn).Time) {
		fe.add("due_on", "must not be before issued_on")
	}
	for i, it := range req.Items {
		quantity := fmt.Sprintf("items[%d].quantity", i)
		if !it.Quantity.IsPositive() {
			fe.add(quantity, "must be greater than 0")
		}
		fe.numeric(quantity, it.Quantity, 3, models.MaxQuantity)
		price := fmt.Sprintf("items[%d].unit_price", i)
		if it.UnitPrice.IsNegative() {
			fe.add(price, "must be greater than or equal to 0")
		}
		fe.numeric(price, it.UnitPrice, 2, models.MaxMoney)
	}
	return fe.err()
}

func (req invoiceRequest) apply(inv *models.Invoice) {
	inv.CustomerName = strings.TrimSpace(req.CustomerName)
	inv.CustomerEmail = strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	inv.Currency = strings.ToLower(req.Currency)
	if inv.Currency == "" {
		inv.Currency = "usd"
	}
	inv.TaxRate = req.TaxRate
	inv.IssuedOn = parseDate(req.IssuedOn)
	inv.DueOn = parseDate(req.DueOn)
	inv.Notes = req.Notes
	inv.Items = make([]models.InvoiceItem, len(req.Items))
	for i, it := range req.Items {
		inv.Items[i] = models.InvoiceItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.InvoiceDraft, models.InvoiceSent, models.InvoicePaid, models.InvoiceVoid:
	default:
		apperr.Respond(w, r, apperr.BadRequest("unknown invoice status"))
		return
	}

	invoices, err := h.invoices.List(r.Context(), principal(r).UserID, status, page)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *InvoiceHandler) load(r *http.Request) (*models.Invoice, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "invoice")
	}
	if !principal(r).Owns(inv.UserID) {
		return nil, apperr.Forbidden("not allowed to access this invoice")
	}
	return inv, nil
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	inv := &models.Invoice{ID: uuid.NewString(), UserID: principal(r).UserID}
	req.apply(inv)
	if err := h.invoices.Create(r.Context(), inv); err != nil {
		apperr.Respond(w, r, storeError(err, "invoice"))
		return
	}
	slog.Info("Invoice created", "invoice_id", inv.ID, "number", inv.Number)
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	inv, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if !inv.Editable() {
		apperr.Respond(w, r, apperr.Conflict("only draft invoices can be edited"))
		return
	}

	req.apply(inv)
	if err := h.invoices.Update(r.Context(), inv); err != nil {
		apperr.Respond(w, r, storeError(err, "invoice"))
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type invoiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent paid void"`
}

func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	inv, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req invoiceStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if !models.ValidInvoiceTransition(inv.Status, req.Status) {
		apperr.Respond(w, r, apperr.Conflict("cannot move invoice from "+inv.Status+" to "+req.Status))
		return
	}

	updated, err := h.invoices.UpdateStatus(r.Context(), inv.ID, inv.Status, req.Status)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "invoice"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	inv, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if !inv.Deletable() {
		apperr.Respond(w, r, apperr.Conflict("only draft or void invoices can be deleted"))
		return
	}
	if err := h.invoices.Delete(r.Context(), inv.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "invoice"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	inv, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := invoicepdf.Render(&buf, inv); err != nil {
		apperr.Respond(w, r, fmt.Errorf("rendering invoice %s: %w", inv.ID, err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, inv.Number))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
