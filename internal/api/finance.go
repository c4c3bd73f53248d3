package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"appsuite/internal/apperr"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

type transactionStore interface {
	List(ctx context.Context, f store.TransactionFilter) ([]models.Transaction, error)
	Get(ctx context.Context, id string) (*models.Transaction, error)
	Create(ctx context.Context, t *models.Transaction) error
	Update(ctx context.Context, t *models.Transaction) error
	Delete(ctx context.Context, id string) error
	Aggregate(ctx context.Context, userID string, from, to time.Time) ([]models.TransactionAggregate, error)
}

type FinanceHandler struct {
	transactions transactionStore
	now          func() time.Time
}

func NewFinanceHandler(transactions transactionStore) *FinanceHandler {
	return &FinanceHandler{transactions: transactions, now: time.Now}
}

func (h *FinanceHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/transactions", h.List)
		r.Post("/api/transactions", h.Create)
		r.Get("/api/transactions/{id}", h.Get)
		r.Put("/api/transactions/{id}", h.Update)
		r.Delete("/api/transactions/{id}", h.Delete)
		r.Get("/api/finance/dashboard", h.Dashboard)
	})
}

type transactionRequest struct {
	Kind        string          `json:"kind" validate:"required,oneof=income expense"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required,min=1,max=100"`
	Description string          `json:"description" validate:"max=1000"`
	OccurredOn  string          `json:"occurred_on" validate:"required,datetime=2006-01-02"`
}

func (req transactionRequest) check() error {
	fe := fieldErrors{}
	if !req.Amount.IsPositive() {
		fe.add("amount", "must be greater than 0")
	}
	fe.numeric("amount", req.Amount, 2, models.MaxMoney)
	return fe.err()
}

func (req transactionRequest) apply(t *models.Transaction) {
	t.Kind = req.Kind
	t.Amount = req.Amount
	t.Category = req.Category
	t.Description = req.Description
	t.OccurredOn = parseDate(req.OccurredOn)
}

func (h *FinanceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind != "" && kind != models.KindIncome && kind != models.KindExpense {
		apperr.Respond(w, r, apperr.BadRequest("kind must be income or expense"))
		return
	}

	list, err := h.transactions.List(r.Context(), store.TransactionFilter{
		UserID:   principal(r).UserID,
		From:     from,
		To:       to,
		Kind:     kind,
		Category: strings.TrimSpace(q.Get("category")),
		Page:     page,
	})
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": list})
}

func (h *FinanceHandler) load(r *http.Request) (*models.Transaction, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	t, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "transaction")
	}
	if !principal(r).Owns(t.UserID) {
		return nil, apperr.Forbidden("not allowed to access this transaction")
	}
	return t, nil
}

func (h *FinanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *FinanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	t := &models.Transaction{ID: uuid.NewString(), UserID: principal(r).UserID}
	req.apply(t)
	if err := h.transactions.Create(r.Context(), t); err != nil {
		apperr.Respond(w, r, storeError(err, "transaction"))
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *FinanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	req.apply(t)
	if err := h.transactions.Update(r.Context(), t); err != nil {
		apperr.Respond(w, r, storeError(err, "transaction"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *FinanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := h.transactions.Delete(r.Context(), t.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "transaction"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard defaults to the current month up to today.
func (h *FinanceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	from, err := queryDate(r, "from")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if to.IsZero() {
		to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if to.Before(from) {
		apperr.Respond(w, r, apperr.BadRequest("to must not be before from"))
		return
	}

	rows, err := h.transactions.Aggregate(r.Context(), principal(r).UserID, from, to)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BuildDashboard(from, to, rows))
}
