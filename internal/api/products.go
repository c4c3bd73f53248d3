package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"appsuite/internal/apperr"
	"appsuite/internal/cache"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

const (
	categoryCountsKey = "categories:counts"
	categoryCountsTTL = 60 * time.Second
)

type productStore interface {
	List(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Popular(ctx context.Context, limit uint64) ([]models.PopularProduct, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
}

// responseCache stores encoded responses. A nil cache disables caching.
type responseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type ProductHandler struct {
	products productStore
	cache    responseCache
}

func NewProductHandler(products productStore, c responseCache) *ProductHandler {
	return &ProductHandler{products: products, cache: c}
}

func (h *ProductHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/api/products", h.List)
	r.Get("/api/products/popular", h.Popular)
	r.Get("/api/products/{id}", h.Get)
	r.Get("/api/categories/counts", h.CategoryCounts)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/api/products", h.Create)
		r.Put("/api/products/{id}", h.Update)
		r.Delete("/api/products/{id}", h.Delete)
	})
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Category    string          `json:"category" validate:"required,min=1,max=100"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

func (req productRequest) check() error {
	fe := fieldErrors{}
	if !req.Price.IsPositive() {
		fe.add("price", "must be greater than 0")
	}
	fe.numeric("price", req.Price, 2, models.MaxMoney)
	return fe.err()
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.ProductFilter{
		Category: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Query:    strings.TrimSpace(q.Get("q")),
		Page:     page,
	}
	if sid := q.Get("seller_id"); sid != "" {
		if _, err := uuid.Parse(sid); err != nil {
			apperr.Respond(w, r, apperr.BadRequest("seller_id must be a UUID"))
			return
		}
		f.SellerID = sid
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 5, 1, 50)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	products, err := h.products.Popular(r.Context(), uint64(limit))
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *ProductHandler) CategoryCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, categoryCountsKey)
		if err == nil {
			slog.Debug("Cache HIT", "key", categoryCountsKey)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cached)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Cache read failed", "key", categoryCountsKey, "error", err)
		}
	}

	counts, err := h.products.CategoryCounts(ctx)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	body, err := json.Marshal(map[string]any{"categories": counts})
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	body = append(body, '\n')

	if h.cache != nil {
		if err := h.cache.Set(ctx, categoryCountsKey, body, categoryCountsTTL); err != nil {
			slog.Warn("Cache write failed", "key", categoryCountsKey, "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(body)
}

func (h *ProductHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, categoryCountsKey); err != nil {
		slog.Warn("Cache invalidation failed", "key", categoryCountsKey, "error", err)
	}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	p := &models.Product{
		ID:          uuid.NewString(),
		SellerID:    principal(r).UserID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			apperr.Respond(w, r, apperr.NotFound("seller"))
			return
		}
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	ctx := r.Context()
	p, err := h.products.Get(ctx, id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	if !principal(r).Owns(p.SellerID) {
		apperr.Respond(w, r, apperr.Forbidden("only the seller may edit this product"))
		return
	}

	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.Category = req.Category
	p.Price = req.Price
	p.Stock = req.Stock
	if err := h.products.Update(ctx, p); err != nil {
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	h.invalidate(ctx)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}

	ctx := r.Context()
	p, err := h.products.Get(ctx, id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	if !principal(r).Owns(p.SellerID) {
		apperr.Respond(w, r, apperr.Forbidden("only the seller may delete this product"))
		return
	}
	if err := h.products.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			apperr.Respond(w, r, apperr.Conflict("product has orders and cannot be deleted"))
			return
		}
		apperr.Respond(w, r, storeError(err, "product"))
		return
	}
	h.invalidate(ctx)
	w.WriteHeader(http.StatusNoContent)
}
