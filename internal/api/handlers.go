package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"appsuite/internal/apperr"
	"appsuite/internal/auth"
	"appsuite/internal/cache"
	"appsuite/internal/models"
	"appsuite/internal/ratelimit"
	"appsuite/internal/services"
)

const (
	overviewOrders    = 10
	overviewPopular   = 5
	productsPerItem   = 3
	searchFanOut      = 4
	cacheWriteTimeout = 2 * time.Second
)

// downstream is the slice of services.ServiceClient the assistant uses.
type downstream interface {
	GetMe(ctx context.Context, token string) (*models.User, error)
	GetOrders(ctx context.Context, token string, limit int) ([]models.Order, error)
	GetPopularProducts(ctx context.Context, token string, limit int) ([]models.PopularProduct, error)
	GetRecipe(ctx context.Context, token, id string) (*models.Recipe, error)
	SearchProducts(ctx context.Context, token, q string, limit int) ([]models.Product, error)
}

// Handler is the shopping assistant: it aggregates the other services for one client view.
type Handler struct {
	svc      downstream
	cache    responseCache
	cacheTTL time.Duration
	limiter  ratelimit.Limiter
}

func NewHandler(svc downstream, c responseCache, cacheTTL time.Duration, limiter ratelimit.Limiter) *Handler {
	return &Handler{
		svc:      svc,
		cache:    c,
		cacheTTL: cacheTTL,
		limiter:  limiter,
	}
}

func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(h.limiter, nil))
		r.Use(requireAuth)
		r.Get("/api/assistant/overview", h.GetOverview)
		r.Post("/api/assistant/shopping-list", h.ShoppingList)
	})
}

func upstreamError(err error, what string) error {
	if errors.Is(err, services.ErrNotFound) {
		return apperr.NotFound(what)
	}
	return apperr.Upstream(what+" service unavailable", err)
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := principal(r).UserID
	token, _ := auth.BearerToken(r)

	cacheKey := "overview:" + userID
	start := time.Now()

	if h.cache != nil {
		cachedData, err := h.cache.Get(ctx, cacheKey)
		if err == nil {
			slog.Info("Cache HIT", "user_id", userID, "duration", time.Since(start))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cachedData)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Cache read failed", "key", cacheKey, "error", err)
		}
	}

	var (
		wg       sync.WaitGroup
		user     *models.User
		userErr  error
		orders   []models.Order
		products []models.PopularProduct
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		user, userErr = h.svc.GetMe(ctx, token)
	}()

	go func() {
		defer wg.Done()
		res, err := h.svc.GetOrders(ctx, token, overviewOrders)
		if err != nil {
			slog.Error("Orders fetch error", "user_id", userID, "error", err)
			orders = []models.Order{}
		} else {
			orders = res
		}
	}()

	go func() {
		defer wg.Done()
		res, err := h.svc.GetPopularProducts(ctx, token, overviewPopular)
		if err != nil {
			slog.Warn("Popular products fallback", "user_id", userID, "error", err)
			products = []models.PopularProduct{}
		} else {
			products = res
		}
	}()

	wg.Wait()

	if userErr != nil {
		slog.Error("Failed to get user", "user_id", userID, "error", userErr)
		apperr.Respond(w, r, upstreamError(userErr, "user"))
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	if products == nil {
		products = []models.PopularProduct{}
	}

	responseBytes, err := json.Marshal(models.Overview{
		User:            user,
		Orders:          orders,
		PopularProducts: products,
	})
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	responseBytes = append(responseBytes, '\n')

	if h.cache != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := h.cache.Set(ctx, cacheKey, responseBytes, h.cacheTTL); err != nil {
				slog.Warn("Cache write failed", "key", cacheKey, "error", err)
			}
		}()
	}

	slog.Info("Overview assembled", "user_id", userID, "duration", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(responseBytes)
}

type shoppingListRequest struct {
	RecipeIDs []string `json:"recipe_ids" validate:"required,min=1,max=20,dive,uuid"`
	Servings  int      `json:"servings" validate:"gte=0,lte=100"`
}

// ShoppingList merges the ingredients of several recipes and suggests
// matching products for each line.
func (h *Handler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	var req shoppingListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	token, _ := auth.BearerToken(r)

	ids := make([]string, 0, len(req.RecipeIDs))
	seen := make(map[string]bool, len(req.RecipeIDs))
	for _, id := range req.RecipeIDs {
		id = strings.ToLower(id)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	recipes := make([]models.Recipe, len(ids))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(searchFanOut)
	for i, id := range ids {
		g.Go(func() error {
			rc, err := h.svc.GetRecipe(gctx, token, id)
			if err != nil {
				return upstreamError(err, "recipe")
			}
			recipes[i] = *rc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	items := models.MergeIngredients(recipes, req.Servings)

	var sg errgroup.Group
	sg.SetLimit(searchFanOut)
	for i := range items {
		sg.Go(func() error {
			products, err := h.svc.SearchProducts(r.Context(), token, items[i].Name, productsPerItem)
			if err != nil {
				slog.Warn("Product search fallback", "ingredient", items[i].Name, "error", err)
				return nil
			}
			if len(products) == 0 {
				return nil
			}
			if len(products) > productsPerItem {
				products = products[:productsPerItem]
			}
			items[i].Products = products
			return nil
		})
	}
	_ = sg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
