package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"appsuite/internal/apperr"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

type recipeStore interface {
	List(ctx context.Context, f store.RecipeFilter) ([]models.Recipe, error)
	Get(ctx context.Context, id string) (*models.Recipe, error)
	Create(ctx context.Context, rc *models.Recipe) error
	Update(ctx context.Context, rc *models.Recipe) error
	Delete(ctx context.Context, id string) error
}

type RecipeHandler struct {
	recipes recipeStore
}

func NewRecipeHandler(recipes recipeStore) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

func (h *RecipeHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/api/recipes", h.List)
	r.Get("/api/recipes/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/api/recipes", h.Create)
		r.Put("/api/recipes/{id}", h.Update)
		r.Delete("/api/recipes/{id}", h.Delete)
	})
}

type ingredientRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=100"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"max=30"`
}

type recipeRequest struct {
	Title        string              `json:"title" validate:"required,min=1,max=200"`
	Description  string              `json:"description" validate:"max=5000"`
	Instructions string              `json:"instructions" validate:"max=20000"`
	Servings     int                 `json:"servings" validate:"required,gte=1,lte=100"`
	PrepMinutes  int                 `json:"prep_minutes" validate:"gte=0,lte=10080"`
	Ingredients  []ingredientRequest `json:"ingredients" validate:"required,min=1,max=100,dive"`
}

func (req recipeRequest) check() error {
	fe := fieldErrors{}
	for i, ing := range req.Ingredients {
		field := fmt.Sprintf("ingredients[%d].quantity", i)
		if !ing.Quantity.IsPositive() {
			fe.add(field, "must be greater than 0")
		}
		fe.numeric(field, ing.Quantity, 3, models.MaxQuantity)
	}
	return fe.err()
}

func (req recipeRequest) apply(rc *models.Recipe) {
	rc.Title = strings.TrimSpace(req.Title)
	rc.Description = req.Description
	rc.Instructions = req.Instructions
	rc.Servings = req.Servings
	rc.PrepMinutes = req.PrepMinutes
	rc.Ingredients = make([]models.Ingredient, len(req.Ingredients))
	for i, ing := range req.Ingredients {
		rc.Ingredients[i] = models.Ingredient{
			Name:     strings.TrimSpace(ing.Name),
			Quantity: ing.Quantity,
			Unit:     strings.TrimSpace(ing.Unit),
		}
	}
}

func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.RecipeFilter{
		Query:       strings.TrimSpace(q.Get("q")),
		Ingredients: q["ingredient"],
		Page:        page,
	}
	if aid := q.Get("author_id"); aid != "" {
		if _, err := uuid.Parse(aid); err != nil {
			apperr.Respond(w, r, apperr.BadRequest("author_id must be a UUID"))
			return
		}
		f.AuthorID = aid
	}

	recipes, err := h.recipes.List(r.Context(), f)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": recipes})
}

func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	rc, err := h.recipes.Get(r.Context(), id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "recipe"))
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *RecipeHandler) loadOwned(r *http.Request) (*models.Recipe, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	rc, err := h.recipes.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "recipe")
	}
	if !principal(r).Owns(rc.AuthorID) {
		return nil, apperr.Forbidden("only the author may change this recipe")
	}
	return rc, nil
}

func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	rc := &models.Recipe{ID: uuid.NewString(), AuthorID: principal(r).UserID}
	req.apply(rc)
	if err := h.recipes.Create(r.Context(), rc); err != nil {
		apperr.Respond(w, r, storeError(err, "recipe"))
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	rc, err := h.loadOwned(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	req.apply(rc)
	if err := h.recipes.Update(r.Context(), rc); err != nil {
		apperr.Respond(w, r, storeError(err, "recipe"))
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rc, err := h.loadOwned(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := h.recipes.Delete(r.Context(), rc.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "recipe"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
