package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"appsuite/internal/apperr"
	"appsuite/internal/models"
	"appsuite/internal/ratelimit"
	"appsuite/internal/services"
)

const bearer = "Bearer tok-123"

func TestHandler_GetOverview(t *testing.T) {
	me := &models.User{ID: aliceID, Email: "alice@example.com", Name: "Alice", Role: models.RoleUser}

	t.Run("Should aggregate all three sources and forward the token", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetMe", mock.Anything, "tok-123").Return(me, nil)
		svc.On("GetOrders", mock.Anything, "tok-123", overviewOrders).Return([]models.Order{*pendingOrder()}, nil)
		svc.On("GetPopularProducts", mock.Anything, "tok-123", overviewPopular).
			Return([]models.PopularProduct{{Product: models.Product{ID: productID, Name: "Mug"}, UnitsSold: 12}}, nil)
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ov := decodeBody[models.Overview](t, rec)
		assert.Equal(t, aliceID, ov.User.ID)
		assert.Len(t, ov.Orders, 1)
		require.Len(t, ov.PopularProducts, 1)
		assert.Equal(t, int64(12), ov.PopularProducts[0].UnitsSold)
		svc.AssertExpectations(t)
	})

	t.Run("Should degrade failing lists to empty arrays", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetMe", mock.Anything, mock.Anything).Return(me, nil)
		svc.On("GetOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("order-service down"))
		svc.On("GetPopularProducts", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("circuit breaker is open"))
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"orders":[]`)
		assert.Contains(t, rec.Body.String(), `"popular_products":[]`)
	})

	userErrors := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"a missing user as 404", fmt.Errorf("get me: %w", services.ErrNotFound), http.StatusNotFound, apperr.CodeNotFound},
		{"an unavailable user service as 502", errors.New("dial tcp: connection refused"), http.StatusBadGateway, apperr.CodeUpstream},
	}
	for _, tc := range userErrors {
		t.Run("Should surface "+tc.name, func(t *testing.T) {
			svc := &mockDownstream{}
			svc.On("GetMe", mock.Anything, mock.Anything).Return(nil, tc.err)
			svc.On("GetOrders", mock.Anything, mock.Anything, mock.Anything).Return([]models.Order{}, nil)
			svc.On("GetPopularProducts", mock.Anything, mock.Anything, mock.Anything).Return([]models.PopularProduct{}, nil)
			r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

			rec := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error.Code)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}

	t.Run("Should answer from the cache without calling downstream", func(t *testing.T) {
		c, mr := newTestCache(t)
		require.NoError(t, mr.Set("appsuite:overview:"+aliceID, `{"user":{"id":"cached"},"orders":[],"popular_products":[]}`))
		svc := &mockDownstream{}
		r := newRouter(NewHandler(svc, c, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Contains(t, rec.Body.String(), `"cached"`)
		svc.AssertNotCalled(t, "GetMe", mock.Anything, mock.Anything)
	})

	t.Run("Should populate the cache after a miss", func(t *testing.T) {
		c, mr := newTestCache(t)
		svc := &mockDownstream{}
		svc.On("GetMe", mock.Anything, mock.Anything).Return(me, nil)
		svc.On("GetOrders", mock.Anything, mock.Anything, mock.Anything).Return([]models.Order{}, nil)
		svc.On("GetPopularProducts", mock.Anything, mock.Anything, mock.Anything).Return([]models.PopularProduct{}, nil)
		r := newRouter(NewHandler(svc, c, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Eventually(t, func() bool {
			return mr.Exists("appsuite:overview:" + aliceID)
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should rate limit per client", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetMe", mock.Anything, mock.Anything).Return(me, nil)
		svc.On("GetOrders", mock.Anything, mock.Anything, mock.Anything).Return([]models.Order{}, nil)
		svc.On("GetPopularProducts", mock.Anything, mock.Anything, mock.Anything).Return([]models.PopularProduct{}, nil)
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(1)), alice)

		first := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)
		second := do(t, r, http.MethodGet, "/api/assistant/overview", "", "Authorization", bearer)

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})
}

func TestHandler_ShoppingList(t *testing.T) {
	const pancakesID = "11111111-1111-4111-8111-111111111111"
	const breadID = "22222222-2222-4222-8222-222222222222"

	pancakes := &models.Recipe{ID: pancakesID, Title: "Pancakes", Servings: 2, Ingredients: []models.Ingredient{
		{Name: "Flour", Quantity: decimal.NewFromInt(200), Unit: "g"},
		{Name: "Egg", Quantity: decimal.NewFromInt(2), Unit: "pcs"},
	}}
	bread := &models.Recipe{ID: breadID, Title: "Bread", Servings: 1, Ingredients: []models.Ingredient{
		{Name: "flour", Quantity: decimal.NewFromInt(500), Unit: "G"},
		{Name: "Yeast", Quantity: decimal.NewFromInt(7), Unit: "g"},
	}}

	t.Run("Should merge ingredients and attach product suggestions", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetRecipe", mock.Anything, "tok-123", pancakesID).Return(pancakes, nil).Once()
		svc.On("GetRecipe", mock.Anything, "tok-123", breadID).Return(bread, nil).Once()
		svc.On("SearchProducts", mock.Anything, "tok-123", "flour", productsPerItem).
			Return([]models.Product{{ID: productID, Name: "Wheat flour 1kg"}}, nil)
		svc.On("SearchProducts", mock.Anything, "tok-123", "egg", productsPerItem).
			Return(nil, errors.New("product-service down"))
		svc.On("SearchProducts", mock.Anything, "tok-123", "yeast", productsPerItem).
			Return([]models.Product{}, nil)
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

		body := `{"recipe_ids":["` + pancakesID + `","` + breadID + `","` + pancakesID + `"]}`
		rec := do(t, r, http.MethodPost, "/api/assistant/shopping-list", body, "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decodeBody[struct {
			Items []models.ShoppingItem `json:"items"`
		}](t, rec)
		require.Len(t, got.Items, 3)

		egg, flour, yeast := got.Items[0], got.Items[1], got.Items[2]
		assert.Equal(t, "egg", egg.Name)
		assert.Empty(t, egg.Products)
		assert.NotNil(t, egg.Products)

		assert.Equal(t, "flour", flour.Name)
		assert.True(t, flour.Quantity.Equal(decimal.NewFromInt(700)), flour.Quantity.String())
		assert.ElementsMatch(t, []string{"Pancakes", "Bread"}, flour.Recipes)
		require.Len(t, flour.Products, 1)
		assert.Equal(t, productID, flour.Products[0].ID)

		assert.Equal(t, "yeast", yeast.Name)
		assert.NotContains(t, rec.Body.String(), `"products":null`)
		svc.AssertExpectations(t)
	})

	t.Run("Should scale to the requested servings", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetRecipe", mock.Anything, mock.Anything, pancakesID).Return(pancakes, nil)
		svc.On("SearchProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]models.Product{}, nil)
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodPost, "/api/assistant/shopping-list",
			`{"recipe_ids":["`+pancakesID+`"],"servings":3}`, "Authorization", bearer)

		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[struct {
			Items []models.ShoppingItem `json:"items"`
		}](t, rec)
		require.Len(t, got.Items, 2)
		assert.True(t, got.Items[1].Quantity.Equal(decimal.NewFromInt(300)), got.Items[1].Quantity.String())
	})

	t.Run("Should answer 404 when a recipe is missing", func(t *testing.T) {
		svc := &mockDownstream{}
		svc.On("GetRecipe", mock.Anything, mock.Anything, pancakesID).Return(pancakes, nil).Maybe()
		svc.On("GetRecipe", mock.Anything, mock.Anything, breadID).Return(nil, fmt.Errorf("recipe: %w", services.ErrNotFound))
		r := newRouter(NewHandler(svc, nil, time.Minute, ratelimit.NewLocal(100)), alice)

		rec := do(t, r, http.MethodPost, "/api/assistant/shopping-list",
			`{"recipe_ids":["`+pancakesID+`","`+breadID+`"]}`, "Authorization", bearer)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertNotCalled(t, "SearchProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	for name, body := range map[string]string{
		"an empty list":     `{"recipe_ids":[]}`,
		"a malformed id":    `{"recipe_ids":["pancakes"]}`,
		"too many servings": `{"recipe_ids":["` + pancakesID + `"],"servings":101}`,
	} {
		t.Run("Should reject "+name, func(t *testing.T) {
			r := newRouter(NewHandler(&mockDownstream{}, nil, time.Minute, ratelimit.NewLocal(100)), alice)

			rec := do(t, r, http.MethodPost, "/api/assistant/shopping-list", body, "Authorization", bearer)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperr.CodeValidation, decodeError(t, rec).Error.Code)
		})
	}
}
