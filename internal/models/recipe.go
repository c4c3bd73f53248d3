package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Recipe struct {
	ID           string       `json:"id" db:"id"`
	AuthorID     string       `json:"author_id" db:"author_id"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description" db:"description"`
	Instructions string       `json:"instructions" db:"instructions"`
	Servings     int          `json:"servings" db:"servings"`
	PrepMinutes  int          `json:"prep_minutes" db:"prep_minutes"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
	Ingredients  []Ingredient `json:"ingredients" db:"-"`
}

type Ingredient struct {
	ID       string          `json:"id" db:"id"`
	RecipeID string          `json:"recipe_id" db:"recipe_id"`
	Position int             `json:"position" db:"position"`
	Name     string          `json:"name" db:"name"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
	Unit     string          `json:"unit" db:"unit"`
}

type ShoppingItem struct {
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	Recipes  []string        `json:"recipes"`
	Products []Product       `json:"products"`
}

// MergeIngredients combines the ingredients of recipes into one list keyed by
// lower-cased name and unit. When servings > 0 each recipe is scaled to it.
func MergeIngredients(recipes []Recipe, servings int) []ShoppingItem {
	type key struct{ name, unit string }
	byKey := make(map[key]*ShoppingItem)

	for _, r := range recipes {
		factor := decimal.NewFromInt(1)
		if servings > 0 && r.Servings > 0 {
			factor = decimal.NewFromInt(int64(servings)).Div(decimal.NewFromInt(int64(r.Servings)))
		}
		for _, ing := range r.Ingredients {
			k := key{strings.ToLower(strings.TrimSpace(ing.Name)), strings.ToLower(strings.TrimSpace(ing.Unit))}
			item, ok := byKey[k]
			if !ok {
				item = &ShoppingItem{Name: k.name, Unit: k.unit, Quantity: decimal.Zero, Recipes: []string{}, Products: []Product{}}
				byKey[k] = item
			}
			item.Quantity = item.Quantity.Add(ing.Quantity.Mul(factor))
			if !containsString(item.Recipes, r.Title) {
				item.Recipes = append(item.Recipes, r.Title)
			}
		}
	}

	out := make([]ShoppingItem, 0, len(byKey))
	for _, item := range byKey {
		item.Quantity = item.Quantity.Round(2)
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
