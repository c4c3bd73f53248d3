package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"appsuite/internal/models"
)

var recipeColumns = []string{
	"id", "author_id", "title", "description", "instructions", "servings", "prep_minutes", "created_at", "updated_at",
}

var ingredientColumns = []string{"id", "recipe_id", "position", "name", "quantity", "unit"}

type RecipeFilter struct {
	Query       string
	Ingredients []string
	AuthorID    string
	Page
}

type RecipeRepo struct {
	db DBInterface
}

func NewRecipeRepo(db DBInterface) *RecipeRepo {
	return &RecipeRepo{db: db}
}

func selectRecipeBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(recipeColumns...).
		From("recipes r").
		PlaceholderFormat(squirrel.Dollar)
}

// List matches q against title and description; every ingredient term must
// match at least one ingredient name.
func (r *RecipeRepo) List(ctx context.Context, f RecipeFilter) ([]models.Recipe, error) {
	qb := selectRecipeBuilder().
		OrderBy("r.created_at DESC", "r.id").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.Query != "" {
		p := likePattern(f.Query)
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"r.title": p},
			squirrel.ILike{"r.description": p},
		})
	}
	if f.AuthorID != "" {
		qb = qb.Where(squirrel.Eq{"r.author_id": f.AuthorID})
	}
	for _, ing := range f.Ingredients {
		ing = strings.TrimSpace(ing)
		if ing == "" {
			continue
		}
		qb = qb.Where(
			"EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.name ILIKE ?)",
			likePattern(ing),
		)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	recipes := []models.Recipe{}
	if err := pgxscan.Select(ctx, r.db, &recipes, query, args...); err != nil {
		return nil, fmt.Errorf("scanning recipes: %w", err)
	}
	if len(recipes) == 0 {
		return recipes, nil
	}

	ids := make([]string, len(recipes))
	for i, rc := range recipes {
		ids[i] = rc.ID
	}
	ings, err := ingredients(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		recipes[i].Ingredients = ings[recipes[i].ID]
	}
	return recipes, nil
}

func (r *RecipeRepo) Get(ctx context.Context, id string) (*models.Recipe, error) {
	query, args, err := selectRecipeBuilder().Where(squirrel.Eq{"r.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var rc models.Recipe
	if err := pgxscan.Get(ctx, r.db, &rc, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning recipe: %w", err)
	}
	ings, err := ingredients(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	rc.Ingredients = ings[id]
	return &rc, nil
}

func ingredients(ctx context.Context, q pgxscan.Querier, recipeIDs []string) (map[string][]models.Ingredient, error) {
	query, args, err := squirrel.Select(ingredientColumns...).
		From("recipe_ingredients").
		Where(squirrel.Eq{"recipe_id": recipeIDs}).
		OrderBy("recipe_id", "position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building ingredients query: %w", err)
	}
	var rows []models.Ingredient
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning ingredients: %w", err)
	}
	out := make(map[string][]models.Ingredient, len(recipeIDs))
	for _, id := range recipeIDs {
		out[id] = []models.Ingredient{}
	}
	for _, ing := range rows {
		out[ing.RecipeID] = append(out[ing.RecipeID], ing)
	}
	return out, nil
}

func (r *RecipeRepo) Create(ctx context.Context, rc *models.Recipe) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		query, args, err := squirrel.Insert("recipes").
			Columns("id", "author_id", "title", "description", "instructions", "servings", "prep_minutes").
			Values(rc.ID, rc.AuthorID, rc.Title, rc.Description, rc.Instructions, rc.Servings, rc.PrepMinutes).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&rc.CreatedAt, &rc.UpdatedAt); err != nil {
			return fmt.Errorf("inserting recipe: %w", mapError(err))
		}
		return insertIngredients(ctx, tx, rc)
	})
}

// Update overwrites the recipe and replaces its ingredient list.
func (r *RecipeRepo) Update(ctx context.Context, rc *models.Recipe) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		query, args, err := squirrel.Update("recipes").
			Set("title", rc.Title).
			Set("description", rc.Description).
			Set("instructions", rc.Instructions).
			Set("servings", rc.Servings).
			Set("prep_minutes", rc.PrepMinutes).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": rc.ID}).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building update query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&rc.CreatedAt, &rc.UpdatedAt); err != nil {
			if pgxscan.NotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("updating recipe: %w", mapError(err))
		}
		if _, err := tx.Exec(ctx, "DELETE FROM recipe_ingredients WHERE recipe_id = $1", rc.ID); err != nil {
			return fmt.Errorf("clearing ingredients: %w", err)
		}
		return insertIngredients(ctx, tx, rc)
	})
}

func (r *RecipeRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "recipes", squirrel.Eq{"id": id})
}

func insertIngredients(ctx context.Context, tx pgx.Tx, rc *models.Recipe) error {
	if len(rc.Ingredients) == 0 {
		return nil
	}
	ib := squirrel.Insert("recipe_ingredients").
		Columns(ingredientColumns...).
		PlaceholderFormat(squirrel.Dollar)
	for i := range rc.Ingredients {
		ing := &rc.Ingredients[i]
		ing.ID = uuid.NewString()
		ing.RecipeID = rc.ID
		ing.Position = i + 1
		ib = ib.Values(ing.ID, ing.RecipeID, ing.Position, strings.TrimSpace(ing.Name), ing.Quantity, ing.Unit)
	}
	query, args, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("building ingredients insert: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting ingredients: %w", mapError(err))
	}
	return nil
}
