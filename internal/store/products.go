package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"appsuite/internal/models"
)

var productColumns = []string{
	"id", "seller_id", "name", "description", "category", "price", "stock", "created_at", "updated_at",
}

type ProductFilter struct {
	Category string
	Query    string
	SellerID string
	Page
}

type ProductRepo struct {
	db DBInterface
}

func NewProductRepo(db DBInterface) *ProductRepo {
	return &ProductRepo{db: db}
}

func selectProductBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(productColumns...).
		From("products").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	qb := selectProductBuilder().
		OrderBy("created_at DESC", "id").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.Category != "" {
		qb = qb.Where(squirrel.Eq{"category": strings.ToLower(f.Category)})
	}
	if f.SellerID != "" {
		qb = qb.Where(squirrel.Eq{"seller_id": f.SellerID})
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"name": p},
			squirrel.ILike{"description": p},
		})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	products := []models.Product{}
	if err := pgxscan.Select(ctx, r.db, &products, query, args...); err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*models.Product, error) {
	query, args, err := selectProductBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var p models.Product
	if err := pgxscan.Get(ctx, r.db, &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning product: %w", err)
	}
	return &p, nil
}

// Popular ranks products by units sold in orders that were not cancelled.
func (r *ProductRepo) Popular(ctx context.Context, limit uint64) ([]models.PopularProduct, error) {
	cols := make([]string, 0, len(productColumns)+1)
	for _, c := range productColumns {
		cols = append(cols, "p."+c)
	}
	cols = append(cols, "COALESCE(SUM(o.quantity), 0) AS units_sold")

	query, args, err := squirrel.Select(cols...).
		From("products p").
		LeftJoin("orders o ON o.product_id = p.id AND o.status <> ?", models.OrderCancelled).
		GroupBy("p.id").
		OrderBy("units_sold DESC", "p.created_at DESC").
		Limit(limit).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building popular query: %w", err)
	}
	products := []models.PopularProduct{}
	if err := pgxscan.Select(ctx, r.db, &products, query, args...); err != nil {
		return nil, fmt.Errorf("scanning popular products: %w", err)
	}
	return products, nil
}

func (r *ProductRepo) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	query, args, err := squirrel.Select("category", "COUNT(*) AS count").
		From("products").
		GroupBy("category").
		OrderBy("count DESC", "category").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building counts query: %w", err)
	}
	counts := []models.CategoryCount{}
	if err := pgxscan.Select(ctx, r.db, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("scanning category counts: %w", err)
	}
	return counts, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	query, args, err := squirrel.Insert("products").
		Columns("id", "seller_id", "name", "description", "category", "price", "stock").
		Values(p.ID, p.SellerID, p.Name, p.Description, p.Category, p.Price, p.Stock).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("inserting product: %w", mapError(err))
	}
	return nil
}

// Update overwrites the editable fields of p and refreshes its timestamps.
func (r *ProductRepo) Update(ctx context.Context, p *models.Product) error {
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	query, args, err := squirrel.Update("products").
		Set("name", p.Name).
		Set("description", p.Description).
		Set("category", p.Category).
		Set("price", p.Price).
		Set("stock", p.Stock).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if pgxscan.NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("updating product: %w", mapError(err))
	}
	return nil
}

// Delete removes a product. Products referenced by orders return ErrForeignKey.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "products", squirrel.Eq{"id": id})
}
