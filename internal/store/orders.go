package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"appsuite/internal/models"
)

var orderColumns = []string{
	"o.id", "o.buyer_id", "o.product_id", "p.seller_id", "o.quantity", "o.amount", "o.status", "o.created_at", "o.updated_at",
}

type OrderFilter struct {
	UserID   string
	AsSeller bool
	Status   string
	Page
}

type OrderRepo struct {
	db DBInterface
}

func NewOrderRepo(db DBInterface) *OrderRepo {
	return &OrderRepo{db: db}
}

func selectOrderBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(orderColumns...).
		From("orders o").
		Join("products p ON p.id = o.product_id").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	qb := selectOrderBuilder().
		OrderBy("o.created_at DESC", "o.id").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.AsSeller {
		qb = qb.Where(squirrel.Eq{"p.seller_id": f.UserID})
	} else {
		qb = qb.Where(squirrel.Eq{"o.buyer_id": f.UserID})
	}
	if f.Status != "" {
		qb = qb.Where(squirrel.Eq{"o.status": f.Status})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	orders := []models.Order{}
	if err := pgxscan.Select(ctx, r.db, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*models.Order, error) {
	return getOrder(ctx, r.db, id)
}

func getOrder(ctx context.Context, q pgxscan.Querier, id string) (*models.Order, error) {
	query, args, err := selectOrderBuilder().Where(squirrel.Eq{"o.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var o models.Order
	if err := pgxscan.Get(ctx, q, &o, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	return &o, nil
}

// Create reserves stock and inserts a pending order in one transaction.
// The product row is locked so concurrent orders cannot oversell.
func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			sellerID string
			price    decimal.Decimal
			stock    int
		)
		err := tx.QueryRow(ctx,
			"SELECT seller_id, price, stock FROM products WHERE id = $1 FOR UPDATE",
			o.ProductID,
		).Scan(&sellerID, &price, &stock)
		if err != nil {
			if pgxscan.NotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("locking product: %w", err)
		}
		if sellerID == o.BuyerID {
			return ErrOwnProduct
		}
		if stock < o.Quantity {
			return ErrInsufficientStock
		}
		amount := price.Mul(decimal.NewFromInt(int64(o.Quantity))).Round(2)
		if !amount.LessThan(models.MaxMoney) {
			return ErrAmountTooLarge
		}

		if _, err := tx.Exec(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2",
			o.Quantity, o.ProductID,
		); err != nil {
			return fmt.Errorf("reserving stock: %w", mapError(err))
		}

		o.SellerID = sellerID
		o.Amount = amount
		o.Status = models.OrderPending

		query, args, err := squirrel.Insert("orders").
			Columns("id", "buyer_id", "product_id", "quantity", "amount", "status").
			Values(o.ID, o.BuyerID, o.ProductID, o.Quantity, o.Amount, o.Status).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("inserting order: %w", mapError(err))
		}
		return nil
	})
}

// UpdateStatus moves the order from→to only if it is still in from.
// Cancelling returns the reserved stock and cancels open payment intents.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id, from, to string) (*models.Order, error) {
	var out *models.Order
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			productID string
			quantity  int
		)
		err := tx.QueryRow(ctx,
			"UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3 RETURNING product_id, quantity",
			to, id, from,
		).Scan(&productID, &quantity)
		if err != nil {
			if pgxscan.NotFound(err) {
				return ErrStateChanged
			}
			return fmt.Errorf("updating order status: %w", mapError(err))
		}

		if to == models.OrderCancelled {
			if err := restock(ctx, tx, productID, quantity); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				"UPDATE payment_intents SET status = $1, updated_at = now() WHERE order_id = $2 AND status = $3",
				models.PaymentCancelled, id, models.PaymentRequiresPayment,
			); err != nil {
				return fmt.Errorf("cancelling payment intents: %w", err)
			}
		}

		out, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a pending order and returns its stock.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			productID string
			quantity  int
		)
		err := tx.QueryRow(ctx,
			"DELETE FROM orders WHERE id = $1 AND status = $2 RETURNING product_id, quantity",
			id, models.OrderPending,
		).Scan(&productID, &quantity)
		if err != nil {
			if pgxscan.NotFound(err) {
				return ErrStateChanged
			}
			return fmt.Errorf("deleting order: %w", mapError(err))
		}
		return restock(ctx, tx, productID, quantity)
	})
}

func restock(ctx context.Context, tx pgx.Tx, productID string, quantity int) error {
	if _, err := tx.Exec(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2",
		quantity, productID,
	); err != nil {
		return fmt.Errorf("restocking product: %w", err)
	}
	return nil
}
