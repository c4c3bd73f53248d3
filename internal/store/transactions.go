package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"appsuite/internal/models"
)

var transactionColumns = []string{
	"id", "user_id", "kind", "amount", "category", "description", "occurred_on", "created_at", "updated_at",
}

type TransactionFilter struct {
	UserID   string
	From     time.Time
	To       time.Time
	Kind     string
	Category string
	Page
}

type TransactionRepo struct {
	db DBInterface
}

func NewTransactionRepo(db DBInterface) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func selectTransactionBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(transactionColumns...).
		From("transactions").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	qb := selectTransactionBuilder().
		Where(squirrel.Eq{"user_id": f.UserID}).
		OrderBy("occurred_on DESC", "created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset)
	if !f.From.IsZero() {
		qb = qb.Where(squirrel.GtOrEq{"occurred_on": f.From})
	}
	if !f.To.IsZero() {
		qb = qb.Where(squirrel.LtOrEq{"occurred_on": f.To})
	}
	if f.Kind != "" {
		qb = qb.Where(squirrel.Eq{"kind": f.Kind})
	}
	if f.Category != "" {
		qb = qb.Where(squirrel.Eq{"category": strings.ToLower(f.Category)})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	out := []models.Transaction{}
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("scanning transactions: %w", err)
	}
	return out, nil
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*models.Transaction, error) {
	query, args, err := selectTransactionBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var t models.Transaction
	if err := pgxscan.Get(ctx, r.db, &t, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	query, args, err := squirrel.Insert("transactions").
		Columns("id", "user_id", "kind", "amount", "category", "description", "occurred_on").
		Values(t.ID, t.UserID, t.Kind, t.Amount, t.Category, t.Description, t.OccurredOn).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("inserting transaction: %w", mapError(err))
	}
	return nil
}

func (r *TransactionRepo) Update(ctx context.Context, t *models.Transaction) error {
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	query, args, err := squirrel.Update("transactions").
		Set("kind", t.Kind).
		Set("amount", t.Amount).
		Set("category", t.Category).
		Set("description", t.Description).
		Set("occurred_on", t.OccurredOn).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": t.ID}).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if pgxscan.NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("updating transaction: %w", mapError(err))
	}
	return nil
}

func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "transactions", squirrel.Eq{"id": id})
}

// Aggregate sums the user's transactions in [from, to] per month, category and kind.
func (r *TransactionRepo) Aggregate(ctx context.Context, userID string, from, to time.Time) ([]models.TransactionAggregate, error) {
	query, args, err := squirrel.Select(
		"to_char(occurred_on, 'YYYY-MM') AS month",
		"category",
		"kind",
		"SUM(amount) AS total",
		"COUNT(*) AS count",
	).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"occurred_on": from}).
		Where(squirrel.LtOrEq{"occurred_on": to}).
		GroupBy("month", "category", "kind").
		OrderBy("month", "category", "kind").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building aggregate query: %w", err)
	}
	var rows []models.TransactionAggregate
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning aggregates: %w", err)
	}
	return rows, nil
}
