package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"appsuite/internal/models"
)

var paymentColumns = []string{
	"id", "order_id", "user_id", "amount_minor", "currency", "status", "client_secret", "idempotency_key", "created_at", "updated_at",
}

// NewIntent is the input of PaymentRepo.CreateIntent.
type NewIntent struct {
	OrderID        string
	UserID         string
	Currency       string
	IdempotencyKey string
}

type PaymentRepo struct {
	db DBInterface
}

func NewPaymentRepo(db DBInterface) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func selectPaymentBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(paymentColumns...).
		From("payment_intents").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *PaymentRepo) Get(ctx context.Context, id string) (*models.PaymentIntent, error) {
	return getIntent(ctx, r.db, squirrel.Eq{"id": id}, false)
}

func getIntent(ctx context.Context, q pgxscan.Querier, pred squirrel.Sqlizer, lock bool) (*models.PaymentIntent, error) {
	qb := selectPaymentBuilder().Where(pred)
	if lock {
		qb = qb.Suffix("FOR UPDATE")
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var pi models.PaymentIntent
	if err := pgxscan.Get(ctx, q, &pi, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning payment intent: %w", err)
	}
	return &pi, nil
}

// CreateIntent opens a payment intent for a pending order owned by in.UserID.
// With an idempotency key, a repeated call for the same order returns the
// stored intent and created=false; the same key for another order is rejected.
func (r *PaymentRepo) CreateIntent(ctx context.Context, in NewIntent) (pi *models.PaymentIntent, created bool, err error) {
	err = withTx(ctx, r.db, func(tx pgx.Tx) error {
		if in.IdempotencyKey != "" {
			existing, err := getIntent(ctx, tx, squirrel.Eq{"user_id": in.UserID, "idempotency_key": in.IdempotencyKey}, false)
			switch {
			case err == nil:
				if existing.OrderID != in.OrderID {
					return ErrIdempotencyReuse
				}
				pi = existing
				return nil
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		var (
			buyerID string
			amount  decimal.Decimal
			status  string
		)
		err := tx.QueryRow(ctx,
			"SELECT buyer_id, amount, status FROM orders WHERE id = $1 FOR UPDATE",
			in.OrderID,
		).Scan(&buyerID, &amount, &status)
		if err != nil {
			if pgxscan.NotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("locking order: %w", err)
		}
		if buyerID != in.UserID {
			return ErrNotOwner
		}
		if status != models.OrderPending {
			return ErrStateChanged
		}

		id := uuid.NewString()
		var key *string
		if in.IdempotencyKey != "" {
			key = &in.IdempotencyKey
		}
		query, args, err := squirrel.Insert("payment_intents").
			Columns("id", "order_id", "user_id", "amount_minor", "currency", "status", "client_secret", "idempotency_key").
			Values(id, in.OrderID, in.UserID, models.ToMinorUnits(amount), strings.ToLower(in.Currency),
				models.PaymentRequiresPayment, clientSecret(id), key).
			Suffix("RETURNING " + strings.Join(paymentColumns, ", ")).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		var out models.PaymentIntent
		if err := pgxscan.Get(ctx, tx, &out, query, args...); err != nil {
			return fmt.Errorf("inserting payment intent: %w", mapError(err))
		}
		pi, created = &out, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return pi, created, nil
}

// Confirm marks the intent succeeded and its order paid. Sibling intents of
// the same order that are still open are cancelled.
func (r *PaymentRepo) Confirm(ctx context.Context, id, userID string) (*models.PaymentIntent, error) {
	var out *models.PaymentIntent
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		pi, err := getIntent(ctx, tx, squirrel.Eq{"id": id}, true)
		if err != nil {
			return err
		}
		if pi.UserID != userID {
			return ErrNotOwner
		}
		if pi.Status != models.PaymentRequiresPayment {
			return ErrStateChanged
		}

		tag, err := tx.Exec(ctx,
			"UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
			models.OrderPaid, pi.OrderID, models.OrderPending,
		)
		if err != nil {
			return fmt.Errorf("marking order paid: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStateChanged
		}

		if err := tx.QueryRow(ctx,
			"UPDATE payment_intents SET status = $1, updated_at = now() WHERE id = $2 RETURNING updated_at",
			models.PaymentSucceeded, id,
		).Scan(&pi.UpdatedAt); err != nil {
			return fmt.Errorf("confirming payment intent: %w", err)
		}
		pi.Status = models.PaymentSucceeded

		if _, err := tx.Exec(ctx,
			"UPDATE payment_intents SET status = $1, updated_at = now() WHERE order_id = $2 AND id <> $3 AND status = $4",
			models.PaymentCancelled, pi.OrderID, id, models.PaymentRequiresPayment,
		); err != nil {
			return fmt.Errorf("cancelling sibling intents: %w", err)
		}
		out = pi
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func clientSecret(id string) string {
	return id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
