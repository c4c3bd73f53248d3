package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"appsuite/internal/models"
)

func createTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("APPSUITE_INTEGRATION") != "1" {
		t.Skip("APPSUITE_INTEGRATION not set; skipping Postgres integration tests")
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("appsuite"),
		postgres.WithUsername("appsuite"),
		postgres.WithPassword("appsuite"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgContainer.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr, PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestIntegration_MarketplaceFlow(t *testing.T) {
	ctx := context.Background()
	pool := createTestDatabase(ctx, t)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, MigrateDB(ctx, db, "up"))

	users := NewUserRepo(pool)
	products := NewProductRepo(pool)
	orders := NewOrderRepo(pool)
	payments := NewPaymentRepo(pool)

	seller := &models.User{ID: uuid.NewString(), Email: "seller@example.com", Name: "Seller", PasswordHash: "x", Role: models.RoleUser}
	buyer := &models.User{ID: uuid.NewString(), Email: "buyer@example.com", Name: "Buyer", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, users.Create(ctx, seller))
	require.NoError(t, users.Create(ctx, buyer))
	assert.ErrorIs(t, users.Create(ctx, &models.User{ID: uuid.NewString(), Email: "SELLER@example.com", Name: "Dup", PasswordHash: "x", Role: models.RoleUser}), ErrConflict)

	p := &models.Product{ID: uuid.NewString(), SellerID: seller.ID, Name: "Tea", Category: "Drinks", Price: decimal.RequireFromString("4.50"), Stock: 2}
	require.NoError(t, products.Create(ctx, p))

	o := &models.Order{ID: uuid.NewString(), BuyerID: buyer.ID, ProductID: p.ID, Quantity: 2}
	require.NoError(t, orders.Create(ctx, o))
	assert.Equal(t, "9.00", o.Amount.StringFixed(2))

	err := orders.Create(ctx, &models.Order{ID: uuid.NewString(), BuyerID: buyer.ID, ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	counts, err := products.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{{Category: "drinks", Count: 1}}, counts)

	in := NewIntent{OrderID: o.ID, UserID: buyer.ID, Currency: "usd", IdempotencyKey: "k1"}
	pi, created, err := payments.CreateIntent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(900), pi.AmountMinor)

	again, created, err := payments.CreateIntent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, pi.ID, again.ID)

	confirmed, err := payments.Confirm(ctx, pi.ID, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSucceeded, confirmed.Status)

	paid, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.Equal(t, seller.ID, paid.SellerID)

	assert.ErrorIs(t, products.Delete(ctx, p.ID), ErrForeignKey)

	require.NoError(t, MigrateDB(ctx, db, "reset"))
}
