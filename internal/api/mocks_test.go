package api

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"appsuite/internal/models"
	"appsuite/internal/store"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Create(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error) {
	args := m.Called(ctx, id, name, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockUserStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProductStore struct{ mock.Mock }

func (m *mockProductStore) List(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]models.Product)
	return out, args.Error(1)
}

func (m *mockProductStore) Get(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

func (m *mockProductStore) Popular(ctx context.Context, limit uint64) ([]models.PopularProduct, error) {
	args := m.Called(ctx, limit)
	out, _ := args.Get(0).([]models.PopularProduct)
	return out, args.Error(1)
}

func (m *mockProductStore) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]models.CategoryCount)
	return out, args.Error(1)
}

func (m *mockProductStore) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductStore) Update(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockOrderStore struct{ mock.Mock }

func (m *mockOrderStore) List(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]models.Order)
	return out, args.Error(1)
}

func (m *mockOrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStore) Create(ctx context.Context, o *models.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id, from, to string) (*models.Order, error) {
	args := m.Called(ctx, id, from, to)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockPaymentStore struct{ mock.Mock }

func (m *mockPaymentStore) Get(ctx context.Context, id string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, id)
	pi, _ := args.Get(0).(*models.PaymentIntent)
	return pi, args.Error(1)
}

func (m *mockPaymentStore) CreateIntent(ctx context.Context, in store.NewIntent) (*models.PaymentIntent, bool, error) {
	args := m.Called(ctx, in)
	pi, _ := args.Get(0).(*models.PaymentIntent)
	return pi, args.Bool(1), args.Error(2)
}

func (m *mockPaymentStore) Confirm(ctx context.Context, id, userID string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, id, userID)
	pi, _ := args.Get(0).(*models.PaymentIntent)
	return pi, args.Error(1)
}

type mockAppointmentStore struct{ mock.Mock }

func (m *mockAppointmentStore) List(ctx context.Context, f store.AppointmentFilter) ([]models.Appointment, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]models.Appointment)
	return out, args.Error(1)
}

func (m *mockAppointmentStore) Get(ctx context.Context, id string) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Appointment)
	return a, args.Error(1)
}

func (m *mockAppointmentStore) Create(ctx context.Context, a *models.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAppointmentStore) Update(ctx context.Context, a *models.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAppointmentStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockInvoiceStore struct{ mock.Mock }

func (m *mockInvoiceStore) List(ctx context.Context, userID, status string, page store.Page) ([]models.Invoice, error) {
	args := m.Called(ctx, userID, status, page)
	out, _ := args.Get(0).([]models.Invoice)
	return out, args.Error(1)
}

func (m *mockInvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*models.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *mockInvoiceStore) Update(ctx context.Context, inv *models.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *mockInvoiceStore) UpdateStatus(ctx context.Context, id, from, to string) (*models.Invoice, error) {
	args := m.Called(ctx, id, from, to)
	inv, _ := args.Get(0).(*models.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockTransactionStore struct{ mock.Mock }

func (m *mockTransactionStore) List(ctx context.Context, f store.TransactionFilter) ([]models.Transaction, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]models.Transaction)
	return out, args.Error(1)
}

func (m *mockTransactionStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockTransactionStore) Create(ctx context.Context, t *models.Transaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTransactionStore) Update(ctx context.Context, t *models.Transaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTransactionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTransactionStore) Aggregate(ctx context.Context, userID string, from, to time.Time) ([]models.TransactionAggregate, error) {
	args := m.Called(ctx, userID, from, to)
	out, _ := args.Get(0).([]models.TransactionAggregate)
	return out, args.Error(1)
}

type mockMoodStore struct{ mock.Mock }

func (m *mockMoodStore) List(ctx context.Context, userID string, from, to time.Time, page store.Page) ([]models.MoodEntry, error) {
	args := m.Called(ctx, userID, from, to, page)
	out, _ := args.Get(0).([]models.MoodEntry)
	return out, args.Error(1)
}

func (m *mockMoodStore) Get(ctx context.Context, id string) (*models.MoodEntry, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.MoodEntry)
	return e, args.Error(1)
}

func (m *mockMoodStore) Create(ctx context.Context, e *models.MoodEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockMoodStore) Update(ctx context.Context, e *models.MoodEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockMoodStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockRecipeStore struct{ mock.Mock }

func (m *mockRecipeStore) List(ctx context.Context, f store.RecipeFilter) ([]models.Recipe, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]models.Recipe)
	return out, args.Error(1)
}

func (m *mockRecipeStore) Get(ctx context.Context, id string) (*models.Recipe, error) {
	args := m.Called(ctx, id)
	rc, _ := args.Get(0).(*models.Recipe)
	return rc, args.Error(1)
}

func (m *mockRecipeStore) Create(ctx context.Context, rc *models.Recipe) error {
	return m.Called(ctx, rc).Error(0)
}

func (m *mockRecipeStore) Update(ctx context.Context, rc *models.Recipe) error {
	return m.Called(ctx, rc).Error(0)
}

func (m *mockRecipeStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// mockDownstream implements downstream for the assistant tests.
type mockDownstream struct{ mock.Mock }

func (m *mockDownstream) GetMe(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockDownstream) GetOrders(ctx context.Context, token string, limit int) ([]models.Order, error) {
	args := m.Called(ctx, token, limit)
	out, _ := args.Get(0).([]models.Order)
	return out, args.Error(1)
}

func (m *mockDownstream) GetPopularProducts(ctx context.Context, token string, limit int) ([]models.PopularProduct, error) {
	args := m.Called(ctx, token, limit)
	out, _ := args.Get(0).([]models.PopularProduct)
	return out, args.Error(1)
}

func (m *mockDownstream) GetRecipe(ctx context.Context, token, id string) (*models.Recipe, error) {
	args := m.Called(ctx, token, id)
	rc, _ := args.Get(0).(*models.Recipe)
	return rc, args.Error(1)
}

func (m *mockDownstream) SearchProducts(ctx context.Context, token, q string, limit int) ([]models.Product, error) {
	args := m.Called(ctx, token, q, limit)
	out, _ := args.Get(0).([]models.Product)
	return out, args.Error(1)
}
