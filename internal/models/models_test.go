package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestInvoice_ComputeTotals(t *testing.T) {
	t.Run("Should round line totals and tax half away from zero", func(t *testing.T) {
		inv := Invoice{
			TaxRate: dec("10"),
			Items: []InvoiceItem{
				{Quantity: dec("2"), UnitPrice: dec("10.00")},
				{Quantity: dec("1"), UnitPrice: dec("5.555")},
			},
		}
		inv.ComputeTotals()
		assert.Equal(t, "25.56", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "2.56", inv.Tax.StringFixed(2))
		assert.Equal(t, "28.12", inv.Total.StringFixed(2))
	})
	t.Run("Should yield zeros for an invoice without items", func(t *testing.T) {
		inv := Invoice{TaxRate: dec("20")}
		inv.ComputeTotals()
		assert.True(t, inv.Total.IsZero())
	})
}

func TestInvoice_Transitions(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{InvoiceDraft, InvoiceSent, true},
		{InvoiceDraft, InvoiceVoid, true},
		{InvoiceSent, InvoicePaid, true},
		{InvoiceSent, InvoiceVoid, true},
		{InvoiceDraft, InvoicePaid, false},
		{InvoicePaid, InvoiceVoid, false},
		{InvoiceVoid, InvoiceDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidInvoiceTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, Invoice{Status: InvoiceVoid}.Deletable())
	assert.False(t, Invoice{Status: InvoiceSent}.Deletable())
	assert.False(t, Invoice{Status: InvoiceSent}.Editable())
}

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		name     string
		actor    OrderActor
		from, to string
		want     bool
	}{
		{"buyer cancels pending", ActorBuyer, OrderPending, OrderCancelled, true},
		{"seller cannot cancel", ActorSeller, OrderPending, OrderCancelled, false},
		{"seller ships paid", ActorSeller, OrderPaid, OrderShipped, true},
		{"buyer cannot ship", ActorBuyer, OrderPaid, OrderShipped, false},
		{"seller delivers shipped", ActorSeller, OrderShipped, OrderDelivered, true},
		{"admin marks paid", ActorAdmin, OrderPending, OrderPaid, true},
		{"nobody reopens cancelled", ActorAdmin, OrderCancelled, OrderPending, false},
		{"stranger", ActorNone, OrderPending, OrderCancelled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransitionOrder(tc.actor, tc.from, tc.to))
		})
	}
	assert.True(t, ValidOrderTransition(OrderPaid, OrderShipped))
	assert.False(t, ValidOrderTransition(OrderDelivered, OrderShipped))
	assert.False(t, IsOrderStatus("refunded"))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(dec("19.99")))
	assert.Equal(t, int64(1001), ToMinorUnits(dec("10.005")))
	assert.Equal(t, int64(500), ToMinorUnits(dec("5")))
}

func TestAppointment_Overlaps(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a := Appointment{StartsAt: base, EndsAt: base.Add(time.Hour)}

	assert.True(t, a.Overlaps(Appointment{StartsAt: base.Add(30 * time.Minute), EndsAt: base.Add(2 * time.Hour)}))
	assert.False(t, a.Overlaps(Appointment{StartsAt: base.Add(time.Hour), EndsAt: base.Add(2 * time.Hour)}))
	assert.False(t, a.Overlaps(Appointment{StartsAt: base.Add(-time.Hour), EndsAt: base}))
}

func TestBuildDashboard(t *testing.T) {
	rows := []TransactionAggregate{
		{Month: "2026-02", Category: "salary", Kind: KindIncome, Total: dec("3000"), Count: 1},
		{Month: "2026-02", Category: "rent", Kind: KindExpense, Total: dec("1200"), Count: 1},
		{Month: "2026-01", Category: "groceries", Kind: KindExpense, Total: dec("150.50"), Count: 3},
		{Month: "2026-02", Category: "groceries", Kind: KindExpense, Total: dec("99.50"), Count: 2},
	}

	d := BuildDashboard(day("2026-01-01"), day("2026-02-28"), rows)

	assert.Equal(t, "2026-01-01", d.From)
	assert.Equal(t, "2026-02-28", d.To)
	assert.Equal(t, "3000.00", d.Income.StringFixed(2))
	assert.Equal(t, "1450.00", d.Expense.StringFixed(2))
	assert.Equal(t, "1550.00", d.Net.StringFixed(2))

	require.Len(t, d.ByCategory, 3)
	assert.Equal(t, "salary", d.ByCategory[0].Category)
	assert.Equal(t, "rent", d.ByCategory[1].Category)
	assert.Equal(t, "groceries", d.ByCategory[2].Category)
	assert.Equal(t, "250.00", d.ByCategory[2].Total.StringFixed(2))
	assert.Equal(t, int64(5), d.ByCategory[2].Count)

	require.Len(t, d.ByMonth, 2)
	assert.Equal(t, "2026-01", d.ByMonth[0].Month)
	assert.Equal(t, "-150.50", d.ByMonth[0].Net.StringFixed(2))
	assert.Equal(t, "1700.50", d.ByMonth[1].Net.StringFixed(2))
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := BuildDashboard(day("2026-01-01"), day("2026-01-31"), nil)
	assert.NotNil(t, d.ByCategory)
	assert.NotNil(t, d.ByMonth)
	assert.True(t, d.Net.IsZero())
}

func TestSummarizeMoods(t *testing.T) {
	entries := []MoodEntry{
		{Mood: 5, EntryDate: NewDate(day("2026-03-10"))},
		{Mood: 4, EntryDate: NewDate(day("2026-03-09"))},
		{Mood: 3, EntryDate: NewDate(day("2026-03-08"))},
		{Mood: 1, EntryDate: NewDate(day("2026-03-06"))},
	}

	t.Run("Should count, average and streak from today", func(t *testing.T) {
		st := SummarizeMoods(entries, day("2026-03-01"), day("2026-03-10"), day("2026-03-10"))
		assert.Equal(t, 4, st.Count)
		assert.InDelta(t, 3.25, st.Average, 0.0001)
		assert.Equal(t, 1, st.Distribution["1"])
		assert.Equal(t, 0, st.Distribution["2"])
		assert.Equal(t, 3, st.Streak)
	})
	t.Run("Should anchor the streak on yesterday when today has no entry", func(t *testing.T) {
		st := SummarizeMoods(entries[1:], day("2026-03-01"), day("2026-03-10"), day("2026-03-10"))
		assert.Equal(t, 2, st.Streak)
	})
	t.Run("Should ignore entries outside the window for the average", func(t *testing.T) {
		st := SummarizeMoods(entries, day("2026-03-09"), day("2026-03-10"), day("2026-03-10"))
		assert.Equal(t, 2, st.Count)
		assert.InDelta(t, 4.5, st.Average, 0.0001)
	})
	t.Run("Should report zero for an empty journal", func(t *testing.T) {
		st := SummarizeMoods(nil, day("2026-03-01"), day("2026-03-10"), day("2026-03-10"))
		assert.Equal(t, 0, st.Count)
		assert.Equal(t, 0, st.Streak)
		assert.Len(t, st.Distribution, 5)
	})
}

func TestMergeIngredients(t *testing.T) {
	recipes := []Recipe{
		{
			Title:    "Tomato tart",
			Servings: 2,
			Ingredients: []Ingredient{
				{Name: "Tomato", Quantity: dec("2"), Unit: "pcs"},
				{Name: "flour", Quantity: dec("100"), Unit: "g"},
			},
		},
		{
			Title:    "Salad",
			Servings: 4,
			Ingredients: []Ingredient{
				{Name: " tomato ", Quantity: dec("4"), Unit: "PCS"},
			},
		},
	}

	t.Run("Should scale to servings and merge by name and unit", func(t *testing.T) {
		items := MergeIngredients(recipes, 4)
		require.Len(t, items, 2)
		assert.Equal(t, "flour", items[0].Name)
		assert.Equal(t, "200.00", items[0].Quantity.StringFixed(2))
		assert.Equal(t, "tomato", items[1].Name)
		assert.Equal(t, "pcs", items[1].Unit)
		assert.Equal(t, "8.00", items[1].Quantity.StringFixed(2))
		assert.Equal(t, []string{"Tomato tart", "Salad"}, items[1].Recipes)
	})
	t.Run("Should keep recipe quantities without servings", func(t *testing.T) {
		items := MergeIngredients(recipes, 0)
		require.Len(t, items, 2)
		assert.Equal(t, "6.00", items[1].Quantity.StringFixed(2))
		assert.NotNil(t, items[1].Products)
	})
}

func TestUser_PublicHidesEmail(t *testing.T) {
	u := User{ID: "u1", Email: "a@b.c", Name: "Ann"}
	p := u.Public()
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Ann", p.Name)
}

func TestDate(t *testing.T) {
	t.Run("Should serialise as a plain calendar day", func(t *testing.T) {
		tx := Transaction{OccurredOn: NewDate(time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC))}
		b, err := json.Marshal(tx)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"occurred_on":"2026-05-01"`)
	})

	t.Run("Should read back what it writes", func(t *testing.T) {
		var e MoodEntry
		require.NoError(t, json.Unmarshal([]byte(`{"entry_date":"2026-02-28"}`), &e))
		assert.True(t, e.EntryDate.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))

		b, err := json.Marshal(e.EntryDate)
		require.NoError(t, err)
		assert.JSONEq(t, `"2026-02-28"`, string(b))
	})

	t.Run("Should reject timestamps", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"2026-05-01T00:00:00Z"`), &d))
	})

	t.Run("Should treat null as the zero date", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.True(t, d.IsZero())
		b, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, "null", string(b))
	})

	t.Run("Should convert to and from pgtype.Date", func(t *testing.T) {
		d := NewDate(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
		v, err := d.DateValue()
		require.NoError(t, err)
		assert.True(t, v.Valid)

		var back Date
		require.NoError(t, back.ScanDate(v))
		assert.Equal(t, d, back)

		require.NoError(t, back.ScanDate(pgtype.Date{}))
		assert.True(t, back.IsZero())
		assert.Error(t, back.ScanDate(pgtype.Date{Valid: true, InfinityModifier: pgtype.Infinity}))
	})

	t.Run("Should scan driver values", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2026-01-02", d.String())
		require.NoError(t, d.Scan("2026-01-03"))
		assert.Equal(t, "2026-01-03", d.String())
		assert.Error(t, d.Scan(42))
	})
}
