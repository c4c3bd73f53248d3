package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  = "income"
	KindExpense = "expense"
)

type Transaction struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Kind        string          `json:"kind" db:"kind"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Category    string          `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	OccurredOn  Date            `json:"occurred_on" db:"occurred_on"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// TransactionAggregate is one (month, category, kind) bucket as returned by the database.
type TransactionAggregate struct {
	Month    string          `db:"month"`
	Category string          `db:"category"`
	Kind     string          `db:"kind"`
	Total    decimal.Decimal `db:"total"`
	Count    int64           `db:"count"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Kind     string          `json:"kind"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type MonthTotal struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type Dashboard struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	ByCategory []CategoryTotal `json:"by_category"`
	ByMonth    []MonthTotal    `json:"by_month"`
}

// BuildDashboard folds aggregate buckets into the dashboard view.
func BuildDashboard(from, to time.Time, rows []TransactionAggregate) Dashboard {
	d := Dashboard{
		From:       from.Format(time.DateOnly),
		To:         to.Format(time.DateOnly),
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		ByCategory: []CategoryTotal{},
		ByMonth:    []MonthTotal{},
	}

	type catKey struct{ category, kind string }
	cats := make(map[catKey]*CategoryTotal)
	months := make(map[string]*MonthTotal)

	for _, r := range rows {
		ck := catKey{r.Category, r.Kind}
		ct, ok := cats[ck]
		if !ok {
			ct = &CategoryTotal{Category: r.Category, Kind: r.Kind, Total: decimal.Zero}
			cats[ck] = ct
		}
		ct.Total = ct.Total.Add(r.Total)
		ct.Count += r.Count

		mt, ok := months[r.Month]
		if !ok {
			mt = &MonthTotal{Month: r.Month, Income: decimal.Zero, Expense: decimal.Zero}
			months[r.Month] = mt
		}

		switch r.Kind {
		case KindIncome:
			d.Income = d.Income.Add(r.Total)
			mt.Income = mt.Income.Add(r.Total)
		case KindExpense:
			d.Expense = d.Expense.Add(r.Total)
			mt.Expense = mt.Expense.Add(r.Total)
		}
	}
	d.Net = d.Income.Sub(d.Expense)

	for _, ct := range cats {
		d.ByCategory = append(d.ByCategory, *ct)
	}
	sort.Slice(d.ByCategory, func(i, j int) bool {
		a, b := d.ByCategory[i], d.ByCategory[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Kind < b.Kind
	})

	for _, mt := range months {
		mt.Net = mt.Income.Sub(mt.Expense)
		d.ByMonth = append(d.ByMonth, *mt)
	}
	sort.Slice(d.ByMonth, func(i, j int) bool { return d.ByMonth[i].Month < d.ByMonth[j].Month })

	return d
}
