package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentRequiresPayment = "requires_payment"
	PaymentSucceeded       = "succeeded"
	PaymentCancelled       = "cancelled"
)

type PaymentIntent struct {
	ID             string    `json:"id" db:"id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	AmountMinor    int64     `json:"amount" db:"amount_minor"`
	Currency       string    `json:"currency" db:"currency"`
	Status         string    `json:"status" db:"status"`
	ClientSecret   string    `json:"client_secret" db:"client_secret"`
	IdempotencyKey *string   `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ToMinorUnits converts a two-decimal amount to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
