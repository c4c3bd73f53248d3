package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Exclusive upper bounds of the NUMERIC(12,2) money and NUMERIC(12,3) quantity columns.
var (
	MaxMoney    = decimal.New(1, 10)
	MaxQuantity = decimal.New(1, 9)
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PublicUser is the profile other users are allowed to see.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
}

type Product struct {
	ID          string          `json:"id" db:"id"`
	SellerID    string          `json:"seller_id" db:"seller_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type PopularProduct struct {
	Product
	UnitsSold int64 `json:"units_sold" db:"units_sold"`
}

type CategoryCount struct {
	Category string `json:"category" db:"category"`
	Count    int64  `json:"count" db:"count"`
}

type Order struct {
	ID        string          `json:"id" db:"id"`
	BuyerID   string          `json:"buyer_id" db:"buyer_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	SellerID  string          `json:"seller_id" db:"seller_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Overview is the shopping assistant's landing payload.
type Overview struct {
	User            *User            `json:"user"`
	Orders          []Order          `json:"orders"`
	PopularProducts []PopularProduct `json:"popular_products"`
}
