package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceDraft = "draft"
	InvoiceSent  = "sent"
	InvoicePaid  = "paid"
	InvoiceVoid  = "void"
)

type Invoice struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Number        string          `json:"number" db:"number"`
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	CustomerEmail string          `json:"customer_email" db:"customer_email"`
	Currency      string          `json:"currency" db:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Status        string          `json:"status" db:"status"`
	IssuedOn      Date            `json:"issued_on" db:"issued_on"`
	DueOn         Date            `json:"due_on" db:"due_on"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	Items    []InvoiceItem   `json:"items" db:"-"`
	Subtotal decimal.Decimal `json:"subtotal" db:"-"`
	Tax      decimal.Decimal `json:"tax" db:"-"`
	Total    decimal.Decimal `json:"total" db:"-"`
}

type InvoiceItem struct {
	ID          string          `json:"id" db:"id"`
	InvoiceID   string          `json:"invoice_id" db:"invoice_id"`
	Position    int             `json:"position" db:"position"`
	Description string          `json:"description" db:"description"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (it InvoiceItem) LineTotal() decimal.Decimal {
	return it.Quantity.Mul(it.UnitPrice).Round(2)
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals fills Subtotal, Tax and Total from the items and tax rate.
func (inv *Invoice) ComputeTotals() {
	subtotal := decimal.Zero
	for _, it := range inv.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	inv.Subtotal = subtotal.Round(2)
	inv.Tax = subtotal.Mul(inv.TaxRate).Div(hundred).Round(2)
	inv.Total = inv.Subtotal.Add(inv.Tax)
}

// Editable invoices may have their fields and items replaced.
func (inv Invoice) Editable() bool { return inv.Status == InvoiceDraft }

// Deletable invoices were never sent or were voided.
func (inv Invoice) Deletable() bool {
	return inv.Status == InvoiceDraft || inv.Status == InvoiceVoid
}

var invoiceEdges = map[string][]string{
	InvoiceDraft: {InvoiceSent, InvoiceVoid},
	InvoiceSent:  {InvoicePaid, InvoiceVoid},
}

func ValidInvoiceTransition(from, to string) bool {
	for _, s := range invoiceEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}
