// Package invoicepdf renders invoices as single-document PDFs.
package invoicepdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"appsuite/internal/models"
)

const (
	lineHeight = 7.0
	colDesc    = 95.0
	colQty     = 25.0
	colPrice   = 30.0
	colTotal   = 30.0
)

// Render writes inv as an A4 PDF to w. Totals are recomputed from the items.
func Render(w io.Writer, inv *models.Invoice) error {
	inv.ComputeTotals()

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.SetCreator("appsuite", true)
	pdf.SetCreationDate(inv.CreatedAt)
	pdf.SetModificationDate(inv.UpdatedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Number: "+inv.Number, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+strings.ToUpper(inv.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued: "+inv.IssuedOn.Format(time.DateOnly), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Due: "+inv.DueOn.Format(time.DateOnly), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(inv.CustomerName), "", 1, "L", false, 0, "")
	if inv.CustomerEmail != "" {
		pdf.CellFormat(0, 6, inv.CustomerEmail, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(colDesc, lineHeight, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colQty, lineHeight, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colPrice, lineHeight, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colTotal, lineHeight, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(colDesc, lineHeight, tr(truncate(it.Description, 60)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, lineHeight, it.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colPrice, lineHeight, it.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colTotal, lineHeight, it.LineTotal().StringFixed(2), "1", 1, "R", false, 0, "")
	}

	currency := strings.ToUpper(inv.Currency)
	summary := []struct {
		label string
		value string
	}{
		{"Subtotal", inv.Subtotal.StringFixed(2)},
		{fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), inv.Tax.StringFixed(2)},
		{"Total " + currency, inv.Total.StringFixed(2)},
	}
	for i, row := range summary {
		if i == len(summary)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(colDesc+colQty, lineHeight, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(colPrice, lineHeight, row.label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(colTotal, lineHeight, row.value, "1", 1, "R", false, 0, "")
	}

	if inv.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
