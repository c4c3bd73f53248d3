package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"appsuite/internal/models"
)

var invoiceColumns = []string{
	"id", "user_id", "number", "customer_name", "customer_email", "currency", "tax_rate", "status",
	"issued_on", "due_on", "notes", "created_at", "updated_at",
}

var invoiceItemColumns = []string{"id", "invoice_id", "position", "description", "quantity", "unit_price"}

type InvoiceRepo struct {
	db DBInterface
}

func NewInvoiceRepo(db DBInterface) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

func selectInvoiceBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(invoiceColumns...).
		From("invoices").
		PlaceholderFormat(squirrel.Dollar)
}

// List returns the user's invoices with items and totals, newest issue date first.
func (r *InvoiceRepo) List(ctx context.Context, userID, status string, page Page) ([]models.Invoice, error) {
	qb := selectInvoiceBuilder().
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("issued_on DESC", "created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset)
	if status != "" {
		qb = qb.Where(squirrel.Eq{"status": status})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	invoices := []models.Invoice{}
	if err := pgxscan.Select(ctx, r.db, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("scanning invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := r.items(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
		if invoices[i].Items == nil {
			invoices[i].Items = []models.InvoiceItem{}
		}
		invoices[i].ComputeTotals()
	}
	return invoices, nil
}

func (r *InvoiceRepo) Get(ctx context.Context, id string) (*models.Invoice, error) {
	return r.get(ctx, r.db, id)
}

func (r *InvoiceRepo) get(ctx context.Context, q pgxscan.Querier, id string) (*models.Invoice, error) {
	query, args, err := selectInvoiceBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var inv models.Invoice
	if err := pgxscan.Get(ctx, q, &inv, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}
	items, err := r.items(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	inv.Items = items[id]
	if inv.Items == nil {
		inv.Items = []models.InvoiceItem{}
	}
	inv.ComputeTotals()
	return &inv, nil
}

func (r *InvoiceRepo) items(ctx context.Context, q pgxscan.Querier, invoiceIDs []string) (map[string][]models.InvoiceItem, error) {
	query, args, err := squirrel.Select(invoiceItemColumns...).
		From("invoice_items").
		Where(squirrel.Eq{"invoice_id": invoiceIDs}).
		OrderBy("invoice_id", "position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building items query: %w", err)
	}
	var rows []models.InvoiceItem
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning invoice items: %w", err)
	}
	out := make(map[string][]models.InvoiceItem, len(invoiceIDs))
	for _, it := range rows {
		out[it.InvoiceID] = append(out[it.InvoiceID], it)
	}
	return out, nil
}

const (
	invoiceNumberConstraint = "invoices_number_key"
	invoiceNumberAttempts   = 5
)

var errNumberTaken = errors.New("invoice number taken")

// Create stores a draft invoice and its items. The number is generated from
// the id and regenerated from a fresh random suffix if another invoice holds it.
func (r *InvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	inv.Status = models.InvoiceDraft
	inv.Currency = strings.ToLower(inv.Currency)

	seed := inv.ID
	for attempt := 1; ; attempt++ {
		inv.Number = InvoiceNumber(inv.IssuedOn.Time, seed)
		err := r.insert(ctx, inv)
		if errors.Is(err, errNumberTaken) {
			if attempt < invoiceNumberAttempts {
				seed = uuid.NewString()
				continue
			}
			return fmt.Errorf("inserting invoice: %w", ErrConflict)
		}
		if err != nil {
			return err
		}
		inv.ComputeTotals()
		return nil
	}
}

func (r *InvoiceRepo) insert(ctx context.Context, inv *models.Invoice) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		query, args, err := squirrel.Insert("invoices").
			Columns("id", "user_id", "number", "customer_name", "customer_email", "currency", "tax_rate",
				"status", "issued_on", "due_on", "notes").
			Values(inv.ID, inv.UserID, inv.Number, inv.CustomerName, inv.CustomerEmail, inv.Currency, inv.TaxRate,
				inv.Status, inv.IssuedOn, inv.DueOn, inv.Notes).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			if pe, ok := AsPgError(err); ok && pe.Code == UniqueViolationCode && pe.ConstraintName == invoiceNumberConstraint {
				return errNumberTaken
			}
			return fmt.Errorf("inserting invoice: %w", mapError(err))
		}
		return insertInvoiceItems(ctx, tx, inv)
	})
}

// Update replaces the fields and items of a draft invoice. Invoices that are
// no longer drafts return ErrStateChanged.
func (r *InvoiceRepo) Update(ctx context.Context, inv *models.Invoice) error {
	inv.Currency = strings.ToLower(inv.Currency)
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		query, args, err := squirrel.Update("invoices").
			Set("customer_name", inv.CustomerName).
			Set("customer_email", inv.CustomerEmail).
			Set("currency", inv.Currency).
			Set("tax_rate", inv.TaxRate).
			Set("issued_on", inv.IssuedOn).
			Set("due_on", inv.DueOn).
			Set("notes", inv.Notes).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": inv.ID, "status": models.InvoiceDraft}).
			Suffix("RETURNING number, status, created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building update query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).
			Scan(&inv.Number, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			if pgxscan.NotFound(err) {
				return ErrStateChanged
			}
			return fmt.Errorf("updating invoice: %w", mapError(err))
		}
		if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", inv.ID); err != nil {
			return fmt.Errorf("clearing invoice items: %w", err)
		}
		return insertInvoiceItems(ctx, tx, inv)
	})
	if err != nil {
		return err
	}
	inv.ComputeTotals()
	return nil
}

// UpdateStatus moves the invoice from→to only if it is still in from.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id, from, to string) (*models.Invoice, error) {
	var out *models.Invoice
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
			to, id, from,
		)
		if err != nil {
			return fmt.Errorf("updating invoice status: %w", mapError(err))
		}
		if tag.RowsAffected() == 0 {
			return ErrStateChanged
		}
		out, err = r.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an invoice that is a draft or void.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	err := deleteWhere(ctx, r.db, "invoices", squirrel.Eq{
		"id":     id,
		"status": []string{models.InvoiceDraft, models.InvoiceVoid},
	})
	if errors.Is(err, ErrNotFound) {
		return ErrStateChanged
	}
	return err
}

func insertInvoiceItems(ctx context.Context, tx pgx.Tx, inv *models.Invoice) error {
	if len(inv.Items) == 0 {
		return nil
	}
	ib := squirrel.Insert("invoice_items").
		Columns(invoiceItemColumns...).
		PlaceholderFormat(squirrel.Dollar)
	for i := range inv.Items {
		it := &inv.Items[i]
		it.ID = uuid.NewString()
		it.InvoiceID = inv.ID
		it.Position = i + 1
		ib = ib.Values(it.ID, it.InvoiceID, it.Position, it.Description, it.Quantity, it.UnitPrice)
	}
	query, args, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("building items insert: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting invoice items: %w", mapError(err))
	}
	return nil
}

// InvoiceNumber formats INV-YYYYMMDD-XXXXXX from the issue date and the invoice id.
func InvoiceNumber(issued time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("INV-%s-%s", issued.Format("20060102"), suffix)
}
