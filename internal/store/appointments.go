package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"appsuite/internal/models"
)

var appointmentColumns = []string{
	"id", "user_id", "title", "notes", "location", "starts_at", "ends_at", "status", "created_at", "updated_at",
}

type AppointmentFilter struct {
	UserID string
	From   time.Time
	To     time.Time
	Status string
	Page
}

type AppointmentRepo struct {
	db DBInterface
}

func NewAppointmentRepo(db DBInterface) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func selectAppointmentBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(appointmentColumns...).
		From("appointments").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *AppointmentRepo) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	qb := selectAppointmentBuilder().
		Where(squirrel.Eq{"user_id": f.UserID}).
		OrderBy("starts_at", "id").
		Limit(f.Limit).
		Offset(f.Offset)
	if !f.From.IsZero() {
		qb = qb.Where(squirrel.GtOrEq{"ends_at": f.From})
	}
	if !f.To.IsZero() {
		qb = qb.Where(squirrel.LtOrEq{"starts_at": f.To})
	}
	if f.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": f.Status})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	out := []models.Appointment{}
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("scanning appointments: %w", err)
	}
	return out, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id string) (*models.Appointment, error) {
	query, args, err := selectAppointmentBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var a models.Appointment
	if err := pgxscan.Get(ctx, r.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning appointment: %w", err)
	}
	return &a, nil
}

// Create inserts a, rejecting scheduled appointments that overlap another
// scheduled appointment of the same user with ErrOverlap.
func (r *AppointmentRepo) Create(ctx context.Context, a *models.Appointment) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := checkOverlap(ctx, tx, a); err != nil {
			return err
		}
		query, args, err := squirrel.Insert("appointments").
			Columns("id", "user_id", "title", "notes", "location", "starts_at", "ends_at", "status").
			Values(a.ID, a.UserID, a.Title, a.Notes, a.Location, a.StartsAt, a.EndsAt, a.Status).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("inserting appointment: %w", mapError(err))
		}
		return nil
	})
}

func (r *AppointmentRepo) Update(ctx context.Context, a *models.Appointment) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := checkOverlap(ctx, tx, a); err != nil {
			return err
		}
		query, args, err := squirrel.Update("appointments").
			Set("title", a.Title).
			Set("notes", a.Notes).
			Set("location", a.Location).
			Set("starts_at", a.StartsAt).
			Set("ends_at", a.EndsAt).
			Set("status", a.Status).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": a.ID}).
			Suffix("RETURNING created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building update query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
			if pgxscan.NotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("updating appointment: %w", mapError(err))
		}
		return nil
	})
}

func (r *AppointmentRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "appointments", squirrel.Eq{"id": id})
}

// checkOverlap serialises writers per user with an advisory lock held until
// the transaction ends, then looks for a conflicting scheduled appointment.
func checkOverlap(ctx context.Context, tx pgx.Tx, a *models.Appointment) error {
	if a.Status != models.AppointmentScheduled {
		return nil
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "appointments:"+a.UserID); err != nil {
		return fmt.Errorf("locking schedule: %w", err)
	}

	query, args, err := squirrel.Select("COUNT(*)").
		From("appointments").
		Where(squirrel.Eq{"user_id": a.UserID, "status": models.AppointmentScheduled}).
		Where(squirrel.NotEq{"id": a.ID}).
		Where(squirrel.Lt{"starts_at": a.EndsAt}).
		Where(squirrel.Gt{"ends_at": a.StartsAt}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building overlap query: %w", err)
	}
	var n int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return fmt.Errorf("checking overlap: %w", err)
	}
	if n > 0 {
		return ErrOverlap
	}
	return nil
}
