package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"appsuite/internal/models"
)

var userColumns = []string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}

// Page bounds a list query.
type Page struct {
	Limit  uint64
	Offset uint64
}

type UserRepo struct {
	db DBInterface
}

func NewUserRepo(db DBInterface) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts u, normalising the email. A taken email returns ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)
	query, args, err := squirrel.Insert("users").
		Columns("id", "email", "name", "password_hash", "role").
		Values(u.ID, u.Email, u.Name, u.PasswordHash, u.Role).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("inserting user: %w", mapError(err))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getWhere(ctx, squirrel.Eq{"id": id})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getWhere(ctx, squirrel.Eq{"lower(email)": normalizeEmail(email)})
}

func (r *UserRepo) getWhere(ctx context.Context, pred squirrel.Sqlizer) (*models.User, error) {
	query, args, err := squirrel.Select(userColumns...).
		From("users").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var u models.User
	if err := pgxscan.Get(ctx, r.db, &u, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// UpdateProfile changes name and email and returns the stored row.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error) {
	query, args, err := squirrel.Update("users").
		Set("name", name).
		Set("email", normalizeEmail(email)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update query: %w", err)
	}
	var u models.User
	if err := pgxscan.Get(ctx, r.db, &u, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating user: %w", mapError(err))
	}
	return &u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	query, args, err := squirrel.Update("users").
		Set("password_hash", hash).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user. Users with orders or sold products get ErrForeignKey.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "users", squirrel.Eq{"id": id})
}

func deleteWhere(ctx context.Context, db DBInterface, table string, pred squirrel.Sqlizer) error {
	query, args, err := squirrel.Delete(table).
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
