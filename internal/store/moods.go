package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"appsuite/internal/models"
)

var moodColumns = []string{"id", "user_id", "mood", "note", "tags", "entry_date", "created_at", "updated_at"}

type MoodRepo struct {
	db DBInterface
}

func NewMoodRepo(db DBInterface) *MoodRepo {
	return &MoodRepo{db: db}
}

func selectMoodBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select(moodColumns...).
		From("mood_entries").
		PlaceholderFormat(squirrel.Dollar)
}

// List returns entries dated within [from, to], newest first. Zero bounds are open.
func (r *MoodRepo) List(ctx context.Context, userID string, from, to time.Time, page Page) ([]models.MoodEntry, error) {
	qb := selectMoodBuilder().
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("entry_date DESC").
		Offset(page.Offset)
	if page.Limit > 0 {
		qb = qb.Limit(page.Limit)
	}
	if !from.IsZero() {
		qb = qb.Where(squirrel.GtOrEq{"entry_date": from})
	}
	if !to.IsZero() {
		qb = qb.Where(squirrel.LtOrEq{"entry_date": to})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	out := []models.MoodEntry{}
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("scanning mood entries: %w", err)
	}
	return out, nil
}

func (r *MoodRepo) Get(ctx context.Context, id string) (*models.MoodEntry, error) {
	query, args, err := selectMoodBuilder().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var e models.MoodEntry
	if err := pgxscan.Get(ctx, r.db, &e, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning mood entry: %w", err)
	}
	return &e, nil
}

// Create inserts e. A second entry for the same day returns ErrConflict.
func (r *MoodRepo) Create(ctx context.Context, e *models.MoodEntry) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	query, args, err := squirrel.Insert("mood_entries").
		Columns("id", "user_id", "mood", "note", "tags", "entry_date").
		Values(e.ID, e.UserID, e.Mood, e.Note, e.Tags, e.EntryDate).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("inserting mood entry: %w", mapError(err))
	}
	return nil
}

func (r *MoodRepo) Update(ctx context.Context, e *models.MoodEntry) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	query, args, err := squirrel.Update("mood_entries").
		Set("mood", e.Mood).
		Set("note", e.Note).
		Set("tags", e.Tags).
		Set("entry_date", e.EntryDate).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": e.ID}).
		Suffix("RETURNING created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		if pgxscan.NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("updating mood entry: %w", mapError(err))
	}
	return nil
}

func (r *MoodRepo) Delete(ctx context.Context, id string) error {
	return deleteWhere(ctx, r.db, "mood_entries", squirrel.Eq{"id": id})
}
