package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appsuite/internal/apperr"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

// streakLookback bounds how far back stats look when counting the streak.
const streakLookback = 365

type moodStore interface {
	List(ctx context.Context, userID string, from, to time.Time, page store.Page) ([]models.MoodEntry, error)
	Get(ctx context.Context, id string) (*models.MoodEntry, error)
	Create(ctx context.Context, e *models.MoodEntry) error
	Update(ctx context.Context, e *models.MoodEntry) error
	Delete(ctx context.Context, id string) error
}

type JournalHandler struct {
	moods moodStore
	now   func() time.Time
}

func NewJournalHandler(moods moodStore) *JournalHandler {
	return &JournalHandler{moods: moods, now: time.Now}
}

func (h *JournalHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/moods", h.List)
		r.Post("/api/moods", h.Create)
		r.Get("/api/moods/stats", h.Stats)
		r.Get("/api/moods/{id}", h.Get)
		r.Put("/api/moods/{id}", h.Update)
		r.Delete("/api/moods/{id}", h.Delete)
	})
}

func (h *JournalHandler) today() time.Time {
	n := h.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

type moodRequest struct {
	Mood      int      `json:"mood" validate:"required,gte=1,lte=5"`
	Note      string   `json:"note" validate:"max=5000"`
	Tags      []string `json:"tags" validate:"max=20,dive,min=1,max=50"`
	EntryDate string   `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req moodRequest) apply(e *models.MoodEntry, today models.Date) {
	e.Mood = req.Mood
	e.Note = req.Note
	e.Tags = make([]string, 0, len(req.Tags))
	seen := make(map[string]bool, len(req.Tags))
	for _, t := range req.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		e.Tags = append(e.Tags, t)
	}
	e.EntryDate = today
	if req.EntryDate != "" {
		e.EntryDate = parseDate(req.EntryDate)
	}
}

func moodWriteError(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return apperr.Conflict("a mood entry already exists for this date")
	}
	return storeError(err, "mood entry")
}

func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}

	entries, err := h.moods.List(r.Context(), principal(r).UserID, from, to, page)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *JournalHandler) load(r *http.Request) (*models.MoodEntry, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	e, err := h.moods.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "mood entry")
	}
	if !principal(r).Owns(e.UserID) {
		return nil, apperr.Forbidden("not allowed to access this mood entry")
	}
	return e, nil
}

func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	e := &models.MoodEntry{ID: uuid.NewString(), UserID: principal(r).UserID}
	req.apply(e, models.NewDate(h.today()))
	if err := h.moods.Create(r.Context(), e); err != nil {
		apperr.Respond(w, r, moodWriteError(err))
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	e, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req moodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	keep := e.EntryDate
	req.apply(e, keep)
	if err := h.moods.Update(r.Context(), e); err != nil {
		apperr.Respond(w, r, moodWriteError(err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	e, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := h.moods.Delete(r.Context(), e.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "mood entry"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats summarizes the last `days` days ending today.
func (h *JournalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30, 1, 365)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	today := h.today()
	from := today.AddDate(0, 0, -(days - 1))

	entries, err := h.moods.List(r.Context(), principal(r).UserID, today.AddDate(0, 0, -streakLookback), today, store.Page{})
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SummarizeMoods(entries, from, today, today))
}
