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

type appointmentStore interface {
	List(ctx context.Context, f store.AppointmentFilter) ([]models.Appointment, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, a *models.Appointment) error
	Update(ctx context.Context, a *models.Appointment) error
	Delete(ctx context.Context, id string) error
}

type AppointmentHandler struct {
	appointments appointmentStore
}

func NewAppointmentHandler(appointments appointmentStore) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

func (h *AppointmentHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/appointments", h.List)
		r.Post("/api/appointments", h.Create)
		r.Get("/api/appointments/{id}", h.Get)
		r.Put("/api/appointments/{id}", h.Update)
		r.Delete("/api/appointments/{id}", h.Delete)
	})
}

type appointmentRequest struct {
	Title    string    `json:"title" validate:"required,min=1,max=200"`
	Notes    string    `json:"notes" validate:"max=5000"`
	Location string    `json:"location" validate:"max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Status   string    `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
}

func (req appointmentRequest) check() error {
	fe := fieldErrors{}
	if !req.EndsAt.After(req.StartsAt) {
		fe.add("ends_at", "must be after starts_at")
	}
	return fe.err()
}

func (req appointmentRequest) apply(a *models.Appointment) {
	a.Title = strings.TrimSpace(req.Title)
	a.Notes = req.Notes
	a.Location = req.Location
	a.StartsAt = req.StartsAt.UTC()
	a.EndsAt = req.EndsAt.UTC()
	a.Status = req.Status
	if a.Status == "" {
		a.Status = models.AppointmentScheduled
	}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.AppointmentScheduled, models.AppointmentCompleted, models.AppointmentCancelled:
	default:
		apperr.Respond(w, r, apperr.BadRequest("unknown appointment status"))
		return
	}

	list, err := h.appointments.List(r.Context(), store.AppointmentFilter{
		UserID: principal(r).UserID,
		From:   from,
		To:     to,
		Status: status,
		Page:   page,
	})
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

func (h *AppointmentHandler) load(r *http.Request) (*models.Appointment, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	a, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		return nil, storeError(err, "appointment")
	}
	if !principal(r).Owns(a.UserID) {
		return nil, apperr.Forbidden("not allowed to access this appointment")
	}
	return a, nil
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func appointmentWriteError(err error) error {
	if errors.Is(err, store.ErrOverlap) {
		return apperr.Conflict("appointment overlaps another scheduled appointment")
	}
	return storeError(err, "appointment")
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	a := &models.Appointment{ID: uuid.NewString(), UserID: principal(r).UserID}
	req.apply(a)
	if err := h.appointments.Create(r.Context(), a); err != nil {
		apperr.Respond(w, r, appointmentWriteError(err))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	req.apply(a)
	if err := h.appointments.Update(r.Context(), a); err != nil {
		apperr.Respond(w, r, appointmentWriteError(err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, err := h.load(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	if err := h.appointments.Delete(r.Context(), a.ID); err != nil {
		apperr.Respond(w, r, storeError(err, "appointment"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
