package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appsuite/internal/apperr"
	"appsuite/internal/auth"
	"appsuite/internal/models"
	"appsuite/internal/ratelimit"
	"appsuite/internal/store"
)

type userStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

type UserHandler struct {
	users   userStore
	tokens  *auth.Issuer
	limiter ratelimit.Limiter
}

func NewUserHandler(users userStore, tokens *auth.Issuer, limiter ratelimit.Limiter) *UserHandler {
	return &UserHandler{users: users, tokens: tokens, limiter: limiter}
}

func (h *UserHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/api/auth/register", h.Register)
	r.With(ratelimit.Middleware(h.limiter, nil)).Post("/api/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/api/users/me", h.Me)
		r.Put("/api/users/me", h.UpdateMe)
		r.Put("/api/users/me/password", h.ChangePassword)
		r.Delete("/api/users/me", h.DeleteMe)
		r.Get("/api/users/{id}", h.PublicProfile)
	})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apperr.Respond(w, r, fmt.Errorf("hashing password: %w", err))
		return
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			apperr.Respond(w, r, apperr.Conflict("email is already registered"))
			return
		}
		apperr.Respond(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, u)
	slog.Info("User registered", "user_id", u.ID)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		apperr.Respond(w, r, err)
		return
	}
	hash := ""
	if u != nil {
		hash = u.PasswordHash
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			apperr.Respond(w, r, err)
			return
		}
		slog.Warn("Failed login", "ip", ratelimit.ClientIP(r))
		apperr.Respond(w, r, apperr.Unauthorized("invalid email or password"))
		return
	}

	h.respondWithToken(w, r, http.StatusOK, u)
}

func (h *UserHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, exp, err := h.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		apperr.Respond(w, r, fmt.Errorf("issuing token: %w", err))
		return
	}
	writeJSON(w, status, authResponse{User: u, Token: token, ExpiresAt: exp})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), principal(r).UserID)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateMeRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), principal(r).UserID, strings.TrimSpace(req.Name), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			apperr.Respond(w, r, apperr.Conflict("email is already registered"))
			return
		}
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperr.Respond(w, r, err)
		return
	}

	ctx := r.Context()
	u, err := h.users.GetByID(ctx, principal(r).UserID)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			apperr.Respond(w, r, apperr.Unauthorized("current password is incorrect"))
			return
		}
		apperr.Respond(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		apperr.Respond(w, r, fmt.Errorf("hashing password: %w", err))
		return
	}
	if err := h.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id := principal(r).UserID
	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrForeignKey) {
			apperr.Respond(w, r, apperr.Conflict("account still has orders or products sold to others"))
			return
		}
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	slog.Info("User deleted", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apperr.Respond(w, r, err)
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		apperr.Respond(w, r, storeError(err, "user"))
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}
