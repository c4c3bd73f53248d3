package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"appsuite/internal/apperr"
	"appsuite/internal/auth"
	"appsuite/internal/models"
	"appsuite/internal/ratelimit"
	"appsuite/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newUserHandler(users *mockUserStore, perMinute int) *UserHandler {
	return NewUserHandler(users, auth.NewIssuer(testSecret, "appsuite", time.Hour), ratelimit.NewLocal(perMinute))
}

func TestUserHandler_Register(t *testing.T) {
	t.Run("Should create the user and return a token", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "alice@example.com" && u.Role == models.RoleUser && u.PasswordHash != "correct horse"
		})).Return(nil).Once()
		r := newRouter(newUserHandler(users, 10), alice)

		rec := do(t, r, http.MethodPost, "/api/auth/register",
			`{"email":" Alice@Example.com ","name":"Alice","password":"correct horse"}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody[authResponse](t, rec)
		assert.Equal(t, "alice@example.com", body.User.Email)
		assert.NotEmpty(t, body.Token)
		assert.NotContains(t, rec.Body.String(), "password")

		p, err := auth.NewMiddleware(testSecret, "appsuite").Parse(body.Token)
		require.NoError(t, err)
		assert.Equal(t, body.User.ID, p.UserID)
		users.AssertExpectations(t)
	})

	t.Run("Should report every invalid field", func(t *testing.T) {
		r := newRouter(newUserHandler(&mockUserStore{}, 10), alice)

		rec := do(t, r, http.MethodPost, "/api/auth/register", `{"email":"nope","name":"A","password":"short"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, apperr.CodeValidation, body.Error.Code)
		assert.Contains(t, body.Error.Details, "email")
		assert.Contains(t, body.Error.Details, "password")
		assert.NotContains(t, body.Error.Details, "name")
	})

	t.Run("Should reject unknown fields", func(t *testing.T) {
		r := newRouter(newUserHandler(&mockUserStore{}, 10), alice)

		rec := do(t, r, http.MethodPost, "/api/auth/register",
			`{"email":"a@example.com","name":"A","password":"long enough","role":"admin"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperr.CodeBadRequest, decodeError(t, rec).Error.Code)
	})

	t.Run("Should answer 409 for a registered email", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("Create", mock.Anything, mock.Anything).Return(store.ErrConflict)
		r := newRouter(newUserHandler(users, 10), alice)

		rec := do(t, r, http.MethodPost, "/api/auth/register",
			`{"email":"alice@example.com","name":"Alice","password":"correct horse"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestUserHandler_Login(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	stored := &models.User{ID: aliceID, Email: "alice@example.com", Name: "Alice", Role: models.RoleUser, PasswordHash: hash}

	t.Run("Should issue a token for valid credentials", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
		r := newRouter(newUserHandler(users, 10), alice)

		rec := do(t, r, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"correct horse"}`)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, aliceID, decodeBody[authResponse](t, rec).User.ID)
	})

	t.Run("Should answer the same 401 for a wrong password and an unknown email", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetByEmail", mock.Anything, "alice@example.com").Return(stored, nil)
		users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, store.ErrNotFound)
		r := newRouter(newUserHandler(users, 10), alice)

		wrong := do(t, r, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"battery staple"}`)
		ghost := do(t, r, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"battery staple"}`)

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, ghost.Code)
		assert.Equal(t, decodeError(t, wrong).Error.Message, decodeError(t, ghost).Error.Message)
	})

	t.Run("Should throttle repeated attempts", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)
		r := newRouter(newUserHandler(users, 1), alice)

		first := do(t, r, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"x"}`)
		second := do(t, r, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"x"}`)

		assert.Equal(t, http.StatusUnauthorized, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "60", second.Header().Get("Retry-After"))
	})
}

func TestUserHandler_Profile(t *testing.T) {
	u := &models.User{ID: bobID, Email: "bob@example.com", Name: "Bob", Role: models.RoleUser}

	t.Run("Should hide the email on public profiles", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetByID", mock.Anything, bobID).Return(u, nil)
		r := newRouter(newUserHandler(users, 10), alice)

		rec := do(t, r, http.MethodGet, "/api/users/"+bobID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"Bob"`)
		assert.NotContains(t, rec.Body.String(), "bob@example.com")
	})

	t.Run("Should reject an id that is not a UUID", func(t *testing.T) {
		r := newRouter(newUserHandler(&mockUserStore{}, 10), alice)

		rec := do(t, r, http.MethodGet, "/api/users/42", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should resolve me from the token subject", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetByID", mock.Anything, bobID).Return(u, nil)
		r := newRouter(newUserHandler(users, 10), bob)

		rec := do(t, r, http.MethodGet, "/api/users/me", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "bob@example.com")
	})

	t.Run("Should refuse to delete an account that still has orders", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("Delete", mock.Anything, bobID).Return(store.ErrForeignKey)
		r := newRouter(newUserHandler(users, 10), bob)

		rec := do(t, r, http.MethodDelete, "/api/users/me", "")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Should require the current password to change it", func(t *testing.T) {
		hash, err := auth.HashPassword("correct horse")
		require.NoError(t, err)
		users := &mockUserStore{}
		users.On("GetByID", mock.Anything, bobID).Return(&models.User{ID: bobID, PasswordHash: hash}, nil)
		r := newRouter(newUserHandler(users, 10), bob)

		rec := do(t, r, http.MethodPut, "/api/users/me/password",
			`{"current_password":"wrong one","new_password":"a new password"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}
