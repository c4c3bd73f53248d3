package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"appsuite/internal/auth"
	"appsuite/internal/models"
)

const (
	aliceID = "0b6d8f1a-3c2e-4f5a-9b7c-1d2e3f4a5b6c"
	bobID   = "7e8f9a0b-1c2d-4e3f-8a9b-0c1d2e3f4a5b"
	adminID = "f0e1d2c3-b4a5-4968-8776-655443322110"
	otherID = "12345678-9abc-4def-8123-456789abcdef"
)

var (
	alice = auth.Principal{UserID: aliceID, Email: "alice@example.com", Role: models.RoleUser}
	bob   = auth.Principal{UserID: bobID, Email: "bob@example.com", Role: models.RoleUser}
	admin = auth.Principal{UserID: adminID, Email: "root@example.com", Role: models.RoleAdmin}
)

type routable interface {
	Routes(r chi.Router, requireAuth func(http.Handler) http.Handler)
}

// asUser stands in for the JWT middleware and authenticates every request as p.
func asUser(p auth.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func newRouter(h routable, p auth.Principal) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r, asUser(p))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
