package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"appsuite/internal/ratelimit"
)

func loginRouter(trusted ...string) http.Handler {
	r := NewRouter("test", nil, trusted...)
	r.With(ratelimit.Middleware(ratelimit.NewLocal(1), nil)).
		Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(r.RemoteAddr))
		})
	return r
}

func login(r http.Handler, remote string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remote
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Add(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRealIP(t *testing.T) {
	t.Run("Should ignore forwarding headers without trusted proxies", func(t *testing.T) {
		r := loginRouter()

		codes := make([]int, 0, 5)
		for i := 0; i < 5; i++ {
			rec := login(r, "198.51.100.7:40000",
				"X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i),
				"X-Real-IP", fmt.Sprintf("192.0.2.%d", i),
			)
			codes = append(codes, rec.Code)
		}

		assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
	})

	t.Run("Should ignore forwarding headers from an untrusted peer", func(t *testing.T) {
		r := loginRouter("10.0.0.0/8")

		assert.Equal(t, http.StatusOK, login(r, "198.51.100.7:40000", "X-Forwarded-For", "203.0.113.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, login(r, "198.51.100.7:40000", "X-Forwarded-For", "203.0.113.2").Code)
	})

	t.Run("Should key on the forwarded client behind a trusted proxy", func(t *testing.T) {
		r := loginRouter("10.0.0.0/8")

		rec := login(r, "10.1.2.3:5000", "X-Forwarded-For", "203.0.113.1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "203.0.113.1", rec.Body.String())

		assert.Equal(t, http.StatusOK, login(r, "10.1.2.3:5000", "X-Forwarded-For", "203.0.113.2").Code)
		assert.Equal(t, http.StatusTooManyRequests, login(r, "10.1.2.3:5000", "X-Forwarded-For", "203.0.113.2").Code)
	})

	t.Run("Should not let the client choose the leftmost hop", func(t *testing.T) {
		r := loginRouter("10.0.0.0/8")

		first := login(r, "10.1.2.3:5000", "X-Forwarded-For", "1.1.1.1, 203.0.113.9, 10.4.4.4")
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "203.0.113.9", first.Body.String())

		second := login(r, "10.1.2.3:5000", "X-Forwarded-For", "2.2.2.2, 203.0.113.9, 10.4.4.4")
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})

	t.Run("Should fall back to X-Real-IP from a trusted proxy", func(t *testing.T) {
		r := loginRouter("10.1.2.3")

		rec := login(r, "10.1.2.3:5000", "X-Real-IP", "203.0.113.50")
		assert.Equal(t, "203.0.113.50", rec.Body.String())
	})

	t.Run("Should keep the socket address for a malformed header", func(t *testing.T) {
		r := loginRouter("10.0.0.0/8")

		rec := login(r, "10.1.2.3:5000", "X-Forwarded-For", "not-an-ip")
		assert.Equal(t, "10.1.2.3:5000", rec.Body.String())
	})
}
