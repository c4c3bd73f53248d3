package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"appsuite/internal/apperr"
	"appsuite/internal/models"
)

var ErrMissingToken = errors.New("missing bearer token")

type Middleware struct {
	secretKey []byte
	issuer    string
	leeway    time.Duration
}

func NewMiddleware(secret, issuer string) *Middleware {
	return &Middleware{
		secretKey: []byte(secret),
		issuer:    issuer,
		leeway:    30 * time.Second,
	}
}

// ValidateToken rejects requests without a valid HS256 bearer token and puts
// the caller's Principal on the request context.
func (m *Middleware) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := BearerToken(r)
		if err != nil {
			apperr.Respond(w, r, apperr.Unauthorized(err.Error()))
			return
		}

		p, err := m.Parse(tokenString)
		if err != nil {
			slog.Warn("Invalid token attempt", "path", r.URL.Path, "error", err)
			apperr.Respond(w, r, apperr.Unauthorized("invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Parse verifies tokenString and returns the principal it names.
func (m *Middleware) Parse(tokenString string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}
