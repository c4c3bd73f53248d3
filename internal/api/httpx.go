package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"appsuite/internal/apperr"
	"appsuite/internal/auth"
	"appsuite/internal/models"
	"appsuite/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	maxBodyBytes = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode error", "error", err)
	}
}

// decodeJSON reads exactly one JSON value from the body into dst and runs
// its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is empty")
		}
		return apperr.BadRequest(fmt.Sprintf("malformed JSON: %v", err))
	}
	if dec.More() {
		return apperr.BadRequest("request body must contain a single JSON object")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return apperr.Validation(fields)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a UUID"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match the layout " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	}
	return "failed the " + fe.Tag() + " check"
}

// fieldErrors collects checks the validate tags cannot express.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// numeric flags v when it needs more than places decimals or is not below max.
func (f fieldErrors) numeric(field string, v decimal.Decimal, places int32, max decimal.Decimal) {
	if !v.Equal(v.Truncate(places)) {
		f.add(field, fmt.Sprintf("must have at most %d decimal places", places))
	}
	if !v.LessThan(max) {
		f.add(field, "must be less than "+max.String())
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(f)
}

func parsePage(r *http.Request) (store.Page, error) {
	limit, err := queryInt(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return store.Page{}, err
	}
	offset, err := queryInt(r, "offset", 0, 0, -1)
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Limit: uint64(limit), Offset: uint64(offset)}, nil
}

// queryInt parses an integer query parameter. max < 0 means unbounded.
func queryInt(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || (max >= 0 && n > max) {
		if max >= 0 {
			return 0, apperr.BadRequest(fmt.Sprintf("%s must be an integer between %d and %d", name, min, max))
		}
		return 0, apperr.BadRequest(fmt.Sprintf("%s must be an integer >= %d", name, min))
	}
	return n, nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.BadRequest(name + " must be a date (YYYY-MM-DD)")
	}
	return t, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.BadRequest(name + " must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

// pathID returns the {id} URL parameter, rejecting anything that is not a UUID.
func pathID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.BadRequest("id must be a UUID")
	}
	return id.String(), nil
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// parseDate expects s to have passed the datetime=2006-01-02 tag.
func parseDate(s string) models.Date {
	d, _ := models.ParseDate(s)
	return d
}

// storeError maps repository sentinels onto HTTP errors; what names the resource.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, store.ErrForeignKey):
		return apperr.Conflict(what + " is referenced by other records")
	case errors.Is(err, store.ErrCheck):
		return apperr.BadRequest(what + " violates a constraint")
	case errors.Is(err, store.ErrOutOfRange):
		return apperr.BadRequest(what + " has a value out of range")
	case errors.Is(err, store.ErrStateChanged):
		return apperr.Conflict(what + " was modified concurrently or is in the wrong state")
	case errors.Is(err, store.ErrNotOwner):
		return apperr.Forbidden("not allowed to access this " + what)
	}
	return err
}
