package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"appsuite/internal/config"
	"appsuite/internal/models"
	"appsuite/internal/resilience"
)

// ErrNotFound is returned when a downstream service answers 404.
var ErrNotFound = errors.New("resource not found upstream")

// StatusError is a non-2xx downstream answer.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

type ServiceClient struct {
	cfg        *config.Config
	client     *http.Client
	attempts   int
	retryDelay time.Duration
	popularCB  *resilience.CircuitBreaker
}

func NewServiceClient(cfg *config.Config) *ServiceClient {
	popularCB := resilience.NewCircuitBreaker("popular-products", 3, 10*time.Second)
	popularCB.FailOn(upstreamFailure)
	return &ServiceClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		attempts:   3,
		retryDelay: 200 * time.Millisecond,
		popularCB:  popularCB,
	}
}

// upstreamFailure reports whether err says the downstream is unhealthy.
// Transport errors and 5xx count; 4xx answers come from a working service,
// and a caller that gave up says nothing about it.
func upstreamFailure(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return true
}

// PopularBreaker exposes the breaker guarding popular product lookups.
func (s *ServiceClient) PopularBreaker() *resilience.CircuitBreaker {
	return s.popularCB
}

// fetchJSON GETs rawURL with the caller's token and decodes the body into target.
// 5xx and transport errors are retried; any other non-2xx status is final.
func (s *ServiceClient) fetchJSON(ctx context.Context, rawURL, token string, target any) error {
	return resilience.Retry(ctx, s.attempts, s.retryDelay, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &StatusError{URL: rawURL, Status: resp.StatusCode}
		}
		if resp.StatusCode == http.StatusNotFound {
			return resilience.Permanent(fmt.Errorf("%s: %w", rawURL, ErrNotFound))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resilience.Permanent(&StatusError{URL: rawURL, Status: resp.StatusCode})
		}

		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return resilience.Permanent(fmt.Errorf("decoding %s: %w", rawURL, err))
		}
		return nil
	})
}

// GetMe returns the user the token belongs to.
func (s *ServiceClient) GetMe(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := s.fetchJSON(ctx, s.cfg.UserServiceURL+"/api/users/me", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ServiceClient) GetOrders(ctx context.Context, token string, limit int) ([]models.Order, error) {
	u := fmt.Sprintf("%s/api/orders?limit=%d", s.cfg.OrderServiceURL, limit)
	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if err := s.fetchJSON(ctx, u, token, &body); err != nil {
		return nil, err
	}
	return body.Orders, nil
}

// GetPopularProducts goes through the circuit breaker so a failing product
// service is skipped until the breaker's timeout elapses.
func (s *ServiceClient) GetPopularProducts(ctx context.Context, token string, limit int) ([]models.PopularProduct, error) {
	u := fmt.Sprintf("%s/api/products/popular?limit=%d", s.cfg.ProductServiceURL, limit)

	result, err := s.popularCB.Execute(ctx, func(ctx context.Context) (any, error) {
		var body struct {
			Products []models.PopularProduct `json:"products"`
		}
		if err := s.fetchJSON(ctx, u, token, &body); err != nil {
			return nil, err
		}
		return body.Products, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]models.PopularProduct), nil
}

func (s *ServiceClient) GetRecipe(ctx context.Context, token, id string) (*models.Recipe, error) {
	u := fmt.Sprintf("%s/api/recipes/%s", s.cfg.RecipeServiceURL, url.PathEscape(id))
	var rc models.Recipe
	if err := s.fetchJSON(ctx, u, token, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// SearchProducts returns up to limit products whose name or description matches q.
func (s *ServiceClient) SearchProducts(ctx context.Context, token, q string, limit int) ([]models.Product, error) {
	v := url.Values{}
	v.Set("q", q)
	v.Set("limit", strconv.Itoa(limit))
	u := s.cfg.ProductServiceURL + "/api/products?" + v.Encode()

	var body struct {
		Products []models.Product `json:"products"`
	}
	if err := s.fetchJSON(ctx, u, token, &body); err != nil {
		return nil, err
	}
	return body.Products, nil
}
