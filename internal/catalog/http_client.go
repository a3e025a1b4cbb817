package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 5 * time.Second
)

// HTTPClient talks to the storefront API: GET /products/{id} and GET /stock/{id}.
// Both endpoints share one circuit breaker.
type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	sfg        singleflight.Group // collapses concurrent product lookups
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "catalog",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a missing product is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

type productDTO struct {
	ID    *int64   `json:"id"`
	Title string   `json:"title"`
	Price *float64 `json:"price"`
	Image string   `json:"image"`
}

type stockDTO struct {
	Amount *int `json:"amount"`
}

// Product fetches product metadata. Concurrent lookups of the same id share
// one request, which is detached from any single caller's cancellation; each
// caller still stops waiting when its own ctx is done.
func (c *HTTPClient) Product(ctx context.Context, productID int64) (*domain.Product, error) {
	key := strconv.FormatInt(productID, 10)
	ch := c.sfg.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchProduct(fetchCtx, productID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// callers may modify the result, so each gets its own copy
		p := *res.Val.(*domain.Product)
		return &p, nil
	}
}

func (c *HTTPClient) fetchProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	body, err := c.get(ctx, "/products/"+strconv.FormatInt(productID, 10))
	if err != nil {
		return nil, err
	}

	var dto productDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dto.ID == nil || dto.Price == nil {
		return nil, fmt.Errorf("%w: product %d is missing id or price", ErrMalformed, productID)
	}

	return &domain.Product{
		ID:    *dto.ID,
		Title: dto.Title,
		Price: *dto.Price,
		Image: dto.Image,
	}, nil
}

func (c *HTTPClient) Stock(ctx context.Context, productID int64) (*domain.Stock, error) {
	body, err := c.get(ctx, "/stock/"+strconv.FormatInt(productID, 10))
	if err != nil {
		return nil, err
	}

	var dto stockDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dto.Amount == nil {
		return nil, fmt.Errorf("%w: stock %d is missing amount", ErrMalformed, productID)
	}

	return &domain.Stock{
		ProductID: productID,
		Amount:    *dto.Amount,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %s %d", ErrUnexpectedStatus, path, resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog response: %w", err)
		}
		return body, nil
	})
}
