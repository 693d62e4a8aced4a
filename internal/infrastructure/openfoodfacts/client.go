package openfoodfacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/observability"
)

// searchFields limits search results to what the normalizer reads
const searchFields = "code,product_name,nutriments"

// ClientConfig holds the catalog client settings
type ClientConfig struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client handles communication with the Open Food Facts API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
	metrics     *observability.Collector
}

// NewClient creates a new catalog client. Zero config values fall back to
// defaults; logger and metrics may be nil.
func NewClient(cfg ClientConfig, logger *zap.Logger, metrics *observability.Collector) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		// Open Food Facts asks for at most 100 product reads per minute
		cfg.RequestsPerSecond = 100.0 / 60.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "MoodBite/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("openfoodfacts")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openfoodfacts",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A missing product is a valid answer, not a failing catalog
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound)
		},
	})

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:     breaker,
		logger:      logger,
		metrics:     metrics,
	}
}

// doRequest executes an HTTP GET request and returns status and body
func (c *Client) doRequest(ctx context.Context, reqURL string) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrCatalogTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrCatalogTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrCatalogTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading body: %v", domain.ErrCatalogTransport, err)
	}

	return resp.StatusCode, body, nil
}

// execute runs fn through the circuit breaker, reporting an open breaker as a transport error
func (c *Client) execute(fn func() (any, error)) (any, error) {
	result, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogTransport, err)
	}
	return result, err
}

// Lookup fetches the raw product payload for a barcode. It issues a single
// request and never retries.
func (c *Client) Lookup(ctx context.Context, barcode string) (*domain.RawProductPayload, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		c.metrics.ObserveLookup(observability.OutcomeInvalid)
		return nil, fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}

	reqURL := fmt.Sprintf("%s/api/v2/product/%s", c.baseURL, url.PathEscape(barcode))
	c.logger.Debug("lookup", zap.String("barcode", barcode))

	result, err := c.execute(func() (any, error) {
		return c.fetchProduct(ctx, reqURL, barcode)
	})
	if err != nil {
		c.metrics.ObserveLookup(lookupOutcome(err))
		c.logger.Debug("lookup failed", zap.String("barcode", barcode), zap.Error(err))
		return nil, err
	}

	c.metrics.ObserveLookup(observability.OutcomeFound)
	return result.(*domain.RawProductPayload), nil
}

func (c *Client) fetchProduct(ctx context.Context, reqURL, barcode string) (*domain.RawProductPayload, error) {
	status, body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrCatalogTransport, status, truncate(body, 200))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.ErrProductNotFound
	}

	var payload domain.RawProductPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrCatalogTransport, err)
	}
	if payload.Product == nil {
		return nil, domain.ErrProductNotFound
	}
	if payload.Code == "" {
		payload.Code = barcode
	}

	return &payload, nil
}

// Search fetches one page of products from the catalog search endpoint
func (c *Client) Search(ctx context.Context, pageSize int) ([]domain.RawProductPayload, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive", domain.ErrInvalidRequest)
	}

	params := url.Values{}
	params.Add("page_size", strconv.Itoa(pageSize))
	params.Add("fields", searchFields)
	reqURL := fmt.Sprintf("%s/api/v2/search?%s", c.baseURL, params.Encode())

	result, err := c.execute(func() (any, error) {
		status, body, err := c.doRequest(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrCatalogTransport, status, truncate(body, 200))
		}

		var searchResp domain.RawSearchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrCatalogTransport, err)
		}
		return &searchResp, nil
	})
	if err != nil {
		c.logger.Warn("search failed", zap.Int("pageSize", pageSize), zap.Error(err))
		return nil, err
	}

	searchResp := result.(*domain.RawSearchResponse)
	payloads := make([]domain.RawProductPayload, 0, len(searchResp.Products))
	for _, product := range searchResp.Products {
		payloads = append(payloads, PayloadFromSearchResult(product))
	}

	c.logger.Debug("search returned products", zap.Int("count", len(payloads)))
	return payloads, nil
}

func lookupOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeTransport
	}
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
