package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storefront/menu/internal/config"
	"storefront/menu/internal/domain"
	"storefront/menu/internal/endpoint"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrNoEndpoint  = errors.New("no backend endpoint configured")
)

// failureThreshold is the number of consecutive failed fetches that opens the breaker
const failureThreshold = 3

type StorefrontClient interface {
	ListSubcategories(ctx context.Context) ([]domain.Subcategory, error)
	Suggest(ctx context.Context, query string) ([]domain.Suggestion, error)
}

type storefrontClient struct {
	rl         ratelimit.Limiter
	config     config.BackendConfig
	httpClient *resty.Client
	endpoints  endpoint.Pool
	timeout    time.Duration

	// Circuit breaker for a failing backend
	circuitBreakerMutex sync.RWMutex
	failures            int
	openUntil           time.Time
	circuitBreakerDelay time.Duration
}

func NewStorefrontClient(cfg config.BackendConfig, endpoints endpoint.Pool) StorefrontClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(max(0, cfg.MaxRetries)).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "storefront-menu/1.0")

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	delay := time.Duration(cfg.CircuitBreakerCooldown) * time.Second
	if delay <= 0 {
		delay = time.Minute
	}

	return &storefrontClient{
		rl:                  rl,
		config:              cfg,
		httpClient:          client,
		endpoints:           endpoints,
		timeout:             timeout,
		circuitBreakerDelay: delay,
	}
}

func (c *storefrontClient) ListSubcategories(ctx context.Context) ([]domain.Subcategory, error) {
	body, err := c.fetchJSON(ctx, c.config.SubcategoriesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subcategories: %w", err)
	}

	records, err := domain.DecodeSubcategories(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subcategories: %w", err)
	}

	log.Debugf("Fetched %d subcategories", len(records))
	return records, nil
}

func (c *storefrontClient) Suggest(ctx context.Context, query string) ([]domain.Suggestion, error) {
	body, err := c.fetchJSON(ctx, c.config.SuggestPath, map[string]string{"q": query})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch suggestions for %q: %w", query, err)
	}

	suggestions, err := domain.DecodeSuggestions(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}

	return suggestions, nil
}

func (c *storefrontClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.openUntil)
	wasTriggered := !c.openUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		if !c.openUntil.IsZero() && now.After(c.openUntil) {
			c.openUntil = time.Time{}
			c.failures = 0
			log.Infof("✅ Circuit breaker closed - backend requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *storefrontClient) recordFailure() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.failures++
	if c.failures < failureThreshold {
		return
	}

	c.openUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Circuit breaker opened after %d failures, backend requests disabled until %v",
		c.failures, c.openUntil.Format("15:04:05"))
}

func (c *storefrontClient) recordSuccess() {
	c.circuitBreakerMutex.Lock()
	c.failures = 0
	c.circuitBreakerMutex.Unlock()
}

func (c *storefrontClient) remainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.openUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *storefrontClient) fetchJSON(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.remainingCircuitBreakerTime()
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("%w: requests disabled for %v more", ErrCircuitOpen, remaining.Round(time.Second))
	}

	base := c.endpoints.Get()
	if base == "" {
		return nil, ErrNoEndpoint
	}

	body, retryable, err := c.do(ctx, base+path, query)
	if err == nil {
		c.recordSuccess()
		return body, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
	}

	if retryable && c.endpoints.Len() > 1 {
		next := c.endpoints.Get()
		log.Warnf("🔄 Request to %s failed (%v), switching to %s", base, err, next)

		body, retryable, err = c.do(ctx, next+path, query)
		if err == nil {
			log.Infof("✅ Retry successful against %s", next)
			c.recordSuccess()
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
	}

	if retryable {
		c.recordFailure()
	}
	return nil, err
}

// do performs a single GET and reports whether a failure is worth retrying elsewhere
func (c *storefrontClient) do(ctx context.Context, url string, query map[string]string) ([]byte, bool, error) {
	c.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.httpClient.R().SetContext(reqCtx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, true, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.IsError() {
		status := resp.StatusCode()
		retryable := status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("HTTP error: %s", resp.Status())
	}

	return resp.Bytes(), false, nil
}
