package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/xSoVx/amr-project/internal/domain"
	"golang.org/x/time/rate"
)

// HTTPOracleClient is a concrete domain.OracleClient backed by an HTTP
// validate-code endpoint, wrapped with a circuit breaker (so a struggling
// oracle degrades the normalizer to offline mode instead of queueing every
// request behind it) and a rate limiter (so a retry storm from callers
// doesn't itself take the oracle down).
type HTTPOracleClient struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// HTTPOracleConfig configures an HTTPOracleClient.
type HTTPOracleConfig struct {
	BaseURL            string
	RequestsPerSecond  float64
	Burst              int
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// NewHTTPOracleClient builds a client against cfg. The HTTP client itself
// carries no timeout; callers are expected to bound each call with
// context.WithTimeout per spec §5 (default 2s, enforced by the normalizer).
func NewHTTPOracleClient(logger *logrus.Logger, cfg HTTPOracleConfig) *HTTPOracleClient {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 5
	}
	if cfg.BreakerInterval == 0 {
		cfg.BreakerInterval = 30 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "terminology-oracle",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("terminology oracle circuit breaker state change")
		},
	})

	return &HTTPOracleClient{
		logger:  logger,
		client:  &http.Client{},
		baseURL: cfg.BaseURL,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// ValidateCode implements domain.OracleClient.
func (c *HTTPOracleClient) ValidateCode(ctx context.Context, system, code, display string) (domain.TerminologyLookup, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.TerminologyLookup{}, &domain.OracleUnavailableError{Cause: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, system, code, display)
	})
	if err != nil {
		return domain.TerminologyLookup{}, &domain.OracleUnavailableError{Cause: err}
	}
	return result.(domain.TerminologyLookup), nil
}

func (c *HTTPOracleClient) doRequest(ctx context.Context, system, code, display string) (domain.TerminologyLookup, error) {
	q := url.Values{}
	q.Set("system", system)
	q.Set("code", code)
	q.Set("display", display)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/validate-code?"+q.Encode(), nil)
	if err != nil {
		return domain.TerminologyLookup{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.TerminologyLookup{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.TerminologyLookup{Valid: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return domain.TerminologyLookup{}, fmt.Errorf("terminology oracle returned status %d", resp.StatusCode)
	}

	var lookup domain.TerminologyLookup
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return domain.TerminologyLookup{}, err
	}
	return lookup, nil
}
