// Package client provides the core Planet API session with admission
// control, retry, response caching, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/planetlabs/planet-client-go/pkg/cache"
	"github.com/planetlabs/planet-client-go/pkg/limiter"
	"github.com/planetlabs/planet-client-go/pkg/logging"
	"github.com/planetlabs/planet-client-go/pkg/models"
)

// Version is the client library version reported in the User-Agent.
const Version = "1.0.0"

// Fixed headers attached to every outgoing request.
const (
	appHeader = "X-Planet-App"
	appName   = "go-sdk"
	userAgent = "planet-client-go/" + Version
)

// Prometheus metrics for session operations.
var (
	planetRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planet_requests_total",
		Help: "Total Planet API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	planetRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planet_request_duration_seconds",
		Help:    "Planet API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	planetErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planet_errors_total",
		Help: "Total Planet API errors by class",
	}, []string{"class"})
)

// Config holds the session configuration.
type Config struct {
	// RateLimit caps admissions per second (0 = unbounded).
	RateLimit float64

	// MaxWorkers caps concurrently in-flight requests (0 = unbounded).
	MaxWorkers int64

	// MaxAttempts is the maximum number of attempts for retryable
	// failures, including the initial request.
	MaxAttempts int

	// MaxRetryBackoff is the backoff ceiling in seconds.
	MaxRetryBackoff float64

	// Headers are extra base headers attached to every request. They may
	// override the fixed client headers.
	Headers http.Header

	// Redis enables the GET response cache when non-nil.
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		RateLimit:       10,
		MaxWorkers:      50,
		MaxAttempts:     5,
		MaxRetryBackoff: 64,
	}
}

// Session issues requests to the Planet API. It owns one limiter through
// which every outbound request is admitted, and is safe to share across
// concurrently issued requests.
type Session struct {
	httpClient *http.Client
	limiter    *limiter.Limiter
	cache      *cache.Manager // nil when no Redis is configured
	config     Config
	logger     zerolog.Logger
}

// New creates a new session.
func New(cfg Config) (*Session, error) {
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}
	if cfg.RateLimit < 0 || cfg.MaxWorkers < 0 {
		return nil, fmt.Errorf("rate_limit and max_workers must not be negative")
	}

	s := &Session{
		// No client-wide timeout: downloads can legitimately run long and
		// deadlines come from the request context.
		httpClient: &http.Client{},
		limiter:    limiter.New(cfg.RateLimit, cfg.MaxWorkers),
		config:     cfg,
		logger:     logging.NewLogger("session"),
	}
	if cfg.Redis != nil {
		s.cache = cache.NewManager(cfg.Redis)
	}
	return s, nil
}

// Request performs an HTTP request with admission control, retry, and
// error classification. body, when non-nil, is marshalled to JSON. params
// are merged into the URL query.
func (s *Session) Request(ctx context.Context, method, rawURL string, body any, params url.Values) (*models.Response, error) {
	fullURL, endpoint, err := buildURL(rawURL, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		planetRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if s.cache != nil && method == http.MethodGet && body == nil {
		if resp := s.cachedResponse(ctx, fullURL); resp != nil {
			return resp, nil
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	var resp *models.Response
	err = s.retry(ctx, func() error {
		r, doErr := s.do(ctx, method, fullURL, endpoint, body)
		if doErr != nil {
			return doErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && method == http.MethodGet && body == nil {
		s.storeResponse(ctx, fullURL, resp)
	}
	return resp, nil
}

// Paged wraps a first-page response in a single-pass iterator that
// fetches subsequent pages through this session. When limit is greater
// than zero, at most that many items are yielded.
func (s *Session) Paged(resp *models.Response, limit int) *models.Paged {
	return models.NewPaged(resp, func(ctx context.Context, method, url string) (*models.Response, error) {
		return s.Request(ctx, method, url, nil, nil)
	}, limit)
}

// Close releases the session's transport resources.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

// do performs one transport call and classifies the reply.
func (s *Session) do(ctx context.Context, method, fullURL, endpoint string, body any) (*models.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, body != nil)

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		planetErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		planetRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Transport call failed")
		return nil, &APIError{Class: ErrorClassNetwork, Message: "transport failure", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		planetErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	resp := models.NewResponse(httpResp, data)
	planetRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if err := responseError(resp); err != nil {
		apiErr := err.(*APIError)
		planetErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		s.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Msg("Planet API request error")
		return nil, err
	}
	return resp, nil
}

// setHeaders applies the fixed client headers, configured base headers,
// and content type.
func (s *Session) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set(appHeader, appName)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range s.config.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// cachedResponse returns a cached reply for fullURL, or nil on a miss.
func (s *Session) cachedResponse(ctx context.Context, fullURL string) *models.Response {
	entry, err := s.cache.Get(ctx, cache.Key{URL: fullURL})
	if err != nil {
		if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Str("url", fullURL).Msg("Cache get error")
		}
		return nil
	}
	s.logger.Debug().Str("url", fullURL).Msg("Serving response from cache")
	return entry.Response()
}

// storeResponse caches a successful GET reply when the server allows it.
func (s *Session) storeResponse(ctx context.Context, fullURL string, resp *models.Response) {
	if resp.StatusCode != http.StatusOK {
		return
	}
	entry := cache.EntryFromResponse(resp)
	if entry.TTL() <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cache.Key{URL: fullURL}, entry); err != nil {
		s.logger.Warn().Err(err).Str("url", fullURL).Msg("Failed to cache response")
		return
	}
	s.logger.Debug().
		Str("url", fullURL).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

// responseError converts a non-2xx reply into a typed error.
func responseError(resp *models.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Class:      classifyStatus(resp.StatusCode),
		Message:    serverMessage(resp),
	}
}

// serverMessage extracts a human-readable message from an error reply.
func serverMessage(resp *models.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := resp.JSON(&body); err == nil && body.Message != "" {
		return body.Message
	}
	if msg := strings.TrimSpace(string(resp.Body)); msg != "" {
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// buildURL merges params into rawURL and returns the full URL and the
// endpoint path used for metric labels.
func buildURL(rawURL string, params url.Values) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), u.Path, nil
}
