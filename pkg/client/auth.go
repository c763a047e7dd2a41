package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/planetlabs/planet-client-go/pkg/logging"
	"github.com/planetlabs/planet-client-go/pkg/models"
)

// AuthSession is a lightweight session used only for the authentication
// handshake. It bypasses the limiter and never retries: credential
// exchange must fail fast and visibly.
type AuthSession struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewAuthSession creates a session for exchanging credentials.
func NewAuthSession() *AuthSession {
	return &AuthSession{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewLogger("auth"),
	}
}

// Request performs one request with the narrow auth classification: only
// 400 and 401 are distinguished, everything else non-2xx is a generic API
// error.
func (s *AuthSession) Request(ctx context.Context, method, url string, body any) (*models.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(appHeader, appName)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Class: ErrorClassNetwork, Message: "transport failure", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	resp := models.NewResponse(httpResp, data)
	if err := authResponseError(resp); err != nil {
		s.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Authentication request failed")
		return nil, err
	}
	return resp, nil
}

// authResponseError applies the narrow status classification of the
// authentication handshake.
func authResponseError(resp *models.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassBadRequest,
			Message:    "not a valid email address",
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassAuth,
			Message:    "incorrect email or password",
		}
	default:
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassAPI,
			Message:    serverMessage(resp),
		}
	}
}
