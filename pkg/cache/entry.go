package cache

import (
	"net/http"
	"time"

	"github.com/planetlabs/planet-client-go/pkg/models"
)

// DefaultTTL is the fallback lifetime for responses without a usable
// Expires header.
const DefaultTTL = 5 * time.Minute

// Entry is one cached GET response.
type Entry struct {
	// URL is the full request URL the entry was stored under.
	URL string `json:"url"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Headers are the response headers.
	Headers http.Header `json:"headers"`

	// Data is the response body.
	Data []byte `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}

// EntryFromResponse builds a cache entry from a received response,
// deriving the lifetime from the Expires header when present.
func EntryFromResponse(resp *models.Response) *Entry {
	return &Entry{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Data:       resp.Body,
		Expires:    parseExpires(resp.Header),
		CachedAt:   time.Now(),
	}
}

// Response converts the entry back into a response value.
func (e *Entry) Response() *models.Response {
	return &models.Response{
		StatusCode: e.StatusCode,
		Header:     e.Headers.Clone(),
		URL:        e.URL,
		Body:       e.Data,
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// parseExpires derives an expiration time from response headers. A
// missing or malformed Expires header yields the default TTL; an Expires
// in the past yields an already-stale time so the entry is not stored.
func parseExpires(headers http.Header) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(DefaultTTL)
	}
	if expires.Before(time.Now()) {
		return time.Now()
	}
	return expires
}
