// Package models holds the request/response data types of the Planet API
// client: the Response wrapper, the Paged results iterator, and filename
// resolution for downloads.
package models

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Response is an immutable wrapper around one received HTTP reply. The
// body has already been read in full by the session.
type Response struct {
	// StatusCode is the HTTP status code of the reply.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// URL is the final request URL after any redirects.
	URL string

	// Body is the raw response body.
	Body []byte
}

// NewResponse builds a Response from a received HTTP reply and its fully
// read body.
func NewResponse(resp *http.Response, body []byte) *Response {
	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		URL:        url,
		Body:       body,
	}
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Map unmarshals the response body into a generic JSON object.
func (r *Response) Map() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Length returns the download length from the Content-Length header, or
// -1 when the length is unknown.
func (r *Response) Length() int64 {
	v := r.Header.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Filename returns the name of the download file, resolved from the
// Content-Disposition header or the response URL. Empty when the response
// does not carry a usable name.
func (r *Response) Filename() string {
	if name := FilenameFromHeaders(r.Header); name != "" {
		return name
	}
	return FilenameFromURL(r.URL)
}
