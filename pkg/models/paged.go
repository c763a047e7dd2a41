package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Default JSON keys for cursor-linked pages. Resource families that use
// different keys override them on the Paged value before the first Next.
const (
	DefaultLinksKey = "_links"
	DefaultNextKey  = "next"
	DefaultItemsKey = "items"
)

// RequestFunc issues one request and returns the reply. Paged uses it to
// fetch subsequent pages by URL.
type RequestFunc func(ctx context.Context, method, url string) (*Response, error)

// PagingError reports a pagination defect: the next-page cursor repeated
// a previously seen cursor, which would otherwise loop forever.
type PagingError struct {
	URL string
}

func (e *PagingError) Error() string {
	return fmt.Sprintf("page cycle detected at %q", e.URL)
}

// Paged iterates over the results of a paged resource, following the
// nested next link of each page and yielding items one at a time.
//
// Usage follows the scanner idiom:
//
//	for pager.Next(ctx) {
//		item := pager.Item()
//		...
//	}
//	if err := pager.Err(); err != nil {
//		...
//	}
//
// A Paged is single-pass and safe for exactly one consumer.
type Paged struct {
	// LinksKey, NextKey and ItemsKey locate the next cursor and the item
	// array in each page body. Override before the first call to Next.
	LinksKey string
	NextKey  string
	ItemsKey string

	request RequestFunc
	limit   int

	first   *Response // pending first page, parsed on the first Next
	items   []json.RawMessage
	nextURL string
	item    json.RawMessage
	count   int
	done    bool
	err     error
}

// NewPaged creates an iterator over a paged resource. resp holds the
// first page; request fetches subsequent pages. When limit is greater
// than zero, iteration stops after that many items.
func NewPaged(resp *Response, request RequestFunc, limit int) *Paged {
	return &Paged{
		LinksKey: DefaultLinksKey,
		NextKey:  DefaultNextKey,
		ItemsKey: DefaultItemsKey,
		request:  request,
		limit:    limit,
		first:    resp,
	}
}

// Next advances to the next item, fetching the next page when the current
// one is drained. It returns false when iteration ends; Err distinguishes
// normal exhaustion from failure.
func (p *Paged) Next(ctx context.Context) bool {
	if p.err != nil || p.done {
		return false
	}
	if p.limit > 0 && p.count >= p.limit {
		p.done = true
		return false
	}

	if p.first != nil {
		resp := p.first
		p.first = nil
		if err := p.load(resp); err != nil {
			p.err = err
			return false
		}
	}

	if len(p.items) == 0 {
		if p.nextURL == "" {
			log.Debug().Msg("end of the pages")
			p.done = true
			return false
		}

		log.Debug().Str("url", p.nextURL).Msg("getting next page")
		prevURL := p.nextURL
		resp, err := p.request(ctx, http.MethodGet, prevURL)
		if err != nil {
			p.err = err
			return false
		}
		if err := p.load(resp); err != nil {
			p.err = err
			return false
		}

		// A repeated cursor means the server would hand back the same
		// page forever.
		if p.nextURL == prevURL {
			p.err = &PagingError{URL: p.nextURL}
			return false
		}

		if len(p.items) == 0 {
			p.done = true
			return false
		}
	}

	p.item = p.items[0]
	p.items = p.items[1:]
	p.count++
	return true
}

// Item returns the item produced by the last successful call to Next.
func (p *Paged) Item() json.RawMessage {
	return p.item
}

// Err returns the error that ended iteration, or nil when the pages were
// exhausted normally.
func (p *Paged) Err() error {
	return p.err
}

// load replaces the item buffer and next cursor from a page response.
func (p *Paged) load(resp *Response) error {
	var page map[string]json.RawMessage
	if err := resp.JSON(&page); err != nil {
		return fmt.Errorf("decode page: %w", err)
	}

	p.items = nil
	if raw, ok := page[p.ItemsKey]; ok {
		if err := json.Unmarshal(raw, &p.items); err != nil {
			return fmt.Errorf("decode page items: %w", err)
		}
	}

	p.nextURL = ""
	if raw, ok := page[p.LinksKey]; ok {
		var links map[string]json.RawMessage
		if err := json.Unmarshal(raw, &links); err != nil {
			return fmt.Errorf("decode page links: %w", err)
		}
		if rawNext, ok := links[p.NextKey]; ok {
			if err := json.Unmarshal(rawNext, &p.nextURL); err != nil {
				return fmt.Errorf("decode next link: %w", err)
			}
		}
	}
	return nil
}
