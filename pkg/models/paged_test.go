package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// jsonResponse builds a Response with the given JSON body.
func jsonResponse(t *testing.T, body string) *Response {
	t.Helper()
	return &Response{
		StatusCode: 200,
		Body:       []byte(body),
	}
}

// pageServer serves canned pages by URL and records requested URLs.
func pageServer(t *testing.T, pages map[string]string) (RequestFunc, *[]string) {
	t.Helper()

	var requested []string
	fn := func(ctx context.Context, method, url string) (*Response, error) {
		requested = append(requested, url)
		body, ok := pages[url]
		if !ok {
			return nil, fmt.Errorf("unexpected page request: %s", url)
		}
		return jsonResponse(t, body), nil
	}
	return fn, &requested
}

func collect(t *testing.T, p *Paged) ([]string, error) {
	t.Helper()

	var items []string
	ctx := context.Background()
	for p.Next(ctx) {
		var item map[string]string
		if err := json.Unmarshal(p.Item(), &item); err != nil {
			t.Fatalf("unmarshal item: %v", err)
		}
		items = append(items, item["id"])
	}
	return items, p.Err()
}

func TestPaged_FollowsPages(t *testing.T) {
	first := jsonResponse(t, `{
		"items": [{"id": "a"}, {"id": "b"}],
		"_links": {"next": "page2"}
	}`)
	request, requested := pageServer(t, map[string]string{
		"page2": `{"items": [{"id": "c"}], "_links": {"next": "page3"}}`,
		"page3": `{"items": [{"id": "d"}], "_links": {}}`,
	})

	p := NewPaged(first, request, 0)
	items, err := collect(t, p)
	if err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i], want[i])
		}
	}
	if len(*requested) != 2 {
		t.Errorf("pages fetched = %d, want 2", len(*requested))
	}
}

func TestPaged_SinglePage(t *testing.T) {
	first := jsonResponse(t, `{"items": [{"id": "a"}]}`)
	request, requested := pageServer(t, nil)

	p := NewPaged(first, request, 0)
	items, err := collect(t, p)
	if err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(items) != 1 || items[0] != "a" {
		t.Errorf("items = %v, want [a]", items)
	}
	if len(*requested) != 0 {
		t.Errorf("pages fetched = %d, want 0", len(*requested))
	}
}

func TestPaged_Limit(t *testing.T) {
	first := jsonResponse(t, `{
		"items": [{"id": "a"}, {"id": "b"}],
		"_links": {"next": "page2"}
	}`)
	request, requested := pageServer(t, nil)

	// Limit below the first page size must not trigger any further fetch.
	p := NewPaged(first, request, 2)
	items, err := collect(t, p)
	if err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %v, want 2 items", items)
	}
	if len(*requested) != 0 {
		t.Errorf("pages fetched = %d, want 0", len(*requested))
	}
}

func TestPaged_PageCycle(t *testing.T) {
	first := jsonResponse(t, `{
		"items": [{"id": "a"}],
		"_links": {"next": "page2"}
	}`)
	request, _ := pageServer(t, map[string]string{
		"page2": `{"items": [{"id": "b"}], "_links": {"next": "page2"}}`,
	})

	p := NewPaged(first, request, 0)
	items, err := collect(t, p)

	var pagingErr *PagingError
	if !errors.As(err, &pagingErr) {
		t.Fatalf("Err() = %v, want PagingError", err)
	}
	if pagingErr.URL != "page2" {
		t.Errorf("PagingError.URL = %q, want %q", pagingErr.URL, "page2")
	}
	// The item from the first page was yielded before the cycle was hit.
	if len(items) != 1 || items[0] != "a" {
		t.Errorf("items = %v, want [a]", items)
	}
}

func TestPaged_RequestError(t *testing.T) {
	first := jsonResponse(t, `{"items": [], "_links": {"next": "page2"}}`)
	boom := errors.New("boom")
	request := func(ctx context.Context, method, url string) (*Response, error) {
		return nil, boom
	}

	p := NewPaged(first, request, 0)
	if p.Next(context.Background()) {
		t.Fatal("Next() = true, want false")
	}
	if !errors.Is(p.Err(), boom) {
		t.Errorf("Err() = %v, want %v", p.Err(), boom)
	}
}

func TestPaged_EmptyFirstPage(t *testing.T) {
	first := jsonResponse(t, `{"items": []}`)
	request, _ := pageServer(t, nil)

	p := NewPaged(first, request, 0)
	items, err := collect(t, p)
	if err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}

func TestPaged_MalformedFirstPage(t *testing.T) {
	first := jsonResponse(t, `not json`)
	request, _ := pageServer(t, nil)

	p := NewPaged(first, request, 0)
	if p.Next(context.Background()) {
		t.Fatal("Next() = true, want false")
	}
	if p.Err() == nil {
		t.Error("Err() = nil, want decode error")
	}
}

func TestPaged_CustomKeys(t *testing.T) {
	first := jsonResponse(t, `{
		"features": [{"id": "a"}],
		"links": {"_next": "page2"}
	}`)
	request, _ := pageServer(t, map[string]string{
		"page2": `{"features": [{"id": "b"}], "links": {}}`,
	})

	p := NewPaged(first, request, 0)
	p.LinksKey = "links"
	p.NextKey = "_next"
	p.ItemsKey = "features"

	items, err := collect(t, p)
	if err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(items) != 2 || items[0] != "a" || items[1] != "b" {
		t.Errorf("items = %v, want [a b]", items)
	}
}
