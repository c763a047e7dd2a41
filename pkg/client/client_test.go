package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/planetlabs/planet-client-go/internal/testutil"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			cfg:     DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "zero attempts rejected",
			cfg:     Config{MaxAttempts: 0},
			wantErr: true,
		},
		{
			name:    "negative rate rejected",
			cfg:     Config{MaxAttempts: 5, RateLimit: -1},
			wantErr: true,
		},
		{
			name:    "unbounded limiter allowed",
			cfg:     Config{MaxAttempts: 1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestSession_RequestSuccess(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/data/v1", `{"foo": "bar"}`)

	s := noWaitSession(t)

	resp, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/data/v1", nil, nil)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	m, err := resp.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if m["foo"] != "bar" {
		t.Errorf(`body foo = %v, want "bar"`, m["foo"])
	}

	// The fixed client headers are present with the expected values.
	headers := mock.LastRequestHeader()
	if got := headers.Get("X-Planet-App"); got != "go-sdk" {
		t.Errorf("X-Planet-App = %q, want %q", got, "go-sdk")
	}
	if got := headers.Get("User-Agent"); !strings.Contains(got, "planet-client-go/") {
		t.Errorf("User-Agent = %q, want planet-client-go/ prefix", got)
	}
}

func TestSession_RequestBody(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotBody map[string]any
	var gotContentType string
	mock.SetHandler("/orders", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "order-1"}`)
	})

	s := noWaitSession(t)

	resp, err := s.Request(context.Background(), http.MethodPost, mock.URL()+"/orders", map[string]string{"boo": "baa"}, nil)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["boo"] != "baa" {
		t.Errorf(`request body boo = %v, want "baa"`, gotBody["boo"])
	}
}

func TestSession_RequestParams(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotQuery url.Values
	mock.SetHandler("/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{}`)
	})

	s := noWaitSession(t)

	params := url.Values{"item_types": []string{"PSScene"}, "limit": []string{"10"}}
	if _, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/search", nil, params); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if gotQuery.Get("item_types") != "PSScene" || gotQuery.Get("limit") != "10" {
		t.Errorf("query = %v, want params merged into URL", gotQuery)
	}
}

func TestSession_RequestRetry(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	calls := 0
	mock.SetHandler("/flaky", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"ok": true}`)
	})

	s := noWaitSession(t)

	resp, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/flaky", nil, nil)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("transport calls = %d, want 2", calls)
	}
}

func TestSession_RequestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantClass ErrorClass
	}{
		{400, ErrorClassBadRequest},
		{403, ErrorClassAuth},
		{404, ErrorClassResource},
		{405, ErrorClassAPI},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/err", testutil.MockResponse{
				StatusCode: tt.status,
				Body:       `{"message": "nope"}`,
			})

			s := noWaitSession(t)

			_, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/err", nil, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Request() error = %v, want APIError", err)
			}
			if apiErr.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", apiErr.Class, tt.wantClass)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != "nope" {
				t.Errorf("Message = %q, want server-supplied message", apiErr.Message)
			}

			// None of these are retried.
			if got := mock.RequestCount(); got != 1 {
				t.Errorf("transport calls = %d, want 1", got)
			}
		})
	}
}

func TestSession_PersistentRateLimit(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/busy", testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "slow down"}`,
	})

	s := noWaitSession(t)

	_, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/busy", nil, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Request() error = %v, want ErrRetryExhausted", err)
	}
	if got := mock.RequestCount(); got != 5 {
		t.Errorf("transport calls = %d, want exactly 5", got)
	}
}

func TestSession_NetworkErrorRetried(t *testing.T) {
	// A server that immediately closes the connection triggers the
	// network error path.
	mock := testutil.NewMockAPI()
	mock.Close()

	s := noWaitSession(t)

	_, err := s.Request(context.Background(), http.MethodGet, mock.URL()+"/gone", nil, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Request() error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Request() error = %v, want wrapped APIError", err)
	}
	if apiErr.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassNetwork)
	}
}

func TestSession_Paged(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetPages("/items",
		[]any{map[string]string{"id": "a"}, map[string]string{"id": "b"}},
		[]any{map[string]string{"id": "c"}},
		[]any{map[string]string{"id": "d"}},
	)

	s := noWaitSession(t)

	ctx := context.Background()
	resp, err := s.Request(ctx, http.MethodGet, mock.URL()+"/items", nil, nil)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	var ids []string
	pager := s.Paged(resp, 0)
	for pager.Next(ctx) {
		var item struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(pager.Item(), &item); err != nil {
			t.Fatalf("unmarshal item: %v", err)
		}
		ids = append(ids, item.ID)
	}
	if err := pager.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
