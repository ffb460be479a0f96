package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blackmichael/caughtup/internal/domain"
)

type fakeService struct {
	hide    bool
	err     error
	limit   int
	cursor  string
	uri     string
	depth   int
	liveArg int
}

func (f *fakeService) Timeline(_ context.Context, limit int, cursor string) (*domain.TimelinePage, error) {
	f.limit, f.cursor = limit, cursor
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TimelinePage{
		Cursor:       "next",
		Items:        []domain.RenderedItem{{Post: domain.RenderedPost{URI: "at://did:plc:a/app.bsky.feed.post/1"}}},
		Hidden:       2,
		HideSpoilers: f.hide,
	}, nil
}

func (f *fakeService) Thread(_ context.Context, uri string, depth int) (*domain.ThreadView, error) {
	f.uri, f.depth = uri, depth
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ThreadView{URI: uri, Entries: []domain.ThreadEntry{{Kind: domain.ThreadEntryPruned, Depth: 1, Message: domain.PrunedMessage}}}, nil
}

func (f *fakeService) Live(limit int) []domain.RenderedPost {
	f.liveArg = limit
	return []domain.RenderedPost{{URI: "at://live"}}
}

func (f *fakeService) HideSpoilers(context.Context) (bool, error) { return f.hide, f.err }

func (f *fakeService) SetHideSpoilers(_ context.Context, hide bool) error {
	if f.err != nil {
		return f.err
	}
	f.hide = hide
	return nil
}

func newTestServer(svc Service) http.Handler {
	s := NewServer(0, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, target, err)
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeService{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("GET /health = %d %v", rec.Code, body)
	}
}

func TestTimeline(t *testing.T) {
	svc := &fakeService{hide: true}
	h := newTestServer(svc)

	rec, body := do(t, h, http.MethodGet, "/api/timeline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/timeline = %d %v", rec.Code, body)
	}
	if svc.limit != 30 || svc.cursor != "" {
		t.Fatalf("service called with (%d, %q)", svc.limit, svc.cursor)
	}
	if body["cursor"] != "next" || body["hidden"] != float64(2) || body["hideSpoilers"] != true {
		t.Fatalf("body = %v", body)
	}

	do(t, h, http.MethodGet, "/api/timeline?limit=5&cursor=abc", "")
	if svc.limit != 5 || svc.cursor != "abc" {
		t.Fatalf("service called with (%d, %q)", svc.limit, svc.cursor)
	}
}

func TestTimelineRejectsBadLimit(t *testing.T) {
	h := newTestServer(&fakeService{})
	for _, limit := range []string{"0", "101", "ten"} {
		rec, body := do(t, h, http.MethodGet, "/api/timeline?limit="+limit, "")
		if rec.Code != http.StatusBadRequest || body["error"] != "InvalidRequest" {
			t.Fatalf("limit=%s: %d %v", limit, rec.Code, body)
		}
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{fmt.Errorf("fetch: %w", domain.ErrNotAuthenticated), http.StatusUnauthorized, "AuthRequired"},
		{fmt.Errorf("fetch: %w", domain.ErrPostNotFound), http.StatusNotFound, "NotFound"},
		{fmt.Errorf("boom"), http.StatusBadGateway, "UpstreamFailure"},
	}
	for _, tc := range tests {
		h := newTestServer(&fakeService{err: tc.err})
		rec, body := do(t, h, http.MethodGet, "/api/thread?uri=at://did:plc:a/app.bsky.feed.post/1", "")
		if rec.Code != tc.wantCode || body["error"] != tc.wantErr {
			t.Fatalf("error %v: %d %v, want %d %s", tc.err, rec.Code, body, tc.wantCode, tc.wantErr)
		}
	}
}

func TestThread(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)

	rec, body := do(t, h, http.MethodGet, "/api/thread?uri=at://did:plc:a/app.bsky.feed.post/1&depth=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/thread = %d %v", rec.Code, body)
	}
	if svc.uri != "at://did:plc:a/app.bsky.feed.post/1" || svc.depth != 2 {
		t.Fatalf("service called with (%q, %d)", svc.uri, svc.depth)
	}
	entries, ok := body["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("entries = %v", body["entries"])
	}

	do(t, h, http.MethodGet, "/api/thread?uri=at://did:plc:a/app.bsky.feed.post/1", "")
	if svc.depth != -1 {
		t.Fatalf("default depth = %d, want -1", svc.depth)
	}

	for _, target := range []string{
		"/api/thread",
		"/api/thread?uri=https://bsky.app/profile/a",
		"/api/thread?uri=at://did:plc:a/app.bsky.feed.post/1&depth=7",
	} {
		rec, _ := do(t, h, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("GET %s = %d, want 400", target, rec.Code)
		}
	}
}

func TestLive(t *testing.T) {
	svc := &fakeService{}
	rec, body := do(t, newTestServer(svc), http.MethodGet, "/api/live?limit=10", "")
	if rec.Code != http.StatusOK || svc.liveArg != 10 {
		t.Fatalf("GET /api/live = %d %v (limit %d)", rec.Code, body, svc.liveArg)
	}
	if posts, ok := body["posts"].([]any); !ok || len(posts) != 1 {
		t.Fatalf("posts = %v", body["posts"])
	}
}

func TestPreferences(t *testing.T) {
	svc := &fakeService{hide: true}
	h := newTestServer(svc)

	rec, body := do(t, h, http.MethodGet, "/api/preferences", "")
	if rec.Code != http.StatusOK || body["hideSpoilers"] != true {
		t.Fatalf("GET /api/preferences = %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPut, "/api/preferences", `{"hideSpoilers": false}`)
	if rec.Code != http.StatusOK || body["hideSpoilers"] != false || svc.hide {
		t.Fatalf("PUT /api/preferences = %d %v", rec.Code, body)
	}

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing field", `{}`, "hideSpoilers is required"},
		{"unknown field", `{"hideSpoilers": true, "extra": 1}`, "invalid JSON"},
		{"empty body", ``, "empty body"},
		{"trailing data", `{"hideSpoilers": true} {}`, "unexpected trailing data"},
		{"wrong type", `{"hideSpoilers": "yes"}`, "invalid JSON"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPut, "/api/preferences", tc.body)
			msg, _ := body["message"].(string)
			if rec.Code != http.StatusBadRequest || !strings.Contains(msg, tc.wantMsg) {
				t.Fatalf("PUT %s = %d %v, want 400 %q", tc.body, rec.Code, body, tc.wantMsg)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := do(t, newTestServer(&fakeService{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
}
