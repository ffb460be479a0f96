package firehose

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluesky-social/jetstream/pkg/models"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/caughtup/internal/domain"
)

type fakeProcessor struct {
	mu      sync.Mutex
	dids    []string
	next    []string
	loads   int
	created []*domain.IncomingPost
	deleted []string
	keep    bool
}

func (f *fakeProcessor) LoadFollows(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.next != nil {
		f.dids = f.next
	}
	return nil
}

func (f *fakeProcessor) FollowedDIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dids...)
}

func (f *fakeProcessor) ProcessNewPost(_ context.Context, p *domain.IncomingPost) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	return f.keep, nil
}

func (f *fakeProcessor) ProcessDeletePost(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uri)
	return nil
}

func (f *fakeProcessor) GetCursor(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeProcessor) UpdateCursor(context.Context, string, int64) error { return nil }

func (f *fakeProcessor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), len(f.deleted)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

const createEvent = `{
  "did": "did:plc:friend",
  "time_us": 1728000000000000,
  "kind": "commit",
  "commit": {
    "rev": "3l3",
    "operation": "create",
    "collection": "app.bsky.feed.post",
    "rkey": "3l3qo2vuowo2b",
    "cid": "bafyreia",
    "record": {
      "$type": "app.bsky.feed.post",
      "text": "replying with a quote",
      "createdAt": "2024-10-04T00:00:00Z",
      "reply": {
        "root": {"uri": "at://did:plc:root/app.bsky.feed.post/r", "cid": "bafyroot"},
        "parent": {"uri": "at://did:plc:parent/app.bsky.feed.post/p", "cid": "bafyparent"}
      },
      "embed": {
        "$type": "app.bsky.embed.record",
        "record": {"uri": "at://did:plc:quoted/app.bsky.feed.post/q", "cid": "bafyq"}
      }
    }
  }
}`

const deleteEvent = `{
  "did": "did:plc:friend",
  "time_us": 1728000000000001,
  "kind": "commit",
  "commit": {"rev": "3l4", "operation": "delete", "collection": "app.bsky.feed.post", "rkey": "3l3qo2vuowo2b"}
}`

const likeEvent = `{
  "did": "did:plc:friend",
  "time_us": 1728000000000002,
  "kind": "commit",
  "commit": {"rev": "3l5", "operation": "create", "collection": "app.bsky.feed.like", "rkey": "x", "record": {}}
}`

const identityEvent = `{"did": "did:plc:friend", "time_us": 1728000000000003, "kind": "identity"}`

func decodeEvent(t *testing.T, raw string) *models.Event {
	t.Helper()
	var e models.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return &e
}

func TestHandleEventCreate(t *testing.T) {
	proc := &fakeProcessor{keep: true}
	s := NewSubscriber("wss://example/subscribe", proc, testLogger())

	kept, err := s.handleEvent(context.Background(), decodeEvent(t, createEvent))
	if err != nil || !kept {
		t.Fatalf("handleEvent() = %v, %v", kept, err)
	}
	if len(proc.created) != 1 {
		t.Fatalf("ProcessNewPost called %d times", len(proc.created))
	}
	got := proc.created[0]
	if got.URI != "at://did:plc:friend/app.bsky.feed.post/3l3qo2vuowo2b" || got.CID != "bafyreia" || got.AuthorDID != "did:plc:friend" {
		t.Fatalf("incoming = %+v", got)
	}
	if got.Record.Text != "replying with a quote" || got.Record.CreatedAt.IsZero() {
		t.Fatalf("record = %+v", got.Record)
	}
	if got.ParentURI != "at://did:plc:parent/app.bsky.feed.post/p" {
		t.Fatalf("ParentURI = %q", got.ParentURI)
	}
	if got.QuotedURI != "at://did:plc:quoted/app.bsky.feed.post/q" {
		t.Fatalf("QuotedURI = %q", got.QuotedURI)
	}
}

func TestHandleEventIgnoresOtherEvents(t *testing.T) {
	proc := &fakeProcessor{}
	s := NewSubscriber("wss://example/subscribe", proc, testLogger())

	for _, raw := range []string{likeEvent, identityEvent} {
		if _, err := s.handleEvent(context.Background(), decodeEvent(t, raw)); err != nil {
			t.Fatalf("handleEvent() error = %v", err)
		}
	}
	if c, d := proc.counts(); c != 0 || d != 0 {
		t.Fatalf("processor called: %d creates, %d deletes", c, d)
	}
}

func TestHandleEventDelete(t *testing.T) {
	proc := &fakeProcessor{}
	s := NewSubscriber("wss://example/subscribe", proc, testLogger())

	if _, err := s.handleEvent(context.Background(), decodeEvent(t, deleteEvent)); err != nil {
		t.Fatalf("handleEvent() error = %v", err)
	}
	if len(proc.deleted) != 1 || proc.deleted[0] != "at://did:plc:friend/app.bsky.feed.post/3l3qo2vuowo2b" {
		t.Fatalf("deleted = %v", proc.deleted)
	}
}

func TestParsePostMalformedRecord(t *testing.T) {
	if _, err := parsePost("at://x", "c", "did:plc:x", json.RawMessage(`{"text": 12}`)); err == nil {
		t.Fatalf("parsePost() error = nil, want error")
	}
}

func TestBuildURL(t *testing.T) {
	s := NewSubscriber("wss://jetstream.example/subscribe", &fakeProcessor{}, testLogger())
	raw, err := s.buildURL(42, []string{"did:plc:a", "did:plc:b"})
	if err != nil {
		t.Fatalf("buildURL() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	q := u.Query()
	if q.Get("wantedCollections") != "app.bsky.feed.post" || q.Get("cursor") != "42" {
		t.Fatalf("query = %v", q)
	}
	if dids := q["wantedDids"]; len(dids) != 2 || dids[0] != "did:plc:a" {
		t.Fatalf("wantedDids = %v", dids)
	}

	raw, _ = s.buildURL(0, nil)
	if strings.Contains(raw, "cursor") {
		t.Fatalf("buildURL(0) = %q, want no cursor", raw)
	}
}

func TestSubscriberStreamsEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotDIDs := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDIDs <- r.URL.Query()["wantedDids"]
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, raw := range []string{createEvent, likeEvent, "not json", deleteEvent} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	proc := &fakeProcessor{dids: []string{"did:plc:friend"}, keep: true}
	logs := &syncBuffer{}
	s := NewSubscriber(wsURL(srv), proc, slog.New(slog.NewTextHandler(logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		c, d := proc.counts()
		if c == 1 && d == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out: %d creates, %d deletes", c, d)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if dids := <-gotDIDs; len(dids) != 1 || dids[0] != "did:plc:friend" {
		t.Fatalf("wantedDids = %v", dids)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Start() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Start() did not return after cancel")
	}
	if out := logs.String(); strings.Contains(out, "reconnecting") {
		t.Fatalf("shutdown logged a reconnect:\n%s", out)
	}
}

func TestSubscriberReconnectsWhenFollowsChange(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotDIDs := make(chan []string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDIDs <- r.URL.Query()["wantedDids"]
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	proc := &fakeProcessor{
		dids: []string{"did:plc:friend"},
		next: []string{"did:plc:friend", "did:plc:pal"},
	}
	s := NewSubscriber(wsURL(srv), proc, testLogger())
	s.refreshInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	want := [][]string{{"did:plc:friend"}, {"did:plc:friend", "did:plc:pal"}}
	for i, w := range want {
		select {
		case got := <-gotDIDs:
			if strings.Join(got, ",") != strings.Join(w, ",") {
				t.Fatalf("connection %d wantedDids = %v, want %v", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for connection %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Start() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Start() did not return after cancel")
	}
}
