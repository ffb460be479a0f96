package bluesky

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
	"sync"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"

	"github.com/blackmichael/caughtup/internal/domain"
	"github.com/blackmichael/caughtup/internal/metrics"
)

const defaultPDS = "https://bsky.social"

// maxFollowPages bounds how many getFollows pages are fetched.
const maxFollowPages = 50

// maxPostsPerRequest is the getPosts limit on uris.
const maxPostsPerRequest = 25

// Client is a minimal BlueSky/AT Protocol API client for reading the
// signed-in account's timeline, threads and follows. It implements
// domain.FeedSource.
type Client struct {
	pds        string
	httpClient *http.Client

	// populated after Login
	mu        sync.RWMutex
	accessJwt string
	viewer    domain.AuthorView
}

var _ domain.FeedSource = (*Client)(nil)

// NewClient creates a new BlueSky API client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds: strings.TrimRight(pds, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx XRPC response.
type APIError struct {
	Status  int
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("API error (status %d)", e.Status)
	}
	return fmt.Sprintf("API error (status %d): %s: %s", e.Status, e.Name, e.Message)
}

// Is maps auth and not-found responses onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotAuthenticated:
		return e.Status == http.StatusUnauthorized ||
			e.Name == "AuthRequired" || e.Name == "ExpiredToken" || e.Name == "InvalidToken"
	case domain.ErrPostNotFound:
		return e.Name == "NotFound"
	}
	return false
}

// Login authenticates with the PDS and stores the session token. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	in := atproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	}

	var out atproto.ServerCreateSession_Output
	if err := c.post(ctx, "com.atproto.server.createSession", in, &out); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.accessJwt = out.AccessJwt
	c.viewer = domain.AuthorView{DID: out.Did, Handle: out.Handle}
	c.mu.Unlock()
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.Viewer().DID
}

// Viewer returns the signed-in account. Only valid after Login.
func (c *Client) Viewer() domain.AuthorView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewer
}

// Timeline fetches one page of the home timeline via app.bsky.feed.getTimeline.
func (c *Client) Timeline(ctx context.Context, limit int, cursor string) ([]domain.FeedItem, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var out bsky.FeedGetTimeline_Output
	if err := c.get(ctx, "app.bsky.feed.getTimeline", q, &out); err != nil {
		return nil, "", fmt.Errorf("get timeline: %w", err)
	}

	items := make([]domain.FeedItem, 0, len(out.Feed))
	for _, fvp := range out.Feed {
		if item, ok := FeedItem(fvp); ok {
			items = append(items, item)
		}
	}

	next := ""
	if out.Cursor != nil {
		next = *out.Cursor
	}
	return items, next, nil
}

// PostThread fetches the reply tree below uri via app.bsky.feed.getPostThread.
// Parents above the root are not requested.
func (c *Client) PostThread(ctx context.Context, uri string, depth int) (*domain.ThreadNode, error) {
	q := url.Values{}
	q.Set("uri", uri)
	q.Set("depth", strconv.Itoa(depth))
	q.Set("parentHeight", "0")

	var out bsky.FeedGetPostThread_Output
	if err := c.get(ctx, "app.bsky.feed.getPostThread", q, &out); err != nil {
		return nil, fmt.Errorf("get post thread: %w", err)
	}

	if out.Thread == nil || out.Thread.FeedDefs_ThreadViewPost == nil {
		return nil, fmt.Errorf("get post thread %s: %w", uri, domain.ErrPostNotFound)
	}
	return ThreadNode(out.Thread.FeedDefs_ThreadViewPost), nil
}

// Posts hydrates up to maxPostsPerRequest posts by AT-URI. Posts that are
// deleted or hidden from the viewer are absent from the result.
func (c *Client) Posts(ctx context.Context, uris []string) ([]domain.PostView, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if len(uris) > maxPostsPerRequest {
		uris = uris[:maxPostsPerRequest]
	}

	q := url.Values{}
	for _, uri := range uris {
		q.Add("uris", uri)
	}

	var out bsky.FeedGetPosts_Output
	if err := c.get(ctx, "app.bsky.feed.getPosts", q, &out); err != nil {
		return nil, fmt.Errorf("get posts: %w", err)
	}

	posts := make([]domain.PostView, 0, len(out.Posts))
	for _, p := range out.Posts {
		if p != nil {
			posts = append(posts, PostView(p))
		}
	}
	return posts, nil
}

// Follows pages through app.bsky.graph.getFollows for the signed-in account.
func (c *Client) Follows(ctx context.Context) ([]domain.AuthorView, error) {
	did := c.DID()
	if did == "" {
		return nil, domain.ErrNotAuthenticated
	}

	var follows []domain.AuthorView
	cursor := ""
	for page := 0; page < maxFollowPages; page++ {
		q := url.Values{}
		q.Set("actor", did)
		q.Set("limit", "100")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var out bsky.GraphGetFollows_Output
		if err := c.get(ctx, "app.bsky.graph.getFollows", q, &out); err != nil {
			return nil, fmt.Errorf("get follows: %w", err)
		}
		for _, p := range out.Follows {
			if p == nil {
				continue
			}
			a := Profile(p)
			a.Following = true
			follows = append(follows, a)
		}

		if out.Cursor == nil || *out.Cursor == "" || len(out.Follows) == 0 {
			break
		}
		cursor = *out.Cursor
	}
	return follows, nil
}

func (c *Client) get(ctx context.Context, method string, query url.Values, result any) error {
	c.mu.RLock()
	token := c.accessJwt
	c.mu.RUnlock()
	if token == "" {
		return domain.ErrNotAuthenticated
	}

	u := c.pds + "/xrpc/" + method
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, method, result)
}

func (c *Client) post(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}
	c.mu.RUnlock()

	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestSeconds.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequestSeconds.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil || apiErr.Name == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
