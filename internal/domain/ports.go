package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotAuthenticated is returned by a FeedSource that has no session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrPostNotFound is returned when a thread root does not exist or is
	// blocked.
	ErrPostNotFound = errors.New("post not found")
)

// FeedSource fetches hydrated feed data on behalf of the viewer.
type FeedSource interface {
	// Timeline returns one page of the viewer's home timeline and the cursor
	// for the next page (empty when there are no more results).
	Timeline(ctx context.Context, limit int, cursor string) ([]FeedItem, string, error)

	// PostThread returns the reply tree rooted at uri, fetched to depth
	// levels below the root.
	PostThread(ctx context.Context, uri string, depth int) (*ThreadNode, error)

	// Posts hydrates posts by AT-URI. Posts that cannot be seen are left out
	// of the result rather than reported as errors.
	Posts(ctx context.Context, uris []string) ([]PostView, error)

	// Follows returns every account the viewer follows.
	Follows(ctx context.Context) ([]AuthorView, error)

	// Viewer returns the signed-in account.
	Viewer() AuthorView
}

// PreferenceRepository persists the viewer's spoiler toggle.
type PreferenceRepository interface {
	// GetHideSpoilers returns the saved toggle. ok is false when nothing has
	// been saved yet.
	GetHideSpoilers(ctx context.Context) (hide bool, ok bool, err error)

	// SetHideSpoilers saves the toggle.
	SetHideSpoilers(ctx context.Context, hide bool) error
}

// CursorRepository defines persistence operations for firehose cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
