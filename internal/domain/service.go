package domain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/blackmichael/caughtup/internal/metrics"
)

// TimelineService is the application service around the pure filter and
// render functions. It fetches feed data, builds the viewer's FilterConfig
// from the saved preference and static settings, and serves the timeline,
// threads and the live buffer.
type TimelineService struct {
	settings FilterSettings
	source   FeedSource
	prefs    PreferenceRepository
	cursors  CursorRepository
	live     *LiveBuffer
	logger   *slog.Logger

	// base holds the keyword and handle sets. They are built once and only
	// read afterwards.
	base FilterConfig

	prefMu     sync.Mutex
	hide       bool
	hideLoaded bool

	mu      sync.RWMutex
	follows map[string]AuthorView // keyed by DID
}

// NewTimelineService creates a TimelineService with the given settings.
func NewTimelineService(settings FilterSettings, source FeedSource, prefs PreferenceRepository, cursors CursorRepository, logger *slog.Logger) (*TimelineService, error) {
	if source == nil {
		return nil, fmt.Errorf("feed source is required")
	}
	if prefs == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if len(settings.Keywords) == 0 {
		return nil, fmt.Errorf("at least one spoiler keyword is required")
	}
	if settings.ThreadDepth < 0 {
		settings.ThreadDepth = DefaultThreadDepth
	}

	return &TimelineService{
		settings: settings,
		source:   source,
		prefs:    prefs,
		cursors:  cursors,
		live:     NewLiveBuffer(DefaultLiveCapacity),
		logger:   logger,
		base:     NewFilterConfig(false, "", settings.Keywords, settings.BlockedHandles),
		follows:  map[string]AuthorView{},
	}, nil
}

// HideSpoilers returns the saved toggle, or the configured default when
// nothing has been saved. The repository is read once; SetHideSpoilers keeps
// the cached value current.
func (s *TimelineService) HideSpoilers(ctx context.Context) (bool, error) {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	if s.hideLoaded {
		return s.hide, nil
	}

	hide, ok, err := s.prefs.GetHideSpoilers(ctx)
	if err != nil {
		return false, fmt.Errorf("get hide spoilers: %w", err)
	}
	if !ok {
		hide = s.settings.DefaultHideSpoilers
	}
	s.hide, s.hideLoaded = hide, true
	return hide, nil
}

// SetHideSpoilers saves the toggle.
func (s *TimelineService) SetHideSpoilers(ctx context.Context, hide bool) error {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	if err := s.prefs.SetHideSpoilers(ctx, hide); err != nil {
		return fmt.Errorf("set hide spoilers: %w", err)
	}
	s.hide, s.hideLoaded = hide, true
	s.logger.Info("spoiler preference updated", "hide_spoilers", hide)
	return nil
}

// FilterConfig builds the viewer context for one request.
func (s *TimelineService) FilterConfig(ctx context.Context) (FilterConfig, error) {
	hide, err := s.HideSpoilers(ctx)
	if err != nil {
		return FilterConfig{}, err
	}
	return s.filterConfig(hide), nil
}

func (s *TimelineService) filterConfig(hide bool) FilterConfig {
	cfg := s.base
	cfg.HideSpoilers = hide
	cfg.OwnHandle = s.source.Viewer().Handle
	return cfg
}

// Timeline fetches a page of the home timeline, filters it and renders the
// survivors.
func (s *TimelineService) Timeline(ctx context.Context, limit int, cursor string) (*TimelinePage, error) {
	cfg, err := s.FilterConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.timeline(ctx, cfg, limit, cursor)
}

// TimelineWithHide is Timeline with the spoiler toggle given for this call
// only. The saved preference is left alone.
func (s *TimelineService) TimelineWithHide(ctx context.Context, hide bool, limit int, cursor string) (*TimelinePage, error) {
	return s.timeline(ctx, s.filterConfig(hide), limit, cursor)
}

func (s *TimelineService) timeline(ctx context.Context, cfg FilterConfig, limit int, cursor string) (*TimelinePage, error) {
	items, next, err := s.source.Timeline(ctx, limit, cursor)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}

	kept := make([]FeedItem, 0, len(items))
	verdicts := map[Verdict]int{}
	for _, item := range items {
		v := Classify(item, cfg)
		verdicts[v]++
		metrics.FeedItems.WithLabelValues(string(v)).Inc()
		if v == VerdictKeep {
			kept = append(kept, item)
		}
	}

	s.logger.Debug("timeline filtered",
		"fetched", len(items),
		"kept", len(kept),
		"spoilers", verdicts[VerdictSpoiler],
		"blocked", verdicts[VerdictBlockedAuthor],
		"out_of_context", verdicts[VerdictOutOfContext],
	)

	return &TimelinePage{
		Cursor:       next,
		Items:        RenderFeed(kept),
		Hidden:       len(items) - len(kept),
		HideSpoilers: cfg.HideSpoilers,
	}, nil
}

// Thread fetches the reply tree rooted at uri and flattens it. A negative
// depth selects the configured thread depth.
func (s *TimelineService) Thread(ctx context.Context, uri string, depth int) (*ThreadView, error) {
	if depth < 0 {
		depth = s.settings.ThreadDepth
	}

	cfg, err := s.FilterConfig(ctx)
	if err != nil {
		return nil, err
	}

	root, err := s.source.PostThread(ctx, uri, depth)
	if err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}

	entries := FlattenThread(root, cfg, depth)
	for _, e := range entries {
		metrics.ThreadEntries.WithLabelValues(string(e.Kind)).Inc()
	}
	return &ThreadView{URI: uri, Entries: entries}, nil
}

// LoadFollows refreshes the set of followed accounts used by the live feed.
// The viewer is always included.
func (s *TimelineService) LoadFollows(ctx context.Context) error {
	follows, err := s.source.Follows(ctx)
	if err != nil {
		return fmt.Errorf("load follows: %w", err)
	}

	byDID := make(map[string]AuthorView, len(follows)+1)
	for _, a := range follows {
		a.Following = true
		byDID[a.DID] = a
	}
	if viewer := s.source.Viewer(); viewer.DID != "" {
		byDID[viewer.DID] = viewer
	}

	s.mu.Lock()
	s.follows = byDID
	s.mu.Unlock()

	s.logger.Info("follows loaded", "count", len(follows))
	return nil
}

// FollowedDIDs returns the DIDs the live feed subscribes to, sorted.
func (s *TimelineService) FollowedDIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dids := make([]string, 0, len(s.follows))
	for did := range s.follows {
		dids = append(dids, did)
	}
	sort.Strings(dids)
	return dids
}

func (s *TimelineService) author(did string) (AuthorView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.follows[did]
	return a, ok
}

// ProcessNewPost runs a firehose post through the same filter as the
// timeline. The reply parent and quoted post are looked up first so their
// text counts toward the spoiler check. Posts that pass are added to the live
// buffer. Returns true if the post was kept.
func (s *TimelineService) ProcessNewPost(ctx context.Context, incoming *IncomingPost) (bool, error) {
	author, ok := s.author(incoming.AuthorDID)
	if !ok {
		metrics.LivePosts.WithLabelValues("not_followed").Inc()
		return false, nil
	}

	cfg, err := s.FilterConfig(ctx)
	if err != nil {
		return false, err
	}

	item, err := s.liveItem(ctx, incoming, author)
	if err != nil {
		return false, err
	}

	v := Classify(item, cfg)
	metrics.LivePosts.WithLabelValues(string(v)).Inc()
	if v != VerdictKeep {
		return false, nil
	}

	s.live.Add(RenderPost(item.Post))
	metrics.LiveBufferDepth.Set(float64(s.live.Len()))
	return true, nil
}

// liveItem builds a FeedItem for a firehose post with its reply parent and
// quoted post hydrated. Posts already in the live buffer are used as they
// are; the rest come from the feed source. A parent that cannot be found
// leaves Reply.Parent nil, a quote that cannot be found becomes a
// NotFoundEmbed.
func (s *TimelineService) liveItem(ctx context.Context, incoming *IncomingPost, author AuthorView) (FeedItem, error) {
	item := FeedItem{Post: PostView{
		URI:    incoming.URI,
		CID:    incoming.CID,
		Author: author,
		Record: incoming.Record,
	}}

	known := map[string]PostView{}
	var missing []string
	for _, uri := range []string{incoming.ParentURI, incoming.QuotedURI} {
		if uri == "" {
			continue
		}
		if _, seen := known[uri]; seen || slices.Contains(missing, uri) {
			continue
		}
		if rp, ok := s.live.Get(uri); ok {
			known[uri] = bufferedPost(rp)
			continue
		}
		missing = append(missing, uri)
	}
	if len(missing) > 0 {
		posts, err := s.source.Posts(ctx, missing)
		if err != nil {
			return FeedItem{}, fmt.Errorf("fetch live post context: %w", err)
		}
		for _, p := range posts {
			known[p.URI] = p
		}
	}

	if incoming.ParentURI != "" {
		item.Reply = &ReplyContext{}
		if parent, ok := known[incoming.ParentURI]; ok {
			if a, ok := s.author(parent.Author.DID); ok {
				parent.Author = a
			}
			item.Reply.Parent = &parent
		}
	}
	if incoming.QuotedURI != "" {
		if q, ok := known[incoming.QuotedURI]; ok {
			quoted := QuotedPost{
				URI:       q.URI,
				CID:       q.CID,
				Author:    q.Author,
				Text:      q.Record.Text,
				Facets:    q.Record.Facets,
				CreatedAt: q.Record.CreatedAt,
			}
			if q.Embed != nil {
				quoted.Embeds = []Embed{q.Embed}
			}
			item.Post.Embed = &RecordEmbed{Record: quoted}
		} else {
			item.Post.Embed = &NotFoundEmbed{URI: incoming.QuotedURI}
		}
	}
	return item, nil
}

// bufferedPost turns a live buffer entry back into a PostView. Only what the
// filter reads is restored.
func bufferedPost(rp RenderedPost) PostView {
	return PostView{
		URI:    rp.URI,
		CID:    rp.CID,
		Author: rp.Author,
		Record: PostRecord{Text: PlainText(rp.Fragments), CreatedAt: rp.CreatedAt},
	}
}

// ProcessDeletePost removes a deleted post from the live buffer.
func (s *TimelineService) ProcessDeletePost(_ context.Context, uri string) error {
	if s.live.Remove(uri) {
		metrics.LiveBufferDepth.Set(float64(s.live.Len()))
	}
	return nil
}

// Live returns up to limit live posts, newest first.
func (s *TimelineService) Live(limit int) []RenderedPost {
	return s.live.Recent(limit)
}

// GetCursor retrieves the last-processed firehose cursor for the given service.
func (s *TimelineService) GetCursor(ctx context.Context, service string) (int64, error) {
	if s.cursors == nil {
		return 0, nil
	}
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the firehose cursor for the given service.
func (s *TimelineService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	if s.cursors == nil {
		return nil
	}
	return s.cursors.UpdateCursor(ctx, service, cursor)
}
