package firehose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/jetstream/pkg/models"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/caughtup/internal/bluesky"
	"github.com/blackmichael/caughtup/internal/domain"
	"github.com/blackmichael/caughtup/internal/metrics"
)

const (
	cursorServiceName  = "jetstream"
	cursorSaveInterval = 5 * time.Second

	postCollection = "app.bsky.feed.post"

	// maxWantedDIDs is the Jetstream limit on wantedDids.
	maxWantedDIDs = 10000

	// followRefreshInterval is how often follows are reloaded while
	// connected.
	followRefreshInterval = 10 * time.Minute
)

// errFollowsChanged ends a connection whose wantedDids no longer match the
// followed accounts.
var errFollowsChanged = errors.New("followed accounts changed")

// Processor receives the posts of followed accounts. domain.TimelineService
// implements it.
type Processor interface {
	LoadFollows(ctx context.Context) error
	FollowedDIDs() []string
	ProcessNewPost(ctx context.Context, incoming *domain.IncomingPost) (bool, error)
	ProcessDeletePost(ctx context.Context, uri string) error
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber connects to the Jetstream firehose and feeds posts from
// followed accounts into the live buffer.
type Subscriber struct {
	url             string
	processor       Processor
	logger          *slog.Logger
	refreshInterval time.Duration
}

// NewSubscriber creates a new firehose subscriber.
func NewSubscriber(firehoseURL string, processor Processor, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:             firehoseURL,
		processor:       processor,
		logger:          logger,
		refreshInterval: followRefreshInterval,
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. It automatically reconnects on transient errors, and reloads
// follows before every reconnect. The caller loads follows before the first
// connection.
func (s *Subscriber) Start(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > 0 {
			if err := s.processor.LoadFollows(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to reload follows, keeping previous set", "error", err)
			}
		}

		err := s.subscribe(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, errFollowsChanged):
			s.logger.Info("followed accounts changed, reconnecting")
		case err != nil:
			s.logger.Error("firehose connection error, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				// backoff before reconnecting
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64, dids []string) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse firehose url: %w", err)
	}
	q := u.Query()
	q.Add("wantedCollections", postCollection)
	for _, did := range dids {
		q.Add("wantedDids", did)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.processor.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	dids := s.wantedDIDs()
	if len(dids) == 0 {
		return fmt.Errorf("no followed accounts to subscribe to")
	}

	wsURL, err := s.buildURL(cursor, dids)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to firehose", "url", s.url, "dids", len(dids), "cursor", cursor)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown or when follows change
	stop := make(chan struct{})
	defer close(stop)
	changed := make(chan struct{})
	go s.watch(ctx, conn, dids, stop, changed)

	s.logger.Info("connected to firehose")

	lastCursorSave := time.Now()
	var latestCursor int64
	var eventsReceived, postsKept int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-changed:
				if latestCursor > 0 {
					if err := s.processor.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
						s.logger.Error("failed to save cursor", "error", err)
					}
				}
				return errFollowsChanged
			default:
			}
			return fmt.Errorf("read message: %w", err)
		}

		var event models.Event
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		latestCursor = event.TimeUS
		metrics.FirehoseEvents.WithLabelValues(event.Kind).Inc()

		if kept, err := s.handleEvent(ctx, &event); err != nil {
			s.logger.Error("failed to handle commit", "did", event.Did, "error", err)
		} else if kept {
			postsKept++
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("firehose stats",
				"events_received", eventsReceived,
				"posts_kept", postsKept,
			)
			lastStatsLog = time.Now()
		}

		// Periodically save cursor
		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.processor.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

// wantedDIDs returns the followed DIDs, truncated to the Jetstream limit.
func (s *Subscriber) wantedDIDs() []string {
	dids := s.processor.FollowedDIDs()
	if len(dids) > maxWantedDIDs {
		s.logger.Warn("too many follows for jetstream, truncating", "follows", len(dids), "max", maxWantedDIDs)
		dids = dids[:maxWantedDIDs]
	}
	return dids
}

// watch closes conn when ctx is done, or after a periodic follows reload
// changes the wanted DIDs, in which case changed is closed first.
func (s *Subscriber) watch(ctx context.Context, conn *websocket.Conn, dids []string, stop <-chan struct{}, changed chan<- struct{}) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.processor.LoadFollows(ctx); err != nil {
				s.logger.Warn("failed to reload follows", "error", err)
				continue
			}
			if !slices.Equal(s.wantedDIDs(), dids) {
				close(changed)
				conn.Close()
				return
			}
		}
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event *models.Event) (kept bool, err error) {
	if event.Kind != models.EventKindCommit || event.Commit == nil {
		return false, nil
	}
	commit := event.Commit
	if commit.Collection != postCollection {
		return false, nil
	}

	uri := fmt.Sprintf("at://%s/%s/%s", event.Did, commit.Collection, commit.RKey)

	switch commit.Operation {
	case models.CommitOperationCreate:
		if len(commit.Record) == 0 {
			return false, nil
		}

		incoming, err := parsePost(uri, commit.CID, event.Did, commit.Record)
		if err != nil {
			return false, err
		}

		kept, err := s.processor.ProcessNewPost(ctx, incoming)
		if err != nil {
			return false, err
		}
		if kept {
			s.logger.Debug("live post kept",
				"uri", uri,
				"text_preview", truncate(incoming.Record.Text, 100),
			)
		}
		return kept, nil

	case models.CommitOperationDelete:
		return false, s.processor.ProcessDeletePost(ctx, uri)

	default:
		return false, nil
	}
}

// parsePost decodes an app.bsky.feed.post record from a commit.
func parsePost(uri, cid, did string, record json.RawMessage) (*domain.IncomingPost, error) {
	var post bsky.FeedPost
	if err := json.Unmarshal(record, &post); err != nil {
		return nil, fmt.Errorf("unmarshal post record: %w", err)
	}

	incoming := &domain.IncomingPost{
		URI:       uri,
		CID:       cid,
		AuthorDID: did,
		Record:    bluesky.PostRecord(&post),
	}
	if post.Reply != nil && post.Reply.Parent != nil {
		incoming.ParentURI = post.Reply.Parent.Uri
	}
	if e := post.Embed; e != nil {
		switch {
		case e.EmbedRecord != nil && e.EmbedRecord.Record != nil:
			incoming.QuotedURI = e.EmbedRecord.Record.Uri
		case e.EmbedRecordWithMedia != nil && e.EmbedRecordWithMedia.Record != nil && e.EmbedRecordWithMedia.Record.Record != nil:
			incoming.QuotedURI = e.EmbedRecordWithMedia.Record.Record.Uri
		}
	}
	return incoming, nil
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
