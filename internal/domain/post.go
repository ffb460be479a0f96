package domain

import "time"

// FeedItem is one entry of a timeline page: a post plus optional reply and
// repost context.
type FeedItem struct {
	// Post is the post being surfaced.
	Post PostView

	// Reply is set when Post is a reply.
	Reply *ReplyContext

	// Reason is set when the item was surfaced by a repost.
	Reason *RepostReason
}

// ReplyContext describes what a reply is attached to.
type ReplyContext struct {
	// Root references the first post of the thread.
	Root PostRef

	// Parent is the post being replied to. It is nil when the parent is
	// unavailable (deleted, blocked or otherwise not returned).
	Parent *PostView
}

// RepostReason records who reposted an item into the timeline.
type RepostReason struct {
	By        AuthorView
	IndexedAt time.Time
}

// PostRef is a strong reference to a post.
type PostRef struct {
	URI string
	CID string
}

// PostView is a hydrated post as returned by the AppView.
type PostView struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// CID is the content identifier of the record.
	CID string

	Author AuthorView
	Record PostRecord

	// Embed is the hydrated embed, or nil.
	Embed Embed

	ReplyCount  int64
	RepostCount int64
	LikeCount   int64
	QuoteCount  int64

	// Viewer is the authenticated account's relationship to the post.
	Viewer *ViewerState
}

// PostRecord is the author-controlled content of a post.
type PostRecord struct {
	Text      string
	CreatedAt time.Time
	Facets    []Facet
}

// ViewerState is the viewer's interaction with a post.
type ViewerState struct {
	Liked    bool
	Reposted bool
}

// AuthorView is the basic profile of a post author.
type AuthorView struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`

	// Following is true when the viewer follows this account.
	Following bool `json:"following"`
}

// Name returns the display name, falling back to the handle.
func (a AuthorView) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if a.Handle != "" {
		return a.Handle
	}
	return "Unknown"
}

// FeatureKind identifies the kind of a facet feature.
type FeatureKind int

const (
	UnknownFeature FeatureKind = iota
	LinkFeature
	MentionFeature
	TagFeature
)

func (k FeatureKind) String() string {
	switch k {
	case LinkFeature:
		return "link"
	case MentionFeature:
		return "mention"
	case TagFeature:
		return "tag"
	default:
		return "unknown"
	}
}

// Facet annotates the byte range [ByteStart, ByteEnd) of the UTF-8 encoded
// post text.
type Facet struct {
	ByteStart int
	ByteEnd   int
	Features  []FacetFeature
}

// FacetFeature is a single typed annotation. Only the field matching Kind is
// populated.
type FacetFeature struct {
	Kind FeatureKind
	URI  string
	DID  string
	Tag  string
}

// LinkURI returns the URI of the first link feature of the facet.
func (f Facet) LinkURI() (string, bool) {
	for _, feat := range f.Features {
		if feat.Kind == LinkFeature {
			return feat.URI, true
		}
	}
	return "", false
}

// ThreadNode is one post of a reply tree.
type ThreadNode struct {
	Post    PostView
	Replies []*ThreadNode
}

// IncomingPost is a post seen on the firehose. Unlike PostView it is not
// hydrated: the author is only known by DID and the reply parent only by URI.
type IncomingPost struct {
	// URI is the AT-URI of the post.
	URI string

	// CID is the content identifier of the record.
	CID string

	// AuthorDID is the DID of the post's author.
	AuthorDID string

	Record PostRecord

	// ParentURI is the AT-URI of the post being replied to, if any.
	ParentURI string

	// QuotedURI is the AT-URI of a quoted post, if any.
	QuotedURI string
}
