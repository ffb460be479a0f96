package domain

import "time"

// RenderedPost is a post ready for display: text split into fragments and the
// embed resolved.
type RenderedPost struct {
	URI         string         `json:"uri"`
	CID         string         `json:"cid"`
	Author      AuthorView     `json:"author"`
	Fragments   []Fragment     `json:"fragments"`
	CreatedAt   time.Time      `json:"createdAt"`
	Embed       *ResolvedEmbed `json:"embed,omitempty"`
	ReplyCount  int64          `json:"replyCount"`
	RepostCount int64          `json:"repostCount"`
	LikeCount   int64          `json:"likeCount"`
	QuoteCount  int64          `json:"quoteCount"`
	Liked       bool           `json:"liked"`
	Reposted    bool           `json:"reposted"`
}

// RenderedItem is a rendered timeline entry with its reply and repost context.
type RenderedItem struct {
	Post       RenderedPost `json:"post"`
	RepostedBy *AuthorView  `json:"repostedBy,omitempty"`
	ReplyTo    *AuthorView  `json:"replyTo,omitempty"`

	// ReplyParentUnavailable is set for replies whose parent could not be
	// loaded, so the client can say so instead of dropping the context.
	ReplyParentUnavailable bool `json:"replyParentUnavailable,omitempty"`
}

// RenderPost segments the post text and resolves its embed.
func RenderPost(p PostView) RenderedPost {
	rp := RenderedPost{
		URI:         p.URI,
		CID:         p.CID,
		Author:      p.Author,
		Fragments:   Segment(p.Record.Text, p.Record.Facets),
		CreatedAt:   p.Record.CreatedAt,
		Embed:       ResolveEmbed(p.Embed),
		ReplyCount:  p.ReplyCount,
		RepostCount: p.RepostCount,
		LikeCount:   p.LikeCount,
		QuoteCount:  p.QuoteCount,
	}
	if p.Viewer != nil {
		rp.Liked = p.Viewer.Liked
		rp.Reposted = p.Viewer.Reposted
	}
	return rp
}

// RenderFeed renders every item in order. It does not filter; run FilterFeed
// first.
func RenderFeed(items []FeedItem) []RenderedItem {
	out := make([]RenderedItem, 0, len(items))
	for _, item := range items {
		ri := RenderedItem{Post: RenderPost(item.Post)}
		if item.Reason != nil {
			by := item.Reason.By
			ri.RepostedBy = &by
		}
		if item.Reply != nil {
			if item.Reply.Parent != nil {
				to := item.Reply.Parent.Author
				ri.ReplyTo = &to
			} else {
				ri.ReplyParentUnavailable = true
			}
		}
		out = append(out, ri)
	}
	return out
}
