package bluesky

import (
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/lex/util"

	"github.com/blackmichael/caughtup/internal/domain"
)

// FeedItem converts a timeline entry. It reports false for entries without a
// post.
func FeedItem(fvp *bsky.FeedDefs_FeedViewPost) (domain.FeedItem, bool) {
	if fvp == nil || fvp.Post == nil {
		return domain.FeedItem{}, false
	}

	item := domain.FeedItem{Post: PostView(fvp.Post)}

	if fvp.Reply != nil {
		rc := &domain.ReplyContext{}
		if root := fvp.Reply.Root; root != nil {
			switch {
			case root.FeedDefs_PostView != nil:
				rc.Root = domain.PostRef{URI: root.FeedDefs_PostView.Uri, CID: root.FeedDefs_PostView.Cid}
			case root.FeedDefs_NotFoundPost != nil:
				rc.Root = domain.PostRef{URI: root.FeedDefs_NotFoundPost.Uri}
			case root.FeedDefs_BlockedPost != nil:
				rc.Root = domain.PostRef{URI: root.FeedDefs_BlockedPost.Uri}
			}
		}
		if parent := fvp.Reply.Parent; parent != nil && parent.FeedDefs_PostView != nil {
			pv := PostView(parent.FeedDefs_PostView)
			rc.Parent = &pv
		}
		item.Reply = rc
	}

	if fvp.Reason != nil && fvp.Reason.FeedDefs_ReasonRepost != nil {
		repost := fvp.Reason.FeedDefs_ReasonRepost
		item.Reason = &domain.RepostReason{
			By:        Author(repost.By),
			IndexedAt: parseTime(repost.IndexedAt),
		}
	}

	return item, true
}

// PostView converts a hydrated post.
func PostView(p *bsky.FeedDefs_PostView) domain.PostView {
	if p == nil {
		return domain.PostView{}
	}

	pv := domain.PostView{
		URI:         p.Uri,
		CID:         p.Cid,
		Author:      Author(p.Author),
		Record:      recordValue(p.Record),
		Embed:       postEmbed(p.Embed),
		ReplyCount:  deref(p.ReplyCount),
		RepostCount: deref(p.RepostCount),
		LikeCount:   deref(p.LikeCount),
		QuoteCount:  deref(p.QuoteCount),
	}
	if p.Viewer != nil {
		pv.Viewer = &domain.ViewerState{
			Liked:    p.Viewer.Like != nil,
			Reposted: p.Viewer.Repost != nil,
		}
	}
	return pv
}

// ThreadNode converts a thread view, keeping only replies that are available.
func ThreadNode(t *bsky.FeedDefs_ThreadViewPost) *domain.ThreadNode {
	if t == nil || t.Post == nil {
		return nil
	}
	node := &domain.ThreadNode{Post: PostView(t.Post)}
	for _, r := range t.Replies {
		if r == nil || r.FeedDefs_ThreadViewPost == nil {
			continue
		}
		if child := ThreadNode(r.FeedDefs_ThreadViewPost); child != nil {
			node.Replies = append(node.Replies, child)
		}
	}
	return node
}

// Author converts a basic profile view.
func Author(a *bsky.ActorDefs_ProfileViewBasic) domain.AuthorView {
	if a == nil {
		return domain.AuthorView{}
	}
	av := domain.AuthorView{
		DID:         a.Did,
		Handle:      a.Handle,
		DisplayName: deref(a.DisplayName),
		Avatar:      deref(a.Avatar),
	}
	if a.Viewer != nil && a.Viewer.Following != nil {
		av.Following = true
	}
	return av
}

// Profile converts a full profile view, as returned by getFollows.
func Profile(p *bsky.ActorDefs_ProfileView) domain.AuthorView {
	if p == nil {
		return domain.AuthorView{}
	}
	av := domain.AuthorView{
		DID:         p.Did,
		Handle:      p.Handle,
		DisplayName: deref(p.DisplayName),
		Avatar:      deref(p.Avatar),
	}
	if p.Viewer != nil && p.Viewer.Following != nil {
		av.Following = true
	}
	return av
}

// PostRecord converts an app.bsky.feed.post record.
func PostRecord(r *bsky.FeedPost) domain.PostRecord {
	if r == nil {
		return domain.PostRecord{}
	}
	return domain.PostRecord{
		Text:      r.Text,
		CreatedAt: parseTime(r.CreatedAt),
		Facets:    Facets(r.Facets),
	}
}

// Facets converts rich text facets. Facets without a byte slice are dropped;
// unrecognised features are kept as UnknownFeature.
func Facets(in []*bsky.RichtextFacet) []domain.Facet {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Facet, 0, len(in))
	for _, f := range in {
		if f == nil || f.Index == nil {
			continue
		}
		facet := domain.Facet{
			ByteStart: int(f.Index.ByteStart),
			ByteEnd:   int(f.Index.ByteEnd),
		}
		for _, feat := range f.Features {
			if feat == nil {
				continue
			}
			switch {
			case feat.RichtextFacet_Link != nil:
				facet.Features = append(facet.Features, domain.FacetFeature{Kind: domain.LinkFeature, URI: feat.RichtextFacet_Link.Uri})
			case feat.RichtextFacet_Mention != nil:
				facet.Features = append(facet.Features, domain.FacetFeature{Kind: domain.MentionFeature, DID: feat.RichtextFacet_Mention.Did})
			case feat.RichtextFacet_Tag != nil:
				facet.Features = append(facet.Features, domain.FacetFeature{Kind: domain.TagFeature, Tag: feat.RichtextFacet_Tag.Tag})
			default:
				facet.Features = append(facet.Features, domain.FacetFeature{Kind: domain.UnknownFeature})
			}
		}
		out = append(out, facet)
	}
	return out
}

func recordValue(rec *util.LexiconTypeDecoder) domain.PostRecord {
	if rec == nil {
		return domain.PostRecord{}
	}
	if fp, ok := rec.Val.(*bsky.FeedPost); ok {
		return PostRecord(fp)
	}
	return domain.PostRecord{}
}

func postEmbed(e *bsky.FeedDefs_PostView_Embed) domain.Embed {
	if e == nil {
		return nil
	}
	switch {
	case e.EmbedImages_View != nil:
		return imagesEmbed(e.EmbedImages_View)
	case e.EmbedExternal_View != nil:
		return externalEmbed(e.EmbedExternal_View)
	case e.EmbedVideo_View != nil:
		return videoEmbed(e.EmbedVideo_View)
	case e.EmbedRecord_View != nil:
		return recordEmbed(e.EmbedRecord_View)
	case e.EmbedRecordWithMedia_View != nil:
		return recordWithMediaEmbed(e.EmbedRecordWithMedia_View)
	}
	return nil
}

func imagesEmbed(v *bsky.EmbedImages_View) domain.Embed {
	out := &domain.ImagesEmbed{}
	for _, img := range v.Images {
		if img == nil {
			continue
		}
		out.Images = append(out.Images, domain.Image{Thumb: img.Thumb, Fullsize: img.Fullsize, Alt: img.Alt})
	}
	return out
}

func externalEmbed(v *bsky.EmbedExternal_View) domain.Embed {
	if v.External == nil {
		return nil
	}
	return &domain.ExternalEmbed{
		URI:         v.External.Uri,
		Title:       v.External.Title,
		Description: v.External.Description,
		Thumb:       deref(v.External.Thumb),
	}
}

func videoEmbed(v *bsky.EmbedVideo_View) domain.Embed {
	return &domain.VideoEmbed{
		Playlist:  v.Playlist,
		Thumbnail: deref(v.Thumbnail),
		Alt:       deref(v.Alt),
	}
}

// recordEmbed converts a quote. Feed generators, lists and other record
// kinds are not posts and convert to nil.
func recordEmbed(v *bsky.EmbedRecord_View) domain.Embed {
	if v == nil || v.Record == nil {
		return nil
	}
	switch {
	case v.Record.EmbedRecord_ViewRecord != nil:
		return &domain.RecordEmbed{Record: quotedPost(v.Record.EmbedRecord_ViewRecord)}
	case v.Record.EmbedRecord_ViewNotFound != nil:
		return &domain.NotFoundEmbed{URI: v.Record.EmbedRecord_ViewNotFound.Uri}
	case v.Record.EmbedRecord_ViewBlocked != nil:
		return &domain.BlockedEmbed{URI: v.Record.EmbedRecord_ViewBlocked.Uri}
	}
	return nil
}

func recordWithMediaEmbed(v *bsky.EmbedRecordWithMedia_View) domain.Embed {
	out := &domain.RecordWithMediaEmbed{Record: recordEmbed(v.Record)}
	if m := v.Media; m != nil {
		switch {
		case m.EmbedImages_View != nil:
			out.Media = imagesEmbed(m.EmbedImages_View)
		case m.EmbedExternal_View != nil:
			out.Media = externalEmbed(m.EmbedExternal_View)
		case m.EmbedVideo_View != nil:
			out.Media = videoEmbed(m.EmbedVideo_View)
		}
	}
	return out
}

func quotedPost(r *bsky.EmbedRecord_ViewRecord) domain.QuotedPost {
	rec := recordValue(r.Value)
	q := domain.QuotedPost{
		URI:       r.Uri,
		CID:       r.Cid,
		Author:    Author(r.Author),
		Text:      rec.Text,
		Facets:    rec.Facets,
		CreatedAt: rec.CreatedAt,
	}
	for _, e := range r.Embeds {
		if e == nil {
			continue
		}
		var emb domain.Embed
		switch {
		case e.EmbedImages_View != nil:
			emb = imagesEmbed(e.EmbedImages_View)
		case e.EmbedExternal_View != nil:
			emb = externalEmbed(e.EmbedExternal_View)
		case e.EmbedVideo_View != nil:
			emb = videoEmbed(e.EmbedVideo_View)
		case e.EmbedRecord_View != nil:
			emb = recordEmbed(e.EmbedRecord_View)
		case e.EmbedRecordWithMedia_View != nil:
			emb = recordWithMediaEmbed(e.EmbedRecordWithMedia_View)
		}
		if emb != nil {
			q.Embeds = append(q.Embeds, emb)
		}
	}
	return q
}

// parseTime parses an AT Protocol datetime, returning the zero time when the
// value is missing or malformed.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if dt, err := syntax.ParseDatetimeLenient(s); err == nil {
		return dt.Time()
	}
	return time.Time{}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
