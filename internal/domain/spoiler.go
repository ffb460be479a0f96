package domain

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// FilterConfig is the viewer context the filters run against. It is built by
// the caller for each request; the core never mutates it.
type FilterConfig struct {
	// HideSpoilers enables keyword and block-list filtering.
	HideSpoilers bool

	// OwnHandle is the viewer's handle. Replies to the viewer are always kept.
	OwnHandle string

	// Keywords are folded (lower case) substrings that mark a spoiler.
	Keywords mapset.Set[string]

	// BlockedHandles are exact author handles whose posts are hidden.
	BlockedHandles mapset.Set[string]
}

// NewFilterConfig folds the keywords and builds the lookup sets. Empty
// keywords and handles are ignored.
func NewFilterConfig(hide bool, ownHandle string, keywords, blockedHandles []string) FilterConfig {
	kw := mapset.NewThreadUnsafeSet[string]()
	for _, k := range keywords {
		if k = strings.TrimSpace(FoldText(k)); k != "" {
			kw.Add(k)
		}
	}
	blocked := mapset.NewThreadUnsafeSet[string]()
	for _, h := range blockedHandles {
		if h = strings.TrimSpace(h); h != "" {
			blocked.Add(h)
		}
	}
	return FilterConfig{
		HideSpoilers:   hide,
		OwnHandle:      ownHandle,
		Keywords:       kw,
		BlockedHandles: blocked,
	}
}

// FoldText normalises text for keyword matching: NFKC, then lower case.
func FoldText(text string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(text))
}

// MatchesKeyword reports whether the folded text contains any keyword.
func MatchesKeyword(text string, keywords mapset.Set[string]) bool {
	if text == "" || keywords == nil || keywords.Cardinality() == 0 {
		return false
	}
	folded := FoldText(text)
	matched := false
	keywords.Each(func(kw string) bool {
		if kw != "" && strings.Contains(folded, kw) {
			matched = true
			return true
		}
		return false
	})
	return matched
}

// IsBlockedHandle reports whether handle is on the block list. Handles are
// compared exactly.
func IsBlockedHandle(handle string, blocked mapset.Set[string]) bool {
	if handle == "" || blocked == nil {
		return false
	}
	return blocked.Contains(handle)
}

// AggregateSpoilerText joins every piece of text a viewer sees with the item:
// the post, the post it replies to and the post it quotes.
func AggregateSpoilerText(item FeedItem) string {
	parts := []string{item.Post.Record.Text}
	if item.Reply != nil && item.Reply.Parent != nil {
		parts = append(parts, item.Reply.Parent.Record.Text)
	}
	if q := quotedPost(item.Post.Embed); q != nil {
		parts = append(parts, q.Text)
	}
	return strings.Join(parts, "\n")
}

// quotedPost returns the available quoted post of an embed, if any.
func quotedPost(e Embed) *QuotedPost {
	switch v := e.(type) {
	case *RecordEmbed:
		if v != nil {
			return &v.Record
		}
	case *RecordWithMediaEmbed:
		if v == nil {
			return nil
		}
		if rec, ok := v.Record.(*RecordEmbed); ok && rec != nil {
			return &rec.Record
		}
	}
	return nil
}

// IsSpoiler reports whether text should be hidden under cfg.
func (c FilterConfig) IsSpoiler(text string) bool {
	return c.HideSpoilers && MatchesKeyword(text, c.Keywords)
}
