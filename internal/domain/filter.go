package domain

// Verdict is the outcome of running the feed filter on one item.
type Verdict string

const (
	VerdictKeep          Verdict = "kept"
	VerdictOutOfContext  Verdict = "out_of_context_reply"
	VerdictBlockedAuthor Verdict = "blocked_author"
	VerdictSpoiler       Verdict = "spoiler"
)

// IncludeByReplyRule keeps everything that is not a reply, plus replies the
// viewer has a reason to see: surfaced by a followed reposter, addressed to
// the viewer, or addressed to someone the viewer follows. Replies to an
// unavailable parent are dropped.
func IncludeByReplyRule(item FeedItem, cfg FilterConfig) bool {
	if item.Reply == nil {
		return true
	}
	if item.Reason != nil && item.Reason.By.Following {
		return true
	}
	parent := item.Reply.Parent
	if parent == nil {
		return false
	}
	if cfg.OwnHandle != "" && parent.Author.Handle == cfg.OwnHandle {
		return true
	}
	return parent.Author.Following
}

// Classify returns the verdict for item under cfg. The reply rule applies
// whether or not spoiler hiding is enabled.
func Classify(item FeedItem, cfg FilterConfig) Verdict {
	if !IncludeByReplyRule(item, cfg) {
		return VerdictOutOfContext
	}
	if !cfg.HideSpoilers {
		return VerdictKeep
	}
	if IsBlockedHandle(item.Post.Author.Handle, cfg.BlockedHandles) {
		return VerdictBlockedAuthor
	}
	if MatchesKeyword(AggregateSpoilerText(item), cfg.Keywords) {
		return VerdictSpoiler
	}
	return VerdictKeep
}

// Include reports whether item survives the filter.
func Include(item FeedItem, cfg FilterConfig) bool {
	return Classify(item, cfg) == VerdictKeep
}

// FilterFeed returns the items that survive the filter, in their original
// order. The input slice is not modified.
func FilterFeed(items []FeedItem, cfg FilterConfig) []FeedItem {
	kept := make([]FeedItem, 0, len(items))
	for _, item := range items {
		if Include(item, cfg) {
			kept = append(kept, item)
		}
	}
	return kept
}
