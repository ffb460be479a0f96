package domain

// DefaultThreadDepth is how many reply levels below the root are flattened.
const DefaultThreadDepth = 3

// ThreadEntryKind tags a ThreadEntry.
type ThreadEntryKind string

const (
	ThreadEntryPost   ThreadEntryKind = "post"
	ThreadEntryPruned ThreadEntryKind = "pruned"
)

// PrunedMessage is shown in place of a reply branch hidden as a spoiler.
const PrunedMessage = "spoiler hidden in thread"

// ThreadEntry is one line of a flattened thread. Depth is 0 for the root and
// drives indentation.
type ThreadEntry struct {
	Kind    ThreadEntryKind `json:"kind"`
	Depth   int             `json:"depth"`
	URI     string          `json:"uri"`
	Post    *RenderedPost   `json:"post,omitempty"`
	Message string          `json:"message,omitempty"`
}

// FlattenThread walks the reply tree depth-first and returns its entries in
// display order. With spoiler hiding on, a node whose text matches a keyword
// becomes a single pruned entry and its replies are skipped; its ancestors and
// siblings are unaffected. Nodes deeper than maxDepth are omitted without a
// marker. A negative maxDepth selects DefaultThreadDepth.
func FlattenThread(root *ThreadNode, cfg FilterConfig, maxDepth int) []ThreadEntry {
	if maxDepth < 0 {
		maxDepth = DefaultThreadDepth
	}
	return flattenNode(root, cfg, 0, maxDepth, []ThreadEntry{})
}

func flattenNode(node *ThreadNode, cfg FilterConfig, depth, maxDepth int, entries []ThreadEntry) []ThreadEntry {
	if node == nil || depth > maxDepth {
		return entries
	}
	if cfg.IsSpoiler(node.Post.Record.Text) {
		return append(entries, ThreadEntry{
			Kind:    ThreadEntryPruned,
			Depth:   depth,
			URI:     node.Post.URI,
			Message: PrunedMessage,
		})
	}

	post := RenderPost(node.Post)
	entries = append(entries, ThreadEntry{
		Kind:  ThreadEntryPost,
		Depth: depth,
		URI:   node.Post.URI,
		Post:  &post,
	})
	for _, child := range node.Replies {
		entries = flattenNode(child, cfg, depth+1, maxDepth, entries)
	}
	return entries
}
