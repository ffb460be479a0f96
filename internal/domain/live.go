package domain

import "sync"

// DefaultLiveCapacity is how many live posts are kept in memory.
const DefaultLiveCapacity = 100

// LiveBuffer holds the most recent live posts that passed the filter, newest
// first. It is safe for concurrent use.
type LiveBuffer struct {
	mu       sync.RWMutex
	capacity int
	posts    []RenderedPost
}

// NewLiveBuffer creates a buffer holding at most capacity posts. A
// non-positive capacity selects DefaultLiveCapacity.
func NewLiveBuffer(capacity int) *LiveBuffer {
	if capacity <= 0 {
		capacity = DefaultLiveCapacity
	}
	return &LiveBuffer{capacity: capacity, posts: make([]RenderedPost, 0, capacity)}
}

// Add inserts post at the front, evicting the oldest post when full. A post
// already present (same URI) is replaced.
func (b *LiveBuffer) Add(post RenderedPost) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(post.URI)
	if len(b.posts) == b.capacity {
		b.posts = b.posts[:len(b.posts)-1]
	}
	b.posts = append(b.posts, RenderedPost{})
	copy(b.posts[1:], b.posts)
	b.posts[0] = post
}

// Remove drops the post with the given URI. It reports whether a post was
// removed.
func (b *LiveBuffer) Remove(uri string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(uri)
}

func (b *LiveBuffer) removeLocked(uri string) bool {
	for i, p := range b.posts {
		if p.URI == uri {
			b.posts = append(b.posts[:i], b.posts[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the buffered post with the given URI.
func (b *LiveBuffer) Get(uri string) (RenderedPost, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.posts {
		if p.URI == uri {
			return p, true
		}
	}
	return RenderedPost{}, false
}

// Recent returns up to limit posts, newest first. A non-positive limit
// returns everything.
func (b *LiveBuffer) Recent(limit int) []RenderedPost {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.posts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RenderedPost, n)
	copy(out, b.posts[:n])
	return out
}

// Len returns the number of buffered posts.
func (b *LiveBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.posts)
}
