package domain

// TimelinePage is the response body for a filtered timeline request.
type TimelinePage struct {
	Cursor string         `json:"cursor,omitempty"`
	Items  []RenderedItem `json:"items"`

	// Hidden is how many fetched items the filter removed.
	Hidden       int  `json:"hidden"`
	HideSpoilers bool `json:"hideSpoilers"`
}

// ThreadView is the response body for a flattened thread request.
type ThreadView struct {
	URI     string        `json:"uri"`
	Entries []ThreadEntry `json:"entries"`
}

// FilterSettings is the static part of the filter configuration. The keyword
// and handle lists never change at runtime; only the toggle does.
type FilterSettings struct {
	// DefaultHideSpoilers applies until a preference has been saved.
	DefaultHideSpoilers bool

	Keywords       []string
	BlockedHandles []string

	// ThreadDepth is the maximum reply depth flattened below a thread root.
	ThreadDepth int
}
