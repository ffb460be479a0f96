package domain

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// ProfileURLPrefix is where autolinked @handle mentions point.
const ProfileURLPrefix = "https://bsky.app/profile/"

// Fragment is a displayable span of post text. Link is empty for plain text.
type Fragment struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// autolinkPattern finds URLs, bare www. hosts and @handle.domain mentions in
// text that carries no link facets.
var autolinkPattern = regexp.MustCompile(`(?i)https?://[^\s<>"]+|\bwww\.[^\s<>"]+|@[a-z0-9][a-z0-9.-]*\.[a-z][a-z0-9-]*`)

// trailingPunctuation is stripped from the end of autolinked tokens so that
// "see https://example.com." does not link the full stop. Closing brackets
// are handled by trimTrailing.
const trailingPunctuation = `.,;:!?'"`

// closers maps each closing bracket to its opener.
var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

type linkRange struct {
	start int
	end   int
	uri   string
}

// Segment splits text into plain and linked fragments using the link facets.
// Facet byte ranges are mapped through an OffsetMapper, sorted by start and
// applied first-wins; ranges that overlap an earlier one are ignored. When no
// facet carries a link, Segment falls back to Autolink. Concatenating the
// fragment texts always yields text.
func Segment(text string, facets []Facet) []Fragment {
	if !hasLinkFacet(facets) {
		return Autolink(text)
	}

	m := NewOffsetMapper(text)
	ranges := make([]linkRange, 0, len(facets))
	for _, f := range facets {
		uri, ok := f.LinkURI()
		if !ok {
			continue
		}
		start, end := m.Range(f.ByteStart, f.ByteEnd)
		if end <= start {
			continue
		}
		ranges = append(ranges, linkRange{start: start, end: end, uri: uri})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].start < ranges[j].start
	})

	frags := make([]Fragment, 0, 2*len(ranges)+1)
	cursor := 0
	for _, r := range ranges {
		if r.start < cursor {
			continue
		}
		frags = appendPlain(frags, text[cursor:r.start])
		frags = appendLink(frags, text[r.start:r.end], r.uri)
		cursor = r.end
	}
	return appendPlain(frags, text[cursor:])
}

// Autolink finds http(s) URLs, bare www. hosts and @handle mentions in text
// and links them. Everything else is returned as plain fragments.
func Autolink(text string) []Fragment {
	frags := []Fragment{}
	cursor := 0
	for _, loc := range autolinkPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		token := trimTrailing(text[start:end])
		end = start + len(token)

		target, ok := autolinkTarget(text, start, token)
		if !ok {
			continue
		}
		frags = appendPlain(frags, text[cursor:start])
		frags = appendLink(frags, token, target)
		cursor = end
	}
	return appendPlain(frags, text[cursor:])
}

// autolinkTarget returns the URI a matched token should point at.
// trimTrailing drops trailing punctuation from an autolinked token. A closing
// bracket is dropped only when the token has more of it than of its opener,
// so https://en.wikipedia.org/wiki/Foo_(bar) keeps its ")".
func trimTrailing(token string) string {
	for token != "" {
		last := token[len(token)-1]
		if strings.IndexByte(trailingPunctuation, last) >= 0 {
			token = token[:len(token)-1]
			continue
		}
		open, ok := closers[last]
		if ok && strings.Count(token, string(last)) > strings.Count(token, string(open)) {
			token = token[:len(token)-1]
			continue
		}
		break
	}
	return token
}

func autolinkTarget(text string, start int, token string) (string, bool) {
	switch {
	case token == "":
		return "", false
	case token[0] == '@':
		// bob@example.com is an email address, not a mention
		if start > 0 && isWordByte(text[start-1]) {
			return "", false
		}
		handle, err := syntax.ParseHandle(token[1:])
		if err != nil {
			return "", false
		}
		return ProfileURLPrefix + handle.Normalize().String(), true
	case strings.HasPrefix(strings.ToLower(token), "www."):
		if start > 0 && text[start-1] == '/' {
			return "", false
		}
		return "https://" + token, true
	default:
		return token, true
	}
}

// SafeLinkURI reports whether raw is an absolute http or https URI with a
// host, returning it trimmed.
func SafeLinkURI(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return raw, true
}

// PlainText concatenates fragment texts.
func PlainText(frags []Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.Text)
	}
	return b.String()
}

func hasLinkFacet(facets []Facet) bool {
	for _, f := range facets {
		if _, ok := f.LinkURI(); ok {
			return true
		}
	}
	return false
}

// appendPlain appends s as plain text, merging with a preceding plain fragment.
func appendPlain(frags []Fragment, s string) []Fragment {
	if s == "" {
		return frags
	}
	if n := len(frags); n > 0 && frags[n-1].Link == "" {
		frags[n-1].Text += s
		return frags
	}
	return append(frags, Fragment{Text: s})
}

// appendLink appends a linked fragment, degrading to plain text when uri is
// not a safe link target.
func appendLink(frags []Fragment, s, uri string) []Fragment {
	safe, ok := SafeLinkURI(uri)
	if !ok {
		return appendPlain(frags, s)
	}
	return append(frags, Fragment{Text: s, Link: safe})
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
