package terminal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/blackmichael/caughtup/internal/domain"
)

var (
	metaColor = lipgloss.Color("245")

	nameStyle   = lipgloss.NewStyle().Bold(true)
	metaStyle   = lipgloss.NewStyle().Foreground(metaColor)
	linkStyle   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("111"))
	prunedStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("216"))
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(metaColor).
			PaddingLeft(1).
			PaddingRight(1)
)

// Renderer formats rendered posts for a terminal.
type Renderer struct {
	// Now is used for relative timestamps.
	Now func() time.Time
}

// NewRenderer creates a Renderer using the wall clock.
func NewRenderer() *Renderer {
	return &Renderer{Now: time.Now}
}

// Timeline renders a timeline page.
func (r *Renderer) Timeline(page *domain.TimelinePage) string {
	var b strings.Builder
	for i, item := range page.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Item(item))
	}

	footer := fmt.Sprintf("%d posts", len(page.Items))
	if page.Hidden > 0 {
		footer += fmt.Sprintf(", %d hidden", page.Hidden)
	}
	if !page.HideSpoilers {
		footer += ", spoilers shown"
	}
	if page.Cursor != "" {
		footer += ", next cursor " + page.Cursor
	}
	b.WriteString("\n" + metaStyle.Render(footer) + "\n")
	return b.String()
}

// Item renders a timeline entry with its repost and reply context.
func (r *Renderer) Item(item domain.RenderedItem) string {
	var b strings.Builder
	if item.RepostedBy != nil {
		b.WriteString(metaStyle.Render("⟲ reposted by "+item.RepostedBy.Name()) + "\n")
	}
	switch {
	case item.ReplyTo != nil:
		b.WriteString(metaStyle.Render("↪ replying to "+item.ReplyTo.Name()) + "\n")
	case item.ReplyParentUnavailable:
		b.WriteString(metaStyle.Render("↪ replying to an unavailable post") + "\n")
	}
	b.WriteString(r.Post(item.Post))
	return b.String()
}

// Post renders one post: header, text, embed and counts.
func (r *Renderer) Post(p domain.RenderedPost) string {
	var b strings.Builder
	b.WriteString(r.header(p.Author, p.CreatedAt) + "\n")
	if text := Fragments(p.Fragments); text != "" {
		b.WriteString(text + "\n")
	}
	if p.Embed != nil {
		b.WriteString(r.Embed(*p.Embed) + "\n")
	}
	b.WriteString(metaStyle.Render(counts(p)) + "\n")
	return b.String()
}

// Thread renders a flattened thread, indenting replies by depth.
func (r *Renderer) Thread(view *domain.ThreadView) string {
	var b strings.Builder
	for _, e := range view.Entries {
		indent := lipgloss.NewStyle().PaddingLeft(2 * e.Depth)
		switch e.Kind {
		case domain.ThreadEntryPruned:
			b.WriteString(indent.Render(prunedStyle.Render("⚠ "+e.Message)) + "\n")
		case domain.ThreadEntryPost:
			if e.Post != nil {
				b.WriteString(indent.Render(strings.TrimRight(r.Post(*e.Post), "\n")) + "\n")
			}
		}
	}
	return b.String()
}

// Embed renders a resolved embed as a bordered card.
func (r *Renderer) Embed(e domain.ResolvedEmbed) string {
	var lines []string
	switch e.Kind {
	case domain.ResolvedImages:
		for _, img := range e.Images {
			label := "🖼 image"
			if img.Alt != "" {
				label += ": " + img.Alt
			}
			lines = append(lines, label, linkStyle.Render(img.URI))
		}
	case domain.ResolvedExternal:
		if e.External != nil {
			if e.External.Title != "" {
				lines = append(lines, nameStyle.Render(e.External.Title))
			}
			if e.External.Description != "" {
				lines = append(lines, e.External.Description)
			}
			lines = append(lines, linkStyle.Render(e.External.URI))
		}
	case domain.ResolvedVideo:
		if e.Video != nil {
			label := "▶ video"
			if e.Video.Alt != "" {
				label += ": " + e.Video.Alt
			}
			lines = append(lines, label)
			if e.Video.Playable {
				lines = append(lines, linkStyle.Render(e.Video.Playlist))
			}
		}
	case domain.ResolvedQuote:
		lines = append(lines, r.quote(e.Quote)...)
	case domain.ResolvedQuoteWithMedia:
		if e.Media != nil {
			lines = append(lines, r.Embed(*e.Media))
		}
		if e.Quote != nil {
			lines = append(lines, r.quote(e.Quote)...)
		}
		if e.Unavailable != nil {
			lines = append(lines, metaStyle.Render(e.Unavailable.Message))
		}
	case domain.ResolvedUnavailable:
		if e.Unavailable != nil {
			lines = append(lines, metaStyle.Render(e.Unavailable.Message))
		}
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func (r *Renderer) quote(q *domain.QuoteCard) []string {
	if q == nil {
		return nil
	}
	lines := []string{r.header(q.Author, q.CreatedAt)}
	if text := Fragments(q.Fragments); text != "" {
		lines = append(lines, text)
	}
	for _, e := range q.Embeds {
		lines = append(lines, r.Embed(e))
	}
	return lines
}

func (r *Renderer) header(a domain.AuthorView, createdAt time.Time) string {
	h := nameStyle.Render(a.Name())
	if a.Handle != "" && a.Handle != a.Name() {
		h += " " + metaStyle.Render("@"+a.Handle)
	}
	if !createdAt.IsZero() {
		h += " " + metaStyle.Render("· "+humanize.RelTime(createdAt, r.Now(), "ago", "from now"))
	}
	return h
}

// Fragments renders segmented text. Links whose visible text differs from
// the target show the target in brackets.
func Fragments(frags []domain.Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		if f.Link == "" {
			b.WriteString(f.Text)
			continue
		}
		b.WriteString(linkStyle.Render(f.Text))
		if f.Link != f.Text && f.Link != "https://"+f.Text && f.Link != "http://"+f.Text {
			b.WriteString(metaStyle.Render(" <" + f.Link + ">"))
		}
	}
	return b.String()
}

func counts(p domain.RenderedPost) string {
	like := "♡"
	if p.Liked {
		like = "♥"
	}
	repost := "⟲"
	if p.Reposted {
		repost = "⟳"
	}
	return fmt.Sprintf("💬 %s  %s %s  %s %s  ❝ %s",
		humanize.Comma(p.ReplyCount),
		repost, humanize.Comma(p.RepostCount),
		like, humanize.Comma(p.LikeCount),
		humanize.Comma(p.QuoteCount),
	)
}
