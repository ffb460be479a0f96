package domain

import "time"

// DefaultQuoteDepth is how many levels of quoted posts ResolveEmbed expands.
// A quoted post's own embeds are resolved, but a quote inside a quote is not.
const DefaultQuoteDepth = 1

// ResolvedKind tags the shape of a ResolvedEmbed.
type ResolvedKind string

const (
	ResolvedImages         ResolvedKind = "images"
	ResolvedExternal       ResolvedKind = "external"
	ResolvedVideo          ResolvedKind = "video"
	ResolvedQuote          ResolvedKind = "quote"
	ResolvedQuoteWithMedia ResolvedKind = "quoteWithMedia"
	ResolvedUnavailable    ResolvedKind = "unavailable"
)

// UnavailableReason says why a quoted post cannot be shown.
type UnavailableReason string

const (
	UnavailableNotFound UnavailableReason = "not_found"
	UnavailableBlocked  UnavailableReason = "blocked"
)

// ResolvedEmbed is the uniform renderable form of an embed. Kind selects which
// of the optional fields is populated; ResolvedQuoteWithMedia populates Media
// and one of Quote or Unavailable.
type ResolvedEmbed struct {
	Kind        ResolvedKind   `json:"kind"`
	Images      []ImageCard    `json:"images,omitempty"`
	External    *LinkCard      `json:"external,omitempty"`
	Video       *VideoCard     `json:"video,omitempty"`
	Quote       *QuoteCard     `json:"quote,omitempty"`
	Media       *ResolvedEmbed `json:"media,omitempty"`
	Unavailable *Unavailable   `json:"unavailable,omitempty"`
}

// ImageCard is a displayable image.
type ImageCard struct {
	URI   string `json:"uri"`
	Thumb string `json:"thumb,omitempty"`
	Alt   string `json:"alt"`
}

// LinkCard is a displayable external link preview.
type LinkCard struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb,omitempty"`
}

// VideoCard is a displayable video. Without a playlist only the thumbnail can
// be shown.
type VideoCard struct {
	Playable  bool   `json:"playable"`
	Playlist  string `json:"playlist,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Alt       string `json:"alt,omitempty"`
}

// QuoteCard is a displayable quoted post.
type QuoteCard struct {
	URI       string          `json:"uri"`
	Author    AuthorView      `json:"author"`
	Fragments []Fragment      `json:"fragments"`
	CreatedAt time.Time       `json:"createdAt"`
	Embeds    []ResolvedEmbed `json:"embeds,omitempty"`
}

// Unavailable marks a quoted post that exists in the thread of conversation
// but cannot be shown.
type Unavailable struct {
	Reason  UnavailableReason `json:"reason"`
	Message string            `json:"message"`
	URI     string            `json:"uri,omitempty"`
}

// ResolveEmbed resolves e with DefaultQuoteDepth.
func ResolveEmbed(e Embed) *ResolvedEmbed {
	return ResolveEmbedDepth(e, DefaultQuoteDepth)
}

// ResolveEmbedDepth normalises e into a ResolvedEmbed, expanding at most
// quoteDepth levels of quoted posts. It returns nil when there is nothing to
// render: e is nil or of an unknown type, every image was unsafe, the link
// card URI was unsafe, or the quote depth is exhausted.
func ResolveEmbedDepth(e Embed, quoteDepth int) *ResolvedEmbed {
	switch v := e.(type) {
	case nil:
		return nil
	case *ImagesEmbed:
		return resolveImages(v)
	case *ExternalEmbed:
		return resolveExternal(v)
	case *VideoEmbed:
		return resolveVideo(v)
	case *RecordEmbed, *NotFoundEmbed, *BlockedEmbed:
		return resolveQuoted(v, quoteDepth)
	case *RecordWithMediaEmbed:
		return resolveRecordWithMedia(v, quoteDepth)
	default:
		return nil
	}
}

func resolveImages(v *ImagesEmbed) *ResolvedEmbed {
	if v == nil {
		return nil
	}
	cards := make([]ImageCard, 0, len(v.Images))
	for _, img := range v.Images {
		src := img.Fullsize
		if src == "" {
			src = img.Thumb
		}
		uri, ok := SafeLinkURI(src)
		if !ok {
			continue
		}
		card := ImageCard{URI: uri, Alt: img.Alt}
		if thumb, ok := SafeLinkURI(img.Thumb); ok {
			card.Thumb = thumb
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil
	}
	return &ResolvedEmbed{Kind: ResolvedImages, Images: cards}
}

func resolveExternal(v *ExternalEmbed) *ResolvedEmbed {
	if v == nil {
		return nil
	}
	uri, ok := SafeLinkURI(v.URI)
	if !ok {
		return nil
	}
	card := &LinkCard{URI: uri, Title: v.Title, Description: v.Description}
	if thumb, ok := SafeLinkURI(v.Thumb); ok {
		card.Thumb = thumb
	}
	return &ResolvedEmbed{Kind: ResolvedExternal, External: card}
}

func resolveVideo(v *VideoEmbed) *ResolvedEmbed {
	if v == nil {
		return nil
	}
	card := &VideoCard{Alt: v.Alt}
	if playlist, ok := SafeLinkURI(v.Playlist); ok {
		card.Playable = true
		card.Playlist = playlist
	}
	if thumb, ok := SafeLinkURI(v.Thumbnail); ok {
		card.Thumbnail = thumb
	}
	if !card.Playable && card.Thumbnail == "" {
		return nil
	}
	return &ResolvedEmbed{Kind: ResolvedVideo, Video: card}
}

// resolveQuoted handles the record, not-found and blocked variants.
func resolveQuoted(e Embed, quoteDepth int) *ResolvedEmbed {
	if quoteDepth <= 0 {
		return nil
	}
	switch v := e.(type) {
	case *NotFoundEmbed:
		if v == nil {
			return nil
		}
		return &ResolvedEmbed{Kind: ResolvedUnavailable, Unavailable: &Unavailable{
			Reason:  UnavailableNotFound,
			Message: "quoted post unavailable",
			URI:     v.URI,
		}}
	case *BlockedEmbed:
		if v == nil {
			return nil
		}
		return &ResolvedEmbed{Kind: ResolvedUnavailable, Unavailable: &Unavailable{
			Reason:  UnavailableBlocked,
			Message: "quoted post blocked",
			URI:     v.URI,
		}}
	case *RecordEmbed:
		if v == nil {
			return nil
		}
		q := v.Record
		card := &QuoteCard{
			URI:       q.URI,
			Author:    q.Author,
			Fragments: Segment(q.Text, q.Facets),
			CreatedAt: q.CreatedAt,
		}
		for _, inner := range q.Embeds {
			if r := ResolveEmbedDepth(inner, quoteDepth-1); r != nil {
				card.Embeds = append(card.Embeds, *r)
			}
		}
		return &ResolvedEmbed{Kind: ResolvedQuote, Quote: card}
	default:
		return nil
	}
}

func resolveRecordWithMedia(v *RecordWithMediaEmbed, quoteDepth int) *ResolvedEmbed {
	if v == nil {
		return nil
	}
	var media *ResolvedEmbed
	switch v.Media.(type) {
	case *ImagesEmbed, *ExternalEmbed, *VideoEmbed:
		media = ResolveEmbedDepth(v.Media, quoteDepth)
	}
	quote := resolveQuoted(v.Record, quoteDepth)
	if quote == nil {
		return media
	}
	return &ResolvedEmbed{
		Kind:        ResolvedQuoteWithMedia,
		Media:       media,
		Quote:       quote.Quote,
		Unavailable: quote.Unavailable,
	}
}
