package domain

import "time"

// Embed is the closed set of hydrated embed shapes a post can carry. The
// concrete types are ImagesEmbed, ExternalEmbed, VideoEmbed, RecordEmbed,
// RecordWithMediaEmbed, NotFoundEmbed and BlockedEmbed.
type Embed interface {
	isEmbed()
}

// ImagesEmbed is a set of up to four images.
type ImagesEmbed struct {
	Images []Image
}

// Image is one image of an ImagesEmbed.
type Image struct {
	Thumb    string
	Fullsize string
	Alt      string
}

// ExternalEmbed is a link preview card.
type ExternalEmbed struct {
	URI         string
	Title       string
	Description string
	Thumb       string
}

// VideoEmbed is an uploaded video.
type VideoEmbed struct {
	Playlist  string
	Thumbnail string
	Alt       string
}

// RecordEmbed is a quoted post.
type RecordEmbed struct {
	Record QuotedPost
}

// QuotedPost is the hydrated view of a quoted post.
type QuotedPost struct {
	URI       string
	CID       string
	Author    AuthorView
	Text      string
	Facets    []Facet
	CreatedAt time.Time

	// Embeds are the quoted post's own embeds.
	Embeds []Embed
}

// RecordWithMediaEmbed is a quote combined with media. Media is an images,
// external or video embed; Record is a record, not-found or blocked embed.
type RecordWithMediaEmbed struct {
	Media  Embed
	Record Embed
}

// NotFoundEmbed is a quoted post that no longer exists.
type NotFoundEmbed struct {
	URI string
}

// BlockedEmbed is a quoted post hidden by a block relationship.
type BlockedEmbed struct {
	URI string
}

func (*ImagesEmbed) isEmbed()          {}
func (*ExternalEmbed) isEmbed()        {}
func (*VideoEmbed) isEmbed()           {}
func (*RecordEmbed) isEmbed()          {}
func (*RecordWithMediaEmbed) isEmbed() {}
func (*NotFoundEmbed) isEmbed()        {}
func (*BlockedEmbed) isEmbed()         {}
