package domain

import (
	"reflect"
	"testing"
)

func quote(text string, embeds ...Embed) *RecordEmbed {
	return &RecordEmbed{Record: QuotedPost{
		URI:    "at://did:plc:q/app.bsky.feed.post/q",
		Author: AuthorView{Handle: "quoted.example"},
		Text:   text,
		Embeds: embeds,
	}}
}

func TestResolveEmbedVariants(t *testing.T) {
	images := &ImagesEmbed{Images: []Image{
		{Fullsize: "https://cdn.example/full1.jpg", Thumb: "https://cdn.example/t1.jpg", Alt: "first"},
		{Fullsize: "javascript:bad()", Alt: "dropped"},
		{Thumb: "https://cdn.example/t3.jpg", Alt: "thumb only"},
	}}
	external := &ExternalEmbed{URI: "https://news.example/story", Title: "Story", Description: "desc", Thumb: "ftp://nope"}
	video := &VideoEmbed{Playlist: "https://video.example/p.m3u8", Thumbnail: "https://video.example/t.jpg"}

	tests := []struct {
		name  string
		embed Embed
		want  *ResolvedEmbed
	}{
		{name: "absent", embed: nil, want: nil},
		{
			name:  "images drop unsafe entries individually",
			embed: images,
			want: &ResolvedEmbed{Kind: ResolvedImages, Images: []ImageCard{
				{URI: "https://cdn.example/full1.jpg", Thumb: "https://cdn.example/t1.jpg", Alt: "first"},
				{URI: "https://cdn.example/t3.jpg", Thumb: "https://cdn.example/t3.jpg", Alt: "thumb only"},
			}},
		},
		{
			name:  "external drops unsafe thumb",
			embed: external,
			want: &ResolvedEmbed{Kind: ResolvedExternal, External: &LinkCard{
				URI: "https://news.example/story", Title: "Story", Description: "desc",
			}},
		},
		{
			name:  "video with playlist",
			embed: video,
			want: &ResolvedEmbed{Kind: ResolvedVideo, Video: &VideoCard{
				Playable: true, Playlist: "https://video.example/p.m3u8", Thumbnail: "https://video.example/t.jpg",
			}},
		},
		{
			name:  "not found",
			embed: &NotFoundEmbed{URI: "at://gone"},
			want: &ResolvedEmbed{Kind: ResolvedUnavailable, Unavailable: &Unavailable{
				Reason: UnavailableNotFound, Message: "quoted post unavailable", URI: "at://gone",
			}},
		},
		{
			name:  "blocked",
			embed: &BlockedEmbed{URI: "at://blocked"},
			want: &ResolvedEmbed{Kind: ResolvedUnavailable, Unavailable: &Unavailable{
				Reason: UnavailableBlocked, Message: "quoted post blocked", URI: "at://blocked",
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveEmbed(tc.embed)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ResolveEmbed() =\n%#v\nwant\n%#v", got, tc.want)
			}
		})
	}
}

func TestResolveExternalUnsafeURIDropsCard(t *testing.T) {
	for _, uri := range []string{"", "javascript:alert(1)", "/relative", "at://did:plc:x/app.bsky.feed.post/1"} {
		if got := ResolveEmbed(&ExternalEmbed{URI: uri, Title: "t"}); got != nil {
			t.Fatalf("ResolveEmbed(external %q) = %#v, want nil", uri, got)
		}
	}
}

func TestResolveVideoWithoutPlaylist(t *testing.T) {
	got := ResolveEmbed(&VideoEmbed{Thumbnail: "https://video.example/t.jpg"})
	if got == nil || got.Video == nil {
		t.Fatalf("ResolveEmbed(video) = %#v, want thumbnail-only video", got)
	}
	if got.Video.Playable || got.Video.Thumbnail != "https://video.example/t.jpg" {
		t.Fatalf("video card = %#v", got.Video)
	}

	if got := ResolveEmbed(&VideoEmbed{}); got != nil {
		t.Fatalf("ResolveEmbed(empty video) = %#v, want nil", got)
	}
}

func TestResolveQuoteSegmentsTextAndResolvesOneLevel(t *testing.T) {
	inner := quote("inner quote is never expanded")
	q := quote("see https://example.com",
		&ImagesEmbed{Images: []Image{{Fullsize: "https://cdn.example/a.jpg", Alt: "a"}}},
		inner,
	)

	got := ResolveEmbed(q)
	if got == nil || got.Kind != ResolvedQuote || got.Quote == nil {
		t.Fatalf("ResolveEmbed(quote) = %#v", got)
	}
	wantFrags := []Fragment{{Text: "see "}, {Text: "https://example.com", Link: "https://example.com"}}
	if !reflect.DeepEqual(got.Quote.Fragments, wantFrags) {
		t.Fatalf("quote fragments = %#v, want %#v", got.Quote.Fragments, wantFrags)
	}
	if len(got.Quote.Embeds) != 1 || got.Quote.Embeds[0].Kind != ResolvedImages {
		t.Fatalf("quote embeds = %#v, want only the images", got.Quote.Embeds)
	}
}

func TestResolveEmbedDepthIsExplicit(t *testing.T) {
	nested := quote("outer", quote("middle", quote("inner")))

	got := ResolveEmbedDepth(nested, 2)
	if got == nil || len(got.Quote.Embeds) != 1 {
		t.Fatalf("depth 2 should expand the middle quote: %#v", got)
	}
	middle := got.Quote.Embeds[0]
	if middle.Kind != ResolvedQuote || len(middle.Quote.Embeds) != 0 {
		t.Fatalf("depth 2 should stop before the inner quote: %#v", middle)
	}

	if got := ResolveEmbedDepth(nested, 0); got != nil {
		t.Fatalf("depth 0 should not expand quotes: %#v", got)
	}
}

func TestResolveRecordWithMedia(t *testing.T) {
	e := &RecordWithMediaEmbed{
		Media:  &ExternalEmbed{URI: "https://news.example", Title: "News"},
		Record: quote("quoted"),
	}
	got := ResolveEmbed(e)
	if got == nil || got.Kind != ResolvedQuoteWithMedia {
		t.Fatalf("ResolveEmbed(recordWithMedia) = %#v", got)
	}
	if got.Media == nil || got.Media.Kind != ResolvedExternal {
		t.Fatalf("media = %#v", got.Media)
	}
	if got.Quote == nil || PlainText(got.Quote.Fragments) != "quoted" {
		t.Fatalf("quote = %#v", got.Quote)
	}

	blocked := &RecordWithMediaEmbed{Media: &ImagesEmbed{}, Record: &BlockedEmbed{URI: "at://b"}}
	got = ResolveEmbed(blocked)
	if got == nil || got.Media != nil || got.Unavailable == nil || got.Unavailable.Reason != UnavailableBlocked {
		t.Fatalf("ResolveEmbed(recordWithMedia blocked) = %#v", got)
	}

	// at exhausted depth only the media survives
	got = ResolveEmbedDepth(e, 0)
	if got == nil || got.Kind != ResolvedExternal {
		t.Fatalf("ResolveEmbedDepth(recordWithMedia, 0) = %#v", got)
	}
}

func TestResolveEmbedMalformedNeverPanics(t *testing.T) {
	var (
		nilImages   *ImagesEmbed
		nilExternal *ExternalEmbed
		nilVideo    *VideoEmbed
		nilRecord   *RecordEmbed
		nilRWM      *RecordWithMediaEmbed
		nilNotFound *NotFoundEmbed
		nilBlocked  *BlockedEmbed
	)
	embeds := []Embed{
		nilImages, nilExternal, nilVideo, nilRecord, nilRWM, nilNotFound, nilBlocked,
		&ImagesEmbed{},
		&RecordWithMediaEmbed{},
		&RecordWithMediaEmbed{Media: quote("media cannot be a quote"), Record: &ImagesEmbed{}},
	}
	for i, e := range embeds {
		if got := ResolveEmbed(e); got != nil {
			t.Fatalf("embed %d: ResolveEmbed() = %#v, want nil", i, got)
		}
	}
}
