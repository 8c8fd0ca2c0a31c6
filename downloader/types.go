package downloader

import (
	"fmt"
	"strings"
)

// UntitledPlaceholder replaces a missing title in engine output
const UntitledPlaceholder = "Untitled"

// MediaEntry is one resolvable item
type MediaEntry struct {
	Title        string `json:"title"`
	CanonicalURL string `json:"canonical_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// HasThumbnail reports whether the entry carries a thumbnail URL
func (e MediaEntry) HasThumbnail() bool {
	return e.ThumbnailURL != ""
}

// MediaCollection is the ordered result of resolving one link
type MediaCollection []MediaEntry

// SelectableEntry pairs an entry with its inclusion flag
type SelectableEntry struct {
	Entry    MediaEntry
	Included bool
}

// DownloadSelection is the user's view over a collection
type DownloadSelection struct {
	Entries []SelectableEntry
}

// NewSelection includes every entry of the collection, matching the default
// checked state of a freshly resolved list
func NewSelection(collection MediaCollection) *DownloadSelection {
	sel := &DownloadSelection{Entries: make([]SelectableEntry, len(collection))}
	for i, entry := range collection {
		sel.Entries[i] = SelectableEntry{Entry: entry, Included: true}
	}
	return sel
}

// Only includes exactly the entries at the given zero-based indexes
func (s *DownloadSelection) Only(indexes ...int) error {
	for _, idx := range indexes {
		if idx < 0 || idx >= len(s.Entries) {
			return fmt.Errorf("selection index %d out of range [0, %d)", idx, len(s.Entries))
		}
	}
	for i := range s.Entries {
		s.Entries[i].Included = false
	}
	for _, idx := range indexes {
		s.Entries[idx].Included = true
	}
	return nil
}

// SelectedURLs snapshots the canonical URLs of the included entries in order
func (s *DownloadSelection) SelectedURLs() []string {
	urls := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Included && e.Entry.CanonicalURL != "" {
			urls = append(urls, e.Entry.CanonicalURL)
		}
	}
	return urls
}

// Platform identifies the source site family chosen by the user
type Platform int

const (
	PlatformDefault Platform = iota
	PlatformBandcamp
)

func (p Platform) String() string {
	switch p {
	case PlatformBandcamp:
		return "bandcamp"
	default:
		return "default"
	}
}

// ParsePlatform maps a user-facing name to a Platform
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "youtube":
		return PlatformDefault, nil
	case "bandcamp":
		return PlatformBandcamp, nil
	default:
		return PlatformDefault, fmt.Errorf("unknown platform %q", s)
	}
}

// MediaType selects video or audio-only output
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	if m == MediaAudio {
		return "audio"
	}
	return "video"
}

// ParseMediaType maps a user-facing name to a MediaType
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video", "mp4":
		return MediaVideo, nil
	case "audio", "mp3":
		return MediaAudio, nil
	default:
		return MediaVideo, fmt.Errorf("unknown media type %q", s)
	}
}

// DownloadRequest is the snapshot taken when a download is submitted
type DownloadRequest struct {
	URLs              []string
	DestinationFolder string
	Platform          Platform
	MediaType         MediaType
}

func (r DownloadRequest) snapshot() DownloadRequest {
	urls := make([]string, len(r.URLs))
	copy(urls, r.URLs)
	r.URLs = urls
	return r
}
