// Package model defines the catalog and chapter types shared across the
// download pipeline, storage layer, and site plug-ins.
package model

import "time"

// SiteKey identifies a plug-in site module, e.g. "demo" or "qidian".
type SiteKey string

// BookID identifies a book within a site. May embed "/" or "-".
type BookID string

// ChapterID identifies a chapter within a book's catalog.
type ChapterID string

// BookConfig is the input describing what to download for one book.
type BookConfig struct {
	BookID    BookID
	StartID   ChapterID
	EndID     ChapterID
	IgnoreIDs map[ChapterID]struct{}
}

// ChapterRef is one entry in a volume's catalog. ChapterID may be empty
// until repaired (see pipeline.RepairChapterIDs).
type ChapterRef struct {
	ChapterID ChapterID
	Title     string
}

// Volume is a titled group of chapters within a book.
type Volume struct {
	VolumeName  string
	VolumeIntro string
	VolumeCover string
	Chapters    []ChapterRef
}

// BookInfo is the parsed, persisted metadata for one book.
type BookInfo struct {
	BookName     string
	Author       string
	CoverURL     string
	Summary      string
	SerialStatus string
	WordCount    string
	Tags         []string
	UpdateTime   string
	LastChecked  int64 // unix seconds
	Volumes      []Volume
}

// Stale reports whether the cached BookInfo is older than maxAge and
// should be refetched rather than reused, per the 24h default cache rule.
func (b *BookInfo) Stale(now time.Time, maxAge time.Duration) bool {
	if b == nil {
		return true
	}
	return now.Sub(time.Unix(b.LastChecked, 0)) >= maxAge
}

// Well-known Chapter.Extra keys. Sites may set additional, site-specific
// keys; the core only ever reads these.
const (
	ExtraNextCID          = "next_cid"
	ExtraEncrypted        = "encrypted"
	ExtraImagePositions   = "image_positions"
	ExtraAuthorSay        = "author_say"
)

// Chapter is the parser's output and the unit of storage.
type Chapter struct {
	ID      ChapterID
	Title   string
	Content string
	Extra   map[string]any
}

// NextCID returns the extra.next_cid hint left by a site's parser, used by
// the chapter-ID repair walk. Returns "" if absent or not a string.
func (c *Chapter) NextCID() ChapterID {
	if c == nil || c.Extra == nil {
		return ""
	}
	v, ok := c.Extra[ExtraNextCID]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case ChapterID:
		return s
	case string:
		return ChapterID(s)
	default:
		return ""
	}
}

// Encrypted returns the extra.encrypted marker, the common trigger for the
// needs-refetch bucket.
func (c *Chapter) Encrypted() bool {
	if c == nil || c.Extra == nil {
		return false
	}
	v, _ := c.Extra[ExtraEncrypted].(bool)
	return v
}
