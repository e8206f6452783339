// Package sitekit defines the contracts the core download pipeline needs
// from per-site plug-ins: a Fetcher for retrieving raw pages, a Parser
// for turning raw pages into structured data, and the small set of
// site-customization Hooks. The bespoke HTML handling behind any one
// site's Fetcher/Parser is explicitly out of scope here — only the
// contracts are specified.
package sitekit

import (
	"context"

	"github.com/aelwen/novelcrawler/internal/model"
)

// Fetcher retrieves raw page payloads for a book or chapter. The returned
// pages are opaque to the core; fetchers own their own pacing, cookies,
// and retry-within-one-call behavior. Image caching is best-effort.
type Fetcher interface {
	FetchBookInfo(ctx context.Context, bookID model.BookID) ([]string, error)
	FetchChapterContent(ctx context.Context, bookID model.BookID, chapterID model.ChapterID) ([]string, error)
	FetchImage(ctx context.Context, url, dir, name string) (string, error)
	FetchImages(ctx context.Context, dir string, urls []string, concurrent int)
}

// Parser is a pure function over fetched pages. It never performs I/O.
type Parser interface {
	ParseBookInfo(rawPages []string) (*model.BookInfo, error)
	ParseChapter(rawPages []string, chapterID model.ChapterID) (*model.Chapter, error)
}

// Hooks are the per-site overrides the pipeline consults. The zero value
// is permissive: nothing is restricted, nothing is "legitimately empty",
// and every chapter lands in the plain bucket.
type Hooks struct {
	// CheckRestricted reports whether raw pages indicate an access
	// restriction (paywall, login wall, region block). Restricted
	// chapters are skipped without retry.
	CheckRestricted func(rawPages []string) bool

	// CheckEmpty reports whether a null parse result is a legitimate
	// empty chapter (skip, no retry) rather than a transient failure
	// (retry). The criterion is site-specific; the core never guesses.
	CheckEmpty func(rawPages []string) bool

	// NeedsRefetchHook routes a successfully parsed chapter into the
	// plain or needs-refetch storage bucket. The common override
	// returns chapter.Extra["encrypted"] == true.
	NeedsRefetchHook func(ch *model.Chapter) bool
}

// Restricted evaluates the CheckRestricted hook, defaulting to false.
func (h Hooks) Restricted(rawPages []string) bool {
	if h.CheckRestricted == nil {
		return false
	}
	return h.CheckRestricted(rawPages)
}

// Empty evaluates the CheckEmpty hook, defaulting to false.
func (h Hooks) Empty(rawPages []string) bool {
	if h.CheckEmpty == nil {
		return false
	}
	return h.CheckEmpty(rawPages)
}

// NeedsRefetch evaluates the NeedsRefetchHook, defaulting to false (plain
// bucket for every chapter).
func (h Hooks) NeedsRefetch(ch *model.Chapter) bool {
	if h.NeedsRefetchHook == nil {
		return false
	}
	return h.NeedsRefetchHook(ch)
}

// EncryptedHook is the common NeedsRefetchHook override for sites that
// mark undecryptable chapters via extra.encrypted.
func EncryptedHook(ch *model.Chapter) bool {
	return ch.Encrypted()
}
