package demo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aelwen/novelcrawler/internal/model"
)

const bookPage = `<html><body>
<div data-field="title">Sample Book</div>
<div data-field="author">Jane Doe</div>
<div data-field="volume" data-name="Volume One">
  <a data-field="chapter" data-cid="c1">Chapter One</a>
  <a data-field="chapter" data-cid="c2">Chapter Two</a>
</div>
</body></html>`

const chapterPage = `<html><body>
<h1 data-field="chapter-title">Chapter One</h1>
<div data-field="chapter-body">Once upon a time.</div>
<span data-field="next-cid">c2</span>
</body></html>`

const restrictedPage = `<html><body>access-restricted</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/book/b1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(bookPage))
	})
	mux.HandleFunc("/book/b1/chapter/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chapterPage))
	})
	mux.HandleFunc("/book/b1/chapter/restricted", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(restrictedPage))
	})
	return httptest.NewServer(mux)
}

func TestFetchAndParseBookInfo(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	site, err := New(Config{BaseURL: srv.URL})()
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}

	pages, err := site.Fetcher.FetchBookInfo(context.Background(), "b1")
	if err != nil {
		t.Fatalf("FetchBookInfo() error = %v", err)
	}
	info, err := site.Parser.ParseBookInfo(pages)
	if err != nil {
		t.Fatalf("ParseBookInfo() error = %v", err)
	}
	if info.BookName != "Sample Book" || info.Author != "Jane Doe" {
		t.Fatalf("parsed info = %+v", info)
	}
	if len(info.Volumes) != 1 || len(info.Volumes[0].Chapters) != 2 {
		t.Fatalf("volumes = %+v", info.Volumes)
	}
	if info.Volumes[0].Chapters[0].ChapterID != "c1" {
		t.Fatalf("first chapter id = %q", info.Volumes[0].Chapters[0].ChapterID)
	}
}

func TestFetchAndParseChapter(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	site, err := New(Config{BaseURL: srv.URL})()
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}

	pages, err := site.Fetcher.FetchChapterContent(context.Background(), "b1", "c1")
	if err != nil {
		t.Fatalf("FetchChapterContent() error = %v", err)
	}
	chap, err := site.Parser.ParseChapter(pages, "c1")
	if err != nil {
		t.Fatalf("ParseChapter() error = %v", err)
	}
	if chap.Title != "Chapter One" || chap.Content != "Once upon a time." {
		t.Fatalf("parsed chapter = %+v", chap)
	}
	if chap.NextCID() != "c2" {
		t.Fatalf("next_cid = %q, want c2", chap.NextCID())
	}
}

func TestRestrictedHookDetectsMarker(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	site, err := New(Config{BaseURL: srv.URL})()
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}

	pages, err := site.Fetcher.FetchChapterContent(context.Background(), "b1", "restricted")
	if err != nil {
		t.Fatalf("FetchChapterContent() error = %v", err)
	}
	if !site.Hooks.Restricted(pages) {
		t.Fatal("expected restricted page to be detected")
	}
}

func TestParseChapterNoFieldsReturnsNilNotError(t *testing.T) {
	p := &parser{}
	chap, err := p.ParseChapter([]string{"<html><body>nothing relevant</body></html>"}, model.ChapterID("c9"))
	if err != nil {
		t.Fatalf("ParseChapter() error = %v", err)
	}
	if chap != nil {
		t.Fatalf("expected nil chapter for a page with no recognized fields, got %+v", chap)
	}
}
