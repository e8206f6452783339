// Package demo is a reference site plug-in: a minimal Fetcher/Parser
// pair against a plain-HTML book/chapter layout, wired into the
// registry under the "demo" key. It exists to exercise internal/sitekit
// and internal/pipeline end to end; real deployments register their own
// site packages the same way.
package demo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/sitekit"
)

// Config points the plug-in at a site instance.
type Config struct {
	// BaseURL is the site root, e.g. "https://example.invalid". Book
	// info is fetched from BaseURL+"/book/<id>", chapter content from
	// BaseURL+"/book/<id>/chapter/<cid>".
	BaseURL string
	Client  *http.Client
}

// New returns the demo site factory; it does not register anything
// itself, callers do: registry.Register("demo", demo.New(cfg)).
func New(cfg Config) sitekit.Factory {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return func() (sitekit.Site, error) {
		f := &fetcher{cfg: cfg}
		p := &parser{}
		return sitekit.Site{
			Fetcher: f,
			Parser:  p,
			Hooks: sitekit.Hooks{
				CheckRestricted:  checkRestricted,
				CheckEmpty:       checkEmpty,
				NeedsRefetchHook: sitekit.EncryptedHook,
			},
		}, nil
	}
}

// checkRestricted treats a page carrying the literal marker
// "access-restricted" as a paywall/login-wall signal.
func checkRestricted(rawPages []string) bool {
	for _, p := range rawPages {
		if strings.Contains(p, "access-restricted") {
			return true
		}
	}
	return false
}

// checkEmpty treats a page explicitly marked "chapter-empty" as a
// legitimate zero-content chapter rather than a parse failure.
func checkEmpty(rawPages []string) bool {
	for _, p := range rawPages {
		if strings.Contains(p, "chapter-empty") {
			return true
		}
	}
	return false
}

type fetcher struct {
	cfg Config
}

func (f *fetcher) get(ctx context.Context, p string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.cfg.BaseURL, "/")+p, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("demo: fetch %s: %w", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("demo: fetch %s: transient status %d", p, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("demo: read body for %s: %w", p, err)
	}
	return string(body), nil
}

func (f *fetcher) FetchBookInfo(ctx context.Context, bookID model.BookID) ([]string, error) {
	page, err := f.get(ctx, "/book/"+url.PathEscape(string(bookID)))
	if err != nil {
		return nil, err
	}
	return []string{page}, nil
}

func (f *fetcher) FetchChapterContent(ctx context.Context, bookID model.BookID, chapterID model.ChapterID) ([]string, error) {
	page, err := f.get(ctx, "/book/"+url.PathEscape(string(bookID))+"/chapter/"+url.PathEscape(string(chapterID)))
	if err != nil {
		return nil, err
	}
	return []string{page}, nil
}

func (f *fetcher) FetchImage(ctx context.Context, imgURL, dir, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("demo: fetch image %s: %w", imgURL, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("demo: create image dir %s: %w", dir, err)
	}
	if name == "" {
		name = path.Base(imgURL)
	}
	dest := filepath.Join(dir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("demo: create image file %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("demo: write image file %s: %w", dest, err)
	}
	return dest, nil
}

// FetchImages is best-effort: individual image-download failures are
// swallowed rather than surfaced to the caller.
func (f *fetcher) FetchImages(ctx context.Context, dir string, urls []string, concurrent int) {
	if concurrent <= 0 {
		concurrent = 1
	}
	sem := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()
			name := strconv.Itoa(i) + path.Ext(u)
			f.FetchImage(ctx, u, dir, name)
		}(i, u)
	}
	wg.Wait()
}

type parser struct{}

// ParseBookInfo reads a simple convention: a top-level element carrying
// data-field attributes for scalar metadata, and an ordered list of
// anchors under data-field="chapters" with data-cid / text as the
// chapterId / title (chapterId may be absent, to be repaired later).
func (p *parser) ParseBookInfo(rawPages []string) (*model.BookInfo, error) {
	if len(rawPages) == 0 {
		return nil, fmt.Errorf("demo: ParseBookInfo: no pages")
	}
	doc, err := html.Parse(strings.NewReader(rawPages[0]))
	if err != nil {
		return nil, fmt.Errorf("demo: ParseBookInfo: %w", err)
	}

	info := &model.BookInfo{}
	var volumes []model.Volume
	var curVolume *model.Volume

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch attr(n, "data-field") {
			case "title":
				info.BookName = textOf(n)
			case "author":
				info.Author = textOf(n)
			case "cover":
				info.CoverURL = attr(n, "data-src")
			case "summary":
				info.Summary = textOf(n)
			case "status":
				info.SerialStatus = textOf(n)
			case "word-count":
				info.WordCount = textOf(n)
			case "volume":
				if curVolume != nil {
					volumes = append(volumes, *curVolume)
				}
				curVolume = &model.Volume{VolumeName: attr(n, "data-name")}
			case "chapter":
				if curVolume == nil {
					curVolume = &model.Volume{}
				}
				curVolume.Chapters = append(curVolume.Chapters, model.ChapterRef{
					ChapterID: model.ChapterID(attr(n, "data-cid")),
					Title:     textOf(n),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if curVolume != nil {
		volumes = append(volumes, *curVolume)
	}
	info.Volumes = volumes
	return info, nil
}

// ParseChapter extracts the title and body text from a single-chapter
// page, plus extra.next_cid/encrypted hints left by the markup.
func (p *parser) ParseChapter(rawPages []string, chapterID model.ChapterID) (*model.Chapter, error) {
	if len(rawPages) == 0 {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(rawPages[0]))
	if err != nil {
		return nil, fmt.Errorf("demo: ParseChapter %s: %w", chapterID, err)
	}

	chap := &model.Chapter{ID: chapterID, Extra: map[string]any{}}
	var found bool

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch attr(n, "data-field") {
			case "chapter-title":
				chap.Title = textOf(n)
				found = true
			case "chapter-body":
				chap.Content = textOf(n)
				found = true
			case "next-cid":
				if v := textOf(n); v != "" {
					chap.Extra[model.ExtraNextCID] = v
				}
			case "encrypted":
				chap.Extra[model.ExtraEncrypted] = textOf(n) == "true"
			case "author-say":
				chap.Extra[model.ExtraAuthorSay] = textOf(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !found {
		return nil, nil
	}
	return chap, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
