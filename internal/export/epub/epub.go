// Package epubexport adapts the generic EPUB builder in internal/epub
// (package/nav/xhtml generation) to the crawler's
// model.BookInfo/model.Chapter catalog.
package epubexport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aelwen/novelcrawler/internal/epub"
	"github.com/aelwen/novelcrawler/internal/export"
	"github.com/aelwen/novelcrawler/internal/model"
)

// Exporter renders a book's catalog to an EPUB 3 archive.
type Exporter struct {
	CoverImagePath string
	Logger         *slog.Logger
}

var _ export.Exporter = Exporter{}

func (e Exporter) Export(ctx context.Context, info *model.BookInfo, chapters map[model.ChapterID]*model.Chapter, outPath string) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if info == nil {
		return fmt.Errorf("export: epub: nil book info")
	}

	book := epub.Book{
		ID:         info.BookName,
		Title:      info.BookName,
		Author:     info.Author,
		CoverImage: e.CoverImagePath,
	}

	var volumes []epub.Volume
	missingCount := 0
	for _, vol := range info.Volumes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out := epub.Volume{Title: vol.VolumeName}
		for _, ref := range vol.Chapters {
			if ref.ChapterID == "" {
				continue
			}
			chap, ok := chapters[ref.ChapterID]
			if !ok || chap == nil {
				missingCount++
				continue
			}
			out.Chapters = append(out.Chapters, epub.Chapter{
				ID:      string(chap.ID),
				Title:   chap.Title,
				Content: chap.Content,
			})
		}
		if len(out.Chapters) > 0 {
			volumes = append(volumes, out)
		}
	}

	if missingCount > 0 {
		logger.Warn("epub export: some chapters not yet downloaded, skipped", "book_name", info.BookName, "missing", missingCount)
	}

	return epub.NewBuilder(book, volumes).Build(outPath)
}
