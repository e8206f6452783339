package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aelwen/novelcrawler/internal/model"
)

// TXTExporter writes a single plain-text file: each volume introduced by
// a header line (if titled), each chapter by its title then content,
// joined by blank lines. Direct paragraph join, no markup.
type TXTExporter struct {
	Logger *slog.Logger
}

var _ Exporter = TXTExporter{}

func (e TXTExporter) Export(ctx context.Context, info *model.BookInfo, chapters map[model.ChapterID]*model.Chapter, outPath string) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if info == nil {
		return fmt.Errorf("export: txt: nil book info")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("export: txt: create output directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("export: txt: create output file: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	sb.WriteString(info.BookName)
	sb.WriteString("\n")
	if info.Author != "" {
		sb.WriteString("by ")
		sb.WriteString(info.Author)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	missingCount := 0
	for _, vol := range info.Volumes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if vol.VolumeName != "" {
			sb.WriteString("== ")
			sb.WriteString(vol.VolumeName)
			sb.WriteString(" ==\n\n")
		}
		for _, ref := range vol.Chapters {
			if ref.ChapterID == "" {
				continue
			}
			chap, ok := chapters[ref.ChapterID]
			if !ok || chap == nil {
				missingCount++
				continue
			}
			sb.WriteString(chap.Title)
			sb.WriteString("\n\n")
			sb.WriteString(chap.Content)
			sb.WriteString("\n\n")
		}
	}

	if missingCount > 0 {
		logger.Warn("txt export: some chapters not yet downloaded, skipped", "book_name", info.BookName, "missing", missingCount)
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("export: txt: write output file: %w", err)
	}
	return nil
}
