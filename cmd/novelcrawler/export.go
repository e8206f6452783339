package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aelwen/novelcrawler/internal/export"
	epubexport "github.com/aelwen/novelcrawler/internal/export/epub"
	"github.com/aelwen/novelcrawler/internal/home"
	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/storage"
)

var (
	exSite      string
	exFormat    string
	exOutPath   string
	exCoverPath string
)

var exportCmd = &cobra.Command{
	Use:   "export <book-id>",
	Short: "Render a downloaded book to TXT or EPUB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bookID := model.BookID(args[0])
		logger := newLogger()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}

		bookDir := filepath.Join(h.DataPath(), exSite, string(bookID))
		info, err := storage.LoadBookInfo(bookDir)
		if err != nil {
			return fmt.Errorf("load book info: %w", err)
		}
		if info == nil {
			return fmt.Errorf("no cached book info for %s; run download first", bookID)
		}

		store, err := storage.Open(bookDir, "chapter.raw.sqlite")
		if err != nil {
			return fmt.Errorf("open chapter store: %w", err)
		}
		defer store.Close()

		cids := make([]model.ChapterID, 0)
		for _, v := range info.Volumes {
			for _, ref := range v.Chapters {
				if ref.ChapterID != "" {
					cids = append(cids, ref.ChapterID)
				}
			}
		}
		chapters, err := store.GetChapters(cids)
		if err != nil {
			return fmt.Errorf("load chapters: %w", err)
		}

		var exporter export.Exporter
		switch strings.ToLower(exFormat) {
		case "txt":
			exporter = export.TXTExporter{Logger: logger}
		case "epub":
			exporter = epubexport.Exporter{CoverImagePath: exCoverPath, Logger: logger}
		default:
			return fmt.Errorf("unknown export format %q: want txt or epub", exFormat)
		}

		outPath := exOutPath
		if outPath == "" {
			outPath = filepath.Join(bookDir, string(bookID)+"."+strings.ToLower(exFormat))
		}
		if err := exporter.Export(ctx, info, chapters, outPath); err != nil {
			return fmt.Errorf("export: %w", err)
		}

		present, missing := export.Gather(info, chapters)
		fmt.Printf("exported %s: %d chapters present, %d missing -> %s\n", bookID, len(present), len(missing), outPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exSite, "site", "demo", "registered site key the book was downloaded from")
	exportCmd.Flags().StringVar(&exFormat, "format", "epub", "output format: txt or epub")
	exportCmd.Flags().StringVar(&exOutPath, "out", "", "output file path (default: raw_data/<site>/<book-id>/<book-id>.<format>)")
	exportCmd.Flags().StringVar(&exCoverPath, "cover", "", "path to a cover image to embed (epub only)")
}
