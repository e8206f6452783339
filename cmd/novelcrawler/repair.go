package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aelwen/novelcrawler/internal/home"
	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/pipeline"
	"github.com/aelwen/novelcrawler/internal/storage"
)

var rpSite string

var repairCmd = &cobra.Command{
	Use:   "repair <book-id>",
	Short: "Walk a book's catalog fixing missing chapter ids",
	Long: `repair fills in chapter ids the catalog left blank by fetching each
gap's preceding chapter and following its next_cid hint, writing each
chapter it has to fetch into the chapter store along the way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bookID := model.BookID(args[0])
		logger := newLogger()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(h)
		if err != nil {
			return err
		}

		registry := buildSiteRegistry()
		site, err := registry.Build(model.SiteKey(rpSite))
		if err != nil {
			return err
		}

		bookDir := filepath.Join(h.DataPath(), rpSite, string(bookID))
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

		n, err := pipeline.RepairChapterIDs(ctx, bookID, info, store, pipeline.SiteGetChapter(site, bookID), pipeline.RepairConfig{
			RetryTimes:    cfg.RetryTimes,
			BackoffFactor: cfg.BackoffFactor,
		}, logger)
		if err != nil {
			return fmt.Errorf("repair: %w", err)
		}

		if err := storage.SaveBookInfo(bookDir, info); err != nil {
			logger.Warn("failed to persist repaired catalog", "book_id", bookID, "error", err)
		}

		fmt.Printf("repaired %d chapter id(s) for %s\n", n, bookID)
		return nil
	},
}

func init() {
	repairCmd.Flags().StringVar(&rpSite, "site", "demo", "registered site key the book was downloaded from")
}
