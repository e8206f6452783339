package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aelwen/novelcrawler/internal/config"
	"github.com/aelwen/novelcrawler/internal/home"
	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/pipeline"
	"github.com/aelwen/novelcrawler/internal/ratelimit"
	"github.com/aelwen/novelcrawler/internal/sitekit"
	"github.com/aelwen/novelcrawler/internal/sites/demo"
	"github.com/aelwen/novelcrawler/internal/storage"
)

var (
	dlSite      string
	dlStartID   string
	dlEndID     string
	dlIgnoreIDs []string
	dlBaseURL   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <book-id>",
	Short: "Download a book's chapters into the local chapter store",
	Long: `download fetches a book's catalog, plans the chapter range to fetch
(catalog order, restricted to [start, end], minus ignore), and runs the
producer/worker/storage pipeline to fill the on-disk chapter store at
raw_data/<site>/<book-id>/chapter.raw.sqlite.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bookID := model.BookID(args[0])
		logger := newLogger()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfg, err := loadConfig(h)
		if err != nil {
			return err
		}

		registry := buildSiteRegistry()
		site, err := registry.Build(model.SiteKey(dlSite))
		if err != nil {
			return err
		}

		bookDir := filepath.Join(h.DataPath(), dlSite, string(bookID))
		if err := os.MkdirAll(bookDir, 0o755); err != nil {
			return fmt.Errorf("create book directory: %w", err)
		}

		info, err := fetchOrLoadBookInfo(ctx, site, bookID, bookDir, cfg.BookInfoMaxAge, logger)
		if err != nil {
			return fmt.Errorf("load book info: %w", err)
		}

		store, err := storage.Open(bookDir, "chapter.raw.sqlite")
		if err != nil {
			return fmt.Errorf("open chapter store: %w", err)
		}
		defer store.Close()

		ignore := make(map[model.ChapterID]struct{}, len(dlIgnoreIDs))
		for _, id := range dlIgnoreIDs {
			ignore[model.ChapterID(id)] = struct{}{}
		}
		plan := model.PlanChapters(info.Volumes, model.BookConfig{
			BookID:    bookID,
			StartID:   model.ChapterID(dlStartID),
			EndID:     model.ChapterID(dlEndID),
			IgnoreIDs: ignore,
		})
		logger.Info("download plan computed", "book_id", bookID, "chapters", len(plan))

		limiter := ratelimit.New(cfg.MaxRPS)
		downloader := pipeline.New(pipeline.Config{
			Workers:          cfg.Workers,
			RequestInterval:  cfg.RequestInterval,
			RetryTimes:       cfg.RetryTimes,
			BackoffFactor:    cfg.BackoffFactor,
			StorageBatchSize: cfg.StorageBatchSize,
			SkipExisting:     cfg.SkipExisting,
		}, bookID, site, store, limiter, logger, h.DataPath())

		progress, err := downloader.Download(ctx, plan, func(done, total int) {
			if total > 0 && done%10 == 0 {
				logger.Info("progress", "done", done, "total", total)
			}
		})
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}

		fmt.Printf("downloaded %d/%d chapters for %s\n", progress.Done(), progress.Total(), bookID)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&dlSite, "site", "demo", "registered site key to download from")
	downloadCmd.Flags().StringVar(&dlStartID, "start", "", "first chapter id to include (default: catalog start)")
	downloadCmd.Flags().StringVar(&dlEndID, "end", "", "last chapter id to include (default: catalog end)")
	downloadCmd.Flags().StringSliceVar(&dlIgnoreIDs, "ignore", nil, "chapter ids to skip")
	downloadCmd.Flags().StringVar(&dlBaseURL, "base-url", "", "override the site's configured base URL")
}

// loadConfig resolves --config, falling back to ./config.yaml or the home
// directory's config.yaml, writing a default file the first time.
func loadConfig(h *home.Dir) (*config.Config, error) {
	configFile := cfgFile
	if configFile == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configFile = "config.yaml"
		} else {
			configFile = h.ConfigPath()
		}
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := config.WriteDefault(configFile); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}
	mgr, err := config.NewManager(configFile)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// buildSiteRegistry registers every site plug-in the binary ships with.
// Real deployments add their own site packages' New() calls here.
func buildSiteRegistry() *sitekit.Registry {
	registry := sitekit.NewRegistry()
	registry.Register("demo", demo.New(demo.Config{BaseURL: dlBaseURL}))
	return registry
}

// fetchOrLoadBookInfo reuses a cached book_info.json if present and not
// stale, otherwise fetches, parses, and persists a fresh copy.
func fetchOrLoadBookInfo(ctx context.Context, site sitekit.Site, bookID model.BookID, bookDir string, maxAge time.Duration, logger *slog.Logger) (*model.BookInfo, error) {
	cached, err := storage.LoadBookInfo(bookDir)
	if err != nil {
		return nil, err
	}
	if cached != nil && !cached.Stale(time.Now(), maxAge) {
		logger.Info("using cached book info", "book_id", bookID)
		return cached, nil
	}

	rawPages, err := site.Fetcher.FetchBookInfo(ctx, bookID)
	if err != nil {
		if cached != nil {
			logger.Warn("refetch failed, using stale cached book info", "book_id", bookID, "error", err)
			return cached, nil
		}
		return nil, err
	}
	info, err := site.Parser.ParseBookInfo(rawPages)
	if err != nil {
		return nil, fmt.Errorf("parse book info: %w", err)
	}
	info.LastChecked = time.Now().Unix()
	if err := storage.SaveBookInfo(bookDir, info); err != nil {
		logger.Warn("failed to persist book info", "book_id", bookID, "error", err)
	}
	return info, nil
}
