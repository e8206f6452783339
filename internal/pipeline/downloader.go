// Package pipeline implements the producer/worker/storage staged download
// pipeline for one book and the chapter-ID repair walk. It is the
// asynchronous core the rest of the module exists to support.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/ratelimit"
	"github.com/aelwen/novelcrawler/internal/retryutil"
	"github.com/aelwen/novelcrawler/internal/sitekit"
	"github.com/aelwen/novelcrawler/internal/storage"
)

// Config holds the per-process download tuning knobs.
type Config struct {
	Workers           int
	RequestInterval   time.Duration
	RetryTimes        int
	BackoffFactor     time.Duration
	StorageBatchSize  int
	SkipExisting      bool
}

// item is the tagged-variant encoding of the source's STOP sentinel: a
// queue element is either a value or a stop request, never both.
type item[T any] struct {
	value T
	stop  bool
}

func stopItem[T any]() item[T] { return item[T]{stop: true} }
func valItem[T any](v T) item[T] { return item[T]{value: v} }

// Storage is the subset of storage.ChapterStorage the pipeline needs,
// narrowed so tests can substitute a fake.
type Storage interface {
	NeedsRefetch(cid model.ChapterID) (bool, error)
	UpsertChapters(rows []model.Chapter, needsRefetch bool) error
}

var _ Storage = (*storage.ChapterStorage)(nil)

// BookDownloader orchestrates one book's download: a single producer, N
// fetch/parse workers, and a single storage task, wired by two bounded
// channels and coordinated by ctx cancellation.
type BookDownloader struct {
	cfg     Config
	bookID  model.BookID
	site    sitekit.Site
	storage Storage
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	// mediaDir is where FetchImages best-effort caches chapter images,
	// per the persisted-layout raw_data/<book_id>/medias/ convention.
	mediaDir string
}

// New creates a BookDownloader for one book. limiter may be nil (no
// process-wide pacing).
func New(cfg Config, bookID model.BookID, site sitekit.Site, store Storage, limiter *ratelimit.Limiter, logger *slog.Logger, rawDataDir string) *BookDownloader {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StorageBatchSize <= 0 {
		cfg.StorageBatchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookDownloader{
		cfg:      cfg,
		bookID:   bookID,
		site:     site,
		storage:  store,
		limiter:  limiter,
		logger:   logger.With("book_id", bookID),
		mediaDir: filepath.Join(rawDataDir, string(bookID), "medias"),
	}
}

// Download runs the pipeline to completion for plan, a pre-computed,
// ordered chapter-ID list (see model.PlanChapters). It returns the
// Progress tracker observed during the run. Cancelling ctx triggers
// cooperative shutdown: the producer stops enqueueing, workers stop
// starting new fetches, and the storage task drains and flushes before
// returning — see gracefulCancelGrace for the bounded wait applied there.
func (d *BookDownloader) Download(ctx context.Context, plan []model.ChapterID, hook ProgressHook) (*Progress, error) {
	if len(plan) == 0 {
		return NewProgress(0, hook), nil
	}

	progress := NewProgress(len(plan), hook)
	cidQueue := make(chan item[model.ChapterID], d.cfg.Workers*2)
	saveQueue := make(chan item[*model.Chapter], d.cfg.Workers*2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.runStorageTask(ctx, saveQueue, progress)
	}()

	workerDone := make(chan struct{}, d.cfg.Workers)
	for i := 0; i < d.cfg.Workers; i++ {
		go func() {
			defer func() { workerDone <- struct{}{} }()
			d.runWorker(ctx, cidQueue, saveQueue)
		}()
	}

	d.runProducer(ctx, plan, cidQueue, progress)

	for i := 0; i < d.cfg.Workers; i++ {
		<-workerDone
	}
	<-done

	if ctx.Err() != nil {
		d.logger.Info("book cancelled: flushed", "done", progress.Done(), "total", progress.Total())
	} else {
		d.logger.Info("book download completed", "done", progress.Done(), "total", progress.Total())
	}
	return progress, nil
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// runProducer walks plan in catalog order, skipping chapters already
// plain when SkipExisting is set, and always emits exactly Workers STOP
// tokens at the end — even when cancelled early — so workers terminate
// deterministically.
func (d *BookDownloader) runProducer(ctx context.Context, plan []model.ChapterID, cidQueue chan<- item[model.ChapterID], progress *Progress) {
	defer func() {
		for i := 0; i < d.cfg.Workers; i++ {
			cidQueue <- stopItem[model.ChapterID]()
		}
	}()

	for _, cid := range plan {
		if cancelled(ctx) {
			return
		}
		if d.cfg.SkipExisting {
			need, err := d.storage.NeedsRefetch(cid)
			if err == nil && !need {
				progress.Bump(1)
				continue
			}
		}
		select {
		case cidQueue <- valItem(cid):
		case <-ctx.Done():
			return
		}
	}
}

// runWorker loops: dequeue, exit on STOP or cancellation (forwarding one
// STOP downstream on every exit path, including a cancellation that
// lands mid-send or during the inter-request pacing sleep), else
// fetch+parse with retry and forward the result, then pace before the
// next iteration.
func (d *BookDownloader) runWorker(ctx context.Context, cidQueue <-chan item[model.ChapterID], saveQueue chan<- item[*model.Chapter]) {
	for {
		x := <-cidQueue
		if x.stop {
			saveQueue <- stopItem[*model.Chapter]()
			return
		}
		if cancelled(ctx) {
			saveQueue <- stopItem[*model.Chapter]()
			return
		}

		chap := d.getChapter(ctx, x.value)
		if chap != nil {
			select {
			case saveQueue <- valItem(chap):
			case <-ctx.Done():
				saveQueue <- stopItem[*model.Chapter]()
				return
			}
		}

		if err := retryutil.JitterSleep(ctx, d.cfg.RequestInterval, 1.1, d.cfg.RequestInterval+2*time.Second); err != nil {
			saveQueue <- stopItem[*model.Chapter]()
			return
		}
	}
}

// runStorageTask consumes parsed chapters, batches them per bucket, and
// flushes on threshold or drain. Cancellation is detected by the top-level
// select itself (not only after a value item happens to arrive), so a
// run where cancelled workers forward only STOPs, or no further items at
// all, still reaches the drain/grace path instead of blocking forever on
// the next receive. Once cancelled it drains whatever is already queued,
// flushes once, then keeps awaiting the remaining STOPs up to a bounded
// grace period so every worker can still exit and this task can never
// hang shutdown indefinitely.
func (d *BookDownloader) runStorageTask(ctx context.Context, saveQueue <-chan item[*model.Chapter], progress *Progress) {
	batches := map[bool][]model.Chapter{false: nil, true: nil}

	flush := func(bucket bool) {
		rows := batches[bucket]
		if len(rows) == 0 {
			return
		}
		if err := d.storage.UpsertChapters(rows, bucket); err != nil {
			d.logger.Error("storage batch upsert failed", "bucket_needs_refetch", bucket, "size", len(rows), "error", err)
		} else {
			progress.Bump(len(rows))
		}
		batches[bucket] = nil
	}
	flushAll := func() {
		flush(false)
		flush(true)
	}
	ingest := func(it item[*model.Chapter]) {
		bucket := d.site.Hooks.NeedsRefetch(it.value)
		batches[bucket] = append(batches[bucket], *it.value)
		if len(batches[bucket]) >= d.cfg.StorageBatchSize {
			flush(bucket)
		}
	}

	stopsSeen := 0
	for {
		select {
		case it := <-saveQueue:
			if it.stop {
				stopsSeen++
				if stopsSeen == d.cfg.Workers {
					flushAll()
					return
				}
				continue
			}
			ingest(it)
			continue
		case <-ctx.Done():
		}
		break
	}

drain:
	for {
		select {
		case it := <-saveQueue:
			if it.stop {
				stopsSeen++
				continue
			}
			ingest(it)
		default:
			break drain
		}
	}
	flushAll()

	graceCtx, cancel := context.WithTimeout(context.Background(), gracefulCancelGrace)
	defer cancel()
	for stopsSeen < d.cfg.Workers {
		select {
		case it := <-saveQueue:
			if it.stop {
				stopsSeen++
			}
		case <-graceCtx.Done():
			d.logger.Warn("storage task grace period expired awaiting worker stop tokens", "stops_seen", stopsSeen, "workers", d.cfg.Workers)
			return
		}
	}
}

// gracefulCancelGrace bounds how long the storage task waits for
// remaining STOP tokens after a cancellation-triggered drain, so a
// stuck worker can never hang shutdown indefinitely.
const gracefulCancelGrace = 10 * time.Second

// ErrRestricted signals access-restricted content: never retried,
// chapter skipped.
var ErrRestricted = errors.New("pipeline: chapter content restricted")

// ErrEmptyChapter signals a parse that legitimately yielded nothing (the
// site's Empty hook returning true): never retried.
var ErrEmptyChapter = errors.New("pipeline: chapter legitimately empty")

// getChapter implements the per-chapter fetch/parse/retry protocol.
func (d *BookDownloader) getChapter(ctx context.Context, cid model.ChapterID) *model.Chapter {
	var result *model.Chapter

	err := retryutil.Do(ctx, d.cfg.RetryTimes, d.cfg.BackoffFactor, func(attempt int) error {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		rawPages, err := d.site.Fetcher.FetchChapterContent(ctx, d.bookID, cid)
		if err != nil {
			return fmt.Errorf("fetch chapter %s: %w", cid, err)
		}

		if d.site.Hooks.Restricted(rawPages) {
			d.logger.Info("chapter restricted, skipping", "chapter_id", cid)
			return retryutil.Unretriable(ErrRestricted)
		}

		chap, err := d.site.Parser.ParseChapter(rawPages, cid)
		if err != nil {
			return fmt.Errorf("parse chapter %s: %w", cid, err)
		}
		if chap == nil {
			if d.site.Hooks.Empty(rawPages) {
				d.logger.Info("chapter legitimately empty, skipping", "chapter_id", cid)
				return retryutil.Unretriable(ErrEmptyChapter)
			}
			return fmt.Errorf("parse chapter %s: empty result", cid)
		}

		result = chap
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrRestricted) || errors.Is(err, ErrEmptyChapter) {
			return nil
		}
		d.logger.Warn("chapter failed after retries", "chapter_id", cid, "error", err)
		return nil
	}

	d.cacheChapterImages(ctx, result)
	return result
}

// cacheChapterImages requests the fetcher cache any images referenced by
// the chapter to raw_data/<book_id>/medias/, best-effort: failures never
// fail the chapter.
func (d *BookDownloader) cacheChapterImages(ctx context.Context, chap *model.Chapter) {
	urls := imageURLs(chap)
	if len(urls) == 0 {
		return
	}
	d.site.Fetcher.FetchImages(ctx, d.mediaDir, urls, d.cfg.Workers)
}

func imageURLs(chap *model.Chapter) []string {
	if chap == nil || chap.Extra == nil {
		return nil
	}
	raw, ok := chap.Extra[model.ExtraImagePositions]
	if !ok {
		return nil
	}
	positions, ok := raw.(map[int][]map[string]string)
	if !ok {
		return nil
	}
	var urls []string
	for _, images := range positions {
		for _, img := range images {
			if img["type"] == "url" && img["data"] != "" {
				urls = append(urls, img["data"])
			}
		}
	}
	return urls
}
