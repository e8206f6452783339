package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/retryutil"
	"github.com/aelwen/novelcrawler/internal/sitekit"
)

// RepairConfig holds the retry/backoff knobs the repair walk shares with
// the download pipeline's per-chapter fetch, plus how many independent
// repair segments may be walked concurrently.
type RepairConfig struct {
	RetryTimes    int
	BackoffFactor time.Duration

	// SegmentConcurrency bounds how many catalog segments (the gaps
	// between two consecutive known chapter ids) are walked at once.
	// Defaults to 4 if <= 0. A single catalog often has several such
	// gaps scattered across volumes; each is I/O-independent of the
	// others, so they're fanned out over a bounded worker pool rather
	// than walked one at a time.
	SegmentConcurrency int
}

// repairSegment is a maximal run of consecutive empty ChapterRef entries
// anchored by the known ChapterID immediately preceding it. Two segments
// never share an anchor or overlap in entries, so they can be walked
// concurrently without racing on the same catalog slot.
type repairSegment struct {
	anchor  model.ChapterID
	entries []catalogRef
}

type catalogRef struct {
	vi, ci int
}

// RepairChapterIDs fills in missing ChapterRef.ChapterID entries in info
// by following extra.next_cid chains from the nearest preceding chapter
// that does carry an ID, fetching and upserting that chapter into store
// if it isn't cached yet. Returns the number of entries repaired. info is
// mutated in place; the caller persists it afterward.
//
// The catalog is first partitioned into independent segments (a bounded
// worker pool, the same shape used for CPU-bound work, here adapted to
// this fetch-bound walk), then each segment is walked sequentially
// within itself — a segment's own entries are chained (each fetch reveals
// the next gap's id) so they cannot be parallelized further.
//
// The walk never reorders entries and is a no-op if every ChapterID is
// already set — see repair_test.go for the idempotence check. Each
// next_cid is taken as given: it is not checked against the IDs already
// in the catalog, so a next_cid naming an existing entry is written as a
// duplicate ID.
func RepairChapterIDs(ctx context.Context, bookID model.BookID, info *model.BookInfo, store Storage, getChapter func(ctx context.Context, cid model.ChapterID) (*model.Chapter, error), cfg RepairConfig, logger *slog.Logger) (int, error) {
	if info == nil {
		return 0, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.SegmentConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	segments := partitionSegments(info, bookID, logger)
	if len(segments) == 0 {
		return 0, nil
	}

	var repaired atomic.Int64
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	wg.Add(len(segments))

	for _, seg := range segments {
		seg := seg
		go func() {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			n := walkSegment(ctx, bookID, info, seg, store, getChapter, cfg, logger)
			repaired.Add(int64(n))
		}()
	}
	wg.Wait()

	return int(repaired.Load()), nil
}

// partitionSegments scans info's catalog in order and groups consecutive
// empty ChapterRef entries under the known id that immediately precedes
// them. Entries with no preceding known id (a leading gap) are skipped
// and logged, matching the original sequential walk's behavior.
func partitionSegments(info *model.BookInfo, bookID model.BookID, logger *slog.Logger) []repairSegment {
	var segments []repairSegment
	var pending []catalogRef
	var anchor model.ChapterID
	haveAnchor := false

	flush := func() {
		if len(pending) > 0 && haveAnchor {
			segments = append(segments, repairSegment{anchor: anchor, entries: pending})
		}
		pending = nil
	}

	for vi := range info.Volumes {
		chs := info.Volumes[vi].Chapters
		for ci := range chs {
			if chs[ci].ChapterID != "" {
				flush()
				anchor = chs[ci].ChapterID
				haveAnchor = true
				continue
			}
			if !haveAnchor {
				logger.Debug("chapter id repair: no anchor yet, skipping", "book_id", bookID, "volume", vi, "index", ci)
				continue
			}
			pending = append(pending, catalogRef{vi: vi, ci: ci})
		}
	}
	flush()
	return segments
}

// walkSegment resolves seg's entries in order, each fetch's next_cid
// becoming the anchor for the following entry, exactly as the original
// single-pass walk did within one contiguous gap.
func walkSegment(ctx context.Context, bookID model.BookID, info *model.BookInfo, seg repairSegment, store Storage, getChapter func(ctx context.Context, cid model.ChapterID) (*model.Chapter, error), cfg RepairConfig, logger *slog.Logger) int {
	repaired := 0
	prevCID := seg.anchor

	for _, e := range seg.entries {
		prevChapter, err := loadOrFetchChapter(ctx, bookID, prevCID, store, getChapter, cfg, logger)
		if err != nil || prevChapter == nil {
			logger.Warn("chapter id repair: unable to load anchor chapter, skipping", "book_id", bookID, "prev_cid", prevCID, "error", err)
			return repaired
		}

		next := prevChapter.NextCID()
		if next == "" {
			logger.Warn("chapter id repair: anchor chapter has no next_cid, skipping", "book_id", bookID, "prev_cid", prevCID)
			return repaired
		}

		info.Volumes[e.vi].Chapters[e.ci].ChapterID = next
		prevCID = next
		repaired++
	}

	return repaired
}

// loadOrFetchChapter first tries the store for prevCID; if absent or
// marked needs-refetch, it fetches and upserts a fresh copy, where store
// is narrowed to the GetChapter and UpsertChapter operations repair
// needs.
func loadOrFetchChapter(ctx context.Context, bookID model.BookID, cid model.ChapterID, store Storage, getChapter func(ctx context.Context, cid model.ChapterID) (*model.Chapter, error), cfg RepairConfig, logger *slog.Logger) (*model.Chapter, error) {
	repairStore, ok := store.(ChapterGetUpserter)
	if ok {
		need, err := repairStore.NeedsRefetch(cid)
		if err == nil && !need {
			if chap, err := repairStore.GetChapter(cid); err == nil && chap != nil {
				return chap, nil
			}
		}
	}

	var chap *model.Chapter
	err := retryutil.Do(ctx, cfg.RetryTimes, cfg.BackoffFactor, func(attempt int) error {
		c, err := getChapter(ctx, cid)
		if err != nil {
			return err
		}
		chap = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if chap == nil {
		return nil, nil
	}

	if ok {
		if err := repairStore.UpsertChapters([]model.Chapter{*chap}, chap.Encrypted()); err != nil {
			logger.Warn("chapter id repair: failed to persist fetched anchor chapter", "book_id", bookID, "chapter_id", cid, "error", err)
		}
	}
	return chap, nil
}

// ChapterGetUpserter extends Storage with the single-chapter read repair
// needs; storage.ChapterStorage satisfies it directly.
type ChapterGetUpserter interface {
	Storage
	GetChapter(cid model.ChapterID) (*model.Chapter, error)
}

// SiteGetChapter adapts a sitekit.Site's Fetcher+Parser+Hooks into the
// getChapter function RepairChapterIDs needs, applying the same
// restricted/empty handling as the pipeline's per-chapter fetch, without
// the pipeline's rate limiter or image caching — the repair walk is a
// metadata-only operation run before the pipeline.
func SiteGetChapter(site sitekit.Site, bookID model.BookID) func(ctx context.Context, cid model.ChapterID) (*model.Chapter, error) {
	return func(ctx context.Context, cid model.ChapterID) (*model.Chapter, error) {
		rawPages, err := site.Fetcher.FetchChapterContent(ctx, bookID, cid)
		if err != nil {
			return nil, err
		}
		if site.Hooks.Restricted(rawPages) {
			return nil, nil
		}
		chap, err := site.Parser.ParseChapter(rawPages, cid)
		if err != nil {
			return nil, err
		}
		if chap == nil && !site.Hooks.Empty(rawPages) {
			return nil, errEmptyParseResult
		}
		return chap, nil
	}
}

var errEmptyParseResult = &emptyParseError{}

type emptyParseError struct{}

func (*emptyParseError) Error() string { return "pipeline: empty parse result" }
