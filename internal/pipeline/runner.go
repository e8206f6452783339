package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aelwen/novelcrawler/internal/model"
	"github.com/aelwen/novelcrawler/internal/ratelimit"
	"github.com/aelwen/novelcrawler/internal/sitekit"
)

// BookJob is one unit of work submitted to a BookRunner: download plan for
// bookID against the given site, reading/writing through store.
type BookJob struct {
	BookID model.BookID
	Site   sitekit.Site
	Store  Storage
	Plan   []model.ChapterID
	Hook   ProgressHook
}

// BookResult pairs a BookJob's outcome with its originating book ID.
type BookResult struct {
	BookID   model.BookID
	Progress *Progress
	Err      error
}

// BookRunner fans BookJobs out across a bounded pool of concurrent book
// downloads, a coarser-grained semaphore-bounded goroutine pool: each
// accepted job still runs its own full BookDownloader (producer, N
// chapter workers, one storage task), but the runner caps how many books
// are in flight across the process at once. Books share only the
// process-wide rate limiter and logger; each BookDownloader otherwise
// owns its own ChapterStorage handle.
type BookRunner struct {
	cfg        Config
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	rawDataDir string

	semaphore chan struct{}
}

// NewBookRunner creates a runner that allows at most maxConcurrentBooks
// BookDownloaders to run simultaneously. limiter may be nil.
func NewBookRunner(cfg Config, maxConcurrentBooks int, limiter *ratelimit.Limiter, logger *slog.Logger, rawDataDir string) *BookRunner {
	if maxConcurrentBooks <= 0 {
		maxConcurrentBooks = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookRunner{
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger,
		rawDataDir: rawDataDir,
		semaphore:  make(chan struct{}, maxConcurrentBooks),
	}
}

// Run downloads every job concurrently, bounded by the runner's book
// semaphore, and returns once all jobs have completed or ctx is
// cancelled. Results are returned in submission order regardless of
// completion order, so callers can zip them back against jobs.
func (r *BookRunner) Run(ctx context.Context, jobs []BookJob) []BookResult {
	results := make([]BookResult, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for i, job := range jobs {
		i, job := i, job
		go func() {
			defer wg.Done()

			select {
			case r.semaphore <- struct{}{}:
			case <-ctx.Done():
				results[i] = BookResult{BookID: job.BookID, Err: ctx.Err()}
				return
			}
			defer func() { <-r.semaphore }()

			if cancelled(ctx) {
				results[i] = BookResult{BookID: job.BookID, Err: ctx.Err()}
				return
			}

			downloader := New(r.cfg, job.BookID, job.Site, job.Store, r.limiter, r.logger, r.rawDataDir)
			progress, err := downloader.Download(ctx, job.Plan, job.Hook)
			results[i] = BookResult{BookID: job.BookID, Progress: progress, Err: err}
		}()
	}

	wg.Wait()
	return results
}
