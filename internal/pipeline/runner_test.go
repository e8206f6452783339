package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/aelwen/novelcrawler/internal/model"
)

func TestBookRunnerRunsAllJobs(t *testing.T) {
	cfg := testCfg()
	runner := NewBookRunner(cfg, 2, nil, nil, t.TempDir())

	jobs := make([]BookJob, 3)
	stores := make([]*fakeStore, 3)
	for i := range jobs {
		stores[i] = newFakeStore()
		jobs[i] = BookJob{
			BookID: model.BookID("book-" + string(rune('a'+i))),
			Site:   testSite(&fakeParser{}, nil),
			Store:  stores[i],
			Plan:   []model.ChapterID{"c1", "c2"},
		}
	}

	results := runner.Run(context.Background(), jobs)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("job %d: unexpected error %v", i, res.Err)
		}
		if res.BookID != jobs[i].BookID {
			t.Fatalf("result %d book id = %q, want %q", i, res.BookID, jobs[i].BookID)
		}
		if res.Progress == nil || res.Progress.Done() != 2 {
			t.Fatalf("job %d: progress = %+v, want done=2", i, res.Progress)
		}
		if len(stores[i].all()) != 2 {
			t.Fatalf("job %d: store has %d chapters, want 2", i, len(stores[i].all()))
		}
	}
}

func TestBookRunnerCompletesWithSingleSlot(t *testing.T) {
	cfg := testCfg()
	cfg.Workers = 1
	runner := NewBookRunner(cfg, 1, nil, nil, t.TempDir())

	jobs := []BookJob{
		{BookID: "b1", Site: testSite(&fakeParser{}, nil), Store: newFakeStore(), Plan: []model.ChapterID{"c1"}},
		{BookID: "b2", Site: testSite(&fakeParser{}, nil), Store: newFakeStore(), Plan: []model.ChapterID{"c1"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := runner.Run(ctx, jobs)
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("job %d: unexpected error %v", i, res.Err)
		}
	}
}

func TestBookRunnerRespectsCancellation(t *testing.T) {
	runner := NewBookRunner(testCfg(), 1, nil, nil, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []BookJob{
		{BookID: "b1", Site: testSite(&fakeParser{}, nil), Store: newFakeStore(), Plan: []model.ChapterID{"c1"}},
	}
	results := runner.Run(ctx, jobs)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestBookRunnerEmptyJobList(t *testing.T) {
	runner := NewBookRunner(testCfg(), 2, nil, nil, t.TempDir())
	results := runner.Run(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}
