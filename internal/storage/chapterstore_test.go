package storage

import (
	"testing"

	"github.com/aelwen/novelcrawler/internal/model"
)

func openTestStore(t *testing.T) *ChapterStorage {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, "chapter.raw.sqlite")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNeedsRefetchMissingRow(t *testing.T) {
	s := openTestStore(t)
	need, err := s.NeedsRefetch("c1")
	if err != nil {
		t.Fatalf("NeedsRefetch() error = %v", err)
	}
	if !need {
		t.Fatal("expected NeedsRefetch(missing) = true")
	}
}

func TestUpsertAndGetPlain(t *testing.T) {
	s := openTestStore(t)
	ch := model.Chapter{ID: "c1", Title: "T c1", Content: "body", Extra: map[string]any{}}
	if err := s.UpsertChapter(ch, false); err != nil {
		t.Fatalf("UpsertChapter() error = %v", err)
	}

	need, err := s.NeedsRefetch("c1")
	if err != nil || need {
		t.Fatalf("NeedsRefetch() = %v, %v; want false, nil", need, err)
	}

	got, err := s.GetChapter("c1")
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	if got == nil || got.Title != "T c1" || got.Content != "body" {
		t.Fatalf("GetChapter() = %+v, want title/content round trip", got)
	}
}

func TestNeedsRefetchBucketNotSkipped(t *testing.T) {
	s := openTestStore(t)
	ch := model.Chapter{ID: "c2", Title: "T c2", Content: "enc", Extra: map[string]any{"encrypted": true}}
	if err := s.UpsertChapter(ch, true); err != nil {
		t.Fatalf("UpsertChapter() error = %v", err)
	}
	need, err := s.NeedsRefetch("c2")
	if err != nil {
		t.Fatalf("NeedsRefetch() error = %v", err)
	}
	if !need {
		t.Fatal("needs-refetch row must still report NeedsRefetch = true")
	}
}

func TestGetChapterPrefersPlainOverNeedsRefetch(t *testing.T) {
	s := openTestStore(t)
	// Needs-refetch row first...
	if err := s.UpsertChapter(model.Chapter{ID: "c3", Content: "stale"}, true); err != nil {
		t.Fatal(err)
	}
	// ...then a plain row is written (site fixed, re-fetched successfully).
	if err := s.UpsertChapter(model.Chapter{ID: "c3", Content: "fresh"}, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChapter("c3")
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	if got.Content != "fresh" {
		t.Fatalf("GetChapter() = %q, want plain row %q", got.Content, "fresh")
	}
}

func TestUpsertNeverDowngradesPlainToNeedsRefetch(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertChapter(model.Chapter{ID: "c4", Content: "good"}, false); err != nil {
		t.Fatal(err)
	}
	// A later run that (incorrectly, or due to a race) re-upserts the same
	// id into the needs-refetch bucket must not downgrade the stored row.
	if err := s.UpsertChapter(model.Chapter{ID: "c4", Content: "good"}, true); err != nil {
		t.Fatal(err)
	}
	need, err := s.NeedsRefetch("c4")
	if err != nil {
		t.Fatalf("NeedsRefetch() error = %v", err)
	}
	if need {
		t.Fatal("a chapter once stored plain must never downgrade to needs-refetch")
	}
}

func TestUpsertChaptersBatchAtomic(t *testing.T) {
	s := openTestStore(t)
	rows := []model.Chapter{
		{ID: "c1", Content: "a"},
		{ID: "c2", Content: "b"},
		{ID: "c3", Content: "c"},
	}
	if err := s.UpsertChapters(rows, false); err != nil {
		t.Fatalf("UpsertChapters() error = %v", err)
	}
	for _, cid := range []model.ChapterID{"c1", "c2", "c3"} {
		ok, err := s.Exists(cid)
		if err != nil || !ok {
			t.Fatalf("Exists(%s) = %v, %v; want true, nil", cid, ok, err)
		}
	}
}

func TestGetChaptersBulk(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertChapters([]model.Chapter{{ID: "c1", Content: "a"}}, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChapters([]model.ChapterID{"c1", "missing"})
	if err != nil {
		t.Fatalf("GetChapters() error = %v", err)
	}
	if got["c1"] == nil {
		t.Fatal("expected c1 present")
	}
	if got["missing"] != nil {
		t.Fatal("expected missing chapter to map to nil")
	}
}

func TestExtraRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ch := model.Chapter{ID: "c1", Extra: map[string]any{"next_cid": "c2", "encrypted": false}}
	if err := s.UpsertChapter(ch, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChapter("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.NextCID() != "c2" {
		t.Fatalf("NextCID() = %q, want c2", got.NextCID())
	}
}
