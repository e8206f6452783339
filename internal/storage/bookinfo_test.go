package storage

import (
	"testing"
	"time"

	"github.com/aelwen/novelcrawler/internal/model"
)

func TestLoadBookInfoMissing(t *testing.T) {
	dir := t.TempDir()
	info, err := LoadBookInfo(dir)
	if err != nil {
		t.Fatalf("LoadBookInfo() error = %v", err)
	}
	if info != nil {
		t.Fatalf("LoadBookInfo() = %+v, want nil for missing file", info)
	}
}

func TestSaveAndLoadBookInfoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &model.BookInfo{
		BookName:    "Example",
		Author:      "Someone",
		Tags:        []string{"fantasy"},
		LastChecked: time.Now().Unix(),
		Volumes: []model.Volume{
			{
				VolumeName: "Vol 1",
				Chapters: []model.ChapterRef{
					{ChapterID: "c1", Title: "Chapter 1"},
					{ChapterID: "", Title: "Unresolved"},
				},
			},
		},
	}
	if err := SaveBookInfo(dir, want); err != nil {
		t.Fatalf("SaveBookInfo() error = %v", err)
	}
	got, err := LoadBookInfo(dir)
	if err != nil {
		t.Fatalf("LoadBookInfo() error = %v", err)
	}
	if got.BookName != want.BookName || got.Author != want.Author {
		t.Fatalf("LoadBookInfo() = %+v, want %+v", got, want)
	}
	if len(got.Volumes) != 1 || len(got.Volumes[0].Chapters) != 2 {
		t.Fatalf("volume/chapter round trip mismatch: %+v", got.Volumes)
	}
	if got.Volumes[0].Chapters[0].ChapterID != "c1" {
		t.Fatalf("chapterId round trip mismatch: %+v", got.Volumes[0].Chapters)
	}
}

func TestBookInfoStaleness(t *testing.T) {
	now := time.Now()
	fresh := &model.BookInfo{LastChecked: now.Add(-1 * time.Hour).Unix()}
	stale := &model.BookInfo{LastChecked: now.Add(-25 * time.Hour).Unix()}

	if fresh.Stale(now, 24*time.Hour) {
		t.Fatal("expected 1h-old info to be fresh under a 24h cache window")
	}
	if !stale.Stale(now, 24*time.Hour) {
		t.Fatal("expected 25h-old info to be stale under a 24h cache window")
	}
	var nilInfo *model.BookInfo
	if !nilInfo.Stale(now, 24*time.Hour) {
		t.Fatal("nil BookInfo must always be considered stale")
	}
}
