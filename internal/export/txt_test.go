package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aelwen/novelcrawler/internal/model"
)

func sampleInfo() *model.BookInfo {
	return &model.BookInfo{
		BookName: "Sample Book",
		Author:   "Jane Doe",
		Volumes: []model.Volume{
			{
				VolumeName: "Volume One",
				Chapters: []model.ChapterRef{
					{ChapterID: "c1", Title: "Chapter One"},
					{ChapterID: "c2", Title: "Chapter Two"},
				},
			},
		},
	}
}

func TestTXTExporterWritesChaptersInOrder(t *testing.T) {
	chapters := map[model.ChapterID]*model.Chapter{
		"c1": {ID: "c1", Title: "Chapter One", Content: "First line.\nSecond line."},
		"c2": {ID: "c2", Title: "Chapter Two", Content: "Only line."},
	}
	outPath := filepath.Join(t.TempDir(), "book.txt")

	if err := (TXTExporter{}).Export(context.Background(), sampleInfo(), chapters, outPath); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Sample Book") || !strings.Contains(content, "Jane Doe") {
		t.Fatalf("missing book metadata in output:\n%s", content)
	}
	if strings.Index(content, "Chapter One") > strings.Index(content, "Chapter Two") {
		t.Fatal("chapters out of catalog order")
	}
	if !strings.Contains(content, "First line.") || !strings.Contains(content, "Only line.") {
		t.Fatalf("missing chapter content:\n%s", content)
	}
}

func TestTXTExporterSkipsMissingChapters(t *testing.T) {
	chapters := map[model.ChapterID]*model.Chapter{
		"c1": {ID: "c1", Title: "Chapter One", Content: "body"},
	}
	outPath := filepath.Join(t.TempDir(), "book.txt")

	if err := (TXTExporter{}).Export(context.Background(), sampleInfo(), chapters, outPath); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "Chapter Two") {
		t.Fatal("undownloaded chapter should be skipped, not rendered")
	}
}

func TestGatherSplitsPresentAndMissing(t *testing.T) {
	chapters := map[model.ChapterID]*model.Chapter{"c1": {ID: "c1"}}
	present, missing := Gather(sampleInfo(), chapters)
	if len(present) != 1 || present[0] != "c1" {
		t.Fatalf("present = %v", present)
	}
	if len(missing) != 1 || missing[0] != "c2" {
		t.Fatalf("missing = %v", missing)
	}
}
