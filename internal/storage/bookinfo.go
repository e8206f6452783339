package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aelwen/novelcrawler/internal/model"
)

const bookInfoFilename = "book_info.json"

type bookInfoJSON struct {
	BookName     string          `json:"book_name"`
	Author       string          `json:"author"`
	CoverURL     string          `json:"cover_url,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	SerialStatus string          `json:"serial_status,omitempty"`
	WordCount    string          `json:"word_count,omitempty"`
	Tags         []string        `json:"tags"`
	UpdateTime   string          `json:"update_time,omitempty"`
	LastChecked  int64           `json:"last_checked"`
	Volumes      []volumeJSON    `json:"volumes"`
}

type volumeJSON struct {
	VolumeName  string         `json:"volume_name,omitempty"`
	VolumeIntro string         `json:"volume_intro,omitempty"`
	VolumeCover string         `json:"volume_cover,omitempty"`
	Chapters    []chapterRefJSON `json:"chapters"`
}

type chapterRefJSON struct {
	ChapterID string `json:"chapterId,omitempty"`
	Title     string `json:"title,omitempty"`
}

// LoadBookInfo reads book_info.json from dir, returning (nil, nil) if it
// does not exist yet.
func LoadBookInfo(dir string) (*model.BookInfo, error) {
	path := filepath.Join(dir, bookInfoFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw bookInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fromJSON(raw), nil
}

// SaveBookInfo writes info to dir/book_info.json as UTF-8 JSON.
func SaveBookInfo(dir string, info *model.BookInfo) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(toJSON(info), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal book info: %w", err)
	}
	path := filepath.Join(dir, bookInfoFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func toJSON(b *model.BookInfo) bookInfoJSON {
	out := bookInfoJSON{
		BookName:     b.BookName,
		Author:       b.Author,
		CoverURL:     b.CoverURL,
		Summary:      b.Summary,
		SerialStatus: b.SerialStatus,
		WordCount:    b.WordCount,
		Tags:         b.Tags,
		UpdateTime:   b.UpdateTime,
		LastChecked:  b.LastChecked,
		Volumes:      make([]volumeJSON, len(b.Volumes)),
	}
	for i, v := range b.Volumes {
		chapters := make([]chapterRefJSON, len(v.Chapters))
		for j, c := range v.Chapters {
			chapters[j] = chapterRefJSON{ChapterID: string(c.ChapterID), Title: c.Title}
		}
		out.Volumes[i] = volumeJSON{
			VolumeName:  v.VolumeName,
			VolumeIntro: v.VolumeIntro,
			VolumeCover: v.VolumeCover,
			Chapters:    chapters,
		}
	}
	return out
}

func fromJSON(raw bookInfoJSON) *model.BookInfo {
	out := &model.BookInfo{
		BookName:     raw.BookName,
		Author:       raw.Author,
		CoverURL:     raw.CoverURL,
		Summary:      raw.Summary,
		SerialStatus: raw.SerialStatus,
		WordCount:    raw.WordCount,
		Tags:         raw.Tags,
		UpdateTime:   raw.UpdateTime,
		LastChecked:  raw.LastChecked,
		Volumes:      make([]model.Volume, len(raw.Volumes)),
	}
	for i, v := range raw.Volumes {
		chapters := make([]model.ChapterRef, len(v.Chapters))
		for j, c := range v.Chapters {
			chapters[j] = model.ChapterRef{ChapterID: model.ChapterID(c.ChapterID), Title: c.Title}
		}
		out.Volumes[i] = model.Volume{
			VolumeName:  v.VolumeName,
			VolumeIntro: v.VolumeIntro,
			VolumeCover: v.VolumeCover,
			Chapters:    chapters,
		}
	}
	return out
}
