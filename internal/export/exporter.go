// Package export assembles a downloaded book into a finished artifact
// (.txt or .epub). Generic packaging only — per-site rendering stays
// out of scope.
package export

import (
	"context"

	"github.com/aelwen/novelcrawler/internal/model"
)

// Exporter renders info's catalog, resolving each chapter through
// chapters, to a single artifact at outPath. Chapters absent from
// chapters or mapped to nil (not yet downloaded) are skipped, not
// treated as fatal.
type Exporter interface {
	Export(ctx context.Context, info *model.BookInfo, chapters map[model.ChapterID]*model.Chapter, outPath string) error
}

// Gather flattens info.Volumes in catalog order into the chapters
// present in the supplied lookup, plus the list of chapter IDs that are
// planned but not yet available (absent from the lookup or mapped to
// nil). It applies the same present/missing rule the exporters use.
func Gather(info *model.BookInfo, chapters map[model.ChapterID]*model.Chapter) (present []model.ChapterID, missing []model.ChapterID) {
	if info == nil {
		return nil, nil
	}
	for _, vol := range info.Volumes {
		for _, ref := range vol.Chapters {
			if ref.ChapterID == "" {
				continue
			}
			if ch, ok := chapters[ref.ChapterID]; ok && ch != nil {
				present = append(present, ref.ChapterID)
			} else {
				missing = append(missing, ref.ChapterID)
			}
		}
	}
	return present, missing
}
