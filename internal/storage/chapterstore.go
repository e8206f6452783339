// Package storage implements the durable, keyed, bucketed chapter store
// and the book_info.json sidecar, both scoped to one book's directory
// under raw_data/<site>/<book_id>/.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/aelwen/novelcrawler/internal/model"
)

// ChapterStorage is a durable, keyed, bucketed store for chapter records.
// A stored row carries a needs_refetch flag partitioning rows into a plain
// bucket (false) and a needs-refetch bucket (true). A chapter once stored
// plain never downgrades to needs-refetch, even if a later upsert for the
// same id names that bucket: re-running a book after a site fix is
// expected to promote a chapter from needs-refetch to plain, never back.
type ChapterStorage struct {
	mu     sync.Once
	db     *sql.DB
	closed bool
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chapters (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	extra_json    TEXT NOT NULL DEFAULT '{}',
	needs_refetch INTEGER NOT NULL DEFAULT 0
);
`

// Open opens or creates the on-disk store under dir/filename, applying the
// schema if needed.
func Open(dir, filename string) (*ChapterStorage, error) {
	path := filepath.Join(dir, filename)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chapter store %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure chapter store: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate chapter store: %w", err)
	}
	// A single chapter worker pool drives this store; cap pool size so the
	// sqlite driver never tries to multiplex transactions across goroutines.
	db.SetMaxOpenConns(1)
	return &ChapterStorage{db: db}, nil
}

// Close flushes and releases the store. Safe to call more than once.
func (s *ChapterStorage) Close() error {
	var err error
	s.mu.Do(func() {
		s.closed = true
		err = s.db.Close()
	})
	return err
}

// NeedsRefetch reports whether cid should be (re)fetched: true if no row
// exists, or a row exists with its flag set.
func (s *ChapterStorage) NeedsRefetch(cid model.ChapterID) (bool, error) {
	row := s.db.QueryRow(`SELECT needs_refetch FROM chapters WHERE id = ?`, string(cid))
	var flag int
	if err := row.Scan(&flag); err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, fmt.Errorf("needs_refetch(%s): %w", cid, err)
	}
	return flag != 0, nil
}

// Exists reports whether any row for cid exists (regardless of bucket).
func (s *ChapterStorage) Exists(cid model.ChapterID) (bool, error) {
	row := s.db.QueryRow(`SELECT 1 FROM chapters WHERE id = ?`, string(cid))
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("exists(%s): %w", cid, err)
	}
	return true, nil
}

// GetChapter returns the best available row for cid (plain preferred over
// needs-refetch), or nil if absent.
func (s *ChapterStorage) GetChapter(cid model.ChapterID) (*model.Chapter, error) {
	row := s.db.QueryRow(`
		SELECT id, title, content, extra_json FROM chapters
		WHERE id = ? ORDER BY needs_refetch ASC LIMIT 1`, string(cid))
	return scanChapter(row)
}

// GetChapters performs GetChapter in bulk; missing chapters are present in
// the result map with a nil value.
func (s *ChapterStorage) GetChapters(cids []model.ChapterID) (map[model.ChapterID]*model.Chapter, error) {
	out := make(map[model.ChapterID]*model.Chapter, len(cids))
	for _, cid := range cids {
		ch, err := s.GetChapter(cid)
		if err != nil {
			return nil, err
		}
		out[cid] = ch
	}
	return out, nil
}

// UpsertChapter is the single-row convenience form of UpsertChapters.
func (s *ChapterStorage) UpsertChapter(ch model.Chapter, needsRefetch bool) error {
	return s.UpsertChapters([]model.Chapter{ch}, needsRefetch)
}

// UpsertChapters atomically inserts-or-replaces a batch of rows, all tagged
// with the same needs_refetch flag. Either every row in the batch becomes
// visible, or (on failure) none does.
func (s *ChapterStorage) UpsertChapters(rows []model.Chapter, needsRefetch bool) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin chapter batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	// needs_refetch only ever moves from 1 to 0 (needs-refetch promoted to
	// plain once a refetch succeeds), never the reverse: MIN(old, new)
	// rather than a flat overwrite, so a chapter once stored plain can't
	// be silently downgraded by a later needs-refetch upsert.
	stmt, err := tx.Prepare(`
		INSERT INTO chapters (id, title, content, extra_json, needs_refetch)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			extra_json = excluded.extra_json,
			needs_refetch = MIN(chapters.needs_refetch, excluded.needs_refetch)`)
	if err != nil {
		return fmt.Errorf("prepare chapter upsert: %w", err)
	}
	defer stmt.Close()

	flag := 0
	if needsRefetch {
		flag = 1
	}
	for _, row := range rows {
		extra, err := json.Marshal(row.Extra)
		if err != nil {
			return fmt.Errorf("marshal extra for %s: %w", row.ID, err)
		}
		if _, err := stmt.Exec(string(row.ID), row.Title, row.Content, string(extra), flag); err != nil {
			return fmt.Errorf("upsert chapter %s: %w", row.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chapter batch (size=%d): %w", len(rows), err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanChapter(row scannable) (*model.Chapter, error) {
	var (
		id, title, content, extraJSON string
	)
	if err := row.Scan(&id, &title, &content, &extraJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chapter: %w", err)
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(extraJSON), &extra); err != nil {
		return nil, fmt.Errorf("unmarshal extra for %s: %w", id, err)
	}
	return &model.Chapter{
		ID:      model.ChapterID(id),
		Title:   title,
		Content: content,
		Extra:   extra,
	}, nil
}
