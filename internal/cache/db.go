package cache

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/noteban/internal/models"
)

// CachedNote is one cache row: the note plus the inline tags its content
// held when it was last parsed.
type CachedNote struct {
	Note        models.Note
	InlineTags  []string
	ContentHash string
	FileMtime   int64
}

// NeedsUpdate reports whether the file at path must be re-parsed: its mtime
// differs from the cached one, or it is not cached at all. Errors count as
// needing an update.
func (db *DB) NeedsUpdate(path string, mtime int64) bool {
	var cached int64
	err := db.conn.QueryRow(`SELECT file_mtime FROM notes WHERE file_path = ?`, path).Scan(&cached)
	if err != nil {
		return true
	}
	return cached != mtime
}

// ContentHash returns the cached content hash for path, or "" when the path
// is not cached.
func (db *DB) ContentHash(path string) string {
	var h string
	if err := db.conn.QueryRow(`SELECT content_hash FROM notes WHERE file_path = ?`, path).Scan(&h); err != nil {
		return ""
	}
	return h
}

// Get returns the cached note at path, or nil when it is not cached.
func (db *DB) Get(path string) (*CachedNote, error) {
	row := db.conn.QueryRow(`
		SELECT id, file_path, title, created, modified, date, column_name, order_num, content, content_hash, file_mtime
		FROM notes WHERE file_path = ?`, path)

	c, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", path, err)
	}

	fmTags, inline, err := db.noteTags(c.Note.Frontmatter.ID)
	if err != nil {
		return nil, err
	}
	c.Note.Frontmatter.Tags = fmTags
	c.InlineTags = inline
	return c, nil
}

// Upsert writes a note and its tag associations in one transaction.
func (db *DB) Upsert(note *models.Note, contentHash string, fileMtime int64, inlineTags []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fm := note.Frontmatter
	var date any
	if fm.Date != "" {
		date = fm.Date
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO notes
		(id, file_path, title, created, modified, date, column_name, order_num, content, content_hash, file_mtime, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fm.ID, note.FilePath, fm.Title,
		fm.Created.UTC().Format(time.RFC3339), fm.Modified.UTC().Format(time.RFC3339),
		date, fm.Column, fm.Order, note.Content, contentHash, fileMtime, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: upsert note: %w", err)
	}

	// Replace tag associations: delete old, insert current.
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, fm.ID); err != nil {
		return fmt.Errorf("cache: clear note tags: %w", err)
	}
	if err := insertTags(tx, fm.ID, fm.Tags, "frontmatter"); err != nil {
		return err
	}
	if err := insertTags(tx, fm.ID, inlineTags, "inline"); err != nil {
		return err
	}

	return tx.Commit()
}

func insertTags(tx *sql.Tx, noteID string, tags []string, source string) error {
	for _, tag := range tags {
		name := strings.ToLower(tag)
		if name == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("cache: ensure tag: %w", err)
		}
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO note_tags (note_id, tag_id, source)
			SELECT ?, id, ? FROM tags WHERE name = ?`, noteID, source, name)
		if err != nil {
			return fmt.Errorf("cache: insert %s tag: %w", source, err)
		}
	}
	return nil
}

// SetMtime refreshes the recorded mtime for an already-cached path.
func (db *DB) SetMtime(path string, mtime int64) error {
	if _, err := db.conn.Exec(`UPDATE notes SET file_mtime = ? WHERE file_path = ?`, mtime, path); err != nil {
		return fmt.Errorf("cache: set mtime %s: %w", path, err)
	}
	return nil
}

// Remove deletes the cache row for path. Removing an uncached path is not
// an error.
func (db *DB) Remove(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("cache: remove %s: %w", path, err)
	}
	return nil
}

// PathsUnder returns every cached file path beneath the directory prefix.
func (db *DB) PathsUnder(dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	rows, err := db.conn.Query(`SELECT file_path FROM notes WHERE file_path LIKE ? ESCAPE '\'`, likeEscape(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("cache: paths under %s: %w", dir, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RenamePrefix rewrites every cached path under oldDir to sit under newDir
// instead. File mtimes and hashes are untouched, so a directory rename
// keeps the whole subtree warm.
func (db *DB) RenamePrefix(oldDir, newDir string) error {
	paths, err := db.PathsUnder(oldDir)
	if err != nil {
		return err
	}
	oldPrefix := strings.TrimSuffix(oldDir, "/") + "/"
	newPrefix := strings.TrimSuffix(newDir, "/") + "/"

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("cache: rename prefix: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range paths {
		np := newPrefix + strings.TrimPrefix(p, oldPrefix)
		if _, err := tx.Exec(`UPDATE notes SET file_path = ? WHERE file_path = ?`, np, p); err != nil {
			return fmt.Errorf("cache: rename prefix %s: %w", p, err)
		}
	}
	return tx.Commit()
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// AllPaths returns every cached file path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT file_path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("cache: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// RemoveNotesNotIn drops cache rows whose path is absent from valid. Used
// after a full scan to evict files deleted while the app was not running.
func (db *DB) RemoveNotesNotIn(valid map[string]struct{}) error {
	cached, err := db.AllPaths()
	if err != nil {
		return err
	}
	for p := range cached {
		if _, ok := valid[p]; ok {
			continue
		}
		if err := db.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// All returns every cached note with its tags.
func (db *DB) All() ([]CachedNote, error) {
	rows, err := db.conn.Query(`
		SELECT id, file_path, title, created, modified, date, column_name, order_num, content, content_hash, file_mtime
		FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("cache: all notes: %w", err)
	}
	defer rows.Close()

	var notes []CachedNote
	for rows.Next() {
		c, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("cache: scan note: %w", err)
		}
		notes = append(notes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fmTags, inline, err := db.allTags()
	if err != nil {
		return nil, err
	}
	for i := range notes {
		id := notes[i].Note.Frontmatter.ID
		notes[i].Note.Frontmatter.Tags = fmTags[id]
		notes[i].InlineTags = inline[id]
	}
	return notes, nil
}

// InvalidateAll empties the notes table, forcing a cold re-parse on the
// next load.
func (db *DB) InvalidateAll() error {
	if _, err := db.conn.Exec(`DELETE FROM notes`); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

// VerifyIntegrity runs SQLite's integrity check.
func (db *DB) VerifyIntegrity() (bool, error) {
	var result string
	if err := db.conn.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return false, fmt.Errorf("cache: integrity check: %w", err)
	}
	return result == "ok", nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*CachedNote, error) {
	var (
		c                 CachedNote
		created, modified string
		date              sql.NullString
	)
	fm := &c.Note.Frontmatter
	err := row.Scan(&fm.ID, &c.Note.FilePath, &fm.Title, &created, &modified,
		&date, &fm.Column, &fm.Order, &c.Note.Content, &c.ContentHash, &c.FileMtime)
	if err != nil {
		return nil, err
	}
	fm.Created = parseRFC3339(created)
	fm.Modified = parseRFC3339(modified)
	fm.Date = date.String
	return &c, nil
}

// parseRFC3339 falls back to the current time on malformed rows rather
// than failing the whole read.
func parseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// noteTags returns the frontmatter and inline tag names for one note.
func (db *DB) noteTags(noteID string) (fmTags, inline []string, err error) {
	rows, err := db.conn.Query(`
		SELECT t.name, nt.source FROM tags t
		JOIN note_tags nt ON t.id = nt.tag_id
		WHERE nt.note_id = ?
		ORDER BY t.name`, noteID)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, source string
		if err := rows.Scan(&name, &source); err != nil {
			return nil, nil, err
		}
		if source == "inline" {
			inline = append(inline, name)
		} else {
			fmTags = append(fmTags, name)
		}
	}
	return fmTags, inline, rows.Err()
}

// allTags returns tag names per note id, split by source, in one query.
func (db *DB) allTags() (fmTags, inline map[string][]string, err error) {
	rows, err := db.conn.Query(`
		SELECT nt.note_id, t.name, nt.source FROM tags t
		JOIN note_tags nt ON t.id = nt.tag_id
		ORDER BY nt.note_id, t.name`)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: all tags: %w", err)
	}
	defer rows.Close()

	fmTags = make(map[string][]string)
	inline = make(map[string][]string)
	for rows.Next() {
		var id, name, source string
		if err := rows.Scan(&id, &name, &source); err != nil {
			return nil, nil, err
		}
		if source == "inline" {
			inline[id] = append(inline[id], name)
		} else {
			fmTags[id] = append(fmTags[id], name)
		}
	}
	return fmTags, inline, rows.Err()
}
