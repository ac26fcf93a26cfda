// Package cache maintains the note index: a SQLite parse cache that
// survives restarts, the in-memory view the UI reads, and the incremental
// change pipeline that keeps both in step with the notes directory.
package cache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	file_path    TEXT UNIQUE NOT NULL,
	title        TEXT NOT NULL,
	created      TEXT NOT NULL,
	modified     TEXT NOT NULL,
	date         TEXT,
	column_name  TEXT NOT NULL,
	order_num    INTEGER DEFAULT 0,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	file_mtime   INTEGER NOT NULL,
	cached_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL,
	tag_id  INTEGER NOT NULL,
	source  TEXT NOT NULL CHECK (source IN ('frontmatter', 'inline')),
	PRIMARY KEY (note_id, tag_id, source),
	FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_notes_file_path ON notes(file_path);
CREATE INDEX IF NOT EXISTS idx_notes_column ON notes(column_name);
CREATE INDEX IF NOT EXISTS idx_note_tags_note ON note_tags(note_id);
CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag_id);
`

// DB is the on-disk parse cache. It lets a warm start skip re-parsing
// files whose mtime has not moved, and carries the content hashes used to
// recognize our own write echoes.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the cache database at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
