package cache

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/noteban/internal/checksum"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/parser"
	"github.com/starford/noteban/internal/storage"
)

// Loader performs the full directory scan: every markdown file under the
// notes root is parsed (or served from the parse cache when its mtime has
// not moved) and the folder tree is derived from the directory structure.
type Loader struct {
	store storage.Provider
	db    *DB
	log   *slog.Logger
}

// NewLoader wires a loader over the given storage and parse cache.
func NewLoader(store storage.Provider, db *DB, log *slog.Logger) *Loader {
	return &Loader{store: store, db: db, log: log}
}

// LoadResult is the complete state a full scan produces.
type LoadResult struct {
	Notes   []models.Note
	Inline  map[string][]string
	Folders []models.Folder
}

// Load scans the notes root. Only a failure to enumerate the root itself
// is fatal; unreadable or malformed individual files are skipped or
// repaired with synthesized defaults and the scan continues.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	metas, err := l.store.List("")
	if err != nil {
		return nil, err
	}

	res := &LoadResult{Inline: make(map[string][]string)}
	byID := make(map[string]int)
	valid := make(map[string]struct{}, len(metas))

	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		valid[m.Path] = struct{}{}

		un, ok := l.loadOne(m)
		if !ok {
			continue
		}

		// Two files claiming one id: last wins in scan order.
		id := un.Note.Frontmatter.ID
		if i, dup := byID[id]; dup {
			l.log.Debug("load: duplicate note id", slog.String("id", id),
				slog.String("kept", un.Note.FilePath), slog.String("dropped", res.Notes[i].FilePath))
			res.Notes[i] = un.Note
		} else {
			byID[id] = len(res.Notes)
			res.Notes = append(res.Notes, un.Note)
		}
		res.Inline[id] = un.InlineTags
	}

	if err := l.db.RemoveNotesNotIn(valid); err != nil {
		l.log.Warn("load: prune cache failed", slog.String("error", err.Error()))
	}

	folders, err := l.Folders()
	if err != nil {
		return nil, err
	}
	res.Folders = folders

	l.log.Info("load: scan complete",
		slog.Int("notes", len(res.Notes)), slog.Int("folders", len(res.Folders)))
	return res, nil
}

// loadOne produces the note for one listed file, from the parse cache when
// fresh, else by reading and parsing it.
func (l *Loader) loadOne(m models.FileMeta) (UpdatedNote, bool) {
	mtime := m.ModTime.UnixNano()
	if !l.db.NeedsUpdate(m.Path, mtime) {
		c, err := l.db.Get(m.Path)
		if err == nil && c != nil {
			return UpdatedNote{Note: c.Note, InlineTags: c.InlineTags}, true
		}
		if err != nil {
			l.log.Warn("load: cache read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
	}

	raw, err := l.store.Read(m.Path)
	if err != nil {
		// Vanished between listing and reading; the watcher will catch up.
		l.log.Warn("load: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		return UpdatedNote{}, false
	}

	un := parseNoteFile(m.Path, raw, m.ModTime)
	if err := l.db.Upsert(&un.Note, checksum.Sum(raw), mtime, un.InlineTags); err != nil {
		// The in-memory state is still good; the cache just stays cold.
		l.log.Warn("load: cache write failed", slog.String("path", m.Path), slog.String("error", err.Error()))
	}
	return un, true
}

// Folders derives the folder tree: the notes root first, then every
// directory under it in lexical order.
func (l *Loader) Folders() ([]models.Folder, error) {
	dirs, err := l.store.ListDirs("")
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	root := l.store.Root()
	out := make([]models.Folder, 0, len(dirs)+1)
	out = append(out, models.Folder{Path: root, RelativePath: "", Name: filepath.Base(root)})
	for _, d := range dirs {
		out = append(out, models.Folder{
			Path:         filepath.Join(root, filepath.FromSlash(d)),
			RelativePath: d,
			Name:         path.Base(d),
		})
	}
	return out, nil
}

// parseNoteFile turns raw file bytes into a note. Files without usable
// frontmatter still become notes: missing fields are synthesized so a
// parse problem never surfaces past this point.
func parseNoteFile(relPath string, raw []byte, mtime time.Time) UpdatedNote {
	fm, content := parser.Parse(string(raw))
	if fm == nil {
		fm = &models.Frontmatter{}
	}

	if fm.ID == "" {
		fm.ID = stableID(relPath)
	}
	if fm.Title == "" {
		if fm.Title = parser.DeriveTitle(content); fm.Title == "" {
			fm.Title = strings.TrimSuffix(path.Base(relPath), ".md")
		}
	}
	if fm.Created.IsZero() {
		fm.Created = mtime.UTC()
	}
	if fm.Modified.IsZero() {
		fm.Modified = mtime.UTC()
	}
	if fm.Column == "" {
		fm.Column = models.DefaultColumnID
	}

	return UpdatedNote{
		Note:       models.Note{Frontmatter: *fm, Content: content, FilePath: relPath},
		InlineTags: parser.InlineTags(content),
	}
}

// stableID is the synthesized id for a file that declares none. It is
// deterministic over the relative path, so repeated scans agree on the id
// without writing the file back.
func stableID(relPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("noteban://"+relPath)).String()
}
