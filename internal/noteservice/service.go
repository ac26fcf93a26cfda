// Package noteservice implements the write side of the vault: note and
// folder operations expressed as incremental cache updates the session
// merges and broadcasts.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/starford/noteban/internal/apperr"
	"github.com/starford/noteban/internal/cache"
	"github.com/starford/noteban/internal/checksum"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/parser"
	"github.com/starford/noteban/internal/storage"
)

// DefaultRecentTTL bounds how long a recorded write suppresses its watcher
// echo.
const DefaultRecentTTL = 2 * time.Second

// RecentWrites remembers paths this process wrote recently, so the session
// can drop the watcher echo of its own writes without touching disk.
type RecentWrites struct {
	mu  sync.Mutex
	m   map[string]time.Time
	ttl time.Duration
}

// NewRecentWrites creates a tracker with the given TTL, defaulting when
// ttl is not positive.
func NewRecentWrites(ttl time.Duration) *RecentWrites {
	if ttl <= 0 {
		ttl = DefaultRecentTTL
	}
	return &RecentWrites{m: make(map[string]time.Time), ttl: ttl}
}

// Record marks paths as just written.
func (r *RecentWrites) Record(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, p := range paths {
		r.m[p] = now
	}
}

// Consume reports whether path was written within the TTL and forgets it.
// Debouncing leaves at most one event per path per batch, so one recorded
// write answers exactly one event.
func (r *RecentWrites) Consume(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[path]
	if !ok {
		return false
	}
	delete(r.m, path)
	return time.Since(t) <= r.ttl
}

// Cache is the read side of the in-memory note index the service consults.
type Cache interface {
	Get(id string) (models.Note, bool)
	Notes() []models.Note
	InlineTags(id string) []string
}

var _ Cache = (*cache.NoteCache)(nil)

// Service coordinates storage writes with the parse cache.
type Service struct {
	store  storage.Provider
	db     *cache.DB
	cache  Cache
	recent *RecentWrites
	log    *slog.Logger
}

// New creates a note service.
func New(store storage.Provider, db *cache.DB, c Cache, recent *RecentWrites, log *slog.Logger) *Service {
	return &Service{store: store, db: db, cache: c, recent: recent, log: log}
}

// CreateInput carries the fields of a new note. Folder is the target
// directory relative to the notes root, empty for the root itself.
type CreateInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Folder  string   `json:"folder"`
	Date    string   `json:"date"`
	Column  string   `json:"column"`
	Tags    []string `json:"tags"`
}

// UpdateInput patches note fields; nil fields are left unchanged.
type UpdateInput struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Date    *string   `json:"date"`
	Column  *string   `json:"column"`
	Tags    *[]string `json:"tags"`
	Order   *int      `json:"order"`
}

// Create writes a new note file and returns the cache update for it. The
// filename is a slug of the title; collisions take a numeric suffix.
func (s *Service) Create(_ context.Context, in CreateInput) (*cache.Update, error) {
	now := time.Now().UTC()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled"
	}
	column := in.Column
	if column == "" {
		column = models.DefaultColumnID
	}
	note := models.Note{
		Frontmatter: models.Frontmatter{
			ID:       uuid.NewString(),
			Title:    title,
			Created:  now,
			Modified: now,
			Date:     in.Date,
			Column:   column,
			Tags:     in.Tags,
		},
		Content: in.Content,
	}

	raw, err := parser.Serialize(&note.Frontmatter, note.Content)
	if err != nil {
		return nil, fmt.Errorf("noteservice: serialize: %w", err)
	}
	path, err := s.freePath(strings.Trim(in.Folder, "/"), slugify(title), "")
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, []byte(raw)); err != nil {
		return nil, err
	}
	note.FilePath = path
	s.recent.Record(path)
	s.log.Info("noteservice: created note",
		slog.String("id", note.Frontmatter.ID), slog.String("path", path))

	return &cache.Update{Updated: []cache.UpdatedNote{s.indexNote(note, raw)}}, nil
}

// Update patches note fields and rewrites the file. A title change renames
// the file to the new slug, so the update may carry a removed path.
func (s *Service) Update(_ context.Context, id string, in UpdateInput) (*cache.Update, error) {
	current, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrNotFound)
	}
	path := current.FilePath

	// Disk is the truth; the cached copy may trail an external edit.
	raw, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	note := current
	if fm, body := parser.Parse(string(raw)); fm != nil {
		note.Frontmatter = *fm
		note.Content = body
	}

	titleChanged := in.Title != nil && *in.Title != note.Frontmatter.Title
	if in.Title != nil {
		note.Frontmatter.Title = *in.Title
	}
	if in.Date != nil {
		note.Frontmatter.Date = *in.Date
	}
	if in.Column != nil {
		note.Frontmatter.Column = *in.Column
	}
	if in.Tags != nil {
		note.Frontmatter.Tags = *in.Tags
	}
	if in.Order != nil {
		note.Frontmatter.Order = *in.Order
	}
	if in.Content != nil {
		note.Content = *in.Content
	}
	note.Frontmatter.Modified = time.Now().UTC()

	newPath := path
	if titleChanged {
		folder := ""
		if i := strings.LastIndex(path, "/"); i >= 0 {
			folder = path[:i]
		}
		newPath, err = s.freePath(folder, slugify(note.Frontmatter.Title), path)
		if err != nil {
			return nil, err
		}
		if newPath != path {
			if err := s.store.Move(path, newPath); err != nil {
				return nil, err
			}
		}
	}

	out, err := parser.Serialize(&note.Frontmatter, note.Content)
	if err != nil {
		return nil, fmt.Errorf("noteservice: serialize: %w", err)
	}
	if err := s.store.Write(newPath, []byte(out)); err != nil {
		return nil, err
	}
	note.FilePath = newPath

	update := &cache.Update{}
	if newPath != path {
		s.dropRow(path)
		update.RemovedPaths = []string{path}
		s.recent.Record(path, newPath)
	} else {
		s.recent.Record(newPath)
	}
	update.Updated = []cache.UpdatedNote{s.indexNote(note, out)}
	return update, nil
}

// Delete removes the note file. A file already gone still yields the
// eviction update, so a stale cache heals.
func (s *Service) Delete(_ context.Context, id string) (*cache.Update, error) {
	note, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrNotFound)
	}
	if err := s.store.Delete(note.FilePath); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	s.dropRow(note.FilePath)
	s.recent.Record(note.FilePath)
	s.log.Info("noteservice: deleted note",
		slog.String("id", id), slog.String("path", note.FilePath))
	return &cache.Update{RemovedPaths: []string{note.FilePath}}, nil
}

// Move relocates a note into another folder, keeping its id, filename,
// and frontmatter untouched.
func (s *Service) Move(_ context.Context, id, folder string) (*cache.Update, error) {
	note, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrNotFound)
	}
	oldPath := note.FilePath
	name := oldPath
	if i := strings.LastIndex(oldPath, "/"); i >= 0 {
		name = oldPath[i+1:]
	}
	folder = strings.Trim(folder, "/")
	newPath := name
	if folder != "" {
		newPath = folder + "/" + name
	}
	if newPath == oldPath {
		return &cache.Update{}, nil
	}

	if err := s.store.Move(oldPath, newPath); err != nil {
		return nil, err
	}
	s.dropRow(oldPath)
	note.FilePath = newPath
	s.recent.Record(oldPath, newPath)

	raw, err := s.store.Read(newPath)
	if err != nil {
		return nil, err
	}
	return &cache.Update{
		Updated:      []cache.UpdatedNote{s.indexNote(note, string(raw))},
		RemovedPaths: []string{oldPath},
	}, nil
}

// CreateFolder makes a directory under the notes root.
func (s *Service) CreateFolder(_ context.Context, rel string) error {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return fmt.Errorf("noteservice: folder name required: %w", apperr.ErrInvalidPath)
	}
	if err := s.store.MkdirAll(rel); err != nil {
		return err
	}
	s.recent.Record(rel)
	return nil
}

// RenameFolder moves a directory. The returned update rewrites every note
// beneath it in place; parse-cache rows move with their mtimes, keeping
// the subtree warm.
func (s *Service) RenameFolder(_ context.Context, oldRel, newRel string) (*cache.Update, error) {
	oldRel = strings.Trim(oldRel, "/")
	newRel = strings.Trim(newRel, "/")
	if oldRel == "" || newRel == "" {
		return nil, fmt.Errorf("noteservice: folder name required: %w", apperr.ErrInvalidPath)
	}
	if err := s.store.Move(oldRel, newRel); err != nil {
		return nil, err
	}
	if err := s.db.RenamePrefix(oldRel, newRel); err != nil {
		s.log.Warn("noteservice: parse cache rename failed", slog.String("error", err.Error()))
	}
	s.recent.Record(oldRel, newRel)

	prefix := oldRel + "/"
	update := &cache.Update{}
	for _, n := range s.cache.Notes() {
		if !strings.HasPrefix(n.FilePath, prefix) {
			continue
		}
		moved := n
		moved.FilePath = newRel + "/" + strings.TrimPrefix(n.FilePath, prefix)
		update.RemovedPaths = append(update.RemovedPaths, n.FilePath)
		update.Updated = append(update.Updated, cache.UpdatedNote{
			Note:       moved,
			InlineTags: s.cache.InlineTags(n.Frontmatter.ID),
		})
		s.recent.Record(moved.FilePath)
	}
	s.log.Info("noteservice: renamed folder",
		slog.String("from", oldRel), slog.String("to", newRel),
		slog.Int("notes", len(update.Updated)))
	return update, nil
}

// DeleteFolder removes a directory recursively and evicts every note
// beneath it.
func (s *Service) DeleteFolder(_ context.Context, rel string) (*cache.Update, error) {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return nil, fmt.Errorf("noteservice: refusing to delete the notes root: %w", apperr.ErrInvalidPath)
	}

	paths, err := s.db.PathsUnder(rel)
	if err != nil {
		s.log.Warn("noteservice: parse cache listing failed", slog.String("error", err.Error()))
		paths = nil
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	// The in-memory cache may hold notes the parse cache missed.
	for _, n := range s.cache.Notes() {
		if strings.HasPrefix(n.FilePath, rel+"/") && !seen[n.FilePath] {
			paths = append(paths, n.FilePath)
		}
	}

	if err := s.store.DeleteDir(rel); err != nil {
		return nil, err
	}
	for _, p := range paths {
		s.dropRow(p)
	}
	s.recent.Record(rel)
	sort.Strings(paths)
	s.log.Info("noteservice: deleted folder", slog.String("path", rel), slog.Int("notes", len(paths)))
	return &cache.Update{RemovedPaths: paths}, nil
}

// indexNote writes the parse-cache row for a freshly written note and
// packages it as a cache update entry.
func (s *Service) indexNote(note models.Note, raw string) cache.UpdatedNote {
	inline := parser.InlineTags(note.Content)
	mtime := time.Now().UnixNano()
	if meta, err := s.store.Stat(note.FilePath); err == nil {
		mtime = meta.ModTime.UnixNano()
	}
	if err := s.db.Upsert(&note, checksum.SumString(raw), mtime, inline); err != nil {
		s.log.Warn("noteservice: parse cache upsert failed",
			slog.String("path", note.FilePath), slog.String("error", err.Error()))
	}
	return cache.UpdatedNote{Note: note, InlineTags: inline}
}

func (s *Service) dropRow(path string) {
	if err := s.db.Remove(path); err != nil {
		s.log.Warn("noteservice: parse cache remove failed",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// freePath finds an unused path for slug inside folder, suffixing -1, -2,
// ... on collision. keep, when non-empty, is accepted as-is so a rename
// can land on the note's own current path.
func (s *Service) freePath(folder, slug, keep string) (string, error) {
	for n := 0; ; n++ {
		name := slug + ".md"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.md", slug, n)
		}
		p := name
		if folder != "" {
			p = folder + "/" + name
		}
		if p == keep {
			return p, nil
		}
		_, err := s.store.Stat(p)
		if errors.Is(err, apperr.ErrNotFound) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("noteservice: probe %s: %w", p, err)
		}
	}
}

// slugify turns a title into a filename stem: lowercased, with runs of
// non-alphanumerics collapsed to single hyphens.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	if len(parts) == 0 {
		return "untitled"
	}
	return strings.Join(parts, "-")
}
