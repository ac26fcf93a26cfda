// Package session owns the live state of one open profile: the storage
// provider over its notes directory, the parse cache, the in-memory note
// cache, the current tag filter, and the change pipeline that keeps it all
// current. Every read the API or MCP server answers goes through a session,
// and every mutation funnels into one as a single atomic merge.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/noteban/internal/cache"
	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/noteservice"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/sse"
	"github.com/starford/noteban/internal/storage"
	"github.com/starford/noteban/internal/views"
)

// Session is the live state of one open profile.
//
// The note cache guards its own reads; the session mutex serializes the
// operations that change it (batch merges, full reloads, view state), so a
// reader never observes a half-applied merge and two writers never
// interleave.
type Session struct {
	profile profiles.Profile
	store   storage.Provider
	db      *cache.DB
	notes   *cache.NoteCache
	loader  *cache.Loader
	proc    *cache.Processor
	recent  *noteservice.RecentWrites
	svc     *noteservice.Service
	broker  *sse.Broker
	log     *slog.Logger
	window  time.Duration

	mu      sync.Mutex
	filter  *filter.TagFilter
	query   string
	lastErr string

	reloadGen atomic.Int64
}

// Open builds the session for a profile: storage over its notes directory,
// its parse cache database, and a fully loaded note cache. The notes
// directory is created if missing, so a fresh profile starts usable.
func Open(ctx context.Context, p profiles.Profile, cachePath string, broker *sse.Broker, window time.Duration, log *slog.Logger) (*Session, error) {
	if err := os.MkdirAll(p.NotesDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create notes dir: %w", err)
	}
	store, err := storage.NewFS(p.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("session: init storage: %w", err)
	}

	db, err := cache.Open(cachePath)
	if err != nil {
		return nil, fmt.Errorf("session: open parse cache: %w", err)
	}
	if ok, ierr := db.VerifyIntegrity(); ierr != nil || !ok {
		log.Warn("session: parse cache integrity check failed, starting cold",
			slog.String("path", cachePath))
		if err := db.InvalidateAll(); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: reset parse cache: %w", err)
		}
	}

	notes := cache.NewNoteCache()
	recent := noteservice.NewRecentWrites(0)
	s := &Session{
		profile: p,
		store:   store,
		db:      db,
		notes:   notes,
		loader:  cache.NewLoader(store, db, log),
		proc:    cache.NewProcessor(store, db, log),
		recent:  recent,
		svc:     noteservice.New(store, db, notes, recent, log),
		broker:  broker,
		log:     log,
		window:  window,
	}

	res, err := s.loader.Load(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session: initial load: %w", err)
	}
	notes.ReplaceAll(res.Notes, res.Inline, res.Folders)
	s.reloadGen.Store(1)

	log.Info("session: opened",
		slog.String("profile", p.ID),
		slog.String("notes_dir", p.NotesDir),
		slog.Int("notes", len(res.Notes)))
	return s, nil
}

// Close releases the parse cache handle. The watcher must be stopped first.
func (s *Session) Close() error {
	return s.db.Close()
}

// Profile returns the profile this session was opened for.
func (s *Session) Profile() profiles.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Store exposes the storage provider, for handlers that serve raw files.
func (s *Session) Store() storage.Provider { return s.store }

// Watch runs the filesystem watcher until ctx is cancelled, feeding every
// debounced batch through the change pipeline.
func (s *Session) Watch(ctx context.Context) error {
	return cache.Watch(ctx, s.store.Root(), s.window, s.log, func(events []models.FileChangeEvent) {
		s.handleBatch(ctx, events)
	})
}

// handleBatch is the incremental sync step. Events echoing our own writes
// are dropped against the recent-writes tracker before they cost a parse;
// the rest resolve into one cache merge. Processing failure falls back to a
// full reload.
func (s *Session) handleBatch(ctx context.Context, events []models.FileChangeEvent) {
	kept := events[:0]
	dirsTouched := false
	for _, ev := range events {
		if s.recent.Consume(ev.Path) {
			continue
		}
		if !strings.HasSuffix(ev.Path, ".md") {
			dirsTouched = true
		}
		kept = append(kept, ev)
	}

	if len(kept) > 0 {
		u, err := s.proc.Process(ctx, kept)
		if err != nil {
			s.log.Warn("session: incremental sync failed, falling back to full reload",
				slog.String("error", err.Error()))
			if rerr := s.Reload(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
				s.log.Error("session: reload fallback failed", slog.String("error", rerr.Error()))
			}
			return
		}
		s.applyUpdate(u)
	}

	if dirsTouched {
		s.refreshFolders()
	}
}

// applyUpdate merges one update into the note cache and notifies clients.
// Empty updates change nothing and are announced to no one.
func (s *Session) applyUpdate(u *cache.Update) {
	if u.Empty() {
		return
	}
	s.mu.Lock()
	s.notes.ApplyUpdates(u)
	s.mu.Unlock()

	ids := make([]string, len(u.Updated))
	for i, un := range u.Updated {
		ids[i] = un.Note.Frontmatter.ID
	}
	s.broker.PublishChange(ids, u.RemovedPaths)
}

// refreshFolders re-derives the folder tree from disk.
func (s *Session) refreshFolders() {
	folders, err := s.loader.Folders()
	if err != nil {
		s.log.Warn("session: folder refresh failed", slog.String("error", err.Error()))
		return
	}
	s.notes.SetFolders(folders)
	s.broker.Publish(sse.Event{Type: "folders.changed", Data: map[string]string{}})
}

// Reload performs a full scan and swaps it in wholesale. Concurrent reloads
// are resolved last-requester-wins: a slower scan that was requested earlier
// is discarded rather than clobbering fresher state.
func (s *Session) Reload(ctx context.Context) error {
	gen := s.reloadGen.Add(1)

	res, err := s.loader.Load(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("session: reload: %w", err)
	}

	s.mu.Lock()
	if s.reloadGen.Load() != gen {
		s.mu.Unlock()
		s.log.Debug("session: stale reload discarded")
		return nil
	}
	s.notes.ReplaceAll(res.Notes, res.Inline, res.Folders)
	s.lastErr = ""
	s.mu.Unlock()

	s.broker.PublishReload(len(res.Notes))
	return nil
}

// Rebuild empties the parse cache and reloads from disk. Reload trusts
// mtimes; Rebuild is for when the cached rows themselves are in doubt.
func (s *Session) Rebuild(ctx context.Context) error {
	if err := s.db.InvalidateAll(); err != nil {
		return fmt.Errorf("session: invalidate parse cache: %w", err)
	}
	return s.Reload(ctx)
}

// SetFilter parses an expression into the session's current tag filter and
// stores the search query alongside it. The parsed filter is returned so
// callers can echo it back; nil means the expression held no tags and the
// filter is cleared.
func (s *Session) SetFilter(expression, query string) *filter.TagFilter {
	f := filter.ParseExpression(expression)
	s.mu.Lock()
	s.filter = f
	s.query = strings.TrimSpace(query)
	s.mu.Unlock()
	return f
}

// CurrentFilter returns the session's view state: the active tag filter
// (nil when none) and the search query.
func (s *Session) CurrentFilter() (*filter.TagFilter, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter, s.query
}

// ListView projects the flat list: notes passing the filter and matching
// the query, newest first. Pass the session's own state via CurrentFilter
// or override it for a one-shot query.
func (s *Session) ListView(f *filter.TagFilter, query string) []models.Note {
	notes, inline := s.notes.Snapshot()
	return views.Project(notes, inline, f, query)
}

// BoardView projects the kanban board over the same filtered set, using the
// profile's column layout.
func (s *Session) BoardView(f *filter.TagFilter, query string) []views.BoardColumn {
	return views.Board(s.ListView(f, query), s.Columns())
}

// Columns returns the board columns of the open profile.
func (s *Session) Columns() []models.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Column(nil), s.profile.Columns...)
}

// SetColumns installs an updated column layout, after the profile was
// edited while open.
func (s *Session) SetColumns(cols []models.Column) {
	s.mu.Lock()
	s.profile.Columns = append([]models.Column(nil), cols...)
	s.mu.Unlock()
}

// Note returns one note by id.
func (s *Session) Note(id string) (models.Note, bool) { return s.notes.Get(id) }

// Notes returns every cached note, newest first.
func (s *Session) Notes() []models.Note { return s.notes.Notes() }

// EffectiveTags returns the combined tag set of one note.
func (s *Session) EffectiveTags(id string) []string { return s.notes.EffectiveTags(id) }

// Folders returns the folder tree.
func (s *Session) Folders() []models.Folder { return s.notes.Folders() }

// Tags returns the aggregated tag vocabulary with usage counts.
func (s *Session) Tags() []cache.TagCount { return s.notes.AllTags() }

// CreateNote writes a new note file and merges it into the cache before
// returning, so the caller reads its own write.
func (s *Session) CreateNote(ctx context.Context, in noteservice.CreateInput) (models.Note, error) {
	u, err := s.svc.Create(ctx, in)
	if err != nil {
		return models.Note{}, err
	}
	s.applyUpdate(u)
	return u.Updated[0].Note, nil
}

// UpdateNote patches a note's fields, renaming its file when the title
// changed.
func (s *Session) UpdateNote(ctx context.Context, id string, in noteservice.UpdateInput) (models.Note, error) {
	u, err := s.svc.Update(ctx, id, in)
	if err != nil {
		return models.Note{}, err
	}
	s.applyUpdate(u)
	return u.Updated[0].Note, nil
}

// DeleteNote removes a note file and evicts it from the cache.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	u, err := s.svc.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.applyUpdate(u)
	return nil
}

// MoveNote relocates a note into another folder, keeping its id.
func (s *Session) MoveNote(ctx context.Context, id, folder string) (models.Note, error) {
	u, err := s.svc.Move(ctx, id, folder)
	if err != nil {
		return models.Note{}, err
	}
	if u.Empty() {
		n, _ := s.notes.Get(id)
		return n, nil
	}
	s.applyUpdate(u)
	return u.Updated[0].Note, nil
}

// CreateFolder adds a directory under the notes root.
func (s *Session) CreateFolder(ctx context.Context, rel string) error {
	if err := s.svc.CreateFolder(ctx, rel); err != nil {
		return err
	}
	s.refreshFolders()
	return nil
}

// RenameFolder moves a directory, carrying every note under it along.
func (s *Session) RenameFolder(ctx context.Context, oldRel, newRel string) error {
	u, err := s.svc.RenameFolder(ctx, oldRel, newRel)
	if err != nil {
		return err
	}
	s.applyUpdate(u)
	s.refreshFolders()
	return nil
}

// DeleteFolder removes a directory recursively, evicting its notes.
func (s *Session) DeleteFolder(ctx context.Context, rel string) error {
	u, err := s.svc.DeleteFolder(ctx, rel)
	if err != nil {
		return err
	}
	s.applyUpdate(u)
	s.refreshFolders()
	return nil
}

// Status describes the session for the status endpoint.
type Status struct {
	ProfileID   string    `json:"profile_id"`
	ProfileName string    `json:"profile_name"`
	NotesDir    string    `json:"notes_dir"`
	Notes       int       `json:"notes"`
	Folders     int       `json:"folders"`
	Tags        int       `json:"tags"`
	LoadedAt    time.Time `json:"loaded_at"`
	LastError   string    `json:"last_error,omitempty"`
}

// Status reports the session's current shape. LastError is set only while
// the reload fallback itself has failed, the one state the UI surfaces as
// an error.
func (s *Session) Status() Status {
	s.mu.Lock()
	lastErr := s.lastErr
	profile := s.profile
	s.mu.Unlock()

	return Status{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		NotesDir:    profile.NotesDir,
		Notes:       s.notes.Len(),
		Folders:     len(s.notes.Folders()),
		Tags:        len(s.notes.AllTags()),
		LoadedAt:    s.notes.LoadedAt(),
		LastError:   lastErr,
	}
}
