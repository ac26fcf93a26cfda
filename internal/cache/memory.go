package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/noteban/internal/models"
)

// UpdatedNote pairs a re-parsed note with the inline tags found in its
// content.
type UpdatedNote struct {
	Note       models.Note
	InlineTags []string
}

// Update is the output of one processed change batch.
type Update struct {
	Updated      []UpdatedNote
	RemovedPaths []string
}

// Empty reports whether applying the update would change nothing. Callers
// skip re-render and broadcast entirely for empty updates; editor saves
// that echo through the watcher land here.
func (u *Update) Empty() bool {
	return u == nil || (len(u.Updated) == 0 && len(u.RemovedPaths) == 0)
}

// TagCount is one entry of the aggregated tag list.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NoteCache is the authoritative in-memory index: the note list sorted by
// modified descending, inline tags per note id, and the folder tree.
//
// Mutations take the write lock for their whole duration, so readers never
// observe a half-applied merge. At most one note per id exists at any time.
type NoteCache struct {
	mu       sync.RWMutex
	notes    []models.Note
	idx      map[string]int // note id -> position in notes
	inline   map[string][]string
	folders  []models.Folder
	loadedAt time.Time
}

// NewNoteCache returns an empty cache.
func NewNoteCache() *NoteCache {
	return &NoteCache{
		idx:    make(map[string]int),
		inline: make(map[string][]string),
	}
}

// ReplaceAll installs a freshly loaded state, discarding everything held.
func (c *NoteCache) ReplaceAll(notes []models.Note, inline map[string][]string, folders []models.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notes = append([]models.Note(nil), notes...)
	c.inline = make(map[string][]string, len(inline))
	for id, tags := range inline {
		c.inline[id] = append([]string(nil), tags...)
	}
	c.folders = append([]models.Folder(nil), folders...)
	c.loadedAt = time.Now()
	c.resortLocked()
}

// ApplyUpdates merges one processed batch. Removed paths evict the note
// currently at that path along with its inline-tag entry; updated notes
// replace the entry with the same id or append. The merge is atomic and
// ends with a stable re-sort by modified descending, so equal timestamps
// keep their insertion order.
func (c *NoteCache) ApplyUpdates(u *Update) {
	if u.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, path := range u.RemovedPaths {
		kept := c.notes[:0]
		for _, n := range c.notes {
			if n.FilePath == path {
				delete(c.inline, n.Frontmatter.ID)
				continue
			}
			kept = append(kept, n)
		}
		c.notes = kept
	}
	c.rebuildIdxLocked()

	// Two updates claiming one id resolve last-write-wins in batch order.
	for _, un := range u.Updated {
		id := un.Note.Frontmatter.ID
		if i, ok := c.idx[id]; ok {
			c.notes[i] = un.Note
		} else {
			c.idx[id] = len(c.notes)
			c.notes = append(c.notes, un.Note)
		}
		c.inline[id] = append([]string(nil), un.InlineTags...)
	}
	c.resortLocked()
}

// SetFolders replaces the folder tree.
func (c *NoteCache) SetFolders(folders []models.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders = append([]models.Folder(nil), folders...)
}

func (c *NoteCache) resortLocked() {
	sort.SliceStable(c.notes, func(i, j int) bool {
		return c.notes[i].Frontmatter.Modified.After(c.notes[j].Frontmatter.Modified)
	})
	c.rebuildIdxLocked()
}

func (c *NoteCache) rebuildIdxLocked() {
	c.idx = make(map[string]int, len(c.notes))
	for i, n := range c.notes {
		c.idx[n.Frontmatter.ID] = i
	}
}

// Notes returns a copy of the note list, sorted by modified descending.
func (c *NoteCache) Notes() []models.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Note(nil), c.notes...)
}

// Snapshot returns the note list together with the inline-tag index, both
// copied under one lock acquisition so they describe the same state.
func (c *NoteCache) Snapshot() ([]models.Note, map[string][]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	notes := append([]models.Note(nil), c.notes...)
	inline := make(map[string][]string, len(c.inline))
	for id, tags := range c.inline {
		inline[id] = append([]string(nil), tags...)
	}
	return notes, inline
}

// Len returns the number of cached notes.
func (c *NoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notes)
}

// Get returns the note with the given id.
func (c *NoteCache) Get(id string) (models.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.idx[id]
	if !ok {
		return models.Note{}, false
	}
	return c.notes[i], true
}

// GetByPath returns the note currently at the given relative path.
func (c *NoteCache) GetByPath(path string) (models.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.notes {
		if n.FilePath == path {
			return n, true
		}
	}
	return models.Note{}, false
}

// InlineTags returns the inline tags recorded for a note id.
func (c *NoteCache) InlineTags(id string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.inline[id]...)
}

// EffectiveTags returns the note's combined frontmatter and inline tag set.
func (c *NoteCache) EffectiveTags(id string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.idx[id]
	if !ok {
		return nil
	}
	return c.notes[i].EffectiveTags(c.inline[id])
}

// Folders returns a copy of the folder tree.
func (c *NoteCache) Folders() []models.Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Folder(nil), c.folders...)
}

// AllTags aggregates every effective tag across the cache with the number
// of notes carrying it, sorted by name.
func (c *NoteCache) AllTags() []TagCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int)
	for _, n := range c.notes {
		for _, t := range n.EffectiveTags(c.inline[n.Frontmatter.ID]) {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, TagCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadedAt returns when the cache last installed a full load.
func (c *NoteCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
