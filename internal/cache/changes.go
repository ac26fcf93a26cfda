package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/noteban/internal/apperr"
	"github.com/starford/noteban/internal/checksum"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/storage"
)

// Processor turns one debounced batch of filesystem events into the cache
// mutation it implies, keeping the parse cache in step as it goes.
type Processor struct {
	store storage.Provider
	db    *DB
	log   *slog.Logger
}

// NewProcessor wires a processor over the given storage and parse cache.
func NewProcessor(store storage.Provider, db *DB, log *slog.Logger) *Processor {
	return &Processor{store: store, db: db, log: log}
}

// Process walks the batch in arrival order and resolves it per path: a
// remove contributes the path to the eviction list, a create or modify
// re-parses the file, and a later event for the same path supersedes an
// earlier one. Files that vanish between event and read are skipped; the
// next event or reload corrects them. Files whose bytes are unchanged
// (our own writes echoing back through the watcher) produce nothing, so a
// pure echo batch comes out Empty.
//
// An error return means incremental processing cannot be trusted; it
// always wraps apperr.ErrResyncRequired and the caller recovers with a
// full load.
func (p *Processor) Process(ctx context.Context, events []models.FileChangeEvent) (*Update, error) {
	st := newBatchState()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, p.resync("cancelled", err)
		}

		switch ev.Type {
		case models.ChangeRemove:
			if err := p.handleRemove(st, ev.Path); err != nil {
				return nil, err
			}
		case models.ChangeCreate, models.ChangeModify:
			if err := p.handleUpsert(st, ev.Path); err != nil {
				return nil, err
			}
		default:
			p.log.Debug("process: unknown event type", slog.String("type", string(ev.Type)))
		}
	}

	return st.result(), nil
}

func (p *Processor) handleRemove(st *batchState, path string) error {
	if !strings.HasSuffix(path, ".md") {
		// Directory gone: evict everything cached beneath it. The watcher
		// saw no per-file events for the contents.
		under, err := p.db.PathsUnder(path)
		if err != nil {
			return p.resync("enumerate removed dir", err)
		}
		sort.Strings(under)
		for _, sub := range under {
			if err := p.db.Remove(sub); err != nil {
				return p.resync("remove cached note", err)
			}
			st.markRemoved(sub)
		}
		return nil
	}

	if err := p.db.Remove(path); err != nil {
		return p.resync("remove cached note", err)
	}
	st.markRemoved(path)
	return nil
}

func (p *Processor) handleUpsert(st *batchState, path string) error {
	if !strings.HasSuffix(path, ".md") {
		return nil
	}

	meta, err := p.store.Stat(path)
	if err != nil {
		// Raced with a delete; no-op for this path.
		p.log.Debug("process: stat failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	raw, err := p.store.Read(path)
	if err != nil {
		p.log.Debug("process: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}

	hash := checksum.Sum(raw)
	if hash == p.db.ContentHash(path) {
		// Identical bytes: only the mtime moved. Record it so the next
		// warm load still trusts the cache row.
		if err := p.db.SetMtime(path, meta.ModTime.UnixNano()); err != nil {
			return p.resync("refresh mtime", err)
		}
		return nil
	}

	un := parseNoteFile(path, raw, meta.ModTime)
	if err := p.db.Upsert(&un.Note, hash, meta.ModTime.UnixNano(), un.InlineTags); err != nil {
		return p.resync("upsert note", err)
	}
	st.markUpdated(path, un)
	return nil
}

func (p *Processor) resync(op string, err error) error {
	return fmt.Errorf("cache: process: %s failed (%v): %w", op, err, apperr.ErrResyncRequired)
}

// batchState accumulates the per-path resolution of one batch, preserving
// first-seen order on both sides.
type batchState struct {
	updated      map[string]UpdatedNote
	updatedOrder []string
	removed      map[string]struct{}
	removedOrder []string
}

func newBatchState() *batchState {
	return &batchState{
		updated: make(map[string]UpdatedNote),
		removed: make(map[string]struct{}),
	}
}

func (st *batchState) markRemoved(path string) {
	delete(st.updated, path)
	if _, ok := st.removed[path]; !ok {
		st.removed[path] = struct{}{}
		st.removedOrder = append(st.removedOrder, path)
	}
}

func (st *batchState) markUpdated(path string, un UpdatedNote) {
	delete(st.removed, path)
	if _, ok := st.updated[path]; !ok {
		st.updatedOrder = append(st.updatedOrder, path)
	}
	st.updated[path] = un
}

func (st *batchState) result() *Update {
	u := &Update{}
	for _, path := range st.updatedOrder {
		if un, ok := st.updated[path]; ok {
			u.Updated = append(u.Updated, un)
		}
	}
	for _, path := range st.removedOrder {
		if _, ok := st.removed[path]; ok {
			u.RemovedPaths = append(u.RemovedPaths, path)
		}
	}
	return u
}
