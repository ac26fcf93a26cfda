package cache

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/noteban/internal/models"
)

// DefaultDebounce is the quiescence window for coalescing raw filesystem
// events. Editors emit several events per logical save; one batch should
// absorb them all.
const DefaultDebounce = 500 * time.Millisecond

// BatchFunc receives one debounced batch of change events. It is called
// from the watcher goroutine, so batches arrive strictly in order and the
// next batch waits until it returns.
type BatchFunc func(events []models.FileChangeEvent)

// Watch starts an fsnotify watcher on the notes root and delivers
// debounced event batches to fn until ctx is cancelled.
//
// Directories created at runtime are added to the watch list, and any .md
// files already inside them are reported as creates, since their writes
// may predate the watch. A rename reaches fn as a remove of the old path;
// the new path follows as its own create event.
func Watch(ctx context.Context, root string, window time.Duration, log *slog.Logger, fn BatchFunc) error {
	if window <= 0 {
		window = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	log.Info("watcher: started", slog.String("root", root), slog.Duration("window", window))

	var pending []models.FileChangeEvent

	// flushTimer restarts on every raw event, so the batch goes out only
	// after the window passes with no new activity.
	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(window)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(window)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			log.Info("watcher: stopped")
			return nil

		case <-flushCh:
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = nil
			log.Debug("watcher: flushing batch", slog.Int("events", len(batch)))
			fn(batch)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			events := translate(w, root, ev, log)
			if len(events) == 0 {
				continue
			}
			pending = append(pending, events...)
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// translate converts one raw fsnotify event into zero or more change
// events with root-relative paths.
func translate(w *fsnotify.Watcher, root string, ev fsnotify.Event, log *slog.Logger) []models.FileChangeEvent {
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if hiddenPath(rel) {
		return nil
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
				log.Warn("watcher: watch new dir failed",
					slog.String("path", rel), slog.String("error", addErr.Error()))
			}
			// The dir event itself plus creates for files that landed
			// before the watch did.
			out := []models.FileChangeEvent{{Type: models.ChangeCreate, Path: rel}}
			return append(out, containedNotes(root, ev.Name)...)
		}
		if strings.HasSuffix(rel, ".md") {
			return []models.FileChangeEvent{{Type: models.ChangeCreate, Path: rel}}
		}

	case ev.Op&fsnotify.Write != 0:
		if strings.HasSuffix(rel, ".md") {
			return []models.FileChangeEvent{{Type: models.ChangeModify, Path: rel}}
		}

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Rename fires on the old path only; the new path arrives as a
		// separate create if it stayed under the root.
		return []models.FileChangeEvent{{Type: models.ChangeRemove, Path: rel}}
	}
	return nil
}

// containedNotes reports create events for every .md file already under a
// newly watched directory.
func containedNotes(root, dir string) []models.FileChangeEvent {
	var out []models.FileChangeEvent
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if hidden(d.Name()) && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") || hidden(d.Name()) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			out = append(out, models.FileChangeEvent{Type: models.ChangeCreate, Path: filepath.ToSlash(rel)})
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and every non-hidden subdirectory to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func hiddenPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if hidden(seg) {
			return true
		}
	}
	return false
}
