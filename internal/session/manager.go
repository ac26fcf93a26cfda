package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/sse"
)

// Manager owns the active session and the watcher goroutine attached to it.
// Switching profiles tears the old world down and builds the new one; the
// old session keeps serving until the replacement is ready.
type Manager struct {
	profiles *profiles.Store
	broker   *sse.Broker
	window   time.Duration
	log      *slog.Logger

	// Watchers outlive the request that starts them, so they run off the
	// context Start was given, not the caller's.
	appCtx context.Context

	mu     sync.RWMutex
	cur    *Session
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager over the given profile store and broker.
func NewManager(ps *profiles.Store, broker *sse.Broker, window time.Duration, log *slog.Logger) *Manager {
	return &Manager{profiles: ps, broker: broker, window: window, log: log}
}

// Start resolves the active profile (creating a default one on first run)
// and opens its session. ctx bounds the lifetime of every watcher the
// manager will ever start.
func (m *Manager) Start(ctx context.Context, defaultNotesDir string) error {
	m.appCtx = ctx

	p, err := m.profiles.EnsureDefault(defaultNotesDir)
	if err != nil {
		return fmt.Errorf("session: resolve active profile: %w", err)
	}

	s, cancel, done, err := m.launch(ctx, *p)
	if err != nil {
		return err
	}
	m.install(s, cancel, done)
	return nil
}

// launch opens a session for p and starts its watcher. ctx bounds only the
// initial load; the watcher always runs off the manager's app context.
func (m *Manager) launch(ctx context.Context, p profiles.Profile) (*Session, context.CancelFunc, chan struct{}, error) {
	cachePath, err := m.profiles.CachePath(p.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("session: resolve cache path: %w", err)
	}

	s, err := Open(ctx, p, cachePath, m.broker, m.window, m.log)
	if err != nil {
		return nil, nil, nil, err
	}

	wctx, cancel := context.WithCancel(m.appCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Watch(wctx); err != nil {
			m.log.Error("session: watcher exited", slog.String("error", err.Error()))
		}
	}()
	return s, cancel, done, nil
}

func (m *Manager) install(s *Session, cancel context.CancelFunc, done chan struct{}) {
	m.mu.Lock()
	old, oldCancel, oldDone := m.cur, m.cancel, m.done
	m.cur, m.cancel, m.done = s, cancel, done
	m.mu.Unlock()

	m.teardown(old, oldCancel, oldDone)
}

func (m *Manager) teardown(s *Session, cancel context.CancelFunc, done chan struct{}) {
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if s != nil {
		if err := s.Close(); err != nil {
			m.log.Warn("session: close failed", slog.String("error", err.Error()))
		}
	}
}

// Current returns the active session. It is nil only before Start.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Switch activates another profile and rebuilds the session around it. The
// previous session stays live until the new one loaded, so a failed switch
// leaves the old world serving.
func (m *Manager) Switch(ctx context.Context, profileID string) (*Session, error) {
	p, err := m.profiles.Get(profileID)
	if err != nil {
		return nil, err
	}

	s, cancel, done, err := m.launch(ctx, *p)
	if err != nil {
		return nil, err
	}
	if err := m.profiles.SetActive(p.ID); err != nil {
		m.teardown(s, cancel, done)
		return nil, err
	}
	m.install(s, cancel, done)

	m.broker.Publish(sse.Event{Type: "profile.activated", Data: map[string]string{"id": p.ID}})
	m.broker.PublishReload(s.notes.Len())

	m.log.Info("session: switched profile",
		slog.String("id", p.ID), slog.String("name", p.Name))
	return s, nil
}

// ApplyProfileUpdate pushes an edited profile into the live session when it
// is the one open. A changed notes directory needs a full Switch; column or
// view edits take effect in place.
func (m *Manager) ApplyProfileUpdate(ctx context.Context, p profiles.Profile) error {
	cur := m.Current()
	if cur == nil || cur.Profile().ID != p.ID {
		return nil
	}
	if cur.Profile().NotesDir != p.NotesDir {
		_, err := m.Switch(ctx, p.ID)
		return err
	}
	cur.SetColumns(p.Columns)
	m.broker.Publish(sse.Event{Type: "board.changed", Data: map[string]string{}})
	return nil
}

// Columns returns the active profile's board columns, falling back to the
// defaults when no session is open yet.
func (m *Manager) Columns() []models.Column {
	if cur := m.Current(); cur != nil {
		return cur.Columns()
	}
	return models.DefaultColumns()
}

// Close tears down the active session and its watcher.
func (m *Manager) Close() {
	m.mu.Lock()
	s, cancel, done := m.cur, m.cancel, m.done
	m.cur, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()

	m.teardown(s, cancel, done)
}
