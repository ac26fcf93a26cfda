// Package profiles persists user profiles in a small on-disk key-value
// store. A profile bundles everything the engine needs to open a vault:
// the notes directory, the board column layout, and the default view.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/peterbourgon/diskv/v3"

	"github.com/starford/noteban/internal/apperr"
	"github.com/starford/noteban/internal/models"
)

// SettingsVersion is the schema version current profiles carry. Profiles
// written by older builds are migrated on read.
const SettingsVersion = 3

// Views selectable as a profile default.
const (
	ViewList  = "list"
	ViewBoard = "board"
)

// Profile is one user profile. Each profile owns its notes directory and
// its own parse cache; nothing is shared between profiles.
type Profile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	NotesDir        string          `json:"notesDir"`
	Columns         []models.Column `json:"columns"`
	DefaultView     string          `json:"defaultView"`
	SettingsVersion int             `json:"settingsVersion"`
}

// Validate validates the profile.
func (p *Profile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.NotesDir, validation.Required),
		validation.Field(&p.DefaultView, validation.Required, validation.In(ViewList, ViewBoard)),
	)
}

// migrate upgrades a profile loaded from disk to the current settings
// schema. Reports whether anything changed.
func migrate(p *Profile) bool {
	if p.SettingsVersion >= SettingsVersion {
		return false
	}
	if p.SettingsVersion < 1 {
		if len(p.Columns) == 0 {
			p.Columns = models.DefaultColumns()
		}
		p.SettingsVersion = 1
	}
	if p.SettingsVersion < 2 {
		if p.DefaultView == "" {
			p.DefaultView = ViewList
		}
		p.SettingsVersion = 2
	}
	if p.SettingsVersion < 3 {
		// Columns written before explicit ordering keep their stored
		// sequence as the rank.
		for i := range p.Columns {
			if p.Columns[i].Order == 0 && i > 0 {
				p.Columns[i].Order = i
			}
		}
		p.SettingsVersion = 3
	}
	return true
}

const (
	profilePrefix = "p/"
	activeKey     = "active"
)

// Store reads and writes profiles under a base directory, by default
// ~/.noteban. Profile records live in a diskv store; the id of the active
// profile sits beside them as a marker.
type Store struct {
	mu   sync.Mutex
	d    *diskv.Diskv
	base string
	log  *slog.Logger
}

// DefaultDir returns the per-user state directory.
func DefaultDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("profiles: resolve home: %w", err)
	}
	return filepath.Join(home, ".noteban"), nil
}

// Open opens the profile store at baseDir, falling back to DefaultDir when
// baseDir is empty.
func Open(baseDir string, log *slog.Logger) (*Store, error) {
	if baseDir == "" {
		var err error
		baseDir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	d := diskv.New(diskv.Options{
		BasePath:          filepath.Join(baseDir, "profiles"),
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      1024 * 1024, // 1MB
	})
	return &Store{d: d, base: baseDir, log: log}, nil
}

func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{Path: parts[:len(parts)-1], FileName: parts[len(parts)-1]}
}

func pathToKey(pk *diskv.PathKey) string {
	return strings.Join(append(append([]string(nil), pk.Path...), pk.FileName), "/")
}

// List returns every profile sorted by name.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Profile
	for key := range s.d.Keys(nil) {
		if !strings.HasPrefix(key, profilePrefix) {
			continue
		}
		p, err := s.readLocked(strings.TrimPrefix(key, profilePrefix))
		if err != nil {
			s.log.Warn("profiles: skipping unreadable record", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(id)
}

func (s *Store) readLocked(id string) (*Profile, error) {
	raw, err := s.d.Read(profilePrefix + id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("profiles: %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("profiles: read %s: %w", id, err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("profiles: decode %s: %w", id, err)
	}
	if migrate(&p) {
		s.log.Debug("profiles: migrated", slog.String("id", p.ID), slog.Int("version", p.SettingsVersion))
		if err := s.writeLocked(&p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Save validates and persists a profile. A missing id is assigned, a
// home-relative notes directory is expanded, and the settings version is
// stamped to current.
func (s *Store) Save(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DefaultView == "" {
		p.DefaultView = ViewList
	}
	if len(p.Columns) == 0 {
		p.Columns = models.DefaultColumns()
	}
	expanded, err := homedir.Expand(p.NotesDir)
	if err != nil {
		return fmt.Errorf("profiles: expand notes dir: %w", err)
	}
	p.NotesDir = expanded
	p.SettingsVersion = SettingsVersion

	if err := p.Validate(); err != nil {
		return fmt.Errorf("profiles: invalid profile: %w", err)
	}
	return s.writeLocked(p)
}

func (s *Store) writeLocked(p *Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profiles: encode %s: %w", p.ID, err)
	}
	if err := s.d.Write(profilePrefix+p.ID, raw); err != nil {
		return fmt.Errorf("profiles: write %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a profile. If it was the active one, the marker is
// cleared too.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.d.Erase(profilePrefix + id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("profiles: %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("profiles: delete %s: %w", id, err)
	}
	if active, err := s.d.Read(activeKey); err == nil && string(active) == id {
		if err := s.d.Erase(activeKey); err != nil {
			return fmt.Errorf("profiles: clear active marker: %w", err)
		}
	}
	return nil
}

// SetActive marks the profile with the given id as active. The profile
// must exist.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readLocked(id); err != nil {
		return err
	}
	if err := s.d.Write(activeKey, []byte(id)); err != nil {
		return fmt.Errorf("profiles: write active marker: %w", err)
	}
	return nil
}

// Active returns the active profile, or apperr.ErrNotFound when no marker
// is set.
func (s *Store) Active() (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.d.Read(activeKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("profiles: no active profile: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("profiles: read active marker: %w", err)
	}
	return s.readLocked(string(raw))
}

// EnsureDefault returns the active profile, falling back to the first
// existing profile, or creating a "Default" profile over notesDir on first
// run. The returned profile is always marked active.
func (s *Store) EnsureDefault(notesDir string) (*Profile, error) {
	if p, err := s.Active(); err == nil {
		return p, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	existing, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		p := existing[0]
		if err := s.SetActive(p.ID); err != nil {
			return nil, err
		}
		return &p, nil
	}

	p := &Profile{
		Name:        "Default",
		NotesDir:    notesDir,
		Columns:     models.DefaultColumns(),
		DefaultView: ViewList,
	}
	if err := s.Save(p); err != nil {
		return nil, err
	}
	if err := s.SetActive(p.ID); err != nil {
		return nil, err
	}
	s.log.Info("profiles: created default profile", slog.String("id", p.ID), slog.String("notes_dir", p.NotesDir))
	return p, nil
}

// CachePath returns the parse-cache database path for a profile, creating
// the cache directory if needed.
func (s *Store) CachePath(id string) (string, error) {
	dir := filepath.Join(s.base, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("profiles: create cache dir: %w", err)
	}
	return filepath.Join(dir, id+".db"), nil
}
