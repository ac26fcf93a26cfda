package profiles

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/noteban/internal/apperr"
	"github.com/starford/noteban/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s, err := Open(t.TempDir(), log)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)

	p := &Profile{Name: "Work", NotesDir: "/tmp/notes"}
	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Save did not assign an id")
	}
	if p.SettingsVersion != SettingsVersion {
		t.Errorf("version = %d, want %d", p.SettingsVersion, SettingsVersion)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Work" || got.NotesDir != "/tmp/notes" {
		t.Errorf("got = %+v", got)
	}
	if got.DefaultView != ViewList {
		t.Errorf("default view = %q", got.DefaultView)
	}
	if len(got.Columns) != 3 {
		t.Errorf("columns = %+v, want defaults", got.Columns)
	}
}

func TestSave_Invalid(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Profile{NotesDir: "/tmp/notes"}); err == nil {
		t.Error("Save accepted a profile without a name")
	}
	if err := s.Save(&Profile{Name: "NoDir"}); err == nil {
		t.Error("Save accepted a profile without a notes dir")
	}
}

func TestGet_Missing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_MigratesOldRecord(t *testing.T) {
	s := testStore(t)

	old := Profile{ID: "legacy", Name: "Legacy", NotesDir: "/tmp/n"}
	raw, _ := json.Marshal(old)
	if err := s.d.Write(profilePrefix+"legacy", raw); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("legacy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SettingsVersion != SettingsVersion {
		t.Errorf("version = %d, want %d", got.SettingsVersion, SettingsVersion)
	}
	if len(got.Columns) == 0 {
		t.Error("migration did not backfill columns")
	}
	if got.DefaultView != ViewList {
		t.Errorf("migration did not backfill view, got %q", got.DefaultView)
	}

	// The migrated record is persisted, not just patched in memory.
	onDisk, err := s.d.Read(profilePrefix + "legacy")
	if err != nil {
		t.Fatal(err)
	}
	var stored Profile
	if err := json.Unmarshal(onDisk, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.SettingsVersion != SettingsVersion {
		t.Errorf("stored version = %d", stored.SettingsVersion)
	}
}

func TestActiveLifecycle(t *testing.T) {
	s := testStore(t)

	if _, err := s.Active(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Active on empty store = %v, want ErrNotFound", err)
	}
	if err := s.SetActive("ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("SetActive(ghost) = %v, want ErrNotFound", err)
	}

	p := &Profile{Name: "Main", NotesDir: "/tmp/notes"}
	if err := s.Save(p); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive(p.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, err := s.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("active = %q, want %q", got.ID, p.ID)
	}

	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Active(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Active after delete = %v, want ErrNotFound", err)
	}
}

func TestEnsureDefault_FirstRun(t *testing.T) {
	s := testStore(t)

	p, err := s.EnsureDefault("/tmp/vault")
	if err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if p.Name != "Default" || p.NotesDir != "/tmp/vault" {
		t.Errorf("profile = %+v", p)
	}

	active, err := s.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != p.ID {
		t.Errorf("active = %q, want %q", active.ID, p.ID)
	}
}

func TestEnsureDefault_ReturnsActive(t *testing.T) {
	s := testStore(t)
	p := &Profile{Name: "Mine", NotesDir: "/tmp/mine"}
	if err := s.Save(p); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive(p.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.EnsureDefault("/tmp/ignored")
	if err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("got = %q, want existing %q", got.ID, p.ID)
	}

	all, _ := s.List()
	if len(all) != 1 {
		t.Errorf("profiles = %d, EnsureDefault must not create another", len(all))
	}
}

func TestList_SortedByName(t *testing.T) {
	s := testStore(t)
	for _, name := range []string{"zeta", "alpha"} {
		if err := s.Save(&Profile{Name: name, NotesDir: "/tmp/" + name}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "alpha" || all[1].Name != "zeta" {
		t.Errorf("list = %+v", all)
	}
}

func TestSave_CustomColumnsSurvive(t *testing.T) {
	s := testStore(t)
	p := &Profile{
		Name:     "Boards",
		NotesDir: "/tmp/b",
		Columns: []models.Column{
			{ID: "inbox", Title: "Inbox", Color: "#888888", Order: 0},
			{ID: "later", Title: "Later", Color: "#444444", Order: 1},
		},
	}
	if err := s.Save(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Columns) != 2 || got.Columns[0].ID != "inbox" {
		t.Errorf("columns = %+v", got.Columns)
	}
}

func TestCachePath(t *testing.T) {
	s := testStore(t)
	path, err := s.CachePath("abc")
	if err != nil {
		t.Fatalf("CachePath: %v", err)
	}
	if filepath.Base(path) != "abc.db" {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("cache dir missing: %v", err)
	}
}
