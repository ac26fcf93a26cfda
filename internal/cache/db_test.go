package cache

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/starford/noteban/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "noteban-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleNote(id, path string) *models.Note {
	return &models.Note{
		Frontmatter: models.Frontmatter{
			ID:       id,
			Title:    "Sample",
			Created:  time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC),
			Modified: time.Date(2025, 2, 2, 9, 30, 0, 0, time.UTC),
			Column:   "todo",
			Tags:     []string{"alpha", "beta"},
			Order:    1,
		},
		Content:  "Body with #inline-one here.",
		FilePath: path,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "tags", "note_tags"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	n := sampleNote("id-1", "sample.md")
	if err := db.Upsert(n, "hash-1", 1700000000, []string{"inline-one"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	c, err := db.Get("sample.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c == nil {
		t.Fatal("expected cached note, got nil")
	}
	if c.Note.Frontmatter.ID != "id-1" || c.Note.FilePath != "sample.md" {
		t.Errorf("identity = %q at %q", c.Note.Frontmatter.ID, c.Note.FilePath)
	}
	if c.Note.Frontmatter.Title != "Sample" || c.Note.Frontmatter.Column != "todo" || c.Note.Frontmatter.Order != 1 {
		t.Errorf("fields = %+v", c.Note.Frontmatter)
	}
	if !c.Note.Frontmatter.Created.Equal(time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %v", c.Note.Frontmatter.Created)
	}
	if c.Note.Frontmatter.Date != "" {
		t.Errorf("date = %q, want empty for NULL", c.Note.Frontmatter.Date)
	}
	if !reflect.DeepEqual(c.Note.Frontmatter.Tags, []string{"alpha", "beta"}) {
		t.Errorf("frontmatter tags = %v", c.Note.Frontmatter.Tags)
	}
	if !reflect.DeepEqual(c.InlineTags, []string{"inline-one"}) {
		t.Errorf("inline tags = %v", c.InlineTags)
	}
	if c.ContentHash != "hash-1" || c.FileMtime != 1700000000 {
		t.Errorf("hash/mtime = %q/%d", c.ContentHash, c.FileMtime)
	}
}

func TestGet_Missing(t *testing.T) {
	db := testDB(t)
	c, err := db.Get("nope.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil for uncached path, got %+v", c)
	}
}

func TestNeedsUpdate(t *testing.T) {
	db := testDB(t)
	if !db.NeedsUpdate("new.md", 100) {
		t.Error("uncached path should need update")
	}
	_ = db.Upsert(sampleNote("id-2", "new.md"), "h", 100, nil)
	if db.NeedsUpdate("new.md", 100) {
		t.Error("same mtime should not need update")
	}
	if !db.NeedsUpdate("new.md", 101) {
		t.Error("changed mtime should need update")
	}
}

func TestSetMtime(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("id-3", "touch.md"), "h", 100, nil)
	if err := db.SetMtime("touch.md", 200); err != nil {
		t.Fatalf("SetMtime: %v", err)
	}
	if db.NeedsUpdate("touch.md", 200) {
		t.Error("refreshed mtime should be trusted")
	}
}

func TestContentHash(t *testing.T) {
	db := testDB(t)
	if h := db.ContentHash("missing.md"); h != "" {
		t.Errorf("hash for missing path = %q", h)
	}
	_ = db.Upsert(sampleNote("id-4", "h.md"), "deadbeef", 1, nil)
	if h := db.ContentHash("h.md"); h != "deadbeef" {
		t.Errorf("hash = %q", h)
	}
}

func TestRemove(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("id-5", "bye.md"), "h", 1, []string{"x"})
	if err := db.Remove("bye.md"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	c, _ := db.Get("bye.md")
	if c != nil {
		t.Error("note still cached after Remove")
	}
	// Removing again is fine.
	if err := db.Remove("bye.md"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestRemoveNotesNotIn(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("a", "keep.md"), "h", 1, nil)
	_ = db.Upsert(sampleNote("b", "drop.md"), "h", 1, nil)

	err := db.RemoveNotesNotIn(map[string]struct{}{"keep.md": {}})
	if err != nil {
		t.Fatalf("RemoveNotesNotIn: %v", err)
	}
	if c, _ := db.Get("keep.md"); c == nil {
		t.Error("keep.md was evicted")
	}
	if c, _ := db.Get("drop.md"); c != nil {
		t.Error("drop.md survived")
	}
}

func TestPathsUnder(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("a", "work/a.md"), "h", 1, nil)
	_ = db.Upsert(sampleNote("b", "work/sub/b.md"), "h", 1, nil)
	_ = db.Upsert(sampleNote("c", "workshop/c.md"), "h", 1, nil)
	_ = db.Upsert(sampleNote("d", "d.md"), "h", 1, nil)

	paths, err := db.PathsUnder("work")
	if err != nil {
		t.Fatalf("PathsUnder: %v", err)
	}
	want := map[string]bool{"work/a.md": true, "work/sub/b.md": true}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q (workshop/ must not match work/)", p)
		}
	}
}

func TestAll(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("a", "one.md"), "h1", 1, []string{"i1"})
	_ = db.Upsert(sampleNote("b", "two.md"), "h2", 2, nil)

	all, err := db.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	byPath := make(map[string]CachedNote, len(all))
	for _, c := range all {
		byPath[c.Note.FilePath] = c
	}
	if !reflect.DeepEqual(byPath["one.md"].InlineTags, []string{"i1"}) {
		t.Errorf("one.md inline = %v", byPath["one.md"].InlineTags)
	}
	if len(byPath["two.md"].Note.Frontmatter.Tags) != 2 {
		t.Errorf("two.md fm tags = %v", byPath["two.md"].Note.Frontmatter.Tags)
	}
}

func TestUpsertReplacesTags(t *testing.T) {
	db := testDB(t)
	n := sampleNote("id-6", "retag.md")
	_ = db.Upsert(n, "h1", 1, []string{"old-inline"})

	n.Frontmatter.Tags = []string{"gamma"}
	if err := db.Upsert(n, "h2", 2, []string{"new-inline"}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	c, _ := db.Get("retag.md")
	if !reflect.DeepEqual(c.Note.Frontmatter.Tags, []string{"gamma"}) {
		t.Errorf("fm tags = %v", c.Note.Frontmatter.Tags)
	}
	if !reflect.DeepEqual(c.InlineTags, []string{"new-inline"}) {
		t.Errorf("inline tags = %v", c.InlineTags)
	}
}

func TestInvalidateAllAndIntegrity(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(sampleNote("a", "x.md"), "h", 1, nil)
	if err := db.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	paths, _ := db.AllPaths()
	if len(paths) != 0 {
		t.Errorf("paths after invalidate = %v", paths)
	}
	ok, err := db.VerifyIntegrity()
	if err != nil || !ok {
		t.Errorf("integrity = %v, %v", ok, err)
	}
}
