package cache

import (
	"reflect"
	"testing"
	"time"

	"github.com/starford/noteban/internal/models"
)

func mkNote(id, path string, modified time.Time, tags ...string) models.Note {
	return models.Note{
		Frontmatter: models.Frontmatter{
			ID:       id,
			Title:    id,
			Created:  modified,
			Modified: modified,
			Column:   models.DefaultColumnID,
			Tags:     tags,
		},
		Content:  "content of " + id,
		FilePath: path,
	}
}

func cacheWith(notes ...models.Note) *NoteCache {
	c := NewNoteCache()
	c.ReplaceAll(notes, nil, nil)
	return c
}

func noteIDs(notes []models.Note) []string {
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.Frontmatter.ID
	}
	return ids
}

func TestApplyUpdates_Rename(t *testing.T) {
	// remove(old path) + update(same id, new path) in one batch leaves
	// exactly one note under the id, at the new path.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(mkNote("id-1", "old.md", base))

	c.ApplyUpdates(&Update{
		Updated:      []UpdatedNote{{Note: mkNote("id-1", "new.md", base)}},
		RemovedPaths: []string{"old.md"},
	})

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	n, ok := c.Get("id-1")
	if !ok {
		t.Fatal("note missing after rename")
	}
	if n.FilePath != "new.md" {
		t.Errorf("path = %q, want new.md", n.FilePath)
	}
	if _, ok := c.GetByPath("old.md"); ok {
		t.Error("old path still resolves")
	}
}

func TestApplyUpdates_SortModifiedDesc(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(
		mkNote("oldest", "a.md", base),
		mkNote("newest", "b.md", base.Add(2*time.Hour)),
		mkNote("middle", "c.md", base.Add(time.Hour)),
	)

	got := noteIDs(c.Notes())
	want := []string{"newest", "middle", "oldest"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestApplyUpdates_StableTies(t *testing.T) {
	// Equal timestamps keep their existing order across merges.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(
		mkNote("first", "a.md", base),
		mkNote("second", "b.md", base),
		mkNote("third", "c.md", base),
	)

	before := noteIDs(c.Notes())
	c.ApplyUpdates(&Update{Updated: []UpdatedNote{{Note: mkNote("fourth", "d.md", base)}}})
	after := noteIDs(c.Notes())

	if !reflect.DeepEqual(after[:3], before) {
		t.Errorf("existing order changed: %v -> %v", before, after)
	}
	if after[3] != "fourth" {
		t.Errorf("appended tie lands last, got %v", after)
	}
}

func TestApplyUpdates_UpdateMovesToFront(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(
		mkNote("a", "a.md", base.Add(2*time.Hour)),
		mkNote("b", "b.md", base.Add(time.Hour)),
		mkNote("c", "c.md", base),
	)

	c.ApplyUpdates(&Update{Updated: []UpdatedNote{{Note: mkNote("c", "c.md", base.Add(3*time.Hour))}}})

	got := noteIDs(c.Notes())
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if c.Len() != 3 {
		t.Errorf("len = %d, update must replace, not append", c.Len())
	}
}

func TestApplyUpdates_RemovalDropsInline(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewNoteCache()
	c.ReplaceAll(
		[]models.Note{mkNote("id-1", "a.md", base)},
		map[string][]string{"id-1": {"inline-tag"}},
		nil,
	)

	c.ApplyUpdates(&Update{RemovedPaths: []string{"a.md"}})

	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
	if got := c.InlineTags("id-1"); len(got) != 0 {
		t.Errorf("inline tags survived removal: %v", got)
	}
}

func TestApplyUpdates_DuplicateIDLastWins(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewNoteCache()

	c.ApplyUpdates(&Update{Updated: []UpdatedNote{
		{Note: mkNote("dup", "a.md", base)},
		{Note: mkNote("dup", "b.md", base)},
	}})

	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	n, _ := c.Get("dup")
	if n.FilePath != "b.md" {
		t.Errorf("path = %q, want the later b.md", n.FilePath)
	}
}

func TestApplyUpdates_EmptyIsNoOp(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(mkNote("id-1", "a.md", base))

	c.ApplyUpdates(&Update{})
	c.ApplyUpdates(nil)

	if c.Len() != 1 {
		t.Errorf("len = %d after empty updates", c.Len())
	}
}

func TestReplaceAll(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(mkNote("stale", "stale.md", base))

	c.ReplaceAll(
		[]models.Note{mkNote("fresh", "fresh.md", base)},
		map[string][]string{"fresh": {"x"}},
		[]models.Folder{{Path: "/v", RelativePath: "", Name: "v"}},
	)

	if _, ok := c.Get("stale"); ok {
		t.Error("stale note survived ReplaceAll")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh note missing")
	}
	if got := c.InlineTags("fresh"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("inline = %v", got)
	}
	if len(c.Folders()) != 1 {
		t.Errorf("folders = %v", c.Folders())
	}
	if c.LoadedAt().IsZero() {
		t.Error("LoadedAt not stamped")
	}
}

func TestEffectiveTags(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewNoteCache()
	c.ReplaceAll(
		[]models.Note{mkNote("id-1", "a.md", base, "Work", "shared")},
		map[string][]string{"id-1": {"inline", "shared"}},
		nil,
	)

	got := c.EffectiveTags("id-1")
	want := []string{"inline", "shared", "work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestAllTags(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewNoteCache()
	c.ReplaceAll(
		[]models.Note{
			mkNote("n1", "a.md", base, "work"),
			mkNote("n2", "b.md", base, "work", "home"),
		},
		map[string][]string{"n1": {"urgent"}},
		nil,
	)

	got := c.AllTags()
	want := []TagCount{{Name: "home", Count: 1}, {Name: "urgent", Count: 1}, {Name: "work", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestSnapshot_ConsistentPair(t *testing.T) {
	c := cacheWith(mkNote("id-1", "a.md", time.Unix(100, 0), "work"))
	c.ApplyUpdates(&Update{Updated: []UpdatedNote{{
		Note:       mkNote("id-2", "b.md", time.Unix(200, 0)),
		InlineTags: []string{"inline"},
	}}})

	notes, inline := c.Snapshot()
	if len(notes) != 2 {
		t.Fatalf("notes = %d", len(notes))
	}
	if got := inline["id-2"]; len(got) != 1 || got[0] != "inline" {
		t.Errorf("inline[id-2] = %v", got)
	}

	// Mutating the returned map must not leak into the cache.
	inline["id-2"] = append(inline["id-2"], "rogue")
	if got := c.InlineTags("id-2"); len(got) != 1 {
		t.Errorf("cache inline tags mutated: %v", got)
	}
}

func TestNotes_ReturnsCopy(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cacheWith(mkNote("id-1", "a.md", base))

	notes := c.Notes()
	notes[0].Frontmatter.Title = "mutated"

	n, _ := c.Get("id-1")
	if n.Frontmatter.Title == "mutated" {
		t.Error("caller mutation leaked into the cache")
	}
}
