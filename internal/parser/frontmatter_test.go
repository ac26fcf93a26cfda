package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/noteban/internal/models"
)

func TestParse_FrontmatterAndContent(t *testing.T) {
	raw := "---\nid: abc-123\ntitle: Groceries\ncreated: 2025-01-15T10:30:00Z\nmodified: 2025-01-16T08:00:00Z\ncolumn: doing\ntags:\n    - home\n    - errands\norder: 2\n---\n\nBuy milk.\n"
	fm, content := Parse(raw)
	if fm == nil {
		t.Fatal("expected frontmatter, got nil")
	}
	if fm.ID != "abc-123" {
		t.Errorf("id = %q, want %q", fm.ID, "abc-123")
	}
	if fm.Title != "Groceries" {
		t.Errorf("title = %q, want %q", fm.Title, "Groceries")
	}
	if fm.Column != "doing" {
		t.Errorf("column = %q, want %q", fm.Column, "doing")
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "home" || fm.Tags[1] != "errands" {
		t.Errorf("tags = %v, want [home errands]", fm.Tags)
	}
	if fm.Order != 2 {
		t.Errorf("order = %d, want 2", fm.Order)
	}
	want := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	if !fm.Created.Equal(want) {
		t.Errorf("created = %v, want %v", fm.Created, want)
	}
	if content != "Buy milk." {
		t.Errorf("content = %q, want %q", content, "Buy milk.")
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	fm, content := Parse("# Just a heading\nSome text.\n")
	if fm != nil {
		t.Errorf("expected nil frontmatter, got %+v", fm)
	}
	if content != "# Just a heading\nSome text." {
		t.Errorf("content = %q", content)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	raw := "---\n: invalid: yaml: {{{\n---\nBody\n"
	fm, content := Parse(raw)
	if fm != nil {
		t.Errorf("expected nil frontmatter on invalid YAML, got %+v", fm)
	}
	if !strings.Contains(content, "Body") {
		t.Errorf("content should keep the whole input, got %q", content)
	}
}

func TestParse_UnclosedFence(t *testing.T) {
	fm, content := Parse("---\ntitle: dangling\n")
	if fm != nil {
		t.Errorf("expected nil frontmatter for unclosed fence, got %+v", fm)
	}
	if !strings.Contains(content, "title: dangling") {
		t.Errorf("content = %q", content)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	orig := &models.Frontmatter{
		ID:       "n-1",
		Title:    "Round Trip",
		Created:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Modified: time.Date(2025, 3, 2, 9, 15, 0, 0, time.UTC),
		Date:     "2025-03-05",
		Column:   "todo",
		Tags:     []string{"alpha", "beta"},
		Order:    7,
	}
	const body = "Line one.\n\nLine two with #alpha."

	raw, err := Serialize(orig, body)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, content := Parse(raw)
	if got == nil {
		t.Fatal("round trip lost the frontmatter")
	}
	if got.ID != orig.ID || got.Title != orig.Title || got.Date != orig.Date ||
		got.Column != orig.Column || got.Order != orig.Order {
		t.Errorf("scalar fields changed: got %+v", got)
	}
	if !got.Created.Equal(orig.Created) || !got.Modified.Equal(orig.Modified) {
		t.Errorf("timestamps changed: created %v, modified %v", got.Created, got.Modified)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "alpha" || got.Tags[1] != "beta" {
		t.Errorf("tags = %v", got.Tags)
	}
	if content != body {
		t.Errorf("content = %q, want %q", content, body)
	}
}

func TestSerialize_Layout(t *testing.T) {
	fm := &models.Frontmatter{ID: "x", Title: "T", Column: "todo"}
	raw, err := Serialize(fm, "hello")
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !strings.HasPrefix(raw, "---\n") {
		t.Errorf("missing opening fence: %q", raw)
	}
	if !strings.HasSuffix(raw, "---\n\nhello") {
		t.Errorf("missing blank line between fence and content: %q", raw)
	}
}

func TestDeriveTitle_FirstH1(t *testing.T) {
	title := DeriveTitle("intro text\n# My Heading\n## sub\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestDeriveTitle_None(t *testing.T) {
	if got := DeriveTitle("no headings here\n## only h2"); got != "" {
		t.Errorf("title = %q, want empty", got)
	}
}
