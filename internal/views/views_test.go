package views

import (
	"reflect"
	"testing"

	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
)

func note(id, title, column string, order int, content string, tags ...string) models.Note {
	return models.Note{
		Frontmatter: models.Frontmatter{
			ID:     id,
			Title:  title,
			Column: column,
			Tags:   tags,
			Order:  order,
		},
		Content:  content,
		FilePath: id + ".md",
	}
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Frontmatter.ID
	}
	return out
}

func TestProject_TagFilter(t *testing.T) {
	notes := []models.Note{
		note("n1", "Work stuff", "todo", 0, "body", "work"),
		note("n2", "Home stuff", "todo", 0, "body", "home"),
	}

	got := Project(notes, nil, filter.ParseExpression("#work"), "")
	if !reflect.DeepEqual(ids(got), []string{"n1"}) {
		t.Errorf("projected = %v, want [n1]", ids(got))
	}
}

func TestProject_InlineTagsCountToward(t *testing.T) {
	notes := []models.Note{note("n1", "Plain", "todo", 0, "mentions #work inline")}
	inline := map[string][]string{"n1": {"work"}}

	if got := Project(notes, inline, filter.ParseExpression("#work"), ""); len(got) != 1 {
		t.Errorf("inline tag did not satisfy the filter, got %v", ids(got))
	}
	if got := Project(notes, nil, filter.ParseExpression("#work"), ""); len(got) != 0 {
		t.Errorf("filter matched without any tag source, got %v", ids(got))
	}
}

func TestProject_SearchNarrowsFilter(t *testing.T) {
	notes := []models.Note{
		note("n1", "Sprint review", "todo", 0, "prepare slides", "work"),
		note("n2", "Standup", "todo", 0, "daily sync", "work"),
	}

	got := Project(notes, nil, filter.ParseExpression("#work"), "SLIDES")
	if !reflect.DeepEqual(ids(got), []string{"n1"}) {
		t.Errorf("projected = %v, want [n1]", ids(got))
	}
}

func TestProject_SearchMatchesTitleBodyTags(t *testing.T) {
	notes := []models.Note{
		note("title-hit", "Groceries", "todo", 0, "milk"),
		note("body-hit", "List", "todo", 0, "buy groceries today"),
		note("tag-hit", "Other", "todo", 0, "nothing", "groceries"),
		note("miss", "Work", "todo", 0, "slides", "work"),
	}

	got := Project(notes, nil, nil, "grocer")
	want := []string{"title-hit", "body-hit", "tag-hit"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("projected = %v, want %v", ids(got), want)
	}
}

func TestProject_NoFilterNoQueryPassesAll(t *testing.T) {
	notes := []models.Note{
		note("n1", "A", "todo", 0, ""),
		note("n2", "B", "todo", 0, ""),
	}

	got := Project(notes, nil, nil, "  ")
	if !reflect.DeepEqual(ids(got), []string{"n1", "n2"}) {
		t.Errorf("projected = %v, input order must be preserved", ids(got))
	}
}

func TestBoard_GroupsByColumnAndSortsByOrder(t *testing.T) {
	notes := []models.Note{
		note("t2", "Second todo", "todo", 2, ""),
		note("d1", "Doing", "doing", 0, ""),
		note("t1", "First todo", "todo", 1, ""),
	}

	lanes := Board(notes, models.DefaultColumns())
	if len(lanes) != 3 {
		t.Fatalf("lanes = %d, want 3", len(lanes))
	}
	if lanes[0].Column.ID != "todo" || lanes[1].Column.ID != "doing" || lanes[2].Column.ID != "done" {
		t.Fatalf("lane order = %s,%s,%s", lanes[0].Column.ID, lanes[1].Column.ID, lanes[2].Column.ID)
	}
	if !reflect.DeepEqual(ids(lanes[0].Notes), []string{"t1", "t2"}) {
		t.Errorf("todo lane = %v, want order ascending", ids(lanes[0].Notes))
	}
	if !reflect.DeepEqual(ids(lanes[1].Notes), []string{"d1"}) {
		t.Errorf("doing lane = %v", ids(lanes[1].Notes))
	}
	if len(lanes[2].Notes) != 0 {
		t.Errorf("done lane = %v, want empty", ids(lanes[2].Notes))
	}
}

func TestBoard_ColumnDefinitionOrderWins(t *testing.T) {
	columns := []models.Column{
		{ID: "later", Title: "Later", Order: 1},
		{ID: "now", Title: "Now", Order: 0},
	}

	lanes := Board(nil, columns)
	if lanes[0].Column.ID != "now" || lanes[1].Column.ID != "later" {
		t.Errorf("lane order = %s,%s", lanes[0].Column.ID, lanes[1].Column.ID)
	}
}

func TestBoard_UnknownColumnFallsBack(t *testing.T) {
	notes := []models.Note{note("n1", "Orphan", "archived", 0, "")}

	lanes := Board(notes, models.DefaultColumns())
	if !reflect.DeepEqual(ids(lanes[0].Notes), []string{"n1"}) {
		t.Errorf("orphan note not in default lane: %v", ids(lanes[0].Notes))
	}
}

func TestBoard_NoColumnsUsesDefaults(t *testing.T) {
	lanes := Board(nil, nil)
	if len(lanes) != 3 || lanes[0].Column.ID != "todo" {
		t.Errorf("lanes = %+v", lanes)
	}
}
