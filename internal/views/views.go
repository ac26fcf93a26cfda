// Package views projects the note cache into the two shapes the UI renders:
// the flat filtered list and the kanban board.
package views

import (
	"sort"
	"strings"

	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
)

// Project applies the tag filter and free-text search to a note list. A
// note's effective tag set is the union of its frontmatter and inline tags.
// The query is an extra predicate ANDed onto the filter: a case-insensitive
// substring match over title, body, and tags. Input order is preserved, so
// a cache-sorted input comes out cache-sorted.
func Project(notes []models.Note, inline map[string][]string, f *filter.TagFilter, query string) []models.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		tags := n.EffectiveTags(inline[n.Frontmatter.ID])
		if !f.Evaluate(tags) {
			continue
		}
		if q != "" && !matches(n, tags, q) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func matches(n models.Note, tags []string, q string) bool {
	if strings.Contains(strings.ToLower(n.Frontmatter.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, t := range tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}

// BoardColumn is one kanban lane: its definition plus the notes in it,
// sorted by order rank ascending.
type BoardColumn struct {
	Column models.Column `json:"column"`
	Notes  []models.Note `json:"notes"`
}

// Board groups an already filtered note list into kanban lanes. Lanes come
// out in column-definition order. Notes whose column id matches no defined
// column land in the default column, or the first lane when no default is
// defined either.
func Board(notes []models.Note, columns []models.Column) []BoardColumn {
	if len(columns) == 0 {
		columns = models.DefaultColumns()
	}
	sorted := append([]models.Column(nil), columns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	lanes := make([]BoardColumn, len(sorted))
	pos := make(map[string]int, len(sorted))
	for i, c := range sorted {
		lanes[i] = BoardColumn{Column: c, Notes: []models.Note{}}
		pos[c.ID] = i
	}
	fallback, ok := pos[models.DefaultColumnID]
	if !ok {
		fallback = 0
	}

	for _, n := range notes {
		i, ok := pos[n.Frontmatter.Column]
		if !ok {
			i = fallback
		}
		lanes[i].Notes = append(lanes[i].Notes, n)
	}
	for i := range lanes {
		ns := lanes[i].Notes
		sort.SliceStable(ns, func(a, b int) bool {
			return ns[a].Frontmatter.Order < ns[b].Frontmatter.Order
		})
	}
	return lanes
}
