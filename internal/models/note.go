// Package models defines the domain types for the noteban engine.
package models

import (
	"sort"
	"strings"
	"time"
)

// Frontmatter is the structured header embedded at the top of every note file.
// Field order here is the serialization order on disk.
type Frontmatter struct {
	ID       string    `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Created  time.Time `yaml:"created" json:"created"`
	Modified time.Time `yaml:"modified" json:"modified"`
	Date     string    `yaml:"date,omitempty" json:"date,omitempty"`
	Column   string    `yaml:"column" json:"column"`
	Tags     []string  `yaml:"tags" json:"tags"`
	Order    int       `yaml:"order" json:"order"`
}

// Note represents one markdown file in the notes directory.
//
// ID is assigned at creation, never reused, and survives renames and moves;
// FilePath is the note's current location and changes freely.
type Note struct {
	Frontmatter Frontmatter `json:"frontmatter"`
	Content     string      `json:"content"`
	FilePath    string      `json:"file_path"`
}

// ID returns the note's stable identifier.
func (n *Note) ID() string { return n.Frontmatter.ID }

// EffectiveTags returns the union of the note's frontmatter tags and the
// given inline tags, lowercased, deduplicated, and sorted. This is the tag
// set filtering and search operate on.
func (n *Note) EffectiveTags(inline []string) []string {
	seen := make(map[string]struct{}, len(n.Frontmatter.Tags)+len(inline))
	for _, t := range n.Frontmatter.Tags {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range inline {
		seen[strings.ToLower(t)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Folder represents a directory under the notes root. RelativePath is ""
// for the root itself and uniquely identifies a folder; parent/child
// relationships are derived from path segments, never stored.
type Folder struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	Name         string `json:"name"`
}

// Parent returns the relative path of the folder's parent ("" for folders
// directly under the root, and for the root itself).
func (f Folder) Parent() string {
	i := strings.LastIndex(f.RelativePath, "/")
	if i < 0 {
		return ""
	}
	return f.RelativePath[:i]
}

// Column is a kanban column definition, configured per profile.
type Column struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Color string `json:"color" yaml:"color"`
	Order int    `json:"order" yaml:"order"`
}

// DefaultColumns is the board layout new profiles start with.
func DefaultColumns() []Column {
	return []Column{
		{ID: "todo", Title: "To Do", Color: "#e8590c", Order: 0},
		{ID: "doing", Title: "In Progress", Color: "#1971c2", Order: 1},
		{ID: "done", Title: "Done", Color: "#2f9e44", Order: 2},
	}
}

// DefaultColumnID is the column for notes that declare none.
const DefaultColumnID = "todo"

// ChangeType classifies a filesystem change event.
type ChangeType string

// Change event types as the watcher reports them.
const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeRemove ChangeType = "remove"
)

// FileChangeEvent is one raw filesystem notification. Events are always
// debounced into batches before processing.
type FileChangeEvent struct {
	Type ChangeType `json:"type"`
	Path string     `json:"path"`
}

// FileMeta is lightweight per-file metadata returned by directory listings.
type FileMeta struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
