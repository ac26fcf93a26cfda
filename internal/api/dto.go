package api

import (
	"github.com/starford/noteban/internal/cache"
	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/noteservice"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/session"
	"github.com/starford/noteban/internal/views"
)

// CreateNoteRequest is the request body for creating a note (aliased from
// the domain layer).
type CreateNoteRequest = noteservice.CreateInput

// UpdateNoteRequest patches note fields; absent fields are left unchanged
// (aliased from the domain layer).
type UpdateNoteRequest = noteservice.UpdateInput

// MoveNoteRequest names the destination folder of a note move, relative to
// the notes root. "" moves to the root itself.
type MoveNoteRequest struct {
	Folder string `json:"folder"`
}

// NoteDTO is a note plus its effective tag set, the union of frontmatter
// and inline tags that filtering operates on.
type NoteDTO struct {
	models.Note
	Tags []string `json:"tags"`
}

// NoteListResponse wraps a filtered note listing.
type NoteListResponse struct {
	Notes []NoteDTO `json:"notes"`
	Total int       `json:"total"`
}

// BoardResponse wraps the kanban projection. Total counts notes across all
// lanes.
type BoardResponse struct {
	Columns []views.BoardColumn `json:"columns"`
	Total   int                 `json:"total"`
}

// FilterRequest sets the sticky filter state from an expression like
// "#work AND #urgent" plus a free-text query.
type FilterRequest struct {
	Expression string `json:"expression"`
	Query      string `json:"query"`
}

// FilterResponse echoes the parsed filter state. Expression is the
// canonical rendering; Filter is null when no tags are active.
type FilterResponse struct {
	Expression string            `json:"expression"`
	Filter     *filter.TagFilter `json:"filter"`
	Query      string            `json:"query"`
}

// CreateFolderRequest names a folder to create, relative to the notes root.
type CreateFolderRequest struct {
	Path string `json:"path"`
}

// RenameFolderRequest moves a folder subtree.
type RenameFolderRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FolderListResponse wraps the folder tree, root first.
type FolderListResponse struct {
	Folders []models.Folder `json:"folders"`
}

// TagListResponse wraps the aggregated tag vocabulary.
type TagListResponse struct {
	Tags []cache.TagCount `json:"tags"`
}

// ProfileListResponse lists all profiles plus the id of the active one.
type ProfileListResponse struct {
	Profiles []profiles.Profile `json:"profiles"`
	Active   string             `json:"active,omitempty"`
}

// SuggestTagsRequest asks for tag suggestions, for a cached note by id or
// for raw content. NoteID wins when both are set.
type SuggestTagsRequest struct {
	NoteID  string `json:"note_id"`
	Content string `json:"content"`
	Max     int    `json:"max"`
}

// SuggestTagsResponse carries the suggested tags.
type SuggestTagsResponse struct {
	Tags []string `json:"tags"`
}

// StatusResponse is the engine status (aliased from the session layer).
type StatusResponse = session.Status
