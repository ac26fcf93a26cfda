package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteban/internal/ai"
	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/session"
)

// Handler holds the API route handlers. Note, board, and folder routes go
// through the active session; profile routes talk to the store and hand
// the session manager the fallout.
type Handler struct {
	mgr      *session.Manager
	profiles *profiles.Store
	ai       *ai.Client
	log      *slog.Logger
}

// NewHandler creates a Handler. aiClient may be nil, which disables the
// tag suggestion endpoint.
func NewHandler(mgr *session.Manager, ps *profiles.Store, aiClient *ai.Client, log *slog.Logger) *Handler {
	return &Handler{mgr: mgr, profiles: ps, ai: aiClient, log: log}
}

// sess returns the active session, answering 503 when none is open.
func (h *Handler) sess(w http.ResponseWriter) (*session.Session, bool) {
	s := h.mgr.Current()
	if s == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("no active profile"))
		return nil, false
	}
	return s, true
}

// viewArgs resolves the filter and query for a listing. The session's
// sticky state applies unless the request carries filter or q parameters,
// which override it for this request only. An empty filter parameter
// means unfiltered, so presence is what matters, not the value.
func viewArgs(s *session.Session, r *http.Request) (*filter.TagFilter, string) {
	f, q := s.CurrentFilter()
	params := r.URL.Query()
	if params.Has("filter") {
		f = filter.ParseExpression(params.Get("filter"))
	}
	if params.Has("q") {
		q = params.Get("q")
	}
	return f, q
}

func (h *Handler) noteDTO(s *session.Session, n models.Note) NoteDTO {
	return NoteDTO{Note: n, Tags: s.EffectiveTags(n.Frontmatter.ID)}
}

// ListNotes handles GET /notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	f, q := viewArgs(s, r)
	notes := s.ListView(f, q)
	out := make([]NoteDTO, 0, len(notes))
	for _, n := range notes {
		out = append(out, h.noteDTO(s, n))
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: out, Total: len(out)})
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	n, found := s.Note(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.noteDTO(s, n))
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.CreateNote(r.Context(), req)
	if err != nil {
		respondError(w, h.log, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.noteDTO(s, n))
}

// UpdateNote handles PATCH /notes/{id}. Absent body fields are left
// unchanged.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.UpdateNote(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, h.log, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, h.noteDTO(s, n))
}

// DeleteNote handles DELETE /notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	if err := s.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.log, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /notes/{id}/move.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req MoveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.MoveNote(r.Context(), chi.URLParam(r, "id"), req.Folder)
	if err != nil {
		respondError(w, h.log, "move note", err)
		return
	}
	writeJSON(w, http.StatusOK, h.noteDTO(s, n))
}

// Board handles GET /board.
func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	f, q := viewArgs(s, r)
	lanes := s.BoardView(f, q)
	total := 0
	for _, l := range lanes {
		total += len(l.Notes)
	}
	writeJSON(w, http.StatusOK, BoardResponse{Columns: lanes, Total: total})
}

// GetFilter handles GET /filter.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	f, q := s.CurrentFilter()
	writeJSON(w, http.StatusOK, FilterResponse{Expression: f.String(), Filter: f, Query: q})
}

// SetFilter handles PUT /filter. The response echoes how the expression
// parsed, so the client can render the active filter chips.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req FilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f := s.SetFilter(req.Expression, req.Query)
	_, q := s.CurrentFilter()
	writeJSON(w, http.StatusOK, FilterResponse{Expression: f.String(), Filter: f, Query: q})
}

// ListFolders handles GET /folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, FolderListResponse{Folders: s.Folders()})
}

// CreateFolder handles POST /folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.CreateFolder(r.Context(), req.Path); err != nil {
		respondError(w, h.log, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": req.Path})
}

// RenameFolder handles POST /folders/rename.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req RenameFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.RenameFolder(r.Context(), req.From, req.To); err != nil {
		respondError(w, h.log, "rename folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder handles DELETE /folders?path=.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	if err := s.DeleteFolder(r.Context(), path); err != nil {
		respondError(w, h.log, "delete folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTags handles GET /tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: s.Tags()})
}

// ListProfiles handles GET /profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.List()
	if err != nil {
		respondError(w, h.log, "list profiles", err)
		return
	}
	resp := ProfileListResponse{Profiles: list}
	if active, err := h.profiles.Active(); err == nil {
		resp.Active = active.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProfile handles POST /profiles. The id is assigned server side;
// one sent by the client is ignored.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var p profiles.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = ""
	if err := h.profiles.Save(&p); err != nil {
		respondError(w, h.log, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProfile handles PUT /profiles/{id}. When the update touches the
// active profile, the session picks it up: a column change reshapes the
// board, a notes directory change reopens the vault.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.profiles.Get(id); err != nil {
		respondError(w, h.log, "update profile", err)
		return
	}
	var p profiles.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	if err := h.profiles.Save(&p); err != nil {
		respondError(w, h.log, "update profile", err)
		return
	}
	if err := h.mgr.ApplyProfileUpdate(r.Context(), p); err != nil {
		respondError(w, h.log, "apply profile update", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProfile handles DELETE /profiles/{id}. The active profile cannot
// be deleted; switch away first.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if cur := h.mgr.Current(); cur != nil && cur.Profile().ID == id {
		writeJSON(w, http.StatusConflict, errorBody("cannot delete the active profile"))
		return
	}
	if err := h.profiles.Delete(id); err != nil {
		respondError(w, h.log, "delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateProfile handles POST /profiles/{id}/activate.
func (h *Handler) ActivateProfile(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Switch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.log, "activate profile", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Profile())
}

// SuggestTags handles POST /ai/tags.
func (h *Handler) SuggestTags(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("tag suggestions are disabled"))
		return
	}
	s, ok := h.sess(w)
	if !ok {
		return
	}
	var req SuggestTagsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := req.Content
	if req.NoteID != "" {
		n, found := s.Note(req.NoteID)
		if !found {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		content = n.Frontmatter.Title + "\n\n" + n.Content
	}
	if strings.TrimSpace(content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note_id or content is required"))
		return
	}
	counts := s.Tags()
	vocab := make([]string, 0, len(counts))
	for _, t := range counts {
		vocab = append(vocab, t.Name)
	}
	tags, err := h.ai.SuggestTags(r.Context(), content, vocab, req.Max)
	if err != nil {
		h.log.Error("suggest tags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("suggestion backend unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, SuggestTagsResponse{Tags: tags})
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// Resync handles POST /resync: a full rescan of the notes directory,
// the escape hatch when the cache is suspected stale.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sess(w)
	if !ok {
		return
	}
	if err := s.Reload(r.Context()); err != nil {
		respondError(w, h.log, "resync", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
