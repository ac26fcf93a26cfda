// Package api implements the noteban REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	ah := NewAttachmentHandler(h.mgr)

	r := chi.NewRouter()
	r.Use(RequestLogger(h.log))
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD and board.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Patch("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Post("/notes/{id}/move", h.MoveNote)
	r.Get("/board", h.Board)

	// Sticky filter state.
	r.Get("/filter", h.GetFilter)
	r.Put("/filter", h.SetFilter)

	// Folder tree.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/rename", h.RenameFolder)
	r.Delete("/folders", h.DeleteFolder)

	// Tag vocabulary.
	r.Get("/tags", h.ListTags)

	// Profiles.
	r.Get("/profiles", h.ListProfiles)
	r.Post("/profiles", h.CreateProfile)
	r.Put("/profiles/{id}", h.UpdateProfile)
	r.Delete("/profiles/{id}", h.DeleteProfile)
	r.Post("/profiles/{id}/activate", h.ActivateProfile)

	// Tag suggestions.
	r.Post("/ai/tags", h.SuggestTags)

	// Engine state.
	r.Get("/status", h.GetStatus)
	r.Post("/resync", h.Resync)

	// Attachments.
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
