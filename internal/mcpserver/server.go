// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes noteban tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/noteban/internal/ai"
	"github.com/starford/noteban/internal/filter"
	"github.com/starford/noteban/internal/models"
	"github.com/starford/noteban/internal/noteservice"
	"github.com/starford/noteban/internal/session"
)

// Server wraps the MCP server with noteban tools. Tools operate on the
// active profile's session, so a profile switch changes what they see.
type Server struct {
	mcp *server.MCPServer
	mgr *session.Manager
	ai  *ai.Client
}

// New creates an MCP server with all noteban tools registered. aiClient
// may be nil, which disables the suggest_tags tool.
func New(mgr *session.Manager, aiClient *ai.Client) *Server {
	s := &Server{mgr: mgr, ai: aiClient}

	s.mcp = server.NewMCPServer(
		"Noteban",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes with their ids, paths, titles, columns, and tags."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for the whole vault)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by tag filter expression and free text. "+
			"The filter uses hashtags with AND/OR, e.g. \"#work AND #urgent\". "+
			"The query matches titles, body text, and tags. Give at least one."),
		mcp.WithString("filter", mcp.Description("Tag filter expression, e.g. \"#work OR #home\"")),
		mcp.WithString("query", mcp.Description("Free-text query")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full file of a note, frontmatter included."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by list_notes or search_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. The engine assigns the id, timestamps, and "+
			"filename; supply the human parts. Read the noteban://note-format resource "+
			"or the get_note_contract tool to understand how notes are stored."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		mcp.WithString("folder", mcp.Description("Folder relative to the vault root (empty for root)")),
		mcp.WithString("column", mcp.Description("Kanban column id (defaults to todo)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to another folder."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("folder", mcp.Description("Destination folder (empty for the vault root)")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("suggest_tags",
		mcp.WithDescription("Suggest tags for a note using the local inference server. "+
			"Prefers tags already in the vault's vocabulary."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.suggestTags)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download a file from a URL (or decode a data: URI) and store "+
			"it in the vault's attachments directory. Returns a markdownImage field ready "+
			"to paste into a note body."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data: URI")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical noteban note format. Call this before "+
			"writing note files by hand."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("noteban://note-format", "Note Format",
			mcp.WithResourceDescription("Canonical Markdown note format noteban reads and writes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// session returns the active session or a tool error result.
func (s *Server) session() (*session.Session, *mcp.CallToolResult) {
	cur := s.mgr.Current()
	if cur == nil {
		return nil, mcp.NewToolResultError("no active profile")
	}
	return cur, nil
}

type noteSummary struct {
	ID     string   `json:"id"`
	Path   string   `json:"path"`
	Title  string   `json:"title"`
	Column string   `json:"column"`
	Tags   []string `json:"tags"`
}

func summarize(cur *session.Session, notes []models.Note) []noteSummary {
	out := make([]noteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteSummary{
			ID:     n.Frontmatter.ID,
			Path:   n.FilePath,
			Title:  n.Frontmatter.Title,
			Column: n.Frontmatter.Column,
			Tags:   cur.EffectiveTags(n.Frontmatter.ID),
		})
	}
	return out
}

func summaryResult(cur *session.Session, notes []models.Note) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(summarize(cur, notes), "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = strings.Trim(f, "/")
	}

	notes := cur.Notes()
	if folder != "" {
		prefix := folder + "/"
		kept := notes[:0]
		for _, n := range notes {
			if strings.HasPrefix(n.FilePath, prefix) {
				kept = append(kept, n)
			}
		}
		notes = kept
	}
	return summaryResult(cur, notes), nil
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	expr := ""
	if v, err := req.RequireString("filter"); err == nil {
		expr = v
	}
	query := ""
	if v, err := req.RequireString("query"); err == nil {
		query = v
	}
	f := filter.ParseExpression(expr)
	if f == nil && strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("give a filter expression, a query, or both"), nil
	}
	return summaryResult(cur, cur.ListView(f, query)), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := cur.Note(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no note with id %s", id)), nil
	}
	raw, err := cur.Store().Read(n.FilePath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := noteservice.CreateInput{Title: title}
	if v, err := req.RequireString("content"); err == nil {
		in.Content = v
	}
	if v, err := req.RequireString("folder"); err == nil {
		in.Folder = v
	}
	if v, err := req.RequireString("column"); err == nil {
		in.Column = v
	}
	if v, err := req.RequireString("tags"); err == nil {
		in.Tags = splitTags(v)
	}

	n, err := cur.CreateNote(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", n.Frontmatter.ID, n.FilePath)), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := ""
	if v, err := req.RequireString("folder"); err == nil {
		folder = v
	}
	n, err := cur.MoveNote(ctx, id, folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s", n.FilePath)), nil
}

func (s *Server) suggestTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.ai == nil {
		return mcp.NewToolResultError("tag suggestions are disabled"), nil
	}
	cur, fail := s.session()
	if fail != nil {
		return fail, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := cur.Note(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no note with id %s", id)), nil
	}

	counts := cur.Tags()
	vocab := make([]string, 0, len(counts))
	for _, t := range counts {
		vocab = append(vocab, t.Name)
	}
	tags, err := s.ai.SuggestTags(ctx, n.Frontmatter.Title+"\n\n"+n.Content, vocab, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no suggestions"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, ", ")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "noteban://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
