package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/noteban/internal/ai"
	"github.com/starford/noteban/internal/profiles"
	"github.com/starford/noteban/internal/session"
	"github.com/starford/noteban/internal/sse"
	"github.com/starford/noteban/internal/testutil"
)

func testServer(t *testing.T, aiClient *ai.Client) (*Server, *session.Manager) {
	t.Helper()

	base := t.TempDir()
	log := testutil.TestLogger()

	ps, err := profiles.Open(base, log)
	if err != nil {
		t.Fatal(err)
	}
	broker := sse.NewBroker(time.Hour)
	t.Cleanup(broker.Close)

	mgr := session.NewManager(ps, broker, 50*time.Millisecond, log)
	if err := mgr.Start(context.Background(), filepath.Join(base, "notes")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Close)

	return New(mgr, aiClient), mgr
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are exercised directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "move_note":
		result, err = srv.moveNote(ctx, req)
	case "suggest_tags":
		result, err = srv.suggestTags(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeSummaries(t *testing.T, r *mcp.CallToolResult) []noteSummary {
	t.Helper()
	var out []noteSummary
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode summaries: %v (text %q)", err, resultText(r))
	}
	return out
}

func TestCreateAndReadNote(t *testing.T) {
	srv, mgr := testServer(t, nil)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "MCP Note",
		"content": "Written over stdio #auto",
		"tags":    "alpha, beta",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "mcp-note.md") {
		t.Errorf("create result = %q", resultText(r))
	}

	notes := mgr.Current().Notes()
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	id := notes[0].Frontmatter.ID

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	text := resultText(r)
	if !strings.Contains(text, "title: MCP Note") {
		t.Errorf("read result missing frontmatter: %q", text)
	}
	if !strings.Contains(text, "#auto") {
		t.Errorf("read result missing body: %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t, nil)

	callTool(t, srv, "create_note", map[string]interface{}{"title": "Root Note"})
	callTool(t, srv, "create_note", map[string]interface{}{"title": "Deep Note", "folder": "proj"})

	all := decodeSummaries(t, callTool(t, srv, "list_notes", map[string]interface{}{}))
	if len(all) != 2 {
		t.Fatalf("all notes = %d, want 2", len(all))
	}

	scoped := decodeSummaries(t, callTool(t, srv, "list_notes", map[string]interface{}{"folder": "proj"}))
	if len(scoped) != 1 || scoped[0].Path != "proj/deep-note.md" {
		t.Errorf("scoped = %+v", scoped)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t, nil)

	callTool(t, srv, "create_note", map[string]interface{}{"title": "Work Item", "tags": "work"})
	callTool(t, srv, "create_note", map[string]interface{}{"title": "Home Item", "tags": "home"})

	hits := decodeSummaries(t, callTool(t, srv, "search_notes", map[string]interface{}{"filter": "#work"}))
	if len(hits) != 1 || hits[0].Title != "Work Item" {
		t.Errorf("filter hits = %+v", hits)
	}

	hits = decodeSummaries(t, callTool(t, srv, "search_notes", map[string]interface{}{"query": "home"}))
	if len(hits) != 1 || hits[0].Title != "Home Item" {
		t.Errorf("query hits = %+v", hits)
	}

	r := callTool(t, srv, "search_notes", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when neither filter nor query is given")
	}
}

func TestMoveNote(t *testing.T) {
	srv, mgr := testServer(t, nil)

	callTool(t, srv, "create_note", map[string]interface{}{"title": "Wandering"})
	id := mgr.Current().Notes()[0].Frontmatter.ID

	r := callTool(t, srv, "move_note", map[string]interface{}{"id": id, "folder": "archive"})
	if got := resultText(r); got != "moved: archive/wandering.md" {
		t.Errorf("move result = %q", got)
	}

	r = callTool(t, srv, "move_note", map[string]interface{}{"id": "nope", "folder": "x"})
	if !r.IsError {
		t.Error("expected error for unknown id")
	}
}

func TestSuggestTags(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "work, planning"})
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	client := ai.New(ai.Options{BaseURL: backend.URL, RequestRateLimit: 100, RequestRateBurst: 100}, testutil.TestLogger())
	srv, mgr := testServer(t, client)

	callTool(t, srv, "create_note", map[string]interface{}{"title": "Planning", "content": "Q3 roadmap"})
	id := mgr.Current().Notes()[0].Frontmatter.ID

	r := callTool(t, srv, "suggest_tags", map[string]interface{}{"id": id})
	if got := resultText(r); got != "work, planning" {
		t.Errorf("suggestions = %q", got)
	}
}

func TestSuggestTags_Disabled(t *testing.T) {
	srv, mgr := testServer(t, nil)

	callTool(t, srv, "create_note", map[string]interface{}{"title": "Lonely"})
	id := mgr.Current().Notes()[0].Frontmatter.ID

	r := callTool(t, srv, "suggest_tags", map[string]interface{}{"id": id})
	if !r.IsError {
		t.Error("expected error when no inference client is wired")
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, mgr := testServer(t, nil)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 16)...)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": uri, "filename": "pixel.png"})
	if r.IsError {
		t.Fatalf("upload failed: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.MarkdownImage != "![pixel.png](/attachments/pixel.png)" {
		t.Errorf("markdownImage = %q", res.MarkdownImage)
	}

	root := mgr.Current().Store().Root()
	if _, err := os.Stat(filepath.Join(root, "attachments", "pixel.png")); err != nil {
		t.Errorf("asset not on disk: %v", err)
	}

	// A second upload of the same name is refused.
	r = callTool(t, srv, "upload_asset", map[string]interface{}{"url": uri, "filename": "pixel.png"})
	if !r.IsError {
		t.Error("expected error for duplicate filename")
	}
}

func TestUploadAsset_UnsupportedType(t *testing.T) {
	srv, _ := testServer(t, nil)

	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))
	r := callTool(t, srv, "upload_asset", map[string]interface{}{"url": uri})
	if !r.IsError {
		t.Error("expected error for unsupported MIME type")
	}
}

func TestGetNoteContract(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "get_note_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "frontmatter") || !strings.Contains(text, "column") {
		t.Errorf("contract looks wrong: %q", text[:min(len(text), 120)])
	}
}
