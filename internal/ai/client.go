// Package ai suggests tags for a note by prompting a local inference
// server. The server speaks the Ollama generate API; which model answers
// and how well is the user's business, this client only shapes the prompt
// and clamps the reply to well-formed tags.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/starford/noteban/internal/parser"
)

// DefaultSuggestions is how many tags one request may yield at most.
const DefaultSuggestions = 5

// excerptLimit bounds how much note content travels in the prompt.
const excerptLimit = 4000

// Options configures the client.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Request pacing toward the inference server.
	RequestRateLimit float64
	RequestRateBurst int
}

// Client calls the inference server. Calls are rate limited so a burst of
// suggestion requests cannot monopolize a machine that is also running the
// user's editor.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
	lim     *rate.Limiter
	log     *slog.Logger
}

// New creates a client. Zero option fields fall back to defaults suitable
// for a stock local Ollama install.
func New(opts Options, log *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://127.0.0.1:11434"
	}
	if opts.Model == "" {
		opts.Model = "llama3.2"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestRateLimit <= 0 {
		opts.RequestRateLimit = 1
	}
	if opts.RequestRateBurst <= 0 {
		opts.RequestRateBurst = 2
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		model:   opts.Model,
		lim:     rate.NewLimiter(rate.Limit(opts.RequestRateLimit), opts.RequestRateBurst),
		log:     log,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// SuggestTags asks the model for up to max tags describing content,
// steering it toward the existing vocabulary so suggestions converge on
// the tags already in use. The reply is clamped to valid tag syntax;
// anything else the model said is dropped.
func (c *Client) SuggestTags(ctx context.Context, content string, vocabulary []string, max int) ([]string, error) {
	if max <= 0 || max > 20 {
		max = DefaultSuggestions
	}
	if err := c.lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai: rate limit: %w", err)
	}

	prompt := buildPrompt(excerpt(content), vocabulary, max)
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: inference server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ai: inference server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("ai: decode response: %w", err)
	}

	tags := parseTags(gen.Response, max)
	c.log.Debug("ai: suggestion complete",
		slog.String("model", c.model),
		slog.Int("tags", len(tags)),
		slog.Duration("took", time.Since(start)))
	return tags, nil
}

func buildPrompt(content string, vocabulary []string, max int) string {
	var b strings.Builder
	b.WriteString("You label notes for a personal kanban board.\n")
	fmt.Fprintf(&b, "Reply with at most %d tags as a comma separated list and nothing else.\n", max)
	b.WriteString("A tag starts with a letter; digits, '-' and '_' may follow.\n")
	if len(vocabulary) > 0 {
		fmt.Fprintf(&b, "Prefer tags from the existing vocabulary when they fit: %s\n", strings.Join(vocabulary, ", "))
	}
	b.WriteString("\nNote:\n")
	b.WriteString(content)
	return b.String()
}

// excerpt returns the head of content, cut at a rune boundary.
func excerpt(content string) string {
	if len(content) <= excerptLimit {
		return content
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

var bulletRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// parseTags extracts well-formed tags from the model's free-form reply.
// Commas and newlines separate candidates; bullets, quotes, and a leading
// '#' are tolerated and stripped. Invalid candidates are dropped, not
// repaired.
func parseTags(reply string, max int) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, max)
	for _, f := range fields {
		t := bulletRe.ReplaceAllString(f, "")
		t = strings.Trim(t, " \t\"'`.")
		t = strings.ToLower(strings.TrimPrefix(t, "#"))
		if !parser.ValidTag(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return out
}
