// Package parser converts between raw note files and their structured form:
// a YAML frontmatter block plus markdown content, and the inline tags found
// in that content.
package parser

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/noteban/internal/models"
)

const delim = "---"

// Parse splits raw note text into frontmatter and content.
//
// A note opens with a frontmatter block fenced by --- lines. Files without
// one, and files whose block is not valid YAML, are still notes: Parse
// returns nil frontmatter and the whole input as content, and the caller
// synthesizes a header. Parse never fails.
//
// Content is returned with surrounding whitespace trimmed, matching what
// Serialize wrote.
func Parse(raw string) (*models.Frontmatter, string) {
	if !strings.HasPrefix(raw, delim) {
		return nil, strings.TrimSpace(raw)
	}

	// The closing fence must start a line, so a --- inside a YAML string
	// does not end the block.
	rest := raw[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		// Opening fence without a closing one.
		return nil, strings.TrimSpace(raw)
	}

	var fm models.Frontmatter
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, strings.TrimSpace(raw)
	}

	return &fm, strings.TrimSpace(rest[idx+1+len(delim):])
}

// Serialize renders a note back to its on-disk form: the YAML frontmatter
// between --- fences, a blank line, then the content.
func Serialize(fm *models.Frontmatter, content string) (string, error) {
	y, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(delim)*2 + len(y) + len(content) + 3)
	b.WriteString(delim)
	b.WriteByte('\n')
	b.Write(y)
	b.WriteString(delim)
	b.WriteString("\n\n")
	b.WriteString(content)
	return b.String(), nil
}

// DeriveTitle returns the first H1 heading in content, or "" if there is
// none. Used when synthesizing frontmatter for files that arrived without
// any.
func DeriveTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
