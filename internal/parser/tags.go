package parser

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// A tag is # followed by a letter, then letters, digits, underscores,
	// or hyphens. The # must sit at the start of the text or after a
	// non-alphanumeric character, so "a#b" names no tag.
	tagRe = regexp.MustCompile(`(?:^|[^a-zA-Z0-9])#([a-zA-Z][a-zA-Z0-9_-]*)`)

	fencedRe     = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")

	validTagRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
)

// ValidTag reports whether s is a well-formed bare tag name, with no #.
func ValidTag(s string) bool {
	return validTagRe.MatchString(s)
}

// InlineTags extracts the hashtags written in markdown content. Fenced code
// blocks and inline code spans are stripped first, so a #word inside either
// is not a tag. A fence left open at end of file swallows the rest of the
// document; a lone backtick swallows nothing. The result is lowercased,
// deduplicated, and sorted.
func InlineTags(content string) []string {
	clean := fencedRe.ReplaceAllString(content, "")
	// An odd fence has no pair left after stripping: everything from it on
	// is inside a code block.
	if i := strings.Index(clean, "```"); i >= 0 {
		clean = clean[:i]
	}
	clean = inlineCodeRe.ReplaceAllString(clean, "")

	matches := tagRe.FindAllStringSubmatch(clean, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
