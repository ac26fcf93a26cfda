// Package filter implements compound tag filters: parsing user-typed
// expressions like "#work AND #urgent OR #home" and evaluating them against
// a note's tag set.
package filter

import (
	"regexp"
	"strings"
)

// Operator joins two adjacent tags in a filter.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// TagFilter is an ordered list of tags with an operator between each
// adjacent pair. Ops[i] applies between Tags[i] and Tags[i+1], so
// len(Ops) == len(Tags)-1 whenever Tags is non-empty.
type TagFilter struct {
	Tags []string   `json:"tags"`
	Ops  []Operator `json:"ops"`
}

var exprTagRe = regexp.MustCompile(`#([a-zA-Z][a-zA-Z0-9_-]*)`)

// ParseExpression turns a typed expression into a TagFilter. Tags are the
// #word tokens in order of appearance, lowercased. The operator before each
// tag after the first is Or when the literal text " OR " (any case) occurs
// between it and the previous tag, And otherwise. A repeated tag keeps its
// first occurrence; the operator immediately preceding the dropped
// duplicate goes with it. Returns nil when the input contains no tags.
func ParseExpression(input string) *TagFilter {
	locs := exprTagRe.FindAllStringSubmatchIndex(input, -1)
	if len(locs) == 0 {
		return nil
	}

	f := &TagFilter{}
	seen := make(map[string]struct{}, len(locs))
	for i, loc := range locs {
		tag := strings.ToLower(input[loc[2]:loc[3]])
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if len(f.Tags) > 0 {
			// The gap inspected is the text since the previous token,
			// dropped or not, so a removed duplicate takes exactly the
			// operator that stood before it.
			gap := input[locs[i-1][1]:loc[0]]
			f.Ops = append(f.Ops, opFromGap(gap))
		}
		f.Tags = append(f.Tags, tag)
	}
	return f
}

func opFromGap(gap string) Operator {
	if strings.Contains(strings.ToUpper(gap), " OR ") {
		return Or
	}
	return And
}

// Evaluate folds the filter over a note's tag set strictly left to right.
// There is no operator precedence: "#a AND #b OR #c" means
// "(a AND b) OR c". An empty or nil filter passes everything.
func (f *TagFilter) Evaluate(noteTags []string) bool {
	if f == nil || len(f.Tags) == 0 {
		return true
	}

	result := contains(noteTags, f.Tags[0])
	for i := 1; i < len(f.Tags); i++ {
		has := contains(noteTags, f.Tags[i])
		if f.Ops[i-1] == Or {
			result = result || has
		} else {
			result = result && has
		}
	}
	return result
}

// Add appends a tag with the given operator, ignoring tags already present.
func (f *TagFilter) Add(tag string, op Operator) {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	if tag == "" || contains(f.Tags, tag) {
		return
	}
	if len(f.Tags) > 0 {
		f.Ops = append(f.Ops, op)
	}
	f.Tags = append(f.Tags, tag)
}

// Remove deletes a tag. The operator that preceded it goes too; removing
// the first tag drops the operator that followed it instead.
func (f *TagFilter) Remove(tag string) {
	tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
	for i, t := range f.Tags {
		if t != tag {
			continue
		}
		f.Tags = append(f.Tags[:i], f.Tags[i+1:]...)
		switch {
		case len(f.Ops) == 0:
		case i == 0:
			f.Ops = f.Ops[1:]
		default:
			f.Ops = append(f.Ops[:i-1], f.Ops[i:]...)
		}
		return
	}
}

// SetOperator replaces the operator between Tags[i] and Tags[i+1]. Out of
// range indexes are ignored.
func (f *TagFilter) SetOperator(i int, op Operator) {
	if f == nil || i < 0 || i >= len(f.Ops) {
		return
	}
	f.Ops[i] = op
}

// IsEmpty reports whether the filter matches everything.
func (f *TagFilter) IsEmpty() bool {
	return f == nil || len(f.Tags) == 0
}

// String renders the filter back to expression form, "#a AND #b OR #c".
func (f *TagFilter) String() string {
	if f.IsEmpty() {
		return ""
	}
	var b strings.Builder
	for i, t := range f.Tags {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(string(f.Ops[i-1]))
			b.WriteByte(' ')
		}
		b.WriteByte('#')
		b.WriteString(t)
	}
	return b.String()
}

func contains(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
