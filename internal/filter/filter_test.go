package filter

import (
	"reflect"
	"testing"
)

func TestParseExpression_DefaultAnd(t *testing.T) {
	f := ParseExpression("#work #urgent")
	if f == nil {
		t.Fatal("expected filter, got nil")
	}
	if !reflect.DeepEqual(f.Tags, []string{"work", "urgent"}) {
		t.Errorf("tags = %v", f.Tags)
	}
	if !reflect.DeepEqual(f.Ops, []Operator{And}) {
		t.Errorf("ops = %v", f.Ops)
	}
}

func TestParseExpression_OrKeyword(t *testing.T) {
	for _, input := range []string{"#a OR #b", "#a or #b", "#a Or #b"} {
		f := ParseExpression(input)
		if f == nil {
			t.Fatalf("%q: expected filter", input)
		}
		if len(f.Ops) != 1 || f.Ops[0] != Or {
			t.Errorf("%q: ops = %v, want [OR]", input, f.Ops)
		}
	}
}

func TestParseExpression_OrNeedsSurroundingSpaces(t *testing.T) {
	f := ParseExpression("#a OR#b")
	if f == nil {
		t.Fatal("expected filter")
	}
	if f.Ops[0] != And {
		t.Errorf("ops = %v, want [AND] when OR is not space-delimited", f.Ops)
	}
}

func TestParseExpression_LowercasesTags(t *testing.T) {
	f := ParseExpression("#Work AND #URGENT")
	if !reflect.DeepEqual(f.Tags, []string{"work", "urgent"}) {
		t.Errorf("tags = %v", f.Tags)
	}
}

func TestParseExpression_NoTags(t *testing.T) {
	for _, input := range []string{"", "   ", "plain words only", "AND OR"} {
		if f := ParseExpression(input); f != nil {
			t.Errorf("%q: expected nil, got %+v", input, f)
		}
	}
}

func TestParseExpression_DuplicateCollapse(t *testing.T) {
	// The duplicate #a takes the AND that preceded it; #c keeps its OR.
	f := ParseExpression("#a OR #b AND #a OR #c")
	if !reflect.DeepEqual(f.Tags, []string{"a", "b", "c"}) {
		t.Errorf("tags = %v, want [a b c]", f.Tags)
	}
	if !reflect.DeepEqual(f.Ops, []Operator{Or, Or}) {
		t.Errorf("ops = %v, want [OR OR]", f.Ops)
	}
}

func TestEvaluate_LeftToRightFold(t *testing.T) {
	// "#foo AND #bar OR #baz" is "(foo AND bar) OR baz", never
	// "foo AND (bar OR baz)".
	f := ParseExpression("#foo AND #bar OR #baz")
	cases := []struct {
		tags []string
		want bool
	}{
		{[]string{"foo"}, false},
		{[]string{"bar"}, false},
		{[]string{"baz"}, true},
		{[]string{"foo", "bar"}, true},
		{[]string{"foo", "baz"}, true},
		{[]string{}, false},
	}
	for _, c := range cases {
		if got := f.Evaluate(c.tags); got != c.want {
			t.Errorf("evaluate(%v) = %v, want %v", c.tags, got, c.want)
		}
	}
}

func TestEvaluate_NoPrecedence(t *testing.T) {
	// "(a OR b) AND c": a alone fails. Precedence rules would pass it.
	f := ParseExpression("#a OR #b AND #c")
	if f.Evaluate([]string{"a"}) {
		t.Error("evaluate({a}) = true, want false under left-to-right fold")
	}
	if !f.Evaluate([]string{"a", "c"}) {
		t.Error("evaluate({a,c}) = false, want true")
	}
}

func TestEvaluate_EmptyFilterPasses(t *testing.T) {
	var nilFilter *TagFilter
	if !nilFilter.Evaluate([]string{"x"}) {
		t.Error("nil filter should pass every note")
	}
	if !(&TagFilter{}).Evaluate(nil) {
		t.Error("empty filter should pass every note")
	}
}

func TestAddRemove(t *testing.T) {
	f := &TagFilter{}
	f.Add("#work", And)
	f.Add("urgent", Or)
	f.Add("work", And) // duplicate, ignored
	if !reflect.DeepEqual(f.Tags, []string{"work", "urgent"}) {
		t.Fatalf("tags = %v", f.Tags)
	}
	if !reflect.DeepEqual(f.Ops, []Operator{Or}) {
		t.Fatalf("ops = %v", f.Ops)
	}

	f.Remove("work")
	if !reflect.DeepEqual(f.Tags, []string{"urgent"}) {
		t.Errorf("tags after remove = %v", f.Tags)
	}
	if len(f.Ops) != 0 {
		t.Errorf("ops after remove = %v", f.Ops)
	}
}

func TestRemove_MiddleTagTakesPrecedingOp(t *testing.T) {
	f := ParseExpression("#a AND #b OR #c")
	f.Remove("b")
	if !reflect.DeepEqual(f.Tags, []string{"a", "c"}) {
		t.Fatalf("tags = %v", f.Tags)
	}
	if !reflect.DeepEqual(f.Ops, []Operator{Or}) {
		t.Errorf("ops = %v, want [OR]", f.Ops)
	}
}

func TestSetOperator(t *testing.T) {
	f := ParseExpression("#a AND #b")
	f.SetOperator(0, Or)
	if !reflect.DeepEqual(f.Ops, []Operator{Or}) {
		t.Errorf("ops = %v, want [OR]", f.Ops)
	}

	f.SetOperator(5, And)
	f.SetOperator(-1, And)
	if !reflect.DeepEqual(f.Ops, []Operator{Or}) {
		t.Errorf("ops after out-of-range sets = %v", f.Ops)
	}
}

func TestString_RoundTrip(t *testing.T) {
	const expr = "#a AND #b OR #c"
	f := ParseExpression(expr)
	if got := f.String(); got != expr {
		t.Errorf("String() = %q, want %q", got, expr)
	}
	if !reflect.DeepEqual(ParseExpression(f.String()), f) {
		t.Error("parse(render(f)) differs from f")
	}
}
