package query

import (
	"fmt"
	"sort"
	"strings"
)

// Span is a half-open byte range into a source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Text returns the slice of source covered by the span, clamped to the
// source bounds.
func (s Span) Text(source string) string {
	start, end := max(s.Start, 0), min(s.End, len(source))
	if start >= end {
		return ""
	}
	return source[start:end]
}

// Capture is one source node bound during a match.
type Capture struct {
	Span
	Kind string `json:"kind,omitempty"`
}

// Result is one structural match.
type Result struct {
	// Function is the enclosing function, or the matched block when the
	// match is not inside a function.
	Function Span `json:"function"`
	// FunctionName is the declared name of the enclosing function, if any.
	FunctionName string `json:"function_name,omitempty"`
	// Captures lists matched nodes in the order they were bound.
	Captures []Capture `json:"captures"`
	// Vars maps variable names to an index into Captures.
	Vars map[string]int `json:"vars,omitempty"`
}

// StartOffset returns the byte offset the match is anchored at.
func (r Result) StartOffset() int {
	return r.Function.Start
}

// Value returns the source text bound to the variable name.
func (r Result) Value(name, source string) (string, bool) {
	i, ok := r.Vars[name]
	if !ok || i < 0 || i >= len(r.Captures) {
		return "", false
	}
	return r.Captures[i].Text(source), true
}

// Variables returns the bound variable names in sorted order.
func (r Result) Variables() []string {
	names := make([]string, 0, len(r.Vars))
	for name := range r.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns the bound values ordered by variable name.
func (r Result) Values(source string) []string {
	names := r.Variables()
	values := make([]string, 0, len(names))
	for _, name := range names {
		v, _ := r.Value(name, source)
		values = append(values, v)
	}
	return values
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := Result{Function: r.Function, FunctionName: r.FunctionName}
	if r.Captures != nil {
		out.Captures = append([]Capture(nil), r.Captures...)
	}
	if r.Vars != nil {
		out.Vars = make(map[string]int, len(r.Vars))
		for k, v := range r.Vars {
			out.Vars[k] = v
		}
	}
	return out
}

// Display renders an excerpt of source around the match: the first and
// last line of the enclosing function plus before lines above and after
// lines below every capture. Skipped runs are shown as "...".
func (r Result) Display(source string, before, after int, lineNumbers bool) string {
	if source == "" {
		return ""
	}
	before, after = max(before, 0), max(after, 0)

	starts := lineStarts(source)
	first := lineOf(starts, r.Function.Start)
	last := lineOf(starts, max(r.Function.End-1, r.Function.Start))

	shown := map[int]bool{first: true, last: true}
	for _, c := range r.Captures {
		from := lineOf(starts, c.Start) - before
		to := lineOf(starts, max(c.End-1, c.Start)) + after
		for l := max(from, first); l <= min(to, last); l++ {
			shown[l] = true
		}
	}

	lines := make([]int, 0, len(shown))
	for l := range shown {
		lines = append(lines, l)
	}
	sort.Ints(lines)

	width := len(fmt.Sprint(last + 1))
	var sb strings.Builder
	prev := -1
	for _, l := range lines {
		if prev >= 0 && l > prev+1 {
			sb.WriteString("...\n")
		}
		if lineNumbers {
			fmt.Fprintf(&sb, "%*d: ", width, l+1)
		}
		sb.WriteString(lineText(source, starts, l))
		sb.WriteByte('\n')
		prev = l
	}
	return sb.String()
}

func lineStarts(source string) []int {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' && i+1 < len(source) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the zero-based line containing offset.
func lineOf(starts []int, offset int) int {
	return max(sort.SearchInts(starts, offset+1)-1, 0)
}

func lineText(source string, starts []int, line int) string {
	start := starts[line]
	end := len(source)
	if line+1 < len(starts) {
		end = starts[line+1]
	}
	return strings.TrimRight(source[start:end], "\r\n")
}

// LineColumn returns the one-based line and column of offset in source.
// Columns count bytes.
func LineColumn(source string, offset int) (line, column int) {
	offset = min(max(offset, 0), len(source))
	starts := lineStarts(source)
	l := lineOf(starts, offset)
	return l + 1, offset - starts[l] + 1
}
