// Package treepath provides structured paths and match patterns for the
// hierarchical configuration store. Paths are built from owned segments
// instead of formatted strings.
package treepath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a concrete path. Pos is the 1-based position among
// siblings sharing the same label; 0 means the first one.
type Segment struct {
	Label string
	Pos   int
}

func (s Segment) position() int {
	if s.Pos <= 0 {
		return 1
	}
	return s.Pos
}

// String renders the segment, adding a position suffix only when it is not the first.
func (s Segment) String() string {
	if s.position() > 1 {
		return s.Label + "[" + strconv.Itoa(s.Pos) + "]"
	}
	return s.Label
}

// Path addresses exactly one node of the store tree.
type Path []Segment

// New builds a path from plain labels.
func New(labels ...string) Path {
	p := make(Path, 0, len(labels))
	for _, l := range labels {
		p = append(p, Segment{Label: l})
	}
	return p
}

// FromFile turns a slash separated file name below the store's file root into
// path labels, dropping empty components.
func FromFile(name string) Path {
	var labels []string
	for _, part := range strings.Split(name, "/") {
		if part != "" && part != "." {
			labels = append(labels, part)
		}
	}
	return New(labels...)
}

// Parse reads the textual form produced by String.
func Parse(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}, nil
	}
	var p Path
	for _, part := range strings.Split(s, "/") {
		seg := Segment{Label: part}
		if strings.HasPrefix(part, "[") {
			return nil, fmt.Errorf("empty label in path %q", s)
		}
		if open := strings.IndexByte(part, '['); open > 0 && strings.HasSuffix(part, "]") {
			pos, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || pos < 1 {
				return nil, fmt.Errorf("invalid position in path segment %q", part)
			}
			seg = Segment{Label: part[:open], Pos: pos}
		}
		if seg.Label == "" {
			return nil, fmt.Errorf("empty label in path %q", s)
		}
		p = append(p, seg)
	}
	return p, nil
}

// Child returns a new path extended by label.
func (p Path) Child(label string) Path {
	return p.At(label, 0)
}

// At returns a new path extended by label at a sibling position.
func (p Path) At(label string, pos int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Label: label, Pos: pos})
}

// Join appends a relative path.
func (p Path) Join(rel Path) Path {
	out := make(Path, 0, len(p)+len(rel))
	out = append(out, p...)
	return append(out, rel...)
}

// Parent drops the last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	out := make(Path, len(p)-1)
	copy(out, p[:len(p)-1])
	return out
}

// Label is the label of the last segment.
func (p Path) Label() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].Label
}

// Labels returns the segment labels without positions.
func (p Path) Labels() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Label
	}
	return out
}

// HasPrefix reports whether q is an ancestor of (or equal to) p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if !p[i].equal(q[i]) {
			return false
		}
	}
	return true
}

// TrimPrefix returns p relative to q.
func (p Path) TrimPrefix(q Path) (Path, bool) {
	if !p.HasPrefix(q) {
		return nil, false
	}
	out := make(Path, len(p)-len(q))
	copy(out, p[len(q):])
	return out, true
}

// Equal compares two paths, treating position 0 and 1 alike.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}

func (s Segment) equal(o Segment) bool {
	return s.Label == o.Label && s.position() == o.position()
}

// String renders the path as slash separated segments.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Pattern converts the path into a pattern matching exactly that node.
func (p Path) Pattern() Pattern {
	out := make(Pattern, len(p))
	for i, s := range p {
		out[i] = Step{Label: s.Label, Pos: s.position()}
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
