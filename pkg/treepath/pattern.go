package treepath

import (
	"path"
	"strconv"
	"strings"
)

// Op selects how a predicate compares a child value.
type Op int

const (
	// OpEq requires an exact value match.
	OpEq Op = iota
	// OpEqFold compares values case-insensitively.
	OpEqFold
	// OpHas only requires the child to exist.
	OpHas
)

// Self addresses the node's own value inside a predicate.
const Self = "."

// Pred filters the nodes selected by a step.
type Pred struct {
	Label string
	Value string
	Op    Op
}

// Eq matches nodes whose child label has exactly value.
func Eq(label, value string) Pred {
	return Pred{Label: label, Value: value, Op: OpEq}
}

// EqFold matches nodes whose child label equals value ignoring case.
func EqFold(label, value string) Pred {
	return Pred{Label: label, Value: value, Op: OpEqFold}
}

// Has matches nodes that have a child with label.
func Has(label string) Pred {
	return Pred{Label: label, Op: OpHas}
}

// Compare applies the predicate to a candidate value.
func (p Pred) Compare(value string) bool {
	switch p.Op {
	case OpEqFold:
		return strings.EqualFold(p.Value, value)
	case OpHas:
		return true
	default:
		return p.Value == value
	}
}

func (p Pred) String() string {
	switch p.Op {
	case OpHas:
		return p.Label
	case OpEqFold:
		return p.Label + " =~ '" + p.Value + "'"
	default:
		return p.Label + " = '" + p.Value + "'"
	}
}

// Step selects children by label glob, optional position and predicates.
type Step struct {
	Label string
	Pos   int
	Preds []Pred
}

// MatchLabel reports whether label satisfies the step's glob.
func (s Step) MatchLabel(label string) bool {
	if s.Label == "*" || s.Label == label {
		return true
	}
	ok, err := path.Match(s.Label, label)
	return err == nil && ok
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Label)
	if s.Pos > 0 {
		b.WriteString("[" + strconv.Itoa(s.Pos) + "]")
	}
	for _, p := range s.Preds {
		b.WriteString("[" + p.String() + "]")
	}
	return b.String()
}

// Pattern selects a set of nodes.
type Pattern []Step

// Match builds a pattern from label globs.
func Match(globs ...string) Pattern {
	p := make(Pattern, 0, len(globs))
	for _, g := range globs {
		p = append(p, Step{Label: g})
	}
	return p
}

// Child appends a step matching glob.
func (p Pattern) Child(glob string) Pattern {
	out := make(Pattern, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Label: glob})
}

// Where adds predicates to the last step.
func (p Pattern) Where(preds ...Pred) Pattern {
	if len(p) == 0 {
		return p
	}
	out := make(Pattern, len(p))
	copy(out, p)
	last := out[len(out)-1]
	last.Preds = append(append([]Pred(nil), last.Preds...), preds...)
	out[len(out)-1] = last
	return out
}

// Join appends another pattern.
func (p Pattern) Join(rel Pattern) Pattern {
	out := make(Pattern, 0, len(p)+len(rel))
	out = append(out, p...)
	return append(out, rel...)
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}
