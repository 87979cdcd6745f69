package store

import (
	"fmt"

	"ifsync/pkg/treepath"
)

// node is one entry of the in-memory configuration tree
type node struct {
	label    string
	value    string
	parent   *node
	children []*node
}

func newNode(label, value string) *node {
	return &node{label: label, value: value}
}

func (n *node) append(child *node) *node {
	child.parent = n
	n.children = append(n.children, child)
	return child
}

// add creates a child and returns it
func (n *node) add(label, value string) *node {
	return n.append(newNode(label, value))
}

func (n *node) detach() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// nth returns the pos-th child (1-based) carrying label
func (n *node) nth(label string, pos int) *node {
	if pos <= 0 {
		pos = 1
	}
	seen := 0
	for _, c := range n.children {
		if c.label == label {
			seen++
			if seen == pos {
				return c
			}
		}
	}
	return nil
}

func (n *node) count(label string) int {
	total := 0
	for _, c := range n.children {
		if c.label == label {
			total++
		}
	}
	return total
}

// position returns the 1-based index of n among siblings with the same label
func (n *node) position() int {
	if n.parent == nil {
		return 1
	}
	pos := 0
	for _, c := range n.parent.children {
		if c.label == n.label {
			pos++
		}
		if c == n {
			return pos
		}
	}
	return pos
}

// path returns the concrete path of n relative to the tree root
func (n *node) path() treepath.Path {
	var rev []treepath.Segment
	for cur := n; cur.parent != nil; cur = cur.parent {
		seg := treepath.Segment{Label: cur.label}
		if cur.parent.count(cur.label) > 1 {
			seg.Pos = cur.position()
		}
		rev = append(rev, seg)
	}
	out := make(treepath.Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// lookup resolves a concrete path
func (n *node) lookup(p treepath.Path) *node {
	cur := n
	for _, seg := range p {
		cur = cur.nth(seg.Label, seg.Pos)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ensure resolves a concrete path, creating missing nodes. A position may
// only name an existing sibling or the one right after the last.
func (n *node) ensure(p treepath.Path) (*node, error) {
	cur := n
	for _, seg := range p {
		next := cur.nth(seg.Label, seg.Pos)
		if next == nil {
			pos := seg.Pos
			if pos <= 0 {
				pos = 1
			}
			if have := cur.count(seg.Label); pos != have+1 {
				return nil, fmt.Errorf("cannot create %s: only %d sibling(s) named %q", p, have, seg.Label)
			}
			next = cur.add(seg.Label, "")
		}
		cur = next
	}
	return cur, nil
}

// match evaluates a pattern below n and returns the selected nodes in tree order
func (n *node) match(pattern treepath.Pattern) []*node {
	current := []*node{n}
	for _, step := range pattern {
		var next []*node
		for _, parent := range current {
			positions := map[string]int{}
			for _, c := range parent.children {
				positions[c.label]++
				if !step.MatchLabel(c.label) {
					continue
				}
				if step.Pos > 0 && positions[c.label] != step.Pos {
					continue
				}
				if !c.satisfies(step.Preds) {
					continue
				}
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func (n *node) satisfies(preds []treepath.Pred) bool {
	for _, p := range preds {
		if p.Label == treepath.Self {
			if !p.Compare(n.value) {
				return false
			}
			continue
		}
		found := false
		for _, c := range n.children {
			if c.label == p.Label && p.Compare(c.value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// walk visits n and its descendants depth first
func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
