package entities

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/pkg/treepath"
)

// Reserved node labels carrying relationships between stanzas. They are
// translated by the codec instead of being written as they are.
const (
	LabelMaster = "@master"
	LabelBridge = "@bridge"
	LabelParent = "@parent"
)

// IsRelationLabel reports whether label is one of the reserved relation labels
func IsRelationLabel(label string) bool {
	return label == LabelMaster || label == LabelBridge || label == LabelParent
}

// Relation is a reserved relation node met while writing a forest
type Relation struct {
	// Tree is the anchor of the tree carrying the relation
	Tree string
	// Label is the reserved label (@master, @bridge, @parent)
	Label string
	// StoreLabel is the backend label written for it; empty when the backend
	// records this relation on the other side
	StoreLabel string
	Target     string
}

// Forest is the intermediate form between a descriptor and the store.
// Each tree is anchored to one store path; node and array labels are
// slash separated paths relative to that anchor.
type Forest struct {
	XMLName xml.Name   `xml:"forest"`
	Trees   []*Tree    `xml:"tree"`
	Unknown []xmlStray `xml:",any"`
}

type Tree struct {
	Path    string     `xml:"path,attr"`
	Nodes   []Node     `xml:"node"`
	Arrays  []*Array   `xml:"array"`
	Unknown []xmlStray `xml:",any"`
}

type Node struct {
	Label string `xml:"label,attr"`
	Value string `xml:"value,attr"`
}

// Array is a group of repeated constructs stored below numeric labels
type Array struct {
	Label    string     `xml:"label,attr"`
	Elements []*Element `xml:"element"`
	Unknown  []xmlStray `xml:",any"`
}

// Element is one array entry: a value, nested nodes, or both
type Element struct {
	Value   string     `xml:"value,attr,omitempty"`
	Nodes   []Node     `xml:"node"`
	Unknown []xmlStray `xml:",any"`
}

type xmlStray struct {
	XMLName xml.Name
}

// NewForest returns an empty forest
func NewForest() *Forest {
	return &Forest{}
}

// AddTree appends a tree anchored at path
func (f *Forest) AddTree(path treepath.Path) *Tree {
	t := &Tree{Path: path.String()}
	f.Trees = append(f.Trees, t)
	return t
}

// Tree returns the tree anchored at path, or nil
func (f *Forest) Tree(path string) *Tree {
	for _, t := range f.Trees {
		if t.Path == path {
			return t
		}
	}
	return nil
}

// Anchor parses the tree's store path
func (t *Tree) Anchor() (treepath.Path, error) {
	return treepath.Parse(t.Path)
}

// Set appends a node
func (t *Tree) Set(label, value string) {
	t.Nodes = append(t.Nodes, Node{Label: label, Value: value})
}

// Get returns the value of the first node with label
func (t *Tree) Get(label string) (string, bool) {
	for _, n := range t.Nodes {
		if n.Label == label {
			return n.Value, true
		}
	}
	return "", false
}

// Array returns the array with label, creating it when missing
func (t *Tree) Array(label string) *Array {
	for _, a := range t.Arrays {
		if a.Label == label {
			return a
		}
	}
	a := &Array{Label: label}
	t.Arrays = append(t.Arrays, a)
	return a
}

// FindArray returns the array with label, or nil
func (t *Tree) FindArray(label string) *Array {
	for _, a := range t.Arrays {
		if a.Label == label {
			return a
		}
	}
	return nil
}

// Values returns the element values in order
func (a *Array) Values() []string {
	out := make([]string, 0, len(a.Elements))
	for _, e := range a.Elements {
		out = append(out, e.Value)
	}
	return out
}

// Append adds a value element
func (a *Array) Append(value string) *Element {
	e := &Element{Value: value}
	a.Elements = append(a.Elements, e)
	return e
}

// Get returns the value of the element's nested node with label
func (e *Element) Get(label string) (string, bool) {
	for _, n := range e.Nodes {
		if n.Label == label {
			return n.Value, true
		}
	}
	return "", false
}

// Set appends a nested node
func (e *Element) Set(label, value string) {
	e.Nodes = append(e.Nodes, Node{Label: label, Value: value})
}

// Validate checks the structural shape of the forest
func (f *Forest) Validate() error {
	if f.XMLName.Local != "" && f.XMLName.Local != "forest" {
		return shapeError("root element is <%s>, expected <forest>", f.XMLName.Local)
	}
	if len(f.Unknown) > 0 {
		return shapeError("unexpected <%s> in <forest>", f.Unknown[0].XMLName.Local)
	}
	for i, t := range f.Trees {
		if t == nil {
			return shapeError("tree %d is empty", i+1)
		}
		if len(t.Unknown) > 0 {
			return shapeError("unexpected <%s> in tree %q", t.Unknown[0].XMLName.Local, t.Path)
		}
		if strings.TrimSpace(t.Path) == "" {
			return shapeError("tree %d has no path", i+1)
		}
		if _, err := treepath.Parse(t.Path); err != nil {
			return domainErrors.NewInternalError("malformed forest", err)
		}
		if err := validateNodes(t.Path, t.Nodes); err != nil {
			return err
		}
		for _, a := range t.Arrays {
			if a == nil || a.Label == "" {
				return shapeError("array without label in tree %q", t.Path)
			}
			if len(a.Unknown) > 0 {
				return shapeError("unexpected <%s> in array %q", a.Unknown[0].XMLName.Local, a.Label)
			}
			for _, e := range a.Elements {
				if e == nil {
					return shapeError("empty element in array %q", a.Label)
				}
				if len(e.Unknown) > 0 {
					return shapeError("unexpected <%s> in element of %q", e.Unknown[0].XMLName.Local, a.Label)
				}
				if err := validateNodes(t.Path, e.Nodes); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateNodes(tree string, nodes []Node) error {
	for _, n := range nodes {
		if strings.Trim(n.Label, "/") == "" {
			return shapeError("node without label in tree %q", tree)
		}
	}
	return nil
}

func shapeError(format string, args ...interface{}) error {
	return domainErrors.NewInternalError("malformed forest", fmt.Errorf(format, args...))
}

// ParseForest decodes and validates the XML form of a forest
func ParseForest(data []byte) (*Forest, error) {
	var f Forest
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		if se, ok := err.(xml.UnmarshalError); ok {
			return nil, shapeError("%s", string(se))
		}
		return nil, domainErrors.NewInternalError("malformed forest", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal renders the forest as indented XML
func (f *Forest) Marshal() ([]byte, error) {
	out, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
