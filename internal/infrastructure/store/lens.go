package store

// Lens converts one native file format into a subtree and back
type Lens interface {
	Name() string

	// Parse returns a file node whose children hold the file content
	Parse(data []byte) (*node, error)

	// Serialize renders a file node
	Serialize(file *node) ([]byte, error)
}

// Include binds a file glob, relative to the store root, to a lens
type Include struct {
	Glob string
	Lens Lens
}

// Available lenses
var (
	IfcfgLens    Lens = ifcfgLens{}
	NetplanLens  Lens = netplanLens{}
	ModprobeLens Lens = modprobeLens{}
)

// CommentLabel labels comment lines in line oriented formats
const CommentLabel = "#comment"
