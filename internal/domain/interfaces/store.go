package interfaces

import "ifsync/pkg/treepath"

// ConfigStore is the path addressed tree over the native configuration files.
// Every backend exposes the same five operations; Refresh and Close manage
// the lifetime of the loaded tree.
type ConfigStore interface {
	// Match returns the concrete paths selected by pattern, in tree order
	Match(pattern treepath.Pattern) ([]treepath.Path, error)

	// Get returns the value at path; ok is false when the node does not exist
	Get(path treepath.Path) (value string, ok bool, err error)

	// Set creates the node and any missing ancestors, then assigns value
	Set(path treepath.Path, value string) error

	// Remove deletes every node selected by pattern together with its subtree
	Remove(pattern treepath.Pattern) (int, error)

	// Save writes the changed files back
	Save() error

	// Refresh reloads the tree when the file allow-list or the files changed
	Refresh() error

	// Invalidate marks the tree stale after the files were changed behind its back
	Invalidate()

	Close() error
}
