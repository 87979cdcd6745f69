package interfaces

import (
	"context"

	"ifsync/internal/domain/entities"
	"ifsync/pkg/treepath"
)

// DescriptorParser turns descriptor XML into a validated descriptor
type DescriptorParser interface {
	Parse(data []byte) (*entities.Interface, error)
}

// ForestCodec moves forests between their XML form and the store
type ForestCodec interface {
	// ToForest emits one tree per stanza root
	ToForest(store ConfigStore, roots []treepath.Path) (*entities.Forest, error)

	// ToStore writes every tree of the forest and reports the relation
	// nodes it met
	ToStore(store ConfigStore, forest *entities.Forest) ([]entities.Relation, error)
}

// RuleSet maps descriptors to forests and back for one backend
type RuleSet interface {
	// Name identifies the backend ("initscripts", "netplan")
	Name() string

	// Put maps a validated descriptor into a forest of stanza trees
	Put(desc *entities.Interface) (*entities.Forest, error)

	// Get rebuilds the descriptor of name from the forest of its stanzas
	Get(forest *entities.Forest, name string) (*entities.Interface, error)

	// Prune drops files left without any device stanza
	Prune(store ConfigStore) error
}

// Activator brings interfaces up and down
type Activator interface {
	IfUp(ctx context.Context, name string) error
	IfDown(ctx context.Context, name string) error
}

// Transactor snapshots and restores the native configuration files
type Transactor interface {
	Begin(ctx context.Context) error
	Rollback(ctx context.Context) error
	Commit(ctx context.Context) error
}

// AliasRegistrar maintains kernel module aliases for bond devices
type AliasRegistrar interface {
	Register(store ConfigStore, bond string) error
	Unregister(store ConfigStore, bond string) error
}

// InterfaceApplier applies descriptors to the host and removes them again
type InterfaceApplier interface {
	// Apply defines and activates a descriptor and returns the name of its
	// toplevel interface
	Apply(ctx context.Context, descriptor []byte) (string, error)

	// Remove deactivates and undefines an interface
	Remove(ctx context.Context, name string) error
}
