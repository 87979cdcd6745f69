package interfaces

import (
	"context"

	"ifsync/internal/domain/entities"
)

// DesiredInterfaceRepository stores the descriptors assigned to nodes
type DesiredInterfaceRepository interface {
	// GetPendingInterfaces returns records of a node waiting to be defined
	GetPendingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error)

	// GetDeletingInterfaces returns records of a node marked for removal
	GetDeletingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error)

	UpdateInterfaceStatus(ctx context.Context, id int, status entities.InterfaceStatus) error

	// UpdateInterfaceName records the canonical name assigned by define
	UpdateInterfaceName(ctx context.Context, id int, name string) error

	GetInterfaceByID(ctx context.Context, id int) (*entities.DesiredInterface, error)

	CreateInterface(ctx context.Context, iface *entities.DesiredInterface) error
}
