package usecases

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ifsync/internal/domain/entities"
)

// MockDesiredInterfaceRepository is a mock DesiredInterfaceRepository
type MockDesiredInterfaceRepository struct {
	mock.Mock
}

func (m *MockDesiredInterfaceRepository) GetPendingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error) {
	args := m.Called(ctx, nodeName)
	return args.Get(0).([]entities.DesiredInterface), args.Error(1)
}

func (m *MockDesiredInterfaceRepository) GetDeletingInterfaces(ctx context.Context, nodeName string) ([]entities.DesiredInterface, error) {
	args := m.Called(ctx, nodeName)
	return args.Get(0).([]entities.DesiredInterface), args.Error(1)
}

func (m *MockDesiredInterfaceRepository) UpdateInterfaceStatus(ctx context.Context, id int, status entities.InterfaceStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDesiredInterfaceRepository) UpdateInterfaceName(ctx context.Context, id int, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

func (m *MockDesiredInterfaceRepository) GetInterfaceByID(ctx context.Context, id int) (*entities.DesiredInterface, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DesiredInterface), args.Error(1)
}

func (m *MockDesiredInterfaceRepository) CreateInterface(ctx context.Context, iface *entities.DesiredInterface) error {
	args := m.Called(ctx, iface)
	return args.Error(0)
}

// MockInterfaceApplier is a mock InterfaceApplier
type MockInterfaceApplier struct {
	mock.Mock
}

func (m *MockInterfaceApplier) Apply(ctx context.Context, descriptor []byte) (string, error) {
	args := m.Called(ctx, string(descriptor))
	return args.String(0), args.Error(1)
}

func (m *MockInterfaceApplier) Remove(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
