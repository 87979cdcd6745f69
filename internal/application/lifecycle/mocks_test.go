package lifecycle

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ifsync/internal/domain/interfaces"
)

// MockActivator is a mock Activator
type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) IfUp(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockActivator) IfDown(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// names returns the interface argument of every recorded call to method
func (m *MockActivator) names(method string) []string {
	var out []string
	for _, call := range m.Calls {
		if call.Method == method {
			out = append(out, call.Arguments.String(1))
		}
	}
	return out
}

// MockLinkProber is a mock LinkProber
type MockLinkProber struct {
	mock.Mock
}

func (m *MockLinkProber) IsActive(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockLinkProber) Probe(ctx context.Context, name string) (*interfaces.LinkState, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.LinkState), args.Error(1)
}
