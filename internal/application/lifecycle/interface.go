package lifecycle

import (
	"context"
	"strings"

	domainErrors "ifsync/internal/domain/errors"
)

// Interface is a reference counted handle on a configured interface. The
// manager and its callers share one handle per name; it is dropped from the
// manager when the last reference is released.
type Interface struct {
	manager *Manager
	name    string
	mac     string
	refs    int
}

// Name returns the interface name
func (i *Interface) Name() string {
	return i.name
}

// Refs returns the number of references held
func (i *Interface) Refs() int {
	return i.refs
}

// Ref takes another reference
func (i *Interface) Ref() *Interface {
	i.refs++
	return i
}

// Release drops one reference and returns how many remain
func (i *Interface) Release() int {
	if i.refs == 0 {
		return 0
	}
	i.refs--
	if i.refs == 0 && i.manager != nil {
		delete(i.manager.handles, i.name)
		i.manager = nil
	}
	return i.refs
}

// MAC returns the hardware address of the live device, probed on first use
func (i *Interface) MAC(ctx context.Context) (string, error) {
	if i.mac != "" {
		return i.mac, nil
	}
	if i.manager == nil {
		return "", domainErrors.NewInvalidOpError("interface handle "+i.name+" was released", nil)
	}
	state, err := i.manager.prober.Probe(ctx, i.name)
	if err != nil {
		return "", err
	}
	i.mac = strings.ToLower(state.MAC)
	return i.mac, nil
}

// handle returns the shared handle for name with one more reference
func (m *Manager) handle(name string) *Interface {
	if h, ok := m.handles[name]; ok {
		return h.Ref()
	}
	h := &Interface{manager: m, name: name, refs: 1}
	m.handles[name] = h
	return h
}

func (m *Manager) owns(iface *Interface) error {
	if iface == nil || iface.manager != m {
		return domainErrors.NewInvalidOpError("interface handle does not belong to this manager", nil)
	}
	return nil
}
