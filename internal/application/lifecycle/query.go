package lifecycle

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

// NumInterfaces counts the toplevel interfaces matching flags
func (m *Manager) NumInterfaces(ctx context.Context, flags Flags) (int, error) {
	start := time.Now()
	names, err := m.listInterfaces(ctx, flags)
	return len(names), m.finish("num_interfaces", start, err)
}

// ListInterfaces returns at most max toplevel interfaces matching flags,
// sorted by name. Both flags means no filtering; no flags yields nothing.
func (m *Manager) ListInterfaces(ctx context.Context, max int, flags Flags) ([]string, error) {
	start := time.Now()
	names, err := m.listInterfaces(ctx, flags)
	if err != nil {
		return nil, m.finish("list_interfaces", start, err)
	}
	if max >= 0 && len(names) > max {
		names = names[:max]
	}
	return names, m.finish("list_interfaces", start, nil)
}

func (m *Manager) listInterfaces(ctx context.Context, flags Flags) ([]string, error) {
	if err := m.refresh(); err != nil {
		return nil, err
	}
	want := flags & (FlagActive | FlagInactive)
	if want == 0 {
		return []string{}, nil
	}

	toplevel, err := m.resolver.ListToplevel()
	if err != nil {
		return nil, domainErrors.NewOtherError("failed to list interfaces", err)
	}
	if want == FlagActive|FlagInactive {
		return toplevel, nil
	}

	names := make([]string, 0, len(toplevel))
	for _, name := range toplevel {
		active, err := m.prober.IsActive(ctx, name)
		if err != nil {
			return nil, err
		}
		if (active && want == FlagActive) || (!active && want == FlagInactive) {
			names = append(names, name)
		}
	}
	return names, nil
}

// LookupByName returns a handle for a configured toplevel interface
func (m *Manager) LookupByName(name string) (*Interface, error) {
	start := time.Now()
	if err := m.refresh(); err != nil {
		return nil, m.finish("lookup_by_name", start, err)
	}
	_, ok, err := m.resolver.Stanza(name)
	if err != nil {
		return nil, m.finish("lookup_by_name", start, domainErrors.NewOtherError("failed to read configuration of "+name, err))
	}
	if !ok {
		return nil, m.finish("lookup_by_name", start, domainErrors.NewNotFoundError("interface "+name+" is not configured"))
	}
	slave, err := m.resolver.IsSlave(name)
	if err != nil {
		return nil, m.finish("lookup_by_name", start, domainErrors.NewOtherError("failed to resolve "+name, err))
	}
	if slave {
		return nil, m.finish("lookup_by_name", start, domainErrors.NewNotFoundError("interface "+name+" is a member of another interface"))
	}
	return m.handle(name), m.finish("lookup_by_name", start, nil)
}

// LookupByMAC returns handles for the toplevel interfaces configured with
// mac, compared ignoring case. Matches beyond limit are dropped; a negative
// limit keeps them all, as max does for ListInterfaces.
func (m *Manager) LookupByMAC(mac string, limit int) ([]*Interface, error) {
	start := time.Now()
	if err := m.refresh(); err != nil {
		return nil, m.finish("lookup_by_mac", start, err)
	}
	names, err := m.resolver.NamesByMAC(mac)
	if err != nil {
		return nil, m.finish("lookup_by_mac", start, domainErrors.NewOtherError("failed to search hardware addresses", err))
	}
	slaves, err := m.resolver.AllSlaves()
	if err != nil {
		return nil, m.finish("lookup_by_mac", start, domainErrors.NewOtherError("failed to resolve members", err))
	}
	isSlave := map[string]bool{}
	for _, s := range slaves {
		isSlave[s] = true
	}

	var found []*Interface
	for _, name := range names {
		if isSlave[name] {
			continue
		}
		if limit >= 0 && len(found) >= limit {
			m.logger.WithFields(logrus.Fields{
				"mac":   mac,
				"limit": limit,
			}).Debug("Hardware address matches truncated")
			break
		}
		h := m.handle(name)
		h.mac = strings.ToLower(mac)
		found = append(found, h)
	}
	return found, m.finish("lookup_by_mac", start, nil)
}

// XMLDesc returns the persisted descriptor of iface
func (m *Manager) XMLDesc(iface *Interface) ([]byte, error) {
	start := time.Now()
	desc, err := m.describe(iface)
	if err != nil {
		return nil, m.finish("xml_desc", start, err)
	}
	out, err := desc.Marshal()
	if err != nil {
		return nil, m.finish("xml_desc", start, domainErrors.NewInternalError("failed to render descriptor", err))
	}
	return out, m.finish("xml_desc", start, nil)
}

// XMLState returns the persisted descriptor of iface with the MAC, MTU and
// addresses of the live device
func (m *Manager) XMLState(ctx context.Context, iface *Interface) ([]byte, error) {
	start := time.Now()
	desc, err := m.describe(iface)
	if err != nil {
		return nil, m.finish("xml_state", start, err)
	}
	state, err := m.prober.Probe(ctx, iface.name)
	if err != nil {
		return nil, m.finish("xml_state", start, err)
	}
	mergeLiveState(desc, state)

	out, err := desc.Marshal()
	if err != nil {
		return nil, m.finish("xml_state", start, domainErrors.NewInternalError("failed to render descriptor", err))
	}
	return out, m.finish("xml_state", start, nil)
}

// ForestXML returns the intermediate forest read for name
func (m *Manager) ForestXML(name string) ([]byte, error) {
	start := time.Now()
	forest, err := m.readForest(name)
	if err != nil {
		return nil, m.finish("forest", start, err)
	}
	out, err := forest.Marshal()
	if err != nil {
		return nil, m.finish("forest", start, domainErrors.NewInternalError("failed to render forest", err))
	}
	return out, m.finish("forest", start, nil)
}

func (m *Manager) describe(iface *Interface) (*entities.Interface, error) {
	if err := m.owns(iface); err != nil {
		return nil, err
	}
	forest, err := m.readForest(iface.name)
	if err != nil {
		return nil, err
	}
	return m.rules.Get(forest, iface.name)
}

func (m *Manager) readForest(name string) (*entities.Forest, error) {
	if err := m.refresh(); err != nil {
		return nil, err
	}
	roots, err := m.stanzaRoots(name)
	if err != nil {
		return nil, err
	}
	return m.codec.ToForest(m.store, roots)
}

// mergeLiveState overlays what the kernel reports on a persisted descriptor.
// Configured addresses of a family are replaced by the live ones; families
// only present on the device get a protocol block of their own.
func mergeLiveState(desc *entities.Interface, state *interfaces.LinkState) {
	if state.MAC != "" {
		desc.MAC = &entities.MAC{Address: strings.ToLower(state.MAC)}
	}
	if state.MTU > 0 {
		desc.MTU = &entities.MTU{Size: state.MTU}
	}

	live := map[string][]*entities.IP{}
	for _, addr := range state.Addresses {
		live[addr.Family] = append(live[addr.Family], &entities.IP{Address: addr.Address, Prefix: addr.Prefix})
	}
	for _, proto := range desc.Protocols {
		proto.IPs = live[proto.Family]
		delete(live, proto.Family)
	}
	families := make([]string, 0, len(live))
	for family := range live {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		desc.Protocols = append(desc.Protocols, &entities.Protocol{Family: family, IPs: live[family]})
	}
}
