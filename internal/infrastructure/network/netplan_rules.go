package network

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/constants"
	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/domain/services"
	"ifsync/pkg/treepath"
)

const networkLabel = "network"

var netplanSections = map[string]string{
	entities.TypeEthernet: "ethernets",
	entities.TypeBridge:   "bridges",
	entities.TypeBond:     "bonds",
	entities.TypeVLAN:     "vlans",
}

// NetplanRules maps descriptors onto netplan YAML. Each toplevel interface
// gets its own file holding the stanzas of the interface and its ports or
// slaves.
type NetplanRules struct {
	dir    treepath.Path
	logger *logrus.Logger
}

func NewNetplanRules(logger *logrus.Logger) *NetplanRules {
	return &NetplanRules{
		dir:    treepath.New(constants.FilesLabel).Join(treepath.FromFile(constants.NetplanConfigDir)),
		logger: logger,
	}
}

var _ interfaces.RuleSet = (*NetplanRules)(nil)

func (r *NetplanRules) Name() string { return BackendNetplan }

// NetplanSchema describes how netplan stanzas refer to each other
func NetplanSchema() services.RelationSchema {
	network := treepath.New(constants.FilesLabel).Join(treepath.FromFile(constants.NetplanConfigDir)).
		Pattern().Child("*.yaml").Child(networkLabel)
	return services.RelationSchema{
		Devices:     network.Child("*").Child("*"),
		Bridges:     network.Child(netplanSections[entities.TypeBridge]).Child("*"),
		Bonds:       network.Child(netplanSections[entities.TypeBond]).Child("*"),
		ParentLabel: "link",
		PortsLabel:  "interfaces",
		SlavesLabel: "interfaces",
		MACLabels:   []treepath.Path{treepath.New("macaddress"), treepath.New("match", "macaddress")},
	}
}

// FileFor returns the store path of the file written for a toplevel interface
func (r *NetplanRules) FileFor(toplevel string) treepath.Path {
	return r.dir.Child(constants.NetplanFilePrefix + toplevel + ".yaml")
}

func (r *NetplanRules) Put(desc *entities.Interface) (*entities.Forest, error) {
	top, ok := desc.CanonicalName()
	if !ok {
		return nil, domainErrors.NewInternalError("interface without name in descriptor", nil)
	}
	file := r.FileFor(top)

	forest := entities.NewForest()
	forest.AddTree(file).Set(networkLabel+"/version", "2")
	if err := r.put(forest, file, desc, "", ""); err != nil {
		return nil, err
	}
	return forest, nil
}

func (r *NetplanRules) put(forest *entities.Forest, file treepath.Path, iface *entities.Interface, relLabel, relTarget string) error {
	name, ok := iface.CanonicalName()
	if !ok {
		return domainErrors.NewInternalError("interface without name in descriptor", nil)
	}
	kind := iface.Kind()
	tree := forest.AddTree(file.Child(networkLabel).Child(netplanSections[kind]).Child(name))

	if relLabel != "" {
		tree.Set(relLabel, relTarget)
	}
	switch iface.StartMode() {
	case entities.StartNone:
		tree.Set("activation-mode", "manual")
	case entities.StartHotplug:
		tree.Set("optional", "true")
	}
	if iface.MAC != nil {
		tree.Set("macaddress", iface.MAC.Address)
	}
	if iface.MTU != nil {
		tree.Set("mtu", strconv.Itoa(iface.MTU.Size))
	}

	if v4 := iface.Protocol(entities.FamilyIPv4); v4 != nil {
		tree.Set("dhcp4", strconv.FormatBool(v4.DHCP != nil))
		if v4.DHCP != nil && v4.DHCP.PeerDNS != "" {
			tree.Set("dhcp4-overrides/use-dns", strconv.FormatBool(isYes(v4.DHCP.PeerDNS)))
		}
	}
	if v6 := iface.Protocol(entities.FamilyIPv6); v6 != nil {
		tree.Set("dhcp6", strconv.FormatBool(v6.DHCP != nil))
		tree.Set("accept-ra", strconv.FormatBool(v6.Autoconf != nil))
	}
	for _, family := range []string{entities.FamilyIPv4, entities.FamilyIPv6} {
		proto := iface.Protocol(family)
		if proto == nil {
			continue
		}
		for _, ip := range proto.IPs {
			addr := ip.Address
			if ip.Prefix > 0 {
				addr += "/" + strconv.Itoa(ip.Prefix)
			}
			tree.Array("addresses").Append(addr)
		}
	}
	for _, family := range []string{entities.FamilyIPv4, entities.FamilyIPv6} {
		if proto := iface.Protocol(family); proto != nil && proto.Route != nil {
			route := tree.Array("routes").Append("")
			route.Set("to", "default")
			route.Set("via", proto.Route.Gateway)
		}
	}

	switch kind {
	case entities.TypeBridge:
		if iface.Bridge == nil {
			return nil
		}
		switch iface.Bridge.STP {
		case "on":
			tree.Set("parameters/stp", "true")
		case "off":
			tree.Set("parameters/stp", "false")
		}
		if iface.Bridge.Delay != "" {
			tree.Set("parameters/forward-delay", iface.Bridge.Delay)
		}
		return r.putMembers(forest, file, tree, iface.Bridge.Interfaces, entities.LabelBridge, name)
	case entities.TypeBond:
		if iface.Bond == nil {
			return nil
		}
		putBondParameters(tree, iface.Bond)
		return r.putMembers(forest, file, tree, iface.Bond.Interfaces, entities.LabelMaster, name)
	case entities.TypeVLAN:
		if iface.VLAN != nil {
			tree.Set("id", strconv.Itoa(iface.VLAN.Tag))
			if iface.VLAN.Interface != nil && iface.VLAN.Interface.Name != "" {
				tree.Set(entities.LabelParent, iface.VLAN.Interface.Name)
			}
		}
	}
	return nil
}

func (r *NetplanRules) putMembers(forest *entities.Forest, file treepath.Path, tree *entities.Tree, members []*entities.Interface, relLabel, name string) error {
	for _, member := range members {
		memberName, ok := member.CanonicalName()
		if !ok {
			return domainErrors.NewInternalError("interface without name in descriptor", nil)
		}
		tree.Array("interfaces").Append(memberName)
	}
	for _, member := range members {
		if err := r.put(forest, file, member, relLabel, name); err != nil {
			return err
		}
	}
	return nil
}

func putBondParameters(tree *entities.Tree, bond *entities.Bond) {
	if bond.Mode != "" {
		tree.Set("parameters/mode", bond.Mode)
	}
	if m := bond.MIIMon; m != nil {
		tree.Set("parameters/mii-monitor-interval", strconv.Itoa(m.Freq))
		if m.UpDelay > 0 {
			tree.Set("parameters/up-delay", strconv.Itoa(m.UpDelay))
		}
		if m.DownDelay > 0 {
			tree.Set("parameters/down-delay", strconv.Itoa(m.DownDelay))
		}
	}
	if a := bond.ARPMon; a != nil {
		tree.Set("parameters/arp-interval", strconv.Itoa(a.Interval))
		if a.Validate != "" {
			tree.Set("parameters/arp-validate", a.Validate)
		}
		tree.Array("parameters/arp-ip-targets").Append(a.Target)
	}
}

func (r *NetplanRules) Get(forest *entities.Forest, name string) (*entities.Interface, error) {
	iface, err := r.get(forest, name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	dropSubordinateStart(iface)
	return iface, nil
}

func (r *NetplanRules) get(forest *entities.Forest, name string, visiting map[string]bool) (*entities.Interface, error) {
	if visiting[name] {
		return nil, domainErrors.NewInternalError(fmt.Sprintf("interface %s is its own port or slave", name), nil)
	}
	visiting[name] = true
	defer delete(visiting, name)

	tree, section := findStanza(forest, name)
	if tree == nil {
		return nil, domainErrors.NewNotFoundError("no configuration for interface " + name)
	}

	iface := &entities.Interface{Name: name, Type: entities.TypeEthernet}
	for kind, s := range netplanSections {
		if s == section {
			iface.Type = kind
		}
	}

	mode := entities.StartOnBoot
	if activation, ok := tree.Get("activation-mode"); ok && activation != "" {
		mode = entities.StartNone
	} else if optional, _ := tree.Get("optional"); isYes(optional) {
		mode = entities.StartHotplug
	}
	iface.Start = &entities.Start{Mode: mode}

	if mac, ok := tree.Get("macaddress"); ok && mac != "" {
		iface.MAC = &entities.MAC{Address: mac}
	} else if mac, ok := tree.Get("match/macaddress"); ok && mac != "" {
		iface.MAC = &entities.MAC{Address: mac}
	}
	if mtu, ok := tree.Get("mtu"); ok {
		size, err := strconv.Atoi(mtu)
		if err != nil {
			return nil, domainErrors.NewOtherError(fmt.Sprintf("invalid MTU %q for %s", mtu, name), err)
		}
		iface.MTU = &entities.MTU{Size: size}
	}

	iface.Protocols = netplanProtocols(tree)

	switch iface.Type {
	case entities.TypeBridge:
		bridge := &entities.Bridge{}
		if stp, ok := tree.Get("parameters/stp"); ok {
			bridge.STP = "off"
			if isYes(stp) {
				bridge.STP = "on"
			}
		}
		bridge.Delay, _ = tree.Get("parameters/forward-delay")
		ports, err := r.members(forest, tree, visiting)
		if err != nil {
			return nil, err
		}
		bridge.Interfaces = ports
		iface.Bridge = bridge
	case entities.TypeBond:
		bond := netplanBond(tree)
		slaves, err := r.members(forest, tree, visiting)
		if err != nil {
			return nil, err
		}
		bond.Interfaces = slaves
		iface.Bond = bond
	case entities.TypeVLAN:
		vlan := &entities.VLAN{}
		if id, ok := tree.Get("id"); ok {
			tag, err := strconv.Atoi(id)
			if err != nil {
				return nil, domainErrors.NewOtherError("invalid VLAN id of "+name, err)
			}
			vlan.Tag = tag
		}
		if parent, ok := tree.Get(entities.LabelParent); ok && parent != "" {
			vlan.Interface = &entities.Interface{Name: parent}
		}
		iface.VLAN = vlan
	}
	return iface, nil
}

// members resolves the declared interfaces list; a member without its own
// stanza in the forest is reported as a bare ethernet
func (r *NetplanRules) members(forest *entities.Forest, tree *entities.Tree, visiting map[string]bool) ([]*entities.Interface, error) {
	var names []string
	if list := tree.FindArray("interfaces"); list != nil {
		names = list.Values()
	} else if value, ok := tree.Get("interfaces"); ok {
		names = strings.FieldsFunc(value, func(c rune) bool { return c == ' ' || c == ',' })
	}
	if len(names) == 1 && names[0] == services.NoneSentinel {
		return nil, nil
	}

	var out []*entities.Interface
	for _, n := range names {
		if stanza, _ := findStanza(forest, n); stanza == nil {
			out = append(out, &entities.Interface{Name: n, Type: entities.TypeEthernet})
			continue
		}
		member, err := r.get(forest, n, visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, nil
}

func netplanProtocols(tree *entities.Tree) []*entities.Protocol {
	v4 := &entities.Protocol{Family: entities.FamilyIPv4}
	v6 := &entities.Protocol{Family: entities.FamilyIPv6}
	_, hasV4 := tree.Get("dhcp4")
	_, hasV6 := tree.Get("dhcp6")
	if _, ok := tree.Get("accept-ra"); ok {
		hasV6 = true
	}

	if dhcp, _ := tree.Get("dhcp4"); isYes(dhcp) {
		v4.DHCP = &entities.DHCP{}
		if useDNS, ok := tree.Get("dhcp4-overrides/use-dns"); ok {
			v4.DHCP.PeerDNS = yesNo(isYes(useDNS))
		}
	}
	if dhcp, _ := tree.Get("dhcp6"); isYes(dhcp) {
		v6.DHCP = &entities.DHCP{}
	}
	if ra, _ := tree.Get("accept-ra"); isYes(ra) {
		v6.Autoconf = &entities.Autoconf{}
	}

	if addresses := tree.FindArray("addresses"); addresses != nil {
		for _, a := range addresses.Values() {
			ip := &entities.IP{Address: a}
			if addr, prefix, found := strings.Cut(a, "/"); found {
				ip.Address = addr
				ip.Prefix, _ = strconv.Atoi(prefix)
			}
			if strings.Contains(ip.Address, ":") {
				v6.IPs = append(v6.IPs, ip)
				hasV6 = true
			} else {
				v4.IPs = append(v4.IPs, ip)
				hasV4 = true
			}
		}
	}
	if routes := tree.FindArray("routes"); routes != nil {
		for _, el := range routes.Elements {
			via, ok := el.Get("via")
			if !ok || via == "" {
				continue
			}
			if strings.Contains(via, ":") {
				if v6.Route == nil {
					v6.Route = &entities.Route{Gateway: via}
					hasV6 = true
				}
			} else if v4.Route == nil {
				v4.Route = &entities.Route{Gateway: via}
				hasV4 = true
			}
		}
	}

	var out []*entities.Protocol
	if hasV4 {
		out = append(out, v4)
	}
	if hasV6 {
		out = append(out, v6)
	}
	return out
}

func netplanBond(tree *entities.Tree) *entities.Bond {
	bond := &entities.Bond{}
	bond.Mode, _ = tree.Get("parameters/mode")
	if freq, ok := tree.Get("parameters/mii-monitor-interval"); ok {
		m := &entities.MIIMon{}
		m.Freq, _ = strconv.Atoi(freq)
		if up, ok := tree.Get("parameters/up-delay"); ok {
			m.UpDelay, _ = strconv.Atoi(up)
		}
		if down, ok := tree.Get("parameters/down-delay"); ok {
			m.DownDelay, _ = strconv.Atoi(down)
		}
		bond.MIIMon = m
	}
	if interval, ok := tree.Get("parameters/arp-interval"); ok {
		a := &entities.ARPMon{}
		a.Interval, _ = strconv.Atoi(interval)
		a.Validate, _ = tree.Get("parameters/arp-validate")
		if targets := tree.FindArray("parameters/arp-ip-targets"); targets != nil && len(targets.Elements) > 0 {
			a.Target = targets.Elements[0].Value
		}
		bond.ARPMon = a
	}
	return bond
}

// findStanza returns the tree anchored at network/<section>/<name> and its section
func findStanza(forest *entities.Forest, name string) (*entities.Tree, string) {
	for _, t := range forest.Trees {
		anchor, err := t.Anchor()
		if err != nil || len(anchor) < 3 {
			continue
		}
		if anchor.Label() == name && anchor[len(anchor)-3].Label == networkLabel {
			return t, anchor[len(anchor)-2].Label
		}
	}
	return nil, ""
}

// Prune drops empty sections from the files this backend writes, then the
// files left without any device stanza
func (r *NetplanRules) Prune(store interfaces.ConfigStore) error {
	files, err := store.Match(r.dir.Pattern().Child(constants.NetplanFilePrefix + "*.yaml"))
	if err != nil {
		return err
	}
	for _, file := range files {
		sections, err := store.Match(file.Pattern().Child(networkLabel).Child("*"))
		if err != nil {
			return err
		}
		devices := 0
		for _, section := range sections {
			children, err := store.Match(section.Pattern().Child("*"))
			if err != nil {
				return err
			}
			value, _, err := store.Get(section)
			if err != nil {
				return err
			}
			if len(children) == 0 && value == "" {
				if _, err := store.Remove(section.Pattern()); err != nil {
					return err
				}
				continue
			}
			devices += len(children)
		}
		if devices == 0 {
			if _, err := store.Remove(file.Pattern()); err != nil {
				return err
			}
			r.logger.WithField("file", file.String()).Debug("Removed netplan file without devices")
		}
	}
	return nil
}
