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

const ifcfgPrefix = "ifcfg-"

// ifcfg keys
const (
	keyDevice        = "DEVICE"
	keyType          = "TYPE"
	keyOnBoot        = "ONBOOT"
	keyHotplug       = "HOTPLUG"
	keyBootProto     = "BOOTPROTO"
	keyIPAddr        = "IPADDR"
	keyPrefix        = "PREFIX"
	keyGateway       = "GATEWAY"
	keyPeerDNS       = "PEERDNS"
	keyHWAddr        = "HWADDR"
	keyMTU           = "MTU"
	keyIPv6Init      = "IPV6INIT"
	keyIPv6Autoconf  = "IPV6_AUTOCONF"
	keyDHCPv6        = "DHCPV6C"
	keyIPv6Addr      = "IPV6ADDR"
	keyIPv6Secondary = "IPV6ADDR_SECONDARIES"
	keyIPv6Gateway   = "IPV6_DEFAULTGW"
	keySlave         = "SLAVE"
	keyVLAN          = "VLAN"
	keyVLANID        = "VLAN_ID"
	keySTP           = "STP"
	keyDelay         = "DELAY"
	keyBondingOpts   = "BONDING_OPTS"
	keyMaster        = "MASTER"
	keyBridge        = "BRIDGE"
	keyPhysDev       = "PHYSDEV"
)

var ifcfgTypes = map[string]string{
	entities.TypeEthernet: "Ethernet",
	entities.TypeBridge:   "Bridge",
	entities.TypeBond:     "Bond",
	entities.TypeVLAN:     "Vlan",
}

// InitscriptsRules maps descriptors onto ifcfg files, one file per device
type InitscriptsRules struct {
	dir    treepath.Path
	logger *logrus.Logger
}

func NewInitscriptsRules(logger *logrus.Logger) *InitscriptsRules {
	return &InitscriptsRules{
		dir:    treepath.New(constants.FilesLabel).Join(treepath.FromFile(constants.RHELNetworkScriptsDir)),
		logger: logger,
	}
}

var _ interfaces.RuleSet = (*InitscriptsRules)(nil)

func (r *InitscriptsRules) Name() string { return BackendInitscripts }

// InitscriptsSchema describes how ifcfg files refer to each other
func InitscriptsSchema() services.RelationSchema {
	dir := treepath.New(constants.FilesLabel).Join(treepath.FromFile(constants.RHELNetworkScriptsDir))
	return services.RelationSchema{
		Devices:     dir.Pattern().Child(ifcfgPrefix + "*"),
		Ignore:      []string{"lo"},
		NameLabel:   keyDevice,
		NamePrefix:  ifcfgPrefix,
		TypeLabel:   keyType,
		BridgeType:  ifcfgTypes[entities.TypeBridge],
		BondType:    ifcfgTypes[entities.TypeBond],
		MasterLabel: keyMaster,
		BridgeLabel: keyBridge,
		ParentLabel: keyPhysDev,
		MACLabels:   []treepath.Path{treepath.New(keyHWAddr)},
	}
}

// Put writes one tree per device of the descriptor
func (r *InitscriptsRules) Put(desc *entities.Interface) (*entities.Forest, error) {
	forest := entities.NewForest()
	if err := r.put(forest, desc, "", ""); err != nil {
		return nil, err
	}
	return forest, nil
}

func (r *InitscriptsRules) put(forest *entities.Forest, iface *entities.Interface, relLabel, relTarget string) error {
	name, ok := iface.CanonicalName()
	if !ok {
		return domainErrors.NewInternalError("interface without name in descriptor", nil)
	}
	tree := forest.AddTree(r.dir.Child(ifcfgPrefix + name))
	kind := iface.Kind()

	tree.Set(keyDevice, name)
	tree.Set(keyType, ifcfgTypes[kind])
	if iface.Start != nil {
		switch iface.StartMode() {
		case entities.StartOnBoot:
			tree.Set(keyOnBoot, "yes")
		case entities.StartHotplug:
			tree.Set(keyOnBoot, "no")
			tree.Set(keyHotplug, "yes")
		default:
			tree.Set(keyOnBoot, "no")
		}
	}
	if relLabel != "" {
		tree.Set(relLabel, relTarget)
		if relLabel == entities.LabelMaster {
			tree.Set(keySlave, "yes")
		}
	}
	if iface.MAC != nil {
		tree.Set(keyHWAddr, iface.MAC.Address)
	}
	if iface.MTU != nil {
		tree.Set(keyMTU, strconv.Itoa(iface.MTU.Size))
	}

	putIPv4(tree, iface.Protocol(entities.FamilyIPv4))
	putIPv6(tree, iface.Protocol(entities.FamilyIPv6))

	switch kind {
	case entities.TypeBridge:
		if iface.Bridge == nil {
			return nil
		}
		if iface.Bridge.STP != "" {
			tree.Set(keySTP, iface.Bridge.STP)
		}
		if iface.Bridge.Delay != "" {
			tree.Set(keyDelay, iface.Bridge.Delay)
		}
		for _, port := range iface.Bridge.Interfaces {
			if err := r.put(forest, port, entities.LabelBridge, name); err != nil {
				return err
			}
		}
	case entities.TypeBond:
		if iface.Bond == nil {
			return nil
		}
		if opts := bondingOpts(iface.Bond); opts != "" {
			tree.Set(keyBondingOpts, opts)
		}
		for _, slave := range iface.Bond.Interfaces {
			if err := r.put(forest, slave, entities.LabelMaster, name); err != nil {
				return err
			}
		}
	case entities.TypeVLAN:
		tree.Set(keyVLAN, "yes")
		if iface.VLAN != nil {
			tree.Set(keyVLANID, strconv.Itoa(iface.VLAN.Tag))
			if iface.VLAN.Interface != nil && iface.VLAN.Interface.Name != "" {
				tree.Set(entities.LabelParent, iface.VLAN.Interface.Name)
			}
		}
	}
	return nil
}

func putIPv4(tree *entities.Tree, proto *entities.Protocol) {
	if proto == nil {
		return
	}
	if proto.DHCP != nil {
		tree.Set(keyBootProto, "dhcp")
		if proto.DHCP.PeerDNS != "" {
			tree.Set(keyPeerDNS, proto.DHCP.PeerDNS)
		}
	} else {
		tree.Set(keyBootProto, "none")
	}
	for i, ip := range proto.IPs {
		suffix := ""
		if i > 0 {
			suffix = strconv.Itoa(i)
		}
		tree.Set(keyIPAddr+suffix, ip.Address)
		if ip.Prefix > 0 {
			tree.Set(keyPrefix+suffix, strconv.Itoa(ip.Prefix))
		}
	}
	if proto.Route != nil {
		tree.Set(keyGateway, proto.Route.Gateway)
	}
}

func putIPv6(tree *entities.Tree, proto *entities.Protocol) {
	if proto == nil {
		return
	}
	tree.Set(keyIPv6Init, "yes")
	tree.Set(keyIPv6Autoconf, yesNo(proto.Autoconf != nil))
	if proto.DHCP != nil {
		tree.Set(keyDHCPv6, "yes")
	}
	var secondaries []string
	for i, ip := range proto.IPs {
		addr := ip.Address
		if ip.Prefix > 0 {
			addr += "/" + strconv.Itoa(ip.Prefix)
		}
		if i == 0 {
			tree.Set(keyIPv6Addr, addr)
		} else {
			secondaries = append(secondaries, addr)
		}
	}
	if len(secondaries) > 0 {
		tree.Set(keyIPv6Secondary, strings.Join(secondaries, " "))
	}
	if proto.Route != nil {
		tree.Set(keyIPv6Gateway, proto.Route.Gateway)
	}
}

func bondingOpts(bond *entities.Bond) string {
	var opts []string
	if bond.Mode != "" {
		opts = append(opts, "mode="+bond.Mode)
	}
	if m := bond.MIIMon; m != nil {
		opts = append(opts, "miimon="+strconv.Itoa(m.Freq))
		if m.UpDelay > 0 {
			opts = append(opts, "updelay="+strconv.Itoa(m.UpDelay))
		}
		if m.DownDelay > 0 {
			opts = append(opts, "downdelay="+strconv.Itoa(m.DownDelay))
		}
		switch m.Carrier {
		case "ioctl":
			opts = append(opts, "use_carrier=0")
		case "netif":
			opts = append(opts, "use_carrier=1")
		}
	}
	if a := bond.ARPMon; a != nil {
		opts = append(opts, "arp_interval="+strconv.Itoa(a.Interval), "arp_ip_target="+a.Target)
		if a.Validate != "" {
			opts = append(opts, "arp_validate="+a.Validate)
		}
	}
	return strings.Join(opts, " ")
}

// Get rebuilds the descriptor of name from its tree and the trees of its
// ports and slaves
func (r *InitscriptsRules) Get(forest *entities.Forest, name string) (*entities.Interface, error) {
	iface, err := r.get(forest, name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	dropSubordinateStart(iface)
	return iface, nil
}

func (r *InitscriptsRules) get(forest *entities.Forest, name string, visiting map[string]bool) (*entities.Interface, error) {
	if visiting[name] {
		return nil, domainErrors.NewInternalError(fmt.Sprintf("interface %s is its own port or slave", name), nil)
	}
	visiting[name] = true
	defer delete(visiting, name)

	tree := r.findTree(forest, name)
	if tree == nil {
		return nil, domainErrors.NewNotFoundError("no configuration for interface " + name)
	}

	iface := &entities.Interface{Name: name, Type: ifcfgKind(tree)}

	if onboot, ok := tree.Get(keyOnBoot); ok {
		mode := entities.StartNone
		if isYes(onboot) {
			mode = entities.StartOnBoot
		} else if hotplug, _ := tree.Get(keyHotplug); isYes(hotplug) {
			mode = entities.StartHotplug
		}
		iface.Start = &entities.Start{Mode: mode}
	}
	if mac, ok := tree.Get(keyHWAddr); ok && mac != "" {
		iface.MAC = &entities.MAC{Address: mac}
	}
	if mtu, ok := tree.Get(keyMTU); ok {
		size, err := strconv.Atoi(mtu)
		if err != nil {
			return nil, domainErrors.NewOtherError(fmt.Sprintf("invalid MTU %q for %s", mtu, name), err)
		}
		iface.MTU = &entities.MTU{Size: size}
	}

	if proto := getIPv4(tree); proto != nil {
		iface.Protocols = append(iface.Protocols, proto)
	}
	if proto := getIPv6(tree); proto != nil {
		iface.Protocols = append(iface.Protocols, proto)
	}

	switch iface.Type {
	case entities.TypeBridge:
		bridge := &entities.Bridge{}
		bridge.STP, _ = tree.Get(keySTP)
		bridge.Delay, _ = tree.Get(keyDelay)
		ports, err := r.members(forest, entities.LabelBridge, name, visiting)
		if err != nil {
			return nil, err
		}
		bridge.Interfaces = ports
		iface.Bridge = bridge
	case entities.TypeBond:
		bond := parseBondingOpts(tree)
		slaves, err := r.members(forest, entities.LabelMaster, name, visiting)
		if err != nil {
			return nil, err
		}
		bond.Interfaces = slaves
		iface.Bond = bond
	case entities.TypeVLAN:
		vlan := &entities.VLAN{}
		parent, _ := tree.Get(entities.LabelParent)
		tagText, hasTag := tree.Get(keyVLANID)
		if dot := strings.LastIndexByte(name, '.'); dot > 0 {
			if parent == "" {
				parent = name[:dot]
			}
			if !hasTag {
				tagText = name[dot+1:]
			}
		}
		tag, err := strconv.Atoi(tagText)
		if err != nil {
			return nil, domainErrors.NewOtherError("cannot determine VLAN tag of "+name, err)
		}
		vlan.Tag = tag
		if parent != "" {
			vlan.Interface = &entities.Interface{Name: parent}
		}
		iface.VLAN = vlan
	}

	return iface, nil
}

func (r *InitscriptsRules) members(forest *entities.Forest, relLabel, name string, visiting map[string]bool) ([]*entities.Interface, error) {
	var out []*entities.Interface
	for _, t := range forest.Trees {
		target, ok := t.Get(relLabel)
		if !ok || target != name {
			continue
		}
		member, err := r.get(forest, treeDevice(t), visiting)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, nil
}

func (r *InitscriptsRules) findTree(forest *entities.Forest, name string) *entities.Tree {
	for _, t := range forest.Trees {
		if treeDevice(t) == name {
			return t
		}
	}
	return nil
}

// Prune has nothing to do: removing a device removes its file
func (r *InitscriptsRules) Prune(store interfaces.ConfigStore) error {
	return nil
}

func treeDevice(t *entities.Tree) string {
	if device, ok := t.Get(keyDevice); ok && device != "" {
		return device
	}
	anchor, err := t.Anchor()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(anchor.Label(), ifcfgPrefix)
}

func ifcfgKind(t *entities.Tree) string {
	if typ, ok := t.Get(keyType); ok {
		for kind, value := range ifcfgTypes {
			if strings.EqualFold(typ, value) {
				return kind
			}
		}
	}
	if vlan, _ := t.Get(keyVLAN); isYes(vlan) {
		return entities.TypeVLAN
	}
	if _, ok := t.Get(keyBondingOpts); ok {
		return entities.TypeBond
	}
	return entities.TypeEthernet
}

func getIPv4(t *entities.Tree) *entities.Protocol {
	proto := &entities.Protocol{Family: entities.FamilyIPv4}
	bootproto, hasBootproto := t.Get(keyBootProto)
	if strings.EqualFold(bootproto, "dhcp") {
		proto.DHCP = &entities.DHCP{}
		proto.DHCP.PeerDNS, _ = t.Get(keyPeerDNS)
	}
	for i := 0; ; i++ {
		suffix := ""
		if i > 0 {
			suffix = strconv.Itoa(i)
		}
		addr, ok := t.Get(keyIPAddr + suffix)
		if !ok {
			break
		}
		ip := &entities.IP{Address: addr}
		if prefix, ok := t.Get(keyPrefix + suffix); ok {
			ip.Prefix, _ = strconv.Atoi(prefix)
		}
		proto.IPs = append(proto.IPs, ip)
	}
	if gw, ok := t.Get(keyGateway); ok {
		proto.Route = &entities.Route{Gateway: gw}
	}
	if !hasBootproto && proto.DHCP == nil && len(proto.IPs) == 0 && proto.Route == nil {
		return nil
	}
	return proto
}

func getIPv6(t *entities.Tree) *entities.Protocol {
	if init, _ := t.Get(keyIPv6Init); !isYes(init) {
		return nil
	}
	proto := &entities.Protocol{Family: entities.FamilyIPv6}
	if autoconf, _ := t.Get(keyIPv6Autoconf); isYes(autoconf) {
		proto.Autoconf = &entities.Autoconf{}
	}
	if dhcp, _ := t.Get(keyDHCPv6); isYes(dhcp) {
		proto.DHCP = &entities.DHCP{}
	}
	var addrs []string
	if primary, ok := t.Get(keyIPv6Addr); ok && primary != "" {
		addrs = append(addrs, primary)
	}
	if secondaries, ok := t.Get(keyIPv6Secondary); ok {
		addrs = append(addrs, strings.Fields(secondaries)...)
	}
	for _, a := range addrs {
		ip := &entities.IP{Address: a}
		if addr, prefix, found := strings.Cut(a, "/"); found {
			ip.Address = addr
			ip.Prefix, _ = strconv.Atoi(prefix)
		}
		proto.IPs = append(proto.IPs, ip)
	}
	if gw, ok := t.Get(keyIPv6Gateway); ok {
		proto.Route = &entities.Route{Gateway: gw}
	}
	return proto
}

func parseBondingOpts(t *entities.Tree) *entities.Bond {
	bond := &entities.Bond{}
	raw, _ := t.Get(keyBondingOpts)
	opts := map[string]string{}
	for _, field := range strings.Fields(raw) {
		if key, value, ok := strings.Cut(field, "="); ok {
			opts[key] = value
		}
	}
	bond.Mode = opts["mode"]
	if freq, ok := opts["miimon"]; ok {
		m := &entities.MIIMon{}
		m.Freq, _ = strconv.Atoi(freq)
		m.UpDelay, _ = strconv.Atoi(opts["updelay"])
		m.DownDelay, _ = strconv.Atoi(opts["downdelay"])
		switch opts["use_carrier"] {
		case "0":
			m.Carrier = "ioctl"
		case "1":
			m.Carrier = "netif"
		}
		bond.MIIMon = m
	}
	if interval, ok := opts["arp_interval"]; ok {
		a := &entities.ARPMon{Target: opts["arp_ip_target"], Validate: opts["arp_validate"]}
		a.Interval, _ = strconv.Atoi(interval)
		bond.ARPMon = a
	}
	return bond
}

func isYes(v string) bool {
	switch strings.ToLower(strings.Trim(v, `"'`)) {
	case "yes", "true", "1", "on":
		return true
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
