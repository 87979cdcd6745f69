package services

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	"ifsync/internal/domain/interfaces"
	"ifsync/pkg/treepath"
)

// NoneSentinel in a declared port or slave list means "no members"
const NoneSentinel = "none"

// RelationSchema tells the resolver where a backend keeps device stanzas and
// how stanzas refer to each other. Labels are relative to a stanza.
type RelationSchema struct {
	// Devices selects every device stanza
	Devices treepath.Pattern
	// Ignore lists device names never reported (loopback)
	Ignore []string

	// NameLabel holds the device name; when empty or missing the stanza
	// label, stripped of NamePrefix, names the device
	NameLabel  string
	NamePrefix string

	// TypeLabel/BridgeType/BondType classify stanzas by value
	TypeLabel  string
	BridgeType string
	BondType   string
	// Bridges/Bonds classify stanzas by location
	Bridges treepath.Pattern
	Bonds   treepath.Pattern

	// reverse references from a member to its aggregate, and from a vlan to its parent
	MasterLabel string
	BridgeLabel string
	ParentLabel string

	// lists declared by the aggregate, as a delimited value or a sequence
	PortsLabel  string
	SlavesLabel string

	// MACLabels are tried in order
	MACLabels []treepath.Path
}

// StoreLabel translates a reserved relation label into the backend label
func (s RelationSchema) StoreLabel(reserved string) (string, bool) {
	var label string
	switch reserved {
	case entities.LabelMaster:
		label = s.MasterLabel
	case entities.LabelBridge:
		label = s.BridgeLabel
	case entities.LabelParent:
		label = s.ParentLabel
	}
	return label, label != ""
}

// ReservedLabel translates a backend label into its reserved relation label
func (s RelationSchema) ReservedLabel(label string) (string, bool) {
	switch {
	case label == "":
		return "", false
	case label == s.MasterLabel:
		return entities.LabelMaster, true
	case label == s.BridgeLabel:
		return entities.LabelBridge, true
	case label == s.ParentLabel:
		return entities.LabelParent, true
	}
	return "", false
}

// DependencyResolver derives bond, bridge and slave relationships from the store
type DependencyResolver struct {
	store  interfaces.ConfigStore
	schema RelationSchema
	logger *logrus.Logger
}

func NewDependencyResolver(store interfaces.ConfigStore, schema RelationSchema, logger *logrus.Logger) *DependencyResolver {
	return &DependencyResolver{
		store:  store,
		schema: schema,
		logger: logger,
	}
}

// Schema returns the relation schema in use
func (r *DependencyResolver) Schema() RelationSchema {
	return r.schema
}

type stanza struct {
	path     treepath.Path
	name     string
	master   string
	bridge   string
	parent   string
	mac      string
	isBridge bool
	isBond   bool
	ports    []string
	slaves   []string
}

// index is one consistent read of every device stanza
type index struct {
	stanzas []*stanza
	byName  map[string][]*stanza
}

func (r *DependencyResolver) load() (*index, error) {
	paths, err := r.store.Match(r.schema.Devices)
	if err != nil {
		return nil, err
	}
	bridges, err := r.pathSet(r.schema.Bridges)
	if err != nil {
		return nil, err
	}
	bonds, err := r.pathSet(r.schema.Bonds)
	if err != nil {
		return nil, err
	}

	idx := &index{byName: map[string][]*stanza{}}
	for _, p := range paths {
		st := &stanza{path: p}
		if st.name, err = r.deviceName(p); err != nil {
			return nil, err
		}
		if st.name == "" || r.ignored(st.name) {
			continue
		}
		if st.master, err = r.child(p, r.schema.MasterLabel); err != nil {
			return nil, err
		}
		if st.bridge, err = r.child(p, r.schema.BridgeLabel); err != nil {
			return nil, err
		}
		if st.parent, err = r.child(p, r.schema.ParentLabel); err != nil {
			return nil, err
		}
		for _, macPath := range r.schema.MACLabels {
			mac, ok, err := r.store.Get(p.Join(macPath))
			if err != nil {
				return nil, err
			}
			if ok && mac != "" {
				st.mac = mac
				break
			}
		}

		kind, err := r.child(p, r.schema.TypeLabel)
		if err != nil {
			return nil, err
		}
		st.isBridge = bridges[p.String()] || (r.schema.BridgeType != "" && strings.EqualFold(kind, r.schema.BridgeType))
		st.isBond = bonds[p.String()] || (r.schema.BondType != "" && strings.EqualFold(kind, r.schema.BondType))

		if st.isBridge {
			if st.ports, err = r.list(p, r.schema.PortsLabel); err != nil {
				return nil, err
			}
		}
		if st.isBond {
			if st.slaves, err = r.list(p, r.schema.SlavesLabel); err != nil {
				return nil, err
			}
		}

		idx.stanzas = append(idx.stanzas, st)
		idx.byName[st.name] = append(idx.byName[st.name], st)
	}

	for _, dups := range idx.byName {
		sort.Slice(dups, func(i, j int) bool { return dups[i].path.String() < dups[j].path.String() })
	}
	sort.SliceStable(idx.stanzas, func(i, j int) bool {
		return idx.stanzas[i].path.String() < idx.stanzas[j].path.String()
	})
	return idx, nil
}

func (r *DependencyResolver) pathSet(pattern treepath.Pattern) (map[string]bool, error) {
	set := map[string]bool{}
	if len(pattern) == 0 {
		return set, nil
	}
	paths, err := r.store.Match(pattern)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		set[p.String()] = true
	}
	return set, nil
}

func (r *DependencyResolver) ignored(name string) bool {
	for _, ign := range r.schema.Ignore {
		if ign == name {
			return true
		}
	}
	return false
}

func (r *DependencyResolver) deviceName(p treepath.Path) (string, error) {
	if r.schema.NameLabel != "" {
		name, err := r.child(p, r.schema.NameLabel)
		if err != nil || name != "" {
			return name, err
		}
	}
	return strings.TrimPrefix(p.Label(), r.schema.NamePrefix), nil
}

func (r *DependencyResolver) child(p treepath.Path, label string) (string, error) {
	if label == "" {
		return "", nil
	}
	value, _, err := r.store.Get(p.Child(label))
	return value, err
}

// list reads a declared member list, either as a delimited value or as
// numbered children
func (r *DependencyResolver) list(p treepath.Path, label string) ([]string, error) {
	if label == "" {
		return nil, nil
	}
	value, ok, err := r.store.Get(p.Child(label))
	if err != nil || !ok {
		return nil, err
	}
	var names []string
	if strings.TrimSpace(value) != "" {
		names = strings.FieldsFunc(value, func(c rune) bool {
			return c == ' ' || c == '\t' || c == ','
		})
	} else {
		items, err := r.store.Match(p.Pattern().Child(label).Child("*"))
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			v, _, err := r.store.Get(item)
			if err != nil {
				return nil, err
			}
			if v != "" {
				names = append(names, v)
			}
		}
	}
	if len(names) == 1 && names[0] == NoneSentinel {
		return nil, nil
	}
	return names, nil
}

// members merges a declared list with the stanzas referring to name, in
// declared order followed by referring stanzas in path order
func (idx *index) members(name string, declared func(*stanza) []string, ref func(*stanza) string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(n string) {
		if n != "" && n != name && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if canon := idx.canonical(name); canon != nil {
		for _, n := range declared(canon) {
			add(n)
		}
	}
	for _, st := range idx.stanzas {
		if ref(st) == name {
			add(st.name)
		}
	}
	return out
}

func (idx *index) canonical(name string) *stanza {
	if dups := idx.byName[name]; len(dups) > 0 {
		return dups[0]
	}
	return nil
}

func (idx *index) bridgePorts(name string) []string {
	return idx.members(name,
		func(st *stanza) []string { return st.ports },
		func(st *stanza) string { return st.bridge })
}

func (idx *index) bondSlaves(name string) []string {
	return idx.members(name,
		func(st *stanza) []string { return st.slaves },
		func(st *stanza) string { return st.master })
}

func (idx *index) allSlaves() map[string]bool {
	slaves := map[string]bool{}
	for _, st := range idx.stanzas {
		if st.master != "" || st.bridge != "" {
			slaves[st.name] = true
		}
		for _, n := range st.ports {
			slaves[n] = true
		}
		for _, n := range st.slaves {
			slaves[n] = true
		}
	}
	return slaves
}

func (idx *index) names() []string {
	names := make([]string, 0, len(idx.byName))
	for name := range idx.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBond reports whether name is a bond: a bond stanza or the master of some stanza
func (r *DependencyResolver) IsBond(name string) (bool, error) {
	idx, err := r.load()
	if err != nil {
		return false, err
	}
	if st := idx.canonical(name); st != nil && st.isBond {
		return true, nil
	}
	for _, st := range idx.stanzas {
		if st.master == name {
			return true, nil
		}
	}
	return false, nil
}

// IsBridge reports whether name is a bridge stanza or declares bridge ports
func (r *DependencyResolver) IsBridge(name string) (bool, error) {
	idx, err := r.load()
	if err != nil {
		return false, err
	}
	if st := idx.canonical(name); st != nil && st.isBridge {
		return true, nil
	}
	return len(idx.bridgePorts(name)) > 0, nil
}

// BridgePorts returns the ports of bridge name
func (r *DependencyResolver) BridgePorts(name string) ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	return idx.bridgePorts(name), nil
}

// BondSlaves returns the slaves of bond name
func (r *DependencyResolver) BondSlaves(name string) ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	return idx.bondSlaves(name), nil
}

// AllSlaves returns every name referenced as a bond slave or bridge port, sorted
func (r *DependencyResolver) AllSlaves() ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	return sortedKeys(idx.allSlaves()), nil
}

// IsSlave reports whether name is a bond slave or bridge port
func (r *DependencyResolver) IsSlave(name string) (bool, error) {
	idx, err := r.load()
	if err != nil {
		return false, err
	}
	return idx.allSlaves()[name], nil
}

// Devices returns the unique names of all configured devices, sorted
func (r *DependencyResolver) Devices() ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	return idx.names(), nil
}

// ListToplevel returns the configured devices that are neither bond slaves
// nor bridge ports. Slave status needs the complete device set, so the
// names are collected first and filtered afterwards.
func (r *DependencyResolver) ListToplevel() ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	names := idx.names()
	slaves := idx.allSlaves()

	toplevel := names[:0:0]
	for _, name := range names {
		if !slaves[name] {
			toplevel = append(toplevel, name)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"devices":  len(names),
		"slaves":   len(slaves),
		"toplevel": toplevel,
	}).Debug("Resolved toplevel interfaces")

	return toplevel, nil
}

// Stanza returns the canonical stanza of name: the first by path when duplicates exist
func (r *DependencyResolver) Stanza(name string) (treepath.Path, bool, error) {
	idx, err := r.load()
	if err != nil {
		return nil, false, err
	}
	st := idx.canonical(name)
	if st == nil {
		return nil, false, nil
	}
	if len(idx.byName[name]) > 1 {
		r.logger.WithFields(logrus.Fields{
			"interface":  name,
			"stanza":     st.path.String(),
			"duplicates": len(idx.byName[name]) - 1,
		}).Debug("Duplicate stanzas, using the first")
	}
	return st.path, true, nil
}

// Stanzas returns every stanza of name, canonical first
func (r *DependencyResolver) Stanzas(name string) ([]treepath.Path, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []treepath.Path
	for _, st := range idx.byName[name] {
		out = append(out, st.path)
	}
	return out, nil
}

// Parent returns the device a vlan stanza refers to
func (r *DependencyResolver) Parent(name string) (string, error) {
	idx, err := r.load()
	if err != nil {
		return "", err
	}
	if st := idx.canonical(name); st != nil {
		return st.parent, nil
	}
	return "", nil
}

// NamesByMAC returns the configured devices whose hardware address matches
// mac ignoring case, sorted
func (r *DependencyResolver) NamesByMAC(mac string) ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	found := map[string]bool{}
	for _, st := range idx.stanzas {
		if st.mac != "" && strings.EqualFold(st.mac, mac) {
			found[st.name] = true
		}
	}
	return sortedKeys(found), nil
}

// Subordinates returns the ports and slaves of name, transitively, in
// declared order
func (r *DependencyResolver) Subordinates(name string) ([]string, error) {
	idx, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{name: true}
	var visit func(string)
	visit = func(n string) {
		for _, m := range append(idx.bridgePorts(n), idx.bondSlaves(n)...) {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
			visit(m)
		}
	}
	visit(name)
	return out, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
