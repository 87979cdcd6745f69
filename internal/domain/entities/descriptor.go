package entities

import (
	"encoding/xml"
	"strconv"
)

// Interface types understood by the engine
const (
	TypeEthernet = "ethernet"
	TypeBridge   = "bridge"
	TypeBond     = "bond"
	TypeVLAN     = "vlan"
)

// Start modes
const (
	StartOnBoot  = "onboot"
	StartNone    = "none"
	StartHotplug = "hotplug"
)

// Protocol families
const (
	FamilyIPv4 = "ipv4"
	FamilyIPv6 = "ipv6"
)

// Interface is the OS-neutral interface descriptor. The same type describes
// nested bridge ports, bond slaves and VLAN parents.
// Line fields record where an element started in the source document and are
// only used for error reporting.
type Interface struct {
	XMLName   xml.Name    `xml:"interface"`
	Type      string      `xml:"type,attr,omitempty" validate:"omitempty,oneof=ethernet bridge bond vlan"`
	Name      string      `xml:"name,attr,omitempty" validate:"omitempty,ifname"`
	Start     *Start      `xml:"start,omitempty" validate:"-"`
	MTU       *MTU        `xml:"mtu,omitempty" validate:"-"`
	MAC       *MAC        `xml:"mac,omitempty" validate:"-"`
	Protocols []*Protocol `xml:"protocol,omitempty" validate:"-"`
	Bridge    *Bridge     `xml:"bridge,omitempty" validate:"-"`
	Bond      *Bond       `xml:"bond,omitempty" validate:"-"`
	VLAN      *VLAN       `xml:"vlan,omitempty" validate:"-"`
	Line      int         `xml:"-" validate:"-"`
}

type Start struct {
	Mode string `xml:"mode,attr" validate:"required,oneof=onboot none hotplug"`
	Line int    `xml:"-" validate:"-"`
}

type MTU struct {
	Size int `xml:"size,attr" validate:"required,min=68,max=65535"`
	Line int `xml:"-" validate:"-"`
}

type MAC struct {
	Address string `xml:"address,attr" validate:"required,mac"`
	Line    int    `xml:"-" validate:"-"`
}

// Protocol groups the addressing of one family
type Protocol struct {
	Family   string    `xml:"family,attr" validate:"required,oneof=ipv4 ipv6"`
	Autoconf *Autoconf `xml:"autoconf,omitempty" validate:"-"`
	DHCP     *DHCP     `xml:"dhcp,omitempty" validate:"-"`
	IPs      []*IP     `xml:"ip,omitempty" validate:"-"`
	Route    *Route    `xml:"route,omitempty" validate:"-"`
	Line     int       `xml:"-" validate:"-"`
}

type Autoconf struct{}

type DHCP struct {
	PeerDNS string `xml:"peerdns,attr,omitempty" validate:"omitempty,oneof=yes no"`
	Line    int    `xml:"-" validate:"-"`
}

type IP struct {
	Address string `xml:"address,attr" validate:"required,ip"`
	Prefix  int    `xml:"prefix,attr,omitempty" validate:"min=0,max=128"`
	Line    int    `xml:"-" validate:"-"`
}

type Route struct {
	Gateway string `xml:"gateway,attr" validate:"required,ip"`
	Line    int    `xml:"-" validate:"-"`
}

// Bridge lists the ports of a bridge in declared order
type Bridge struct {
	STP        string       `xml:"stp,attr,omitempty" validate:"omitempty,oneof=on off"`
	Delay      string       `xml:"delay,attr,omitempty" validate:"omitempty,numeric"`
	Interfaces []*Interface `xml:"interface" validate:"-"`
	Line       int          `xml:"-" validate:"-"`
}

// Bond lists the slaves of a bond together with its driver options
type Bond struct {
	Mode       string       `xml:"mode,attr,omitempty" validate:"omitempty,oneof=balance-rr active-backup balance-xor broadcast 802.3ad balance-tlb balance-alb"`
	MIIMon     *MIIMon      `xml:"miimon,omitempty" validate:"-"`
	ARPMon     *ARPMon      `xml:"arpmon,omitempty" validate:"-"`
	Interfaces []*Interface `xml:"interface" validate:"-"`
	Line       int          `xml:"-" validate:"-"`
}

type MIIMon struct {
	Freq      int    `xml:"freq,attr" validate:"min=0"`
	UpDelay   int    `xml:"updelay,attr,omitempty" validate:"min=0"`
	DownDelay int    `xml:"downdelay,attr,omitempty" validate:"min=0"`
	Carrier   string `xml:"carrier,attr,omitempty" validate:"omitempty,oneof=ioctl netif"`
	Line      int    `xml:"-" validate:"-"`
}

type ARPMon struct {
	Interval int    `xml:"interval,attr" validate:"min=0"`
	Target   string `xml:"target,attr" validate:"required,ip"`
	Validate string `xml:"validate,attr,omitempty" validate:"omitempty,oneof=none active backup all"`
	Line     int    `xml:"-" validate:"-"`
}

// VLAN carries the tag and the parent device
type VLAN struct {
	Tag       int        `xml:"tag,attr" validate:"min=0,max=4095"`
	Interface *Interface `xml:"interface" validate:"-"`
	Line      int        `xml:"-" validate:"-"`
}

// Kind returns the declared type, falling back to the type implied by the children.
func (i *Interface) Kind() string {
	switch {
	case i.Type != "":
		return i.Type
	case i.Bridge != nil:
		return TypeBridge
	case i.Bond != nil:
		return TypeBond
	case i.VLAN != nil:
		return TypeVLAN
	default:
		return TypeEthernet
	}
}

// CanonicalName returns the interface name, synthesizing parent.tag for an
// unnamed VLAN. ok is false when no name can be derived.
func (i *Interface) CanonicalName() (string, bool) {
	if i.Name != "" {
		return i.Name, true
	}
	if i.Kind() == TypeVLAN && i.VLAN != nil && i.VLAN.Interface != nil && i.VLAN.Interface.Name != "" {
		return i.VLAN.Interface.Name + "." + strconv.Itoa(i.VLAN.Tag), true
	}
	return "", false
}

// Subordinates returns bridge ports or bond slaves in declared order.
func (i *Interface) Subordinates() []*Interface {
	switch {
	case i.Bridge != nil:
		return i.Bridge.Interfaces
	case i.Bond != nil:
		return i.Bond.Interfaces
	}
	return nil
}

// Names lists every interface owned by the descriptor: the interface itself
// and, recursively, its ports and slaves. VLAN parents are not owned.
func (i *Interface) Names() []string {
	var names []string
	if name, ok := i.CanonicalName(); ok {
		names = append(names, name)
	}
	for _, sub := range i.Subordinates() {
		names = append(names, sub.Names()...)
	}
	return names
}

// Bonds lists the bond interfaces among Names.
func (i *Interface) Bonds() []string {
	var bonds []string
	if i.Kind() == TypeBond {
		if name, ok := i.CanonicalName(); ok {
			bonds = append(bonds, name)
		}
	}
	for _, sub := range i.Subordinates() {
		bonds = append(bonds, sub.Bonds()...)
	}
	return bonds
}

// Protocol returns the protocol block for family, or nil.
func (i *Interface) Protocol(family string) *Protocol {
	for _, p := range i.Protocols {
		if p.Family == family {
			return p
		}
	}
	return nil
}

// StartMode returns the start mode, defaulting to onboot.
func (i *Interface) StartMode() string {
	if i.Start == nil || i.Start.Mode == "" {
		return StartOnBoot
	}
	return i.Start.Mode
}

// Marshal renders the descriptor as indented XML.
func (i *Interface) Marshal() ([]byte, error) {
	out, err := xml.MarshalIndent(i, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// line capture: every element records the decoder position right after its start tag

func (i *Interface) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Interface
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(i), &start); err != nil {
		return err
	}
	i.Line = line
	return nil
}

func (s *Start) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Start
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(s), &start); err != nil {
		return err
	}
	s.Line = line
	return nil
}

func (m *MTU) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain MTU
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(m), &start); err != nil {
		return err
	}
	m.Line = line
	return nil
}

func (m *MAC) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain MAC
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(m), &start); err != nil {
		return err
	}
	m.Line = line
	return nil
}

func (p *Protocol) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Protocol
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(p), &start); err != nil {
		return err
	}
	p.Line = line
	return nil
}

func (h *DHCP) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain DHCP
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(h), &start); err != nil {
		return err
	}
	h.Line = line
	return nil
}

func (ip *IP) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain IP
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(ip), &start); err != nil {
		return err
	}
	ip.Line = line
	return nil
}

func (r *Route) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Route
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(r), &start); err != nil {
		return err
	}
	r.Line = line
	return nil
}

func (b *Bridge) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Bridge
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(b), &start); err != nil {
		return err
	}
	b.Line = line
	return nil
}

func (b *Bond) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Bond
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(b), &start); err != nil {
		return err
	}
	b.Line = line
	return nil
}

func (m *MIIMon) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain MIIMon
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(m), &start); err != nil {
		return err
	}
	m.Line = line
	return nil
}

func (a *ARPMon) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain ARPMon
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(a), &start); err != nil {
		return err
	}
	a.Line = line
	return nil
}

func (v *VLAN) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain VLAN
	line, _ := d.InputPos()
	if err := d.DecodeElement((*plain)(v), &start); err != nil {
		return err
	}
	v.Line = line
	return nil
}
