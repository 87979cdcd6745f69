package entities

import (
	"errors"
	"regexp"
	"strings"
)

// DesiredInterface is a descriptor assigned to a node, as stored by the agent's repository
type DesiredInterface struct {
	ID         int
	NodeName   string
	Name       string // interface name, filled after the first successful define
	Descriptor string // interface descriptor XML
	Status     InterfaceStatus
}

// InterfaceStatus tracks a desired interface through the agent
type InterfaceStatus int

const (
	StatusPending InterfaceStatus = iota
	StatusConfigured
	StatusFailed
	// StatusDeleting asks the agent to bring the interface down and undefine it
	StatusDeleting
	StatusRemoved
)

var statusNames = map[InterfaceStatus]string{
	StatusPending:    "pending",
	StatusConfigured: "configured",
	StatusFailed:     "failed",
	StatusDeleting:   "deleting",
	StatusRemoved:    "removed",
}

func (s InterfaceStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// InterfaceName is a validated kernel interface name
type InterfaceName struct {
	value string
}

var (
	ErrInvalidInterfaceName = errors.New("invalid interface name")
	ErrInvalidNodeName      = errors.New("invalid node name")
	ErrEmptyDescriptor      = errors.New("empty interface descriptor")
)

// kernel limit is IFNAMSIZ-1
const maxInterfaceNameLen = 15

var interfaceNamePattern = regexp.MustCompile(`^[^\s/:]+$`)

// NewInterfaceName validates name against the kernel naming rules
func NewInterfaceName(name string) (InterfaceName, error) {
	if !IsValidInterfaceName(name) {
		return InterfaceName{}, ErrInvalidInterfaceName
	}
	return InterfaceName{value: name}, nil
}

func (n InterfaceName) String() string {
	return n.value
}

// IsValidInterfaceName reports whether name can be used as a kernel interface name
func IsValidInterfaceName(name string) bool {
	if name == "" || len(name) > maxInterfaceNameLen || name == "." || name == ".." {
		return false
	}
	return interfaceNamePattern.MatchString(name)
}

// Validate checks the record before the agent acts on it
func (d *DesiredInterface) Validate() error {
	if d.NodeName == "" {
		return ErrInvalidNodeName
	}
	if strings.TrimSpace(d.Descriptor) == "" {
		return ErrEmptyDescriptor
	}
	if d.Name != "" && !IsValidInterfaceName(d.Name) {
		return ErrInvalidInterfaceName
	}
	return nil
}

func (d *DesiredInterface) IsPending() bool {
	return d.Status == StatusPending
}

func (d *DesiredInterface) IsDeleting() bool {
	return d.Status == StatusDeleting
}

func (d *DesiredInterface) MarkAsConfigured(name string) {
	d.Name = name
	d.Status = StatusConfigured
}

func (d *DesiredInterface) MarkAsFailed() {
	d.Status = StatusFailed
}

func (d *DesiredInterface) MarkAsRemoved() {
	d.Status = StatusRemoved
}
