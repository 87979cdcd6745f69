package services

import (
	"fmt"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
)

// InterfaceNamingService derives and checks the names a descriptor defines
type InterfaceNamingService struct{}

func NewInterfaceNamingService() *InterfaceNamingService {
	return &InterfaceNamingService{}
}

// CanonicalName returns the name of the toplevel interface, synthesizing
// parent.tag for an unnamed VLAN
func (s *InterfaceNamingService) CanonicalName(desc *entities.Interface) (entities.InterfaceName, error) {
	raw, ok := desc.CanonicalName()
	if !ok {
		return entities.InterfaceName{}, domainErrors.NewInternalError("could not determine interface name", nil)
	}
	name, err := entities.NewInterfaceName(raw)
	if err != nil {
		return entities.InterfaceName{}, domainErrors.NewInternalError(fmt.Sprintf("derived interface name %q is not usable", raw), err)
	}
	return name, nil
}

// OwnedNames returns every interface the descriptor defines, without
// duplicates; the toplevel name comes first
func (s *InterfaceNamingService) OwnedNames(desc *entities.Interface) ([]string, error) {
	top, err := s.CanonicalName(desc)
	if err != nil {
		return nil, err
	}
	names := []string{top.String()}
	seen := map[string]bool{top.String(): true}
	for _, sub := range desc.Subordinates() {
		for _, n := range sub.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names, nil
}
