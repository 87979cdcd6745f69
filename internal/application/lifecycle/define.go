package lifecycle

import (
	"time"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/pkg/treepath"
)

// Define replaces the configuration of every interface named in the
// descriptor and returns a handle on its toplevel interface. A failure
// leaves the files as they were when it happened; wrap the call in a
// change transaction to be able to undo a partial save.
func (m *Manager) Define(xml []byte) (*Interface, error) {
	start := time.Now()
	name, err := m.define(xml)
	if err != nil {
		m.discardEdits()
		return nil, m.finish("define", start, err)
	}
	h := m.handle(name)
	h.mac = ""
	return h, m.finish("define", start, nil)
}

func (m *Manager) define(xml []byte) (string, error) {
	if err := m.refresh(); err != nil {
		return "", err
	}

	desc, err := m.parser.Parse(xml)
	if err != nil {
		return "", err
	}
	canonical, err := m.naming.CanonicalName(desc)
	if err != nil {
		return "", err
	}
	name := canonical.String()
	owned, err := m.naming.OwnedNames(desc)
	if err != nil {
		return "", err
	}

	// members may have been configured on their own before
	if err := m.removeStanzas(owned); err != nil {
		return "", err
	}

	forest, err := m.rules.Put(desc)
	if err != nil {
		return "", err
	}
	relations, err := m.codec.ToStore(m.store, forest)
	if err != nil {
		return "", err
	}
	for _, rel := range relations {
		m.logger.WithFields(logrus.Fields{
			"tree":     rel.Tree,
			"relation": rel.Label,
			"target":   rel.Target,
		}).Debug("Relation written")
	}
	if err := m.rules.Prune(m.store); err != nil {
		return "", domainErrors.NewOtherError("failed to prune configuration files", err)
	}

	toplevel, err := m.resolver.ListToplevel()
	if err != nil {
		return "", domainErrors.NewOtherError("failed to list interfaces", err)
	}
	if !contains(toplevel, name) {
		return "", domainErrors.NewInternalError("interface "+name+" is not a toplevel interface after define", nil)
	}

	for _, bond := range desc.Bonds() {
		if err := m.aliases.Register(m.store, bond); err != nil {
			return "", err
		}
	}

	if err := m.store.Save(); err != nil {
		return "", domainErrors.NewOtherError("failed to save configuration", err)
	}

	m.logger.WithFields(logrus.Fields{
		"interface": name,
		"owned":     owned,
		"backend":   m.rules.Name(),
	}).Info("Interface defined")
	return name, nil
}

// Undefine removes the configuration of iface and of its ports and slaves.
// An interface without a stanza is not an error.
func (m *Manager) Undefine(iface *Interface) error {
	start := time.Now()
	if err := m.owns(iface); err != nil {
		return m.finish("undefine", start, err)
	}
	err := m.undefine(iface.name)
	if err != nil {
		m.discardEdits()
	}
	return m.finish("undefine", start, err)
}

// discardEdits drops unsaved changes of a failed operation from the cached
// tree so a later Save cannot write them
func (m *Manager) discardEdits() {
	if !m.closed {
		m.store.Invalidate()
	}
}

func (m *Manager) undefine(name string) error {
	if err := m.refresh(); err != nil {
		return err
	}

	subs, err := m.resolver.Subordinates(name)
	if err != nil {
		return domainErrors.NewOtherError("failed to resolve members of "+name, err)
	}
	names := append([]string{name}, subs...)

	for _, n := range names {
		bond, err := m.resolver.IsBond(n)
		if err != nil {
			return domainErrors.NewOtherError("failed to resolve "+n, err)
		}
		if !bond {
			continue
		}
		if err := m.aliases.Unregister(m.store, n); err != nil {
			return err
		}
	}

	if err := m.removeStanzas(names); err != nil {
		return err
	}
	if err := m.rules.Prune(m.store); err != nil {
		return domainErrors.NewOtherError("failed to prune configuration files", err)
	}
	if err := m.store.Save(); err != nil {
		return domainErrors.NewOtherError("failed to save configuration", err)
	}

	m.logger.WithFields(logrus.Fields{
		"interface": name,
		"members":   subs,
	}).Info("Interface undefined")
	return nil
}

// removeStanzas drops every stanza of names, duplicates included. Paths are
// collected first and removed last to first so positions stay valid.
func (m *Manager) removeStanzas(names []string) error {
	var paths []treepath.Path
	for _, n := range names {
		stanzas, err := m.resolver.Stanzas(n)
		if err != nil {
			return domainErrors.NewOtherError("failed to read configuration of "+n, err)
		}
		paths = append(paths, stanzas...)
	}
	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		if _, err := m.store.Remove(p.Pattern()); err != nil {
			return domainErrors.NewOtherError("failed to remove "+p.String(), err)
		}
	}
	if len(paths) > 0 {
		m.logger.WithFields(logrus.Fields{
			"interfaces": names,
			"stanzas":    len(paths),
		}).Debug("Removed stanzas")
	}
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
