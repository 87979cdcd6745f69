package lifecycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

var _ interfaces.InterfaceApplier = (*Manager)(nil)

// Apply defines the descriptor and brings its toplevel interface up inside
// a change transaction. Any failure rolls the configuration files back.
// It returns the name of the toplevel interface.
func (m *Manager) Apply(ctx context.Context, xml []byte) (string, error) {
	start := time.Now()
	name, err := m.apply(ctx, xml)
	return name, m.finish("apply", start, err)
}

func (m *Manager) apply(ctx context.Context, xml []byte) (string, error) {
	if err := m.ChangeBegin(ctx, 0); err != nil {
		return "", err
	}

	iface, err := m.Define(xml)
	if err == nil {
		err = m.IfUp(ctx, iface)
		iface.Release()
	}
	if err != nil {
		if rbErr := m.ChangeRollback(ctx, 0); rbErr != nil {
			m.logger.WithError(rbErr).Error("Failed to roll back configuration")
		}
		return "", err
	}

	if err := m.ChangeCommit(ctx, 0); err != nil {
		return "", err
	}
	return iface.Name(), nil
}

// Remove brings name down and undefines it. A name without configuration
// is already removed; a failure to bring it down is logged and ignored.
// A port or slave of another interface is refused with EINVALIDOP.
func (m *Manager) Remove(ctx context.Context, name string) error {
	start := time.Now()
	return m.finish("remove", start, m.remove(ctx, name))
}

func (m *Manager) remove(ctx context.Context, name string) error {
	if err := m.refresh(); err != nil {
		return err
	}
	_, ok, err := m.resolver.Stanza(name)
	if err != nil {
		return domainErrors.NewOtherError("failed to read configuration of "+name, err)
	}
	if !ok {
		m.logger.WithField("interface", name).Debug("Interface already removed")
		return nil
	}
	slave, err := m.resolver.IsSlave(name)
	if err != nil {
		return domainErrors.NewOtherError("failed to resolve "+name, err)
	}
	if slave {
		return domainErrors.NewInvalidOpError("interface "+name+" is a member of another interface", nil)
	}

	iface, err := m.LookupByName(name)
	if err != nil {
		return err
	}
	defer iface.Release()

	if err := m.IfDown(ctx, iface); err != nil {
		m.logger.WithFields(logrus.Fields{
			"interface": name,
			"error":     err,
		}).Warn("Failed to bring interface down, undefining anyway")
	}
	return m.Undefine(iface)
}
