package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
)

// IfUp brings iface up, bridge ports first in declared order, and checks
// that the kernel reports it active afterwards
func (m *Manager) IfUp(ctx context.Context, iface *Interface) error {
	start := time.Now()
	if err := m.owns(iface); err != nil {
		return m.finish("ifup", start, err)
	}
	return m.finish("ifup", start, m.ifUp(ctx, iface.name))
}

func (m *Manager) ifUp(ctx context.Context, name string) error {
	ports, err := m.ports(name)
	if err != nil {
		return err
	}
	for _, port := range ports {
		if err := m.activator.IfUp(ctx, port); err != nil {
			return err
		}
	}
	if err := m.activator.IfUp(ctx, name); err != nil {
		return err
	}

	active, err := m.prober.IsActive(ctx, name)
	if err != nil {
		return err
	}
	if !active {
		return domainErrors.NewOtherError(
			fmt.Sprintf("interface %s failed to become active - possibly disconnected cable", name), nil)
	}

	m.logger.WithFields(logrus.Fields{
		"interface": name,
		"ports":     ports,
	}).Info("Interface is up")
	return nil
}

// IfDown brings iface down before its bridge ports
func (m *Manager) IfDown(ctx context.Context, iface *Interface) error {
	start := time.Now()
	if err := m.owns(iface); err != nil {
		return m.finish("ifdown", start, err)
	}
	return m.finish("ifdown", start, m.ifDown(ctx, iface.name))
}

func (m *Manager) ifDown(ctx context.Context, name string) error {
	ports, err := m.ports(name)
	if err != nil {
		return err
	}
	if err := m.activator.IfDown(ctx, name); err != nil {
		return err
	}
	for _, port := range ports {
		if err := m.activator.IfDown(ctx, port); err != nil {
			return err
		}
	}

	m.logger.WithFields(logrus.Fields{
		"interface": name,
		"ports":     ports,
	}).Info("Interface is down")
	return nil
}

// ports returns the bridge ports of name, or nothing when it is not a bridge
func (m *Manager) ports(name string) ([]string, error) {
	if err := m.refresh(); err != nil {
		return nil, err
	}
	bridge, err := m.resolver.IsBridge(name)
	if err != nil {
		return nil, domainErrors.NewOtherError("failed to resolve "+name, err)
	}
	if !bridge {
		return nil, nil
	}
	ports, err := m.resolver.BridgePorts(name)
	if err != nil {
		return nil, domainErrors.NewOtherError("failed to resolve ports of "+name, err)
	}
	return ports, nil
}
