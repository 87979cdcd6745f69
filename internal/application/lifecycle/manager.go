// Package lifecycle sequences define, undefine, activation and transaction
// operations over one configuration store.
package lifecycle

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/domain/services"
	"ifsync/pkg/treepath"
)

// Flags filters interface listings by live state
type Flags uint

const (
	FlagActive Flags = 1 << iota
	FlagInactive
)

// Observer is told about every finished operation
type Observer func(operation string, err error, elapsed time.Duration)

// Dependencies are the collaborators of a Manager. Observer is optional.
type Dependencies struct {
	Store      interfaces.ConfigStore
	Resolver   *services.DependencyResolver
	Rules      interfaces.RuleSet
	Codec      interfaces.ForestCodec
	Parser     interfaces.DescriptorParser
	Activator  interfaces.Activator
	Prober     interfaces.LinkProber
	Transactor interfaces.Transactor
	Aliases    interfaces.AliasRegistrar
	Naming     *services.InterfaceNamingService
	Observer   Observer
	Logger     *logrus.Logger
}

// Manager is the context every operation runs against. It owns the store
// handle for its lifetime and must not be shared between goroutines.
type Manager struct {
	store      interfaces.ConfigStore
	resolver   *services.DependencyResolver
	rules      interfaces.RuleSet
	codec      interfaces.ForestCodec
	parser     interfaces.DescriptorParser
	activator  interfaces.Activator
	prober     interfaces.LinkProber
	transactor interfaces.Transactor
	aliases    interfaces.AliasRegistrar
	naming     *services.InterfaceNamingService
	observer   Observer
	logger     *logrus.Logger

	handles map[string]*Interface
	lastErr error
	closed  bool
}

func New(deps Dependencies) *Manager {
	naming := deps.Naming
	if naming == nil {
		naming = services.NewInterfaceNamingService()
	}
	return &Manager{
		store:      deps.Store,
		resolver:   deps.Resolver,
		rules:      deps.Rules,
		codec:      deps.Codec,
		parser:     deps.Parser,
		activator:  deps.Activator,
		prober:     deps.Prober,
		transactor: deps.Transactor,
		aliases:    deps.Aliases,
		naming:     naming,
		observer:   deps.Observer,
		logger:     deps.Logger,
		handles:    map[string]*Interface{},
	}
}

// Backend names the rule set in use
func (m *Manager) Backend() string {
	return m.rules.Name()
}

// Close drops every handle still held by the manager and releases the store
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for name, h := range m.handles {
		h.manager = nil
		delete(m.handles, name)
	}
	if err := m.store.Close(); err != nil {
		return domainErrors.NewOtherError("failed to close configuration store", err)
	}
	return nil
}

// LastError returns the code, message and details of the error recorded by
// the last operation; NOERROR after a success
func (m *Manager) LastError() (domainErrors.Code, string, string) {
	if m.lastErr == nil {
		return domainErrors.CodeNoError, "", ""
	}
	var de *domainErrors.DomainError
	if errors.As(m.lastErr, &de) {
		message := de.Message
		if de.Cause != nil {
			message += ": " + de.Cause.Error()
		}
		return de.Code, message, de.Details
	}
	return domainErrors.CodeOf(m.lastErr), m.lastErr.Error(), ""
}

// finish records the outcome of an operation
func (m *Manager) finish(operation string, start time.Time, err error) error {
	err = asDomainError(err)
	m.lastErr = err
	if m.observer != nil {
		m.observer(operation, err, time.Since(start))
	}
	if err != nil {
		m.logger.WithError(err).WithField("operation", operation).Debug("Operation failed")
	}
	return err
}

func (m *Manager) refresh() error {
	if m.closed {
		return domainErrors.NewInvalidOpError("manager is closed", nil)
	}
	if err := m.store.Refresh(); err != nil {
		return domainErrors.NewOtherError("failed to load configuration", err)
	}
	return nil
}

// stanzaRoots returns the stanza of name followed by the stanzas of its
// subordinates in resolver order
func (m *Manager) stanzaRoots(name string) ([]treepath.Path, error) {
	stanza, ok, err := m.resolver.Stanza(name)
	if err != nil {
		return nil, domainErrors.NewOtherError("failed to read configuration of "+name, err)
	}
	if !ok {
		return nil, domainErrors.NewNotFoundError("interface " + name + " is not configured")
	}
	roots := []treepath.Path{stanza}

	subs, err := m.resolver.Subordinates(name)
	if err != nil {
		return nil, domainErrors.NewOtherError("failed to resolve members of "+name, err)
	}
	for _, sub := range subs {
		p, ok, err := m.resolver.Stanza(sub)
		if err != nil {
			return nil, domainErrors.NewOtherError("failed to read configuration of "+sub, err)
		}
		if ok {
			roots = append(roots, p)
		}
	}
	return roots, nil
}

func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de *domainErrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domainErrors.NewOtherError("operation failed", err)
}
