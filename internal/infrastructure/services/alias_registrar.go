package services

import (
	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/constants"
	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/pkg/treepath"
)

const (
	aliasLabel      = "alias"
	moduleNameLabel = "modulename"
	bondingModule   = "bonding"
)

// ModprobeAliasRegistrar keeps "alias <bond> bonding" lines in the modprobe
// fragment owned by ifsync so the bonding driver loads for every bond
type ModprobeAliasRegistrar struct {
	file   treepath.Path
	logger *logrus.Logger
}

var _ interfaces.AliasRegistrar = (*ModprobeAliasRegistrar)(nil)

func NewModprobeAliasRegistrar(logger *logrus.Logger) *ModprobeAliasRegistrar {
	return &ModprobeAliasRegistrar{
		file:   treepath.New(constants.FilesLabel).Join(treepath.FromFile(constants.ModprobeAliasFile)),
		logger: logger,
	}
}

// Register adds the alias unless it is already present
func (r *ModprobeAliasRegistrar) Register(store interfaces.ConfigStore, bond string) error {
	existing, err := store.Match(r.file.Pattern().Child(aliasLabel).Where(treepath.Eq(treepath.Self, bond)))
	if err != nil {
		return errors.NewOtherError("failed to read module aliases", err)
	}
	if len(existing) > 0 {
		return nil
	}

	aliases, err := store.Match(r.file.Pattern().Child(aliasLabel))
	if err != nil {
		return errors.NewOtherError("failed to read module aliases", err)
	}
	alias := r.file.At(aliasLabel, len(aliases)+1)
	if err := store.Set(alias, bond); err != nil {
		return errors.NewOtherError("failed to register alias for "+bond, err)
	}
	if err := store.Set(alias.Child(moduleNameLabel), bondingModule); err != nil {
		return errors.NewOtherError("failed to register alias for "+bond, err)
	}

	r.logger.WithField("bond", bond).Debug("Registered bonding alias")
	return nil
}

// Unregister drops every alias line naming bond
func (r *ModprobeAliasRegistrar) Unregister(store interfaces.ConfigStore, bond string) error {
	removed, err := store.Remove(r.file.Pattern().Child(aliasLabel).Where(treepath.Eq(treepath.Self, bond)))
	if err != nil {
		return errors.NewOtherError("failed to unregister alias for "+bond, err)
	}
	if removed > 0 {
		r.logger.WithField("bond", bond).Debug("Unregistered bonding alias")
	}
	return nil
}
