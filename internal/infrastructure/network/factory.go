package network

import (
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/constants"
	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/domain/services"
	"ifsync/internal/infrastructure/store"
)

// Backend bundles everything the lifecycle manager needs for one OS family
type Backend struct {
	Name      string
	Includes  []store.Include
	Schema    services.RelationSchema
	Rules     interfaces.RuleSet
	Activator interfaces.Activator
}

// Globs lists the native file patterns the backend loads
func (b *Backend) Globs() []string {
	globs := make([]string, 0, len(b.Includes))
	for _, inc := range b.Includes {
		globs = append(globs, inc.Glob)
	}
	return globs
}

// BackendFactory selects the backend matching the host, or the one named in
// the configuration
type BackendFactory struct {
	osDetector      interfaces.OSDetector
	commandExecutor interfaces.CommandExecutor
	commandTimeout  time.Duration
	logger          *logrus.Logger
}

func NewBackendFactory(
	osDetector interfaces.OSDetector,
	executor interfaces.CommandExecutor,
	commandTimeout time.Duration,
	logger *logrus.Logger,
) *BackendFactory {
	return &BackendFactory{
		osDetector:      osDetector,
		commandExecutor: executor,
		commandTimeout:  commandTimeout,
		logger:          logger,
	}
}

// Create returns the backend called name; "auto" or empty detects the OS
func (f *BackendFactory) Create(name string) (*Backend, error) {
	if name == "" || name == BackendAuto {
		osType, err := f.osDetector.DetectOS()
		if err != nil {
			return nil, errors.NewOtherError("failed to detect OS", err)
		}
		f.logger.WithField("os_type", osType).Debug("OS type detected")

		switch osType {
		case interfaces.OSTypeUbuntu:
			name = BackendNetplan
		case interfaces.OSTypeRHEL:
			name = BackendInitscripts
		case interfaces.OSTypeSUSE:
			return nil, errors.NewOtherError("SUSE backend is not currently implemented", nil)
		default:
			return nil, errors.NewOtherError("unsupported OS type "+string(osType), nil)
		}
	}

	modprobe := store.Include{Glob: constants.ModprobeAliasFile, Lens: store.ModprobeLens}

	switch name {
	case BackendInitscripts:
		return &Backend{
			Name: BackendInitscripts,
			Includes: []store.Include{
				{Glob: path.Join(constants.RHELNetworkScriptsDir, ifcfgPrefix+"*"), Lens: store.IfcfgLens},
				modprobe,
			},
			Schema:    InitscriptsSchema(),
			Rules:     NewInitscriptsRules(f.logger),
			Activator: NewInitscriptsActivator(f.commandExecutor, f.commandTimeout, f.logger),
		}, nil
	case BackendNetplan:
		return &Backend{
			Name: BackendNetplan,
			Includes: []store.Include{
				{Glob: path.Join(constants.NetplanConfigDir, "*.yaml"), Lens: store.NetplanLens},
				modprobe,
			},
			Schema:    NetplanSchema(),
			Rules:     NewNetplanRules(f.logger),
			Activator: NewNetplanActivator(f.commandExecutor, f.commandTimeout, f.logger),
		}, nil
	}
	return nil, errors.NewOtherError("unknown backend "+name, nil)
}
