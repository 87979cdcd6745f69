package container

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/application/lifecycle"
	"ifsync/internal/application/usecases"
	"ifsync/internal/domain/constants"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/domain/services"
	"ifsync/internal/infrastructure/adapters"
	"ifsync/internal/infrastructure/codec"
	"ifsync/internal/infrastructure/config"
	"ifsync/internal/infrastructure/health"
	"ifsync/internal/infrastructure/metrics"
	"ifsync/internal/infrastructure/network"
	"ifsync/internal/infrastructure/persistence"
	"ifsync/internal/infrastructure/schema"
	infraServices "ifsync/internal/infrastructure/services"
	"ifsync/internal/infrastructure/store"
	"ifsync/pkg/utils"
)

// Container wires the lifecycle manager and, for the agent, the database
// backed reconciliation around it
type Container struct {
	config *config.Config
	logger *logrus.Logger

	// adapters
	fileSystem      interfaces.FileSystem
	commandExecutor interfaces.CommandExecutor
	clock           interfaces.Clock
	osDetector      interfaces.OSDetector
	linkProber      interfaces.LinkProber

	backend *network.Backend
	manager *lifecycle.Manager

	// agent only
	healthService           *health.HealthService
	db                      *sql.DB
	repository              interfaces.DesiredInterfaceRepository
	configureNetworkUseCase *usecases.ConfigureNetworkUseCase
	deleteNetworkUseCase    *usecases.DeleteNetworkUseCase
}

// NewContainer opens the configuration store below cfg.Engine.Root and
// builds a lifecycle manager over it
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{
		config: cfg,
		logger: logger,
	}

	c.initializeInfrastructure()

	if err := c.initializeManager(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initializeInfrastructure() {
	engine := c.config.Engine

	c.fileSystem = adapters.NewRealFileSystem()
	if engine.HostNamespace {
		c.commandExecutor = adapters.NewHostNamespaceExecutor(engine.CommandTimeout, c.logger)
	} else {
		c.commandExecutor = adapters.NewRealCommandExecutor(engine.CommandTimeout, c.logger)
	}
	c.clock = adapters.NewRealClock()

	releaseFile := filepath.Join(engine.Root, constants.HostOSReleaseFile)
	if engine.HostNamespace {
		releaseFile = constants.OSReleaseFile
	}
	c.osDetector = adapters.NewRealOSDetector(c.fileSystem, releaseFile)
	c.linkProber = adapters.NewSysfsLinkProber(constants.SysClassNet, c.fileSystem, c.commandExecutor, c.logger)
}

func (c *Container) initializeManager() error {
	engine := c.config.Engine

	factory := network.NewBackendFactory(c.osDetector, c.commandExecutor, engine.CommandTimeout, c.logger)
	backend, err := factory.Create(engine.Backend)
	if err != nil {
		return err
	}
	c.backend = backend

	configStore, err := store.Open(engine.Root, backend.Includes, c.fileSystem, c.logger, store.Options{
		Debug: engine.Debug,
		Watch: engine.Watch,
	})
	if err != nil {
		return err
	}

	c.manager = lifecycle.New(lifecycle.Dependencies{
		Store:     configStore,
		Resolver:  services.NewDependencyResolver(configStore, backend.Schema, c.logger),
		Rules:     backend.Rules,
		Codec:     codec.New(backend.Schema, c.logger),
		Parser:    schema.NewValidator(c.logger),
		Activator: backend.Activator,
		Prober:    c.linkProber,
		Transactor: infraServices.NewTransactionService(
			c.fileSystem,
			c.clock,
			c.logger,
			engine.Root,
			engine.StateDir,
			backend.Globs(),
		),
		Aliases:  infraServices.NewModprobeAliasRegistrar(c.logger),
		Observer: metrics.RecordOperation,
		Logger:   c.logger,
	})

	c.logger.WithFields(logrus.Fields{
		"root":    engine.Root,
		"backend": backend.Name,
	}).Debug("Lifecycle manager ready")
	return nil
}

// InitAgent connects to the database and builds the reconciliation use
// cases. Connecting is retried with backoff.
func (c *Container) InitAgent(ctx context.Context) error {
	dbConfig := c.config.Database
	backoff := utils.Backoff{
		Attempts: c.config.Agent.MaxRetries + 1,
		Delay:    c.config.Agent.RetryDelay,
		MaxDelay: 30 * time.Second,
		Factor:   2.0,
		Notify: func(attempt int, err error, wait time.Duration) {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt":  attempt,
				"retry_in": wait.String(),
			}).Warn("Database connection failed")
		},
	}

	db, err := utils.Retry(ctx, backoff, func(ctx context.Context) (*sql.DB, error) {
		return persistence.Open(ctx, dbConfig)
	})
	metrics.SetDBConnectionStatus(err == nil)
	if err != nil {
		return err
	}
	c.db = db

	repository := persistence.NewSQLRepository(c.db, dbConfig.Driver, c.logger)
	if err := repository.EnsureSchema(ctx); err != nil {
		return err
	}
	c.repository = repository

	c.healthService = health.NewHealthService(c.clock, c.logger)
	c.healthService.SetBackend(c.backend.Name)
	c.healthService.UpdateDBHealth(true, nil)

	c.configureNetworkUseCase = usecases.NewConfigureNetworkUseCase(c.repository, c.manager, c.logger)
	c.deleteNetworkUseCase = usecases.NewDeleteNetworkUseCase(c.repository, c.manager, c.logger)
	return nil
}

func (c *Container) GetConfig() *config.Config {
	return c.config
}

func (c *Container) GetManager() *lifecycle.Manager {
	return c.manager
}

func (c *Container) GetBackend() *network.Backend {
	return c.backend
}

func (c *Container) GetHealthService() *health.HealthService {
	return c.healthService
}

func (c *Container) GetRepository() interfaces.DesiredInterfaceRepository {
	return c.repository
}

func (c *Container) GetConfigureNetworkUseCase() *usecases.ConfigureNetworkUseCase {
	return c.configureNetworkUseCase
}

func (c *Container) GetDeleteNetworkUseCase() *usecases.DeleteNetworkUseCase {
	return c.deleteNetworkUseCase
}

// Close releases the manager and the database connection
func (c *Container) Close() error {
	var firstErr error
	if c.manager != nil {
		firstErr = c.manager.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
