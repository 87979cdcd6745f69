package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ifsync/internal/application/polling"
	"ifsync/internal/application/usecases"
	"ifsync/internal/infrastructure/config"
	"ifsync/internal/infrastructure/container"
	"ifsync/internal/infrastructure/metrics"
	"ifsync/pkg/utils"
)

func newAgentCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Reconcile the interfaces assigned to this node in the database",
		Long: `Run as a long lived agent. Every polling cycle the agent applies the
pending descriptors assigned to the node and removes the interfaces of
records marked for deletion. Health is served as JSON on / and metrics
on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(opts.debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			appContainer, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := appContainer.Close(); err != nil {
					logger.WithError(err).Error("Failed to cleanup container")
				}
			}()

			app, err := NewApplication(ctx, appContainer, logger)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

// Application is the polling agent
type Application struct {
	container        *container.Container
	config           *config.Config
	logger           *logrus.Logger
	nodeName         string
	configureUseCase *usecases.ConfigureNetworkUseCase
	deleteUseCase    *usecases.DeleteNetworkUseCase
	healthServer     *http.Server
}

// NewApplication connects the agent to its database
func NewApplication(ctx context.Context, c *container.Container, logger *logrus.Logger) (*Application, error) {
	cfg := c.GetConfig()
	nodeName, err := utils.NodeName(cfg.Agent.NodeName)
	if err != nil {
		return nil, err
	}
	if nodeName != cfg.Agent.NodeName {
		logger.WithFields(logrus.Fields{
			"original_hostname": cfg.Agent.NodeName,
			"cleaned_hostname":  nodeName,
		}).Debug("Hostname domain suffix removed")
	}

	if err := c.InitAgent(ctx); err != nil {
		return nil, err
	}

	return &Application{
		container:        c,
		config:           cfg,
		logger:           logger,
		nodeName:         nodeName,
		configureUseCase: c.GetConfigureNetworkUseCase(),
		deleteUseCase:    c.GetDeleteNetworkUseCase(),
	}, nil
}

// Run polls until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	backend := a.container.GetBackend().Name
	metrics.SetAgentInfo(version, backend, a.nodeName)

	a.startHealthServer(a.config.Health.Port)
	defer a.shutdown()

	var strategy polling.Strategy
	if a.config.Agent.Backoff.Enabled {
		strategy = polling.NewExponentialBackoffStrategy(
			a.config.Agent.PollInterval,
			a.config.Agent.Backoff.MaxInterval,
			a.config.Agent.Backoff.Multiplier,
			a.logger,
		)
		a.logger.WithFields(logrus.Fields{
			"base_interval": a.config.Agent.PollInterval,
			"max_interval":  a.config.Agent.Backoff.MaxInterval,
			"multiplier":    a.config.Agent.Backoff.Multiplier,
		}).Info("Exponential backoff polling enabled")
	} else {
		strategy = polling.NewFixedIntervalStrategy(a.config.Agent.PollInterval)
		a.logger.WithField("interval", a.config.Agent.PollInterval).Info("Fixed interval polling enabled")
	}

	a.logger.WithFields(logrus.Fields{
		"node_name": a.nodeName,
		"backend":   backend,
		"version":   version,
	}).Info("ifsync agent started")

	err := polling.NewPollingController(strategy, a.logger).Start(ctx, a.processCycle)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("Received shutdown signal")
		return nil
	}
	return err
}

// processCycle runs one configure and delete pass and records its outcome
func (a *Application) processCycle(ctx context.Context) error {
	health := a.container.GetHealthService()
	err := a.processNetworkConfigurations(ctx)
	health.RecordCycle(err)
	if err != nil {
		health.UpdateDBHealth(false, err)
		metrics.SetDBConnectionStatus(false)
		return err
	}
	health.UpdateDBHealth(true, nil)
	metrics.SetDBConnectionStatus(true)
	return nil
}

func (a *Application) processNetworkConfigurations(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordPollingCycle(time.Since(start).Seconds()) }()

	configOutput, err := a.configureUseCase.Execute(ctx, usecases.ConfigureNetworkInput{NodeName: a.nodeName})
	if err != nil {
		return err
	}

	deleteOutput, err := a.deleteUseCase.Execute(ctx, usecases.DeleteNetworkInput{NodeName: a.nodeName})
	if err != nil {
		return err
	}

	health := a.container.GetHealthService()
	for i := 0; i < configOutput.ProcessedCount; i++ {
		health.IncrementConfigured()
	}
	for i := 0; i < configOutput.FailedCount; i++ {
		health.IncrementFailed()
	}
	for i := 0; i < deleteOutput.TotalDeleted; i++ {
		health.IncrementRemoved()
	}
	for _, delErr := range deleteOutput.Errors {
		health.IncrementFailed()
		a.logger.WithError(delErr).Warn("Error occurred during interface deletion")
	}

	if configOutput.ProcessedCount > 0 || configOutput.FailedCount > 0 || deleteOutput.TotalDeleted > 0 {
		a.logger.WithFields(logrus.Fields{
			"config_processed": configOutput.ProcessedCount,
			"config_failed":    configOutput.FailedCount,
			"config_total":     configOutput.TotalCount,
			"deleted_total":    deleteOutput.TotalDeleted,
			"deleted":          deleteOutput.DeletedInterfaces,
			"delete_errors":    len(deleteOutput.Errors),
		}).Info("Network processing completed")
	}
	return nil
}

func (a *Application) startHealthServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/", a.container.GetHealthService())
	mux.Handle("/metrics", promhttp.Handler())

	a.healthServer = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.WithField("port", port).Info("Health check server started (with /metrics)")
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Application) shutdown() {
	if a.healthServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.healthServer.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Failed to shutdown health check server")
	}
}
