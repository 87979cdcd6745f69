package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ifsync/internal/application/lifecycle"
	"ifsync/internal/infrastructure/config"
	"ifsync/internal/infrastructure/container"
)

const version = "0.1.0"

type globalOptions struct {
	root     string
	backend  string
	stateDir string
	debug    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "ifsync",
		Short:         "Synchronize interface descriptors with native network configuration",
		Long:          "ifsync translates XML interface descriptors into the native network configuration of the host (initscripts or netplan) and back, and brings the interfaces up and down.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", "", "filesystem root of the configuration files (default $IFSYNC_ROOT or /)")
	flags.StringVar(&opts.backend, "backend", "", "configuration backend: auto|initscripts|netplan")
	flags.StringVar(&opts.stateDir, "state-dir", "", "directory for change transaction snapshots")
	flags.BoolVar(&opts.debug, "debug", false, "log debug output, including files that failed to load")

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newDumpXMLCmd(opts))
	rootCmd.AddCommand(newDefineCmd(opts))
	rootCmd.AddCommand(newUndefineCmd(opts))
	rootCmd.AddCommand(newIfUpCmd(opts))
	rootCmd.AddCommand(newIfDownCmd(opts))
	rootCmd.AddCommand(newLookupMACCmd(opts))
	rootCmd.AddCommand(newForestCmd(opts))
	rootCmd.AddCommand(newApplyCmd(opts))
	rootCmd.AddCommand(newRemoveCmd(opts))
	rootCmd.AddCommand(newChangeCmds(opts)...)
	rootCmd.AddCommand(newAgentCmd(opts))

	return rootCmd
}

// newLogger builds the JSON logger, honouring LOG_LEVEL unless debug is set
func newLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			logger.WithError(err).Warnf("Unknown LOG_LEVEL value: %s. Using default Info level.", level)
		} else {
			logger.SetLevel(parsed)
		}
	}
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// loadConfig reads the environment and applies the command line overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	loader := config.NewEnvironmentConfigLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.Engine.Root = o.root
	}
	if o.backend != "" {
		cfg.Engine.Backend = o.backend
	}
	if o.stateDir != "" {
		cfg.Engine.StateDir = o.stateDir
	}
	if o.debug {
		cfg.Engine.Debug = true
	}
	if err := loader.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withManager runs fn against a manager opened for the command
func (o *globalOptions) withManager(fn func(m *lifecycle.Manager) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(o.debug)

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).Error("Failed to close container")
		}
	}()

	return fn(c.GetManager())
}
