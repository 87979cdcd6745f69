package network

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

// Command is one external command; the interface name is appended when
// WithName is set
type Command struct {
	Name     string
	Args     []string
	WithName bool
}

// CommandActivator brings interfaces up and down by running the host's
// network tools in sequence
type CommandActivator struct {
	executor interfaces.CommandExecutor
	timeout  time.Duration
	up       []Command
	down     []Command
	logger   *logrus.Logger
}

var _ interfaces.Activator = (*CommandActivator)(nil)

// NewInitscriptsActivator runs ifup/ifdown
func NewInitscriptsActivator(executor interfaces.CommandExecutor, timeout time.Duration, logger *logrus.Logger) *CommandActivator {
	return &CommandActivator{
		executor: executor,
		timeout:  timeout,
		up:       []Command{{Name: "ifup", WithName: true}},
		down:     []Command{{Name: "ifdown", WithName: true}},
		logger:   logger,
	}
}

// NewNetplanActivator regenerates the networkd units and drives networkctl
func NewNetplanActivator(executor interfaces.CommandExecutor, timeout time.Duration, logger *logrus.Logger) *CommandActivator {
	return &CommandActivator{
		executor: executor,
		timeout:  timeout,
		up: []Command{
			{Name: "netplan", Args: []string{"generate"}},
			{Name: "networkctl", Args: []string{"reload"}},
			{Name: "networkctl", Args: []string{"up"}, WithName: true},
		},
		down:   []Command{{Name: "networkctl", Args: []string{"down"}, WithName: true}},
		logger: logger,
	}
}

func (a *CommandActivator) IfUp(ctx context.Context, name string) error {
	return a.run(ctx, "up", a.up, name)
}

func (a *CommandActivator) IfDown(ctx context.Context, name string) error {
	return a.run(ctx, "down", a.down, name)
}

func (a *CommandActivator) run(ctx context.Context, action string, commands []Command, name string) error {
	for _, cmd := range commands {
		args := append([]string{}, cmd.Args...)
		if cmd.WithName {
			args = append(args, name)
		}
		output, err := a.executor.ExecuteWithTimeout(ctx, a.timeout, cmd.Name, args...)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"interface": name,
				"command":   cmd.Name,
				"args":      args,
				"output":    string(output),
			}).WithError(err).Error("Interface " + action + " command failed")
			switch domainErrors.CodeOf(err) {
			case domainErrors.CodeExec, domainErrors.CodeInvalidOp:
				return err
			}
			return domainErrors.NewExecError("failed to run "+cmd.Name, string(output), err)
		}
	}
	a.logger.WithField("interface", name).Info("Interface " + action)
	return nil
}
