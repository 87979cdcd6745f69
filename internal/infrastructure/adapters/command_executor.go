package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// RealCommandExecutor runs commands with fork/exec/wait and captures combined output
type RealCommandExecutor struct {
	defaultTimeout time.Duration
	prefix         []string
	logger         *logrus.Logger
}

// NewRealCommandExecutor creates an executor; defaultTimeout 0 means commands may block indefinitely
func NewRealCommandExecutor(defaultTimeout time.Duration, logger *logrus.Logger) *RealCommandExecutor {
	return &RealCommandExecutor{defaultTimeout: defaultTimeout, logger: logger}
}

// NewHostNamespaceExecutor runs every command inside the namespaces of PID 1
// through nsenter, for agents running in a container
func NewHostNamespaceExecutor(defaultTimeout time.Duration, logger *logrus.Logger) *RealCommandExecutor {
	return &RealCommandExecutor{
		defaultTimeout: defaultTimeout,
		prefix:         []string{"nsenter", "-t", "1", "-m", "-u", "-n", "-i", "--"},
		logger:         logger,
	}
}

var _ interfaces.CommandExecutor = (*RealCommandExecutor)(nil)

// Execute runs a command with the executor's default timeout
func (e *RealCommandExecutor) Execute(ctx context.Context, command string, args ...string) ([]byte, error) {
	return e.ExecuteWithTimeout(ctx, e.defaultTimeout, command, args...)
}

// ExecuteWithTimeout runs a command; a zero timeout only honours ctx
func (e *RealCommandExecutor) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, command string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name, argv := command, args
	if len(e.prefix) > 0 {
		name = e.prefix[0]
		argv = append(append(append([]string{}, e.prefix[1:]...), command), args...)
	}
	cmdline := strings.TrimSpace(command + " " + strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, argv...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	e.logger.WithField("command", cmdline).Debug("Running command")

	err := cmd.Run()
	if err == nil {
		return output.Bytes(), nil
	}
	return output.Bytes(), classifyExecError(ctx, cmdline, output.String(), timeout, err)
}

// invalidOpExitStatus is the LSB "invalid or excess arguments" status that
// ifup, ifdown and networkctl return when they reject the requested operation
const invalidOpExitStatus = 2

func classifyExecError(ctx context.Context, cmdline, output string, timeout time.Duration, err error) error {
	output = strings.TrimSpace(output)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domainErrors.NewExecError(fmt.Sprintf("command timed out after %v: %s", timeout, cmdline), output, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) {
		return domainErrors.NewExecError("command not found: "+cmdline, "", err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return domainErrors.NewExecError(
				fmt.Sprintf("command killed by signal %s: %s", status.Signal(), cmdline), output, err)
		}
		if exitErr.ExitCode() == invalidOpExitStatus {
			rejected := domainErrors.NewInvalidOpError("command rejected the operation: "+cmdline, err)
			rejected.Details = output
			return rejected
		}
		return domainErrors.NewExecError(
			fmt.Sprintf("command exited with status %d: %s", exitErr.ExitCode(), cmdline), output, err)
	}
	return domainErrors.NewExecError("failed to run command: "+cmdline, output, err)
}
