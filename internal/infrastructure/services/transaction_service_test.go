package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/infrastructure/adapters"
)

var transactionGlobs = []string{"/etc/sysconfig/network-scripts/ifcfg-*", "/etc/modprobe.d/ifsync.conf"}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTransactionService(t *testing.T) (*TransactionService, string, string) {
	t.Helper()
	root := t.TempDir()
	stateDir := t.TempDir()
	svc := NewTransactionService(adapters.NewRealFileSystem(), adapters.NewRealClock(), logrus.New(), root, stateDir, transactionGlobs)
	return svc, root, stateDir
}

func TestTransactionService_Rollback(t *testing.T) {
	svc, root, stateDir := newTransactionService(t)
	ctx := context.Background()
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\nBOOTPROTO=dhcp\n")
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth1", "DEVICE=eth1\n")

	require.NoError(t, svc.Begin(ctx))

	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\nBOOTPROTO=none\n")
	require.NoError(t, os.Remove(filepath.Join(root, "/etc/sysconfig/network-scripts/ifcfg-eth1")))
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-br0", "DEVICE=br0\nTYPE=Bridge\n")
	writeFile(t, root, "/etc/modprobe.d/ifsync.conf", "alias bond0 bonding\n")

	require.NoError(t, svc.Rollback(ctx))

	eth0, err := os.ReadFile(filepath.Join(root, "/etc/sysconfig/network-scripts/ifcfg-eth0"))
	require.NoError(t, err)
	assert.Equal(t, "DEVICE=eth0\nBOOTPROTO=dhcp\n", string(eth0))

	eth1, err := os.ReadFile(filepath.Join(root, "/etc/sysconfig/network-scripts/ifcfg-eth1"))
	require.NoError(t, err)
	assert.Equal(t, "DEVICE=eth1\n", string(eth1))

	for _, created := range []string{"/etc/sysconfig/network-scripts/ifcfg-br0", "/etc/modprobe.d/ifsync.conf"} {
		_, err := os.Stat(filepath.Join(root, created))
		assert.True(t, os.IsNotExist(err), created)
	}

	entries, err := os.ReadDir(stateDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransactionService_Commit(t *testing.T) {
	svc, root, stateDir := newTransactionService(t)
	ctx := context.Background()
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\n")

	require.NoError(t, svc.Begin(ctx))
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\nMTU=9000\n")
	require.NoError(t, svc.Commit(ctx))

	eth0, err := os.ReadFile(filepath.Join(root, "/etc/sysconfig/network-scripts/ifcfg-eth0"))
	require.NoError(t, err)
	assert.Equal(t, "DEVICE=eth0\nMTU=9000\n", string(eth0))

	entries, err := os.ReadDir(stateDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransactionService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(svc *TransactionService) error
	}{
		{"begin twice", func(svc *TransactionService) error {
			require.NoError(t, svc.Begin(ctx))
			return svc.Begin(ctx)
		}},
		{"commit without begin", func(svc *TransactionService) error { return svc.Commit(ctx) }},
		{"rollback without begin", func(svc *TransactionService) error { return svc.Rollback(ctx) }},
		{"commit twice", func(svc *TransactionService) error {
			require.NoError(t, svc.Begin(ctx))
			require.NoError(t, svc.Commit(ctx))
			return svc.Commit(ctx)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTransactionService(t)
			err := tt.run(svc)
			assert.Equal(t, domainErrors.CodeInvalidOp, domainErrors.CodeOf(err))
		})
	}
}

func TestTransactionService_SurvivesRestart(t *testing.T) {
	svc, root, stateDir := newTransactionService(t)
	ctx := context.Background()
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\n")
	require.NoError(t, svc.Begin(ctx))
	writeFile(t, root, "/etc/sysconfig/network-scripts/ifcfg-eth0", "DEVICE=eth0\nONBOOT=no\n")

	again := NewTransactionService(adapters.NewRealFileSystem(), adapters.NewRealClock(), logrus.New(), root, stateDir, transactionGlobs)
	require.NoError(t, again.Rollback(ctx))

	eth0, err := os.ReadFile(filepath.Join(root, "/etc/sysconfig/network-scripts/ifcfg-eth0"))
	require.NoError(t, err)
	assert.Equal(t, "DEVICE=eth0\n", string(eth0))
}
