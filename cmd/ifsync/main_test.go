package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "ifsync/internal/domain/errors"
)

const eth0XML = `<interface type="ethernet" name="eth0">
  <start mode="onboot"/>
  <mac address="52:54:00:00:00:01"/>
  <protocol family="ipv4">
    <dhcp/>
  </protocol>
</interface>`

type cli struct {
	root     string
	stateDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("NODE_NAME", "test-node")
	t.Setenv("LOG_LEVEL", "panic")
	return &cli{root: t.TempDir(), stateDir: t.TempDir()}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--root", c.root, "--backend", "initscripts", "--state-dir", c.stateDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) descriptor(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iface.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestCLI_DefineListDumpUndefine(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "define", c.descriptor(t, eth0XML))
	require.NoError(t, err)
	assert.Equal(t, "Interface eth0 defined\n", out)

	out, err = c.run(t, "list", "--all")
	require.NoError(t, err)
	assert.Equal(t, "eth0\n", out)

	out, err = c.run(t, "dumpxml", "eth0")
	require.NoError(t, err)
	assert.Contains(t, out, `name="eth0"`)
	assert.Contains(t, strings.ToLower(out), "52:54:00:00:00:01")

	out, err = c.run(t, "forest", "eth0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<forest"), out)

	out, err = c.run(t, "lookup-mac", "52:54:00:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, "eth0\n", out)

	_, err = c.run(t, "undefine", "eth0")
	require.NoError(t, err)

	out, err = c.run(t, "list", "--all")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCLI_ChangeRollback(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "change-begin")
	require.NoError(t, err)
	_, err = c.run(t, "define", c.descriptor(t, eth0XML))
	require.NoError(t, err)
	_, err = c.run(t, "change-rollback")
	require.NoError(t, err)

	out, err := c.run(t, "list", "--all")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCLI_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode domainErrors.Code
	}{
		{"unknown interface", []string{"dumpxml", "eth9"}, domainErrors.CodeNoEnt},
		{"commit without begin", []string{"change-commit"}, domainErrors.CodeInvalidOp},
		{"malformed descriptor", nil, domainErrors.CodeXMLParser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			args := tt.args
			if args == nil {
				args = []string{"define", c.descriptor(t, `<interface type="ethernet"`)}
			}

			_, err := c.run(t, args...)

			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
		})
	}
}

func TestCLI_RejectsUnknownBackend(t *testing.T) {
	c := newCLI(t)
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--root", c.root, "--backend", "wicked", "list"})

	err := cmd.Execute()

	assert.Equal(t, domainErrors.CodeOther, domainErrors.CodeOf(err))
}
