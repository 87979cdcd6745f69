package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/infrastructure/config"
	"ifsync/internal/infrastructure/persistence"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		Engine: config.EngineConfig{
			Root:     t.TempDir(),
			Backend:  backend,
			StateDir: t.TempDir(),
		},
		Database: config.DatabaseConfig{
			Driver: persistence.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "ifsync.db"),
		},
		Agent: config.AgentConfig{
			NodeName:     "node-1",
			PollInterval: time.Second,
			RetryDelay:   time.Millisecond,
		},
		Health: config.HealthConfig{Port: "8080"},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewContainer(t *testing.T) {
	for _, backend := range []string{"initscripts", "netplan"} {
		t.Run(backend, func(t *testing.T) {
			c, err := NewContainer(testConfig(t, backend), quietLogger())
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, backend, c.GetManager().Backend())
			assert.Equal(t, backend, c.GetBackend().Name)
			assert.Nil(t, c.GetConfigureNetworkUseCase())
			assert.Nil(t, c.GetHealthService())
		})
	}
}

func TestNewContainer_DetectsBackend(t *testing.T) {
	cfg := testConfig(t, "auto")
	etc := filepath.Join(cfg.Engine.Root, "etc")
	require.NoError(t, os.MkdirAll(etc, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(etc, "os-release"), []byte("ID=rocky\nID_LIKE=\"rhel centos fedora\"\n"), 0644))

	c, err := NewContainer(cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "initscripts", c.GetManager().Backend())
}

func TestNewContainer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *config.Config)
		wantCode domainErrors.Code
	}{
		{"missing root", func(cfg *config.Config) { cfg.Engine.Root = filepath.Join(cfg.Engine.Root, "missing") }, domainErrors.CodeFile},
		{"no os-release", func(cfg *config.Config) { cfg.Engine.Backend = "auto" }, domainErrors.CodeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "initscripts")
			tt.mutate(cfg)

			c, err := NewContainer(cfg, quietLogger())

			assert.Nil(t, c)
			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
		})
	}
}

func TestContainer_InitAgent(t *testing.T) {
	c, err := NewContainer(testConfig(t, "netplan"), quietLogger())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.InitAgent(ctx))

	assert.NotNil(t, c.GetHealthService())
	assert.NotNil(t, c.GetConfigureNetworkUseCase())
	assert.NotNil(t, c.GetDeleteNetworkUseCase())

	record := &entities.DesiredInterface{NodeName: "node-1", Descriptor: `<interface type="ethernet" name="eth0"/>`}
	require.NoError(t, c.GetRepository().CreateInterface(ctx, record))
	pending, err := c.GetRepository().GetPendingInterfaces(ctx, "node-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestContainer_InitAgentGivesUp(t *testing.T) {
	cfg := testConfig(t, "netplan")
	cfg.Database.Path = filepath.Join(cfg.Engine.Root, "missing", "ifsync.db")
	cfg.Agent.MaxRetries = 1
	c, err := NewContainer(cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	err = c.InitAgent(context.Background())

	assert.Error(t, err)
	assert.Nil(t, c.GetConfigureNetworkUseCase())
}
