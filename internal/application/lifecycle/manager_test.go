package lifecycle

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	domainServices "ifsync/internal/domain/services"
	"ifsync/internal/infrastructure/adapters"
	"ifsync/internal/infrastructure/codec"
	"ifsync/internal/infrastructure/network"
	"ifsync/internal/infrastructure/schema"
	"ifsync/internal/infrastructure/services"
	"ifsync/internal/infrastructure/store"
)

const bridgeXML = `<interface type="bridge" name="br0">
  <start mode="onboot"/>
  <protocol family="ipv4">
    <dhcp/>
  </protocol>
  <bridge stp="off">
    <interface type="ethernet" name="eth3">
      <mac address="52:54:00:00:00:03"/>
    </interface>
    <interface type="ethernet" name="eth4"/>
  </bridge>
</interface>`

const bridgeBondXML = `<interface type="bridge" name="br1">
  <start mode="onboot"/>
  <bridge>
    <interface type="bond" name="bond0">
      <bond mode="active-backup">
        <miimon freq="100"/>
        <interface type="ethernet" name="eth1"/>
        <interface type="ethernet" name="eth2"/>
      </bond>
    </interface>
  </bridge>
</interface>`

func ethernetXML(name, mac string) string {
	return fmt.Sprintf(`<interface type="ethernet" name="%s">
  <start mode="onboot"/>
  <mac address="%s"/>
  <protocol family="ipv4">
    <dhcp/>
  </protocol>
</interface>`, name, mac)
}

type fixture struct {
	root      string
	manager   *Manager
	store     *store.Store
	resolver  *domainServices.DependencyResolver
	activator *MockActivator
	prober    *MockLinkProber
}

func newFixture(t *testing.T, backendName string) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	backend, err := network.NewBackendFactory(nil, nil, 0, logger).Create(backendName)
	require.NoError(t, err)

	root := t.TempDir()
	fileSystem := adapters.NewRealFileSystem()
	s, err := store.Open(root, backend.Includes, fileSystem, logger, store.Options{})
	require.NoError(t, err)

	f := &fixture{
		root:      root,
		store:     s,
		resolver:  domainServices.NewDependencyResolver(s, backend.Schema, logger),
		activator: new(MockActivator),
		prober:    new(MockLinkProber),
	}
	f.manager = New(Dependencies{
		Store:      s,
		Resolver:   f.resolver,
		Rules:      backend.Rules,
		Codec:      codec.New(backend.Schema, logger),
		Parser:     schema.NewValidator(logger),
		Activator:  f.activator,
		Prober:     f.prober,
		Transactor: services.NewTransactionService(fileSystem, adapters.NewRealClock(), logger, root, t.TempDir(), backend.Globs()),
		Aliases:    services.NewModprobeAliasRegistrar(logger),
		Logger:     logger,
	})
	t.Cleanup(func() { f.manager.Close() })
	return f
}

func (f *fixture) define(t *testing.T, doc string) *Interface {
	t.Helper()
	iface, err := f.manager.Define([]byte(doc))
	require.NoError(t, err)
	return iface
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

// files returns the content of every file below the root
func (f *fixture) files(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[strings.TrimPrefix(path, f.root)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestManager_DefineBridgeThenIfUp(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	f.activator.On("IfUp", ctx, mock.Anything).Return(nil)
	f.prober.On("IsActive", ctx, "br0").Return(true, nil)

	br0 := f.define(t, bridgeXML)
	require.NoError(t, f.manager.IfUp(ctx, br0))

	ports, err := f.resolver.BridgePorts("br0")
	require.NoError(t, err)
	assert.Equal(t, []string{"eth3", "eth4"}, ports)

	slave, err := f.resolver.IsSlave("eth3")
	require.NoError(t, err)
	assert.True(t, slave)

	toplevel, err := f.resolver.ListToplevel()
	require.NoError(t, err)
	assert.Contains(t, toplevel, "br0")
	assert.NotContains(t, toplevel, "eth3")

	assert.Equal(t, []string{"eth3", "eth4", "br0"}, f.activator.names("IfUp"))
}

func TestManager_IfDownOrder(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	f.activator.On("IfDown", ctx, mock.Anything).Return(nil)

	br0 := f.define(t, bridgeXML)
	require.NoError(t, f.manager.IfDown(ctx, br0))

	assert.Equal(t, []string{"br0", "eth3", "eth4"}, f.activator.names("IfDown"))
	f.prober.AssertNotCalled(t, "IsActive", mock.Anything, mock.Anything)
}

func TestManager_IfUpFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantCode domainErrors.Code
		wantMsg  string
	}{
		{
			name: "link stays down",
			setup: func(f *fixture) {
				f.activator.On("IfUp", ctx, "eth0").Return(nil)
				f.prober.On("IsActive", ctx, "eth0").Return(false, nil)
			},
			wantCode: domainErrors.CodeOther,
			wantMsg:  "possibly disconnected cable",
		},
		{
			name: "command fails",
			setup: func(f *fixture) {
				f.activator.On("IfUp", ctx, "eth0").Return(domainErrors.NewExecError("ifup eth0 failed", "exit status 1", nil))
			},
			wantCode: domainErrors.CodeExec,
			wantMsg:  "ifup eth0 failed",
		},
		{
			name: "probe fails",
			setup: func(f *fixture) {
				f.activator.On("IfUp", ctx, "eth0").Return(nil)
				f.prober.On("IsActive", ctx, "eth0").Return(false, domainErrors.NewNetlinkError("invalid link flags for eth0", nil))
			},
			wantCode: domainErrors.CodeNetlink,
			wantMsg:  "invalid link flags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, network.BackendInitscripts)
			tt.setup(f)
			eth0 := f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))

			err := f.manager.IfUp(ctx, eth0)

			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
			code, message, _ := f.manager.LastError()
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, message, tt.wantMsg)
		})
	}
}

func TestManager_DefineIsIdempotent(t *testing.T) {
	for _, backend := range []string{network.BackendInitscripts, network.BackendNetplan} {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)

			f.define(t, bridgeBondXML)
			first := f.files(t)
			f.define(t, bridgeBondXML)

			assert.NotEmpty(t, first)
			assert.Equal(t, first, f.files(t))
		})
	}
}

func TestManager_BondAlias(t *testing.T) {
	for _, backend := range []string{network.BackendInitscripts, network.BackendNetplan} {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)

			br1 := f.define(t, bridgeBondXML)
			f.define(t, bridgeBondXML)
			assert.Equal(t, "alias bond0 bonding\n", f.read(t, "/etc/modprobe.d/ifsync.conf"))

			require.NoError(t, f.manager.Undefine(br1))
			assert.NotContains(t, f.read(t, "/etc/modprobe.d/ifsync.conf"), "bond0")

			devices, err := f.resolver.Devices()
			require.NoError(t, err)
			assert.Empty(t, devices)
		})
	}
}

func TestManager_UndefineWithoutStanza(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	eth0 := f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))

	require.NoError(t, f.manager.Undefine(eth0))
	require.NoError(t, f.manager.Undefine(eth0))

	code, _, _ := f.manager.LastError()
	assert.Equal(t, domainErrors.CodeNoError, code)
	assert.Empty(t, f.read(t, "/etc/sysconfig/network-scripts/ifcfg-eth0"))
}

func TestManager_DefineReplacesMemberStanzas(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	f.define(t, ethernetXML("eth3", "52:54:00:00:00:03"))

	f.define(t, bridgeXML)

	toplevel, err := f.resolver.ListToplevel()
	require.NoError(t, err)
	assert.Equal(t, []string{"br0"}, toplevel)
	stanzas, err := f.resolver.Stanzas("eth3")
	require.NoError(t, err)
	assert.Len(t, stanzas, 1)
	assert.Contains(t, f.read(t, "/etc/sysconfig/network-scripts/ifcfg-eth3"), "BRIDGE=br0")
}

func TestManager_LookupByName(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	f.define(t, bridgeXML)

	tests := []struct {
		name     string
		lookup   string
		wantCode domainErrors.Code
	}{
		{"toplevel", "br0", domainErrors.CodeNoError},
		{"bridge port", "eth3", domainErrors.CodeNoEnt},
		{"not configured", "eth9", domainErrors.CodeNoEnt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iface, err := f.manager.LookupByName(tt.lookup)

			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
			if tt.wantCode == domainErrors.CodeNoError {
				require.NotNil(t, iface)
				assert.Equal(t, tt.lookup, iface.Name())
				iface.Release()
			} else {
				assert.Nil(t, iface)
			}
		})
	}
}

func TestManager_LookupByMAC(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	f.define(t, ethernetXML("eth0", "aa:bb:cc:dd:ee:ff"))
	f.define(t, ethernetXML("eth5", "AA:BB:CC:DD:EE:FF"))
	f.define(t, bridgeXML)

	names := func(ifaces []*Interface) []string {
		var out []string
		for _, i := range ifaces {
			out = append(out, i.Name())
		}
		return out
	}

	upper, err := f.manager.LookupByMAC("AA:BB:CC:DD:EE:FF", 10)
	require.NoError(t, err)
	lower, err := f.manager.LookupByMAC("aa:bb:cc:dd:ee:ff", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "eth5"}, names(upper))
	assert.Equal(t, names(upper), names(lower))

	truncated, err := f.manager.LookupByMAC("aa:bb:cc:dd:ee:ff", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0"}, names(truncated))

	unlimited, err := f.manager.LookupByMAC("aa:bb:cc:dd:ee:ff", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "eth5"}, names(unlimited))

	// eth3 carries the address but is a bridge port
	port, err := f.manager.LookupByMAC("52:54:00:00:00:03", 10)
	require.NoError(t, err)
	assert.Empty(t, port)

	mac, err := upper[0].MAC(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac)
	f.prober.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
}

func TestManager_ListInterfaces(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
	f.define(t, ethernetXML("eth1", "52:54:00:00:00:02"))
	f.define(t, bridgeXML)
	f.prober.On("IsActive", ctx, "br0").Return(true, nil).Maybe()
	f.prober.On("IsActive", ctx, "eth0").Return(true, nil).Maybe()
	f.prober.On("IsActive", ctx, "eth1").Return(false, nil).Maybe()

	tests := []struct {
		name  string
		max   int
		flags Flags
		want  []string
	}{
		{"no flags", 10, 0, []string{}},
		{"active", 10, FlagActive, []string{"br0", "eth0"}},
		{"inactive", 10, FlagInactive, []string{"eth1"}},
		{"both", 10, FlagActive | FlagInactive, []string{"br0", "eth0", "eth1"}},
		{"truncated", 2, FlagActive | FlagInactive, []string{"br0", "eth0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := f.manager.ListInterfaces(ctx, tt.max, tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}

	count, err := f.manager.NumInterfaces(ctx, FlagActive)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestManager_DefineRejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode domainErrors.Code
		wantLine string
	}{
		{
			name:     "not xml",
			doc:      "<interface type=\"ethernet\"",
			wantCode: domainErrors.CodeXMLParser,
		},
		{
			name:     "bad start mode",
			doc:      "<interface type=\"ethernet\" name=\"eth0\">\n  <start mode=\"sometimes\"/>\n</interface>",
			wantCode: domainErrors.CodeXMLInvalid,
			wantLine: "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, network.BackendInitscripts)

			iface, err := f.manager.Define([]byte(tt.doc))

			assert.Nil(t, iface)
			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
			code, _, details := f.manager.LastError()
			assert.Equal(t, tt.wantCode, code)
			assert.True(t, strings.HasPrefix(details, tt.wantLine), details)
			assert.Empty(t, f.files(t))
		})
	}
}

// silentRules maps every descriptor to an empty forest
type silentRules struct {
	interfaces.RuleSet
}

func (silentRules) Put(desc *entities.Interface) (*entities.Forest, error) {
	return entities.NewForest(), nil
}

func TestManager_DefineLosesToplevel(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	f.manager.rules = silentRules{f.manager.rules}

	_, err := f.manager.Define([]byte(ethernetXML("eth0", "52:54:00:00:00:01")))

	assert.Equal(t, domainErrors.CodeInternal, domainErrors.CodeOf(err))
}

func TestManager_FailedDefineIsNotSavedLater(t *testing.T) {
	f := newFixture(t, network.BackendNetplan)
	f.define(t, bridgeBondXML).Release()
	before := f.files(t)

	// bond0 stays a port of br1, so it cannot become toplevel
	_, err := f.manager.Define([]byte(`<interface type="bond" name="bond0">
  <start mode="onboot"/>
  <bond mode="active-backup">
    <miimon freq="100"/>
    <interface type="ethernet" name="eth1"/>
  </bond>
</interface>`))
	require.Equal(t, domainErrors.CodeInternal, domainErrors.CodeOf(err))
	assert.Equal(t, before, f.files(t))

	f.define(t, ethernetXML("eth9", "52:54:00:00:00:09")).Release()

	after := f.files(t)
	for file, content := range before {
		assert.Equal(t, content, after[file], file)
	}
	var added []string
	for file := range after {
		if _, ok := before[file]; !ok {
			added = append(added, file)
		}
	}
	require.Len(t, added, 1)
	assert.Contains(t, added[0], "eth9")

	toplevel, err := f.resolver.ListToplevel()
	require.NoError(t, err)
	assert.Equal(t, []string{"br1", "eth9"}, toplevel)
}

func TestManager_UnnamedVLAN(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)

	vlan := f.define(t, `<interface type="vlan"><start mode="onboot"/><vlan tag="42"><interface name="eth0"/></vlan></interface>`)

	assert.Equal(t, "eth0.42", vlan.Name())
	toplevel, err := f.resolver.ListToplevel()
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0.42"}, toplevel)
}

func TestManager_XMLDesc(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	br0 := f.define(t, bridgeXML)

	out, err := f.manager.XMLDesc(br0)
	require.NoError(t, err)

	var desc entities.Interface
	require.NoError(t, xml.Unmarshal(out, &desc))
	assert.Equal(t, "br0", desc.Name)
	assert.Equal(t, entities.TypeBridge, desc.Type)
	assert.Equal(t, []string{"br0", "eth3", "eth4"}, desc.Names())
}

func TestManager_XMLState(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	eth0 := f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
	f.prober.On("Probe", ctx, "eth0").Return(&interfaces.LinkState{
		Name: "eth0",
		Up:   true,
		MAC:  "52:54:00:AA:00:01",
		MTU:  1400,
		Addresses: []interfaces.LinkAddress{
			{Family: entities.FamilyIPv4, Address: "10.1.1.5", Prefix: 24},
			{Family: entities.FamilyIPv6, Address: "fe80::1", Prefix: 64},
		},
	}, nil)

	out, err := f.manager.XMLState(ctx, eth0)
	require.NoError(t, err)

	var desc entities.Interface
	require.NoError(t, xml.Unmarshal(out, &desc))
	require.NotNil(t, desc.MAC)
	assert.Equal(t, "52:54:00:aa:00:01", desc.MAC.Address)
	require.NotNil(t, desc.MTU)
	assert.Equal(t, 1400, desc.MTU.Size)

	ipv4 := desc.Protocol(entities.FamilyIPv4)
	require.NotNil(t, ipv4)
	assert.NotNil(t, ipv4.DHCP)
	require.Len(t, ipv4.IPs, 1)
	assert.Equal(t, "10.1.1.5", ipv4.IPs[0].Address)

	ipv6 := desc.Protocol(entities.FamilyIPv6)
	require.NotNil(t, ipv6)
	require.Len(t, ipv6.IPs, 1)
	assert.Equal(t, 64, ipv6.IPs[0].Prefix)
}

func TestManager_ChangeRollback(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
	before := f.files(t)

	require.NoError(t, f.manager.ChangeBegin(ctx, 0))
	f.define(t, bridgeBondXML)
	require.NoError(t, f.manager.ChangeRollback(ctx, 0))

	assert.Equal(t, before, f.files(t))
	_, err := f.manager.LookupByName("br1")
	assert.Equal(t, domainErrors.CodeNoEnt, domainErrors.CodeOf(err))
	eth0, err := f.manager.LookupByName("eth0")
	require.NoError(t, err)
	assert.Equal(t, "eth0", eth0.Name())
}

func TestManager_ChangeErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		run      func(m *Manager) error
		wantCode domainErrors.Code
	}{
		{"begin with flags", func(m *Manager) error { return m.ChangeBegin(ctx, 1) }, domainErrors.CodeOther},
		{"commit with flags", func(m *Manager) error { return m.ChangeCommit(ctx, 4) }, domainErrors.CodeOther},
		{"rollback with flags", func(m *Manager) error { return m.ChangeRollback(ctx, 2) }, domainErrors.CodeOther},
		{"commit without begin", func(m *Manager) error { return m.ChangeCommit(ctx, 0) }, domainErrors.CodeInvalidOp},
		{"rollback without begin", func(m *Manager) error { return m.ChangeRollback(ctx, 0) }, domainErrors.CodeInvalidOp},
		{"begin twice", func(m *Manager) error {
			if err := m.ChangeBegin(ctx, 0); err != nil {
				return err
			}
			return m.ChangeBegin(ctx, 0)
		}, domainErrors.CodeInvalidOp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, network.BackendInitscripts)

			err := tt.run(f.manager)

			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
			code, _, _ := f.manager.LastError()
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestManager_Handles(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	defined := f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))

	found, err := f.manager.LookupByName("eth0")
	require.NoError(t, err)
	assert.Same(t, defined, found)
	assert.Equal(t, 2, found.Refs())

	assert.Equal(t, 1, found.Release())
	assert.Equal(t, 0, defined.Release())

	_, err = f.manager.XMLDesc(defined)
	assert.Equal(t, domainErrors.CodeInvalidOp, domainErrors.CodeOf(err))

	again, err := f.manager.LookupByName("eth0")
	require.NoError(t, err)
	assert.NotSame(t, defined, again)
	assert.Equal(t, 1, again.Refs())
}

func TestManager_Observer(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	var seen []string
	f.manager.observer = func(operation string, err error, elapsed time.Duration) {
		seen = append(seen, fmt.Sprintf("%s:%s", operation, domainErrors.CodeOf(err)))
	}

	f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
	_, _ = f.manager.LookupByName("eth9")

	assert.Equal(t, []string{"define:NOERROR", "lookup_by_name:ENOENT"}, seen)
}

func TestManager_ClosedManager(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	iface := f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
	require.NoError(t, f.manager.Close())

	_, err := f.manager.LookupByName("eth0")
	assert.Equal(t, domainErrors.CodeInvalidOp, domainErrors.CodeOf(err))
	_, err = f.manager.XMLDesc(iface)
	assert.Equal(t, domainErrors.CodeInvalidOp, domainErrors.CodeOf(err))
}

func TestManager_Apply(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	ctx := context.Background()
	f.activator.On("IfUp", ctx, mock.Anything).Return(nil)
	f.prober.On("IsActive", ctx, "br0").Return(true, nil)

	name, err := f.manager.Apply(ctx, []byte(bridgeXML))

	require.NoError(t, err)
	assert.Equal(t, "br0", name)
	assert.Equal(t, []string{"eth3", "eth4", "br0"}, f.activator.names("IfUp"))
	assert.Contains(t, f.read(t, "/etc/sysconfig/network-scripts/ifcfg-br0"), "DEVICE=br0")
	assert.Empty(t, f.manager.handles)

	// the transaction was committed
	require.NoError(t, f.manager.ChangeBegin(ctx, 0))
}

func TestManager_ApplyRollsBack(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		setup    func(f *fixture, ctx context.Context)
		wantCode domainErrors.Code
	}{
		{
			name: "link stays down",
			doc:  ethernetXML("eth1", "52:54:00:00:00:02"),
			setup: func(f *fixture, ctx context.Context) {
				f.activator.On("IfUp", ctx, "eth1").Return(nil)
				f.prober.On("IsActive", ctx, "eth1").Return(false, nil)
			},
			wantCode: domainErrors.CodeOther,
		},
		{
			name: "ifup fails",
			doc:  ethernetXML("eth1", "52:54:00:00:00:02"),
			setup: func(f *fixture, ctx context.Context) {
				f.activator.On("IfUp", ctx, "eth1").Return(domainErrors.NewExecError("ifup eth1 failed", "", nil))
			},
			wantCode: domainErrors.CodeExec,
		},
		{
			name:     "invalid descriptor",
			doc:      "<interface type=\"ethernet\" name=\"eth1\">\n  <start mode=\"sometimes\"/>\n</interface>",
			setup:    func(f *fixture, ctx context.Context) {},
			wantCode: domainErrors.CodeXMLInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, network.BackendInitscripts)
			ctx := context.Background()
			f.define(t, ethernetXML("eth0", "52:54:00:00:00:01"))
			before := f.files(t)
			tt.setup(f, ctx)

			_, err := f.manager.Apply(ctx, []byte(tt.doc))

			assert.Equal(t, tt.wantCode, domainErrors.CodeOf(err))
			code, _, _ := f.manager.LastError()
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, before, f.files(t))
			_, err = f.manager.LookupByName("eth1")
			assert.Equal(t, domainErrors.CodeNoEnt, domainErrors.CodeOf(err))
			require.NoError(t, f.manager.ChangeBegin(ctx, 0))
		})
	}
}

func TestManager_Remove(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		ifdownErr error
	}{
		{"clean", nil},
		{"ifdown failure is ignored", domainErrors.NewExecError("ifdown br0 failed", "", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, network.BackendInitscripts)
			f.activator.On("IfDown", ctx, "br0").Return(tt.ifdownErr)
			f.activator.On("IfDown", ctx, mock.Anything).Return(nil)
			f.define(t, bridgeXML).Release()

			require.NoError(t, f.manager.Remove(ctx, "br0"))

			assert.Empty(t, f.read(t, "/etc/sysconfig/network-scripts/ifcfg-br0"))
			assert.Empty(t, f.read(t, "/etc/sysconfig/network-scripts/ifcfg-eth3"))
			assert.Empty(t, f.manager.handles)
		})
	}
}

func TestManager_RemoveUnknown(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)

	require.NoError(t, f.manager.Remove(context.Background(), "eth9"))

	f.activator.AssertNotCalled(t, "IfDown", mock.Anything, mock.Anything)
}

func TestManager_RemoveMember(t *testing.T) {
	f := newFixture(t, network.BackendInitscripts)
	f.define(t, bridgeXML).Release()
	before := f.files(t)

	err := f.manager.Remove(context.Background(), "eth3")

	assert.Equal(t, domainErrors.CodeInvalidOp, domainErrors.CodeOf(err))
	assert.Equal(t, before, f.files(t))
	f.activator.AssertNotCalled(t, "IfDown", mock.Anything, mock.Anything)
}
