package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifsync/internal/domain/entities"
	"ifsync/internal/domain/services"
	"ifsync/internal/infrastructure/adapters"
	"ifsync/internal/infrastructure/codec"
	"ifsync/internal/infrastructure/store"
	"ifsync/pkg/treepath"
)

func newBackend(t *testing.T, name string) *Backend {
	t.Helper()
	backend, err := NewBackendFactory(nil, new(MockCommandExecutor), 0, logrus.New()).Create(name)
	require.NoError(t, err)
	return backend
}

func openStore(t *testing.T, root string, backend *Backend) *store.Store {
	t.Helper()
	s, err := store.Open(root, backend.Includes, adapters.NewRealFileSystem(), logrus.New(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// define writes desc through the backend and reads it back
func define(t *testing.T, s *store.Store, backend *Backend, desc *entities.Interface) *entities.Interface {
	t.Helper()
	forest, err := backend.Rules.Put(desc)
	require.NoError(t, err)
	_, err = codec.New(backend.Schema, logrus.New()).ToStore(s, forest)
	require.NoError(t, err)
	require.NoError(t, backend.Rules.Prune(s))
	require.NoError(t, s.Save())

	name, _ := desc.CanonicalName()
	return readBack(t, s, backend, name)
}

func readBack(t *testing.T, s *store.Store, backend *Backend, name string) *entities.Interface {
	t.Helper()
	resolver := services.NewDependencyResolver(s, backend.Schema, logrus.New())
	stanza, ok, err := resolver.Stanza(name)
	require.NoError(t, err)
	require.True(t, ok, "no stanza for %s", name)
	roots := []treepath.Path{stanza}
	subs, err := resolver.Subordinates(name)
	require.NoError(t, err)
	for _, sub := range subs {
		if p, ok, err := resolver.Stanza(sub); err == nil && ok {
			roots = append(roots, p)
		}
	}

	forest, err := codec.New(backend.Schema, logrus.New()).ToForest(s, roots)
	require.NoError(t, err)
	got, err := backend.Rules.Get(forest, name)
	require.NoError(t, err)
	return got
}

func onboot() *entities.Start { return &entities.Start{Mode: entities.StartOnBoot} }

func descriptors() map[string]*entities.Interface {
	return map[string]*entities.Interface{
		"ethernet-static": {
			Type:  entities.TypeEthernet,
			Name:  "eth0",
			Start: onboot(),
			MTU:   &entities.MTU{Size: 9000},
			MAC:   &entities.MAC{Address: "52:54:00:12:34:56"},
			Protocols: []*entities.Protocol{{
				Family: entities.FamilyIPv4,
				IPs: []*entities.IP{
					{Address: "192.168.0.5", Prefix: 24},
					{Address: "192.168.0.6", Prefix: 24},
				},
				Route: &entities.Route{Gateway: "192.168.0.1"},
			}},
		},
		"ethernet-dhcp": {
			Type:  entities.TypeEthernet,
			Name:  "eth1",
			Start: &entities.Start{Mode: entities.StartNone},
			Protocols: []*entities.Protocol{{
				Family: entities.FamilyIPv4,
				DHCP:   &entities.DHCP{PeerDNS: "no"},
			}},
		},
		"ipv6": {
			Type:  entities.TypeEthernet,
			Name:  "eth2",
			Start: &entities.Start{Mode: entities.StartHotplug},
			Protocols: []*entities.Protocol{
				{Family: entities.FamilyIPv4, DHCP: &entities.DHCP{}},
				{
					Family:   entities.FamilyIPv6,
					Autoconf: &entities.Autoconf{},
					IPs: []*entities.IP{
						{Address: "2001:db8::5", Prefix: 64},
						{Address: "2001:db8::6", Prefix: 64},
					},
					Route: &entities.Route{Gateway: "2001:db8::1"},
				},
			},
		},
		"bridge": {
			Type:  entities.TypeBridge,
			Name:  "br0",
			Start: onboot(),
			Protocols: []*entities.Protocol{{
				Family: entities.FamilyIPv4,
				IPs:    []*entities.IP{{Address: "10.0.0.2", Prefix: 16}},
			}},
			Bridge: &entities.Bridge{
				STP:   "off",
				Delay: "0",
				Interfaces: []*entities.Interface{
					{Type: entities.TypeEthernet, Name: "eth3"},
					{Type: entities.TypeEthernet, Name: "eth4"},
				},
			},
		},
		"bridge-over-bond": {
			Type:  entities.TypeBridge,
			Name:  "br1",
			Start: onboot(),
			Bridge: &entities.Bridge{
				STP: "on",
				Interfaces: []*entities.Interface{
					{
						Type: entities.TypeBond,
						Name: "bond1",
						Bond: &entities.Bond{
							Mode:   "active-backup",
							MIIMon: &entities.MIIMon{Freq: 100, UpDelay: 200},
							Interfaces: []*entities.Interface{
								{Type: entities.TypeEthernet, Name: "eth5"},
								{Type: entities.TypeEthernet, Name: "eth6"},
							},
						},
					},
					{Type: entities.TypeEthernet, Name: "eth7"},
				},
			},
		},
		"bond": {
			Type:  entities.TypeBond,
			Name:  "bond0",
			Start: onboot(),
			Bond: &entities.Bond{
				Mode:   "balance-rr",
				ARPMon: &entities.ARPMon{Interval: 1000, Target: "192.168.0.1", Validate: "active"},
				Interfaces: []*entities.Interface{
					{Type: entities.TypeEthernet, Name: "eth8"},
					{Type: entities.TypeEthernet, Name: "eth9"},
				},
			},
		},
		"vlan": {
			Type:  entities.TypeVLAN,
			Name:  "eth0.42",
			Start: onboot(),
			VLAN: &entities.VLAN{
				Tag:       42,
				Interface: &entities.Interface{Name: "eth0"},
			},
		},
	}
}

func TestRuleSets_RoundTrip(t *testing.T) {
	for _, backendName := range []string{BackendInitscripts, BackendNetplan} {
		for name, desc := range descriptors() {
			t.Run(backendName+"/"+name, func(t *testing.T) {
				backend := newBackend(t, backendName)
				s := openStore(t, t.TempDir(), backend)

				got := define(t, s, backend, desc)

				assert.Equal(t, desc, got)
			})
		}
	}
}

func TestInitscriptsRules_WritesIfcfgFiles(t *testing.T) {
	backend := newBackend(t, BackendInitscripts)
	root := t.TempDir()
	s := openStore(t, root, backend)

	define(t, s, backend, descriptors()["bridge-over-bond"])

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(root, "etc/sysconfig/network-scripts", name))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "DEVICE=br1\nTYPE=Bridge\nONBOOT=yes\nSTP=on\n", read("ifcfg-br1"))
	assert.Equal(t, "DEVICE=bond1\nTYPE=Bond\nBRIDGE=br1\nBONDING_OPTS=\"mode=active-backup miimon=100 updelay=200\"\n", read("ifcfg-bond1"))
	assert.Equal(t, "DEVICE=eth5\nTYPE=Ethernet\nMASTER=bond1\nSLAVE=yes\n", read("ifcfg-eth5"))
}

func TestInitscriptsRules_VLANNameFallback(t *testing.T) {
	backend := newBackend(t, BackendInitscripts)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"/etc/sysconfig/network-scripts/ifcfg-eth1.7": "DEVICE=eth1.7\nVLAN=yes\n",
	})
	s := openStore(t, root, backend)

	got := readBack(t, s, backend, "eth1.7")

	assert.Equal(t, entities.TypeVLAN, got.Type)
	require.NotNil(t, got.VLAN)
	assert.Equal(t, 7, got.VLAN.Tag)
	require.NotNil(t, got.VLAN.Interface)
	assert.Equal(t, "eth1", got.VLAN.Interface.Name)
}

func TestNetplanRules_ForeignFile(t *testing.T) {
	backend := newBackend(t, BackendNetplan)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"/etc/netplan/50-cloud-init.yaml": `network:
  version: 2
  ethernets:
    eth0:
      match:
        macaddress: "52:54:00:ab:cd:ef"
      dhcp4: true
  bridges:
    br0:
      interfaces: [eth0, eth9]
      parameters:
        stp: true
`,
	})
	s := openStore(t, root, backend)

	got := readBack(t, s, backend, "br0")

	require.NotNil(t, got.Bridge)
	assert.Equal(t, "on", got.Bridge.STP)
	require.Len(t, got.Bridge.Interfaces, 2)
	eth0 := got.Bridge.Interfaces[0]
	assert.Equal(t, "eth0", eth0.Name)
	require.NotNil(t, eth0.MAC)
	assert.Equal(t, "52:54:00:ab:cd:ef", eth0.MAC.Address)
	require.Len(t, eth0.Protocols, 1)
	assert.NotNil(t, eth0.Protocols[0].DHCP)
	assert.Nil(t, eth0.Start)
	assert.Equal(t, &entities.Interface{Name: "eth9", Type: entities.TypeEthernet}, got.Bridge.Interfaces[1])
}

func TestNetplanRules_PruneRemovesEmptyFiles(t *testing.T) {
	backend := newBackend(t, BackendNetplan)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"/etc/netplan/90-ifsync-br0.yaml": "network:\n  version: 2\n  ethernets:\n    eth3: {}\n  bridges:\n    br0:\n      interfaces: [eth3]\n",
		"/etc/netplan/90-ifsync-eth4.yaml": "network:\n  version: 2\n  ethernets:\n    eth4: {}\n",
		"/etc/netplan/01-base.yaml":       "network:\n  version: 2\n",
	})
	s := openStore(t, root, backend)
	netplan := treepath.New("files", "etc", "netplan")

	_, err := s.Remove(netplan.Child("90-ifsync-br0.yaml").Child("network").Child("bridges").Child("br0").Pattern())
	require.NoError(t, err)
	_, err = s.Remove(netplan.Child("90-ifsync-eth4.yaml").Child("network").Child("ethernets").Child("eth4").Pattern())
	require.NoError(t, err)

	require.NoError(t, backend.Rules.Prune(s))
	require.NoError(t, s.Save())

	data, err := os.ReadFile(filepath.Join(root, "etc/netplan/90-ifsync-br0.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "network:\n  version: 2\n  ethernets:\n    eth3: {}\n", string(data))

	_, err = os.Stat(filepath.Join(root, "etc/netplan/90-ifsync-eth4.yaml"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "etc/netplan/01-base.yaml"))
	assert.NoError(t, err, "files not written by ifsync are left alone")
}
