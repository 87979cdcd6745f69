package adapters

import (
	"bufio"
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

// IFF_UP from <linux/if.h>
const iffUp = 0x1

// SysfsLinkProber reads link flags, MAC and MTU from sysfs and addresses from `ip -o addr`
type SysfsLinkProber struct {
	sysfsDir   string
	fileSystem interfaces.FileSystem
	executor   interfaces.CommandExecutor
	logger     *logrus.Logger
}

func NewSysfsLinkProber(sysfsDir string, fs interfaces.FileSystem, executor interfaces.CommandExecutor, logger *logrus.Logger) *SysfsLinkProber {
	return &SysfsLinkProber{
		sysfsDir:   sysfsDir,
		fileSystem: fs,
		executor:   executor,
		logger:     logger,
	}
}

var _ interfaces.LinkProber = (*SysfsLinkProber)(nil)

// IsActive reports whether IFF_UP is set; a missing device is inactive
func (p *SysfsLinkProber) IsActive(ctx context.Context, name string) (bool, error) {
	if !p.fileSystem.Exists(p.attr(name, "")) {
		return false, nil
	}
	raw, err := p.readAttr(name, "flags")
	if err != nil {
		return false, err
	}
	flags, err := strconv.ParseUint(strings.TrimPrefix(raw, "0x"), 16, 32)
	if err != nil {
		return false, domainErrors.NewNetlinkError("invalid link flags for "+name, err)
	}
	return flags&iffUp != 0, nil
}

// Probe returns flags, MAC, MTU and addresses of a live device
func (p *SysfsLinkProber) Probe(ctx context.Context, name string) (*interfaces.LinkState, error) {
	if !p.fileSystem.Exists(p.attr(name, "")) {
		return nil, domainErrors.NewNetlinkError("no such device: "+name, nil)
	}

	state := &interfaces.LinkState{Name: name}

	up, err := p.IsActive(ctx, name)
	if err != nil {
		return nil, err
	}
	state.Up = up

	if state.MAC, err = p.readAttr(name, "address"); err != nil {
		return nil, err
	}

	mtu, err := p.readAttr(name, "mtu")
	if err != nil {
		return nil, err
	}
	if state.MTU, err = strconv.Atoi(mtu); err != nil {
		return nil, domainErrors.NewNetlinkError("invalid mtu for "+name, err)
	}

	out, err := p.executor.Execute(ctx, "ip", "-o", "addr", "show", "dev", name)
	if err != nil {
		return nil, domainErrors.NewNetlinkError("failed to list addresses of "+name, err)
	}
	state.Addresses = parseIPAddrOutput(string(out))

	p.logger.WithFields(logrus.Fields{
		"interface": name,
		"up":        state.Up,
		"mac":       state.MAC,
		"mtu":       state.MTU,
		"addresses": len(state.Addresses),
	}).Debug("Probed link state")

	return state, nil
}

func (p *SysfsLinkProber) attr(name, attr string) string {
	return filepath.Join(p.sysfsDir, name, attr)
}

func (p *SysfsLinkProber) readAttr(name, attr string) (string, error) {
	data, err := p.fileSystem.ReadFile(p.attr(name, attr))
	if err != nil {
		return "", domainErrors.NewNetlinkError("failed to read "+attr+" of "+name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseIPAddrOutput reads lines like
// "2: eth0    inet 192.168.0.5/24 brd 192.168.0.255 scope global eth0\ ..."
func parseIPAddrOutput(out string) []interfaces.LinkAddress {
	var addrs []interfaces.LinkAddress
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		var family string
		switch fields[2] {
		case "inet":
			family = "ipv4"
		case "inet6":
			family = "ipv6"
		default:
			continue
		}
		addr, prefix, found := strings.Cut(fields[3], "/")
		if !found {
			continue
		}
		n, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		addrs = append(addrs, interfaces.LinkAddress{Family: family, Address: addr, Prefix: n})
	}
	return addrs
}
