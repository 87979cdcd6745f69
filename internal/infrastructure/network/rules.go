// Package network holds the per-OS backends: the rule sets translating
// descriptors to native stanzas, the activators and the factory selecting
// them for the host.
package network

import "ifsync/internal/domain/entities"

// Backend names
const (
	BackendAuto        = "auto"
	BackendInitscripts = "initscripts"
	BackendNetplan     = "netplan"
)

// dropSubordinateStart clears start modes below the toplevel interface; only
// the toplevel one is reported
func dropSubordinateStart(iface *entities.Interface) {
	for _, sub := range iface.Subordinates() {
		sub.Start = nil
		dropSubordinateStart(sub)
	}
}
