package constants

// System paths, relative to the configured filesystem root
const (
	// Ubuntu/netplan
	NetplanConfigDir = "/etc/netplan"

	// RHEL/initscripts
	RHELNetworkScriptsDir = "/etc/sysconfig/network-scripts"

	// Bond module aliases
	ModprobeDir       = "/etc/modprobe.d"
	ModprobeAliasFile = "/etc/modprobe.d/ifsync.conf"

	// OS detection inside a container that mounts the host root on /host
	OSReleaseFile     = "/host/etc/os-release"
	HostOSReleaseFile = "/etc/os-release"

	// Transaction snapshots
	DefaultStateDir = "/var/lib/ifsync"

	SysClassNet = "/sys/class/net"
)

// Store layout
const (
	// FilesLabel is the top level store label under which native files appear
	FilesLabel = "files"

	// NetplanFilePrefix names the files written for a toplevel interface
	NetplanFilePrefix = "90-ifsync-"
)

const (
	ConfigFilePermission = 0644

	DefaultCommandTimeout = 0 // seconds, no deadline
)

// Defaults
const (
	DefaultDBDriver = "mysql"
	DefaultDBHost   = "localhost"
	DefaultDBPort   = "3306"
	DefaultDBName   = "ifsync"
	DefaultDBPath   = "/var/lib/ifsync/ifsync.db"

	DefaultPollInterval = "30s"
	DefaultLogLevel     = "info"
	DefaultHealthPort   = "8080"
)
