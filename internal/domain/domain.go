// Package domain implements Anna's domain refresh engine: one knowledge
// domain per slice of system state (hardware, packages, services, network,
// peripherals, storage, docs), each refreshed on its own schedule and
// fingerprinted so unchanged snapshots never get treated as new evidence.
package domain

// Domain identifies one knowledge domain. The string form is the
// dotted name used in persisted state, request/response spool files, and
// log lines — renaming a value here is a breaking change to on-disk state.
type Domain string

const (
	HwStatic           Domain = "hw.static"
	HwDynamic          Domain = "hw.dynamic"
	SwPackages         Domain = "sw.packages"
	SwCommands         Domain = "sw.commands"
	SwServices         Domain = "sw.services"
	SwConfigCoverage   Domain = "sw.config_coverage"
	NetInterfaces      Domain = "net.interfaces"
	PeripheralsUsb     Domain = "peripherals.usb"
	PeripheralsThunder Domain = "peripherals.thunderbolt"
	PeripheralsBt      Domain = "peripherals.bluetooth"
	StorageDevices     Domain = "storage.devices"
	StorageFilesystems Domain = "storage.filesystems"
	DocsLocal          Domain = "docs.local"
)

// All returns every domain in a stable, fixed order.
func All() []Domain {
	return []Domain{
		HwStatic,
		HwDynamic,
		SwPackages,
		SwCommands,
		SwServices,
		SwConfigCoverage,
		NetInterfaces,
		PeripheralsUsb,
		PeripheralsThunder,
		PeripheralsBt,
		StorageDevices,
		StorageFilesystems,
		DocsLocal,
	}
}

// ParseDomain returns the Domain matching s, or false if s is not one of
// the closed set of dotted names.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range All() {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// DefaultRefreshInterval is how long a fresh snapshot is trusted before the
// background loop considers it due for another gather pass.
func (d Domain) DefaultRefreshInterval() int64 {
	switch d {
	case HwStatic:
		return 86400
	case HwDynamic:
		return 60
	case SwPackages:
		return 3600
	case SwCommands:
		return 3600
	case SwServices:
		return 300
	case SwConfigCoverage:
		return 1800
	case NetInterfaces:
		return 120
	case PeripheralsUsb:
		return 120
	case PeripheralsThunder:
		return 300
	case PeripheralsBt:
		return 120
	case StorageDevices:
		return 300
	case StorageFilesystems:
		return 60
	case DocsLocal:
		return 3600
	default:
		return 300
	}
}

// RequiredForStatus names the domains `annactl status` needs present.
func (d Domain) RequiredForStatus() bool {
	switch d {
	case HwStatic, HwDynamic, SwPackages, SwServices, StorageFilesystems:
		return true
	default:
		return false
	}
}

// RequiredForHw names the domains `annactl hw` needs present.
func (d Domain) RequiredForHw() bool {
	switch d {
	case HwStatic, HwDynamic, NetInterfaces, PeripheralsUsb, PeripheralsThunder, PeripheralsBt, StorageDevices, StorageFilesystems:
		return true
	default:
		return false
	}
}

// RequiredForSw names the domains `annactl sw` needs present.
func (d Domain) RequiredForSw() bool {
	switch d {
	case SwPackages, SwCommands, SwServices, SwConfigCoverage, DocsLocal:
		return true
	default:
		return false
	}
}

// costScope groups domains by which entry of the admission cost table
// (Table 4.C.1) applies to refreshing them.
type costScope string

const (
	scopeCPU     costScope = "cpu"
	scopeMemory  costScope = "memory"
	scopeStorage costScope = "storage"
	scopeNetwork costScope = "network"
	scopeGPU     costScope = "gpu"
	scopeThermal costScope = "thermal"
	scopeProcess costScope = "process"
	scopeService costScope = "service"
	scopeDevice  costScope = "device"
	scopePackage costScope = "package"
)

// costScope maps each domain to the admission-cost scope its gather pass
// belongs to.
func (d Domain) costScope() costScope {
	switch d {
	case HwStatic:
		return scopeCPU
	case HwDynamic:
		return scopeThermal
	case SwPackages:
		return scopePackage
	case SwCommands:
		return scopeProcess
	case SwServices:
		return scopeService
	case SwConfigCoverage:
		return scopeStorage
	case NetInterfaces:
		return scopeNetwork
	case PeripheralsUsb, PeripheralsThunder, PeripheralsBt:
		return scopeDevice
	case StorageDevices, StorageFilesystems:
		return scopeStorage
	case DocsLocal:
		return scopeStorage
	default:
		return scopeProcess
	}
}

// EstimatedCostMillis returns the admission-table cost estimate (Table
// 4.C.1) for refreshing this domain, used by the on-demand path to decide
// whether a stale domain can be refreshed within the remaining deadline.
func (d Domain) EstimatedCostMillis() int64 {
	switch d.costScope() {
	case scopeCPU:
		return 10
	case scopeMemory:
		return 5
	case scopeStorage:
		return 50
	case scopeNetwork:
		return 30
	case scopeGPU:
		return 100
	case scopeThermal:
		return 20
	case scopeProcess:
		return 15
	case scopeService:
		return 25
	case scopeDevice:
		return 40
	case scopePackage:
		return 100
	default:
		return 50
	}
}
