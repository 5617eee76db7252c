// Package router implements Anna's deterministic query classifier: given a
// raw query string it selects exactly one QueryClass by pattern match,
// never by model inference, and attaches the capability contract that
// governs whether a deterministic formatter may answer it.
package router

// QueryClass is one of the closed set of recognized query shapes.
type QueryClass string

const (
	SystemTriage              QueryClass = "system_triage"
	CpuInfo                   QueryClass = "cpu_info"
	CpuCores                  QueryClass = "cpu_cores"
	CpuTemp                   QueryClass = "cpu_temp"
	RamInfo                   QueryClass = "ram_info"
	GpuInfo                   QueryClass = "gpu_info"
	HardwareAudio             QueryClass = "hardware_audio"
	TopMemoryProcesses        QueryClass = "top_memory_processes"
	TopCpuProcesses           QueryClass = "top_cpu_processes"
	DiskSpace                 QueryClass = "disk_space"
	NetworkInterfaces         QueryClass = "network_interfaces"
	Help                      QueryClass = "help"
	SystemSlow                QueryClass = "system_slow"
	MemoryUsage               QueryClass = "memory_usage"
	MemoryFree                QueryClass = "memory_free"
	DiskUsage                 QueryClass = "disk_usage"
	ServiceStatus             QueryClass = "service_status"
	SystemHealthSummary       QueryClass = "system_health_summary"
	BootTimeStatus            QueryClass = "boot_time_status"
	InstalledPackagesOverview QueryClass = "installed_packages_overview"
	PackageCount              QueryClass = "package_count"
	InstalledToolCheck        QueryClass = "installed_tool_check"
	AppAlternatives           QueryClass = "app_alternatives"
	Unknown                   QueryClass = "unknown"
)

// All returns every recognized query class, Unknown last.
func All() []QueryClass {
	return []QueryClass{
		SystemTriage, CpuInfo, CpuCores, CpuTemp, RamInfo, GpuInfo, HardwareAudio,
		TopMemoryProcesses, TopCpuProcesses, DiskSpace, NetworkInterfaces, Help,
		SystemSlow, MemoryUsage, MemoryFree, DiskUsage, ServiceStatus,
		SystemHealthSummary, BootTimeStatus, InstalledPackagesOverview,
		PackageCount, InstalledToolCheck, AppAlternatives, Unknown,
	}
}

// EvidenceKind names a family of probe evidence a query class may depend
// on, independent of which specific probe id within that family ran.
type EvidenceKind string

const (
	EvidenceCpu            EvidenceKind = "cpu"
	EvidenceCpuTemperature EvidenceKind = "cpu_temperature"
	EvidenceMemory         EvidenceKind = "memory"
	EvidenceDisk           EvidenceKind = "disk"
	EvidenceProcesses      EvidenceKind = "processes"
	EvidenceNetwork        EvidenceKind = "network"
	EvidenceServices       EvidenceKind = "services"
	EvidencePackages       EvidenceKind = "packages"
	EvidenceGpu            EvidenceKind = "gpu"
	EvidenceAudio          EvidenceKind = "audio"
	EvidenceToolExists     EvidenceKind = "tool_exists"
	EvidenceBootTime       EvidenceKind = "boot_time"
)

// RouteCapability is what the router hands the evidence gate and answer
// formatter: whether the class may ever be answered without a specialist,
// whether it needs probe evidence at all, and the minimum probe set that
// must run first.
type RouteCapability struct {
	CanAnswerDeterministically bool
	EvidenceRequired           bool
	RequiredEvidenceKinds      []EvidenceKind
	SpineProbes                []string
}

// forcedNonDeterministic is the hard rule from the spec: these classes
// must never be answered by a deterministic formatter, even when every
// spine probe returned clean evidence. A specialist is mandatory.
var forcedNonDeterministic = map[QueryClass]bool{
	CpuTemp:                   true,
	HardwareAudio:             true,
	InstalledToolCheck:        true,
	CpuCores:                  true,
	CpuInfo:                   true,
	GpuInfo:                   true,
	RamInfo:                   true,
	SystemSlow:                true,
	SystemHealthSummary:       true,
	PackageCount:              true,
	BootTimeStatus:            true,
	AppAlternatives:           true,
	InstalledPackagesOverview: true,
}

// IsForcedNonDeterministic reports whether class may never be answered by
// a deterministic formatter regardless of evidence freshness.
func IsForcedNonDeterministic(class QueryClass) bool {
	return forcedNonDeterministic[class]
}

// CapabilityFor returns the fixed RouteCapability for class.
func CapabilityFor(class QueryClass) RouteCapability {
	if cap, ok := capabilityTable[class]; ok {
		return cap
	}
	return capabilityTable[Unknown]
}

var capabilityTable = map[QueryClass]RouteCapability{
	SystemTriage: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceServices, EvidenceProcesses},
		SpineProbes:                []string{"service.status", "process.top"},
	},
	Help: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           false,
	},
	MemoryUsage: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceMemory},
		SpineProbes:                []string{"memory.info"},
	},
	MemoryFree: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceMemory},
		SpineProbes:                []string{"memory.info"},
	},
	DiskUsage: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceDisk},
		SpineProbes:                []string{"storage.filesystems"},
	},
	DiskSpace: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceDisk},
		SpineProbes:                []string{"storage.filesystems"},
	},
	TopMemoryProcesses: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceProcesses},
		SpineProbes:                []string{"process.top"},
	},
	TopCpuProcesses: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceProcesses},
		SpineProbes:                []string{"process.top"},
	},
	NetworkInterfaces: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceNetwork},
		SpineProbes:                []string{"net.interfaces"},
	},
	ServiceStatus: {
		CanAnswerDeterministically: true,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceServices},
		SpineProbes:                []string{"service.status"},
	},

	CpuInfo: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceCpu},
		SpineProbes:                []string{"cpu.info"},
	},
	CpuCores: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceCpu},
		SpineProbes:                []string{"cpu.info"},
	},
	CpuTemp: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceCpuTemperature},
		SpineProbes:                []string{"sensors.temperature"},
	},
	RamInfo: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceMemory},
		SpineProbes:                []string{"memory.info"},
	},
	GpuInfo: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceGpu},
		SpineProbes:                []string{}, // no GPU probe in the pack; the specialist works from what process/device evidence exists
	},
	HardwareAudio: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceAudio},
		SpineProbes:                []string{"peripherals.usb"},
	},
	SystemSlow: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceProcesses, EvidenceDisk},
		SpineProbes:                []string{"process.top", "storage.filesystems"},
	},
	SystemHealthSummary: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceDisk, EvidenceMemory, EvidenceServices, EvidenceProcesses},
		SpineProbes:                []string{"storage.filesystems", "memory.info", "service.status", "process.top"},
	},
	PackageCount: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidencePackages},
		SpineProbes:                []string{"packages.list"},
	},
	InstalledToolCheck: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceToolExists},
		SpineProbes:                []string{}, // the specific tool is named at query time; see RouteToolCheck
	},
	BootTimeStatus: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidenceBootTime},
		SpineProbes:                []string{"host.info"},
	},
	InstalledPackagesOverview: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           true,
		RequiredEvidenceKinds:      []EvidenceKind{EvidencePackages},
		SpineProbes:                []string{"packages.list"},
	},
	AppAlternatives: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           false,
	},
	Unknown: {
		CanAnswerDeterministically: false,
		EvidenceRequired:           false,
	},
}

// SpineProbesFor returns the spine probe IDs for a tool-existence query
// naming a specific binary, e.g. "nano" -> ["tool.presence:nano"]. The
// base capability table cannot name these statically since the tool is
// only known at query time.
func SpineProbesForToolCheck(tool string) []string {
	if tool == "" {
		return nil
	}
	return []string{"tool.presence:" + tool}
}
