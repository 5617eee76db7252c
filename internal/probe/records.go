package probe

// CPUInfo is the typed record produced by the "cpu.info" probe.
type CPUInfo struct {
	ModelName string  `json:"model_name"`
	Vendor    string  `json:"vendor"`
	Cores     int     `json:"cores"`
	MHz       float64 `json:"mhz"`
}

// CPUUsage is the typed record produced by the "cpu.usage" probe.
type CPUUsage struct {
	PercentTotal float64   `json:"percent_total"`
	PerCore      []float64 `json:"per_core"`
}

// MemoryInfo is the typed record produced by the "memory.info" probe.
type MemoryInfo struct {
	TotalKB     uint64 `json:"total_kb"`
	UsedKB      uint64 `json:"used_kb"`
	FreeKB      uint64 `json:"free_kb"`
	AvailableKB uint64 `json:"available_kb"`
}

// DiskUsage is the typed record produced by the "disk.usage" probe.
type DiskUsage struct {
	Mountpoint string `json:"mountpoint"`
	FSType     string `json:"fs_type"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// NetworkInterface is one element of the record produced by the
// "net.interfaces" probe.
type NetworkInterface struct {
	Name  string   `json:"name"`
	Addrs []string `json:"addrs"`
	IsUp  bool     `json:"is_up"`
	MTU   int      `json:"mtu"`
}

// ProcessSample is one element of the record produced by the
// "process.top" probe.
type ProcessSample struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	MemPercent float32 `json:"mem_percent"`
}

// HostInfo is the typed record produced by the "host.info" probe.
type HostInfo struct {
	Hostname    string `json:"hostname"`
	BootID      string `json:"boot_id"`
	UptimeSecs  uint64 `json:"uptime_secs"`
	KernelVer   string `json:"kernel_version"`
	Platform    string `json:"platform"`
	PlatformVer string `json:"platform_version"`
}

// SensorReading is one element of the record produced by the
// "sensors.temperature" probe. CelsiusC is a pointer because a sensor with
// no reading stays absent rather than defaulting to zero.
type SensorReading struct {
	SensorKey string   `json:"sensor_key"`
	CelsiusC  *float64 `json:"celsius_c,omitempty"`
}

// PackageEntry is one element of the record produced by the
// "packages.list" probe.
type PackageEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServiceState is one element of the record produced by the
// "service.status" probe.
type ServiceState struct {
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Enabled   bool   `json:"enabled"`
	UserScope bool   `json:"user_scope"`
}

// WifiInterface is one element of the record produced by the "net.wifi"
// probe. SignalDBM and SSID are nil when the driver does not report them —
// they are never defaulted.
type WifiInterface struct {
	Name      string  `json:"name"`
	SSID      *string `json:"ssid,omitempty"`
	SignalDBM *int    `json:"signal_dbm,omitempty"`
}

// USBDevice is one element of the record produced by the
// "peripherals.usb" probe.
type USBDevice struct {
	VendorID   string `json:"vendor_id"`
	ProductID  string `json:"product_id"`
	Descriptor string `json:"descriptor"`
}

// BluetoothDevice is one element of the record produced by the
// "peripherals.bluetooth" probe.
type BluetoothDevice struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Paired  bool   `json:"paired"`
}

// BlockDevice is one element of the record produced by the
// "storage.devices" probe.
type BlockDevice struct {
	Name       string `json:"name"`
	SizeBytes  uint64 `json:"size_bytes"`
	Type       string `json:"type"`
	Mountpoint string `json:"mountpoint,omitempty"`
	FSType     string `json:"fs_type,omitempty"`
}

// FilesystemUsage is one element of the record produced by the
// "storage.filesystems" probe.
type FilesystemUsage struct {
	Mountpoint string `json:"mountpoint"`
	FSType     string `json:"fs_type"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

// ToolPresence is the typed record produced by the "tool.presence" probe.
type ToolPresence struct {
	Tool    string `json:"tool"`
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
}
