package probe

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	gcpu "github.com/shirou/gopsutil/v3/cpu"
	gdisk "github.com/shirou/gopsutil/v3/disk"
	ghost "github.com/shirou/gopsutil/v3/host"
	gmem "github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	gprocess "github.com/shirou/gopsutil/v3/process"
)

const defaultProbeTimeout = 5 * time.Second

// CPUInfoProbe reports static CPU identity (model, vendor, core count) via
// gopsutil, which reads /proc/cpuinfo in-process rather than shelling out
// to lscpu.
type CPUInfoProbe struct{}

func NewCPUInfoProbe() *CPUInfoProbe { return &CPUInfoProbe{} }

func (p *CPUInfoProbe) ID() string             { return "cpu.info" }
func (p *CPUInfoProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *CPUInfoProbe) Run(ctx context.Context) Result {
	infos, err := gcpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/cpu", Err: err}
	}
	counts, err := gcpu.CountsWithContext(ctx, true)
	if err != nil {
		counts = len(infos)
	}
	first := infos[0]
	return Result{
		ProbeID: p.ID(),
		Outcome: OutcomeOK,
		Source:  "gopsutil/cpu",
		Data: CPUInfo{
			ModelName: first.ModelName,
			Vendor:    first.VendorID,
			Cores:     counts,
			MHz:       first.Mhz,
		},
	}
}

// CPUUsageProbe samples instantaneous CPU utilization, total and per-core.
type CPUUsageProbe struct{}

func NewCPUUsageProbe() *CPUUsageProbe { return &CPUUsageProbe{} }

func (p *CPUUsageProbe) ID() string             { return "cpu.usage" }
func (p *CPUUsageProbe) Timeout() time.Duration { return 2 * time.Second }

func (p *CPUUsageProbe) Run(ctx context.Context) Result {
	total, err := gcpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil || len(total) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/cpu", Err: err}
	}
	perCore, err := gcpu.PercentWithContext(ctx, 200*time.Millisecond, true)
	if err != nil {
		perCore = nil
	}
	return Result{
		ProbeID: p.ID(),
		Outcome: OutcomeOK,
		Source:  "gopsutil/cpu",
		Data:    CPUUsage{PercentTotal: total[0], PerCore: perCore},
	}
}

// MemoryProbe reports system memory totals.
type MemoryProbe struct{}

func NewMemoryProbe() *MemoryProbe { return &MemoryProbe{} }

func (p *MemoryProbe) ID() string             { return "memory.info" }
func (p *MemoryProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *MemoryProbe) Run(ctx context.Context) Result {
	vm, err := gmem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/mem", Err: err}
	}
	return Result{
		ProbeID: p.ID(),
		Outcome: OutcomeOK,
		Source:  "gopsutil/mem",
		Data: MemoryInfo{
			TotalKB:     vm.Total / 1024,
			UsedKB:      vm.Used / 1024,
			FreeKB:      vm.Free / 1024,
			AvailableKB: vm.Available / 1024,
		},
	}
}

// DiskUsageProbe reports filesystem usage for a fixed mountpoint.
type DiskUsageProbe struct {
	mountpoint string
}

func NewDiskUsageProbe(mountpoint string) *DiskUsageProbe {
	return &DiskUsageProbe{mountpoint: mountpoint}
}

func (p *DiskUsageProbe) ID() string             { return "disk.usage:" + p.mountpoint }
func (p *DiskUsageProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *DiskUsageProbe) Run(ctx context.Context) Result {
	usage, err := gdisk.UsageWithContext(ctx, p.mountpoint)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/disk", Err: err}
	}
	return Result{
		ProbeID: p.ID(),
		Outcome: OutcomeOK,
		Source:  "gopsutil/disk",
		Data: DiskUsage{
			Mountpoint: p.mountpoint,
			FSType:     usage.Fstype,
			TotalBytes: usage.Total,
			UsedBytes:  usage.Used,
			FreeBytes:  usage.Free,
		},
	}
}

// FilesystemsProbe reports usage for every mounted filesystem, unlike
// DiskUsageProbe which is pinned to one mountpoint.
type FilesystemsProbe struct{}

func NewFilesystemsProbe() *FilesystemsProbe { return &FilesystemsProbe{} }

func (p *FilesystemsProbe) ID() string             { return "storage.filesystems" }
func (p *FilesystemsProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *FilesystemsProbe) Run(ctx context.Context) Result {
	partitions, err := gdisk.PartitionsWithContext(ctx, false)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/disk", Err: err}
	}

	out := make([]FilesystemUsage, 0, len(partitions))
	for _, part := range partitions {
		usage, err := gdisk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, FilesystemUsage{
			Mountpoint: part.Mountpoint,
			FSType:     part.Fstype,
			TotalBytes: usage.Total,
			UsedBytes:  usage.Used,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mountpoint < out[j].Mountpoint })
	if len(out) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/disk", Err: err}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "gopsutil/disk", Data: out}
}

// NetworkInterfacesProbe enumerates host network interfaces and their
// addresses.
type NetworkInterfacesProbe struct{}

func NewNetworkInterfacesProbe() *NetworkInterfacesProbe { return &NetworkInterfacesProbe{} }

func (p *NetworkInterfacesProbe) ID() string             { return "net.interfaces" }
func (p *NetworkInterfacesProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *NetworkInterfacesProbe) Run(ctx context.Context) Result {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/net", Err: err}
	}
	out := make([]NetworkInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		isUp := false
		for _, f := range iface.Flags {
			if f == "up" {
				isUp = true
			}
		}
		out = append(out, NetworkInterface{Name: iface.Name, Addrs: addrs, IsUp: isUp, MTU: iface.MTU})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "gopsutil/net", Data: out}
}

// TopProcessesProbe samples the process table and returns CPU/RSS for
// every visible process, leaving the caller (the router's top-N
// formatters) to sort and truncate. Mirrors the process-table walk in
// nya3jp-tast's runner, but reads evidence instead of sending signals.
type TopProcessesProbe struct{}

func NewTopProcessesProbe() *TopProcessesProbe { return &TopProcessesProbe{} }

func (p *TopProcessesProbe) ID() string             { return "process.top" }
func (p *TopProcessesProbe) Timeout() time.Duration { return 10 * time.Second }

func (p *TopProcessesProbe) Run(ctx context.Context) Result {
	procs, err := gprocess.ProcessesWithContext(ctx)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/process", Err: err}
	}

	samples := make([]ProcessSample, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := proc.CPUPercentWithContext(ctx)
		memPct, _ := proc.MemoryPercentWithContext(ctx)
		var rss uint64
		if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rss = mi.RSS
		}
		samples = append(samples, ProcessSample{
			PID:        proc.Pid,
			Name:       name,
			CPUPercent: cpuPct,
			RSSBytes:   rss,
			MemPercent: memPct,
		})
	}
	if len(samples) == 0 {
		return Result{ProbeID: p.ID(), Outcome: OutcomeParseError, Source: "gopsutil/process", Err: ErrNoProcesses}
	}
	return Result{ProbeID: p.ID(), Outcome: OutcomeOK, Source: "gopsutil/process", Data: samples}
}

// ErrNoProcesses signals the process table read returned zero usable
// entries — distinct from a real Unavailable (gopsutil itself failing).
var ErrNoProcesses = errNoProcesses{}

type errNoProcesses struct{}

func (errNoProcesses) Error() string { return "probe: process table yielded no samples" }

// HostInfoProbe reports static and slow-changing host identity: hostname,
// boot id, uptime, kernel/platform version.
type HostInfoProbe struct{}

func NewHostInfoProbe() *HostInfoProbe { return &HostInfoProbe{} }

func (p *HostInfoProbe) ID() string             { return "host.info" }
func (p *HostInfoProbe) Timeout() time.Duration { return defaultProbeTimeout }

func (p *HostInfoProbe) Run(ctx context.Context) Result {
	info, err := ghost.InfoWithContext(ctx)
	if err != nil {
		return Result{ProbeID: p.ID(), Outcome: OutcomeUnavailable, Source: "gopsutil/host", Err: err}
	}
	hostname, _ := os.Hostname()
	bootID := ""
	if raw, err := os.ReadFile("/proc/sys/kernel/random/boot_id"); err == nil {
		bootID = strings.TrimSpace(string(raw))
	}
	return Result{
		ProbeID: p.ID(),
		Outcome: OutcomeOK,
		Source:  "gopsutil/host",
		Data: HostInfo{
			Hostname:    hostname,
			BootID:      bootID,
			UptimeSecs:  info.Uptime,
			KernelVer:   info.KernelVersion,
			Platform:    info.Platform,
			PlatformVer: info.PlatformVersion,
		},
	}
}
